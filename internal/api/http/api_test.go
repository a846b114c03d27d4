package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/quizdesk/internal/auth"
	"github.com/mind-engage/quizdesk/internal/db"
	"github.com/mind-engage/quizdesk/internal/eventlog"
	"github.com/mind-engage/quizdesk/internal/quiz"
	"github.com/mind-engage/quizdesk/internal/users"
)

const sampleContent = `1. What is 2+2?
A. 3
B. 4
C. 5
D. 6
Answer: b

2. Capital of France?
A. Berlin
B. Madrid
C. Paris
D. Rome
Answer: c`

type testAPI struct {
	t      *testing.T
	h      http.Handler
	events *eventlog.Repo
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "api.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	dbh, err := db.Open(ctx, db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbh.Close() })

	events := eventlog.NewRepo(dbh, "test")
	h := NewRouter(Deps{
		Auth:   auth.NewAuthService("test-secret", time.Hour),
		Users:  users.NewStore(dbh).WithCost(bcrypt.MinCost),
		Quiz:   quiz.NewSQLStore(dbh),
		Events: events,
		Logger: zap.NewNop(),
		Ready:  dbh.PingContext,
	})
	return &testAPI{t: t, h: h, events: events}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) register(name, email string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "password123",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	var out tokenResponse
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(a.t, out.AccessToken)
	return out.AccessToken
}

func (a *testAPI) createSet(token, title string, vis quiz.Visibility) quiz.QuestionSet {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/question-sets", token, quiz.Draft{
		Title: title, Description: "warm-up", Visibility: vis, Duration: 5, Content: sampleContent,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	var qs quiz.QuestionSet
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &qs))
	return qs
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRegisterAndLogin(t *testing.T) {
	a := newTestAPI(t)
	a.register("Ada", "ada@example.com")

	rec := a.do(http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Ada 2", "email": "ADA@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode[message](t, rec).Errors["email"], "The email has already been taken.")

	rec = a.do(http.MethodPost, "/auth/register", "", map[string]string{"name": "", "email": "nope", "password": "x"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errs := decode[message](t, rec).Errors
	assert.Len(t, errs, 3)

	rec = a.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ada@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[tokenResponse](t, rec)
	assert.Equal(t, "Ada", out.User.Name)
	assert.Equal(t, users.RoleUser, out.User.Role)

	rec = a.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ada@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	a := newTestAPI(t)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/question-sets", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/dashboard", "bogus", nil).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/readyz", "", nil).Code)
}

func TestCreateQuestionSet(t *testing.T) {
	a := newTestAPI(t)
	tok := a.register("Ada", "ada@example.com")

	qs := a.createSet(tok, "Basics", quiz.VisibilityPrivate)
	assert.NotEmpty(t, qs.ID)
	assert.Equal(t, "Ada", qs.OwnerName)
	require.Len(t, qs.Content, 2)
	assert.Equal(t, "c", qs.Content[1].Answer)
	assert.Equal(t, []quiz.Option{
		{Key: "a", Text: "Berlin"}, {Key: "b", Text: "Madrid"}, {Key: "c", Text: "Paris"}, {Key: "d", Text: "Rome"},
	}, qs.Content[1].Options)

	evs, err := a.events.List(context.Background(), qs.ID)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, eventlog.QuestionSetCreated, evs[0].Type)

	// the title is unique across all users
	other := a.register("Bob", "bob@example.com")
	rec := a.do(http.MethodPost, "/question-sets", other, quiz.Draft{
		Title: "Basics", Description: "d", Visibility: quiz.VisibilityPublic, Duration: 1, Content: sampleContent,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []string{"The title has already been taken."}, decode[message](t, rec).Errors["title"])
}

func TestCreateQuestionSetValidation(t *testing.T) {
	a := newTestAPI(t)
	tok := a.register("Ada", "ada@example.com")

	rec := a.do(http.MethodPost, "/question-sets", tok, quiz.Draft{Visibility: "secret", Duration: 0})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	m := decode[message](t, rec)
	assert.Equal(t, "The title field is required.", m.Message)
	for _, f := range []string{"title", "duration", "description", "content", "visibility"} {
		assert.NotEmpty(t, m.Errors[f], f)
	}

	rec = a.do(http.MethodPost, "/question-sets", tok, quiz.Draft{
		Title: "Broken", Description: "d", Visibility: quiz.VisibilityPublic, Duration: 1,
		Content: "1. No options here\nAnswer: a",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode[message](t, rec).Errors["content"], "Question 1 has no options.")
}

func TestQuestionSetReadAccess(t *testing.T) {
	a := newTestAPI(t)
	owner := a.register("Ada", "ada@example.com")
	other := a.register("Bob", "bob@example.com")
	private := a.createSet(owner, "Private set", quiz.VisibilityPrivate)
	public := a.createSet(owner, "Public set", quiz.VisibilityPublic)

	// direct link works for anyone signed in
	rec := a.do(http.MethodGet, "/question-sets/"+private.ID, other, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Private set", decode[quiz.QuestionSet](t, rec).Title)

	rec = a.do(http.MethodGet, "/question-sets/search?uuid="+public.ID, other, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, public.ID, decode[quiz.QuestionSet](t, rec).ID)

	rec = a.do(http.MethodGet, "/question-sets/search?uuid=does-not-exist", other, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Question not found"}`, rec.Body.String())

	rec = a.do(http.MethodGet, "/question-sets/search", other, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// listings: own sets, or public sets of everyone
	rec = a.do(http.MethodGet, "/question-sets", other, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[quiz.Page[quiz.QuestionSetSummary]](t, rec).Total)

	rec = a.do(http.MethodGet, "/question-sets?scope=public", other, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pub := decode[quiz.Page[quiz.QuestionSetSummary]](t, rec)
	require.Len(t, pub.Data, 1)
	assert.Equal(t, public.ID, pub.Data[0].ID)
	assert.Equal(t, 2, pub.Data[0].QuestionCount)

	rec = a.do(http.MethodGet, "/question-sets", owner, nil)
	assert.Equal(t, 2, decode[quiz.Page[quiz.QuestionSetSummary]](t, rec).Total)

	// the editable text is for the owner only
	rec = a.do(http.MethodGet, "/question-sets/"+private.ID+"/text", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, private.Content, quiz.Parse(rec.Body.String()))
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/question-sets/"+private.ID+"/text", other, nil).Code)
}

func TestUpdateAndDeleteQuestionSet(t *testing.T) {
	a := newTestAPI(t)
	owner := a.register("Ada", "ada@example.com")
	other := a.register("Bob", "bob@example.com")
	qs := a.createSet(owner, "Basics", quiz.VisibilityPrivate)
	a.createSet(owner, "Taken", quiz.VisibilityPrivate)

	edit := quiz.Draft{
		Title: "Basics", Description: "now public", Visibility: quiz.VisibilityPublic, Duration: 10,
		Content: "1. Only one?\nA. yes\nB. no\nAnswer: a",
	}
	rec := a.do(http.MethodPut, "/question-sets/"+qs.ID, owner, edit)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[quiz.QuestionSet](t, rec)
	assert.Len(t, got.Content, 1)
	assert.Equal(t, 10, got.Duration)
	assert.Equal(t, quiz.VisibilityPublic, got.Visibility)

	// renaming onto another set's title is rejected the same way as creating it
	edit.Title = "Taken"
	rec = a.do(http.MethodPut, "/question-sets/"+qs.ID, owner, edit)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []string{"The title has already been taken."}, decode[message](t, rec).Errors["title"])
	rec = a.do(http.MethodGet, "/question-sets/"+qs.ID, owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Basics", decode[quiz.QuestionSet](t, rec).Title)

	edit.Title = "Basics"
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPut, "/question-sets/"+qs.ID, other, edit).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPut, "/question-sets/missing", owner, edit).Code)

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodDelete, "/question-sets/"+qs.ID, other, nil).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodDelete, "/question-sets/"+qs.ID, owner, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/question-sets/"+qs.ID, owner, nil).Code)

	evs, err := a.events.List(context.Background(), qs.ID)
	require.NoError(t, err)
	require.Len(t, evs, 3)
	assert.Equal(t, eventlog.QuestionSetDeleted, evs[2].Type)
}

func TestScores(t *testing.T) {
	a := newTestAPI(t)
	owner := a.register("Ada", "ada@example.com")
	taker := a.register("Bob", "bob@example.com")
	qs := a.createSet(owner, "Basics", quiz.VisibilityPublic)

	rec := a.do(http.MethodPost, "/scores", taker, map[string]any{
		"question_set_id": qs.ID, "answers": map[string]string{"1": "b", "2": "a"}, "score": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sc := decode[quiz.Score](t, rec)
	assert.Equal(t, 1, sc.Score)
	assert.Equal(t, 2, sc.Total)
	assert.Equal(t, 50, sc.Percentage())

	cases := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"unknown set", map[string]any{"question_set_id": "nope", "answers": map[string]string{}, "score": 0}, "question_set_id"},
		{"score too high", map[string]any{"question_set_id": qs.ID, "answers": map[string]string{}, "score": 3}, "score"},
		{"missing answers", map[string]any{"question_set_id": qs.ID, "score": 0}, "answers"},
		{"missing score", map[string]any{"question_set_id": qs.ID, "answers": map[string]string{}}, "score"},
	}
	for _, tc := range cases {
		rec := a.do(http.MethodPost, "/scores", taker, tc.body)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, tc.name)
		assert.NotEmpty(t, decode[message](t, rec).Errors[tc.field], tc.name)
	}

	rec = a.do(http.MethodGet, "/scores", taker, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[quiz.Page[quiz.Score]](t, rec)
	require.Len(t, mine.Data, 1)
	assert.Equal(t, "Basics", mine.Data[0].QuestionSetTitle)
	assert.Equal(t, map[int]string{1: "b", 2: "a"}, mine.Data[0].Answers)
	assert.Equal(t, 10, mine.PerPage)

	rec = a.do(http.MethodGet, "/question-sets/"+qs.ID+"/scores", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	review := decode[quiz.Page[quiz.Score]](t, rec)
	require.Len(t, review.Data, 1)
	assert.Equal(t, "Bob", review.Data[0].UserName)
	assert.Equal(t, 20, review.PerPage)

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/question-sets/"+qs.ID+"/scores", taker, nil).Code)

	rec = a.do(http.MethodGet, "/dashboard", taker, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var dash struct {
		QuestionSetCount int          `json:"question_set_count"`
		ScoreCount       int          `json:"score_count"`
		Scores           []quiz.Score `json:"scores"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dash))
	assert.Equal(t, 0, dash.QuestionSetCount)
	assert.Equal(t, 1, dash.ScoreCount)
}
