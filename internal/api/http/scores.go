package http

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mind-engage/quizdesk/internal/auth"
	"github.com/mind-engage/quizdesk/internal/eventlog"
	"github.com/mind-engage/quizdesk/internal/quiz"
)

// CreateScoreHandler records one finished attempt for the caller. The score
// is computed by the client; only its range is checked here.
func CreateScoreHandler(store quiz.Store, ev EventRecorder, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuestionSetID string         `json:"question_set_id"`
			Answers       map[int]string `json:"answers"`
			Score         *int           `json:"score"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeMessage(w, http.StatusBadRequest, "bad json")
			return
		}
		errs := quiz.ValidationErrors{}
		if req.QuestionSetID == "" {
			errs.Add("question_set_id", "The question set id field is required.")
		}
		if req.Answers == nil {
			errs.Add("answers", "The answers field is required.")
		}
		if req.Score == nil {
			errs.Add("score", "The score field is required.")
		}
		if len(errs) > 0 {
			writeValidation(w, errs)
			return
		}

		qs, err := store.GetQuestionSet(r.Context(), req.QuestionSetID)
		if errors.Is(err, quiz.ErrNotFound) {
			writeValidation(w, quiz.ValidationErrors{"question_set_id": {"The selected question set id is invalid."}})
			return
		}
		if err != nil {
			log.Error("load question set for score", zap.Error(err))
			writeStoreError(w, err)
			return
		}
		if n := len(qs.Content); *req.Score < 0 || *req.Score > n {
			writeValidation(w, quiz.ValidationErrors{"score": {"The score must be between 0 and " + strconv.Itoa(n) + "."}})
			return
		}

		sub := auth.SubjectFromContext(r.Context())
		sc, err := store.CreateScore(r.Context(), sub, quiz.AttemptInput{
			QuestionSetID: qs.ID,
			Answers:       req.Answers,
			Score:         *req.Score,
		})
		if err != nil {
			log.Error("create score", zap.Error(err))
			writeMessage(w, http.StatusInternalServerError, "Could not save assessment, please try again later")
			return
		}
		record(r.Context(), ev, log, eventlog.ScoreRecorded, qs.ID, map[string]any{
			"score_id": sc.ID, "user_id": sub, "score": sc.Score, "total": sc.Total,
		})
		writeJSON(w, http.StatusCreated, sc)
	}
}

func ListScoresHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := store.ListScores(r.Context(), quiz.ScoreListOpts{
			UserID:  auth.SubjectFromContext(r.Context()),
			Page:    pageParam(r),
			PerPage: 10,
		})
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

// DashboardHandler returns the caller's most recent sets and attempts with
// their totals.
func DashboardHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		sets, err := store.ListQuestionSets(r.Context(), quiz.ListOpts{OwnerID: sub, PerPage: 100})
		if err != nil {
			writeStoreError(w, err)
			return
		}
		scores, err := store.ListScores(r.Context(), quiz.ScoreListOpts{UserID: sub, PerPage: 100})
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user":               map[string]string{"id": sub, "name": auth.NameFromContext(r.Context())},
			"question_sets":      sets.Data,
			"question_set_count": sets.Total,
			"scores":             scores.Data,
			"score_count":        scores.Total,
		})
	}
}
