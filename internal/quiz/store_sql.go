package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/quizdesk/internal/db"
)

type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(dbh *sql.DB) *SQLStore {
	return &SQLStore{db: dbh, now: time.Now}
}

func (s *SQLStore) CreateQuestionSet(ctx context.Context, qs QuestionSet) (QuestionSet, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM question_sets WHERE title=$1`, qs.Title).Scan(&exists)
	switch {
	case err == nil:
		return QuestionSet{}, ErrDuplicateTitle
	case !errors.Is(err, sql.ErrNoRows):
		return QuestionSet{}, fmt.Errorf("check title: %w", err)
	}

	cj, err := json.Marshal(contentOrEmpty(qs.Content))
	if err != nil {
		return QuestionSet{}, err
	}
	qs.ID = uuid.NewString()
	now := s.now().Unix()
	_, err = s.db.ExecContext(ctx, `INSERT INTO question_sets
		(id,user_id,title,description,visibility,duration,content_json,question_count,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		qs.ID, qs.OwnerID, qs.Title, qs.Description, string(qs.Visibility), qs.Duration,
		string(cj), len(qs.Content), now, now)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return QuestionSet{}, ErrDuplicateTitle
		}
		return QuestionSet{}, fmt.Errorf("insert question set: %w", err)
	}
	return s.GetQuestionSet(ctx, qs.ID)
}

func (s *SQLStore) GetQuestionSet(ctx context.Context, id string) (QuestionSet, error) {
	row := s.db.QueryRowContext(ctx, `SELECT q.id,q.user_id,COALESCE(u.name,''),q.title,q.description,
		q.visibility,q.duration,q.content_json,q.created_at,q.updated_at
		FROM question_sets q LEFT JOIN users u ON u.id=q.user_id
		WHERE q.id=$1`, id)
	var (
		qs         QuestionSet
		vis, cjson string
		c, u       int64
	)
	if err := row.Scan(&qs.ID, &qs.OwnerID, &qs.OwnerName, &qs.Title, &qs.Description,
		&vis, &qs.Duration, &cjson, &c, &u); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return QuestionSet{}, ErrNotFound
		}
		return QuestionSet{}, err
	}
	if err := json.Unmarshal([]byte(cjson), &qs.Content); err != nil {
		return QuestionSet{}, fmt.Errorf("decode content of %s: %w", id, err)
	}
	qs.Visibility = Visibility(vis)
	qs.CreatedAt = time.Unix(c, 0).UTC()
	qs.UpdatedAt = time.Unix(u, 0).UTC()
	return qs, nil
}

// UpdateQuestionSet replaces the editable fields and the whole content of a
// set owned by qs.OwnerID.
func (s *SQLStore) UpdateQuestionSet(ctx context.Context, qs QuestionSet) (QuestionSet, error) {
	if err := s.checkOwner(ctx, qs.ID, qs.OwnerID); err != nil {
		return QuestionSet{}, err
	}
	cj, err := json.Marshal(contentOrEmpty(qs.Content))
	if err != nil {
		return QuestionSet{}, err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE question_sets
		SET title=$1, description=$2, visibility=$3, duration=$4, content_json=$5, question_count=$6, updated_at=$7
		WHERE id=$8`,
		qs.Title, qs.Description, string(qs.Visibility), qs.Duration, string(cj), len(qs.Content),
		s.now().Unix(), qs.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return QuestionSet{}, ErrDuplicateTitle
		}
		return QuestionSet{}, fmt.Errorf("update question set: %w", err)
	}
	return s.GetQuestionSet(ctx, qs.ID)
}

func (s *SQLStore) DeleteQuestionSet(ctx context.Context, id, ownerID string) error {
	if err := s.checkOwner(ctx, id, ownerID); err != nil {
		return err
	}
	// scores go with the set; not every sqlite connection has foreign_keys on
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scores WHERE question_set_id=$1`, id); err != nil {
		return fmt.Errorf("delete scores: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM question_sets WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete question set: %w", err)
	}
	return nil
}

func (s *SQLStore) checkOwner(ctx context.Context, id, ownerID string) error {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM question_sets WHERE id=$1`, id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if owner != ownerID {
		return ErrForbidden
	}
	return nil
}

func (s *SQLStore) ListQuestionSets(ctx context.Context, opts ListOpts) (Page[QuestionSetSummary], error) {
	opts.normalize(10)

	var (
		where []string
		args  []any
	)
	if opts.OwnerID != "" {
		args = append(args, opts.OwnerID)
		where = append(where, "q.user_id=$"+strconv.Itoa(len(args)))
	}
	if opts.PublicOnly {
		args = append(args, string(VisibilityPublic))
		where = append(where, "q.visibility=$"+strconv.Itoa(len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM question_sets q`+cond, args...).Scan(&total); err != nil {
		return Page[QuestionSetSummary]{}, fmt.Errorf("count question sets: %w", err)
	}

	args = append(args, opts.PerPage, (opts.Page-1)*opts.PerPage)
	rows, err := s.db.QueryContext(ctx, `SELECT q.id,q.user_id,COALESCE(u.name,''),q.title,q.description,
		q.visibility,q.duration,q.question_count,q.created_at
		FROM question_sets q LEFT JOIN users u ON u.id=q.user_id`+cond+
		` ORDER BY q.created_at DESC, q.id LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)),
		args...)
	if err != nil {
		return Page[QuestionSetSummary]{}, fmt.Errorf("list question sets: %w", err)
	}
	defer rows.Close()

	var out []QuestionSetSummary
	for rows.Next() {
		var (
			sm  QuestionSetSummary
			vis string
			c   int64
		)
		if err := rows.Scan(&sm.ID, &sm.OwnerID, &sm.OwnerName, &sm.Title, &sm.Description,
			&vis, &sm.Duration, &sm.QuestionCount, &c); err != nil {
			return Page[QuestionSetSummary]{}, err
		}
		sm.Visibility = Visibility(vis)
		sm.CreatedAt = time.Unix(c, 0).UTC()
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return Page[QuestionSetSummary]{}, err
	}
	return newPage(out, total, opts.Page, opts.PerPage), nil
}

// CreateScore appends one attempt. The caller has already checked the score
// against the set; here only existence is enforced.
func (s *SQLStore) CreateScore(ctx context.Context, userID string, in AttemptInput) (Score, error) {
	var (
		title string
		count int
	)
	err := s.db.QueryRowContext(ctx, `SELECT title,question_count FROM question_sets WHERE id=$1`, in.QuestionSetID).
		Scan(&title, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return Score{}, ErrNotFound
	}
	if err != nil {
		return Score{}, err
	}

	answers := in.Answers
	if answers == nil {
		answers = map[int]string{}
	}
	aj, err := json.Marshal(answers)
	if err != nil {
		return Score{}, err
	}
	sc := Score{
		ID:               uuid.NewString(),
		UserID:           userID,
		QuestionSetID:    in.QuestionSetID,
		QuestionSetTitle: title,
		Answers:          answers,
		Score:            in.Score,
		Total:            count,
		CreatedAt:        s.now().UTC().Truncate(time.Second),
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO scores (id,user_id,question_set_id,score,answers_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		sc.ID, sc.UserID, sc.QuestionSetID, sc.Score, string(aj), sc.CreatedAt.Unix())
	if err != nil {
		return Score{}, fmt.Errorf("insert score: %w", err)
	}
	return sc, nil
}

func (s *SQLStore) ListScores(ctx context.Context, opts ScoreListOpts) (Page[Score], error) {
	opts.normalize(20)

	var (
		where []string
		args  []any
	)
	if opts.QuestionSetID != "" {
		args = append(args, opts.QuestionSetID)
		where = append(where, "s.question_set_id=$"+strconv.Itoa(len(args)))
	}
	if opts.UserID != "" {
		args = append(args, opts.UserID)
		where = append(where, "s.user_id=$"+strconv.Itoa(len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scores s`+cond, args...).Scan(&total); err != nil {
		return Page[Score]{}, fmt.Errorf("count scores: %w", err)
	}

	args = append(args, opts.PerPage, (opts.Page-1)*opts.PerPage)
	rows, err := s.db.QueryContext(ctx, `SELECT s.id,s.user_id,COALESCE(u.name,''),s.question_set_id,q.title,
		q.question_count,s.score,s.answers_json,s.created_at
		FROM scores s
		JOIN question_sets q ON q.id=s.question_set_id
		LEFT JOIN users u ON u.id=s.user_id`+cond+
		` ORDER BY s.created_at DESC, s.id LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)),
		args...)
	if err != nil {
		return Page[Score]{}, fmt.Errorf("list scores: %w", err)
	}
	defer rows.Close()

	var out []Score
	for rows.Next() {
		var (
			sc    Score
			ajson string
			c     int64
		)
		if err := rows.Scan(&sc.ID, &sc.UserID, &sc.UserName, &sc.QuestionSetID, &sc.QuestionSetTitle,
			&sc.Total, &sc.Score, &ajson, &c); err != nil {
			return Page[Score]{}, err
		}
		if err := json.Unmarshal([]byte(ajson), &sc.Answers); err != nil {
			sc.Answers = map[int]string{}
		}
		sc.CreatedAt = time.Unix(c, 0).UTC()
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return Page[Score]{}, err
	}
	return newPage(out, total, opts.Page, opts.PerPage), nil
}

func contentOrEmpty(items []QuestionItem) []QuestionItem {
	if items == nil {
		return []QuestionItem{}
	}
	return items
}
