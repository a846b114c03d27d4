package quiz

import (
	"context"
	"errors"
)

var (
	ErrNotFound       = errors.New("question set not found")
	ErrDuplicateTitle = errors.New("title already taken")
	ErrForbidden      = errors.New("not the owner of this question set")
)

type ListOpts struct {
	OwnerID    string // only sets owned by this user
	PublicOnly bool
	Page       int // 1-based
	PerPage    int
}

type ScoreListOpts struct {
	QuestionSetID string
	UserID        string
	Page          int
	PerPage       int
}

// Page is one page of a listing plus the numbers needed to paginate.
type Page[T any] struct {
	Data     []T `json:"data"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PerPage  int `json:"per_page"`
	LastPage int `json:"last_page"`
}

func newPage[T any](data []T, total, page, perPage int) Page[T] {
	if data == nil {
		data = []T{}
	}
	last := 1
	if perPage > 0 && total > 0 {
		last = (total + perPage - 1) / perPage
	}
	return Page[T]{Data: data, Total: total, Page: page, PerPage: perPage, LastPage: last}
}

func (o *ListOpts) normalize(defPerPage int) {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PerPage < 1 || o.PerPage > 100 {
		o.PerPage = defPerPage
	}
}

func (o *ScoreListOpts) normalize(defPerPage int) {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PerPage < 1 || o.PerPage > 100 {
		o.PerPage = defPerPage
	}
}

// Store persists question sets and the scores recorded against them.
// Scores are append-only.
type Store interface {
	CreateQuestionSet(ctx context.Context, qs QuestionSet) (QuestionSet, error)
	GetQuestionSet(ctx context.Context, id string) (QuestionSet, error)
	UpdateQuestionSet(ctx context.Context, qs QuestionSet) (QuestionSet, error)
	DeleteQuestionSet(ctx context.Context, id, ownerID string) error
	ListQuestionSets(ctx context.Context, opts ListOpts) (Page[QuestionSetSummary], error)

	CreateScore(ctx context.Context, userID string, in AttemptInput) (Score, error)
	ListScores(ctx context.Context, opts ScoreListOpts) (Page[Score], error)
}
