package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mind-engage/quizdesk/internal/auth"
	"github.com/mind-engage/quizdesk/internal/eventlog"
	"github.com/mind-engage/quizdesk/internal/quiz"
	"github.com/mind-engage/quizdesk/internal/rbac"
)

// EventRecorder appends to the audit log. Failures are logged, never returned
// to the client.
type EventRecorder interface {
	Append(ctx context.Context, typ, key string, data any) error
}

func record(ctx context.Context, ev EventRecorder, log *zap.Logger, typ, key string, data any) {
	if ev == nil {
		return
	}
	if err := ev.Append(ctx, typ, key, data); err != nil {
		log.Warn("append event", zap.String("type", typ), zap.String("key", key), zap.Error(err))
	}
}

// checkDraft validates the form and the parsed content together so the author
// sees every problem at once.
func checkDraft(d quiz.Draft) ([]quiz.QuestionItem, quiz.ValidationErrors) {
	errs := quiz.ValidationErrors{}
	if ve, ok := d.Check().(quiz.ValidationErrors); ok {
		errs = ve
	}
	if strings.TrimSpace(d.Content) == "" {
		return nil, errs
	}
	items := quiz.Parse(d.Content)
	if ve, ok := quiz.Validate(items).(quiz.ValidationErrors); ok {
		for f, msgs := range ve {
			errs[f] = append(errs[f], msgs...)
		}
	}
	return items, errs
}

func draftToSet(d quiz.Draft, items []quiz.QuestionItem) quiz.QuestionSet {
	return quiz.QuestionSet{
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
		Visibility:  d.Visibility,
		Duration:    d.Duration,
		Content:     items,
	}
}

func CreateQuestionSetHandler(store quiz.Store, ev EventRecorder, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var d quiz.Draft
		if err := decodeJSON(w, r, &d); err != nil {
			writeMessage(w, http.StatusBadRequest, "bad json")
			return
		}
		items, errs := checkDraft(d)
		if len(errs) > 0 {
			writeValidation(w, errs)
			return
		}
		qs := draftToSet(d, items)
		qs.OwnerID = auth.SubjectFromContext(r.Context())

		created, err := store.CreateQuestionSet(r.Context(), qs)
		if errors.Is(err, quiz.ErrDuplicateTitle) {
			errs.Add("title", "The title has already been taken.")
			writeValidation(w, errs)
			return
		}
		if err != nil {
			log.Error("create question set", zap.Error(err))
			writeStoreError(w, err)
			return
		}
		record(r.Context(), ev, log, eventlog.QuestionSetCreated, created.ID, map[string]any{
			"title": created.Title, "question_count": len(created.Content), "user_id": created.OwnerID,
		})
		writeJSON(w, http.StatusCreated, created)
	}
}

func UpdateQuestionSetHandler(store quiz.Store, ev EventRecorder, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var d quiz.Draft
		if err := decodeJSON(w, r, &d); err != nil {
			writeMessage(w, http.StatusBadRequest, "bad json")
			return
		}
		items, errs := checkDraft(d)
		if len(errs) > 0 {
			writeValidation(w, errs)
			return
		}
		qs := draftToSet(d, items)
		qs.ID = chi.URLParam(r, "id")
		qs.OwnerID = auth.SubjectFromContext(r.Context())

		updated, err := store.UpdateQuestionSet(r.Context(), qs)
		if errors.Is(err, quiz.ErrDuplicateTitle) {
			errs.Add("title", "The title has already been taken.")
			writeValidation(w, errs)
			return
		}
		if err != nil {
			if !errors.Is(err, quiz.ErrNotFound) && !errors.Is(err, quiz.ErrForbidden) {
				log.Error("update question set", zap.String("id", qs.ID), zap.Error(err))
			}
			writeStoreError(w, err)
			return
		}
		record(r.Context(), ev, log, eventlog.QuestionSetUpdated, updated.ID, map[string]any{
			"title": updated.Title, "question_count": len(updated.Content),
		})
		writeJSON(w, http.StatusOK, updated)
	}
}

func DeleteQuestionSetHandler(store quiz.Store, ev EventRecorder, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := store.DeleteQuestionSet(r.Context(), id, auth.SubjectFromContext(r.Context())); err != nil {
			if !errors.Is(err, quiz.ErrNotFound) && !errors.Is(err, quiz.ErrForbidden) {
				log.Error("delete question set", zap.String("id", id), zap.Error(err))
			}
			writeStoreError(w, err)
			return
		}
		record(r.Context(), ev, log, eventlog.QuestionSetDeleted, id, map[string]any{
			"user_id": auth.SubjectFromContext(r.Context()),
		})
		writeMessage(w, http.StatusOK, "Question deleted successfully")
	}
}

// GetQuestionSetHandler serves a set to any signed-in user; the id is the
// shareable link.
func GetQuestionSetHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs, err := store.GetQuestionSet(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, qs)
	}
}

// QuestionSetTextHandler returns the content in the pasteable text form so
// the owner can edit it.
func QuestionSetTextHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs, err := store.GetQuestionSet(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if qs.OwnerID != auth.SubjectFromContext(r.Context()) {
			writeStoreError(w, quiz.ErrForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(quiz.Format(qs.Content)))
	}
}

func SearchQuestionSetHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.URL.Query().Get("uuid"))
		if id == "" {
			writeValidation(w, quiz.ValidationErrors{"uuid": {"The uuid field is required."}})
			return
		}
		qs, err := store.GetQuestionSet(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, qs)
	}
}

// ListQuestionSetsHandler lists the caller's sets, or every public set with
// ?scope=public.
func ListQuestionSetsHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := quiz.ListOpts{Page: pageParam(r)}
		if r.URL.Query().Get("scope") == "public" {
			opts.PublicOnly = true
		} else {
			opts.OwnerID = auth.SubjectFromContext(r.Context())
		}
		page, err := store.ListQuestionSets(r.Context(), opts)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

// QuestionSetScoresHandler lists the attempts at a set for its owner.
func QuestionSetScoresHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs, err := store.GetQuestionSet(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if qs.OwnerID != auth.SubjectFromContext(r.Context()) && !rbac.Can(r.Context(), "score:view-all") {
			writeStoreError(w, quiz.ErrForbidden)
			return
		}
		page, err := store.ListScores(r.Context(), quiz.ScoreListOpts{QuestionSetID: qs.ID, Page: pageParam(r)})
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}
