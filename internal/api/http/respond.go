package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mind-engage/quizdesk/internal/quiz"
)

type message struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, message{Message: msg})
}

// writeValidation answers 422 with per-field messages. The top-level message
// repeats the first one, as form front-ends expect.
func writeValidation(w http.ResponseWriter, errs quiz.ValidationErrors) {
	msg := "The given data was invalid."
	for _, f := range []string{"title", "duration", "description", "content", "visibility"} {
		if m := errs[f]; len(m) > 0 {
			msg = m[0]
			break
		}
	}
	writeJSON(w, http.StatusUnprocessableEntity, message{Message: msg, Errors: errs})
}

// writeStoreError maps store sentinels to status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quiz.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Question not found")
	case errors.Is(err, quiz.ErrForbidden):
		writeMessage(w, http.StatusForbidden, "This action is unauthorized.")
	default:
		writeMessage(w, http.StatusInternalServerError, "Server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}

func pageParam(r *http.Request) int {
	p, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || p < 1 {
		return 1
	}
	return p
}
