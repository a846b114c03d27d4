package quiz

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValidationErrors maps a field name to its messages.
type ValidationErrors map[string][]string

func (v ValidationErrors) Add(field, msg string) {
	v[field] = append(v[field], msg)
}

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(v[f], "; "))
	}
	return strings.Join(parts, ", ")
}

// Validate checks that parsed content is usable as an assessment. The parser
// accepts anything; this is the gate the authoring workflow applies before
// storing.
func Validate(items []QuestionItem) error {
	errs := ValidationErrors{}
	if len(items) == 0 {
		errs.Add("content", "No questions were found in the content.")
		return errs
	}
	for i, q := range items {
		label := "Question " + strconv.Itoa(q.Number)
		if q.Number != i+1 {
			errs.Add("content", fmt.Sprintf("%s is numbered out of order; expected %d.", label, i+1))
		}
		if strings.TrimSpace(q.Detail) == "" {
			errs.Add("content", label+" has no question text.")
		}
		if len(q.Options) == 0 {
			errs.Add("content", label+" has no options.")
			continue
		}
		seen := map[string]bool{}
		for _, o := range q.Options {
			if seen[o.Key] {
				errs.Add("content", fmt.Sprintf("%s repeats option %s.", label, strings.ToUpper(o.Key)))
			}
			seen[o.Key] = true
		}
		switch {
		case q.Answer == "":
			errs.Add("content", label+" has no answer.")
		case !seen[q.Answer]:
			errs.Add("content", fmt.Sprintf("%s answer %q does not match any option.", label, q.Answer))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Draft is the authoring form submitted on create and edit.
type Draft struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Visibility  Visibility `json:"visibility"`
	Duration    int        `json:"duration"`
	Content     string     `json:"content"`
}

// Check validates the form fields. Content is only checked for presence; it is
// parsed and validated afterwards.
func (d Draft) Check() error {
	errs := ValidationErrors{}
	if strings.TrimSpace(d.Title) == "" {
		errs.Add("title", "The title field is required.")
	}
	if d.Duration < 1 {
		errs.Add("duration", "The duration must be at least 1.")
	}
	if strings.TrimSpace(d.Description) == "" {
		errs.Add("description", "The description field is required.")
	}
	if strings.TrimSpace(d.Content) == "" {
		errs.Add("content", "The content field is required.")
	}
	if !d.Visibility.Valid() {
		errs.Add("visibility", "The selected visibility is invalid.")
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
