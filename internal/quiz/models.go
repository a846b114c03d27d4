package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// Option is one lettered choice. It encodes as a single-key object
// ({"a": "Paris"}) so a list of options keeps its declaration order.
type Option struct {
	Key  string
	Text string
}

func (o Option) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{o.Key: o.Text})
}

func (o *Option) UnmarshalJSON(b []byte) error {
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("option must have exactly one key, got %d", len(m))
	}
	for k, v := range m {
		o.Key, o.Text = k, v
	}
	return nil
}

func (o Option) MarshalYAML() (interface{}, error) {
	return map[string]string{o.Key: o.Text}, nil
}

func (o *Option) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var m map[string]string
	if err := unmarshal(&m); err != nil {
		return err
	}
	if len(m) != 1 {
		return errors.New("option must have exactly one key")
	}
	for k, v := range m {
		o.Key, o.Text = k, v
	}
	return nil
}

type QuestionItem struct {
	Number  int      `json:"number" yaml:"number"`
	Detail  string   `json:"detail" yaml:"detail"`
	Options []Option `json:"options" yaml:"options"`
	Answer  string   `json:"answer" yaml:"answer"`
}

// HasOption reports whether key is one of the item's option keys.
func (q QuestionItem) HasOption(key string) bool {
	for _, o := range q.Options {
		if o.Key == key {
			return true
		}
	}
	return false
}

type QuestionSet struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Visibility  Visibility     `json:"visibility"`
	Duration    int            `json:"duration"` // minutes
	Content     []QuestionItem `json:"content"`
	OwnerID     string         `json:"user_id"`
	OwnerName   string         `json:"owner_name,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// QuestionSetSummary is the list view; content is reduced to a count.
type QuestionSetSummary struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Visibility    Visibility `json:"visibility"`
	Duration      int        `json:"duration"`
	QuestionCount int        `json:"question_count"`
	OwnerID       string     `json:"user_id"`
	OwnerName     string     `json:"owner_name,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Score is one recorded attempt. Answers maps question number to the chosen letter.
type Score struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	UserName         string         `json:"user_name,omitempty"`
	QuestionSetID    string         `json:"question_set_id"`
	QuestionSetTitle string         `json:"question_set_title,omitempty"`
	Answers          map[int]string `json:"answers"`
	Score            int            `json:"score"`
	Total            int            `json:"total"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Percentage is the rounded share of correct answers, 0 when the set is empty.
func (s Score) Percentage() int {
	return Percentage(s.Score, s.Total)
}

func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return (score*100 + total/2) / total
}

// AttemptInput is what a runner submits; the owner comes from the session.
type AttemptInput struct {
	QuestionSetID string         `json:"question_set_id"`
	Answers       map[int]string `json:"answers"`
	Score         int            `json:"score"`
}
