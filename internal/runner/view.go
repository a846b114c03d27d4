package runner

import (
	"fmt"

	"github.com/mind-engage/quizdesk/internal/quiz"
)

// PassPercentage is the share of correct answers shown as a pass.
const PassPercentage = 70

type Result struct {
	Score      int  `json:"score"`
	Total      int  `json:"total"`
	Percentage int  `json:"percentage"`
	Passed     bool `json:"passed"`
}

func newResult(score, total int) Result {
	p := quiz.Percentage(score, total)
	return Result{Score: score, Total: total, Percentage: p, Passed: p >= PassPercentage}
}

// Score counts the items whose stored answer equals the chosen letter.
// Unanswered items and answers to numbers not in items never count.
func Score(items []quiz.QuestionItem, answers map[int]string) int {
	n := 0
	for _, q := range items {
		if a, ok := answers[q.Number]; ok && a == q.Answer {
			n++
		}
	}
	return n
}

type QuestionStatus struct {
	Index    int
	Number   int
	Answered bool
	Letter   string
}

// View is a copy of the runner state for rendering.
type View struct {
	State     State
	Index     int
	Remaining int
	Current   quiz.QuestionItem
	Questions []QuestionStatus
	Answered  int
	Result    *Result
	// SubmitErr is the last failed send; nil once acknowledged.
	SubmitErr    error
	Acknowledged bool
}

func (r *Runner) Snapshot() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := View{
		State:        r.state,
		Index:        r.index,
		Remaining:    r.remaining,
		Current:      r.set.Content[r.index],
		Questions:    make([]QuestionStatus, len(r.set.Content)),
		SubmitErr:    r.submitErr,
		Acknowledged: r.acked,
	}
	for i, q := range r.set.Content {
		l, ok := r.answers[q.Number]
		v.Questions[i] = QuestionStatus{Index: i, Number: q.Number, Answered: ok, Letter: l}
		if ok {
			v.Answered++
		}
	}
	if r.result != nil {
		res := *r.result
		v.Result = &res
	}
	return v
}

// FormatRemaining renders seconds as mm:ss.
func FormatRemaining(sec int) string {
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%02d:%02d", sec/60, sec%60)
}
