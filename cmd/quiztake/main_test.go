package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/quizdesk/internal/quiz"
	"github.com/mind-engage/quizdesk/internal/runner"
)

type okSubmitter struct{ got []quiz.AttemptInput }

func (s *okSubmitter) SubmitAttempt(_ context.Context, in quiz.AttemptInput) error {
	s.got = append(s.got, in)
	return nil
}

func TestHandleSession(t *testing.T) {
	set := quiz.QuestionSet{ID: "set-1", Duration: 2, Content: quiz.Parse(
		"1. What is 2+2?\nA. 3\nB. 4\nAnswer: b\n2. Capital of France?\nA. Paris\nB. Rome\nAnswer: a")}
	sub := &okSubmitter{}
	idle := func(time.Duration) (<-chan time.Time, func()) { return make(chan time.Time), func() {} }
	r, err := runner.New(set, runner.NewMemoryStorage(), sub, runner.WithTicker(idle))
	require.NoError(t, err)
	defer r.Close()
	ctx := context.Background()
	require.NoError(t, r.Start(ctx))

	var out bytes.Buffer
	render(&out, r.Snapshot())
	assert.Contains(t, out.String(), "[02:00] question 1 of 2")

	for _, line := range []string{"B", "n", "x"} {
		_, _ = handle(ctx, r, line)
	}
	_, err = handle(ctx, r, "s")
	assert.EqualError(t, err, "open the review (r) before submitting")
	_, err = handle(ctx, r, "j two")
	assert.Error(t, err)

	for _, line := range []string{"a", "r", "j 2", "r"} {
		_, err := handle(ctx, r, line)
		require.NoError(t, err, line)
	}
	out.Reset()
	render(&out, r.Snapshot())
	assert.Contains(t, out.String(), "review: 2 of 2 answered")

	_, err = handle(ctx, r, "s")
	require.NoError(t, err)
	out.Reset()
	render(&out, r.Snapshot())
	assert.Contains(t, out.String(), "score 2/2 (100%) passed")
	assert.Contains(t, out.String(), "result saved")
	require.Len(t, sub.got, 1)

	done, err := handle(ctx, r, "q")
	assert.NoError(t, err)
	assert.True(t, done)
}

// endless yields "n" lines forever.
type endless struct{}

func (endless) Read(p []byte) (int, error) {
	for i := range p {
		if i%2 == 0 {
			p[i] = 'n'
		} else {
			p[i] = '\n'
		}
	}
	return len(p), nil
}

func TestReadLinesStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	lines := readLines(ctx, endless{})
	assert.Equal(t, "n", <-lines)
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-lines:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("reader still sending after cancel")
		}
	}
}

func TestReadLinesClosesAtEOF(t *testing.T) {
	var got []string
	for l := range readLines(context.Background(), bytes.NewBufferString(" a \n\nq\n")) {
		got = append(got, l)
	}
	assert.Equal(t, []string{"a", "", "q"}, got)
}
