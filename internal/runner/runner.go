package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/quizdesk/internal/quiz"
)

type State int

const (
	NotStarted State = iota
	InProgress
	Reviewing
	Submitted
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Reviewing:
		return "reviewing"
	case Submitted:
		return "submitted"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// forcedSubmitTimeout bounds the send made when the clock runs out. The
// clock's own context is already cancelled by then.
const forcedSubmitTimeout = 30 * time.Second

var (
	ErrInvalidTransition = errors.New("action not allowed in the current state")
	ErrUnknownOption     = errors.New("letter is not an option of the current question")
	ErrIndexOutOfRange   = errors.New("question index out of range")
)

// Submitter records a finished attempt. The owner is attached by the receiver
// from its own session.
type Submitter interface {
	SubmitAttempt(ctx context.Context, in quiz.AttemptInput) error
}

// TickerFunc starts a ticker and returns its channel and stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

type Option func(*Runner)

func WithLogger(l *zap.Logger) Option { return func(r *Runner) { r.logger = l } }

// WithTicker replaces the wall clock ticker. Tests pass a ticker that never
// fires and drive the clock with Tick.
func WithTicker(f TickerFunc) Option { return func(r *Runner) { r.newTicker = f } }

// WithOnTimeout registers a callback invoked after the clock forces a
// submission. It runs on the ticker goroutine without the runner lock held,
// and is skipped when a manual submit finished the attempt first.
func WithOnTimeout(f func(Result, error)) Option { return func(r *Runner) { r.onTimeout = f } }

// Runner drives one attempt at a question set:
//
//	NotStarted -> InProgress <-> Reviewing -> Submitted
//
// All methods are safe for concurrent use. State changes are serialised on
// mu; sends to the Submitter are serialised on sendMu and made without mu
// held, so Snapshot and the clock stay responsive during a slow send.
type Runner struct {
	set       quiz.QuestionSet
	store     Storage
	submitter Submitter
	logger    *zap.Logger
	newTicker TickerFunc
	onTimeout func(Result, error)

	sendMu sync.Mutex

	mu        sync.Mutex
	state     State
	index     int
	remaining int
	answers   map[int]string
	result    *Result
	acked     bool
	submitErr error
	stopClock context.CancelFunc
}

func New(set quiz.QuestionSet, store Storage, submitter Submitter, opts ...Option) (*Runner, error) {
	switch {
	case set.ID == "":
		return nil, errors.New("question set has no id")
	case len(set.Content) == 0:
		return nil, errors.New("question set has no questions")
	case set.Duration <= 0:
		return nil, errors.New("question set duration must be positive")
	case store == nil || submitter == nil:
		return nil, errors.New("storage and submitter are required")
	}
	r := &Runner{
		set:       set,
		store:     store,
		submitter: submitter,
		logger:    zap.NewNop(),
		newTicker: realTicker,
		answers:   map[int]string{},
	}
	for _, o := range opts {
		o(r)
	}
	r.logger = r.logger.With(zap.String("question_set_id", set.ID))
	return r, nil
}

// Start resumes persisted progress for the set, or starts a fresh clock of
// Duration minutes, and begins counting down. The clock stops when ctx is
// done, on submission, or on Close.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != NotStarted {
		return ErrInvalidTransition
	}
	r.remaining = r.loadRemaining()
	r.answers = r.loadAnswers()
	r.index = 0
	r.state = InProgress

	tctx, cancel := context.WithCancel(ctx)
	r.stopClock = cancel
	c, stop := r.newTicker(time.Second)
	go r.run(tctx, c, stop)

	r.logger.Debug("attempt started",
		zap.Int("remaining_sec", r.remaining),
		zap.Int("answered", len(r.answers)))
	return nil
}

func (r *Runner) run(ctx context.Context, c <-chan time.Time, stop func()) {
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c:
			if !r.Tick(ctx) {
				return
			}
		}
	}
}

// Tick advances the clock by one second. When the time runs out the attempt
// is submitted exactly as a manual submit would. It reports whether the
// clock is still running.
func (r *Runner) Tick(ctx context.Context) bool {
	r.mu.Lock()
	if r.state != InProgress && r.state != Reviewing {
		r.mu.Unlock()
		return false
	}
	r.remaining--
	if r.remaining < 0 {
		r.remaining = 0
	}
	r.persist(TimeKey(r.set.ID), strconv.Itoa(r.remaining))
	if r.remaining > 0 {
		r.mu.Unlock()
		return true
	}
	r.mu.Unlock()

	r.logger.Info("time is up, submitting attempt")
	// submitting stops the clock, which cancels ctx
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), forcedSubmitTimeout)
	defer cancel()
	res, err := r.submit(sctx, InProgress, Reviewing)
	if errors.Is(err, ErrInvalidTransition) {
		// a manual submit got there first
		return false
	}
	if r.onTimeout != nil {
		r.onTimeout(res, err)
	}
	return false
}

// Select records letter as the answer to the current question.
func (r *Runner) Select(letter string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != InProgress {
		return ErrInvalidTransition
	}
	q := r.set.Content[r.index]
	if !q.HasOption(letter) {
		return fmt.Errorf("%w: %q", ErrUnknownOption, letter)
	}
	r.answers[q.Number] = letter
	r.persistAnswers()
	return nil
}

// Next moves to the following question; past the last one it opens the review.
func (r *Runner) Next() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != InProgress {
		return ErrInvalidTransition
	}
	if r.index < len(r.set.Content)-1 {
		r.index++
	} else {
		r.state = Reviewing
	}
	return nil
}

// Previous moves back one question; on the first question it does nothing.
func (r *Runner) Previous() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != InProgress {
		return ErrInvalidTransition
	}
	if r.index > 0 {
		r.index--
	}
	return nil
}

// Review opens the summary of answered and unanswered questions.
func (r *Runner) Review() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != InProgress && r.state != Reviewing {
		return ErrInvalidTransition
	}
	r.state = Reviewing
	return nil
}

// JumpTo returns to answering at question index i (0-based).
func (r *Runner) JumpTo(i int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != InProgress && r.state != Reviewing {
		return ErrInvalidTransition
	}
	if i < 0 || i >= len(r.set.Content) {
		return ErrIndexOutOfRange
	}
	r.index = i
	r.state = InProgress
	return nil
}

// Submit scores the attempt from the review and sends it. Once an attempt
// has been acknowledged, further calls return the stored result without
// sending anything. After a failed send, Submit behaves like Retry.
func (r *Runner) Submit(ctx context.Context) (Result, error) {
	return r.submit(ctx, Reviewing, Submitted)
}

// Retry resends a submission whose previous send failed. The score is not
// recomputed.
func (r *Runner) Retry(ctx context.Context) (Result, error) {
	return r.submit(ctx, Submitted)
}

// submit finishes the attempt if it is still open and sends it unless it
// has already been acknowledged. It fails with ErrInvalidTransition when the
// current state is not in allowed.
func (r *Runner) submit(ctx context.Context, allowed ...State) (Result, error) {
	r.sendMu.Lock()
	defer r.sendMu.Unlock()

	r.mu.Lock()
	if !slices.Contains(allowed, r.state) {
		r.mu.Unlock()
		return Result{}, ErrInvalidTransition
	}
	if r.state != Submitted {
		res := newResult(Score(r.set.Content, r.answers), len(r.set.Content))
		r.result = &res
		r.state = Submitted
		r.halt()
	}
	res := *r.result
	if r.acked {
		r.mu.Unlock()
		return res, nil
	}
	in := quiz.AttemptInput{
		QuestionSetID: r.set.ID,
		Answers:       copyAnswers(r.answers),
		Score:         res.Score,
	}
	r.mu.Unlock()

	err := r.submitter.SubmitAttempt(ctx, in)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.submitErr = err
		r.logger.Warn("submit attempt failed", zap.Error(err))
		return res, fmt.Errorf("submit attempt: %w", err)
	}
	r.acked = true
	r.submitErr = nil
	for _, k := range []string{TimeKey(r.set.ID), AnswersKey(r.set.ID)} {
		if err := r.store.Remove(k); err != nil {
			r.logger.Warn("clear saved progress", zap.String("key", k), zap.Error(err))
		}
	}
	r.logger.Info("attempt submitted", zap.Int("score", res.Score), zap.Int("total", res.Total))
	return res, nil
}

// Close stops the clock. Saved progress stays in storage so the attempt can
// be resumed later.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.halt()
}

func (r *Runner) halt() {
	if r.stopClock != nil {
		r.stopClock()
		r.stopClock = nil
	}
}

func (r *Runner) loadRemaining() int {
	full := r.set.Duration * 60
	v, ok, err := r.store.Get(TimeKey(r.set.ID))
	if err != nil {
		r.logger.Warn("read saved time", zap.Error(err))
		return full
	}
	if !ok {
		return full
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return full
	}
	return n
}

func (r *Runner) loadAnswers() map[int]string {
	v, ok, err := r.store.Get(AnswersKey(r.set.ID))
	if err != nil {
		r.logger.Warn("read saved answers", zap.Error(err))
		return map[int]string{}
	}
	if !ok {
		return map[int]string{}
	}
	var m map[int]string
	if err := json.Unmarshal([]byte(v), &m); err != nil || m == nil {
		r.logger.Debug("discarding unreadable saved answers", zap.Error(err))
		return map[int]string{}
	}
	return m
}

func (r *Runner) persistAnswers() {
	b, err := json.Marshal(r.answers)
	if err != nil {
		r.logger.Warn("encode answers", zap.Error(err))
		return
	}
	r.persist(AnswersKey(r.set.ID), string(b))
}

func (r *Runner) persist(key, value string) {
	if err := r.store.Set(key, value); err != nil {
		r.logger.Warn("save progress", zap.String("key", key), zap.Error(err))
	}
}

func copyAnswers(m map[int]string) map[int]string {
	out := make(map[int]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
