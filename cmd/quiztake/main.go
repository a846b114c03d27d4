// Command quiztake runs a timed assessment in the terminal against a quizdesk
// server. Progress is kept in a local sqlite file so an interrupted attempt
// resumes where it stopped.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/mind-engage/quizdesk/internal/client"
	"github.com/mind-engage/quizdesk/internal/localstore"
	"github.com/mind-engage/quizdesk/internal/runner"
)

type options struct {
	api      string
	email    string
	password string
	setID    string
	state    string
	verbose  bool
}

func main() {
	var o options
	pflag.StringVar(&o.api, "api", envOr("QUIZDESK_API", "http://localhost:8080"), "quizdesk server URL")
	pflag.StringVarP(&o.email, "email", "e", os.Getenv("QUIZDESK_EMAIL"), "account email")
	pflag.StringVarP(&o.password, "password", "p", os.Getenv("QUIZDESK_PASSWORD"), "account password")
	pflag.StringVarP(&o.setID, "set", "s", "", "question set id to take")
	pflag.StringVar(&o.state, "state", defaultStatePath(), "local progress database")
	pflag.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")
	pflag.Parse()

	if o.email == "" || o.password == "" || o.setID == "" {
		fmt.Fprintln(os.Stderr, "usage: quiztake --email EMAIL --password PASSWORD --set ID")
		pflag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, in io.Reader, out io.Writer) error {
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if o.verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	lg, err := zc.Build()
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	api := client.New(o.api, nil)
	if err := api.Login(ctx, o.email, o.password); err != nil {
		return err
	}
	set, err := api.Search(ctx, o.setID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(o.state), 0o700); err != nil {
		return err
	}
	store, err := localstore.Open(ctx, o.state)
	if err != nil {
		return err
	}
	defer store.Close()

	timeout := make(chan error, 1)
	r, err := runner.New(set, store, api,
		runner.WithLogger(lg),
		runner.WithOnTimeout(func(_ runner.Result, err error) { timeout <- err }))
	if err != nil {
		return err
	}
	defer r.Close()

	if err := r.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s (%d questions, %d min)\n", set.Title, len(set.Content), set.Duration)
	if set.Description != "" {
		fmt.Fprintln(out, set.Description)
	}
	fmt.Fprintln(out, "commands: a-d answer, n next, p previous, r review, j N jump, s submit, t retry, q quit")
	render(out, r.Snapshot())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := readLines(ctx, in)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\ninterrupted; progress saved")
			return nil
		case err := <-timeout:
			fmt.Fprintln(out, "\ntime is up")
			render(out, r.Snapshot())
			if err != nil {
				fmt.Fprintln(out, "type t to retry sending your result")
			}
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			done, err := handle(ctx, r, line)
			if err != nil {
				fmt.Fprintln(out, "!", err)
			}
			if done {
				if r.Snapshot().State != runner.Submitted {
					fmt.Fprintln(out, "progress saved; run again to resume")
				}
				return nil
			}
			render(out, r.Snapshot())
		}
	}
}

// readLines sends the trimmed lines of in until it is exhausted or ctx is
// done. A read already blocked on in ends with the next line.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- strings.TrimSpace(sc.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// handle applies one command line. It reports whether the session should end.
func handle(ctx context.Context, r *runner.Runner, line string) (bool, error) {
	cmd, arg, _ := strings.Cut(line, " ")
	switch strings.ToLower(cmd) {
	case "":
		return false, nil
	case "a", "b", "c", "d":
		return false, r.Select(strings.ToLower(cmd))
	case "n":
		return false, r.Next()
	case "p":
		return false, r.Previous()
	case "r":
		return false, r.Review()
	case "j":
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil {
			return false, fmt.Errorf("jump needs a question position, e.g. j 3")
		}
		return false, r.JumpTo(n - 1)
	case "s":
		_, err := r.Submit(ctx)
		if errors.Is(err, runner.ErrInvalidTransition) {
			return false, errors.New("open the review (r) before submitting")
		}
		return false, err
	case "t":
		_, err := r.Retry(ctx)
		return false, err
	case "q":
		return true, nil
	}
	return false, fmt.Errorf("unknown command %q", cmd)
}

func render(out io.Writer, v runner.View) {
	switch v.State {
	case runner.InProgress:
		q := v.Current
		fmt.Fprintf(out, "\n[%s] question %d of %d\n%d. %s\n", runner.FormatRemaining(v.Remaining),
			v.Index+1, len(v.Questions), q.Number, q.Detail)
		chosen := v.Questions[v.Index].Letter
		for _, o := range q.Options {
			mark := " "
			if o.Key == chosen {
				mark = "*"
			}
			fmt.Fprintf(out, " %s %s. %s\n", mark, strings.ToUpper(o.Key), o.Text)
		}
	case runner.Reviewing:
		fmt.Fprintf(out, "\n[%s] review: %d of %d answered\n", runner.FormatRemaining(v.Remaining),
			v.Answered, len(v.Questions))
		for _, q := range v.Questions {
			status := "unanswered"
			if q.Answered {
				status = strings.ToUpper(q.Letter)
			}
			fmt.Fprintf(out, "  %2d. question %d: %s\n", q.Index+1, q.Number, status)
		}
		fmt.Fprintln(out, "s to submit, j N to change an answer")
	case runner.Submitted:
		if v.Result == nil {
			return
		}
		verdict := "not passed"
		if v.Result.Passed {
			verdict = "passed"
		}
		fmt.Fprintf(out, "\nscore %d/%d (%d%%) %s\n", v.Result.Score, v.Result.Total, v.Result.Percentage, verdict)
		switch {
		case v.Acknowledged:
			fmt.Fprintln(out, "result saved")
		case v.SubmitErr != nil:
			fmt.Fprintf(out, "could not save result: %v\n", v.SubmitErr)
		}
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "quizdesk-state.db"
	}
	return filepath.Join(dir, "quizdesk", "state.db")
}
