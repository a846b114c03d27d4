// Package client talks to the quizdesk HTTP API on behalf of the terminal
// runner.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mind-engage/quizdesk/internal/quiz"
)

var (
	ErrNotFound     = errors.New("question set not found")
	ErrUnauthorized = errors.New("not signed in or session expired")
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int                 `json:"-"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Message, quiz.ValidationErrors(e.Errors).Error())
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

type Client struct {
	base string
	http *http.Client

	mu    sync.RWMutex
	token string
}

func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) SetToken(tok string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = tok
}

// Login exchanges credentials for a bearer token kept on the client.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email": email, "password": password,
	}, &out); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	c.SetToken(out.AccessToken)
	return nil
}

// Search looks a set up by its shareable identifier.
func (c *Client) Search(ctx context.Context, id string) (quiz.QuestionSet, error) {
	var qs quiz.QuestionSet
	err := c.do(ctx, http.MethodGet, "/question-sets/search?uuid="+url.QueryEscape(id), nil, &qs)
	return qs, err
}

func (c *Client) GetQuestionSet(ctx context.Context, id string) (quiz.QuestionSet, error) {
	var qs quiz.QuestionSet
	err := c.do(ctx, http.MethodGet, "/question-sets/"+url.PathEscape(id), nil, &qs)
	return qs, err
}

// SubmitAttempt records a finished attempt for the signed-in user.
func (c *Client) SubmitAttempt(ctx context.Context, in quiz.AttemptInput) error {
	if in.Answers == nil {
		in.Answers = map[int]string{}
	}
	return c.do(ctx, http.MethodPost, "/scores", in, nil)
}

func (c *Client) ListScores(ctx context.Context, page int) (quiz.Page[quiz.Score], error) {
	var p quiz.Page[quiz.Score]
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/scores?page=%d", page), nil, &p)
	return p, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
