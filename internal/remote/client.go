// Package remote is the typed boundary to the task store's CRUD API. It holds
// no state beyond its HTTP client, never retries, and reports every failure
// as *Error.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BuzzLyutic/task-tracker/internal/model"
	"github.com/BuzzLyutic/task-tracker/pkg/respond"
)

// Stats is the store's own tally of tasks per status.
type Stats struct {
	ByStatus   map[string]int `json:"by_status"`
	TotalTasks int            `json:"total_tasks"`
}

// Client talks to one task store. It is safe for concurrent use.
type Client struct {
	baseURL  string
	http     *http.Client
	observer Observer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New returns a client for the store at baseURL. timeout bounds every
// request; zero means no bound besides the transport's own.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List fetches the whole collection. The result is never nil on success.
func (c *Client) List(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, nil, &tasks); err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if err := CheckTask(t); err != nil {
			return nil, err
		}
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

func (c *Client) Get(ctx context.Context, id int64) (model.Task, error) {
	var t model.Task
	if err := c.do(ctx, http.MethodGet, taskPath(id), nil, nil, &t); err != nil {
		return model.Task{}, err
	}
	return checked(t)
}

// Create stores a new task. A non-empty idempotencyKey lets the store
// recognise a repeated submission of the same draft.
func (c *Client) Create(ctx context.Context, d model.TaskDraft, idempotencyKey string) (model.Task, error) {
	var hdr http.Header
	if idempotencyKey != "" {
		hdr = http.Header{"Idempotency-Key": []string{idempotencyKey}}
	}
	var t model.Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks", hdr, d, &t); err != nil {
		return model.Task{}, err
	}
	return checked(t)
}

func (c *Client) Update(ctx context.Context, id int64, p model.TaskPatch) (model.Task, error) {
	var t model.Task
	if err := c.do(ctx, http.MethodPatch, taskPath(id), nil, p, &t); err != nil {
		return model.Task{}, err
	}
	return checked(t)
}

func (c *Client) Remove(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, taskPath(id), nil, nil, nil)
}

func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := c.do(ctx, http.MethodGet, "/api/stats", nil, nil, &s)
	return s, err
}

func checked(t model.Task) (model.Task, error) {
	if err := CheckTask(t); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

func taskPath(id int64) string {
	return fmt.Sprintf("/api/tasks/%d", id)
}

func (c *Client) do(ctx context.Context, method, path string, hdr http.Header, in, out interface{}) (err error) {
	start := time.Now()
	status := 0
	c.observer.Request(method, path)
	defer func() {
		c.observer.Response(method, path, status, time.Since(start), err)
	}()

	var body io.Reader
	if in != nil {
		b, mErr := json.Marshal(in)
		if mErr != nil {
			return &Error{Kind: KindUnknown, Message: fmt.Sprintf("encode request: %v", mErr), Err: mErr}
		}
		body = bytes.NewReader(b)
	}

	req, rErr := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if rErr != nil {
		return &Error{Kind: KindUnknown, Message: rErr.Error(), Err: rErr}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header[k] = v
	}

	resp, dErr := c.http.Do(req)
	if dErr != nil {
		return fromTransport(dErr)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if status < 200 || status > 299 {
		return fromStatus(status, readErrorMessage(resp.Body))
	}
	if out == nil || status == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return &Error{Kind: KindNetwork, Message: "connection closed mid-response", Status: status, Err: err}
		}
		return &Error{Kind: KindUnknown, Message: fmt.Sprintf("decode response: %v", err), Status: status, Err: err}
	}
	return nil
}

func readErrorMessage(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil || len(b) == 0 {
		return ""
	}
	var body respond.ErrorBody
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(b))
}
