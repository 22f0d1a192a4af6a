// Package apiclient talks to the vestigia HTTP API on behalf of the viewer.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"vestigia/internal/core/notify"
	interactionPort "vestigia/internal/ports/interaction"
	postPort "vestigia/internal/ports/post"
	profilePort "vestigia/internal/ports/profile"
)

// maxCountIDs is the server's limit on ids per counts request.
const maxCountIDs = 100

// Client handles communication with the API for one signed-in user.
type Client struct {
	baseURL    string
	httpClient *http.Client
	stream     *http.Client
	logger     *zap.Logger

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the client used for ordinary requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets the session token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		stream:     &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current session token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the session token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Login signs in with email and password and keeps the session token.
func (c *Client) Login(ctx context.Context, email, password string) (*profilePort.SessionDTO, error) {
	var out profilePort.SessionDTO
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, "login", http.MethodPost, "/auth/login", nil, body, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Logout signs the session out and forgets the token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, "logout", http.MethodPost, "/auth/logout", nil, nil, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

// Session describes the session behind the current token.
func (c *Client) Session(ctx context.Context) (*profilePort.SessionDTO, error) {
	var out profilePort.SessionDTO
	if err := c.do(ctx, "load session", http.MethodGet, "/auth/session", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Profile(ctx context.Context) (*profilePort.ProfileDTO, error) {
	var out profilePort.ProfileDTO
	if err := c.do(ctx, "load profile", http.MethodGet, "/me", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, req profilePort.UpdateProfileRequest) (*profilePort.ProfileDTO, error) {
	var out profilePort.ProfileDTO
	if err := c.do(ctx, "update settings", http.MethodPatch, "/me", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Clock(ctx context.Context) (*profilePort.ClockDTO, error) {
	var out profilePort.ClockDTO
	if err := c.do(ctx, "load clock", http.MethodGet, "/clock", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ResetStartDate(ctx context.Context) (*profilePort.ClockDTO, error) {
	var out profilePort.ClockDTO
	if err := c.do(ctx, "reset start date", http.MethodPost, "/me/start-date/reset", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchPosts loads one page of the timeline, or of one figure's posts when
// q.FigureID is set.
func (c *Client) FetchPosts(ctx context.Context, q postPort.Query) ([]*postPort.PostDTO, error) {
	params := url.Values{}
	if q.Before != "" {
		params.Set("before", q.Before)
	} else if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	path := "/timeline"
	if q.FigureID != "" {
		path = "/figures/" + url.PathEscape(q.FigureID) + "/posts"
	}

	var out postPort.PageDTO
	if err := c.do(ctx, "load posts", http.MethodGet, path, params, nil, &out); err != nil {
		return nil, err
	}
	return out.Posts, nil
}

func (c *Client) GetPost(ctx context.Context, id string) (*postPort.PostDTO, error) {
	var out postPort.PostDTO
	if err := c.do(ctx, "load post", http.MethodGet, "/posts/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ToggleLike(ctx context.Context, postID string) (*interactionPort.LikeResultDTO, error) {
	var out interactionPort.LikeResultDTO
	if err := c.do(ctx, "like", http.MethodPost, "/posts/"+url.PathEscape(postID)+"/like", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddComment(ctx context.Context, postID, content string) (*interactionPort.CommentDTO, error) {
	var out interactionPort.CommentDTO
	body := map[string]string{"content": content}
	if err := c.do(ctx, "comment", http.MethodPost, "/posts/"+url.PathEscape(postID)+"/comments", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteComment(ctx context.Context, commentID string) error {
	return c.do(ctx, "delete comment", http.MethodDelete, "/comments/"+url.PathEscape(commentID), nil, nil, nil)
}

func (c *Client) ToggleCommentLike(ctx context.Context, commentID string) (*interactionPort.LikeResultDTO, error) {
	var out interactionPort.LikeResultDTO
	if err := c.do(ctx, "like comment", http.MethodPost, "/comments/"+url.PathEscape(commentID)+"/like", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Counts loads the interaction counts of postIDs, splitting them into
// requests of at most maxCountIDs ids.
func (c *Client) Counts(ctx context.Context, postIDs []string) ([]*interactionPort.CountsDTO, error) {
	var all []*interactionPort.CountsDTO
	for start := 0; start < len(postIDs); start += maxCountIDs {
		end := min(start+maxCountIDs, len(postIDs))
		var out struct {
			Counts []*interactionPort.CountsDTO `json:"counts"`
		}
		params := url.Values{"post_id": {strings.Join(postIDs[start:end], ",")}}
		if err := c.do(ctx, "load counts", http.MethodGet, "/interactions/counts", params, nil, &out); err != nil {
			return nil, err
		}
		all = append(all, out.Counts...)
	}
	return all, nil
}

func (c *Client) Comments(ctx context.Context, postID string) ([]*interactionPort.CommentDTO, error) {
	var out struct {
		Comments []*interactionPort.CommentDTO `json:"comments"`
	}
	if err := c.do(ctx, "load comments", http.MethodGet, "/posts/"+url.PathEscape(postID)+"/comments", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Comments, nil
}

// SaveSnapshot stores an encoded snapshot of view on the server.
func (c *Client) SaveSnapshot(ctx context.Context, view string, payload []byte) error {
	return c.do(ctx, "save snapshot", http.MethodPut, "/me/snapshot", url.Values{"view": {view}}, json.RawMessage(payload), nil)
}

// LoadSnapshot returns the stored snapshot of view. A missing or stale one
// is a not-found error.
func (c *Client) LoadSnapshot(ctx context.Context, view string) ([]byte, error) {
	var out json.RawMessage
	if err := c.do(ctx, "load snapshot", http.MethodGet, "/me/snapshot", url.Values{"view": {view}}, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values, body any) (*http.Request, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do sends one request and decodes a JSON response into out. Failures come
// back as *notify.Error classified by status code.
func (c *Client) do(ctx context.Context, op, method, path string, params url.Values, body, out any) error {
	req, err := c.newRequest(ctx, method, path, params, body)
	if err != nil {
		return &notify.Error{Kind: notify.KindBackend, Op: op, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &notify.Error{Kind: notify.KindBackend, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(op, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &notify.Error{Kind: notify.KindBackend, Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &body) != nil || body.Error == "" {
		body.Error = resp.Status
	}

	kind := notify.KindBackend
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		kind = notify.KindAuth
	case resp.StatusCode == http.StatusNotFound:
		kind = notify.KindNotFound
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		kind = notify.KindValidation
	}
	return &notify.Error{
		Kind:    kind,
		Op:      op,
		Message: body.Error,
		Err:     fmt.Errorf("%s %s: %s", resp.Request.Method, resp.Request.URL.Path, resp.Status),
	}
}
