package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vestigia/internal/adapters/httpapi/middleware"
	"vestigia/internal/core/changefeed"
	figureapp "vestigia/internal/core/figure/service"
	interactionapp "vestigia/internal/core/interaction/service"
	profileapp "vestigia/internal/core/profile/service"
	timelineapp "vestigia/internal/core/timeline/service"
	figurePort "vestigia/internal/ports/figure"
	interactionPort "vestigia/internal/ports/interaction"
	postPort "vestigia/internal/ports/post"
	profilePort "vestigia/internal/ports/profile"
)

func init() { gin.SetMode(gin.TestMode) }

const goodToken = "good-token"

type mockAuth struct {
	signedOut []string
}

func (m *mockAuth) Register(context.Context, string, string, string) (*profilePort.SessionDTO, error) {
	return nil, profileapp.ErrEmailTaken
}

func (m *mockAuth) Login(_ context.Context, email, password string) (*profilePort.SessionDTO, error) {
	if password != "correct horse" {
		return nil, profileapp.ErrInvalidCredentials
	}
	return &profilePort.SessionDTO{Token: goodToken, UserID: "u1"}, nil
}

func (m *mockAuth) AuthorizeURL(context.Context) (string, string, error) {
	return "", "", profileapp.ErrProviderDisabled
}

func (m *mockAuth) ExchangeCode(context.Context, string, string) (*profilePort.SessionDTO, error) {
	return nil, profileapp.ErrInvalidState
}

func (m *mockAuth) SignInWithIDToken(context.Context, string) (*profilePort.SessionDTO, error) {
	return nil, profileapp.ErrInvalidToken
}

func (m *mockAuth) Session(_ context.Context, token string) (*profileapp.Principal, error) {
	if token != goodToken {
		return nil, profileapp.ErrInvalidToken
	}
	return &profileapp.Principal{UserID: "u1", SessionID: "s1", ExpiresAt: time.Unix(2000000000, 0)}, nil
}

func (m *mockAuth) SignOut(_ context.Context, token string) error {
	m.signedOut = append(m.signedOut, token)
	return nil
}

type mockProfiles struct {
	ProfileUseCase
}

func (m *mockProfiles) Viewer(_ context.Context, userID string) profilePort.Viewer {
	return profilePort.Viewer{UserID: userID, Date: time.Date(1789, 6, 2, 0, 0, 0, 0, time.UTC), Language: "fr"}
}

func (m *mockProfiles) GetProfile(context.Context, string) (*profilePort.ProfileDTO, error) {
	return nil, profileapp.ErrProfileNotFound
}

type mockFigures struct {
	FigureUseCase
}

func (m *mockFigures) Get(_ context.Context, lang, id string) (*figurePort.FigureDTO, error) {
	if id != "f1" {
		return nil, figureapp.ErrFigureNotFound
	}
	return &figurePort.FigureDTO{ID: id, Name: "Mirabeau", Title: "lang=" + lang}, nil
}

type mockTimeline struct {
	timelineFunc func(ctx context.Context, v profilePort.Viewer, q postPort.Query) (*postPort.PageDTO, error)
}

func (m *mockTimeline) Timeline(ctx context.Context, v profilePort.Viewer, q postPort.Query) (*postPort.PageDTO, error) {
	return m.timelineFunc(ctx, v, q)
}

func (m *mockTimeline) FigureTimeline(context.Context, profilePort.Viewer, string, postPort.Query) (*postPort.PageDTO, error) {
	return nil, timelineapp.ErrFigureNotFound
}

func (m *mockTimeline) GetPost(context.Context, profilePort.Viewer, string) (*postPort.PostDTO, error) {
	return nil, timelineapp.ErrPostNotFound
}

func (m *mockTimeline) Search(context.Context, profilePort.Viewer, string, postPort.Query) (*postPort.PageDTO, error) {
	return nil, timelineapp.ErrEmptySearch
}

type mockInteractions struct {
	InteractionUseCase
	countIDs []string
}

func (m *mockInteractions) AddComment(_ context.Context, _ profilePort.Viewer, _, content string) (*interactionPort.CommentDTO, error) {
	if strings.TrimSpace(content) == "" {
		return nil, interactionapp.ErrEmptyComment
	}
	return &interactionPort.CommentDTO{ID: "c1", Content: content}, nil
}

func (m *mockInteractions) DeleteComment(context.Context, profilePort.Viewer, string) error {
	return interactionapp.ErrForbidden
}

func (m *mockInteractions) Counts(_ context.Context, _ profilePort.Viewer, ids []string) ([]*interactionPort.CountsDTO, error) {
	m.countIDs = ids
	out := make([]*interactionPort.CountsDTO, len(ids))
	for i, id := range ids {
		out[i] = &interactionPort.CountsDTO{PostID: id, LikeCount: 3}
	}
	return out, nil
}

type chanSubscriber struct {
	events []changefeed.Event
	got    chan changefeed.Filter
}

func (s *chanSubscriber) Subscribe(_ context.Context, _ string, f changefeed.Filter) (<-chan changefeed.Event, error) {
	s.got <- f
	ch := make(chan changefeed.Event, len(s.events))
	for _, ev := range s.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

type testEnv struct {
	engine       *gin.Engine
	auth         *mockAuth
	timeline     *mockTimeline
	interactions *mockInteractions
	changes      *chanSubscriber
	registry     *prometheus.Registry
}

func newTestEnv() *testEnv {
	env := &testEnv{
		auth: &mockAuth{},
		timeline: &mockTimeline{timelineFunc: func(context.Context, profilePort.Viewer, postPort.Query) (*postPort.PageDTO, error) {
			return &postPort.PageDTO{}, nil
		}},
		interactions: &mockInteractions{},
		changes:      &chanSubscriber{got: make(chan changefeed.Filter, 1)},
		registry:     prometheus.NewRegistry(),
	}
	env.engine = SetupRoutes(Services{
		Auth:         env.auth,
		Profiles:     &mockProfiles{},
		Figures:      &mockFigures{},
		Timeline:     env.timeline,
		Interactions: env.interactions,
		Changes:      env.changes,
	}, Options{
		Metrics:  middleware.NewMetrics(env.registry),
		Gatherer: env.registry,
	})
	return env
}

func (env *testEnv) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	return w
}

var authed = map[string]string{"Authorization": "Bearer " + goodToken}

func TestRouter_Healthz(t *testing.T) {
	w := newTestEnv().do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_RouteGating(t *testing.T) {
	env := newTestEnv()

	tests := []struct {
		name     string
		path     string
		headers  map[string]string
		status   int
		location string
	}{
		{"api without session", "/timeline", nil, http.StatusUnauthorized, ""},
		{"api with bad token", "/timeline", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized, ""},
		{"browser without session", "/timeline", map[string]string{"Accept": "text/html"}, http.StatusFound, "/auth"},
		{"browser on sign-in page with session", "/auth", map[string]string{"Accept": "text/html", "Authorization": "Bearer " + goodToken}, http.StatusFound, "/timeline"},
		{"browser on sign-in page without session", "/auth", map[string]string{"Accept": "text/html"}, http.StatusOK, ""},
		{"api with session", "/timeline", authed, http.StatusOK, ""},
		{"token in query", "/timeline?access_token=" + goodToken, nil, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodGet, tt.path, "", tt.headers)
			assert.Equal(t, tt.status, w.Code)
			if tt.location != "" {
				assert.Equal(t, tt.location, w.Header().Get("Location"))
			}
		})
	}
}

func TestRouter_SessionCookie(t *testing.T) {
	env := newTestEnv()
	req := httptest.NewRequest(http.MethodGet, "/timeline", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: goodToken})
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_LoginAndLogout(t *testing.T) {
	env := newTestEnv()

	w := env.do(http.MethodPost, "/auth/login", `{"email":"a@b.c","password":"wrong"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/auth/login", `{"email":"a@b.c","password":"correct horse"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sess profilePort.SessionDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.Equal(t, goodToken, sess.Token)

	w = env.do(http.MethodPost, "/auth/login", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/auth/register", `{"email":"a@b.c","password":"longenough"}`, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodGet, "/auth/oauth/url", "", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w = env.do(http.MethodGet, "/auth/session", "", authed)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sessionId":"s1"`)

	w = env.do(http.MethodPost, "/auth/logout", "", authed)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{goodToken}, env.auth.signedOut)
}

func TestRouter_TimelinePassesViewerAndQuery(t *testing.T) {
	env := newTestEnv()
	var gotViewer profilePort.Viewer
	var gotQuery postPort.Query
	env.timeline.timelineFunc = func(_ context.Context, v profilePort.Viewer, q postPort.Query) (*postPort.PageDTO, error) {
		gotViewer, gotQuery = v, q
		return &postPort.PageDTO{HasMore: true, NextCursor: "p9", Date: "1789-06-02"}, nil
	}

	w := env.do(http.MethodGet, "/timeline?before=p0&limit=5", "", authed)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", gotViewer.UserID)
	assert.Equal(t, postPort.Query{Before: "p0", Limit: 5}, gotQuery)
	assert.Contains(t, w.Body.String(), `"next_cursor":"p9"`)

	w = env.do(http.MethodGet, "/timeline?limit=abc", "", authed)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(http.MethodGet, "/timeline?offset=-1", "", authed)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_ErrorMapping(t *testing.T) {
	env := newTestEnv()

	tests := []struct {
		method, path, body string
		status             int
	}{
		{http.MethodGet, "/posts/p-future", "", http.StatusNotFound},
		{http.MethodGet, "/posts/search?q=", "", http.StatusBadRequest},
		{http.MethodGet, "/figures/missing", "", http.StatusNotFound},
		{http.MethodGet, "/figures/f1/posts", "", http.StatusNotFound},
		{http.MethodGet, "/me", "", http.StatusNotFound},
		{http.MethodPost, "/posts/p1/comments", `{"content":"   "}`, http.StatusBadRequest},
		{http.MethodPost, "/posts/p1/comments", `{"content":"Vive la nation"}`, http.StatusCreated},
		{http.MethodDelete, "/comments/c1", "", http.StatusForbidden},
		{http.MethodGet, "/interactions/counts", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := env.do(tt.method, tt.path, tt.body, authed)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestRouter_FigureUsesViewerLanguage(t *testing.T) {
	w := newTestEnv().do(http.MethodGet, "/figures/f1", "", authed)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"lang=fr"`)
}

func TestRouter_Counts(t *testing.T) {
	env := newTestEnv()
	w := env.do(http.MethodGet, "/interactions/counts?post_id=a,b&post_id=c", "", authed)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"a", "b", "c"}, env.interactions.countIDs)

	var body struct {
		Counts []*interactionPort.CountsDTO `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Counts, 3)
	assert.Equal(t, int64(3), body.Counts[2].LikeCount)
}

func TestRouter_Metrics(t *testing.T) {
	env := newTestEnv()
	env.do(http.MethodGet, "/healthz", "", nil)

	w := env.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `vestigia_api_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func TestRouter_RealtimeStream(t *testing.T) {
	env := newTestEnv()
	env.changes.events = []changefeed.Event{{
		Table:  changefeed.TableInteractions,
		Type:   changefeed.Insert,
		Record: map[string]any{"id": "i1", "post_id": "p1"},
	}}
	srv := httptest.NewServer(env.engine)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/realtime/user_interactions?filter=post_id=eq.p1", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+goodToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "event:ready")
	assert.Contains(t, string(body), "event:INSERT")
	assert.Contains(t, string(body), `"post_id":"p1"`)
	assert.Equal(t, changefeed.Eq("post_id", "p1"), <-env.changes.got)
}

func TestRouter_RealtimeRejectsUnknownTable(t *testing.T) {
	env := newTestEnv()
	w := env.do(http.MethodGet, "/realtime/secrets", "", authed)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(http.MethodGet, "/realtime/historical_posts?filter=id=gt.3", "", authed)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
