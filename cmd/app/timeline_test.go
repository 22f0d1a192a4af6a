package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vestigia/internal/config"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newTimelineServer answers the endpoints a timeline needs for a user whose
// profile row does not exist yet.
func newTimelineServer(mux *http.ServeMux) *httptest.Server {
	notFound := func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
	mux.HandleFunc("GET /auth/session", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"userId": "u1", "sessionId": "s1", "expiresAt": time.Now().Add(time.Hour).Unix()})
	})
	mux.HandleFunc("GET /me", notFound)
	mux.HandleFunc("GET /clock", notFound)
	mux.HandleFunc("/me/snapshot", notFound)
	mux.HandleFunc("/realtime/", notFound)
	return httptest.NewServer(mux)
}

func timelineOpts(server string) *timelineOptions {
	return &timelineOptions{
		rootOptions: &rootOptions{cfg: &config.Config{Port: "0", PollInterval: time.Hour}},
		server:      server,
		token:       "tok",
	}
}

func TestRunTimeline_MissingProfileStartsFromDefault(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /timeline", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"posts": []any{}, "has_more": false})
	})
	srv := newTimelineServer(mux)
	defer srv.Close()

	var out bytes.Buffer
	err := runTimeline(context.Background(), timelineOpts(srv.URL), strings.NewReader("quit\n"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Nothing has happened yet")
}

func TestRunTimeline_RequiresSession(t *testing.T) {
	opts := timelineOpts("http://127.0.0.1:1")
	opts.token = ""
	err := runTimeline(context.Background(), opts, strings.NewReader("quit\n"), &bytes.Buffer{})
	assert.ErrorContains(t, err, "no session")
}

func TestRunTimeline_CommentVerbs(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	record := func(r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /timeline", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"posts": []map[string]any{
			{"id": "p1", "figure_id": "f1", "original_date": "1789-05-01T00:00:00Z", "content": "The Estates convene."},
		}})
	})
	mux.HandleFunc("GET /interactions/counts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"counts": []map[string]any{{"post_id": "p1", "comment_count": 1}}})
	})
	mux.HandleFunc("GET /posts/p1/comments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"comments": []map[string]any{
			{"id": "c9", "post_id": "p1", "user_id": "u1", "content": "Bravo"},
		}})
	})
	mux.HandleFunc("POST /comments/c9/like", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		writeJSON(w, http.StatusOK, map[string]any{"target_id": "c9", "post_id": "p1", "liked": true, "like_count": 1})
	})
	mux.HandleFunc("DELETE /comments/c9", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.WriteHeader(http.StatusNoContent)
	})
	srv := newTimelineServer(mux)
	defer srv.Close()

	in := strings.NewReader("comments 1\nlikecomment c1\nuncomment 1\nuncomment c5\nquit\n")
	var out bytes.Buffer
	require.NoError(t, runTimeline(context.Background(), timelineOpts(srv.URL), in, &out))

	assert.Contains(t, out.String(), "[c1] Bravo  [1 likes]")
	assert.Contains(t, out.String(), `no comment "c5"`)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"POST /comments/c9/like", "DELETE /comments/c9"}, calls)
}
