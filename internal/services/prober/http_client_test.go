package prober

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NordCoder/Uptime/internal/domain/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/fail", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok", http.StatusFound)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientPing(t *testing.T) {
	srv := testServer(t)
	cl := NewClient(Config{Timeout: time.Second, UserAgent: "uptime/test", FollowRedirects: true, VerifyTLS: true})
	ctx := context.Background()

	code, state, err := cl.Ping(ctx, srv.URL+"/ok")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, code)
	assert.Equal(t, health.OK, state)

	code, state, err = cl.Ping(ctx, srv.URL+"/fail")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, health.NotOK, state)

	_, state, err = cl.Ping(ctx, srv.URL+"/moved")
	require.NoError(t, err)
	assert.Equal(t, health.OK, state)
}

func TestClientSendsUserAgent(t *testing.T) {
	seen := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.UserAgent()
	}))
	defer srv.Close()

	_, _, err := NewClient(Config{Timeout: time.Second, UserAgent: "uptime/abc123"}).Ping(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "uptime/abc123", <-seen)
}

func TestClientRedirectNotFollowed(t *testing.T) {
	srv := testServer(t)
	cl := NewClient(Config{Timeout: time.Second, FollowRedirects: false})

	code, state, err := cl.Ping(context.Background(), srv.URL+"/moved")
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, code)
	assert.Equal(t, health.NotOK, state)
}

func TestClientTransportFailureIsNotOK(t *testing.T) {
	srv := testServer(t)
	url := srv.URL + "/ok"
	srv.Close()

	_, state, err := NewClient(Config{Timeout: time.Second}).Ping(context.Background(), url)
	assert.Error(t, err)
	assert.Equal(t, health.NotOK, state)
}

func TestClientTimeout(t *testing.T) {
	srv := testServer(t)
	start := time.Now()
	_, state, err := NewClient(Config{Timeout: 100 * time.Millisecond}).Ping(context.Background(), srv.URL+"/slow")
	assert.Error(t, err)
	assert.Equal(t, health.NotOK, state)
	assert.Less(t, time.Since(start), time.Second)
}
