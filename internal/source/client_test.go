package source_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tracker/internal/source"
)

func TestClientResendsBodyAfterRateLimit(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(data))
		if len(bodies) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"total": 7})
	}))
	defer srv.Close()

	c := source.NewClient(source.SourceTypeJira, srv.URL+"/", "secret")
	var out struct{ Total int }
	require.NoError(t, c.Post(context.Background(), "/search", map[string]string{"jql": "x"}, &out))
	assert.Equal(t, 7, out.Total)
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1])
	assert.JSONEq(t, `{"jql":"x"}`, bodies[1])
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := source.NewClient(source.SourceTypeJira, srv.URL, "secret", source.WithMaxRetries(1))
	err := c.Get(context.Background(), "/x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries (1) exceeded")
}

func TestClientStopsWaitingOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := source.NewClient(source.SourceTypeJira, srv.URL, "secret").Get(ctx, "/x", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth":
			w.WriteHeader(http.StatusUnauthorized)
		case "/known":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"bad field"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
		}
	}))
	defer srv.Close()

	decoder := func(body []byte) string {
		var v struct{ Message string }
		_ = json.Unmarshal(body, &v)
		return v.Message
	}
	c := source.NewClient(source.SourceTypeBitbucket, srv.URL, "secret", source.WithErrorDecoder(decoder))
	ctx := context.Background()

	err := c.Get(ctx, "/auth", nil)
	var authErr *source.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, source.SourceTypeBitbucket, authErr.SourceType)

	err = c.Get(ctx, "/known", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bitbucket API error (400)")
	assert.Contains(t, err.Error(), "bad field")

	err = c.Get(ctx, "/other", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
	assert.Contains(t, err.Error(), "boom")
	assert.False(t, source.IsAuthError(err))
}

func TestClientGetText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/plain", r.Header.Get("Accept"))
		_, _ = w.Write([]byte("  jdoe\n"))
	}))
	defer srv.Close()

	c := source.NewClient(source.SourceTypeBitbucket, srv.URL, "secret")
	got, err := c.GetText(context.Background(), "/whoami")
	require.NoError(t, err)
	assert.Equal(t, "jdoe", got)
	assert.Equal(t, srv.URL, c.BaseURL())
}
