package brave

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirigent/internal/sanitize"
)

func TestSearchRendersResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.Header.Get("X-Subscription-Token"))
		assert.Equal(t, "go generics", r.URL.Query().Get("q"))
		assert.Equal(t, "2", r.URL.Query().Get("count"))
		_, _ = w.Write([]byte(`{"web":{"results":[
			{"title":"Generics tutorial","url":"https://go.dev/doc/tutorial/generics","description":"An introduction."},
			{"title":"Type parameters","url":"https://go.dev/ref/spec#Type_parameters","description":""}
		]}}`))
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, "tok", 2)
	out, err := c.Search(context.Background(), "go generics")
	require.NoError(t, err)

	assert.Contains(t, out, "1. Generics tutorial")
	assert.Contains(t, out, "https://go.dev/doc/tutorial/generics")
	assert.Contains(t, out, "An introduction.")
	assert.Contains(t, out, "2. Type parameters")
}

func TestSearchEmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"web":{"results":[]}}`))
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, "tok", 5)
	out, err := c.Search(context.Background(), "nothing at all")
	require.NoError(t, err)
	assert.Contains(t, out, "No results found")
}

func TestSearchHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, "tok", 5)
	_, err := c.Search(context.Background(), "x")

	var he *sanitize.HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusTooManyRequests, he.StatusCode)
}

func TestConfigured(t *testing.T) {
	assert.False(t, New(nil, "", "", 0).Configured())
	assert.True(t, New(nil, "", "key", 0).Configured())
}
