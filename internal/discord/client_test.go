package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirigent/internal/sanitize"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, New(srv.Client(), srv.URL, "bot-token")
}

func TestGetSendsAuth(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bot bot-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/guilds/1/channels", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":"9"}]`))
	})

	out, err := c.Get(context.Background(), "/guilds/1/channels")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"9"}]`, out)
}

func TestSendMessage(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/channels/42/messages", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello there", body["content"])

		_, _ = w.Write([]byte(`{"id":"777","channel_id":"42","content":"hello there"}`))
	})

	msg, err := c.SendMessage(context.Background(), "42", "hello there")
	require.NoError(t, err)
	assert.Equal(t, "777", msg.ID)
}

func TestSendMessageFailureWrapsHTTPError(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Missing Access","code":50001}`))
	})

	_, err := c.SendMessage(context.Background(), "42", "hi")
	var he *sanitize.HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusForbidden, he.StatusCode)
	assert.Contains(t, he.Body, "Missing Access")
}

func TestMessagesReturnsChronologicalOrder(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("after"))
		// Discord returns newest first.
		_, _ = w.Write([]byte(`[
			{"id":"103","content":"third","author":{"id":"u1"}},
			{"id":"102","content":"second","author":{"id":"u2","bot":true}},
			{"id":"101","content":"first","author":{"id":"u1"}}
		]`))
	})

	msgs, err := c.Messages(context.Background(), "42", "100", 50)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "101", msgs[0].ID)
	assert.Equal(t, "103", msgs[2].ID)
	assert.True(t, msgs[1].Author.Bot)
}

func TestMe(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/@me", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"555","username":"dirigent","bot":true}`))
	})

	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "555", me.ID)
	assert.True(t, me.Bot)
}
