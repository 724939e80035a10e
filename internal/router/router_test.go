package router

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirigent/internal/agents"
	"dirigent/internal/config"
	"dirigent/internal/dispatch"
	"dirigent/internal/execution"
	"dirigent/internal/history"
	"dirigent/internal/memory"
	"dirigent/internal/model"
	"dirigent/internal/skills"
)

// scriptedClient replays canned replies and records every call. When
// gate is set, Chat blocks until the gate closes or ctx ends.
type scriptedClient struct {
	mu      sync.Mutex
	replies []string
	calls   [][]model.Message
	opts    []model.Options
	gate    chan struct{}
	err     error
}

func (c *scriptedClient) Chat(ctx context.Context, msgs []model.Message, opts model.Options) (string, error) {
	c.mu.Lock()
	c.calls = append(c.calls, slices.Clone(msgs))
	c.opts = append(c.opts, opts)
	gate := c.gate
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	if len(c.replies) == 0 {
		return "done", nil
	}
	reply := c.replies[0]
	c.replies = c.replies[1:]
	return reply, nil
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func newTestRouter(t *testing.T, client model.Client) *Router {
	t.Helper()
	cfg := config.DefaultConfig(t.TempDir())
	notes := memory.New(filepath.Join(t.TempDir(), "notes.md"))
	engine := execution.NewEngine(client, execution.NewRunner(), execution.NewLog(0, 0), 5, 5*time.Second)
	return New(cfg, Deps{
		Client:     client,
		Dispatcher: dispatch.New(cfg, dispatch.Deps{Notes: notes}),
		Engine:     engine,
		Notes:      notes,
	})
}

func TestTurnPlainAnswer(t *testing.T) {
	client := &scriptedClient{replies: []string{"Hello there."}}
	r := newTestRouter(t, client)

	answer, err := r.Turn(context.Background(), Request{Session: "console", Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", answer)

	require.Len(t, client.calls, 1)
	msgs := client.calls[0]
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "fetch-url")
	assert.Equal(t, model.RoleUser, msgs[len(msgs)-1].Role)
	assert.Equal(t, "hi", msgs[len(msgs)-1].Content)

	hist := r.session("console").history.Messages()
	require.Len(t, hist, 2)
	assert.Equal(t, history.RoleUser, hist[0].Role)
	assert.Equal(t, history.RoleAssistant, hist[1].Role)
}

func TestTurnSystemPromptSections(t *testing.T) {
	client := &scriptedClient{replies: []string{"ok"}}
	r := newTestRouter(t, client)

	_, err := r.Turn(context.Background(), Request{Session: "console", Content: "hi"})
	require.NoError(t, err)

	system := client.calls[0][0].Content
	assert.Contains(t, system, "brave-search")
	assert.Contains(t, system, "task-create")
	assert.Contains(t, system, "memory-append")
	assert.Contains(t, system, "ollama-api")
	assert.Contains(t, system, "role=code-assistant")
	assert.NotContains(t, system, "discord-api", "no bot token configured")
	assert.NotContains(t, system, "redmine-api", "redmine not configured")
}

func TestTurnScheduleHiddenFromSchedulerOrigin(t *testing.T) {
	client := &scriptedClient{replies: []string{"ok", "ok"}}
	r := newTestRouter(t, client)

	_, err := r.Turn(context.Background(), Request{Session: "scheduler:abc", Content: "run the task"})
	require.NoError(t, err)
	assert.NotContains(t, client.calls[0][0].Content, "**schedule**")

	_, err = r.Turn(context.Background(), Request{Session: "console", Content: "hi"})
	require.NoError(t, err)
	assert.Contains(t, client.calls[1][0].Content, "**schedule**")
}

func TestTurnDirectiveChain(t *testing.T) {
	client := &scriptedClient{replies: []string{
		"memory-append: the user prefers tea",
		"Saved your preference.",
	}}
	r := newTestRouter(t, client)

	answer, err := r.Turn(context.Background(), Request{Session: "console", Content: "remember I prefer tea"})
	require.NoError(t, err)
	assert.Equal(t, "Saved your preference.", answer)

	require.Len(t, client.calls, 2)
	second := client.calls[1]
	n := len(second)
	assert.Equal(t, model.RoleAssistant, second[n-2].Role)
	assert.Equal(t, "memory-append: the user prefers tea", second[n-2].Content)
	assert.Equal(t, model.RoleUser, second[n-1].Role)
	assert.Equal(t, "Noted. Continue with your answer.", second[n-1].Content)

	hist := r.session("console").history.Messages()
	require.Len(t, hist, 4)
	assert.Equal(t, "Saved your preference.", hist[3].Content)
}

func TestTurnDirectiveBudget(t *testing.T) {
	line := "memory-append: note"
	client := &scriptedClient{replies: []string{line, line, line, line, line, line}}
	r := newTestRouter(t, client)

	answer, err := r.Turn(context.Background(), Request{Session: "console", Content: "loop forever"})
	require.NoError(t, err)

	// Five dispatches, then the still-directive reply is handed back.
	assert.Len(t, client.calls, 6)
	assert.Equal(t, line, answer)
}

func TestTurnCodeExecution(t *testing.T) {
	client := &scriptedClient{replies: []string{
		"role=code-assistant\n6 * 7",
		"The answer is 42.",
	}}
	r := newTestRouter(t, client)

	answer, err := r.Turn(context.Background(), Request{Session: "console", Content: "what is 6 times 7"})
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42.", answer)

	require.Len(t, client.calls, 2)
	second := client.calls[1]
	assert.Contains(t, second[len(second)-1].Content, "result is: 42")
}

func TestTurnNewSessionReset(t *testing.T) {
	client := &scriptedClient{replies: []string{"First answer.", "Second answer."}}
	r := newTestRouter(t, client)

	_, err := r.Turn(context.Background(), Request{Session: "console", Content: "the codeword is zebra"})
	require.NoError(t, err)

	answer, err := r.Turn(context.Background(), Request{Session: "console", Content: "new session: what codeword"})
	require.NoError(t, err)
	assert.Equal(t, "Second answer.", answer)

	second := client.calls[1]
	require.Len(t, second, 2, "history cleared before the second call")
	assert.Equal(t, "what codeword", second[1].Content)
	for _, m := range second {
		assert.NotContains(t, m.Content, "zebra")
	}
}

func TestTurnOverridesApplied(t *testing.T) {
	client := &scriptedClient{replies: []string{"ok"}}
	r := newTestRouter(t, client)

	_, err := r.Turn(context.Background(), Request{Session: "console", Content: "model: llama3\ntemperature: 0.5\nhi"})
	require.NoError(t, err)

	require.Len(t, client.opts, 1)
	assert.Equal(t, "llama3", client.opts[0].Model)
	assert.Equal(t, 0.5, client.opts[0].Temperature)

	hist := r.session("console").history.Messages()
	assert.Equal(t, "hi", hist[0].Content, "override lines stay out of history")
}

func TestTurnSkillOverride(t *testing.T) {
	client := &scriptedClient{replies: []string{"Here is a joke."}}
	r := newTestRouter(t, client)
	r.loadSkills = func() []skills.Skill {
		return []skills.Skill{{Number: 1, Topic: "joke", Content: "Only tell jokes."}}
	}

	_, err := r.Turn(context.Background(), Request{Session: "console", Content: "skill: joke\ntell one"})
	require.NoError(t, err)

	system := client.calls[0][0].Content
	assert.Contains(t, system, "Additional instructions from skill:")
	assert.Contains(t, system, "Only tell jokes.")
}

func TestTurnAgentOverride(t *testing.T) {
	client := &scriptedClient{replies: []string{"Drafted."}}
	r := newTestRouter(t, client)
	r.loadAgents = func() []agents.Agent {
		return []agents.Agent{{ID: "writer", Name: "Writer", Model: "mistral", Prompt: "You write prose."}}
	}

	_, err := r.Turn(context.Background(), Request{Session: "console", Content: "agent: writer\ndraft an intro"})
	require.NoError(t, err)

	assert.Equal(t, "mistral", client.opts[0].Model)
	system := client.calls[0][0].Content
	assert.Contains(t, system, "Additional instructions from agent:")
	assert.Contains(t, system, "You write prose.")
}

func TestTurnUnknownSkill(t *testing.T) {
	client := &scriptedClient{}
	r := newTestRouter(t, client)

	answer, err := r.Turn(context.Background(), Request{Session: "console", Content: "skill: nope\nhello"})
	require.NoError(t, err)
	assert.Equal(t, `Unknown skill "nope". Available skills: none.`, answer)
	assert.Zero(t, client.callCount(), "no model call for an unknown skill")
}

func TestTurnUnknownAgent(t *testing.T) {
	client := &scriptedClient{}
	r := newTestRouter(t, client)

	answer, err := r.Turn(context.Background(), Request{Session: "console", Content: "agent: ghost\nhello"})
	require.NoError(t, err)
	assert.Equal(t, `Unknown agent "ghost". Configured agents: none.`, answer)
	assert.Zero(t, client.callCount())
}

func TestTurnChatErrorSurfaced(t *testing.T) {
	client := &scriptedClient{err: errors.New("connection refused")}
	r := newTestRouter(t, client)

	_, err := r.Turn(context.Background(), Request{Session: "console", Content: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model chat")
}

func TestSessionsRunConcurrently(t *testing.T) {
	gate := make(chan struct{})
	client := &scriptedClient{gate: gate, replies: []string{"one", "two"}}
	r := newTestRouter(t, client)

	var wg sync.WaitGroup
	for _, req := range []Request{
		{Session: "discord:1", Content: "first"},
		{Session: "discord:2", Content: "second"},
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Turn(context.Background(), req)
			assert.NoError(t, err)
		}()
	}

	// Both sessions must reach the model while the gate is closed.
	require.Eventually(t, func() bool { return client.callCount() == 2 },
		time.Second, 5*time.Millisecond)
	close(gate)
	wg.Wait()
}

func TestTurnsSerialWithinSession(t *testing.T) {
	gate := make(chan struct{})
	client := &scriptedClient{gate: gate, replies: []string{"one", "two"}}
	r := newTestRouter(t, client)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := r.Turn(context.Background(), Request{Session: "console", Content: "first"})
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool { return client.callCount() == 1 },
		time.Second, 5*time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := r.Turn(context.Background(), Request{Session: "console", Content: "second"})
		assert.NoError(t, err)
	}()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, client.callCount(), "second turn waits for the first")

	close(gate)
	wg.Wait()
	assert.Equal(t, 2, client.callCount())
}

func TestTurnCancelledNotStored(t *testing.T) {
	gate := make(chan struct{}) // never closed
	client := &scriptedClient{gate: gate}
	r := newTestRouter(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := r.Turn(ctx, Request{Session: "console", Content: "hi"})
		errCh <- err
	}()
	require.Eventually(t, func() bool { return client.callCount() == 1 },
		time.Second, 5*time.Millisecond)
	cancel()

	err := <-errCh
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, r.session("console").history.Len(), "no answer stored for a cancelled turn")
}

func TestTeardownCancelsInFlight(t *testing.T) {
	gate := make(chan struct{}) // never closed
	client := &scriptedClient{gate: gate}
	r := newTestRouter(t, client)

	errCh := make(chan error, 1)
	go func() {
		_, err := r.Turn(context.Background(), Request{Session: "discord:9", Content: "hi"})
		errCh <- err
	}()
	require.Eventually(t, func() bool { return client.callCount() == 1 },
		time.Second, 5*time.Millisecond)
	r.Teardown("discord:9")

	err := <-errCh
	require.ErrorIs(t, err, context.Canceled)
}

func TestOneShot(t *testing.T) {
	client := &scriptedClient{replies: []string{"  padded reply  "}}
	sub := OneShot(client)

	out, err := sub(context.Background(), "system prompt", "the task", model.Options{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "padded reply", out)

	require.Len(t, client.calls, 1)
	msgs := client.calls[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, model.Message{Role: model.RoleSystem, Content: "system prompt"}, msgs[0])
	assert.Equal(t, model.Message{Role: model.RoleUser, Content: "the task"}, msgs[1])
	assert.Equal(t, "m", client.opts[0].Model)
}

func TestSessionRestoreFromArchive(t *testing.T) {
	dir := t.TempDir()
	archive, err := history.OpenArchive(filepath.Join(dir, "sessions.db"))
	require.NoError(t, err)
	defer archive.Close()

	seed := history.NewStore("console", 20, archive)
	seed.Append(history.RoleUser, "earlier question")
	seed.Append(history.RoleAssistant, "earlier answer")

	client := &scriptedClient{replies: []string{"ok"}}
	cfg := config.DefaultConfig(dir)
	notes := memory.New(filepath.Join(dir, "notes.md"))
	r := New(cfg, Deps{
		Client:     client,
		Dispatcher: dispatch.New(cfg, dispatch.Deps{Notes: notes}),
		Engine:     execution.NewEngine(client, execution.NewRunner(), execution.NewLog(0, 0), 5, 5*time.Second),
		Archive:    archive,
		Notes:      notes,
	})

	_, err = r.Turn(context.Background(), Request{Session: "console", Content: "and now?"})
	require.NoError(t, err)

	var contents []string
	for _, m := range client.calls[0] {
		contents = append(contents, m.Content)
	}
	joined := strings.Join(contents, "\n")
	assert.Contains(t, joined, "earlier question")
	assert.Contains(t, joined, "earlier answer")
}
