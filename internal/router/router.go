// Package router drives one conversation turn end to end: override
// parsing, history, the model call, the bounded directive chain, and
// the hand-off to code execution. Sessions are keyed by origin
// ("discord:<channel>", "telegram:<chat>", "console", or
// "scheduler:<id>"); turns on the same session run serially while
// different sessions proceed concurrently.
package router

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"dirigent/internal/agents"
	"dirigent/internal/config"
	"dirigent/internal/directive"
	"dirigent/internal/dispatch"
	"dirigent/internal/execution"
	"dirigent/internal/history"
	"dirigent/internal/logging"
	"dirigent/internal/mcp"
	"dirigent/internal/memory"
	"dirigent/internal/model"
	"dirigent/internal/runcmd"
	"dirigent/internal/skills"
)

// maxDirectives bounds command dispatches within one turn. When the
// model is still emitting directives past the budget, the last reply
// is handed back as the final answer.
const maxDirectives = 5

// Deps are the collaborators a Router drives. Skills and Agents load
// per turn so file edits show up without a restart.
type Deps struct {
	Client     model.Client
	Dispatcher *dispatch.Dispatcher
	Engine     *execution.Engine
	Archive    *history.Archive
	Notes      *memory.Notes
	MCP        *mcp.Client
	Run        *runcmd.Runner
	Skills     func() []skills.Skill
	Agents     func() []agents.Agent
}

// Router owns the per-session conversation state and runs turns.
type Router struct {
	cfg        *config.Config
	client     model.Client
	dispatcher *dispatch.Dispatcher
	engine     *execution.Engine
	archive    *history.Archive
	notes      *memory.Notes
	mcp        *mcp.Client
	run        *runcmd.Runner
	loadSkills func() []skills.Skill
	loadAgents func() []agents.Agent
	log        *zap.SugaredLogger

	mu       sync.Mutex
	sessions map[string]*session
	base     context.Context
	stop     context.CancelFunc
}

// New builds a router. Nil collaborators disable the matching prompt
// sections; dispatch rejects their directives with guidance.
func New(cfg *config.Config, deps Deps) *Router {
	base, stop := context.WithCancel(context.Background())
	r := &Router{
		cfg:        cfg,
		client:     deps.Client,
		dispatcher: deps.Dispatcher,
		engine:     deps.Engine,
		archive:    deps.Archive,
		notes:      deps.Notes,
		mcp:        deps.MCP,
		run:        deps.Run,
		loadSkills: deps.Skills,
		loadAgents: deps.Agents,
		log:        logging.Get(logging.CategoryRouter),
		sessions:   make(map[string]*session),
		base:       base,
		stop:       stop,
	}
	if r.loadSkills == nil {
		r.loadSkills = func() []skills.Skill { return nil }
	}
	if r.loadAgents == nil {
		r.loadAgents = func() []agents.Agent { return nil }
	}
	return r
}

// Request is one inbound message bound for a session.
type Request struct {
	// Session is the origin key, e.g. "discord:1234".
	Session string

	// UserName and UserID identify the author for prompt context.
	// Either may be empty.
	UserName string
	UserID   string

	// Content is the raw inbound text, override lines included.
	Content string
}

// Turn runs one full conversation turn and returns the final answer.
// Cancelling ctx, or tearing the session down, abandons the turn; a
// result from an abandoned turn is never stored.
func (r *Router) Turn(ctx context.Context, req Request) (string, error) {
	sess := r.session(req.Session)
	sess.turns.Lock()
	defer sess.turns.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	release := context.AfterFunc(sess.ctx, cancel)
	defer release()

	started := time.Now()
	ov, question := ParseOverrides(req.Content)
	if rest, reset := CutNewSession(question); reset {
		sess.history.Clear()
		if r.archive != nil {
			if err := r.archive.Reset(req.Session); err != nil {
				r.log.Debugw("archive reset failed", "session", req.Session, "error", err)
			}
		}
		question = rest
		r.log.Infow("session reset", "session", req.Session)
	}

	opts := model.Options{
		Model:       ov.Model,
		Temperature: ov.Temperature,
		NumCtx:      ov.NumCtx,
	}

	var skillContent, agentPrompt string
	if ov.Skill != "" {
		sk, ok := skills.Find(r.loadSkills(), ov.Skill)
		if !ok {
			return fmt.Sprintf("Unknown skill %q. Available skills: %s.",
				ov.Skill, skillList(r.loadSkills())), nil
		}
		skillContent = sk.Content
	}
	if ov.Agent != "" {
		ag, ok := agents.Find(r.loadAgents(), ov.Agent)
		if !ok {
			return fmt.Sprintf("Unknown agent %q. Configured agents: %s.",
				ov.Agent, agentList(r.loadAgents())), nil
		}
		agentPrompt = ag.Prompt
		if opts.Model == "" {
			opts.Model = ag.Model
		}
	}

	prior := sess.history.Messages()
	sess.history.Append(history.RoleUser, question)

	system := r.systemPrompt(ctx, promptContext{
		UserName: req.UserName,
		UserID:   req.UserID,
		Skill:    skillContent,
		Agent:    agentPrompt,
		Origin:   req.Session,
	})

	msgs := make([]model.Message, 0, len(prior)+2)
	msgs = append(msgs, model.Message{Role: model.RoleSystem, Content: system})
	for _, m := range prior {
		if m.Role != history.RoleUser && m.Role != history.RoleAssistant {
			continue
		}
		msgs = append(msgs, model.Message{Role: string(m.Role), Content: m.Content})
	}
	msgs = append(msgs, model.Message{Role: model.RoleUser, Content: question})

	r.log.Debugw("turn start", "session", req.Session,
		"history", len(prior), "verbose", ov.Verbose,
		"question", logging.Ellipse(question, 200))

	raw, err := r.client.Chat(ctx, msgs, opts)
	if err != nil {
		return "", fmt.Errorf("model chat: %w", err)
	}

	raw, msgs, err = r.runDirectives(ctx, sess, msgs, raw, question, opts)
	if err != nil {
		return "", err
	}

	reply := model.ParseReply(raw)
	final := reply.FinalAnswer
	if reply.NeedsExecution {
		final, err = r.engine.Run(ctx, msgs, reply, question, opts)
		if err != nil {
			return "", err
		}
	}

	sess.history.Append(history.RoleAssistant, final)
	r.log.Infow("turn complete", "session", req.Session,
		"duration", time.Since(started).Round(time.Millisecond),
		"answer_chars", len(final))
	return final, nil
}

// runDirectives loops while the model keeps answering with command
// lines: dispatch, feed the wrapped result back, ask again. Both the
// session history and the working message list carry the exchange so
// later turns see what was done.
func (r *Router) runDirectives(ctx context.Context, sess *session, msgs []model.Message, raw, question string, opts model.Options) (string, []model.Message, error) {
	for calls := 0; ; {
		dir, ok := directive.Parse(raw)
		if !ok {
			return raw, msgs, nil
		}
		if calls >= maxDirectives {
			r.log.Warnw("directive budget exhausted, using last reply as final",
				"session", sess.key, "directive", string(dir.Name))
			return raw, msgs, nil
		}
		calls++

		dir.Origin = sess.key
		res := r.dispatcher.Dispatch(ctx, dir, question)

		sess.history.Append(history.RoleAssistant, raw)
		sess.history.Append(history.RoleUser, res.Feedback)
		msgs = append(msgs,
			model.Message{Role: model.RoleAssistant, Content: raw},
			model.Message{Role: model.RoleUser, Content: res.Feedback},
		)

		next, err := r.client.Chat(ctx, msgs, opts)
		if err != nil {
			return "", nil, fmt.Errorf("directive chat: %w", err)
		}
		raw = next
	}
}

// OneShot returns a SubTurn that runs a single exchange with no
// session state. Skills and delegated agents go through it so their
// context stays separate from the calling conversation.
func OneShot(client model.Client) dispatch.SubTurn {
	return func(ctx context.Context, system, user string, opts model.Options) (string, error) {
		msgs := []model.Message{
			{Role: model.RoleSystem, Content: system},
			{Role: model.RoleUser, Content: user},
		}
		raw, err := client.Chat(ctx, msgs, opts)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(raw), nil
	}
}

func skillList(sks []skills.Skill) string {
	if len(sks) == 0 {
		return "none"
	}
	names := make([]string, len(sks))
	for i, s := range sks {
		names[i] = fmt.Sprintf("%d-%s", s.Number, s.Topic)
	}
	return strings.Join(names, ", ")
}

func agentList(ags []agents.Agent) string {
	if len(ags) == 0 {
		return "none"
	}
	names := make([]string, len(ags))
	for i, a := range ags {
		names[i] = a.ID
	}
	return strings.Join(names, ", ")
}
