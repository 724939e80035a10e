// Package dispatch maps parsed directives onto collaborator calls.
// Static guards run before any network traffic, every collaborator
// call carries its own timeout, and failures leave in two shapes: a
// short sanitized line for conversation content and the raw detail for
// the server-side log. The dispatcher never retries; retry policy
// belongs to the collaborator.
package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dirigent/internal/agents"
	"dirigent/internal/brave"
	"dirigent/internal/config"
	"dirigent/internal/directive"
	"dirigent/internal/discord"
	"dirigent/internal/fetch"
	"dirigent/internal/logging"
	"dirigent/internal/mcp"
	"dirigent/internal/memory"
	"dirigent/internal/model"
	"dirigent/internal/redmine"
	"dirigent/internal/runcmd"
	"dirigent/internal/sanitize"
	"dirigent/internal/scheduler"
	"dirigent/internal/skills"
	"dirigent/internal/tasks"
)

// Result is the normalized outcome of one dispatched directive.
type Result struct {
	Success bool

	// Payload is the raw collaborator output: page text, command
	// output, API responses. May be long and multi-line.
	Payload string

	// UserMessage is one line, safe to show anywhere: sanitized on
	// failure, a short summary on success.
	UserMessage string

	// InternalDetail carries the raw error text for server-side logs
	// only. Empty on success.
	InternalDetail string

	// Feedback is the model-facing result text: the payload wrapped in
	// guidance on success, the explanation plus recovery guidance on
	// failure. The router appends it to the conversation.
	Feedback string
}

// SubTurn runs a one-shot conversation in a fresh session: a system
// prompt, one user message, a final answer. The router supplies it;
// skill and agent-delegate directives run through it.
type SubTurn func(ctx context.Context, system, user string, opts model.Options) (string, error)

// Deps are the collaborators a dispatcher can reach. Nil entries mean
// the collaborator is not configured; the matching directives answer
// with a short explanation instead of failing.
type Deps struct {
	Fetch     *fetch.Client
	Brave     *brave.Client
	Discord   *discord.Client
	Redmine   *redmine.Client
	Run       *runcmd.Runner
	Tasks     *tasks.Store
	Schedules *scheduler.Store
	Notes     *memory.Notes
	MCP       *mcp.Client
	Admin     model.AdminAPI

	// Skills and Agents load per dispatch so file edits are picked up
	// without a restart.
	Skills func() []skills.Skill
	Agents func() []agents.Agent

	SubTurn SubTurn
}

// Dispatcher executes directives against the configured collaborators.
type Dispatcher struct {
	cfg  *config.Config
	deps Deps
	log  *zap.SugaredLogger
}

// New builds a dispatcher.
func New(cfg *config.Config, deps Deps) *Dispatcher {
	return &Dispatcher{cfg: cfg, deps: deps, log: logging.Get(logging.CategoryDispatch)}
}

// Dispatch executes one directive and normalizes the outcome. It never
// returns an error: every failure is folded into the Result. question
// is the originating user question; skill and agent-delegate fall back
// to it when the directive carries no task of its own.
func (d *Dispatcher) Dispatch(ctx context.Context, dir directive.Directive, question string) Result {
	start := time.Now()
	d.log.Infow("dispatching", "directive", string(dir.Name), "arg_chars", len(dir.Args), "origin", dir.Origin)

	var res Result
	switch dir.Name {
	case directive.FetchURL:
		res = d.fetchURL(ctx, dir)
	case directive.BraveSearch:
		res = d.braveSearch(ctx, dir)
	case directive.RunCommand:
		res = d.runCommand(ctx, dir)
	case directive.DiscordAPI:
		res = d.discordAPI(ctx, dir)
	case directive.RedmineAPI:
		res = d.redmineAPI(ctx, dir)
	case directive.OllamaAPI:
		res = d.ollamaAPI(ctx, dir)
	case directive.Skill:
		res = d.skill(ctx, dir, question)
	case directive.AgentDelegate:
		res = d.agentDelegate(ctx, dir, question)
	case directive.Schedule:
		res = d.schedule(dir)
	case directive.RemoveSchedule:
		res = d.removeSchedule(dir)
	case directive.ListSchedules:
		res = d.listSchedules()
	case directive.TaskCreate:
		res = d.taskCreate(dir)
	case directive.TaskAppend:
		res = d.taskAppend(dir)
	case directive.TaskStatus:
		res = d.taskStatus(dir)
	case directive.TaskAssign:
		res = d.taskAssign(dir)
	case directive.TaskList:
		res = d.taskList(dir)
	case directive.TaskShow:
		res = d.taskShow(dir)
	case directive.MemoryAppend:
		res = d.memoryAppend(dir)
	case directive.MCP:
		res = d.mcpCall(ctx, dir)
	default:
		res = reject("Unknown command.", "unhandled directive name: "+string(dir.Name))
	}

	d.log.Infow("dispatched",
		"directive", string(dir.Name),
		"success", res.Success,
		"payload_chars", len(res.Payload),
		"elapsed", time.Since(start),
	)
	if !res.Success {
		d.log.Warnw("dispatch failed", "directive", string(dir.Name), "detail", res.InternalDetail)
	}
	return res
}

// ok builds a successful result. feedback carries the payload wrapped
// in guidance for the model; userMessage is the one-line summary.
func ok(payload, userMessage, feedback string) Result {
	return Result{Success: true, Payload: payload, UserMessage: userMessage, Feedback: feedback}
}

// reject builds a guard or validation rejection: explanation only, no
// collaborator was called.
func reject(userMessage, detail string) Result {
	return Result{
		Success:        false,
		UserMessage:    sanitize.Clean(userMessage),
		InternalDetail: detail,
		Feedback:       userMessage,
	}
}

// fail routes a collaborator error through the sanitizer. wrap renders
// the model-facing feedback from the sanitized line.
func fail(src sanitize.Source, err error, wrap func(sanitized string) string) Result {
	s := sanitize.Sanitize(src, err)
	msg := s.Message()
	return Result{
		Success:        false,
		UserMessage:    msg,
		InternalDetail: err.Error(),
		Feedback:       wrap(msg),
	}
}

// callCtx applies the collaborator timeout.
func callCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}
