package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"dirigent/internal/logging"
	"dirigent/internal/model"
)

// MaxIterationsMessage replaces the answer when the execute/continue
// loop hits its hard cap.
const MaxIterationsMessage = "maximum execution iterations reached"

// State tracks where a turn is in the execute/continue loop.
type State int

const (
	StateAwaitingDirective State = iota
	StateExecuting
	StateAwaitingContinuation
	StateFinal
)

func (s State) String() string {
	switch s {
	case StateAwaitingDirective:
		return "awaiting_directive"
	case StateExecuting:
		return "executing"
	case StateAwaitingContinuation:
		return "awaiting_continuation"
	case StateFinal:
		return "final"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Engine drives snippet execution and feeds each result back to the
// model until it produces a final answer or the iteration cap fires.
type Engine struct {
	client        model.Client
	runner        *Runner
	log           *Log
	maxIterations int
	timeout       time.Duration
}

// NewEngine wires a model client to a runner. maxIterations and
// timeout fall back to 5 and 30s when unset.
func NewEngine(client model.Client, runner *Runner, log *Log, maxIterations int, timeout time.Duration) *Engine {
	if maxIterations <= 0 {
		maxIterations = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = NewLog(0, 0)
	}
	return &Engine{client: client, runner: runner, log: log, maxIterations: maxIterations, timeout: timeout}
}

// Log exposes the sanitized execution log.
func (e *Engine) Log() *Log { return e.log }

// Run takes the conversation that produced the first code-bearing
// reply and loops: execute the snippet, hand the result back together
// with the original question, parse the next reply. A reply without
// code ends the turn. After maxIterations model calls the loop stops
// with MaxIterationsMessage.
func (e *Engine) Run(ctx context.Context, base []model.Message, first model.Reply, question string, opts model.Options) (string, error) {
	log := logging.Get(logging.CategoryExecution)
	messages := slices.Clone(base)
	code, intermediate := first.Code, first.Intermediate
	state := StateExecuting

	for round := 0; round < e.maxIterations; round++ {
		log.Debugw("execution round", "round", round+1, "state", state.String())
		feedback := e.execute(ctx, code)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		state = StateAwaitingContinuation
		messages = append(messages,
			model.Message{Role: model.RoleAssistant, Content: intermediate},
			model.Message{Role: model.RoleUser, Content: followUp(feedback, question)},
		)
		raw, err := e.client.Chat(ctx, messages, opts)
		if err != nil {
			return "", fmt.Errorf("continuation chat: %w", err)
		}

		reply := model.ParseReply(raw)
		if !reply.NeedsExecution {
			state = StateFinal
			log.Debugw("execution finished", "rounds", round+1, "state", state.String())
			return reply.FinalAnswer, nil
		}
		code, intermediate = reply.Code, reply.Intermediate
		state = StateExecuting
	}

	log.Warnw("iteration cap reached", "max_iterations", e.maxIterations)
	return MaxIterationsMessage, nil
}

// execute runs one snippet under the per-step timeout. Failures are
// serialized and fed back as the step result.
func (e *Engine) execute(ctx context.Context, code string) string {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	result, exc := e.runner.Run(runCtx, code)
	if exc != nil {
		e.log.Record(code, "", exc)
		data, err := json.Marshal(exc)
		if err != nil {
			return fmt.Sprintf(`{"name":%q,"message":%q}`, exc.Name, exc.Message)
		}
		return string(data)
	}
	e.log.Record(code, result, nil)
	return result
}

func followUp(result, question string) string {
	return fmt.Sprintf("I have executed your last codeblocks and the result is: %s\n\nCan you now answer the original question: %s?", result, question)
}
