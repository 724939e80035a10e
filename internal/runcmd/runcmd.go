// Package runcmd executes a fixed set of read-only local commands on
// behalf of the model. The verb names are part of the directive
// vocabulary and map onto real binaries; anything outside the set is
// rejected before execution. Arguments pass to the binary literally,
// never through a shell.
package runcmd

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"dirigent/internal/logging"
)

// maxOutput caps command output handed back to the model.
const maxOutput = 8000

type verbSpec struct {
	binary    string
	fixedArgs []string
}

// verbs maps directive verbs to the binaries they run.
var verbs = map[string]verbSpec{
	"list":         {binary: "ls"},
	"read-head":    {binary: "head"},
	"read-tail":    {binary: "tail"},
	"concatenate":  {binary: "cat"},
	"search":       {binary: "grep"},
	"date":         {binary: "date"},
	"identity":     {binary: "whoami"},
	"process-list": {binary: "ps", fixedArgs: []string{"ax"}},
	"word-count":   {binary: "wc"},
	"uptime":       {binary: "uptime"},
}

// Runner executes allowlisted commands.
type Runner struct {
	enabled     bool
	baseDir     string
	agentRunner string
}

// New builds a runner. agentRunner names the one external binary
// permitted beyond the fixed verb set; empty disables it.
func New(enabled bool, baseDir, agentRunner string) *Runner {
	return &Runner{enabled: enabled, baseDir: baseDir, agentRunner: agentRunner}
}

// Enabled reports whether local commands may run at all.
func (r *Runner) Enabled() bool {
	return r.enabled
}

// Allowed reports whether the verb would pass the allowlist.
func (r *Runner) Allowed(verb string) bool {
	if _, ok := verbs[verb]; ok {
		return true
	}
	return r.agentRunner != "" && verb == r.agentRunner
}

// Verbs returns the allowlisted verb names for prompt building.
func (r *Runner) Verbs() []string {
	out := make([]string, 0, len(verbs)+1)
	for v := range verbs {
		out = append(out, v)
	}
	if r.agentRunner != "" {
		out = append(out, r.agentRunner)
	}
	return out
}

// Run parses "verb arg arg..." and executes it. The error reports
// rejections and execution failures; stderr of a failed command is
// folded into the error for the server log.
func (r *Runner) Run(ctx context.Context, commandLine string) (string, error) {
	if !r.enabled {
		return "", ErrDisabled
	}

	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return "", ErrEmpty
	}
	verb, args := fields[0], fields[1:]

	spec, ok := verbs[verb]
	switch {
	case ok:
	case r.agentRunner != "" && verb == r.agentRunner:
		spec = verbSpec{binary: r.agentRunner}
	default:
		return "", fmt.Errorf("%w: %s", ErrNotAllowed, verb)
	}

	argv := append(append([]string{}, spec.fixedArgs...), args...)
	cmd := exec.CommandContext(ctx, spec.binary, argv...)
	cmd.Dir = r.baseDir

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.Get(logging.CategoryDispatch).Debugw("run-command",
		"verb", verb, "binary", spec.binary, "args", len(argv))

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", fmt.Errorf("%s failed: %s", verb, logging.Ellipse(detail, 300))
	}

	out := stdout.String()
	if out == "" {
		out = "(no output)"
	}
	return logging.Ellipse(out, maxOutput), nil
}
