// Package execution runs model-supplied Go snippets in an isolated
// interpreter and drives the execute/continue loop with the backend
// until a final answer arrives.
package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"dirigent/internal/logging"
)

// allowedPackages is the stdlib import surface exposed to snippets.
// Nothing here touches the filesystem, network, processes or unsafe.
var allowedPackages = []string{
	"bytes",
	"encoding/base64",
	"encoding/json",
	"errors",
	"fmt",
	"math",
	"math/rand",
	"path",
	"regexp",
	"sort",
	"strconv",
	"strings",
	"time",
	"unicode",
	"unicode/utf8",
}

// Exception is a captured evaluation failure. It is reported back to
// the model as the step result, never thrown out of the engine.
type Exception struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// Runner evaluates snippets, one fresh interpreter per call.
type Runner struct {
	allowed map[string]bool
	symbols interp.Exports
	imports string
}

// NewRunner builds a runner with the default package allowlist.
func NewRunner() *Runner {
	allowed := make(map[string]bool, len(allowedPackages))
	for _, pkg := range allowedPackages {
		allowed[pkg] = true
	}

	// stdlib.Symbols keys have the form "<import path>/<package name>".
	symbols := make(interp.Exports)
	for key, syms := range stdlib.Symbols {
		slash := strings.LastIndex(key, "/")
		if slash > 0 && allowed[key[:slash]] {
			symbols[key] = syms
		}
	}

	var b strings.Builder
	b.WriteString("import (\n")
	for _, pkg := range allowedPackages {
		fmt.Fprintf(&b, "\t%q\n", pkg)
	}
	b.WriteString(")\n")

	return &Runner{allowed: allowed, symbols: symbols, imports: b.String()}
}

// Run evaluates one snippet and serializes its value: strings verbatim,
// no value becomes the literal "undefined" (or whatever the snippet
// printed), everything else is JSON. Failures of any kind come back as
// an Exception.
func (r *Runner) Run(ctx context.Context, code string) (result string, exc *Exception) {
	defer func() {
		if rec := recover(); rec != nil {
			result = ""
			exc = &Exception{Name: "Panic", Message: fmt.Sprint(rec)}
		}
	}()

	if err := r.validateImports(code); err != nil {
		return "", &Exception{Name: "ExecutionError", Message: err.Error()}
	}

	var printed bytes.Buffer
	i := interp.New(interp.Options{Stdout: &printed, Stderr: &printed})
	if err := i.Use(r.symbols); err != nil {
		return "", &Exception{Name: "ExecutionError", Message: fmt.Sprintf("load symbols: %v", err)}
	}
	if _, err := i.Eval(r.imports); err != nil {
		return "", &Exception{Name: "ExecutionError", Message: fmt.Sprintf("prelude: %v", err)}
	}

	// Full programs become callable snippets.
	if strings.Contains(code, "func main(") {
		code = strings.Replace(code, "package main", "", 1)
		code += "\nmain()"
	}

	v, err := i.EvalWithContext(ctx, code)
	if err != nil {
		return "", exceptionFrom(err)
	}

	out := serializeValue(v, strings.TrimRight(printed.String(), "\n"))
	logging.Get(logging.CategoryExecution).Debugw("snippet evaluated", "code_chars", len(code), "result_chars", len(out))
	return out, nil
}

// validateImports scans the snippet for import statements and rejects
// packages outside the allowlist before anything is evaluated.
func (r *Runner) validateImports(code string) error {
	var forbidden []string
	inBlock := false
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case inBlock && strings.HasPrefix(trimmed, ")"):
			inBlock = false
		case inBlock:
			if pkg := importPath(trimmed); pkg != "" && !r.allowed[pkg] {
				forbidden = append(forbidden, pkg)
			}
		case strings.HasPrefix(trimmed, "import "):
			if pkg := importPath(strings.TrimPrefix(trimmed, "import ")); pkg != "" && !r.allowed[pkg] {
				forbidden = append(forbidden, pkg)
			}
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %v (allowed: %v)", forbidden, allowedPackages)
	}
	return nil
}

// importPath extracts the quoted path from an import line, tolerating
// aliases.
func importPath(s string) string {
	start := strings.IndexByte(s, '"')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(s[start+1:], '"')
	if end < 0 {
		return ""
	}
	return s[start+1 : start+1+end]
}

func exceptionFrom(err error) *Exception {
	var p interp.Panic
	switch {
	case errors.As(err, &p):
		return &Exception{Name: "Panic", Message: fmt.Sprint(p.Value), Stack: string(p.Stack)}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &Exception{Name: "Timeout", Message: "code evaluation timed out"}
	default:
		return &Exception{Name: "ExecutionError", Message: err.Error()}
	}
}

func serializeValue(v reflect.Value, printed string) string {
	if v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	if !v.IsValid() {
		if printed != "" {
			return printed
		}
		return "undefined"
	}
	if v.Kind() == reflect.String {
		return v.String()
	}
	if !v.CanInterface() {
		return "undefined"
	}
	b, err := json.Marshal(v.Interface())
	if err != nil {
		return fmt.Sprintf("%v", v.Interface())
	}
	return string(b)
}
