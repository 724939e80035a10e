// Package sanitize turns raw collaborator failures into short, safe,
// user-facing strings. Every error that reaches conversation content
// passes through here; raw bodies, stack traces, and JSON stay in the
// server-side logs. Rules are keyed by the failure's source so new
// collaborators register a rule instead of scattering conditionals
// through the dispatcher.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Source identifies where a failure came from. The rule table is keyed
// by it.
type Source string

const (
	SourceFetch      Source = "fetch"
	SourceImageFetch Source = "image-fetch"
	SourceChatSend   Source = "chat-send"
	SourceRedmine    Source = "redmine"
	SourceDiscordAPI Source = "discord-api"
	SourceOllama     Source = "ollama"
	SourceMCP        Source = "mcp"
	SourceGeneric    Source = "generic"
)

// Result is the sanitized outcome of a failure.
type Result struct {
	// UserMessage is safe to append to conversation content: one line,
	// no braces, no control characters.
	UserMessage string

	// Hint optionally redirects the model to a better command.
	Hint string

	// Skip indicates no user-facing message should be added at all.
	Skip bool
}

// Message joins the user message and hint into one line.
func (r Result) Message() string {
	if r.Hint == "" {
		return r.UserMessage
	}
	return r.UserMessage + " " + r.Hint
}

// Rule converts one raw error into a Result. Rules may return raw text
// fragments; Sanitize cleans the final strings.
type Rule func(err error) Result

var (
	mu    sync.RWMutex
	rules = map[Source]Rule{}
)

// Register installs the rule for a source, replacing any existing one.
func Register(src Source, r Rule) {
	mu.Lock()
	defer mu.Unlock()
	rules[src] = r
}

// Sanitize classifies err under the source's rule and enforces the
// output invariant on the result. A nil err yields an empty Result.
func Sanitize(src Source, err error) Result {
	if err == nil {
		return Result{}
	}

	mu.RLock()
	rule := rules[src]
	mu.RUnlock()
	if rule == nil {
		rule = genericRule
	}

	res := rule(err)
	res.UserMessage = Clean(res.UserMessage)
	res.Hint = Clean(res.Hint)
	return res
}

// maxUserMessage bounds sanitized output length.
const maxUserMessage = 240

// Clean enforces the output invariant on one string: no newlines or
// control characters, no braces, bounded length.
func Clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteRune(' ')
		case r < 0x20 || r == 0x7f:
			// dropped
		case r == '{' || r == '}':
			// dropped
		default:
			b.WriteRune(r)
		}
	}

	out := strings.Join(strings.Fields(b.String()), " ")
	runes := []rune(out)
	if len(runes) > maxUserMessage {
		out = string(runes[:maxUserMessage]) + "..."
	}
	return out
}

// HTTPError is a failed HTTP exchange with a collaborator. Collaborator
// clients return it so rules can branch on the status code; Error()
// keeps the raw body for server-side logs.
type HTTPError struct {
	StatusCode int
	Body       string
	URL        string
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 500 {
		body = body[:500] + "..."
	}
	return fmt.Sprintf("http %d from %s: %s", e.StatusCode, e.URL, body)
}

var issueRef = regexp.MustCompile(`(?i)/issues?/(\d+)`)

// IssueRef extracts a ticket number from an issue-tracker-shaped URL
// or path, e.g. https://tracker.example.com/issues/4711.
func IssueRef(s string) (string, bool) {
	m := issueRef.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}
