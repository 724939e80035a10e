package model

import "strings"

// roleMarker is the first line the system prompt asks the backend to
// emit when it wants code executed.
const roleMarker = "role=code-assistant"

// Reply is one parsed backend answer. Either FinalAnswer is set, or
// NeedsExecution is true and Code carries the snippet to run.
// Intermediate keeps the raw (cleaned) reply for history.
type Reply struct {
	FinalAnswer    string
	NeedsExecution bool
	Code           string
	Intermediate   string
}

// ParseReply classifies raw backend output. A reply is a code request
// when it opens with the role marker, or when it plainly looks like a
// code snippet. Anything else is a final conversational answer.
func ParseReply(raw string) Reply {
	// Smaller backends escape newlines now and then.
	content := strings.ReplaceAll(raw, "\\n", "\n")
	trimmed := strings.TrimSpace(content)

	marked := strings.HasPrefix(strings.ToLower(trimmed), roleMarker)
	if !marked && !looksLikeCode(trimmed) {
		return Reply{FinalAnswer: trimmed}
	}

	code := trimmed
	if marked {
		if _, rest, found := strings.Cut(trimmed, "\n"); found {
			code = rest
		} else {
			code = trimmed[len(roleMarker):]
		}
	}
	code = stripFences(code)
	code = unwrapPrintCall(code)
	code = strings.TrimSpace(code)

	if code == "" {
		return Reply{FinalAnswer: trimmed}
	}
	return Reply{NeedsExecution: true, Code: code, Intermediate: trimmed}
}

// looksLikeCode is the fallback for backends that drop the role marker
// and answer with a bare snippet.
func looksLikeCode(s string) bool {
	if strings.HasPrefix(s, "```") {
		return true
	}
	lower := strings.ToLower(s)
	return strings.Contains(lower, "fmt.println") ||
		strings.Contains(lower, "fmt.sprintf") ||
		strings.Contains(lower, "time.now()") ||
		strings.Contains(s, ":=") ||
		strings.Contains(lower, "func main(")
}

func stripFences(s string) string {
	for _, fence := range []string{"```go", "```golang", "```"} {
		s = strings.ReplaceAll(s, fence, "")
	}
	return strings.TrimSpace(s)
}

// unwrapPrintCall rewrites a bare fmt.Println(expr) into expr so the
// interpreter evaluates the expression and its value comes back as the
// result.
func unwrapPrintCall(s string) string {
	trimmed := strings.TrimSpace(s)
	for _, call := range []string{"fmt.Println(", "println("} {
		if !strings.HasPrefix(trimmed, call) {
			continue
		}
		inner, rest, ok := matchParens(trimmed[len(call):])
		if ok && strings.TrimSpace(rest) == "" {
			return strings.TrimSpace(inner)
		}
	}
	return s
}

// matchParens scans s for the closing paren balancing an already-open
// one, returning the text inside and whatever follows.
func matchParens(s string) (inner, rest string, ok bool) {
	depth := 1
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[:i], s[i+1:], true
			}
		}
	}
	return "", "", false
}
