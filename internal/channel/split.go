package channel

import "strings"

// Split breaks text into chunks of at most max characters, preferring
// to break right after the last newline inside the window. Chunks
// concatenate back to the original text.
func Split(text string, max int) []string {
	if text == "" {
		return nil
	}
	if max <= 0 {
		return []string{text}
	}

	var out []string
	remaining := text
	for remaining != "" {
		runes := []rune(remaining)
		if len(runes) <= max {
			out = append(out, remaining)
			break
		}

		head := string(runes[:max])
		cut := strings.LastIndexByte(head, '\n') + 1
		if cut <= 0 || cut >= len(head) {
			cut = len(head)
		}
		out = append(out, remaining[:cut])
		remaining = remaining[cut:]
	}
	return out
}
