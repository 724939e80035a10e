package sanitize

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

func init() {
	Register(SourceFetch, fetchRule)
	Register(SourceImageFetch, imageFetchRule)
	Register(SourceChatSend, chatSendRule)
	Register(SourceRedmine, redmineRule)
	Register(SourceDiscordAPI, discordAPIRule)
	Register(SourceOllama, ollamaRule)
	Register(SourceMCP, mcpRule)
	Register(SourceGeneric, genericRule)
}

// httpError unwraps an HTTPError from err.
func httpError(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// ticketHint builds the redirect hint for issue-tracker-shaped URLs.
func ticketHint(s string) string {
	id, ok := IssueRef(s)
	if !ok {
		return ""
	}
	return fmt.Sprintf("Use redmine-api, or say: review ticket %s.", id)
}

func fetchRule(err error) Result {
	hint := ticketHint(err.Error())

	if he, ok := httpError(err); ok {
		if hint == "" {
			hint = ticketHint(he.URL)
		}
		return Result{
			UserMessage: fmt.Sprintf("The page could not be fetched (HTTP %d).", he.StatusCode),
			Hint:        hint,
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return Result{UserMessage: "The site's address could not be resolved.", Hint: hint}
	}
	if isTimeout(err) {
		return Result{UserMessage: "The page took too long to respond.", Hint: hint}
	}
	return Result{UserMessage: "The page could not be fetched.", Hint: hint}
}

func imageFetchRule(err error) Result {
	if he, ok := httpError(err); ok && he.StatusCode >= 400 && he.StatusCode < 500 {
		// A missing image is not worth a conversation entry.
		return Result{Skip: true}
	}
	return Result{UserMessage: "The image could not be fetched."}
}

func chatSendRule(err error) Result {
	// Scope and permission details stay in the server log.
	return Result{UserMessage: "The message could not be sent."}
}

func redmineRule(err error) Result {
	he, ok := httpError(err)
	if !ok {
		if isTimeout(err) {
			return Result{UserMessage: "The tracker did not respond in time."}
		}
		return Result{UserMessage: "The tracker request failed."}
	}

	switch {
	case he.StatusCode == 422:
		body := strings.ToLower(he.Body)
		if strings.Contains(body, "updated") || strings.Contains(body, "date") {
			return Result{UserMessage: "The query wasn't accepted; try a specific date or range."}
		}
		return Result{UserMessage: "The tracker rejected the request; check the field values."}
	case he.StatusCode == 401 || he.StatusCode == 403:
		return Result{UserMessage: "The tracker refused access."}
	case he.StatusCode == 404:
		return Result{UserMessage: "That ticket or path doesn't exist."}
	default:
		return Result{UserMessage: fmt.Sprintf("The tracker request failed (HTTP %d).", he.StatusCode)}
	}
}

func discordAPIRule(err error) Result {
	if he, ok := httpError(err); ok {
		return Result{UserMessage: fmt.Sprintf("The Discord API call failed (HTTP %d).", he.StatusCode)}
	}
	if isTimeout(err) {
		return Result{UserMessage: "The Discord API did not respond in time."}
	}
	return Result{UserMessage: "The Discord API call failed."}
}

func ollamaRule(err error) Result {
	if he, ok := httpError(err); ok {
		switch he.StatusCode {
		case 401, 403:
			return Result{UserMessage: "The model backend rejected the request; check the API key."}
		case 404:
			return Result{UserMessage: "That model isn't available on the backend."}
		default:
			return Result{UserMessage: fmt.Sprintf("The model backend call failed (HTTP %d).", he.StatusCode)}
		}
	}
	if isTimeout(err) {
		return Result{UserMessage: "The model backend did not respond in time."}
	}
	return Result{UserMessage: "The model backend call failed."}
}

func mcpRule(err error) Result {
	if isTimeout(err) {
		return Result{UserMessage: "The tool server did not respond in time."}
	}
	return Result{UserMessage: "The tool call failed."}
}

func genericRule(err error) Result {
	if isTimeout(err) {
		return Result{UserMessage: "The operation timed out."}
	}
	return Result{UserMessage: "The operation failed."}
}
