// Package channel connects chat surfaces to the router: a polling
// Discord listener and a long-polling Telegram listener. Each maps
// inbound messages onto router sessions, splits replies to fit the
// surface's message limit, and reports loop-protection drops.
package channel

import (
	"context"
	"strings"
)

// Modes decide which messages in a channel get a reply.
const (
	// ModeMentionOnly replies only when the bot is mentioned.
	ModeMentionOnly = "mention-only"

	// ModeAllMessages replies to every human message. Bots are ignored.
	ModeAllMessages = "all-messages"

	// ModeHavingFun also replies to other bots, loop-protected.
	ModeHavingFun = "having-fun"
)

// Listener is one chat surface. Run blocks until ctx ends. Send posts
// text to a channel or chat on that surface, splitting as needed; the
// scheduler uses it to deliver task results.
type Listener interface {
	Name() string
	Run(ctx context.Context) error
	Send(ctx context.Context, target, text string) error
}

// NormalizeMode maps configured mode spellings onto the canonical
// constants. Unknown values fall back to mention-only.
func NormalizeMode(s string) string {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-") {
	case ModeAllMessages:
		return ModeAllMessages
	case ModeHavingFun:
		return ModeHavingFun
	default:
		return ModeMentionOnly
	}
}
