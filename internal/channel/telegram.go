package channel

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"

	"dirigent/internal/config"
	"dirigent/internal/logging"
	"dirigent/internal/router"
	"dirigent/internal/sanitize"
)

// telegramMaxMessageChars stays under the API's 4096 limit with room
// for entity expansion.
const telegramMaxMessageChars = 3900

// Telegram listens via long polling and feeds messages through the
// router. An allowlist of user IDs or usernames restricts who can talk
// to the bot; empty allows everyone.
type Telegram struct {
	cfg    config.TelegramChannelConfig
	bot    *telego.Bot
	router *router.Router
	log    *zap.SugaredLogger
}

// NewTelegram builds the listener and validates the bot token shape.
func NewTelegram(cfg *config.Config, rtr *router.Router) (*Telegram, error) {
	bot, err := telego.NewBot(cfg.Channels.Telegram.BotToken, telego.WithDiscardLogger())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{
		cfg:    cfg.Channels.Telegram,
		bot:    bot,
		router: rtr,
		log:    logging.Get(logging.CategoryChannel),
	}, nil
}

func (t *Telegram) Name() string { return "telegram" }

// Run consumes long-polling updates until ctx ends.
func (t *Telegram) Run(ctx context.Context) error {
	updates, err := t.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{Timeout: 30})
	if err != nil {
		return fmt.Errorf("telegram long polling: %w", err)
	}
	t.log.Infow("telegram connected", "allow_from", len(t.cfg.AllowFrom))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			t.handle(ctx, update.Message)
		}
	}
}

func (t *Telegram) handle(ctx context.Context, msg *telego.Message) {
	from := msg.From
	if from == nil || from.IsBot {
		return
	}
	if !allowedFrom(t.cfg.AllowFrom, from.ID, from.Username) {
		t.log.Debugw("telegram sender not in allowlist", "user", from.ID, "username", from.Username)
		return
	}

	content := msg.Text
	if content == "" {
		content = msg.Caption
	}
	if strings.TrimSpace(content) == "" {
		return
	}

	chatID := msg.Chat.ID
	if err := t.bot.SendChatAction(ctx, tu.ChatAction(tu.ID(chatID), telego.ChatActionTyping)); err != nil {
		t.log.Debugw("telegram chat action failed", "chat", chatID, "error", err)
	}

	name := from.Username
	if name == "" {
		name = from.FirstName
	}
	t.log.Infow("telegram message", "chat", chatID, "from", name,
		"content", logging.Ellipse(content, 200))

	answer, err := t.router.Turn(ctx, router.Request{
		Session:  fmt.Sprintf("telegram:%d", chatID),
		UserName: name,
		UserID:   strconv.FormatInt(from.ID, 10),
		Content:  content,
	})
	if err != nil {
		t.log.Warnw("telegram turn failed", "chat", chatID, "error", err)
		answer = sanitize.Sanitize(sanitize.SourceOllama, err).Message()
	}
	if strings.TrimSpace(answer) == "" {
		return
	}

	if err := t.Send(ctx, strconv.FormatInt(chatID, 10), answer); err != nil {
		t.log.Warnw("telegram send failed", "chat", chatID,
			"detail", sanitize.Sanitize(sanitize.SourceChatSend, err).Message(),
			"error", err)
	}
}

// allowedFrom checks a sender against the allowlist. Entries match the
// numeric user ID or the username, case-insensitively.
func allowedFrom(allow []string, userID int64, username string) bool {
	if len(allow) == 0 {
		return true
	}
	id := strconv.FormatInt(userID, 10)
	for _, a := range allow {
		if a == id || (username != "" && strings.EqualFold(a, username)) {
			return true
		}
	}
	return false
}

// Send posts text to a chat, split to fit the message limit.
func (t *Telegram) Send(ctx context.Context, target, text string) error {
	chatID, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", target, err)
	}
	for i, chunk := range Split(text, telegramMaxMessageChars) {
		if _, err := t.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), chunk)); err != nil {
			return fmt.Errorf("send part %d: %w", i+1, err)
		}
	}
	return nil
}
