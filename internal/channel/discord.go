package channel

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"dirigent/internal/config"
	"dirigent/internal/discord"
	"dirigent/internal/logging"
	"dirigent/internal/loopprotect"
	"dirigent/internal/router"
	"dirigent/internal/sanitize"
)

// discordMaxMessageChars is the hard per-message limit of the API.
const discordMaxMessageChars = 2000

// chunkDelay spaces out multi-part replies.
const chunkDelay = 300 * time.Millisecond

// Discord polls configured channels over the REST API and feeds new
// messages through the router. Each channel has a mode deciding which
// messages get a reply.
type Discord struct {
	cfg    config.DiscordChannelConfig
	client *discord.Client
	router *router.Router
	drops  *loopprotect.Counters
	log    *zap.SugaredLogger

	pollInterval time.Duration
	apiTimeout   time.Duration

	me      discord.User
	lastID  map[string]string
	botRuns map[string]int
}

// NewDiscord builds the listener. drops may be nil when loop
// protection accounting is not wired.
func NewDiscord(cfg *config.Config, client *discord.Client, rtr *router.Router, drops *loopprotect.Counters) *Discord {
	if drops == nil {
		drops = loopprotect.New()
	}
	return &Discord{
		cfg:          cfg.Channels.Discord,
		client:       client,
		router:       rtr,
		drops:        drops,
		log:          logging.Get(logging.CategoryChannel),
		pollInterval: cfg.GetDiscordPollInterval(),
		apiTimeout:   cfg.GetDiscordAPITimeout(),
		lastID:       make(map[string]string),
		botRuns:      make(map[string]int),
	}
}

func (d *Discord) Name() string { return "discord" }

// Run resolves the bot's own user, then polls every configured channel
// until ctx ends. The first poll of a channel only sets the watermark
// so the backlog is not answered.
func (d *Discord) Run(ctx context.Context) error {
	if err := d.connect(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for channelID, mode := range d.cfg.Channels {
				d.poll(ctx, channelID, NormalizeMode(mode))
			}
		}
	}
}

func (d *Discord) connect(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, d.apiTimeout)
		me, err := d.client.Me(cctx)
		cancel()
		if err == nil {
			d.me = me
			d.log.Infow("discord connected",
				"bot", me.Username, "id", me.ID, "channels", len(d.cfg.Channels))
			return nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}
	return fmt.Errorf("discord connect: %w", lastErr)
}

func (d *Discord) poll(ctx context.Context, channelID, mode string) {
	cctx, cancel := context.WithTimeout(ctx, d.apiTimeout)
	msgs, err := d.client.Messages(cctx, channelID, d.lastID[channelID], 20)
	cancel()
	if err != nil {
		d.log.Warnw("discord poll failed", "channel", channelID, "error", err)
		return
	}
	if len(msgs) == 0 {
		return
	}

	first := d.lastID[channelID] == ""
	d.lastID[channelID] = msgs[len(msgs)-1].ID
	if first {
		d.log.Debugw("discord watermark set", "channel", channelID, "skipped", len(msgs))
		return
	}

	for _, m := range msgs {
		d.handle(ctx, channelID, mode, m)
	}
}

func (d *Discord) handle(ctx context.Context, channelID, mode string, m discord.Message) {
	if m.Author.ID == d.me.ID {
		return
	}

	content := m.Content
	for _, tag := range []string{"<@" + d.me.ID + ">", "<@!" + d.me.ID + ">"} {
		content = strings.ReplaceAll(content, tag, "")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}

	mentioned := slices.ContainsFunc(m.Mentions, func(u discord.User) bool {
		return u.ID == d.me.ID
	})

	if m.Author.Bot {
		if mode != ModeHavingFun {
			return
		}
		if d.botRuns[channelID] >= d.maxBotRuns() {
			d.drops.RecordDrop("discord:" + channelID)
			return
		}
	} else {
		if mode == ModeMentionOnly && !mentioned {
			return
		}
		d.botRuns[channelID] = 0
	}

	d.log.Infow("discord message",
		"channel", channelID, "author", m.Author.Username, "bot", m.Author.Bot,
		"content", logging.Ellipse(content, 200))

	answer, err := d.router.Turn(ctx, router.Request{
		Session:  "discord:" + channelID,
		UserName: m.Author.Username,
		UserID:   m.Author.ID,
		Content:  content,
	})
	if err != nil {
		d.log.Warnw("discord turn failed", "channel", channelID, "error", err)
		answer = sanitize.Sanitize(sanitize.SourceOllama, err).Message()
	}
	if strings.TrimSpace(answer) == "" {
		return
	}

	if err := d.Send(ctx, channelID, answer); err != nil {
		d.log.Warnw("discord send failed", "channel", channelID,
			"detail", sanitize.Sanitize(sanitize.SourceChatSend, err).Message(),
			"error", err)
		return
	}
	if m.Author.Bot {
		d.botRuns[channelID]++
	}
}

func (d *Discord) maxBotRuns() int {
	if d.cfg.MaxConsecutiveBotReplies > 0 {
		return d.cfg.MaxConsecutiveBotReplies
	}
	return 5
}

// Send posts text to a channel, split to fit the message limit.
func (d *Discord) Send(ctx context.Context, channelID, text string) error {
	chunks := Split(text, discordMaxMessageChars)
	for i, chunk := range chunks {
		cctx, cancel := context.WithTimeout(ctx, d.apiTimeout)
		_, err := d.client.SendMessage(cctx, channelID, chunk)
		cancel()
		if err != nil {
			return fmt.Errorf("send part %d/%d: %w", i+1, len(chunks), err)
		}
		if i < len(chunks)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(chunkDelay):
			}
		}
	}
	return nil
}
