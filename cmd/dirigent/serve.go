package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"dirigent/internal/channel"
	"dirigent/internal/logging"
	"dirigent/internal/loopprotect"
	"dirigent/internal/router"
	"dirigent/internal/scheduler"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// serveCmd runs the chat listeners and the scheduler
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat listeners and the scheduler",
	Long: `Connects the configured chat channels (Discord polling, Telegram long
polling), starts the scheduler, and serves until interrupted.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	log := logging.Get(logging.CategoryChannel)
	g, gctx := errgroup.WithContext(ctx)
	started := 0

	var discordListener *channel.Discord
	if cfg.Channels.Discord.Enabled {
		if cfg.Channels.Discord.BotToken == "" {
			return fmt.Errorf("discord channel enabled without a bot token (set DISCORD_BOT_TOKEN)")
		}
		discordListener = channel.NewDiscord(cfg, comps.discord, comps.router, comps.drops)
		g.Go(func() error { return discordListener.Run(gctx) })
		started++
	}

	if cfg.Channels.Telegram.Enabled {
		if cfg.Channels.Telegram.BotToken == "" {
			return fmt.Errorf("telegram channel enabled without a bot token (set TELEGRAM_BOT_TOKEN)")
		}
		tg, err := channel.NewTelegram(cfg, comps.router)
		if err != nil {
			return err
		}
		g.Go(func() error { return tg.Run(gctx) })
		started++
	}

	if cfg.Scheduler.Enabled {
		runner := scheduler.NewRunner(comps.schedules, scheduleTurn(comps.router, discordListener))
		g.Go(func() error { runner.Run(gctx); return nil })
		started++
	}

	if started == 0 {
		return fmt.Errorf("nothing to serve: enable a channel or the scheduler in %s", configPath)
	}

	summarizer := loopprotect.NewSummarizer(comps.drops, cfg.GetLoopSummaryInterval(), nil)
	g.Go(func() error { summarizer.Run(gctx); return nil })

	log.Infow("dirigent serving",
		"discord", cfg.Channels.Discord.Enabled,
		"telegram", cfg.Channels.Telegram.Enabled,
		"scheduler", cfg.Scheduler.Enabled)

	err = g.Wait()
	summarizer.Flush()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// scheduleTurn runs a due schedule through the router and routes the
// answer back to the chat channel that asked for it, when one is
// recorded on the entry.
func scheduleTurn(rtr *router.Router, discordListener *channel.Discord) scheduler.RunFunc {
	log := logging.Get(logging.CategoryScheduler)
	return func(ctx context.Context, e scheduler.Entry) {
		answer, err := rtr.Turn(ctx, router.Request{
			Session:  "scheduler:" + e.ID,
			UserName: "scheduler",
			Content:  e.Task,
		})
		if err != nil {
			log.Warnw("scheduled task failed", "id", e.ID, "error", err)
			return
		}
		if e.ReplyToChannelID == "" || answer == "" {
			return
		}
		if discordListener == nil {
			log.Warnw("schedule reply dropped, discord channel not running",
				"id", e.ID, "channel", e.ReplyToChannelID)
			return
		}
		if err := discordListener.Send(ctx, e.ReplyToChannelID, answer); err != nil {
			log.Warnw("schedule reply failed", "id", e.ID, "error", err)
		}
	}
}
