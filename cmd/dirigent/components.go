package main

import (
	"context"
	"fmt"

	"dirigent/internal/agents"
	"dirigent/internal/brave"
	"dirigent/internal/config"
	"dirigent/internal/discord"
	"dirigent/internal/dispatch"
	"dirigent/internal/execution"
	"dirigent/internal/fetch"
	"dirigent/internal/history"
	"dirigent/internal/logging"
	"dirigent/internal/loopprotect"
	"dirigent/internal/mcp"
	"dirigent/internal/memory"
	"dirigent/internal/model"
	"dirigent/internal/redmine"
	"dirigent/internal/router"
	"dirigent/internal/runcmd"
	"dirigent/internal/scheduler"
	"dirigent/internal/skills"
	"dirigent/internal/tasks"
)

// components is the wired runtime shared by serve, ask, and console.
type components struct {
	client    model.Client
	router    *router.Router
	archive   *history.Archive
	discord   *discord.Client
	schedules *scheduler.Store
	tasks     *tasks.Store
	drops     *loopprotect.Counters
}

// buildComponents constructs the model client, the collaborators, the
// dispatcher, the execution engine, and the router on top of them.
func buildComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	client, err := model.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("model client: %w", err)
	}

	var archive *history.Archive
	if cfg.History.ArchivePath != "" {
		archive, err = history.OpenArchive(cfg.History.ArchivePath)
		if err != nil {
			logging.Get(logging.CategoryStore).Warnw("session archive unavailable", "error", err)
			archive = nil
		}
	}

	taskStore, err := tasks.NewStore(cfg.Tasks.Root)
	if err != nil {
		return nil, fmt.Errorf("task store: %w", err)
	}

	schedStore := scheduler.NewStore(cfg.Scheduler.File)
	notes := memory.New(cfg.Memory.File)
	run := runcmd.New(cfg.RunCmd.Enabled, cfg.RunCmd.BaseDir, cfg.RunCmd.AgentRunner)
	mcpClient := mcp.New(cfg.MCP.URL, cfg.MCP.Stdio, nil)
	discordClient := discord.New(nil, "", cfg.Channels.Discord.BotToken)

	var admin model.AdminAPI
	if a, ok := client.(model.AdminAPI); ok {
		admin = a
	}

	loadSkills := func() []skills.Skill { return skills.Load(cfg.Skills.Dir) }
	loadAgents := func() []agents.Agent { return agents.Load(cfg.Agents.Dir) }

	dispatcher := dispatch.New(cfg, dispatch.Deps{
		Fetch:     fetch.New(nil, cfg.Fetch.MaxChars),
		Brave:     brave.New(nil, "", cfg.Brave.APIKey, cfg.Brave.Count),
		Discord:   discordClient,
		Redmine:   redmine.New(nil, cfg.Redmine.BaseURL, cfg.Redmine.APIKey),
		Run:       run,
		Tasks:     taskStore,
		Schedules: schedStore,
		Notes:     notes,
		MCP:       mcpClient,
		Admin:     admin,
		Skills:    loadSkills,
		Agents:    loadAgents,
		SubTurn:   router.OneShot(client),
	})

	engine := execution.NewEngine(
		client,
		execution.NewRunner(),
		execution.NewLog(cfg.Execution.LogFieldMax, cfg.Execution.LogEntryMax),
		cfg.Execution.MaxIterations,
		cfg.GetExecTimeout(),
	)

	rtr := router.New(cfg, router.Deps{
		Client:     client,
		Dispatcher: dispatcher,
		Engine:     engine,
		Archive:    archive,
		Notes:      notes,
		MCP:        mcpClient,
		Run:        run,
		Skills:     loadSkills,
		Agents:     loadAgents,
	})

	return &components{
		client:    client,
		router:    rtr,
		archive:   archive,
		discord:   discordClient,
		schedules: schedStore,
		tasks:     taskStore,
		drops:     loopprotect.New(),
	}, nil
}

// Close tears down the sessions and the archive.
func (c *components) Close() {
	c.router.Shutdown()
	if c.archive != nil {
		_ = c.archive.Close()
	}
}
