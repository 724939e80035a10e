package router

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"dirigent/internal/agents"
	"dirigent/internal/config"
	"dirigent/internal/mcp"
	"dirigent/internal/skills"
)

// notesBudget caps the memory-notes tail injected into the prompt.
const notesBudget = 2000

const baseInstructions = "You are a helpful assistant. Use the commands below when they help. " +
	"To invoke one, reply with exactly one line: <command>: <arguments> and nothing else. " +
	"We will run it and give you the result; then continue with your answer. Answer concisely."

const codeInstructions = "For calculations or data transformations, reply with role=code-assistant " +
	"on the first line and only Go code after it. The code runs in a restricted interpreter " +
	"and the result is returned to you."

const discordEndpointsContext = `Common paths (relative to the API base), use discord-api: <METHOD> <path>:
- GET /users/@me
- GET /users/@me/guilds
- GET /guilds/{guild_id}/channels
- GET /guilds/{guild_id}/members?limit=100
- GET /users/{user_id}
- GET /channels/{channel_id}
- POST /channels/{channel_id}/messages with body {"content":"..."}`

// promptContext carries the per-turn inputs of system prompt assembly.
type promptContext struct {
	UserName string
	UserID   string
	Skill    string // skill content prepended as extra instructions
	Agent    string // delegate agent prompt, wins over Skill
	Origin   string
}

// systemPrompt assembles the per-turn system message: user context,
// skill or agent instructions, base behavior, the command catalog for
// this origin, and saved notes.
func (r *Router) systemPrompt(ctx context.Context, pc promptContext) string {
	var sb strings.Builder

	switch {
	case pc.UserName != "" && pc.UserID != "":
		fmt.Fprintf(&sb, "You are talking to **%s** (user id: %s). Use this when addressing the user or when calling the chat API about them.\n\n",
			pc.UserName, pc.UserID)
	case pc.UserName != "":
		fmt.Fprintf(&sb, "You are talking to **%s**.\n\n", pc.UserName)
	case pc.UserID != "":
		fmt.Fprintf(&sb, "You are talking to user id %s. Use this when calling the chat API about them.\n\n", pc.UserID)
	}

	switch {
	case pc.Agent != "":
		fmt.Fprintf(&sb, "Additional instructions from agent:\n\n%s\n\n---\n\n", pc.Agent)
	case pc.Skill != "":
		fmt.Fprintf(&sb, "Additional instructions from skill:\n\n%s\n\n---\n\n", pc.Skill)
	}

	sb.WriteString(baseInstructions)
	sb.WriteString("\n\n")
	sb.WriteString(codeInstructions)
	sb.WriteString("\n\n")
	sb.WriteString(r.commandCatalog(ctx, pc.Origin))

	if r.notes != nil {
		if tail := r.notes.Tail(notesBudget); tail != "" {
			fmt.Fprintf(&sb, "\n\nNotes saved in earlier conversations:\n%s", tail)
		}
	}
	return sb.String()
}

// catalog numbers prompt sections the way they accumulate: optional
// commands shift the numbering instead of leaving gaps.
type catalog struct {
	sb  strings.Builder
	num int
}

func (c *catalog) add(text string) {
	c.num++
	fmt.Fprintf(&c.sb, "\n\n%d. %s", c.num, text)
}

// commandCatalog renders the numbered command list for one origin.
// Origin-dependent commands (discord-api, schedule) appear only where
// they can actually run.
func (r *Router) commandCatalog(ctx context.Context, origin string) string {
	c := catalog{}
	c.sb.WriteString("These commands are available:")

	c.add("**fetch-url**: Fetch the text content of a web page. Reply: fetch-url: <full URL> " +
		"(e.g. fetch-url: https://www.example.com). The page text comes back as the result.")
	c.add("**brave-search**: Web search via the Brave Search API. Use for current information, " +
		"facts, multiple sources. Reply: brave-search: <search query>.")

	if ags := r.loadAgents(); len(ags) > 0 {
		c.add("**agent-delegate**: Hand a focused task to a configured agent. The agent runs in " +
			"its own session with its own prompt and model. Reply: agent-delegate: <agent> <task>. " +
			"Available agents:\n" + agents.Catalog(ags))
	}
	if sks := r.loadSkills(); len(sks) > 0 {
		c.add("**skill**: Use a specialized skill for a focused task (summarize text, tell a joke, " +
			"get the date). Each skill runs in a separate session. Reply: skill: <number or topic> " +
			"[optional task]. Available skills:\n" + skills.Catalog(sks))
	}
	if r.run != nil && r.run.Enabled() {
		verbs := r.run.Verbs()
		slices.Sort(verbs)
		c.add(fmt.Sprintf("**run-command**: Run a restricted read-only local command under %s. "+
			"Reply: run-command: <verb> [args] (e.g. run-command: concatenate schedules.json). "+
			"Allowed verbs: %s. Paths must stay under the base directory.",
			r.cfg.RunCmd.BaseDir, strings.Join(verbs, ", ")))
	}

	c.add(fmt.Sprintf("**task files** (under %s): task-create: <topic> <id> <initial content> makes one. "+
		"task-append: <path or id> <content> adds a feedback block. task-status: <path or id> "+
		"wip|finished|unsuccessful sets the status. task-assign: <path or id> "+
		"scheduler|discord|cpu|default hands it over. task-list: [all|pending|wip|finished] lists them, "+
		"task-show: <id or filename> reads one.", r.cfg.Tasks.Root))

	if hasAdmin(r.cfg) {
		c.add("**ollama-api** (model management): list models, server version, running models, " +
			"pull/delete/load/unload a model, generate embeddings. Reply: ollama-api: <action> [args]. " +
			"Actions: list_models, version, running, pull <model>, delete <model>, embed <model> <text>, " +
			"load <model> [keep_alive], unload <model>.")
	}

	if strings.HasPrefix(origin, "discord:") && r.cfg.Channels.Discord.BotToken != "" {
		c.add("**discord-api**: Call the Discord HTTP API to list servers, channels, members, or " +
			"get user info. Reply: discord-api: <METHOD> <path> [json body for POST].\n" + discordEndpointsContext)
	}
	if r.cfg.Redmine.BaseURL != "" && r.cfg.Redmine.APIKey != "" {
		c.add("**redmine-api**: Call the Redmine issue tracker API. Reply: redmine-api: <path> " +
			"(e.g. redmine-api: issues.json?assigned_to_id=me&status_id=open, " +
			"redmine-api: issues/4711.json). Say \"review ticket <id>\" workflows start here.")
	}

	if r.cfg.Scheduler.Enabled && !strings.HasPrefix(origin, "scheduler") {
		c.add("**schedule**: Run a task later or repeatedly. Reply: schedule: every N minutes <task>, " +
			"or schedule: at <timestamp> <task>, or schedule: <cron expression>|<task>. " +
			"The result is posted back to this channel. remove-schedule: <id> deletes one, " +
			"list-schedules: shows them.")
	}

	c.add("**memory-append**: Save a lasting note about the user or an ongoing topic. " +
		"Reply: memory-append: <note>. Saved notes appear in future conversations.")

	if r.mcp != nil && r.mcp.Configured() {
		if tools, err := r.mcp.ListTools(ctx); err != nil {
			r.log.Debugw("mcp tool listing failed, omitting from prompt", "error", err)
		} else if len(tools) > 0 {
			c.add(fmt.Sprintf("**mcp** (%d tools from the configured MCP server): Use when the task "+
				"matches a tool below. Reply: mcp: <tool_name> <arguments>. Arguments can be JSON "+
				"(mcp: get_weather {\"location\": \"NYC\"}) or plain text.\n\nAvailable MCP tools:\n%s",
				len(tools), mcp.Catalog(tools)))
		}
	}

	return c.sb.String()
}

// hasAdmin reports whether ollama-api can be served by the configured
// provider. Kept close to the catalog so the two stay in step.
func hasAdmin(cfg *config.Config) bool {
	return cfg.Model.Provider == config.ProviderOllama
}
