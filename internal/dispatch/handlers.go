package dispatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"dirigent/internal/agents"
	"dirigent/internal/directive"
	"dirigent/internal/mcp"
	"dirigent/internal/model"
	"dirigent/internal/redmine"
	"dirigent/internal/runcmd"
	"dirigent/internal/sanitize"
	"dirigent/internal/scheduler"
	"dirigent/internal/skills"
	"dirigent/internal/tasks"
)

func (d *Dispatcher) fetchURL(ctx context.Context, dir directive.Directive) Result {
	if res, blocked := guardFetchURL(dir.Args); blocked {
		return res
	}
	if d.deps.Fetch == nil {
		return reject("URL fetching is not available. Answer without fetching.", "fetch client not configured")
	}

	ctx, cancel := callCtx(ctx, d.cfg.GetFetchTimeout())
	defer cancel()

	body, err := d.deps.Fetch.Fetch(ctx, dir.Args)
	if err != nil {
		var he *sanitize.HTTPError
		if errors.As(err, &he) && he.StatusCode == 401 {
			return Result{
				Success:        false,
				UserMessage:    sanitize.Sanitize(sanitize.SourceFetch, err).Message(),
				InternalDetail: err.Error(),
				Feedback:       "That URL returned 401 Unauthorized. Do not try another URL. Answer based on what you know.",
			}
		}
		return fail(sanitize.SourceFetch, err, func(msg string) string {
			return msg + " Answer without this result."
		})
	}

	return ok(body,
		fmt.Sprintf("Fetched %s (%d chars).", dir.Args, len(body)),
		fmt.Sprintf("Here is the page content:\n\n%s\n\nPlease answer the user's question based on this content.", body),
	)
}

func (d *Dispatcher) braveSearch(ctx context.Context, dir directive.Directive) Result {
	if d.deps.Brave == nil || !d.deps.Brave.Configured() {
		return reject(
			"Brave Search is not configured (no BRAVE_API_KEY set). Answer without search results.",
			"brave client not configured",
		)
	}

	ctx, cancel := callCtx(ctx, d.cfg.GetBraveTimeout())
	defer cancel()

	results, err := d.deps.Brave.Search(ctx, dir.Args)
	if err != nil {
		return fail(sanitize.SourceGeneric, err, func(msg string) string {
			return "The web search failed: " + msg + " Answer without search results."
		})
	}

	return ok(results,
		fmt.Sprintf("Searched the web for %q.", dir.Args),
		fmt.Sprintf("Brave Search results:\n\n%s\n\nUse these to answer the user's question.", results),
	)
}

func (d *Dispatcher) runCommand(ctx context.Context, dir directive.Directive) Result {
	if d.deps.Run == nil || !d.deps.Run.Enabled() {
		return reject(
			"Local commands are not available (disabled in the configuration). Answer without running local commands.",
			"runcmd disabled",
		)
	}

	ctx, cancel := callCtx(ctx, d.cfg.GetExecTimeout())
	defer cancel()

	output, err := d.deps.Run.Run(ctx, dir.Args)
	switch {
	case errors.Is(err, runcmd.ErrNotAllowed):
		return reject(
			fmt.Sprintf("That command is not in the allowlist. Allowed: %s. Answer without running it.",
				strings.Join(d.deps.Run.Verbs(), ", ")),
			err.Error(),
		)
	case errors.Is(err, runcmd.ErrEmpty):
		return reject("run-command requires a command line.", err.Error())
	case err != nil:
		return fail(sanitize.SourceGeneric, err, func(msg string) string {
			return "The command failed: " + msg + " Answer the user's question without this result."
		})
	}

	verb, _, _ := strings.Cut(strings.TrimSpace(dir.Args), " ")
	return ok(output,
		fmt.Sprintf("Ran %s.", verb),
		fmt.Sprintf("Here is the command output:\n\n%s\n\nUse this to answer the user's question.", output),
	)
}

func (d *Dispatcher) discordAPI(ctx context.Context, dir directive.Directive) Result {
	if d.deps.Discord == nil {
		return reject(
			"The Discord API is not configured (no bot token). Answer without this result.",
			"discord client not configured",
		)
	}

	ctx, cancel := callCtx(ctx, d.cfg.GetDiscordAPITimeout())
	defer cancel()

	body, err := d.deps.Discord.Get(ctx, dir.Args)
	if err != nil {
		return fail(sanitize.SourceDiscordAPI, err, func(msg string) string {
			return msg + " Answer without this result."
		})
	}

	return ok(body,
		fmt.Sprintf("Called the Discord API (%s).", dir.Args),
		fmt.Sprintf("Discord API result:\n\n%s\n\nUse this to answer the user's question.", body),
	)
}

func (d *Dispatcher) redmineAPI(ctx context.Context, dir directive.Directive) Result {
	if d.deps.Redmine == nil || !d.deps.Redmine.Configured() {
		return reject(
			"Redmine is not configured (set REDMINE_URL and REDMINE_API_KEY). Answer without this result.",
			"redmine client not configured",
		)
	}

	ctx, cancel := callCtx(ctx, d.cfg.GetRedmineTimeout())
	defer cancel()

	path := dir.Args
	if d.cfg.Redmine.DateFilterFormat == redmine.DateFormatOperator {
		path = redmine.NormalizePath(path, time.Now())
	}
	body, err := d.deps.Redmine.Get(ctx, path)
	if err != nil {
		return fail(sanitize.SourceRedmine, err, func(msg string) string {
			return msg + " Answer without this result."
		})
	}

	return ok(body,
		fmt.Sprintf("Called the Redmine API (%s).", path),
		fmt.Sprintf("Redmine API result:\n\n%s\n\nUse this to answer the user's question.", body),
	)
}

func (d *Dispatcher) ollamaAPI(ctx context.Context, dir directive.Directive) Result {
	if d.deps.Admin == nil {
		return reject(
			"Model administration is only available with the ollama provider. Answer without this result.",
			"admin API not available",
		)
	}

	ctx, cancel := callCtx(ctx, d.cfg.GetModelTimeout())
	defer cancel()

	out, err := d.deps.Admin.Admin(ctx, dir.Args)
	if err != nil {
		var he *sanitize.HTTPError
		if errors.As(err, &he) || errors.Is(err, context.DeadlineExceeded) {
			return fail(sanitize.SourceOllama, err, func(msg string) string {
				return msg + " Answer without this result."
			})
		}
		// Local validation, worded safely by the admin API itself.
		return reject(fmt.Sprintf("Ollama API: %s. Answer without this result.", err), err.Error())
	}

	return ok(out,
		"Ollama API call completed.",
		fmt.Sprintf("Ollama API result:\n\n%s\n\nUse this to answer the user's question.", out),
	)
}

// selectorAndTask splits "3 summarize this" into the selector and the
// optional task text.
func selectorAndTask(args string) (string, string) {
	sel, task, _ := strings.Cut(strings.TrimSpace(args), " ")
	return sel, strings.TrimSpace(task)
}

func (d *Dispatcher) skill(ctx context.Context, dir directive.Directive, question string) Result {
	var loaded []skills.Skill
	if d.deps.Skills != nil {
		loaded = d.deps.Skills()
	}
	if len(loaded) == 0 {
		return reject("No skills are available. Answer without using a skill.", "no skills loaded")
	}

	selector, task := selectorAndTask(dir.Args)
	skill, found := skills.Find(loaded, selector)
	if !found {
		names := make([]string, len(loaded))
		for i, s := range loaded {
			names[i] = fmt.Sprintf("%d-%s", s.Number, s.Topic)
		}
		return reject(
			fmt.Sprintf("Unknown skill %q. Available skills: %s. Answer without using a skill.",
				selector, strings.Join(names, ", ")),
			"unknown skill selector",
		)
	}
	if d.deps.SubTurn == nil {
		return reject("Skills are not available here. Answer without using a skill.", "no sub-turn runner")
	}

	// A skill runs in a fresh session with the skill content as the
	// system prompt and no main-session context.
	if task == "" {
		task = question
	}
	label := fmt.Sprintf("%d-%s", skill.Number, skill.Topic)

	ctx, cancel := callCtx(ctx, d.cfg.GetModelTimeout())
	defer cancel()

	result, err := d.deps.SubTurn(ctx, skill.Content, task, model.Options{})
	if err != nil {
		return fail(sanitize.SourceOllama, err, func(msg string) string {
			return fmt.Sprintf("Skill %q failed: %s Answer without this result.", label, msg)
		})
	}

	return ok(result,
		fmt.Sprintf("Used skill %s.", label),
		fmt.Sprintf("Skill %q result:\n\n%s\n\nUse this to answer the user's question.", label, result),
	)
}

func (d *Dispatcher) agentDelegate(ctx context.Context, dir directive.Directive, question string) Result {
	var loaded []agents.Agent
	if d.deps.Agents != nil {
		loaded = d.deps.Agents()
	}
	if len(loaded) == 0 {
		return reject("No delegate agents are available. Answer without delegating.", "no agents loaded")
	}

	selector, task := selectorAndTask(dir.Args)
	agent, found := agents.Find(loaded, selector)
	if !found {
		names := make([]string, len(loaded))
		for i, a := range loaded {
			names[i] = a.ID
		}
		return reject(
			fmt.Sprintf("Unknown agent %q. Available agents: %s. Answer without delegating.",
				selector, strings.Join(names, ", ")),
			"unknown agent selector",
		)
	}
	if d.deps.SubTurn == nil {
		return reject("Agent delegation is not available here. Answer without delegating.", "no sub-turn runner")
	}

	if task == "" {
		task = question
	}

	ctx, cancel := callCtx(ctx, d.cfg.GetModelTimeout())
	defer cancel()

	result, err := d.deps.SubTurn(ctx, agent.Prompt, task, model.Options{Model: agent.Model})
	if err != nil {
		return fail(sanitize.SourceOllama, err, func(msg string) string {
			return fmt.Sprintf("Agent %q failed: %s Answer without this result.", agent.Name, msg)
		})
	}

	return ok(result,
		fmt.Sprintf("Delegated to agent %s.", agent.Name),
		fmt.Sprintf("Agent %q result:\n\n%s\n\nUse this to answer the user's question.", agent.Name, result),
	)
}

func (d *Dispatcher) schedule(dir directive.Directive) Result {
	if scheduledOrigin(dir.Origin) {
		return reject(
			"Scheduling is not available when running from a scheduled task. Do not add a schedule; complete the task without scheduling.",
			"schedule from scheduler turn",
		)
	}
	if d.deps.Schedules == nil || !d.cfg.Scheduler.Enabled {
		return reject("The scheduler is disabled. Answer without scheduling.", "scheduler disabled")
	}

	entry, err := scheduler.ParseSpec(dir.Args)
	if err != nil {
		return reject(
			fmt.Sprintf("Could not parse the schedule (%s). Ask the user to rephrase.", err),
			err.Error(),
		)
	}
	if channelID, found := strings.CutPrefix(dir.Origin, "discord:"); found {
		entry.ReplyToChannelID = channelID
	}

	added, isNew, err := d.deps.Schedules.Add(entry)
	if err != nil {
		return fail(sanitize.SourceGeneric, err, func(msg string) string {
			return "Adding the schedule failed: " + msg + " Tell the user."
		})
	}
	if !isNew {
		return ok("",
			"That task is already scheduled.",
			"This task is already scheduled with the same timing and description. Tell the user no duplicate was added.",
		)
	}

	spec := added.Cron
	if spec == "" {
		spec = "at " + added.At
	}
	preview := added.Task
	if len(preview) > 100 {
		preview = preview[:100]
	}
	return ok(added.ID,
		fmt.Sprintf("Scheduled (%s): %s", spec, preview),
		fmt.Sprintf("Schedule added successfully. The scheduler will run this task (%s): %q. Tell the user in your reply that it is scheduled and they will see the result in this channel when it runs.", spec, preview),
	)
}

func (d *Dispatcher) removeSchedule(dir directive.Directive) Result {
	if d.deps.Schedules == nil {
		return reject("The scheduler is disabled.", "scheduler disabled")
	}
	id := strings.TrimSpace(dir.Args)
	if id == "" {
		return reject("remove-schedule requires a schedule id. Use list-schedules to see them.", "missing id")
	}

	removed, err := d.deps.Schedules.Remove(id)
	if err != nil {
		return fail(sanitize.SourceGeneric, err, func(msg string) string {
			return "Removing the schedule failed: " + msg
		})
	}
	if !removed {
		return reject(fmt.Sprintf("No schedule with id %q. Use list-schedules to see them.", id), "unknown schedule id")
	}
	return ok(id, "Schedule removed.", "Schedule removed. Tell the user.")
}

func (d *Dispatcher) listSchedules() Result {
	if d.deps.Schedules == nil {
		return reject("The scheduler is disabled.", "scheduler disabled")
	}

	entries := d.deps.Schedules.Load()
	if len(entries) == 0 {
		return ok("", "No tasks are scheduled.", "No tasks are scheduled. Tell the user.")
	}

	var b strings.Builder
	for _, e := range entries {
		spec := e.Cron
		if spec == "" {
			spec = "at " + e.At
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", e.ID, spec, e.Task)
	}
	list := strings.TrimRight(b.String(), "\n")
	return ok(list,
		fmt.Sprintf("%d scheduled task(s).", len(entries)),
		fmt.Sprintf("Scheduled tasks:\n\n%s\n\nUse remove-schedule: <id> to remove one.", list),
	)
}

func (d *Dispatcher) taskCreate(dir directive.Directive) Result {
	if d.deps.Tasks == nil {
		return reject("The task store is not available.", "task store not configured")
	}

	segs := strings.SplitN(strings.TrimSpace(dir.Args), " ", 3)
	if len(segs) < 3 || strings.TrimSpace(segs[2]) == "" {
		return reject("task-create requires: task-create: <topic> <id> <initial content>.", "malformed task-create args")
	}

	path, err := d.deps.Tasks.Create(segs[0], segs[1], strings.TrimSpace(segs[2]), tasks.AssigneeDefault)
	if err != nil {
		return reject(fmt.Sprintf("Creating the task failed: %s.", err), err.Error())
	}
	return ok(path,
		fmt.Sprintf("Task created: %s.", filepath.Base(path)),
		fmt.Sprintf("Task created: %s. Use task-append and task-status to update.", path),
	)
}

func (d *Dispatcher) taskAppend(dir directive.Directive) Result {
	if d.deps.Tasks == nil {
		return reject("The task store is not available.", "task store not configured")
	}

	pathOrID, content, _ := strings.Cut(strings.TrimSpace(dir.Args), " ")
	content = strings.TrimSpace(content)
	if pathOrID == "" || content == "" {
		return reject("task-append requires: task-append: <path or task id> <content>.", "malformed task-append args")
	}

	path, err := d.deps.Tasks.Append(pathOrID, content)
	if err != nil {
		return reject(fmt.Sprintf("Appending to the task failed: %s.", err), err.Error())
	}
	return ok(path,
		fmt.Sprintf("Appended to %s.", filepath.Base(path)),
		fmt.Sprintf("Appended to task file %s. Use this to continue.", path),
	)
}

func (d *Dispatcher) taskStatus(dir directive.Directive) Result {
	if d.deps.Tasks == nil {
		return reject("The task store is not available.", "task store not configured")
	}

	fields := strings.Fields(dir.Args)
	if len(fields) < 2 {
		return reject("task-status requires: task-status: <path or task id> wip|finished|unsuccessful.", "malformed task-status args")
	}

	status, valid := tasks.ParseStatus(fields[len(fields)-1])
	if !valid {
		return reject("task-status status must be wip, finished, or unsuccessful.", "invalid status")
	}
	pathOrID := strings.Join(fields[:len(fields)-1], " ")

	path, err := d.deps.Tasks.SetStatus(pathOrID, status)
	if err != nil {
		return reject(fmt.Sprintf("Setting the task status failed: %s.", err), err.Error())
	}
	return ok(path,
		fmt.Sprintf("Task status set to %s.", status),
		fmt.Sprintf("Task status set to %s (file: %s).", status, path),
	)
}

func (d *Dispatcher) taskAssign(dir directive.Directive) Result {
	if d.deps.Tasks == nil {
		return reject("The task store is not available.", "task store not configured")
	}

	fields := strings.Fields(dir.Args)
	if len(fields) < 2 {
		return reject("task-assign requires: task-assign: <path or task id> scheduler|discord|cpu|default.", "malformed task-assign args")
	}

	target, valid := tasks.ParseAssignee(fields[len(fields)-1])
	if !valid {
		return reject("task-assign target must be scheduler, discord, cpu, or default.", "invalid assignee")
	}
	pathOrID := strings.Join(fields[:len(fields)-1], " ")

	if err := d.deps.Tasks.Assign(pathOrID, target); err != nil {
		return reject(fmt.Sprintf("Assigning the task failed: %s.", err), err.Error())
	}
	return ok(string(target),
		fmt.Sprintf("Task assigned to %s.", target),
		fmt.Sprintf("Task assigned to %s. Use this to continue.", target),
	)
}

func (d *Dispatcher) taskList(dir directive.Directive) Result {
	if d.deps.Tasks == nil {
		return reject("The task store is not available.", "task store not configured")
	}

	list, err := d.deps.Tasks.List(dir.Args)
	if err != nil {
		return reject(fmt.Sprintf("Listing tasks failed: %s.", err), err.Error())
	}
	if len(list) == 0 {
		return ok("", "No task files found.", "No task files found. Tell the user.")
	}

	var b strings.Builder
	for _, t := range list {
		fmt.Fprintf(&b, "- %s [%s, %s] %s\n", t.Filename(), t.Status, t.AssignedTo, t.Topic)
	}
	rendered := strings.TrimRight(b.String(), "\n")
	return ok(rendered,
		fmt.Sprintf("%d task file(s).", len(list)),
		fmt.Sprintf("Task files:\n\n%s\n\nUse task-show: <id or filename> to read one.", rendered),
	)
}

func (d *Dispatcher) taskShow(dir directive.Directive) Result {
	if d.deps.Tasks == nil {
		return reject("The task store is not available.", "task store not configured")
	}
	if strings.TrimSpace(dir.Args) == "" {
		return reject("task-show requires: task-show: <path or task id>.", "missing task selector")
	}

	t, err := d.deps.Tasks.Show(dir.Args)
	if err != nil {
		return reject(fmt.Sprintf("No task matches %q.", strings.TrimSpace(dir.Args)), err.Error())
	}
	return ok(t.Content,
		fmt.Sprintf("Showing task %s.", t.Filename()),
		fmt.Sprintf("Task %s:\n\n%s\n\nUse this to answer the user's question.", t.Filename(), t.Content),
	)
}

func (d *Dispatcher) memoryAppend(dir directive.Directive) Result {
	if d.deps.Notes == nil {
		return reject("The notes file is not configured.", "notes not configured")
	}
	if strings.TrimSpace(dir.Args) == "" {
		return reject("memory-append requires a note.", "empty note")
	}

	if err := d.deps.Notes.Append(dir.Args); err != nil {
		return reject(fmt.Sprintf("Saving the note failed: %s.", err), err.Error())
	}
	return ok("", "Noted.", "Noted. Continue with your answer.")
}

func (d *Dispatcher) mcpCall(ctx context.Context, dir directive.Directive) Result {
	if d.deps.MCP == nil || !d.deps.MCP.Configured() {
		return reject(
			"MCP is not configured (set MCP_SERVER_URL or MCP_SERVER_STDIO). Answer without using MCP.",
			"mcp not configured",
		)
	}

	ctx, cancel := callCtx(ctx, d.cfg.GetMCPTimeout())
	defer cancel()

	args := strings.TrimSpace(dir.Args)
	if args == "" || args == "list" || args == "tools" {
		tools, err := d.deps.MCP.ListTools(ctx)
		if err != nil {
			return fail(sanitize.SourceMCP, err, func(msg string) string {
				return "Listing MCP tools failed: " + msg + " Answer without using MCP."
			})
		}
		catalog := mcp.Catalog(tools)
		return ok(catalog,
			fmt.Sprintf("%d MCP tool(s) available.", len(tools)),
			fmt.Sprintf("Available MCP tools:\n\n%s\n\nCall one with mcp: <tool> <arguments>.", catalog),
		)
	}

	tool, toolArgs := mcp.ParseArgs(args)
	result, err := d.deps.MCP.CallTool(ctx, tool, toolArgs)
	if err != nil {
		return fail(sanitize.SourceMCP, err, func(msg string) string {
			return fmt.Sprintf("MCP tool %q failed: %s Answer the user without this result.", tool, msg)
		})
	}

	return ok(result,
		fmt.Sprintf("Called MCP tool %s.", tool),
		fmt.Sprintf("MCP tool %q result:\n\n%s\n\nUse this to answer the user's question.", tool, result),
	)
}
