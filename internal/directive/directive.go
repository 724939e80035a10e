// Package directive parses the single-line command grammar the model
// uses to request an action. A reply either is exactly one directive,
// `<name>: <args>` on a single line, or it is a plain conversational
// answer. Parsing never fails loudly: anything that does not match the
// grammar is simply not a directive.
package directive

import "strings"

// Name identifies a supported command.
type Name string

const (
	AgentDelegate  Name = "agent-delegate"
	FetchURL       Name = "fetch-url"
	RunCommand     Name = "run-command"
	DiscordAPI     Name = "discord-api"
	RedmineAPI     Name = "redmine-api"
	OllamaAPI      Name = "ollama-api"
	TaskList       Name = "task-list"
	TaskShow       Name = "task-show"
	TaskCreate     Name = "task-create"
	TaskAppend     Name = "task-append"
	TaskStatus     Name = "task-status"
	TaskAssign     Name = "task-assign"
	Schedule       Name = "schedule"
	RemoveSchedule Name = "remove-schedule"
	ListSchedules  Name = "list-schedules"
	MemoryAppend   Name = "memory-append"
	BraveSearch    Name = "brave-search"
	Skill          Name = "skill"
	MCP            Name = "mcp"
)

// argPolicy controls how the argument portion of a directive is
// validated and trimmed.
type argPolicy int

const (
	// argFree accepts any argument text, including none.
	argFree argPolicy = iota

	// argPathOnly accepts exactly one token. API calls take a bare
	// path; trailing commentary would end up inside the request.
	argPathOnly

	// argCutSemicolon keeps only the text before the first semicolon.
	// Models like to append "; then summarize it" to URLs.
	argCutSemicolon
)

var policies = map[Name]argPolicy{
	AgentDelegate:  argFree,
	FetchURL:       argCutSemicolon,
	RunCommand:     argFree,
	DiscordAPI:     argPathOnly,
	RedmineAPI:     argPathOnly,
	OllamaAPI:      argFree,
	TaskList:       argFree,
	TaskShow:       argFree,
	TaskCreate:     argFree,
	TaskAppend:     argFree,
	TaskStatus:     argFree,
	TaskAssign:     argFree,
	Schedule:       argFree,
	RemoveSchedule: argFree,
	ListSchedules:  argFree,
	MemoryAppend:   argFree,
	BraveSearch:    argCutSemicolon,
	Skill:          argFree,
	MCP:            argFree,
}

// All returns every supported command name, in grammar order.
func All() []Name {
	return []Name{
		AgentDelegate, FetchURL, RunCommand,
		DiscordAPI, RedmineAPI, OllamaAPI,
		TaskList, TaskShow, TaskCreate, TaskAppend, TaskStatus, TaskAssign,
		Schedule, RemoveSchedule, ListSchedules,
		MemoryAppend, BraveSearch, Skill, MCP,
	}
}

// PathOnly reports whether the command takes a bare path argument.
func (n Name) PathOnly() bool {
	return policies[n] == argPathOnly
}

// Directive is one parsed command. It lives only for the duration of a
// single dispatch and is never persisted.
type Directive struct {
	Name Name
	Args string

	// Origin is the session the directive came from, set by the router.
	Origin string
}

// recommendPrefix is an instruction artifact some models echo back in
// front of the command line. It is stripped before matching.
const recommendPrefix = "RECOMMEND: "

// Parse extracts a directive from one model reply. The directive must
// be the entire reply: multi-line replies, unknown names, and malformed
// arguments all yield ok=false, which callers treat as a plain
// conversational answer.
func Parse(reply string) (Directive, bool) {
	s := strings.TrimSpace(reply)
	s = strings.TrimSpace(strings.TrimPrefix(s, recommendPrefix))

	if s == "" || strings.ContainsRune(s, '\n') {
		return Directive{}, false
	}

	idx := strings.Index(s, ":")
	if idx <= 0 {
		return Directive{}, false
	}

	name := Name(s[:idx])
	policy, known := policies[name]
	if !known {
		return Directive{}, false
	}

	args := strings.TrimSpace(s[idx+1:])
	switch policy {
	case argPathOnly:
		if args == "" || strings.ContainsAny(args, " \t") {
			return Directive{}, false
		}
	case argCutSemicolon:
		if i := strings.Index(args, ";"); i >= 0 {
			args = strings.TrimSpace(args[:i])
		}
		if args == "" {
			return Directive{}, false
		}
	}

	return Directive{Name: name, Args: args}, true
}
