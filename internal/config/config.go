// Package config holds all dirigent configuration. A single YAML file
// configures the model backend, channels, collaborators, and the
// orchestration limits; environment variables override the secrets so
// tokens never need to live in the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all dirigent configuration.
type Config struct {
	// Core settings
	Name string `yaml:"name"`

	// Model backend configuration
	Model ModelConfig `yaml:"model"`

	// Conversation history management
	History HistoryConfig `yaml:"history"`

	// Code-execution continuation engine
	Execution ExecutionConfig `yaml:"execution"`

	// Chat channel listeners
	Channels ChannelsConfig `yaml:"channels"`

	// External collaborators
	Redmine RedmineConfig `yaml:"redmine"`
	Brave   BraveConfig   `yaml:"brave"`
	Fetch   FetchConfig   `yaml:"fetch"`
	MCP     MCPConfig     `yaml:"mcp"`

	// Task store
	Tasks TasksConfig `yaml:"tasks"`

	// Scheduler
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Local command allowlist
	RunCmd RunCmdConfig `yaml:"run_cmd"`

	// Skills and delegate agents
	Skills SkillsConfig `yaml:"skills"`
	Agents AgentsConfig `yaml:"agents"`

	// Append-only notes
	Memory MemoryConfig `yaml:"memory"`

	// Loop-protection summary emission
	Loops LoopsConfig `yaml:"loops"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ModelConfig configures the model backend.
type ModelConfig struct {
	Provider    string  `yaml:"provider"` // ollama, gemini
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	Timeout     string  `yaml:"timeout"`
	Temperature float64 `yaml:"temperature"`
	NumCtx      int     `yaml:"num_ctx"`
}

// HistoryConfig configures the conversation history store.
type HistoryConfig struct {
	// Cap is the number of most recent messages retained per session.
	Cap int `yaml:"cap"`

	// ArchivePath is the SQLite file for the session archive. Empty
	// disables archiving.
	ArchivePath string `yaml:"archive_path"`
}

// ExecutionConfig configures the code-execution continuation engine.
type ExecutionConfig struct {
	// MaxIterations bounds model round-trips per originating request.
	MaxIterations int `yaml:"max_iterations"`

	// Timeout for a single code evaluation.
	Timeout string `yaml:"timeout"`

	// LogFieldMax truncates individual execution-log fields.
	LogFieldMax int `yaml:"log_field_max"`

	// LogEntryMax caps the total serialized size of one log entry.
	LogEntryMax int `yaml:"log_entry_max"`
}

// ChannelsConfig configures the chat listeners.
type ChannelsConfig struct {
	Discord  DiscordChannelConfig  `yaml:"discord"`
	Telegram TelegramChannelConfig `yaml:"telegram"`
}

// DiscordChannelConfig configures the Discord listener and API client.
type DiscordChannelConfig struct {
	Enabled      bool   `yaml:"enabled"`
	BotToken     string `yaml:"bot_token"`
	PollInterval string `yaml:"poll_interval"`
	APITimeout   string `yaml:"api_timeout"`

	// Channels maps a channel ID to its mode: mention-only,
	// all-messages, or having-fun.
	Channels map[string]string `yaml:"channels"`

	// MaxConsecutiveBotReplies bounds bot-to-bot exchanges in
	// having-fun channels before messages are dropped.
	MaxConsecutiveBotReplies int `yaml:"max_consecutive_bot_replies"`
}

// TelegramChannelConfig configures the Telegram listener.
type TelegramChannelConfig struct {
	Enabled   bool     `yaml:"enabled"`
	BotToken  string   `yaml:"bot_token"`
	AllowFrom []string `yaml:"allow_from"`
}

// RedmineConfig configures the issue-tracker collaborator.
type RedmineConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`

	// DateFilterFormat names the accepted updated_on range grammar for
	// the target instance ("operator" = >=YYYY-MM-DD and
	// ><YYYY-MM-DD|YYYY-MM-DD). Confirm against the live API.
	DateFilterFormat string `yaml:"date_filter_format"`
}

// BraveConfig configures the web-search collaborator.
type BraveConfig struct {
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`
	Count   int    `yaml:"count"`
}

// FetchConfig configures the URL-fetch collaborator.
type FetchConfig struct {
	Timeout  string `yaml:"timeout"`
	MaxChars int    `yaml:"max_chars"`
}

// MCPConfig configures the MCP client.
type MCPConfig struct {
	// URL for HTTP transport, e.g. http://localhost:9000/rpc.
	URL string `yaml:"url"`

	// Stdio spawns a server process instead: "cmd|arg1|arg2".
	Stdio string `yaml:"stdio"`

	Timeout string `yaml:"timeout"`
}

// TasksConfig configures the file task store.
type TasksConfig struct {
	// Root is the directory all task paths must resolve under.
	Root string `yaml:"root"`
}

// SchedulerConfig configures the scheduler collaborator.
type SchedulerConfig struct {
	Enabled bool   `yaml:"enabled"`
	File    string `yaml:"file"`
}

// RunCmdConfig configures the allowlisted local command collaborator.
type RunCmdConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseDir string `yaml:"base_dir"`

	// AgentRunner is the one external binary permitted beyond the fixed
	// read-only verb set, e.g. a coding-agent CLI. Empty disables it.
	AgentRunner string `yaml:"agent_runner"`
}

// SkillsConfig configures skill file lookup.
type SkillsConfig struct {
	Dir string `yaml:"dir"`
}

// AgentsConfig configures delegate agent lookup.
type AgentsConfig struct {
	Dir string `yaml:"dir"`
}

// MemoryConfig configures the append-only notes file.
type MemoryConfig struct {
	File string `yaml:"file"`
}

// LoopsConfig configures loop-protection accounting.
type LoopsConfig struct {
	// SummaryInterval is how often non-zero drop counters are reported.
	SummaryInterval string `yaml:"summary_interval"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	File   string `yaml:"file"`
}

// DefaultBaseDir returns the default data directory (~/.dirigent).
func DefaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dirigent"
	}
	return filepath.Join(home, ".dirigent")
}

// DefaultConfig returns the default configuration rooted at base.
func DefaultConfig(base string) *Config {
	if base == "" {
		base = DefaultBaseDir()
	}
	return &Config{
		Name: "dirigent",

		Model: ModelConfig{
			Provider:    ProviderOllama,
			BaseURL:     "http://localhost:11434",
			Model:       "qwen2.5-coder:14b",
			Timeout:     "120s",
			Temperature: 0.7,
		},

		History: HistoryConfig{
			Cap:         20,
			ArchivePath: filepath.Join(base, "sessions.db"),
		},

		Execution: ExecutionConfig{
			MaxIterations: 5,
			Timeout:       "30s",
			LogFieldMax:   2000,
			LogEntryMax:   16000,
		},

		Channels: ChannelsConfig{
			Discord: DiscordChannelConfig{
				PollInterval:             "5s",
				APITimeout:               "15s",
				MaxConsecutiveBotReplies: 5,
			},
		},

		Redmine: RedmineConfig{
			Timeout:          "20s",
			DateFilterFormat: "operator",
		},

		Brave: BraveConfig{
			Timeout: "15s",
			Count:   5,
		},

		Fetch: FetchConfig{
			Timeout:  "30s",
			MaxChars: 50000,
		},

		MCP: MCPConfig{
			Timeout: "30s",
		},

		Tasks: TasksConfig{
			Root: filepath.Join(base, "tasks"),
		},

		Scheduler: SchedulerConfig{
			Enabled: true,
			File:    filepath.Join(base, "schedules.json"),
		},

		RunCmd: RunCmdConfig{
			BaseDir: base,
		},

		Skills: SkillsConfig{
			Dir: filepath.Join(base, "skills"),
		},

		Agents: AgentsConfig{
			Dir: filepath.Join(base, "agents"),
		},

		Memory: MemoryConfig{
			File: filepath.Join(base, "memory.md"),
		},

		Loops: LoopsConfig{
			SummaryInterval: "60s",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults so a fresh install runs without any setup.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig("")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. Secrets are
// expected here rather than in the YAML file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DISCORD_BOT_TOKEN"); v != "" {
		c.Channels.Discord.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Channels.Telegram.BotToken = v
	}
	if v := os.Getenv("REDMINE_URL"); v != "" {
		c.Redmine.BaseURL = v
	}
	if v := os.Getenv("REDMINE_API_KEY"); v != "" {
		c.Redmine.APIKey = v
	}
	if v := os.Getenv("BRAVE_API_KEY"); v != "" {
		c.Brave.APIKey = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		c.Model.BaseURL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Model.APIKey = v
		if c.Model.Provider == "" {
			c.Model.Provider = ProviderGemini
		}
	}
	if v := os.Getenv("MCP_SERVER_URL"); v != "" {
		c.MCP.URL = v
	}
	if v := os.Getenv("MCP_SERVER_STDIO"); v != "" {
		c.MCP.Stdio = v
	}
	if v := os.Getenv("ALLOW_LOCAL_CMD"); v != "" {
		c.RunCmd.Enabled = isTruthy(v)
	}
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Supported model providers.
const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// ValidProviders lists supported model providers.
var ValidProviders = []string{ProviderOllama, ProviderGemini}

// Validate checks the configuration for startup-blocking problems.
func (c *Config) Validate() error {
	valid := false
	for _, p := range ValidProviders {
		if c.Model.Provider == p {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid model provider: %s (valid: %v)", c.Model.Provider, ValidProviders)
	}
	if c.Model.Provider == ProviderGemini && c.Model.APIKey == "" {
		return fmt.Errorf("gemini provider requires an API key (set GEMINI_API_KEY)")
	}
	if c.History.Cap <= 0 {
		return fmt.Errorf("history cap must be positive, got %d", c.History.Cap)
	}
	if c.Execution.MaxIterations <= 0 {
		return fmt.Errorf("execution max_iterations must be positive, got %d", c.Execution.MaxIterations)
	}
	for id, mode := range c.Channels.Discord.Channels {
		switch mode {
		case "mention-only", "all-messages", "having-fun":
		default:
			return fmt.Errorf("channel %s: unknown mode %q", id, mode)
		}
	}
	return nil
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(DefaultBaseDir(), "config.yaml")
}
