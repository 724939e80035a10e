package config

import "time"

// parseDurationOr parses s, falling back to def when empty or invalid.
func parseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// GetModelTimeout returns the model request timeout.
func (c *Config) GetModelTimeout() time.Duration {
	return parseDurationOr(c.Model.Timeout, 120*time.Second)
}

// GetExecTimeout returns the per-evaluation code execution timeout.
func (c *Config) GetExecTimeout() time.Duration {
	return parseDurationOr(c.Execution.Timeout, 30*time.Second)
}

// GetDiscordPollInterval returns the Discord polling interval.
func (c *Config) GetDiscordPollInterval() time.Duration {
	return parseDurationOr(c.Channels.Discord.PollInterval, 5*time.Second)
}

// GetDiscordAPITimeout returns the Discord REST request timeout.
func (c *Config) GetDiscordAPITimeout() time.Duration {
	return parseDurationOr(c.Channels.Discord.APITimeout, 15*time.Second)
}

// GetRedmineTimeout returns the Redmine request timeout.
func (c *Config) GetRedmineTimeout() time.Duration {
	return parseDurationOr(c.Redmine.Timeout, 20*time.Second)
}

// GetBraveTimeout returns the Brave search request timeout.
func (c *Config) GetBraveTimeout() time.Duration {
	return parseDurationOr(c.Brave.Timeout, 15*time.Second)
}

// GetFetchTimeout returns the URL fetch timeout.
func (c *Config) GetFetchTimeout() time.Duration {
	return parseDurationOr(c.Fetch.Timeout, 30*time.Second)
}

// GetMCPTimeout returns the MCP request timeout.
func (c *Config) GetMCPTimeout() time.Duration {
	return parseDurationOr(c.MCP.Timeout, 30*time.Second)
}

// GetLoopSummaryInterval returns the loop-protection summary interval.
func (c *Config) GetLoopSummaryInterval() time.Duration {
	return parseDurationOr(c.Loops.SummaryInterval, 60*time.Second)
}
