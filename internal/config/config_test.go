package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/data")

	assert.Equal(t, "dirigent", cfg.Name)
	assert.Equal(t, "ollama", cfg.Model.Provider)
	assert.Equal(t, 20, cfg.History.Cap)
	assert.Equal(t, 5, cfg.Execution.MaxIterations)
	assert.Equal(t, filepath.Join("/data", "tasks"), cfg.Tasks.Root)
	assert.Equal(t, filepath.Join("/data", "schedules.json"), cfg.Scheduler.File)
	assert.False(t, cfg.RunCmd.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.History.Cap)
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
model:
  provider: ollama
  model: llama3.1:8b
  timeout: 90s
history:
  cap: 10
channels:
  discord:
    enabled: true
    channels:
      "123456": having-fun
      "789012": mention-only
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "llama3.1:8b", cfg.Model.Model)
	assert.Equal(t, 10, cfg.History.Cap)
	assert.True(t, cfg.Channels.Discord.Enabled)
	assert.Equal(t, "having-fun", cfg.Channels.Discord.Channels["123456"])
	assert.Equal(t, 90*time.Second, cfg.GetModelTimeout())
	// Unset sections keep their defaults.
	assert.Equal(t, 5, cfg.Execution.MaxIterations)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "tok-discord")
	t.Setenv("REDMINE_URL", "https://redmine.example.com")
	t.Setenv("REDMINE_API_KEY", "rk")
	t.Setenv("ALLOW_LOCAL_CMD", "yes")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "tok-discord", cfg.Channels.Discord.BotToken)
	assert.Equal(t, "https://redmine.example.com", cfg.Redmine.BaseURL)
	assert.Equal(t, "rk", cfg.Redmine.APIKey)
	assert.True(t, cfg.RunCmd.Enabled)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig("/data")
	cfg.Model.Provider = "openai"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig("/data")
	cfg.Model.Provider = "gemini"
	assert.Error(t, cfg.Validate(), "gemini without key")
	cfg.Model.APIKey = "gk"
	assert.NoError(t, cfg.Validate())

	cfg = DefaultConfig("/data")
	cfg.History.Cap = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig("/data")
	cfg.Channels.Discord.Channels = map[string]string{"1": "sometimes"}
	assert.Error(t, cfg.Validate())
}

func TestDurationFallbacks(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 120*time.Second, cfg.GetModelTimeout())
	assert.Equal(t, 20*time.Second, cfg.GetRedmineTimeout())

	cfg.Fetch.Timeout = "garbage"
	assert.Equal(t, 30*time.Second, cfg.GetFetchTimeout())

	cfg.Loops.SummaryInterval = "90s"
	assert.Equal(t, 90*time.Second, cfg.GetLoopSummaryInterval())
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := DefaultConfig("/data")
	cfg.Model.Model = "codellama:13b"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "codellama:13b", loaded.Model.Model)
}
