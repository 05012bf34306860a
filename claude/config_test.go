package claude

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/claudelite/claudecontract"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ClaudePath != "claude" {
		t.Errorf("ClaudePath = %q, want %q", cfg.ClaudePath, "claude")
	}
	if cfg.TurnTimeout != 5*time.Minute {
		t.Errorf("TurnTimeout = %v, want %v", cfg.TurnTimeout, 5*time.Minute)
	}
	if cfg.StartupGrace != 250*time.Millisecond {
		t.Errorf("StartupGrace = %v, want 250ms", cfg.StartupGrace)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "negative max turns", mutate: func(c *Config) { c.MaxTurns = -1 }, wantErr: "max_turns"},
		{name: "negative budget", mutate: func(c *Config) { c.MaxBudgetUSD = -0.5 }, wantErr: "max_budget_usd"},
		{name: "negative timeout", mutate: func(c *Config) { c.TurnTimeout = -time.Second }, wantErr: "turn_timeout"},
		{name: "negative grace", mutate: func(c *Config) { c.ShutdownGrace = -1 }, wantErr: "grace"},
		{name: "bad permission mode", mutate: func(c *Config) { c.PermissionMode = "yolo" }, wantErr: "permission_mode"},
		{name: "good permission mode", mutate: func(c *Config) { c.PermissionMode = claudecontract.PermissionPlan }},
		{
			name:    "bad setting source",
			mutate:  func(c *Config) { c.SettingSources = []claudecontract.SettingSource{"global"} },
			wantErr: "setting source",
		},
		{
			name:    "resume and continue",
			mutate:  func(c *Config) { c.Resume = "abc"; c.Continue = true },
			wantErr: "mutually exclusive",
		},
		{
			name:    "session id with resume",
			mutate:  func(c *Config) { c.SessionID = "new"; c.Resume = "old" },
			wantErr: "requires fork_session",
		},
		{
			name:   "session id with forked resume",
			mutate: func(c *Config) { c.SessionID = "new"; c.Resume = "old"; c.ForkSession = true },
		},
		{
			name:    "fork without resume",
			mutate:  func(c *Config) { c.ForkSession = true },
			wantErr: "fork_session requires",
		},
		{name: "invalid schema", mutate: func(c *Config) { c.JSONSchema = "{not json" }, wantErr: "json_schema"},
		{name: "valid schema", mutate: func(c *Config) { c.JSONSchema = `{"type":"object"}` }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("CLAUDE_MODEL", "opus")
	t.Setenv("CLAUDE_MAX_TURNS", "7")
	t.Setenv("CLAUDE_MAX_BUDGET_USD", "1.5")
	t.Setenv("CLAUDE_TURN_TIMEOUT", "90s")
	t.Setenv("CLAUDE_PERMISSION_MODE", "acceptEdits")
	t.Setenv("CLAUDE_SKIP_PERMISSIONS", "1")
	t.Setenv("CLAUDE_HOME_DIR", "/home/worker")
	t.Setenv("CLAUDE_SDK_DEBUG", "true")
	t.Setenv("CLAUDE_ECHO_MODE", "TRUE")

	cfg := FromEnv()
	assert.Equal(t, "opus", cfg.Model)
	assert.Equal(t, 7, cfg.MaxTurns)
	assert.InDelta(t, 1.5, cfg.MaxBudgetUSD, 1e-9)
	assert.Equal(t, 90*time.Second, cfg.TurnTimeout)
	assert.Equal(t, claudecontract.PermissionAcceptEdits, cfg.PermissionMode)
	assert.True(t, cfg.DangerouslySkipPermissions)
	assert.Equal(t, "/home/worker", cfg.HomeDir)
	assert.True(t, cfg.Debug)
	assert.True(t, cfg.EchoMode)
}

func TestConfig_LoadFromEnvIgnoresBadNumbers(t *testing.T) {
	t.Setenv("CLAUDE_MAX_TURNS", "many")
	t.Setenv("CLAUDE_TURN_TIMEOUT", "soon")

	cfg := FromEnv()
	assert.Equal(t, 0, cfg.MaxTurns)
	assert.Equal(t, 5*time.Minute, cfg.TurnTimeout)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"c.yaml": `
model: sonnet
max_turns: 3
turn_timeout: 2m
allowed_tools: [Read, Grep]
setting_sources: [project]
env:
  FOO: bar
`,
		"c.toml": `
model = "sonnet"
max_turns = 3
turn_timeout = "2m"
allowed_tools = ["Read", "Grep"]
setting_sources = ["project"]

[env]
FOO = "bar"
`,
		"c.json": `{
  "model": "sonnet",
  "max_turns": 3,
  "turn_timeout": 120000000000,
  "allowed_tools": ["Read", "Grep"],
  "setting_sources": ["project"],
  "env": {"FOO": "bar"}
}`,
	}

	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

			cfg, err := LoadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "sonnet", cfg.Model)
			assert.Equal(t, 3, cfg.MaxTurns)
			assert.Equal(t, 2*time.Minute, cfg.TurnTimeout)
			assert.Equal(t, []string{"Read", "Grep"}, cfg.AllowedTools)
			assert.Equal(t, []claudecontract.SettingSource{claudecontract.SettingSourceProject}, cfg.SettingSources)
			assert.Equal(t, map[string]string{"FOO": "bar"}, cfg.Env)
			assert.Equal(t, "claude", cfg.ClaudePath, "defaults survive")
		})
	}
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	ini := filepath.Join(dir, "c.ini")
	require.NoError(t, os.WriteFile(ini, []byte("x=1"), 0o600))
	_, err = LoadFile(ini)
	assert.ErrorContains(t, err, "unsupported config format")

	unknown := filepath.Join(dir, "c.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("modle: typo\n"), 0o600))
	_, err = LoadFile(unknown)
	assert.Error(t, err)

	unknownTOML := filepath.Join(dir, "c.toml")
	require.NoError(t, os.WriteFile(unknownTOML, []byte("modle = \"typo\"\n"), 0o600))
	_, err = LoadFile(unknownTOML)
	assert.ErrorContains(t, err, "unknown keys")
}

func TestConfig_EnsureSessionID(t *testing.T) {
	var cfg Config
	id := cfg.EnsureSessionID()
	assert.Len(t, id, 36)
	assert.Equal(t, id, cfg.EnsureSessionID(), "stable once set")

	resumed := Config{Resume: "old"}
	assert.Empty(t, resumed.EnsureSessionID())

	cont := Config{Continue: true}
	assert.Empty(t, cont.EnsureSessionID())
}

func TestConfig_KnownSessionID(t *testing.T) {
	assert.Equal(t, "a", (&Config{SessionID: "a"}).knownSessionID())
	assert.Equal(t, "old", (&Config{Resume: "old"}).knownSessionID())
	assert.Empty(t, (&Config{Resume: "old", ForkSession: true}).knownSessionID())
}
