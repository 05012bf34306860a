package claude

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/claudelite/claudecontract"
)

var baseArgs = []string{"--input-format", "stream-json", "--output-format", "stream-json", "--verbose"}

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{
			name: "minimal",
			cfg:  Config{},
			want: nil,
		},
		{
			name: "model and prompts",
			cfg: Config{
				Model:              "opus",
				FallbackModel:      "sonnet",
				SystemPrompt:       "be brief",
				AppendSystemPrompt: "and kind",
			},
			want: []string{
				"--model", "opus",
				"--fallback-model", "sonnet",
				"--system-prompt", "be brief",
				"--append-system-prompt", "and kind",
			},
		},
		{
			name: "tools repeat per entry",
			cfg: Config{
				AllowedTools:    []string{"Read", "Bash(git:*)"},
				DisallowedTools: []string{"Write"},
				Tools:           []string{"Read", "Grep"},
			},
			want: []string{
				"--allowedTools", "Read",
				"--allowedTools", "Bash(git:*)",
				"--disallowedTools", "Write",
				"--tools", "Read,Grep",
			},
		},
		{
			name: "permissions",
			cfg: Config{
				PermissionMode:             claudecontract.PermissionAcceptEdits,
				DangerouslySkipPermissions: true,
			},
			want: []string{"--permission-mode", "acceptEdits", "--dangerously-skip-permissions"},
		},
		{
			name: "resume with fork",
			cfg:  Config{Resume: "abc", ForkSession: true},
			want: []string{"--resume", "abc", "--fork-session"},
		},
		{
			name: "session id",
			cfg:  Config{SessionID: "s-1"},
			want: []string{"--session-id", "s-1"},
		},
		{
			name: "scope and limits",
			cfg: Config{
				AddDirs:        []string{"/a", "/b"},
				SettingSources: []claudecontract.SettingSource{"user", "project"},
				MaxTurns:       4,
				MaxBudgetUSD:   0.25,
			},
			want: []string{
				"--add-dir", "/a",
				"--add-dir", "/b",
				"--setting-sources", "user,project",
				"--max-turns", "4",
				"--max-budget-usd", "0.250000",
			},
		},
		{
			name: "schema, partials and extras last",
			cfg: Config{
				JSONSchema:             `{"type":"object"}`,
				IncludePartialMessages: true,
				ExtraArgs:              []string{"--debug", "api"},
			},
			want: []string{
				"--json-schema", `{"type":"object"}`,
				"--include-partial-messages",
				"--debug", "api",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildArgs(tt.cfg)
			assert.Equal(t, slices.Concat(baseArgs, tt.want), got)
		})
	}
}

func TestBuildEnv(t *testing.T) {
	assert.Nil(t, buildEnv(Config{}), "no overrides inherits the parent env")

	t.Setenv("HOME", "/original")
	env := buildEnv(Config{
		HomeDir:   "/home/worker",
		ConfigDir: "/cfg",
		Env:       map[string]string{"EXTRA": "1"},
	})
	assert.Contains(t, env, "HOME=/home/worker")
	assert.NotContains(t, env, "HOME=/original")
	assert.Contains(t, env, "CLAUDE_CONFIG_DIR=/cfg")
	assert.Contains(t, env, "EXTRA=1")
}

func TestSetEnvVar(t *testing.T) {
	env := []string{"A=1", "B=2"}
	env = setEnvVar(env, "B", "3")
	env = setEnvVar(env, "C", "4")
	assert.Equal(t, []string{"A=1", "B=3", "C=4"}, env)
}

func TestBuildCommand(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ClaudePath = "/opt/claude"
	cfg.WorkDir = "/work"
	cfg.Model = "sonnet"

	cmd, err := BuildCommand(cfg)
	require.NoError(t, err)
	assert.Equal(t, "/opt/claude", cmd.Path)
	assert.Equal(t, "/work", cmd.Dir)
	assert.Nil(t, cmd.Env)
	assert.Equal(t, slices.Concat(baseArgs, []string{"--model", "sonnet"}), cmd.Args)

	cfg.MaxTurns = -1
	_, err = BuildCommand(cfg)
	assert.ErrorContains(t, err, "invalid config")
}

func TestResolvedPath(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "claude-test-bin")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))
	t.Setenv("PATH", dir)

	assert.Equal(t, "claude-test-bin", resolvedPath("claude-test-bin", ""), "no workdir leaves lookup to exec")
	assert.Equal(t, bin, resolvedPath("claude-test-bin", "/elsewhere"))
	assert.Equal(t, "/abs/claude", resolvedPath("/abs/claude", "/elsewhere"))
	assert.Equal(t, "claude", resolvedPath("", ""))
	assert.Equal(t, "missing-bin", resolvedPath("missing-bin", "/elsewhere"))
}
