package claude

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/randalmurphal/claudelite/claude/session"
	"github.com/randalmurphal/claudelite/claudecontract"
)

// BuildCommand translates cfg into the CLI invocation for a persistent
// stream-json session. It validates cfg first.
func BuildCommand(cfg Config) (session.Command, error) {
	if err := cfg.Validate(); err != nil {
		return session.Command{}, fmt.Errorf("invalid config: %w", err)
	}
	return session.Command{
		Path: resolvedPath(cfg.ClaudePath, cfg.WorkDir),
		Args: buildArgs(cfg),
		Env:  buildEnv(cfg),
		Dir:  cfg.WorkDir,
	}, nil
}

func buildArgs(cfg Config) []string {
	args := []string{
		claudecontract.FlagInputFormat, claudecontract.FormatStreamJSON,
		claudecontract.FlagOutputFormat, claudecontract.FormatStreamJSON,
		claudecontract.FlagVerbose,
	}

	args = appendModelArgs(args, cfg)
	args = appendToolArgs(args, cfg)
	args = appendPermissionArgs(args, cfg)
	args = appendSessionArgs(args, cfg)

	for _, dir := range cfg.AddDirs {
		args = append(args, claudecontract.FlagAddDir, dir)
	}
	if len(cfg.SettingSources) > 0 {
		sources := make([]string, len(cfg.SettingSources))
		for i, s := range cfg.SettingSources {
			sources[i] = string(s)
		}
		args = append(args, claudecontract.FlagSettingSources, strings.Join(sources, ","))
	}

	// Budget and turn limits
	if cfg.MaxTurns > 0 {
		args = append(args, claudecontract.FlagMaxTurns, strconv.Itoa(cfg.MaxTurns))
	}
	if cfg.MaxBudgetUSD > 0 {
		args = append(args, claudecontract.FlagMaxBudgetUSD, fmt.Sprintf("%.6f", cfg.MaxBudgetUSD))
	}

	if cfg.JSONSchema != "" {
		args = append(args, claudecontract.FlagJSONSchema, cfg.JSONSchema)
	}
	if cfg.IncludePartialMessages {
		args = append(args, claudecontract.FlagIncludePartialMessages)
	}

	return append(args, cfg.ExtraArgs...)
}

func appendModelArgs(args []string, cfg Config) []string {
	if cfg.Model != "" {
		args = append(args, claudecontract.FlagModel, cfg.Model)
	}
	if cfg.FallbackModel != "" {
		args = append(args, claudecontract.FlagFallbackModel, cfg.FallbackModel)
	}
	if cfg.SystemPrompt != "" {
		args = append(args, claudecontract.FlagSystemPrompt, cfg.SystemPrompt)
	}
	if cfg.AppendSystemPrompt != "" {
		args = append(args, claudecontract.FlagAppendSystemPrompt, cfg.AppendSystemPrompt)
	}
	return args
}

// appendToolArgs adds tool control arguments.
// The CLI uses camelCase for the allow/deny flags and repeats them per tool.
func appendToolArgs(args []string, cfg Config) []string {
	for _, tool := range cfg.AllowedTools {
		args = append(args, claudecontract.FlagAllowedTools, tool)
	}
	for _, tool := range cfg.DisallowedTools {
		args = append(args, claudecontract.FlagDisallowedTools, tool)
	}
	if len(cfg.Tools) > 0 {
		args = append(args, claudecontract.FlagTools, strings.Join(cfg.Tools, ","))
	}
	return args
}

func appendPermissionArgs(args []string, cfg Config) []string {
	if cfg.PermissionMode != "" {
		args = append(args, claudecontract.FlagPermissionMode, cfg.PermissionMode.String())
	}
	if cfg.DangerouslySkipPermissions {
		args = append(args, claudecontract.FlagDangerouslySkipPermissions)
	}
	return args
}

func appendSessionArgs(args []string, cfg Config) []string {
	if cfg.SessionID != "" {
		args = append(args, claudecontract.FlagSessionID, cfg.SessionID)
	}
	if cfg.Resume != "" {
		args = append(args, claudecontract.FlagResume, cfg.Resume)
	}
	if cfg.Continue {
		args = append(args, claudecontract.FlagContinue)
	}
	if cfg.ForkSession {
		args = append(args, claudecontract.FlagForkSession)
	}
	return args
}

// buildEnv returns nil, inheriting the parent environment, unless cfg
// overrides something.
func buildEnv(cfg Config) []string {
	if cfg.HomeDir == "" && cfg.ConfigDir == "" && len(cfg.Env) == 0 {
		return nil
	}

	env := os.Environ()
	if cfg.HomeDir != "" {
		env = setEnvVar(env, "HOME", cfg.HomeDir)
	}
	if cfg.ConfigDir != "" {
		env = setEnvVar(env, "CLAUDE_CONFIG_DIR", cfg.ConfigDir)
	}
	for k, v := range cfg.Env {
		env = setEnvVar(env, k, v)
	}
	return env
}

// setEnvVar updates or adds an environment variable in an env slice.
func setEnvVar(env []string, key, value string) []string {
	prefix := key + "="
	for i, e := range env {
		if strings.HasPrefix(e, prefix) {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}

// resolvedPath returns the absolute path to the claude binary.
// When cmd.Dir is set, exec resolves a relative name against Dir instead of
// PATH, so bare names are looked up first.
func resolvedPath(path, workDir string) string {
	if path == "" {
		path = "claude"
	}
	if filepath.IsAbs(path) || workDir == "" {
		return path
	}

	abs, err := exec.LookPath(path)
	if err != nil {
		// The error surfaces as ErrSpawn on connect.
		slog.Debug("could not resolve executable path", "path", path, "error", err)
		return path
	}
	return abs
}
