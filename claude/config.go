package claude

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/claudelite/claude/session"
	"github.com/randalmurphal/claudelite/claudecontract"
)

// Config holds configuration for a Claude session.
// Zero values use sensible defaults where noted.
type Config struct {
	// --- Binary ---

	// ClaudePath is the path to the claude CLI binary.
	// Default: "claude" (found via PATH).
	ClaudePath string `json:"claude_path" yaml:"claude_path" toml:"claude_path" mapstructure:"claude_path"`

	// WorkDir is the working directory of the CLI process.
	// Default: current directory.
	WorkDir string `json:"work_dir" yaml:"work_dir" toml:"work_dir" mapstructure:"work_dir"`

	// --- Model Selection ---

	// Model is the primary model. Empty uses the CLI default.
	Model string `json:"model" yaml:"model" toml:"model" mapstructure:"model"`

	// FallbackModel is used when the primary model is overloaded.
	FallbackModel string `json:"fallback_model" yaml:"fallback_model" toml:"fallback_model" mapstructure:"fallback_model"`

	// --- Prompts ---

	// SystemPrompt replaces the CLI system prompt.
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt" toml:"system_prompt" mapstructure:"system_prompt"`

	// AppendSystemPrompt is appended to the default system prompt.
	AppendSystemPrompt string `json:"append_system_prompt" yaml:"append_system_prompt" toml:"append_system_prompt" mapstructure:"append_system_prompt"`

	// --- Execution Limits ---

	// MaxTurns limits agentic turns per request. 0 means no limit.
	MaxTurns int `json:"max_turns" yaml:"max_turns" toml:"max_turns" mapstructure:"max_turns"`

	// MaxBudgetUSD limits spending. 0 means no limit.
	MaxBudgetUSD float64 `json:"max_budget_usd" yaml:"max_budget_usd" toml:"max_budget_usd" mapstructure:"max_budget_usd"`

	// TurnTimeout bounds how long Ask and the one-shot helpers wait for a
	// turn. 0 waits without limit. Default: 5 minutes.
	TurnTimeout time.Duration `json:"turn_timeout" yaml:"turn_timeout" toml:"turn_timeout" mapstructure:"turn_timeout"`

	// --- Tool Control ---

	// AllowedTools limits which tools Claude can use.
	AllowedTools []string `json:"allowed_tools" yaml:"allowed_tools" toml:"allowed_tools" mapstructure:"allowed_tools"`

	// DisallowedTools explicitly blocks certain tools.
	DisallowedTools []string `json:"disallowed_tools" yaml:"disallowed_tools" toml:"disallowed_tools" mapstructure:"disallowed_tools"`

	// Tools specifies the exact list of available tools.
	Tools []string `json:"tools" yaml:"tools" toml:"tools" mapstructure:"tools"`

	// PermissionMode sets the permission handling mode.
	PermissionMode claudecontract.PermissionMode `json:"permission_mode" yaml:"permission_mode" toml:"permission_mode" mapstructure:"permission_mode"`

	// DangerouslySkipPermissions bypasses permission prompts.
	// Use with extreme caution, only in trusted environments.
	DangerouslySkipPermissions bool `json:"dangerously_skip_permissions" yaml:"dangerously_skip_permissions" toml:"dangerously_skip_permissions" mapstructure:"dangerously_skip_permissions"`

	// --- Session Management ---

	// SessionID starts a conversation with this id (a UUID).
	SessionID string `json:"session_id" yaml:"session_id" toml:"session_id" mapstructure:"session_id"`

	// Resume resumes a specific conversation by id.
	Resume string `json:"resume" yaml:"resume" toml:"resume" mapstructure:"resume"`

	// Continue resumes the most recent conversation in WorkDir.
	Continue bool `json:"continue" yaml:"continue" toml:"continue" mapstructure:"continue"`

	// ForkSession gives a resumed conversation a new id.
	ForkSession bool `json:"fork_session" yaml:"fork_session" toml:"fork_session" mapstructure:"fork_session"`

	// --- Context ---

	// AddDirs adds directories to Claude's file access scope.
	AddDirs []string `json:"add_dirs" yaml:"add_dirs" toml:"add_dirs" mapstructure:"add_dirs"`

	// SettingSources specifies which setting sources to load.
	SettingSources []claudecontract.SettingSource `json:"setting_sources" yaml:"setting_sources" toml:"setting_sources" mapstructure:"setting_sources"`

	// --- Output Control ---

	// JSONSchema forces structured output matching the given schema text.
	JSONSchema string `json:"json_schema" yaml:"json_schema" toml:"json_schema" mapstructure:"json_schema"`

	// IncludePartialMessages makes the CLI emit stream_event deltas.
	IncludePartialMessages bool `json:"include_partial_messages" yaml:"include_partial_messages" toml:"include_partial_messages" mapstructure:"include_partial_messages"`

	// --- Container Environment ---

	// HomeDir overrides HOME for the CLI (credential discovery in containers).
	HomeDir string `json:"home_dir" yaml:"home_dir" toml:"home_dir" mapstructure:"home_dir"`

	// ConfigDir overrides the .claude config directory.
	ConfigDir string `json:"config_dir" yaml:"config_dir" toml:"config_dir" mapstructure:"config_dir"`

	// Env provides additional environment variables.
	Env map[string]string `json:"env" yaml:"env" toml:"env" mapstructure:"env"`

	// --- Engine ---

	// EchoMode feeds prompts and interrupts back to listeners as user
	// messages.
	EchoMode bool `json:"echo_mode" yaml:"echo_mode" toml:"echo_mode" mapstructure:"echo_mode"`

	// Debug logs every protocol line.
	Debug bool `json:"debug" yaml:"debug" toml:"debug" mapstructure:"debug"`

	// StartupGrace is how long a new process must survive to count as
	// connected. Default: 250ms.
	StartupGrace time.Duration `json:"startup_grace" yaml:"startup_grace" toml:"startup_grace" mapstructure:"startup_grace"`

	// ShutdownGrace is the wait between shutdown steps. Default: 5s.
	ShutdownGrace time.Duration `json:"shutdown_grace" yaml:"shutdown_grace" toml:"shutdown_grace" mapstructure:"shutdown_grace"`

	// ExtraArgs are appended to the CLI arguments unchanged.
	ExtraArgs []string `json:"extra_args" yaml:"extra_args" toml:"extra_args" mapstructure:"extra_args"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ClaudePath:    "claude",
		TurnTimeout:   5 * time.Minute,
		StartupGrace:  250 * time.Millisecond,
		ShutdownGrace: 5 * time.Second,
	}
}

// LoadFromEnv populates config fields from environment variables.
// Environment variables use CLAUDE_ prefix and take precedence over existing values.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("CLAUDE_PATH"); v != "" {
		c.ClaudePath = v
	}
	if v := os.Getenv("CLAUDE_WORK_DIR"); v != "" {
		c.WorkDir = v
	}
	if v := os.Getenv("CLAUDE_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("CLAUDE_FALLBACK_MODEL"); v != "" {
		c.FallbackModel = v
	}
	if v := os.Getenv("CLAUDE_SYSTEM_PROMPT"); v != "" {
		c.SystemPrompt = v
	}
	if v := os.Getenv("CLAUDE_APPEND_SYSTEM_PROMPT"); v != "" {
		c.AppendSystemPrompt = v
	}
	if v := os.Getenv("CLAUDE_MAX_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxTurns = n
		}
	}
	if v := os.Getenv("CLAUDE_MAX_BUDGET_USD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.MaxBudgetUSD = f
		}
	}
	if v := os.Getenv("CLAUDE_TURN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.TurnTimeout = d
		}
	}
	if v := os.Getenv("CLAUDE_PERMISSION_MODE"); v != "" {
		c.PermissionMode = claudecontract.PermissionMode(v)
	}
	if envBool("CLAUDE_SKIP_PERMISSIONS") {
		c.DangerouslySkipPermissions = true
	}
	if v := os.Getenv("CLAUDE_SESSION_ID"); v != "" {
		c.SessionID = v
	}
	if v := os.Getenv("CLAUDE_RESUME"); v != "" {
		c.Resume = v
	}
	if v := os.Getenv("CLAUDE_HOME_DIR"); v != "" {
		c.HomeDir = v
	}
	if v := os.Getenv("CLAUDE_CONFIG_DIR"); v != "" {
		c.ConfigDir = v
	}
	if envBool("CLAUDE_ECHO_MODE") {
		c.EchoMode = true
	}
	if envBool(session.DebugEnv) {
		c.Debug = true
	}
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "true" || v == "1"
}

// FromEnv creates a Config from environment variables with defaults.
func FromEnv() Config {
	cfg := DefaultConfig()
	cfg.LoadFromEnv()
	return cfg
}

// LoadFile reads a config file over the defaults. The format follows the
// extension: .yaml/.yml, .toml or .json. Durations are strings such as
// "90s" in YAML and TOML, and nanoseconds in JSON.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml config %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return cfg, fmt.Errorf("parse toml config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return cfg, fmt.Errorf("parse toml config %s: unknown keys %v", path, undecoded)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("parse json config %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config format %q", ext)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxTurns < 0 {
		return fmt.Errorf("max_turns must be >= 0, got %d", c.MaxTurns)
	}
	if c.MaxBudgetUSD < 0 {
		return fmt.Errorf("max_budget_usd must be >= 0, got %f", c.MaxBudgetUSD)
	}
	if c.TurnTimeout < 0 {
		return fmt.Errorf("turn_timeout must be >= 0, got %v", c.TurnTimeout)
	}
	if c.StartupGrace < 0 || c.ShutdownGrace < 0 {
		return fmt.Errorf("startup_grace and shutdown_grace must be >= 0")
	}
	if c.PermissionMode != "" && !c.PermissionMode.IsValid() {
		return fmt.Errorf("invalid permission_mode %q", c.PermissionMode)
	}
	for _, s := range c.SettingSources {
		if !s.IsValid() {
			return fmt.Errorf("invalid setting source %q", s)
		}
	}
	if c.Resume != "" && c.Continue {
		return fmt.Errorf("resume and continue are mutually exclusive")
	}
	if c.SessionID != "" && (c.Resume != "" || c.Continue) && !c.ForkSession {
		return fmt.Errorf("session_id with resume or continue requires fork_session")
	}
	if c.ForkSession && c.Resume == "" && !c.Continue {
		return fmt.Errorf("fork_session requires resume or continue")
	}
	if c.JSONSchema != "" && !json.Valid([]byte(c.JSONSchema)) {
		return fmt.Errorf("json_schema is not valid JSON")
	}
	return nil
}

// EnsureSessionID assigns a fresh UUID when the config starts a new
// conversation without one, so the id (and the transcript path) is known
// before the first turn. It returns the id, or "" when resuming.
func (c *Config) EnsureSessionID() string {
	if c.SessionID == "" && c.Resume == "" && !c.Continue {
		c.SessionID = uuid.NewString()
	}
	return c.SessionID
}

// SessionOptions maps the engine fields to session options. logger may be
// nil for slog.Default.
func (c *Config) SessionOptions(logger *slog.Logger) []session.Option {
	opts := []session.Option{
		session.WithEchoMode(c.EchoMode),
		session.WithWorkDir(c.WorkDir),
		session.WithHomeDir(c.HomeDir),
	}
	if logger != nil {
		opts = append(opts, session.WithLogger(logger))
	}
	if c.Debug {
		opts = append(opts, session.WithDebug(true))
	}
	if id := c.knownSessionID(); id != "" {
		opts = append(opts, session.WithSessionID(id))
	}
	if c.StartupGrace > 0 {
		opts = append(opts, session.WithStartupGrace(c.StartupGrace))
	}
	if c.ShutdownGrace > 0 {
		opts = append(opts, session.WithShutdownGrace(c.ShutdownGrace))
	}
	return opts
}

// knownSessionID is the conversation id before the CLI reports one.
func (c *Config) knownSessionID() string {
	if c.SessionID != "" {
		return c.SessionID
	}
	if c.Resume != "" && !c.ForkSession {
		return c.Resume
	}
	return ""
}
