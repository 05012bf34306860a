package session

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// DebugEnv enables protocol logging when set to "true" or "1".
const DebugEnv = "CLAUDE_SDK_DEBUG"

// Option configures a Session or Cooperative.
type Option func(*config)

type config struct {
	listener      Listener
	echo          bool
	logger        *slog.Logger
	debug         bool
	sessionID     string
	workDir       string
	homeDir       string
	startupGrace  time.Duration
	shutdownGrace time.Duration
	maxLineSize   int
}

func defaultConfig() config {
	return config{
		listener:      NopListener{},
		startupGrace:  250 * time.Millisecond,
		shutdownGrace: 5 * time.Second,
		maxLineSize:   10 * 1024 * 1024,
		debug:         debugFromEnv(),
	}
}

func newConfig(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.listener == nil {
		cfg.listener = NopListener{}
	}
	return cfg
}

func debugFromEnv() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(DebugEnv)))
	return v == "true" || v == "1"
}

// WithListener sets the callback receiver. Use Listeners to combine several.
func WithListener(l Listener) Option {
	return func(c *config) { c.listener = l }
}

// WithEchoMode injects prompts and interrupts into the message stream as
// synthetic user messages.
func WithEchoMode(enabled bool) Option {
	return func(c *config) { c.echo = enabled }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithDebug logs every line written to and read from the process at debug
// level. Defaults to the CLAUDE_SDK_DEBUG environment variable.
func WithDebug(enabled bool) Option {
	return func(c *config) { c.debug = enabled }
}

// WithSessionID sets the client-chosen session id sent with requests until
// the process reports its own.
func WithSessionID(id string) Option {
	return func(c *config) { c.sessionID = id }
}

// WithWorkDir records the directory the process runs in, for
// TranscriptPath. It does not change the Command.
func WithWorkDir(dir string) Option {
	return func(c *config) { c.workDir = dir }
}

// WithHomeDir records the home directory the process sees, for
// TranscriptPath.
func WithHomeDir(dir string) Option {
	return func(c *config) { c.homeDir = dir }
}

// WithStartupGrace sets how long Connect watches for an early exit.
func WithStartupGrace(d time.Duration) Option {
	return func(c *config) { c.startupGrace = d }
}

// WithShutdownGrace sets how long Disconnect waits at each step (stdin
// close, SIGTERM) before escalating.
func WithShutdownGrace(d time.Duration) Option {
	return func(c *config) { c.shutdownGrace = d }
}

// WithMaxLineSize caps the length of a single output line.
func WithMaxLineSize(n int) Option {
	return func(c *config) { c.maxLineSize = n }
}
