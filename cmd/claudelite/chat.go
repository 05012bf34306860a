package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/randalmurphal/claudelite/claude"
	"github.com/randalmurphal/claudelite/claude/protocol"
	"github.com/randalmurphal/claudelite/internal/logging"
	"github.com/randalmurphal/claudelite/metrics"
)

type chatFlags struct {
	configPath   string
	model        string
	systemPrompt string
	echo         bool
	debug        bool
	timeout      time.Duration
	metricsAddr  string
	cooperative  bool
}

func parseChatFlags(args []string) (chatFlags, []string, error) {
	var f chatFlags
	fs := flag.NewFlagSet("claudelite", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "config file (.yaml, .yml, .toml or .json)")
	fs.StringVar(&f.model, "model", "", "model to use")
	fs.StringVar(&f.systemPrompt, "system-prompt", "", "system prompt")
	fs.BoolVar(&f.echo, "echo", false, "show prompts and interrupts as user messages")
	fs.BoolVar(&f.debug, "debug", false, "log protocol traffic")
	fs.DurationVar(&f.timeout, "timeout", 0, "per-turn timeout (0 keeps the config value)")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fs.BoolVar(&f.cooperative, "cooperative", false, "read the one-shot query on the calling goroutine")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage, "\nflags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return f, nil, err
	}
	return f, fs.Args(), nil
}

// loadConfig layers defaults, the config file, CLAUDE_ variables and flags,
// later ones winning.
func loadConfig(f chatFlags) (claude.Config, error) {
	cfg := claude.DefaultConfig()
	if f.configPath != "" {
		var err error
		if cfg, err = claude.LoadFile(f.configPath); err != nil {
			return cfg, err
		}
	}
	cfg.LoadFromEnv()

	if f.model != "" {
		cfg.Model = f.model
	}
	if f.systemPrompt != "" {
		cfg.SystemPrompt = f.systemPrompt
	}
	if f.echo {
		cfg.EchoMode = true
	}
	if f.debug {
		cfg.Debug = true
	}
	if f.timeout > 0 {
		cfg.TurnTimeout = f.timeout
	}
	return cfg, cfg.Validate()
}

func runChat(args []string) error {
	f, rest, err := parseChatFlags(args)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	logger := logging.Setup(f.debug)

	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	var listener *metrics.Listener
	if f.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		listener = metrics.New(reg)
		srv := serveMetrics(f.metricsAddr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if len(rest) > 0 {
		return runOnce(ctx, cfg, strings.Join(rest, " "), f.cooperative, os.Stdout)
	}

	r := &repl{
		cfg:     cfg,
		in:      os.Stdin,
		out:     os.Stdout,
		metrics: listener,
		logger:  logger,
	}
	return r.run(ctx)
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

// runOnce answers a single prompt and prints the reply as it streams in.
// Ctrl+C cancels the query.
func runOnce(ctx context.Context, cfg claude.Config, prompt string, cooperative bool, out io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	query := claude.Query
	if cooperative {
		query = claude.Stream
	}

	p := &printer{out: out}
	for msg, err := range query(ctx, prompt, cfg) {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(out, "\n[Canceled]")
			return nil
		}
		if err != nil {
			return err
		}
		p.print(msg)
		if r, ok := msg.(*protocol.ResultMessage); ok && r.IsError {
			return &claude.ResultError{Result: r}
		}
	}
	fmt.Fprintln(out)
	return nil
}
