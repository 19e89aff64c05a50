package main

import (
	"context"
	"io"
	"os"

	"github.com/core-tools/hsu-stack/pkg/config"
	"github.com/core-tools/hsu-stack/pkg/errors"
	"github.com/core-tools/hsu-stack/pkg/logging"
	"github.com/core-tools/hsu-stack/pkg/orchestrator"
)

const defaultConfigFile = "hsu-stack.yaml"

// app builds the orchestrator on first use, after go-flags has filled in
// the global options.
type app struct {
	ctx     context.Context
	opts    *globalOptions
	out     io.Writer
	console *consoleReporter

	cfg    *config.Config
	logger *logging.ZapLogger
	orch   *orchestrator.Orchestrator
}

func newApp(ctx context.Context, opts *globalOptions, out io.Writer) *app {
	return &app{
		ctx:     ctx,
		opts:    opts,
		out:     out,
		console: newConsoleReporter(out),
	}
}

func (a *app) orchestrator() (*orchestrator.Orchestrator, error) {
	if a.orch != nil {
		return a.orch, nil
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	a.cfg = cfg

	zapConfig := logging.DefaultZapConfig()
	zapConfig.Level = firstNonEmpty(a.opts.LogLevel, cfg.Orchestrator.LogLevel, zapConfig.Level)
	zapConfig.Format = firstNonEmpty(a.opts.LogFormat, cfg.Orchestrator.LogFormat, zapConfig.Format)
	logger, err := logging.NewZapLogger(zapConfig)
	if err != nil {
		return nil, errors.NewValidationError("invalid logging options", err)
	}
	a.logger = logger

	orch, err := orchestrator.NewFromConfig(cfg, a.console, a.out, logging.WithPrefix(logger, "stackctl , "))
	if err != nil {
		return nil, err
	}
	a.orch = orch
	return orch, nil
}

// loadConfig reads the file named by --config, or hsu-stack.yaml in the
// working directory if present, or falls back to the built-in defaults.
func (a *app) loadConfig() (*config.Config, error) {
	path := a.opts.Config
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err != nil {
			return config.DefaultConfig(), nil
		}
		path = defaultConfigFile
	}
	return config.LoadConfigFromFile(path)
}

// shutdownContext is used for teardown after the run context was cancelled
// by a signal.
func (a *app) shutdownContext() context.Context {
	return context.Background()
}

func (a *app) finish(report *orchestrator.Report) {
	if report == nil {
		return
	}
	a.console.Summary(report)

	if a.cfg == nil || a.cfg.Orchestrator.MetricsTextfile == "" || a.orch == nil {
		return
	}
	path := a.cfg.ResolvePath(a.cfg.Orchestrator.MetricsTextfile)
	if err := a.orch.Metrics().WriteTextfile(path); err != nil {
		a.console.Warning("failed to write metrics textfile " + path + ": " + err.Error())
	}
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
