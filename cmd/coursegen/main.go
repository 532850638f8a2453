package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"

	"github.com/yungbote/neurobridge-coursegen/internal/app"
	"github.com/yungbote/neurobridge-coursegen/internal/cli"
	"github.com/yungbote/neurobridge-coursegen/internal/mcpserver"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
	"github.com/yungbote/neurobridge-coursegen/internal/workflow"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := app.LoadConfig()

	threshold := workflow.DefaultPolicy().QualityThreshold
	if p, err := workflow.LoadPolicy(); err == nil {
		threshold = p.QualityThreshold
	}

	c := &cli.App{
		Version:   cfg.Version,
		Color:     isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()),
		Threshold: threshold,
		OpenLocal: func(ctx context.Context) (mcpserver.Generator, func(), error) {
			a, err := openApp(ctx, cfg, app.ModeLocal, true)
			if err != nil {
				return nil, nil, err
			}
			return a.Generations, func() { a.Close(context.Background()) }, nil
		},
		Serve: func(ctx context.Context) error {
			a, err := openApp(ctx, cfg, app.ModeServer, false)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			return a.Serve(ctx)
		},
		ServeMCP: func(ctx context.Context) error {
			// The stdout trace exporter would corrupt the stdio transport.
			if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
				_ = os.Setenv("OTEL_ENABLED", "false")
			}
			a, err := openApp(ctx, cfg, app.ModeLocal, true)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			return mcpserver.ServeStdio(mcpserver.New(a.Generations, a.Log, cfg.Version))
		},
	}

	return cli.NewRootCmd(c).ExecuteContext(ctx)
}

// openApp builds the logger and the application. Local commands log at warn unless LOG_LEVEL says
// otherwise, so progress output stays readable. zap writes to stderr, which keeps MCP stdout clean.
func openApp(ctx context.Context, cfg app.Config, mode app.Mode, quiet bool) (*app.App, error) {
	if quiet && os.Getenv("LOG_LEVEL") == "" {
		_ = os.Setenv("LOG_LEVEL", "warn")
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := app.New(ctx, log, cfg, mode)
	if err != nil {
		log.Sync()
		return nil, err
	}
	return a, nil
}
