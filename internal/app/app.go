package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/neurobridge-coursegen/internal/data/db"
	"github.com/yungbote/neurobridge-coursegen/internal/data/repos"
	apphttp "github.com/yungbote/neurobridge-coursegen/internal/http"
	httpH "github.com/yungbote/neurobridge-coursegen/internal/http/handlers"
	"github.com/yungbote/neurobridge-coursegen/internal/llm"
	"github.com/yungbote/neurobridge-coursegen/internal/observability"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/neo4jdb"
	"github.com/yungbote/neurobridge-coursegen/internal/realtime"
	"github.com/yungbote/neurobridge-coursegen/internal/realtime/bus"
	"github.com/yungbote/neurobridge-coursegen/internal/services"
	"github.com/yungbote/neurobridge-coursegen/internal/workflow"
)

// Mode selects how much infrastructure New wires.
type Mode int

const (
	// ModeServer persists runs and serves the HTTP API.
	ModeServer Mode = iota
	// ModeLocal generates in-process without a database, for the CLI and the MCP server.
	ModeLocal
)

type App struct {
	Log  *logger.Logger
	Cfg  Config
	Mode Mode

	DB          *db.Service
	Repos       repos.Repos
	Hub         *realtime.SSEHub
	Bus         bus.Bus
	Graph       *neo4jdb.Client
	Metrics     *observability.Metrics
	Generations services.GenerationService
	Server      *apphttp.Server

	otelShutdown func(context.Context) error
}

func New(ctx context.Context, log *logger.Logger, cfg Config, mode Mode) (*App, error) {
	a := &App{Log: log, Cfg: cfg, Mode: mode}

	a.otelShutdown = observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})
	a.Metrics = observability.Init(log)

	policy, err := workflow.LoadPolicy()
	if err != nil {
		return nil, fmt.Errorf("load workflow policy: %w", err)
	}

	completer, err := llm.NewFromEnv(ctx, log)
	if err != nil {
		if !errors.Is(err, llm.ErrNotConfigured) {
			return nil, fmt.Errorf("init llm: %w", err)
		}
		// The server still starts; generation requests fail with 503 until credentials exist.
		log.Warn("LLM provider not configured", "error", err)
		completer = nil
	}

	if a.Graph, err = neo4jdb.NewFromEnv(log); err != nil {
		log.Warn("Neo4j unavailable; concept graph export disabled", "error", err)
		a.Graph = nil
	}

	notifier := services.NewGenerationNotifier(nil)
	if mode == ModeServer {
		if err := a.wireServer(); err != nil {
			a.Close(ctx)
			return nil, err
		}
		notifier = services.NewGenerationNotifier(&services.BusEmitter{Bus: a.Bus})
	}

	a.Generations, err = services.NewGenerationService(log, services.GenerationServiceConfig{
		Completer:     completer,
		Policy:        policy,
		MaxConcurrent: cfg.MaxConcurrentRuns,
	}, a.Repos, notifier, a.Graph)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	if mode == ModeServer {
		a.Server = apphttp.NewServer(apphttp.RouterConfig{
			Log:               log,
			ServiceName:       cfg.ServiceName,
			Metrics:           a.Metrics,
			GenerationHandler: httpH.NewGenerationHandler(log, a.Generations, a.Hub),
			HealthHandler:     httpH.NewHealthHandler(a.healthChecks()),
		})
	}
	return a, nil
}

func (a *App) wireServer() error {
	svc, err := db.Open(a.Log, a.Cfg.DB)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	a.DB = svc
	if err := db.AutoMigrateAll(svc.DB()); err != nil {
		return err
	}
	a.Repos = repos.New(svc.DB(), a.Log)
	a.Hub = realtime.NewSSEHub(a.Log)
	if a.Bus, err = bus.NewSSEBus(a.Log); err != nil {
		return fmt.Errorf("init sse bus: %w", err)
	}
	return nil
}

func (a *App) healthChecks() map[string]httpH.Pinger {
	checks := map[string]httpH.Pinger{}
	if a.DB != nil {
		checks["database"] = httpH.PingFunc(func(ctx context.Context) error {
			sqlDB, err := a.DB.DB().DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		})
	}
	if a.Graph != nil && a.Graph.Driver != nil {
		checks["neo4j"] = httpH.PingFunc(func(ctx context.Context) error {
			return a.Graph.Driver.VerifyConnectivity(ctx)
		})
	}
	return checks
}

// Serve fails runs a previous process left behind, starts the SSE forwarder and serves HTTP until
// ctx is done. In-flight runs are canceled on the way out.
func (a *App) Serve(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized for serving")
	}
	if err := a.Generations.RecoverInterrupted(ctx); err != nil {
		a.Log.Warn("Failed to recover interrupted runs", "error", err)
	}
	if err := a.Bus.StartForwarder(ctx, a.Hub.Broadcast); err != nil {
		return fmt.Errorf("start sse forwarder: %w", err)
	}
	if a.Metrics != nil && a.Cfg.MetricsAddr != "" {
		a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
	}

	addr := ":" + a.Cfg.Port
	a.Log.Info("HTTP server listening", "addr", addr)
	err := a.Server.Run(ctx, addr)
	if serr := a.Generations.Shutdown(context.Background()); serr != nil {
		a.Log.Warn("Generation shutdown incomplete", "error", serr)
	}
	return err
}

func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	if a.Generations != nil {
		_ = a.Generations.Shutdown(ctx)
	}
	if a.Bus != nil {
		_ = a.Bus.Close()
	}
	if a.Graph != nil {
		_ = a.Graph.Close(ctx)
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(ctx)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
