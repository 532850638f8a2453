package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yungbote/neurobridge-coursegen/internal/course"
	"github.com/yungbote/neurobridge-coursegen/internal/data/db"
	"github.com/yungbote/neurobridge-coursegen/internal/llm"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "ARK_API_KEY", "LLM_PROVIDER", "NEO4J_URI", "REDIS_ADDR", "OTEL_ENABLED", "METRICS_ENABLED", "COURSEGEN_POLICY_YAML"} {
		t.Setenv(k, "")
	}
}

func TestLocalModeWithoutCredentials(t *testing.T) {
	isolateEnv(t)
	ctx := context.Background()
	a, err := New(ctx, logger.Nop(), LoadConfig(), ModeLocal)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close(ctx)

	if a.DB != nil || a.Server != nil {
		t.Fatalf("local mode should not wire a database or server")
	}
	if _, err := a.Generations.GenerateSync(ctx, course.GenerationInput{Topic: "Go"}, nil); !errors.Is(err, llm.ErrNotConfigured) {
		t.Fatalf("GenerateSync err=%v", err)
	}
}

func TestServerModeOnSQLite(t *testing.T) {
	isolateEnv(t)
	ctx := context.Background()
	cfg := LoadConfig()
	cfg.DB = db.Config{Driver: db.DriverSQLite, DSN: "file:app_test?mode=memory&cache=shared"}

	a, err := New(ctx, logger.Nop(), cfg, ModeServer)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close(ctx)

	rec := httptest.NewRecorder()
	a.Server.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/course-generations", nil)
	req.Body = http.NoBody
	a.Server.Engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty create status=%d", rec.Code)
	}
}
