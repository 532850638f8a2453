package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-coursegen/internal/course"
	"github.com/yungbote/neurobridge-coursegen/internal/data/repos"
	types "github.com/yungbote/neurobridge-coursegen/internal/domain"
	"github.com/yungbote/neurobridge-coursegen/internal/llm"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
	"github.com/yungbote/neurobridge-coursegen/internal/realtime"
	"github.com/yungbote/neurobridge-coursegen/internal/services"
	"github.com/yungbote/neurobridge-coursegen/internal/workflow"
)

type fakeGenerations struct {
	mu       sync.Mutex
	runs     map[uuid.UUID]*types.GenerationRun
	started  []course.GenerationInput
	startErr error
}

func newFakeGenerations() *fakeGenerations {
	return &fakeGenerations{runs: map[uuid.UUID]*types.GenerationRun{}}
}

func (f *fakeGenerations) add(status string) *types.GenerationRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	run := &types.GenerationRun{ID: uuid.New(), Topic: "Go", Status: status, Stage: status, Progress: 40}
	f.runs[run.ID] = run
	return run
}

func (f *fakeGenerations) Start(ctx context.Context, in course.GenerationInput) (*types.GenerationRun, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.mu.Lock()
	f.started = append(f.started, in)
	f.mu.Unlock()
	run := f.add(types.GenerationStatusQueued)
	run.Topic = in.Topic
	return run, nil
}

func (f *fakeGenerations) Get(ctx context.Context, id uuid.UUID) (*types.GenerationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return nil, repos.ErrNotFound
	}
	cp := *run
	return &cp, nil
}

func (f *fakeGenerations) List(ctx context.Context, status string, limit int) ([]*types.GenerationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.GenerationRun
	for _, r := range f.runs {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeGenerations) Checkpoints(ctx context.Context, id uuid.UUID) ([]*types.GenerationCheckpoint, error) {
	if _, err := f.Get(ctx, id); err != nil {
		return nil, err
	}
	return []*types.GenerationCheckpoint{{RunID: id, Sequence: 1, Node: "strategize"}}, nil
}

func (f *fakeGenerations) Cancel(ctx context.Context, id uuid.UUID) (*types.GenerationRun, error) {
	run, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Terminal() {
		return run, services.ErrRunFinished
	}
	return run, nil
}

func (f *fakeGenerations) GenerateSync(ctx context.Context, in course.GenerationInput, onProgress workflow.ProgressFunc) (*course.State, error) {
	return nil, errors.New("not used")
}

func (f *fakeGenerations) RecoverInterrupted(ctx context.Context) error { return nil }
func (f *fakeGenerations) Shutdown(ctx context.Context) error           { return nil }

func newTestRouter(f *fakeGenerations, hub *realtime.SSEHub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewGenerationHandler(logger.Nop(), f, hub)
	r := gin.New()
	g := r.Group("/api/course-generations")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/checkpoints", h.Checkpoints)
	g.GET("/:id/events", h.Events)
	g.POST("/:id/cancel", h.Cancel)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return env.Error.Code
}

func TestCreateGeneration(t *testing.T) {
	f := newFakeGenerations()
	r := newTestRouter(f, realtime.NewSSEHub(logger.Nop()))

	rec := do(r, http.MethodPost, "/api/course-generations",
		`{"topic":"Negotiation","targetDifficulty":"Advanced","assessmentResponses":{"goal":"close deals"}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if len(f.started) != 1 || f.started[0].TargetDifficulty != course.DifficultyAdvanced || f.started[0].AssessmentResponses["goal"] != "close deals" {
		t.Fatalf("started=%+v", f.started)
	}

	cases := []struct {
		body string
		code string
	}{
		{`{"targetDifficulty":"beginner"}`, "invalid_request"},
		{`{"topic":"Go","targetDifficulty":"wizard"}`, "invalid_difficulty"},
		{`{`, "invalid_request"},
	}
	for _, tc := range cases {
		rec := do(r, http.MethodPost, "/api/course-generations", tc.body)
		if rec.Code != http.StatusBadRequest || errorCode(t, rec) != tc.code {
			t.Fatalf("body %s: status=%d resp=%s", tc.body, rec.Code, rec.Body.String())
		}
	}
}

func TestCreateGenerationMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{llm.ErrNotConfigured, http.StatusServiceUnavailable, "llm_not_configured"},
		{workflow.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
		{services.ErrPersistenceDisabled, http.StatusNotImplemented, "persistence_disabled"},
		{errors.New("db down"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		f := newFakeGenerations()
		f.startErr = tc.err
		rec := do(newTestRouter(f, realtime.NewSSEHub(logger.Nop())), http.MethodPost, "/api/course-generations", `{"topic":"Go"}`)
		if rec.Code != tc.status || errorCode(t, rec) != tc.code {
			t.Fatalf("%v: status=%d body=%s", tc.err, rec.Code, rec.Body.String())
		}
	}
}

func TestGetAndCancelGeneration(t *testing.T) {
	f := newFakeGenerations()
	r := newTestRouter(f, realtime.NewSSEHub(logger.Nop()))
	running := f.add(types.GenerationStatusRunning)
	done := f.add(types.GenerationStatusSucceeded)

	if rec := do(r, http.MethodGet, "/api/course-generations/"+running.ID.String(), ""); rec.Code != http.StatusOK {
		t.Fatalf("get status=%d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/api/course-generations/not-a-uuid", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status=%d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/api/course-generations/"+uuid.New().String(), ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing status=%d", rec.Code)
	}
	if rec := do(r, http.MethodPost, "/api/course-generations/"+running.ID.String()+"/cancel", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("cancel status=%d", rec.Code)
	}
	rec := do(r, http.MethodPost, "/api/course-generations/"+done.ID.String()+"/cancel", "")
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "generation_finished" {
		t.Fatalf("cancel finished status=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"run_id":"`+done.ID.String()+`"`) {
		t.Fatalf("run-scoped error should name the run: %s", rec.Body.String())
	}
	if rec := do(r, http.MethodGet, "/api/course-generations/"+running.ID.String()+"/checkpoints", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "strategize") {
		t.Fatalf("checkpoints status=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec := do(r, http.MethodGet, "/api/course-generations?status=succeeded", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), done.ID.String()) {
		t.Fatalf("list status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestEventsForFinishedRunSendsOneTerminalEvent(t *testing.T) {
	f := newFakeGenerations()
	hub := realtime.NewSSEHub(logger.Nop())
	r := newTestRouter(f, hub)
	run := f.add(types.GenerationStatusFailed)

	rec := do(r, http.MethodGet, "/api/course-generations/"+run.ID.String()+"/events", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if strings.Count(rec.Body.String(), "event: ") != 1 || !strings.Contains(rec.Body.String(), "event: GenerationFailed") {
		t.Fatalf("body=%q", rec.Body.String())
	}
	if hub.Subscribers(run.ID.String()) != 0 {
		t.Fatalf("client not released")
	}
}

func TestEventsStreamsUntilTerminal(t *testing.T) {
	f := newFakeGenerations()
	hub := realtime.NewSSEHub(logger.Nop())
	r := newTestRouter(f, hub)
	run := f.add(types.GenerationStatusRunning)
	channel := run.ID.String()

	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for hub.Subscribers(channel) == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		hub.Broadcast(realtime.SSEMessage{Channel: channel, Event: realtime.SSEEventGenerationProgress, Data: map[string]any{"progress": 70}})
		hub.Broadcast(realtime.SSEMessage{Channel: channel, Event: realtime.SSEEventGenerationDone})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/course-generations/"+channel+"/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if ctx.Err() != nil {
		t.Fatalf("stream did not close after the terminal event")
	}
	body := rec.Body.String()
	first := strings.Index(body, "event: GenerationProgress")
	last := strings.Index(body, "event: GenerationDone")
	if first < 0 || last < first || strings.Count(body, "event: GenerationProgress") != 2 {
		t.Fatalf("body=%q", body)
	}
}

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	healthy := NewHealthHandler(map[string]Pinger{"database": PingFunc(func(context.Context) error { return nil })})
	sick := NewHealthHandler(map[string]Pinger{"database": PingFunc(func(context.Context) error { return errors.New("down") })})
	r.GET("/ok", healthy.HealthCheck)
	r.GET("/bad", sick.HealthCheck)

	if rec := do(r, http.MethodGet, "/ok", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthy status=%d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/bad", ""); rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "degraded") {
		t.Fatalf("sick status=%d body=%s", rec.Code, rec.Body.String())
	}
}
