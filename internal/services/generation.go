package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"gorm.io/datatypes"

	"github.com/yungbote/neurobridge-coursegen/internal/course"
	"github.com/yungbote/neurobridge-coursegen/internal/data/graph"
	"github.com/yungbote/neurobridge-coursegen/internal/data/repos"
	types "github.com/yungbote/neurobridge-coursegen/internal/domain"
	"github.com/yungbote/neurobridge-coursegen/internal/llm"
	"github.com/yungbote/neurobridge-coursegen/internal/pkg/dbctx"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/neo4jdb"
	"github.com/yungbote/neurobridge-coursegen/internal/workflow"
)

var (
	ErrPersistenceDisabled = errors.New("generation runs are not persisted in this mode")
	ErrRunFinished         = errors.New("generation run already finished")
)

type GenerationService interface {
	// Start persists a queued run and generates it in the background.
	Start(ctx context.Context, input course.GenerationInput) (*types.GenerationRun, error)
	Get(ctx context.Context, id uuid.UUID) (*types.GenerationRun, error)
	List(ctx context.Context, status string, limit int) ([]*types.GenerationRun, error)
	Checkpoints(ctx context.Context, id uuid.UUID) ([]*types.GenerationCheckpoint, error)
	// Cancel stops a queued or running generation. Cancellation is cooperative: the run ends at
	// its next node boundary or LLM call.
	Cancel(ctx context.Context, id uuid.UUID) (*types.GenerationRun, error)
	// GenerateSync runs one generation in the caller's goroutine without persisting it.
	GenerateSync(ctx context.Context, input course.GenerationInput, onProgress workflow.ProgressFunc) (*course.State, error)
	// RecoverInterrupted fails runs a previous process left queued or running.
	RecoverInterrupted(ctx context.Context) error
	// Shutdown cancels in-flight runs and waits for them to record their outcome.
	Shutdown(ctx context.Context) error
}

type GenerationServiceConfig struct {
	Completer     llm.Completer
	Policy        workflow.Policy
	MaxConcurrent int64
	// GraphSyncTimeout bounds the Neo4j export after a successful run.
	GraphSyncTimeout time.Duration
}

type generationService struct {
	log      *logger.Logger
	runner   *workflow.Runner
	repos    repos.Repos
	notifier GenerationNotifier
	graph    *neo4jdb.Client
	sem      *semaphore.Weighted
	syncTO   time.Duration

	root     context.Context
	stopRoot context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
}

// NewGenerationService builds the runner with a checkpointer that stores every node's state for
// persisted runs. r.Runs and r.Checkpoints may be nil when only GenerateSync is used.
func NewGenerationService(
	baseLog *logger.Logger,
	cfg GenerationServiceConfig,
	r repos.Repos,
	notifier GenerationNotifier,
	graphClient *neo4jdb.Client,
) (GenerationService, error) {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.GraphSyncTimeout <= 0 {
		cfg.GraphSyncTimeout = 30 * time.Second
	}
	if cfg.Policy == (workflow.Policy{}) {
		cfg.Policy = workflow.DefaultPolicy()
	}

	root, stop := context.WithCancel(context.Background())
	s := &generationService{
		log:      baseLog.With("service", "GenerationService"),
		repos:    r,
		notifier: notifier,
		graph:    graphClient,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		syncTO:   cfg.GraphSyncTimeout,
		root:     root,
		stopRoot: stop,
		running:  map[uuid.UUID]context.CancelFunc{},
	}

	runner, err := workflow.NewRunner(cfg.Completer, baseLog,
		workflow.WithPolicy(cfg.Policy),
		workflow.WithCheckpointer(workflow.CheckpointFunc(s.checkpoint)),
	)
	if err != nil {
		stop()
		return nil, err
	}
	s.runner = runner
	return s, nil
}

func (s *generationService) Start(ctx context.Context, input course.GenerationInput) (*types.GenerationRun, error) {
	if s.repos.Runs == nil {
		return nil, ErrPersistenceDisabled
	}
	if !s.runner.Ready() {
		return nil, llm.ErrNotConfigured
	}
	in := course.NormalizeInput(input)
	if in.Topic == "" {
		return nil, fmt.Errorf("%w: topic is required", workflow.ErrInvalidInput)
	}
	rawInput, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}

	run, err := s.repos.Runs.Create(dbctx.New(ctx), &types.GenerationRun{
		Topic:            in.Topic,
		TargetDifficulty: string(in.TargetDifficulty),
		Input:            datatypes.JSON(rawInput),
		Status:           types.GenerationStatusQueued,
		Stage:            types.GenerationStatusQueued,
	})
	if err != nil {
		return nil, fmt.Errorf("create generation run: %w", err)
	}

	runCtx, cancel := context.WithCancel(s.root)
	s.mu.Lock()
	s.running[run.ID] = cancel
	s.mu.Unlock()

	s.notifier.Created(ctx, run)
	s.log.Info("Generation queued", "run_id", run.ID, "topic", in.Topic)

	snapshot := *run
	s.wg.Add(1)
	go s.execute(runCtx, &snapshot, in)
	return run, nil
}

func (s *generationService) execute(ctx context.Context, run *types.GenerationRun, in course.GenerationInput) {
	defer s.wg.Done()
	defer s.forget(run.ID)

	log := s.log.With("run_id", run.ID)
	// Terminal writes must land even after the run context is canceled.
	persistCtx := context.WithoutCancel(ctx)

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.finishCanceled(persistCtx, run)
		return
	}
	defer s.sem.Release(1)

	now := time.Now().UTC()
	ok, err := s.repos.Runs.UpdateFieldsUnlessStatus(dbctx.New(persistCtx), run.ID, types.TerminalGenerationStatuses, map[string]interface{}{
		"status":     types.GenerationStatusRunning,
		"stage":      string(course.PhaseStrategizing),
		"started_at": now,
	})
	if err != nil {
		log.Warn("Failed to mark run running", "error", err)
	}
	if !ok && err == nil {
		// Canceled between Start and here.
		return
	}
	run.Status = types.GenerationStatusRunning
	run.StartedAt = &now

	ctx = ctxutil.WithRunData(ctx, &ctxutil.RunData{RunID: run.ID.String()})
	onProgress := func(ev workflow.ProgressEvent) {
		if _, err := s.repos.Runs.UpdateProgress(dbctx.New(persistCtx), run.ID, string(ev.Phase), ev.Progress, ev.Summary); err != nil {
			log.Debug("Failed to store progress", "error", err)
		}
		s.notifier.Progress(persistCtx, run, ev)
	}

	state, err := s.runner.Run(ctx, in, onProgress)
	switch {
	case err == nil:
		s.finishSucceeded(persistCtx, run, state)
	case errors.Is(err, context.Canceled):
		s.finishCanceled(persistCtx, run)
	default:
		s.finishFailed(persistCtx, run, err)
	}
}

func (s *generationService) finishSucceeded(ctx context.Context, run *types.GenerationRun, state *course.State) {
	log := s.log.With("run_id", run.ID)
	raw, err := course.EncodeState(state)
	if err != nil {
		s.finishFailed(ctx, run, fmt.Errorf("encode final state: %w", err))
		return
	}

	now := time.Now().UTC()
	run.Status = types.GenerationStatusSucceeded
	run.Stage = string(course.PhaseComplete)
	run.Progress = 100
	run.Iterations = state.Metadata.Iterations
	run.AlignmentScore = state.Alignment.OverallScore
	run.ModuleCount = len(state.Modules)
	run.LessonCount = state.LessonCount()
	run.MissingContent = len(state.LessonsMissingContent())
	run.FinishedAt = &now

	ok, err := s.repos.Runs.UpdateFieldsUnlessStatus(dbctx.New(ctx), run.ID, types.TerminalGenerationStatuses, map[string]interface{}{
		"status":          run.Status,
		"stage":           run.Stage,
		"progress":        run.Progress,
		"message":         fmt.Sprintf("Course %q is ready", state.Course.Title),
		"iterations":      run.Iterations,
		"alignment_score": run.AlignmentScore,
		"module_count":    run.ModuleCount,
		"lesson_count":    run.LessonCount,
		"missing_content": run.MissingContent,
		"state":           datatypes.JSON(raw),
		"finished_at":     now,
	})
	if err != nil {
		log.Error("Failed to store finished run", "error", err)
		return
	}
	if !ok {
		log.Warn("Run finished after it was canceled; result discarded")
		return
	}

	s.syncGraph(ctx, run.ID.String(), state)
	s.notifier.Done(ctx, run)
}

func (s *generationService) finishFailed(ctx context.Context, run *types.GenerationRun, runErr error) {
	node := ""
	var ne *workflow.NodeError
	if errors.As(runErr, &ne) {
		node = ne.Node
	}
	now := time.Now().UTC()
	if _, err := s.repos.Runs.UpdateFieldsUnlessStatus(dbctx.New(ctx), run.ID, types.TerminalGenerationStatuses, map[string]interface{}{
		"status":      types.GenerationStatusFailed,
		"stage":       types.GenerationStatusFailed,
		"error":       runErr.Error(),
		"failed_node": node,
		"finished_at": now,
	}); err != nil {
		s.log.Error("Failed to store failed run", "run_id", run.ID, "error", err)
	}
	run.Status = types.GenerationStatusFailed
	run.Error = runErr.Error()
	run.FailedNode = node
	run.FinishedAt = &now
	s.log.Warn("Generation failed", "run_id", run.ID, "node", node, "error", runErr)
	s.notifier.Failed(ctx, run, node, runErr.Error())
}

func (s *generationService) finishCanceled(ctx context.Context, run *types.GenerationRun) {
	ok, err := s.markCanceled(ctx, run.ID)
	if err != nil {
		s.log.Error("Failed to store canceled run", "run_id", run.ID, "error", err)
		return
	}
	if ok {
		run.Status = types.GenerationStatusCanceled
		s.log.Info("Generation canceled", "run_id", run.ID)
		s.notifier.Canceled(ctx, run)
	}
}

func (s *generationService) markCanceled(ctx context.Context, id uuid.UUID) (bool, error) {
	now := time.Now().UTC()
	return s.repos.Runs.UpdateFieldsUnlessStatus(dbctx.New(ctx), id, types.TerminalGenerationStatuses, map[string]interface{}{
		"status":      types.GenerationStatusCanceled,
		"stage":       types.GenerationStatusCanceled,
		"finished_at": now,
	})
}

func (s *generationService) syncGraph(ctx context.Context, runID string, state *course.State) {
	if s.graph == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.syncTO)
	defer cancel()
	if err := graph.UpsertCourseGraph(ctx, s.graph, s.log, runID, state); err != nil {
		s.log.Warn("Concept graph sync failed", "run_id", runID, "error", err)
	}
}

func (s *generationService) checkpoint(ctx context.Context, runID, node string, st *course.State) error {
	if s.repos.Checkpoints == nil {
		return nil
	}
	id, err := uuid.Parse(runID)
	if err != nil || !s.tracked(id) {
		return nil
	}
	raw, err := course.EncodeState(st)
	if err != nil {
		return err
	}
	_, err = s.repos.Checkpoints.Append(dbctx.New(context.WithoutCancel(ctx)), &types.GenerationCheckpoint{
		RunID: id,
		Node:  node,
		Phase: string(st.Metadata.CurrentPhase),
		State: datatypes.JSON(raw),
	})
	return err
}

func (s *generationService) tracked(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[id]
	return ok
}

func (s *generationService) forget(id uuid.UUID) {
	s.mu.Lock()
	cancel := s.running[id]
	delete(s.running, id)
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *generationService) Get(ctx context.Context, id uuid.UUID) (*types.GenerationRun, error) {
	if s.repos.Runs == nil {
		return nil, ErrPersistenceDisabled
	}
	run, err := s.repos.Runs.GetByID(dbctx.New(ctx), id)
	if err != nil {
		return nil, err
	}
	run.State = s.normalizeStored(run.ID, run.State)
	return run, nil
}

func (s *generationService) List(ctx context.Context, status string, limit int) ([]*types.GenerationRun, error) {
	if s.repos.Runs == nil {
		return nil, ErrPersistenceDisabled
	}
	return s.repos.Runs.List(dbctx.New(ctx), strings.TrimSpace(status), limit)
}

func (s *generationService) Checkpoints(ctx context.Context, id uuid.UUID) ([]*types.GenerationCheckpoint, error) {
	if s.repos.Checkpoints == nil {
		return nil, ErrPersistenceDisabled
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	cps, err := s.repos.Checkpoints.ListByRun(dbctx.New(ctx), id)
	if err != nil {
		return nil, err
	}
	for _, cp := range cps {
		cp.State = s.normalizeStored(id, cp.State)
	}
	return cps, nil
}

// normalizeStored reads a stored state column back through the state codec so readers always
// get the canonical form. A column that cannot be decoded is returned as stored.
func (s *generationService) normalizeStored(runID uuid.UUID, raw datatypes.JSON) datatypes.JSON {
	if len(bytes.TrimSpace(raw)) == 0 {
		return raw
	}
	st, err := course.DecodeState(raw)
	if err != nil {
		s.log.Warn("Stored state is unreadable", "run_id", runID, "error", err)
		return raw
	}
	out, err := course.EncodeState(st)
	if err != nil {
		return raw
	}
	return datatypes.JSON(out)
}

func (s *generationService) Cancel(ctx context.Context, id uuid.UUID) (*types.GenerationRun, error) {
	run, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Terminal() {
		return run, ErrRunFinished
	}

	s.mu.Lock()
	cancel := s.running[id]
	s.mu.Unlock()

	if cancel != nil {
		// The run's goroutine records the cancellation.
		cancel()
		s.log.Info("Cancel requested", "run_id", id)
		return run, nil
	}

	// Owned by no goroutine in this process: mark it directly.
	ok, err := s.markCanceled(ctx, id)
	if err != nil {
		return nil, err
	}
	if ok {
		run.Status = types.GenerationStatusCanceled
		s.notifier.Canceled(ctx, run)
	}
	return s.Get(ctx, id)
}

func (s *generationService) GenerateSync(ctx context.Context, input course.GenerationInput, onProgress workflow.ProgressFunc) (*course.State, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	runID := uuid.New().String()
	if rd := ctxutil.GetRunData(ctx); rd != nil && strings.TrimSpace(rd.RunID) != "" {
		runID = rd.RunID
	} else {
		ctx = ctxutil.WithRunData(ctx, &ctxutil.RunData{RunID: runID})
	}

	state, err := s.runner.Run(ctx, input, onProgress)
	if err != nil {
		return nil, err
	}
	s.syncGraph(ctx, runID, state)
	return state, nil
}

func (s *generationService) RecoverInterrupted(ctx context.Context) error {
	if s.repos.Runs == nil {
		return nil
	}
	_, err := s.repos.Runs.FailInterrupted(dbctx.New(ctx), "interrupted by a server restart")
	return err
}

func (s *generationService) Shutdown(ctx context.Context) error {
	s.stopRoot()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
