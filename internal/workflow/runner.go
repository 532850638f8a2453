package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/neurobridge-coursegen/internal/agents"
	"github.com/yungbote/neurobridge-coursegen/internal/course"
	"github.com/yungbote/neurobridge-coursegen/internal/llm"
	"github.com/yungbote/neurobridge-coursegen/internal/observability"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
)

var (
	ErrInvalidInput = errors.New("workflow: invalid generation input")
	ErrInvalidState = errors.New("workflow: invalid state")
	ErrEmptyModule  = errors.New("workflow: module has no lessons")
)

// NodeError names the graph node a run failed in.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string { return fmt.Sprintf("workflow: node %s: %v", e.Node, e.Err) }
func (e *NodeError) Unwrap() error { return e.Err }

// Checkpointer receives the reduced state after every node. Errors are logged and ignored.
type Checkpointer interface {
	Checkpoint(ctx context.Context, runID, node string, s *course.State) error
}

type CheckpointFunc func(ctx context.Context, runID, node string, s *course.State) error

func (f CheckpointFunc) Checkpoint(ctx context.Context, runID, node string, s *course.State) error {
	return f(ctx, runID, node, s)
}

// RunContext is everything one run owns: its id, logger, last-known-good backup and progress
// reporter. It travels on the context so concurrent runs never share it.
type RunContext struct {
	RunID  string
	Log    *logger.Logger
	Backup *course.Backup

	progress *progressReporter

	mu      sync.Mutex
	nodeErr *NodeError
	content agents.ContentReport
}

func (rc *RunContext) fail(node string, err error) error {
	ne := &NodeError{Node: node, Err: err}
	rc.mu.Lock()
	if rc.nodeErr == nil {
		rc.nodeErr = ne
	}
	rc.mu.Unlock()
	return ne
}

// ContentReport returns the counts of the run's content pass.
func (rc *RunContext) ContentReport() agents.ContentReport {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.content
}

type runContextKey struct{}

func withRunContext(ctx context.Context, rc *RunContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, rc)
}

func runContextFrom(ctx context.Context) *RunContext {
	if rc, ok := ctx.Value(runContextKey{}).(*RunContext); ok && rc != nil {
		return rc
	}
	return &RunContext{RunID: "detached", Log: logger.Nop(), Backup: course.NewBackup()}
}

type Option func(*Runner)

func WithPolicy(p Policy) Option { return func(r *Runner) { r.policy = p } }

func WithCheckpointer(c Checkpointer) Option { return func(r *Runner) { r.checkpointer = c } }

// Runner executes the course generation graph. A Runner is safe for concurrent runs.
type Runner struct {
	log          *logger.Logger
	llm          llm.Completer
	policy       Policy
	checkpointer Checkpointer

	strategist agents.Agent
	architect  agents.Agent
	mapper     agents.Agent
	validator  agents.Agent
	refiner    agents.Agent
	content    *agents.ContentGenerator

	graph compose.Runnable[*course.State, *course.State]
}

// NewRunner compiles the graph. A nil completer is accepted; Run then fails with
// llm.ErrNotConfigured before any node executes.
func NewRunner(c llm.Completer, log *logger.Logger, opts ...Option) (*Runner, error) {
	if log == nil {
		log = logger.Nop()
	}
	r := &Runner{
		log:    log.With("component", "CourseWorkflow"),
		llm:    c,
		policy: DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.policy.Validate(); err != nil {
		return nil, fmt.Errorf("workflow policy: %w", err)
	}

	deps := agents.Deps{LLM: c, Log: log, Context: r.policy.Context, QualityThreshold: r.policy.QualityThreshold}
	r.strategist = agents.NewStrategist(deps)
	r.architect = agents.NewArchitect(deps)
	r.mapper = agents.NewConceptMapper(deps)
	r.validator = agents.NewFlowValidator(deps)
	r.refiner = agents.NewRefinement(deps)
	r.content = agents.NewContentGenerator(deps)

	g, err := r.buildGraph(context.Background())
	if err != nil {
		return nil, fmt.Errorf("compile workflow graph: %w", err)
	}
	r.graph = g
	return r, nil
}

func (r *Runner) Policy() Policy { return r.policy }

// Ready reports whether the runner has a completer to call.
func (r *Runner) Ready() bool { return r != nil && r.llm != nil }

// Run generates a complete course for input. onProgress may be nil.
func (r *Runner) Run(ctx context.Context, input course.GenerationInput, onProgress ProgressFunc) (*course.State, error) {
	if r == nil || r.llm == nil {
		return nil, llm.ErrNotConfigured
	}
	ctx = ctxutil.Default(ctx)
	in := course.NormalizeInput(input)
	if in.Topic == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrInvalidInput)
	}

	runID := ""
	if rd := ctxutil.GetRunData(ctx); rd != nil {
		runID = strings.TrimSpace(rd.RunID)
	}
	if runID == "" {
		runID = uuid.New().String()
		ctx = ctxutil.WithRunData(ctx, &ctxutil.RunData{RunID: runID})
	}
	rc := &RunContext{
		RunID:    runID,
		Log:      r.log.With("run_id", runID),
		Backup:   course.NewBackup(),
		progress: newProgressReporter(onProgress, r.policy.ProgressInterval),
	}
	ctx = withRunContext(ctx, rc)

	ctx, span := observability.StartSpan(ctx, "coursegen.run",
		attribute.String("run_id", runID),
		attribute.String("topic", in.Topic),
		attribute.String("difficulty", string(in.TargetDifficulty)),
	)
	observability.Current().RunStarted()
	rc.Log.Info("Course generation started", "topic", in.Topic, "difficulty", in.TargetDifficulty)

	out, err := r.graph.Invoke(ctx, course.InitializeState(in))
	if err != nil {
		err = r.classify(ctx, rc, err)
		observability.EndSpan(span, err)
		observability.Current().RunFinished(runStatus(err), 0)
		rc.Log.Warn("Course generation failed", "error", err)
		return nil, err
	}
	if out == nil || out.IsEmpty() {
		if b := rc.Backup.Load(); b != nil && len(b.Modules) > 0 {
			rc.Log.Warn("Graph returned an empty state; using last known good state")
			out = b
		} else {
			err = fmt.Errorf("%w: graph returned no state", ErrInvalidState)
			observability.EndSpan(span, err)
			observability.Current().RunFinished("failed", 0)
			return nil, err
		}
	}

	out.Metadata.CurrentPhase = course.PhaseComplete
	rc.progress.SetTotals(out)
	rc.progress.Done(fmt.Sprintf("Course %q is ready", out.Course.Title))
	observability.EndSpan(span, nil)
	observability.Current().RunFinished("succeeded", out.Metadata.Iterations)
	rc.Log.Info("Course generation finished",
		"modules", len(out.Modules),
		"lessons", out.LessonCount(),
		"iterations", out.Metadata.Iterations,
		"missing_content", len(out.LessonsMissingContent()),
	)
	return out, nil
}

// classify prefers the error recorded by the failing node over the graph engine's wrapping.
func (r *Runner) classify(ctx context.Context, rc *RunContext, err error) error {
	rc.mu.Lock()
	ne := rc.nodeErr
	rc.mu.Unlock()
	if ne != nil {
		return ne
	}
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("workflow: %w", cerr)
	}
	return fmt.Errorf("workflow: %w", err)
}

func runStatus(err error) string {
	switch {
	case err == nil:
		return "succeeded"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "failed"
	}
}
