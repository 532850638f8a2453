package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/neurobridge-coursegen/internal/agents"
	"github.com/yungbote/neurobridge-coursegen/internal/course"
	"github.com/yungbote/neurobridge-coursegen/internal/observability"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/ctxutil"
)

const (
	nodeStrategize  = "strategize"
	nodeArchitect   = "architect"
	nodeMapConcepts = "map_concepts"
	nodeValidate    = "validate"
)

// stepFunc runs one node's agent against a recovered, non-empty state.
type stepFunc func(ctx context.Context, rc *RunContext, s *course.State) (*course.Update, error)

type nodeSpec struct {
	name  string
	phase course.Phase
	enter func(s *course.State) string
	leave func(s *course.State) string
	step  stepFunc
	// check runs on the reduced state before it leaves the node.
	check func(s *course.State) error
}

// buildGraph wires START → strategize → architect → map_concepts → validate, branches from
// validate to refine (which loops back to validate) or generate_content → END.
func (r *Runner) buildGraph(ctx context.Context) (compose.Runnable[*course.State, *course.State], error) {
	g := compose.NewGraph[*course.State, *course.State]()

	nodes := []nodeSpec{
		{
			name:  nodeStrategize,
			phase: course.PhaseStrategizing,
			enter: func(s *course.State) string {
				if s.Metadata.Input == nil {
					return "Planning the course"
				}
				return fmt.Sprintf("Planning a course on %q", s.Metadata.Input.Topic)
			},
			leave: func(s *course.State) string {
				return fmt.Sprintf("Planned %d modules for %q", len(s.Modules), s.Course.Title)
			},
			step: r.agentStep(r.strategist),
		},
		{
			name:  nodeArchitect,
			phase: course.PhaseArchitecting,
			enter: func(s *course.State) string { return fmt.Sprintf("Designing lessons for %d modules", len(s.Modules)) },
			leave: func(s *course.State) string { return fmt.Sprintf("Designed %d lessons", s.LessonCount()) },
			step:  r.agentStep(r.architect),
			check: checkModules,
		},
		{
			name:  nodeMapConcepts,
			phase: course.PhaseMapping,
			enter: func(*course.State) string { return "Mapping concepts across lessons" },
			leave: func(s *course.State) string { return fmt.Sprintf("Mapped %d concepts", len(s.ConceptGraph.Concepts)) },
			step:  r.agentStep(r.mapper),
		},
		{
			name:  nodeValidate,
			phase: course.PhaseValidating,
			enter: func(*course.State) string { return "Checking how lessons flow" },
			leave: func(s *course.State) string {
				return fmt.Sprintf("Flow score %.2f with %d issues", s.Alignment.OverallScore, len(s.Alignment.Issues))
			},
			step: r.agentStep(r.validator),
		},
		{
			name:  nodeRefine,
			phase: course.PhaseRefining,
			enter: func(s *course.State) string {
				return fmt.Sprintf("Refining the outline (pass %d)", s.Metadata.Iterations+1)
			},
			leave: func(s *course.State) string { return fmt.Sprintf("Refinement pass %d applied", s.Metadata.Iterations) },
			step:  r.agentStep(r.refiner),
			check: checkModules,
		},
		{
			name:  nodeGenerate,
			phase: course.PhaseGenerating,
			enter: func(s *course.State) string {
				return fmt.Sprintf("Writing content for %d lessons", len(s.LessonsMissingContent()))
			},
			leave: func(s *course.State) string {
				return fmt.Sprintf("Wrote content for %d of %d lessons", s.LessonCount()-len(s.LessonsMissingContent()), s.LessonCount())
			},
			step: r.contentStep,
		},
	}

	for _, n := range nodes {
		if err := g.AddLambdaNode(n.name, compose.InvokableLambda(r.wrap(n)), compose.WithNodeName(n.name)); err != nil {
			return nil, err
		}
	}

	edges := [][2]string{
		{compose.START, nodeStrategize},
		{nodeStrategize, nodeArchitect},
		{nodeArchitect, nodeMapConcepts},
		{nodeMapConcepts, nodeValidate},
		{nodeRefine, nodeValidate},
		{nodeGenerate, compose.END},
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			return nil, err
		}
	}

	policy := r.policy
	route := func(ctx context.Context, s *course.State) (string, error) {
		if s == nil {
			return nodeGenerate, nil
		}
		next := Route(&s.Alignment, s.Metadata.Iterations, policy)
		runContextFrom(ctx).Log.Debug("Routing after validation",
			"score", s.Alignment.OverallScore,
			"iterations", s.Metadata.Iterations,
			"next", next,
		)
		return next, nil
	}
	branch := compose.NewGraphBranch(route, map[string]bool{nodeRefine: true, nodeGenerate: true})
	if err := g.AddBranch(nodeValidate, branch); err != nil {
		return nil, err
	}

	return g.Compile(ctx,
		compose.WithGraphName("course_generation"),
		compose.WithMaxRunSteps(maxRunSteps(policy)),
	)
}

// maxRunSteps bounds the graph: the forward path plus two steps per refinement pass, with slack
// for the engine's start and end steps.
func maxRunSteps(p Policy) int {
	return 6 + 2*p.MaxIterations + 4
}

func checkModules(s *course.State) error {
	if len(s.Modules) == 0 {
		return fmt.Errorf("%w: course has no modules", ErrInvalidState)
	}
	for _, m := range s.Modules {
		if len(m.Lessons) == 0 {
			return fmt.Errorf("%w: module %d %q", ErrEmptyModule, m.ModuleIndex+1, m.Title)
		}
	}
	return nil
}

func (r *Runner) agentStep(a agents.Agent) stepFunc {
	return func(ctx context.Context, rc *RunContext, s *course.State) (*course.Update, error) {
		return a.Execute(ctx, s)
	}
}

func (r *Runner) contentStep(ctx context.Context, rc *RunContext, s *course.State) (*course.Update, error) {
	upd, rep, err := r.content.Generate(ctx, s)
	if err != nil {
		return nil, err
	}
	rc.mu.Lock()
	rc.content = rep
	rc.mu.Unlock()
	observability.Current().AddLessonContent(rep.Generated, rep.Failed)
	if rep.Failed > 0 {
		rc.Log.Warn("Some lessons have no content", "failed", rep.Failed, "lesson_ids", rep.FailedIDs)
	}
	return upd, nil
}

// wrap turns a nodeSpec into the lambda the graph runs: cancellation check, empty-state
// recovery from the run's backup, tracing, metrics, progress, reduction and checkpointing.
func (r *Runner) wrap(n nodeSpec) func(ctx context.Context, in *course.State) (*course.State, error) {
	return func(ctx context.Context, in *course.State) (*course.State, error) {
		rc := runContextFrom(ctx)
		if err := ctx.Err(); err != nil {
			return nil, rc.fail(n.name, err)
		}
		in, err := recoverState(rc, n.name, in)
		if err != nil {
			return nil, rc.fail(n.name, err)
		}

		ctx = ctxutil.WithNode(ctx, n.name)
		ctx, span := observability.StartSpan(ctx, "coursegen.node."+n.name,
			attribute.String("run_id", rc.RunID),
			attribute.Int("iterations", in.Metadata.Iterations),
		)
		start := time.Now()
		log := rc.Log.With("node", n.name)

		rc.progress.SetTotals(in)
		rc.progress.Enter(n.phase, n.enter(in))
		ctx = agents.WithProgress(ctx, func(summary string, done, total int) {
			rc.progress.UpdateRange(n.phase, done, total, summary)
		})

		upd, err := n.step(ctx, rc, in)
		var out *course.State
		if err == nil {
			out = course.ReduceWithBackup(in, upd, rc.Backup)
			if n.check != nil {
				err = n.check(out)
			}
		}
		observability.Current().ObserveNode(n.name, nodeStatus(err), time.Since(start))
		observability.EndSpan(span, err)
		if err != nil {
			log.Warn("Node failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
			return nil, rc.fail(n.name, err)
		}

		rc.progress.SetTotals(out)
		rc.progress.Leave(n.phase, n.leave(out))
		log.Debug("Node finished", "phase", out.Metadata.CurrentPhase, "duration_ms", time.Since(start).Milliseconds())

		if r.checkpointer != nil {
			if cerr := r.checkpointer.Checkpoint(ctx, rc.RunID, n.name, out); cerr != nil {
				log.Warn("Checkpoint failed", "error", cerr)
			}
		}
		return out, nil
	}
}

// recoverState substitutes the run's last known good state for a missing or empty input.
func recoverState(rc *RunContext, node string, in *course.State) (*course.State, error) {
	if in != nil && !in.IsEmpty() {
		return in, nil
	}
	if b := rc.Backup.Load(); b != nil {
		rc.Log.Warn("Empty state reached node; recovered last known good state", "node", node)
		return b, nil
	}
	return nil, fmt.Errorf("%w: empty state reached %s with no backup", ErrInvalidState, node)
}

func nodeStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
