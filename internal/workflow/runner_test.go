package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/yungbote/neurobridge-coursegen/internal/course"
	"github.com/yungbote/neurobridge-coursegen/internal/llm"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
)

// scriptedLLM answers every schema the workflow asks for with a small, well-formed course.
type scriptedLLM struct {
	mu          sync.Mutex
	modules     int
	lessons     int
	scores      []float64
	architect   int
	validations int
	refinements int
	contents    int

	onStrategy func()
	strategy   func() (map[string]any, error)
}

func (f *scriptedLLM) Complete(ctx context.Context, req llm.Request) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch req.SchemaName {
	case "course_strategy":
		if f.onStrategy != nil {
			f.onStrategy()
		}
		if f.strategy != nil {
			return f.strategy()
		}
		var mods []any
		for i := 0; i < f.modules; i++ {
			mods = append(mods, map[string]any{
				"title":              fmt.Sprintf("Module %d", i),
				"description":        "d",
				"learningObjectives": []string{"objective"},
			})
		}
		return map[string]any{
			"course": map[string]any{
				"title":              "Negotiation in Practice",
				"description":        "Principled negotiation",
				"estimatedHours":     8,
				"learningObjectives": []string{"Prepare a BATNA"},
				"prerequisites":      []string{},
			},
			"modules": mods,
		}, nil
	case "module_lessons":
		k := f.architect
		f.architect++
		var ls []any
		for j := 0; j < f.lessons; j++ {
			var prereqs []string
			if j > 0 {
				prereqs = []string{fmt.Sprintf("Concept %d.%d", k, j-1)}
			}
			ls = append(ls, map[string]any{
				"title":              fmt.Sprintf("Lesson %d.%d", k, j),
				"description":        "d",
				"estimatedMinutes":   25,
				"learningObjectives": []string{"o"},
				"keyConcepts":        []string{fmt.Sprintf("Concept %d.%d", k, j)},
				"prerequisites":      prereqs,
			})
		}
		return map[string]any{"lessons": ls}, nil
	case "flow_validation":
		i := f.validations
		f.validations++
		if i >= len(f.scores) {
			i = len(f.scores) - 1
		}
		return map[string]any{"overallScore": f.scores[i], "transitions": []any{}, "issues": []any{}}, nil
	case "course_refinement":
		f.refinements++
		return map[string]any{
			"summary":       "no structural change",
			"moduleUpdates": []any{},
			"lessonUpdates": []any{},
			"insertions":    []any{},
			"removals":      []any{},
		}, nil
	case "lesson_content":
		f.contents++
		return map[string]any{"content": fmt.Sprintf("# Lesson body %d", f.contents)}, nil
	}
	return nil, fmt.Errorf("unexpected schema %s", req.SchemaName)
}

type recordingCheckpointer struct {
	mu    sync.Mutex
	nodes []string
}

func (c *recordingCheckpointer) Checkpoint(ctx context.Context, runID, node string, s *course.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes = append(c.nodes, node)
	return nil
}

func negotiationInput() course.GenerationInput {
	return course.GenerationInput{
		Topic:            "Negotiation",
		TargetDifficulty: course.DifficultyIntermediate,
		AssessmentResponses: map[string]string{
			"experience": "I have negotiated a salary once",
			"goal":       "Close vendor deals",
		},
	}
}

func newTestRunner(t *testing.T, c llm.Completer, opts ...Option) *Runner {
	t.Helper()
	p := DefaultPolicy()
	p.ProgressInterval = 0
	r, err := NewRunner(c, logger.Nop(), append([]Option{WithPolicy(p)}, opts...)...)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return r
}

func TestRunNegotiationEndToEnd(t *testing.T) {
	f := &scriptedLLM{modules: 4, lessons: 4, scores: []float64{0.85}}
	cp := &recordingCheckpointer{}
	r := newTestRunner(t, f, WithCheckpointer(cp))

	var mu sync.Mutex
	var events []ProgressEvent
	s, err := r.Run(context.Background(), negotiationInput(), func(ev ProgressEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if n := len(s.Modules); n < 3 || n > 5 {
		t.Fatalf("modules=%d", n)
	}
	lessonIDs := map[string]bool{}
	for _, m := range s.Modules {
		if n := len(m.Lessons); n < 3 || n > 6 {
			t.Fatalf("module %q has %d lessons", m.Title, n)
		}
		for _, l := range m.Lessons {
			lessonIDs[l.ID] = true
			if strings.TrimSpace(l.Content) == "" {
				t.Fatalf("lesson %q has no content", l.Title)
			}
		}
	}
	if len(s.ConceptGraph.Concepts) == 0 {
		t.Fatalf("concept graph empty")
	}
	for name, n := range s.ConceptGraph.Concepts {
		if !lessonIDs[n.IntroducedIn] {
			t.Fatalf("concept %s introduced in unknown lesson %s", name, n.IntroducedIn)
		}
		for _, id := range n.UsedIn {
			if !lessonIDs[id] {
				t.Fatalf("concept %s used in unknown lesson %s", name, id)
			}
		}
	}
	if sc := s.Alignment.OverallScore; sc < 0 || sc > 1 || !s.Alignment.Evaluated {
		t.Fatalf("alignment=%+v", s.Alignment)
	}
	if s.Metadata.Iterations != 0 || f.refinements != 0 {
		t.Fatalf("a passing score should not refine: iterations=%d refinements=%d", s.Metadata.Iterations, f.refinements)
	}
	if s.Metadata.CurrentPhase != course.PhaseComplete {
		t.Fatalf("phase=%s", s.Metadata.CurrentPhase)
	}

	wantNodes := []string{"strategize", "architect", "map_concepts", "validate", "generate_content"}
	if strings.Join(cp.nodes, ",") != strings.Join(wantNodes, ",") {
		t.Fatalf("checkpoints=%v want %v", cp.nodes, wantNodes)
	}

	mu.Lock()
	defer mu.Unlock()
	last := -1
	sawTotals := false
	for _, ev := range events {
		if ev.Progress < last {
			t.Fatalf("progress went backwards: %d after %d", ev.Progress, last)
		}
		last = ev.Progress
		sawTotals = sawTotals || (ev.TotalModules == 4 && ev.TotalLessons == 16)
	}
	if last != 100 {
		t.Fatalf("last progress=%d want 100", last)
	}
	if !sawTotals {
		t.Fatalf("no event carried course totals")
	}
}

func TestRunRefinementLoopIsCapped(t *testing.T) {
	f := &scriptedLLM{modules: 3, lessons: 3, scores: []float64{0.4, 0.5, 0.6}}
	cp := &recordingCheckpointer{}
	r := newTestRunner(t, f, WithCheckpointer(cp))

	s, err := r.Run(context.Background(), negotiationInput(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if f.validations != 3 || f.refinements != 2 {
		t.Fatalf("validations=%d refinements=%d want 3 and 2", f.validations, f.refinements)
	}
	if s.Metadata.Iterations != 2 {
		t.Fatalf("iterations=%d want 2", s.Metadata.Iterations)
	}
	want := "strategize,architect,map_concepts,validate,refine,validate,refine,validate,generate_content"
	if got := strings.Join(cp.nodes, ","); got != want {
		t.Fatalf("node order=%s", got)
	}
	if len(s.LessonsMissingContent()) != 0 {
		t.Fatalf("lessons missing content after capped loop")
	}
}

func TestRunLowScoreStopsAfterOnePass(t *testing.T) {
	f := &scriptedLLM{modules: 3, lessons: 3, scores: []float64{0.2, 0.1}}
	r := newTestRunner(t, f)
	s, err := r.Run(context.Background(), negotiationInput(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if f.refinements != 1 || s.Metadata.Iterations != 1 {
		t.Fatalf("refinements=%d iterations=%d want 1", f.refinements, s.Metadata.Iterations)
	}
}

func TestRunWithoutCompleter(t *testing.T) {
	r := newTestRunner(t, nil)
	if _, err := r.Run(context.Background(), negotiationInput(), nil); !errors.Is(err, llm.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestRunRequiresTopic(t *testing.T) {
	r := newTestRunner(t, &scriptedLLM{})
	if _, err := r.Run(context.Background(), course.GenerationInput{Topic: "  "}, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRunPropagatesInvalidCompletion(t *testing.T) {
	f := &scriptedLLM{strategy: func() (map[string]any, error) {
		return map[string]any{"course": map[string]any{"title": ""}, "modules": []any{}}, nil
	}}
	r := newTestRunner(t, f)
	_, err := r.Run(context.Background(), negotiationInput(), nil)
	var ne *NodeError
	if !errors.As(err, &ne) || ne.Node != "strategize" {
		t.Fatalf("expected strategize node error, got %v", err)
	}
	if !errors.Is(err, llm.ErrInvalidOutput) {
		t.Fatalf("expected ErrInvalidOutput, got %v", err)
	}
}

func TestRunStopsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := &scriptedLLM{modules: 3, lessons: 3, scores: []float64{0.9}, onStrategy: cancel}
	r := newTestRunner(t, f)
	_, err := r.Run(ctx, negotiationInput(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if f.architect != 0 || f.contents != 0 {
		t.Fatalf("work continued after cancel: architect=%d contents=%d", f.architect, f.contents)
	}
}

func TestConcurrentRunsAreIndependent(t *testing.T) {
	r := newTestRunner(t, &scriptedLLM{modules: 3, lessons: 3, scores: []float64{0.9}})
	var wg sync.WaitGroup
	results := make([]*course.State, 4)
	errs := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := negotiationInput()
			in.Topic = fmt.Sprintf("Topic %d", i)
			results[i], errs[i] = r.Run(context.Background(), in, nil)
		}(i)
	}
	wg.Wait()
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("run %d: %v", i, errs[i])
		}
		if got := results[i].Metadata.Input.Topic; got != fmt.Sprintf("Topic %d", i) {
			t.Fatalf("run %d saw topic %q", i, got)
		}
	}
}

func TestCheckModulesRejectsEmptyModule(t *testing.T) {
	s := course.DefaultState()
	if err := checkModules(s); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	s.Modules = []course.Module{{Title: "Intro", Lessons: []course.Lesson{{ID: "a"}}}, {Title: "Empty"}}
	if err := checkModules(s); !errors.Is(err, ErrEmptyModule) {
		t.Fatalf("expected ErrEmptyModule, got %v", err)
	}
}

func TestRecoverStateUsesBackup(t *testing.T) {
	rc := &RunContext{RunID: "r", Log: logger.Nop(), Backup: course.NewBackup()}
	if _, err := recoverState(rc, "validate", course.DefaultState()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	good := course.DefaultState()
	good.Course.Title = "Kept"
	rc.Backup.Store(good)
	got, err := recoverState(rc, "validate", nil)
	if err != nil || got.Course.Title != "Kept" {
		t.Fatalf("got %+v err %v", got, err)
	}
}
