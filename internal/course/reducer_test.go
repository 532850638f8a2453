package course

import (
	"reflect"
	"testing"
)

func sampleState() *State {
	s := InitializeState(GenerationInput{Topic: "Negotiation", TargetDifficulty: DifficultyIntermediate})
	s.Course.Title = "Negotiation Basics"
	s.Modules = []Module{
		{ID: "m1", Title: "Foundations", Lessons: []Lesson{
			{ID: "l1", Title: "Interests", KeyConcepts: []string{"BATNA"}},
			{ID: "l2", Title: "Anchoring", KeyConcepts: []string{"Anchoring"}, Prerequisites: []string{"BATNA"}},
		}},
		{ID: "m2", Title: "Practice"},
	}
	s.Metadata.Iterations = 1
	return Normalize(s)
}

func intPtr(v int) *int { return &v }

func TestReduceNoUpdateReturnsPrev(t *testing.T) {
	s := sampleState()
	if got := Reduce(s, nil); got != s {
		t.Fatalf("expected prev returned unchanged")
	}
	if got := Reduce(s, &Update{}); got != s {
		t.Fatalf("expected prev returned unchanged for empty update")
	}
}

func TestReduceNilPrevNilUpdate(t *testing.T) {
	got := Reduce(nil, nil)
	if got == nil || got.Modules == nil || got.ConceptGraph.Concepts == nil {
		t.Fatalf("expected default state, got %+v", got)
	}
	if got.Metadata.CurrentPhase != PhaseStrategizing {
		t.Fatalf("phase=%q", got.Metadata.CurrentPhase)
	}
}

func TestReduceNeverDecreasesIterations(t *testing.T) {
	cases := []*Update{
		{Metadata: &MetadataPatch{Iterations: intPtr(0)}},
		{Metadata: &MetadataPatch{CurrentPhase: PhaseRefining}},
		{Metadata: &MetadataPatch{Iterations: intPtr(-4)}},
		{Course: &CourseInfo{Title: "x"}},
	}
	for i, u := range cases {
		s := sampleState()
		got := Reduce(s, u)
		if got.Metadata.Iterations < s.Metadata.Iterations {
			t.Fatalf("case %d: iterations decreased %d -> %d", i, s.Metadata.Iterations, got.Metadata.Iterations)
		}
	}
	got := Reduce(sampleState(), &Update{Metadata: &MetadataPatch{Iterations: intPtr(2)}})
	if got.Metadata.Iterations != 2 {
		t.Fatalf("iterations=%d want 2", got.Metadata.Iterations)
	}
}

func TestReducePreservesModulesWhenAbsent(t *testing.T) {
	s := sampleState()
	got := Reduce(s, &Update{Course: &CourseInfo{Description: "new"}})
	if !reflect.DeepEqual(got.Modules, s.Modules) {
		t.Fatalf("modules changed: %+v", got.Modules)
	}
	if got.Course.Title != "Negotiation Basics" || got.Course.Description != "new" {
		t.Fatalf("course shallow merge failed: %+v", got.Course)
	}
}

func TestReduceReplacesModulesWholesale(t *testing.T) {
	s := sampleState()
	got := Reduce(s, &Update{Modules: []Module{{ID: "only", Title: "Only"}}})
	if len(got.Modules) != 1 || got.Modules[0].ID != "only" {
		t.Fatalf("modules not replaced: %+v", got.Modules)
	}
	if len(s.Modules) != 2 {
		t.Fatalf("prev mutated")
	}
}

func TestReduceConceptGraphReplaceIfNonEmpty(t *testing.T) {
	s := sampleState()
	s.ConceptGraph = BuildConceptGraph(s.Modules)
	got := Reduce(s, &Update{ConceptGraph: &ConceptGraph{}})
	if len(got.ConceptGraph.Concepts) != len(s.ConceptGraph.Concepts) {
		t.Fatalf("empty concept update should keep previous concepts")
	}
	got = Reduce(s, &Update{ConceptGraph: &ConceptGraph{Concepts: map[string]*ConceptNode{"Framing": {IntroducedIn: "l1"}}}})
	if _, ok := got.ConceptGraph.Concepts["Framing"]; !ok || len(got.ConceptGraph.Concepts) != 1 {
		t.Fatalf("concepts not replaced: %+v", got.ConceptGraph.Concepts)
	}
	if len(got.ConceptGraph.Dependencies) != len(s.ConceptGraph.Dependencies) {
		t.Fatalf("dependencies should be preserved")
	}
}

func TestReduceAlignmentListsReplaceIfPresent(t *testing.T) {
	s := sampleState()
	s.Alignment = Alignment{
		OverallScore: 0.5,
		Issues:       []Issue{{Type: IssueGap, Severity: SeverityLow}},
		Evaluated:    true,
	}
	got := Reduce(s, &Update{Alignment: &Alignment{OverallScore: 1.7}})
	if got.Alignment.OverallScore != 1 {
		t.Fatalf("score not clamped: %v", got.Alignment.OverallScore)
	}
	if len(got.Alignment.Issues) != 1 || !got.Alignment.Evaluated {
		t.Fatalf("issues/evaluated not preserved: %+v", got.Alignment)
	}
}

func TestReduceEmptyPrevTakesUpdateAsBase(t *testing.T) {
	got := Reduce(nil, &Update{
		Course:  &CourseInfo{Title: "T"},
		Modules: []Module{{Title: "A"}, {Title: "B"}},
	})
	if got.Course.Title != "T" || len(got.Modules) != 2 {
		t.Fatalf("unexpected base: %+v", got)
	}
	for i, m := range got.Modules {
		if m.ID == "" || m.ModuleIndex != i || m.Lessons == nil {
			t.Fatalf("module %d not normalized: %+v", i, m)
		}
	}
	if got.Alignment.Issues == nil || got.ConceptGraph.Concepts == nil {
		t.Fatalf("missing fields not defaulted")
	}
}

func TestReduceMetadataInputPreserved(t *testing.T) {
	s := sampleState()
	got := Reduce(s, &Update{Metadata: &MetadataPatch{CurrentPhase: PhaseMapping, Input: &GenerationInput{Topic: "Other"}}})
	if got.Metadata.Input == nil || got.Metadata.Input.Topic != "Negotiation" {
		t.Fatalf("input should be preserved from prev: %+v", got.Metadata.Input)
	}
	if got.Metadata.CurrentPhase != PhaseMapping {
		t.Fatalf("phase=%q", got.Metadata.CurrentPhase)
	}
}

func TestReduceFallsBackToBackup(t *testing.T) {
	b := NewBackup()
	s := Reduce(nil, &Update{Course: &CourseInfo{Title: "Kept"}})
	b.Store(s)

	got := ReduceWithBackup(nil, nil, b)
	if got.Course.Title != "Kept" {
		t.Fatalf("expected backup, got %+v", got.Course)
	}

	got = ReduceWithBackup(&State{}, &Update{Metadata: &MetadataPatch{CurrentPhase: PhaseArchitecting}}, b)
	if got.Course.Title != "Kept" {
		t.Fatalf("empty merge should recover backup, got %+v", got.Course)
	}
}

func TestReduceStoresValidResultInBackup(t *testing.T) {
	b := NewBackup()
	got := ReduceWithBackup(sampleState(), &Update{Course: &CourseInfo{Title: "Stored"}}, b)
	loaded := b.Load()
	if loaded == nil || loaded.Course.Title != "Stored" {
		t.Fatalf("backup not stored: %+v", loaded)
	}
	loaded.Course.Title = "mutated"
	if got.Course.Title != "Stored" {
		t.Fatalf("backup must be a copy")
	}
}

func TestReduceEmptyStandInWithoutUpdate(t *testing.T) {
	got := Reduce(&State{}, nil)
	if got == nil || got.Modules == nil || got.ConceptGraph.Concepts == nil || got.Alignment.LessonTransitions == nil {
		t.Fatalf("expected fully valid default state, got %+v", got)
	}
	if got.Metadata.CurrentPhase != PhaseStrategizing {
		t.Fatalf("phase=%q", got.Metadata.CurrentPhase)
	}

	b := NewBackup()
	b.Store(sampleState())
	got = ReduceWithBackup(&State{}, &Update{}, b)
	if got.Course.Title != "Negotiation Basics" || len(got.Modules) != 2 {
		t.Fatalf("expected backup for empty stand-in, got %+v", got.Course)
	}
}

func TestReduceNoUpdateFillsMalformedPrev(t *testing.T) {
	prev := &State{Course: CourseInfo{Title: "Partial"}}
	got := Reduce(prev, nil)
	if got != prev {
		t.Fatalf("expected prev returned")
	}
	if got.Modules == nil || got.ConceptGraph.Concepts == nil || got.Alignment.Issues == nil {
		t.Fatalf("collections left nil: %+v", got)
	}
	if got.Course.Difficulty != DifficultyBeginner {
		t.Fatalf("difficulty=%q", got.Course.Difficulty)
	}
}
