package graph

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/neurobridge-coursegen/internal/course"
)

func sampleState() *course.State {
	s := course.DefaultState()
	s.Course.Title = "Negotiation"
	s.Modules = []course.Module{
		{ID: "m1", Title: "Basics", Lessons: []course.Lesson{
			{ID: "l1", Title: "Interests", KeyConcepts: []string{"BATNA"}},
			{ID: "l2", Title: "Anchoring", KeyConcepts: []string{"Anchoring", "batna"}, Prerequisites: []string{"BATNA"}},
		}},
		{ID: "m2", Title: "Practice", Lessons: []course.Lesson{
			{ID: "l3", Title: "Closing", KeyConcepts: []string{"Closing"}, Prerequisites: []string{"Anchoring"}, Content: "text"},
		}},
	}
	course.ReindexModules(s.Modules)
	s.ConceptGraph = course.BuildConceptGraph(s.Modules)
	return s
}

func TestBuildCoursePayload(t *testing.T) {
	s := sampleState()
	p := buildCoursePayload("run-1", s, time.Unix(0, 0))

	if p.course["id"] != "run-1" || p.course["title"] != "Negotiation" {
		t.Fatalf("course=%v", p.course)
	}
	if len(p.modules) != 2 || len(p.lessons) != 3 {
		t.Fatalf("modules=%d lessons=%d", len(p.modules), len(p.lessons))
	}
	// Lesson order runs across module boundaries.
	if len(p.next) != 2 || p.next[1]["from_id"] != "l2" || p.next[1]["to_id"] != "l3" {
		t.Fatalf("next=%v", p.next)
	}
	if len(p.concepts) != 3 {
		t.Fatalf("concepts=%v", p.concepts)
	}
	for _, c := range p.concepts {
		id, _ := c["id"].(string)
		if id[:6] != "run-1:" {
			t.Fatalf("concept id not scoped to run: %s", id)
		}
	}
	if len(p.uses) != 1 || p.uses[0]["lesson_id"] != "l2" || p.uses[0]["concept_id"] != "run-1:batna" {
		t.Fatalf("uses=%v", p.uses)
	}
	if len(p.deps[course.DependencyPrerequisite]) == 0 {
		t.Fatalf("expected prerequisite relationships: %v", p.deps)
	}
	if p.lessons[2]["has_content"] != true {
		t.Fatalf("lesson 3 should report content: %v", p.lessons[2])
	}
}

func TestUpsertCourseGraphWithoutClientIsNoop(t *testing.T) {
	if err := UpsertCourseGraph(context.Background(), nil, nil, "run-1", sampleState()); err != nil {
		t.Fatalf("nil client: %v", err)
	}
}
