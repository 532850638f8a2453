package contextasm

import (
	"fmt"
	"strings"
	"testing"

	"github.com/yungbote/neurobridge-coursegen/internal/course"
)

func courseWithModules(n, lessonsPer int) *course.State {
	s := course.InitializeState(course.GenerationInput{Topic: "Negotiation", TargetDifficulty: course.DifficultyIntermediate})
	s.Course.Title = "Negotiation"
	s.Course.LearningObjectives = []string{"Prepare a BATNA"}
	for i := 0; i < n; i++ {
		m := course.Module{ID: fmt.Sprintf("m%d", i), Title: fmt.Sprintf("Module title %d", i)}
		for j := 0; j < lessonsPer; j++ {
			m.Lessons = append(m.Lessons, course.Lesson{
				ID:          fmt.Sprintf("m%d-l%d", i, j),
				Title:       fmt.Sprintf("Lesson title %d.%d", i, j),
				KeyConcepts: []string{fmt.Sprintf("Concept %d.%d", i, j)},
			})
		}
		s.Modules = append(s.Modules, m)
	}
	return course.Normalize(s)
}

func TestModuleContextBoundedAtScale(t *testing.T) {
	s := courseWithModules(50, 2)
	res := ModuleContext(s, 49, DefaultOptions())
	if res.FullDetailUnits != 3 {
		t.Fatalf("full detail units=%d want 3", res.FullDetailUnits)
	}
	if res.SummarisedUnits != 46 {
		t.Fatalf("summarised units=%d want 46", res.SummarisedUnits)
	}
	if !strings.Contains(res.Text, "Module 49: Module title 48") || !strings.Contains(res.Text, "- Module 1: Module title 0 (2 lessons, 2 concepts)") {
		t.Fatalf("unexpected text:\n%s", res.Text)
	}
	if strings.Contains(res.Text, "Lesson title 0.0") {
		t.Fatalf("condensed module leaked lesson detail")
	}

	for _, idx := range []int{0, 1, 3, 5, 6, 10, 49} {
		r := ModuleContext(s, idx, DefaultOptions())
		if r.FullDetailUnits > 3 {
			t.Fatalf("index %d: full detail %d exceeds window", idx, r.FullDetailUnits)
		}
	}
}

func TestModuleContextFirstModuleHasOnlyHeader(t *testing.T) {
	s := courseWithModules(3, 1)
	res := ModuleContext(s, 0, DefaultOptions())
	if res.FullDetailUnits != 0 || strings.Contains(res.Text, "Concepts already introduced") {
		t.Fatalf("first module should only see the course header:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "Course: Negotiation") || !strings.Contains(res.Text, "Prepare a BATNA") {
		t.Fatalf("course header missing:\n%s", res.Text)
	}
}

func TestModuleContextBelowThresholdNoCondensedSection(t *testing.T) {
	s := courseWithModules(6, 1)
	res := ModuleContext(s, 5, DefaultOptions())
	if res.SummarisedUnits != 0 || strings.Contains(res.Text, "condensed") {
		t.Fatalf("five preceding modules should not be condensed:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "Concept 0.0") {
		t.Fatalf("concept summary should cover every earlier module")
	}
}

func TestLessonContextExcerptsAndPrerequisites(t *testing.T) {
	s := courseWithModules(1, 5)
	s.Modules[0].Lessons[3].Content = strings.Repeat("x", 2000)
	s.Modules[0].Lessons[4].Prerequisites = []string{"Concept 0.1", "Arithmetic"}
	s.ConceptGraph = course.BuildConceptGraph(s.Modules)

	res := LessonContext(s, "m0-l4", DefaultOptions())
	if res.FullDetailUnits != 3 {
		t.Fatalf("full detail units=%d want 3", res.FullDetailUnits)
	}
	if !strings.Contains(res.Text, "Content excerpt: "+strings.Repeat("x", 500)+"...") {
		t.Fatalf("excerpt missing or unbounded")
	}
	if strings.Contains(res.Text, strings.Repeat("x", 501)) {
		t.Fatalf("excerpt exceeds 500 chars")
	}
	if !strings.Contains(res.Text, `Concept 0.1 (introduced in module 1 lesson 2 "Lesson title 0.1")`) {
		t.Fatalf("prerequisite not resolved:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "Arithmetic (assumed prior knowledge)") {
		t.Fatalf("unknown prerequisite not flagged:\n%s", res.Text)
	}
}

func TestLessonContextUnknownLesson(t *testing.T) {
	s := courseWithModules(1, 1)
	res := LessonContext(s, "missing", DefaultOptions())
	if res.FullDetailUnits != 0 || !strings.HasPrefix(res.Text, "Course: Negotiation") {
		t.Fatalf("unexpected result %+v", res)
	}
}
