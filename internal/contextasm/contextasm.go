// Package contextasm builds bounded prompt context for agents that work through a course one
// unit at a time. Every call carries the course header, a one-line-per-concept summary of what
// earlier units introduced, full detail for a small window of the most recent preceding units
// and a condensed line for each older unit, so prompt size tracks the window rather than the
// size of the course.
package contextasm

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/neurobridge-coursegen/internal/course"
)

type Options struct {
	// WindowSize is how many preceding units are rendered in full.
	WindowSize int `yaml:"window_size" json:"windowSize"`
	// SummaryThreshold is how many preceding units there must be before older units get a
	// condensed line.
	SummaryThreshold int `yaml:"summary_threshold" json:"summaryThreshold"`
	// ExcerptChars bounds each excerpt of already generated lesson content.
	ExcerptChars int `yaml:"excerpt_chars" json:"excerptChars"`
}

func DefaultOptions() Options {
	return Options{WindowSize: 3, SummaryThreshold: 5, ExcerptChars: 500}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.WindowSize <= 0 {
		o.WindowSize = d.WindowSize
	}
	if o.SummaryThreshold < 0 {
		o.SummaryThreshold = d.SummaryThreshold
	}
	if o.ExcerptChars <= 0 {
		o.ExcerptChars = d.ExcerptChars
	}
	return o
}

// Result is the assembled text plus how many units were rendered in full or condensed form.
type Result struct {
	Text            string
	FullDetailUnits int
	SummarisedUnits int
}

// ModuleContext assembles context for designing the lessons of modules[moduleIndex].
func ModuleContext(s *course.State, moduleIndex int, opts Options) Result {
	opts = opts.withDefaults()
	var b strings.Builder
	writeCourseHeader(&b, s)
	if s == nil || moduleIndex <= 0 {
		return Result{Text: b.String()}
	}
	if moduleIndex > len(s.Modules) {
		moduleIndex = len(s.Modules)
	}
	prior := s.Modules[:moduleIndex]
	writeConceptSummary(&b, prior)

	start := windowStart(len(prior), opts.WindowSize)
	res := Result{}
	if len(prior) > opts.SummaryThreshold && start > 0 {
		b.WriteString("\nEarlier modules (condensed):\n")
		for _, m := range prior[:start] {
			fmt.Fprintf(&b, "- Module %d: %s (%d lessons, %d concepts)\n", m.ModuleIndex+1, m.Title, len(m.Lessons), moduleConceptCount(m))
			res.SummarisedUnits++
		}
	}
	b.WriteString("\nMost recent modules:\n")
	for _, m := range prior[start:] {
		writeModuleDetail(&b, m)
		res.FullDetailUnits++
	}
	res.Text = b.String()
	return res
}

// LessonContext assembles context for writing the content of the lesson with the given id:
// the module it belongs to, the preceding lessons of that module (windowed, with excerpts of
// their generated content) and the lesson's resolved prerequisites.
func LessonContext(s *course.State, lessonID string, opts Options) Result {
	opts = opts.withDefaults()
	var b strings.Builder
	writeCourseHeader(&b, s)
	mi, li := s.FindLesson(lessonID)
	if mi < 0 {
		return Result{Text: b.String()}
	}
	mod := s.Modules[mi]
	lesson := mod.Lessons[li]

	fmt.Fprintf(&b, "\nCurrent module %d: %s\n", mod.ModuleIndex+1, mod.Title)
	if d := strings.TrimSpace(mod.Description); d != "" {
		fmt.Fprintf(&b, "Module description: %s\n", d)
	}
	writeList(&b, "Module objectives", mod.LearningObjectives)

	if mi > 0 || li > 0 {
		earlier := append([]course.Module{}, s.Modules[:mi]...)
		earlier = append(earlier, course.Module{ID: mod.ID, Lessons: mod.Lessons[:li]})
		writeConceptSummary(&b, earlier)
	}

	prior := mod.Lessons[:li]
	start := windowStart(len(prior), opts.WindowSize)
	res := Result{}
	if len(prior) > opts.SummaryThreshold && start > 0 {
		b.WriteString("\nEarlier lessons in this module (condensed):\n")
		for _, l := range prior[:start] {
			fmt.Fprintf(&b, "- Lesson %d: %s (%d concepts)\n", l.LessonIndex+1, l.Title, len(l.KeyConcepts))
			res.SummarisedUnits++
		}
	}
	if len(prior[start:]) > 0 {
		b.WriteString("\nPreceding lessons in this module:\n")
		for _, l := range prior[start:] {
			writeLessonDetail(&b, l, "  ")
			if l.HasContent() {
				fmt.Fprintf(&b, "  Content excerpt: %s\n", excerpt(l.Content, opts.ExcerptChars))
			}
			res.FullDetailUnits++
		}
	}

	writePrerequisites(&b, s, lesson)
	res.Text = b.String()
	return res
}

func windowStart(n, window int) int {
	if n <= window {
		return 0
	}
	return n - window
}

func writeCourseHeader(b *strings.Builder, s *course.State) {
	if s == nil {
		b.WriteString("Course: (not yet defined)\n")
		return
	}
	title := strings.TrimSpace(s.Course.Title)
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(b, "Course: %s\n", title)
	fmt.Fprintf(b, "Difficulty: %s\n", s.Course.Difficulty)
	if d := strings.TrimSpace(s.Course.Description); d != "" {
		fmt.Fprintf(b, "Description: %s\n", d)
	}
	writeList(b, "Course objectives", s.Course.LearningObjectives)
	writeList(b, "Course prerequisites", s.Course.Prerequisites)
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			fmt.Fprintf(b, "- %s\n", it)
		}
	}
}

// writeConceptSummary lists the concepts the given units introduce, derived from their lessons
// so it is accurate before the concept graph has been mapped.
func writeConceptSummary(b *strings.Builder, earlier []course.Module) {
	g := course.BuildConceptGraph(earlier)
	if len(g.Concepts) == 0 {
		return
	}
	b.WriteString("\nConcepts already introduced:\n")
	for _, name := range g.SortedNames() {
		node := g.Concepts[name]
		if node != nil && len(node.Prerequisites) > 0 {
			fmt.Fprintf(b, "- %s (requires: %s)\n", name, strings.Join(node.Prerequisites, ", "))
			continue
		}
		fmt.Fprintf(b, "- %s\n", name)
	}
}

func writeModuleDetail(b *strings.Builder, m course.Module) {
	fmt.Fprintf(b, "Module %d: %s\n", m.ModuleIndex+1, m.Title)
	if d := strings.TrimSpace(m.Description); d != "" {
		fmt.Fprintf(b, "  Description: %s\n", d)
	}
	if len(m.LearningObjectives) > 0 {
		fmt.Fprintf(b, "  Objectives: %s\n", strings.Join(m.LearningObjectives, "; "))
	}
	for _, l := range m.Lessons {
		writeLessonDetail(b, l, "  ")
	}
}

func writeLessonDetail(b *strings.Builder, l course.Lesson, indent string) {
	fmt.Fprintf(b, "%s- Lesson %d: %s\n", indent, l.LessonIndex+1, l.Title)
	if d := strings.TrimSpace(l.Description); d != "" {
		fmt.Fprintf(b, "%s  Description: %s\n", indent, d)
	}
	if len(l.LearningObjectives) > 0 {
		fmt.Fprintf(b, "%s  Objectives: %s\n", indent, strings.Join(l.LearningObjectives, "; "))
	}
	if len(l.KeyConcepts) > 0 {
		fmt.Fprintf(b, "%s  Key concepts: %s\n", indent, strings.Join(l.KeyConcepts, ", "))
	}
}

func writePrerequisites(b *strings.Builder, s *course.State, l course.Lesson) {
	if len(l.Prerequisites) == 0 {
		return
	}
	graph := &s.ConceptGraph
	if len(graph.Concepts) == 0 {
		g := course.BuildConceptGraph(s.Modules)
		graph = &g
	}
	b.WriteString("\nPrerequisites for this lesson:\n")
	for _, p := range l.Prerequisites {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		node, ok := graph.Lookup(p)
		if !ok || node == nil {
			fmt.Fprintf(b, "- %s (assumed prior knowledge)\n", p)
			continue
		}
		where := node.IntroducedIn
		if mi, li := s.FindLesson(node.IntroducedIn); mi >= 0 {
			where = fmt.Sprintf("module %d lesson %d \"%s\"", mi+1, li+1, s.Modules[mi].Lessons[li].Title)
		}
		fmt.Fprintf(b, "- %s (introduced in %s)\n", p, where)
	}
}

func moduleConceptCount(m course.Module) int {
	seen := map[string]bool{}
	for _, l := range m.Lessons {
		for _, c := range l.KeyConcepts {
			if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
				seen[c] = true
			}
		}
	}
	return len(seen)
}

func excerpt(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "..."
}
