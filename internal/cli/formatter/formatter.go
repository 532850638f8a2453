// Package formatter renders generation progress and finished courses for the terminal.
package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/yungbote/neurobridge-coursegen/internal/course"
	"github.com/yungbote/neurobridge-coursegen/internal/workflow"
)

var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorDim    = lipgloss.Color("#928374")
	ColorHeader = lipgloss.Color("#fe8019")
)

var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue   = lipgloss.NewStyle().Foreground(ColorBlue)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
)

// Printer renders with or without colour. Output written to a pipe should be plain.
type Printer struct {
	Color bool
}

func (p Printer) render(s lipgloss.Style, text string) string {
	if !p.Color {
		return text
	}
	return s.Render(text)
}

const barWidth = 20

func progressBar(pct int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * barWidth / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled) + "]"
}

// ProgressLine is one line per progress event, e.g. "[####....] 20% Lesson Design  Designing lessons".
func (p Printer) ProgressLine(ev workflow.ProgressEvent) string {
	bar := p.render(StyleBlue, progressBar(ev.Progress))
	pct := fmt.Sprintf("%3d%%", ev.Progress)
	if ev.Progress >= 100 {
		pct = p.render(StyleGreen, pct)
	}
	name := ev.PhaseName
	if name == "" {
		name = ev.Phase.DisplayName()
	}
	line := fmt.Sprintf("%s %s %-18s %s", bar, pct, p.render(StyleHeader, name), ev.Summary)
	if ev.TotalLessons > 0 {
		line += p.render(StyleDim, fmt.Sprintf("  (%d modules, %d lessons)", ev.TotalModules, ev.TotalLessons))
	}
	return line
}

func (p Printer) scoreStyle(score, threshold float64) lipgloss.Style {
	switch {
	case score >= threshold:
		return StyleGreen
	case score >= threshold/2:
		return StyleYellow
	default:
		return StyleRed
	}
}

// CourseSummary lists the course outline with the flow score and any lessons left without content.
func (p Printer) CourseSummary(s *course.State, threshold float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", p.render(StyleHeader, s.Course.Title))
	if s.Course.Description != "" {
		fmt.Fprintf(&b, "%s\n", s.Course.Description)
	}
	fmt.Fprintf(&b, "%s\n\n", p.render(StyleDim, fmt.Sprintf("%s · %.1f hours · %d modules · %d lessons",
		s.Course.Difficulty, s.Course.EstimatedHours, len(s.Modules), s.LessonCount())))

	missing := map[string]bool{}
	for _, id := range s.LessonsMissingContent() {
		missing[id] = true
	}
	for _, m := range s.Modules {
		fmt.Fprintf(&b, "%d. %s\n", m.ModuleIndex+1, m.Title)
		for _, l := range m.Lessons {
			mark := p.render(StyleGreen, "✓")
			if missing[l.ID] {
				mark = p.render(StyleRed, "✗")
			}
			fmt.Fprintf(&b, "   %s %d.%d %s %s\n", mark, m.ModuleIndex+1, l.LessonIndex+1, l.Title,
				p.render(StyleDim, fmt.Sprintf("(%d min)", l.EstimatedMinutes)))
		}
	}

	score := fmt.Sprintf("%.2f", s.Alignment.OverallScore)
	fmt.Fprintf(&b, "\nFlow score %s after %d refinement pass(es); %d concepts mapped\n",
		p.render(p.scoreStyle(s.Alignment.OverallScore, threshold), score),
		s.Metadata.Iterations, len(s.ConceptGraph.Concepts))
	if n := len(missing); n > 0 {
		fmt.Fprintf(&b, "%s\n", p.render(StyleYellow, fmt.Sprintf("%d lesson(s) have no content", n)))
	}
	return b.String()
}
