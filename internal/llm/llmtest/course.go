// Package llmtest provides a scripted completer that answers every workflow schema with a small,
// well-formed course.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/neurobridge-coursegen/internal/llm"
)

type Course struct {
	Modules int
	Lessons int
	Score   float64

	// Block, when set, is waited on before the strategy answer so callers can observe a running
	// generation. The wait ends early when the request context is canceled.
	Block chan struct{}

	mu    sync.Mutex
	calls map[string]int
}

func NewCourse() *Course {
	return &Course{Modules: 3, Lessons: 3, Score: 0.9}
}

func (c *Course) Calls(schemaName string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[schemaName]
}

func (c *Course) Complete(ctx context.Context, req llm.Request) (map[string]any, error) {
	if req.SchemaName == "course_strategy" && c.Block != nil {
		select {
		case <-c.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	n := c.calls[req.SchemaName]
	c.calls[req.SchemaName]++
	c.mu.Unlock()

	switch req.SchemaName {
	case "course_strategy":
		mods := make([]any, 0, c.Modules)
		for i := 0; i < c.Modules; i++ {
			mods = append(mods, map[string]any{
				"title":              fmt.Sprintf("Module %d", i+1),
				"description":        "module",
				"learningObjectives": []string{"objective"},
			})
		}
		return map[string]any{
			"course": map[string]any{
				"title":              "Scripted Course",
				"description":        "A scripted course",
				"estimatedHours":     4,
				"learningObjectives": []string{"learn"},
				"prerequisites":      []string{},
			},
			"modules": mods,
		}, nil
	case "module_lessons":
		ls := make([]any, 0, c.Lessons)
		for j := 0; j < c.Lessons; j++ {
			concept := fmt.Sprintf("Concept %d.%d", n, j)
			var prereqs []string
			if j > 0 {
				prereqs = []string{fmt.Sprintf("Concept %d.%d", n, j-1)}
			}
			ls = append(ls, map[string]any{
				"title":              fmt.Sprintf("Lesson %d.%d", n+1, j+1),
				"description":        "lesson",
				"estimatedMinutes":   20,
				"learningObjectives": []string{"objective"},
				"keyConcepts":        []string{concept},
				"prerequisites":      prereqs,
			})
		}
		return map[string]any{"lessons": ls}, nil
	case "flow_validation":
		return map[string]any{"overallScore": c.Score, "transitions": []any{}, "issues": []any{}}, nil
	case "course_refinement":
		return map[string]any{
			"summary":       "unchanged",
			"moduleUpdates": []any{},
			"lessonUpdates": []any{},
			"insertions":    []any{},
			"removals":      []any{},
		}, nil
	case "lesson_content":
		return map[string]any{"content": fmt.Sprintf("# Lesson %d\n\nBody.", n+1)}, nil
	}
	return nil, fmt.Errorf("llmtest: unexpected schema %q", req.SchemaName)
}
