// Package agents holds the six course-generation agents. Each one reads the current course
// state and returns a partial course.Update; none of them mutates the state it is given.
package agents

import (
	"context"
	"strings"

	"github.com/yungbote/neurobridge-coursegen/internal/contextasm"
	"github.com/yungbote/neurobridge-coursegen/internal/course"
	"github.com/yungbote/neurobridge-coursegen/internal/llm"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
)

type Agent interface {
	Name() string
	Execute(ctx context.Context, s *course.State) (*course.Update, error)
}

// Deps are the collaborators shared by every agent.
type Deps struct {
	LLM     llm.Completer
	Log     *logger.Logger
	Context contextasm.Options
	// QualityThreshold is the alignment score at or above which the validator hands off to
	// content generation. Zero means 0.8.
	QualityThreshold float64
}

func (d Deps) logger(component string) *logger.Logger {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	return log.With("component", component)
}

func (d Deps) threshold() float64 {
	if d.QualityThreshold <= 0 || d.QualityThreshold > 1 {
		return 0.8
	}
	return d.QualityThreshold
}

const (
	MinModules = 3
	MaxModules = 5
	MinLessons = 3
	MaxLessons = 6
)

// ProgressFunc receives per-unit progress from agents that loop over modules or lessons.
type ProgressFunc func(summary string, done, total int)

type progressKey struct{}

// WithProgress attaches fn to ctx so long-running agents can report each unit they finish.
func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	if fn == nil {
		return ctx
	}
	return context.WithValue(ctx, progressKey{}, fn)
}

func reportUnit(ctx context.Context, summary string, done, total int) {
	if fn, ok := ctx.Value(progressKey{}).(ProgressFunc); ok && fn != nil {
		fn(summary, done, total)
	}
}

func phasePatch(p course.Phase) *course.MetadataPatch {
	return &course.MetadataPatch{CurrentPhase: p}
}

// cleanList trims entries, drops blanks and removes case-insensitive duplicates.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		k := strings.ToLower(s)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}
