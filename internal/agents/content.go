package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/yungbote/neurobridge-coursegen/internal/contextasm"
	"github.com/yungbote/neurobridge-coursegen/internal/course"
	"github.com/yungbote/neurobridge-coursegen/internal/llm"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
)

type lessonContentOutput struct {
	Content string `json:"content" validate:"required"`
}

// ContentReport counts what one content pass did. Skipped lessons already had content.
type ContentReport struct {
	Generated int
	Failed    int
	Skipped   int
	FailedIDs []string
}

// ContentGenerator writes lesson content one lesson at a time, in course order.
type ContentGenerator struct {
	deps Deps
	log  *logger.Logger
}

func NewContentGenerator(d Deps) *ContentGenerator {
	return &ContentGenerator{deps: d, log: d.logger("ContentGenerator")}
}

func (a *ContentGenerator) Name() string { return "content_generator" }

func (a *ContentGenerator) Execute(ctx context.Context, s *course.State) (*course.Update, error) {
	upd, _, err := a.Generate(ctx, s)
	return upd, err
}

// Generate fills in every lesson lacking content. A failed lesson is logged, counted and left
// empty; only cancellation of ctx stops the pass.
func (a *ContentGenerator) Generate(ctx context.Context, s *course.State) (*course.Update, ContentReport, error) {
	var rep ContentReport
	if s == nil {
		return nil, rep, fmt.Errorf("content generator: nil state")
	}
	work := s.Clone()
	total := work.LessonCount()
	done := 0

	for mi := range work.Modules {
		for li := range work.Modules[mi].Lessons {
			if err := ctx.Err(); err != nil {
				return nil, rep, err
			}
			l := &work.Modules[mi].Lessons[li]
			done++
			if l.HasContent() {
				rep.Skipped++
				continue
			}

			cx := contextasm.LessonContext(work, l.ID, a.deps.Context)
			out, err := llm.Invoke[lessonContentOutput](ctx, a.deps.LLM, "lesson_content", lessonContentSchema(),
				schema.SystemMessage(contentSystem),
				schema.UserMessage(contentPrompt(cx.Text, *l)),
			)
			if err == nil && strings.TrimSpace(out.Content) == "" {
				err = llm.ErrEmptyOutput
			}
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
					return nil, rep, err
				}
				a.log.Warn("Lesson content generation failed; continuing",
					"module_index", mi,
					"lesson_id", l.ID,
					"lesson", l.Title,
					"error", err,
				)
				rep.Failed++
				rep.FailedIDs = append(rep.FailedIDs, l.ID)
				reportUnit(ctx, fmt.Sprintf("Failed to write %q", l.Title), done, total)
				continue
			}

			l.Content = strings.TrimSpace(out.Content)
			rep.Generated++
			reportUnit(ctx, fmt.Sprintf("Wrote %q", l.Title), done, total)
		}
	}

	a.log.Info("Lesson content pass finished", "generated", rep.Generated, "failed", rep.Failed, "skipped", rep.Skipped)
	return &course.Update{
		Modules:  work.Modules,
		Metadata: phasePatch(course.PhaseComplete),
	}, rep, nil
}
