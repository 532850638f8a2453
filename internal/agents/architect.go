package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-coursegen/internal/contextasm"
	"github.com/yungbote/neurobridge-coursegen/internal/course"
	"github.com/yungbote/neurobridge-coursegen/internal/llm"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
)

type lessonOutput struct {
	Title              string   `json:"title" validate:"required"`
	Description        string   `json:"description"`
	EstimatedMinutes   int      `json:"estimatedMinutes" validate:"gte=0"`
	LearningObjectives []string `json:"learningObjectives"`
	KeyConcepts        []string `json:"keyConcepts"`
	Prerequisites      []string `json:"prerequisites"`
}

func (o lessonOutput) toLesson() course.Lesson {
	return course.Lesson{
		ID:                 uuid.New().String(),
		Title:              strings.TrimSpace(o.Title),
		Description:        strings.TrimSpace(o.Description),
		EstimatedMinutes:   o.EstimatedMinutes,
		LearningObjectives: cleanList(o.LearningObjectives),
		KeyConcepts:        cleanList(o.KeyConcepts),
		Prerequisites:      cleanList(o.Prerequisites),
	}
}

type moduleLessonsOutput struct {
	Lessons []lessonOutput `json:"lessons" validate:"min=1,dive"`
}

// Architect designs the lessons of every module that does not have any yet. Modules are
// handled in order and each prompt sees the lessons designed for the modules before it.
type Architect struct {
	deps Deps
	log  *logger.Logger
}

func NewArchitect(d Deps) *Architect {
	return &Architect{deps: d, log: d.logger("Architect")}
}

func (a *Architect) Name() string { return "architect" }

func (a *Architect) Execute(ctx context.Context, s *course.State) (*course.Update, error) {
	if s == nil {
		return nil, fmt.Errorf("architect: nil state")
	}
	work := s.Clone()
	total := len(work.Modules)
	for i := range work.Modules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mod := &work.Modules[i]
		if len(mod.Lessons) > 0 {
			reportUnit(ctx, fmt.Sprintf("Module %d already designed", i+1), i+1, total)
			continue
		}

		cx := contextasm.ModuleContext(work, i, a.deps.Context)
		out, err := llm.Invoke[moduleLessonsOutput](ctx, a.deps.LLM, "module_lessons", moduleLessonsSchema(),
			schema.SystemMessage(architectSystem),
			schema.UserMessage(architectPrompt(cx.Text, *mod)),
		)
		if err != nil {
			return nil, fmt.Errorf("module %d %q: %w", i+1, mod.Title, err)
		}

		lessons := make([]course.Lesson, 0, len(out.Lessons))
		for _, lo := range out.Lessons {
			if len(lessons) == MaxLessons {
				a.log.Warn("Too many lessons for module; keeping the first ones", "module", mod.Title, "returned", len(out.Lessons), "kept", MaxLessons)
				break
			}
			l := lo.toLesson()
			l.LessonIndex = len(lessons)
			lessons = append(lessons, l)
		}
		if len(lessons) < MinLessons {
			a.log.Warn("Module has fewer lessons than planned", "module", mod.Title, "lessons", len(lessons), "min", MinLessons)
		}
		mod.Lessons = lessons

		a.log.Debug("Module designed",
			"module_index", i,
			"lessons", len(lessons),
			"full_detail_modules", cx.FullDetailUnits,
			"summarised_modules", cx.SummarisedUnits,
		)
		reportUnit(ctx, fmt.Sprintf("Designed %d lessons for %q", len(lessons), mod.Title), i+1, total)
	}

	return &course.Update{
		Modules:  work.Modules,
		Metadata: phasePatch(course.PhaseMapping),
	}, nil
}
