package agents

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-coursegen/internal/course"
	"github.com/yungbote/neurobridge-coursegen/internal/llm"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
)

var ErrMissingInput = errors.New("agents: generation input missing")

type strategyOutput struct {
	Course struct {
		Title              string   `json:"title" validate:"required"`
		Description        string   `json:"description"`
		EstimatedHours     float64  `json:"estimatedHours" validate:"gte=0"`
		LearningObjectives []string `json:"learningObjectives"`
		Prerequisites      []string `json:"prerequisites"`
	} `json:"course"`
	Modules []struct {
		Title              string   `json:"title" validate:"required"`
		Description        string   `json:"description"`
		LearningObjectives []string `json:"learningObjectives"`
	} `json:"modules" validate:"min=1,dive"`
}

// Strategist plans the course and its module skeleton from the generation input.
type Strategist struct {
	deps Deps
	log  *logger.Logger
}

func NewStrategist(d Deps) *Strategist {
	return &Strategist{deps: d, log: d.logger("Strategist")}
}

func (a *Strategist) Name() string { return "strategist" }

func (a *Strategist) Execute(ctx context.Context, s *course.State) (*course.Update, error) {
	if s == nil || s.Metadata.Input == nil || strings.TrimSpace(s.Metadata.Input.Topic) == "" {
		return nil, ErrMissingInput
	}
	in := course.NormalizeInput(*s.Metadata.Input)

	out, err := llm.Invoke[strategyOutput](ctx, a.deps.LLM, "course_strategy", courseStrategySchema(),
		schema.SystemMessage(strategistSystem),
		schema.UserMessage(strategistPrompt(in)),
	)
	if err != nil {
		return nil, err
	}

	info := &course.CourseInfo{
		Title:              strings.TrimSpace(out.Course.Title),
		Description:        strings.TrimSpace(out.Course.Description),
		Difficulty:         in.TargetDifficulty,
		EstimatedHours:     out.Course.EstimatedHours,
		LearningObjectives: cleanList(out.Course.LearningObjectives),
		Prerequisites:      cleanList(out.Course.Prerequisites),
	}

	modules := make([]course.Module, 0, len(out.Modules))
	for _, m := range out.Modules {
		if len(modules) == MaxModules {
			a.log.Warn("Strategist returned too many modules; keeping the first ones", "returned", len(out.Modules), "kept", MaxModules)
			break
		}
		modules = append(modules, course.Module{
			ID:                 uuid.New().String(),
			Title:              strings.TrimSpace(m.Title),
			Description:        strings.TrimSpace(m.Description),
			ModuleIndex:        len(modules),
			LearningObjectives: cleanList(m.LearningObjectives),
			Lessons:            []course.Lesson{},
		})
	}
	if len(modules) < MinModules {
		a.log.Warn("Strategist returned fewer modules than planned", "returned", len(modules), "min", MinModules)
	}

	a.log.Info("Course strategy ready", "title", info.Title, "modules", len(modules))
	return &course.Update{
		Course:   info,
		Modules:  modules,
		Metadata: phasePatch(course.PhaseArchitecting),
	}, nil
}
