package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/yungbote/neurobridge-coursegen/internal/course"
	"github.com/yungbote/neurobridge-coursegen/internal/llm"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
)

type refinementOutput struct {
	Summary       string `json:"summary"`
	ModuleUpdates []struct {
		ModuleID           string   `json:"moduleId" validate:"required"`
		Title              string   `json:"title"`
		Description        string   `json:"description"`
		LearningObjectives []string `json:"learningObjectives"`
	} `json:"moduleUpdates" validate:"dive"`
	LessonUpdates []struct {
		LessonID           string   `json:"lessonId" validate:"required"`
		Title              string   `json:"title"`
		Description        string   `json:"description"`
		EstimatedMinutes   int      `json:"estimatedMinutes"`
		LearningObjectives []string `json:"learningObjectives"`
		KeyConcepts        []string `json:"keyConcepts"`
		Prerequisites      []string `json:"prerequisites"`
	} `json:"lessonUpdates" validate:"dive"`
	Insertions []struct {
		ModuleID      string       `json:"moduleId"`
		AfterLessonID string       `json:"afterLessonId"`
		Lesson        lessonOutput `json:"lesson"`
	} `json:"insertions" validate:"dive"`
	Removals []struct {
		LessonID string `json:"lessonId" validate:"required"`
		Reason   string `json:"reason"`
	} `json:"removals" validate:"dive"`
}

// RefineReport counts the edits a refinement pass applied and skipped.
type RefineReport struct {
	Updated  int
	Inserted int
	Removed  int
	Skipped  int
}

// Refinement applies targeted outline edits for the validator's issues. Every pass counts as
// one iteration, whether or not any edit applied.
type Refinement struct {
	deps Deps
	log  *logger.Logger
}

func NewRefinement(d Deps) *Refinement {
	return &Refinement{deps: d, log: d.logger("Refinement")}
}

func (a *Refinement) Name() string { return "refinement" }

func (a *Refinement) Execute(ctx context.Context, s *course.State) (*course.Update, error) {
	if s == nil {
		return nil, fmt.Errorf("refinement: nil state")
	}
	out, err := llm.Invoke[refinementOutput](ctx, a.deps.LLM, "course_refinement", refinementSchema(),
		schema.SystemMessage(refinementSystem),
		schema.UserMessage(refinementPrompt(s)),
	)
	if err != nil {
		return nil, err
	}

	modules := course.CloneModules(s.Modules)
	rep := applyRefinement(modules, out, a.log)
	course.ReindexModules(modules)
	course.CanonicalizeConcepts(modules)
	graph := course.BuildConceptGraph(modules)
	iterations := s.Metadata.Iterations + 1

	a.log.Info("Refinement applied",
		"iteration", iterations,
		"updated", rep.Updated,
		"inserted", rep.Inserted,
		"removed", rep.Removed,
		"skipped", rep.Skipped,
		"summary", strings.TrimSpace(out.Summary),
	)
	return &course.Update{
		Modules:      modules,
		ConceptGraph: &graph,
		Metadata: &course.MetadataPatch{
			CurrentPhase: course.PhaseRefining,
			Iterations:   &iterations,
		},
	}, nil
}

func applyRefinement(modules []course.Module, out refinementOutput, log *logger.Logger) RefineReport {
	var rep RefineReport

	for _, u := range out.ModuleUpdates {
		mi := course.FindModuleIn(modules, u.ModuleID)
		if mi < 0 {
			log.Warn("Refinement referenced unknown module", "module_id", u.ModuleID)
			rep.Skipped++
			continue
		}
		m := &modules[mi]
		if t := strings.TrimSpace(u.Title); t != "" {
			m.Title = t
		}
		if d := strings.TrimSpace(u.Description); d != "" {
			m.Description = d
		}
		if objs := cleanList(u.LearningObjectives); len(objs) > 0 {
			m.LearningObjectives = objs
		}
		rep.Updated++
	}

	for _, u := range out.LessonUpdates {
		mi, li := course.FindLessonIn(modules, u.LessonID)
		if mi < 0 {
			log.Warn("Refinement referenced unknown lesson", "lesson_id", u.LessonID)
			rep.Skipped++
			continue
		}
		l := &modules[mi].Lessons[li]
		if t := strings.TrimSpace(u.Title); t != "" {
			l.Title = t
		}
		if d := strings.TrimSpace(u.Description); d != "" {
			l.Description = d
		}
		if u.EstimatedMinutes > 0 {
			l.EstimatedMinutes = u.EstimatedMinutes
		}
		if v := cleanList(u.LearningObjectives); len(v) > 0 {
			l.LearningObjectives = v
		}
		if v := cleanList(u.KeyConcepts); len(v) > 0 {
			l.KeyConcepts = v
		}
		if v := cleanList(u.Prerequisites); len(v) > 0 {
			l.Prerequisites = v
		}
		rep.Updated++
	}

	for _, r := range out.Removals {
		mi, _ := course.FindLessonIn(modules, r.LessonID)
		if mi < 0 {
			rep.Skipped++
			continue
		}
		if len(modules[mi].Lessons) <= 1 {
			log.Warn("Refusing to remove the last lesson of a module", "lesson_id", r.LessonID, "module", modules[mi].Title)
			rep.Skipped++
			continue
		}
		course.RemoveLesson(&modules[mi], strings.TrimSpace(r.LessonID))
		rep.Removed++
	}

	for _, ins := range out.Insertions {
		if strings.TrimSpace(ins.Lesson.Title) == "" {
			rep.Skipped++
			continue
		}
		mi := course.FindModuleIn(modules, ins.ModuleID)
		if mi < 0 {
			// An unknown module id still resolves through the anchor lesson.
			mi, _ = course.FindLessonIn(modules, ins.AfterLessonID)
		}
		if mi < 0 {
			log.Warn("Refinement insertion has no resolvable module", "module_id", ins.ModuleID, "after_lesson_id", ins.AfterLessonID)
			rep.Skipped++
			continue
		}
		if len(modules[mi].Lessons) >= MaxLessons*2 {
			log.Warn("Module already holds too many lessons; insertion skipped", "module", modules[mi].Title)
			rep.Skipped++
			continue
		}
		course.InsertLesson(&modules[mi], strings.TrimSpace(ins.AfterLessonID), ins.Lesson.toLesson())
		rep.Inserted++
	}
	return rep
}
