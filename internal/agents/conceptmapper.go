package agents

import (
	"context"

	"github.com/yungbote/neurobridge-coursegen/internal/course"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
)

// ConceptMapper derives the concept graph from the lessons and aligns lesson concept names with
// the graph's keys. It makes no completion calls.
type ConceptMapper struct {
	log *logger.Logger
}

func NewConceptMapper(d Deps) *ConceptMapper {
	return &ConceptMapper{log: d.logger("ConceptMapper")}
}

func (a *ConceptMapper) Name() string { return "concept_mapper" }

func (a *ConceptMapper) Execute(ctx context.Context, s *course.State) (*course.Update, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var modules []course.Module
	if s != nil {
		modules = course.CloneModules(s.Modules)
	}
	course.CanonicalizeConcepts(modules)
	g := course.BuildConceptGraph(modules)
	a.log.Info("Concept graph mapped", "concepts", len(g.Concepts), "dependencies", len(g.Dependencies))
	upd := &course.Update{
		ConceptGraph: &g,
		Metadata:     phasePatch(course.PhaseValidating),
	}
	if len(modules) > 0 {
		// Lessons carry the graph's spelling of each concept.
		upd.Modules = modules
	}
	return upd, nil
}
