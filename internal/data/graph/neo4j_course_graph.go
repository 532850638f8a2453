package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/neurobridge-coursegen/internal/course"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/neo4jdb"
)

// coursePayload is the parameter set for one course graph sync. Concept ids are scoped to the
// run so two courses that share a concept name never merge into one node.
type coursePayload struct {
	course   map[string]any
	modules  []map[string]any
	lessons  []map[string]any
	next     []map[string]any
	concepts []map[string]any
	uses     []map[string]any
	deps     map[course.DependencyType][]map[string]any
}

var depRelType = map[course.DependencyType]string{
	course.DependencyPrerequisite: "CONCEPT_PREREQ",
	course.DependencyBuildsOn:     "CONCEPT_BUILDS_ON",
	course.DependencyExtends:      "CONCEPT_EXTENDS",
}

func conceptID(runID, name string) string {
	return runID + ":" + strings.ToLower(strings.TrimSpace(name))
}

func buildCoursePayload(runID string, s *course.State, now time.Time) coursePayload {
	syncedAt := now.UTC().Format(time.RFC3339Nano)
	p := coursePayload{
		course: map[string]any{
			"id":              runID,
			"title":           s.Course.Title,
			"description":     s.Course.Description,
			"difficulty":      string(s.Course.Difficulty),
			"estimated_hours": s.Course.EstimatedHours,
			"alignment_score": s.Alignment.OverallScore,
			"iterations":      int64(s.Metadata.Iterations),
			"synced_at":       syncedAt,
		},
		deps: map[course.DependencyType][]map[string]any{},
	}

	prevLesson := ""
	for _, m := range s.Modules {
		p.modules = append(p.modules, map[string]any{
			"id":           m.ID,
			"course_id":    runID,
			"title":        m.Title,
			"module_index": int64(m.ModuleIndex),
			"synced_at":    syncedAt,
		})
		for _, l := range m.Lessons {
			p.lessons = append(p.lessons, map[string]any{
				"id":                l.ID,
				"module_id":         m.ID,
				"title":             l.Title,
				"lesson_index":      int64(l.LessonIndex),
				"estimated_minutes": int64(l.EstimatedMinutes),
				"has_content":       l.HasContent(),
				"synced_at":         syncedAt,
			})
			if prevLesson != "" {
				p.next = append(p.next, map[string]any{"from_id": prevLesson, "to_id": l.ID})
			}
			prevLesson = l.ID
		}
	}

	for _, name := range s.ConceptGraph.SortedNames() {
		node := s.ConceptGraph.Concepts[name]
		if node == nil {
			continue
		}
		id := conceptID(runID, name)
		p.concepts = append(p.concepts, map[string]any{
			"id":            id,
			"course_id":     runID,
			"name":          name,
			"depth":         int64(node.Depth),
			"introduced_in": node.IntroducedIn,
			"synced_at":     syncedAt,
		})
		for _, lessonID := range node.UsedIn {
			p.uses = append(p.uses, map[string]any{"lesson_id": lessonID, "concept_id": id})
		}
	}

	for _, d := range s.ConceptGraph.Dependencies {
		if _, ok := depRelType[d.Type]; !ok {
			continue
		}
		p.deps[d.Type] = append(p.deps[d.Type], map[string]any{
			"from_id":   conceptID(runID, d.From),
			"to_id":     conceptID(runID, d.To),
			"course_id": runID,
			"synced_at": syncedAt,
		})
	}
	return p
}

// UpsertCourseGraph writes a finished course into Neo4j: the course, its modules and lessons in
// order, and the concept graph with one relationship type per dependency kind.
func UpsertCourseGraph(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, runID string, s *course.State) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("neo4j course graph sync: missing runID")
	}
	if s == nil {
		return fmt.Errorf("neo4j course graph sync: nil state")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p := buildCoursePayload(runID, s, time.Now())

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	// Schema helpers are best effort; restricted users may not create them.
	for _, stmt := range []string{
		`CREATE CONSTRAINT course_id_unique IF NOT EXISTS FOR (c:Course) REQUIRE c.id IS UNIQUE`,
		`CREATE CONSTRAINT course_concept_id_unique IF NOT EXISTS FOR (c:CourseConcept) REQUIRE c.id IS UNIQUE`,
		`CREATE INDEX course_lesson_id_idx IF NOT EXISTS FOR (l:Lesson) ON (l.id)`,
	} {
		if res, err := session.Run(ctx, stmt, nil); err != nil {
			if log != nil {
				log.Warn("neo4j schema init failed (continuing)", "error", err)
			}
		} else {
			_, _ = res.Consume(ctx)
		}
	}

	run := func(tx neo4j.ManagedTransaction, cypher string, params map[string]any) error {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return err
		}
		_, err = res.Consume(ctx)
		return err
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := run(tx, `
MERGE (c:Course {id: $course.id})
SET c += $course
`, map[string]any{"course": p.course}); err != nil {
			return nil, err
		}

		if len(p.modules) > 0 {
			if err := run(tx, `
UNWIND $modules AS m
MATCH (c:Course {id: m.course_id})
MERGE (mod:Module {id: m.id})
SET mod += m
MERGE (c)-[:HAS_MODULE]->(mod)
`, map[string]any{"modules": p.modules}); err != nil {
				return nil, err
			}
		}

		if len(p.lessons) > 0 {
			if err := run(tx, `
UNWIND $lessons AS l
MATCH (mod:Module {id: l.module_id})
MERGE (les:Lesson {id: l.id})
SET les += l
MERGE (mod)-[:HAS_LESSON]->(les)
`, map[string]any{"lessons": p.lessons}); err != nil {
				return nil, err
			}
		}

		if len(p.next) > 0 {
			if err := run(tx, `
UNWIND $rels AS r
MATCH (a:Lesson {id: r.from_id})
MATCH (b:Lesson {id: r.to_id})
MERGE (a)-[:NEXT_LESSON]->(b)
`, map[string]any{"rels": p.next}); err != nil {
				return nil, err
			}
		}

		if len(p.concepts) > 0 {
			if err := run(tx, `
UNWIND $concepts AS n
MERGE (c:CourseConcept {id: n.id})
SET c += n
WITH c, n
MATCH (l:Lesson {id: n.introduced_in})
MERGE (l)-[:INTRODUCES]->(c)
`, map[string]any{"concepts": p.concepts}); err != nil {
				return nil, err
			}
		}

		if len(p.uses) > 0 {
			if err := run(tx, `
UNWIND $rels AS r
MATCH (l:Lesson {id: r.lesson_id})
MATCH (c:CourseConcept {id: r.concept_id})
MERGE (l)-[:USES]->(c)
`, map[string]any{"rels": p.uses}); err != nil {
				return nil, err
			}
		}

		for _, t := range []course.DependencyType{course.DependencyPrerequisite, course.DependencyBuildsOn, course.DependencyExtends} {
			rels := p.deps[t]
			if len(rels) == 0 {
				continue
			}
			// Relationship types cannot be parameterised; depRelType is a closed set.
			if err := run(tx, fmt.Sprintf(`
UNWIND $rels AS r
MATCH (a:CourseConcept {id: r.from_id})
MATCH (b:CourseConcept {id: r.to_id})
MERGE (a)-[e:%s]->(b)
SET e.course_id = r.course_id,
    e.synced_at = r.synced_at
`, depRelType[t]), map[string]any{"rels": rels}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}
