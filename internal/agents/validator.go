package agents

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/yungbote/neurobridge-coursegen/internal/course"
	"github.com/yungbote/neurobridge-coursegen/internal/llm"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
)

type transitionOutput struct {
	FromLessonID    string   `json:"fromLessonId"`
	ToLessonID      string   `json:"toLessonId"`
	FlowScore       float64  `json:"flowScore"`
	Gaps            []string `json:"gaps"`
	Redundancies    []string `json:"redundancies"`
	Recommendations []string `json:"recommendations"`
}

type issueOutput struct {
	Type            string   `json:"type"`
	Severity        string   `json:"severity"`
	Description     string   `json:"description" validate:"required"`
	AffectedLessons []string `json:"affectedLessons"`
}

type flowValidationOutput struct {
	OverallScore float64            `json:"overallScore"`
	Transitions  []transitionOutput `json:"transitions" validate:"dive"`
	Issues       []issueOutput      `json:"issues" validate:"dive"`
}

type lessonPair struct {
	from, to string
}

// adjacentPairs lists consecutive lessons in course order, crossing module boundaries.
func adjacentPairs(s *course.State) []lessonPair {
	var ids []string
	for _, m := range s.Modules {
		for _, l := range m.Lessons {
			ids = append(ids, l.ID)
		}
	}
	if len(ids) < 2 {
		return nil
	}
	out := make([]lessonPair, 0, len(ids)-1)
	for i := 1; i < len(ids); i++ {
		out = append(out, lessonPair{from: ids[i-1], to: ids[i]})
	}
	return out
}

// FlowValidator scores lesson-to-lesson flow and collects structural issues.
type FlowValidator struct {
	deps Deps
	log  *logger.Logger
}

func NewFlowValidator(d Deps) *FlowValidator {
	return &FlowValidator{deps: d, log: d.logger("FlowValidator")}
}

func (a *FlowValidator) Name() string { return "flow_validator" }

func (a *FlowValidator) Execute(ctx context.Context, s *course.State) (*course.Update, error) {
	if s == nil {
		return nil, fmt.Errorf("flow validator: nil state")
	}
	pairs := adjacentPairs(s)
	out, err := llm.Invoke[flowValidationOutput](ctx, a.deps.LLM, "flow_validation", flowValidationSchema(),
		schema.SystemMessage(validatorSystem),
		schema.UserMessage(validatorPrompt(s, pairs)),
	)
	if err != nil {
		return nil, err
	}

	overall := out.OverallScore
	if math.IsNaN(overall) || math.IsInf(overall, 0) {
		a.log.Warn("Validator returned a non-finite score; treating as 0", "score", overall)
		overall = 0
	}
	overall = course.ClampScore(overall)

	known := map[string]bool{}
	for _, m := range s.Modules {
		for _, l := range m.Lessons {
			known[l.ID] = true
		}
	}

	byPair := make(map[lessonPair]transitionOutput, len(out.Transitions))
	for _, t := range out.Transitions {
		byPair[lessonPair{from: strings.TrimSpace(t.FromLessonID), to: strings.TrimSpace(t.ToLessonID)}] = t
	}
	transitions := make([]course.Transition, 0, len(pairs))
	filled := 0
	for _, p := range pairs {
		t, ok := byPair[p]
		if !ok {
			filled++
			transitions = append(transitions, course.Transition{
				From: p.from, To: p.to, FlowScore: overall,
				Gaps: []string{}, Redundancies: []string{}, Recommendations: []string{},
			})
			continue
		}
		score := t.FlowScore
		if math.IsNaN(score) {
			score = overall
		}
		transitions = append(transitions, course.Transition{
			From:            p.from,
			To:              p.to,
			FlowScore:       course.ClampScore(score),
			Gaps:            cleanList(t.Gaps),
			Redundancies:    cleanList(t.Redundancies),
			Recommendations: cleanList(t.Recommendations),
		})
	}
	if filled > 0 {
		a.log.Debug("Filled unscored transitions with the overall score", "filled", filled, "pairs", len(pairs))
	}

	issues := make([]course.Issue, 0, len(out.Issues))
	for _, is := range out.Issues {
		affected := make([]string, 0, len(is.AffectedLessons))
		for _, id := range cleanList(is.AffectedLessons) {
			if known[id] {
				affected = append(affected, id)
			}
		}
		issues = append(issues, course.Issue{
			Type:            parseIssueType(is.Type),
			Severity:        parseSeverity(is.Severity),
			Description:     strings.TrimSpace(is.Description),
			AffectedLessons: affected,
		})
	}
	issues = append(issues, forwardPrerequisiteIssues(s, issues)...)

	phase := course.PhaseRefining
	if overall >= a.deps.threshold() {
		phase = course.PhaseGenerating
	}
	a.log.Info("Flow validated", "score", overall, "transitions", len(transitions), "issues", len(issues), "next_phase", phase)

	return &course.Update{
		Alignment: &course.Alignment{
			LessonTransitions: transitions,
			OverallScore:      overall,
			Issues:            issues,
			Evaluated:         true,
		},
		Metadata: phasePatch(phase),
	}, nil
}

// forwardPrerequisiteIssues reports lessons whose prerequisites are only introduced later in
// the course. Pairs already covered by an existing prerequisite_missing issue are skipped.
func forwardPrerequisiteIssues(s *course.State, existing []course.Issue) []course.Issue {
	graph := s.ConceptGraph
	if len(graph.Concepts) == 0 {
		graph = course.BuildConceptGraph(s.Modules)
	}
	position := map[string]int{}
	title := map[string]string{}
	for _, m := range s.Modules {
		for _, l := range m.Lessons {
			position[l.ID] = len(position)
			title[l.ID] = l.Title
		}
	}
	covered := func(a, b string) bool {
		for _, is := range existing {
			if is.Type != course.IssuePrerequisiteMissing {
				continue
			}
			hasA, hasB := false, false
			for _, id := range is.AffectedLessons {
				hasA = hasA || id == a
				hasB = hasB || id == b
			}
			if hasA && hasB {
				return true
			}
		}
		return false
	}

	var out []course.Issue
	for _, m := range s.Modules {
		for _, l := range m.Lessons {
			for _, p := range l.Prerequisites {
				node, ok := graph.Lookup(p)
				if !ok || node == nil {
					continue
				}
				intro, ok := position[node.IntroducedIn]
				if !ok || intro <= position[l.ID] || covered(l.ID, node.IntroducedIn) {
					continue
				}
				out = append(out, course.Issue{
					Type:            course.IssuePrerequisiteMissing,
					Severity:        course.SeverityHigh,
					Description:     fmt.Sprintf("Lesson %q requires %q, which is only introduced later in %q", l.Title, p, title[node.IntroducedIn]),
					AffectedLessons: []string{l.ID, node.IntroducedIn},
				})
			}
		}
	}
	return out
}

func parseIssueType(s string) course.IssueType {
	switch t := course.IssueType(strings.ToLower(strings.TrimSpace(s))); t {
	case course.IssueGap, course.IssueRedundancy, course.IssuePrerequisiteMissing, course.IssueDifficultyJump:
		return t
	default:
		return course.IssueGap
	}
}

func parseSeverity(s string) course.Severity {
	switch v := course.Severity(strings.ToLower(strings.TrimSpace(s))); v {
	case course.SeverityLow, course.SeverityMedium, course.SeverityHigh:
		return v
	default:
		return course.SeverityMedium
	}
}
