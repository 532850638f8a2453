package agents

import (
	"fmt"
	"strings"

	"github.com/yungbote/neurobridge-coursegen/internal/course"
)

const strategistSystem = "You are a curriculum strategist. You turn a topic and a learner profile into a course plan.\n\n" +
	"Rules:\n" +
	"- Produce between 3 and 5 modules, ordered from foundations to application.\n" +
	"- Every module objective must serve a course objective.\n" +
	"- Do NOT design lessons yet; modules carry only title, description and objectives.\n" +
	"- Match depth and pace to the target difficulty and to what the assessment answers reveal.\n" +
	"- Keep titles specific and professional.\n"

const architectSystem = "You are a lesson architect. You design the lessons of ONE module of an existing course.\n\n" +
	"Rules:\n" +
	"- Produce between 3 and 6 lessons, in teaching order.\n" +
	"- keyConcepts are short noun phrases; reuse the exact spelling of concepts already introduced.\n" +
	"- prerequisites name concepts a learner must already know; prefer concepts from earlier lessons.\n" +
	"- Do NOT repeat lessons that earlier modules already cover.\n" +
	"- estimatedMinutes is a realistic study time between 10 and 90.\n"

const validatorSystem = "You are a flow validator. You judge how well a sequence of lessons flows for a learner.\n\n" +
	"Rules:\n" +
	"- Score every adjacent lesson pair you are given, using the exact lesson ids.\n" +
	"- flowScore and overallScore are numbers between 0 and 1, where 1 means seamless.\n" +
	"- Report gaps (missing bridging material), redundancies, prerequisite problems and difficulty jumps as issues.\n" +
	"- affectedLessons must contain lesson ids from the outline.\n" +
	"- Be strict: an overallScore of 0.8 or more means the course is ready for content.\n"

const refinementSystem = "You are a course editor. You fix the structural issues a validator found in a course outline.\n\n" +
	"Rules:\n" +
	"- Address the listed issues with the smallest set of targeted edits.\n" +
	"- Refer to modules and lessons by their exact ids.\n" +
	"- In updates, leave a field empty (\"\" or [] or 0) to keep its current value.\n" +
	"- Insert bridging lessons with afterLessonId set to the lesson they follow; leave it empty to append.\n" +
	"- Only remove a lesson when it is fully redundant, and never empty a module.\n"

const contentSystem = "You are an expert instructor. You write the full teaching content of ONE lesson.\n\n" +
	"Rules:\n" +
	"- Write in Markdown with headings, worked examples and a short recap.\n" +
	"- Teach every key concept and meet every learning objective of the lesson.\n" +
	"- Build on the preceding lessons; do not re-teach what their excerpts already cover.\n" +
	"- Briefly recall each prerequisite before relying on it.\n" +
	"- Pitch the language at the course difficulty.\n"

func strategistPrompt(in course.GenerationInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", in.Topic)
	fmt.Fprintf(&b, "Target difficulty: %s\n", in.TargetDifficulty)
	if pairs := in.SortedAssessment(); len(pairs) > 0 {
		b.WriteString("\nLearner assessment:\n")
		for _, p := range pairs {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", p[0], p[1])
		}
	}
	b.WriteString("\nDesign the course and its modules.\n")
	return b.String()
}

func architectPrompt(contextText string, m course.Module) string {
	var b strings.Builder
	b.WriteString(contextText)
	fmt.Fprintf(&b, "\nModule to design (module %d): %s\n", m.ModuleIndex+1, m.Title)
	if d := strings.TrimSpace(m.Description); d != "" {
		fmt.Fprintf(&b, "Description: %s\n", d)
	}
	if len(m.LearningObjectives) > 0 {
		b.WriteString("Objectives:\n")
		for _, o := range m.LearningObjectives {
			fmt.Fprintf(&b, "- %s\n", o)
		}
	}
	b.WriteString("\nDesign the lessons for this module.\n")
	return b.String()
}

// writeOutline renders every module and lesson with its id, one line per lesson.
func writeOutline(b *strings.Builder, s *course.State) {
	for _, m := range s.Modules {
		fmt.Fprintf(b, "Module %d [id=%s]: %s\n", m.ModuleIndex+1, m.ID, m.Title)
		for _, l := range m.Lessons {
			fmt.Fprintf(b, "  Lesson %d [id=%s]: %s", l.LessonIndex+1, l.ID, l.Title)
			if len(l.KeyConcepts) > 0 {
				fmt.Fprintf(b, " | concepts: %s", strings.Join(l.KeyConcepts, ", "))
			}
			if len(l.Prerequisites) > 0 {
				fmt.Fprintf(b, " | requires: %s", strings.Join(l.Prerequisites, ", "))
			}
			b.WriteString("\n")
		}
	}
}

func validatorPrompt(s *course.State, pairs []lessonPair) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s (%s)\n\nOutline:\n", s.Course.Title, s.Course.Difficulty)
	writeOutline(&b, s)
	b.WriteString("\nAdjacent lesson pairs to score:\n")
	for _, p := range pairs {
		fmt.Fprintf(&b, "- %s -> %s\n", p.from, p.to)
	}
	return b.String()
}

func refinementPrompt(s *course.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s (%s)\nCurrent alignment score: %.2f\n\nOutline:\n", s.Course.Title, s.Course.Difficulty, s.Alignment.OverallScore)
	writeOutline(&b, s)
	if len(s.Alignment.Issues) > 0 {
		b.WriteString("\nIssues:\n")
		for _, is := range s.Alignment.Issues {
			fmt.Fprintf(&b, "- [%s/%s] %s (lessons: %s)\n", is.Type, is.Severity, is.Description, strings.Join(is.AffectedLessons, ", "))
		}
	}
	weak := 0
	for _, t := range s.Alignment.LessonTransitions {
		if t.FlowScore >= 0.8 {
			continue
		}
		if weak == 0 {
			b.WriteString("\nWeak transitions:\n")
		}
		weak++
		fmt.Fprintf(&b, "- %s -> %s score %.2f", t.From, t.To, t.FlowScore)
		if len(t.Recommendations) > 0 {
			fmt.Fprintf(&b, " | recommended: %s", strings.Join(t.Recommendations, "; "))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nPropose the edits.\n")
	return b.String()
}

func contentPrompt(contextText string, l course.Lesson) string {
	var b strings.Builder
	b.WriteString(contextText)
	fmt.Fprintf(&b, "\nLesson to write: %s\n", l.Title)
	if d := strings.TrimSpace(l.Description); d != "" {
		fmt.Fprintf(&b, "Description: %s\n", d)
	}
	if len(l.LearningObjectives) > 0 {
		fmt.Fprintf(&b, "Objectives: %s\n", strings.Join(l.LearningObjectives, "; "))
	}
	if len(l.KeyConcepts) > 0 {
		fmt.Fprintf(&b, "Key concepts: %s\n", strings.Join(l.KeyConcepts, ", "))
	}
	if l.EstimatedMinutes > 0 {
		fmt.Fprintf(&b, "Target study time: %d minutes\n", l.EstimatedMinutes)
	}
	return b.String()
}
