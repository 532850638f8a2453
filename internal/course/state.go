package course

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Update is a partial state produced by one workflow node. A nil field means "not provided".
type Update struct {
	Course       *CourseInfo    `json:"course,omitempty"`
	Modules      []Module       `json:"modules,omitempty"`
	ConceptGraph *ConceptGraph  `json:"conceptGraph,omitempty"`
	Alignment    *Alignment     `json:"alignment,omitempty"`
	Metadata     *MetadataPatch `json:"metadata,omitempty"`
}

type MetadataPatch struct {
	CurrentPhase Phase            `json:"currentPhase,omitempty"`
	Iterations   *int             `json:"iterations,omitempty"`
	LastModified *time.Time       `json:"lastModified,omitempty"`
	Input        *GenerationInput `json:"input,omitempty"`
}

// IsEmpty reports whether the update carries no field at all.
func (u *Update) IsEmpty() bool {
	return u == nil || (u.Course == nil && u.Modules == nil && u.ConceptGraph == nil && u.Alignment == nil && u.Metadata == nil)
}

// Phase returns the phase the update moves to, or "" when it does not set one.
func (u *Update) Phase() Phase {
	if u == nil || u.Metadata == nil {
		return ""
	}
	return u.Metadata.CurrentPhase
}

// DefaultState is the documented empty state every recovery path falls back to.
func DefaultState() *State {
	return &State{
		Course: CourseInfo{
			Difficulty:         DifficultyBeginner,
			LearningObjectives: []string{},
			Prerequisites:      []string{},
		},
		Modules: []Module{},
		ConceptGraph: ConceptGraph{
			Concepts:     map[string]*ConceptNode{},
			Dependencies: []Dependency{},
		},
		Alignment: Alignment{
			LessonTransitions: []Transition{},
			Issues:            []Issue{},
		},
		Metadata: Metadata{
			CurrentPhase: PhaseStrategizing,
			LastModified: time.Now().UTC(),
		},
	}
}

// InitializeState seeds a run from its request.
func InitializeState(in GenerationInput) *State {
	s := DefaultState()
	in = NormalizeInput(in)
	s.Course.Difficulty = in.TargetDifficulty
	s.Metadata.Input = &in
	return s
}

// NormalizeInput trims the topic, defaults the difficulty and copies the assessment map.
func NormalizeInput(in GenerationInput) GenerationInput {
	out := copyInput(in)
	out.Topic = strings.TrimSpace(in.Topic)
	out.TargetDifficulty = ParseDifficulty(string(in.TargetDifficulty))
	if out.TargetDifficulty == "" {
		out.TargetDifficulty = DifficultyBeginner
	}
	if len(out.AssessmentResponses) == 0 {
		out.AssessmentResponses = nil
	}
	return out
}

// SortedAssessment returns assessment question/answer pairs in a stable order.
func (in GenerationInput) SortedAssessment() [][2]string {
	keys := make([]string, 0, len(in.AssessmentResponses))
	for k := range in.AssessmentResponses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][2]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, [2]string{k, in.AssessmentResponses[k]})
	}
	return out
}

// IsEmpty reports whether s carries nothing a node produced or was seeded with.
func (s *State) IsEmpty() bool {
	if s == nil {
		return true
	}
	return s.Course.Title == "" &&
		len(s.Modules) == 0 &&
		len(s.ConceptGraph.Concepts) == 0 &&
		!s.Alignment.Evaluated &&
		s.Metadata.Input == nil &&
		s.Metadata.Iterations == 0
}

func (s *State) LessonCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, m := range s.Modules {
		n += len(m.Lessons)
	}
	return n
}

// FindLesson returns the module and lesson positions of id, or -1, -1.
func (s *State) FindLesson(id string) (int, int) {
	if s == nil {
		return -1, -1
	}
	return FindLessonIn(s.Modules, id)
}

// FindLessonIn locates a lesson by id across modules, ignoring surrounding space in id.
func FindLessonIn(modules []Module, id string) (int, int) {
	id = strings.TrimSpace(id)
	if id == "" {
		return -1, -1
	}
	for mi := range modules {
		for li := range modules[mi].Lessons {
			if modules[mi].Lessons[li].ID == id {
				return mi, li
			}
		}
	}
	return -1, -1
}

func FindModuleIn(modules []Module, id string) int {
	id = strings.TrimSpace(id)
	if id == "" {
		return -1
	}
	for i := range modules {
		if modules[i].ID == id {
			return i
		}
	}
	return -1
}

// LessonsMissingContent lists the ids of lessons whose content is still empty.
func (s *State) LessonsMissingContent() []string {
	var out []string
	if s == nil {
		return out
	}
	for _, m := range s.Modules {
		for _, l := range m.Lessons {
			if !l.HasContent() {
				out = append(out, l.ID)
			}
		}
	}
	return out
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := &State{
		Course:       cloneCourse(s.Course),
		Modules:      CloneModules(s.Modules),
		ConceptGraph: s.ConceptGraph.Clone(),
		Alignment:    cloneAlignment(s.Alignment),
		Metadata:     s.Metadata,
	}
	if s.Metadata.Input != nil {
		in := copyInput(*s.Metadata.Input)
		out.Metadata.Input = &in
	}
	return out
}

func copyInput(in GenerationInput) GenerationInput {
	out := in
	if in.AssessmentResponses != nil {
		out.AssessmentResponses = make(map[string]string, len(in.AssessmentResponses))
		for k, v := range in.AssessmentResponses {
			out.AssessmentResponses[k] = v
		}
	}
	return out
}

func cloneCourse(c CourseInfo) CourseInfo {
	c.LearningObjectives = cloneStrings(c.LearningObjectives)
	c.Prerequisites = cloneStrings(c.Prerequisites)
	return c
}

func CloneModules(in []Module) []Module {
	if in == nil {
		return nil
	}
	out := make([]Module, len(in))
	for i, m := range in {
		out[i] = m
		out[i].LearningObjectives = cloneStrings(m.LearningObjectives)
		out[i].Lessons = cloneLessons(m.Lessons)
	}
	return out
}

func cloneLessons(in []Lesson) []Lesson {
	if in == nil {
		return nil
	}
	out := make([]Lesson, len(in))
	for i, l := range in {
		out[i] = cloneLesson(l)
	}
	return out
}

func cloneLesson(l Lesson) Lesson {
	l.LearningObjectives = cloneStrings(l.LearningObjectives)
	l.KeyConcepts = cloneStrings(l.KeyConcepts)
	l.Prerequisites = cloneStrings(l.Prerequisites)
	return l
}

func cloneAlignment(a Alignment) Alignment {
	out := a
	if a.LessonTransitions != nil {
		out.LessonTransitions = make([]Transition, len(a.LessonTransitions))
		for i, t := range a.LessonTransitions {
			t.Gaps = cloneStrings(t.Gaps)
			t.Redundancies = cloneStrings(t.Redundancies)
			t.Recommendations = cloneStrings(t.Recommendations)
			out.LessonTransitions[i] = t
		}
	}
	if a.Issues != nil {
		out.Issues = make([]Issue, len(a.Issues))
		for i, is := range a.Issues {
			is.AffectedLessons = cloneStrings(is.AffectedLessons)
			out.Issues[i] = is
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Normalize fills every missing field of s in place so no consumer sees a nil collection, an
// out-of-range score or a stale position index. It returns s for chaining.
func Normalize(s *State) *State {
	if s == nil {
		return DefaultState()
	}
	if s.Course.Difficulty == "" || !s.Course.Difficulty.Valid() {
		if d := ParseDifficulty(string(s.Course.Difficulty)); d != "" {
			s.Course.Difficulty = d
		} else if s.Metadata.Input != nil && s.Metadata.Input.TargetDifficulty.Valid() {
			s.Course.Difficulty = s.Metadata.Input.TargetDifficulty
		} else {
			s.Course.Difficulty = DifficultyBeginner
		}
	}
	if math.IsNaN(s.Course.EstimatedHours) || s.Course.EstimatedHours < 0 {
		s.Course.EstimatedHours = 0
	}
	s.Course.LearningObjectives = nonNilStrings(s.Course.LearningObjectives)
	s.Course.Prerequisites = nonNilStrings(s.Course.Prerequisites)

	if s.Modules == nil {
		s.Modules = []Module{}
	}
	for mi := range s.Modules {
		m := &s.Modules[mi]
		if strings.TrimSpace(m.ID) == "" {
			m.ID = uuid.New().String()
		}
		m.ModuleIndex = mi
		m.LearningObjectives = nonNilStrings(m.LearningObjectives)
		if m.Lessons == nil {
			m.Lessons = []Lesson{}
		}
		for li := range m.Lessons {
			l := &m.Lessons[li]
			if strings.TrimSpace(l.ID) == "" {
				l.ID = uuid.New().String()
			}
			l.LessonIndex = li
			if l.EstimatedMinutes < 0 {
				l.EstimatedMinutes = 0
			}
			l.LearningObjectives = nonNilStrings(l.LearningObjectives)
			l.KeyConcepts = nonNilStrings(l.KeyConcepts)
			l.Prerequisites = nonNilStrings(l.Prerequisites)
		}
	}

	s.ConceptGraph.normalize()

	s.Alignment.OverallScore = ClampScore(s.Alignment.OverallScore)
	if s.Alignment.LessonTransitions == nil {
		s.Alignment.LessonTransitions = []Transition{}
	}
	for i := range s.Alignment.LessonTransitions {
		t := &s.Alignment.LessonTransitions[i]
		t.FlowScore = ClampScore(t.FlowScore)
		t.Gaps = nonNilStrings(t.Gaps)
		t.Redundancies = nonNilStrings(t.Redundancies)
		t.Recommendations = nonNilStrings(t.Recommendations)
	}
	if s.Alignment.Issues == nil {
		s.Alignment.Issues = []Issue{}
	}
	for i := range s.Alignment.Issues {
		s.Alignment.Issues[i].AffectedLessons = nonNilStrings(s.Alignment.Issues[i].AffectedLessons)
	}

	if !s.Metadata.CurrentPhase.Valid() {
		s.Metadata.CurrentPhase = PhaseStrategizing
	}
	if s.Metadata.Iterations < 0 {
		s.Metadata.Iterations = 0
	}
	if s.Metadata.LastModified.IsZero() {
		s.Metadata.LastModified = time.Now().UTC()
	}
	return s
}

// ClampScore maps NaN to 0 and clamps into [0,1].
func ClampScore(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
