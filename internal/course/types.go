package course

import (
	"strings"
	"time"
)

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
	DifficultyExpert       Difficulty = "expert"
)

var Difficulties = []Difficulty{DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced, DifficultyExpert}

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced, DifficultyExpert:
		return true
	default:
		return false
	}
}

// ParseDifficulty is case-insensitive and returns "" for unknown values.
func ParseDifficulty(s string) Difficulty {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if d.Valid() {
		return d
	}
	return ""
}

// Phase is the workflow step a state was last produced by.
type Phase string

const (
	PhaseStrategizing Phase = "strategizing"
	PhaseArchitecting Phase = "architecting"
	PhaseMapping      Phase = "mapping"
	PhaseValidating   Phase = "validating"
	PhaseRefining     Phase = "refining"
	PhaseGenerating   Phase = "generating"
	PhaseComplete     Phase = "complete"
)

func (p Phase) Valid() bool {
	switch p {
	case PhaseStrategizing, PhaseArchitecting, PhaseMapping, PhaseValidating, PhaseRefining, PhaseGenerating, PhaseComplete:
		return true
	default:
		return false
	}
}

// DisplayName is the human label shown alongside progress events.
func (p Phase) DisplayName() string {
	switch p {
	case PhaseStrategizing:
		return "Course Strategy"
	case PhaseArchitecting:
		return "Lesson Architecture"
	case PhaseMapping:
		return "Concept Mapping"
	case PhaseValidating:
		return "Flow Validation"
	case PhaseRefining:
		return "Refinement"
	case PhaseGenerating:
		return "Content Generation"
	case PhaseComplete:
		return "Complete"
	default:
		return string(p)
	}
}

// GenerationInput is the request a run was started with.
type GenerationInput struct {
	Topic               string            `json:"topic" validate:"required"`
	TargetDifficulty    Difficulty        `json:"targetDifficulty"`
	AssessmentResponses map[string]string `json:"assessmentResponses,omitempty"`
}

type CourseInfo struct {
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Difficulty         Difficulty `json:"difficulty"`
	EstimatedHours     float64    `json:"estimatedHours"`
	LearningObjectives []string   `json:"learningObjectives"`
	Prerequisites      []string   `json:"prerequisites"`
}

type Module struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	ModuleIndex        int      `json:"moduleIndex"`
	LearningObjectives []string `json:"learningObjectives"`
	Lessons            []Lesson `json:"lessons"`
}

type Lesson struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	LessonIndex        int      `json:"lessonIndex"`
	EstimatedMinutes   int      `json:"estimatedMinutes"`
	LearningObjectives []string `json:"learningObjectives"`
	KeyConcepts        []string `json:"keyConcepts"`
	Prerequisites      []string `json:"prerequisites"`
	Content            string   `json:"content,omitempty"`
}

func (l Lesson) HasContent() bool { return strings.TrimSpace(l.Content) != "" }

type DependencyType string

const (
	DependencyPrerequisite DependencyType = "prerequisite"
	DependencyBuildsOn     DependencyType = "builds_on"
	DependencyExtends      DependencyType = "extends"
)

type Dependency struct {
	From string         `json:"from"`
	To   string         `json:"to"`
	Type DependencyType `json:"type"`
}

type ConceptNode struct {
	IntroducedIn  string   `json:"introducedIn"`
	Prerequisites []string `json:"prerequisites"`
	UsedIn        []string `json:"usedIn"`
	Depth         int      `json:"depth"`
}

// ConceptGraph is keyed by concept name. On the wire the concepts field may also arrive as a
// list of [name, node] entries; UnmarshalJSON folds that back into the map.
type ConceptGraph struct {
	Concepts     map[string]*ConceptNode `json:"concepts"`
	Dependencies []Dependency            `json:"dependencies"`
}

type IssueType string

const (
	IssueGap                 IssueType = "gap"
	IssueRedundancy          IssueType = "redundancy"
	IssuePrerequisiteMissing IssueType = "prerequisite_missing"
	IssueDifficultyJump      IssueType = "difficulty_jump"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Transition struct {
	From            string   `json:"from"`
	To              string   `json:"to"`
	FlowScore       float64  `json:"flowScore"`
	Gaps            []string `json:"gaps"`
	Redundancies    []string `json:"redundancies"`
	Recommendations []string `json:"recommendations"`
}

type Issue struct {
	Type            IssueType `json:"type"`
	Severity        Severity  `json:"severity"`
	Description     string    `json:"description"`
	AffectedLessons []string  `json:"affectedLessons"`
}

// Alignment is the Flow Validator's verdict. Evaluated is false until a validator pass has
// produced it, which lets routing tell "not scored yet" apart from "scored 0".
type Alignment struct {
	LessonTransitions []Transition `json:"lessonTransitions"`
	OverallScore      float64      `json:"overallScore"`
	Issues            []Issue      `json:"issues"`
	Evaluated         bool         `json:"evaluated"`
}

type Metadata struct {
	CurrentPhase Phase            `json:"currentPhase"`
	Iterations   int              `json:"iterations"`
	LastModified time.Time        `json:"lastModified"`
	Input        *GenerationInput `json:"input,omitempty"`
}

// State is the single document threaded through every workflow node of one run.
type State struct {
	Course       CourseInfo   `json:"course"`
	Modules      []Module     `json:"modules"`
	ConceptGraph ConceptGraph `json:"conceptGraph"`
	Alignment    Alignment    `json:"alignment"`
	Metadata     Metadata     `json:"metadata"`
}
