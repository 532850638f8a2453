package course

import (
	"sync"
	"time"
)

// Backup holds the last state a reduction accepted as valid. One Backup belongs to one run.
type Backup struct {
	mu    sync.Mutex
	state *State
}

func NewBackup() *Backup { return &Backup{} }

// Store keeps a deep copy of s when s is non-empty.
func (b *Backup) Store(s *State) {
	if b == nil || s.IsEmpty() {
		return
	}
	c := s.Clone()
	b.mu.Lock()
	b.state = c
	b.mu.Unlock()
}

// Load returns a deep copy of the stored state, or nil.
func (b *Backup) Load() *State {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == nil {
		return nil
	}
	return b.state.Clone()
}

// Reduce merges upd into prev without a last-known-good cache.
func Reduce(prev *State, upd *Update) *State {
	return ReduceWithBackup(prev, upd, nil)
}

// ReduceWithBackup produces the next state from prev and a partial update. It never panics:
// an empty or missing prev with no update yields the backup (or the default state), a missing
// update otherwise returns prev unchanged, and a merge that comes out empty is replaced by the
// backup.
func ReduceWithBackup(prev *State, upd *Update, backup *Backup) (out *State) {
	defer func() {
		if r := recover(); r != nil {
			out = fallback(backup)
		}
	}()

	if upd.IsEmpty() {
		if prev.IsEmpty() {
			return fallback(backup)
		}
		return Normalize(prev)
	}

	var next *State
	if prev.IsEmpty() {
		next = DefaultState()
		if prev != nil && prev.Metadata.Input != nil {
			in := copyInput(*prev.Metadata.Input)
			next.Metadata.Input = &in
		}
	} else {
		next = prev.Clone()
	}
	merge(next, upd)
	Normalize(next)

	if next.IsEmpty() {
		if b := backup.Load(); b != nil {
			return b
		}
		return next
	}
	backup.Store(next)
	return next
}

func fallback(backup *Backup) *State {
	if b := backup.Load(); b != nil {
		return b
	}
	return DefaultState()
}

func merge(s *State, u *Update) {
	if u.Course != nil {
		mergeCourse(&s.Course, u.Course)
	}
	if u.Modules != nil {
		s.Modules = CloneModules(u.Modules)
	}
	if u.ConceptGraph != nil {
		if len(u.ConceptGraph.Concepts) > 0 {
			s.ConceptGraph.Concepts = u.ConceptGraph.Clone().Concepts
		}
		if len(u.ConceptGraph.Dependencies) > 0 {
			s.ConceptGraph.Dependencies = append([]Dependency(nil), u.ConceptGraph.Dependencies...)
		}
	}
	if u.Alignment != nil {
		a := cloneAlignment(*u.Alignment)
		s.Alignment.OverallScore = a.OverallScore
		if a.LessonTransitions != nil {
			s.Alignment.LessonTransitions = a.LessonTransitions
		}
		if a.Issues != nil {
			s.Alignment.Issues = a.Issues
		}
		s.Alignment.Evaluated = s.Alignment.Evaluated || a.Evaluated
	}
	if u.Metadata != nil {
		mergeMetadata(&s.Metadata, u.Metadata)
	} else {
		s.Metadata.LastModified = time.Now().UTC()
	}
}

func mergeCourse(dst *CourseInfo, src *CourseInfo) {
	if src.Title != "" {
		dst.Title = src.Title
	}
	if src.Description != "" {
		dst.Description = src.Description
	}
	if src.Difficulty != "" {
		dst.Difficulty = src.Difficulty
	}
	if src.EstimatedHours != 0 {
		dst.EstimatedHours = src.EstimatedHours
	}
	if src.LearningObjectives != nil {
		dst.LearningObjectives = cloneStrings(src.LearningObjectives)
	}
	if src.Prerequisites != nil {
		dst.Prerequisites = cloneStrings(src.Prerequisites)
	}
}

func mergeMetadata(dst *Metadata, src *MetadataPatch) {
	if src.CurrentPhase != "" {
		dst.CurrentPhase = src.CurrentPhase
	}
	if src.Iterations != nil && *src.Iterations > dst.Iterations {
		dst.Iterations = *src.Iterations
	}
	if src.LastModified != nil && !src.LastModified.IsZero() {
		dst.LastModified = *src.LastModified
	} else {
		dst.LastModified = time.Now().UTC()
	}
	if dst.Input == nil && src.Input != nil {
		in := copyInput(*src.Input)
		dst.Input = &in
	}
}
