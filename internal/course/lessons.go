package course

import (
	"strings"

	"github.com/google/uuid"
)

// InsertLesson splices l into m directly after the lesson with id afterID, or appends it when
// afterID is empty or unknown. The lesson gets a fresh id when it has none, and every lesson
// position in m is re-sequenced. It returns the inserted lesson's id.
func InsertLesson(m *Module, afterID string, l Lesson) string {
	if m == nil {
		return ""
	}
	if strings.TrimSpace(l.ID) == "" {
		l.ID = uuid.New().String()
	}
	pos := len(m.Lessons)
	if afterID = strings.TrimSpace(afterID); afterID != "" {
		for i := range m.Lessons {
			if m.Lessons[i].ID == afterID {
				pos = i + 1
				break
			}
		}
	}
	m.Lessons = append(m.Lessons, Lesson{})
	copy(m.Lessons[pos+1:], m.Lessons[pos:])
	m.Lessons[pos] = l
	ReindexLessons(m)
	return l.ID
}

// RemoveLesson deletes the lesson with the given id and re-sequences the rest.
func RemoveLesson(m *Module, id string) bool {
	if m == nil || id == "" {
		return false
	}
	for i := range m.Lessons {
		if m.Lessons[i].ID == id {
			m.Lessons = append(m.Lessons[:i], m.Lessons[i+1:]...)
			ReindexLessons(m)
			return true
		}
	}
	return false
}

func ReindexLessons(m *Module) {
	if m == nil {
		return
	}
	for i := range m.Lessons {
		m.Lessons[i].LessonIndex = i
	}
}

// ReindexModules sets every module's position to its slice index.
func ReindexModules(modules []Module) {
	for i := range modules {
		modules[i].ModuleIndex = i
	}
}
