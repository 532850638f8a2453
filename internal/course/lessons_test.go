package course

import "testing"

func lessonIDs(m Module) []string {
	out := make([]string, len(m.Lessons))
	for i, l := range m.Lessons {
		out[i] = l.ID
	}
	return out
}

func abcModule() Module {
	m := Module{ID: "m", Lessons: []Lesson{{ID: "A"}, {ID: "B"}, {ID: "C"}}}
	ReindexLessons(&m)
	return m
}

func TestInsertLessonAfterID(t *testing.T) {
	m := abcModule()
	InsertLesson(&m, "A", Lesson{ID: "new"})
	got := lessonIDs(m)
	want := []string{"A", "new", "B", "C"}
	for i := range want {
		if got[i] != want[i] || m.Lessons[i].LessonIndex != i {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestInsertLessonAppendsWhenUnknown(t *testing.T) {
	m := abcModule()
	id := InsertLesson(&m, "missing", Lesson{Title: "tail"})
	if id == "" || m.Lessons[3].ID != id || m.Lessons[3].LessonIndex != 3 {
		t.Fatalf("expected append with fresh id, got %+v", m.Lessons)
	}
}

func TestRemoveLessonReindexes(t *testing.T) {
	m := abcModule()
	if !RemoveLesson(&m, "B") {
		t.Fatalf("remove failed")
	}
	if len(m.Lessons) != 2 || m.Lessons[0].ID != "A" || m.Lessons[1].ID != "C" {
		t.Fatalf("unexpected lessons %+v", m.Lessons)
	}
	if m.Lessons[0].LessonIndex != 0 || m.Lessons[1].LessonIndex != 1 {
		t.Fatalf("indexes not resequenced: %+v", m.Lessons)
	}
	if RemoveLesson(&m, "B") {
		t.Fatalf("second remove should report false")
	}
}

func TestFindLessonAndModuleIn(t *testing.T) {
	mods := []Module{
		{ID: "m1", Lessons: []Lesson{{ID: "a"}, {ID: "b"}}},
		{ID: "m2", Lessons: []Lesson{{ID: "c"}}},
	}
	if mi, li := FindLessonIn(mods, " c "); mi != 1 || li != 0 {
		t.Fatalf("FindLessonIn(c)=%d,%d", mi, li)
	}
	if mi, li := FindLessonIn(mods, ""); mi != -1 || li != -1 {
		t.Fatalf("empty id should not match, got %d,%d", mi, li)
	}
	if got := FindModuleIn(mods, "m2"); got != 1 {
		t.Fatalf("FindModuleIn(m2)=%d", got)
	}
	if got := FindModuleIn(mods, "missing"); got != -1 {
		t.Fatalf("FindModuleIn(missing)=%d", got)
	}
	s := &State{Modules: mods}
	if mi, li := s.FindLesson("b"); mi != 0 || li != 1 {
		t.Fatalf("State.FindLesson(b)=%d,%d", mi, li)
	}
}
