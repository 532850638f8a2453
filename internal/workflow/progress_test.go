package workflow

import (
	"testing"
	"time"

	"github.com/yungbote/neurobridge-coursegen/internal/course"
)

func TestProgressReporterIsMonotonic(t *testing.T) {
	var events []ProgressEvent
	p := newProgressReporter(func(ev ProgressEvent) { events = append(events, ev) }, 0)

	p.Enter(course.PhaseStrategizing, "start")
	p.Leave(course.PhaseStrategizing, "planned")
	p.Enter(course.PhaseRefining, "refine")
	p.Leave(course.PhaseRefining, "refined")
	// A second validation pass sits lower in the bands than refinement.
	p.Enter(course.PhaseValidating, "validate again")
	p.UpdateRange(course.PhaseGenerating, 1, 2, "half")
	p.Done("done")

	last := -1
	for _, ev := range events {
		if ev.Progress < last {
			t.Fatalf("progress decreased: %+v", events)
		}
		last = ev.Progress
	}
	if last != 100 || events[len(events)-1].Phase != course.PhaseComplete {
		t.Fatalf("final event=%+v", events[len(events)-1])
	}
	for _, ev := range events[:len(events)-1] {
		if ev.Progress > 99 {
			t.Fatalf("non-final event reached 100: %+v", ev)
		}
	}
	if events[4].Progress != 60 || events[4].PhaseName != "Flow Validation" {
		t.Fatalf("re-entered validation should hold at 60: %+v", events[4])
	}
	if events[5].Progress != 80 {
		t.Fatalf("half of content band=%d want 80", events[5].Progress)
	}
}

func TestProgressReporterThrottlesUnitUpdates(t *testing.T) {
	var n int
	p := newProgressReporter(func(ProgressEvent) { n++ }, time.Hour)
	p.Enter(course.PhaseArchitecting, "start")
	p.UpdateRange(course.PhaseArchitecting, 1, 4, "one")
	p.UpdateRange(course.PhaseArchitecting, 2, 4, "two")
	p.Leave(course.PhaseArchitecting, "end")
	if n != 2 {
		t.Fatalf("events=%d want 2 (enter and leave)", n)
	}
}

func TestProgressReporterCarriesTotals(t *testing.T) {
	var got ProgressEvent
	p := newProgressReporter(func(ev ProgressEvent) { got = ev }, 0)
	s := course.DefaultState()
	s.Modules = []course.Module{{Lessons: make([]course.Lesson, 3)}, {Lessons: make([]course.Lesson, 2)}}
	p.SetTotals(s)
	p.Enter(course.PhaseMapping, "map")
	if got.TotalModules != 2 || got.TotalLessons != 5 {
		t.Fatalf("event=%+v", got)
	}
}

func TestNilProgressReporterIsSafe(t *testing.T) {
	var p *progressReporter
	p.Enter(course.PhaseMapping, "x")
	p.Done("y")
	newProgressReporter(nil, 0).Leave(course.PhaseMapping, "z")
}
