package workflow

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/neurobridge-coursegen/internal/course"
)

// ProgressEvent is one progress report for a run. Progress never decreases within a run and
// the final event of a successful run is 100.
type ProgressEvent struct {
	Phase        course.Phase `json:"phase"`
	PhaseName    string       `json:"phaseName"`
	Summary      string       `json:"summary"`
	Progress     int          `json:"progress"`
	TotalModules int          `json:"totalModules,omitempty"`
	TotalLessons int          `json:"totalLessons,omitempty"`
}

type ProgressFunc func(ProgressEvent)

type band struct{ start, end int }

var phaseBands = map[course.Phase]band{
	course.PhaseStrategizing: {0, 10},
	course.PhaseArchitecting: {10, 35},
	course.PhaseMapping:      {35, 40},
	course.PhaseValidating:   {40, 50},
	course.PhaseRefining:     {50, 60},
	course.PhaseGenerating:   {60, 99},
}

type progressReporter struct {
	report      ProgressFunc
	minInterval time.Duration

	mu           sync.Mutex
	phase        course.Phase
	lastPct      int
	lastMsg      string
	lastAt       time.Time
	totalModules int
	totalLessons int
}

func newProgressReporter(report ProgressFunc, minInterval time.Duration) *progressReporter {
	return &progressReporter{report: report, minInterval: minInterval}
}

// SetTotals records the course size carried on subsequent events.
func (p *progressReporter) SetTotals(s *course.State) {
	if p == nil || s == nil {
		return
	}
	p.mu.Lock()
	p.totalModules = len(s.Modules)
	p.totalLessons = s.LessonCount()
	p.mu.Unlock()
}

// Enter reports the start of a phase at the bottom of its band.
func (p *progressReporter) Enter(phase course.Phase, msg string) {
	b := phaseBands[phase]
	p.emit(phase, b.start, msg, true)
}

// Leave reports the end of a phase at the top of its band.
func (p *progressReporter) Leave(phase course.Phase, msg string) {
	b := phaseBands[phase]
	p.emit(phase, b.end, msg, true)
}

// UpdateRange places done/total units proportionally inside the phase's band. These updates
// are throttled.
func (p *progressReporter) UpdateRange(phase course.Phase, done, total int, msg string) {
	b := phaseBands[phase]
	pct := b.start
	if total > 0 {
		if done < 0 {
			done = 0
		}
		if done > total {
			done = total
		}
		pct = b.start + int(math.Round(float64(done)/float64(total)*float64(b.end-b.start)))
	}
	p.emit(phase, pct, msg, false)
}

// Done emits the terminal 100% event.
func (p *progressReporter) Done(msg string) {
	if p == nil || p.report == nil {
		return
	}
	p.mu.Lock()
	p.phase = course.PhaseComplete
	p.lastPct = 100
	p.lastMsg = msg
	p.lastAt = time.Now()
	ev := p.eventLocked(course.PhaseComplete, 100, msg)
	p.mu.Unlock()
	p.report(ev)
}

func (p *progressReporter) emit(phase course.Phase, pct int, msg string, force bool) {
	if p == nil || p.report == nil {
		return
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 99 {
		pct = 99
	}
	now := time.Now()
	p.mu.Lock()
	if pct < p.lastPct {
		pct = p.lastPct
	}
	if strings.TrimSpace(msg) == "" {
		msg = p.lastMsg
	}
	same := phase == p.phase && pct == p.lastPct && msg == p.lastMsg
	if !p.lastAt.IsZero() && (same || (!force && now.Sub(p.lastAt) < p.minInterval && phase == p.phase)) {
		p.mu.Unlock()
		return
	}
	p.phase = phase
	p.lastPct = pct
	p.lastMsg = msg
	p.lastAt = now
	ev := p.eventLocked(phase, pct, msg)
	p.mu.Unlock()
	p.report(ev)
}

func (p *progressReporter) eventLocked(phase course.Phase, pct int, msg string) ProgressEvent {
	return ProgressEvent{
		Phase:        phase,
		PhaseName:    phase.DisplayName(),
		Summary:      msg,
		Progress:     pct,
		TotalModules: p.totalModules,
		TotalLessons: p.totalLessons,
	}
}
