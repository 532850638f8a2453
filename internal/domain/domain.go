package domain

import (
	"github.com/yungbote/neurobridge-coursegen/internal/domain/jobs"
)

const (
	GenerationStatusQueued    = jobs.GenerationStatusQueued
	GenerationStatusRunning   = jobs.GenerationStatusRunning
	GenerationStatusSucceeded = jobs.GenerationStatusSucceeded
	GenerationStatusFailed    = jobs.GenerationStatusFailed
	GenerationStatusCanceled  = jobs.GenerationStatusCanceled
)

var TerminalGenerationStatuses = jobs.TerminalGenerationStatuses

type GenerationRun = jobs.GenerationRun
type GenerationCheckpoint = jobs.GenerationCheckpoint

// Models lists every persisted type, in migration order.
func Models() []interface{} {
	return []interface{}{
		&GenerationRun{},
		&GenerationCheckpoint{},
	}
}
