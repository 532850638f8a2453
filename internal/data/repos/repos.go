package repos

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
)

var ErrNotFound = errors.New("repos: not found")

// Repos bundles every repository the service layer uses.
type Repos struct {
	Runs        GenerationRunRepo
	Checkpoints GenerationCheckpointRepo
}

func New(db *gorm.DB, baseLog *logger.Logger) Repos {
	return Repos{
		Runs:        NewGenerationRunRepo(db, baseLog),
		Checkpoints: NewGenerationCheckpointRepo(db, baseLog),
	}
}
