package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// GenerationCheckpoint is an append-only record of the state after each workflow node.
// Checkpoints are for inspection; a failed run is not resumed from them.
type GenerationCheckpoint struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RunID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_generation_checkpoint_run_seq,priority:1" json:"run_id"`
	Sequence  int            `gorm:"column:sequence;not null;index:idx_generation_checkpoint_run_seq,priority:2" json:"sequence"`
	Node      string         `gorm:"column:node;not null" json:"node"`
	Phase     string         `gorm:"column:phase;not null" json:"phase"`
	State     datatypes.JSON `gorm:"column:state;type:jsonb" json:"state"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
}

func (GenerationCheckpoint) TableName() string { return "generation_checkpoint" }
