package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	GenerationStatusQueued    = "queued"
	GenerationStatusRunning   = "running"
	GenerationStatusSucceeded = "succeeded"
	GenerationStatusFailed    = "failed"
	GenerationStatusCanceled  = "canceled"
)

// TerminalGenerationStatuses are statuses a run never leaves.
var TerminalGenerationStatuses = []string{GenerationStatusSucceeded, GenerationStatusFailed, GenerationStatusCanceled}

// GenerationRun is one course generation request and, once finished, its final course state.
type GenerationRun struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Topic            string         `gorm:"column:topic;not null" json:"topic"`
	TargetDifficulty string         `gorm:"column:target_difficulty;not null" json:"target_difficulty"`
	Input            datatypes.JSON `gorm:"column:input;type:jsonb" json:"input"`
	Status           string         `gorm:"column:status;not null;index" json:"status"`
	Stage            string         `gorm:"column:stage;not null" json:"stage"`
	Progress         int            `gorm:"column:progress;not null;default:0" json:"progress"`
	Message          string         `gorm:"column:message;type:text" json:"message,omitempty"`
	Error            string         `gorm:"column:error;type:text" json:"error,omitempty"`
	FailedNode       string         `gorm:"column:failed_node" json:"failed_node,omitempty"`
	Iterations       int            `gorm:"column:iterations;not null;default:0" json:"iterations"`
	AlignmentScore   float64        `gorm:"column:alignment_score;not null;default:0" json:"alignment_score"`
	ModuleCount      int            `gorm:"column:module_count;not null;default:0" json:"module_count"`
	LessonCount      int            `gorm:"column:lesson_count;not null;default:0" json:"lesson_count"`
	MissingContent   int            `gorm:"column:missing_content;not null;default:0" json:"missing_content"`
	State            datatypes.JSON `gorm:"column:state;type:jsonb" json:"state,omitempty"`
	StartedAt        *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt       *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;index" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (GenerationRun) TableName() string { return "generation_run" }

func (r *GenerationRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (r *GenerationRun) Terminal() bool {
	if r == nil {
		return false
	}
	for _, s := range TerminalGenerationStatuses {
		if r.Status == s {
			return true
		}
	}
	return false
}
