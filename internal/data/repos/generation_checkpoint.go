package repos

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/neurobridge-coursegen/internal/domain"
	"github.com/yungbote/neurobridge-coursegen/internal/pkg/dbctx"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
)

type GenerationCheckpointRepo interface {
	// Append stores cp with the next sequence number for its run.
	Append(dbc dbctx.Context, cp *types.GenerationCheckpoint) (*types.GenerationCheckpoint, error)
	ListByRun(dbc dbctx.Context, runID uuid.UUID) ([]*types.GenerationCheckpoint, error)
	Latest(dbc dbctx.Context, runID uuid.UUID) (*types.GenerationCheckpoint, error)
}

type generationCheckpointRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationCheckpointRepo(db *gorm.DB, baseLog *logger.Logger) GenerationCheckpointRepo {
	return &generationCheckpointRepo{
		db:  db,
		log: baseLog.With("repo", "GenerationCheckpointRepo"),
	}
}

func (r *generationCheckpointRepo) Append(dbc dbctx.Context, cp *types.GenerationCheckpoint) (*types.GenerationCheckpoint, error) {
	if cp == nil || cp.RunID == uuid.Nil {
		return nil, errors.New("checkpoint requires a run id")
	}
	err := dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
		var maxSeq int
		if err := txx.Model(&types.GenerationCheckpoint{}).
			Where("run_id = ?", cp.RunID).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}
		cp.Sequence = maxSeq + 1
		if cp.ID == uuid.Nil {
			cp.ID = uuid.New()
		}
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = time.Now().UTC()
		}
		return txx.Create(cp).Error
	})
	if err != nil {
		return nil, err
	}
	return cp, nil
}

func (r *generationCheckpointRepo) ListByRun(dbc dbctx.Context, runID uuid.UUID) ([]*types.GenerationCheckpoint, error) {
	var out []*types.GenerationCheckpoint
	if runID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("run_id = ?", runID).
		Order("sequence ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *generationCheckpointRepo) Latest(dbc dbctx.Context, runID uuid.UUID) (*types.GenerationCheckpoint, error) {
	var cp types.GenerationCheckpoint
	err := dbc.DB(r.db).
		Where("run_id = ?", runID).
		Order("sequence DESC").
		First(&cp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}
