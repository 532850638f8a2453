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

type GenerationRunRepo interface {
	Create(dbc dbctx.Context, run *types.GenerationRun) (*types.GenerationRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.GenerationRun, error)
	List(dbc dbctx.Context, status string, limit int) ([]*types.GenerationRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error)
	// UpdateProgress only moves progress forward and never touches a finished run.
	UpdateProgress(dbc dbctx.Context, id uuid.UUID, stage string, progress int, message string) (bool, error)
	// FailInterrupted marks runs left running or queued by a previous process as failed.
	FailInterrupted(dbc dbctx.Context, reason string) (int64, error)
}

type generationRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationRunRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRunRepo {
	return &generationRunRepo{
		db:  db,
		log: baseLog.With("repo", "GenerationRunRepo"),
	}
}

func (r *generationRunRepo) Create(dbc dbctx.Context, run *types.GenerationRun) (*types.GenerationRun, error) {
	if run == nil {
		return nil, errors.New("nil generation run")
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	if run.Status == "" {
		run.Status = types.GenerationStatusQueued
	}
	if run.Stage == "" {
		run.Stage = run.Status
	}
	if err := dbc.DB(r.db).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *generationRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.GenerationRun, error) {
	if id == uuid.Nil {
		return nil, ErrNotFound
	}
	var run types.GenerationRun
	err := dbc.DB(r.db).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *generationRunRepo) List(dbc dbctx.Context, status string, limit int) ([]*types.GenerationRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	// The state column can be large; list views only need the summary fields.
	q := dbc.DB(r.db).Omit("state").Order("created_at DESC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []*types.GenerationRun
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *generationRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).
		Model(&types.GenerationRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *generationRunRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}

	q := dbc.DB(r.db).
		Model(&types.GenerationRun{}).
		Where("id = ?", id)
	if len(disallowedStatuses) == 1 {
		q = q.Where("status <> ?", disallowedStatuses[0])
	} else if len(disallowedStatuses) > 1 {
		q = q.Where("status NOT IN ?", disallowedStatuses)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *generationRunRepo) UpdateProgress(dbc dbctx.Context, id uuid.UUID, stage string, progress int, message string) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	res := dbc.DB(r.db).
		Model(&types.GenerationRun{}).
		Where("id = ? AND progress <= ? AND status NOT IN ?", id, progress, types.TerminalGenerationStatuses).
		Updates(map[string]interface{}{
			"stage":      stage,
			"progress":   progress,
			"message":    message,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *generationRunRepo) FailInterrupted(dbc dbctx.Context, reason string) (int64, error) {
	now := time.Now().UTC()
	res := dbc.DB(r.db).
		Model(&types.GenerationRun{}).
		Where("status IN ?", []string{types.GenerationStatusQueued, types.GenerationStatusRunning}).
		Updates(map[string]interface{}{
			"status":      types.GenerationStatusFailed,
			"stage":       types.GenerationStatusFailed,
			"error":       reason,
			"finished_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		r.log.Warn("Marked interrupted generation runs as failed", "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}
