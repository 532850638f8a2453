package testutil

import (
	"context"
	"testing"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/neurobridge-coursegen/internal/domain"
)

func SeedGenerationRun(tb testing.TB, ctx context.Context, tx *gorm.DB, topic, status string) *types.GenerationRun {
	tb.Helper()
	run := &types.GenerationRun{
		Topic:            topic,
		TargetDifficulty: "intermediate",
		Input:            datatypes.JSON([]byte(`{"topic":"` + topic + `"}`)),
		Status:           status,
		Stage:            status,
	}
	if err := tx.WithContext(ctx).Create(run).Error; err != nil {
		tb.Fatalf("seed generation run: %v", err)
	}
	return run
}
