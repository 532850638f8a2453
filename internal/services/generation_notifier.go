package services

import (
	"context"

	types "github.com/yungbote/neurobridge-coursegen/internal/domain"
	"github.com/yungbote/neurobridge-coursegen/internal/realtime"
	"github.com/yungbote/neurobridge-coursegen/internal/realtime/bus"
	"github.com/yungbote/neurobridge-coursegen/internal/workflow"
)

type SSEEmitter interface {
	Emit(ctx context.Context, msg realtime.SSEMessage)
}

type HubEmitter struct{ Hub *realtime.SSEHub }

func (e *HubEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	if e == nil || e.Hub == nil {
		return
	}
	e.Hub.Broadcast(msg)
}

type BusEmitter struct{ Bus bus.Bus }

func (e *BusEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	if e == nil || e.Bus == nil {
		return
	}
	_ = e.Bus.Publish(ctx, msg)
}

// GenerationNotifier publishes run lifecycle events on the run's channel.
type GenerationNotifier interface {
	Created(ctx context.Context, run *types.GenerationRun)
	Progress(ctx context.Context, run *types.GenerationRun, ev workflow.ProgressEvent)
	Failed(ctx context.Context, run *types.GenerationRun, node string, errorMessage string)
	Canceled(ctx context.Context, run *types.GenerationRun)
	Done(ctx context.Context, run *types.GenerationRun)
}

type generationNotifier struct {
	emit SSEEmitter
}

func NewGenerationNotifier(emit SSEEmitter) GenerationNotifier {
	return &generationNotifier{emit: emit}
}

func (n *generationNotifier) send(ctx context.Context, run *types.GenerationRun, ev realtime.SSEEvent, data map[string]any) {
	if n == nil || n.emit == nil || run == nil {
		return
	}
	data["run_id"] = run.ID
	n.emit.Emit(ctx, realtime.SSEMessage{Channel: run.ID.String(), Event: ev, Data: data})
}

func (n *generationNotifier) Created(ctx context.Context, run *types.GenerationRun) {
	n.send(ctx, run, realtime.SSEEventGenerationCreated, map[string]any{
		"topic":  run.Topic,
		"status": run.Status,
	})
}

func (n *generationNotifier) Progress(ctx context.Context, run *types.GenerationRun, ev workflow.ProgressEvent) {
	n.send(ctx, run, realtime.SSEEventGenerationProgress, map[string]any{
		"phase":         ev.Phase,
		"phase_name":    ev.PhaseName,
		"progress":      ev.Progress,
		"message":       ev.Summary,
		"total_modules": ev.TotalModules,
		"total_lessons": ev.TotalLessons,
	})
}

func (n *generationNotifier) Failed(ctx context.Context, run *types.GenerationRun, node string, errorMessage string) {
	n.send(ctx, run, realtime.SSEEventGenerationFailed, map[string]any{
		"node":  node,
		"error": errorMessage,
	})
}

func (n *generationNotifier) Canceled(ctx context.Context, run *types.GenerationRun) {
	n.send(ctx, run, realtime.SSEEventGenerationCanceled, map[string]any{})
}

func (n *generationNotifier) Done(ctx context.Context, run *types.GenerationRun) {
	n.send(ctx, run, realtime.SSEEventGenerationDone, map[string]any{
		"progress":        100,
		"module_count":    run.ModuleCount,
		"lesson_count":    run.LessonCount,
		"alignment_score": run.AlignmentScore,
		"missing_content": run.MissingContent,
	})
}
