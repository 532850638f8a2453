package bus

import (
	"context"

	"github.com/yungbote/neurobridge-coursegen/internal/platform/envutil"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
	"github.com/yungbote/neurobridge-coursegen/internal/realtime"
)

// Bus carries SSE messages between processes so any instance can serve a run's event stream.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}

// NewSSEBus returns a Redis bus when REDIS_ADDR is set and an in-process bus otherwise.
func NewSSEBus(log *logger.Logger) (Bus, error) {
	if envutil.String("REDIS_ADDR", "") == "" {
		return NewLocalBus(), nil
	}
	return NewRedisBus(log)
}
