package ctxutil

import "context"

type runDataKey struct{}

// RunData identifies the generation run (and the node currently executing) a context belongs to.
type RunData struct {
	RunID     string
	Node      string
	RequestID string
}

func WithRunData(ctx context.Context, rd *RunData) context.Context {
	return context.WithValue(Default(ctx), runDataKey{}, rd)
}

func GetRunData(ctx context.Context) *RunData {
	if ctx == nil {
		return nil
	}
	if rd, ok := ctx.Value(runDataKey{}).(*RunData); ok {
		return rd
	}
	return nil
}

// WithNode returns a child context whose RunData carries the given node name.
func WithNode(ctx context.Context, node string) context.Context {
	rd := GetRunData(ctx)
	next := &RunData{Node: node}
	if rd != nil {
		next.RunID = rd.RunID
		next.RequestID = rd.RequestID
	}
	return WithRunData(ctx, next)
}

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
