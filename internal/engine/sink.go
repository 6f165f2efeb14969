package engine

import (
	"context"

	"github.com/roach88/tokenstream/internal/ir"
)

// Sink observes committed events. Publish is called synchronously after
// the operation commits, in seq order for that operation; a slow sink
// slows the caller.
type Sink interface {
	Publish(ctx context.Context, e ir.Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e ir.Event)

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, e ir.Event) {
	f(ctx, e)
}
