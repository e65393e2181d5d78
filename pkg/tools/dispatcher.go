package tools

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// ToolFunc defines a function executed asynchronously.
type ToolFunc func(ctx context.Context) error

// Dispatch runs the provided tool in a separate goroutine. Fire-and-forget:
// the error is logged under name. The returned channel closes when the tool
// has finished.
func Dispatch(ctx context.Context, name string, fn ToolFunc) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		started := time.Now()
		if err := fn(ctx); err != nil {
			log.Error("tool failed", "tool", name, "err", err, "took", time.Since(started))
			return
		}
		log.Debug("tool finished", "tool", name, "took", time.Since(started))
	}()
	return done
}
