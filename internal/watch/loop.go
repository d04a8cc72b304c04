package watch

import (
	"context"
)

// Loop runs fn once per batch until ctx is cancelled or the watcher stops.
// Errors from fn are logged and do not end the loop; runs never overlap.
func Loop(ctx context.Context, w *Watcher, fn func(ctx context.Context, batch []Event) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case batch, ok := <-w.Batches():
			if !ok {
				return nil
			}
			w.config.Logger.Printf("Processing %d change(s)", len(batch))
			if err := fn(ctx, batch); err != nil {
				w.config.Logger.Printf("Run after change failed: %v", err)
			}

		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			w.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}
