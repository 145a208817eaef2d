package notify

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Multi delivers each event to all notifiers concurrently and returns the
// first error once every notifier has finished.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) error {
	var g errgroup.Group
	for _, n := range m {
		if n == nil {
			continue
		}
		g.Go(func() error {
			return n.Notify(ctx, e)
		})
	}
	return g.Wait()
}
