// Package notify fans newly seen records out to live subscribers.
package notify

import (
	"context"

	"github.com/DeafMist/fire-radar/internal/models"
)

// Notifier receives every record that was absent from the previous cache generation.
// Delivery is fire-and-forget: implementations log their own failures.
type Notifier interface {
	Notify(ctx context.Context, rec models.NewsRecord)
}

// Func adapts a plain function to Notifier.
type Func func(ctx context.Context, rec models.NewsRecord)

func (f Func) Notify(ctx context.Context, rec models.NewsRecord) { f(ctx, rec) }

// Multi calls every sink in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, rec models.NewsRecord) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, rec)
		}
	}
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, models.NewsRecord) {}
