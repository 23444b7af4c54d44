package notify

import (
	"context"

	"kasirtoko/backend/internal/domain"
)

// Notifier receives engine events. Emit must not block the caller for long
// and has no way to fail the operation that produced the event.
type Notifier interface {
	Emit(ctx context.Context, event domain.Event)
}

type Nop struct{}

func (Nop) Emit(context.Context, domain.Event) {}

type Func func(ctx context.Context, event domain.Event)

func (f Func) Emit(ctx context.Context, event domain.Event) {
	f(ctx, event)
}

// Fanout delivers every event to each notifier in order.
type Fanout []Notifier

func (f Fanout) Emit(ctx context.Context, event domain.Event) {
	for _, n := range f {
		if n == nil {
			continue
		}
		n.Emit(ctx, event)
	}
}

// OrNop returns n, or a no-op notifier when n is nil.
func OrNop(n Notifier) Notifier {
	if n == nil {
		return Nop{}
	}
	return n
}
