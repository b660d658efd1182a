package notifier

import (
	"context"
	"errors"

	"github.com/venkytv/drive-events/pkg/cycle"
)

// Notifier forwards derived events to downstream alert renderers.
type Notifier interface {
	Emit(ctx context.Context, em cycle.Emission) error
}

// Nop is a no-op notifier useful in tests.
type Nop struct{}

func (Nop) Emit(_ context.Context, _ cycle.Emission) error { return nil }

// Multi fans an emission out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Emit(ctx context.Context, em cycle.Emission) error {
	var errs []error
	for _, n := range m {
		if err := n.Emit(ctx, em); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
