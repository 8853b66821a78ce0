// Package notify delivers customer entry events to external systems.
package notify

import (
	"context"
	"errors"
	"log"

	"github.com/ayusman/retailsight/internal/tracking"
)

// Sink receives crossing events. Delivery reliability is up to each sink;
// the caller logs a failed Publish and moves on.
type Sink interface {
	Publish(ctx context.Context, ev tracking.CrossingEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev tracking.CrossingEvent) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, ev tracking.CrossingEvent) error {
	return f(ctx, ev)
}

// Multi fans an event out to every sink. Each sink gets the event even when
// an earlier one fails; the failures are joined.
type Multi []Sink

// Publish delivers ev to every sink in order.
func (m Multi) Publish(ctx context.Context, ev tracking.CrossingEvent) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Logger is a sink that logs every entry.
var Logger = SinkFunc(func(_ context.Context, ev tracking.CrossingEvent) error {
	log.Printf("[notify] Customer entered: identity %d, total %d", ev.IdentityID, ev.Total)
	return nil
})
