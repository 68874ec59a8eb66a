package events

import (
	"context"
	"errors"

	"echallan-service/internal/domain/anpr"
)

// Publisher delivers a plate event on a best-effort basis.
type Publisher interface {
	Publish(ctx context.Context, ev anpr.PlateEvent) error
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev anpr.PlateEvent) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
