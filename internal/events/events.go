package events

import (
	"context"
	"fmt"

	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
)

// Publisher delivers ledger events after commit. A failed publish never
// undoes the write it reports.
type Publisher interface {
	Publish(ctx context.Context, evt models.ReservationEvent) error
}

type Nop struct{}

func (Nop) Publish(context.Context, models.ReservationEvent) error { return nil }

// Fanout sends each event to every sink and logs the ones that fail.
type Fanout struct {
	Sinks  []Publisher
	Logger *logger.Logger
}

func NewFanout(log *logger.Logger, sinks ...Publisher) *Fanout {
	return &Fanout{Sinks: sinks, Logger: log}
}

func (f *Fanout) Add(p Publisher) {
	f.Sinks = append(f.Sinks, p)
}

func (f *Fanout) Publish(ctx context.Context, evt models.ReservationEvent) error {
	var firstErr error
	for _, sink := range f.Sinks {
		if err := sink.Publish(ctx, evt); err != nil {
			if f.Logger != nil {
				f.Logger.Error("EVENTS", fmt.Sprintf("Publish %s for show %s failed: %v", evt.Type, evt.ShowID, err))
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Emit publishes and only logs failures; used right after a commit.
func Emit(ctx context.Context, p Publisher, log *logger.Logger, evt models.ReservationEvent) {
	if p == nil || len(evt.ReservationIDs) == 0 {
		return
	}
	if err := p.Publish(ctx, evt); err != nil && log != nil {
		log.Warn("EVENTS", fmt.Sprintf("Event %s not delivered: %v", evt.Type, err))
	}
}
