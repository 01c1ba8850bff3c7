// Package subscriptions materializes the enriched contract history into
// homogeneous fixed-fee billing periods.
package subscriptions

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/enerflux/voltcore/pkg/models"
	"github.com/enerflux/voltcore/pkg/perimeter"
	"github.com/enerflux/voltcore/pkg/timeutil"
	"github.com/enerflux/voltcore/pkg/tracing"
)

// Builder turns subscription-impacting events into [start, end) periods with
// constant power and tariff formula.
type Builder struct {
	logger ectologger.Logger
}

// NewBuilder creates a subscription-period builder.
func NewBuilder(logger ectologger.Logger) *Builder {
	return &Builder{logger: logger}
}

// Build consumes the enriched history (break points detected, billing events
// injected) and returns the closed subscription periods. For a fixed contract
// the periods tile the time axis: each End equals the next Start. Zero-day
// periods, produced when several qualifying events share a calendar date, are
// dropped; the trailing open-ended period is not yet billable and is dropped
// too.
func (b *Builder) Build(ctx context.Context, history []models.ContractEvent) []models.SubscriptionPeriod {
	ctx, span := tracing.StartSpan(ctx, "subscriptions.Builder.Build")
	defer span.End()

	events := make([]models.ContractEvent, 0, len(history))
	for i := range history {
		if history[i].ImpactsSubscription && history[i].ContractRef != "" {
			events = append(events, history[i])
		}
	}
	perimeter.SortEvents(events)

	var dropped int
	periods := make([]models.SubscriptionPeriod, 0, len(events))
	for i := range events {
		e := &events[i]
		if i+1 >= len(events) || events[i+1].ContractRef != e.ContractRef {
			continue // open-ended trailing period
		}
		end := events[i+1].Timestamp

		days := timeutil.DaysBetweenDates(e.Timestamp, end)
		if days == 0 {
			dropped++
			continue
		}

		periods = append(periods, models.SubscriptionPeriod{
			ContractRef:     e.ContractRef,
			DeliveryPointID: e.DeliveryPointID,
			MonthLabel:      monthLabel(e.Timestamp),
			StartLabel:      dateLabel(e.Timestamp),
			EndLabel:        dateLabel(end),
			TariffFormula:   e.TariffFormula,
			SubscribedPower: e.SubscribedPower,
			DurationDays:    days,
			Start:           e.Timestamp,
			End:             end,
		})
	}

	if dropped > 0 {
		b.logger.WithContext(ctx).WithField("dropped", dropped).Debug("Collapsed zero-day subscription periods")
	}
	return periods
}
