package perimeter

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/enerflux/voltcore/pkg/models"
	"github.com/enerflux/voltcore/pkg/timeutil"
	"github.com/enerflux/voltcore/pkg/tracing"
)

// Injector inserts one synthetic FACTURATION event per contract per active
// calendar month, so monthly billing cutoffs exist even though real contract
// events occur at arbitrary dates.
type Injector struct {
	logger ectologger.Logger
	loc    *time.Location
}

// NewInjector creates a synthetic-event injector operating in Europe/Paris.
func NewInjector(logger ectologger.Logger) *Injector {
	return &Injector{logger: logger, loc: timeutil.MustLoadParis()}
}

type activityWindow struct {
	contractRef     string
	deliveryPointID string
	start           time.Time
	end             time.Time
}

// Inject returns a new table: the input events plus the synthetic billing
// points, re-sorted, with contractual fields forward-filled onto each
// synthetic row. The reference instant replaces the wall clock as the default
// cutoff for contracts that have no termination event, which keeps the stage
// deterministic.
func (in *Injector) Inject(ctx context.Context, history []models.ContractEvent, reference time.Time) []models.ContractEvent {
	_, span := tracing.StartSpan(ctx, "perimeter.Injector.Inject")
	defer span.End()

	windows := in.activityWindows(history, reference)
	if len(windows) == 0 {
		out := make([]models.ContractEvent, len(history))
		copy(out, history)
		SortEvents(out)
		return out
	}

	globalStart, globalEnd := windows[0].start, windows[0].end
	for _, w := range windows[1:] {
		if w.start.Before(globalStart) {
			globalStart = w.start
		}
		if w.end.After(globalEnd) {
			globalEnd = w.end
		}
	}
	// The extra day guarantees the final boundary month makes it into the grid.
	months := timeutil.MonthStartsBetween(globalStart, globalEnd.AddDate(0, 0, 1), in.loc)

	out := make([]models.ContractEvent, 0, len(history)+len(windows)*len(months)/2)
	out = append(out, history...)

	for _, w := range windows {
		for _, month := range months {
			// Date-only comparison: the entry month is excluded (the real
			// entry event anchors the first period), the exit month included.
			// Comparing dates rather than instants keeps the boundary month
			// when cutoff and billing-point timestamps differ only by
			// time of day.
			if !timeutil.DateAfter(month, w.start) || !timeutil.DateOnOrBefore(month, w.end) {
				continue
			}
			out = append(out, models.ContractEvent{
				ID:                  uuid.New().String(),
				ContractRef:         w.contractRef,
				DeliveryPointID:     w.deliveryPointID,
				Timestamp:           month,
				Trigger:             models.TriggerFacturation,
				Kind:                models.EventKindSynthetic,
				Source:              models.SourceBillingSynthesis,
				ChangeSummary:       "Facturation mensuelle",
				ImpactsSubscription: true,
				ImpactsEnergy:       true,
			})
		}
	}

	SortEvents(out)
	propagateContractualFields(out)
	return out
}

// activityWindows computes each contract's [entry, exit] interval. Contracts
// with no exit event default to the first instant of the reference month;
// contracts entering after their computed cutoff are discarded for this run.
func (in *Injector) activityWindows(history []models.ContractEvent, reference time.Time) []activityWindow {
	defaultEnd := timeutil.StartOfMonth(reference.In(in.loc), in.loc)

	byContract := make(map[string]*activityWindow)
	order := make([]string, 0)
	for i := range history {
		e := &history[i]
		w, ok := byContract[e.ContractRef]
		if !ok {
			w = &activityWindow{contractRef: e.ContractRef, deliveryPointID: e.DeliveryPointID}
			byContract[e.ContractRef] = w
			order = append(order, e.ContractRef)
		}
		if e.Trigger.IsServiceStart() {
			if w.start.IsZero() || e.Timestamp.Before(w.start) {
				w.start = e.Timestamp
			}
		}
		if e.Trigger.IsServiceEnd() {
			if w.end.IsZero() || e.Timestamp.After(w.end) {
				w.end = e.Timestamp
			}
		}
	}

	windows := make([]activityWindow, 0, len(byContract))
	for _, ref := range order {
		w := byContract[ref]
		if w.start.IsZero() {
			// No entry event on record: nothing to anchor periods on.
			continue
		}
		if w.end.IsZero() {
			w.end = defaultEnd
		}
		if w.start.After(w.end) {
			continue
		}
		windows = append(windows, *w)
	}
	return windows
}
