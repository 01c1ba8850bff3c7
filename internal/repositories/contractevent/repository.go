// Package contractevent persists the raw contract event history staged from
// the C15 flux.
package contractevent

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/enerflux/voltcore/pkg/database"
	"github.com/enerflux/voltcore/pkg/models"
	"github.com/enerflux/voltcore/pkg/tracing"
)

// Repository handles contract event persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new contract event repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// eventRow is the wide table shape: the before/after snapshots are flattened
// into one column per register per side.
type eventRow struct {
	ID              string             `db:"id"`
	ContractRef     string             `db:"contract_ref"`
	DeliveryPointID string             `db:"delivery_point_id"`
	EventAt         time.Time          `db:"event_at"`
	TriggerCode     models.TriggerCode `db:"trigger_code"`
	EventKind       models.EventKind   `db:"event_kind"`
	Source          string             `db:"source"`

	CustomerSegment string  `db:"customer_segment"`
	ContractState   string  `db:"contract_state"`
	MeterSerial     string  `db:"meter_serial"`
	SubscribedPower float64 `db:"subscribed_power"`
	TariffFormula   string  `db:"tariff_formula"`

	BeforeReadAt     *time.Time `db:"before_read_at"`
	BeforeCalendarID *string    `db:"before_calendar_id"`
	BeforeBase       *float64   `db:"before_base"`
	BeforeHP         *float64   `db:"before_hp"`
	BeforeHC         *float64   `db:"before_hc"`
	BeforeHPH        *float64   `db:"before_hph"`
	BeforeHCH        *float64   `db:"before_hch"`
	BeforeHPB        *float64   `db:"before_hpb"`
	BeforeHCB        *float64   `db:"before_hcb"`

	AfterReadAt     *time.Time `db:"after_read_at"`
	AfterCalendarID *string    `db:"after_calendar_id"`
	AfterBase       *float64   `db:"after_base"`
	AfterHP         *float64   `db:"after_hp"`
	AfterHC         *float64   `db:"after_hc"`
	AfterHPH        *float64   `db:"after_hph"`
	AfterHCH        *float64   `db:"after_hch"`
	AfterHPB        *float64   `db:"after_hpb"`
	AfterHCB        *float64   `db:"after_hcb"`

	ImpactsSubscription bool   `db:"impacts_subscription"`
	ImpactsEnergy       bool   `db:"impacts_energy"`
	ChangeSummary       string `db:"change_summary"`
}

var eventColumns = []string{
	"id", "contract_ref", "delivery_point_id", "event_at", "trigger_code", "event_kind", "source",
	"customer_segment", "contract_state", "meter_serial", "subscribed_power", "tariff_formula",
	"before_read_at", "before_calendar_id", "before_base", "before_hp", "before_hc", "before_hph", "before_hch", "before_hpb", "before_hcb",
	"after_read_at", "after_calendar_id", "after_base", "after_hp", "after_hc", "after_hph", "after_hch", "after_hpb", "after_hcb",
	"impacts_subscription", "impacts_energy", "change_summary",
}

func toRow(e *models.ContractEvent) eventRow {
	row := eventRow{
		ID:                  e.ID,
		ContractRef:         e.ContractRef,
		DeliveryPointID:     e.DeliveryPointID,
		EventAt:             e.Timestamp,
		TriggerCode:         e.Trigger,
		EventKind:           e.Kind,
		Source:              e.Source,
		CustomerSegment:     e.CustomerSegment,
		ContractState:       e.ContractState,
		MeterSerial:         e.MeterSerial,
		SubscribedPower:     e.SubscribedPower,
		TariffFormula:       e.TariffFormula,
		ImpactsSubscription: e.ImpactsSubscription,
		ImpactsEnergy:       e.ImpactsEnergy,
		ChangeSummary:       e.ChangeSummary,
	}
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	if s := e.Before; s != nil {
		at := s.ReadAt
		row.BeforeReadAt = &at
		row.BeforeCalendarID = calendarString(s.CalendarID)
		row.BeforeBase, row.BeforeHP, row.BeforeHC = s.Registers.Base, s.Registers.HP, s.Registers.HC
		row.BeforeHPH, row.BeforeHCH = s.Registers.HPH, s.Registers.HCH
		row.BeforeHPB, row.BeforeHCB = s.Registers.HPB, s.Registers.HCB
	}
	if s := e.After; s != nil {
		at := s.ReadAt
		row.AfterReadAt = &at
		row.AfterCalendarID = calendarString(s.CalendarID)
		row.AfterBase, row.AfterHP, row.AfterHC = s.Registers.Base, s.Registers.HP, s.Registers.HC
		row.AfterHPH, row.AfterHCH = s.Registers.HPH, s.Registers.HCH
		row.AfterHPB, row.AfterHCB = s.Registers.HPB, s.Registers.HCB
	}
	return row
}

func (row *eventRow) toModel() models.ContractEvent {
	e := models.ContractEvent{
		ID:                  row.ID,
		ContractRef:         row.ContractRef,
		DeliveryPointID:     row.DeliveryPointID,
		Timestamp:           row.EventAt,
		Trigger:             row.TriggerCode,
		Kind:                row.EventKind,
		Source:              row.Source,
		CustomerSegment:     row.CustomerSegment,
		ContractState:       row.ContractState,
		MeterSerial:         row.MeterSerial,
		SubscribedPower:     row.SubscribedPower,
		TariffFormula:       row.TariffFormula,
		ImpactsSubscription: row.ImpactsSubscription,
		ImpactsEnergy:       row.ImpactsEnergy,
		ChangeSummary:       row.ChangeSummary,
	}
	if row.BeforeReadAt != nil {
		e.Before = &models.EventSnapshot{
			ReadAt:     *row.BeforeReadAt,
			CalendarID: calendarValue(row.BeforeCalendarID),
			Registers: models.RegisterValues{
				Base: row.BeforeBase, HP: row.BeforeHP, HC: row.BeforeHC,
				HPH: row.BeforeHPH, HCH: row.BeforeHCH, HPB: row.BeforeHPB, HCB: row.BeforeHCB,
			},
		}
	}
	if row.AfterReadAt != nil {
		e.After = &models.EventSnapshot{
			ReadAt:     *row.AfterReadAt,
			CalendarID: calendarValue(row.AfterCalendarID),
			Registers: models.RegisterValues{
				Base: row.AfterBase, HP: row.AfterHP, HC: row.AfterHC,
				HPH: row.AfterHPH, HCH: row.AfterHCH, HPB: row.AfterHPB, HCB: row.AfterHCB,
			},
		}
	}
	return e
}

func calendarString(c *models.MeterCalendar) *string {
	if c == nil {
		return nil
	}
	s := string(*c)
	return &s
}

func calendarValue(s *string) *models.MeterCalendar {
	if s == nil {
		return nil
	}
	c := models.MeterCalendar(*s)
	return &c
}

// UpsertBatch stages a batch of contract events. The natural key is
// (contract_ref, event_at, trigger_code); replayed flux rows overwrite the
// previous version.
func (r *Repository) UpsertBatch(ctx context.Context, events []models.ContractEvent) error {
	ctx, span := tracing.StartSpan(ctx, "contractevent.Repository.UpsertBatch")
	defer span.End()

	if len(events) == 0 {
		return nil
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("contract_events")
	ib.Cols(eventColumns...)
	for i := range events {
		row := toRow(&events[i])
		ib.Values(
			row.ID, row.ContractRef, row.DeliveryPointID, row.EventAt, row.TriggerCode, row.EventKind, row.Source,
			row.CustomerSegment, row.ContractState, row.MeterSerial, row.SubscribedPower, row.TariffFormula,
			row.BeforeReadAt, row.BeforeCalendarID, row.BeforeBase, row.BeforeHP, row.BeforeHC, row.BeforeHPH, row.BeforeHCH, row.BeforeHPB, row.BeforeHCB,
			row.AfterReadAt, row.AfterCalendarID, row.AfterBase, row.AfterHP, row.AfterHC, row.AfterHPH, row.AfterHCH, row.AfterHPB, row.AfterHCB,
			row.ImpactsSubscription, row.ImpactsEnergy, row.ChangeSummary,
		)
	}

	query, args := ib.Build()
	query += ` ON CONFLICT (contract_ref, event_at, trigger_code) DO UPDATE SET
		source = EXCLUDED.source,
		customer_segment = EXCLUDED.customer_segment,
		contract_state = EXCLUDED.contract_state,
		meter_serial = EXCLUDED.meter_serial,
		subscribed_power = EXCLUDED.subscribed_power,
		tariff_formula = EXCLUDED.tariff_formula,
		before_read_at = EXCLUDED.before_read_at,
		before_calendar_id = EXCLUDED.before_calendar_id,
		before_base = EXCLUDED.before_base, before_hp = EXCLUDED.before_hp, before_hc = EXCLUDED.before_hc,
		before_hph = EXCLUDED.before_hph, before_hch = EXCLUDED.before_hch, before_hpb = EXCLUDED.before_hpb, before_hcb = EXCLUDED.before_hcb,
		after_read_at = EXCLUDED.after_read_at,
		after_calendar_id = EXCLUDED.after_calendar_id,
		after_base = EXCLUDED.after_base, after_hp = EXCLUDED.after_hp, after_hc = EXCLUDED.after_hc,
		after_hph = EXCLUDED.after_hph, after_hch = EXCLUDED.after_hch, after_hpb = EXCLUDED.after_hpb, after_hcb = EXCLUDED.after_hcb,
		updated_at = now()`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"event_count": len(events)}).Error("Failed to upsert contract events")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to upsert contract events: %v", err)
	}
	return nil
}

// ListEvents returns the event history for the given delivery points, ordered
// by contract then timestamp. An empty filter returns the whole perimeter.
func (r *Repository) ListEvents(ctx context.Context, deliveryPointIDs []string) ([]models.ContractEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "contractevent.Repository.ListEvents")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(eventColumns...)
	sb.From("contract_events")
	if len(deliveryPointIDs) > 0 {
		sb.Where(sb.In("delivery_point_id", sqlbuilder.List(deliveryPointIDs)))
	}
	sb.OrderBy("contract_ref", "event_at", "trigger_code")

	query, args := sb.Build()
	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list contract events")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list contract events: %v", err)
	}

	events := make([]models.ContractEvent, len(rows))
	for i := range rows {
		events[i] = rows[i].toModel()
	}
	return events, nil
}

// ListByContract returns the history of one contract ordered by timestamp.
func (r *Repository) ListByContract(ctx context.Context, contractRef string) ([]models.ContractEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "contractevent.Repository.ListByContract")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(eventColumns...)
	sb.From("contract_events")
	sb.Where(sb.Equal("contract_ref", contractRef))
	sb.OrderBy("event_at", "trigger_code")

	query, args := sb.Build()
	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"contract_ref": contractRef}).Error("Failed to list contract events by contract")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list contract events: %v", err)
	}

	events := make([]models.ContractEvent, len(rows))
	for i := range rows {
		events[i] = rows[i].toModel()
	}
	return events, nil
}
