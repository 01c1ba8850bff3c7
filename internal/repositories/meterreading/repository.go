// Package meterreading persists the periodic index readings staged from the
// R151 flux.
package meterreading

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

// Repository handles meter reading persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new meter reading repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

type readingRow struct {
	ID              string    `db:"id"`
	DeliveryPointID string    `db:"delivery_point_id"`
	ReadAt          time.Time `db:"read_at"`
	Source          string    `db:"source"`
	SequenceOrder   int       `db:"sequence_order"`
	ContractRef     *string   `db:"contract_ref"`
	TariffFormula   *string   `db:"tariff_formula"`
	CalendarID      *string   `db:"calendar_id"`
	Unit            string    `db:"unit"`
	PrecisionUnit   string    `db:"precision_unit"`
	Base            *float64  `db:"base"`
	HP              *float64  `db:"hp"`
	HC              *float64  `db:"hc"`
	HPH             *float64  `db:"hph"`
	HCH             *float64  `db:"hch"`
	HPB             *float64  `db:"hpb"`
	HCB             *float64  `db:"hcb"`
}

var readingColumns = []string{
	"id", "delivery_point_id", "read_at", "source", "sequence_order",
	"contract_ref", "tariff_formula", "calendar_id", "unit", "precision_unit",
	"base", "hp", "hc", "hph", "hch", "hpb", "hcb",
}

func toRow(m *models.MeterReading) readingRow {
	row := readingRow{
		ID:              uuid.New().String(),
		DeliveryPointID: m.DeliveryPointID,
		ReadAt:          m.ReadAt,
		Source:          m.Source,
		SequenceOrder:   m.SequenceOrder,
		ContractRef:     m.ContractRef,
		TariffFormula:   m.TariffFormula,
		Unit:            m.Unit,
		PrecisionUnit:   m.Precision,
		Base:            m.Registers.Base,
		HP:              m.Registers.HP,
		HC:              m.Registers.HC,
		HPH:             m.Registers.HPH,
		HCH:             m.Registers.HCH,
		HPB:             m.Registers.HPB,
		HCB:             m.Registers.HCB,
	}
	if m.CalendarID != nil {
		s := string(*m.CalendarID)
		row.CalendarID = &s
	}
	return row
}

func (row *readingRow) toModel() models.MeterReading {
	m := models.MeterReading{
		DeliveryPointID: row.DeliveryPointID,
		ReadAt:          row.ReadAt,
		Source:          row.Source,
		SequenceOrder:   row.SequenceOrder,
		ContractRef:     row.ContractRef,
		TariffFormula:   row.TariffFormula,
		Unit:            row.Unit,
		Precision:       row.PrecisionUnit,
		Registers: models.RegisterValues{
			Base: row.Base, HP: row.HP, HC: row.HC,
			HPH: row.HPH, HCH: row.HCH, HPB: row.HPB, HCB: row.HCB,
		},
	}
	if row.CalendarID != nil {
		c := models.MeterCalendar(*row.CalendarID)
		m.CalendarID = &c
	}
	return m
}

// UpsertBatch stages a batch of readings. The natural key is
// (delivery_point_id, read_at, source, sequence_order); replayed flux rows
// overwrite the previous version.
func (r *Repository) UpsertBatch(ctx context.Context, readings []models.MeterReading) error {
	ctx, span := tracing.StartSpan(ctx, "meterreading.Repository.UpsertBatch")
	defer span.End()

	if len(readings) == 0 {
		return nil
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("meter_readings")
	ib.Cols(readingColumns...)
	for i := range readings {
		row := toRow(&readings[i])
		ib.Values(
			row.ID, row.DeliveryPointID, row.ReadAt, row.Source, row.SequenceOrder,
			row.ContractRef, row.TariffFormula, row.CalendarID, row.Unit, row.PrecisionUnit,
			row.Base, row.HP, row.HC, row.HPH, row.HCH, row.HPB, row.HCB,
		)
	}

	query, args := ib.Build()
	query += ` ON CONFLICT (delivery_point_id, read_at, source, sequence_order) DO UPDATE SET
		contract_ref = EXCLUDED.contract_ref,
		tariff_formula = EXCLUDED.tariff_formula,
		calendar_id = EXCLUDED.calendar_id,
		unit = EXCLUDED.unit,
		precision_unit = EXCLUDED.precision_unit,
		base = EXCLUDED.base, hp = EXCLUDED.hp, hc = EXCLUDED.hc,
		hph = EXCLUDED.hph, hch = EXCLUDED.hch, hpb = EXCLUDED.hpb, hcb = EXCLUDED.hcb,
		updated_at = now()`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"reading_count": len(readings)}).Error("Failed to upsert meter readings")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to upsert meter readings: %v", err)
	}
	return nil
}

// ListReadings returns the readings for the given delivery points ordered
// chronologically. An empty filter returns the whole perimeter.
func (r *Repository) ListReadings(ctx context.Context, deliveryPointIDs []string) ([]models.MeterReading, error) {
	ctx, span := tracing.StartSpan(ctx, "meterreading.Repository.ListReadings")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(readingColumns...)
	sb.From("meter_readings")
	if len(deliveryPointIDs) > 0 {
		sb.Where(sb.In("delivery_point_id", sqlbuilder.List(deliveryPointIDs)))
	}
	sb.OrderBy("delivery_point_id", "read_at", "sequence_order")

	query, args := sb.Build()
	var rows []readingRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list meter readings")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list meter readings: %v", err)
	}

	readings := make([]models.MeterReading, len(rows))
	for i := range rows {
		readings[i] = rows[i].toModel()
	}
	return readings, nil
}

// ListAtInstant returns the readings recorded for a delivery point at one
// exact instant, used by chronology reconciliation for billing point lookup.
func (r *Repository) ListAtInstant(ctx context.Context, deliveryPointID string, at time.Time) ([]models.MeterReading, error) {
	ctx, span := tracing.StartSpan(ctx, "meterreading.Repository.ListAtInstant")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(readingColumns...)
	sb.From("meter_readings")
	sb.Where(
		sb.Equal("delivery_point_id", deliveryPointID),
		sb.Equal("read_at", at),
	)
	sb.OrderBy("sequence_order")

	query, args := sb.Build()
	var rows []readingRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"delivery_point_id": deliveryPointID}).Error("Failed to list meter readings at instant")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list meter readings: %v", err)
	}

	readings := make([]models.MeterReading, len(rows))
	for i := range rows {
		readings[i] = rows[i].toModel()
	}
	return readings, nil
}
