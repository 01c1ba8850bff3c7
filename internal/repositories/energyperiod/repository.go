// Package energyperiod persists computed energy periods.
package energyperiod

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"github.com/enerflux/voltcore/pkg/database"
	"github.com/enerflux/voltcore/pkg/models"
	"github.com/enerflux/voltcore/pkg/tracing"
)

// Repository handles energy period persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new energy period repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

type periodRow struct {
	ID              string    `db:"id"`
	BatchID         string    `db:"batch_id"`
	DeliveryPointID string    `db:"delivery_point_id"`
	ContractRef     *string   `db:"contract_ref"`
	TariffFormula   *string   `db:"tariff_formula"`
	StartAt         time.Time `db:"start_at"`
	EndAt           time.Time `db:"end_at"`
	DurationDays    int       `db:"duration_days"`
	SourceBefore    string    `db:"source_before"`
	SourceAfter     string    `db:"source_after"`
	DataComplete    bool      `db:"data_complete"`
	PeriodIrregular bool      `db:"period_irregular"`
	BaseEnergy      *float64  `db:"base_energy"`
	HPEnergy        *float64  `db:"hp_energy"`
	HCEnergy        *float64  `db:"hc_energy"`
	HPHEnergy       *float64  `db:"hph_energy"`
	HCHEnergy       *float64  `db:"hch_energy"`
	HPBEnergy       *float64  `db:"hpb_energy"`
	HCBEnergy       *float64  `db:"hcb_energy"`
}

var periodColumns = []string{
	"id", "batch_id", "delivery_point_id", "contract_ref", "tariff_formula",
	"start_at", "end_at", "duration_days", "source_before", "source_after",
	"data_complete", "period_irregular",
	"base_energy", "hp_energy", "hc_energy", "hph_energy", "hch_energy", "hpb_energy", "hcb_energy",
}

func (row *periodRow) toModel() models.EnergyPeriod {
	return models.EnergyPeriod{
		DeliveryPointID: row.DeliveryPointID,
		ContractRef:     row.ContractRef,
		TariffFormula:   row.TariffFormula,
		Start:           row.StartAt,
		End:             row.EndAt,
		DurationDays:    row.DurationDays,
		SourceBefore:    row.SourceBefore,
		SourceAfter:     row.SourceAfter,
		DataComplete:    row.DataComplete,
		PeriodIrregular: row.PeriodIrregular,
		Energy: models.RegisterValues{
			Base: row.BaseEnergy, HP: row.HPEnergy, HC: row.HCEnergy,
			HPH: row.HPHEnergy, HCH: row.HCHEnergy, HPB: row.HPBEnergy, HCB: row.HCBEnergy,
		},
	}
}

// ReplaceForBatch atomically replaces the energy periods of one batch.
func (r *Repository) ReplaceForBatch(ctx context.Context, batchID string, periods []models.EnergyPeriod) error {
	ctx, span := tracing.StartSpan(ctx, "energyperiod.Repository.ReplaceForBatch")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_id":     batchID,
		"period_count": len(periods),
	})

	err := database.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
		db.DeleteFrom("energy_periods")
		db.Where(db.Equal("batch_id", batchID))
		query, args := db.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}

		if len(periods) == 0 {
			return nil
		}

		ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
		ib.InsertInto("energy_periods")
		ib.Cols(periodColumns...)
		for i := range periods {
			p := &periods[i]
			ib.Values(
				uuid.New().String(), batchID, p.DeliveryPointID, p.ContractRef, p.TariffFormula,
				p.Start, p.End, p.DurationDays, p.SourceBefore, p.SourceAfter,
				p.DataComplete, p.PeriodIrregular,
				p.Energy.Base, p.Energy.HP, p.Energy.HC,
				p.Energy.HPH, p.Energy.HCH, p.Energy.HPB, p.Energy.HCB,
			)
		}
		query, args = ib.Build()
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		log.WithError(err).Error("Failed to replace energy periods")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to replace energy periods: %v", err)
	}

	log.Debug("Replaced energy periods")
	return nil
}

// ListByBatch returns the energy periods of one batch ordered by delivery
// point then start.
func (r *Repository) ListByBatch(ctx context.Context, batchID string) ([]models.EnergyPeriod, error) {
	ctx, span := tracing.StartSpan(ctx, "energyperiod.Repository.ListByBatch")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(periodColumns...)
	sb.From("energy_periods")
	sb.Where(sb.Equal("batch_id", batchID))
	sb.OrderBy("delivery_point_id", "start_at")

	query, args := sb.Build()
	var rows []periodRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"batch_id": batchID}).Error("Failed to list energy periods")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list energy periods: %v", err)
	}

	periods := make([]models.EnergyPeriod, len(rows))
	for i := range rows {
		periods[i] = rows[i].toModel()
	}
	return periods, nil
}

// ListByDeliveryPoint returns every computed period of one delivery point
// ordered by start.
func (r *Repository) ListByDeliveryPoint(ctx context.Context, deliveryPointID string) ([]models.EnergyPeriod, error) {
	ctx, span := tracing.StartSpan(ctx, "energyperiod.Repository.ListByDeliveryPoint")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(periodColumns...)
	sb.From("energy_periods")
	sb.Where(sb.Equal("delivery_point_id", deliveryPointID))
	sb.OrderBy("start_at")

	query, args := sb.Build()
	var rows []periodRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"delivery_point_id": deliveryPointID}).Error("Failed to list energy periods by delivery point")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list energy periods: %v", err)
	}

	periods := make([]models.EnergyPeriod, len(rows))
	for i := range rows {
		periods[i] = rows[i].toModel()
	}
	return periods, nil
}
