// Package subscriptionperiod persists computed subscription periods.
package subscriptionperiod

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"github.com/enerflux/voltcore/pkg/database"
	"github.com/enerflux/voltcore/pkg/models"
	"github.com/enerflux/voltcore/pkg/tracing"
)

// Repository handles subscription period persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new subscription period repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

var periodColumns = []string{
	"id", "batch_id", "contract_ref", "delivery_point_id",
	"month_label", "start_label", "end_label",
	"tariff_formula", "subscribed_power", "duration_days", "start_at", "end_at",
}

// ReplaceForBatch atomically replaces the subscription periods of one batch.
// A batch is recomputed as a whole, so stale rows from the previous run must
// not survive.
func (r *Repository) ReplaceForBatch(ctx context.Context, batchID string, periods []models.SubscriptionPeriod) error {
	ctx, span := tracing.StartSpan(ctx, "subscriptionperiod.Repository.ReplaceForBatch")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_id":     batchID,
		"period_count": len(periods),
	})

	err := database.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
		db.DeleteFrom("subscription_periods")
		db.Where(db.Equal("batch_id", batchID))
		query, args := db.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}

		if len(periods) == 0 {
			return nil
		}

		ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
		ib.InsertInto("subscription_periods")
		ib.Cols(periodColumns...)
		for i := range periods {
			p := &periods[i]
			ib.Values(
				uuid.New().String(), batchID, p.ContractRef, p.DeliveryPointID,
				p.MonthLabel, p.StartLabel, p.EndLabel,
				p.TariffFormula, p.SubscribedPower, p.DurationDays, p.Start, p.End,
			)
		}
		query, args = ib.Build()
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		log.WithError(err).Error("Failed to replace subscription periods")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to replace subscription periods: %v", err)
	}

	log.Debug("Replaced subscription periods")
	return nil
}

// ListByBatch returns the subscription periods of one batch ordered by
// contract then start.
func (r *Repository) ListByBatch(ctx context.Context, batchID string) ([]models.SubscriptionPeriod, error) {
	ctx, span := tracing.StartSpan(ctx, "subscriptionperiod.Repository.ListByBatch")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"contract_ref", "delivery_point_id", "month_label", "start_label", "end_label",
		"tariff_formula", "subscribed_power", "duration_days", "start_at", "end_at",
	)
	sb.From("subscription_periods")
	sb.Where(sb.Equal("batch_id", batchID))
	sb.OrderBy("contract_ref", "start_at")

	query, args := sb.Build()
	var periods []models.SubscriptionPeriod
	if err := r.db.SelectContext(ctx, &periods, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"batch_id": batchID}).Error("Failed to list subscription periods")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list subscription periods: %v", err)
	}
	return periods, nil
}

// ListByContract returns every computed period of one contract, most recent
// batch rows included, ordered by start.
func (r *Repository) ListByContract(ctx context.Context, contractRef string) ([]models.SubscriptionPeriod, error) {
	ctx, span := tracing.StartSpan(ctx, "subscriptionperiod.Repository.ListByContract")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"contract_ref", "delivery_point_id", "month_label", "start_label", "end_label",
		"tariff_formula", "subscribed_power", "duration_days", "start_at", "end_at",
	)
	sb.From("subscription_periods")
	sb.Where(sb.Equal("contract_ref", contractRef))
	sb.OrderBy("start_at")

	query, args := sb.Build()
	var periods []models.SubscriptionPeriod
	if err := r.db.SelectContext(ctx, &periods, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"contract_ref": contractRef}).Error("Failed to list subscription periods by contract")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list subscription periods: %v", err)
	}
	return periods, nil
}
