// Package pipeline wires the billing stages together: break-point detection,
// synthetic billing-point injection, then subscription and energy period
// materialization running in parallel.
package pipeline

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"golang.org/x/sync/errgroup"

	"github.com/enerflux/voltcore/pkg/energy"
	"github.com/enerflux/voltcore/pkg/models"
	"github.com/enerflux/voltcore/pkg/perimeter"
	"github.com/enerflux/voltcore/pkg/schema"
	"github.com/enerflux/voltcore/pkg/subscriptions"
	"github.com/enerflux/voltcore/pkg/tariff"
	"github.com/enerflux/voltcore/pkg/tracing"
)

// HistoryStore loads the raw contract event history.
type HistoryStore interface {
	ListEvents(ctx context.Context, deliveryPointIDs []string) ([]models.ContractEvent, error)
}

// ReadingStore loads stored periodic meter readings.
type ReadingStore interface {
	ListReadings(ctx context.Context, deliveryPointIDs []string) ([]models.MeterReading, error)
}

// SubscriptionPeriodStore persists computed subscription periods.
type SubscriptionPeriodStore interface {
	ReplaceForBatch(ctx context.Context, batchID string, periods []models.SubscriptionPeriod) error
}

// EnergyPeriodStore persists computed energy periods.
type EnergyPeriodStore interface {
	ReplaceForBatch(ctx context.Context, batchID string, periods []models.EnergyPeriod) error
}

// Emitter publishes computed period batches for downstream consumers.
type Emitter interface {
	EmitPeriodsComputed(ctx context.Context, batchID string, subscriptions []models.SubscriptionPeriod, energy []models.EnergyPeriod) error
}

// Config contains configuration for the billing pipeline.
type Config struct {
	PricingEnabled bool // run the tariff engine on computed periods
}

// Service runs billing computations end to end.
type Service struct {
	log       ectologger.Logger
	validator *schema.Validator
	detector  *perimeter.Detector
	injector  *perimeter.Injector

	subscriptionBuilder *subscriptions.Builder
	reconciler          *energy.Reconciler
	energyBuilder       *energy.Builder

	histories           HistoryStore
	readings            ReadingStore
	subscriptionPeriods SubscriptionPeriodStore
	energyPeriods       EnergyPeriodStore
	emitter             Emitter
	pricing             tariff.Engine

	cfg Config
}

// NewService creates the billing pipeline service. The tariff engine may be
// tariff.NoopEngine when pricing is disabled.
func NewService(
	log ectologger.Logger,
	histories HistoryStore,
	readings ReadingStore,
	subscriptionPeriods SubscriptionPeriodStore,
	energyPeriods EnergyPeriodStore,
	emitter Emitter,
	pricing tariff.Engine,
	cfg Config,
) *Service {
	return &Service{
		log:                 log,
		validator:           schema.NewValidator(),
		detector:            perimeter.NewDetector(log),
		injector:            perimeter.NewInjector(log),
		subscriptionBuilder: subscriptions.NewBuilder(log),
		reconciler:          energy.NewReconciler(log),
		energyBuilder:       energy.NewBuilder(log),
		histories:           histories,
		readings:            readings,
		subscriptionPeriods: subscriptionPeriods,
		energyPeriods:       energyPeriods,
		emitter:             emitter,
		pricing:             pricing,
		cfg:                 cfg,
	}
}

// Result is the output of one billing computation.
type Result struct {
	History             []models.ContractEvent      `json:"history"`
	SubscriptionPeriods []models.SubscriptionPeriod `json:"subscription_periods"`
	EnergyPeriods       []models.EnergyPeriod       `json:"energy_periods"`
}

// Compute runs the full pipeline on in-memory inputs: schema validation,
// break-point detection, billing-point injection, then both period builders.
// The subscription branch and the energy branch are independent after
// enrichment and run concurrently. Reference anchors the billing month grid,
// normally the current instant.
func (s *Service) Compute(ctx context.Context, history []models.ContractEvent, readings []models.MeterReading, reference time.Time) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Service.Compute")
	defer span.End()

	log := s.log.WithContext(ctx).WithFields(map[string]any{
		"event_count":   len(history),
		"reading_count": len(readings),
	})

	if err := s.validator.ValidateContractEvents(history); err != nil {
		log.WithError(err).Error("Contract event history failed validation")
		return nil, err
	}
	if err := s.validator.ValidateMeterReadings(readings); err != nil {
		log.WithError(err).Error("Meter readings failed validation")
		return nil, err
	}

	enriched := s.injector.Inject(ctx, s.detector.Detect(ctx, history), reference)

	result := &Result{History: enriched}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		result.SubscriptionPeriods = s.subscriptionBuilder.Build(gctx, enriched)
		return nil
	})
	g.Go(func() error {
		timeline := s.reconciler.Reconcile(gctx, enriched, readings)
		periods := s.energyBuilder.Build(gctx, timeline)
		energy.RollUpPeriods(periods)
		result.EnergyPeriods = periods
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.WithFields(map[string]any{
		"subscription_periods": len(result.SubscriptionPeriods),
		"energy_periods":       len(result.EnergyPeriods),
	}).Info("Billing periods computed")

	return result, nil
}

// Run loads the inputs for a batch, computes its periods, persists them and
// publishes the result. An empty deliveryPointIDs slice means the whole
// perimeter.
func (s *Service) Run(ctx context.Context, batchID string, deliveryPointIDs []string, reference time.Time) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Service.Run")
	defer span.End()

	log := s.log.WithContext(ctx).WithField("batch_id", batchID)

	history, err := s.histories.ListEvents(ctx, deliveryPointIDs)
	if err != nil {
		log.WithError(err).Error("Failed to load contract event history")
		return nil, err
	}
	readings, err := s.readings.ListReadings(ctx, deliveryPointIDs)
	if err != nil {
		log.WithError(err).Error("Failed to load meter readings")
		return nil, err
	}

	result, err := s.Compute(ctx, history, readings, reference)
	if err != nil {
		return nil, err
	}

	if s.cfg.PricingEnabled {
		if err := s.price(ctx, result); err != nil {
			log.WithError(err).Error("Pricing failed")
			return nil, err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.subscriptionPeriods.ReplaceForBatch(gctx, batchID, result.SubscriptionPeriods)
	})
	g.Go(func() error {
		return s.energyPeriods.ReplaceForBatch(gctx, batchID, result.EnergyPeriods)
	})
	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Failed to persist computed periods")
		return nil, err
	}

	if s.emitter != nil {
		if err := s.emitter.EmitPeriodsComputed(ctx, batchID, result.SubscriptionPeriods, result.EnergyPeriods); err != nil {
			// Periods are already persisted; a failed notification is not
			// worth failing the batch.
			log.WithError(err).Warn("Failed to emit periods computed event")
		}
	}

	log.Info("Billing batch complete")
	return result, nil
}

// price runs the tariff engine on both period sets. Amounts are logged, not
// folded back into the period records; the pricing output schema belongs to
// downstream billing.
func (s *Service) price(ctx context.Context, result *Result) error {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Service.price")
	defer span.End()

	priced, err := s.pricing.PriceSubscriptions(ctx, result.SubscriptionPeriods)
	if err != nil {
		return err
	}
	var fixed float64
	for i := range priced {
		fixed += priced[i].FixedAmount
	}

	pricedEnergy, err := s.pricing.PriceEnergy(ctx, result.EnergyPeriods)
	if err != nil {
		return err
	}
	var variable float64
	for i := range pricedEnergy {
		variable += pricedEnergy[i].VariableAmount
	}

	s.log.WithContext(ctx).WithFields(map[string]any{
		"fixed_amount":    fixed,
		"variable_amount": variable,
	}).Info("Periods priced")
	return nil
}
