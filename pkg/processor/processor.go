// Package processor handles incoming flux messages and manages the staging
// layer. C15 contract events and R151 readings are written to their staged
// tables; billing.compute requests run the pipeline on what has been staged.
package processor

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/enerflux/voltcore/internal/repositories/contractevent"
	"github.com/enerflux/voltcore/internal/repositories/meterreading"
	"github.com/enerflux/voltcore/pkg/events"
	"github.com/enerflux/voltcore/pkg/kafka"
	"github.com/enerflux/voltcore/pkg/models"
	"github.com/enerflux/voltcore/pkg/pipeline"
	"github.com/enerflux/voltcore/pkg/schema"
	"github.com/enerflux/voltcore/pkg/tracing"
)

// Processor handles message processing for the staging layer
type Processor struct {
	logger      ectologger.Logger
	eventRepo   *contractevent.Repository
	readingRepo *meterreading.Repository
	pipeline    *pipeline.Service
	emitter     *events.Emitter
	validator   *schema.Validator
}

// NewProcessor creates a new message processor for flux ingestion.
func NewProcessor(
	logger ectologger.Logger,
	eventRepo *contractevent.Repository,
	readingRepo *meterreading.Repository,
	pipelineService *pipeline.Service,
	emitter *events.Emitter,
) *Processor {
	return &Processor{
		logger:      logger,
		eventRepo:   eventRepo,
		readingRepo: readingRepo,
		pipeline:    pipelineService,
		emitter:     emitter,
		validator:   schema.NewValidator(),
	}
}

// HandleMessage routes one incoming message by type. Unknown types are
// logged and dropped so a topic shared with other consumers never wedges
// this group.
func (p *Processor) HandleMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.HandleMessage")
	defer span.End()

	switch {
	case msg.IsContractEvent():
		return p.handleContractEvent(ctx, msg)
	case msg.IsMeterReading():
		return p.handleMeterReading(ctx, msg)
	case msg.IsComputeRequest():
		return p.handleComputeRequest(ctx, msg)
	default:
		p.logger.WithContext(ctx).WithFields(map[string]any{
			"type":  msg.GetType(),
			"topic": msg.Topic,
		}).Warn("Unknown message type, dropping")
		return nil
	}
}

func (p *Processor) handleContractEvent(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.handleContractEvent")
	defer span.End()

	log := p.logger.WithContext(ctx).WithField("delivery_point_id", msg.GetDeliveryPointID())

	event, err := msg.ParseContractEvent()
	if err != nil {
		// Malformed payloads are dropped, not retried; replaying them can
		// never succeed.
		log.WithError(err).Error("Failed to parse contract event, dropping")
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	if err := p.validator.ValidateContractEvent(event); err != nil {
		log.WithError(err).Error("Contract event failed validation, dropping")
		return nil
	}

	if err := p.eventRepo.UpsertBatch(ctx, []models.ContractEvent{*event}); err != nil {
		log.WithError(err).Error("Failed to stage contract event")
		return err
	}

	if p.emitter != nil {
		if err := p.emitter.EmitHistoryStaged(ctx, event.DeliveryPointID, 1); err != nil {
			log.WithError(err).Warn("Failed to emit history staged event")
		}
	}

	log.WithField("contract_ref", event.ContractRef).Debug("Staged contract event")
	return nil
}

func (p *Processor) handleMeterReading(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.handleMeterReading")
	defer span.End()

	log := p.logger.WithContext(ctx).WithField("delivery_point_id", msg.GetDeliveryPointID())

	reading, err := msg.ParseMeterReading()
	if err != nil {
		log.WithError(err).Error("Failed to parse meter reading, dropping")
		return nil
	}

	if err := p.validator.ValidateMeterReading(reading); err != nil {
		log.WithError(err).Error("Meter reading failed validation, dropping")
		return nil
	}

	normalized := reading.NormalizeUnit()
	if err := p.readingRepo.UpsertBatch(ctx, []models.MeterReading{normalized}); err != nil {
		log.WithError(err).Error("Failed to stage meter reading")
		return err
	}

	if p.emitter != nil {
		if err := p.emitter.EmitReadingsStaged(ctx, normalized.DeliveryPointID, 1); err != nil {
			log.WithError(err).Warn("Failed to emit readings staged event")
		}
	}

	log.Debug("Staged meter reading")
	return nil
}

func (p *Processor) handleComputeRequest(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.handleComputeRequest")
	defer span.End()

	req, err := msg.ParseComputeRequest()
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to parse compute request, dropping")
		return nil
	}
	if req.BatchID == "" {
		req.BatchID = uuid.New().String()
	}
	reference := req.Reference
	if reference.IsZero() {
		reference = time.Now()
	}

	log := p.logger.WithContext(ctx).WithField("batch_id", req.BatchID)
	log.WithFields(map[string]any{
		"delivery_point_count": len(req.DeliveryPointIDs),
	}).Info("Running billing batch")

	if _, err := p.pipeline.Run(ctx, req.BatchID, req.DeliveryPointIDs, reference); err != nil {
		if p.emitter != nil {
			if emitErr := p.emitter.EmitBatchFailed(ctx, req.BatchID, err.Error()); emitErr != nil {
				log.WithError(emitErr).Warn("Failed to emit batch failed event")
			}
		}
		return err
	}
	return nil
}
