// Package billing exposes the billing computation over HTTP: triggering a
// batch run and reading back the computed periods.
package billing

import (
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/enerflux/voltcore/internal/repositories/contractevent"
	"github.com/enerflux/voltcore/internal/repositories/energyperiod"
	"github.com/enerflux/voltcore/internal/repositories/subscriptionperiod"
	"github.com/enerflux/voltcore/pkg/perimeter"
	"github.com/enerflux/voltcore/pkg/pipeline"
)

// Register registers billing routes
func Register(g *echo.Group) {
	g.POST("/runs", RunBatch)
	g.GET("/batches/:id/subscription-periods", ListBatchSubscriptionPeriods)
	g.GET("/batches/:id/energy-periods", ListBatchEnergyPeriods)
	g.GET("/contracts/:ref/subscription-periods", ListContractSubscriptionPeriods)
	g.GET("/contracts/:ref/situation", GetContractSituation)
	g.GET("/contracts/:ref/variations", ListContractVariations)
	g.GET("/delivery-points/:id/energy-periods", ListDeliveryPointEnergyPeriods)
}

// RunBatchRequest is the request body for triggering a billing run
type RunBatchRequest struct {
	BatchID          string    `json:"batch_id,omitempty"`
	DeliveryPointIDs []string  `json:"delivery_point_ids,omitempty"`
	Reference        time.Time `json:"reference,omitempty"`
}

// RunBatchResponse summarizes a completed billing run
type RunBatchResponse struct {
	BatchID             string `json:"batch_id"`
	SubscriptionPeriods int    `json:"subscription_periods"`
	EnergyPeriods       int    `json:"energy_periods"`
	EventCount          int    `json:"event_count"`
}

// RunBatch triggers a synchronous billing computation
func RunBatch(c echo.Context) error {
	ctx := c.Request().Context()

	var req RunBatchRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.BatchID == "" {
		req.BatchID = uuid.New().String()
	}
	reference := req.Reference
	if reference.IsZero() {
		reference = time.Now()
	}

	ctx, service, err := ectoinject.GetContext[*pipeline.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := service.Run(ctx, req.BatchID, req.DeliveryPointIDs, reference)
	if err != nil {
		return err
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{"batch_id": req.BatchID}).Info("Billing run triggered over HTTP")
	}

	return c.JSON(http.StatusOK, RunBatchResponse{
		BatchID:             req.BatchID,
		SubscriptionPeriods: len(result.SubscriptionPeriods),
		EnergyPeriods:       len(result.EnergyPeriods),
		EventCount:          len(result.History),
	})
}

// ListBatchSubscriptionPeriods lists the subscription periods of one batch
func ListBatchSubscriptionPeriods(c echo.Context) error {
	ctx := c.Request().Context()
	batchID := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*subscriptionperiod.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	periods, err := repo.ListByBatch(ctx, batchID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, periods)
}

// ListBatchEnergyPeriods lists the energy periods of one batch
func ListBatchEnergyPeriods(c echo.Context) error {
	ctx := c.Request().Context()
	batchID := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*energyperiod.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	periods, err := repo.ListByBatch(ctx, batchID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, periods)
}

// ListContractSubscriptionPeriods lists every computed period of one contract
func ListContractSubscriptionPeriods(c echo.Context) error {
	ctx := c.Request().Context()
	contractRef := c.Param("ref")

	ctx, repo, err := ectoinject.GetContext[*subscriptionperiod.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	periods, err := repo.ListByContract(ctx, contractRef)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, periods)
}

// GetContractSituation returns the last contractual state of a contract at a
// given instant (query parameter "at", RFC 3339, defaults to now)
func GetContractSituation(c echo.Context) error {
	ctx := c.Request().Context()
	contractRef := c.Param("ref")

	at := time.Now()
	if raw := c.QueryParam("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "invalid 'at' timestamp, expected RFC 3339")
		}
		at = parsed
	}

	ctx, repo, err := ectoinject.GetContext[*contractevent.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	history, err := repo.ListByContract(ctx, contractRef)
	if err != nil {
		return err
	}

	situation := perimeter.SituationAt(history, at)
	if len(situation) == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "no contract state on record at that instant")
	}
	return c.JSON(http.StatusOK, situation[0])
}

// ListContractVariations lists mid-contract modifications in a time range
// (query parameters "from" and "to", RFC 3339)
func ListContractVariations(c echo.Context) error {
	ctx := c.Request().Context()
	contractRef := c.Param("ref")

	from, err := time.Parse(time.RFC3339, c.QueryParam("from"))
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid 'from' timestamp, expected RFC 3339")
	}
	to, err := time.Parse(time.RFC3339, c.QueryParam("to"))
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid 'to' timestamp, expected RFC 3339")
	}

	ctx, repo, err := ectoinject.GetContext[*contractevent.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	history, err := repo.ListByContract(ctx, contractRef)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, perimeter.MCTVariations(history, from, to))
}

// ListDeliveryPointEnergyPeriods lists every computed energy period of one
// delivery point
func ListDeliveryPointEnergyPeriods(c echo.Context) error {
	ctx := c.Request().Context()
	deliveryPointID := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*energyperiod.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	periods, err := repo.ListByDeliveryPoint(ctx, deliveryPointID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, periods)
}
