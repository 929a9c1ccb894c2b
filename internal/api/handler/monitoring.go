package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/watchtower/internal/api/middleware"
	"github.com/kiranshivaraju/watchtower/internal/api/response"
	"github.com/kiranshivaraju/watchtower/internal/monitor"
	"github.com/kiranshivaraju/watchtower/internal/scheduler"
)

// CycleRunner starts monitoring cycles. *scheduler.Scheduler satisfies it.
type CycleRunner interface {
	RunNow(ctx context.Context) (*monitor.Report, error)
	RunTenant(ctx context.Context, tenantID uuid.UUID) (*monitor.Report, error)
}

type triggerResponse struct {
	Message string          `json:"message"`
	Report  *monitor.Report `json:"report"`
}

type runResponse struct {
	ItemsProcessed int             `json:"items_processed"`
	Report         *monitor.Report `json:"report"`
}

// NewTriggerHandler returns POST /monitoring/trigger. The cycle is detached
// from the request so a dropped connection does not abort it.
func NewTriggerHandler(runner CycleRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := runner.RunNow(context.WithoutCancel(r.Context()))
		if err != nil {
			writeRunError(w, err)
			return
		}
		response.JSON(w, triggerResponse{
			Message: "Monitoring cycle completed",
			Report:  report,
		})
	}
}

// NewRunHandler returns POST /client/monitoring/run for the authenticated tenant.
func NewRunHandler(runner CycleRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}
		runTenant(w, r, runner, tenantID)
	}
}

// NewAdminRunHandler returns POST /admin/monitoring/run/{tenantID}.
func NewAdminRunHandler(runner CycleRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "tenantID must be a valid UUID", nil)
			return
		}
		runTenant(w, r, runner, tenantID)
	}
}

func runTenant(w http.ResponseWriter, r *http.Request, runner CycleRunner, tenantID uuid.UUID) {
	report, err := runner.RunTenant(context.WithoutCancel(r.Context()), tenantID)
	if err != nil {
		writeRunError(w, err)
		return
	}
	response.JSON(w, runResponse{
		ItemsProcessed: report.ItemsProcessed,
		Report:         report,
	})
}

func writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, monitor.ErrNoActiveConfig):
		response.Error(w, http.StatusNotFound, "NO_ACTIVE_CONFIG",
			"No active monitoring configuration with a valid subscription", nil)
	case errors.Is(err, scheduler.ErrCycleInProgress), errors.Is(err, scheduler.ErrTenantRunInProgress):
		response.Error(w, http.StatusConflict, "RUN_IN_PROGRESS",
			"A monitoring run is already in progress", nil)
	case errors.Is(err, monitor.ErrStoreUnavailable):
		slog.Error("monitoring run aborted", "error", err)
		response.Error(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE",
			"The data store is unavailable", nil)
	default:
		slog.Error("monitoring run failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
