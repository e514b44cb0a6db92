package handler

import (
	"context"
	"net/http"

	"smartbuy-api/internal/model"
	"smartbuy-api/pkg/response"
)

// PriceTrackerRunner runs one price tracking pass.
type PriceTrackerRunner interface {
	Run(ctx context.Context) model.PriceTrackerResult
}

// AlertEvaluatorRunner runs one alert evaluation pass.
type AlertEvaluatorRunner interface {
	Run(ctx context.Context) model.AlertEvaluatorResult
}

// JobHandler triggers the background jobs on demand. Routes are expected
// to sit behind the job secret middleware.
type JobHandler struct {
	priceTracker   PriceTrackerRunner
	alertEvaluator AlertEvaluatorRunner
}

// NewJobHandler creates a new job handler.
func NewJobHandler(priceTracker PriceTrackerRunner, alertEvaluator AlertEvaluatorRunner) *JobHandler {
	return &JobHandler{priceTracker: priceTracker, alertEvaluator: alertEvaluator}
}

// RunPriceTracker handles GET|POST /api/v1/internal/jobs/price-tracker
func (h *JobHandler) RunPriceTracker(w http.ResponseWriter, r *http.Request) {
	res := h.priceTracker.Run(r.Context())
	response.JSON(w, jobStatusCode(res.Status), res)
}

// RunAlertEvaluator handles GET|POST /api/v1/internal/jobs/alert-evaluator
func (h *JobHandler) RunAlertEvaluator(w http.ResponseWriter, r *http.Request) {
	res := h.alertEvaluator.Run(r.Context())
	response.JSON(w, jobStatusCode(res.Status), res)
}

// A skipped or truncated run is still a successful invocation.
func jobStatusCode(s model.JobStatus) int {
	if s == model.JobFailed {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}
