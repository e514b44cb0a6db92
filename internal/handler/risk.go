package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"smartbuy-api/internal/model"
	"smartbuy-api/internal/repository"
	"smartbuy-api/pkg/apierror"
	"smartbuy-api/pkg/response"
)

// RiskRecomputer recomputes and persists an offer's risk score.
type RiskRecomputer interface {
	Recompute(ctx context.Context, offerID string) (*model.RiskAssessment, error)
}

// RiskHandler serves risk recomputation.
type RiskHandler struct {
	risk RiskRecomputer
}

// NewRiskHandler creates a new risk handler.
func NewRiskHandler(risk RiskRecomputer) *RiskHandler {
	return &RiskHandler{risk: risk}
}

// RiskResponse is the recomputed assessment of one offer.
type RiskResponse struct {
	OfferID string `json:"offer_id"`
	model.RiskAssessment
}

// Recompute handles POST /api/v1/internal/offers/{offer_id}/risk
func (h *RiskHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	offerID := chi.URLParam(r, "offer_id")
	if offerID == "" {
		response.Error(w, apierror.BadRequest("offer_id is required"))
		return
	}

	assessment, err := h.risk.Recompute(r.Context(), offerID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		response.Error(w, apierror.NotFound("offer not found"))
		return
	case errors.Is(err, repository.ErrElevatedRequired), errors.Is(err, repository.ErrMissingCredential):
		log.Printf("[RiskHandler] Recompute %s: %v", offerID, err)
		response.Error(w, apierror.ConfigurationError("risk writes need the elevated data store client"))
		return
	case err != nil:
		log.Printf("[RiskHandler] Recompute %s: %v", offerID, err)
		response.Error(w, apierror.InternalError("failed to recompute risk"))
		return
	}

	response.OK(w, RiskResponse{OfferID: offerID, RiskAssessment: *assessment})
}
