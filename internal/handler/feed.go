package handler

import (
	"context"
	"net/http"
	"strings"

	"smartbuy-api/internal/middleware"
	"smartbuy-api/internal/model"
	"smartbuy-api/pkg/apierror"
	"smartbuy-api/pkg/response"
)

// FeedProvider builds a household's feed. It never fails; errors degrade to an empty feed.
type FeedProvider interface {
	GetFeed(ctx context.Context, householdID, missionID string) []model.FeedItem
}

// FeedHandler serves the recommendation feed.
type FeedHandler struct {
	feed FeedProvider
}

// NewFeedHandler creates a new feed handler.
func NewFeedHandler(feed FeedProvider) *FeedHandler {
	return &FeedHandler{feed: feed}
}

// FeedResponse wraps the feed items.
type FeedResponse struct {
	HouseholdID string           `json:"household_id"`
	MissionID   string           `json:"mission_id,omitempty"`
	Items       []model.FeedItem `json:"items"`
}

// GetFeed handles GET /api/v1/feed?mission_id=
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	householdID := middleware.GetHouseholdID(r.Context())
	if householdID == "" {
		response.Error(w, apierror.Unauthorized("household context required"))
		return
	}
	missionID := strings.TrimSpace(r.URL.Query().Get("mission_id"))

	items := h.feed.GetFeed(r.Context(), householdID, missionID)
	if items == nil {
		items = []model.FeedItem{}
	}
	response.OK(w, FeedResponse{HouseholdID: householdID, MissionID: missionID, Items: items})
}
