package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"tixgate/internal/cache"
	errs "tixgate/internal/errors"
	"tixgate/internal/models"
	"tixgate/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	services     *service.Services
	tiers        service.TierStore
	valkeyClient *cache.ValkeyClient
}

func NewHandlers(services *service.Services, tiers service.TierStore, valkeyClient *cache.ValkeyClient) *Handlers {
	return &Handlers{
		services:     services,
		tiers:        tiers,
		valkeyClient: valkeyClient,
	}
}

// writeError maps the core error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrInsufficientCapacity):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrProviderUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable, retry later"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// Tier handlers

// CreateTier - POST /api/tiers
func (h *Handlers) CreateTier(c *gin.Context) {
	var req models.CreateTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must be a non-negative decimal"})
		return
	}

	tier := &models.TicketTier{
		EventID:  req.EventID,
		Name:     req.Name,
		Price:    price,
		Capacity: req.Capacity,
	}

	if err := h.tiers.Create(c.Request.Context(), tier); err != nil {
		slog.Error("Failed to create tier", "error", err)
		writeError(c, err)
		return
	}

	if h.valkeyClient != nil {
		h.valkeyClient.InvalidateTierAvailability(c.Request.Context(), req.EventID)
	}

	c.JSON(http.StatusCreated, models.CreateTierResponse{ID: tier.ID})
}

// GetTier - GET /api/tiers/:id
func (h *Handlers) GetTier(c *gin.Context) {
	tier, err := h.tiers.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		slog.Error("Failed to get tier", "error", err)
		writeError(c, err)
		return
	}
	if tier == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tier not found"})
		return
	}

	c.JSON(http.StatusOK, toAvailability(tier))
}

// ListTiers - GET /api/tiers?event_id=
// Availability view of an event's tiers, served from the Valkey cache when
// warm.
func (h *Handlers) ListTiers(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Query("event_id"), 10, 64)
	if err != nil || eventID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event_id is required"})
		return
	}

	if h.valkeyClient != nil {
		rawJSON, err := h.valkeyClient.GetTierAvailabilityRaw(c.Request.Context(), eventID)
		if err == nil {
			c.Data(http.StatusOK, "application/json", rawJSON)
			return
		}
	}

	tiers, err := h.tiers.GetByEventID(c.Request.Context(), eventID)
	if err != nil {
		slog.Error("Failed to list tiers", "error", err)
		writeError(c, err)
		return
	}

	response := make([]models.TierAvailabilityResponse, len(tiers))
	for i := range tiers {
		response[i] = toAvailability(&tiers[i])
	}

	if h.valkeyClient != nil {
		h.valkeyClient.SetTierAvailability(c.Request.Context(), eventID, response)
	}

	c.JSON(http.StatusOK, response)
}

func toAvailability(tier *models.TicketTier) models.TierAvailabilityResponse {
	return models.TierAvailabilityResponse{
		ID:            tier.ID,
		EventID:       tier.EventID,
		Name:          tier.Name,
		Price:         tier.Price,
		Capacity:      tier.Capacity,
		CommittedSold: tier.CommittedSold,
		Available:     tier.Available(),
	}
}
