package handlers

import (
	"log/slog"
	"net/http"

	"tixgate/internal/models"

	"github.com/gin-gonic/gin"
)

// Payment handlers

// CreatePayment - POST /api/payments
// Purchase: reserves capacity, creates the provider payment, returns the
// checkout URL.
func (h *Handlers) CreatePayment(c *gin.Context) {
	var req models.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	buyerID := c.GetString("buyer_id")

	response, err := h.services.Payments.Create(c.Request.Context(), buyerID, &req)
	if err != nil {
		slog.Error("Failed to create payment", "error", err, "tier_id", req.TierID)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// GetPayment - GET /api/payments/:id
func (h *Handlers) GetPayment(c *gin.Context) {
	payment, err := h.services.Payments.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// CancelPayment - PATCH /api/payments/cancel
func (h *Handlers) CancelPayment(c *gin.Context) {
	var req models.CancelPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payment, err := h.services.Payments.Cancel(c.Request.Context(), req.PaymentID)
	if err != nil {
		slog.Error("Failed to cancel payment", "error", err, "payment_id", req.PaymentID)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// OnPaymentUpdates - POST /api/payments/notifications
// Provider webhook. Only the payment id is read from the payload; the
// authoritative status is re-fetched. Responds 200 once processing is
// durable so the provider stops redelivering; a non-2xx tells it to retry.
func (h *Handlers) OnPaymentUpdates(c *gin.Context) {
	var notification models.PaymentNotificationPayload
	if err := c.ShouldBindJSON(&notification); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if notification.PaymentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paymentId is required"})
		return
	}

	err := h.services.Reconcile.HandleNotification(c.Request.Context(), notification.PaymentID)
	if err != nil {
		slog.Error("Failed to handle payment notification",
			"error", err, "external_ref", notification.PaymentID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to handle notification"})
		return
	}

	c.Status(http.StatusOK)
}

// NotifyPaymentCompleted - GET /api/payments/success
// Browser redirect target after a successful checkout. State is not changed
// here; the webhook is the status source.
func (h *Handlers) NotifyPaymentCompleted(c *gin.Context) {
	orderID := c.Query("orderId")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "orderId is required"})
		return
	}

	slog.Info("Buyer returned from successful checkout", "order_id", orderID)

	c.Status(http.StatusOK)
}

// NotifyPaymentFailed - GET /api/payments/fail
func (h *Handlers) NotifyPaymentFailed(c *gin.Context) {
	orderID := c.Query("orderId")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "orderId is required"})
		return
	}

	slog.Info("Buyer returned from failed checkout", "order_id", orderID)

	c.Status(http.StatusOK)
}
