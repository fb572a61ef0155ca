package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nonyonah/hedwig/internal/metrics"
	"github.com/nonyonah/hedwig/internal/services"
)

// custodyWebhookPayload is the custody vendor's transaction event shape.
type custodyWebhookPayload struct {
	Type        string `json:"type"`
	Transaction struct {
		Hash    string `json:"hash"`
		Chain   string `json:"chain"`
		From    string `json:"from"`
		To      string `json:"to"`
		Amount  string `json:"amount"`
		Asset   string `json:"asset"`
		Status  string `json:"status"`
	} `json:"transaction"`
}

// CustodyWebhookHandler receives transaction events from the custody vendor.
type CustodyWebhookHandler struct {
	notifications *services.NotificationService
}

// NewCustodyWebhookHandler creates a CustodyWebhookHandler.
func NewCustodyWebhookHandler(notifications *services.NotificationService) *CustodyWebhookHandler {
	return &CustodyWebhookHandler{notifications: notifications}
}

// HandleEvent processes one custody event. POST /webhook/custody
// Only incoming-transfer events are acted on; everything else acks silently.
func (h *CustodyWebhookHandler) HandleEvent(c *gin.Context) {
	var payload custodyWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}

	if payload.Type != "transaction.received" || payload.Transaction.Hash == "" {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	err := h.notifications.HandleDeposit(c.Request.Context(), services.DepositEvent{
		ToAddress: payload.Transaction.To,
		From:      payload.Transaction.From,
		TxHash:    payload.Transaction.Hash,
		Chain:     payload.Transaction.Chain,
		Amount:    payload.Transaction.Amount,
		Asset:     payload.Transaction.Asset,
	})
	if err != nil {
		logrus.WithError(err).WithField("tx_hash", payload.Transaction.Hash).Error("handle deposit event")
		metrics.SwallowedErrors.WithLabelValues("custody_webhook").Inc()
		// Ack anyway; the reconciliation job covers the gap and a retry
		// storm from the vendor would not help.
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
