package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nonyonah/hedwig/internal/services"
)

// offrampWebhookPayload is the liquidity vendor's order event shape.
type offrampWebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

// OfframpWebhookHandler receives settlement order updates from the fiat
// liquidity vendor.
type OfframpWebhookHandler struct {
	offramp *services.OfframpService
}

// NewOfframpWebhookHandler creates an OfframpWebhookHandler.
func NewOfframpWebhookHandler(offramp *services.OfframpService) *OfframpWebhookHandler {
	return &OfframpWebhookHandler{offramp: offramp}
}

// HandleEvent processes one order update. POST /webhook/offramp
// Updates for unknown references ack with 200: the vendor shares one webhook
// across environments and redelivers on non-2xx.
func (h *OfframpWebhookHandler) HandleEvent(c *gin.Context) {
	var payload offrampWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}
	if payload.Data.Reference == "" {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	_, err := h.offramp.UpdateOrderStatus(c.Request.Context(), payload.Data.Reference, payload.Data.Status)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, gin.H{"ok": true})
			return
		}
		logrus.WithError(err).WithField("order_ref", payload.Data.Reference).Error("apply offramp update")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply update"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
