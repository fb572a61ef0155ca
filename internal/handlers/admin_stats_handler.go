package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nonyonah/hedwig/internal/models"
	"github.com/nonyonah/hedwig/internal/services"
)

// AdminStatsHandler serves operator statistics and maintenance actions.
type AdminStatsHandler struct {
	db         *gorm.DB
	push       *services.PushService
	reconciler *services.ReconciliationService
}

// NewAdminStatsHandler creates an AdminStatsHandler.
func NewAdminStatsHandler(db *gorm.DB, push *services.PushService, reconciler *services.ReconciliationService) *AdminStatsHandler {
	return &AdminStatsHandler{db: db, push: push, reconciler: reconciler}
}

// Stats returns aggregate counts. GET /api/v1/admin/stats
func (h *AdminStatsHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	counts := gin.H{}

	type countable struct {
		name  string
		model interface{}
	}
	for _, entry := range []countable{
		{"users", &models.User{}},
		{"wallets", &models.Wallet{}},
		{"transactions", &models.TransactionRecord{}},
		{"invoices", &models.Invoice{}},
		{"payment_links", &models.PaymentLink{}},
		{"offramp_orders", &models.OfframpOrder{}},
	} {
		var n int64
		if err := h.db.WithContext(ctx).Model(entry.model).Count(&n).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
			return
		}
		counts[entry.name] = n
	}

	var pendingTx int64
	if err := h.db.WithContext(ctx).
		Model(&models.TransactionRecord{}).
		Where("status = ?", models.TxStatusPending).
		Count(&pendingTx).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}
	counts["pending_transactions"] = pendingTx
	counts["live_dashboard_connections"] = h.push.ConnectionCount()

	c.JSON(http.StatusOK, gin.H{"stats": counts})
}

// Reconcile runs a reconciliation sweep outside the regular schedule.
// POST /api/v1/admin/reconcile
func (h *AdminStatsHandler) Reconcile(c *gin.Context) {
	h.reconciler.RunOnce(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"reconciled": true})
}
