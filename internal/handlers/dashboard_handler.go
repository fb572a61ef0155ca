package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nonyonah/hedwig/internal/middleware"
	"github.com/nonyonah/hedwig/internal/models"
	"github.com/nonyonah/hedwig/internal/repository"
	"github.com/nonyonah/hedwig/internal/services"
)

// DashboardHandler serves the authenticated dashboard API: wallets,
// balances, transfers, and transaction history.
type DashboardHandler struct {
	wallets      *services.WalletService
	balances     *services.BalanceService
	transfers    *services.TransferService
	transactions repository.TransactionRepository
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(
	wallets *services.WalletService,
	balances *services.BalanceService,
	transfers *services.TransferService,
	transactions repository.TransactionRepository,
) *DashboardHandler {
	return &DashboardHandler{
		wallets:      wallets,
		balances:     balances,
		transfers:    transfers,
		transactions: transactions,
	}
}

func authedUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserID)
}

// ListWallets returns the user's wallets. GET /api/v1/wallets
func (h *DashboardHandler) ListWallets(c *gin.Context) {
	wallets, err := h.wallets.List(c.Request.Context(), authedUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load wallets"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallets": wallets})
}

// CreateWallet provisions a wallet on one chain. POST /api/v1/wallets
// Creating a wallet the user already has returns the existing one.
func (h *DashboardHandler) CreateWallet(c *gin.Context) {
	var req struct {
		Chain string `json:"chain" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chain is required"})
		return
	}

	wallet, err := h.wallets.GetOrCreate(c.Request.Context(), authedUserID(c), models.Chain(strings.ToLower(req.Chain)))
	if err != nil {
		logrus.WithError(err).WithField("chain", req.Chain).Error("dashboard wallet creation")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallet": wallet})
}

// ListBalances returns live balances across the user's wallets.
// GET /api/v1/balances
func (h *DashboardHandler) ListBalances(c *gin.Context) {
	balances, err := h.balances.UserBalances(c.Request.Context(), authedUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load balances"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balances": balances})
}

// CreateTransfer dispatches a transfer. POST /api/v1/transfers
func (h *DashboardHandler) CreateTransfer(c *gin.Context) {
	var req struct {
		Chain     string `json:"chain" binding:"required"`
		Recipient string `json:"recipient" binding:"required"`
		Amount    string `json:"amount" binding:"required"`
		Asset     string `json:"asset" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chain, recipient, amount and asset are required"})
		return
	}

	result, err := h.transfers.Send(c.Request.Context(), services.TransferRequest{
		UserID:    authedUserID(c),
		Chain:     models.Chain(strings.ToLower(req.Chain)),
		Recipient: req.Recipient,
		Amount:    req.Amount,
		Asset:     strings.ToUpper(req.Asset),
		Action:    models.ActionSend,
	})
	if err != nil {
		logrus.WithError(err).WithField("user_id", authedUserID(c)).Warn("dashboard transfer failed")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"transfer": result})
}

// ListTransactions returns recent transaction records, newest first.
// GET /api/v1/transactions?limit=N
func (h *DashboardHandler) ListTransactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	txs, err := h.transactions.ListByUser(c.Request.Context(), authedUserID(c), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// GetTransaction returns one transaction record. GET /api/v1/transactions/:id
func (h *DashboardHandler) GetTransaction(c *gin.Context) {
	tx, err := h.transactions.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transaction"})
		return
	}
	if tx.UserID != authedUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}
