package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nonyonah/hedwig/internal/clients"
	"github.com/nonyonah/hedwig/internal/models"
	"github.com/nonyonah/hedwig/internal/services"
)

// OfframpHandler serves the crypto-to-fiat flow on the dashboard API.
type OfframpHandler struct {
	offramp *services.OfframpService
}

// NewOfframpHandler creates an OfframpHandler.
func NewOfframpHandler(offramp *services.OfframpService) *OfframpHandler {
	return &OfframpHandler{offramp: offramp}
}

// QuoteRate returns the current conversion rate.
// GET /api/v1/offramp/rates?asset=USDC&fiat=NGN&amount=100
func (h *OfframpHandler) QuoteRate(c *gin.Context) {
	asset := strings.ToUpper(c.Query("asset"))
	fiat := strings.ToUpper(c.Query("fiat"))
	amount := c.DefaultQuery("amount", "1")
	if asset == "" || fiat == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "asset and fiat are required"})
		return
	}

	quote, err := h.offramp.QuoteRate(c.Request.Context(), asset, fiat, amount)
	if err != nil {
		logrus.WithError(err).Warn("offramp rate quote failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "rate unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote": quote})
}

// VerifyBankAccount resolves a destination account holder's name.
// POST /api/v1/offramp/verify-account
func (h *OfframpHandler) VerifyBankAccount(c *gin.Context) {
	var req struct {
		Institution   string `json:"institution" binding:"required"`
		AccountNumber string `json:"account_number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "institution and account_number are required"})
		return
	}

	verified, err := h.offramp.VerifyBankAccount(c.Request.Context(), clients.BankAccount{
		Institution:   req.Institution,
		AccountNumber: req.AccountNumber,
	})
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": verified})
}

// CreateOrder opens a settlement order and dispatches the crypto leg.
// POST /api/v1/offramp/orders
func (h *OfframpHandler) CreateOrder(c *gin.Context) {
	var req struct {
		Chain         string `json:"chain" binding:"required"`
		Amount        string `json:"amount" binding:"required"`
		Asset         string `json:"asset" binding:"required"`
		FiatCurrency  string `json:"fiat_currency" binding:"required"`
		Institution   string `json:"institution" binding:"required"`
		AccountNumber string `json:"account_number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required order fields"})
		return
	}

	order, err := h.offramp.CreateOrder(c.Request.Context(), services.CreateOrderInput{
		UserID:       authedUserID(c),
		Chain:        models.Chain(strings.ToLower(req.Chain)),
		Amount:       req.Amount,
		Asset:        strings.ToUpper(req.Asset),
		FiatCurrency: strings.ToUpper(req.FiatCurrency),
		BankAccount: clients.BankAccount{
			Institution:   req.Institution,
			AccountNumber: req.AccountNumber,
		},
	})
	if err != nil {
		logrus.WithError(err).WithField("user_id", authedUserID(c)).Warn("offramp order failed")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"order": order})
}

// ListOrders returns the user's off-ramp history. GET /api/v1/offramp/orders
func (h *OfframpHandler) ListOrders(c *gin.Context) {
	orders, err := h.offramp.ListOrders(c.Request.Context(), authedUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load orders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}
