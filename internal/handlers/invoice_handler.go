package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nonyonah/hedwig/internal/models"
	"github.com/nonyonah/hedwig/internal/services"
	"github.com/nonyonah/hedwig/internal/templates"
)

// InvoiceHandler serves invoices and payment links on the dashboard API.
type InvoiceHandler struct {
	invoices *services.InvoiceService
}

// NewInvoiceHandler creates an InvoiceHandler.
func NewInvoiceHandler(invoices *services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// CreateInvoice creates a draft invoice. POST /api/v1/invoices
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req struct {
		ClientName  string                   `json:"client_name" binding:"required"`
		ClientEmail string                   `json:"client_email"`
		Items       []templates.InvoiceItem  `json:"items" binding:"required"`
		Asset       string                   `json:"asset" binding:"required"`
		Chain       string                   `json:"chain"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "client_name, items and asset are required"})
		return
	}

	invoice, err := h.invoices.CreateInvoice(c.Request.Context(), services.CreateInvoiceInput{
		UserID:      authedUserID(c),
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		Items:       req.Items,
		Asset:       strings.ToUpper(req.Asset),
		Chain:       models.Chain(strings.ToLower(req.Chain)),
	})
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"invoice": invoice})
}

// ListInvoices returns the user's invoices. GET /api/v1/invoices
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	invoices, err := h.invoices.ListInvoices(c.Request.Context(), authedUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load invoices"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices})
}

// GetInvoice returns one invoice. GET /api/v1/invoices/:id
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.invoices.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "invoice not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load invoice"})
		return
	}
	if invoice.UserID != authedUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "invoice not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": invoice})
}

// DownloadInvoicePDF renders and streams the invoice document.
// GET /api/v1/invoices/:id/pdf
func (h *InvoiceHandler) DownloadInvoicePDF(c *gin.Context) {
	invoice, err := h.invoices.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "invoice not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load invoice"})
		return
	}
	if invoice.UserID != authedUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "invoice not found"})
		return
	}

	pdf, err := h.invoices.RenderInvoicePDF(c.Request.Context(), invoice.ID)
	if err != nil {
		logrus.WithError(err).WithField("invoice_id", invoice.ID).Error("render invoice pdf")
		c.JSON(http.StatusBadGateway, gin.H{"error": "document rendering failed"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+invoice.Number+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// MarkInvoicePaid transitions an invoice to paid. POST /api/v1/invoices/:id/paid
func (h *InvoiceHandler) MarkInvoicePaid(c *gin.Context) {
	invoice, err := h.invoices.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil || invoice.UserID != authedUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "invoice not found"})
		return
	}

	updated, err := h.invoices.MarkInvoicePaid(c.Request.Context(), invoice.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update invoice"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": updated})
}

// CreatePaymentLink issues a shareable payment link. POST /api/v1/payment-links
func (h *InvoiceHandler) CreatePaymentLink(c *gin.Context) {
	var req struct {
		Chain  string `json:"chain" binding:"required"`
		Amount string `json:"amount" binding:"required"`
		Asset  string `json:"asset" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chain, amount and asset are required"})
		return
	}

	link, url, err := h.invoices.CreatePaymentLink(
		c.Request.Context(),
		authedUserID(c),
		models.Chain(strings.ToLower(req.Chain)),
		req.Amount,
		strings.ToUpper(req.Asset),
	)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"payment_link": link, "url": url})
}

// ListPaymentLinks returns the user's payment links. GET /api/v1/payment-links
func (h *InvoiceHandler) ListPaymentLinks(c *gin.Context) {
	links, err := h.invoices.ListPaymentLinks(c.Request.Context(), authedUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load payment links"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_links": links})
}

// GetPaymentLink resolves a link token for the public payment page.
// GET /pay/:token — unauthenticated; exposes only what a payer needs.
func (h *InvoiceHandler) GetPaymentLink(c *gin.Context) {
	link, err := h.invoices.GetPaymentLink(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "payment link not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load payment link"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"amount": link.Amount,
		"asset":  link.Asset,
		"chain":  link.Chain,
		"status": link.Status,
	})
}
