package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nonyonah/hedwig/internal/models"
	"github.com/nonyonah/hedwig/internal/repository"
	"github.com/nonyonah/hedwig/internal/templates"
)

// pdfRenderer is the subset of the renderer client the service uses.
type pdfRenderer interface {
	RenderPDF(ctx context.Context, html, fileName string) ([]byte, error)
}

// InvoiceService builds billing documents and shareable payment links.
type InvoiceService struct {
	invoices  repository.InvoiceRepository
	links     repository.PaymentLinkRepository
	wallets   *WalletService
	renderer  pdfRenderer
	publicURL string
}

// NewInvoiceService creates an InvoiceService. publicURL is the externally
// reachable base URL used when composing payment-link and PDF URLs.
func NewInvoiceService(
	invoices repository.InvoiceRepository,
	links repository.PaymentLinkRepository,
	wallets *WalletService,
	renderer pdfRenderer,
	publicURL string,
) *InvoiceService {
	return &InvoiceService{
		invoices:  invoices,
		links:     links,
		wallets:   wallets,
		renderer:  renderer,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// CreateInvoiceInput is a validated invoice draft.
type CreateInvoiceInput struct {
	UserID      string
	SenderName  string
	ClientName  string
	ClientEmail string
	Items       []templates.InvoiceItem
	Asset       string
	Chain       models.Chain
}

// CreateInvoice persists a draft invoice with a sequential per-user number.
// The total is the sum of the line amounts; items with unparseable amounts
// reject the whole draft.
func (s *InvoiceService) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*models.Invoice, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("invoice needs at least one line item")
	}

	total := new(big.Rat)
	for _, item := range in.Items {
		amount, ok := new(big.Rat).SetString(item.Amount)
		if !ok || amount.Sign() < 0 {
			return nil, fmt.Errorf("invalid line amount: %q", item.Amount)
		}
		total.Add(total, amount)
	}

	count, err := s.invoices.CountByUser(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("number invoice: %w", err)
	}
	number := fmt.Sprintf("INV-%s-%04d", time.Now().Format("2006"), count+1)

	items, err := json.Marshal(in.Items)
	if err != nil {
		return nil, err
	}

	invoice := &models.Invoice{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		Number:      number,
		ClientName:  in.ClientName,
		ClientEmail: in.ClientEmail,
		Items:       string(items),
		Amount:      formatRat(total),
		Asset:       in.Asset,
		Chain:       in.Chain,
		Status:      models.InvoiceStatusDraft,
		PDFURL:      "",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.invoices.Create(ctx, invoice); err != nil {
		return nil, fmt.Errorf("persist invoice: %w", err)
	}
	return invoice, nil
}

// RenderInvoicePDF renders the invoice document as PDF bytes. On the first
// successful render the invoice is stamped with its download URL and marked
// sent.
func (s *InvoiceService) RenderInvoicePDF(ctx context.Context, invoiceID string) ([]byte, error) {
	invoice, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	var items []templates.InvoiceItem
	if invoice.Items != "" {
		if err := json.Unmarshal([]byte(invoice.Items), &items); err != nil {
			return nil, fmt.Errorf("decode invoice items: %w", err)
		}
	}

	data := templates.InvoiceData{
		Number:      invoice.Number,
		IssuedAt:    invoice.CreatedAt.Format("2 Jan 2006"),
		ClientName:  invoice.ClientName,
		ClientEmail: invoice.ClientEmail,
		Items:       items,
		Total:       invoice.Amount,
		Asset:       invoice.Asset,
		Chain:       string(invoice.Chain),
	}
	if invoice.Chain != "" {
		wallet, err := s.wallets.Get(ctx, invoice.UserID, invoice.Chain)
		if err == nil && wallet != nil {
			data.PayAddress = wallet.Address
		}
	}

	html, err := templates.RenderInvoiceHTML(data)
	if err != nil {
		return nil, err
	}

	pdf, err := s.renderer.RenderPDF(ctx, html, invoice.Number+".pdf")
	if err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}

	if invoice.PDFURL == "" {
		invoice.PDFURL = fmt.Sprintf("%s/api/v1/invoices/%s/pdf", s.publicURL, invoice.ID)
		invoice.Status = models.InvoiceStatusSent
		invoice.UpdatedAt = time.Now()
		if err := s.invoices.Update(ctx, invoice); err != nil {
			logrus.WithError(err).WithField("invoice_id", invoice.ID).Error("stamp invoice pdf url")
		}
	}
	return pdf, nil
}

// MarkInvoicePaid transitions an invoice to paid.
func (s *InvoiceService) MarkInvoicePaid(ctx context.Context, invoiceID string) (*models.Invoice, error) {
	invoice, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	invoice.Status = models.InvoiceStatusPaid
	invoice.UpdatedAt = time.Now()
	if err := s.invoices.Update(ctx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

// GetInvoice fetches one invoice.
func (s *InvoiceService) GetInvoice(ctx context.Context, invoiceID string) (*models.Invoice, error) {
	return s.invoices.GetByID(ctx, invoiceID)
}

// ListInvoices returns the user's invoices, newest first.
func (s *InvoiceService) ListInvoices(ctx context.Context, userID string) ([]*models.Invoice, error) {
	return s.invoices.ListByUser(ctx, userID)
}

// CreatePaymentLink issues a shareable request-for-payment for a fixed
// amount of one asset on one chain.
func (s *InvoiceService) CreatePaymentLink(ctx context.Context, userID string, chain models.Chain, amount, asset string) (*models.PaymentLink, string, error) {
	if _, ok := new(big.Rat).SetString(amount); !ok {
		return nil, "", fmt.Errorf("invalid amount: %q", amount)
	}

	link := &models.PaymentLink{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     uuid.NewString(),
		Amount:    amount,
		Asset:     asset,
		Chain:     chain,
		Status:    models.PaymentLinkStatusOpen,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.links.Create(ctx, link); err != nil {
		return nil, "", fmt.Errorf("persist payment link: %w", err)
	}
	return link, s.PaymentLinkURL(link.Token), nil
}

// PaymentLinkURL composes the shareable URL for a link token.
func (s *InvoiceService) PaymentLinkURL(token string) string {
	return fmt.Sprintf("%s/pay/%s", s.publicURL, token)
}

// GetPaymentLink fetches one payment link by its token.
func (s *InvoiceService) GetPaymentLink(ctx context.Context, token string) (*models.PaymentLink, error) {
	return s.links.GetByToken(ctx, token)
}

// ListPaymentLinks returns the user's payment links, newest first.
func (s *InvoiceService) ListPaymentLinks(ctx context.Context, userID string) ([]*models.PaymentLink, error) {
	return s.links.ListByUser(ctx, userID)
}

// MarkPaymentLinkPaid transitions an open link to paid with the settling
// transaction hash. Marking an already-settled link is a no-op.
func (s *InvoiceService) MarkPaymentLinkPaid(ctx context.Context, token, txHash string) error {
	return s.links.MarkPaid(ctx, token, txHash)
}

// formatRat prints a rational total as a plain decimal string without
// trailing zeros.
func formatRat(r *big.Rat) string {
	out := r.FloatString(8)
	out = strings.TrimRight(out, "0")
	return strings.TrimRight(out, ".")
}
