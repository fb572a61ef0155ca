package templates

import (
	"bytes"
	"fmt"
	"html/template"
)

// InvoiceItem is one billable line on an invoice.
type InvoiceItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Amount      string `json:"amount"`
}

// InvoiceData carries the values interpolated into the invoice document.
type InvoiceData struct {
	Number      string
	IssuedAt    string
	SenderName  string
	ClientName  string
	ClientEmail string
	Items       []InvoiceItem
	Total       string
	Asset       string
	Chain       string
	PayAddress  string
	PayURL      string
}

var invoiceTmpl = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { font-family: 'Helvetica Neue', Arial, sans-serif; color: #1a1a2e; margin: 48px; }
  .header { display: flex; justify-content: space-between; border-bottom: 2px solid #1a1a2e; padding-bottom: 16px; }
  .number { font-size: 22px; font-weight: 700; }
  table { width: 100%; border-collapse: collapse; margin-top: 32px; }
  th { text-align: left; font-size: 12px; text-transform: uppercase; color: #666; border-bottom: 1px solid #ddd; padding: 8px 4px; }
  td { padding: 10px 4px; border-bottom: 1px solid #eee; }
  .amount { text-align: right; }
  .total-row td { font-weight: 700; border-bottom: none; border-top: 2px solid #1a1a2e; }
  .pay { margin-top: 40px; padding: 16px; background: #f4f4f8; border-radius: 8px; font-size: 14px; }
  .muted { color: #666; font-size: 13px; }
</style>
</head>
<body>
  <div class="header">
    <div>
      <div class="number">Invoice {{.Number}}</div>
      <div class="muted">Issued {{.IssuedAt}}</div>
    </div>
    <div>
      <div>{{.SenderName}}</div>
    </div>
  </div>
  <p class="muted">Billed to: {{.ClientName}}{{if .ClientEmail}} &lt;{{.ClientEmail}}&gt;{{end}}</p>
  <table>
    <tr><th>Description</th><th>Qty</th><th class="amount">Unit price</th><th class="amount">Amount</th></tr>
    {{range .Items}}
    <tr>
      <td>{{.Description}}</td>
      <td>{{.Quantity}}</td>
      <td class="amount">{{.UnitPrice}}</td>
      <td class="amount">{{.Amount}}</td>
    </tr>
    {{end}}
    <tr class="total-row">
      <td colspan="3">Total due</td>
      <td class="amount">{{.Total}} {{.Asset}}</td>
    </tr>
  </table>
  <div class="pay">
    Pay {{.Total}} {{.Asset}} on {{.Chain}}{{if .PayAddress}} to <strong>{{.PayAddress}}</strong>{{end}}.
    {{if .PayURL}}<br>Or pay online: <a href="{{.PayURL}}">{{.PayURL}}</a>{{end}}
  </div>
</body>
</html>`))

// RenderInvoiceHTML produces the printable invoice document.
func RenderInvoiceHTML(data InvoiceData) (string, error) {
	var buf bytes.Buffer
	if err := invoiceTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render invoice template: %w", err)
	}
	return buf.String(), nil
}
