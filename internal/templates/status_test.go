package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStatusFoldsVendorVocabulary(t *testing.T) {
	assert.Equal(t, "completed", NormalizeStatus("fulfilled"))
	assert.Equal(t, "completed", NormalizeStatus("Settled"))
	assert.Equal(t, "completed", NormalizeStatus("  confirmed "))
	assert.Equal(t, "failed", NormalizeStatus("reverted"))
	assert.Equal(t, "failed", NormalizeStatus("cancelled"))
	assert.Equal(t, "expired", NormalizeStatus("expired"))
	assert.Equal(t, "refunded", NormalizeStatus("refunded"))
	assert.Equal(t, "pending", NormalizeStatus("processing"))
}

func TestNormalizeStatusUnknownDefaultsToPending(t *testing.T) {
	for _, raw := range []string{"", "garbage", "PAID_OUT_V2", "🤷"} {
		assert.Equal(t, "pending", NormalizeStatus(raw), "input %q", raw)
	}
}

func TestRenderStatusIsTotal(t *testing.T) {
	data := StatusData{Amount: "10", Asset: "USDC", Chain: "base"}

	// Every input, canonical or not, renders a non-empty message.
	for _, status := range []string{"fulfilled", "failed", "expired", "refunded", "pending", "", "nonsense"} {
		msg := RenderStatus(status, data)
		assert.NotEmpty(t, msg.Text, "status %q rendered empty", status)
	}
}

func TestRenderStatusCompletedCarriesExplorerButton(t *testing.T) {
	msg := RenderStatus("confirmed", StatusData{
		Amount:      "10",
		Asset:       "USDC",
		Chain:       "base",
		ExplorerURL: "https://basescan.org/tx/0xabc",
	})
	require.Len(t, msg.Buttons, 1)
	assert.Equal(t, "https://basescan.org/tx/0xabc", msg.Buttons[0].URL)

	// No explorer link, no dangling button.
	msg = RenderStatus("confirmed", StatusData{Amount: "10", Asset: "USDC", Chain: "base"})
	assert.Empty(t, msg.Buttons)
}

func TestRenderDeposit(t *testing.T) {
	msg := RenderDeposit(StatusData{Amount: "5", Asset: "SOL", Chain: "solana"}, "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	assert.Contains(t, msg.Text, "5 SOL")
	assert.Contains(t, msg.Text, "solana")
	assert.Contains(t, msg.Text, "9xQeWv")
	assert.NotContains(t, msg.Text, "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")

	// Unknown sender still renders.
	msg = RenderDeposit(StatusData{Amount: "5", Asset: "SOL", Chain: "solana"}, "")
	assert.Contains(t, msg.Text, "5 SOL")
}

func TestRenderInvoiceHTML(t *testing.T) {
	html, err := RenderInvoiceHTML(InvoiceData{
		Number:     "INV-2026-0001",
		IssuedAt:   "1 Sep 2026",
		ClientName: "Acme Corp",
		Items: []InvoiceItem{
			{Description: "Design work", Quantity: "1", UnitPrice: "500", Amount: "500"},
		},
		Total:      "500",
		Asset:      "USDC",
		Chain:      "base",
		PayAddress: "0x52908400098527886E0F7030069857D2E4169EE7",
	})
	require.NoError(t, err)
	assert.Contains(t, html, "INV-2026-0001")
	assert.Contains(t, html, "Acme Corp")
	assert.Contains(t, html, "Design work")
	assert.Contains(t, html, "500 USDC")
	assert.Contains(t, html, "0x52908400098527886E0F7030069857D2E4169EE7")
}

func TestRenderInvoiceHTMLEscapesClientInput(t *testing.T) {
	html, err := RenderInvoiceHTML(InvoiceData{
		Number:     "INV-2026-0002",
		ClientName: "<script>alert(1)</script>",
		Items:      []InvoiceItem{{Description: "x", Amount: "1"}},
		Total:      "1",
		Asset:      "USDC",
		Chain:      "base",
	})
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>alert(1)</script>")
}
