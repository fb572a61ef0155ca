// Package templates maps normalized status values to user-facing chat
// messages. The mapping is total: any input, including garbage, renders.
package templates

import (
	"fmt"
	"strings"
)

// Message is a rendered chat reply with optional action buttons.
type Message struct {
	Text    string
	Buttons []Button
}

// Button is one tappable action attached to a message.
type Button struct {
	Label string
	URL   string
	Data  string
}

// statusAliases folds vendor status vocabulary onto the canonical set.
var statusAliases = map[string]string{
	"fulfilled":  "completed",
	"settled":    "completed",
	"delivered":  "completed",
	"success":    "completed",
	"confirmed":  "completed",
	"validated":  "completed",
	"failed":     "failed",
	"reverted":   "failed",
	"cancelled":  "failed",
	"expired":    "expired",
	"refunded":   "refunded",
	"pending":    "pending",
	"processing": "pending",
	"initiated":  "pending",
}

// NormalizeStatus folds a raw vendor status onto the canonical vocabulary.
// Unknown values normalize to "pending" so the user always gets a sane
// in-progress message rather than nothing.
func NormalizeStatus(raw string) string {
	if canonical, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return canonical
	}
	return "pending"
}

// StatusData carries the values interpolated into status messages.
type StatusData struct {
	Amount      string
	Asset       string
	Chain       string
	Recipient   string
	ExplorerURL string
}

// RenderStatus renders the user-facing message for a transaction status.
func RenderStatus(status string, data StatusData) Message {
	switch NormalizeStatus(status) {
	case "completed":
		msg := Message{
			Text: fmt.Sprintf("✅ Sent %s %s on %s.", data.Amount, data.Asset, data.Chain),
		}
		if data.ExplorerURL != "" {
			msg.Buttons = append(msg.Buttons, Button{Label: "View on explorer", URL: data.ExplorerURL})
		}
		return msg
	case "failed":
		return Message{
			Text: fmt.Sprintf("❌ Your %s %s transfer didn't go through. Nothing left your wallet — you can try again.", data.Amount, data.Asset),
			Buttons: []Button{
				{Label: "Try again", Data: "retry_transfer"},
			},
		}
	case "expired":
		return Message{
			Text: "⌛ That request expired before it could complete. Start a new one when you're ready.",
		}
	case "refunded":
		return Message{
			Text: fmt.Sprintf("↩️ Your %s %s was refunded to your wallet.", data.Amount, data.Asset),
		}
	default: // pending and anything unknown
		return Message{
			Text: fmt.Sprintf("⏳ Your %s %s transfer is in progress. I'll let you know when it confirms.", data.Amount, data.Asset),
		}
	}
}

// RenderDeposit renders the incoming-transfer notification.
func RenderDeposit(data StatusData, sender string) Message {
	text := fmt.Sprintf("💰 You received %s %s on %s", data.Amount, data.Asset, data.Chain)
	if sender != "" {
		text += fmt.Sprintf(" from %s", shorten(sender))
	}
	text += "."
	msg := Message{Text: text}
	if data.ExplorerURL != "" {
		msg.Buttons = append(msg.Buttons, Button{Label: "View on explorer", URL: data.ExplorerURL})
	}
	return msg
}

func shorten(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
