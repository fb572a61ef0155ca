package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nonyonah/hedwig/internal/clients"
	"github.com/nonyonah/hedwig/internal/metrics"
	"github.com/nonyonah/hedwig/internal/models"
	"github.com/nonyonah/hedwig/internal/services"
	"github.com/nonyonah/hedwig/internal/templates"
)

// telegramUpdate is the subset of the bot API update we act on.
type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From struct {
			FirstName string `json:"first_name"`
			Username  string `json:"username"`
		} `json:"from"`
		Text string `json:"text"`
	} `json:"message"`
}

// TelegramWebhookHandler receives bot updates and drives the conversation.
// The webhook always acks with 200: a non-2xx makes Telegram redeliver the
// same update, which would replay money movement. Failures are surfaced to
// the user in chat and counted instead.
type TelegramWebhookHandler struct {
	telegram  *clients.TelegramClient
	users     userResolver
	intents   *services.IntentService
	wallets   *services.WalletService
	balances  *services.BalanceService
	transfers *services.TransferService
	invoices  *services.InvoiceService
	offramp   *services.OfframpService
	publicURL string
}

// userResolver is the subset of the user repository the handler uses.
type userResolver interface {
	GetOrCreate(ctx context.Context, platform models.Platform, chatID, name string) (*models.User, error)
}

// NewTelegramWebhookHandler creates a TelegramWebhookHandler.
func NewTelegramWebhookHandler(
	telegram *clients.TelegramClient,
	users userResolver,
	intents *services.IntentService,
	wallets *services.WalletService,
	balances *services.BalanceService,
	transfers *services.TransferService,
	invoices *services.InvoiceService,
	offramp *services.OfframpService,
	publicURL string,
) *TelegramWebhookHandler {
	return &TelegramWebhookHandler{
		telegram:  telegram,
		users:     users,
		intents:   intents,
		wallets:   wallets,
		balances:  balances,
		transfers: transfers,
		invoices:  invoices,
		offramp:   offramp,
		publicURL: publicURL,
	}
}

// HandleUpdate processes one bot update. POST /webhook/telegram
func (h *TelegramWebhookHandler) HandleUpdate(c *gin.Context) {
	var update telegramUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		metrics.WebhookUpdates.WithLabelValues("malformed").Inc()
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	if update.Message == nil || strings.TrimSpace(update.Message.Text) == "" {
		metrics.WebhookUpdates.WithLabelValues("ignored").Inc()
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	ctx := c.Request.Context()
	chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
	text := strings.TrimSpace(update.Message.Text)

	user, err := h.users.GetOrCreate(ctx, models.PlatformTelegram, chatID, update.Message.From.FirstName)
	if err != nil {
		logrus.WithError(err).WithField("chat_id", chatID).Error("resolve chat user")
		metrics.SwallowedErrors.WithLabelValues("telegram_user").Inc()
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	reply := h.route(ctx, user, text)
	if reply.Text != "" {
		if err := h.telegram.SendMessage(ctx, chatID, reply.Text, toButtons(reply.Buttons)); err != nil {
			logrus.WithError(err).WithField("chat_id", chatID).Error("send chat reply")
			metrics.SwallowedErrors.WithLabelValues("telegram_send").Inc()
		}
	}

	metrics.WebhookUpdates.WithLabelValues("handled").Inc()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Status reports the registered webhook state. GET /webhook/telegram
func (h *TelegramWebhookHandler) Status(c *gin.Context) {
	info, err := h.telegram.GetWebhookInfo(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "webhook info unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"webhook": info})
}

// route picks the reply for one message: slash commands first, then the
// intent parser.
func (h *TelegramWebhookHandler) route(ctx context.Context, user *models.User, text string) templates.Message {
	if strings.HasPrefix(text, "/") {
		return h.handleCommand(ctx, user, text)
	}
	return h.handleFreeText(ctx, user, text)
}

func (h *TelegramWebhookHandler) handleFreeText(ctx context.Context, user *models.User, text string) templates.Message {
	turn, err := h.intents.HandleTurn(ctx, user.ID, text)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("intent turn failed")
		metrics.SwallowedErrors.WithLabelValues("intent").Inc()
		return templates.Message{Text: "Something went wrong on my side. Please try that again."}
	}
	if turn.Prompt != "" {
		return templates.Message{Text: turn.Prompt}
	}
	return h.execute(ctx, user, turn.Complete)
}

func (h *TelegramWebhookHandler) handleCommand(ctx context.Context, user *models.User, text string) templates.Message {
	fields := strings.Fields(text)
	switch strings.ToLower(fields[0]) {
	case "/start":
		return templates.Message{Text: fmt.Sprintf(
			"Hey %s! I'm your wallet assistant. I can create wallets, check balances, send tokens, cash out to your bank, and issue invoices.\n\nTry /wallet to get started, or just tell me what you need.",
			user.Name)}
	case "/help":
		return helpMessage()
	case "/wallet":
		chain := models.Chain("base")
		if len(fields) > 1 {
			chain = models.Chain(strings.ToLower(fields[1]))
		}
		return h.createWallet(ctx, user, chain)
	case "/balance":
		return h.renderBalances(ctx, user)
	case "/send":
		// The arguments go through the parser so slot filling can ask for
		// whatever is missing.
		args := strings.TrimSpace(strings.TrimPrefix(text, fields[0]))
		if args == "" {
			args = "send tokens"
		} else {
			args = "send " + args
		}
		return h.handleFreeText(ctx, user, args)
	case "/offramp":
		args := strings.TrimSpace(strings.TrimPrefix(text, fields[0]))
		if args == "" {
			args = "cash out to my bank"
		} else {
			args = "cash out " + args
		}
		return h.handleFreeText(ctx, user, args)
	case "/invoice":
		return templates.Message{
			Text: "Invoices are created from your dashboard, where you can add line items and download the PDF.",
			Buttons: []templates.Button{
				{Label: "Open dashboard", URL: h.publicURL + "/invoices"},
			},
		}
	default:
		return templates.Message{Text: "I don't know that command. Try /help."}
	}
}

// execute runs a completed intent.
func (h *TelegramWebhookHandler) execute(ctx context.Context, user *models.User, intent *services.ParsedIntent) templates.Message {
	switch intent.Name {
	case services.IntentSend:
		return h.executeSend(ctx, user, intent.Params)
	case services.IntentBalance:
		return h.renderBalances(ctx, user)
	case services.IntentPaymentLink:
		return h.executePaymentLink(ctx, user, intent.Params)
	case services.IntentOfframp:
		return h.executeOfframpQuote(ctx, user, intent.Params)
	case services.IntentInvoice:
		return templates.Message{
			Text: "Invoices are created from your dashboard, where you can add line items and download the PDF.",
			Buttons: []templates.Button{
				{Label: "Open dashboard", URL: h.publicURL + "/invoices"},
			},
		}
	case services.IntentHelp:
		return helpMessage()
	default:
		return templates.Message{Text: "I didn't catch that. I can send tokens, check balances, create payment links, and cash out to your bank. Try /help."}
	}
}

func (h *TelegramWebhookHandler) executeSend(ctx context.Context, user *models.User, params map[string]string) templates.Message {
	chain := models.Chain(strings.ToLower(params["chain"]))

	wallet, err := h.wallets.Get(ctx, user.ID, chain)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("resolve wallet for send")
		metrics.SwallowedErrors.WithLabelValues("send").Inc()
		return templates.Message{Text: "I couldn't look up your wallet just now. Please try again."}
	}
	if wallet == nil {
		return templates.Message{Text: fmt.Sprintf(
			"You don't have a %s wallet yet. Create one first with /wallet %s, then try the transfer again.",
			chain, chain)}
	}

	result, err := h.transfers.Send(ctx, services.TransferRequest{
		UserID:    user.ID,
		Chain:     chain,
		Recipient: params["recipient"],
		Amount:    params["amount"],
		Asset:     strings.ToUpper(params["asset"]),
		Action:    models.ActionSend,
	})
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("chat transfer failed")
		return templates.RenderStatus("failed", templates.StatusData{
			Amount: params["amount"],
			Asset:  strings.ToUpper(params["asset"]),
		})
	}

	msg := templates.RenderStatus("pending", templates.StatusData{
		Amount: params["amount"],
		Asset:  strings.ToUpper(params["asset"]),
		Chain:  string(chain),
	})
	if result.ExplorerURL != "" {
		msg.Buttons = append(msg.Buttons, templates.Button{Label: "View on explorer", URL: result.ExplorerURL})
	}
	return msg
}

func (h *TelegramWebhookHandler) executePaymentLink(ctx context.Context, user *models.User, params map[string]string) templates.Message {
	chain := models.Chain(strings.ToLower(params["chain"]))
	_, url, err := h.invoices.CreatePaymentLink(ctx, user.ID, chain, params["amount"], strings.ToUpper(params["asset"]))
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("chat payment link failed")
		return templates.Message{Text: "I couldn't create that payment link. Check the amount and try again."}
	}
	return templates.Message{
		Text: fmt.Sprintf("Here's your payment link for %s %s on %s:\n%s",
			params["amount"], strings.ToUpper(params["asset"]), chain, url),
	}
}

func (h *TelegramWebhookHandler) executeOfframpQuote(ctx context.Context, user *models.User, params map[string]string) templates.Message {
	asset := strings.ToUpper(params["asset"])
	fiat := strings.ToUpper(params["fiat_currency"])
	quote, err := h.offramp.QuoteRate(ctx, asset, fiat, params["amount"])
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("chat offramp quote failed")
		return templates.Message{Text: "I couldn't get a rate for that right now. Please try again in a moment."}
	}
	return templates.Message{
		Text: fmt.Sprintf(
			"Current rate: 1 %s = %s %s.\nTo cash out %s %s, add your bank details on the dashboard and I'll handle the rest.",
			asset, quote.Rate, fiat, params["amount"], asset),
		Buttons: []templates.Button{
			{Label: "Cash out", URL: h.publicURL + "/offramp"},
		},
	}
}

func (h *TelegramWebhookHandler) createWallet(ctx context.Context, user *models.User, chain models.Chain) templates.Message {
	wallet, err := h.wallets.GetOrCreate(ctx, user.ID, chain)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id": user.ID,
			"chain":   chain,
		}).Error("create wallet from chat")
		return templates.Message{Text: fmt.Sprintf("I couldn't set up a %s wallet. Supported networks: ethereum, base, polygon, bsc, arbitrum, solana.", chain)}
	}
	return templates.Message{
		Text: fmt.Sprintf("Your %s wallet is ready:\n`%s`\n\nSend funds to this address and I'll notify you when they arrive.", chain, wallet.Address),
	}
}

func (h *TelegramWebhookHandler) renderBalances(ctx context.Context, user *models.User) templates.Message {
	balances, err := h.balances.UserBalances(ctx, user.ID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("chat balance query")
		metrics.SwallowedErrors.WithLabelValues("balance").Inc()
		return templates.Message{Text: "I couldn't fetch your balances just now. Please try again."}
	}
	if len(balances) == 0 {
		return templates.Message{Text: "You don't have any wallets yet. Create one with /wallet."}
	}

	var b strings.Builder
	b.WriteString("Your balances:\n")
	for _, bal := range balances {
		fmt.Fprintf(&b, "• %s %s on %s\n", bal.Amount, bal.Asset, bal.Chain)
	}
	return templates.Message{Text: b.String()}
}

func helpMessage() templates.Message {
	return templates.Message{Text: strings.Join([]string{
		"Here's what I can do:",
		"• /wallet <network> — create a wallet (base, ethereum, polygon, bsc, arbitrum, solana)",
		"• /balance — show all balances",
		"• \"send 10 USDC to 0xabc... on base\" — transfer tokens",
		"• \"cash out 50 USDC to NGN\" — off-ramp to your bank",
		"• \"payment link for 25 USDC on base\" — request a payment",
	}, "\n")}
}

func toButtons(buttons []templates.Button) []clients.InlineButton {
	out := make([]clients.InlineButton, 0, len(buttons))
	for _, b := range buttons {
		out = append(out, clients.InlineButton{Text: b.Label, URL: b.URL, CallbackData: b.Data})
	}
	return out
}
