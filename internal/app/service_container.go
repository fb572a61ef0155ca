package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/nonyonah/hedwig/internal/clients"
	"github.com/nonyonah/hedwig/internal/config"
	"github.com/nonyonah/hedwig/internal/db"
	"github.com/nonyonah/hedwig/internal/handlers"
	"github.com/nonyonah/hedwig/internal/middleware"
	"github.com/nonyonah/hedwig/internal/repository"
	"github.com/nonyonah/hedwig/internal/router"
	"github.com/nonyonah/hedwig/internal/services"
	"github.com/nonyonah/hedwig/internal/utils"
)

// Container owns every constructed dependency. Construction is explicit and
// ordered: clients, repositories, services, handlers.
type Container struct {
	Config   *config.Config
	DB       *gorm.DB
	Registry *utils.ChainRegistry

	Telegram  *clients.TelegramClient
	Custody   *clients.CustodyClient
	EVMRPC    *clients.EVMRPCClient
	SolanaRPC *clients.SolanaRPCClient
	NATS      *clients.NATSClient

	Push           *services.PushService
	Wallets        *services.WalletService
	Balances       *services.BalanceService
	Transfers      *services.TransferService
	Intents        *services.IntentService
	Invoices       *services.InvoiceService
	Offramp        *services.OfframpService
	Notifications  *services.NotificationService
	Reconciliation *services.ReconciliationService

	Handlers router.Handlers
}

// New constructs the full dependency graph. NATS is optional: an empty URL
// disables event publishing without failing startup.
func New(cfg *config.Config) (*Container, error) {
	database, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	registry := utils.NewChainRegistry()

	var nats *clients.NATSClient
	if cfg.NATS.URL != "" {
		nats, err = clients.NewNATSClient(cfg.NATS)
		if err != nil {
			logrus.WithError(err).Warn("event bus unavailable, continuing without it")
			nats = nil
		}
	}

	telegram := clients.NewTelegramClient(cfg.Telegram.BotToken)
	custody := clients.NewCustodyClient(cfg.Custody, cfg.CustodyTimeout())
	evmRPC := clients.NewEVMRPCClient(registry)
	solanaEndpoint, err := registry.RPCEndpoint("solana")
	if err != nil {
		return nil, fmt.Errorf("solana rpc endpoint: %w", err)
	}
	solanaRPC := clients.NewSolanaRPCClient(solanaEndpoint)
	llm := clients.NewLLMClient(cfg.LLM)
	offrampClient := clients.NewOfframpClient(cfg.Offramp)
	renderer := clients.NewRendererClient(cfg.Renderer.BaseURL, cfg.RenderTimeout())

	users := repository.NewUserRepository(database)
	walletRepo := repository.NewWalletRepository(database)
	transactions := repository.NewTransactionRepository(database)
	sessions := repository.NewSessionRepository(database)
	invoiceRepo := repository.NewInvoiceRepository(database)
	linkRepo := repository.NewPaymentLinkRepository(database)
	offrampRepo := repository.NewOfframpRepository(database)

	push := services.NewPushService()
	wallets := services.NewWalletService(walletRepo, custody, registry)
	balances := services.NewBalanceService(evmRPC, solanaRPC, wallets, registry)
	transfers := services.NewTransferService(
		custody, solanaRPC, wallets, transactions, registry,
		nats, push, cfg.Dispatch.MaxAttempts, cfg.DispatchRetryDelay(), cfg.DispatchTimeout(),
	)
	intents := services.NewIntentService(llm, sessions)
	invoices := services.NewInvoiceService(invoiceRepo, linkRepo, wallets, renderer, cfg.Server.PublicURL)
	offramp := services.NewOfframpService(offrampClient, offrampRepo, transfers, nats)
	notifications := services.NewNotificationService(walletRepo, users, transactions, telegram, registry, nats)
	reconciliation := services.NewReconciliationService(
		transactions, evmRPC, solanaRPC, registry, nats, push,
		time.Minute, 2*time.Minute, time.Hour,
	)

	auth := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret)
	adminAuth := middleware.NewAdminAuthMiddleware(cfg.Admin)

	checkOrigin := func(r *http.Request) bool {
		return router.OriginAllowed(cfg, r.Header.Get("Origin"))
	}

	h := router.Handlers{
		Telegram: handlers.NewTelegramWebhookHandler(
			telegram, users, intents, wallets, balances, transfers, invoices, offramp,
			cfg.Server.PublicURL,
		),
		CustodyWebhook: handlers.NewCustodyWebhookHandler(notifications),
		OfframpWebhook: handlers.NewOfframpWebhookHandler(offramp),
		Dashboard:      handlers.NewDashboardHandler(wallets, balances, transfers, transactions),
		Invoices:       handlers.NewInvoiceHandler(invoices),
		Offramp:        handlers.NewOfframpHandler(offramp),
		WebSocket:      handlers.NewWebSocketHandler(push, checkOrigin),
		AdminStats:     handlers.NewAdminStatsHandler(database, push, reconciliation),
		Auth:           auth,
		AdminAuth:      adminAuth,
	}

	return &Container{
		Config:         cfg,
		DB:             database,
		Registry:       registry,
		Telegram:       telegram,
		Custody:        custody,
		EVMRPC:         evmRPC,
		SolanaRPC:      solanaRPC,
		NATS:           nats,
		Push:           push,
		Wallets:        wallets,
		Balances:       balances,
		Transfers:      transfers,
		Intents:        intents,
		Invoices:       invoices,
		Offramp:        offramp,
		Notifications:  notifications,
		Reconciliation: reconciliation,
		Handlers:       h,
	}, nil
}

// Cleanup releases held connections. Safe to call once during shutdown.
func (c *Container) Cleanup() {
	c.Reconciliation.Stop()
	c.EVMRPC.Close()
	if c.NATS != nil {
		c.NATS.Close()
	}
	if sqlDB, err := c.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logrus.WithError(err).Warn("close database")
		}
	}
}
