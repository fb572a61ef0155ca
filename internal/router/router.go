package router

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nonyonah/hedwig/internal/config"
	"github.com/nonyonah/hedwig/internal/handlers"
	"github.com/nonyonah/hedwig/internal/middleware"
	"github.com/nonyonah/hedwig/internal/utils"
)

// Handlers bundles everything the router wires up.
type Handlers struct {
	Telegram       *handlers.TelegramWebhookHandler
	CustodyWebhook *handlers.CustodyWebhookHandler
	OfframpWebhook *handlers.OfframpWebhookHandler
	Dashboard      *handlers.DashboardHandler
	Invoices       *handlers.InvoiceHandler
	Offramp        *handlers.OfframpHandler
	WebSocket      *handlers.WebSocketHandler
	AdminStats     *handlers.AdminStatsHandler

	Auth      *middleware.AuthMiddleware
	AdminAuth *middleware.AdminAuthMiddleware
}

// New builds the gin engine with all routes registered.
func New(cfg *config.Config, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(cfg))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Inbound vendor webhooks. Unauthenticated by design: the bot token in
	// the Telegram URL path and vendor signatures are the trust boundary.
	r.POST("/webhook/telegram", h.Telegram.HandleUpdate)
	r.GET("/webhook/telegram", h.Telegram.Status)
	r.POST("/webhook/custody", h.CustodyWebhook.HandleEvent)
	r.POST("/webhook/offramp", h.OfframpWebhook.HandleEvent)

	// Public payment page data.
	r.GET("/pay/:token", h.Invoices.GetPaymentLink)

	api := r.Group("/api/v1")
	api.Use(h.Auth.RequireAuth())
	{
		api.GET("/wallets", h.Dashboard.ListWallets)
		api.POST("/wallets", h.Dashboard.CreateWallet)
		api.GET("/balances", h.Dashboard.ListBalances)
		api.POST("/transfers", h.Dashboard.CreateTransfer)
		api.GET("/transactions", h.Dashboard.ListTransactions)
		api.GET("/transactions/:id", h.Dashboard.GetTransaction)

		api.POST("/invoices", h.Invoices.CreateInvoice)
		api.GET("/invoices", h.Invoices.ListInvoices)
		api.GET("/invoices/:id", h.Invoices.GetInvoice)
		api.GET("/invoices/:id/pdf", h.Invoices.DownloadInvoicePDF)
		api.POST("/invoices/:id/paid", h.Invoices.MarkInvoicePaid)

		api.POST("/payment-links", h.Invoices.CreatePaymentLink)
		api.GET("/payment-links", h.Invoices.ListPaymentLinks)

		api.GET("/offramp/rates", h.Offramp.QuoteRate)
		api.POST("/offramp/verify-account", h.Offramp.VerifyBankAccount)
		api.POST("/offramp/orders", h.Offramp.CreateOrder)
		api.GET("/offramp/orders", h.Offramp.ListOrders)

		api.GET("/admin/stats", h.AdminAuth.RequireAdmin(), h.AdminStats.Stats)
		api.POST("/admin/reconcile", h.AdminAuth.RequireAdmin(), h.AdminStats.Reconcile)
	}

	ws := r.Group("/ws")
	ws.Use(h.Auth.RequireAuth())
	ws.GET("", h.WebSocket.Connect)

	return r
}

// AllowedOrigins resolves the CORS origin list.
// Priority: environment variable > YAML config > allow all.
func AllowedOrigins(cfg *config.Config) []string {
	if env := utils.Env("CORS_ALLOWED_ORIGINS"); env != "" {
		parts := strings.Split(env, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
		if len(origins) > 0 {
			return origins
		}
	}
	if len(cfg.CORS.AllowedOrigins) > 0 {
		return cfg.CORS.AllowedOrigins
	}
	return []string{"*"}
}

// OriginAllowed reports whether a browser origin may connect. Shared between
// the CORS middleware and the WebSocket upgrader.
func OriginAllowed(cfg *config.Config, origin string) bool {
	allowed := AllowedOrigins(cfg)
	if len(allowed) == 1 && allowed[0] == "*" {
		return true
	}
	for _, a := range allowed {
		if a == origin {
			return true
		}
	}
	return false
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowed := AllowedOrigins(cfg)

		if len(allowed) == 1 && allowed[0] == "*" {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" && OriginAllowed(cfg, origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}

		if cfg.CORS.AllowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		maxAge := cfg.CORS.MaxAge
		if maxAge <= 0 {
			maxAge = 3600
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Admin-Password, X-Admin-OTP")
		c.Header("Access-Control-Max-Age", strconv.Itoa(maxAge))

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
