package http

import (
	"time"

	"github.com/arc-invoice/backend/internal/config"
	"github.com/arc-invoice/backend/internal/http/handlers"
	"github.com/arc-invoice/backend/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth      *handlers.AuthHandler
	Invoice   *handlers.InvoiceHandler
	Signature *handlers.SignatureHandler
	Proof     *handlers.ProofHandler
	Milestone *handlers.MilestoneHandler
	Dispute   *handlers.DisputeHandler
	Escrow    *handlers.EscrowHandler
	WSHub     *handlers.WSHub
}

func SetupRouter(app *fiber.App, cfg *config.Config, log *zap.Logger, rdb *redis.Client, h Handlers) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")

	api.Use(middleware.RateLimitMiddleware(rdb, "api", cfg.RateLimitPerMinute, time.Minute))

	// Auth (public)
	authLimit := middleware.RateLimitMiddleware(rdb, "auth", cfg.AuthRateLimitPerMinute, time.Minute)
	api.Post("/auth/nonce", authLimit, h.Auth.Nonce)
	api.Post("/auth/wallet", authLimit, h.Auth.WalletAuth)

	api.Get("/terms/templates", handlers.ListTemplates)

	// Pay-link surface: the payer may not have a session yet.
	api.Get("/invoices/:id/terms", h.Invoice.GetTerms)
	api.Post("/invoices/:id/sign", h.Signature.SignTerms)
	api.Get("/invoices/:id/signatures", h.Signature.ListSignatures)
	api.Get("/invoices/:id/deliverable-proofs", h.Proof.ListProofs)
	api.Get("/invoices/:id/escrow", h.Escrow.GetEscrow)
	api.Get("/invoices/:id/milestones", h.Milestone.ListMilestones)
	api.Patch("/invoices/:id/milestones/:milestoneId",
		middleware.OptionalAuthMiddleware(cfg, log), h.Milestone.UpdateMilestone)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	protected.Get("/invoices", h.Invoice.ListInvoices)
	protected.Post("/invoices", h.Invoice.CreateInvoice)
	protected.Get("/invoices/:id", h.Invoice.GetInvoice)
	protected.Get("/invoices/:id/audit", h.Invoice.GetAuditTrail)
	protected.Post("/invoices/:id/deliverable-proofs", h.Proof.SubmitProof)
	protected.Post("/invoices/:id/escrow", h.Escrow.AttachEscrow)
	protected.Get("/invoices/:id/disputes", h.Dispute.ListDisputes)
	protected.Post("/invoices/:id/disputes", h.Dispute.OpenDispute)
	protected.Put("/invoices/:id/disputes/:disputeId/arbitration", h.Dispute.LinkArbitration)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(h.WSHub.HandleWS))
}
