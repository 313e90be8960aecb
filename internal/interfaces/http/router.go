package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sadeem-tech/fatoora-api/internal/application/invoicing"
	"github.com/sadeem-tech/fatoora-api/internal/domain/repository"
	"github.com/sadeem-tech/fatoora-api/pkg/config"
)

// RouterDeps dependencies for the router.
type RouterDeps struct {
	Orchestrator *invoicing.Orchestrator
	Queries      *invoicing.Queries
	TenantRepo   repository.TenantRepository
	JWT          config.JWTConfig
}

// Router registers the API routes.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Onboarding and token issuance (public)
	tenantHandler := NewTenantHandler(deps.TenantRepo, deps.JWT)
	api.Post("/tenants", tenantHandler.Register)
	api.Post("/auth/token", tenantHandler.Token)

	// Protected routes (Bearer token carrying the tenant context)
	protected := api.Group("/", AuthMiddleware(deps.JWT.Secret))

	invoices := protected.Group("/invoices")
	invoiceHandler := NewInvoiceHandler(deps.Orchestrator, deps.Queries)
	invoices.Post("/", invoiceHandler.Submit)
	invoices.Get("/:number", invoiceHandler.GetByNumber)
	invoices.Get("/:number/status", invoiceHandler.GetStatus)
	invoices.Get("/:number/logs", invoiceHandler.GetLogs)
	invoices.Get("/:number/pdf", invoiceHandler.DownloadPDF)
}
