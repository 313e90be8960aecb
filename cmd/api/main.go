package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/sadeem-tech/fatoora-api/internal/application/invoicing"
	"github.com/sadeem-tech/fatoora-api/internal/infrastructure/certs"
	infrapdf "github.com/sadeem-tech/fatoora-api/internal/infrastructure/pdf"
	"github.com/sadeem-tech/fatoora-api/internal/infrastructure/postgres"
	"github.com/sadeem-tech/fatoora-api/internal/infrastructure/qr"
	"github.com/sadeem-tech/fatoora-api/internal/infrastructure/webhook"
	infrazatca "github.com/sadeem-tech/fatoora-api/internal/infrastructure/zatca"
	"github.com/sadeem-tech/fatoora-api/internal/infrastructure/zatca/signer"
	httpRouter "github.com/sadeem-tech/fatoora-api/internal/interfaces/http"
	"github.com/sadeem-tech/fatoora-api/pkg/config"
	"github.com/sadeem-tech/fatoora-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("load configuration: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("zatca_env", cfg.ZATCA.Environment).
		Msg("starting application")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("PostgreSQL connection")
	}
	defer pool.Close()

	invoiceRepo := postgres.NewInvoiceRepository(pool)
	logRepo := postgres.NewInvoiceLogRepository(pool)
	tenantRepo := postgres.NewTenantRepository(pool)

	// Exactly one concrete clearance client is active per deployment,
	// selected by the validated environment flag.
	creds := infrazatca.Credentials{Token: cfg.ZATCA.CSIDToken, Secret: cfg.ZATCA.CSIDSecret}
	var clearanceClient infrazatca.ClearanceClient
	if cfg.ZATCA.Environment == config.EnvProduction {
		clearanceClient = infrazatca.NewProductionClient(creds, cfg.ZATCA.SubmitTimeout)
	} else {
		clearanceClient = infrazatca.NewSandboxClient(creds, cfg.ZATCA.SubmitTimeout)
	}

	orchestrator := invoicing.NewOrchestrator(
		invoiceRepo,
		logRepo,
		infrazatca.NewXMLBuilderService(),
		signer.NewDigitalSignatureService(),
		certs.NewResolver(cfg.ZATCA.CertBasePath, cfg.ZATCA.CertPassword),
		clearanceClient,
		qr.NewRenderer(cfg.ZATCA.QRPixels),
		webhook.NewNotifier(tenantRepo, log),
		invoicing.Config{
			Environment: cfg.ZATCA.Environment,
			MaxXMLBytes: cfg.ZATCA.MaxXMLBytes,
			Retry: invoicing.RetryPolicy{
				MaxRetries:   cfg.ZATCA.MaxRetries,
				InitialDelay: cfg.ZATCA.RetryDelay,
			},
		},
		log,
	)

	queries := invoicing.NewQueries(invoiceRepo, logRepo, tenantRepo, infrapdf.NewMarotoPDFGenerator())

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 60,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI locally: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Fatoora API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "environment": cfg.ZATCA.Environment})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Orchestrator: orchestrator,
		Queries:      queries,
		TenantRepo:   tenantRepo,
		JWT:          cfg.JWT,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutdown signal received, closing server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}

	log.Info().Msg("application stopped")
}
