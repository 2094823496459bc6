package app

import (
	"net/http"

	"tunesplit-backend/internal/auth"
	"tunesplit-backend/internal/catalog"
	"tunesplit-backend/internal/config"
	"tunesplit-backend/internal/database"
	"tunesplit-backend/internal/events"
	"tunesplit-backend/internal/health"
	"tunesplit-backend/internal/ledger"
	"tunesplit-backend/internal/middleware"
	"tunesplit-backend/internal/payouts"
	"tunesplit-backend/internal/personas"
	"tunesplit-backend/internal/resolution"
	"tunesplit-backend/internal/splits"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CreateApp builds the Fiber app with all global middleware and route
// registration. Returns DB and Redis handles for startup checks.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	// CORS (before session)
	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))

	// Session (Redis)
	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.Env == "production",
	}
	sessionHandler, rdb, err := middleware.Session(sessionCfg)
	if err != nil {
		return nil, nil, nil, err
	}
	app.Use(sessionHandler)

	// Tracing + route logger
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	// Health (no auth)
	healthHandlers := &health.Handlers{DB: db, Rdb: rdb}
	app.Get("/health/json", healthHandlers.JSON)

	// Auth (no auth middleware)
	var accountFinder auth.AccountFinder
	if db != nil {
		accountFinder = &auth.GormAccountFinder{DB: db}
	}
	authHandlers := &auth.Handlers{AccountFinder: accountFinder, Rdb: rdb, Config: sessionCfg}
	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/login", authHandlers.Login)
	authGroup.Get("/me", authHandlers.Me)
	authGroup.Delete("/logout", authHandlers.Logout)

	// --- Protected modules (auth required) ---
	if db != nil {
		publisher := &events.Publisher{Rdb: rdb}
		catalogService := &catalog.Service{DB: db}
		personaService := &personas.Service{DB: db, Events: publisher}
		ledgerService := &ledger.Service{DB: db, Personas: personaService, Catalog: catalogService, Events: publisher}
		resolver := &splits.Resolver{DB: db, Personas: personaService}
		resolutionService := &resolution.Service{DB: db, Catalog: catalogService, Events: publisher, ClaimBaseURL: cfg.ClaimBaseURL}
		payoutService := &payouts.Service{
			DB:       db,
			Executor: &payouts.HTTPClient{BaseURL: cfg.PaymentAPIURL, APIKey: cfg.PaymentAPIKey},
			Events:   publisher,
		}

		// Personas module
		personaHandlers := &personas.Handlers{Service: personaService}
		personaGroup := app.Group("/api/v1/personas", middleware.RequireAuth())
		personaGroup.Post("/create-persona", personaHandlers.CreatePersona)
		personaGroup.Get("/view-personas", personaHandlers.ViewPersonas)
		personaGroup.Patch("/set-default", personaHandlers.SetDefault)
		personaGroup.Post("/assign-wallet", personaHandlers.AssignWallet)
		personaGroup.Delete("/remove-persona/:persona_id", personaHandlers.RemovePersona)

		// Splits module
		splitHandlers := &splits.Handlers{Resolver: resolver, Catalog: catalogService}
		splitGroup := app.Group("/api/v1/splits", middleware.RequireAuth())
		splitGroup.Post("/resolve", splitHandlers.Resolve)

		// Ledger module
		ledgerHandlers := &ledger.Handlers{Service: ledgerService}
		earningGroup := app.Group("/api/v1/earnings", middleware.RequireAuth())
		earningGroup.Post("/record", ledgerHandlers.RecordEarning)
		earningGroup.Post("/record-sale", ledgerHandlers.RecordSale)
		personaGroup.Get("/:persona_id/balance", ledgerHandlers.GetBalance)
		app.Get("/api/v1/treasury/holdings", middleware.RequireAuth(), ledgerHandlers.TreasuryHoldings)

		// Resolution module: redeem is public (the invited collaborator is a
		// fresh session completing onboarding), the rest owner-only.
		resolutionHandlers := &resolution.Handlers{Service: resolutionService}
		app.Post("/api/v1/resolution/redeem", resolutionHandlers.RedeemClaim)
		resolutionGroup := app.Group("/api/v1/resolution", middleware.RequireAuth())
		resolutionGroup.Post("/claim-link", resolutionHandlers.GenerateClaimLink)
		resolutionGroup.Post("/link", resolutionHandlers.Link)
		resolutionGroup.Post("/merge", resolutionHandlers.Merge)

		// Payouts module
		payoutHandlers := &payouts.Handlers{Service: payoutService}
		payoutGroup := app.Group("/api/v1/payouts", middleware.RequireAuth())
		payoutGroup.Post("/withdraw", payoutHandlers.Withdraw)
		payoutGroup.Get("/history", payoutHandlers.History)
		payoutGroup.Post("/reconcile", payoutHandlers.Reconcile)
	}

	return app, db, rdb, nil
}

// Handler returns an http.Handler for serverless deployment.
func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
