package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ndewijer/fundval-backend/internal/api/handlers"
	custommiddleware "github.com/ndewijer/fundval-backend/internal/api/middleware"
	"github.com/ndewijer/fundval-backend/internal/config"
	"github.com/ndewijer/fundval-backend/internal/importer"
	"github.com/ndewijer/fundval-backend/internal/metrics"
	"github.com/ndewijer/fundval-backend/internal/service"
)

// Services bundles the service layer the router dispatches to.
type Services struct {
	System    *service.SystemService
	Account   *service.AccountService
	Fund      *service.FundService
	Position  *service.PositionService
	Ledger    *service.LedgerService
	Import    *service.ImportService
	Watchlist *service.WatchlistService
	// Broker is the pull-import source. Nil when no broker API is configured.
	Broker importer.Source
}

// NewRouter creates and configures the HTTP router
func NewRouter(svc Services, cfg *config.Config, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger(log))
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer)

	// Scraped server to server, so it stays outside CORS.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(custommiddleware.NewCORS(cfg.CORS))

		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(svc.System)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		r.Route("/account", func(r chi.Router) {
			accountHandler := handlers.NewAccountHandler(svc.Account)
			r.Get("/", accountHandler.ListAccounts)
			r.Post("/", accountHandler.CreateAccount)
			r.Get("/default", accountHandler.GetDefaultAccount)

			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", accountHandler.GetAccount)
				r.Put("/", accountHandler.UpdateAccount)
				r.Delete("/", accountHandler.DeleteAccount)
			})
		})

		r.Route("/fund", func(r chi.Router) {
			fundHandler := handlers.NewFundHandler(svc.Fund)
			r.Get("/", fundHandler.ListFunds)
			r.Post("/", fundHandler.GetOrCreateFund)
			r.Post("/accuracy/audit", fundHandler.AuditAccuracy)

			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", fundHandler.GetFund)
				r.Put("/nav", fundHandler.UpdateNav)
				r.Put("/estimate", fundHandler.UpdateEstimate)
				r.Get("/nav-history", fundHandler.ListNavHistory)
				r.Post("/nav-history", fundHandler.ImportNavHistory)
				r.Get("/accuracy", fundHandler.GetAccuracy)
			})
		})

		r.Route("/position", func(r chi.Router) {
			positionHandler := handlers.NewPositionHandler(svc.Position, svc.Ledger)
			r.Get("/", positionHandler.ListPositions)
			r.Post("/recalculate", positionHandler.RecalculatePositions)

			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", positionHandler.GetPosition)
				r.Delete("/clear", positionHandler.ClearPosition)
			})
		})

		r.Route("/operation", func(r chi.Router) {
			operationHandler := handlers.NewOperationHandler(svc.Ledger)
			r.Get("/", operationHandler.ListOperations)
			r.Post("/", operationHandler.CreateOperation)
			r.Post("/batch-delete", operationHandler.BatchDeleteOperations)

			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", operationHandler.GetOperation)
				r.Put("/", operationHandler.UpdateOperation)
				r.Delete("/", operationHandler.DeleteOperation)
			})
		})

		r.Route("/watchlist", func(r chi.Router) {
			watchlistHandler := handlers.NewWatchlistHandler(svc.Watchlist)
			r.Get("/", watchlistHandler.ListWatchlists)
			r.Post("/", watchlistHandler.CreateWatchlist)

			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", watchlistHandler.GetWatchlist)
				r.Put("/", watchlistHandler.RenameWatchlist)
				r.Delete("/", watchlistHandler.DeleteWatchlist)
				r.Post("/item", watchlistHandler.AddItem)
				r.Delete("/item/{fundId}", watchlistHandler.RemoveItem)
				r.Put("/reorder", watchlistHandler.Reorder)
			})
		})

		r.Route("/import", func(r chi.Router) {
			importHandler := handlers.NewImportHandler(svc.Import, svc.Broker)
			r.Post("/", importHandler.ImportFeed)
			r.Post("/broker", importHandler.ImportBroker)
		})
	})

	return r
}
