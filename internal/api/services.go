package api

import (
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/ndewijer/fundval-backend/internal/config"
	"github.com/ndewijer/fundval-backend/internal/importer"
	"github.com/ndewijer/fundval-backend/internal/repository"
	"github.com/ndewijer/fundval-backend/internal/service"
)

// NewServices builds the repositories and services on top of db.
// Broker stays nil unless a broker API URL is configured.
func NewServices(db *sql.DB, cfg *config.Config, log zerolog.Logger) Services {
	accountRepo := repository.NewAccountRepository(db)
	fundRepo := repository.NewFundRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	positionRepo := repository.NewPositionRepository(db)
	navRepo := repository.NewNavHistoryRepository(db)
	accuracyRepo := repository.NewAccuracyRepository(db)
	watchlistRepo := repository.NewWatchlistRepository(db)

	serviceLog := log.With().Str("component", "service").Logger()

	positionService := service.NewPositionService(
		db,
		accountRepo,
		fundRepo,
		ledgerRepo,
		positionRepo,
		cfg.Recalc.Workers,
		serviceLog,
	)

	svc := Services{
		System:   service.NewSystemService(db),
		Account:  service.NewAccountService(db, accountRepo, ledgerRepo, serviceLog),
		Fund:     service.NewFundService(db, fundRepo, navRepo, accuracyRepo, serviceLog),
		Position: positionService,
		Ledger: service.NewLedgerService(
			db,
			accountRepo,
			fundRepo,
			ledgerRepo,
			positionRepo,
			positionService,
			serviceLog,
		),
		Import: service.NewImportService(
			db,
			accountRepo,
			fundRepo,
			ledgerRepo,
			positionService,
			cfg.Import.ParentAccountName,
			serviceLog,
		),
		Watchlist: service.NewWatchlistService(db, watchlistRepo, fundRepo, serviceLog),
	}

	if cfg.Import.BrokerURL != "" {
		svc.Broker = importer.NewBrokerClient(cfg.Import.BrokerURL, cfg.Import.BrokerToken)
	}
	return svc
}
