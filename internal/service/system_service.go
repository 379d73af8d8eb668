package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ndewijer/fundval-backend/internal/database"
	"github.com/ndewijer/fundval-backend/internal/model"
)

// AppVersion is the build version, set at link time with
// -ldflags "-X github.com/ndewijer/fundval-backend/internal/service.AppVersion=v1.2.3".
var AppVersion = "dev"

// SystemService handles system-related operations
type SystemService struct {
	db *sql.DB
}

// NewSystemService creates a new SystemService
func NewSystemService(db *sql.DB) *SystemService {
	return &SystemService{
		db: db,
	}
}

// CheckHealth checks the health of the system
func (s *SystemService) CheckHealth() error {
	return database.HealthCheck(s.db)
}

// CheckVersion returns the application version and the applied schema version.
func (s *SystemService) CheckVersion(ctx context.Context) (model.VersionInfo, error) {
	dbVersion, err := database.Version(ctx, s.db)
	if err != nil {
		return model.VersionInfo{}, fmt.Errorf("failed to read schema version: %w", err)
	}
	return model.VersionInfo{
		AppVersion: AppVersion,
		DbVersion:  dbVersion,
	}, nil
}
