package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
)

// MigrationLogger adapts the service logger to golang-migrate.
type MigrationLogger struct {
	ectologger.Logger
}

func (l MigrationLogger) Verbose() bool {
	return true
}

func (l MigrationLogger) Printf(format string, v ...any) {
	l.Infof(format, v...)
}

// MigrationConfig describes how to bring the schema to the wanted version.
type MigrationConfig struct {
	FolderPath string
	Version    uint
	Force      int
}

// MigrationService applies schema migrations.
type MigrationService struct {
	config *MigrationConfig
	logger ectologger.Logger
}

// NewMigrationService creates a migration service.
func NewMigrationService(logger ectologger.Logger, config *MigrationConfig) *MigrationService {
	return &MigrationService{config: config, logger: logger}
}

func (ms *MigrationService) resolveFolder() (string, error) {
	path := ms.config.FolderPath
	if filepath.IsAbs(path) {
		return path, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve working directory")
	}
	return filepath.Join(wd, path), nil
}

// Migrate brings the database to the configured version, or to the latest
// version when none is pinned.
func (ms *MigrationService) Migrate(databaseURL string) error {
	folder, err := ms.resolveFolder()
	if err != nil {
		return err
	}

	m, err := migrate.New(fmt.Sprintf("file://%s", folder), databaseURL)
	if err != nil {
		return errors.Wrap(err, "failed to create migration instance")
	}
	defer m.Close()

	m.Log = MigrationLogger{ms.logger}

	if ms.config.Force > 0 {
		if err := m.Force(ms.config.Force); err != nil {
			return errors.Wrapf(err, "failed to force migration version %d", ms.config.Force)
		}
	}

	if ms.config.Version > 0 {
		err = m.Migrate(ms.config.Version)
	} else {
		err = m.Up()
	}
	if err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, "failed to apply migrations")
	}

	ms.logger.Info("Database migrations applied")
	return nil
}
