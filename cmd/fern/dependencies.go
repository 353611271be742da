package main

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/database"
)

// databaseDependency opens the connection pool on start.
type databaseDependency struct {
	cfg    database.Config
	logger ectologger.Logger
	db     *database.DatabaseInstance
}

func newDatabaseDependency(cfg *config.Config, logger ectologger.Logger) *databaseDependency {
	return &databaseDependency{
		cfg: database.Config{
			Driver:          cfg.DatabaseDriver,
			Host:            cfg.DatabaseHost,
			Port:            cfg.DatabasePort,
			User:            cfg.DatabaseUserName,
			Password:        cfg.DatabasePassword,
			Name:            cfg.DatabaseName,
			SSLMode:         cfg.DatabaseSSLMode,
			MaxOpenConns:    cfg.DatabaseMaxOpenConns,
			MaxIdleConns:    cfg.DatabaseMaxIdleConns,
			ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
		},
		logger: logger,
	}
}

func (d *databaseDependency) GetName() string     { return "database" }
func (d *databaseDependency) DependsOn() []string { return nil }

func (d *databaseDependency) Start(ctx context.Context) error {
	if d.db != nil {
		return d.db.PingContext(ctx)
	}
	db, err := database.Open(ctx, d.cfg, d.logger)
	if err != nil {
		return err
	}
	d.db = db
	return nil
}

func (d *databaseDependency) Stop(context.Context) error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// migrationDependency applies the schema once the database is reachable.
type migrationDependency struct {
	database *databaseDependency
	service  *database.MigrationService
	name     string
}

func newMigrationDependency(cfg *config.Config, db *databaseDependency, logger ectologger.Logger) *migrationDependency {
	return &migrationDependency{
		database: db,
		name:     cfg.DatabaseName,
		service: database.NewMigrationService(logger, &database.MigrationConfig{
			MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
			Version:             uint(cfg.DatabaseMigrationVersion),
			Force:               cfg.DatabaseMigrationForce,
			AutoRollback:        cfg.DatabaseMigrationAutoRollback,
		}),
	}
}

func (m *migrationDependency) GetName() string     { return "migrations" }
func (m *migrationDependency) DependsOn() []string { return []string{"database"} }

func (m *migrationDependency) Start(context.Context) error {
	return m.service.MigratePostgres(m.database.db.DB.DB, m.name)
}

func (m *migrationDependency) Stop(context.Context) error { return nil }
