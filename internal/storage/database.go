// Package storage provides the GORM-backed persistence layer.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lodestar-hq/lodestar/internal/config"
	"github.com/lodestar-hq/lodestar/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database wraps a gorm.DB with the application's access methods.
type Database struct {
	db  *gorm.DB
	cfg config.DatabaseConfig
}

// NewDatabase opens a connection using the dialect for the configured
// database type and applies connection pool settings.
func NewDatabase(cfg config.DatabaseConfig) (*Database, error) {
	if cfg.Type == "sqlite" && cfg.DSN != ":memory:" {
		dir := filepath.Dir(cfg.DSN)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	dialer, err := NewDialectDialer(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialer.Dialect(), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := dialer.ConfigureConnection(db); err != nil {
		return nil, err
	}

	return &Database{db: db, cfg: cfg}, nil
}

// Migrate creates or updates the schema for all entities.
func (d *Database) Migrate() error {
	err := d.db.AutoMigrate(
		&models.Team{},
		&models.TeamMember{},
		&models.Project{},
		&models.ProjectMember{},
		&models.WorkflowState{},
		&models.Label{},
		&models.Issue{},
		&models.IssueLabel{},
		&models.Invitation{},
		&models.Conversation{},
		&models.ConversationMessage{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB exposes the underlying gorm handle for advanced callers.
func (d *Database) DB() *gorm.DB {
	return d.db
}
