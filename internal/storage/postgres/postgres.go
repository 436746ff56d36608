// Package postgres implements the storage.Backend interface on PostgreSQL/PostGIS.
// Writes go through the shared GORM queue writer.
package postgres

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/OCAP2/cctv/internal/database"
	"github.com/OCAP2/cctv/internal/model"
	gormstorage "github.com/OCAP2/cctv/internal/storage/gorm"
	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the Postgres journal.
type Dependencies struct {
	// DB is opened from the db.* settings when nil.
	DB            *gorm.DB
	ServerName    string
	FlushInterval time.Duration
	Logger        *slog.Logger
}

// Backend embeds the GORM backend with a Postgres connection.
type Backend struct {
	*gormstorage.Backend
	deps Dependencies
}

// New creates a new Postgres journal. The connection is made on Init.
func New(deps Dependencies) *Backend {
	return &Backend{deps: deps}
}

// Init connects if needed, then migrates the full schema and starts the writer.
func (b *Backend) Init() error {
	db := b.deps.DB
	if db == nil {
		var err error
		db, err = database.GetPostgresDBStandalone()
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:            db,
		Models:        model.DatabaseModels,
		FlushInterval: b.deps.FlushInterval,
		ServerName:    b.deps.ServerName,
		Logger:        b.deps.Logger,
	})
	return b.Backend.Init()
}

// Close stops the writer. Before Init it does nothing.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
