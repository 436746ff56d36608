package main

import (
	"fmt"
	"path/filepath"

	"github.com/OCAP2/cctv/internal/config"
	"github.com/OCAP2/cctv/internal/storage"
	"github.com/OCAP2/cctv/internal/storage/memory"
	pgstorage "github.com/OCAP2/cctv/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/cctv/internal/storage/sqlite"
	wsstorage "github.com/OCAP2/cctv/internal/storage/websocket"
)

func createJournal(cfg config.JournalConfig) (storage.Backend, error) {
	switch cfg.Type {
	case "postgres":
		Logger.Info("Postgres journal selected")
		return pgstorage.New(pgstorage.Dependencies{
			ServerName: config.GetString("serverName"),
			Logger:     Logger,
		}), nil

	case "sqlite":
		dumpPath := filepath.Join(AddonFolder, fmt.Sprintf("%s_%s.db", ExtensionName, SessionStartTime.Format("20060102_150405")))
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpPath:     dumpPath,
			ServerName:   config.GetString("serverName"),
		}, Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite journal: %w", err)
		}
		Logger.Info("SQLite journal selected", "dumpPath", dumpPath)
		return backend, nil

	case "websocket":
		Logger.Info("WebSocket journal selected", "url", cfg.WebSocket.URL)
		return wsstorage.New(wsstorage.Config{
			URL:    cfg.WebSocket.URL,
			Secret: cfg.WebSocket.Secret,
		}, Logger), nil

	case "", "memory":
		return newMemoryJournal(cfg), nil

	default:
		return nil, fmt.Errorf("unknown journal type %q", cfg.Type)
	}
}

// journalStatus names the journal actually in use once startServices returned
// openErr. A failed journal is replaced by the memory one.
func journalStatus(configured string, openErr error) string {
	if openErr != nil || configured == "" {
		return "memory"
	}
	return configured
}

func newMemoryJournal(cfg config.JournalConfig) storage.Backend {
	mem := cfg.Memory
	if !filepath.IsAbs(mem.OutputDir) {
		mem.OutputDir = filepath.Join(AddonFolder, mem.OutputDir)
	}
	Logger.Info("Memory journal selected", "outputDir", mem.OutputDir)
	return memory.New(mem)
}
