// Command cctv_journal maintains the journal database: it creates the schema,
// folds SQLite backups into Postgres and exports missions as JSON.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/OCAP2/cctv/internal/config"
	"github.com/OCAP2/cctv/internal/database"
	"github.com/OCAP2/cctv/internal/logging"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

var Logger zerolog.Logger

func usage() {
	fmt.Println("Usage: cctv_journal <command> [args]")
	fmt.Println("  setupdb                 create or migrate the journal schema")
	fmt.Println("  migratebackups [dir]    move SQLite backups from dir into the database")
	fmt.Println("  getjson <missionId>...  export missions as gzipped JSON")
}

func main() {
	configDir := "."
	if exe, err := os.Executable(); err == nil {
		configDir = filepath.Dir(exe)
	}
	if err := config.Load(configDir); err != nil {
		config.SetDefaults()
	}
	Logger = logging.NewZerolog(os.Stdout, viper.GetString("logLevel"), nil)

	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	db := database.NewManager(Logger)
	db.SqliteFilePath = filepath.Join(configDir, "cctv_journal.db")
	if err := db.Connect(); err != nil {
		Logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	var err error
	switch strings.ToLower(args[0]) {
	case "setupdb":
		err = db.Setup(config.GetString("serverName"))
		if err == nil {
			Logger.Info().Msg("DB setup complete.")
		}
	case "migratebackups":
		dir := configDir
		if len(args) > 1 {
			dir = args[1]
		}
		var migrated []string
		migrated, err = database.MigrateBackups(dir, db.DB, Logger)
		Logger.Info().Int("files", len(migrated)).Msg("Finished migrating backups.")
	case "getjson":
		if len(args) < 2 {
			fmt.Println("No mission IDs provided.")
			os.Exit(2)
		}
		err = exportMissions(db.DB, args[1:], ".")
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		Logger.Error().Err(err).Str("command", args[0]).Msg("Command failed")
		os.Exit(1)
	}
}
