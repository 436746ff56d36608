package database

import (
	"fmt"
	"os"

	"github.com/OCAP2/cctv/internal/model"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// MigrateResult counts what one backup contributed.
type MigrateResult struct {
	Missions     int
	Cameras      int
	Transitions  int
	HelmetEvents int
}

// MigrateBackup copies every mission in src into dst. Worlds are matched by
// name; missions get new ids in dst and their journal rows are re-stamped.
// The whole copy runs in one dst transaction.
func MigrateBackup(src, dst *gorm.DB, log zerolog.Logger) (MigrateResult, error) {
	var res MigrateResult

	var missions []model.Mission
	if err := src.Preload("World").Find(&missions).Error; err != nil {
		return res, fmt.Errorf("read missions: %w", err)
	}

	err := dst.Transaction(func(tx *gorm.DB) error {
		for _, m := range missions {
			oldID := m.ID

			world := m.World
			world.Model = gorm.Model{}
			if err := tx.Where(model.World{WorldName: world.WorldName}).FirstOrCreate(&world).Error; err != nil {
				return fmt.Errorf("world %q: %w", world.WorldName, err)
			}

			m.Model = gorm.Model{CreatedAt: m.CreatedAt}
			m.WorldID = world.ID
			m.World = model.World{}
			if err := tx.Omit("World").Create(&m).Error; err != nil {
				return fmt.Errorf("mission %d: %w", oldID, err)
			}
			res.Missions++

			n, err := copyRows(src, tx, oldID, func(c *model.Camera) { c.MissionID = m.ID })
			if err != nil {
				return fmt.Errorf("cameras of mission %d: %w", oldID, err)
			}
			res.Cameras += n

			n, err = copyRows(src, tx, oldID, func(t *model.ScreenTransition) { t.ID = 0; t.MissionID = m.ID })
			if err != nil {
				return fmt.Errorf("transitions of mission %d: %w", oldID, err)
			}
			res.Transitions += n

			n, err = copyRows(src, tx, oldID, func(e *model.HelmetEvent) { e.ID = 0; e.MissionID = m.ID })
			if err != nil {
				return fmt.Errorf("helmet events of mission %d: %w", oldID, err)
			}
			res.HelmetEvents += n

			log.Info().
				Uint("from", oldID).
				Uint("to", m.ID).
				Str("mission", m.MissionName).
				Msg("Migrated mission")
		}
		return nil
	})
	return res, err
}

// copyRows reads all rows of T for missionID from src and inserts them into dst
// after restamp.
func copyRows[T any](src, dst *gorm.DB, missionID uint, restamp func(*T)) (int, error) {
	var rows []T
	if err := src.Where("mission_id = ?", missionID).Find(&rows).Error; err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for i := range rows {
		restamp(&rows[i])
	}
	if err := dst.Omit("Mission").Create(&rows).Error; err != nil {
		return 0, err
	}
	return len(rows), nil
}

// MigrateBackups migrates every .db file in folder into dst and renames each
// migrated file to *.migrated. It stops at the first failing file.
func MigrateBackups(folder string, dst *gorm.DB, log zerolog.Logger) ([]string, error) {
	paths, err := GetBackupDBPaths(folder)
	if err != nil {
		return nil, fmt.Errorf("error getting backup database paths: %w", err)
	}

	var migrated []string
	for _, path := range paths {
		src, err := GetSqliteDBStandalone(path)
		if err != nil {
			return migrated, fmt.Errorf("open %s: %w", path, err)
		}

		res, err := MigrateBackup(src, dst, log)
		if sqlDB, dbErr := src.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		if err != nil {
			return migrated, fmt.Errorf("migrate %s: %w", path, err)
		}

		if err := os.Rename(path, path+".migrated"); err != nil {
			log.Error().Err(err).Str("path", path).Msg("Error renaming sqlite file")
		}
		log.Info().
			Str("path", path).
			Int("missions", res.Missions).
			Int("cameras", res.Cameras).
			Int("transitions", res.Transitions).
			Int("helmetEvents", res.HelmetEvents).
			Msg("Migrated backup")
		migrated = append(migrated, path)
	}
	return migrated, nil
}
