package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/OCAP2/cctv/internal/model"
	"github.com/OCAP2/cctv/internal/model/convert"
	"github.com/OCAP2/cctv/internal/storage/memory"
	"github.com/OCAP2/cctv/pkg/core"

	"gorm.io/gorm"
)

// exportMissions writes one <mission>_<start>.json.gz per id into outDir, in the
// same layout the memory journal exports.
func exportMissions(db *gorm.DB, missionIDs []string, outDir string) error {
	for _, raw := range missionIDs {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("mission id %q: %w", raw, err)
		}

		start := time.Now()
		export, err := loadExport(db, uint(id))
		if err != nil {
			return fmt.Errorf("mission %d: %w", id, err)
		}

		name := strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_").Replace(export.MissionName)
		path := filepath.Join(outDir, fmt.Sprintf("cctv_%s_%s.json.gz", name, export.StartTime.Format("20060102_150405")))
		if err := writeGzip(path, export); err != nil {
			return err
		}
		Logger.Info().
			Uint64("mission", id).
			Str("path", path).
			Int("cameras", len(export.Cameras)).
			Int("transitions", len(export.Transitions)).
			Dur("took", time.Since(start)).
			Msg("Exported mission")
	}
	return nil
}

func loadExport(db *gorm.DB, missionID uint) (memory.JournalExport, error) {
	var m model.Mission
	if err := db.Preload("World").First(&m, missionID).Error; err != nil {
		return memory.JournalExport{}, fmt.Errorf("error getting mission: %w", err)
	}
	mission := convert.MissionToCore(m)

	export := memory.JournalExport{
		AddonVersion:     mission.AddonVersion,
		ExtensionVersion: mission.ExtensionVersion,
		SessionID:        mission.SessionID,
		MissionName:      mission.MissionName,
		MissionAuthor:    mission.Author,
		ServerName:       mission.ServerName,
		WorldName:        m.World.WorldName,
		StartTime:        mission.StartTime,
		Cameras:          []core.CameraRecord{},
		Transitions:      []core.Transition{},
		HelmetEvents:     []core.HelmetEvent{},
		Usage:            []core.Usage{},
	}

	var cameras []model.Camera
	if err := db.Where("mission_id = ?", missionID).Order("camera_id ASC").Find(&cameras).Error; err != nil {
		return export, fmt.Errorf("error getting cameras: %w", err)
	}
	for _, c := range cameras {
		export.Cameras = append(export.Cameras, convert.CameraToCore(c))
	}

	var transitions []model.ScreenTransition
	if err := db.Where("mission_id = ?", missionID).Order("time ASC, id ASC").Find(&transitions).Error; err != nil {
		return export, fmt.Errorf("error getting transitions: %w", err)
	}
	for _, t := range transitions {
		export.Transitions = append(export.Transitions, convert.ScreenTransitionToCore(t))
		if t.Time.After(export.EndTime) {
			export.EndTime = t.Time
		}
	}

	var helmets []model.HelmetEvent
	if err := db.Where("mission_id = ?", missionID).Order("time ASC, id ASC").Find(&helmets).Error; err != nil {
		return export, fmt.Errorf("error getting helmet events: %w", err)
	}
	for _, h := range helmets {
		export.HelmetEvents = append(export.HelmetEvents, convert.HelmetEventToCore(h))
	}

	// sqlite journals do not keep usage samples
	if db.Migrator().HasTable(&model.UsageSample{}) {
		var samples []model.UsageSample
		if err := db.Where("mission_id = ?", missionID).Order("time ASC").Find(&samples).Error; err != nil {
			return export, fmt.Errorf("error getting usage samples: %w", err)
		}
		for _, s := range samples {
			export.Usage = append(export.Usage, core.Usage{
				Time:           s.Time,
				Cameras:        int(s.Cameras),
				ActiveCameras:  int(s.ActiveCameras),
				Screens:        int(s.Screens),
				ViewingScreens: int(s.ViewingScreens),
				ActiveHelmets:  int(s.ActiveHelmets),
			})
		}
	}
	return export, nil
}

func writeGzip(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("error marshalling journal: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if _, err := gz.Write(data); err != nil {
		return fmt.Errorf("error writing to gzip: %w", err)
	}
	return gz.Close()
}
