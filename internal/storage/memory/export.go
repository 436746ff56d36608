// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/cctv/pkg/core"
)

// JournalExport is the root JSON structure of an exported journal.
type JournalExport struct {
	AddonVersion     string              `json:"addonVersion"`
	ExtensionVersion string              `json:"extensionVersion"`
	SessionID        string              `json:"sessionId"`
	MissionName      string              `json:"missionName"`
	MissionAuthor    string              `json:"missionAuthor"`
	ServerName       string              `json:"serverName"`
	WorldName        string              `json:"worldName"`
	StartTime        time.Time           `json:"startTime"`
	EndTime          time.Time           `json:"endTime"`
	Cameras          []core.CameraRecord `json:"cameras"`
	Transitions      []core.Transition   `json:"transitions"`
	HelmetEvents     []core.HelmetEvent  `json:"helmetEvents"`
	Usage            []core.Usage        `json:"usage"`
}

// exportJSON writes the journal to OutputDir, gzipped when configured.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	missionName := strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_").Replace(b.mission.MissionName)
	if missionName == "" {
		missionName = "mission"
	}
	timestamp := b.mission.StartTime.Format("20060102_150405")

	filename := fmt.Sprintf("cctv_%s_%s.json", missionName, timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() JournalExport {
	export := JournalExport{
		AddonVersion:     b.mission.AddonVersion,
		ExtensionVersion: b.mission.ExtensionVersion,
		SessionID:        b.mission.SessionID,
		MissionName:      b.mission.MissionName,
		MissionAuthor:    b.mission.Author,
		ServerName:       b.mission.ServerName,
		StartTime:        b.mission.StartTime,
		EndTime:          time.Now(),
		Cameras:          b.sortedCameras(),
		Transitions:      append([]core.Transition{}, b.transitions...),
		HelmetEvents:     append([]core.HelmetEvent{}, b.helmetEvents...),
		Usage:            append([]core.Usage{}, b.usage...),
	}
	if b.world != nil {
		export.WorldName = b.world.WorldName
	}
	return export
}

func writeJSON(path string, data JournalExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data JournalExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		_ = gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}
