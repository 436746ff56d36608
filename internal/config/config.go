package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the addon folder.
const FileName = "cctv_system.cfg.json"

// CCTVConfig holds the system-wide switches set by the init module.
type CCTVConfig struct {
	Enabled            bool          `json:"enabled" mapstructure:"enabled"`
	AllowZeusPlacement bool          `json:"allowZeusPlacement" mapstructure:"allowZeusPlacement"`
	ReadyTimeout       time.Duration `json:"readyTimeout" mapstructure:"readyTimeout"`
}

// HelmetCamConfig controls helmet cam eligibility and polling.
type HelmetCamConfig struct {
	Items        []string      `json:"items" mapstructure:"items"`
	AutoEnable   bool          `json:"autoEnable" mapstructure:"autoEnable"`
	TickInterval time.Duration `json:"tickInterval" mapstructure:"tickInterval"`
}

// ReplicationConfig bounds the broadcast round trip.
type ReplicationConfig struct {
	Retries int           `json:"retries" mapstructure:"retries"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// SQLiteConfig holds in-memory SQLite journal settings
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// WebSocketConfig holds websocket journal settings
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// MemoryConfig holds settings for the in-memory journal export
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// JournalConfig selects and configures the audit journal backend.
type JournalConfig struct {
	Type      string          `json:"type" mapstructure:"type"`
	Memory    MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite    SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
}

// MonitorConfig controls the usage sampler.
type MonitorConfig struct {
	Interval   time.Duration `json:"interval" mapstructure:"interval"`
	StatusFile string        `json:"statusFile" mapstructure:"statusFile"`
}

// UploadConfig points at the collector exported journals are sent to.
type UploadConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
	Tag       string `json:"tag" mapstructure:"tag"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// GraylogConfig holds the GELF sink settings
type GraylogConfig struct {
	Enabled bool
	Address string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// SetDefaults registers every default value. Load calls it; the exe mode
// calls it directly when no config file is present.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./cctvlogs")

	viper.SetDefault("cctv.enabled", true)
	viper.SetDefault("cctv.allowZeusPlacement", true)
	viper.SetDefault("cctv.readyTimeout", "30s")

	viper.SetDefault("helmetCam.items", []string{"H_HelmetSpecB", "H_HelmetB_light", "H_HelmetHBK_headset_F"})
	viper.SetDefault("helmetCam.autoEnable", false)
	viper.SetDefault("helmetCam.tickInterval", "5s")

	viper.SetDefault("vehicleCameras.side", "ANY")

	viper.SetDefault("replication.retries", 3)
	viper.SetDefault("replication.timeout", "2s")

	viper.SetDefault("journal.type", "memory")
	viper.SetDefault("journal.memory.outputDir", "./cctvjournal")
	viper.SetDefault("journal.memory.compressOutput", true)
	viper.SetDefault("journal.sqlite.dumpInterval", "3m")
	viper.SetDefault("journal.websocket.url", "ws://localhost:5000/api/cctv")
	viper.SetDefault("journal.websocket.secret", "")

	viper.SetDefault("monitor.interval", "10s")
	viper.SetDefault("monitor.statusFile", "cctv_status.json")

	viper.SetDefault("upload.enabled", false)
	viper.SetDefault("upload.serverUrl", "http://localhost:5000")
	viper.SetDefault("upload.apiKey", "")
	viper.SetDefault("upload.tag", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "cctv")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "cctv-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "cctv-system")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// GetCCTVConfig returns the system switches.
func GetCCTVConfig() CCTVConfig {
	return CCTVConfig{
		Enabled:            viper.GetBool("cctv.enabled"),
		AllowZeusPlacement: viper.GetBool("cctv.allowZeusPlacement"),
		ReadyTimeout:       viper.GetDuration("cctv.readyTimeout"),
	}
}

// GetHelmetCamConfig returns helmet cam settings.
func GetHelmetCamConfig() HelmetCamConfig {
	return HelmetCamConfig{
		Items:        viper.GetStringSlice("helmetCam.items"),
		AutoEnable:   viper.GetBool("helmetCam.autoEnable"),
		TickInterval: viper.GetDuration("helmetCam.tickInterval"),
	}
}

// GetReplicationConfig returns broadcast retry settings.
func GetReplicationConfig() ReplicationConfig {
	return ReplicationConfig{
		Retries: viper.GetInt("replication.retries"),
		Timeout: viper.GetDuration("replication.timeout"),
	}
}

// GetJournalConfig returns the journal backend settings.
func GetJournalConfig() JournalConfig {
	return JournalConfig{
		Type: viper.GetString("journal.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("journal.memory.outputDir"),
			CompressOutput: viper.GetBool("journal.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("journal.sqlite.dumpInterval"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("journal.websocket.url"),
			Secret: viper.GetString("journal.websocket.secret"),
		},
	}
}

// GetMonitorConfig returns usage sampler settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:   viper.GetDuration("monitor.interval"),
		StatusFile: viper.GetString("monitor.statusFile"),
	}
}

// GetUploadConfig returns the journal upload settings.
func GetUploadConfig() UploadConfig {
	return UploadConfig{
		Enabled:   viper.GetBool("upload.enabled"),
		ServerURL: viper.GetString("upload.serverUrl"),
		APIKey:    viper.GetString("upload.apiKey"),
		Tag:       viper.GetString("upload.tag"),
	}
}

// GetVehicleCameraSide returns the side turret cameras get when the request
// names none.
func GetVehicleCameraSide() string {
	return viper.GetString("vehicleCameras.side")
}

// GetOTelConfig returns OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetGraylogConfig returns the GELF sink settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
