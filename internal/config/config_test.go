package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"cctv": { "allowZeusPlacement": false },
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, false, viper.GetBool("cctv.allowZeusPlacement"))
	assert.Equal(t, true, viper.GetBool("cctv.enabled"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./cctvlogs", viper.GetString("logsDir"))
	assert.Equal(t, "ANY", viper.GetString("vehicleCameras.side"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "cctv", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "cctv-metrics", viper.GetString("influx.org"))
	assert.Equal(t, "memory", viper.GetString("journal.type"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetCCTVConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	SetDefaults()

	cfg := GetCCTVConfig()
	assert.True(t, cfg.Enabled)
	assert.True(t, cfg.AllowZeusPlacement)
	assert.Equal(t, 30*time.Second, cfg.ReadyTimeout)
}

func TestGetHelmetCamConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"helmetCam": {
			"items": ["H_Custom_Cam"],
			"autoEnable": true,
			"tickInterval": "500ms"
		}
	}`)))

	cfg := GetHelmetCamConfig()
	assert.Equal(t, []string{"H_Custom_Cam"}, cfg.Items)
	assert.True(t, cfg.AutoEnable)
	assert.Equal(t, 500*time.Millisecond, cfg.TickInterval)
}

func TestGetHelmetCamConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	SetDefaults()

	cfg := GetHelmetCamConfig()
	assert.NotEmpty(t, cfg.Items)
	assert.False(t, cfg.AutoEnable)
	assert.Equal(t, 5*time.Second, cfg.TickInterval)
}

func TestGetReplicationConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	SetDefaults()

	cfg := GetReplicationConfig()
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
}

func TestGetJournalConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"journal": {
			"type": "sqlite",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sqlite": { "dumpInterval": "10m" },
			"websocket": { "url": "ws://example:9000/cctv", "secret": "s3cret" }
		}
	}`)))

	jc := GetJournalConfig()
	assert.Equal(t, "sqlite", jc.Type)
	assert.Equal(t, "/tmp/out", jc.Memory.OutputDir)
	assert.False(t, jc.Memory.CompressOutput)
	assert.Equal(t, 10*time.Minute, jc.SQLite.DumpInterval)
	assert.Equal(t, "ws://example:9000/cctv", jc.WebSocket.URL)
	assert.Equal(t, "s3cret", jc.WebSocket.Secret)
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetOTelConfig()
	assert.Equal(t, false, cfg.Enabled)
	assert.Equal(t, "cctv-system", cfg.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
	assert.Equal(t, "", cfg.Endpoint)
	assert.Equal(t, true, cfg.Insecure)
}

func TestGetGraylogConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"graylog": {"enabled": true, "address": "gl:12201"}}`)))

	cfg := GetGraylogConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "gl:12201", cfg.Address)
}

func TestGetMonitorConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	SetDefaults()

	cfg := GetMonitorConfig()
	assert.Equal(t, 10*time.Second, cfg.Interval)
	assert.Equal(t, "cctv_status.json", cfg.StatusFile)

	require.NoError(t, Load(writeConfig(t, `{"monitor": {"interval": "1m", "statusFile": "/tmp/s.json"}, "vehicleCameras": {"side": "EAST"}}`)))
	cfg = GetMonitorConfig()
	assert.Equal(t, time.Minute, cfg.Interval)
	assert.Equal(t, "/tmp/s.json", cfg.StatusFile)
	assert.Equal(t, "EAST", GetVehicleCameraSide())
}

func TestGetUploadConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	SetDefaults()

	cfg := GetUploadConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "http://localhost:5000", cfg.ServerURL)

	require.NoError(t, Load(writeConfig(t, `{"upload": {"enabled": true, "serverUrl": "https://aar.example.org", "apiKey": "k", "tag": "Coop"}}`)))
	cfg = GetUploadConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "https://aar.example.org", cfg.ServerURL)
	assert.Equal(t, "k", cfg.APIKey)
	assert.Equal(t, "Coop", cfg.Tag)
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	viper.Set("testInt", 42)
	viper.Set("testBool", true)

	assert.Equal(t, "testValue", GetString("testKey"))
	assert.Equal(t, 42, GetInt("testInt"))
	assert.Equal(t, true, GetBool("testBool"))
}
