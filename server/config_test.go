package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "emotrack.json")
	require.NoError(t, os.WriteFile(configFile, []byte(`{
		"db": {"driver": "sqlite3", "database": "runs.sqlite"},
		"storage": {"gcs": {"bucket": "my-bucket", "prefix": "emotrack"}},
		"model": {"dir": "models", "name": "ferplus"},
		"maxUpload": "50 mb"
	}`), 0644))

	t.Setenv("EMOTRACK_REMOTE_URL", "http://localhost:5000")
	t.Setenv("EMOTRACK_ANALYZE_PER_MINUTE", "notanumber")

	cfg, err := LoadConfig(configFile)
	require.NoError(t, err)
	require.Equal(t, "my-bucket", cfg.Storage.GCS.Bucket)
	require.Nil(t, cfg.Storage.Filesystem)
	require.Equal(t, "ferplus", cfg.Model.Name)
	require.Equal(t, "http://localhost:5000", cfg.Model.RemoteURL)
	require.Equal(t, "50 mb", cfg.MaxUpload)
	require.Equal(t, DefaultListen, cfg.Listen)
	require.Equal(t, DefaultAnalyzePerMinute, cfg.AnalyzePerMinute)
	require.Equal(t, DefaultSampleRatePerSec, cfg.DefaultSampleRate)

	_, err = LoadConfig(filepath.Join(dir, "missing.json"))
	require.Error(t, err)

	require.NoError(t, os.WriteFile(configFile, []byte(`{"listen": `), 0644))
	_, err = LoadConfig(configFile)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(configFile, []byte(`{"maxUpload": "lots"}`), 0644))
	_, err = LoadConfig(configFile)
	require.Error(t, err)
}
