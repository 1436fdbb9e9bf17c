package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trobanga/rastergate/internal/lib"
)

const validConfigYAML = `
server:
  port: 9090
services:
  job_manager_url: http://job-manager:8080
  catalog_url: http://catalog:8080
  map_server_url: http://mapproxy:8080
  polygon_parts_url: http://polygon-parts:8080
  timeout_seconds: 5
sources:
  mount_dir: /data/sources
validation:
  allowed_crs: [4326]
  allowed_formats: [GPKG]
  max_zoom: 21
jobs:
  swap_update:
    - product_type: RasterVectorBest
      product_sub_types: [subA, subB]
retry:
  max_attempts: 2
  initial_backoff_ms: 10
  max_backoff_ms: 100
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rastergate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_FromFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "http://catalog:8080", cfg.Services.CatalogURL)
	assert.Equal(t, "/data/sources", cfg.Sources.MountDir)
	assert.Equal(t, []int{4326}, cfg.Validation.AllowedCRS)
	assert.Equal(t, 21, cfg.Validation.MaxZoom)
	assert.Equal(t, 2, cfg.Retry.MaxAttempts)
	require.Len(t, cfg.Jobs.SwapUpdate, 1)
	assert.Equal(t, []string{"subA", "subB"}, cfg.Jobs.SwapUpdate[0].ProductSubTypes)
	assert.True(t, cfg.Jobs.IsSwapEligible("RasterVectorBest", "subB"))
}

func TestLoadConfig_DefaultsForMissingKeys(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, 256, cfg.Validation.TileSize)
	assert.Equal(t, 0, cfg.Validation.MinZoom)
	assert.InDelta(t, 1e-10, cfg.Validation.ResolutionTolerance, 1e-20)
	assert.Equal(t, "XXH64", cfg.Checksum.Algorithm)
	assert.Equal(t, "Ingestion_New", cfg.Jobs.NewType)
	assert.Equal(t, "validation", cfg.Jobs.ValidationTaskType)
	assert.Contains(t, cfg.Jobs.ForbiddenTypes, "Ingestion_Update")
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("RASTERGATE_SOURCES_MOUNT_DIR", "/mnt/override")
	t.Setenv("RASTERGATE_CHECKSUM_ALGORITHM", "BLAKE3")

	cfg, err := LoadConfig(writeConfig(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "/mnt/override", cfg.Sources.MountDir)
	assert.Equal(t, "BLAKE3", cfg.Checksum.Algorithm)
}

func TestLoadConfig_MissingServiceURL(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
services:
  job_manager_url: http://job-manager:8080
`))
	require.Error(t, err)
	assert.True(t, lib.IsCategory(err, lib.CategoryConfiguration))
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "server: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_ExplicitFileMissing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadLocalConfig_DoesNotRequireServices(t *testing.T) {
	cfg, err := LoadLocalConfig(writeConfig(t, `
validation:
  allowed_crs: [4326, 2039]
`))
	require.NoError(t, err)
	assert.Equal(t, []int{4326, 2039}, cfg.Validation.AllowedCRS)
	assert.Empty(t, cfg.Services.JobManagerURL)
}

func TestLoadLocalConfig_ChecksValidationSettings(t *testing.T) {
	_, err := LoadLocalConfig(writeConfig(t, `
validation:
  min_zoom: 10
  max_zoom: 2
`))
	require.Error(t, err)
	assert.True(t, lib.IsCategory(err, lib.CategoryConfiguration))
}
