package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/trobanga/rastergate/internal/lib"
	"github.com/trobanga/rastergate/internal/models"
)

// LoadConfig loads configuration from file and environment
// Priority order (highest to lowest):
//  1. Environment variables (RASTERGATE_ prefix, "." replaced by "_")
//  2. Configuration file
//  3. Default values
func LoadConfig(configFile string) (*models.GatewayConfig, error) {
	v, err := readConfig(configFile)
	if err != nil {
		return nil, err
	}

	config, err := buildConfig(v)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, lib.ErrInvalidConfig(configField(err), err.Error())
	}
	return config, nil
}

// LoadLocalConfig loads configuration for the offline commands, which never
// talk to downstream services. Only the validation settings are checked.
func LoadLocalConfig(configFile string) (*models.GatewayConfig, error) {
	v, err := readConfig(configFile)
	if err != nil {
		return nil, err
	}

	config, err := buildConfig(v)
	if err != nil {
		return nil, err
	}
	if err := config.Validation.Validate(); err != nil {
		return nil, lib.ErrInvalidConfig(configField(err), err.Error())
	}
	return config, nil
}

func readConfig(configFile string) (*viper.Viper, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		// Search for config in standard locations
		v.SetConfigName("rastergate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/rastergate")
		v.AddConfigPath("/etc/rastergate")
	}

	v.SetEnvPrefix("RASTERGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Read config file (optional - don't fail if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v, nil
}

// setDefaults registers every default so env-only deployments see all keys
func setDefaults(v *viper.Viper) {
	d := models.DefaultConfig()

	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.shutdown_timeout_seconds", d.Server.ShutdownTimeoutSeconds)

	v.SetDefault("services.job_manager_url", d.Services.JobManagerURL)
	v.SetDefault("services.catalog_url", d.Services.CatalogURL)
	v.SetDefault("services.map_server_url", d.Services.MapServerURL)
	v.SetDefault("services.polygon_parts_url", d.Services.PolygonPartsURL)
	v.SetDefault("services.timeout_seconds", d.Services.TimeoutSeconds)

	v.SetDefault("sources.mount_dir", d.Sources.MountDir)

	v.SetDefault("validation.allowed_crs", d.Validation.AllowedCRS)
	v.SetDefault("validation.allowed_formats", d.Validation.AllowedFormats)
	v.SetDefault("validation.tile_size", d.Validation.TileSize)
	v.SetDefault("validation.min_zoom", d.Validation.MinZoom)
	v.SetDefault("validation.max_zoom", d.Validation.MaxZoom)
	v.SetDefault("validation.resolution_tolerance", d.Validation.ResolutionTolerance)
	v.SetDefault("validation.extent_buffer_meters", d.Validation.ExtentBufferMeters)

	v.SetDefault("jobs.domain", d.Jobs.Domain)
	v.SetDefault("jobs.new_type", d.Jobs.NewType)
	v.SetDefault("jobs.update_type", d.Jobs.UpdateType)
	v.SetDefault("jobs.swap_update_type", d.Jobs.SwapUpdateType)
	v.SetDefault("jobs.validation_task_type", d.Jobs.ValidationTaskType)
	v.SetDefault("jobs.forbidden_types", d.Jobs.ForbiddenTypes)

	v.SetDefault("checksum.algorithm", d.Checksum.Algorithm)

	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.initial_backoff_ms", d.Retry.InitialBackoffMs)
	v.SetDefault("retry.max_backoff_ms", d.Retry.MaxBackoffMs)

	v.SetDefault("log.level", d.Log.Level)

	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)
	v.SetDefault("telemetry.otlp_endpoint", d.Telemetry.OTLPEndpoint)
}

// buildConfig reads every key explicitly instead of using v.Unmarshal,
// so env overrides of nested keys are honored
func buildConfig(v *viper.Viper) (*models.GatewayConfig, error) {
	config := models.GatewayConfig{
		Server: models.ServerConfig{
			Address:                v.GetString("server.address"),
			Port:                   v.GetInt("server.port"),
			ShutdownTimeoutSeconds: v.GetInt("server.shutdown_timeout_seconds"),
		},
		Services: models.ServiceConfig{
			JobManagerURL:   v.GetString("services.job_manager_url"),
			CatalogURL:      v.GetString("services.catalog_url"),
			MapServerURL:    v.GetString("services.map_server_url"),
			PolygonPartsURL: v.GetString("services.polygon_parts_url"),
			TimeoutSeconds:  v.GetInt("services.timeout_seconds"),
		},
		Sources: models.SourcesConfig{
			MountDir: v.GetString("sources.mount_dir"),
		},
		Validation: models.ValidationConfig{
			AllowedCRS:          v.GetIntSlice("validation.allowed_crs"),
			AllowedFormats:      v.GetStringSlice("validation.allowed_formats"),
			TileSize:            v.GetInt("validation.tile_size"),
			MinZoom:             v.GetInt("validation.min_zoom"),
			MaxZoom:             v.GetInt("validation.max_zoom"),
			ResolutionTolerance: v.GetFloat64("validation.resolution_tolerance"),
			ExtentBufferMeters:  v.GetFloat64("validation.extent_buffer_meters"),
		},
		Jobs: models.JobsConfig{
			Domain:             v.GetString("jobs.domain"),
			NewType:            v.GetString("jobs.new_type"),
			UpdateType:         v.GetString("jobs.update_type"),
			SwapUpdateType:     v.GetString("jobs.swap_update_type"),
			ValidationTaskType: v.GetString("jobs.validation_task_type"),
			ForbiddenTypes:     v.GetStringSlice("jobs.forbidden_types"),
		},
		Checksum: models.ChecksumConfig{
			Algorithm: v.GetString("checksum.algorithm"),
		},
		Retry: models.RetryConfig{
			MaxAttempts:      v.GetInt("retry.max_attempts"),
			InitialBackoffMs: v.GetInt64("retry.initial_backoff_ms"),
			MaxBackoffMs:     v.GetInt64("retry.max_backoff_ms"),
		},
		Log: models.LogConfig{
			Level: v.GetString("log.level"),
		},
		Telemetry: models.TelemetryConfig{
			ServiceName:  v.GetString("telemetry.service_name"),
			OTLPEndpoint: v.GetString("telemetry.otlp_endpoint"),
		},
	}

	// A list of structs has no env representation, so it only comes from the file
	if v.IsSet("jobs.swap_update") {
		if err := v.UnmarshalKey("jobs.swap_update", &config.Jobs.SwapUpdate); err != nil {
			return nil, lib.ErrInvalidConfig("jobs.swap_update", err.Error())
		}
	} else {
		config.Jobs.SwapUpdate = models.DefaultConfig().Jobs.SwapUpdate
	}

	return &config, nil
}

// configField extracts the offending key from a validation message
func configField(err error) string {
	msg := err.Error()
	for _, word := range strings.Fields(msg) {
		if strings.Contains(word, ".") && !strings.Contains(word, "/") {
			return strings.Trim(word, ":,")
		}
	}
	return "config"
}
