package models

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Validate checks if a GatewayConfig has valid fields
func (c *GatewayConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	services := map[string]string{
		"job_manager_url":   c.Services.JobManagerURL,
		"catalog_url":       c.Services.CatalogURL,
		"map_server_url":    c.Services.MapServerURL,
		"polygon_parts_url": c.Services.PolygonPartsURL,
	}
	for name, raw := range services {
		if raw == "" {
			return fmt.Errorf("services.%s is required", name)
		}
		parsed, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid services.%s: %w", name, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("services.%s must be an http(s) URL: %s", name, raw)
		}
	}
	if c.Services.TimeoutSeconds <= 0 {
		return errors.New("services.timeout_seconds must be positive")
	}

	if c.Sources.MountDir == "" {
		return errors.New("sources.mount_dir is required")
	}

	if err := c.Validation.Validate(); err != nil {
		return err
	}

	if c.Jobs.NewType == "" || c.Jobs.UpdateType == "" || c.Jobs.SwapUpdateType == "" {
		return errors.New("jobs.new_type, jobs.update_type and jobs.swap_update_type are required")
	}
	if c.Jobs.ValidationTaskType == "" {
		return errors.New("jobs.validation_task_type is required")
	}

	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > 10 {
		return errors.New("max_attempts must be between 1 and 10")
	}
	if c.Retry.InitialBackoffMs <= 0 {
		return errors.New("initial_backoff_ms must be positive")
	}
	if c.Retry.InitialBackoffMs >= c.Retry.MaxBackoffMs {
		return errors.New("initial_backoff_ms must be less than max_backoff_ms")
	}

	return nil
}

// Validate checks the raster validation settings
func (c *ValidationConfig) Validate() error {
	if len(c.AllowedCRS) == 0 {
		return errors.New("validation.allowed_crs must not be empty")
	}
	if len(c.AllowedFormats) == 0 {
		return errors.New("validation.allowed_formats must not be empty")
	}
	if c.TileSize <= 0 {
		return fmt.Errorf("validation.tile_size must be positive, got %d", c.TileSize)
	}
	if c.MinZoom < 0 || c.MaxZoom < c.MinZoom {
		return fmt.Errorf("validation zoom range is invalid: min_zoom=%d max_zoom=%d", c.MinZoom, c.MaxZoom)
	}
	if c.ResolutionTolerance < 0 {
		return errors.New("validation.resolution_tolerance cannot be negative")
	}
	if c.ExtentBufferMeters < 0 {
		return errors.New("validation.extent_buffer_meters cannot be negative")
	}
	return nil
}

// Validate checks the declared input files before any path is resolved
func (f *InputFiles) Validate() error {
	if len(f.GpkgFilesPath) == 0 {
		return errors.New("inputFiles.gpkgFilesPath must contain at least one file")
	}
	for _, p := range f.GpkgFilesPath {
		if !strings.EqualFold(extension(p), ".gpkg") {
			return fmt.Errorf("inputFiles.gpkgFilesPath entry is not a .gpkg file: %s", p)
		}
	}
	if !strings.EqualFold(extension(f.MetadataShapefilePath), ".shp") {
		return fmt.Errorf("inputFiles.metadataShapefilePath must be a .shp file: %s", f.MetadataShapefilePath)
	}
	if !strings.EqualFold(extension(f.ProductShapefilePath), ".shp") {
		return fmt.Errorf("inputFiles.productShapefilePath must be a .shp file: %s", f.ProductShapefilePath)
	}
	return nil
}

// Validate checks a new layer request
func (r *NewLayerRequest) Validate() error {
	if err := r.InputFiles.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Metadata.ProductID) == "" {
		return errors.New("metadata.productId is required")
	}
	if strings.ContainsAny(r.Metadata.ProductID, " /\\") {
		return fmt.Errorf("metadata.productId contains invalid characters: %q", r.Metadata.ProductID)
	}
	if strings.TrimSpace(r.Metadata.ProductType) == "" {
		return errors.New("metadata.productType is required")
	}
	if strings.TrimSpace(r.Metadata.ProductName) == "" {
		return errors.New("metadata.productName is required")
	}
	return validateCallbackURLs(r.CallbackURLs)
}

// Validate checks an update layer request
func (r *UpdateLayerRequest) Validate() error {
	if err := r.InputFiles.Validate(); err != nil {
		return err
	}
	return validateCallbackURLs(r.CallbackURLs)
}

// ValidateID checks that a job or catalog id is a UUID
func ValidateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s is required", kind)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid %s: must be a valid UUID: %w", kind, err)
	}
	return nil
}

func validateCallbackURLs(urls []string) error {
	for _, raw := range urls {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Host == "" {
			return fmt.Errorf("invalid callback url: %s", raw)
		}
	}
	return nil
}

func extension(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return ""
	}
	return path[idx:]
}
