package models

import (
	"math"
	"strings"
)

// GatewayConfig is the top-level configuration for the ingestion gateway.
// It is loaded once at startup and never mutated afterwards.
type GatewayConfig struct {
	Server     ServerConfig     `yaml:"server" json:"server"`
	Services   ServiceConfig    `yaml:"services" json:"services"`
	Sources    SourcesConfig    `yaml:"sources" json:"sources"`
	Validation ValidationConfig `yaml:"validation" json:"validation"`
	Jobs       JobsConfig       `yaml:"jobs" json:"jobs"`
	Checksum   ChecksumConfig   `yaml:"checksum" json:"checksum"`
	Retry      RetryConfig      `yaml:"retry" json:"retry"`
	Log        LogConfig        `yaml:"log" json:"log"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" json:"telemetry"`
}

// ServerConfig controls the HTTP listener
type ServerConfig struct {
	Address                string `yaml:"address" json:"address"`
	Port                   int    `yaml:"port" json:"port"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds" json:"shutdown_timeout_seconds"`
}

// ServiceConfig contains base URLs of the downstream systems of record
type ServiceConfig struct {
	JobManagerURL   string `yaml:"job_manager_url" json:"job_manager_url"`
	CatalogURL      string `yaml:"catalog_url" json:"catalog_url"`
	MapServerURL    string `yaml:"map_server_url" json:"map_server_url"`
	PolygonPartsURL string `yaml:"polygon_parts_url" json:"polygon_parts_url"` // Owns the per-product validation entity
	TimeoutSeconds  int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// SourcesConfig describes where layer source files are mounted
type SourcesConfig struct {
	MountDir string `yaml:"mount_dir" json:"mount_dir"`
}

// ValidationConfig holds allow-lists and ranges for raster source validation
type ValidationConfig struct {
	AllowedCRS          []int    `yaml:"allowed_crs" json:"allowed_crs"`
	AllowedFormats      []string `yaml:"allowed_formats" json:"allowed_formats"`
	TileSize            int      `yaml:"tile_size" json:"tile_size"`
	MinZoom             int      `yaml:"min_zoom" json:"min_zoom"`
	MaxZoom             int      `yaml:"max_zoom" json:"max_zoom"`
	ResolutionTolerance float64  `yaml:"resolution_tolerance" json:"resolution_tolerance"`
	ExtentBufferMeters  float64  `yaml:"extent_buffer_meters" json:"extent_buffer_meters"`
}

// JobsConfig names the job and task types submitted to the job queue
type JobsConfig struct {
	Domain             string     `yaml:"domain" json:"domain"`
	NewType            string     `yaml:"new_type" json:"new_type"`
	UpdateType         string     `yaml:"update_type" json:"update_type"`
	SwapUpdateType     string     `yaml:"swap_update_type" json:"swap_update_type"`
	ValidationTaskType string     `yaml:"validation_task_type" json:"validation_task_type"`
	ForbiddenTypes     []string   `yaml:"forbidden_types" json:"forbidden_types"` // Job types that block a parallel ingestion of the same product
	SwapUpdate         []SwapRule `yaml:"swap_update" json:"swap_update"`
}

// SwapRule marks a product type (and some of its sub types) as swap-eligible:
// an update replaces the layer content instead of merging into it
type SwapRule struct {
	ProductType     string   `yaml:"product_type" json:"product_type" mapstructure:"product_type"`
	ProductSubTypes []string `yaml:"product_sub_types" json:"product_sub_types" mapstructure:"product_sub_types"`
}

// ChecksumConfig selects the digest used for sidecar fingerprints
type ChecksumConfig struct {
	Algorithm string `yaml:"algorithm" json:"algorithm"`
}

// RetryConfig controls retry behavior of the downstream HTTP clients.
// It has nothing to do with job-level retry, which is always explicit.
type RetryConfig struct {
	MaxAttempts      int   `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoffMs int64 `yaml:"initial_backoff_ms" json:"initial_backoff_ms"`
	MaxBackoffMs     int64 `yaml:"max_backoff_ms" json:"max_backoff_ms"`
}

// LogConfig controls log verbosity
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// TelemetryConfig enables OTLP trace export when an endpoint is set
type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name" json:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint" json:"otlp_endpoint"`
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() GatewayConfig {
	return GatewayConfig{
		Server: ServerConfig{
			Address:                "0.0.0.0",
			Port:                   8080,
			ShutdownTimeoutSeconds: 10,
		},
		Services: ServiceConfig{
			TimeoutSeconds: 30,
		},
		Sources: SourcesConfig{
			MountDir: "/layerSources",
		},
		Validation: ValidationConfig{
			AllowedCRS:          []int{4326},
			AllowedFormats:      []string{"GPKG"},
			TileSize:            256,
			MinZoom:             0,
			MaxZoom:             22,
			ResolutionTolerance: 1e-10,
			ExtentBufferMeters:  50,
		},
		Jobs: JobsConfig{
			Domain:             "RASTER",
			NewType:            "Ingestion_New",
			UpdateType:         "Ingestion_Update",
			SwapUpdateType:     "Ingestion_Swap_Update",
			ValidationTaskType: "validation",
			ForbiddenTypes:     []string{"Ingestion_New", "Ingestion_Update", "Ingestion_Swap_Update", "Export"},
			SwapUpdate: []SwapRule{
				{ProductType: "RasterVectorBest", ProductSubTypes: []string{"testSubType"}},
			},
		},
		Checksum: ChecksumConfig{
			Algorithm: "XXH64",
		},
		Retry: RetryConfig{
			MaxAttempts:      3,
			InitialBackoffMs: 500,
			MaxBackoffMs:     5000,
		},
		Log: LogConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "rastergate",
		},
	}
}

// ZoomResolutionDeg is the pixel size in degrees of one tile pixel at zoom 0
// of a 2:1 geographic grid with 256px tiles (180 / 256)
const ZoomResolutionDeg = 0.703125

// ResolutionForZoom maps a zoom level to its pixel size in degrees
func ResolutionForZoom(zoom int) float64 {
	return ZoomResolutionDeg / math.Pow(2, float64(zoom))
}

// ResolutionRange returns the accepted [min, max] pixel size in degrees.
// The finest zoom gives the smallest pixel size.
func (c *ValidationConfig) ResolutionRange() (float64, float64) {
	return ResolutionForZoom(c.MaxZoom), ResolutionForZoom(c.MinZoom)
}

// IsCRSAllowed checks the EPSG code against the allow-list
func (c *ValidationConfig) IsCRSAllowed(crs int) bool {
	for _, allowed := range c.AllowedCRS {
		if allowed == crs {
			return true
		}
	}
	return false
}

// IsFormatAllowed checks the format against the allow-list, ignoring case
func (c *ValidationConfig) IsFormatAllowed(format string) bool {
	for _, allowed := range c.AllowedFormats {
		if strings.EqualFold(allowed, format) {
			return true
		}
	}
	return false
}

// IsSwapEligible reports whether an existing layer of the given type and
// sub type is updated by swapping its content
func (c *JobsConfig) IsSwapEligible(productType, productSubType string) bool {
	for _, rule := range c.SwapUpdate {
		if rule.ProductType != productType {
			continue
		}
		for _, subType := range rule.ProductSubTypes {
			if subType == productSubType {
				return true
			}
		}
	}
	return false
}
