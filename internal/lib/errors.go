package lib

import (
	"errors"
	"fmt"
	"strings"

	"github.com/trobanga/rastergate/internal/models"
)

// GatewayError represents a typed error with context and guidance
type GatewayError struct {
	Category ErrorCategory
	Reason   Reason   // Finer classification inside the category
	Message  string   // Human readable, names the offending file or entity
	Cause    error    // Underlying error
	Guidance []string // What the caller can do to fix it

	HTTPStatus  int  // Status answered by a downstream service, if any
	IsRetryable bool // Can this error be automatically retried?
}

// ErrorCategory is the taxonomy callers map to status codes
type ErrorCategory string

const (
	CategoryNotFound          ErrorCategory = "not_found"
	CategoryConflict          ErrorCategory = "conflict"
	CategoryUnsupportedEntity ErrorCategory = "unsupported_entity"
	CategoryInvalidState      ErrorCategory = "invalid_state"
	CategoryChecksum          ErrorCategory = "checksum"
	CategoryValidation        ErrorCategory = "validation"
	CategoryConfiguration     ErrorCategory = "configuration"
	CategoryService           ErrorCategory = "service"
)

// Reason refines a category
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonMissingIndex          Reason = "missing_index"
	ReasonUnsupportedGrid       Reason = "unsupported_grid"
	ReasonUnsupportedTileSize   Reason = "unsupported_tile_size"
	ReasonMissingContentTable   Reason = "missing_content_table"
	ReasonUnreadableContainer   Reason = "unreadable_container"
	ReasonUnsupportedCRS        Reason = "unsupported_crs"
	ReasonUnsupportedFormat     Reason = "unsupported_format"
	ReasonPixelSizeOutOfRange   Reason = "pixel_size_out_of_range"
	ReasonRasterUnreadable      Reason = "raster_unreadable"
	ReasonFootprintNotContained Reason = "footprint_not_contained"
	ReasonCorrelationFailed     Reason = "correlation_failed"
	ReasonInvalidFootprint      Reason = "invalid_footprint"
	ReasonLayerExists           Reason = "layer_exists"
	ReasonCatalogRecordExists   Reason = "catalog_record_exists"
	ReasonCompetingJob          Reason = "competing_job"
	ReasonUnchangedSources      Reason = "unchanged_sources"
	ReasonAmbiguousRecord       Reason = "ambiguous_record"
)

// Error implements the error interface
func (e *GatewayError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] ", strings.ToUpper(string(e.Category))))
	sb.WriteString(e.Message)

	if e.HTTPStatus > 0 {
		sb.WriteString(fmt.Sprintf(" (HTTP %d)", e.HTTPStatus))
	}

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	return sb.String()
}

// UserMessage returns a formatted message suitable for displaying to end users
func (e *GatewayError) UserMessage() string {
	var sb strings.Builder

	sb.WriteString("❌ Error: ")
	sb.WriteString(e.Message)
	sb.WriteString("\n\n")

	if len(e.Guidance) > 0 {
		sb.WriteString("💡 How to fix:\n")
		for i, guide := range e.Guidance {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, guide))
		}
	}

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("\nTechnical details: %v\n", e.Cause))
	}

	return sb.String()
}

// Unwrap returns the underlying cause for errors.Is/As compatibility
func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// CategoryOf returns the category of the first GatewayError in the chain
func CategoryOf(err error) (ErrorCategory, bool) {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Category, true
	}
	return "", false
}

// IsCategory reports whether err is a GatewayError of the given category
func IsCategory(err error, category ErrorCategory) bool {
	got, ok := CategoryOf(err)
	return ok && got == category
}

// HasReason reports whether err is a GatewayError with the given reason
func HasReason(err error, reason Reason) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Reason == reason
	}
	return false
}

// Not found

// ErrFileNotFound creates an error for a declared source file that is missing
func ErrFileNotFound(path string) *GatewayError {
	return &GatewayError{
		Category: CategoryNotFound,
		Message:  fmt.Sprintf("source file not found: %s", path),
		Guidance: []string{
			"Check that the path is relative to the source mount",
			"Ensure the file was fully copied before submitting",
		},
	}
}

// ErrJobNotFound creates an error for a job unknown to the job queue
func ErrJobNotFound(jobID string) *GatewayError {
	return &GatewayError{
		Category: CategoryNotFound,
		Message:  fmt.Sprintf("job '%s' not found", jobID),
	}
}

// ErrTaskNotFound creates an error for a job without a validation task
func ErrTaskNotFound(jobID string, taskType string) *GatewayError {
	return &GatewayError{
		Category: CategoryNotFound,
		Message:  fmt.Sprintf("job '%s' has no '%s' task", jobID, taskType),
	}
}

// ErrCatalogRecordNotFound creates an error for an update of an unknown layer
func ErrCatalogRecordNotFound(id string) *GatewayError {
	return &GatewayError{
		Category: CategoryNotFound,
		Message:  fmt.Sprintf("catalog record '%s' not found", id),
	}
}

// ErrLayerNotFound creates an error for an update of a layer the map server does not serve
func ErrLayerNotFound(layerName string) *GatewayError {
	return &GatewayError{
		Category: CategoryNotFound,
		Message:  fmt.Sprintf("layer '%s' does not exist in the map server", layerName),
	}
}

// Conflicts

// ErrLayerExists creates an error for a new layer already served by the map server
func ErrLayerExists(layerName string) *GatewayError {
	return &GatewayError{
		Category: CategoryConflict,
		Reason:   ReasonLayerExists,
		Message:  fmt.Sprintf("layer '%s' already exists in the map server", layerName),
		Guidance: []string{"Submit an update for the existing layer instead"},
	}
}

// ErrCatalogRecordExists creates an error for a new layer already in the catalog
func ErrCatalogRecordExists(productID, productType string) *GatewayError {
	return &GatewayError{
		Category: CategoryConflict,
		Reason:   ReasonCatalogRecordExists,
		Message:  fmt.Sprintf("product '%s' of type '%s' already exists in the catalog", productID, productType),
		Guidance: []string{"Submit an update for the existing layer instead"},
	}
}

// ErrAmbiguousCatalogRecord creates an error for an id matching several records
func ErrAmbiguousCatalogRecord(id string, count int) *GatewayError {
	return &GatewayError{
		Category: CategoryConflict,
		Reason:   ReasonAmbiguousRecord,
		Message:  fmt.Sprintf("catalog id '%s' matches %d records, expected exactly one", id, count),
	}
}

// ErrCompetingJob creates an error for a product that already has a job in flight
func ErrCompetingJob(productID, productType, jobID string, status string) *GatewayError {
	return &GatewayError{
		Category: CategoryConflict,
		Reason:   ReasonCompetingJob,
		Message:  fmt.Sprintf("product '%s' of type '%s' already has job '%s' in status %s", productID, productType, jobID, status),
		Guidance: []string{
			"Wait for the running job to finish",
			"Retry or abort the failed job instead of submitting a new one",
		},
	}
}

// ErrUnchangedSources creates an error for a retry whose inputs did not change
func ErrUnchangedSources(jobID string) *GatewayError {
	return &GatewayError{
		Category: CategoryConflict,
		Reason:   ReasonUnchangedSources,
		Message:  fmt.Sprintf("retry of job '%s' refused: metadata shapefile is unchanged since the failed validation", jobID),
		Guidance: []string{"Fix the metadata shapefile before retrying"},
	}
}

// Unsupported entities

// ErrUnsupportedEntity creates an error for a structurally or semantically invalid source
func ErrUnsupportedEntity(reason Reason, path string, detail string) *GatewayError {
	return &GatewayError{
		Category: CategoryUnsupportedEntity,
		Reason:   reason,
		Message:  fmt.Sprintf("%s: %s", path, detail),
	}
}

// ErrMissingIndex creates an error for a container without a tile index
func ErrMissingIndex(path string, table string) *GatewayError {
	return ErrUnsupportedEntity(ReasonMissingIndex, path,
		fmt.Sprintf("table '%s' has no unique or manual index on (tile_column, tile_row, zoom_level)", table))
}

// ErrUnsupportedGrid creates an error for a container whose grid is not 2:1
func ErrUnsupportedGrid(path string, ratio int) *GatewayError {
	return ErrUnsupportedEntity(ReasonUnsupportedGrid, path,
		fmt.Sprintf("unsupported tiling grid, matrix width/height ratio is %d (only 2 is supported)", ratio))
}

// ErrUnsupportedTileSize creates an error for a container with wrong or mixed tile sizes
func ErrUnsupportedTileSize(path string, detail string) *GatewayError {
	return ErrUnsupportedEntity(ReasonUnsupportedTileSize, path, "unsupported tile size: "+detail)
}

// ErrContainerUnreadable creates an error for a container the storage engine could not read.
// The engine error is deliberately not attached.
func ErrContainerUnreadable(path string, operation string) *GatewayError {
	return ErrUnsupportedEntity(ReasonUnreadableContainer, path,
		fmt.Sprintf("failed to read container while %s", operation))
}

// ErrRasterUnreadable creates an error for a raster the raster library could not introspect
func ErrRasterUnreadable(path string, detail string) *GatewayError {
	return ErrUnsupportedEntity(ReasonRasterUnreadable, path, "failed to read raster metadata: "+detail)
}

// ErrCorrelation creates an error for a coverage geometry that could not be built
func ErrCorrelation(detail string) *GatewayError {
	return &GatewayError{
		Category: CategoryUnsupportedEntity,
		Reason:   ReasonCorrelationFailed,
		Message:  "failed to correlate footprint with raster extents: " + detail,
	}
}

// Invalid state

// ErrInvalidJobStatus creates an error for a retry of a job that is not retry-eligible
func ErrInvalidJobStatus(jobID string, status string) *GatewayError {
	return &GatewayError{
		Category: CategoryInvalidState,
		Message:  fmt.Sprintf("job '%s' is in status %s, only Failed or Suspended jobs can be retried", jobID, status),
	}
}

// Checksums

// ErrChecksum creates an error for a file that could not be fingerprinted
func ErrChecksum(path string, cause error) *GatewayError {
	return &GatewayError{
		Category: CategoryChecksum,
		Message:  fmt.Sprintf("failed to compute checksum of %s", path),
		Cause:    cause,
	}
}

// Validation

// ErrValidation creates a generic validation error
func ErrValidation(message string) *GatewayError {
	return &GatewayError{
		Category: CategoryValidation,
		Message:  message,
	}
}

// ErrFootprintNotContained creates an error for a footprint outside the raster coverage
func ErrFootprintNotContained() *GatewayError {
	return &GatewayError{
		Category: CategoryValidation,
		Reason:   ReasonFootprintNotContained,
		Message:  "footprint not contained by combined extent",
		Guidance: []string{
			"Check that the product shapefile matches the submitted GeoPackages",
			"Check that the product shapefile uses the same CRS as the GeoPackages",
		},
	}
}

// ErrInvalidFootprint creates an error for an unusable product shapefile
func ErrInvalidFootprint(path string, detail string) *GatewayError {
	return &GatewayError{
		Category: CategoryValidation,
		Reason:   ReasonInvalidFootprint,
		Message:  fmt.Sprintf("invalid product shapefile %s: %s", path, detail),
	}
}

// Configuration and services

// ErrInvalidConfig creates an error for configuration validation failures
func ErrInvalidConfig(field string, reason string) *GatewayError {
	return &GatewayError{
		Category: CategoryConfiguration,
		Message:  fmt.Sprintf("invalid configuration: %s", reason),
		Guidance: []string{
			fmt.Sprintf("Check the '%s' field in your config file", field),
		},
	}
}

// ErrServiceUnavailable creates an error for a downstream system that failed to answer.
// A zero statusCode means the request never got a response.
func ErrServiceUnavailable(serviceName string, statusCode int, cause error) *GatewayError {
	return &GatewayError{
		Category:    CategoryService,
		Message:     fmt.Sprintf("%s service request failed", serviceName),
		Cause:       cause,
		HTTPStatus:  statusCode,
		IsRetryable: statusCode == 0 || ClassifyHTTPError(statusCode) == models.ErrorTypeTransient,
	}
}
