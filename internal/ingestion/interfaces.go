package ingestion

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/trobanga/rastergate/internal/models"
)

// JobQueue is the downstream job manager
type JobQueue interface {
	CreateJob(ctx context.Context, payload models.CreateJobRequest) (models.CreateJobResponse, error)
	GetJob(ctx context.Context, jobID string) (models.Job, error)
	GetTasks(ctx context.Context, jobID string) ([]models.Task, error)
	UpdateJob(ctx context.Context, jobID string, patch models.JobUpdate) error
	UpdateTask(ctx context.Context, jobID string, taskID string, patch models.TaskUpdate) error
	FindJobs(ctx context.Context, criteria models.FindJobsCriteria) ([]models.Job, error)
}

// Catalog is the system of record for published layers
type Catalog interface {
	FindByCriteria(ctx context.Context, productID, productType string) ([]models.CatalogRecord, error)
	FindByID(ctx context.Context, id string) ([]models.CatalogRecord, error)
}

// MapServer answers whether a layer is already served
type MapServer interface {
	LayerExists(ctx context.Context, layerName string) (bool, error)
}

// ValidationEntities owns the per-product result of the async validation
type ValidationEntities interface {
	DeleteValidationEntity(ctx context.Context, productID, productType string) error
}

// SourceValidator checks the declared sources before a job is accepted
type SourceValidator interface {
	Validate(ctx context.Context, files models.ResolvedInputFiles) ([]models.RasterInfo, error)
	ValidateAndReport(ctx context.Context, files models.ResolvedInputFiles) (models.ValidationOutcome, error)
}

// FootprintCorrelator checks the footprint against the raster coverage
type FootprintCorrelator interface {
	Validate(infos []models.RasterInfo, footprint orb.Geometry) error
}

// Fingerprinter digests sidecar files
type Fingerprinter interface {
	FingerprintAll(ctx context.Context, paths []models.ResolvedPath) ([]models.FileFingerprint, error)
}
