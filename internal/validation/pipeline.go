// Package validation runs the source checks shared by the stand-alone
// validation endpoint and the ingestion flows.
package validation

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/trobanga/rastergate/internal/lib"
	"github.com/trobanga/rastergate/internal/models"
	"github.com/trobanga/rastergate/internal/obs"
)

// MetadataExtractor reads raster metadata from container files
type MetadataExtractor interface {
	ExtractAll(ctx context.Context, paths []string) ([]models.RasterInfo, error)
}

// MetadataValidator checks raster metadata against the allow-lists
type MetadataValidator interface {
	Validate(infos []models.RasterInfo) error
}

// StructureValidator checks the internal layout of container files
type StructureValidator interface {
	Validate(ctx context.Context, paths []string) error
}

// Pipeline checks existence, then raster metadata, then container structure
type Pipeline struct {
	extractor MetadataExtractor
	metadata  MetadataValidator
	structure StructureValidator
	logger    *lib.Logger
}

// NewPipeline creates a source validation pipeline
func NewPipeline(extractor MetadataExtractor, metadata MetadataValidator, structure StructureValidator, logger *lib.Logger) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		metadata:  metadata,
		structure: structure,
		logger:    logger,
	}
}

// Validate runs every check and returns the metadata of the containers in
// declaration order. The first failing check ends the run.
func (p *Pipeline) Validate(ctx context.Context, files models.ResolvedInputFiles) ([]models.RasterInfo, error) {
	if err := CheckExistence(files); err != nil {
		return nil, err
	}

	containers := files.GpkgAbsolutePaths()
	infos, err := p.extractor.ExtractAll(ctx, containers)
	if err != nil {
		return nil, err
	}
	if err := p.metadata.Validate(infos); err != nil {
		return nil, err
	}

	if err := p.structure.Validate(ctx, containers); err != nil {
		return nil, err
	}

	p.logger.Debug("Sources valid", "containers", len(containers))
	return infos, nil
}

// ValidateAndReport is Validate for callers that want a verdict instead of
// an error. Missing files, cancellation and downstream failures are still
// returned as errors.
func (p *Pipeline) ValidateAndReport(ctx context.Context, files models.ResolvedInputFiles) (models.ValidationOutcome, error) {
	start := time.Now()

	_, err := p.Validate(ctx, files)
	if err == nil {
		obs.RecordValidation(start, true, "")
		return models.ValidationOutcome{IsValid: true, Message: "Sources are valid"}, nil
	}

	if !IsVerdict(err) {
		return models.ValidationOutcome{}, err
	}

	lib.LogValidationFailed(p.logger, len(files.GpkgFiles), err)
	obs.RecordValidation(start, false, string(reasonOf(err)))

	var gwErr *lib.GatewayError
	errors.As(err, &gwErr)
	return models.ValidationOutcome{IsValid: false, Message: gwErr.Message}, nil
}

// IsVerdict reports whether err is a judgement on the sources rather than a
// failure to reach one
func IsVerdict(err error) bool {
	category, _ := lib.CategoryOf(err)
	switch category {
	case lib.CategoryUnsupportedEntity, lib.CategoryValidation:
		return true
	default:
		return false
	}
}

// CheckExistence requires every declared path to be a regular file
func CheckExistence(files models.ResolvedInputFiles) error {
	for _, p := range files.All() {
		info, err := os.Stat(p.Absolute)
		if err != nil || !info.Mode().IsRegular() {
			return lib.ErrFileNotFound(p.Relative)
		}
	}
	return nil
}

func reasonOf(err error) lib.Reason {
	var gwErr *lib.GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Reason
	}
	return lib.ReasonNone
}
