package cmd

import (
	"time"

	"github.com/trobanga/rastergate/internal/checksum"
	"github.com/trobanga/rastergate/internal/geometry"
	"github.com/trobanga/rastergate/internal/gpkg"
	"github.com/trobanga/rastergate/internal/ingestion"
	"github.com/trobanga/rastergate/internal/lib"
	"github.com/trobanga/rastergate/internal/models"
	"github.com/trobanga/rastergate/internal/raster"
	"github.com/trobanga/rastergate/internal/services"
	"github.com/trobanga/rastergate/internal/validation"
)

func newSourcePipeline(config *models.GatewayConfig, logger *lib.Logger) *validation.Pipeline {
	return validation.NewPipeline(
		raster.NewExtractor(logger),
		raster.NewValidator(config.Validation),
		gpkg.NewStructureValidator(config.Validation.TileSize, logger),
		logger,
	)
}

func newOrchestrator(config *models.GatewayConfig, logger *lib.Logger) (*ingestion.Orchestrator, error) {
	fingerprinter, err := checksum.New(config.Checksum.Algorithm)
	if err != nil {
		return nil, err
	}

	httpClient := services.NewHTTPClient(
		time.Duration(config.Services.TimeoutSeconds)*time.Second,
		config.Retry,
		logger,
	)

	return ingestion.NewOrchestrator(config.Jobs, ingestion.Dependencies{
		Resolver:      ingestion.NewResolver(config.Sources.MountDir),
		Sources:       newSourcePipeline(config, logger),
		Correlator:    geometry.NewCorrelator(config.Validation.ExtentBufferMeters, logger),
		Fingerprinter: fingerprinter,
		JobQueue:      services.NewJobManagerClient(config.Services.JobManagerURL, httpClient, logger),
		Catalog:       services.NewCatalogClient(config.Services.CatalogURL, httpClient, logger),
		MapServer:     services.NewMapServerClient(config.Services.MapServerURL, httpClient, logger),
		Entities:      services.NewPolygonPartsClient(config.Services.PolygonPartsURL, httpClient, logger),
	}, logger), nil
}
