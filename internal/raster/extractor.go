// Package raster reads and validates per-container raster metadata.
package raster

import (
	"context"
	"errors"
	"strings"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/trobanga/rastergate/internal/gpkg"
	"github.com/trobanga/rastergate/internal/lib"
	"github.com/trobanga/rastergate/internal/models"
)

// Format names reported by the extractor
const (
	FormatGeoPackage = "GPKG"
	FormatSQLite     = "SQLite"
)

// Extractor reads raster metadata from the GeoPackage raster tables
type Extractor struct {
	logger *lib.Logger
}

// NewExtractor creates a metadata extractor
func NewExtractor(logger *lib.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract reads CRS, finest pixel size, format and extent of one container
func (e *Extractor) Extract(ctx context.Context, path string) (models.RasterInfo, error) {
	container, err := gpkg.Open(ctx, path)
	if err != nil {
		return models.RasterInfo{}, e.fail(path, "cannot open file", err)
	}
	defer func() { _ = container.Close() }()

	appID, err := container.ApplicationID(ctx)
	if err != nil {
		return models.RasterInfo{}, e.fail(path, "cannot read file header", err)
	}
	format := FormatGeoPackage
	if appID != gpkg.ApplicationID {
		format = FormatSQLite
	}

	table, err := container.TilesTable(ctx)
	if err != nil {
		return models.RasterInfo{}, e.fail(path, "no raster band found", err)
	}

	ref, err := container.SpatialRef(ctx, table)
	if err != nil {
		return models.RasterInfo{}, e.fail(path, "cannot read spatial reference", err)
	}
	if !strings.EqualFold(ref.Organization, "EPSG") {
		return models.RasterInfo{}, lib.ErrRasterUnreadable(path,
			"spatial reference is not an EPSG code (organization "+ref.Organization+")")
	}

	pixelSize, err := container.FinestPixelSize(ctx, table)
	if err != nil {
		return models.RasterInfo{}, e.fail(path, "cannot read geo-transform", err)
	}

	bounds, err := container.ContentBounds(ctx, table)
	if err != nil {
		return models.RasterInfo{}, e.fail(path, "cannot read extent", err)
	}
	extent := orb.Bound{
		Min: orb.Point{bounds.MinX, bounds.MinY},
		Max: orb.Point{bounds.MaxX, bounds.MaxY},
	}

	return models.RasterInfo{
		FileName:  path,
		CRS:       ref.OrganizationID,
		PixelSize: pixelSize,
		Format:    format,
		Extent:    extent.ToPolygon(),
	}, nil
}

// ExtractAll reads every container concurrently. The first failure cancels
// the rest. Results are in input order.
func (e *Extractor) ExtractAll(ctx context.Context, paths []string) ([]models.RasterInfo, error) {
	infos := make([]models.RasterInfo, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			info, err := e.Extract(gctx, path)
			if err != nil {
				return err
			}
			infos[i] = info
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}

// fail logs the engine error and returns one that names the file only
func (e *Extractor) fail(path string, detail string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var gwErr *lib.GatewayError
	if !errors.As(err, &gwErr) {
		e.logger.Warn("Raster metadata read failed", "file", path, "error", err)
	}
	return lib.ErrRasterUnreadable(path, detail)
}
