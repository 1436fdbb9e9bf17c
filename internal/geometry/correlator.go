// Package geometry correlates the declared product footprint with the
// extents of the raster containers.
package geometry

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/twpayne/go-geos"

	"github.com/trobanga/rastergate/internal/lib"
	"github.com/trobanga/rastergate/internal/models"
)

// MetersPerDegree approximates one degree of latitude in meters
const MetersPerDegree = 111320.0

const bufferQuadSegments = 8

// Correlator checks footprint containment in the buffered raster coverage
type Correlator struct {
	bufferDegrees float64
	logger        *lib.Logger
}

// NewCorrelator creates a correlator that tolerates bufferMeters of
// digitization error around the coverage
func NewCorrelator(bufferMeters float64, logger *lib.Logger) *Correlator {
	return &Correlator{
		bufferDegrees: bufferMeters / MetersPerDegree,
		logger:        logger,
	}
}

// Validate unions the extents, buffers the result and checks that the
// footprint lies inside it. Every part of a MultiPolygon must be contained.
func (c *Correlator) Validate(infos []models.RasterInfo, footprint orb.Geometry) error {
	coverage, err := c.Coverage(infos)
	if err != nil {
		return err
	}

	switch fp := footprint.(type) {
	case orb.Polygon:
		return c.requireContained(coverage, fp)
	case orb.MultiPolygon:
		for _, part := range fp {
			if err := c.requireContained(coverage, part); err != nil {
				return err
			}
		}
		return nil
	case nil:
		return lib.ErrInvalidFootprint("", "footprint is empty")
	default:
		return lib.ErrInvalidFootprint("", fmt.Sprintf("footprint must be a Polygon or MultiPolygon, got %s", footprint.GeoJSONType()))
	}
}

// Coverage returns the buffered union of all extents
func (c *Correlator) Coverage(infos []models.RasterInfo) (*geos.Geom, error) {
	if len(infos) == 0 {
		return nil, lib.ErrCorrelation("no raster extents to combine")
	}

	var buffered *geos.Geom
	err := guard("building coverage", func() error {
		var union *geos.Geom
		for _, info := range infos {
			if len(info.Extent) == 0 {
				return fmt.Errorf("%s has no extent", info.FileName)
			}
			extent := geos.NewPolygon(polygonCoords(info.Extent))
			if union == nil {
				union = extent
				continue
			}
			union = union.Union(extent)
		}

		buffered = union.Buffer(c.bufferDegrees, bufferQuadSegments)
		if buffered == nil || buffered.IsEmpty() || !buffered.IsValid() {
			return fmt.Errorf("buffer of the combined extent is degenerate")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buffered, nil
}

func (c *Correlator) requireContained(coverage *geos.Geom, polygon orb.Polygon) error {
	var contained bool
	err := guard("testing containment", func() error {
		if len(polygon) == 0 {
			return fmt.Errorf("footprint polygon has no rings")
		}
		contained = coverage.Contains(geos.NewPolygon(polygonCoords(polygon)))
		return nil
	})
	if err != nil {
		return err
	}
	if !contained {
		c.logger.Debug("Footprint part outside coverage", "bound", polygon.Bound())
		return lib.ErrFootprintNotContained()
	}
	return nil
}

// guard runs fn and turns both its error and a GEOS panic into a CorrelationError
func guard(operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = lib.ErrCorrelation(fmt.Sprintf("%s: %v", operation, r))
		}
	}()
	if ferr := fn(); ferr != nil {
		return lib.ErrCorrelation(fmt.Sprintf("%s: %v", operation, ferr))
	}
	return nil
}

func polygonCoords(polygon orb.Polygon) [][][]float64 {
	coords := make([][][]float64, len(polygon))
	for i, ring := range polygon {
		coords[i] = make([][]float64, 0, len(ring)+1)
		for _, p := range ring {
			coords[i] = append(coords[i], []float64{p[0], p[1]})
		}
		if !ring.Closed() && len(ring) > 0 {
			coords[i] = append(coords[i], []float64{ring[0][0], ring[0][1]})
		}
	}
	return coords
}
