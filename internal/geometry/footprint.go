package geometry

import (
	"fmt"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/trobanga/rastergate/internal/lib"
)

// ReadFootprint reads the product shapefile, which must hold exactly one
// polygon feature. Outer rings and holes are told apart by orientation
// (clockwise outer rings in shapefiles); several outer rings give a
// MultiPolygon.
func ReadFootprint(path string) (orb.Geometry, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, lib.ErrInvalidFootprint(path, "cannot open shapefile")
	}
	defer func() { _ = reader.Close() }()

	if reader.GeometryType != shp.POLYGON {
		return nil, lib.ErrInvalidFootprint(path,
			fmt.Sprintf("expected polygon geometry, found shape type %d", reader.GeometryType))
	}

	var features []*shp.Polygon
	for reader.Next() {
		_, shape := reader.Shape()
		polygon, ok := shape.(*shp.Polygon)
		if !ok {
			return nil, lib.ErrInvalidFootprint(path, fmt.Sprintf("unexpected shape %T", shape))
		}
		features = append(features, polygon)
	}
	if err := reader.Err(); err != nil {
		return nil, lib.ErrInvalidFootprint(path, "shapefile is corrupt")
	}
	if len(features) != 1 {
		return nil, lib.ErrInvalidFootprint(path, fmt.Sprintf("expected exactly one feature, found %d", len(features)))
	}

	polygons := groupRings(splitRings(features[0]))
	switch len(polygons) {
	case 0:
		return nil, lib.ErrInvalidFootprint(path, "feature has no rings")
	case 1:
		return polygons[0], nil
	default:
		return orb.MultiPolygon(polygons), nil
	}
}

func splitRings(polygon *shp.Polygon) []orb.Ring {
	rings := make([]orb.Ring, 0, len(polygon.Parts))
	for i, start := range polygon.Parts {
		end := int32(len(polygon.Points))
		if i+1 < len(polygon.Parts) {
			end = polygon.Parts[i+1]
		}
		if start < 0 || end > int32(len(polygon.Points)) || start >= end {
			continue
		}
		ring := make(orb.Ring, 0, end-start)
		for _, p := range polygon.Points[start:end] {
			ring = append(ring, orb.Point{p.X, p.Y})
		}
		rings = append(rings, ring)
	}
	return rings
}

// groupRings attaches every counter-clockwise ring to the outer ring that
// contains it. A hole with no enclosing outer ring becomes a polygon of its own.
func groupRings(rings []orb.Ring) []orb.Polygon {
	var polygons []orb.Polygon
	var holes []orb.Ring
	for _, ring := range rings {
		if ring.Orientation() == orb.CW {
			polygons = append(polygons, orb.Polygon{ring})
		} else {
			holes = append(holes, ring)
		}
	}

	for _, hole := range holes {
		attached := false
		for i := range polygons {
			if planar.RingContains(polygons[i][0], hole[0]) {
				polygons[i] = append(polygons[i], hole)
				attached = true
				break
			}
		}
		if !attached {
			polygons = append(polygons, orb.Polygon{hole})
		}
	}
	return polygons
}
