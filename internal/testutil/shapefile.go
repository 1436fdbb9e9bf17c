package testutil

import (
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

// BoxRing returns a closed clockwise ring, the shapefile orientation of an outer ring
func BoxRing(minX, minY, maxX, maxY float64) []shp.Point {
	return []shp.Point{
		{X: minX, Y: minY},
		{X: minX, Y: maxY},
		{X: maxX, Y: maxY},
		{X: maxX, Y: minY},
		{X: minX, Y: minY},
	}
}

// HoleRing returns a closed counter-clockwise ring, the shapefile orientation of a hole
func HoleRing(minX, minY, maxX, maxY float64) []shp.Point {
	ring := BoxRing(minX, minY, maxX, maxY)
	for i, j := 0, len(ring)-1; i < j; i, j = i+1, j-1 {
		ring[i], ring[j] = ring[j], ring[i]
	}
	return ring
}

// BoundRing converts an orb bound into an outer shapefile ring
func BoundRing(b orb.Bound) []shp.Point {
	return BoxRing(b.Min[0], b.Min[1], b.Max[0], b.Max[1])
}

// WritePolygonShapefile writes one polygon feature per entry of features,
// each made of the given rings, with a one-column attribute table.
// It returns the path of the .shp file.
func WritePolygonShapefile(t testing.TB, dir, name string, features ...[][]shp.Point) string {
	t.Helper()

	path := filepath.Join(dir, name)
	writer, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	require.NoError(t, writer.SetFields([]shp.Field{shp.StringField("NAME", 32)}))
	for _, rings := range features {
		polygon := shp.Polygon(*shp.NewPolyLine(rings))
		row := writer.Write(&polygon)
		require.NoError(t, writer.WriteAttribute(int(row), 0, name))
	}
	writer.Close()

	return path
}

// WritePointShapefile writes a shapefile with a single point feature
func WritePointShapefile(t testing.TB, dir, name string, x, y float64) string {
	t.Helper()

	path := filepath.Join(dir, name)
	writer, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, writer.SetFields([]shp.Field{shp.StringField("NAME", 32)}))
	row := writer.Write(&shp.Point{X: x, Y: y})
	require.NoError(t, writer.WriteAttribute(int(row), 0, name))
	writer.Close()

	return path
}
