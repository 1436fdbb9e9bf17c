package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"github.com/trobanga/rastergate/internal/models"
)

// Sources is a complete layer source tree below a mount directory
type Sources struct {
	MountDir string
	Files    models.InputFiles
}

// Resolved returns the files with their absolute form below the mount
func (s Sources) Resolved() models.ResolvedInputFiles {
	resolve := func(rel string) models.ResolvedPath {
		return models.ResolvedPath{Relative: rel, Absolute: filepath.Join(s.MountDir, rel)}
	}
	resolved := models.ResolvedInputFiles{
		MetadataShapefile: resolve(s.Files.MetadataShapefilePath),
		ProductShapefile:  resolve(s.Files.ProductShapefilePath),
	}
	for _, p := range s.Files.GpkgFilesPath {
		resolved.GpkgFiles = append(resolved.GpkgFiles, resolve(p))
	}
	return resolved
}

// Abs returns the absolute path of a path relative to the mount
func (s Sources) Abs(rel string) string {
	return filepath.Join(s.MountDir, rel)
}

// WriteSources writes one container per options entry below
// mountDir/layer, a metadata shapefile bundle and a product shapefile whose
// footprint lies well inside the union of the container bounds
func WriteSources(t testing.TB, mountDir string, containers ...GeoPackageOptions) Sources {
	t.Helper()

	if len(containers) == 0 {
		containers = []GeoPackageOptions{DefaultGeoPackage()}
	}

	layerDir := filepath.Join(mountDir, "layer")
	require.NoError(t, os.MkdirAll(filepath.Join(layerDir, "metadata"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(layerDir, "product"), 0o755))

	src := Sources{MountDir: mountDir}
	var union orb.Bound
	for i, opts := range containers {
		name := fmt.Sprintf("source_%d.gpkg", i)
		WriteGeoPackage(t, layerDir, name, opts)
		src.Files.GpkgFilesPath = append(src.Files.GpkgFilesPath, filepath.Join("layer", name))
		if i == 0 {
			union = opts.Bounds
		} else {
			union = union.Union(opts.Bounds)
		}
	}

	WritePolygonShapefile(t, filepath.Join(layerDir, "metadata"), "ShapeMetadata.shp",
		[][]shp.Point{BoundRing(union)})
	src.Files.MetadataShapefilePath = filepath.Join("layer", "metadata", "ShapeMetadata.shp")

	WriteFootprint(t, src, ShrinkBound(union, 0.1))
	src.Files.ProductShapefilePath = filepath.Join("layer", "product", "Product.shp")

	return src
}

// WriteFootprint replaces the product shapefile of src with one polygon
func WriteFootprint(t testing.TB, src Sources, footprint orb.Bound) {
	t.Helper()
	WritePolygonShapefile(t, filepath.Join(src.MountDir, "layer", "product"), "Product.shp",
		[][]shp.Point{BoundRing(footprint)})
}

// ShrinkBound moves every edge inwards by fraction of the bound's size
func ShrinkBound(b orb.Bound, fraction float64) orb.Bound {
	dx := (b.Max[0] - b.Min[0]) * fraction
	dy := (b.Max[1] - b.Min[1]) * fraction
	return orb.Bound{
		Min: orb.Point{b.Min[0] + dx, b.Min[1] + dy},
		Max: orb.Point{b.Max[0] - dx, b.Max[1] - dy},
	}
}
