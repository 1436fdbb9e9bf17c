package models

import (
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
)

// InputFiles are the source files of a layer, relative to the source mount
type InputFiles struct {
	GpkgFilesPath         []string `json:"gpkgFilesPath"`
	MetadataShapefilePath string   `json:"metadataShapefilePath"`
	ProductShapefilePath  string   `json:"productShapefilePath"`
}

// ResolvedPath keeps the relative and absolute form of one source path
// together so the two are never mixed within an operation
type ResolvedPath struct {
	Relative string `json:"relative"`
	Absolute string `json:"absolute"`
}

// ResolvedInputFiles is InputFiles after resolution against the mount
type ResolvedInputFiles struct {
	GpkgFiles         []ResolvedPath
	MetadataShapefile ResolvedPath
	ProductShapefile  ResolvedPath
}

// All returns every declared path: containers first, then both shapefiles
func (r ResolvedInputFiles) All() []ResolvedPath {
	all := make([]ResolvedPath, 0, len(r.GpkgFiles)+2)
	all = append(all, r.GpkgFiles...)
	all = append(all, r.MetadataShapefile, r.ProductShapefile)
	return all
}

// GpkgAbsolutePaths returns the absolute paths of the raster containers
func (r ResolvedInputFiles) GpkgAbsolutePaths() []string {
	paths := make([]string, len(r.GpkgFiles))
	for i, p := range r.GpkgFiles {
		paths[i] = p.Absolute
	}
	return paths
}

// Relative returns the InputFiles form that gets persisted in a job
func (r ResolvedInputFiles) Relative() InputFiles {
	gpkg := make([]string, len(r.GpkgFiles))
	for i, p := range r.GpkgFiles {
		gpkg[i] = p.Relative
	}
	return InputFiles{
		GpkgFilesPath:         gpkg,
		MetadataShapefilePath: r.MetadataShapefile.Relative,
		ProductShapefilePath:  r.ProductShapefile.Relative,
	}
}

// RasterInfo is what the raster library reports for one container file
type RasterInfo struct {
	FileName  string      `json:"fileName"`
	CRS       int         `json:"crs"`
	PixelSize float64     `json:"pixelSize"`
	Format    string      `json:"format"`
	Extent    orb.Polygon `json:"-"`
}

// ContainerGrid is the tiling topology of a container
type ContainerGrid string

const (
	GridOneOnOne    ContainerGrid = "1x1"
	GridTwoOnOne    ContainerGrid = "2x1"
	GridUnsupported ContainerGrid = "unsupported"
)

// GridFromRatio classifies a rounded width/height ratio
func GridFromRatio(ratio int) ContainerGrid {
	switch ratio {
	case 1:
		return GridOneOnOne
	case 2:
		return GridTwoOnOne
	default:
		return GridUnsupported
	}
}

// FileFingerprint is the content digest of one sidecar file
type FileFingerprint struct {
	Algorithm string `json:"algorithm"`
	Checksum  string `json:"checksum"`
	FileName  string `json:"fileName"` // Relative to the source mount
}

// ValidationOutcome is the result of the stand-alone source validation
type ValidationOutcome struct {
	IsValid bool   `json:"isValid"`
	Message string `json:"message"`
}

// IsSafePath checks if a file path stays within the source mount
// Prevents path traversal attacks (e.g., ../../etc/passwd)
func IsSafePath(path string) bool {
	if path == "" {
		return false
	}

	clean := filepath.Clean(path)

	if filepath.IsAbs(clean) {
		return false
	}

	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return false
	}

	return true
}
