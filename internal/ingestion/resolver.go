package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/trobanga/rastergate/internal/lib"
	"github.com/trobanga/rastergate/internal/models"
)

// Resolver maps request paths onto the source mount
type Resolver struct {
	mountDir string
}

// NewResolver creates a resolver rooted at mountDir
func NewResolver(mountDir string) *Resolver {
	return &Resolver{mountDir: filepath.Clean(mountDir)}
}

// Resolve pairs every declared path with its absolute form.
// Paths that leave the mount are rejected.
func (r *Resolver) Resolve(files models.InputFiles) (models.ResolvedInputFiles, error) {
	var resolved models.ResolvedInputFiles

	for _, p := range files.GpkgFilesPath {
		rp, err := r.resolve(p)
		if err != nil {
			return models.ResolvedInputFiles{}, err
		}
		resolved.GpkgFiles = append(resolved.GpkgFiles, rp)
	}

	var err error
	if resolved.MetadataShapefile, err = r.resolve(files.MetadataShapefilePath); err != nil {
		return models.ResolvedInputFiles{}, err
	}
	if resolved.ProductShapefile, err = r.resolve(files.ProductShapefilePath); err != nil {
		return models.ResolvedInputFiles{}, err
	}
	return resolved, nil
}

func (r *Resolver) resolve(rel string) (models.ResolvedPath, error) {
	if !models.IsSafePath(rel) {
		return models.ResolvedPath{}, lib.ErrValidation(fmt.Sprintf("path must be relative to the source mount: %q", rel))
	}
	clean := filepath.Clean(rel)
	return models.ResolvedPath{
		Relative: clean,
		Absolute: filepath.Join(r.mountDir, clean),
	}, nil
}

// Sidecars lists the files of a shapefile bundle: every file next to the
// .shp whose name is its base name followed by one or more extensions
// (.dbf, .prj, .shp.xml, ...)
func Sidecars(shapefile models.ResolvedPath) ([]models.ResolvedPath, error) {
	dir := filepath.Dir(shapefile.Absolute)
	stem := strings.TrimSuffix(filepath.Base(shapefile.Absolute), filepath.Ext(shapefile.Absolute))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, lib.ErrFileNotFound(shapefile.Relative)
	}

	relDir := filepath.Dir(shapefile.Relative)
	var sidecars []models.ResolvedPath
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, stem+".") {
			continue
		}
		sidecars = append(sidecars, models.ResolvedPath{
			Relative: filepath.Join(relDir, name),
			Absolute: filepath.Join(dir, name),
		})
	}

	if len(sidecars) == 0 {
		return nil, lib.ErrFileNotFound(shapefile.Relative)
	}
	return sidecars, nil
}
