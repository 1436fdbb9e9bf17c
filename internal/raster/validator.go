package raster

import (
	"fmt"

	"github.com/trobanga/rastergate/internal/lib"
	"github.com/trobanga/rastergate/internal/models"
)

// Validator checks raster metadata against the configured allow-lists
type Validator struct {
	config models.ValidationConfig
}

// NewValidator creates a validator bound to an immutable config
func NewValidator(config models.ValidationConfig) *Validator {
	return &Validator{config: config}
}

// Validate checks every record and returns the first violation
func (v *Validator) Validate(infos []models.RasterInfo) error {
	for _, info := range infos {
		if err := v.validateOne(info); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateOne(info models.RasterInfo) error {
	if !v.config.IsCRSAllowed(info.CRS) {
		return lib.ErrUnsupportedEntity(lib.ReasonUnsupportedCRS, info.FileName,
			fmt.Sprintf("unsupported CRS EPSG:%d, allowed %v", info.CRS, v.config.AllowedCRS))
	}

	if !v.config.IsFormatAllowed(info.Format) {
		return lib.ErrUnsupportedEntity(lib.ReasonUnsupportedFormat, info.FileName,
			fmt.Sprintf("unsupported format %q, allowed %v", info.Format, v.config.AllowedFormats))
	}

	minRes, maxRes := v.config.ResolutionRange()
	tolerance := v.config.ResolutionTolerance
	if info.PixelSize < minRes-tolerance || info.PixelSize > maxRes+tolerance {
		return lib.ErrUnsupportedEntity(lib.ReasonPixelSizeOutOfRange, info.FileName,
			fmt.Sprintf("pixel size %g is outside the allowed range [%g, %g]", info.PixelSize, minRes, maxRes))
	}

	return nil
}
