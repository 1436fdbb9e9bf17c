package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/trobanga/rastergate/internal/geometry"
	"github.com/trobanga/rastergate/internal/lib"
	"github.com/trobanga/rastergate/internal/models"
	"github.com/trobanga/rastergate/internal/services"
	"github.com/trobanga/rastergate/internal/ui"
	"github.com/trobanga/rastergate/internal/validation"
)

var (
	validateGpkg        []string
	validateMetadataShp string
	validateProductShp  string
	validateJSON        bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate layer sources on the local filesystem",
	Long: `Run the source checks of the gateway against local files, without
contacting any downstream service.

Checks, in order: file existence, raster metadata (CRS, format, pixel size),
container structure (tile index, grid, tile size) and footprint containment.

Example:
  rastergate validate --gpkg a.gpkg --gpkg b.gpkg \
    --metadata-shp metadata/ShapeMetadata.shp --product-shp product/Product.shp`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringSliceVar(&validateGpkg, "gpkg", nil, "GeoPackage container (repeatable)")
	validateCmd.Flags().StringVar(&validateMetadataShp, "metadata-shp", "", "metadata shapefile")
	validateCmd.Flags().StringVar(&validateProductShp, "product-shp", "", "product footprint shapefile")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "print the outcome as JSON")
	_ = validateCmd.MarkFlagRequired("gpkg")
	_ = validateCmd.MarkFlagRequired("metadata-shp")
	_ = validateCmd.MarkFlagRequired("product-shp")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	config, err := services.LoadLocalConfig(cfgFile)
	if err != nil {
		return err
	}
	logger := newLogger(config)

	files := models.InputFiles{
		GpkgFilesPath:         validateGpkg,
		MetadataShapefilePath: validateMetadataShp,
		ProductShapefilePath:  validateProductShp,
	}
	if err := files.Validate(); err != nil {
		return lib.ErrValidation(err.Error())
	}
	resolved, err := resolveLocal(files)
	if err != nil {
		return err
	}

	spinner := ui.NewSpinner("Validating sources", cmd.ErrOrStderr())
	if !validateJSON {
		spinner.Start()
	}

	outcome, err := validateLocal(cmd, config, logger, resolved)
	if err != nil {
		if !validateJSON {
			spinner.Stop(false)
		}
		return err
	}

	if validateJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(outcome); err != nil {
			return err
		}
	} else {
		spinner.Stop(outcome.IsValid)
		fmt.Fprintln(cmd.OutOrStdout(), outcome.Message)
	}

	if !outcome.IsValid {
		return fmt.Errorf("sources are invalid")
	}
	return nil
}

// validateLocal runs the pipeline and the footprint correlation, turning
// verdicts into an outcome and returning every other failure
func validateLocal(cmd *cobra.Command, config *models.GatewayConfig, logger *lib.Logger, resolved models.ResolvedInputFiles) (models.ValidationOutcome, error) {
	err := checkSources(cmd, config, logger, resolved)
	if err == nil {
		return models.ValidationOutcome{IsValid: true, Message: "Sources are valid"}, nil
	}
	if !validation.IsVerdict(err) {
		return models.ValidationOutcome{}, err
	}
	var gwErr *lib.GatewayError
	errors.As(err, &gwErr)
	return models.ValidationOutcome{IsValid: false, Message: gwErr.Message}, nil
}

func checkSources(cmd *cobra.Command, config *models.GatewayConfig, logger *lib.Logger, resolved models.ResolvedInputFiles) error {
	infos, err := newSourcePipeline(config, logger).Validate(cmd.Context(), resolved)
	if err != nil {
		return err
	}
	footprint, err := geometry.ReadFootprint(resolved.ProductShapefile.Absolute)
	if err != nil {
		return err
	}
	return geometry.NewCorrelator(config.Validation.ExtentBufferMeters, logger).Validate(infos, footprint)
}

func resolveLocal(files models.InputFiles) (models.ResolvedInputFiles, error) {
	resolve := func(p string) (models.ResolvedPath, error) {
		abs, err := filepath.Abs(p)
		if err != nil {
			return models.ResolvedPath{}, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		return models.ResolvedPath{Relative: p, Absolute: abs}, nil
	}

	var resolved models.ResolvedInputFiles
	for _, p := range files.GpkgFilesPath {
		rp, err := resolve(p)
		if err != nil {
			return models.ResolvedInputFiles{}, err
		}
		resolved.GpkgFiles = append(resolved.GpkgFiles, rp)
	}

	var err error
	if resolved.MetadataShapefile, err = resolve(files.MetadataShapefilePath); err != nil {
		return models.ResolvedInputFiles{}, err
	}
	if resolved.ProductShapefile, err = resolve(files.ProductShapefilePath); err != nil {
		return models.ResolvedInputFiles{}, err
	}
	return resolved, nil
}
