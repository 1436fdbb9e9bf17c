/*
Rastergate is an admission gateway for raster layer ingestion.
*/
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trobanga/rastergate/internal/lib"
	"github.com/trobanga/rastergate/internal/models"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rastergate",
	Short: "Rastergate - raster layer ingestion gateway",
	Long: `Rastergate validates raster layer sources before they are handed to the
asynchronous ingestion pipeline.

A layer is a set of GeoPackage tile containers plus a metadata shapefile and a
product footprint shapefile. Before a job is created the gateway checks:
  - container structure (tile index, 2:1 grid, tile size)
  - raster metadata (CRS, format, pixel size)
  - that the footprint lies inside the combined container extents

Failed jobs can be retried; the metadata shapefile fingerprints decide
whether the validation has to run again.

Example:
  rastergate serve --config /etc/rastergate/rastergate.yaml
  rastergate validate --gpkg area.gpkg --metadata-shp ShapeMetadata.shp --product-shp Product.shp
  rastergate checksum ShapeMetadata.shp ShapeMetadata.dbf`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var gwErr *lib.GatewayError
		if errors.As(err, &gwErr) {
			fmt.Fprint(os.Stderr, gwErr.UserMessage())
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./rastergate.yaml, ~/.config/rastergate/rastergate.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.SetVersionTemplate("Rastergate version {{.Version}}\n")
}

// newLogger builds the process logger from config, --verbose wins
func newLogger(config *models.GatewayConfig) *lib.Logger {
	level := lib.ParseLogLevel(config.Log.Level)
	if verbose {
		level = lib.LogLevelDebug
	}
	return lib.NewLogger(level)
}
