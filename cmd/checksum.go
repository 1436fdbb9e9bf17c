package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/trobanga/rastergate/internal/checksum"
	"github.com/trobanga/rastergate/internal/lib"
	"github.com/trobanga/rastergate/internal/models"
	"github.com/trobanga/rastergate/internal/services"
	"github.com/trobanga/rastergate/internal/ui"
)

var (
	checksumAlgorithm  string
	checksumNoProgress bool
)

var checksumCmd = &cobra.Command{
	Use:   "checksum <file>...",
	Short: "Compute sidecar fingerprints the way the gateway does",
	Long: `Compute the content fingerprint of each file with the configured
algorithm (XXH64 unless checksum.algorithm or --algorithm says otherwise).

The output matches the checksums stored in a job's validation task, which
makes it easy to tell whether a retry will see changed metadata.

Example:
  rastergate checksum metadata/ShapeMetadata.*
  rastergate checksum --algorithm BLAKE3 metadata/ShapeMetadata.shp`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChecksum,
}

func init() {
	checksumCmd.Flags().StringVar(&checksumAlgorithm, "algorithm", "", "XXH64, BLAKE3 or SHA256 (default from config)")
	checksumCmd.Flags().BoolVar(&checksumNoProgress, "no-progress", false, "do not render a progress bar")
	rootCmd.AddCommand(checksumCmd)
}

func runChecksum(cmd *cobra.Command, args []string) error {
	config, err := services.LoadLocalConfig(cfgFile)
	if err != nil {
		return err
	}
	algorithm := config.Checksum.Algorithm
	if checksumAlgorithm != "" {
		algorithm = checksumAlgorithm
	}

	paths := make([]models.ResolvedPath, 0, len(args))
	var total int64
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", arg, err)
		}
		info, err := os.Stat(abs)
		if err != nil || !info.Mode().IsRegular() {
			return lib.ErrFileNotFound(arg)
		}
		total += info.Size()
		paths = append(paths, models.ResolvedPath{Relative: arg, Absolute: abs})
	}

	var opts []checksum.Option
	var bar *ui.ProgressBar
	if !checksumNoProgress {
		bar = ui.NewProgressBar(total, "hashing", cmd.ErrOrStderr())
		opts = append(opts, checksum.WithProgress(bar.Add))
	}

	fingerprinter, err := checksum.New(algorithm, opts...)
	if err != nil {
		return err
	}

	throughput := ui.NewThroughputCalculator()
	var fingerprints []models.FileFingerprint
	err = lib.LogOperation(newLogger(config), "fingerprint files", func() error {
		var err error
		fingerprints, err = fingerprinter.FingerprintAll(cmd.Context(), paths)
		return err
	})
	if err != nil {
		return err
	}
	throughput.Update(int64(len(fingerprints)), total)

	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(cmd.ErrOrStderr())
	}

	out := cmd.OutOrStdout()
	for _, fp := range fingerprints {
		fmt.Fprintf(out, "%s  %s  %s\n", fp.Checksum, fp.Algorithm, fp.FileName)
	}
	if verbose {
		fmt.Fprintln(cmd.ErrOrStderr(), throughput.Summary())
	}
	return nil
}
