package validation

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trobanga/rastergate/internal/gpkg"
	"github.com/trobanga/rastergate/internal/lib"
	"github.com/trobanga/rastergate/internal/models"
	"github.com/trobanga/rastergate/internal/raster"
	"github.com/trobanga/rastergate/internal/testutil"
)

func quietLogger() *lib.Logger {
	return lib.NewLoggerTo(io.Discard, lib.LogLevelError)
}

func realPipeline() *Pipeline {
	cfg := models.DefaultConfig().Validation
	logger := quietLogger()
	return NewPipeline(
		raster.NewExtractor(logger),
		raster.NewValidator(cfg),
		gpkg.NewStructureValidator(cfg.TileSize, logger),
		logger,
	)
}

type recordingStage struct {
	name  string
	calls *[]string
	err   error
}

func (s recordingStage) ExtractAll(_ context.Context, paths []string) ([]models.RasterInfo, error) {
	*s.calls = append(*s.calls, s.name)
	if s.err != nil {
		return nil, s.err
	}
	return make([]models.RasterInfo, len(paths)), nil
}

func (s recordingStage) Validate(_ []models.RasterInfo) error {
	*s.calls = append(*s.calls, s.name)
	return s.err
}

type recordingStructure recordingStage

func (s recordingStructure) Validate(_ context.Context, _ []string) error {
	*s.calls = append(*s.calls, s.name)
	return s.err
}

func TestPipeline_ValidSources(t *testing.T) {
	src := testutil.WriteSources(t, t.TempDir())

	infos, err := realPipeline().Validate(context.Background(), src.Resolved())
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, 4326, infos[0].CRS)
}

func TestPipeline_StageOrder(t *testing.T) {
	src := testutil.WriteSources(t, t.TempDir())
	var calls []string

	p := NewPipeline(
		recordingStage{name: "extract", calls: &calls},
		recordingStage{name: "metadata", calls: &calls},
		recordingStructure{name: "structure", calls: &calls},
		quietLogger(),
	)
	_, err := p.Validate(context.Background(), src.Resolved())
	require.NoError(t, err)
	assert.Equal(t, []string{"extract", "metadata", "structure"}, calls)
}

func TestPipeline_MetadataFailureSkipsStructure(t *testing.T) {
	src := testutil.WriteSources(t, t.TempDir())
	var calls []string
	rejected := lib.ErrUnsupportedEntity(lib.ReasonUnsupportedCRS, "a.gpkg", "unsupported CRS")

	p := NewPipeline(
		recordingStage{name: "extract", calls: &calls},
		recordingStage{name: "metadata", calls: &calls, err: rejected},
		recordingStructure{name: "structure", calls: &calls},
		quietLogger(),
	)
	_, err := p.Validate(context.Background(), src.Resolved())
	assert.ErrorIs(t, err, rejected)
	assert.Equal(t, []string{"extract", "metadata"}, calls)
}

func TestPipeline_MissingFileStopsBeforeExtraction(t *testing.T) {
	src := testutil.WriteSources(t, t.TempDir())
	require.NoError(t, os.Remove(src.Abs(src.Files.ProductShapefilePath)))
	var calls []string

	p := NewPipeline(
		recordingStage{name: "extract", calls: &calls},
		recordingStage{name: "metadata", calls: &calls},
		recordingStructure{name: "structure", calls: &calls},
		quietLogger(),
	)
	_, err := p.Validate(context.Background(), src.Resolved())
	require.Error(t, err)
	assert.True(t, lib.IsCategory(err, lib.CategoryNotFound))
	assert.Contains(t, err.Error(), src.Files.ProductShapefilePath)
	assert.Empty(t, calls)
}

func TestValidateAndReport_Valid(t *testing.T) {
	src := testutil.WriteSources(t, t.TempDir())

	outcome, err := realPipeline().ValidateAndReport(context.Background(), src.Resolved())
	require.NoError(t, err)
	assert.True(t, outcome.IsValid)
}

func TestValidateAndReport_InvalidContainers(t *testing.T) {
	mercator := testutil.DefaultGeoPackage()
	mercator.SRSID = 3857
	mercator.OrganizationCoordsysID = 3857

	wide := testutil.DefaultGeoPackage()
	wide.Matrices = []testutil.TileMatrix{{
		Zoom: 0, MatrixWidth: 400, MatrixHeight: 100, TileWidth: 256, TileHeight: 256,
		PixelXSize: models.ResolutionForZoom(0), PixelYSize: models.ResolutionForZoom(0),
	}}

	unindexed := testutil.DefaultGeoPackage()
	unindexed.Index = testutil.IndexNone

	tests := []struct {
		name    string
		opts    testutil.GeoPackageOptions
		message string
	}{
		{"CRS 3857", mercator, "3857"},
		{"4:1 grid", wide, "ratio is 4"},
		{"missing index", unindexed, "index"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testutil.WriteSources(t, t.TempDir(), tt.opts)

			outcome, err := realPipeline().ValidateAndReport(context.Background(), src.Resolved())
			require.NoError(t, err)
			assert.False(t, outcome.IsValid)
			assert.Contains(t, outcome.Message, tt.message)
		})
	}
}

func TestValidateAndReport_400x200IsAccepted(t *testing.T) {
	opts := testutil.DefaultGeoPackage()
	opts.Matrices = []testutil.TileMatrix{{
		Zoom: 0, MatrixWidth: 400, MatrixHeight: 200, TileWidth: 256, TileHeight: 256,
		PixelXSize: models.ResolutionForZoom(0), PixelYSize: models.ResolutionForZoom(0),
	}}
	src := testutil.WriteSources(t, t.TempDir(), opts)

	outcome, err := realPipeline().ValidateAndReport(context.Background(), src.Resolved())
	require.NoError(t, err)
	assert.True(t, outcome.IsValid, outcome.Message)
}

func TestValidateAndReport_NotFoundPropagates(t *testing.T) {
	src := testutil.WriteSources(t, t.TempDir())
	require.NoError(t, os.Remove(src.Abs(src.Files.GpkgFilesPath[0])))

	_, err := realPipeline().ValidateAndReport(context.Background(), src.Resolved())
	require.Error(t, err)
	assert.True(t, lib.IsCategory(err, lib.CategoryNotFound))
}

func TestValidateAndReport_CancellationPropagates(t *testing.T) {
	src := testutil.WriteSources(t, t.TempDir())
	var calls []string

	p := NewPipeline(
		recordingStage{name: "extract", calls: &calls, err: context.Canceled},
		recordingStage{name: "metadata", calls: &calls},
		recordingStructure{name: "structure", calls: &calls},
		quietLogger(),
	)
	_, err := p.ValidateAndReport(context.Background(), src.Resolved())
	assert.True(t, errors.Is(err, context.Canceled))
}
