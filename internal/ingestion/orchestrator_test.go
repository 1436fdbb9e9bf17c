package ingestion

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trobanga/rastergate/internal/checksum"
	"github.com/trobanga/rastergate/internal/geometry"
	"github.com/trobanga/rastergate/internal/gpkg"
	"github.com/trobanga/rastergate/internal/lib"
	"github.com/trobanga/rastergate/internal/models"
	"github.com/trobanga/rastergate/internal/raster"
	"github.com/trobanga/rastergate/internal/testutil"
	"github.com/trobanga/rastergate/internal/validation"
)

const catalogID = "5a6a7f4e-3c39-4f0b-8a34-0d2f7f1f3a11"

type harness struct {
	src          testutil.Sources
	orchestrator *Orchestrator
	queue        *fakeQueue
	catalog      *fakeCatalog
	mapServer    *fakeMapServer
	entities     *fakeEntities
	fingerprints *countingFingerprinter
	config       models.GatewayConfig
}

func newHarness(t *testing.T, containers ...testutil.GeoPackageOptions) *harness {
	t.Helper()

	cfg := models.DefaultConfig()
	logger := lib.NewLoggerTo(io.Discard, lib.LogLevelError)
	src := testutil.WriteSources(t, t.TempDir(), containers...)

	fp, err := checksum.New(cfg.Checksum.Algorithm)
	require.NoError(t, err)

	h := &harness{
		src:          src,
		queue:        newFakeQueue(),
		catalog:      &fakeCatalog{byID: map[string][]models.CatalogRecord{}},
		mapServer:    &fakeMapServer{layers: map[string]bool{}},
		entities:     &fakeEntities{},
		fingerprints: &countingFingerprinter{next: fp},
		config:       cfg,
	}

	pipeline := validation.NewPipeline(
		raster.NewExtractor(logger),
		raster.NewValidator(cfg.Validation),
		gpkg.NewStructureValidator(cfg.Validation.TileSize, logger),
		logger,
	)
	h.orchestrator = NewOrchestrator(cfg.Jobs, Dependencies{
		Resolver:      NewResolver(src.MountDir),
		Sources:       pipeline,
		Correlator:    geometry.NewCorrelator(cfg.Validation.ExtentBufferMeters, logger),
		Fingerprinter: h.fingerprints,
		JobQueue:      h.queue,
		Catalog:       h.catalog,
		MapServer:     h.mapServer,
		Entities:      h.entities,
	}, logger)
	return h
}

func newLayerRequest(src testutil.Sources) models.NewLayerRequest {
	return models.NewLayerRequest{
		InputFiles: src.Files,
		Metadata: models.LayerMetadata{
			ProductID:      "ORTHO_A",
			ProductName:    "Ortho A",
			ProductType:    "Orthophoto",
			Classification: "4",
		},
	}
}

func TestNewLayer_SubmitsJob(t *testing.T) {
	h := newHarness(t)

	resp, err := h.orchestrator.NewLayer(context.Background(), newLayerRequest(h.src))
	require.NoError(t, err)
	assert.Equal(t, models.JobResponse{JobID: "job-1", TaskID: "task-1"}, resp)

	require.Len(t, h.queue.created, 1)
	job := h.queue.created[0]
	assert.Equal(t, h.config.Jobs.NewType, job.Type)
	assert.Equal(t, "ORTHO_A", job.ResourceID)
	assert.Equal(t, "Orthophoto", job.ProductType)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, h.src.Files.GpkgFilesPath, job.Parameters.InputFiles.GpkgFilesPath, "only relative paths are persisted")
	assert.Equal(t, "ORTHO_A-Orthophoto", job.Parameters.AdditionalParams.LayerName)

	var footprint map[string]any
	require.NoError(t, json.Unmarshal(job.Parameters.AdditionalParams.Footprint, &footprint))
	assert.Equal(t, "Polygon", footprint["type"])

	require.Len(t, job.Tasks, 1)
	task := job.Tasks[0]
	assert.Equal(t, h.config.Jobs.ValidationTaskType, task.Type)
	assert.False(t, task.Parameters.IsValid)
	// .shp, .shx and .dbf of the metadata bundle
	assert.Len(t, task.Parameters.Checksums, 3)
	for _, fp := range task.Parameters.Checksums {
		assert.Equal(t, checksum.AlgorithmXXH64, fp.Algorithm)
		assert.Equal(t, filepath.Join("layer", "metadata"), filepath.Dir(fp.FileName))
	}
}

func TestNewLayer_ExistingLayerIsConflictWithoutJob(t *testing.T) {
	h := newHarness(t)
	h.mapServer.layers["ORTHO_A-Orthophoto"] = true

	_, err := h.orchestrator.NewLayer(context.Background(), newLayerRequest(h.src))
	require.Error(t, err)
	assert.True(t, lib.IsCategory(err, lib.CategoryConflict))
	assert.True(t, lib.HasReason(err, lib.ReasonLayerExists))
	assert.Empty(t, h.queue.created)
}

func TestNewLayer_CatalogRecordIsConflict(t *testing.T) {
	h := newHarness(t)
	h.catalog.byCriteria = []models.CatalogRecord{{ID: catalogID}}

	_, err := h.orchestrator.NewLayer(context.Background(), newLayerRequest(h.src))
	assert.True(t, lib.HasReason(err, lib.ReasonCatalogRecordExists))
	assert.Empty(t, h.queue.created)
}

func TestNewLayer_CompetingJobs(t *testing.T) {
	tests := []struct {
		name     string
		job      models.Job
		conflict bool
	}{
		{"pending ingestion", models.Job{ID: "j", ResourceID: "ORTHO_A", ProductType: "Orthophoto", Type: "Ingestion_New", Status: models.JobStatusPending}, true},
		{"failed update", models.Job{ID: "j", ResourceID: "ORTHO_A", ProductType: "Orthophoto", Type: "Ingestion_Update", Status: models.JobStatusFailed}, true},
		{"completed ingestion", models.Job{ID: "j", ResourceID: "ORTHO_A", ProductType: "Orthophoto", Type: "Ingestion_New", Status: models.JobStatusCompleted}, false},
		{"other product", models.Job{ID: "j", ResourceID: "ORTHO_B", ProductType: "Orthophoto", Type: "Ingestion_New", Status: models.JobStatusPending}, false},
		{"unrelated type", models.Job{ID: "j", ResourceID: "ORTHO_A", ProductType: "Orthophoto", Type: "Seed", Status: models.JobStatusPending}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.queue.found = []models.Job{tt.job}

			_, err := h.orchestrator.NewLayer(context.Background(), newLayerRequest(h.src))
			if tt.conflict {
				assert.True(t, lib.HasReason(err, lib.ReasonCompetingJob))
				assert.Empty(t, h.queue.created)
				return
			}
			require.NoError(t, err)
			assert.Len(t, h.queue.created, 1)
		})
	}
}

func TestNewLayer_FootprintOutsideCoverage(t *testing.T) {
	h := newHarness(t)
	testutil.WriteFootprint(t, h.src, orb.Bound{Min: orb.Point{40, 40}, Max: orb.Point{41, 41}})

	_, err := h.orchestrator.NewLayer(context.Background(), newLayerRequest(h.src))
	require.Error(t, err)
	assert.True(t, lib.IsCategory(err, lib.CategoryValidation))
	assert.Contains(t, err.Error(), "footprint not contained by combined extent")
	assert.Empty(t, h.queue.created)
}

func TestNewLayer_InvalidSourcesNeverReachDownstream(t *testing.T) {
	opts := testutil.DefaultGeoPackage()
	opts.SRSID = 3857
	opts.OrganizationCoordsysID = 3857
	h := newHarness(t, opts)
	h.mapServer.err = lib.ErrServiceUnavailable("map server", 500, nil)

	_, err := h.orchestrator.NewLayer(context.Background(), newLayerRequest(h.src))
	assert.True(t, lib.HasReason(err, lib.ReasonUnsupportedCRS))
	assert.Empty(t, h.queue.created)
}

func TestNewLayer_PathOutsideMount(t *testing.T) {
	h := newHarness(t)
	req := newLayerRequest(h.src)
	req.InputFiles.GpkgFilesPath = []string{"../elsewhere/a.gpkg"}

	_, err := h.orchestrator.NewLayer(context.Background(), req)
	assert.True(t, lib.IsCategory(err, lib.CategoryValidation))
}

func catalogRecord(productType, subType string) models.CatalogRecord {
	return models.CatalogRecord{
		ID: catalogID,
		Metadata: models.CatalogRecordMetadata{
			ID:             catalogID,
			ProductID:      "ORTHO_A",
			ProductName:    "Ortho A",
			ProductType:    productType,
			ProductSubType: subType,
			ProductVersion: "2.0",
		},
	}
}

func updateRequest(src testutil.Sources) models.UpdateLayerRequest {
	return models.UpdateLayerRequest{
		InputFiles: src.Files,
		Metadata:   models.UpdateLayerMetadata{Classification: "4"},
	}
}

func TestUpdateLayer_SubmitsUpdateJob(t *testing.T) {
	h := newHarness(t)
	h.catalog.byID[catalogID] = []models.CatalogRecord{catalogRecord("Orthophoto", "")}
	h.mapServer.layers["ORTHO_A-Orthophoto"] = true

	_, err := h.orchestrator.UpdateLayer(context.Background(), catalogID, updateRequest(h.src))
	require.NoError(t, err)

	require.Len(t, h.queue.created, 1)
	job := h.queue.created[0]
	assert.Equal(t, h.config.Jobs.UpdateType, job.Type)
	assert.Equal(t, catalogID, job.InternalID)
	assert.Equal(t, "2.0", job.Version)
	assert.False(t, job.Parameters.AdditionalParams.SwapUpdate)
}

func TestUpdateLayer_SwapEligibleProduct(t *testing.T) {
	h := newHarness(t)
	h.catalog.byID[catalogID] = []models.CatalogRecord{catalogRecord("RasterVectorBest", "testSubType")}
	h.mapServer.layers["ORTHO_A-RasterVectorBest"] = true

	_, err := h.orchestrator.UpdateLayer(context.Background(), catalogID, updateRequest(h.src))
	require.NoError(t, err)
	require.Len(t, h.queue.created, 1)
	assert.Equal(t, h.config.Jobs.SwapUpdateType, h.queue.created[0].Type)
	assert.True(t, h.queue.created[0].Parameters.AdditionalParams.SwapUpdate)
}

func TestUpdateLayer_CatalogLookup(t *testing.T) {
	h := newHarness(t)

	_, err := h.orchestrator.UpdateLayer(context.Background(), catalogID, updateRequest(h.src))
	assert.True(t, lib.IsCategory(err, lib.CategoryNotFound))

	h.catalog.byID[catalogID] = []models.CatalogRecord{catalogRecord("Orthophoto", ""), catalogRecord("Orthophoto", "")}
	_, err = h.orchestrator.UpdateLayer(context.Background(), catalogID, updateRequest(h.src))
	assert.True(t, lib.HasReason(err, lib.ReasonAmbiguousRecord))
	assert.Empty(t, h.queue.created)
}

func TestUpdateLayer_MissingLayerIsNotFound(t *testing.T) {
	h := newHarness(t)
	h.catalog.byID[catalogID] = []models.CatalogRecord{catalogRecord("Orthophoto", "")}

	_, err := h.orchestrator.UpdateLayer(context.Background(), catalogID, updateRequest(h.src))
	assert.True(t, lib.IsCategory(err, lib.CategoryNotFound))
	assert.Empty(t, h.queue.created)
}

// failedJob registers a failed job whose validation task holds the given
// checksums and state
func (h *harness) failedJob(t *testing.T, taskStatus models.JobStatus, isValid bool, checksums []models.FileFingerprint) models.Job {
	t.Helper()
	job := models.Job{
		ID:          "job-7",
		ResourceID:  "ORTHO_A",
		ProductType: "Orthophoto",
		Type:        h.config.Jobs.NewType,
		Status:      models.JobStatusFailed,
		Parameters:  models.JobParameters{InputFiles: h.src.Files},
		Tasks: []models.Task{
			{
				ID:     "validation-task",
				JobID:  "job-7",
				Type:   h.config.Jobs.ValidationTaskType,
				Status: taskStatus,
				Parameters: models.ValidationTaskParameters{
					IsValid:   isValid,
					Report:    json.RawMessage(`{"errors":1}`),
					Checksums: checksums,
				},
			},
			{ID: "tiling-task", JobID: "job-7", Type: "tiling", Status: models.JobStatusFailed},
		},
	}
	h.queue.jobs[job.ID] = job
	return job
}

func (h *harness) currentChecksums(t *testing.T) []models.FileFingerprint {
	t.Helper()
	resolved := h.src.Resolved()
	sidecars, err := Sidecars(resolved.MetadataShapefile)
	require.NoError(t, err)
	fps, err := h.fingerprints.next.FingerprintAll(context.Background(), sidecars)
	require.NoError(t, err)
	return fps
}

func TestRetryJob_SoftResetDoesNotFingerprint(t *testing.T) {
	h := newHarness(t)
	h.failedJob(t, models.JobStatusCompleted, true, nil)

	require.NoError(t, h.orchestrator.RetryJob(context.Background(), "job-7"))

	assert.Zero(t, h.fingerprints.calls.Load())
	assert.Equal(t, []string{"ORTHO_A/Orthophoto"}, h.entities.deleted)
	require.Len(t, h.queue.jobPatches, 1)
	assert.Equal(t, models.JobStatusPending, *h.queue.jobPatches[0].Status)
	require.Len(t, h.queue.taskPatches, 2)
	assert.Equal(t, "validation-task", h.queue.taskPatches[0].taskID)
	assert.Equal(t, "tiling-task", h.queue.taskPatches[1].taskID)
	for _, p := range h.queue.taskPatches {
		assert.Equal(t, models.JobStatusPending, *p.patch.Status)
		assert.Zero(t, *p.patch.Attempts)
		assert.Nil(t, p.patch.Parameters)
	}
}

func TestRetryJob_SoftResetOfSuspendedJobResetsInterruptedTask(t *testing.T) {
	h := newHarness(t)
	job := h.failedJob(t, models.JobStatusCompleted, true, nil)
	job.Status = models.JobStatusSuspended
	job.Tasks[1].Status = models.JobStatusInProgress
	job.Tasks[1].Attempts = 2
	job.Tasks = append(job.Tasks, models.Task{ID: "done-task", JobID: job.ID, Type: "merge", Status: models.JobStatusCompleted})
	h.queue.jobs[job.ID] = job

	require.NoError(t, h.orchestrator.RetryJob(context.Background(), job.ID))

	var reset []string
	for _, p := range h.queue.taskPatches {
		reset = append(reset, p.taskID)
	}
	assert.Equal(t, []string{"validation-task", "tiling-task"}, reset)
	require.Len(t, h.queue.jobPatches, 1)
	assert.Equal(t, models.JobStatusPending, *h.queue.jobPatches[0].Status)
}

func TestRetryJob_SoftResetOfFailedJobWithoutFailedTask(t *testing.T) {
	h := newHarness(t)
	job := h.failedJob(t, models.JobStatusCompleted, true, nil)
	job.Tasks[1].Status = models.JobStatusCompleted
	h.queue.jobs[job.ID] = job

	require.NoError(t, h.orchestrator.RetryJob(context.Background(), job.ID))

	require.Len(t, h.queue.taskPatches, 1, "the validation task is always rerun")
	assert.Equal(t, "validation-task", h.queue.taskPatches[0].taskID)
	assert.Equal(t, models.JobStatusPending, *h.queue.taskPatches[0].patch.Status)
}

func TestRetryJob_HardResetUnchangedIsConflictWithoutMutation(t *testing.T) {
	h := newHarness(t)
	h.failedJob(t, models.JobStatusCompleted, false, h.currentChecksums(t))

	err := h.orchestrator.RetryJob(context.Background(), "job-7")
	require.Error(t, err)
	assert.True(t, lib.IsCategory(err, lib.CategoryConflict))
	assert.True(t, lib.HasReason(err, lib.ReasonUnchangedSources))
	assert.Zero(t, h.queue.mutations())
	assert.Empty(t, h.entities.deleted)
}

func TestRetryJob_HardResetWithChangedMetadata(t *testing.T) {
	h := newHarness(t)
	previous := h.currentChecksums(t)
	h.failedJob(t, models.JobStatusCompleted, false, previous)

	testutil.WritePolygonShapefile(t, filepath.Join(h.src.MountDir, "layer", "metadata"), "ShapeMetadata.shp",
		[][]shp.Point{testutil.BoxRing(34.2, 31.2, 34.8, 31.8)})

	require.NoError(t, h.orchestrator.RetryJob(context.Background(), "job-7"))

	assert.Equal(t, int32(1), h.fingerprints.calls.Load())
	assert.Equal(t, []string{"ORTHO_A/Orthophoto"}, h.entities.deleted)
	require.Len(t, h.queue.taskPatches, 1)
	patch := h.queue.taskPatches[0]
	assert.Equal(t, "validation-task", patch.taskID)
	require.NotNil(t, patch.patch.Parameters)

	merged := patch.patch.Parameters.Checksums
	assert.Greater(t, len(merged), len(previous))
	assert.Equal(t, previous, merged[:len(previous)], "history only grows")
	assert.False(t, patch.patch.Parameters.IsValid)
	assert.JSONEq(t, `{"errors":1}`, string(patch.patch.Parameters.Report))
	require.Len(t, h.queue.jobPatches, 1)
}

func TestRetryJob_HardResetOfIncompleteValidation(t *testing.T) {
	h := newHarness(t)
	previous := h.currentChecksums(t)
	h.failedJob(t, models.JobStatusFailed, false, previous)

	require.NoError(t, h.orchestrator.RetryJob(context.Background(), "job-7"))

	require.Len(t, h.queue.taskPatches, 1)
	assert.Equal(t, previous, h.queue.taskPatches[0].patch.Parameters.Checksums)
}

func TestRetryJob_Rejections(t *testing.T) {
	t.Run("unknown job", func(t *testing.T) {
		h := newHarness(t)
		err := h.orchestrator.RetryJob(context.Background(), "missing")
		assert.True(t, lib.IsCategory(err, lib.CategoryNotFound))
	})

	t.Run("not retry-eligible", func(t *testing.T) {
		h := newHarness(t)
		job := h.failedJob(t, models.JobStatusCompleted, true, nil)
		job.Status = models.JobStatusInProgress
		h.queue.jobs[job.ID] = job

		err := h.orchestrator.RetryJob(context.Background(), job.ID)
		assert.True(t, lib.IsCategory(err, lib.CategoryInvalidState))
		assert.Zero(t, h.queue.mutations())
	})

	t.Run("no validation task", func(t *testing.T) {
		h := newHarness(t)
		job := h.failedJob(t, models.JobStatusCompleted, true, nil)
		job.Tasks = job.Tasks[1:]
		h.queue.jobs[job.ID] = job

		err := h.orchestrator.RetryJob(context.Background(), job.ID)
		assert.True(t, lib.IsCategory(err, lib.CategoryNotFound))
		assert.Empty(t, h.entities.deleted)
	})

	t.Run("sources removed", func(t *testing.T) {
		h := newHarness(t)
		job := h.failedJob(t, models.JobStatusCompleted, false, nil)
		job.Parameters.InputFiles.GpkgFilesPath = []string{"layer/gone.gpkg"}
		h.queue.jobs[job.ID] = job

		err := h.orchestrator.RetryJob(context.Background(), job.ID)
		assert.True(t, lib.IsCategory(err, lib.CategoryNotFound))
		assert.Zero(t, h.queue.mutations())
	})
}

func TestValidateSources_ReportsVerdict(t *testing.T) {
	h := newHarness(t)

	outcome, err := h.orchestrator.ValidateSources(context.Background(), h.src.Files)
	require.NoError(t, err)
	assert.True(t, outcome.IsValid)
}
