package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trobanga/rastergate/internal/lib"
	"github.com/trobanga/rastergate/internal/models"
)

type fakeIngestion struct {
	err         error
	outcome     models.ValidationOutcome
	newLayers   []models.NewLayerRequest
	updates     []string
	retries     []string
	validations int
}

func (f *fakeIngestion) ValidateSources(_ context.Context, _ models.InputFiles) (models.ValidationOutcome, error) {
	f.validations++
	return f.outcome, f.err
}

func (f *fakeIngestion) NewLayer(_ context.Context, req models.NewLayerRequest) (models.JobResponse, error) {
	f.newLayers = append(f.newLayers, req)
	if f.err != nil {
		return models.JobResponse{}, f.err
	}
	return models.JobResponse{JobID: "job-1", TaskID: "task-1"}, nil
}

func (f *fakeIngestion) UpdateLayer(_ context.Context, id string, _ models.UpdateLayerRequest) (models.JobResponse, error) {
	f.updates = append(f.updates, id)
	if f.err != nil {
		return models.JobResponse{}, f.err
	}
	return models.JobResponse{JobID: "job-2", TaskID: "task-2"}, nil
}

func (f *fakeIngestion) RetryJob(_ context.Context, jobID string) error {
	f.retries = append(f.retries, jobID)
	return f.err
}

func newTestServer(ingestion *fakeIngestion) *httptest.Server {
	srv := NewServer(ingestion, lib.NewLoggerTo(io.Discard, lib.LogLevelError))
	return httptest.NewServer(srv.Router())
}

func inputFiles() models.InputFiles {
	return models.InputFiles{
		GpkgFilesPath:         []string{"layer/a.gpkg"},
		MetadataShapefilePath: "layer/metadata/ShapeMetadata.shp",
		ProductShapefilePath:  "layer/product/Product.shp",
	}
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestLiveness(t *testing.T) {
	ts := newTestServer(&fakeIngestion{})
	defer ts.Close()

	resp := do(t, http.MethodGet, ts.URL+"/liveness", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, err := uuid.Parse(resp.Header.Get(RequestIDHeader))
	assert.NoError(t, err)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(&fakeIngestion{})
	defer ts.Close()

	do(t, http.MethodGet, ts.URL+"/liveness", nil)
	resp := do(t, http.MethodGet, ts.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `rastergate_http_requests_total{code="200",method="GET",route="/liveness"}`)
}

func TestValidateSources(t *testing.T) {
	ingestion := &fakeIngestion{outcome: models.ValidationOutcome{IsValid: false, Message: "a.gpkg: unsupported CRS"}}
	ts := newTestServer(ingestion)
	defer ts.Close()

	resp := do(t, http.MethodPost, ts.URL+"/ingestion/validate/sources", inputFiles())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	outcome := decodeBody[models.ValidationOutcome](t, resp)
	assert.False(t, outcome.IsValid)
	assert.Equal(t, "a.gpkg: unsupported CRS", outcome.Message)
}

func TestValidateSources_RejectsMalformedBody(t *testing.T) {
	ingestion := &fakeIngestion{}
	ts := newTestServer(ingestion)
	defer ts.Close()

	files := inputFiles()
	files.GpkgFilesPath = nil
	resp := do(t, http.MethodPost, ts.URL+"/ingestion/validate/sources", files)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, ts.URL+"/ingestion/validate/sources", map[string]any{"unknown": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, ingestion.validations)
}

func TestNewLayer(t *testing.T) {
	ingestion := &fakeIngestion{}
	ts := newTestServer(ingestion)
	defer ts.Close()

	resp := do(t, http.MethodPost, ts.URL+"/ingestion", models.NewLayerRequest{
		InputFiles: inputFiles(),
		Metadata: models.LayerMetadata{
			ProductID:   "ORTHO_A",
			ProductName: "Ortho A",
			ProductType: "Orthophoto",
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.JobResponse{JobID: "job-1", TaskID: "task-1"}, decodeBody[models.JobResponse](t, resp))
	assert.Len(t, ingestion.newLayers, 1)
}

func TestNewLayer_MissingProductID(t *testing.T) {
	ingestion := &fakeIngestion{}
	ts := newTestServer(ingestion)
	defer ts.Close()

	resp := do(t, http.MethodPost, ts.URL+"/ingestion", models.NewLayerRequest{InputFiles: inputFiles()})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, ingestion.newLayers)
}

func TestUpdateLayer_RequiresUUID(t *testing.T) {
	ingestion := &fakeIngestion{}
	ts := newTestServer(ingestion)
	defer ts.Close()

	body := models.UpdateLayerRequest{InputFiles: inputFiles()}

	resp := do(t, http.MethodPut, ts.URL+"/ingestion/not-a-uuid", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	id := uuid.NewString()
	resp = do(t, http.MethodPut, ts.URL+"/ingestion/"+id, body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{id}, ingestion.updates)
}

func TestRetryJob(t *testing.T) {
	ingestion := &fakeIngestion{}
	ts := newTestServer(ingestion)
	defer ts.Close()

	id := uuid.NewString()
	resp := do(t, http.MethodPut, ts.URL+"/ingestion/"+id+"/retry", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{id}, ingestion.retries)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", lib.ErrJobNotFound("j"), http.StatusNotFound},
		{"conflict", lib.ErrUnchangedSources("j"), http.StatusConflict},
		{"unsupported entity", lib.ErrMissingIndex("a.gpkg", "tiles"), http.StatusUnprocessableEntity},
		{"invalid state", lib.ErrInvalidJobStatus("j", "Completed"), http.StatusBadRequest},
		{"validation", lib.ErrFootprintNotContained(), http.StatusBadRequest},
		{"checksum", lib.ErrChecksum("m.shp", errors.New("io")), http.StatusInternalServerError},
		{"service", lib.ErrServiceUnavailable("job manager", 503, nil), http.StatusBadGateway},
		{"untyped", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(&fakeIngestion{err: tt.err})
			defer ts.Close()

			resp := do(t, http.MethodPut, ts.URL+"/ingestion/"+uuid.NewString()+"/retry", nil)
			assert.Equal(t, tt.status, resp.StatusCode)

			body := decodeBody[ErrorResponse](t, resp)
			assert.NotEmpty(t, body.Message)
			if tt.name == "untyped" {
				assert.Equal(t, "internal server error", body.Message)
			}
		})
	}
}

func TestErrorBodyCarriesReason(t *testing.T) {
	ts := newTestServer(&fakeIngestion{err: lib.ErrLayerExists("ORTHO_A-Orthophoto")})
	defer ts.Close()

	resp := do(t, http.MethodPost, ts.URL+"/ingestion", models.NewLayerRequest{
		InputFiles: inputFiles(),
		Metadata:   models.LayerMetadata{ProductID: "ORTHO_A", ProductName: "A", ProductType: "Orthophoto"},
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "conflict", body.Category)
	assert.Equal(t, "layer_exists", body.Reason)
	assert.Contains(t, body.Message, "ORTHO_A-Orthophoto")
}
