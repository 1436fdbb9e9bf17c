package ingestion

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/trobanga/rastergate/internal/models"
)

const initialVersion = "1.0"

type jobPlan struct {
	jobType     string
	productID   string
	productType string
	productName string
	version     string
	internalID  string
	files       models.ResolvedInputFiles
	metadata    any
	additional  models.AdditionalParams
	callbacks   []string
	checksums   []models.FileFingerprint
}

// buildJobRequest assembles the job queue payload. Only relative paths are
// persisted; the validation task starts unvalidated with the fingerprints.
func (o *Orchestrator) buildJobRequest(plan jobPlan, footprint orb.Geometry) (models.CreateJobRequest, error) {
	metadata, err := json.Marshal(plan.metadata)
	if err != nil {
		return models.CreateJobRequest{}, fmt.Errorf("failed to encode layer metadata: %w", err)
	}

	fp, err := geojson.NewGeometry(footprint).MarshalJSON()
	if err != nil {
		return models.CreateJobRequest{}, fmt.Errorf("failed to encode footprint: %w", err)
	}
	additional := plan.additional
	additional.Footprint = fp

	return models.CreateJobRequest{
		ResourceID:  plan.productID,
		Version:     plan.version,
		Type:        plan.jobType,
		Domain:      o.jobs.Domain,
		ProductType: plan.productType,
		ProductName: plan.productName,
		InternalID:  plan.internalID,
		Status:      models.JobStatusPending,
		Parameters: models.JobParameters{
			InputFiles:       plan.files.Relative(),
			Metadata:         metadata,
			AdditionalParams: &additional,
			CallbackURLs:     plan.callbacks,
		},
		Tasks: []models.CreateTaskRequest{{
			Type: o.jobs.ValidationTaskType,
			Parameters: models.ValidationTaskParameters{
				IsValid:   false,
				Checksums: plan.checksums,
			},
		}},
	}, nil
}
