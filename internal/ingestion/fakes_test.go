package ingestion

import (
	"context"
	"sync/atomic"

	"github.com/trobanga/rastergate/internal/lib"
	"github.com/trobanga/rastergate/internal/models"
)

type taskPatch struct {
	taskID string
	patch  models.TaskUpdate
}

type fakeQueue struct {
	jobs        map[string]models.Job
	found       []models.Job
	created     []models.CreateJobRequest
	jobPatches  []models.JobUpdate
	taskPatches []taskPatch
	criteria    []models.FindJobsCriteria
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{jobs: map[string]models.Job{}}
}

func (q *fakeQueue) CreateJob(_ context.Context, payload models.CreateJobRequest) (models.CreateJobResponse, error) {
	q.created = append(q.created, payload)
	return models.CreateJobResponse{ID: "job-1", TaskIDs: []string{"task-1"}}, nil
}

func (q *fakeQueue) GetJob(_ context.Context, jobID string) (models.Job, error) {
	job, ok := q.jobs[jobID]
	if !ok {
		return models.Job{}, lib.ErrJobNotFound(jobID)
	}
	return job, nil
}

func (q *fakeQueue) GetTasks(_ context.Context, jobID string) ([]models.Task, error) {
	job, ok := q.jobs[jobID]
	if !ok {
		return nil, lib.ErrJobNotFound(jobID)
	}
	return job.Tasks, nil
}

func (q *fakeQueue) UpdateJob(_ context.Context, _ string, patch models.JobUpdate) error {
	q.jobPatches = append(q.jobPatches, patch)
	return nil
}

func (q *fakeQueue) UpdateTask(_ context.Context, _ string, taskID string, patch models.TaskUpdate) error {
	q.taskPatches = append(q.taskPatches, taskPatch{taskID: taskID, patch: patch})
	return nil
}

func (q *fakeQueue) FindJobs(_ context.Context, criteria models.FindJobsCriteria) ([]models.Job, error) {
	q.criteria = append(q.criteria, criteria)
	return q.found, nil
}

func (q *fakeQueue) mutations() int {
	return len(q.jobPatches) + len(q.taskPatches)
}

type fakeCatalog struct {
	byCriteria []models.CatalogRecord
	byID       map[string][]models.CatalogRecord
}

func (c *fakeCatalog) FindByCriteria(_ context.Context, _, _ string) ([]models.CatalogRecord, error) {
	return c.byCriteria, nil
}

func (c *fakeCatalog) FindByID(_ context.Context, id string) ([]models.CatalogRecord, error) {
	return c.byID[id], nil
}

type fakeMapServer struct {
	layers map[string]bool
	err    error
}

func (m *fakeMapServer) LayerExists(_ context.Context, layerName string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.layers[layerName], nil
}

type fakeEntities struct {
	deleted []string
}

func (e *fakeEntities) DeleteValidationEntity(_ context.Context, productID, productType string) error {
	e.deleted = append(e.deleted, productID+"/"+productType)
	return nil
}

type countingFingerprinter struct {
	next  Fingerprinter
	calls atomic.Int32
}

func (f *countingFingerprinter) FingerprintAll(ctx context.Context, paths []models.ResolvedPath) ([]models.FileFingerprint, error) {
	f.calls.Add(1)
	return f.next.FingerprintAll(ctx, paths)
}
