package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/trobanga/rastergate/internal/lib"
	"github.com/trobanga/rastergate/internal/models"
)

const jobManagerService = "job manager"

// JobManagerClient talks to the job queue that owns ingestion jobs and tasks
type JobManagerClient struct {
	baseURL    string
	httpClient *HTTPClient
	logger     *lib.Logger
}

// NewJobManagerClient creates a new job manager client with the given base URL
func NewJobManagerClient(baseURL string, httpClient *HTTPClient, logger *lib.Logger) *JobManagerClient {
	return &JobManagerClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// CreateJob submits a job together with its tasks
// POST /jobs
func (c *JobManagerClient) CreateJob(ctx context.Context, payload models.CreateJobRequest) (models.CreateJobResponse, error) {
	var created models.CreateJobResponse
	if _, err := c.httpClient.DoJSON(ctx, jobManagerService, http.MethodPost, c.baseURL+"/jobs", payload, &created); err != nil {
		return models.CreateJobResponse{}, err
	}
	if created.ID == "" {
		return models.CreateJobResponse{}, lib.ErrServiceUnavailable(jobManagerService, 0,
			fmt.Errorf("job created without an id"))
	}

	c.logger.Debug("Job submitted", "job_id", created.ID, "tasks", len(created.TaskIDs))
	return created, nil
}

// GetJob fetches a job including its tasks
// GET /jobs/{id}?shouldReturnTasks=true
func (c *JobManagerClient) GetJob(ctx context.Context, jobID string) (models.Job, error) {
	var job models.Job
	endpoint := fmt.Sprintf("%s/jobs/%s?shouldReturnTasks=true", c.baseURL, url.PathEscape(jobID))
	status, err := c.httpClient.DoJSON(ctx, jobManagerService, http.MethodGet, endpoint, nil, &job)
	if status == http.StatusNotFound {
		return models.Job{}, lib.ErrJobNotFound(jobID)
	}
	if err != nil {
		return models.Job{}, err
	}
	return job, nil
}

// GetTasks fetches the tasks of a job
// GET /jobs/{id}/tasks
func (c *JobManagerClient) GetTasks(ctx context.Context, jobID string) ([]models.Task, error) {
	var tasks []models.Task
	endpoint := fmt.Sprintf("%s/jobs/%s/tasks", c.baseURL, url.PathEscape(jobID))
	status, err := c.httpClient.DoJSON(ctx, jobManagerService, http.MethodGet, endpoint, nil, &tasks)
	if status == http.StatusNotFound {
		return nil, lib.ErrJobNotFound(jobID)
	}
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// UpdateJob patches a job
// PUT /jobs/{id}
func (c *JobManagerClient) UpdateJob(ctx context.Context, jobID string, patch models.JobUpdate) error {
	endpoint := fmt.Sprintf("%s/jobs/%s", c.baseURL, url.PathEscape(jobID))
	status, err := c.httpClient.DoJSON(ctx, jobManagerService, http.MethodPut, endpoint, patch, nil)
	if status == http.StatusNotFound {
		return lib.ErrJobNotFound(jobID)
	}
	return err
}

// UpdateTask patches a task of a job
// PUT /jobs/{jobId}/tasks/{taskId}
func (c *JobManagerClient) UpdateTask(ctx context.Context, jobID string, taskID string, patch models.TaskUpdate) error {
	endpoint := fmt.Sprintf("%s/jobs/%s/tasks/%s", c.baseURL, url.PathEscape(jobID), url.PathEscape(taskID))
	status, err := c.httpClient.DoJSON(ctx, jobManagerService, http.MethodPut, endpoint, patch, nil)
	if status == http.StatusNotFound {
		return lib.ErrTaskNotFound(jobID, taskID)
	}
	return err
}

// FindJobs lists jobs matching the criteria
// POST /jobs/find
func (c *JobManagerClient) FindJobs(ctx context.Context, criteria models.FindJobsCriteria) ([]models.Job, error) {
	var jobs []models.Job
	if _, err := c.httpClient.DoJSON(ctx, jobManagerService, http.MethodPost, c.baseURL+"/jobs/find", criteria, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}
