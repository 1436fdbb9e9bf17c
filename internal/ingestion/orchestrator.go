// Package ingestion admits new layers, layer updates and job retries into
// the downstream job queue.
package ingestion

import (
	"context"
	"errors"
	"slices"

	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/trobanga/rastergate/internal/geometry"
	"github.com/trobanga/rastergate/internal/lib"
	"github.com/trobanga/rastergate/internal/models"
	"github.com/trobanga/rastergate/internal/obs"
	"github.com/trobanga/rastergate/internal/validation"
)

// Retry modes
const (
	RetryModeSoft = "soft"
	RetryModeHard = "hard"
)

// Dependencies are the collaborators of the orchestrator
type Dependencies struct {
	Resolver      *Resolver
	Sources       SourceValidator
	Correlator    FootprintCorrelator
	Fingerprinter Fingerprinter
	JobQueue      JobQueue
	Catalog       Catalog
	MapServer     MapServer
	Entities      ValidationEntities
}

// Orchestrator runs the admission flows
type Orchestrator struct {
	jobs          models.JobsConfig
	resolver      *Resolver
	sources       SourceValidator
	correlator    FootprintCorrelator
	fingerprinter Fingerprinter
	queue         JobQueue
	catalog       Catalog
	mapServer     MapServer
	entities      ValidationEntities
	logger        *lib.Logger
	tracer        trace.Tracer
}

// NewOrchestrator creates an orchestrator for the given job settings
func NewOrchestrator(jobs models.JobsConfig, deps Dependencies, logger *lib.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:          jobs,
		resolver:      deps.Resolver,
		sources:       deps.Sources,
		correlator:    deps.Correlator,
		fingerprinter: deps.Fingerprinter,
		queue:         deps.JobQueue,
		catalog:       deps.Catalog,
		mapServer:     deps.MapServer,
		entities:      deps.Entities,
		logger:        logger,
		tracer:        obs.Tracer(),
	}
}

// ValidateSources runs the source checks and reports a verdict
func (o *Orchestrator) ValidateSources(ctx context.Context, files models.InputFiles) (outcome models.ValidationOutcome, err error) {
	ctx, span := o.tracer.Start(ctx, "ingestion.ValidateSources")
	defer func() { o.finish(span, "validate_sources", err) }()

	resolved, err := o.resolver.Resolve(files)
	if err != nil {
		return models.ValidationOutcome{}, err
	}
	return o.sources.ValidateAndReport(ctx, resolved)
}

// NewLayer validates the sources of a new layer, rejects it when the
// product already exists anywhere downstream and submits an ingestion job
func (o *Orchestrator) NewLayer(ctx context.Context, req models.NewLayerRequest) (resp models.JobResponse, err error) {
	ctx, span := o.tracer.Start(ctx, "ingestion.NewLayer", trace.WithAttributes(
		attribute.String("product.id", req.Metadata.ProductID),
		attribute.String("product.type", req.Metadata.ProductType),
	))
	defer func() { o.finish(span, "new_layer", err) }()

	productID, productType := req.Metadata.ProductID, req.Metadata.ProductType
	layerName := models.LayerName(productID, productType)

	resolved, footprint, err := o.validateSources(ctx, req.InputFiles)
	if err != nil {
		return models.JobResponse{}, err
	}

	exists, err := o.mapServer.LayerExists(ctx, layerName)
	if err != nil {
		return models.JobResponse{}, err
	}
	if exists {
		return models.JobResponse{}, lib.ErrLayerExists(layerName)
	}

	records, err := o.catalog.FindByCriteria(ctx, productID, productType)
	if err != nil {
		return models.JobResponse{}, err
	}
	if len(records) > 0 {
		return models.JobResponse{}, lib.ErrCatalogRecordExists(productID, productType)
	}

	if err := o.checkCompetingJobs(ctx, productID, productType); err != nil {
		return models.JobResponse{}, err
	}

	checksums, err := o.fingerprintMetadata(ctx, resolved.MetadataShapefile)
	if err != nil {
		return models.JobResponse{}, err
	}

	payload, err := o.buildJobRequest(jobPlan{
		jobType:     o.jobs.NewType,
		productID:   productID,
		productType: productType,
		productName: req.Metadata.ProductName,
		version:     initialVersion,
		files:       resolved,
		metadata:    req.Metadata,
		additional:  models.AdditionalParams{LayerName: layerName},
		callbacks:   req.CallbackURLs,
		checksums:   checksums,
	}, footprint)
	if err != nil {
		return models.JobResponse{}, err
	}

	return o.submit(ctx, payload, layerName)
}

// UpdateLayer validates new sources for an existing catalog record and
// submits an update or swap-update job
func (o *Orchestrator) UpdateLayer(ctx context.Context, catalogID string, req models.UpdateLayerRequest) (resp models.JobResponse, err error) {
	ctx, span := o.tracer.Start(ctx, "ingestion.UpdateLayer", trace.WithAttributes(
		attribute.String("catalog.id", catalogID),
	))
	defer func() { o.finish(span, "update_layer", err) }()

	records, err := o.catalog.FindByID(ctx, catalogID)
	if err != nil {
		return models.JobResponse{}, err
	}
	switch {
	case len(records) == 0:
		return models.JobResponse{}, lib.ErrCatalogRecordNotFound(catalogID)
	case len(records) > 1:
		return models.JobResponse{}, lib.ErrAmbiguousCatalogRecord(catalogID, len(records))
	}
	record := records[0].Metadata
	layerName := models.LayerName(record.ProductID, record.ProductType)

	resolved, footprint, err := o.validateSources(ctx, req.InputFiles)
	if err != nil {
		return models.JobResponse{}, err
	}

	exists, err := o.mapServer.LayerExists(ctx, layerName)
	if err != nil {
		return models.JobResponse{}, err
	}
	if !exists {
		return models.JobResponse{}, lib.ErrLayerNotFound(layerName)
	}

	if err := o.checkCompetingJobs(ctx, record.ProductID, record.ProductType); err != nil {
		return models.JobResponse{}, err
	}

	swap := o.jobs.IsSwapEligible(record.ProductType, record.ProductSubType)
	jobType := o.jobs.UpdateType
	if swap {
		jobType = o.jobs.SwapUpdateType
	}

	checksums, err := o.fingerprintMetadata(ctx, resolved.MetadataShapefile)
	if err != nil {
		return models.JobResponse{}, err
	}

	payload, err := o.buildJobRequest(jobPlan{
		jobType:     jobType,
		productID:   record.ProductID,
		productType: record.ProductType,
		productName: record.ProductName,
		version:     record.ProductVersion,
		internalID:  catalogID,
		files:       resolved,
		metadata:    req.Metadata,
		additional: models.AdditionalParams{
			LayerName:        layerName,
			DisplayPath:      record.DisplayPath,
			TileOutputFormat: record.TileOutputFormat,
			SwapUpdate:       swap,
		},
		callbacks: req.CallbackURLs,
		checksums: checksums,
	}, footprint)
	if err != nil {
		return models.JobResponse{}, err
	}

	return o.submit(ctx, payload, layerName)
}

// RetryJob resubmits a failed or suspended job. A job whose validation
// passed is soft reset. Otherwise the metadata shapefile is fingerprinted
// again and the job is only reset when its content changed or the
// validation never completed.
func (o *Orchestrator) RetryJob(ctx context.Context, jobID string) (err error) {
	ctx, span := o.tracer.Start(ctx, "ingestion.RetryJob", trace.WithAttributes(
		attribute.String("job.id", jobID),
	))
	defer func() { o.finish(span, "retry_job", err) }()

	job, err := o.queue.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.Status.IsRetryable() {
		return lib.ErrInvalidJobStatus(jobID, string(job.Status))
	}

	tasks := job.Tasks
	if len(tasks) == 0 {
		if tasks, err = o.queue.GetTasks(ctx, jobID); err != nil {
			return err
		}
	}
	task, ok := models.FindTaskByType(tasks, o.jobs.ValidationTaskType)
	if !ok {
		return lib.ErrTaskNotFound(jobID, o.jobs.ValidationTaskType)
	}

	if task.Parameters.IsValid {
		return o.softReset(ctx, job, task, tasks)
	}
	return o.hardReset(ctx, job, task)
}

// softReset returns the validation task and every unfinished task to
// Pending, then the job
func (o *Orchestrator) softReset(ctx context.Context, job models.Job, validationTask models.Task, tasks []models.Task) error {
	if err := o.entities.DeleteValidationEntity(ctx, job.ResourceID, job.ProductType); err != nil {
		return err
	}

	for _, task := range tasks {
		if task.ID != validationTask.ID && task.Status == models.JobStatusCompleted {
			continue
		}
		if err := o.queue.UpdateTask(ctx, job.ID, task.ID, models.SoftResetTask()); err != nil {
			return err
		}
	}
	if err := o.queue.UpdateJob(ctx, job.ID, models.SoftResetJob()); err != nil {
		return err
	}

	o.recordRetry(job.ID, validationTask.ID, RetryModeSoft, 0)
	return nil
}

func (o *Orchestrator) hardReset(ctx context.Context, job models.Job, task models.Task) error {
	resolved, err := o.resolver.Resolve(job.Parameters.InputFiles)
	if err != nil {
		return err
	}
	if err := validation.CheckExistence(resolved); err != nil {
		return err
	}

	current, err := o.fingerprintMetadata(ctx, resolved.MetadataShapefile)
	if err != nil {
		return err
	}
	merged, added := models.MergeFingerprints(task.Parameters.Checksums, current)

	if task.Status == models.JobStatusCompleted && len(added) == 0 {
		return lib.ErrUnchangedSources(job.ID)
	}

	if err := o.entities.DeleteValidationEntity(ctx, job.ResourceID, job.ProductType); err != nil {
		return err
	}
	if err := o.queue.UpdateTask(ctx, job.ID, task.ID, models.HardResetTask(task.Parameters, merged)); err != nil {
		return err
	}
	if err := o.queue.UpdateJob(ctx, job.ID, models.SoftResetJob()); err != nil {
		return err
	}

	o.recordRetry(job.ID, task.ID, RetryModeHard, len(added))
	return nil
}

func (o *Orchestrator) recordRetry(jobID, taskID, mode string, added int) {
	lib.LogRetryDecision(o.logger, jobID, taskID, mode, added)
	obs.RecordRetryDecision(mode)
}

// validateSources resolves the request paths, runs the source pipeline and
// correlates the product footprint with the raster extents
func (o *Orchestrator) validateSources(ctx context.Context, files models.InputFiles) (models.ResolvedInputFiles, orb.Geometry, error) {
	resolved, err := o.resolver.Resolve(files)
	if err != nil {
		return models.ResolvedInputFiles{}, nil, err
	}

	infos, err := o.sources.Validate(ctx, resolved)
	if err != nil {
		if validation.IsVerdict(err) {
			lib.LogValidationFailed(o.logger, len(resolved.GpkgFiles), err)
		}
		return models.ResolvedInputFiles{}, nil, err
	}

	footprint, err := geometry.ReadFootprint(resolved.ProductShapefile.Absolute)
	if err != nil {
		return models.ResolvedInputFiles{}, nil, err
	}
	if err := o.correlator.Validate(infos, footprint); err != nil {
		return models.ResolvedInputFiles{}, nil, err
	}
	return resolved, footprint, nil
}

// checkCompetingJobs rejects a product that already has a blocking job.
// Filtering is repeated locally so a job queue that ignores criteria
// cannot let a conflict through.
func (o *Orchestrator) checkCompetingJobs(ctx context.Context, productID, productType string) error {
	jobs, err := o.queue.FindJobs(ctx, models.FindJobsCriteria{
		ResourceID:  productID,
		ProductType: productType,
		Types:       o.jobs.ForbiddenTypes,
		Statuses:    models.ActiveJobStatuses,
	})
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if job.ResourceID != productID || job.ProductType != productType {
			continue
		}
		if slices.Contains(o.jobs.ForbiddenTypes, job.Type) && slices.Contains(models.ActiveJobStatuses, job.Status) {
			return lib.ErrCompetingJob(productID, productType, job.ID, string(job.Status))
		}
	}
	return nil
}

// fingerprintMetadata digests every file of the metadata shapefile bundle
func (o *Orchestrator) fingerprintMetadata(ctx context.Context, shapefile models.ResolvedPath) ([]models.FileFingerprint, error) {
	sidecars, err := Sidecars(shapefile)
	if err != nil {
		return nil, err
	}
	return o.fingerprinter.FingerprintAll(ctx, sidecars)
}

func (o *Orchestrator) submit(ctx context.Context, payload models.CreateJobRequest, layerName string) (models.JobResponse, error) {
	created, err := o.queue.CreateJob(ctx, payload)
	if err != nil {
		return models.JobResponse{}, err
	}

	resp := models.JobResponse{JobID: created.ID}
	if len(created.TaskIDs) > 0 {
		resp.TaskID = created.TaskIDs[0]
	}
	lib.LogJobCreated(o.logger, resp.JobID, payload.Type, layerName)
	return resp, nil
}

// finish closes an operation span and counts the outcome
func (o *Orchestrator) finish(span trace.Span, operation string, err error) {
	defer span.End()

	if err == nil {
		obs.RecordIngestion(operation, "ok")
		return
	}

	result := "error"
	if category, ok := lib.CategoryOf(err); ok {
		result = string(category)
	}
	if errors.Is(err, context.Canceled) {
		result = "canceled"
	}
	obs.RecordIngestion(operation, result)

	span.RecordError(err)
	span.SetStatus(codes.Error, result)
}
