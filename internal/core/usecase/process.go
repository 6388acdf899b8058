package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/kirillkom/clinical-rag/internal/core/domain"
	"github.com/kirillkom/clinical-rag/internal/core/ports"
)

// ProcessJobUseCase runs on the worker: it loads an uploaded job, extracts
// and chunks its file, indexes the result and records the outcome. A
// failure marks the job failed without touching unrelated index entries.
type ProcessJobUseCase struct {
	jobs     ports.JobRepository
	storage  ports.ObjectStorage
	ingestor ports.IngestService
}

func NewProcessJobUseCase(
	jobs ports.JobRepository,
	storage ports.ObjectStorage,
	ingestor ports.IngestService,
) *ProcessJobUseCase {
	return &ProcessJobUseCase{
		jobs:     jobs,
		storage:  storage,
		ingestor: ingestor,
	}
}

func (uc *ProcessJobUseCase) ProcessByID(ctx context.Context, jobID string) error {
	if err := uc.jobs.UpdateStatus(ctx, jobID, domain.JobProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	summary, err := uc.process(ctx, jobID)
	if err != nil {
		if failErr := uc.jobs.UpdateStatus(ctx, jobID, domain.JobFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.jobs.SaveResult(ctx, jobID, summary.SectionsIndexed, summary.ChunksIndexed); err != nil {
		return fmt.Errorf("save job result: %w", err)
	}
	if err := uc.jobs.UpdateStatus(ctx, jobID, domain.JobReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessJobUseCase) process(ctx context.Context, jobID string) (domain.IngestSummary, error) {
	job, err := uc.jobs.GetByID(ctx, jobID)
	if err != nil {
		return domain.IngestSummary{}, fmt.Errorf("fetch job by id: %w", err)
	}

	reader, err := uc.storage.Open(ctx, job.StoragePath)
	if err != nil {
		return domain.IngestSummary{}, fmt.Errorf("open uploaded file: %w", err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return domain.IngestSummary{}, fmt.Errorf("read uploaded file: %w", err)
	}

	summary, err := uc.ingestor.IndexBytes(ctx, content, job.Filename, domain.IngestOptions{
		SourceURL:     job.SourceURL,
		Language:      job.Language,
		TargetTokens:  job.TargetTokens,
		OverlapTokens: job.OverlapTokens,
	})
	if err != nil {
		return domain.IngestSummary{}, err
	}
	return summary, nil
}
