package usecase

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/clinical-rag/internal/core/domain"
	"github.com/kirillkom/clinical-rag/internal/core/ports"
)

// UploadUseCase accepts a raw file, persists it and its job row, and hands
// processing to the worker over the queue. Slow parses never run on the
// request path.
type UploadUseCase struct {
	jobs    ports.JobRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewUploadUseCase(
	jobs ports.JobRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *UploadUseCase {
	return &UploadUseCase{
		jobs:    jobs,
		storage: storage,
		queue:   queue,
	}
}

func (uc *UploadUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
	opts domain.IngestOptions,
) (*domain.IngestJob, error) {
	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeIDPart(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save uploaded file: %w", err)
	}

	job := &domain.IngestJob{
		ID:            id,
		Filename:      filename,
		MimeType:      mimeType,
		StoragePath:   storageKey,
		SourceURL:     opts.SourceURL,
		Language:      opts.Language,
		TargetTokens:  opts.TargetTokens,
		OverlapTokens: opts.OverlapTokens,
		Status:        domain.JobUploaded,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := uc.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create ingest job: %w", err)
	}

	if err := uc.queue.PublishIngestJob(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("publish ingest job: %w", err)
	}

	return job, nil
}
