package usecase

import (
	"context"
	"fmt"

	"github.com/ballotbrief/ballotbrief/internal/core/domain"
	"github.com/ballotbrief/ballotbrief/internal/core/ports"
)

// RunJobUseCase executes one queued annotation batch: load job, profile and
// items, run the sequential batch, persist results, flip job status.
type RunJobUseCase struct {
	annotations ports.AnnotationRepository
	profiles    ports.ProfileRepository
	ballot      ports.BallotRepository
	annotator   ports.Annotator
}

func NewRunJobUseCase(
	annotations ports.AnnotationRepository,
	profiles ports.ProfileRepository,
	ballot ports.BallotRepository,
	annotator ports.Annotator,
) *RunJobUseCase {
	return &RunJobUseCase{
		annotations: annotations,
		profiles:    profiles,
		ballot:      ballot,
		annotator:   annotator,
	}
}

func (uc *RunJobUseCase) RunJob(ctx context.Context, jobID string) error {
	if err := uc.annotations.UpdateJobStatus(ctx, jobID, domain.JobRunning, ""); err != nil {
		return fmt.Errorf("set status=running: %w", err)
	}

	results, err := uc.runBatch(ctx, jobID)
	if err != nil {
		if failErr := uc.annotations.UpdateJobStatus(ctx, jobID, domain.JobFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	flat := make([]domain.Annotation, 0, len(results))
	for _, annotations := range results {
		flat = append(flat, annotations...)
	}
	if err := uc.annotations.SaveAnnotations(ctx, jobID, flat); err != nil {
		if failErr := uc.annotations.UpdateJobStatus(ctx, jobID, domain.JobFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return fmt.Errorf("save annotations: %w", err)
	}

	if err := uc.annotations.UpdateJobStatus(ctx, jobID, domain.JobDone, ""); err != nil {
		return fmt.Errorf("set status=done: %w", err)
	}
	return nil
}

func (uc *RunJobUseCase) runBatch(ctx context.Context, jobID string) (map[string][]domain.Annotation, error) {
	job, err := uc.annotations.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("fetch job: %w", err)
	}

	profile, err := uc.profiles.GetByID(ctx, job.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	items, err := uc.ballot.GetByIDs(ctx, job.ItemIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch ballot items: %w", err)
	}
	if len(items) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "run job", fmt.Errorf("job %s has no resolvable items", jobID))
	}

	return uc.annotator.AnnotateBatch(ctx, items, *profile), nil
}
