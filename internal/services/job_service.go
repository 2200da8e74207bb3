package services

import (
	"context"
	"fmt"

	"github.com/recruitflow/recruitflow/internal/models"
	"github.com/recruitflow/recruitflow/internal/repository"
)

type JobService struct {
	jobs repository.JobRepository
}

func NewJobService(jobs repository.JobRepository) *JobService {
	return &JobService{jobs: jobs}
}

func (s *JobService) Create(ctx context.Context, userID uint, title, description string) (*models.Job, error) {
	job := &models.Job{
		Title:       title,
		Description: description,
		Status:      models.JobStatusOpen,
		CreatedByID: userID,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *JobService) List(ctx context.Context, userID uint) ([]models.Job, error) {
	return s.jobs.ListByCreator(ctx, userID)
}

func (s *JobService) Get(ctx context.Context, id uint) (*models.Job, error) {
	return s.jobs.FindByID(ctx, id)
}

func (s *JobService) Update(ctx context.Context, id uint, title, description, status string) (*models.Job, error) {
	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if title != "" {
		job.Title = title
	}
	if description != "" {
		job.Description = description
	}
	if status != "" {
		switch status {
		case models.JobStatusOpen, models.JobStatusClosed, models.JobStatusOnHold:
			job.Status = status
		default:
			return nil, fmt.Errorf("invalid job status %q", status)
		}
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Delete removes a job. With cascade set, its applications are removed in
// the same transaction; the delete lands fully or not at all.
func (s *JobService) Delete(ctx context.Context, id uint, cascade bool) error {
	return s.jobs.Delete(ctx, id, cascade)
}
