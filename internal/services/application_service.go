package services

import (
	"context"

	"github.com/recruitflow/recruitflow/internal/domain"
	"github.com/recruitflow/recruitflow/internal/models"
	"github.com/recruitflow/recruitflow/internal/repository"
)

type ApplicationService struct {
	apps repository.ApplicationRepository
}

func NewApplicationService(apps repository.ApplicationRepository) *ApplicationService {
	return &ApplicationService{apps: apps}
}

func (s *ApplicationService) List(ctx context.Context, userID, jobID uint) ([]models.Application, error) {
	return s.apps.List(ctx, userID, jobID)
}

func (s *ApplicationService) Get(ctx context.Context, id uint) (*models.Application, error) {
	return s.apps.FindByID(ctx, id)
}

// ToggleShortlist flips the shortlist flag and returns the new value.
// Applications that already went out in a digest are frozen: sentAt is a
// terminal marker, so the toggle is rejected with ErrAlreadySent.
func (s *ApplicationService) ToggleShortlist(ctx context.Context, id uint) (bool, error) {
	app, err := s.apps.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if app.SentAt != nil {
		return app.IsShortlisted, domain.ErrAlreadySent
	}
	app.IsShortlisted = !app.IsShortlisted
	if err := s.apps.Save(ctx, app); err != nil {
		return false, err
	}
	return app.IsShortlisted, nil
}

func (s *ApplicationService) Attachment(ctx context.Context, applicationID, attachmentID uint) (*models.Attachment, error) {
	app, err := s.apps.FindByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	for i := range app.Attachments {
		if app.Attachments[i].ID == attachmentID {
			return &app.Attachments[i], nil
		}
	}
	return nil, domain.ErrAttachmentNotFound
}

func (s *ApplicationService) Delete(ctx context.Context, id uint) error {
	return s.apps.Delete(ctx, id)
}

func (s *ApplicationService) DeleteMany(ctx context.Context, ids []uint) (int64, error) {
	return s.apps.DeleteMany(ctx, ids)
}
