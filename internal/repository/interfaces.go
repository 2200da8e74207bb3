package repository

import (
	"context"
	"time"

	"github.com/recruitflow/recruitflow/internal/models"
)

// JobRepository exposes persistence for jobs.
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	FindByID(ctx context.Context, id uint) (*models.Job, error)
	// FindByTitle resolves a job by case-insensitive title match.
	FindByTitle(ctx context.Context, title string) (*models.Job, error)
	ListByCreator(ctx context.Context, userID uint) ([]models.Job, error)
	Update(ctx context.Context, job *models.Job) error
	// Delete removes a job; when cascade is true its applications go with
	// it in the same transaction, all or nothing.
	Delete(ctx context.Context, id uint, cascade bool) error
}

// CredentialRepository exposes persistence for OAuth credentials.
type CredentialRepository interface {
	FindByUserAndProvider(ctx context.Context, userID uint, provider string) (*models.OAuthCredential, error)
	FindDefault(ctx context.Context, provider string) (*models.OAuthCredential, error)
	// FindByEmail returns (nil, nil) when no credential holds the address.
	FindByEmail(ctx context.Context, provider, email string) (*models.OAuthCredential, error)
	ListByUser(ctx context.Context, userID uint) ([]models.OAuthCredential, error)
	// Upsert creates or replaces the single row for (userID, provider).
	Upsert(ctx context.Context, cred *models.OAuthCredential) error
	// UpdateTokens mutates the token pair in place; no history is kept.
	UpdateTokens(ctx context.Context, id uint, accessToken, refreshToken string, expiresAt time.Time) error
	Delete(ctx context.Context, id uint) error
}

// ApplicationRepository exposes persistence for applications.
type ApplicationRepository interface {
	// Insert persists a new application. It reports false when the
	// (job, message id) key already exists: the conflict is swallowed at
	// the storage layer so concurrent fetch cycles cannot double-create.
	Insert(ctx context.Context, app *models.Application) (bool, error)
	// IngestedMessageIDs returns the dedup set for one job.
	IngestedMessageIDs(ctx context.Context, jobID uint) (map[string]struct{}, error)
	FindByID(ctx context.Context, id uint) (*models.Application, error)
	// List returns a user's applications, optionally restricted to one job
	// (jobID 0 means all), newest first.
	List(ctx context.Context, userID, jobID uint) ([]models.Application, error)
	Save(ctx context.Context, app *models.Application) error
	// ListPendingShortlist returns shortlisted, unsent applications for a job.
	ListPendingShortlist(ctx context.Context, jobID uint) ([]models.Application, error)
	MarkSent(ctx context.Context, id uint, at time.Time) error
	Delete(ctx context.Context, id uint) error
	DeleteMany(ctx context.Context, ids []uint) (int64, error)
}

// UserRepository exposes the minimal user lookups the core needs.
type UserRepository interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FirstOrCreate(ctx context.Context, user *models.User) error
}
