package repository

import (
	"context"
	"errors"
	"time"

	"github.com/recruitflow/recruitflow/internal/domain"
	"github.com/recruitflow/recruitflow/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Compile-time interface assertions.
var (
	_ JobRepository         = (*GormJobRepo)(nil)
	_ CredentialRepository  = (*GormCredentialRepo)(nil)
	_ ApplicationRepository = (*GormApplicationRepo)(nil)
	_ UserRepository        = (*GormUserRepo)(nil)
)

type GormJobRepo struct {
	db *gorm.DB
}

func NewGormJobRepo(db *gorm.DB) *GormJobRepo {
	return &GormJobRepo{db: db}
}

func (r *GormJobRepo) Create(ctx context.Context, job *models.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *GormJobRepo) FindByID(ctx context.Context, id uint) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).First(&job, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *GormJobRepo) FindByTitle(ctx context.Context, title string) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).Where("LOWER(title) = LOWER(?)", title).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *GormJobRepo) ListByCreator(ctx context.Context, userID uint) ([]models.Job, error) {
	var jobs []models.Job
	err := r.db.WithContext(ctx).Where("created_by_id = ?", userID).Order("created_at DESC").Find(&jobs).Error
	return jobs, err
}

func (r *GormJobRepo) Update(ctx context.Context, job *models.Job) error {
	return r.db.WithContext(ctx).Save(job).Error
}

func (r *GormJobRepo) Delete(ctx context.Context, id uint, cascade bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cascade {
			appIDs := tx.Model(&models.Application{}).Select("id").Where("job_id = ?", id)
			if err := tx.Where("application_id IN (?)", appIDs).Delete(&models.Attachment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("job_id = ?", id).Delete(&models.Application{}).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&models.Job{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrJobNotFound
		}
		return nil
	})
}

type GormCredentialRepo struct {
	db *gorm.DB
}

func NewGormCredentialRepo(db *gorm.DB) *GormCredentialRepo {
	return &GormCredentialRepo{db: db}
}

func (r *GormCredentialRepo) FindByUserAndProvider(ctx context.Context, userID uint, provider string) (*models.OAuthCredential, error) {
	var cred models.OAuthCredential
	err := r.db.WithContext(ctx).Where("user_id = ? AND provider = ?", userID, provider).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrCredentialNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *GormCredentialRepo) FindDefault(ctx context.Context, provider string) (*models.OAuthCredential, error) {
	var cred models.OAuthCredential
	err := r.db.WithContext(ctx).Where("provider = ? AND is_default = ?", provider, true).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrCredentialNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *GormCredentialRepo) FindByEmail(ctx context.Context, provider, email string) (*models.OAuthCredential, error) {
	var cred models.OAuthCredential
	err := r.db.WithContext(ctx).Where("provider = ? AND email = ?", provider, email).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *GormCredentialRepo) ListByUser(ctx context.Context, userID uint) ([]models.OAuthCredential, error) {
	var creds []models.OAuthCredential
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&creds).Error
	return creds, err
}

func (r *GormCredentialRepo) Upsert(ctx context.Context, cred *models.OAuthCredential) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email", "access_token", "refresh_token", "expires_at", "updated_at",
		}),
	}).Create(cred).Error
}

func (r *GormCredentialRepo) UpdateTokens(ctx context.Context, id uint, accessToken, refreshToken string, expiresAt time.Time) error {
	updates := map[string]interface{}{
		"access_token": accessToken,
		"expires_at":   expiresAt,
	}
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}
	return r.db.WithContext(ctx).Model(&models.OAuthCredential{}).Where("id = ?", id).Updates(updates).Error
}

func (r *GormCredentialRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.OAuthCredential{}, id).Error
}

type GormApplicationRepo struct {
	db *gorm.DB
}

func NewGormApplicationRepo(db *gorm.DB) *GormApplicationRepo {
	return &GormApplicationRepo{db: db}
}

func (r *GormApplicationRepo) Insert(ctx context.Context, app *models.Application) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}, {Name: "message_id"}},
			DoNothing: true,
		}).Create(app)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race to a concurrent cycle; not an error.
			return nil
		}
		created = true
		if len(app.Attachments) == 0 {
			return nil
		}
		for i := range app.Attachments {
			app.Attachments[i].ApplicationID = app.ID
		}
		return tx.Create(&app.Attachments).Error
	})
	return created, err
}

func (r *GormApplicationRepo) IngestedMessageIDs(ctx context.Context, jobID uint) (map[string]struct{}, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Application{}).
		Where("job_id = ?", jobID).Pluck("message_id", &ids).Error
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return seen, nil
}

func (r *GormApplicationRepo) FindByID(ctx context.Context, id uint) (*models.Application, error) {
	var app models.Application
	err := r.db.WithContext(ctx).Preload("Job").Preload("Attachments").First(&app, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrApplicationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *GormApplicationRepo) List(ctx context.Context, userID, jobID uint) ([]models.Application, error) {
	q := r.db.WithContext(ctx).Preload("Job").Where("processed_by_id = ?", userID)
	if jobID != 0 {
		q = q.Where("job_id = ?", jobID)
	}
	var apps []models.Application
	err := q.Order("created_at DESC").Find(&apps).Error
	return apps, err
}

func (r *GormApplicationRepo) Save(ctx context.Context, app *models.Application) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(app).Error
}

func (r *GormApplicationRepo) ListPendingShortlist(ctx context.Context, jobID uint) ([]models.Application, error) {
	var apps []models.Application
	err := r.db.WithContext(ctx).Preload("Job").Preload("Attachments").
		Where("job_id = ? AND is_shortlisted = ? AND sent_at IS NULL", jobID, true).
		Order("created_at ASC").Find(&apps).Error
	return apps, err
}

func (r *GormApplicationRepo) MarkSent(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Application{}).Where("id = ?", id).
		Update("sent_at", at).Error
}

func (r *GormApplicationRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("application_id = ?", id).Delete(&models.Attachment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Application{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrApplicationNotFound
		}
		return nil
	})
}

func (r *GormApplicationRepo) DeleteMany(ctx context.Context, ids []uint) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("application_id IN ?", ids).Delete(&models.Attachment{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.Application{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}

type GormUserRepo struct {
	db *gorm.DB
}

func NewGormUserRepo(db *gorm.DB) *GormUserRepo {
	return &GormUserRepo{db: db}
}

func (r *GormUserRepo) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormUserRepo) FirstOrCreate(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Where(models.User{Email: user.Email}).FirstOrCreate(user).Error
}
