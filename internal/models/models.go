package models

import (
	"time"

	"gorm.io/gorm"
)

// Mail providers supported by the ingestion pipeline.
const (
	ProviderMicrosoft = "microsoft"
	ProviderGmail     = "gmail"
)

// Job statuses.
const (
	JobStatusOpen   = "OPEN"
	JobStatusClosed = "CLOSED"
	JobStatusOnHold = "ON_HOLD"
)

type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name  string `json:"name"`
	Email string `gorm:"uniqueIndex;not null" json:"email"`
}

type Job struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Status      string `gorm:"default:'OPEN'" json:"status"`
	CreatedByID uint   `json:"created_by"`
}

// OAuthCredential is one access/refresh token pair per (user, provider).
// The unique index makes upserts replace rather than accumulate rows; a
// failed refresh deletes the row outright, there is no soft delete here.
type OAuthCredential struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID       uint      `gorm:"uniqueIndex:idx_user_provider" json:"user_id"`
	Provider     string    `gorm:"uniqueIndex:idx_user_provider;not null" json:"provider"`
	Email        string    `gorm:"not null" json:"email"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	IsDefault    bool      `gorm:"default:false" json:"is_default"`
}

// Expired reports whether the access token needs a refresh before use.
func (c *OAuthCredential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Application is one parsed job-application email. The (job, message id)
// unique index is the idempotency key: re-listing an already ingested
// message must not produce a second row, even across concurrent cycles.
type Application struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	JobID         uint `gorm:"uniqueIndex:idx_job_message" json:"job_id"`
	Job           Job  `json:"job,omitempty"`
	ProcessedByID uint `gorm:"index" json:"processed_by"`

	ApplicantName  string `json:"applicant_name"`
	ApplicantEmail string `json:"applicant_email"`
	EmailSubject   string `json:"email_subject"`
	EmailBody      string `gorm:"type:text" json:"email_body"`
	ResumeText     string `gorm:"type:text" json:"resume_text"`

	AIScore   int    `json:"ai_score"`
	AISummary string `json:"ai_summary"`

	IsShortlisted bool       `gorm:"default:false" json:"is_shortlisted"`
	SentAt        *time.Time `json:"sent_at"`

	MessageID string `gorm:"uniqueIndex:idx_job_message;not null" json:"message_id"`
	ThreadID  string `json:"thread_id"`

	Attachments []Attachment `gorm:"constraint:OnDelete:CASCADE" json:"attachments,omitempty"`
}

type Attachment struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	ApplicationID uint   `gorm:"index" json:"application_id"`
	Filename      string `json:"filename"`
	ContentType   string `json:"content_type"`
	Data          []byte `gorm:"type:bytea" json:"-"`
}
