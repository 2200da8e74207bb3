package provider

import (
	"context"

	"github.com/recruitflow/recruitflow/internal/domain"
	"github.com/recruitflow/recruitflow/internal/models"
)

// MessageRef identifies one candidate message returned by a list call.
type MessageRef struct {
	ID       string
	ThreadID string
}

// AttachmentRef identifies one attachment within a fetched message; bytes
// are fetched separately.
type AttachmentRef struct {
	ID          string
	Filename    string
	ContentType string
}

// Message is a fully fetched mail message, normalized across providers.
type Message struct {
	ID          string
	ThreadID    string
	Subject     string
	FromName    string
	FromAddress string
	BodyHTML    string
	Attachments []AttachmentRef
}

// OutboundAttachment carries stored bytes back out in a digest mail.
type OutboundAttachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// OutboundMail is one message to send via the recruiter's own account.
type OutboundMail struct {
	To          string
	Subject     string
	HTMLBody    string
	Attachments []OutboundAttachment
}

// MailProvider is the uniform capability interface both mail providers
// satisfy. Implementations take the credential on every call; no adapter
// holds token state of its own. Subject matching semantics on list calls
// are provider-specific, callers must not assume exact match.
type MailProvider interface {
	// ListCandidateMessages returns unread messages with attachments whose
	// subject contains jobTitle.
	ListCandidateMessages(ctx context.Context, cred *models.OAuthCredential, jobTitle string) ([]MessageRef, error)
	GetMessage(ctx context.Context, cred *models.OAuthCredential, messageID string) (*Message, error)
	GetAttachment(ctx context.Context, cred *models.OAuthCredential, messageID, attachmentID string) ([]byte, error)
	// MarkRead is best-effort; callers log failures and continue.
	MarkRead(ctx context.Context, cred *models.OAuthCredential, messageID string) error
	// SendMail is never retried internally, a duplicate digest is worse
	// than a failed one.
	SendMail(ctx context.Context, cred *models.OAuthCredential, mail OutboundMail) error
}

// CredentialSource hands adapters a token that is valid right now,
// refreshing first when needed.
type CredentialSource interface {
	Fresh(ctx context.Context, cred *models.OAuthCredential) (*models.OAuthCredential, error)
}

// Registry dispatches on the credential's provider field.
type Registry struct {
	providers map[string]MailProvider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]MailProvider)}
}

func (r *Registry) Register(name string, p MailProvider) {
	r.providers[name] = p
}

func (r *Registry) Get(name string) (MailProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, domain.ErrUnsupportedProvider
	}
	return p, nil
}
