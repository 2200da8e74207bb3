package dispatch

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"github.com/recruitflow/recruitflow/internal/credentials"
	"github.com/recruitflow/recruitflow/internal/domain"
	"github.com/recruitflow/recruitflow/internal/models"
	"github.com/recruitflow/recruitflow/internal/provider"
	"github.com/recruitflow/recruitflow/internal/repository"
)

// Dispatcher batches shortlisted, unsent applications for a job into one
// digest email sent from the recruiter's own mailbox.
type Dispatcher struct {
	apps      repository.ApplicationRepository
	users     repository.UserRepository
	creds     *credentials.Store
	providers *provider.Registry
	now       func() time.Time
}

func New(apps repository.ApplicationRepository, users repository.UserRepository, creds *credentials.Store, providers *provider.Registry) *Dispatcher {
	return &Dispatcher{apps: apps, users: users, creds: creds, providers: providers, now: time.Now}
}

// SendResult reports one successful digest send.
type SendResult struct {
	SentCount int       `json:"sent_count"`
	SentAt    time.Time `json:"sent_at"`
}

// SendShortlisted sends the digest and stamps sentAt on every included
// application. Stamping only starts after the send succeeds; a failed
// send stamps nothing. Stamping itself is per record and best effort: one
// failed update is logged, not rolled back, so at worst a candidate shows
// up in a second digest.
func (d *Dispatcher) SendShortlisted(ctx context.Context, userID uint, providerName string, jobID uint) (*SendResult, error) {
	apps, err := d.apps.ListPendingShortlist(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load pending applications: %w", err)
	}
	if len(apps) == 0 {
		return nil, domain.ErrNoPendingApplications
	}

	cred, err := d.creds.Get(ctx, userID, providerName)
	if err != nil {
		return nil, err
	}
	prov, err := d.providers.Get(providerName)
	if err != nil {
		return nil, err
	}

	recipient := cred.Email
	if user, err := d.users.FindByID(ctx, userID); err == nil && user.Email != "" {
		recipient = user.Email
	}

	jobTitle := apps[0].Job.Title
	mail := provider.OutboundMail{
		To:       recipient,
		Subject:  fmt.Sprintf("Shortlisted Applications for %s", jobTitle),
		HTMLBody: buildDigest(jobTitle, apps),
	}
	for _, app := range apps {
		for _, att := range app.Attachments {
			mail.Attachments = append(mail.Attachments, provider.OutboundAttachment{
				Filename:    att.Filename,
				ContentType: att.ContentType,
				Data:        att.Data,
			})
		}
	}

	if err := prov.SendMail(ctx, cred, mail); err != nil {
		return nil, fmt.Errorf("send shortlist digest: %w", err)
	}

	sentAt := d.now()
	for _, app := range apps {
		if err := d.apps.MarkSent(ctx, app.ID, sentAt); err != nil {
			log.Printf("Failed to stamp sentAt on application %d: %v", app.ID, err)
		}
	}

	log.Printf("Sent %d shortlisted applications for job %q to %s", len(apps), jobTitle, recipient)
	return &SendResult{SentCount: len(apps), SentAt: sentAt}, nil
}

func buildDigest(jobTitle string, apps []models.Application) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<h2>Shortlisted Applications for %s</h2>", html.EscapeString(jobTitle))
	for _, app := range apps {
		sb.WriteString(`<div style="margin-bottom: 20px; padding: 10px; border: 1px solid #ccc;">`)
		fmt.Fprintf(&sb, "<h3>%s</h3>", html.EscapeString(app.ApplicantName))
		fmt.Fprintf(&sb, "<p><strong>Email:</strong> %s</p>", html.EscapeString(app.ApplicantEmail))
		fmt.Fprintf(&sb, "<p><strong>AI Score:</strong> %d/10</p>", app.AIScore)
		fmt.Fprintf(&sb, "<p><strong>AI Summary:</strong> %s</p>", html.EscapeString(app.AISummary))
		fmt.Fprintf(&sb, "<p><strong>Date Received:</strong> %s</p>", app.CreatedAt.Format("2006-01-02"))
		sb.WriteString("<p><strong>Attachments:</strong></p><ul>")
		for _, att := range app.Attachments {
			fmt.Fprintf(&sb, "<li>%s</li>", html.EscapeString(att.Filename))
		}
		sb.WriteString("</ul>")
		fmt.Fprintf(&sb, "<p><strong>Email Body:</strong></p><div>%s</div>", html.EscapeString(app.EmailBody))
		sb.WriteString("</div>")
	}
	return sb.String()
}
