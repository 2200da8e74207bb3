package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"

	"github.com/recruitflow/recruitflow/internal/credentials"
	"github.com/recruitflow/recruitflow/internal/domain"
	"github.com/recruitflow/recruitflow/internal/models"
	"github.com/recruitflow/recruitflow/internal/provider"
	"github.com/recruitflow/recruitflow/internal/repository"
	"github.com/recruitflow/recruitflow/internal/resume"
	"github.com/recruitflow/recruitflow/internal/scoring"
)

// Pipeline runs one ingestion cycle: list candidate messages, deduplicate,
// extract, score, persist. Messages are processed sequentially; provider
// rate limits are per account and mark-as-read must follow successful
// processing.
type Pipeline struct {
	jobs      repository.JobRepository
	apps      repository.ApplicationRepository
	creds     *credentials.Store
	providers *provider.Registry
	extractor resume.Extractor
	scorer    scoring.Scorer
}

func New(
	jobs repository.JobRepository,
	apps repository.ApplicationRepository,
	creds *credentials.Store,
	providers *provider.Registry,
	extractor resume.Extractor,
	scorer scoring.Scorer,
) *Pipeline {
	return &Pipeline{
		jobs:      jobs,
		apps:      apps,
		creds:     creds,
		providers: providers,
		extractor: extractor,
		scorer:    scorer,
	}
}

// FetchResult is the structured outcome of one cycle. A cycle with zero new
// applications is still a success.
type FetchResult struct {
	Applications    []models.Application `json:"applications"`
	Processed       int                  `json:"processed"`
	TotalCandidates int                  `json:"total_candidates"`
}

// Fetch runs one ingestion cycle for (user, provider, jobTitle).
//
// Failures before iteration starts (unknown job, missing or dead
// credential, list call) abort the cycle. Once iterating, a per-message
// failure is logged and skipped so the rest of the batch still lands,
// except a dead refresh token, which surfaces as ErrReauthRequired along
// with whatever was already persisted. The cycle is safe to re-invoke:
// re-listing plus the (job, message id) key skips anything already
// ingested.
func (p *Pipeline) Fetch(ctx context.Context, userID uint, providerName, jobTitle string) (*FetchResult, error) {
	job, err := p.jobs.FindByTitle(ctx, jobTitle)
	if err != nil {
		return nil, err
	}

	cred, err := p.creds.Get(ctx, userID, providerName)
	if err != nil {
		return nil, err
	}

	prov, err := p.providers.Get(providerName)
	if err != nil {
		return nil, err
	}

	refs, err := prov.ListCandidateMessages(ctx, cred, jobTitle)
	if err != nil {
		return nil, fmt.Errorf("list candidate messages: %w", err)
	}

	seen, err := p.apps.IngestedMessageIDs(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("load ingested message ids: %w", err)
	}

	result := &FetchResult{TotalCandidates: len(refs), Applications: []models.Application{}}
	log.Printf("Fetch cycle for job %q: %d candidate messages", job.Title, len(refs))

	for _, ref := range refs {
		if _, ok := seen[ref.ID]; ok {
			continue
		}

		app, err := p.processMessage(ctx, prov, cred, userID, job, ref)
		if err != nil {
			if errors.Is(err, domain.ErrReauthRequired) {
				// Token died mid-batch; every remaining message would hit
				// the same wall. Surface it with the partial result.
				return result, err
			}
			log.Printf("Skipping message %s: %v", ref.ID, err)
			continue
		}
		if app == nil {
			// No qualifying attachment; a skip, not an error.
			continue
		}

		result.Applications = append(result.Applications, *app)
		result.Processed++
	}

	log.Printf("Fetch cycle for job %q done: %d/%d new applications",
		job.Title, result.Processed, result.TotalCandidates)
	return result, nil
}

// processMessage handles one candidate end to end. A nil application with a
// nil error means the message was skipped for lack of a resume attachment.
func (p *Pipeline) processMessage(ctx context.Context, prov provider.MailProvider, cred *models.OAuthCredential, userID uint, job *models.Job, ref provider.MessageRef) (*models.Application, error) {
	msg, err := prov.GetMessage(ctx, cred, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch message: %w", err)
	}

	var attachments []models.Attachment
	var resumeText string
	for _, att := range msg.Attachments {
		if !resume.Supported(att.Filename) {
			continue
		}
		data, err := prov.GetAttachment(ctx, cred, msg.ID, att.ID)
		if err != nil {
			return nil, fmt.Errorf("fetch attachment %s: %w", att.Filename, err)
		}
		attachments = append(attachments, models.Attachment{
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Data:        data,
		})
		// Text is extracted from the first qualifying attachment only;
		// later ones are stored as-is.
		if resumeText == "" {
			resumeText = p.extractor.Extract(data, att.Filename)
		}
	}

	if len(attachments) == 0 {
		log.Printf("Message %s has no resume attachment, skipping", msg.ID)
		return nil, nil
	}

	aiResult := p.scorer.Score(ctx, resumeText, job.Description)

	app := &models.Application{
		JobID:          job.ID,
		ProcessedByID:  userID,
		ApplicantName:  msg.FromName,
		ApplicantEmail: msg.FromAddress,
		EmailSubject:   msg.Subject,
		EmailBody:      StripHTML(msg.BodyHTML),
		ResumeText:     resumeText,
		AIScore:        aiResult.Score,
		AISummary:      aiResult.Summary,
		MessageID:      msg.ID,
		ThreadID:       msg.ThreadID,
		Attachments:    attachments,
	}

	created, err := p.apps.Insert(ctx, app)
	if err != nil {
		return nil, fmt.Errorf("persist application: %w", err)
	}
	if !created {
		// A concurrent cycle got there first; the unique key did its job.
		log.Printf("Message %s already ingested for job %d, skipping", msg.ID, job.ID)
		return nil, nil
	}

	if err := prov.MarkRead(ctx, cred, msg.ID); err != nil {
		log.Printf("Failed to mark message %s as read: %v", msg.ID, err)
	}
	return app, nil
}

var htmlTagPattern = regexp.MustCompile(`</?[^>]+(>|$)`)

// StripHTML removes markup with plain substitution. Lossy; the body is
// display text, not a document to round-trip.
func StripHTML(s string) string {
	return htmlTagPattern.ReplaceAllString(s, "")
}
