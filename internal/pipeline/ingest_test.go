package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/recruitflow/recruitflow/internal/credentials"
	"github.com/recruitflow/recruitflow/internal/domain"
	"github.com/recruitflow/recruitflow/internal/models"
	"github.com/recruitflow/recruitflow/internal/provider"
	"github.com/recruitflow/recruitflow/internal/repository"
	"github.com/recruitflow/recruitflow/internal/scoring"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeMailProvider struct {
	refs        []provider.MessageRef
	messages    map[string]*provider.Message
	attachments map[string][]byte // keyed messageID/attachmentID
	listErr     error
	getErr      map[string]error
	markReadErr error
	markedRead  []string
}

func newFakeMailProvider() *fakeMailProvider {
	return &fakeMailProvider{
		messages:    make(map[string]*provider.Message),
		attachments: make(map[string][]byte),
		getErr:      make(map[string]error),
	}
}

func (f *fakeMailProvider) addMessage(msg *provider.Message, attachmentData map[string][]byte) {
	f.refs = append(f.refs, provider.MessageRef{ID: msg.ID, ThreadID: msg.ThreadID})
	f.messages[msg.ID] = msg
	for attID, data := range attachmentData {
		f.attachments[msg.ID+"/"+attID] = data
	}
}

func (f *fakeMailProvider) ListCandidateMessages(ctx context.Context, cred *models.OAuthCredential, jobTitle string) ([]provider.MessageRef, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.refs, nil
}

func (f *fakeMailProvider) GetMessage(ctx context.Context, cred *models.OAuthCredential, messageID string) (*provider.Message, error) {
	if err := f.getErr[messageID]; err != nil {
		return nil, err
	}
	msg, ok := f.messages[messageID]
	if !ok {
		return nil, fmt.Errorf("no such message %s", messageID)
	}
	return msg, nil
}

func (f *fakeMailProvider) GetAttachment(ctx context.Context, cred *models.OAuthCredential, messageID, attachmentID string) ([]byte, error) {
	data, ok := f.attachments[messageID+"/"+attachmentID]
	if !ok {
		return nil, domain.ErrAttachmentNotFound
	}
	return data, nil
}

func (f *fakeMailProvider) MarkRead(ctx context.Context, cred *models.OAuthCredential, messageID string) error {
	if f.markReadErr != nil {
		return f.markReadErr
	}
	f.markedRead = append(f.markedRead, messageID)
	return nil
}

func (f *fakeMailProvider) SendMail(ctx context.Context, cred *models.OAuthCredential, mail provider.OutboundMail) error {
	return errors.New("not implemented")
}

type fakeExtractor struct {
	text      string
	filenames []string
}

func (f *fakeExtractor) Extract(data []byte, filename string) string {
	f.filenames = append(f.filenames, filename)
	return f.text
}

type fakeScorer struct {
	result scoring.Result
	calls  int
}

func (f *fakeScorer) Score(ctx context.Context, resumeText, jobDescription string) scoring.Result {
	f.calls++
	return f.result
}

type noRefresh struct{}

func (noRefresh) Refresh(ctx context.Context, provider, refreshToken string) (*oauth2.Token, error) {
	return nil, errors.New("refresh not expected in this test")
}

type fixture struct {
	jobs      *repository.MemoryJobRepo
	apps      *repository.MemoryApplicationRepo
	creds     *repository.MemoryCredentialRepo
	mail      *fakeMailProvider
	extractor *fakeExtractor
	scorer    *fakeScorer
	pipeline  *Pipeline
	job       *models.Job
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	apps := repository.NewMemoryApplicationRepo()
	jobs := repository.NewMemoryJobRepo(apps)
	credRepo := repository.NewMemoryCredentialRepo()
	store := credentials.NewStore(credRepo, noRefresh{})

	require.NoError(t, credRepo.Upsert(context.Background(), &models.OAuthCredential{
		UserID:      1,
		Provider:    models.ProviderGmail,
		Email:       "recruiter@example.com",
		AccessToken: "token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	job := &models.Job{Title: "Backend Engineer", Description: "Go and Postgres", CreatedByID: 1}
	require.NoError(t, jobs.Create(context.Background(), job))

	mail := newFakeMailProvider()
	registry := provider.NewRegistry()
	registry.Register(models.ProviderGmail, mail)

	extractor := &fakeExtractor{text: "ten years of Go experience"}
	scorer := &fakeScorer{result: scoring.Result{Score: 8, Summary: "strong match"}}

	return &fixture{
		jobs:      jobs,
		apps:      apps,
		creds:     credRepo,
		mail:      mail,
		extractor: extractor,
		scorer:    scorer,
		pipeline:  New(jobs, apps, store, registry, extractor, scorer),
		job:       job,
	}
}

func candidateMessage(id string) *provider.Message {
	return &provider.Message{
		ID:          id,
		ThreadID:    "thread-" + id,
		Subject:     "Application for Backend Engineer",
		FromName:    "Jane Doe",
		FromAddress: "jane@example.com",
		BodyHTML:    "<p>Please find my resume attached.</p>",
		Attachments: []provider.AttachmentRef{
			{ID: "att-1", Filename: "resume.pdf", ContentType: "application/pdf"},
		},
	}
}

func TestFetch_IngestsNewApplication(t *testing.T) {
	fx := newFixture(t)
	fx.mail.addMessage(candidateMessage("msg-1"), map[string][]byte{"att-1": []byte("%PDF-1.4")})

	res, err := fx.pipeline.Fetch(context.Background(), 1, models.ProviderGmail, "Backend Engineer")
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)
	require.Equal(t, 1, res.TotalCandidates)
	require.Len(t, res.Applications, 1)

	app := res.Applications[0]
	require.Equal(t, "msg-1", app.MessageID)
	require.Equal(t, fx.job.ID, app.JobID)
	require.Equal(t, "Jane Doe", app.ApplicantName)
	require.Equal(t, "jane@example.com", app.ApplicantEmail)
	require.Equal(t, "Please find my resume attached.", app.EmailBody)
	require.Equal(t, "ten years of Go experience", app.ResumeText)
	require.Equal(t, 8, app.AIScore)
	require.GreaterOrEqual(t, app.AIScore, 0)
	require.LessOrEqual(t, app.AIScore, 10)
	require.Len(t, app.Attachments, 1)
	require.Equal(t, "resume.pdf", app.Attachments[0].Filename)
	require.Equal(t, []string{"msg-1"}, fx.mail.markedRead)
}

func TestFetch_SecondRunIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	fx.mail.addMessage(candidateMessage("msg-1"), map[string][]byte{"att-1": []byte("%PDF-1.4")})

	first, err := fx.pipeline.Fetch(context.Background(), 1, models.ProviderGmail, "Backend Engineer")
	require.NoError(t, err)
	require.Equal(t, 1, first.Processed)

	second, err := fx.pipeline.Fetch(context.Background(), 1, models.ProviderGmail, "Backend Engineer")
	require.NoError(t, err)
	require.Equal(t, 0, second.Processed)
	require.Equal(t, 1, second.TotalCandidates)
	require.Empty(t, second.Applications)
}

func TestFetch_SkipsMessageWithoutResumeAttachment(t *testing.T) {
	fx := newFixture(t)
	msg := candidateMessage("msg-1")
	msg.Attachments = []provider.AttachmentRef{
		{ID: "att-1", Filename: "headshot.png", ContentType: "image/png"},
	}
	fx.mail.addMessage(msg, map[string][]byte{"att-1": []byte("png bytes")})

	res, err := fx.pipeline.Fetch(context.Background(), 1, models.ProviderGmail, "Backend Engineer")
	require.NoError(t, err)
	require.Equal(t, 0, res.Processed)
	require.Equal(t, 1, res.TotalCandidates)
	require.Zero(t, fx.scorer.calls)

	seen, err := fx.apps.IngestedMessageIDs(context.Background(), fx.job.ID)
	require.NoError(t, err)
	require.Empty(t, seen)
	// An unprocessed message stays unread for the next cycle.
	require.Empty(t, fx.mail.markedRead)
}

func TestFetch_StoresAllResumesButExtractsFirstOnly(t *testing.T) {
	fx := newFixture(t)
	msg := candidateMessage("msg-1")
	msg.Attachments = []provider.AttachmentRef{
		{ID: "att-1", Filename: "resume.pdf", ContentType: "application/pdf"},
		{ID: "att-2", Filename: "notes.txt", ContentType: "text/plain"},
		{ID: "att-3", Filename: "portfolio.docx", ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	}
	fx.mail.addMessage(msg, map[string][]byte{
		"att-1": []byte("pdf bytes"),
		"att-2": []byte("txt bytes"),
		"att-3": []byte("docx bytes"),
	})

	res, err := fx.pipeline.Fetch(context.Background(), 1, models.ProviderGmail, "Backend Engineer")
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)

	app := res.Applications[0]
	require.Len(t, app.Attachments, 2)
	require.Equal(t, "resume.pdf", app.Attachments[0].Filename)
	require.Equal(t, "portfolio.docx", app.Attachments[1].Filename)
	require.Equal(t, []string{"resume.pdf"}, fx.extractor.filenames)
}

func TestFetch_PerMessageFailureDoesNotAbortBatch(t *testing.T) {
	fx := newFixture(t)
	fx.mail.addMessage(candidateMessage("msg-1"), map[string][]byte{"att-1": []byte("pdf")})
	fx.mail.addMessage(candidateMessage("msg-2"), map[string][]byte{"att-1": []byte("pdf")})
	fx.mail.getErr["msg-1"] = errors.New("rate limited")

	res, err := fx.pipeline.Fetch(context.Background(), 1, models.ProviderGmail, "Backend Engineer")
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)
	require.Equal(t, 2, res.TotalCandidates)
	require.Equal(t, "msg-2", res.Applications[0].MessageID)
}

func TestFetch_ReauthAbortsWithPartialResult(t *testing.T) {
	fx := newFixture(t)
	fx.mail.addMessage(candidateMessage("msg-1"), map[string][]byte{"att-1": []byte("pdf")})
	fx.mail.addMessage(candidateMessage("msg-2"), map[string][]byte{"att-1": []byte("pdf")})
	fx.mail.getErr["msg-2"] = domain.ErrReauthRequired

	res, err := fx.pipeline.Fetch(context.Background(), 1, models.ProviderGmail, "Backend Engineer")
	require.ErrorIs(t, err, domain.ErrReauthRequired)
	require.NotNil(t, res)
	require.Equal(t, 1, res.Processed)
	require.Equal(t, "msg-1", res.Applications[0].MessageID)
}

func TestFetch_AttachmentFailureSkipsMessage(t *testing.T) {
	fx := newFixture(t)
	msg := candidateMessage("msg-1")
	fx.mail.refs = append(fx.mail.refs, provider.MessageRef{ID: msg.ID})
	fx.mail.messages[msg.ID] = msg // attachment bytes deliberately absent

	res, err := fx.pipeline.Fetch(context.Background(), 1, models.ProviderGmail, "Backend Engineer")
	require.NoError(t, err)
	require.Equal(t, 0, res.Processed)
}

func TestFetch_MarkReadFailureIsNotFatal(t *testing.T) {
	fx := newFixture(t)
	fx.mail.addMessage(candidateMessage("msg-1"), map[string][]byte{"att-1": []byte("pdf")})
	fx.mail.markReadErr = errors.New("label not found")

	res, err := fx.pipeline.Fetch(context.Background(), 1, models.ProviderGmail, "Backend Engineer")
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)
}

func TestFetch_UnknownJob(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.pipeline.Fetch(context.Background(), 1, models.ProviderGmail, "Rust Wizard")
	require.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestFetch_MissingCredential(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.pipeline.Fetch(context.Background(), 42, models.ProviderMicrosoft, "Backend Engineer")
	require.ErrorIs(t, err, domain.ErrCredentialNotFound)
}

func TestFetch_UnknownProvider(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.creds.Upsert(context.Background(), &models.OAuthCredential{
		UserID:      1,
		Provider:    "imap",
		AccessToken: "token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	_, err := fx.pipeline.Fetch(context.Background(), 1, "imap", "Backend Engineer")
	require.ErrorIs(t, err, domain.ErrUnsupportedProvider)
}

func TestFetch_ListFailureAborts(t *testing.T) {
	fx := newFixture(t)
	fx.mail.listErr = errors.New("503 backend error")

	_, err := fx.pipeline.Fetch(context.Background(), 1, models.ProviderGmail, "Backend Engineer")
	require.Error(t, err)
}

func TestFetch_BlankResumeTextStillPersists(t *testing.T) {
	fx := newFixture(t)
	fx.extractor.text = ""
	fx.scorer.result = scoring.Result{Score: 0, Summary: "insufficient data"}
	fx.mail.addMessage(candidateMessage("msg-1"), map[string][]byte{"att-1": []byte("corrupt")})

	res, err := fx.pipeline.Fetch(context.Background(), 1, models.ProviderGmail, "Backend Engineer")
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)
	require.Equal(t, 0, res.Applications[0].AIScore)
	require.Equal(t, "insufficient data", res.Applications[0].AISummary)
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<p>Hello <b>world</b></p>", "Hello world"},
		{"plain text", "plain text"},
		{"<div class=\"x\">nested <span>tags</span></div>", "nested tags"},
		{"", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, StripHTML(tt.in))
	}
}
