package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/recruitflow/recruitflow/internal/domain"
	"github.com/recruitflow/recruitflow/internal/models"
)

// In-memory implementations backing unit tests. They mirror the Postgres
// constraints that matter to the core: one credential row per
// (user, provider) and one application per (job, message id).

var (
	_ JobRepository         = (*MemoryJobRepo)(nil)
	_ CredentialRepository  = (*MemoryCredentialRepo)(nil)
	_ ApplicationRepository = (*MemoryApplicationRepo)(nil)
	_ UserRepository        = (*MemoryUserRepo)(nil)
)

type MemoryJobRepo struct {
	mu     sync.Mutex
	nextID uint
	jobs   map[uint]models.Job
	apps   *MemoryApplicationRepo
}

// NewMemoryJobRepo builds a job repo; apps may be nil when cascade deletes
// are not under test.
func NewMemoryJobRepo(apps *MemoryApplicationRepo) *MemoryJobRepo {
	return &MemoryJobRepo{jobs: make(map[uint]models.Job), apps: apps, nextID: 1}
}

func (r *MemoryJobRepo) Create(ctx context.Context, job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job.ID = r.nextID
	r.nextID++
	job.CreatedAt = time.Now()
	if job.Status == "" {
		job.Status = models.JobStatusOpen
	}
	r.jobs[job.ID] = *job
	return nil
}

func (r *MemoryJobRepo) FindByID(ctx context.Context, id uint) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return &job, nil
}

func (r *MemoryJobRepo) FindByTitle(ctx context.Context, title string) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobs {
		if strings.EqualFold(job.Title, title) {
			j := job
			return &j, nil
		}
	}
	return nil, domain.ErrJobNotFound
}

func (r *MemoryJobRepo) ListByCreator(ctx context.Context, userID uint) ([]models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Job
	for _, job := range r.jobs {
		if job.CreatedByID == userID {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *MemoryJobRepo) Update(ctx context.Context, job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return domain.ErrJobNotFound
	}
	r.jobs[job.ID] = *job
	return nil
}

func (r *MemoryJobRepo) Delete(ctx context.Context, id uint, cascade bool) error {
	r.mu.Lock()
	if _, ok := r.jobs[id]; !ok {
		r.mu.Unlock()
		return domain.ErrJobNotFound
	}
	delete(r.jobs, id)
	r.mu.Unlock()
	if cascade && r.apps != nil {
		r.apps.deleteByJob(id)
	}
	return nil
}

type MemoryCredentialRepo struct {
	mu     sync.Mutex
	nextID uint
	creds  map[uint]models.OAuthCredential
}

func NewMemoryCredentialRepo() *MemoryCredentialRepo {
	return &MemoryCredentialRepo{creds: make(map[uint]models.OAuthCredential), nextID: 1}
}

func (r *MemoryCredentialRepo) FindByUserAndProvider(ctx context.Context, userID uint, provider string) (*models.OAuthCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.creds {
		if c.UserID == userID && c.Provider == provider {
			cred := c
			return &cred, nil
		}
	}
	return nil, domain.ErrCredentialNotFound
}

func (r *MemoryCredentialRepo) FindDefault(ctx context.Context, provider string) (*models.OAuthCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.creds {
		if c.Provider == provider && c.IsDefault {
			cred := c
			return &cred, nil
		}
	}
	return nil, domain.ErrCredentialNotFound
}

func (r *MemoryCredentialRepo) FindByEmail(ctx context.Context, provider, email string) (*models.OAuthCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.creds {
		if c.Provider == provider && c.Email == email {
			cred := c
			return &cred, nil
		}
	}
	return nil, nil
}

func (r *MemoryCredentialRepo) ListByUser(ctx context.Context, userID uint) ([]models.OAuthCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.OAuthCredential
	for _, c := range r.creds {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *MemoryCredentialRepo) Upsert(ctx context.Context, cred *models.OAuthCredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.creds {
		if c.UserID == cred.UserID && c.Provider == cred.Provider {
			cred.ID = id
			cred.IsDefault = c.IsDefault
			r.creds[id] = *cred
			return nil
		}
	}
	cred.ID = r.nextID
	r.nextID++
	r.creds[cred.ID] = *cred
	return nil
}

func (r *MemoryCredentialRepo) UpdateTokens(ctx context.Context, id uint, accessToken, refreshToken string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.creds[id]
	if !ok {
		return domain.ErrCredentialNotFound
	}
	c.AccessToken = accessToken
	if refreshToken != "" {
		c.RefreshToken = refreshToken
	}
	c.ExpiresAt = expiresAt
	r.creds[id] = c
	return nil
}

func (r *MemoryCredentialRepo) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.creds, id)
	return nil
}

type MemoryApplicationRepo struct {
	mu     sync.Mutex
	nextID uint
	apps   map[uint]models.Application
}

func NewMemoryApplicationRepo() *MemoryApplicationRepo {
	return &MemoryApplicationRepo{apps: make(map[uint]models.Application), nextID: 1}
}

func (r *MemoryApplicationRepo) Insert(ctx context.Context, app *models.Application) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.apps {
		if a.JobID == app.JobID && a.MessageID == app.MessageID {
			return false, nil
		}
	}
	app.ID = r.nextID
	r.nextID++
	app.CreatedAt = time.Now()
	r.apps[app.ID] = *app
	return true, nil
}

func (r *MemoryApplicationRepo) IngestedMessageIDs(ctx context.Context, jobID uint) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{})
	for _, a := range r.apps {
		if a.JobID == jobID {
			seen[a.MessageID] = struct{}{}
		}
	}
	return seen, nil
}

func (r *MemoryApplicationRepo) FindByID(ctx context.Context, id uint) (*models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.apps[id]
	if !ok {
		return nil, domain.ErrApplicationNotFound
	}
	app := a
	return &app, nil
}

func (r *MemoryApplicationRepo) List(ctx context.Context, userID, jobID uint) ([]models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Application
	for _, a := range r.apps {
		if a.ProcessedByID != userID {
			continue
		}
		if jobID != 0 && a.JobID != jobID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *MemoryApplicationRepo) Save(ctx context.Context, app *models.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.apps[app.ID]; !ok {
		return domain.ErrApplicationNotFound
	}
	r.apps[app.ID] = *app
	return nil
}

func (r *MemoryApplicationRepo) ListPendingShortlist(ctx context.Context, jobID uint) ([]models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Application
	for _, a := range r.apps {
		if a.JobID == jobID && a.IsShortlisted && a.SentAt == nil {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryApplicationRepo) MarkSent(ctx context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.apps[id]
	if !ok {
		return domain.ErrApplicationNotFound
	}
	a.SentAt = &at
	r.apps[id] = a
	return nil
}

func (r *MemoryApplicationRepo) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.apps[id]; !ok {
		return domain.ErrApplicationNotFound
	}
	delete(r.apps, id)
	return nil
}

func (r *MemoryApplicationRepo) DeleteMany(ctx context.Context, ids []uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := r.apps[id]; ok {
			delete(r.apps, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryApplicationRepo) deleteByJob(jobID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, a := range r.apps {
		if a.JobID == jobID {
			delete(r.apps, id)
		}
	}
}

type MemoryUserRepo struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]models.User
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: make(map[uint]models.User), nextID: 1}
}

func (r *MemoryUserRepo) FindByID(ctx context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	user := u
	return &user, nil
}

func (r *MemoryUserRepo) FirstOrCreate(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			*user = u
			return nil
		}
	}
	user.ID = r.nextID
	r.nextID++
	r.users[user.ID] = *user
	return nil
}
