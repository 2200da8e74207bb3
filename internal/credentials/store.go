package credentials

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/recruitflow/recruitflow/internal/domain"
	"github.com/recruitflow/recruitflow/internal/models"
	"github.com/recruitflow/recruitflow/internal/repository"
	"golang.org/x/oauth2"
)

// TokenRefresher exchanges a refresh token for a new access token. The
// production implementation is *oauth2.Config per provider; tests swap in a
// fake.
type TokenRefresher interface {
	Refresh(ctx context.Context, provider, refreshToken string) (*oauth2.Token, error)
}

// OAuth2Refresher refreshes tokens against the real provider endpoints.
type OAuth2Refresher struct {
	configs map[string]*oauth2.Config
}

func NewOAuth2Refresher(configs map[string]*oauth2.Config) *OAuth2Refresher {
	return &OAuth2Refresher{configs: configs}
}

func (r *OAuth2Refresher) Refresh(ctx context.Context, provider, refreshToken string) (*oauth2.Token, error) {
	cfg, ok := r.configs[provider]
	if !ok {
		return nil, domain.ErrUnsupportedProvider
	}
	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return src.Token()
}

// Store owns OAuthCredential rows: lookup with default fallback, upsert,
// and the refresh lifecycle.
type Store struct {
	repo      repository.CredentialRepository
	refresher TokenRefresher
	now       func() time.Time
}

func NewStore(repo repository.CredentialRepository, refresher TokenRefresher) *Store {
	return &Store{repo: repo, refresher: refresher, now: time.Now}
}

// Get returns the credential for (userID, provider), falling back to the
// single shared default account when the user has none connected.
func (s *Store) Get(ctx context.Context, userID uint, provider string) (*models.OAuthCredential, error) {
	cred, err := s.repo.FindByUserAndProvider(ctx, userID, provider)
	if err == nil {
		return cred, nil
	}
	if !errors.Is(err, domain.ErrCredentialNotFound) {
		return nil, err
	}
	return s.repo.FindDefault(ctx, provider)
}

// Upsert creates or replaces the row for (userID, provider).
func (s *Store) Upsert(ctx context.Context, cred *models.OAuthCredential) error {
	return s.repo.Upsert(ctx, cred)
}

// List returns a user's connected accounts.
func (s *Store) List(ctx context.Context, userID uint) ([]models.OAuthCredential, error) {
	return s.repo.ListByUser(ctx, userID)
}

// FindByEmail returns the credential holding a mailbox address, or nil.
func (s *Store) FindByEmail(ctx context.Context, provider, email string) (*models.OAuthCredential, error) {
	return s.repo.FindByEmail(ctx, provider, email)
}

// Refresh exchanges the stored refresh token for a new access token and
// persists the result in place. When the provider rejects the refresh token
// itself, the row is deleted and ErrReauthRequired is returned: the only
// way forward is reconnecting the account. A concurrent refresh overwriting
// the row with another valid pair is fine, last write wins.
func (s *Store) Refresh(ctx context.Context, cred *models.OAuthCredential) (*models.OAuthCredential, error) {
	tok, err := s.refresher.Refresh(ctx, cred.Provider, cred.RefreshToken)
	if err != nil {
		if isInvalidGrant(err) {
			log.Printf("Refresh token rejected for %s credential %d, removing row", cred.Provider, cred.ID)
			if delErr := s.repo.Delete(ctx, cred.ID); delErr != nil {
				log.Printf("Failed to delete credential %d: %v", cred.ID, delErr)
			}
			return nil, domain.ErrReauthRequired
		}
		return nil, fmt.Errorf("refresh %s token: %w", cred.Provider, err)
	}

	refreshToken := tok.RefreshToken // some providers rotate it, most return ""
	if err := s.repo.UpdateTokens(ctx, cred.ID, tok.AccessToken, refreshToken, tok.Expiry); err != nil {
		return nil, fmt.Errorf("persist refreshed token: %w", err)
	}

	updated := *cred
	updated.AccessToken = tok.AccessToken
	if refreshToken != "" {
		updated.RefreshToken = refreshToken
	}
	updated.ExpiresAt = tok.Expiry
	return &updated, nil
}

// Fresh returns a credential whose access token is valid right now,
// refreshing synchronously first when it has expired. Provider adapters
// call this before every outbound request; nothing ever hits a provider
// with a stale token.
func (s *Store) Fresh(ctx context.Context, cred *models.OAuthCredential) (*models.OAuthCredential, error) {
	if !cred.Expired(s.now()) {
		return cred, nil
	}
	log.Printf("Access token expired for %s credential %d, refreshing...", cred.Provider, cred.ID)
	return s.Refresh(ctx, cred)
}

// isInvalidGrant reports whether the token endpoint said the refresh token
// itself is dead, as opposed to a transient transport failure.
func isInvalidGrant(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return false
	}
	if retrieveErr.ErrorCode == "invalid_grant" {
		return true
	}
	if retrieveErr.Response != nil {
		code := retrieveErr.Response.StatusCode
		return code == 400 || code == 401
	}
	return false
}
