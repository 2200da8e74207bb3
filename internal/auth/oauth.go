package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/recruitflow/recruitflow/internal/credentials"
	"github.com/recruitflow/recruitflow/internal/domain"
	"github.com/recruitflow/recruitflow/internal/models"
	"golang.org/x/oauth2"
)

const stateTTL = 10 * time.Minute

// Manager runs the OAuth connect flows: auth-URL generation and callback
// code exchange for both providers, persisting the token pair through the
// credential store.
type Manager struct {
	configs    map[string]*oauth2.Config
	creds      *credentials.Store
	states     *stateStore
	httpClient *http.Client
}

func NewManager(configs map[string]*oauth2.Config, creds *credentials.Store) *Manager {
	return &Manager{
		configs:    configs,
		creds:      creds,
		states:     newStateStore(),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// AuthURL returns the provider consent URL for one connect attempt. The
// state token binds the eventual callback to (userID, provider).
func (m *Manager) AuthURL(provider string, userID uint) (string, error) {
	cfg, ok := m.configs[provider]
	if !ok {
		return "", domain.ErrUnsupportedProvider
	}
	state, err := m.states.issue(userID, provider)
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	), nil
}

// HandleCallback exchanges the authorization code and upserts the
// credential row. A mailbox already connected to a different user is
// rejected.
func (m *Manager) HandleCallback(ctx context.Context, state, code string) (*models.OAuthCredential, error) {
	entry, ok := m.states.consume(state)
	if !ok {
		return nil, domain.ErrInvalidState
	}
	cfg := m.configs[entry.provider]

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	email, err := m.fetchEmail(ctx, entry.provider, tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("fetch account email: %w", err)
	}

	existing, err := m.creds.FindByEmail(ctx, entry.provider, email)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.UserID != entry.userID {
		return nil, domain.ErrAccountInUse
	}

	refreshToken := tok.RefreshToken
	if refreshToken == "" && existing != nil {
		// Re-consent without offline_access re-grant; keep the old one.
		refreshToken = existing.RefreshToken
	}

	cred := &models.OAuthCredential{
		UserID:       entry.userID,
		Provider:     entry.provider,
		Email:        email,
		AccessToken:  tok.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if err := m.creds.Upsert(ctx, cred); err != nil {
		return nil, fmt.Errorf("persist credential: %w", err)
	}
	return cred, nil
}

// fetchEmail resolves the connected mailbox address from the provider's
// profile endpoint.
func (m *Manager) fetchEmail(ctx context.Context, provider, accessToken string) (string, error) {
	var endpoint string
	switch provider {
	case models.ProviderGmail:
		endpoint = "https://www.googleapis.com/oauth2/v2/userinfo"
	case models.ProviderMicrosoft:
		endpoint = "https://graph.microsoft.com/v1.0/me"
	default:
		return "", domain.ErrUnsupportedProvider
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("profile endpoint: status=%d", resp.StatusCode)
	}

	var profile struct {
		Email             string `json:"email"`
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := json.Unmarshal(body, &profile); err != nil {
		return "", err
	}
	switch {
	case profile.Email != "":
		return profile.Email, nil
	case profile.Mail != "":
		return profile.Mail, nil
	case profile.UserPrincipalName != "":
		return profile.UserPrincipalName, nil
	}
	return "", fmt.Errorf("profile response missing email address")
}

type stateEntry struct {
	userID    uint
	provider  string
	expiresAt time.Time
}

// stateStore holds pending connect attempts in memory. Entries expire; a
// state token is single use.
type stateStore struct {
	mu      sync.Mutex
	entries map[string]stateEntry
}

func newStateStore() *stateStore {
	return &stateStore{entries: make(map[string]stateEntry)}
}

func (s *stateStore) issue(userID uint, provider string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	state := hex.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	s.entries[state] = stateEntry{userID: userID, provider: provider, expiresAt: now.Add(stateTTL)}
	return state, nil
}

func (s *stateStore) consume(state string) (stateEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[state]
	if !ok {
		return stateEntry{}, false
	}
	delete(s.entries, state)
	if time.Now().After(e.expiresAt) {
		return stateEntry{}, false
	}
	return e, true
}
