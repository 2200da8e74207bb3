package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
)

// Config contains runtime configuration values.
type Config struct {
	HTTPPort    string
	DatabaseURL string

	GeminiAPIKey string
	GeminiModel  string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	MicrosoftClientID     string
	MicrosoftClientSecret string
	MicrosoftRedirectURL  string
	MicrosoftTenant       string
}

// Load reads configuration from the environment, with .env support for
// local development.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		GoogleClientID:     os.Getenv("GMAIL_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GMAIL_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GMAIL_REDIRECT_URI"),

		MicrosoftClientID:     os.Getenv("OUTLOOK_CLIENT_ID"),
		MicrosoftClientSecret: os.Getenv("OUTLOOK_CLIENT_SECRET"),
		MicrosoftRedirectURL:  os.Getenv("OUTLOOK_REDIRECT_URI"),
		MicrosoftTenant:       getEnv("OUTLOOK_TENANT", "common"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

// GoogleOAuth returns the oauth2 config used for the Gmail connect flow and
// for refreshing stored Gmail tokens.
func (c Config) GoogleOAuth() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.GoogleClientID,
		ClientSecret: c.GoogleClientSecret,
		RedirectURL:  c.GoogleRedirectURL,
		Endpoint:     google.Endpoint,
		Scopes: []string{
			"https://www.googleapis.com/auth/gmail.readonly",
			"https://www.googleapis.com/auth/gmail.modify",
			"https://www.googleapis.com/auth/gmail.send",
			"https://www.googleapis.com/auth/userinfo.email",
			"openid",
		},
	}
}

// MicrosoftOAuth returns the oauth2 config for the Microsoft connect flow
// and token refresh.
func (c Config) MicrosoftOAuth() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.MicrosoftClientID,
		ClientSecret: c.MicrosoftClientSecret,
		RedirectURL:  c.MicrosoftRedirectURL,
		Endpoint:     microsoft.AzureADEndpoint(c.MicrosoftTenant),
		Scopes: []string{
			"offline_access",
			"User.Read",
			"Mail.Read",
			"Mail.ReadWrite",
			"Mail.Send",
		},
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
