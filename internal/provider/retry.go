package provider

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/recruitflow/recruitflow/internal/domain"
	"google.golang.org/api/googleapi"
)

// retry executes f with exponential backoff. Only transient failures are
// retried; a 4xx from the provider comes back immediately. Used for
// idempotent reads (list, get), never for sends.
func retry(attempts int, sleep time.Duration, f func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = f(); err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		log.Printf("Provider API error: %v. Retrying in %v...", err, sleep)
		time.Sleep(sleep)
		sleep *= 2
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}

// isTransient classifies provider failures. Auth failures are final: a
// dead refresh token or missing credential cannot heal on retry. HTTP
// errors are transient only for throttling and server faults; anything
// else (network, DNS, timeouts) is assumed worth one more try.
func isTransient(err error) bool {
	if errors.Is(err, domain.ErrReauthRequired) || errors.Is(err, domain.ErrCredentialNotFound) {
		return false
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == 429 || gErr.Code >= 500
	}
	var grErr *GraphError
	if errors.As(err, &grErr) {
		return grErr.StatusCode == 429 || grErr.StatusCode >= 500
	}
	return true
}
