package provider

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/recruitflow/recruitflow/internal/domain"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestRetry_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := retry(3, time.Millisecond, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestRetry_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	err := retry(3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return &GraphError{StatusCode: 503, Body: "retry later"}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetry_ClientErrorFailsFast(t *testing.T) {
	calls := 0
	err := retry(3, time.Millisecond, func() error {
		calls++
		return &googleapi.Error{Code: 404, Message: "not found"}
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := retry(2, time.Millisecond, func() error {
		calls++
		return &googleapi.Error{Code: 429, Message: "rate limited"}
	})
	require.Error(t, err)
	require.Equal(t, 2, calls)
	require.Contains(t, err.Error(), "failed after 2 attempts")
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"google 429", &googleapi.Error{Code: 429}, true},
		{"google 500", &googleapi.Error{Code: 500}, true},
		{"google 403", &googleapi.Error{Code: 403}, false},
		{"graph 503", &GraphError{StatusCode: 503}, true},
		{"graph 400", &GraphError{StatusCode: 400}, false},
		{"plain network error", errors.New("connection refused"), true},
		{"dead refresh token", domain.ErrReauthRequired, false},
		{"wrapped dead refresh token", fmt.Errorf("list: %w", domain.ErrReauthRequired), false},
		{"missing credential", domain.ErrCredentialNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, isTransient(tt.err))
		})
	}
}
