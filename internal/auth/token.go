// Package auth keeps each athlete's OAuth credentials valid and handles
// the authorization callback that registers athletes with the group.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/grouprank/strava-ranking/internal/domain"
	"github.com/grouprank/strava-ranking/internal/logging"
	"github.com/grouprank/strava-ranking/internal/store"
	"github.com/grouprank/strava-ranking/internal/strava"
)

// Service refreshes athlete tokens and processes authorization callbacks.
type Service struct {
	store  *store.Store
	client *strava.Client

	now func() time.Time
}

// NewService creates a token service.
func NewService(st *store.Store, client *strava.Client) *Service {
	return &Service{
		store:  st,
		client: client,
		now:    time.Now,
	}
}

// AuthURL returns the provider authorization page for the given state.
func (s *Service) AuthURL(state string) string {
	return s.client.AuthURL(state)
}

// EnsureValidToken returns a usable access token for the athlete,
// refreshing and persisting a new credential set when the stored one has
// expired. When the token is still valid no provider call is made. A
// provider rejection surfaces as domain.ErrAuthExpired and leaves the
// stored credentials untouched.
func (s *Service) EnsureValidToken(ctx context.Context, athlete *domain.Athlete) (string, error) {
	if !athlete.TokenExpired(s.now()) {
		return athlete.AccessToken, nil
	}

	logging.Debug("access token expired, refreshing", "athlete", athlete.StravaID)

	tokens, err := s.client.Refresh(ctx, athlete.RefreshToken)
	if err != nil {
		return "", err
	}

	if err := s.store.UpdateTokens(ctx, athlete.StravaID, tokens.AccessToken, tokens.RefreshToken, tokens.ExpiresAt); err != nil {
		return "", fmt.Errorf("saving refreshed tokens: %w", err)
	}

	athlete.AccessToken = tokens.AccessToken
	athlete.RefreshToken = tokens.RefreshToken
	athlete.TokenExpiresAt = tokens.ExpiresAt

	logging.Info("token refreshed",
		"athlete", athlete.StravaID,
		"expires_at", time.Unix(tokens.ExpiresAt, 0).UTC().Format(time.RFC3339))

	return tokens.AccessToken, nil
}

// HandleCallback exchanges an authorization code and registers (or
// re-registers) the athlete with the credentials and profile returned by
// the provider.
func (s *Service) HandleCallback(ctx context.Context, code string) (*domain.Athlete, error) {
	tokens, profile, err := s.client.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	athlete := &domain.Athlete{
		StravaID:       profile.ID,
		Firstname:      profile.Firstname,
		Lastname:       profile.Lastname,
		Profile:        profile.Profile,
		AccessToken:    tokens.AccessToken,
		RefreshToken:   tokens.RefreshToken,
		TokenExpiresAt: tokens.ExpiresAt,
	}

	if err := s.store.UpsertAthlete(ctx, athlete); err != nil {
		return nil, err
	}

	logging.Info("athlete authorized", "athlete", athlete.StravaID, "name", athlete.FullName())
	return athlete, nil
}
