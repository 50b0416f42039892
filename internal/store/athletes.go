package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/grouprank/strava-ranking/internal/domain"
)

// GetAthleteByStravaID retrieves an athlete by their Strava id.
func (s *Store) GetAthleteByStravaID(ctx context.Context, stravaID int64) (*domain.Athlete, error) {
	var athlete domain.Athlete
	err := s.db.GetContext(ctx, &athlete,
		`SELECT id, strava_id, firstname, lastname, profile,
		        access_token, refresh_token, token_expires_at, last_import_at
		 FROM athletes WHERE strava_id = ?`, stravaID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: athlete %d", domain.ErrNotFound, stravaID)
		}
		return nil, fmt.Errorf("get athlete %d: %w", stravaID, err)
	}
	return &athlete, nil
}

// ListAthletes returns every registered athlete.
func (s *Store) ListAthletes(ctx context.Context) ([]domain.Athlete, error) {
	var athletes []domain.Athlete
	err := s.db.SelectContext(ctx, &athletes,
		`SELECT id, strava_id, firstname, lastname, profile,
		        access_token, refresh_token, token_expires_at, last_import_at
		 FROM athletes ORDER BY strava_id`)
	if err != nil {
		return nil, fmt.Errorf("list athletes: %w", err)
	}
	return athletes, nil
}

// UpsertAthlete creates an athlete on first authorization or refreshes
// profile and credentials on re-authorization. The last-import stamp is
// left untouched so re-authorizing does not bypass the import throttle.
func (s *Store) UpsertAthlete(ctx context.Context, a *domain.Athlete) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO athletes (strava_id, firstname, lastname, profile,
		                       access_token, refresh_token, token_expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(strava_id)
		 DO UPDATE SET firstname = excluded.firstname,
		               lastname = excluded.lastname,
		               profile = excluded.profile,
		               access_token = excluded.access_token,
		               refresh_token = excluded.refresh_token,
		               token_expires_at = excluded.token_expires_at`,
		a.StravaID, a.Firstname, a.Lastname, a.Profile,
		a.AccessToken, a.RefreshToken, a.TokenExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert athlete %d: %w", a.StravaID, err)
	}
	return nil
}

// UpdateTokens persists a refreshed credential set in one statement so a
// failed refresh can never leave a partial write behind.
func (s *Store) UpdateTokens(ctx context.Context, stravaID int64, accessToken, refreshToken string, expiresAt int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE athletes
		 SET access_token = ?, refresh_token = ?, token_expires_at = ?
		 WHERE strava_id = ?`,
		accessToken, refreshToken, expiresAt, stravaID)
	if err != nil {
		return fmt.Errorf("update tokens for athlete %d: %w", stravaID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: athlete %d", domain.ErrNotFound, stravaID)
	}
	return nil
}

// UpdateLastImport stamps the athlete's last successful import pass.
func (s *Store) UpdateLastImport(ctx context.Context, stravaID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE athletes SET last_import_at = ? WHERE strava_id = ?`,
		domain.NewUTCTime(at), stravaID)
	if err != nil {
		return fmt.Errorf("update last import for athlete %d: %w", stravaID, err)
	}
	return nil
}

// LatestImport returns the most recent last-import stamp across all
// athletes, or nil when no import has ever run.
func (s *Store) LatestImport(ctx context.Context) (*time.Time, error) {
	var raw sql.NullString
	err := s.db.GetContext(ctx, &raw, `SELECT MAX(last_import_at) FROM athletes`)
	if err != nil {
		return nil, fmt.Errorf("latest import: %w", err)
	}
	if !raw.Valid {
		return nil, nil
	}
	parsed, err := domain.ParseStoredTime(raw.String)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
