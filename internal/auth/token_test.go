package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/grouprank/strava-ranking/internal/domain"
	"github.com/grouprank/strava-ranking/internal/store"
	"github.com/grouprank/strava-ranking/internal/strava"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return s
}

func seedAthlete(t *testing.T, st *store.Store, expiresAt int64) *domain.Athlete {
	t.Helper()
	athlete := &domain.Athlete{
		StravaID:       42,
		Firstname:      "Ana",
		Lastname:       "Silva",
		AccessToken:    "stored-access",
		RefreshToken:   "stored-refresh",
		TokenExpiresAt: expiresAt,
	}
	if err := st.UpsertAthlete(context.Background(), athlete); err != nil {
		t.Fatalf("seeding athlete: %v", err)
	}
	return athlete
}

func TestEnsureValidTokenStillValid(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	st := openTestStore(t)
	svc := NewService(st, strava.NewWithBaseURL("id", "secret", "http://localhost/cb", server.URL))

	athlete := seedAthlete(t, st, time.Now().Add(time.Hour).Unix())

	token, err := svc.EnsureValidToken(context.Background(), athlete)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "stored-access" {
		t.Errorf("expected stored token, got %q", token)
	}
	if calls != 0 {
		t.Errorf("expected zero provider calls, got %d", calls)
	}
}

func TestEnsureValidTokenRefreshes(t *testing.T) {
	oldExpiry := time.Now().Add(-time.Hour).Unix()
	newExpiry := time.Now().Add(6 * time.Hour).Unix()

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "new-access", "refresh_token": "new-refresh",
			"expires_in": 21600, "expires_at": ` + timeString(newExpiry) + `, "token_type": "Bearer"}`))
	}))
	defer server.Close()

	st := openTestStore(t)
	svc := NewService(st, strava.NewWithBaseURL("id", "secret", "http://localhost/cb", server.URL))

	athlete := seedAthlete(t, st, oldExpiry)

	token, err := svc.EnsureValidToken(context.Background(), athlete)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "new-access" {
		t.Errorf("expected refreshed token, got %q", token)
	}
	if calls != 1 {
		t.Errorf("expected exactly one provider call, got %d", calls)
	}

	stored, err := st.GetAthleteByStravaID(context.Background(), 42)
	if err != nil {
		t.Fatalf("loading athlete: %v", err)
	}
	if stored.AccessToken != "new-access" || stored.RefreshToken != "new-refresh" {
		t.Errorf("refreshed tokens not persisted: %+v", stored)
	}
	if stored.TokenExpiresAt <= oldExpiry {
		t.Errorf("persisted expiry must strictly increase: old %d, new %d", oldExpiry, stored.TokenExpiresAt)
	}
}

func TestEnsureValidTokenRejectedLeavesStateUntouched(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "invalid_grant"}`))
	}))
	defer server.Close()

	st := openTestStore(t)
	svc := NewService(st, strava.NewWithBaseURL("id", "secret", "http://localhost/cb", server.URL))

	oldExpiry := time.Now().Add(-time.Hour).Unix()
	athlete := seedAthlete(t, st, oldExpiry)

	_, err := svc.EnsureValidToken(context.Background(), athlete)
	if !errors.Is(err, domain.ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}

	stored, err := st.GetAthleteByStravaID(context.Background(), 42)
	if err != nil {
		t.Fatalf("loading athlete: %v", err)
	}
	if stored.AccessToken != "stored-access" || stored.RefreshToken != "stored-refresh" || stored.TokenExpiresAt != oldExpiry {
		t.Errorf("rejected refresh must not mutate stored credentials: %+v", stored)
	}
}

func TestHandleCallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "acc", "refresh_token": "ref",
			"expires_in": 21600, "token_type": "Bearer",
			"athlete": {"id": 42, "firstname": "Ana", "lastname": "Silva",
			"profile": "https://example.com/ana.jpg"}}`))
	}))
	defer server.Close()

	st := openTestStore(t)
	svc := NewService(st, strava.NewWithBaseURL("id", "secret", "http://localhost/cb", server.URL))

	athlete, err := svc.HandleCallback(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if athlete.StravaID != 42 || athlete.FullName() != "Ana Silva" {
		t.Errorf("unexpected athlete: %+v", athlete)
	}

	stored, err := st.GetAthleteByStravaID(context.Background(), 42)
	if err != nil {
		t.Fatalf("athlete not persisted: %v", err)
	}
	if stored.AccessToken != "acc" || stored.Profile != "https://example.com/ana.jpg" {
		t.Errorf("unexpected stored athlete: %+v", stored)
	}
}

func timeString(unix int64) string {
	return strconv.FormatInt(unix, 10)
}
