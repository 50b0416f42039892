package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/grouprank/strava-ranking/internal/domain"
	"github.com/grouprank/strava-ranking/internal/period"
	"github.com/grouprank/strava-ranking/internal/ranking"
)

type stubAuth struct {
	athlete *domain.Athlete
	err     error
}

func (s *stubAuth) AuthURL(state string) string {
	return "https://provider.example/authorize?state=" + state
}

func (s *stubAuth) HandleCallback(ctx context.Context, code string) (*domain.Athlete, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.athlete, nil
}

type stubImporter struct {
	importAllCalls int
	importCalls    []int64
	err            error
}

func (s *stubImporter) ImportActivities(ctx context.Context, stravaID int64) (int, error) {
	s.importCalls = append(s.importCalls, stravaID)
	return 0, s.err
}

func (s *stubImporter) ImportAll(ctx context.Context) {
	s.importAllCalls++
}

type stubRanker struct {
	entries  []ranking.Entry
	weekly   []ranking.WeekRanking
	lastType string
	lastR    period.Range
}

func (s *stubRanker) ComputeRanking(ctx context.Context, r period.Range, typeFilter string) ([]ranking.Entry, error) {
	s.lastR, s.lastType = r, typeFilter
	return s.entries, nil
}

func (s *stubRanker) ComputeWeeklyRanking(ctx context.Context, r period.Range, typeFilter string) ([]ranking.WeekRanking, error) {
	s.lastR, s.lastType = r, typeFilter
	return s.weekly, nil
}

type stubImports struct {
	latest *time.Time
}

func (s *stubImports) LatestImport(ctx context.Context) (*time.Time, error) {
	return s.latest, nil
}

type fixture struct {
	srv      *Server
	auth     *stubAuth
	importer *stubImporter
	ranker   *stubRanker
	imports  *stubImports
}

func newFixture() *fixture {
	f := &fixture{
		auth:     &stubAuth{athlete: &domain.Athlete{StravaID: 42, Firstname: "Ana"}},
		importer: &stubImporter{},
		ranker:   &stubRanker{entries: []ranking.Entry{}},
		imports:  &stubImports{},
	}
	f.srv = New(Config{Port: 0, FrontendURL: "*"}, f.auth, f.importer, f.ranker, f.imports)
	return f
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func TestGetRanking(t *testing.T) {
	f := newFixture()
	f.ranker.entries = []ranking.Entry{
		{AthleteName: "Ana Silva", TotalKm: 12.5},
		{AthleteName: "Bruno Costa", TotalKm: 8},
	}

	rec := f.get(t, "/ranking?year=2024&month=6&type=run")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var entries []ranking.Entry
	decodeJSON(t, rec, &entries)
	if len(entries) != 2 || entries[0].AthleteName != "Ana Silva" {
		t.Errorf("unexpected body: %+v", entries)
	}

	if f.ranker.lastType != "run" {
		t.Errorf("type filter not forwarded, got %q", f.ranker.lastType)
	}
	if f.importer.importAllCalls != 1 {
		t.Errorf("expected one ImportAll call, got %d", f.importer.importAllCalls)
	}

	wantStart := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if !f.ranker.lastR.Start.Equal(wantStart) {
		t.Errorf("expected range start %v, got %v", wantStart, f.ranker.lastR.Start)
	}
}

func TestGetRankingExplicitDates(t *testing.T) {
	f := newFixture()

	rec := f.get(t, "/ranking?start=2024-06-03&end=2024-06-09")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	wantEnd := time.Date(2024, 6, 9, 23, 59, 59, 0, time.UTC)
	if !f.ranker.lastR.End.Equal(wantEnd) {
		t.Errorf("expected inclusive end %v, got %v", wantEnd, f.ranker.lastR.End)
	}
}

func TestGetRankingBadRequests(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"no window at all", "/ranking"},
		{"start without end", "/ranking?start=2024-06-01"},
		{"end before start", "/ranking?start=2024-06-10&end=2024-06-01"},
		{"malformed date", "/ranking?start=junk&end=2024-06-10"},
		{"month out of range", "/ranking?year=2024&month=13"},
		{"week out of range", "/ranking?year=2024&month=6&week=7"},
		{"week beyond month", "/ranking?year=2024&month=6&week=6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			rec := f.get(t, tt.path)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			var apiErr APIError
			decodeJSON(t, rec, &apiErr)
			if apiErr.Code != "invalid_argument" {
				t.Errorf("expected invalid_argument code, got %q", apiErr.Code)
			}
			// Errors must short-circuit before any import work.
			if f.importer.importAllCalls != 0 {
				t.Errorf("invalid request must not trigger imports")
			}
		})
	}
}

func TestGetWeeklyRanking(t *testing.T) {
	f := newFixture()
	f.ranker.weekly = []ranking.WeekRanking{
		{Label: "03/06 - 09/06", Ranking: []ranking.Entry{{AthleteName: "Ana", TotalKm: 5}}},
	}

	rec := f.get(t, "/ranking_weekly?year=2024&month=6")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var weeks []ranking.WeekRanking
	decodeJSON(t, rec, &weeks)
	if len(weeks) != 1 || weeks[0].Label != "03/06 - 09/06" {
		t.Errorf("unexpected body: %+v", weeks)
	}
	if f.importer.importAllCalls != 1 {
		t.Errorf("expected one ImportAll call, got %d", f.importer.importAllCalls)
	}
}

func TestGetWeeks(t *testing.T) {
	f := newFixture()

	rec := f.get(t, "/weeks?year=2024&month=6")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var weeks []weekInfo
	decodeJSON(t, rec, &weeks)
	if len(weeks) != 5 {
		t.Fatalf("expected 5 weeks for June 2024, got %d", len(weeks))
	}
	if weeks[0].Week != 1 || weeks[0].Start != "01/06" || weeks[0].End != "02/06" {
		t.Errorf("unexpected first week: %+v", weeks[0])
	}
	if weeks[4].Start != "24/06" || weeks[4].End != "30/06" {
		t.Errorf("unexpected last week: %+v", weeks[4])
	}
}

func TestGetWeeksRequiresYearAndMonth(t *testing.T) {
	f := newFixture()
	rec := f.get(t, "/weeks?year=2024")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetLastUpdate(t *testing.T) {
	t.Run("no imports yet", func(t *testing.T) {
		f := newFixture()
		rec := f.get(t, "/last_update")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var body map[string]*string
		decodeJSON(t, rec, &body)
		if body["last_update"] != nil {
			t.Errorf("expected null last_update, got %v", *body["last_update"])
		}
	})

	t.Run("with imports", func(t *testing.T) {
		f := newFixture()
		when := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
		f.imports.latest = &when

		rec := f.get(t, "/last_update")
		var body map[string]*string
		decodeJSON(t, rec, &body)
		if body["last_update"] == nil || *body["last_update"] != "2024-06-15T10:30:00Z" {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})
}

func TestAuthRedirect(t *testing.T) {
	f := newFixture()

	rec := f.get(t, "/auth/strava")
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307, got %d", rec.Code)
	}

	location := rec.Header().Get("Location")
	if !strings.HasPrefix(location, "https://provider.example/authorize?state=") {
		t.Errorf("unexpected redirect target %q", location)
	}

	var state string
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "oauth_state" {
			state = cookie.Value
		}
	}
	if state == "" {
		t.Fatal("state cookie not set")
	}
	if !strings.HasSuffix(location, state) {
		t.Errorf("redirect state %q does not match cookie %q", location, state)
	}
}

func TestAuthCallback(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=xyz", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "xyz"})
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Ana") {
		t.Errorf("expected greeting with athlete name, got %q", rec.Body.String())
	}
	if len(f.importer.importCalls) != 1 || f.importer.importCalls[0] != 42 {
		t.Errorf("expected initial import for athlete 42, got %v", f.importer.importCalls)
	}
}

func TestAuthCallbackImportFailureStillSucceeds(t *testing.T) {
	f := newFixture()
	f.importer.err = fmt.Errorf("%w: provider down", domain.ErrImportFailed)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=xyz", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "xyz"})
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("authorization must succeed despite import failure, got %d", rec.Code)
	}
}

func TestAuthCallbackRejections(t *testing.T) {
	tests := []struct {
		name   string
		target string
		cookie *http.Cookie
		want   int
	}{
		{"missing cookie", "/auth/callback?code=abc&state=xyz", nil, http.StatusBadRequest},
		{"state mismatch", "/auth/callback?code=abc&state=evil", &http.Cookie{Name: "oauth_state", Value: "xyz"}, http.StatusBadRequest},
		{"missing code", "/auth/callback?state=xyz", &http.Cookie{Name: "oauth_state", Value: "xyz"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rec := httptest.NewRecorder()
			f.srv.Handler().ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAuthCallbackExchangeExpired(t *testing.T) {
	f := newFixture()
	f.auth.err = fmt.Errorf("%w: grant rejected", domain.ErrAuthExpired)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=xyz", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "xyz"})
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	f := newFixture()
	rec := f.get(t, "/health")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestResolveRange(t *testing.T) {
	t.Run("month window", func(t *testing.T) {
		r, err := resolveRange(rankingQuery{Year: 2024, Month: 2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.Start.Day() != 1 || r.End.Day() != 29 {
			t.Errorf("unexpected window %v - %v", r.Start, r.End)
		}
	})

	t.Run("week window", func(t *testing.T) {
		r, err := resolveRange(rankingQuery{Year: 2024, Month: 6, Week: 2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.Start.Day() != 3 || r.End.Day() != 9 {
			t.Errorf("unexpected second week %v - %v", r.Start, r.End)
		}
	})

	t.Run("explicit dates take precedence", func(t *testing.T) {
		r, err := resolveRange(rankingQuery{
			Start: "2024-01-01", End: "2024-01-02",
			Year: 2030, Month: 12,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.Start.Year() != 2024 {
			t.Errorf("explicit dates ignored: %v", r.Start)
		}
	})

	t.Run("year without month rejected", func(t *testing.T) {
		_, err := resolveRange(rankingQuery{Year: 2024})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
