package server

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/grouprank/strava-ranking/internal/domain"
	"github.com/grouprank/strava-ranking/internal/logging"
	"github.com/grouprank/strava-ranking/internal/period"
)

func (s *Server) root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "Strava ranking API up"})
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// authRedirect sends the athlete to the provider's consent page.
func (s *Server) authRedirect(c echo.Context) error {
	state := generateState()
	c.SetCookie(&http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600,
	})
	return c.Redirect(http.StatusTemporaryRedirect, s.auth.AuthURL(state))
}

// authCallback completes the OAuth handshake and kicks off a first
// import for the athlete. An import failure degrades to "import
// skipped": authorization itself always completes.
func (s *Server) authCallback(c echo.Context) error {
	if err := validateState(c); err != nil {
		return err
	}

	code := c.QueryParam("code")
	if code == "" {
		return fmt.Errorf("%w: missing code parameter", domain.ErrInvalidArgument)
	}

	athlete, err := s.auth.HandleCallback(c.Request().Context(), code)
	if err != nil {
		return err
	}

	if _, err := s.importer.ImportActivities(c.Request().Context(), athlete.StravaID); err != nil {
		logging.Warn("initial import skipped", "athlete", athlete.StravaID, "error", err)
	}

	html := fmt.Sprintf(
		"<html><body><h2>Authorized!</h2><p>%s is now part of the ranking.</p></body></html>",
		athlete.Firstname)
	return c.HTML(http.StatusOK, html)
}

// rankingQuery carries the window selection shared by the ranking
// endpoints: either an explicit start/end date pair, or year/month with
// an optional week number.
type rankingQuery struct {
	Start string `query:"start"`
	End   string `query:"end"`
	Year  int    `query:"year" validate:"omitempty,min=1"`
	Month int    `query:"month" validate:"omitempty,min=1,max=12"`
	Week  int    `query:"week" validate:"omitempty,min=1,max=6"`
	Type  string `query:"type"`
}

func (s *Server) getRanking(c echo.Context) error {
	var q rankingQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}

	r, err := resolveRange(q)
	if err != nil {
		return err
	}

	// Best effort: bring the cache up to date, then answer from it.
	s.importer.ImportAll(c.Request().Context())

	entries, err := s.ranker.ComputeRanking(c.Request().Context(), r, q.Type)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

func (s *Server) getWeeklyRanking(c echo.Context) error {
	var q rankingQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}

	r, err := resolveRange(q)
	if err != nil {
		return err
	}

	s.importer.ImportAll(c.Request().Context())

	weeks, err := s.ranker.ComputeWeeklyRanking(c.Request().Context(), r, q.Type)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, weeks)
}

// weekInfo is one calendar-navigation entry.
type weekInfo struct {
	Week  int    `json:"week"`
	Start string `json:"start"`
	End   string `json:"end"`
}

func (s *Server) getWeeks(c echo.Context) error {
	var q struct {
		Year  int `query:"year" validate:"required,min=1"`
		Month int `query:"month" validate:"required,min=1,max=12"`
	}
	if err := bindQuery(c, &q); err != nil {
		return err
	}

	weeks, err := period.WeeksInMonth(q.Year, q.Month)
	if err != nil {
		return err
	}

	result := make([]weekInfo, 0, len(weeks))
	for i, w := range weeks {
		result = append(result, weekInfo{
			Week:  i + 1,
			Start: w.Start.Format("02/01"),
			End:   w.End.Format("02/01"),
		})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) getLastUpdate(c echo.Context) error {
	latest, err := s.imports.LatestImport(c.Request().Context())
	if err != nil {
		return err
	}

	var value *string
	if latest != nil {
		formatted := latest.UTC().Format(time.RFC3339)
		value = &formatted
	}
	return c.JSON(http.StatusOK, map[string]*string{"last_update": value})
}

func bindQuery(c echo.Context, q any) error {
	if err := c.Bind(q); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return c.Validate(q)
}

// resolveRange turns the query parameters into an inclusive window.
func resolveRange(q rankingQuery) (period.Range, error) {
	if q.Start != "" || q.End != "" {
		if q.Start == "" || q.End == "" {
			return period.Range{}, fmt.Errorf("%w: start and end must be given together", domain.ErrInvalidArgument)
		}
		start, err := time.ParseInLocation("2006-01-02", q.Start, time.UTC)
		if err != nil {
			return period.Range{}, fmt.Errorf("%w: invalid start date %q", domain.ErrInvalidArgument, q.Start)
		}
		end, err := time.ParseInLocation("2006-01-02", q.End, time.UTC)
		if err != nil {
			return period.Range{}, fmt.Errorf("%w: invalid end date %q", domain.ErrInvalidArgument, q.End)
		}
		if end.Before(start) {
			return period.Range{}, fmt.Errorf("%w: end before start", domain.ErrInvalidArgument)
		}
		// Both dates are inclusive.
		end = end.Add(24*time.Hour - time.Second)
		return period.Range{Start: start, End: end}, nil
	}

	if q.Year != 0 && q.Month != 0 {
		if q.Week > 0 {
			weeks, err := period.WeeksInMonth(q.Year, q.Month)
			if err != nil {
				return period.Range{}, err
			}
			if q.Week > len(weeks) {
				return period.Range{}, fmt.Errorf("%w: month %d/%d has only %d weeks", domain.ErrInvalidArgument, q.Month, q.Year, len(weeks))
			}
			return weeks[q.Week-1], nil
		}
		return period.MonthRange(q.Year, q.Month)
	}

	return period.Range{}, fmt.Errorf("%w: provide start/end dates or year/month", domain.ErrInvalidArgument)
}

func generateState() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "state"
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func validateState(c echo.Context) error {
	cookie, err := c.Cookie("oauth_state")
	if err != nil {
		return fmt.Errorf("%w: missing oauth state cookie", domain.ErrInvalidArgument)
	}
	if state := c.QueryParam("state"); state == "" || state != cookie.Value {
		return fmt.Errorf("%w: oauth state mismatch", domain.ErrInvalidArgument)
	}
	return nil
}
