// Package server exposes the ranking API and the OAuth entry points
// over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/grouprank/strava-ranking/internal/domain"
	"github.com/grouprank/strava-ranking/internal/logging"
	"github.com/grouprank/strava-ranking/internal/period"
	"github.com/grouprank/strava-ranking/internal/ranking"
)

// Authorizer handles the OAuth flow with the provider.
type Authorizer interface {
	AuthURL(state string) string
	HandleCallback(ctx context.Context, code string) (*domain.Athlete, error)
}

// Importer brings cached activities up to date.
type Importer interface {
	ImportActivities(ctx context.Context, stravaID int64) (int, error)
	ImportAll(ctx context.Context)
}

// Ranker computes leaderboards from the cached activities.
type Ranker interface {
	ComputeRanking(ctx context.Context, r period.Range, typeFilter string) ([]ranking.Entry, error)
	ComputeWeeklyRanking(ctx context.Context, r period.Range, typeFilter string) ([]ranking.WeekRanking, error)
}

// ImportReader reports import bookkeeping from the store.
type ImportReader interface {
	LatestImport(ctx context.Context) (*time.Time, error)
}

// Config holds the server's runtime settings.
type Config struct {
	Port        int
	FrontendURL string
}

// Server is the HTTP surface of the service.
type Server struct {
	echo     *echo.Echo
	cfg      Config
	auth     Authorizer
	importer Importer
	ranker   Ranker
	imports  ImportReader
}

// New wires the HTTP routes and middleware.
func New(cfg Config, auth Authorizer, imp Importer, ranker Ranker, imports ImportReader) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newValidator()
	e.HTTPErrorHandler = errorHandler

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(requestLogger)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	s := &Server{
		echo:     e,
		cfg:      cfg,
		auth:     auth,
		importer: imp,
		ranker:   ranker,
		imports:  imports,
	}

	e.GET("/", s.root)
	e.GET("/health", s.health)
	e.GET("/auth/strava", s.authRedirect)
	e.GET("/auth/callback", s.authCallback)
	e.GET("/ranking", s.getRanking)
	e.GET("/ranking_weekly", s.getWeeklyRanking)
	e.GET("/weeks", s.getWeeks)
	e.GET("/last_update", s.getLastUpdate)

	return s
}

// Handler returns the HTTP handler, for serving and for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	logging.Info("http server starting", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// requestLogger logs each HTTP request with structured fields.
func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		logging.Info("http request",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", c.Response().Status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID))

		return nil
	}
}
