// Package importer brings each athlete's locally cached activities up to
// date with the provider without ever inserting the same activity twice.
package importer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/grouprank/strava-ranking/internal/auth"
	"github.com/grouprank/strava-ranking/internal/domain"
	"github.com/grouprank/strava-ranking/internal/logging"
	"github.com/grouprank/strava-ranking/internal/store"
	"github.com/grouprank/strava-ranking/internal/strava"
)

// importThrottle bounds how often one athlete's listing is re-fetched.
// A cost control against provider rate limits, not a correctness rule.
const importThrottle = time.Hour

// Service imports provider activities into the store.
type Service struct {
	store  *store.Store
	client *strava.Client
	tokens *auth.Service

	// Overlapping import calls for the same athlete collapse into a
	// single provider pass.
	group singleflight.Group

	now func() time.Time
}

// NewService creates an import service.
func NewService(st *store.Store, client *strava.Client, tokens *auth.Service) *Service {
	return &Service{
		store:  st,
		client: client,
		tokens: tokens,
		now:    time.Now,
	}
}

// ImportActivities imports any activities the store has not seen yet for
// the athlete and returns the number of newly inserted records. Runs
// within the last hour are skipped entirely (no provider calls, returns
// zero). A provider failure mid-pagination surfaces as
// domain.ErrImportFailed; records inserted before the failure are kept,
// so a retry resumes safely.
func (s *Service) ImportActivities(ctx context.Context, stravaID int64) (int, error) {
	v, err, _ := s.group.Do(strconv.FormatInt(stravaID, 10), func() (any, error) {
		return s.runImport(ctx, stravaID)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (s *Service) runImport(ctx context.Context, stravaID int64) (int, error) {
	athlete, err := s.store.GetAthleteByStravaID(ctx, stravaID)
	if err != nil {
		return 0, err
	}

	now := s.now().UTC()
	if athlete.LastImportAt.Valid && now.Sub(athlete.LastImportAt.Time) < importThrottle {
		logging.Debug("import skipped, last run too recent",
			"athlete", stravaID,
			"last_import", athlete.LastImportAt.Time.Format(time.RFC3339))
		return 0, nil
	}

	token, err := s.tokens.EnsureValidToken(ctx, athlete)
	if err != nil {
		return 0, err
	}

	seen, err := s.store.ActivityIDsForAthlete(ctx, stravaID)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for page := 1; ; page++ {
		activities, err := s.client.ListActivities(ctx, token, page)
		if err != nil {
			return inserted, fmt.Errorf("%w: fetching page %d: %v", domain.ErrImportFailed, page, err)
		}

		for _, a := range activities {
			if _, ok := seen[a.ID]; ok {
				continue
			}
			if err := s.store.InsertActivity(ctx, convertActivity(a, stravaID)); err != nil {
				return inserted, fmt.Errorf("%w: saving activity %d: %v", domain.ErrImportFailed, a.ID, err)
			}
			seen[a.ID] = struct{}{}
			inserted++
		}

		// A short page ends the listing.
		if len(activities) < strava.PerPage {
			break
		}
	}

	if err := s.store.UpdateLastImport(ctx, stravaID, now); err != nil {
		return inserted, err
	}

	logging.Info("import finished", "athlete", stravaID, "inserted", inserted)
	return inserted, nil
}

// ImportAll runs an import for every registered athlete, best effort.
// Per-athlete failures are logged and skipped so a provider outage never
// breaks a ranking read.
func (s *Service) ImportAll(ctx context.Context) {
	athletes, err := s.store.ListAthletes(ctx)
	if err != nil {
		logging.Error("listing athletes for import", "error", err)
		return
	}

	for i := range athletes {
		if _, err := s.ImportActivities(ctx, athletes[i].StravaID); err != nil {
			logging.Warn("import skipped", "athlete", athletes[i].StravaID, "error", err)
		}
	}
}

func convertActivity(a strava.Activity, athleteStravaID int64) *domain.Activity {
	return &domain.Activity{
		StravaID:        a.ID,
		AthleteStravaID: athleteStravaID,
		Name:            a.Name,
		Type:            a.Type,
		Distance:        a.Distance,
		MovingTime:      a.MovingTime,
		ElapsedTime:     a.ElapsedTime,
		StartDate:       domain.NewUTCTime(a.StartDate),
		StartDateLocal:  domain.NewUTCTime(a.StartDateLocal),
	}
}
