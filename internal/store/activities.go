package store

import (
	"context"
	"fmt"
	"time"

	"github.com/grouprank/strava-ranking/internal/domain"
)

// ActivityIDsForAthlete returns the set of Strava activity ids already
// imported for the athlete. The importer consults it before inserting so
// overlapping pages or repeated passes never duplicate a row.
func (s *Store) ActivityIDsForAthlete(ctx context.Context, stravaID int64) (map[int64]struct{}, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids,
		`SELECT strava_id FROM activities WHERE athlete_strava_id = ?`, stravaID)
	if err != nil {
		return nil, fmt.Errorf("list activity ids for athlete %d: %w", stravaID, err)
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// InsertActivity appends one imported activity. The unique index on
// strava_id backs up the importer's in-memory duplicate guard; a
// conflicting insert is a no-op.
func (s *Store) InsertActivity(ctx context.Context, a *domain.Activity) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activities (strava_id, athlete_strava_id, name, type, distance,
		                         moving_time, elapsed_time, start_date, start_date_local)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(strava_id) DO NOTHING`,
		a.StravaID, a.AthleteStravaID, a.Name, a.Type, a.Distance,
		a.MovingTime, a.ElapsedTime, a.StartDate, a.StartDateLocal)
	if err != nil {
		return fmt.Errorf("insert activity %d: %w", a.StravaID, err)
	}
	return nil
}

// CountActivitiesForAthlete returns how many activities are stored for
// the athlete.
func (s *Store) CountActivitiesForAthlete(ctx context.Context, stravaID int64) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM activities WHERE athlete_strava_id = ?`, stravaID)
	if err != nil {
		return 0, fmt.Errorf("count activities for athlete %d: %w", stravaID, err)
	}
	return count, nil
}

// AthleteTotal is one athlete's summed distance over a window.
type AthleteTotal struct {
	StravaID    int64   `db:"athlete_strava_id"`
	Firstname   string  `db:"firstname"`
	Lastname    string  `db:"lastname"`
	Profile     string  `db:"profile"`
	TotalMeters float64 `db:"total_meters"`
}

// SumDistanceByAthlete sums activity distance per athlete over activities
// whose local start falls within [start, end] inclusive, optionally
// restricted to one activity type (case-insensitive; empty means all).
// Results are ordered by total descending, ties broken by Strava id.
// Timestamps are stored as UTC RFC3339 text, so the range comparison is
// a plain lexicographic one.
func (s *Store) SumDistanceByAthlete(ctx context.Context, start, end time.Time, activityType string) ([]AthleteTotal, error) {
	query := `SELECT a.athlete_strava_id, t.firstname, t.lastname, t.profile,
	                 SUM(a.distance) AS total_meters
	          FROM activities a
	          JOIN athletes t ON t.strava_id = a.athlete_strava_id
	          WHERE a.start_date_local >= ? AND a.start_date_local <= ?`
	args := []any{domain.NewUTCTime(start), domain.NewUTCTime(end)}

	if activityType != "" {
		query += ` AND LOWER(a.type) = LOWER(?)`
		args = append(args, activityType)
	}

	query += ` GROUP BY a.athlete_strava_id, t.firstname, t.lastname, t.profile
	           ORDER BY total_meters DESC, a.athlete_strava_id ASC`

	var totals []AthleteTotal
	if err := s.db.SelectContext(ctx, &totals, query, args...); err != nil {
		return nil, fmt.Errorf("sum distance by athlete: %w", err)
	}
	return totals, nil
}
