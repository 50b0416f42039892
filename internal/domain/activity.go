package domain

// Activity is one imported exercise session. Rows are append-only: an
// activity is inserted at most once per Strava activity id and never
// mutated afterwards.
type Activity struct {
	ID              int64   `db:"id" json:"id"`
	StravaID        int64   `db:"strava_id" json:"strava_id"`
	AthleteStravaID int64   `db:"athlete_strava_id" json:"athlete_strava_id"`
	Name            string  `db:"name" json:"name"`
	Type            string  `db:"type" json:"type"`
	Distance        float64 `db:"distance" json:"distance"`
	MovingTime      int64   `db:"moving_time" json:"moving_time"`
	ElapsedTime     int64   `db:"elapsed_time" json:"elapsed_time"`
	StartDate       UTCTime `db:"start_date" json:"start_date"`
	StartDateLocal  UTCTime `db:"start_date_local" json:"start_date_local"`
}
