package domain

import (
	"strings"
	"time"
)

// Athlete is a group member identified by their Strava athlete id.
// Token fields always hold the most recent provider response.
type Athlete struct {
	ID             int64       `db:"id" json:"id"`
	StravaID       int64       `db:"strava_id" json:"strava_id"`
	Firstname      string      `db:"firstname" json:"firstname"`
	Lastname       string      `db:"lastname" json:"lastname"`
	Profile        string      `db:"profile" json:"profile"`
	AccessToken    string      `db:"access_token" json:"-"`
	RefreshToken   string      `db:"refresh_token" json:"-"`
	TokenExpiresAt int64       `db:"token_expires_at" json:"-"`
	LastImportAt   NullUTCTime `db:"last_import_at" json:"-"`
}

// FullName returns the athlete's display name.
func (a *Athlete) FullName() string {
	return strings.TrimSpace(a.Firstname + " " + a.Lastname)
}

// TokenExpired reports whether the stored access token is no longer
// usable at the given instant.
func (a *Athlete) TokenExpired(now time.Time) bool {
	return a.TokenExpiresAt <= now.Unix()
}
