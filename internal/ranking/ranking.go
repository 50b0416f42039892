// Package ranking computes distance leaderboards over the locally
// cached activities. It only reads the store and never touches the
// provider, so ranking reads cannot fail on provider outages.
package ranking

import (
	"context"
	"math"
	"strings"

	"github.com/grouprank/strava-ranking/internal/period"
	"github.com/grouprank/strava-ranking/internal/store"
)

// TypeAll disables the activity-type filter.
const TypeAll = "all"

// Entry is one leaderboard row.
type Entry struct {
	AthleteName string  `json:"athlete_name"`
	Profile     string  `json:"profile"`
	TotalKm     float64 `json:"total_km"`
}

// WeekRanking is a leaderboard for one calendar week within a range.
type WeekRanking struct {
	Label   string  `json:"label"`
	Ranking []Entry `json:"ranking"`
}

// Service answers leaderboard queries from the store.
type Service struct {
	store *store.Store
}

// NewService creates a ranking service.
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// ComputeRanking sums distance per athlete over activities whose local
// start falls within r, converts to kilometers rounded to two decimals
// and returns rows in descending order of total. Ties order by Strava
// id ascending; athletes without matching activities are omitted.
// typeFilter restricts to one activity type, case-insensitive; "all" or
// empty means no restriction.
func (s *Service) ComputeRanking(ctx context.Context, r period.Range, typeFilter string) ([]Entry, error) {
	totals, err := s.store.SumDistanceByAthlete(ctx, r.Start, r.End, normalizeType(typeFilter))
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(totals))
	for _, t := range totals {
		name := strings.TrimSpace(t.Firstname + " " + t.Lastname)
		entries = append(entries, Entry{
			AthleteName: name,
			Profile:     t.Profile,
			TotalKm:     roundKm(t.TotalMeters / 1000),
		})
	}
	return entries, nil
}

// ComputeWeeklyRanking partitions r into Monday-based calendar weeks and
// computes an independent leaderboard per week, preserving week order.
func (s *Service) ComputeWeeklyRanking(ctx context.Context, r period.Range, typeFilter string) ([]WeekRanking, error) {
	weeks := period.WeeksInRange(r.Start, r.End)

	result := make([]WeekRanking, 0, len(weeks))
	for _, week := range weeks {
		entries, err := s.ComputeRanking(ctx, week, typeFilter)
		if err != nil {
			return nil, err
		}
		result = append(result, WeekRanking{
			Label:   week.Start.Format("02/01") + " - " + week.End.Format("02/01"),
			Ranking: entries,
		})
	}
	return result, nil
}

func normalizeType(typeFilter string) string {
	t := strings.ToLower(strings.TrimSpace(typeFilter))
	if t == TypeAll {
		return ""
	}
	return t
}

func roundKm(km float64) float64 {
	return math.Round(km*100) / 100
}
