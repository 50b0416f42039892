package domain

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Timestamps are persisted as RFC3339 text in UTC. Older rows written
// without a zone are treated as UTC when scanned.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// UTCTime is a time.Time that round-trips through the database as UTC
// RFC3339 text regardless of how the stored value was written.
type UTCTime struct {
	time.Time
}

// NewUTCTime normalizes t to UTC.
func NewUTCTime(t time.Time) UTCTime {
	return UTCTime{t.UTC()}
}

// Scan implements sql.Scanner.
func (t *UTCTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		parsed, err := ParseStoredTime(v)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	case []byte:
		parsed, err := ParseStoredTime(string(v))
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	default:
		return fmt.Errorf("scanning time: unsupported type %T", src)
	}
}

// Value implements driver.Valuer.
func (t UTCTime) Value() (driver.Value, error) {
	return t.UTC().Format(time.RFC3339), nil
}

// NullUTCTime is a nullable UTCTime.
type NullUTCTime struct {
	Time  time.Time
	Valid bool
}

// Scan implements sql.Scanner.
func (t *NullUTCTime) Scan(src any) error {
	if src == nil {
		t.Time, t.Valid = time.Time{}, false
		return nil
	}
	var inner UTCTime
	if err := inner.Scan(src); err != nil {
		return err
	}
	t.Time, t.Valid = inner.Time, true
	return nil
}

// Value implements driver.Valuer.
func (t NullUTCTime) Value() (driver.Value, error) {
	if !t.Valid {
		return nil, nil
	}
	return t.Time.UTC().Format(time.RFC3339), nil
}

// ParseStoredTime parses a persisted timestamp. Values without zone
// information are interpreted as UTC.
func ParseStoredTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("scanning time: unrecognized value %q", s)
}
