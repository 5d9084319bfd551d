package model

import "time"

// ISOTimestampLayout renders UTC timestamps with millisecond precision,
// e.g. 2024-05-01T12:30:45.123Z.
const ISOTimestampLayout = "2006-01-02T15:04:05.000Z"

// CollectionStats holds document counts for the backing collections.
type CollectionStats struct {
	Users int64 `json:"users"`
	Codes int64 `json:"codes"`
}

// Health check outcomes reported per dependency.
const (
	CheckOK     = "ok"
	CheckFailed = "failed"
)

// HealthReport aggregates dependency checks. Only configured dependencies
// appear in Checks.
type HealthReport struct {
	Checks map[string]string
	Err    error
}

// Healthy reports whether every enabled dependency answered.
func (r *HealthReport) Healthy() bool {
	return r.Err == nil
}

// FormatTimestamp renders t in ISOTimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(ISOTimestampLayout)
}
