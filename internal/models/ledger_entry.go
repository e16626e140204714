package models

import (
	"strings"
	"time"
)

// LedgerTimeLayout is the timestamp format used in the results ledger and
// in report metadata footers.
const LedgerTimeLayout = "2006-01-02 15:04:05"

// FailedSentinel is stored in LastUpdateTime when a stock exhausted its
// retries without producing a valid report.
const FailedSentinel = "FAILED"

// LedgerEntry is the durable per-stock processing record. Keyed by
// Filename; exactly one entry exists per expected report filename.
type LedgerEntry struct {
	Filename string `json:"filename"`
	// LastUpdateTime holds the report file's modification time in
	// LedgerTimeLayout, or FailedSentinel after a terminal failure.
	LastUpdateTime string `json:"last_update_time"`
	Success        bool   `json:"success"`
	// ProcessTime is the wall-clock completion time of the last attempt.
	ProcessTime string `json:"process_time"`
	RetryCount  int    `json:"retry_count"`
}

// Failed reports whether the entry records a terminal failure, either via
// the success flag or the FAILED sentinel.
func (e LedgerEntry) Failed() bool {
	return !e.Success || e.LastUpdateTime == FailedSentinel
}

// ParseLedgerBool normalizes the success column, which historically appears
// as True/False, 1/0 or yes/no depending on what wrote the file.
func ParseLedgerBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// FormatLedgerTime renders t in the ledger timestamp layout.
func FormatLedgerTime(t time.Time) string {
	return t.Format(LedgerTimeLayout)
}

// ParseLedgerTime parses a ledger timestamp, accepting the handful of
// layouts seen in historical files. Returns the zero time for empty values
// and sentinels.
func ParseLedgerTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "", FailedSentinel, "NEVER", "NOT_PROCESSED", "NAN", "NONE":
		return time.Time{}, false
	}
	for _, layout := range []string{
		LedgerTimeLayout,
		"2006-01-02",
		"2006/01/02 15:04:05",
		"2006/01/02",
	} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	// ISO-ish fallback: trim a T separator and sub-second noise.
	core := strings.ReplaceAll(s, "T", " ")
	if len(core) > 19 {
		core = core[:19]
	}
	if t, err := time.ParseInLocation(LedgerTimeLayout, core, time.Local); err == nil {
		return t, true
	}
	return time.Time{}, false
}
