package utils

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Truncate shortens s to at most limit runes, appending "..." when cut.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + "..."
}

// FindRuneSpan returns the rune offsets [start, end) of the first occurrence
// of needle in haystack.
func FindRuneSpan(haystack, needle string) (int, int, bool) {
	if needle == "" {
		return 0, 0, false
	}
	idx := strings.Index(haystack, needle)
	if idx < 0 {
		return 0, 0, false
	}
	start := utf8.RuneCountInString(haystack[:idx])
	return start, start + utf8.RuneCountInString(needle), true
}

// RuneSlice returns the runes of s in [start, end), clamped to s.
func RuneSlice(s string, start, end int) string {
	r := []rune(s)
	if start < 0 {
		start = 0
	}
	if end > len(r) {
		end = len(r)
	}
	if start >= end {
		return ""
	}
	return string(r[start:end])
}

// ClockID builds ids of the form "<prefix>-<unix ms>-<seq>".
func ClockID(prefix string, t time.Time, seq uint64) string {
	return prefix + "-" + strconv.FormatInt(t.UnixMilli(), 10) + "-" + strconv.FormatUint(seq, 10)
}

// SessionID derives a new session id from the clock.
func SessionID(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// DisplayTime is the wall clock form shown next to messages.
func DisplayTime(t time.Time) string {
	return t.Format("3:04 PM")
}
