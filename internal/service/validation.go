package service

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	minTitleLength       = 3
	minNameLength        = 2
	maxPhoneLength       = 40
	minDescriptionLength = 10
	minNotesLength       = 2
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseDate accepts RFC 3339 timestamps and zone-less local forms, the latter
// read in loc.
func parseDate(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), true
	}
	for _, layout := range dateLayouts[1:] {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func validEmail(value string) bool {
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return false
	}
	// reject display-name forms such as "Ann <ann@example.com>"
	return addr.Address == value && strings.Contains(value, "@")
}

func minLength(value string, n int) bool {
	return utf8.RuneCountInString(strings.TrimSpace(value)) >= n
}

// trimmedOrNil returns nil for nil or blank input.
func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
