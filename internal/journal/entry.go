package journal

import (
	"fmt"
	"strings"
	"time"
)

// MaxContentRunes is the maximum entry length, counted in characters.
const MaxContentRunes = 10000

// NoVersion is the expected version of a save that creates a new entry.
const NoVersion int64 = 0

const dateLayout = "2006-01-02"

// Type is the entry cadence.
type Type string

const (
	TypeDaily   Type = "daily"
	TypeWeekly  Type = "weekly"
	TypeMonthly Type = "monthly"
)

// Types lists the valid entry types in display order.
var Types = []Type{TypeDaily, TypeWeekly, TypeMonthly}

// ParseType parses a type name case-insensitively.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown entry type %q", s)}
	}
	return t, nil
}

// Valid reports whether t is one of the known types.
func (t Type) Valid() bool {
	switch t {
	case TypeDaily, TypeWeekly, TypeMonthly:
		return true
	}
	return false
}

// Date is a calendar date in YYYY-MM-DD form.
// Dates compare correctly as strings.
type Date string

// ParseDate parses and canonicalizes a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", &ValidationError{Field: "date", Reason: fmt.Sprintf("malformed date %q", s)}
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

// Time returns midnight UTC of the date. Invalid dates yield the zero time.
func (d Date) Time() time.Time {
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Valid reports whether d parses as a calendar date.
func (d Date) Valid() bool {
	_, err := time.Parse(dateLayout, string(d))
	return err == nil
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d > other
}

// WeekStart returns the Monday of the ISO week containing d.
func (d Date) WeekStart() Date {
	t := d.Time()
	offset := (int(t.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return DateOf(t.AddDate(0, 0, -offset))
}

// MonthYear returns the YYYY-MM month containing d.
func (d Date) MonthYear() string {
	if len(d) < 7 {
		return ""
	}
	return string(d[:7])
}

// Key identifies exactly one live entry.
type Key struct {
	Date Date
	Type Type
}

// String renders the key as "YYYY-MM-DD/type". Used in logs and draft ids.
func (k Key) String() string {
	return string(k.Date) + "/" + string(k.Type)
}

// Entry is a committed journal entry.
type Entry struct {
	ID        int64
	Date      Date
	Type      Type
	Content   string
	WeekStart Date   // set only for weekly entries
	MonthYear string // set only for monthly entries
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the entry's identity.
func (e Entry) Key() Key {
	return Key{Date: e.Date, Type: e.Type}
}

// Derived returns the week start and month-year fields for a key.
// Only the field matching the key's type is populated.
func Derived(k Key) (weekStart Date, monthYear string) {
	switch k.Type {
	case TypeWeekly:
		return k.Date.WeekStart(), ""
	case TypeMonthly:
		return "", k.Date.MonthYear()
	}
	return "", ""
}

// SaveRequest is an upsert of content under a key.
//
// ExpectedVersion is the version the caller last observed. NoVersion means
// the caller expects no entry to exist yet.
type SaveRequest struct {
	Key             Key
	Content         string
	ExpectedVersion int64
}

// Draft is an uncommitted snapshot of editor content kept for crash recovery.
type Draft struct {
	ID        string
	SessionID string
	Key       Key
	Content   string
	SavedAt   time.Time
}

// DraftID returns the stable id of the draft for a key within a session.
func DraftID(k Key, sessionID string) string {
	return k.String() + "/" + sessionID
}

// ParseDraftID splits a draft id into its key and session.
func ParseDraftID(id string) (Key, string, error) {
	parts := strings.SplitN(id, "/", 3)
	if len(parts) != 3 || parts[2] == "" {
		return Key{}, "", &ValidationError{Field: "draft_id", Reason: fmt.Sprintf("malformed draft id %q", id)}
	}
	date, err := ParseDate(parts[0])
	if err != nil {
		return Key{}, "", err
	}
	typ, err := ParseType(parts[1])
	if err != nil {
		return Key{}, "", err
	}
	return Key{Date: date, Type: typ}, parts[2], nil
}
