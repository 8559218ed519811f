package journal

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// NormalizeContent converts line endings to \n and trims surrounding
// whitespace. It is the only correction applied to content on save.
func NormalizeContent(content string) string {
	return strings.TrimSpace(lineEndings.Replace(content))
}

// Normalize validates a save request and returns its canonical form.
//
// Checks run before any transaction opens:
//   - type must be daily, weekly or monthly
//   - date must be a real calendar date, not after today
//   - content must be UTF-8 and at most MaxContentRunes characters after normalization
//   - expected version must not be negative
func Normalize(req SaveRequest, today Date) (SaveRequest, error) {
	if !req.Key.Type.Valid() {
		return SaveRequest{}, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown entry type %q", req.Key.Type)}
	}

	date, err := ParseDate(string(req.Key.Date))
	if err != nil {
		return SaveRequest{}, err
	}
	if date.After(today) {
		return SaveRequest{}, &ValidationError{Field: "date", Reason: "entry is dated in the future"}
	}

	if !utf8.ValidString(req.Content) {
		return SaveRequest{}, &ValidationError{Field: "content", Reason: "content is not valid UTF-8"}
	}
	content := NormalizeContent(req.Content)
	if n := utf8.RuneCountInString(content); n > MaxContentRunes {
		return SaveRequest{}, &ValidationError{
			Field:  "content",
			Reason: fmt.Sprintf("content has %d characters, limit is %d", n, MaxContentRunes),
		}
	}

	if req.ExpectedVersion < 0 {
		return SaveRequest{}, &ValidationError{Field: "expected_version", Reason: "version must not be negative"}
	}

	return SaveRequest{
		Key:             Key{Date: date, Type: req.Key.Type},
		Content:         content,
		ExpectedVersion: req.ExpectedVersion,
	}, nil
}
