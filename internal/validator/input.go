// Package validator checks user queries before a run and cleans model
// answers after it.
package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxQueryLength is the default bound on query length in characters.
const MaxQueryLength = 2000

// spaceRegexp is compiled once at package init and reused across all Sanitize calls.
var spaceRegexp = regexp.MustCompile(`\s+`)

// ErrEmptyQuery is returned for blank input.
var ErrEmptyQuery = errors.New("query is empty")

type InputValidator struct {
	maxLength int
}

func NewInputValidator() *InputValidator {
	return &InputValidator{maxLength: MaxQueryLength}
}

// WithMaxLength overrides the length bound; non-positive values are ignored.
func (v *InputValidator) WithMaxLength(n int) *InputValidator {
	if n > 0 {
		v.maxLength = n
	}
	return v
}

func (v *InputValidator) Validate(query string) error {
	if !utf8.ValidString(query) {
		return errors.New("invalid UTF-8 encoding")
	}

	if strings.TrimSpace(query) == "" {
		return ErrEmptyQuery
	}

	if n := utf8.RuneCountInString(query); n > v.maxLength {
		return fmt.Errorf("query too long: %d characters, maximum %d", n, v.maxLength)
	}

	return nil
}

func (v *InputValidator) Sanitize(query string) string {
	query = strings.TrimSpace(query)
	query = spaceRegexp.ReplaceAllString(query, " ")
	return query
}

// Clean sanitizes query and validates the result.
func (v *InputValidator) Clean(query string) (string, error) {
	if !utf8.ValidString(query) {
		return "", errors.New("invalid UTF-8 encoding")
	}
	clean := v.Sanitize(query)
	if err := v.Validate(clean); err != nil {
		return "", err
	}
	return clean, nil
}
