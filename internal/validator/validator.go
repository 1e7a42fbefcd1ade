package validator

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MinCityNameLength = 2
	MaxCityNameLength = 50
)

// Rejection reasons, in the order the rules are checked
const (
	ReasonRequired     = "City name is required"
	ReasonTooShort     = "City name must be at least 2 characters long"
	ReasonTooLong      = "City name must be less than 50 characters"
	ReasonInvalidChars = "City name contains invalid characters"
)

// letters, whitespace (including \v and the byte order mark), hyphen,
// apostrophe, period
var cityNamePattern = regexp.MustCompile(`^[\p{L}\p{Z}\s\v\x{FEFF}\-'.]+$`)

// Result is the outcome of validating a city name
type Result struct {
	Valid  bool
	Reason string
}

// Err returns the rejection as an error, or nil if the input was accepted
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Reason: r.Reason}
}

// ValidationError is returned for input rejected before any network call
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// UserMessage is safe to show as-is
func (e *ValidationError) UserMessage() string {
	return e.Reason
}

// ValidateCityName checks raw user input. The first failing rule wins.
func ValidateCityName(input string) Result {
	trimmed := strings.TrimSpace(input)
	length := utf8.RuneCountInString(trimmed)

	switch {
	case trimmed == "":
		return reject(ReasonRequired)
	case length < MinCityNameLength:
		return reject(ReasonTooShort)
	case length > MaxCityNameLength:
		return reject(ReasonTooLong)
	case !cityNamePattern.MatchString(trimmed):
		return reject(ReasonInvalidChars)
	}

	return Result{Valid: true}
}

func reject(reason string) Result {
	return Result{Valid: false, Reason: reason}
}
