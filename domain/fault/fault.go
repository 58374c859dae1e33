// Package fault defines the kernel's error taxonomy.
// Every failure returned by the kernel wraps exactly one of these sentinels,
// so callers can branch with errors.Is and adapters can map them to codes.
package fault

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

var (
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrInsufficientIngredients  = errors.New("insufficient ingredients")
	ErrInvalidMethod            = errors.New("invalid processing method")
	ErrNotOwned                 = errors.New("not owned by player")
	ErrMaxLevelReached          = errors.New("max level reached")
	ErrConfiguration            = errors.New("configuration error")
	ErrConcurrentTurnInProgress = errors.New("turn already in progress")

	ErrModuleLocked     = errors.New("module level too low")
	ErrCapacityExceeded = errors.New("module capacity exceeded")
	ErrNotFound         = errors.New("not found")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrConflict         = errors.New("concurrent modification")
)

// ConfigError reports a deployment/data problem in the static tables.
// It always matches ErrConfiguration.
type ConfigError struct {
	Field      string // dotted path into the tables, e.g. "yields[3].species"
	Message    string
	Suggestion string // closest known value, if any
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.Field != "" {
		b.WriteString(": ")
		b.WriteString(e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, " (did you mean %q?)", e.Suggestion)
	}
	return b.String()
}

// Is makes errors.Is(err, ErrConfiguration) hold for any *ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// Config builds a ConfigError for field.
func Config(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InputError reports a bad value in a caller-supplied field.
// It always matches ErrInvalidArgument.
type InputError struct {
	Field   string // request member, e.g. "first_name"
	Message string
}

func (e *InputError) Error() string {
	return "invalid argument: " + e.Field + " " + e.Message
}

// Is makes errors.Is(err, ErrInvalidArgument) hold for any *InputError.
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// Input builds an InputError for field.
func Input(field, format string, args ...any) *InputError {
	return &InputError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Unknown builds a ConfigError for a value that is not among known,
// attaching the nearest candidate when it is a plausible typo.
func Unknown(field, value string, known []string) *ConfigError {
	return &ConfigError{
		Field:      field,
		Message:    fmt.Sprintf("unknown value %q", value),
		Suggestion: Nearest(value, known),
	}
}

// Nearest returns the candidate closest to value by edit distance, or ""
// when nothing is close enough to be a typo.
func Nearest(value string, candidates []string) string {
	best := ""
	bestDist := -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(value, c)
		if d > typoLimit(len(c)) {
			continue
		}
		if bestDist < 0 || d < bestDist || (d == bestDist && c < best) {
			best, bestDist = c, d
		}
	}
	return best
}

func typoLimit(n int) int {
	switch {
	case n <= 4:
		return 1
	case n <= 10:
		return 2
	default:
		return 3
	}
}

// Code returns a stable snake_case code for err, or "internal" when err
// is not part of the taxonomy.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInsufficientIngredients):
		return "insufficient_ingredients"
	case errors.Is(err, ErrInvalidMethod):
		return "invalid_method"
	case errors.Is(err, ErrNotOwned):
		return "not_owned"
	case errors.Is(err, ErrMaxLevelReached):
		return "max_level_reached"
	case errors.Is(err, ErrConfiguration):
		return "configuration_error"
	case errors.Is(err, ErrConcurrentTurnInProgress):
		return "concurrent_turn_in_progress"
	case errors.Is(err, ErrModuleLocked):
		return "module_locked"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}

// IsPlayerError reports whether err is a recoverable failure caused by the
// request itself rather than by deployment data or infrastructure.
func IsPlayerError(err error) bool {
	switch Code(err) {
	case "", "internal", "configuration_error", "conflict":
		return false
	default:
		return true
	}
}
