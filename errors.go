package gridline

import (
	"errors"
	"fmt"
)

// Common sentinel errors for the gridline package.
var (
	// ErrMissingReference is returned when the reference channel has no data.
	// Expected during session warm-up; builds retry on the next call.
	ErrMissingReference = errors.New("reference channel not primed")

	// ErrStructural is returned when ledger state is internally inconsistent
	// (count disagrees with the point sequence, reversed elapsed span).
	ErrStructural = errors.New("structural inconsistency detected")

	// ErrTimingAnomaly is returned when an elapsed-time span is implausible
	// and recomputation from absolute timestamps could not repair it.
	ErrTimingAnomaly = errors.New("implausible elapsed-time span")

	// ErrConversion is returned by column converters that cannot transform a
	// resolved raw value.
	ErrConversion = errors.New("value conversion failed")

	// ErrInvalidConfig is returned for unusable table configuration.
	ErrInvalidConfig = errors.New("invalid table configuration")
)

// BuildErrorCategory classifies build/rebuild failures.
type BuildErrorCategory int

const (
	// BuildErrorUnknown is an unclassified failure.
	BuildErrorUnknown BuildErrorCategory = iota
	// BuildErrorMissingReference indicates the reference channel is absent or
	// empty. Soft: the table retries on the next build call.
	BuildErrorMissingReference
	// BuildErrorStructural indicates inconsistent ledger state. Fatal for the
	// call; the table keeps its prior rows.
	BuildErrorStructural
	// BuildErrorTimingAnomaly indicates an implausible span that survived
	// recomputation from absolute timestamps.
	BuildErrorTimingAnomaly
	// BuildErrorConfiguration indicates unusable configuration. Fatal and not
	// retried until the caller fixes the config.
	BuildErrorConfiguration
)

// BuildError describes a failed build or rebuild.
type BuildError struct {
	Category BuildErrorCategory
	Message  string
	Cause    error
}

func (e *BuildError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *BuildError) Unwrap() error {
	return e.Cause
}

// Is implements error matching against the package sentinels.
func (e *BuildError) Is(target error) bool {
	switch e.Category {
	case BuildErrorMissingReference:
		return target == ErrMissingReference
	case BuildErrorStructural:
		return target == ErrStructural
	case BuildErrorTimingAnomaly:
		return target == ErrTimingAnomaly
	case BuildErrorConfiguration:
		return target == ErrInvalidConfig
	}
	return false
}

func newBuildError(category BuildErrorCategory, message string, cause error) *BuildError {
	return &BuildError{Category: category, Message: message, Cause: cause}
}
