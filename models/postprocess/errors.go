package postprocess

import (
	"fmt"

	"github.com/pkg/errors"
)

// ConfigurationError reports a non-positive geometry or dimension parameter.
// It is returned before any output is produced.
type ConfigurationError struct {
	Param string
	Value any
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s must be positive, got %v", e.Param, e.Value)
}

// ShapeMismatchError reports an input whose length disagrees with the layout
// implied by its parameters. When MultipleOf is set the length must be a
// multiple of it and Expected is unused.
type ShapeMismatchError struct {
	What       string
	Expected   int
	MultipleOf int
	Actual     int
}

func (e *ShapeMismatchError) Error() string {
	if e.MultipleOf > 0 {
		return fmt.Sprintf("shape mismatch: %s has length %d, expected a multiple of %d", e.What, e.Actual, e.MultipleOf)
	}
	return fmt.Sprintf("shape mismatch: %s has length %d, expected %d", e.What, e.Actual, e.Expected)
}

// IsConfigurationError reports whether err wraps a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsShapeMismatch reports whether err wraps a *ShapeMismatchError.
func IsShapeMismatch(err error) bool {
	var target *ShapeMismatchError
	return errors.As(err, &target)
}

// RequirePositive returns a *ConfigurationError naming the first parameter
// that is not strictly positive.
//
// Arguments are given as name/value pairs in the order they are checked.
func RequirePositive(params ...Param) error {
	for _, p := range params {
		if p.Value <= 0 {
			return &ConfigurationError{Param: p.Name, Value: p.Value}
		}
	}
	return nil
}

// Param is a named integer parameter checked by RequirePositive.
type Param struct {
	Name  string
	Value int
}
