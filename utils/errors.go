package utils

import (
	"github.com/pkg/errors"
)

// NewOutOfRangeError is used when a configured value falls outside of its allowed interval.
func NewOutOfRangeError(name string, value, lo, hi float64) error {
	return errors.Errorf("%s must be in [%v, %v], got %v", name, lo, hi, value)
}

// NewNonPositiveError is used when a configured value that must be strictly positive is not.
func NewNonPositiveError(name string, value interface{}) error {
	return errors.Errorf("%s must be positive, got %v", name, value)
}
