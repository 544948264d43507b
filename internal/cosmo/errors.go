package cosmo

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedModel indicates an unknown expansion or coupling model.
	ErrUnsupportedModel = errors.New("cosmo: unsupported model")

	// ErrInvalidParameterCombination indicates a model requested without the
	// inputs it needs.
	ErrInvalidParameterCombination = errors.New("cosmo: invalid parameter combination")

	// ErrInvalidParams indicates non-physical cosmological parameters.
	ErrInvalidParams = errors.New("cosmo: invalid cosmological parameters")
)

func unsupported(kind string, v any) error {
	return fmt.Errorf("%w: %s %v", ErrUnsupportedModel, kind, v)
}

func invalidCombination(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameterCombination, fmt.Sprintf(format, args...))
}
