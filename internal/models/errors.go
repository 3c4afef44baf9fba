package models

import (
	"fmt"

	"github.com/xfeed/xfeed/internal/apperr"
)

// errf formats a validation error wrapping apperr.ErrValidation, so callers
// at the API boundary can recognise it via errors.Is without string matching.
func errf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, apperr.ErrValidation)...)
}
