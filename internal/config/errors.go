package config

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Error is a configuration error with the CUE source position, if known.
type Error struct {
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: config: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return "config: " + e.Message
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{Message: err.Error()}
	}

	first := errs[0]
	e := &Error{Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		e.Pos = positions[0]
	}
	return e
}
