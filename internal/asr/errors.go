package asr

import (
	"errors"
	"fmt"
)

// Error definitions for the asr package.
var (
	ErrUnknownModel         = errors.New("unknown model")
	ErrOperatorRegistration = errors.New("operator registration failed")
	ErrTensorAllocation     = errors.New("tensor allocation failed")
	ErrInputSizeMismatch    = errors.New("input size mismatch")
	ErrEngineInit           = errors.New("engine initialisation failed")
	ErrInvalidGeometry      = errors.New("invalid model geometry")
	ErrBufferSizeMismatch   = errors.New("feature buffer size mismatch")
	ErrDuplicateModel       = errors.New("model already registered")
)

// InputSizeMismatchError reports an audio window of the wrong length. It
// matches ErrInputSizeMismatch with errors.Is.
type InputSizeMismatchError struct {
	Got  int
	Want int
}

func (e *InputSizeMismatchError) Error() string {
	return fmt.Sprintf("asr: window has %d samples, want %d: %v", e.Got, e.Want, ErrInputSizeMismatch)
}

func (e *InputSizeMismatchError) Is(target error) bool {
	return target == ErrInputSizeMismatch
}
