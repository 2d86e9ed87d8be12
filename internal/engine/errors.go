package engine

import "errors"

// Error definitions for the engine package.
var (
	ErrDuplicateOp     = errors.New("operator already registered")
	ErrResolverFull    = errors.New("operator resolver is full")
	ErrOpNotRegistered = errors.New("operator not registered")
	ErrArenaExhausted  = errors.New("tensor arena exhausted")
	ErrNotAllocated    = errors.New("tensors not allocated")
	ErrNoTensor        = errors.New("tensor index out of range")
	ErrBackend         = errors.New("backend invocation failed")
)
