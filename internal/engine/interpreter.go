// Package engine defines the int8 inference engine contract consumed by the
// speech recognition pipeline.
//
// An Interpreter binds a Model (operator list plus declared input and output
// tensors) to an explicit OpResolver, a fixed-size Arena and a Backend that
// performs the numerics:
//
//	resolver := engine.NewOpResolver(len(model.Ops))
//	for _, op := range model.Ops {
//		_ = resolver.Add(op)
//	}
//	in := engine.NewInterpreter(model, resolver, engine.NewArena(size), backend)
//	if err := in.AllocateTensors(); err != nil { ... }
//
//	input, _ := in.Input(0)
//	copy(input.Int8(), features)
//	_ = in.Invoke()
//	output, _ := in.Output(0)
//
// Memory for tensors and scratch space is taken from the arena once, in
// AllocateTensors. Invoke does not allocate.
package engine

import (
	"fmt"
	"time"
)

// tensorAlignment matches the 16-byte alignment of the static arena on device.
const tensorAlignment = 16

// Model describes a compiled network.
type Model struct {
	Name   string
	Ops    []OpCode
	Input  TensorSpec
	Output TensorSpec
	// ScratchBytes is the intermediate activation memory the graph needs.
	ScratchBytes int
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithProfiler records Invoke durations into p.
func WithProfiler(p Profiler) Option {
	return func(i *Interpreter) {
		if p != nil {
			i.profiler = p
		}
	}
}

// Interpreter executes a Model. It is not safe for concurrent use; exactly
// one invocation may be in flight.
type Interpreter struct {
	model    *Model
	resolver *OpResolver
	arena    *Arena
	backend  Backend
	profiler Profiler

	input     *Tensor
	output    *Tensor
	scratch   []byte
	allocated bool
}

// NewInterpreter binds model to its resolver, arena and backend.
func NewInterpreter(model *Model, resolver *OpResolver, arena *Arena, backend Backend, opts ...Option) *Interpreter {
	in := &Interpreter{
		model:    model,
		resolver: resolver,
		arena:    arena,
		backend:  backend,
		profiler: NopProfiler{},
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Model returns the bound model.
func (i *Interpreter) Model() *Model { return i.model }

// AllocateTensors checks every model operator is registered and carves the
// input, output and scratch areas from the arena.
func (i *Interpreter) AllocateTensors() error {
	if i.allocated {
		return nil
	}
	for _, op := range i.model.Ops {
		if !i.resolver.Has(op) {
			return fmt.Errorf("engine: model %q needs %s: %w", i.model.Name, op, ErrOpNotRegistered)
		}
	}
	if err := i.model.Input.validate(); err != nil {
		return fmt.Errorf("engine: model %q input: %w", i.model.Name, err)
	}
	if err := i.model.Output.validate(); err != nil {
		return fmt.Errorf("engine: model %q output: %w", i.model.Name, err)
	}

	mark := i.arena.Used()
	in, err := i.arena.Alloc(i.model.Input.Bytes(), tensorAlignment)
	if err != nil {
		return fmt.Errorf("engine: allocate input: %w", err)
	}
	out, err := i.arena.Alloc(i.model.Output.Bytes(), tensorAlignment)
	if err != nil {
		i.arena.used = mark
		return fmt.Errorf("engine: allocate output: %w", err)
	}
	scratch, err := i.arena.Alloc(i.model.ScratchBytes, tensorAlignment)
	if err != nil {
		i.arena.used = mark
		return fmt.Errorf("engine: allocate scratch: %w", err)
	}

	i.input = &Tensor{Spec: i.model.Input, data: in}
	i.output = &Tensor{Spec: i.model.Output, data: out}
	i.scratch = scratch
	i.allocated = true
	return nil
}

// Input returns input tensor idx. Only index 0 exists.
func (i *Interpreter) Input(idx int) (*Tensor, error) {
	if !i.allocated {
		return nil, ErrNotAllocated
	}
	if idx != 0 {
		return nil, fmt.Errorf("engine: input %d: %w", idx, ErrNoTensor)
	}
	return i.input, nil
}

// Output returns output tensor idx. Only index 0 exists.
func (i *Interpreter) Output(idx int) (*Tensor, error) {
	if !i.allocated {
		return nil, ErrNotAllocated
	}
	if idx != 0 {
		return nil, fmt.Errorf("engine: output %d: %w", idx, ErrNoTensor)
	}
	return i.output, nil
}

// Invoke runs the backend over the current input tensor.
func (i *Interpreter) Invoke() error {
	if !i.allocated {
		return ErrNotAllocated
	}
	start := time.Now()
	err := i.backend.Invoke(i.input, i.output, i.scratch)
	i.profiler.Record("invoke", time.Since(start))
	if err != nil {
		return fmt.Errorf("engine: invoke %q: %w", i.model.Name, err)
	}
	return nil
}

// ArenaUsedBytes returns the arena bytes in use, which is the minimum arena
// size for this model.
func (i *Interpreter) ArenaUsedBytes() int { return i.arena.Used() }
