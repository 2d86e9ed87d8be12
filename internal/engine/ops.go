package engine

import (
	"fmt"
	"slices"
)

// OpCode identifies a numeric operator an engine model depends on.
type OpCode int

const (
	OpReshape OpCode = iota + 1
	OpFullyConnected
	OpDepthwiseConv2D
	OpConv2D
	OpAveragePool2D
	OpSoftmax
	OpLeakyRelu
)

func (o OpCode) String() string {
	switch o {
	case OpReshape:
		return "RESHAPE"
	case OpFullyConnected:
		return "FULLY_CONNECTED"
	case OpDepthwiseConv2D:
		return "DEPTHWISE_CONV_2D"
	case OpConv2D:
		return "CONV_2D"
	case OpAveragePool2D:
		return "AVERAGE_POOL_2D"
	case OpSoftmax:
		return "SOFTMAX"
	case OpLeakyRelu:
		return "LEAKY_RELU"
	default:
		return fmt.Sprintf("OpCode(%d)", int(o))
	}
}

// OpResolver is a fixed-capacity set of registered operators. Create one per
// interpreter and pass it explicitly; there is no process-wide resolver.
type OpResolver struct {
	capacity int
	ops      []OpCode
}

// NewOpResolver returns a resolver that accepts at most capacity operators.
func NewOpResolver(capacity int) *OpResolver {
	if capacity < 0 {
		capacity = 0
	}
	return &OpResolver{
		capacity: capacity,
		ops:      make([]OpCode, 0, capacity),
	}
}

// Add registers op. It fails when op is already registered or the resolver
// is full.
func (r *OpResolver) Add(op OpCode) error {
	if r.Has(op) {
		return fmt.Errorf("engine: add %s: %w", op, ErrDuplicateOp)
	}
	if len(r.ops) >= r.capacity {
		return fmt.Errorf("engine: add %s (capacity %d): %w", op, r.capacity, ErrResolverFull)
	}
	r.ops = append(r.ops, op)
	return nil
}

// Has reports whether op is registered.
func (r *OpResolver) Has(op OpCode) bool {
	return slices.Contains(r.ops, op)
}

// Ops returns a copy of the registered operators in registration order.
func (r *OpResolver) Ops() []OpCode {
	return slices.Clone(r.ops)
}

// Len returns the number of registered operators.
func (r *OpResolver) Len() int { return len(r.ops) }

// Capacity returns the maximum number of operators.
func (r *OpResolver) Capacity() int { return r.capacity }
