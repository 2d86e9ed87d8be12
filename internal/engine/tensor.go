package engine

import (
	"fmt"
	"unsafe"

	"github.com/chaz8081/gostt-edge/internal/quant"
)

// DType is a tensor element type.
type DType int

const (
	DTypeInt8 DType = iota + 1
	DTypeFloat32
)

func (d DType) String() string {
	switch d {
	case DTypeInt8:
		return "int8"
	case DTypeFloat32:
		return "float32"
	default:
		return fmt.Sprintf("DType(%d)", int(d))
	}
}

// Size returns the element size in bytes.
func (d DType) Size() int {
	switch d {
	case DTypeInt8:
		return 1
	case DTypeFloat32:
		return 4
	default:
		return 0
	}
}

// TensorSpec declares the shape, type and quantization of a model tensor.
type TensorSpec struct {
	Name  string
	Shape []int
	DType DType
	Quant quant.Params
}

// NumElements returns the product of the shape dimensions.
func (s TensorSpec) NumElements() int {
	if len(s.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range s.Shape {
		n *= d
	}
	return n
}

// Bytes returns the tensor size in bytes.
func (s TensorSpec) Bytes() int {
	return s.NumElements() * s.DType.Size()
}

func (s TensorSpec) validate() error {
	if s.DType.Size() == 0 {
		return fmt.Errorf("tensor %q: unsupported dtype %s", s.Name, s.DType)
	}
	for _, d := range s.Shape {
		if d <= 0 {
			return fmt.Errorf("tensor %q: invalid shape %v", s.Name, s.Shape)
		}
	}
	if len(s.Shape) == 0 {
		return fmt.Errorf("tensor %q: empty shape", s.Name)
	}
	return nil
}

// Tensor is a model tensor whose data lives in an Arena.
type Tensor struct {
	Spec TensorSpec
	data []byte
}

// Bytes returns the raw tensor memory.
func (t *Tensor) Bytes() []byte { return t.data }

// Int8 returns the tensor data as int8. It returns nil for other dtypes.
func (t *Tensor) Int8() []int8 {
	if t.Spec.DType != DTypeInt8 || len(t.data) == 0 {
		return nil
	}
	return unsafe.Slice((*int8)(unsafe.Pointer(&t.data[0])), len(t.data))
}

// Float32 returns the tensor data as float32. It returns nil for other dtypes.
func (t *Tensor) Float32() []float32 {
	if t.Spec.DType != DTypeFloat32 || len(t.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&t.data[0])), len(t.data)/4)
}

// Quant returns the declared quantization params.
func (t *Tensor) Quant() quant.Params { return t.Spec.Quant }
