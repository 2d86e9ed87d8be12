// Package quant maps floating-point values into the signed 8-bit fixed-point
// domain used by int8 inference engines.
//
// A quantized value q represents the real value (q - ZeroPoint) * Scale.
// Quantization saturates at the int8 bounds; it never wraps.
package quant

import (
	"fmt"
	"math"
)

// Params holds the affine quantization parameters of a tensor.
type Params struct {
	Scale     float32 `yaml:"scale"`
	ZeroPoint int32   `yaml:"zero_point"`
}

// Validate reports whether the params can be used to quantize values.
func (p Params) Validate() error {
	s := float64(p.Scale)
	if math.IsNaN(s) || math.IsInf(s, 0) || s <= 0 {
		return fmt.Errorf("quant: scale must be a positive finite number, got %v", p.Scale)
	}
	if p.ZeroPoint < math.MinInt8 || p.ZeroPoint > math.MaxInt8 {
		return fmt.Errorf("quant: zero point %d outside int8 range", p.ZeroPoint)
	}
	return nil
}

// Quantize maps value to round(value/scale) + zeroPoint, saturated into
// [-128, 127]. NaN maps to the zero point.
func Quantize(value, scale float32, zeroPoint int32) int8 {
	v := float64(value) / float64(scale)
	if math.IsNaN(v) {
		return saturate(float64(zeroPoint))
	}
	return saturate(math.Round(v) + float64(zeroPoint))
}

func saturate(v float64) int8 {
	if v <= math.MinInt8 {
		return math.MinInt8
	}
	if v >= math.MaxInt8 {
		return math.MaxInt8
	}
	return int8(v)
}

// Quantize maps a single value using p.
func (p Params) Quantize(value float32) int8 {
	return Quantize(value, p.Scale, p.ZeroPoint)
}

// Dequantize maps q back to its real value.
func (p Params) Dequantize(q int8) float32 {
	return float32(int32(q)-p.ZeroPoint) * p.Scale
}

// QuantizeInto quantizes src into dst. Both slices must have the same length.
func (p Params) QuantizeInto(dst []int8, src []float32) error {
	if len(dst) != len(src) {
		return fmt.Errorf("quant: length mismatch: dst %d, src %d", len(dst), len(src))
	}
	for i, v := range src {
		dst[i] = Quantize(v, p.Scale, p.ZeroPoint)
	}
	return nil
}
