package engine

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/chaz8081/gostt-edge/internal/quant"
)

func testModel() *Model {
	return &Model{
		Name: "tiny",
		Ops:  []OpCode{OpReshape, OpSoftmax},
		Input: TensorSpec{
			Name:  "input",
			Shape: []int{1, 4, 3},
			DType: DTypeInt8,
			Quant: quant.Params{Scale: 0.5, ZeroPoint: 0},
		},
		Output: TensorSpec{
			Name:  "output",
			Shape: []int{1, 2, 3},
			DType: DTypeInt8,
			Quant: quant.Params{Scale: 1.0 / 256, ZeroPoint: -128},
		},
		ScratchBytes: 64,
	}
}

func fullResolver(t *testing.T, m *Model) *OpResolver {
	t.Helper()
	r := NewOpResolver(len(m.Ops))
	for _, op := range m.Ops {
		require.NoError(t, r.Add(op))
	}
	return r
}

func TestOpResolver(t *testing.T) {
	r := NewOpResolver(2)
	require.NoError(t, r.Add(OpConv2D))
	require.NoError(t, r.Add(OpSoftmax))

	err := r.Add(OpConv2D)
	assert.ErrorIs(t, err, ErrDuplicateOp)

	err = r.Add(OpLeakyRelu)
	assert.ErrorIs(t, err, ErrResolverFull)

	assert.True(t, r.Has(OpConv2D))
	assert.False(t, r.Has(OpLeakyRelu))
	assert.Equal(t, []OpCode{OpConv2D, OpSoftmax}, r.Ops())
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 2, r.Capacity())
}

func TestOpCodeString(t *testing.T) {
	assert.Equal(t, "DEPTHWISE_CONV_2D", OpDepthwiseConv2D.String())
	assert.Equal(t, "OpCode(99)", OpCode(99).String())
}

func TestArenaAlloc(t *testing.T) {
	a := NewArena(64)

	b1, err := a.Alloc(3, 0)
	require.NoError(t, err)
	assert.Len(t, b1, 3)
	assert.Equal(t, 3, a.Used())

	b2, err := a.Alloc(8, 16)
	require.NoError(t, err)
	assert.Len(t, b2, 8)
	assert.Equal(t, 24, a.Used(), "second block starts at the next 16-byte boundary")

	_, err = a.Alloc(41, 1)
	assert.ErrorIs(t, err, ErrArenaExhausted)
	assert.Equal(t, 24, a.Used(), "failed alloc leaves usage unchanged")

	_, err = a.Alloc(4, 3)
	assert.Error(t, err)
	_, err = a.Alloc(-1, 0)
	assert.Error(t, err)

	b1[0] = 7
	a.Reset()
	assert.Zero(t, a.Used())
	assert.Equal(t, 64, a.Size())
	b3, err := a.Alloc(1, 0)
	require.NoError(t, err)
	assert.Zero(t, b3[0], "reset clears handed-out memory")
}

func TestInterpreterAllocateAndInvoke(t *testing.T) {
	m := testModel()
	var gotScratch int
	backend := BackendFunc(func(in, out *Tensor, scratch []byte) error {
		gotScratch = len(scratch)
		src := in.Int8()
		dst := out.Int8()
		for i := range dst {
			dst[i] = src[i] + 1
		}
		return nil
	})

	in := NewInterpreter(m, fullResolver(t, m), NewArena(1024), backend)

	_, err := in.Input(0)
	assert.ErrorIs(t, err, ErrNotAllocated)
	assert.ErrorIs(t, in.Invoke(), ErrNotAllocated)

	require.NoError(t, in.AllocateTensors())
	require.NoError(t, in.AllocateTensors(), "second allocation is a no-op")

	input, err := in.Input(0)
	require.NoError(t, err)
	assert.Len(t, input.Int8(), 12)
	assert.Nil(t, input.Float32())
	assert.Equal(t, m.Input.Quant, input.Quant())

	for i := range input.Int8() {
		input.Int8()[i] = int8(i)
	}
	require.NoError(t, in.Invoke())

	output, err := in.Output(0)
	require.NoError(t, err)
	assert.Equal(t, []int8{1, 2, 3, 4, 5, 6}, output.Int8())
	assert.Equal(t, 64, gotScratch)

	_, err = in.Output(1)
	assert.ErrorIs(t, err, ErrNoTensor)

	// input [0,12), output [16,22), scratch [32,96).
	assert.Equal(t, 96, in.ArenaUsedBytes())
}

func TestInterpreterMissingOp(t *testing.T) {
	m := testModel()
	r := NewOpResolver(1)
	require.NoError(t, r.Add(OpReshape))

	in := NewInterpreter(m, r, NewArena(1024), BackendFunc(func(*Tensor, *Tensor, []byte) error { return nil }))
	err := in.AllocateTensors()
	assert.ErrorIs(t, err, ErrOpNotRegistered)
	assert.Contains(t, err.Error(), "SOFTMAX")
}

func TestInterpreterArenaTooSmall(t *testing.T) {
	m := testModel()
	arena := NewArena(40)
	in := NewInterpreter(m, fullResolver(t, m), arena, BackendFunc(func(*Tensor, *Tensor, []byte) error { return nil }))

	err := in.AllocateTensors()
	assert.ErrorIs(t, err, ErrArenaExhausted)
	assert.Zero(t, arena.Used(), "partial allocations are rolled back")
}

func TestInterpreterInvalidSpec(t *testing.T) {
	m := testModel()
	m.Output.Shape = []int{1, 0, 3}
	in := NewInterpreter(m, fullResolver(t, m), NewArena(1024), BackendFunc(func(*Tensor, *Tensor, []byte) error { return nil }))
	assert.Error(t, in.AllocateTensors())
}

func TestInterpreterBackendError(t *testing.T) {
	m := testModel()
	boom := errors.New("boom")
	in := NewInterpreter(m, fullResolver(t, m), NewArena(1024), BackendFunc(func(*Tensor, *Tensor, []byte) error { return boom }))
	require.NoError(t, in.AllocateTensors())
	assert.ErrorIs(t, in.Invoke(), boom)
}

type recordingProfiler struct {
	events []string
}

func (p *recordingProfiler) Record(event string, _ time.Duration) {
	p.events = append(p.events, event)
}

func TestInterpreterProfiler(t *testing.T) {
	m := testModel()
	prof := &recordingProfiler{}
	in := NewInterpreter(m, fullResolver(t, m), NewArena(1024),
		BackendFunc(func(*Tensor, *Tensor, []byte) error { return nil }),
		WithProfiler(prof))
	require.NoError(t, in.AllocateTensors())
	require.NoError(t, in.Invoke())
	require.NoError(t, in.Invoke())
	assert.Equal(t, []string{"invoke", "invoke"}, prof.events)
}

func TestMeterProfiler(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	p, err := NewMeterProfiler(provider.Meter("test"), "tiny")
	require.NoError(t, err)
	p.Record("invoke", 3*time.Millisecond)
	p.Record("features", time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	got := rm.ScopeMetrics[0].Metrics[0]
	assert.Equal(t, "asr.event.duration", got.Name)
	hist, ok := got.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, 2, "one series per event")
}

func TestNewExecBackend(t *testing.T) {
	b, err := NewExecBackend(ExecBackendConfig{Command: `runner --threads 1 --name "a b"`, ModelPath: "/m/w2l.tflite"})
	require.NoError(t, err)
	assert.Equal(t, []string{"runner", "--threads", "1", "--name", "a b", "--model", "/m/w2l.tflite"}, b.Args())

	_, err = NewExecBackend(ExecBackendConfig{Command: "   "})
	assert.Error(t, err)
	_, err = NewExecBackend(ExecBackendConfig{Command: `runner "unterminated`})
	assert.Error(t, err)
}

func TestExecBackendInvoke(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	m := testModel()
	m.Output = m.Input
	m.Output.Name = "output"

	b, err := NewExecBackend(ExecBackendConfig{Command: "cat", Timeout: 5 * time.Second})
	require.NoError(t, err)

	in := NewInterpreter(m, fullResolver(t, m), NewArena(1024), b)
	require.NoError(t, in.AllocateTensors())

	input, _ := in.Input(0)
	for i := range input.Int8() {
		input.Int8()[i] = int8(-i)
	}
	require.NoError(t, in.Invoke())

	output, _ := in.Output(0)
	assert.Equal(t, input.Int8(), output.Int8())
}

func TestExecBackendShortOutput(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	m := testModel()
	b, err := NewExecBackend(ExecBackendConfig{Command: "true"})
	require.NoError(t, err)

	in := NewInterpreter(m, fullResolver(t, m), NewArena(1024), b)
	require.NoError(t, in.AllocateTensors())
	assert.ErrorIs(t, in.Invoke(), ErrBackend)
}
