package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestNewRecorderAndClose(t *testing.T) {
	r, err := NewRecorder(16000, 1)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	if r.sampleRate != 16000 {
		t.Errorf("sampleRate = %d, want 16000", r.sampleRate)
	}
	if r.channels != 1 {
		t.Errorf("channels = %d, want 1", r.channels)
	}
}

func TestRecorderNotRecordingByDefault(t *testing.T) {
	r, err := NewRecorder(16000, 1)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	defer r.Close()

	if r.IsRecording() {
		t.Error("IsRecording() should be false after creation")
	}
}

func TestStopWithoutStart(t *testing.T) {
	r, err := NewRecorder(16000, 1)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	defer r.Close()

	samples := r.Stop()
	if samples != nil {
		t.Errorf("Stop() without Start() should return nil, got %d samples", len(samples))
	}
}

func TestBytesToFloat32(t *testing.T) {
	// Test with known float32 value: 1.0 = 0x3F800000
	data := []byte{0x00, 0x00, 0x80, 0x3F} // 1.0 in little-endian float32
	samples := bytesToFloat32(data, 1)

	if len(samples) != 1 {
		t.Fatalf("bytesToFloat32() returned %d samples, want 1", len(samples))
	}
	if samples[0] != 1.0 {
		t.Errorf("bytesToFloat32() = %f, want 1.0", samples[0])
	}
}

func TestBytesToFloat32Multiple(t *testing.T) {
	// Two samples: 0.0 and -1.0
	// 0.0 = 0x00000000, -1.0 = 0xBF800000
	data := []byte{
		0x00, 0x00, 0x00, 0x00, // 0.0
		0x00, 0x00, 0x80, 0xBF, // -1.0
	}
	samples := bytesToFloat32(data, 2)

	if len(samples) != 2 {
		t.Fatalf("bytesToFloat32() returned %d samples, want 2", len(samples))
	}
	if samples[0] != 0.0 {
		t.Errorf("samples[0] = %f, want 0.0", samples[0])
	}
	if samples[1] != -1.0 {
		t.Errorf("samples[1] = %f, want -1.0", samples[1])
	}
}

func float32Bytes(vals ...float32) []byte {
	data := make([]byte, 0, 4*len(vals))
	for _, v := range vals {
		data = binary.LittleEndian.AppendUint32(data, math.Float32bits(v))
	}
	return data
}

func TestOnDataBuffersWithoutStream(t *testing.T) {
	r := &Recorder{channels: 1}
	r.onData(nil, float32Bytes(0.5, -0.5), 2)
	r.onData(nil, float32Bytes(0.25), 1)

	if len(r.buf) != 3 || r.buf[2] != 0.25 {
		t.Errorf("buf = %v, want [0.5 -0.5 0.25]", r.buf)
	}
}

func TestOnDataStreamsMonoChunks(t *testing.T) {
	ch := make(chan []float32, 1)
	r := &Recorder{channels: 2, chunks: ch}

	// Two stereo frames.
	r.onData(nil, float32Bytes(1, 0, -1, -0.5), 2)

	select {
	case chunk := <-ch:
		if len(chunk) != 2 || chunk[0] != 0.5 || chunk[1] != -0.75 {
			t.Errorf("chunk = %v, want [0.5 -0.75]", chunk)
		}
	default:
		t.Fatal("no chunk delivered")
	}
	if len(r.buf) != 0 {
		t.Errorf("streaming recorder buffered %d samples", len(r.buf))
	}
}

func TestOnDataDropsWhenChannelFull(t *testing.T) {
	ch := make(chan []float32, 1)
	r := &Recorder{channels: 1, chunks: ch}

	r.onData(nil, float32Bytes(0.1), 1)
	r.onData(nil, float32Bytes(0.2), 1)
	r.onData(nil, float32Bytes(0.3), 1)

	if got := r.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
	if chunk := <-ch; chunk[0] != 0.1 {
		t.Errorf("first chunk = %v, want [0.1]", chunk)
	}
}

func TestStopClosesStream(t *testing.T) {
	ch := make(chan []float32, 1)
	r := &Recorder{channels: 1, chunks: ch, recording: true}

	r.Stop()

	if _, ok := <-ch; ok {
		t.Error("chunk channel still open after Stop()")
	}
	if r.IsRecording() {
		t.Error("IsRecording() should be false after Stop()")
	}
}
