package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
)

// Backend performs the numeric graph execution for a Model. The input and
// output tensors are already allocated; scratch is the model's intermediate
// activation area.
type Backend interface {
	Invoke(in, out *Tensor, scratch []byte) error
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(in, out *Tensor, scratch []byte) error

func (f BackendFunc) Invoke(in, out *Tensor, scratch []byte) error {
	return f(in, out, scratch)
}

// ExecBackendConfig configures an ExecBackend.
type ExecBackendConfig struct {
	// Command is the runner command line, e.g. "tflm-runner --threads 1".
	Command string
	// ModelPath is appended as "--model <path>" when set.
	ModelPath string
	// Timeout bounds a single invocation. Zero means no timeout.
	Timeout time.Duration
}

// ExecBackend delegates inference to an external runner process. Each
// invocation writes the raw input tensor bytes to the runner's stdin and
// expects exactly the output tensor's byte size on stdout.
type ExecBackend struct {
	args    []string
	timeout time.Duration

	mu     sync.Mutex
	stdout bytes.Buffer
	stderr bytes.Buffer
}

// NewExecBackend parses cfg.Command with shell quoting rules.
func NewExecBackend(cfg ExecBackendConfig) (*ExecBackend, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("engine: parse runner command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("engine: runner command is empty")
	}
	if cfg.ModelPath != "" {
		args = append(args, "--model", cfg.ModelPath)
	}
	return &ExecBackend{args: args, timeout: cfg.Timeout}, nil
}

// Args returns the resolved runner argv.
func (b *ExecBackend) Args() []string {
	return append([]string(nil), b.args...)
}

// Invoke runs the runner once.
func (b *ExecBackend) Invoke(in, out *Tensor, _ []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ctx := context.Background()
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	b.stdout.Reset()
	b.stderr.Reset()

	cmd := exec.CommandContext(ctx, b.args[0], b.args[1:]...)
	cmd.Stdin = bytes.NewReader(in.Bytes())
	cmd.Stdout = &b.stdout
	cmd.Stderr = &b.stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("runner %s failed: %w: %s: %w", b.args[0], err, b.stderr.String(), ErrBackend)
	}

	dst := out.Bytes()
	if b.stdout.Len() != len(dst) {
		return fmt.Errorf("runner %s wrote %d bytes, want %d: %w", b.args[0], b.stdout.Len(), len(dst), ErrBackend)
	}
	if _, err := io.ReadFull(&b.stdout, dst); err != nil {
		return fmt.Errorf("read runner output: %w", err)
	}
	return nil
}
