package engine

import "fmt"

// DefaultArenaSize is the arena size used when none is configured. It is
// sized for the Wav2Letter int8 model with headroom.
const DefaultArenaSize = 4000 * 1024

// Arena is a fixed-size bump allocator for tensor memory. It never grows;
// running out of space is a configuration error.
type Arena struct {
	buf  []byte
	used int
}

// NewArena allocates an arena of size bytes.
func NewArena(size int) *Arena {
	if size < 0 {
		size = 0
	}
	return &Arena{buf: make([]byte, size)}
}

// Alloc carves n bytes aligned to align (a power of two, or 0/1 for none).
func (a *Arena) Alloc(n, align int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("engine: alloc %d bytes: negative size", n)
	}
	start := a.used
	if align > 1 {
		if align&(align-1) != 0 {
			return nil, fmt.Errorf("engine: alloc alignment %d is not a power of two", align)
		}
		start = (start + align - 1) &^ (align - 1)
	}
	end := start + n
	if end > len(a.buf) {
		return nil, fmt.Errorf("engine: alloc %d bytes (used %d of %d): %w", n, a.used, len(a.buf), ErrArenaExhausted)
	}
	a.used = end
	return a.buf[start:end:end], nil
}

// Used returns the number of bytes handed out, including alignment padding.
func (a *Arena) Used() int { return a.used }

// Size returns the arena capacity in bytes.
func (a *Arena) Size() int { return len(a.buf) }

// Reset releases every allocation. Slices returned earlier alias memory that
// will be handed out again.
func (a *Arena) Reset() {
	clear(a.buf[:a.used])
	a.used = 0
}
