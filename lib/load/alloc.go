package load

import (
	"github.com/pkg/errors"
)

// DefaultMaxAlloc bounds a single section or symbol table buffer.
const DefaultMaxAlloc = 1 << 30

// Options tune a load.
type Options struct {
	// MaxAlloc is the largest buffer the loader allocates for one section
	// or symbol table. Zero means DefaultMaxAlloc.
	MaxAlloc uint64
}

func DefaultOptions() Options {
	return Options{MaxAlloc: DefaultMaxAlloc}
}

func (opts Options) maxAlloc() uint64 {
	if opts.MaxAlloc == 0 {
		return DefaultMaxAlloc
	}
	return opts.MaxAlloc
}

// reserve checks that n bytes may be allocated for what.
func (opts Options) reserve(n uint64, what string) error {
	if limit := opts.maxAlloc(); n > limit {
		return errors.Wrapf(ErrOutOfMemory, "%s: %d bytes exceeds limit of %d", what, n, limit)
	}
	return nil
}

// alloc returns a zeroed, non-nil buffer of exactly n bytes.
func (opts Options) alloc(n uint64, what string) ([]byte, error) {
	if err := opts.reserve(n, what); err != nil {
		return nil, err
	}
	return make([]byte, n), nil
}
