package load

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrOutOfMemory is returned when a buffer for section contents or a
// symbol table would exceed Options.MaxAlloc.
var ErrOutOfMemory = errors.New("out of memory")

// SectionReadError reports a kept section whose contents could not be
// read. It aborts the whole load.
type SectionReadError struct {
	Name string
	Err  error
}

func (e *SectionReadError) Error() string {
	return fmt.Sprintf("load: failed to read section '%s': %v", e.Name, e.Err)
}

func (e *SectionReadError) Unwrap() error {
	return e.Err
}
