package obj

import (
	"fmt"

	"github.com/pkg/errors"
)

// Failure classes reported by Open. Match them with errors.Is.
var (
	ErrNotFound           = errors.New("file not found")
	ErrIO                 = errors.New("i/o error")
	ErrUnrecognizedFormat = errors.New("unrecognized object file format")
	ErrUnsupportedArch    = errors.New("unsupported architecture")
)

// Error describes a failed detection step.
type Error struct {
	Op   string
	Path string
	// Kind is one of the Err* failure classes.
	Kind error
	// Detail names the offending value, e.g. the rejected machine.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("obj: %s %s: %s", e.Op, e.Path, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += " (" + e.Err.Error() + ")"
	}
	return msg
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, path string, kind error, detail string, cause error) error {
	return errors.WithStack(&Error{
		Op:     op,
		Path:   path,
		Kind:   kind,
		Detail: detail,
		Err:    cause,
	})
}
