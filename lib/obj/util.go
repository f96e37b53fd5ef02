package obj

import (
	"io"
)

// magicSize covers the ELF magic and the COFF machine field.
const magicSize = 4

func getMagic(r io.ReaderAt) ([]byte, error) {
	ret := make([]byte, magicSize)
	n, err := r.ReadAt(ret, 0)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return ret[:n], nil
}
