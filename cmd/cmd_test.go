package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ii64/binload/conf"
	"github.com/ii64/binload/lib/obj"
	"github.com/ii64/binload/lib/objtest"
)

func TestRunELF(t *testing.T) {
	cfg := conf.Default()
	cfg.Filename = objtest.WriteFile(t, "a.out", objtest.Text().Bytes())

	var buf bytes.Buffer
	require.NoError(t, Main(cfg, &buf))
	out := buf.String()
	assert.Contains(t, out, "elf64-x86-64")
	assert.Contains(t, out, "Section Name: .text")
	assert.Contains(t, out, "puts")
}

func TestRunUnrecognized(t *testing.T) {
	cfg := conf.Default()
	cfg.Filename = objtest.WriteFile(t, "notes.txt", []byte("hello\n"))

	var buf bytes.Buffer
	err := Main(cfg, &buf)
	assert.True(t, errors.Is(err, obj.ErrUnrecognizedFormat))
	assert.Empty(t, buf.String())
}

func TestRunLogOutputWithoutLog(t *testing.T) {
	cfg := conf.Default()
	cfg.Filename = filepath.Join(t.TempDir(), "a.out")
	cfg.LogOutput = "load"
	assert.Error(t, Main(cfg, &bytes.Buffer{}))
}
