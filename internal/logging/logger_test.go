package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitCreatesDatedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Init(dir, "info"))
	t.Cleanup(func() {
		Close()
		Logger = nil
	})

	Info("cycle complete", "cycle", 1)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Regexp(t, `^watchcrew-\d{4}-\d{2}-\d{2}\.log$`, entries[0].Name())

	b, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(b), "cycle complete")
}

func TestHelpersWithoutInitAreNoops(t *testing.T) {
	Logger = nil
	assert.NotPanics(t, func() {
		Info("x")
		Debug("x")
		Warn("x")
		Error("x")
		WithPrefix("coord").Info("x")
	})
}

func TestInitWriterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "warn")
	t.Cleanup(func() { Logger = nil })

	Info("hidden")
	Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
