//go:build unix

package digest

import (
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForPathRejectsFifo(t *testing.T) {
	t.Parallel()

	fifo := filepath.Join(t.TempDir(), "pipe")
	require.NoError(t, syscall.Mkfifo(fifo, 0o644))

	h := newOsHasher(t, "")
	_, err := h.ForPath(fifo)
	assert.ErrorIs(t, err, ErrNotHashable)
}
