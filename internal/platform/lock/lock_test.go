package lock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_exclusive(t *testing.T) {
	playlist := filepath.Join(t.TempDir(), "live", "playlist.m3u8")

	first, err := Acquire(playlist)
	require.NoError(t, err)
	assert.Equal(t, playlist+".lock", first.Path())

	_, err = Acquire(playlist)
	assert.ErrorIs(t, err, ErrHeld)

	require.NoError(t, first.Release())
	_, err = os.Stat(first.Path())
	assert.ErrorIs(t, err, os.ErrNotExist)

	second, err := Acquire(playlist)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}
