package pathfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWrite_CreatesFileAndParent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "status.json")

	require.NoError(t, AtomicWrite(target, []byte(`{"ok":true}`), 0o644))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp.")
	}
}

func TestAtomicWrite_OverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "status.json")

	require.NoError(t, AtomicWrite(target, []byte("v1"), 0o644))
	require.NoError(t, AtomicWrite(target, []byte("v2"), 0o644))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}
