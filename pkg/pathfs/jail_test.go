package pathfs

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/perr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveJailed_AllowsSafeNestedPath(t *testing.T) {
	jail := t.TempDir()
	got, err := ResolveJailed(jail, "artifacts", "sub/inner/./safe.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(jail, "artifacts", "sub", "inner", "safe.json"), got)
}

func TestResolveJailed_RejectsTraversal(t *testing.T) {
	jail := t.TempDir()
	_, err := ResolveJailed(jail, "artifacts", "../../etc/passwd")
	require.Error(t, err)
	assert.True(t, errors.Is(err, perr.ErrForbidden))
}

func TestResolveJailed_RejectsAbsolutePath(t *testing.T) {
	jail := t.TempDir()
	_, err := ResolveJailed(jail, "artifacts", "/etc/passwd")
	require.Error(t, err)
	assert.True(t, errors.Is(err, perr.ErrForbidden))
}

func TestResolveJailed_RejectsWindowsDriveLetter(t *testing.T) {
	jail := t.TempDir()
	_, err := ResolveJailed(jail, "artifacts", `C:\evil.txt`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, perr.ErrForbidden))
}

func TestResolveJailed_RejectsEmptyFilename(t *testing.T) {
	jail := t.TempDir()
	_, err := ResolveJailed(jail, "artifacts", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, perr.ErrForbidden))
}
