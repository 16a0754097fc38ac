package pathfs

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/codeready-toolchain/pipeline-orchestrator/pkg/perr"
)

// ResolveJailed resolves a user-supplied relative filename against
// jailRoot/kind (jailRoot is typically Resolver.Jail(jobDir); kind is joined
// here) and guarantees the result stays within that directory.
//
// Rejections return perr.ErrForbidden, never perr.ErrNotFound, so a caller
// probing for path-traversal bugs cannot distinguish "escaped the jail" from
// "file doesn't exist" (spec.md §4.5: "Violations produce a forbidden error,
// not not_found, to avoid information leak").
func ResolveJailed(jailRoot, kind, filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("%w: empty filename", perr.ErrForbidden)
	}
	if filepath.IsAbs(filename) {
		return "", fmt.Errorf("%w: absolute paths not allowed", perr.ErrForbidden)
	}
	if hasWindowsDriveLetter(filename) {
		return "", fmt.Errorf("%w: absolute paths not allowed", perr.ErrForbidden)
	}
	if strings.ContainsRune(filename, 0) {
		return "", fmt.Errorf("%w: invalid filename", perr.ErrForbidden)
	}

	cleaned := filepath.Clean(filename)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path traversal", perr.ErrForbidden)
	}

	kindRoot := filepath.Join(jailRoot, kind)
	candidate := filepath.Join(kindRoot, cleaned)

	cleanRoot := filepath.Clean(kindRoot) + string(filepath.Separator)
	cleanCandidate := filepath.Clean(candidate)
	if !strings.HasPrefix(cleanCandidate+string(filepath.Separator), cleanRoot) {
		return "", fmt.Errorf("%w: path traversal", perr.ErrForbidden)
	}

	return cleanCandidate, nil
}

// hasWindowsDriveLetter reports whether name begins with a drive letter
// (e.g. "C:\") even when running on a non-Windows platform — filepath.IsAbs
// only recognizes the host platform's own convention, so this is checked
// separately per spec.md §4.5.
func hasWindowsDriveLetter(name string) bool {
	if len(name) < 2 {
		return false
	}
	c := name[0]
	isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	return isLetter && name[1] == ':'
}
