// Package identity derives stable entity IDs from filesystem paths.
//
// An ID is the RFC 4122 version 5 UUID of the path in the URL namespace,
// so the same resolved path always yields the same ID across runs and
// machines, and a moved or renamed folder yields a new one.
package identity

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ForPath returns the ID for an absolute, already resolved path.
func ForPath(absPath string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(absPath)).String()
}

// Resolve returns the absolute form of path with symlinks evaluated. When
// the target does not exist the cleaned absolute path is returned instead.
func Resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return abs, nil
		}
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	return resolved, nil
}

// Valid reports whether s is a well-formed UUID string.
func Valid(s string) bool {
	return uuid.Validate(s) == nil
}
