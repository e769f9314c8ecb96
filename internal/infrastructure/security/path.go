// Package security provides path validation for files written during a sync.
package security

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// PathValidator confines paths to a set of allowed roots.
type PathValidator struct {
	allowedRoots []string
}

// NewPathValidator creates a validator that accepts paths under the given
// roots.
func NewPathValidator(roots ...string) *PathValidator {
	v := &PathValidator{}
	for _, r := range roots {
		v.AddAllowedRoot(r)
	}
	return v
}

// AddAllowedRoot adds an allowed root directory.
func (v *PathValidator) AddAllowedRoot(root string) {
	root = filepath.Clean(root)
	if !slices.Contains(v.allowedRoots, root) {
		v.allowedRoots = append(v.allowedRoots, root)
	}
}

// Validate returns an error unless path is one of the allowed roots or lies
// beneath one after cleaning.
func (v *PathValidator) Validate(path string) error {
	if len(v.allowedRoots) == 0 {
		return fmt.Errorf("no allowed roots configured")
	}
	clean := filepath.Clean(path)
	for _, root := range v.allowedRoots {
		if Within(root, clean) {
			return nil
		}
	}
	return fmt.Errorf("path is outside allowed directories: %s", path)
}

// Within reports whether path is root or a descendant of root. Both are
// compared lexically; symlinks are not resolved.
func Within(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
