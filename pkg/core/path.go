package core

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.\-]*$`)

// ValidateName checks that name can be used as a path segment.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) || strings.HasSuffix(name, MetadataSuffix) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// CleanPath returns the canonical absolute form of p.
func CleanPath(p string) string {
	return path.Clean("/" + p)
}

// ParentPath returns the path of the folder containing p, or "" for the root.
func ParentPath(p string) string {
	if p == "/" {
		return ""
	}
	return path.Dir(p)
}

// BaseName returns the last segment of p, or "" for the root.
func BaseName(p string) string {
	if p == "/" {
		return ""
	}
	return path.Base(p)
}

// Ancestors returns every prefix of p from the root down to p itself.
func Ancestors(p string) []string {
	out := []string{"/"}
	if p == "/" {
		return out
	}
	segs := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i := range segs {
		out = append(out, "/"+strings.Join(segs[:i+1], "/"))
	}
	return out
}

// IsWithin reports whether p is root or one of its descendants.
func IsWithin(p, root string) bool {
	return root == "/" || p == root || strings.HasPrefix(p, root+"/")
}

// rebase moves p from the subtree at from to the subtree at to.
func rebase(p, from, to string) string {
	if p == from {
		return to
	}
	return path.Join(to, strings.TrimPrefix(p, from+"/"))
}

func dirKey(p string) string {
	return strings.TrimPrefix(p, "/")
}

func metadataKey(p string) string {
	return dirKey(p) + MetadataSuffix
}

func handlerKey(p, name string) string {
	return dirKey(p) + "." + name
}
