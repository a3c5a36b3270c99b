package yak

import (
	"fmt"
	"strings"
)

// NoteFileName is the freeform note inside every item directory. It is
// written on creation so the item survives as a git tree entry (git cannot
// represent empty directories).
const NoteFileName = "note.md"

// DoneFileName is the empty marker file present iff the item is done.
const DoneFileName = "done"

// Yak is one tracked item.
type Yak struct {
	Name string
	Done bool
	Note string
}

// forbidden characters in item names; slashes are allowed for hierarchy.
const forbiddenChars = `\:*?|<>"`

// ValidateName checks that name is usable as an item path.
// Slashes are allowed (hierarchical items like "dx/rust"), but path
// segments must be non-empty and must not escape the yaks directory.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("yak name cannot be empty")
	}
	if strings.ContainsAny(name, forbiddenChars) {
		return fmt.Errorf("invalid yak name %q: contains one of %s", name, forbiddenChars)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" {
			return fmt.Errorf("invalid yak name %q: empty path segment", name)
		}
		if seg == "." || seg == ".." {
			return fmt.Errorf("invalid yak name %q: segment %q not allowed", name, seg)
		}
	}
	return nil
}

// Hierarchy splits a name into its path segments, e.g. "dx/rust" -> [dx rust].
func Hierarchy(name string) []string {
	return strings.Split(name, "/")
}
