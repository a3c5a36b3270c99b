package history

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/object"
)

// Conflict reports the paths both sides changed differently. The merge fails
// closed: no resolution is guessed.
type Conflict struct {
	Paths []string
}

func (c *Conflict) Error() string {
	return fmt.Sprintf("merge conflict on %d path(s): %s", len(c.Paths), strings.Join(c.Paths, ", "))
}

// MergeEntries performs a structural three-way merge of flattened trees.
// base may be empty (nil or zero entries) when the histories share no
// ancestor. For every path: unchanged in both keeps the base version, a
// change on one side only takes that side, and differing changes on both
// sides produce a *Conflict error carrying the full sorted path set.
func MergeEntries(base, local, remote map[string]object.TreeEntry) (map[string]object.TreeEntry, error) {
	merged := make(map[string]object.TreeEntry)
	var conflicts []string

	for _, path := range unionPaths(base, local, remote) {
		baseEntry, inBase := base[path]
		localEntry, inLocal := local[path]
		remoteEntry, inRemote := remote[path]

		localChanged := changed(baseEntry, inBase, localEntry, inLocal)
		remoteChanged := changed(baseEntry, inBase, remoteEntry, inRemote)

		switch {
		case !localChanged && !remoteChanged:
			if inBase {
				merged[path] = baseEntry
			}
		case localChanged && !remoteChanged:
			if inLocal {
				merged[path] = localEntry
			}
		case !localChanged && remoteChanged:
			if inRemote {
				merged[path] = remoteEntry
			}
		default:
			// both changed; identical results are not a conflict
			if sameEntry(localEntry, inLocal, remoteEntry, inRemote) {
				if inLocal {
					merged[path] = localEntry
				}
				continue
			}
			conflicts = append(conflicts, path)
		}
	}

	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return nil, &Conflict{Paths: conflicts}
	}
	return merged, nil
}

func changed(base object.TreeEntry, inBase bool, side object.TreeEntry, inSide bool) bool {
	return !sameEntry(base, inBase, side, inSide)
}

func sameEntry(a object.TreeEntry, inA bool, b object.TreeEntry, inB bool) bool {
	if inA != inB {
		return false
	}
	if !inA {
		return true
	}
	return a.Hash == b.Hash && a.Mode == b.Mode
}

func unionPaths(maps ...map[string]object.TreeEntry) []string {
	seen := make(map[string]bool)
	var paths []string
	for _, m := range maps {
		for path := range m {
			if !seen[path] {
				seen[path] = true
				paths = append(paths, path)
			}
		}
	}
	sort.Strings(paths)
	return paths
}
