package sync

import (
	"os"
	"path"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ReconcileItems applies the item-granular last-write-wins policy. Every
// item present locally contributes exactly its local files to the result;
// items new on the remote side keep their remote files. Resolution is per
// whole item, never per file: a locally present item suppresses all remote
// files under it, including ones the local side does not have.
//
// base is the tree of the current local checkpoint, nil when none exists.
// A remote item that already appears in base but is gone from the working
// directory is a local deletion, not a remote addition, and is not
// restored.
func ReconcileItems(base, local, remote map[string]object.TreeEntry, localItems []string) map[string]object.TreeEntry {
	suppressed := make(map[string]bool, len(localItems)+len(base))
	for _, item := range localItems {
		suppressed[item] = true
	}
	for p := range base {
		suppressed[itemOf(p)] = true
	}

	out := make(map[string]object.TreeEntry, len(local)+len(remote))
	for p, entry := range remote {
		if suppressed[itemOf(p)] {
			continue
		}
		out[p] = entry
	}
	for p, entry := range local {
		out[p] = entry
	}
	return out
}

// mergeRemoteView rewrites the remote entry set for the structural merge so
// that items edited on both sides since base resolve to the local version.
// Items the local side left untouched keep their remote entries, so a
// remote-only edit flows through the merge intact. Items deleted locally
// keep their remote entries too: a committed deletion against a remote edit
// must surface in the merge instead of vanishing here.
func mergeRemoteView(base, local, remote map[string]object.TreeEntry) map[string]object.TreeEntry {
	contested := contestedItems(base, local)

	out := make(map[string]object.TreeEntry, len(remote)+len(local))
	for p, entry := range remote {
		if contested[itemOf(p)] {
			continue
		}
		out[p] = entry
	}
	for p, entry := range local {
		if contested[itemOf(p)] {
			out[p] = entry
		}
	}
	return out
}

// contestedItems returns the items whose local entries differ from the base
// entries. With no base every local item is contested.
func contestedItems(base, local map[string]object.TreeEntry) map[string]bool {
	localByItem := groupByItem(local)
	baseByItem := groupByItem(base)

	contested := make(map[string]bool, len(localByItem))
	for item, entries := range localByItem {
		if !sameEntries(entries, baseByItem[item]) {
			contested[item] = true
		}
	}
	return contested
}

func groupByItem(entries map[string]object.TreeEntry) map[string]map[string]object.TreeEntry {
	byItem := make(map[string]map[string]object.TreeEntry)
	for p, entry := range entries {
		item := itemOf(p)
		if byItem[item] == nil {
			byItem[item] = make(map[string]object.TreeEntry)
		}
		byItem[item][p] = entry
	}
	return byItem
}

func sameEntries(a, b map[string]object.TreeEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for p, ea := range a {
		eb, ok := b[p]
		if !ok || ea.Hash != eb.Hash || ea.Mode != eb.Mode {
			return false
		}
	}
	return true
}

// itemOf maps a file path to the item that owns it: the directory directly
// containing the file. Files live directly inside their item directory, so
// no deeper ancestor can claim them.
func itemOf(p string) string {
	dir := path.Dir(p)
	if dir == "." {
		return ""
	}
	return dir
}

// materialize replaces the yaks directory with the contents of the given
// tree. The new state is written into a staging directory next to the root
// and swapped in via rename, so an interrupted run never leaves a half
// written yaks directory behind for the next commit to record as deletions.
// Stale staging or backup directories from a crashed run are replaced here.
func (e *Engine) materialize(tree plumbing.Hash) error {
	entries, err := e.history.TreeEntries(tree)
	if err != nil {
		return err
	}

	root := e.items.Root()
	staging := root + ".staging"
	backup := root + ".old"

	if err := os.RemoveAll(staging); err != nil {
		return err
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return err
	}

	for p, entry := range entries {
		data, err := e.history.ReadBlob(entry.Hash)
		if err != nil {
			return err
		}
		dst := filepath.Join(staging, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		mode := os.FileMode(0o644)
		if entry.Mode == filemode.Executable {
			mode = 0o755
		}
		if err := os.WriteFile(dst, data, mode); err != nil {
			return err
		}
	}

	if err := os.RemoveAll(backup); err != nil {
		return err
	}
	if err := os.Rename(root, backup); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Rename(staging, root); err != nil {
		return err
	}
	return os.RemoveAll(backup)
}
