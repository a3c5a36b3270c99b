package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yakshave/yak/internal/yak"
)

// DirStore persists yaks as one directory per item under a root directory.
// Each item directory holds a note file (always present) and an empty done
// marker when the item is completed.
type DirStore struct {
	root string
}

// NewDirStore creates a store rooted at dir. The directory is created lazily
// on the first write.
func NewDirStore(dir string) *DirStore {
	return &DirStore{root: dir}
}

// Root returns the yaks directory path.
func (s *DirStore) Root() string {
	return s.root
}

func (s *DirStore) itemDir(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Create adds a new yak. Creating an existing yak is an error.
func (s *DirStore) Create(name string) error {
	if err := yak.ValidateName(name); err != nil {
		return err
	}
	dir := s.itemDir(name)
	notePath := filepath.Join(dir, yak.NoteFileName)
	if _, err := os.Stat(notePath); err == nil {
		return fmt.Errorf("yak %q already exists", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create yak directory: %w", err)
	}
	if err := os.WriteFile(notePath, []byte{}, 0o644); err != nil {
		return fmt.Errorf("failed to create note file: %w", err)
	}
	return nil
}

// Get reads a single yak by name.
func (s *DirStore) Get(name string) (yak.Yak, error) {
	if err := yak.ValidateName(name); err != nil {
		return yak.Yak{}, err
	}
	dir := s.itemDir(name)
	note, err := os.ReadFile(filepath.Join(dir, yak.NoteFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return yak.Yak{}, fmt.Errorf("yak %q does not exist", name)
		}
		return yak.Yak{}, fmt.Errorf("failed to read yak %q: %w", name, err)
	}
	_, err = os.Stat(filepath.Join(dir, yak.DoneFileName))
	done := err == nil
	return yak.Yak{Name: name, Done: done, Note: string(note)}, nil
}

// List returns all yaks sorted by name.
func (s *DirStore) List() ([]yak.Yak, error) {
	names, err := s.Items()
	if err != nil {
		return nil, err
	}
	yaks := make([]yak.Yak, 0, len(names))
	for _, name := range names {
		y, err := s.Get(name)
		if err != nil {
			return nil, err
		}
		yaks = append(yaks, y)
	}
	return yaks, nil
}

// MarkDone sets or clears the done marker.
func (s *DirStore) MarkDone(name string, done bool) error {
	if _, err := s.Get(name); err != nil {
		return err
	}
	marker := filepath.Join(s.itemDir(name), yak.DoneFileName)
	if done {
		if err := os.WriteFile(marker, []byte{}, 0o644); err != nil {
			return fmt.Errorf("failed to mark yak %q done: %w", name, err)
		}
		return nil
	}
	if err := os.Remove(marker); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to mark yak %q undone: %w", name, err)
	}
	return nil
}

// Move renames a yak, carrying its note and done state.
func (s *DirStore) Move(oldName, newName string) error {
	if err := yak.ValidateName(newName); err != nil {
		return err
	}
	if _, err := s.Get(oldName); err != nil {
		return err
	}
	if _, err := s.Get(newName); err == nil {
		return fmt.Errorf("yak %q already exists", newName)
	}
	dst := s.itemDir(newName)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := os.Rename(s.itemDir(oldName), dst); err != nil {
		return fmt.Errorf("failed to move yak %q: %w", oldName, err)
	}
	s.pruneEmptyParents(oldName)
	return nil
}

// Delete removes a yak and its directory.
func (s *DirStore) Delete(name string) error {
	if _, err := s.Get(name); err != nil {
		return err
	}
	if err := os.RemoveAll(s.itemDir(name)); err != nil {
		return fmt.Errorf("failed to delete yak %q: %w", name, err)
	}
	s.pruneEmptyParents(name)
	return nil
}

// Prune deletes every done yak and returns the deleted names.
func (s *DirStore) Prune() ([]string, error) {
	yaks, err := s.List()
	if err != nil {
		return nil, err
	}
	var pruned []string
	for _, y := range yaks {
		if !y.Done {
			continue
		}
		if err := s.Delete(y.Name); err != nil {
			return pruned, err
		}
		pruned = append(pruned, y.Name)
	}
	return pruned, nil
}

// ReadNote returns the freeform note of a yak.
func (s *DirStore) ReadNote(name string) (string, error) {
	y, err := s.Get(name)
	if err != nil {
		return "", err
	}
	return y.Note, nil
}

// WriteNote replaces the freeform note of a yak.
func (s *DirStore) WriteNote(name, text string) error {
	if _, err := s.Get(name); err != nil {
		return err
	}
	notePath := filepath.Join(s.itemDir(name), yak.NoteFileName)
	if err := os.WriteFile(notePath, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write note for yak %q: %w", name, err)
	}
	return nil
}

// NotePath returns the on-disk path of a yak's note file.
func (s *DirStore) NotePath(name string) string {
	return filepath.Join(s.itemDir(name), yak.NoteFileName)
}

// Items enumerates item paths relative to the root, slash-separated and
// sorted. A directory is an item when it directly contains at least one
// regular file; intermediate hierarchy directories are not items.
func (s *DirStore) Items() ([]string, error) {
	var items []string
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == s.root && os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		// Skip hidden files and directories (e.g. .git checkouts nested in notes)
		if path != s.root && strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() || path == s.root {
			return nil
		}
		rel, err := filepath.Rel(s.root, filepath.Dir(path))
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		name := filepath.ToSlash(rel)
		if len(items) == 0 || items[len(items)-1] != name {
			items = append(items, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan yaks directory: %w", err)
	}
	sort.Strings(items)
	items = dedupe(items)
	return items, nil
}

// pruneEmptyParents removes now-empty hierarchy directories above a deleted
// or moved item, stopping at the root.
func (s *DirStore) pruneEmptyParents(name string) {
	segs := yak.Hierarchy(name)
	for i := len(segs) - 1; i > 0; i-- {
		dir := filepath.Join(s.root, filepath.Join(segs[:i]...))
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
	}
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || sorted[i-1] != s {
			out = append(out, s)
		}
	}
	return out
}
