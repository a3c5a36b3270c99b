package history

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Snapshot walks root and produces a tree object mirroring its exact file
// contents and relative paths. A missing or empty root produces the empty
// tree. Identical directory content always yields the identical tree id.
// Hidden files and directories are skipped. Read-only: no file is modified.
func (s *Store) Snapshot(root string) (plumbing.Hash, error) {
	entries := make(map[string]object.TreeEntry)

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root && os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if path != root && strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		blobHash, mode, err := s.writeBlobFromFile(path, info)
		if err != nil {
			return err
		}

		name := filepath.ToSlash(rel)
		entries[name] = object.TreeEntry{Name: name, Mode: mode, Hash: blobHash}
		return nil
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to snapshot %s: %w", root, err)
	}

	return s.BuildTree(entries)
}

// WriteBlob stores content as a blob object and returns its id.
func (s *Store) WriteBlob(content []byte) (plumbing.Hash, error) {
	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(content)))

	writer, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to get object writer: %w", err)
	}
	if _, err := writer.Write(content); err != nil {
		_ = writer.Close()
		return plumbing.ZeroHash, fmt.Errorf("failed to write blob content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to close blob writer: %w", err)
	}

	hash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store blob: %w", err)
	}
	return hash, nil
}

// ReadBlob returns the byte contents of a blob object.
func (s *Store) ReadBlob(hash plumbing.Hash) ([]byte, error) {
	blob, err := s.repo.BlobObject(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", hash, err)
	}
	reader, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s: %w", hash, err)
	}
	defer func() {
		_ = reader.Close()
	}()
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", hash, err)
	}
	return content, nil
}

func (s *Store) writeBlobFromFile(path string, info os.FileInfo) (plumbing.Hash, filemode.FileMode, error) {
	mode := filemode.Regular
	if info.Mode()&0o111 != 0 {
		mode = filemode.Executable
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return plumbing.ZeroHash, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	hash, err := s.WriteBlob(content)
	if err != nil {
		return plumbing.ZeroHash, 0, err
	}
	return hash, mode, nil
}

// TreeEntries flattens a tree into a map of slash-separated paths to leaf
// entries, the working representation of a snapshot for merging.
func (s *Store) TreeEntries(tree plumbing.Hash) (map[string]object.TreeEntry, error) {
	entries := make(map[string]object.TreeEntry)
	t, err := s.repo.TreeObject(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to read tree %s: %w", tree, err)
	}
	if err := s.flattenTree(t, "", entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) flattenTree(tree *object.Tree, prefix string, entries map[string]object.TreeEntry) error {
	for _, entry := range tree.Entries {
		fullPath := entry.Name
		if prefix != "" {
			fullPath = prefix + "/" + entry.Name
		}

		if entry.Mode == filemode.Dir {
			subtree, err := s.repo.TreeObject(entry.Hash)
			if err != nil {
				return fmt.Errorf("failed to read subtree %s: %w", fullPath, err)
			}
			if err := s.flattenTree(subtree, fullPath, entries); err != nil {
				return err
			}
			continue
		}
		entries[fullPath] = object.TreeEntry{Name: fullPath, Mode: entry.Mode, Hash: entry.Hash}
	}
	return nil
}

// BuildTree assembles nested tree objects from flattened entries and returns
// the root tree id. Zero entries produce the empty tree.
func (s *Store) BuildTree(entries map[string]object.TreeEntry) (plumbing.Hash, error) {
	root := newTreeNode()
	for fullPath, entry := range entries {
		root.insert(strings.Split(fullPath, "/"), entry)
	}
	return s.writeTreeNode(root)
}

// treeNode is the in-memory shape of one directory while assembling trees.
type treeNode struct {
	dirs  map[string]*treeNode
	files []object.TreeEntry
}

func newTreeNode() *treeNode {
	return &treeNode{dirs: make(map[string]*treeNode)}
}

func (n *treeNode) insert(pathParts []string, entry object.TreeEntry) {
	if len(pathParts) == 1 {
		n.files = append(n.files, object.TreeEntry{
			Name: pathParts[0],
			Mode: entry.Mode,
			Hash: entry.Hash,
		})
		return
	}
	dirName := pathParts[0]
	if n.dirs[dirName] == nil {
		n.dirs[dirName] = newTreeNode()
	}
	n.dirs[dirName].insert(pathParts[1:], entry)
}

func (s *Store) writeTreeNode(node *treeNode) (plumbing.Hash, error) {
	treeEntries := make([]object.TreeEntry, 0, len(node.files)+len(node.dirs))
	treeEntries = append(treeEntries, node.files...)

	for name, sub := range node.dirs {
		subHash, err := s.writeTreeNode(sub)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		treeEntries = append(treeEntries, object.TreeEntry{
			Name: name,
			Mode: filemode.Dir,
			Hash: subHash,
		})
	}

	sortTreeEntries(treeEntries)

	tree := &object.Tree{Entries: treeEntries}
	obj := s.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode tree: %w", err)
	}
	hash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store tree: %w", err)
	}
	return hash, nil
}

// sortTreeEntries sorts entries in git's required order: by name, with
// directories compared as if their name had a trailing slash.
func sortTreeEntries(entries []object.TreeEntry) {
	sort.Slice(entries, func(i, j int) bool {
		nameI := entries[i].Name
		nameJ := entries[j].Name
		if entries[i].Mode == filemode.Dir {
			nameI += "/"
		}
		if entries[j].Mode == filemode.Dir {
			nameJ += "/"
		}
		return nameI < nameJ
	})
}
