// Package history provides the version-control primitives the sync engine
// runs on: content-addressed snapshots of the yaks directory, commits and
// refs in a git object store, ancestry classification, and a structural
// three-way tree merge. It works directly against the object store and never
// touches the repository's working tree or index.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

const (
	// SyncRef is the durable checkpoint: it always points to a commit whose
	// tree equals the last successfully synchronized on-disk state.
	SyncRef = "refs/yaks/sync"
	// IncomingRef is the transient fetch target for the remote peer's sync
	// ref. It exists only during a sync run.
	IncomingRef = "refs/yaks/incoming"
)

// RemoteError wraps a fetch or push failure. It is a recoverable class: the
// orchestrator degrades to local-only operation instead of aborting.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Store gives the sync engine access to one repository's object store.
type Store struct {
	repo        *git.Repository
	authorName  string
	authorEmail string
}

// Open locates the git repository at or above dir.
func Open(dir string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository at %s: %w", dir, err)
	}
	return repo, nil
}

// New creates a Store. Empty author fields fall back to the repository's
// user.name / user.email, then to built-in defaults.
func New(repo *git.Repository, authorName, authorEmail string) *Store {
	if authorName == "" || authorEmail == "" {
		if cfg, err := repo.Config(); err == nil {
			if authorName == "" {
				authorName = cfg.User.Name
			}
			if authorEmail == "" {
				authorEmail = cfg.User.Email
			}
		}
	}
	if authorName == "" {
		authorName = "yak"
	}
	if authorEmail == "" {
		authorEmail = "yak@local"
	}
	return &Store{repo: repo, authorName: authorName, authorEmail: authorEmail}
}

// ResolveRef returns the commit a ref points to, and whether the ref exists.
func (s *Store) ResolveRef(name string) (plumbing.Hash, bool, error) {
	ref, err := s.repo.Reference(plumbing.ReferenceName(name), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroHash, false, nil
		}
		return plumbing.ZeroHash, false, fmt.Errorf("failed to resolve ref %s: %w", name, err)
	}
	return ref.Hash(), true, nil
}

// UpdateRef points a ref at a commit. When old is non-zero the update is
// atomic against the previous value: a concurrent change of the ref is
// surfaced as an error rather than overwritten.
func (s *Store) UpdateRef(name string, newHash, old plumbing.Hash) error {
	newRef := plumbing.NewHashReference(plumbing.ReferenceName(name), newHash)
	var oldRef *plumbing.Reference
	if old != plumbing.ZeroHash {
		oldRef = plumbing.NewHashReference(plumbing.ReferenceName(name), old)
	}
	if err := s.repo.Storer.CheckAndSetReference(newRef, oldRef); err != nil {
		return fmt.Errorf("failed to update ref %s: %w", name, err)
	}
	return nil
}

// DeleteRef removes a ref. Deleting a missing ref is not an error.
func (s *Store) DeleteRef(name string) error {
	err := s.repo.Storer.RemoveReference(plumbing.ReferenceName(name))
	if err != nil && !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return fmt.Errorf("failed to delete ref %s: %w", name, err)
	}
	return nil
}

// Commit records a tree with the given parents and returns the commit id.
func (s *Store) Commit(tree plumbing.Hash, parents []plumbing.Hash, message string) (plumbing.Hash, error) {
	sig := object.Signature{
		Name:  s.authorName,
		Email: s.authorEmail,
		When:  time.Now(),
	}

	commit := &object.Commit{
		TreeHash:     tree,
		ParentHashes: parents,
		Author:       sig,
		Committer:    sig,
		Message:      message,
	}

	obj := s.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode commit: %w", err)
	}
	hash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store commit: %w", err)
	}
	return hash, nil
}

// TreeOf returns the tree id of a commit.
func (s *Store) TreeOf(commit plumbing.Hash) (plumbing.Hash, error) {
	c, err := s.repo.CommitObject(commit)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to read commit %s: %w", commit, err)
	}
	return c.TreeHash, nil
}

// Fetch pulls the remote peer's sync ref into IncomingRef. The absence of
// the remote, of the remote's sync ref, or of any commits on the remote is
// not an error: IncomingRef is simply left absent. Connectivity failures are
// reported as *RemoteError.
func (s *Store) Fetch(ctx context.Context, remote string) error {
	err := s.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remote,
		RefSpecs: []gitconfig.RefSpec{
			gitconfig.RefSpec("+" + SyncRef + ":" + IncomingRef),
		},
	})
	switch {
	case err == nil, errors.Is(err, git.NoErrAlreadyUpToDate):
		return nil
	case errors.Is(err, git.ErrRemoteNotFound):
		// no peer configured
		return s.DeleteRef(IncomingRef)
	case errors.Is(err, transport.ErrEmptyRemoteRepository):
		return s.DeleteRef(IncomingRef)
	}
	var noMatch git.NoMatchingRefSpecError
	if errors.As(err, &noMatch) {
		// peer exists but has never published a sync ref
		return s.DeleteRef(IncomingRef)
	}
	return &RemoteError{Op: "fetch", Err: err}
}

// Push publishes the local sync ref to the remote under the same name. All
// failures, including a rejected non-fast-forward update, are reported as
// *RemoteError: sync stays locally durable regardless of connectivity.
func (s *Store) Push(ctx context.Context, remote string) error {
	err := s.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remote,
		RefSpecs: []gitconfig.RefSpec{
			gitconfig.RefSpec(SyncRef + ":" + SyncRef),
		},
	})
	if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if errors.Is(err, git.ErrRemoteNotFound) {
		return nil
	}
	return &RemoteError{Op: "push", Err: err}
}
