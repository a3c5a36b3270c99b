// Package sync reconciles the local yaks directory against a remote peer's
// replicated state using only object-store primitives: snapshot, commit,
// ancestry classification, structural merge, and an item-granular
// last-write-wins policy. One call to Run performs the whole protocol:
// fetch, reconcile, commit-if-dirty, merge, push, materialize, cleanup.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/yakshave/yak/internal/history"
)

// ItemSource exposes the yaks directory to the engine: where it lives and
// which item paths are currently present on disk.
type ItemSource interface {
	Root() string
	Items() ([]string, error)
}

// History is the version-control primitive contract the engine runs on,
// implemented by *history.Store. Injecting it keeps the protocol testable
// against in-memory repositories.
type History interface {
	Snapshot(root string) (plumbing.Hash, error)
	BuildTree(entries map[string]object.TreeEntry) (plumbing.Hash, error)
	TreeEntries(tree plumbing.Hash) (map[string]object.TreeEntry, error)
	TreeOf(commit plumbing.Hash) (plumbing.Hash, error)
	ReadBlob(hash plumbing.Hash) ([]byte, error)
	Commit(tree plumbing.Hash, parents []plumbing.Hash, message string) (plumbing.Hash, error)
	ResolveRef(name string) (plumbing.Hash, bool, error)
	UpdateRef(name string, newHash, old plumbing.Hash) error
	DeleteRef(name string) error
	Classify(local, remote plumbing.Hash) (history.Relation, error)
	MergeBase(a, b plumbing.Hash) (plumbing.Hash, bool, error)
	Fetch(ctx context.Context, remote string) error
	Push(ctx context.Context, remote string) error
}

// Engine orchestrates the sync protocol.
type Engine struct {
	items   ItemSource
	history History
	remote  string
	logger  *slog.Logger
}

// NewEngine creates a sync engine. An empty remote name disables fetch and
// push: the engine then checkpoints locally only.
func NewEngine(items ItemSource, hist History, remote string, logger *slog.Logger) *Engine {
	return &Engine{
		items:   items,
		history: hist,
		remote:  remote,
		logger:  logger,
	}
}

const (
	syncCommitMessage  = "Sync yaks"
	mergeCommitMessage = "Merge remote yaks"
)

// Run executes one full sync. It either completes through materialization or
// returns a single terminal error; remote connectivity failures degrade to
// local-only operation instead of failing the run. Re-running after an
// interruption is safe: commits are only created when the tree actually
// changed, and the sync ref is always a self-consistent checkpoint.
func (e *Engine) Run(ctx context.Context) error {
	// Fetch
	if e.remote != "" {
		if err := e.history.Fetch(ctx, e.remote); err != nil {
			var remoteErr *history.RemoteError
			if !errors.As(err, &remoteErr) {
				return err
			}
			e.logger.Warn("fetch failed, continuing local-only", "remote", e.remote, "error", err)
		}
	}

	remoteHash, remoteOK, err := e.history.ResolveRef(history.IncomingRef)
	if err != nil {
		return err
	}
	localHash, localOK, err := e.history.ResolveRef(history.SyncRef)
	if err != nil {
		return err
	}
	e.logger.Debug("refs resolved",
		"local", refString(localHash, localOK),
		"remote", refString(remoteHash, remoteOK))

	diskTree, err := e.history.Snapshot(e.items.Root())
	if err != nil {
		return err
	}

	var localTree plumbing.Hash
	if localOK {
		if localTree, err = e.history.TreeOf(localHash); err != nil {
			return err
		}
	}
	dirty := !localOK || diskTree != localTree

	if !localOK && remoteOK && e.isEmptyDisk(diskTree) {
		// first sync against an existing peer with nothing local: adopt
		// the remote checkpoint outright.
		if err := e.history.UpdateRef(history.SyncRef, remoteHash, plumbing.ZeroHash); err != nil {
			return err
		}
		localHash, localOK = remoteHash, true
		e.logger.Info("adopted remote history", "commit", remoteHash)
	} else {
		// Reconcile-before-commit: fold the remote snapshot into a dirty
		// working directory so remote-only additions do not read as local
		// divergence. Locally present items win in full.
		if dirty && remoteOK {
			diskTree, err = e.reconcileWorkingDir(diskTree, remoteHash, localTree, localOK)
			if err != nil {
				return err
			}
			dirty = !localOK || diskTree != localTree
		}

		// Commit-if-dirty
		if dirty {
			var parents []plumbing.Hash
			old := plumbing.ZeroHash
			if localOK {
				parents = []plumbing.Hash{localHash}
				old = localHash
			}
			commit, err := e.history.Commit(diskTree, parents, syncCommitMessage)
			if err != nil {
				return err
			}
			if err := e.history.UpdateRef(history.SyncRef, commit, old); err != nil {
				return err
			}
			localHash, localOK = commit, true
			e.logger.Info("recorded local changes", "commit", commit)
		}
	}

	// Merge-at-history-level
	if localOK && remoteOK && localHash != remoteHash {
		localHash, err = e.mergeHistories(localHash, remoteHash)
		if err != nil {
			return err
		}
	}

	// Push: best-effort, failure keeps the sync locally durable.
	if e.remote != "" && localOK {
		if err := e.history.Push(ctx, e.remote); err != nil {
			var remoteErr *history.RemoteError
			if !errors.As(err, &remoteErr) {
				return err
			}
			e.logger.Warn("push failed, local state remains durable", "remote", e.remote, "error", err)
		}
	}

	// Materialize
	if localOK {
		finalTree, err := e.history.TreeOf(localHash)
		if err != nil {
			return err
		}
		if err := e.materialize(finalTree); err != nil {
			return err
		}
	}

	// Cleanup
	if err := e.history.DeleteRef(history.IncomingRef); err != nil {
		return err
	}

	e.logger.Info("sync completed")
	return nil
}

// reconcileWorkingDir applies the item-level policy between the dirty disk
// snapshot and the fetched remote tree, rewrites the working directory with
// the result, and returns the reconciled tree id.
func (e *Engine) reconcileWorkingDir(diskTree, remoteHash, localTree plumbing.Hash, localOK bool) (plumbing.Hash, error) {
	var baseEntries map[string]object.TreeEntry
	if localOK {
		var err error
		if baseEntries, err = e.history.TreeEntries(localTree); err != nil {
			return plumbing.ZeroHash, err
		}
	}
	localEntries, err := e.history.TreeEntries(diskTree)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	remoteTree, err := e.history.TreeOf(remoteHash)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	remoteEntries, err := e.history.TreeEntries(remoteTree)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	items, err := e.items.Items()
	if err != nil {
		return plumbing.ZeroHash, err
	}

	reconciled := ReconcileItems(baseEntries, localEntries, remoteEntries, items)
	tree, err := e.history.BuildTree(reconciled)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if tree == diskTree {
		return diskTree, nil
	}

	e.logger.Info("reconciled remote items into working directory")
	if err := e.materialize(tree); err != nil {
		return plumbing.ZeroHash, err
	}
	return tree, nil
}

// mergeHistories resolves two differing commits into one final local
// checkpoint and returns its id. Fast-forward always wins over merging. For
// diverged or unrelated histories the remote tree is first rewritten so
// both-edited items resolve locally, then merged structurally; a conflict
// surviving that rewrite is fatal.
func (e *Engine) mergeHistories(localHash, remoteHash plumbing.Hash) (plumbing.Hash, error) {
	rel, err := e.history.Classify(localHash, remoteHash)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	e.logger.Debug("classified histories", "relation", rel.String())

	switch rel {
	case history.RelationEqual:
		return localHash, nil
	case history.RelationFastForwardLocal:
		if err := e.history.UpdateRef(history.SyncRef, remoteHash, localHash); err != nil {
			return plumbing.ZeroHash, err
		}
		e.logger.Info("fast-forwarded to remote", "commit", remoteHash)
		return remoteHash, nil
	case history.RelationFastForwardRemote:
		// the push fast-forwards the remote; nothing to do locally
		return localHash, nil
	}

	var baseEntries map[string]object.TreeEntry
	if rel == history.RelationDiverged {
		base, ok, err := e.history.MergeBase(localHash, remoteHash)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if ok {
			baseTree, err := e.history.TreeOf(base)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			if baseEntries, err = e.history.TreeEntries(baseTree); err != nil {
				return plumbing.ZeroHash, err
			}
		}
	}

	localTree, err := e.history.TreeOf(localHash)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	localEntries, err := e.history.TreeEntries(localTree)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	remoteTree, err := e.history.TreeOf(remoteHash)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	remoteEntries, err := e.history.TreeEntries(remoteTree)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	// Items both sides changed since the base take the local version before
	// the structural merge runs; items only the remote touched keep their
	// remote files. Committed local deletions are left to the three-way
	// merge, which surfaces delete-vs-edit explicitly.
	remoteView := mergeRemoteView(baseEntries, localEntries, remoteEntries)

	merged, err := history.MergeEntries(baseEntries, localEntries, remoteView)
	if err != nil {
		var conflict *history.Conflict
		if errors.As(err, &conflict) {
			e.logger.Error("unresolvable merge conflict", "paths", conflict.Paths)
		}
		return plumbing.ZeroHash, fmt.Errorf("history merge failed: %w", err)
	}

	mergedTree, err := e.history.BuildTree(merged)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	mergeCommit, err := e.history.Commit(mergedTree, []plumbing.Hash{localHash, remoteHash}, mergeCommitMessage)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if err := e.history.UpdateRef(history.SyncRef, mergeCommit, localHash); err != nil {
		return plumbing.ZeroHash, err
	}
	e.logger.Info("merged remote history", "commit", mergeCommit, "relation", rel.String())
	return mergeCommit, nil
}

func (e *Engine) isEmptyDisk(diskTree plumbing.Hash) bool {
	entries, err := e.history.TreeEntries(diskTree)
	return err == nil && len(entries) == 0
}

func refString(hash plumbing.Hash, ok bool) string {
	if !ok {
		return "none"
	}
	return hash.String()
}
