package history

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
)

// Relation classifies the ancestry between the local and the remote sync
// commit. The variant is closed: the orchestrator switches over it
// exhaustively instead of nesting ancestor checks.
type Relation int

const (
	// RelationEqual: both refs point at the same commit.
	RelationEqual Relation = iota
	// RelationFastForwardLocal: local is a strict ancestor of remote; the
	// local ref fast-forwards to the remote commit with no merge.
	RelationFastForwardLocal
	// RelationFastForwardRemote: remote is a strict ancestor of local; the
	// eventual push fast-forwards the remote.
	RelationFastForwardRemote
	// RelationDiverged: the histories share an ancestor but both advanced.
	RelationDiverged
	// RelationUnrelated: no common ancestor (two independent histories,
	// e.g. the first sync between peers that both started local-only).
	RelationUnrelated
)

func (r Relation) String() string {
	switch r {
	case RelationEqual:
		return "equal"
	case RelationFastForwardLocal:
		return "fast-forward-local"
	case RelationFastForwardRemote:
		return "fast-forward-remote"
	case RelationDiverged:
		return "diverged"
	case RelationUnrelated:
		return "unrelated"
	default:
		return fmt.Sprintf("relation(%d)", int(r))
	}
}

// Classify determines the ancestry relation between two commits.
// Fast-forward classification takes priority over divergence: if one side is
// a strict ancestor of the other, no merge is needed.
func (s *Store) Classify(local, remote plumbing.Hash) (Relation, error) {
	if local == remote {
		return RelationEqual, nil
	}

	localCommit, err := s.repo.CommitObject(local)
	if err != nil {
		return RelationUnrelated, fmt.Errorf("failed to read commit %s: %w", local, err)
	}
	remoteCommit, err := s.repo.CommitObject(remote)
	if err != nil {
		return RelationUnrelated, fmt.Errorf("failed to read commit %s: %w", remote, err)
	}

	localIsAncestor, err := localCommit.IsAncestor(remoteCommit)
	if err != nil {
		return RelationUnrelated, fmt.Errorf("failed to check ancestry: %w", err)
	}
	if localIsAncestor {
		return RelationFastForwardLocal, nil
	}

	remoteIsAncestor, err := remoteCommit.IsAncestor(localCommit)
	if err != nil {
		return RelationUnrelated, fmt.Errorf("failed to check ancestry: %w", err)
	}
	if remoteIsAncestor {
		return RelationFastForwardRemote, nil
	}

	bases, err := localCommit.MergeBase(remoteCommit)
	if err != nil {
		return RelationUnrelated, fmt.Errorf("failed to compute merge base: %w", err)
	}
	if len(bases) == 0 {
		return RelationUnrelated, nil
	}
	return RelationDiverged, nil
}

// MergeBase returns the nearest common ancestor of two commits, and whether
// one exists. Completely independent histories have none.
func (s *Store) MergeBase(a, b plumbing.Hash) (plumbing.Hash, bool, error) {
	commitA, err := s.repo.CommitObject(a)
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("failed to read commit %s: %w", a, err)
	}
	commitB, err := s.repo.CommitObject(b)
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("failed to read commit %s: %w", b, err)
	}

	bases, err := commitA.MergeBase(commitB)
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("failed to compute merge base: %w", err)
	}
	if len(bases) == 0 {
		return plumbing.ZeroHash, false, nil
	}
	return bases[0].Hash, true, nil
}
