// Package testutil provides multi-peer sync fixtures for tests. A Peer
// bundles an in-memory repository, its history store and an on-disk yaks
// directory; Transfer simulates the fetch leg between two peers by copying
// objects and setting the incoming ref.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/yakshave/yak/internal/history"
	"github.com/yakshave/yak/internal/storage"
	"github.com/yakshave/yak/internal/sync"
)

// Peer is one machine participating in a sync exchange.
type Peer struct {
	Repo   *git.Repository
	Store  *history.Store
	Items  *storage.DirStore
	Engine *sync.Engine
}

// NewPeer creates a peer with an empty repository and yaks directory. The
// engine runs without a remote; use Transfer to move state between peers.
func NewPeer(t *testing.T, name string) *Peer {
	t.Helper()

	repo, err := git.Init(memory.NewStorage(), nil)
	if err != nil {
		t.Fatalf("init repo for peer %s: %v", name, err)
	}
	store := history.New(repo, name, name+"@example.com")

	root := filepath.Join(t.TempDir(), "yaks")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir yaks root for peer %s: %v", name, err)
	}
	items := storage.NewDirStore(root)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &Peer{
		Repo:   repo,
		Store:  store,
		Items:  items,
		Engine: sync.NewEngine(items, store, "", logger),
	}
}

// Transfer replicates from's published sync state into to, the way a fetch
// would: all objects are copied over and to's incoming ref is pointed at
// from's sync ref. Transferring from a peer that never synced is a no-op.
func Transfer(t *testing.T, from, to *Peer) {
	t.Helper()

	head, ok, err := from.Store.ResolveRef(history.SyncRef)
	if err != nil {
		t.Fatalf("resolve source sync ref: %v", err)
	}
	if !ok {
		return
	}

	iter, err := from.Repo.Storer.IterEncodedObjects(plumbing.AnyObject)
	if err != nil {
		t.Fatalf("iterate source objects: %v", err)
	}
	if err := iter.ForEach(func(obj plumbing.EncodedObject) error {
		_, err := to.Repo.Storer.SetEncodedObject(obj)
		return err
	}); err != nil {
		t.Fatalf("copy objects: %v", err)
	}

	old, _, err := to.Store.ResolveRef(history.IncomingRef)
	if err != nil {
		t.Fatalf("resolve destination incoming ref: %v", err)
	}
	if err := to.Store.UpdateRef(history.IncomingRef, head, old); err != nil {
		t.Fatalf("set incoming ref: %v", err)
	}
}
