package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/yakshave/yak/internal/history"
	"github.com/yakshave/yak/internal/storage"
)

// rig wires an engine to a real in-memory repository and an on-disk yaks
// directory. Remote state is simulated by setting refs/yaks/incoming
// directly, so runs use an empty remote name and skip the network.
type rig struct {
	t      *testing.T
	repo   *git.Repository
	store  *history.Store
	items  *storage.DirStore
	engine *Engine
}

func newRig(t *testing.T) *rig {
	t.Helper()
	repo, err := git.Init(memory.NewStorage(), nil)
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	store := history.New(repo, "tester", "tester@example.com")
	root := filepath.Join(t.TempDir(), "yaks")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir yaks root: %v", err)
	}
	items := storage.NewDirStore(root)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &rig{
		t:      t,
		repo:   repo,
		store:  store,
		items:  items,
		engine: NewEngine(items, store, "", logger),
	}
}

func (r *rig) run() {
	r.t.Helper()
	if err := r.engine.Run(context.Background()); err != nil {
		r.t.Fatalf("sync run: %v", err)
	}
}

// writeItem lays an item out on disk without going through the engine.
func (r *rig) writeItem(name, note string, done bool) {
	r.t.Helper()
	dir := filepath.Join(r.items.Root(), filepath.FromSlash(name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.t.Fatalf("mkdir item: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "note.md"), []byte(note), 0o644); err != nil {
		r.t.Fatalf("write note: %v", err)
	}
	if done {
		if err := os.WriteFile(filepath.Join(dir, "done"), nil, 0o644); err != nil {
			r.t.Fatalf("write done marker: %v", err)
		}
	}
}

// commitFiles records a commit for the given path-to-content map and
// returns its id. Parents are optional.
func (r *rig) commitFiles(files map[string]string, parents ...plumbing.Hash) plumbing.Hash {
	r.t.Helper()
	entries := make(map[string]object.TreeEntry, len(files))
	for path, content := range files {
		hash, err := r.store.WriteBlob([]byte(content))
		if err != nil {
			r.t.Fatalf("write blob: %v", err)
		}
		entries[path] = object.TreeEntry{Name: path, Mode: filemode.Regular, Hash: hash}
	}
	tree, err := r.store.BuildTree(entries)
	if err != nil {
		r.t.Fatalf("build tree: %v", err)
	}
	commit, err := r.store.Commit(tree, parents, "test commit")
	if err != nil {
		r.t.Fatalf("commit: %v", err)
	}
	return commit
}

func (r *rig) setIncoming(commit plumbing.Hash) {
	r.t.Helper()
	if err := r.store.UpdateRef(history.IncomingRef, commit, plumbing.ZeroHash); err != nil {
		r.t.Fatalf("set incoming ref: %v", err)
	}
}

func (r *rig) syncHead() plumbing.Hash {
	r.t.Helper()
	hash, ok, err := r.store.ResolveRef(history.SyncRef)
	if err != nil {
		r.t.Fatalf("resolve sync ref: %v", err)
	}
	if !ok {
		r.t.Fatal("sync ref not set")
	}
	return hash
}

// headFiles reads back path-to-content for the sync ref's tree.
func (r *rig) headFiles() map[string]string {
	r.t.Helper()
	tree, err := r.store.TreeOf(r.syncHead())
	if err != nil {
		r.t.Fatalf("tree of head: %v", err)
	}
	entries, err := r.store.TreeEntries(tree)
	if err != nil {
		r.t.Fatalf("tree entries: %v", err)
	}
	files := make(map[string]string, len(entries))
	for path, entry := range entries {
		data, err := r.store.ReadBlob(entry.Hash)
		if err != nil {
			r.t.Fatalf("read blob: %v", err)
		}
		files[path] = string(data)
	}
	return files
}

func (r *rig) parentsOf(commit plumbing.Hash) []plumbing.Hash {
	r.t.Helper()
	obj, err := r.repo.CommitObject(commit)
	if err != nil {
		r.t.Fatalf("commit object: %v", err)
	}
	return obj.ParentHashes
}

func (r *rig) diskFile(path string) (string, bool) {
	r.t.Helper()
	data, err := os.ReadFile(filepath.Join(r.items.Root(), filepath.FromSlash(path)))
	if errors.Is(err, os.ErrNotExist) {
		return "", false
	}
	if err != nil {
		r.t.Fatalf("read disk file: %v", err)
	}
	return string(data), true
}

func wantFiles(t *testing.T, got, want map[string]string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d files %v, want %d %v", len(got), got, len(want), want)
	}
	for path, content := range want {
		if got[path] != content {
			t.Errorf("file %q = %q, want %q", path, got[path], content)
		}
	}
}

func TestRunCommitsLocalStateWithoutRemote(t *testing.T) {
	r := newRig(t)
	r.writeItem("ops", "restart the cache\n", false)
	r.run()

	head := r.syncHead()
	if got := r.parentsOf(head); len(got) != 0 {
		t.Fatalf("first commit has %d parents, want 0", len(got))
	}
	wantFiles(t, r.headFiles(), map[string]string{"ops/note.md": "restart the cache\n"})
	if content, ok := r.diskFile("ops/note.md"); !ok || content != "restart the cache\n" {
		t.Fatalf("note not preserved on disk: %q %v", content, ok)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	r := newRig(t)
	r.writeItem("ops", "note\n", false)
	r.run()
	first := r.syncHead()

	r.run()
	if second := r.syncHead(); second != first {
		t.Fatalf("second run moved the sync ref from %s to %s", first, second)
	}
}

func TestRunCommitsIncrementalEdit(t *testing.T) {
	r := newRig(t)
	r.writeItem("ops", "v1\n", false)
	r.run()
	first := r.syncHead()

	r.writeItem("ops", "v2\n", false)
	r.run()
	second := r.syncHead()
	if second == first {
		t.Fatal("edit did not produce a new commit")
	}
	if got := r.parentsOf(second); len(got) != 1 || got[0] != first {
		t.Fatalf("parents = %v, want [%s]", got, first)
	}
	wantFiles(t, r.headFiles(), map[string]string{"ops/note.md": "v2\n"})
}

func TestRunAdoptsRemoteOnFirstSync(t *testing.T) {
	r := newRig(t)
	remote := r.commitFiles(map[string]string{"dx/note.md": "from peer\n"})
	r.setIncoming(remote)
	r.run()

	if head := r.syncHead(); head != remote {
		t.Fatalf("sync ref = %s, want adopted remote %s", head, remote)
	}
	if content, ok := r.diskFile("dx/note.md"); !ok || content != "from peer\n" {
		t.Fatalf("remote item not materialized: %q %v", content, ok)
	}
	if _, ok, _ := r.store.ResolveRef(history.IncomingRef); ok {
		t.Fatal("incoming ref not cleaned up")
	}
}

func TestRunFastForwardsToRemote(t *testing.T) {
	r := newRig(t)
	base := r.commitFiles(map[string]string{"ops/note.md": "v1\n"})
	ahead := r.commitFiles(map[string]string{"ops/note.md": "v1\n", "dx/note.md": "new\n"}, base)
	if err := r.store.UpdateRef(history.SyncRef, base, plumbing.ZeroHash); err != nil {
		t.Fatalf("seed sync ref: %v", err)
	}
	r.writeItem("ops", "v1\n", false)
	r.setIncoming(ahead)
	r.run()

	if head := r.syncHead(); head != ahead {
		t.Fatalf("sync ref = %s, want fast-forwarded %s", head, ahead)
	}
	if content, ok := r.diskFile("dx/note.md"); !ok || content != "new\n" {
		t.Fatalf("fast-forwarded item missing on disk: %q %v", content, ok)
	}
}

func TestRunKeepsLocalWhenRemoteIsBehind(t *testing.T) {
	r := newRig(t)
	base := r.commitFiles(map[string]string{"ops/note.md": "v1\n"})
	ahead := r.commitFiles(map[string]string{"ops/note.md": "v2\n"}, base)
	if err := r.store.UpdateRef(history.SyncRef, ahead, plumbing.ZeroHash); err != nil {
		t.Fatalf("seed sync ref: %v", err)
	}
	r.writeItem("ops", "v2\n", false)
	r.setIncoming(base)
	r.run()

	if head := r.syncHead(); head != ahead {
		t.Fatalf("sync ref = %s, want unchanged %s", head, ahead)
	}
}

func TestRunMergesUnrelatedHistories(t *testing.T) {
	// One peer has alpha (done) and beta, the other alpha (open) and
	// gamma. The union survives with the local alpha winning whole.
	r := newRig(t)
	remote := r.commitFiles(map[string]string{
		"alpha/note.md": "remote alpha\n",
		"gamma/note.md": "gamma\n",
	})
	r.writeItem("alpha", "local alpha\n", true)
	r.writeItem("beta", "beta\n", false)
	r.setIncoming(remote)
	r.run()

	head := r.syncHead()
	parents := r.parentsOf(head)
	if len(parents) != 2 {
		t.Fatalf("merge commit has %d parents, want 2", len(parents))
	}
	if parents[1] != remote {
		t.Fatalf("second parent = %s, want remote %s", parents[1], remote)
	}
	wantFiles(t, r.headFiles(), map[string]string{
		"alpha/note.md": "local alpha\n",
		"alpha/done":    "",
		"beta/note.md":  "beta\n",
		"gamma/note.md": "gamma\n",
	})
	if _, ok := r.diskFile("alpha/done"); !ok {
		t.Fatal("done marker lost during merge")
	}
	if content, ok := r.diskFile("gamma/note.md"); !ok || content != "gamma\n" {
		t.Fatalf("remote-only item not materialized: %q %v", content, ok)
	}
}

func TestRunMergesDivergedHistories(t *testing.T) {
	r := newRig(t)
	base := r.commitFiles(map[string]string{"ops/note.md": "v0\n"})
	local := r.commitFiles(map[string]string{"ops/note.md": "local\n"}, base)
	remote := r.commitFiles(map[string]string{"ops/note.md": "v0\n", "dx/note.md": "dx\n"}, base)
	if err := r.store.UpdateRef(history.SyncRef, local, plumbing.ZeroHash); err != nil {
		t.Fatalf("seed sync ref: %v", err)
	}
	r.writeItem("ops", "local\n", false)
	r.setIncoming(remote)
	r.run()

	head := r.syncHead()
	parents := r.parentsOf(head)
	if len(parents) != 2 || parents[0] != local || parents[1] != remote {
		t.Fatalf("parents = %v, want [%s %s]", parents, local, remote)
	}
	wantFiles(t, r.headFiles(), map[string]string{
		"ops/note.md": "local\n",
		"dx/note.md":  "dx\n",
	})
}

func TestRunKeepsRemoteEditOfLocallyUntouchedItem(t *testing.T) {
	// Diverged histories where each side edited a different item. The
	// remote edit of ops must survive the merge even though ops is still
	// present locally; only the locally edited item takes the local side.
	r := newRig(t)
	base := r.commitFiles(map[string]string{
		"ops/note.md":   "v0\n",
		"notes/note.md": "n0\n",
	})
	local := r.commitFiles(map[string]string{
		"ops/note.md":   "v0\n",
		"notes/note.md": "local notes\n",
	}, base)
	remote := r.commitFiles(map[string]string{
		"ops/note.md":   "v1\n",
		"notes/note.md": "n0\n",
	}, base)
	if err := r.store.UpdateRef(history.SyncRef, local, plumbing.ZeroHash); err != nil {
		t.Fatalf("seed sync ref: %v", err)
	}
	r.writeItem("ops", "v0\n", false)
	r.writeItem("notes", "local notes\n", false)
	r.setIncoming(remote)
	r.run()

	head := r.syncHead()
	parents := r.parentsOf(head)
	if len(parents) != 2 || parents[0] != local || parents[1] != remote {
		t.Fatalf("parents = %v, want [%s %s]", parents, local, remote)
	}
	wantFiles(t, r.headFiles(), map[string]string{
		"ops/note.md":   "v1\n",
		"notes/note.md": "local notes\n",
	})
	if content, _ := r.diskFile("ops/note.md"); content != "v1\n" {
		t.Fatalf("disk ops note = %q, want remote edit materialized", content)
	}
}

func TestRunLocalEditWinsOverRemoteEdit(t *testing.T) {
	// Both sides edited the same item since the shared base. The local
	// version wins in full and exactly one merge commit appears.
	r := newRig(t)
	base := r.commitFiles(map[string]string{"ops/note.md": "v0\n"})
	remote := r.commitFiles(map[string]string{"ops/note.md": "remote edit\n"}, base)
	if err := r.store.UpdateRef(history.SyncRef, base, plumbing.ZeroHash); err != nil {
		t.Fatalf("seed sync ref: %v", err)
	}
	r.writeItem("ops", "local edit\n", false)
	r.setIncoming(remote)
	r.run()

	head := r.syncHead()
	if got := r.parentsOf(head); len(got) != 2 {
		t.Fatalf("head has %d parents, want merge commit with 2", len(got))
	}
	wantFiles(t, r.headFiles(), map[string]string{"ops/note.md": "local edit\n"})
	if content, _ := r.diskFile("ops/note.md"); content != "local edit\n" {
		t.Fatalf("disk note = %q, want local edit preserved", content)
	}
}

func TestRunPullsRemoteAdditionsIntoDirtyWorkingDir(t *testing.T) {
	r := newRig(t)
	remote := r.commitFiles(map[string]string{"dx/note.md": "dx\n"})
	r.writeItem("ops", "ops\n", false)
	r.setIncoming(remote)
	r.run()

	if content, ok := r.diskFile("dx/note.md"); !ok || content != "dx\n" {
		t.Fatalf("remote addition not pulled in: %q %v", content, ok)
	}
	if content, ok := r.diskFile("ops/note.md"); !ok || content != "ops\n" {
		t.Fatalf("local item lost: %q %v", content, ok)
	}
}

func TestRunPropagatesLocalDeletion(t *testing.T) {
	// Deleting an item on disk must not be undone by the reconcile step
	// just because the remote still carries it.
	r := newRig(t)
	base := r.commitFiles(map[string]string{
		"ops/note.md": "ops\n",
		"dx/note.md":  "dx\n",
	})
	if err := r.store.UpdateRef(history.SyncRef, base, plumbing.ZeroHash); err != nil {
		t.Fatalf("seed sync ref: %v", err)
	}
	r.writeItem("ops", "ops\n", false)
	r.setIncoming(base)
	r.run()

	wantFiles(t, r.headFiles(), map[string]string{"ops/note.md": "ops\n"})
	if _, ok := r.diskFile("dx/note.md"); ok {
		t.Fatal("deleted item resurrected on disk")
	}
}

func TestRunDeleteVersusEditConflictIsFatal(t *testing.T) {
	// A committed local deletion against a remote edit of the same item
	// cannot be resolved by the item policy and must abort the run.
	r := newRig(t)
	base := r.commitFiles(map[string]string{"ops/note.md": "v0\n"})
	deleted := r.commitFiles(map[string]string{}, base)
	remote := r.commitFiles(map[string]string{"ops/note.md": "remote edit\n"}, base)
	if err := r.store.UpdateRef(history.SyncRef, deleted, plumbing.ZeroHash); err != nil {
		t.Fatalf("seed sync ref: %v", err)
	}
	r.setIncoming(remote)

	err := r.engine.Run(context.Background())
	var conflict *history.Conflict
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want wrapped conflict", err)
	}
	if len(conflict.Paths) != 1 || conflict.Paths[0] != "ops/note.md" {
		t.Fatalf("conflict paths = %v, want [ops/note.md]", conflict.Paths)
	}
	if head := r.syncHead(); head != deleted {
		t.Fatalf("sync ref moved to %s after failed run", head)
	}
}

// flakyRemote wraps a real store and fails its network operations.
type flakyRemote struct {
	History
	fetchErr error
	pushErr  error
}

func (f *flakyRemote) Fetch(ctx context.Context, remote string) error {
	if f.fetchErr != nil {
		return f.fetchErr
	}
	return nil
}

func (f *flakyRemote) Push(ctx context.Context, remote string) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	return nil
}

func TestRunSurvivesRemoteFailures(t *testing.T) {
	r := newRig(t)
	r.writeItem("ops", "note\n", false)
	flaky := &flakyRemote{
		History:  r.store,
		fetchErr: &history.RemoteError{Op: "fetch", Err: errors.New("connection refused")},
		pushErr:  &history.RemoteError{Op: "push", Err: errors.New("connection refused")},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(r.items, flaky, "origin", logger)

	if err := engine.Run(context.Background()); err != nil {
		t.Fatalf("run with unreachable remote: %v", err)
	}
	wantFiles(t, r.headFiles(), map[string]string{"ops/note.md": "note\n"})
}

func TestRunFatalFetchErrorAborts(t *testing.T) {
	r := newRig(t)
	flaky := &flakyRemote{
		History:  r.store,
		fetchErr: errors.New("repository corrupt"),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(r.items, flaky, "origin", logger)

	if err := engine.Run(context.Background()); err == nil {
		t.Fatal("expected fatal error, got nil")
	}
}

func TestReconcileItems(t *testing.T) {
	entryFor := func(tag byte) object.TreeEntry {
		var hash plumbing.Hash
		hash[0] = tag
		return object.TreeEntry{Mode: filemode.Regular, Hash: hash}
	}
	local := map[string]object.TreeEntry{
		"alpha/note.md": entryFor('a'),
		"alpha/done":    entryFor('d'),
		"beta/note.md":  entryFor('b'),
	}
	remote := map[string]object.TreeEntry{
		"alpha/note.md": entryFor('x'),
		"alpha/extra":   entryFor('e'),
		"gamma/note.md": entryFor('g'),
	}

	got := ReconcileItems(nil, local, remote, []string{"alpha", "beta"})

	want := map[string]plumbing.Hash{
		"alpha/note.md": local["alpha/note.md"].Hash,
		"alpha/done":    local["alpha/done"].Hash,
		"beta/note.md":  local["beta/note.md"].Hash,
		"gamma/note.md": remote["gamma/note.md"].Hash,
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d: %v", len(got), len(want), got)
	}
	for path, hash := range want {
		if got[path].Hash != hash {
			t.Errorf("entry %q = %v, want %v", path, got[path].Hash, hash)
		}
	}
	if _, ok := got["alpha/extra"]; ok {
		t.Error("remote-only file of a locally present item survived")
	}
}

func TestReconcileItemsDoesNotRestoreDeletedItems(t *testing.T) {
	entryFor := func(tag byte) object.TreeEntry {
		var hash plumbing.Hash
		hash[0] = tag
		return object.TreeEntry{Mode: filemode.Regular, Hash: hash}
	}
	base := map[string]object.TreeEntry{
		"ops/note.md": entryFor('o'),
		"dx/note.md":  entryFor('d'),
	}
	local := map[string]object.TreeEntry{
		"ops/note.md": entryFor('o'),
	}
	remote := map[string]object.TreeEntry{
		"ops/note.md": entryFor('o'),
		"dx/note.md":  entryFor('d'),
		"new/note.md": entryFor('n'),
	}

	got := ReconcileItems(base, local, remote, []string{"ops"})
	if _, ok := got["dx/note.md"]; ok {
		t.Error("locally deleted item restored from remote")
	}
	if _, ok := got["new/note.md"]; !ok {
		t.Error("genuinely new remote item dropped")
	}
}

func TestReconcileItemsNestedItemsStayIndependent(t *testing.T) {
	entryFor := func(tag byte) object.TreeEntry {
		var hash plumbing.Hash
		hash[0] = tag
		return object.TreeEntry{Mode: filemode.Regular, Hash: hash}
	}
	local := map[string]object.TreeEntry{
		"dx/note.md": entryFor('a'),
	}
	remote := map[string]object.TreeEntry{
		"dx/go/note.md": entryFor('g'),
	}

	got := ReconcileItems(nil, local, remote, []string{"dx"})
	if _, ok := got["dx/go/note.md"]; !ok {
		t.Fatal("remote child item suppressed by its parent item")
	}
	if got["dx/note.md"].Hash != local["dx/note.md"].Hash {
		t.Fatal("local parent item lost")
	}
}

func TestMaterializeSwapsCleanly(t *testing.T) {
	// Leftover staging and backup directories from an interrupted run are
	// replaced, old contents are gone, and only the target tree remains.
	r := newRig(t)
	commit := r.commitFiles(map[string]string{"ops/note.md": "v1\n"})
	tree, err := r.store.TreeOf(commit)
	if err != nil {
		t.Fatalf("tree of commit: %v", err)
	}

	root := r.items.Root()
	r.writeItem("stale", "old state\n", false)
	for _, dir := range []string{root + ".staging", root + ".old"} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "junk"), []byte("junk"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := r.engine.materialize(tree); err != nil {
		t.Fatalf("materialize: %v", err)
	}

	if content, _ := r.diskFile("ops/note.md"); content != "v1\n" {
		t.Fatalf("note = %q, want materialized tree", content)
	}
	if _, ok := r.diskFile("stale/note.md"); ok {
		t.Error("previous directory contents survived the swap")
	}
	for _, dir := range []string{root + ".staging", root + ".old"} {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("residue directory %s left behind", dir)
		}
	}
}

func TestMergeRemoteView(t *testing.T) {
	entryFor := func(tag byte) object.TreeEntry {
		var hash plumbing.Hash
		hash[0] = tag
		return object.TreeEntry{Mode: filemode.Regular, Hash: hash}
	}
	base := map[string]object.TreeEntry{
		"ops/note.md":   entryFor('1'),
		"notes/note.md": entryFor('2'),
		"gone/note.md":  entryFor('3'),
	}
	local := map[string]object.TreeEntry{
		"ops/note.md":   entryFor('1'), // untouched since base
		"notes/note.md": entryFor('L'), // edited locally
		// gone deleted locally
	}
	remote := map[string]object.TreeEntry{
		"ops/note.md":   entryFor('R'), // edited only remotely
		"notes/note.md": entryFor('X'), // edited on both sides
		"gone/note.md":  entryFor('G'),
	}

	got := mergeRemoteView(base, local, remote)

	if got["ops/note.md"].Hash != remote["ops/note.md"].Hash {
		t.Error("remote edit of a locally untouched item was suppressed")
	}
	if got["notes/note.md"].Hash != local["notes/note.md"].Hash {
		t.Error("both-edited item did not resolve to the local version")
	}
	if got["gone/note.md"].Hash != remote["gone/note.md"].Hash {
		t.Error("locally deleted item missing from the merge view; the merge must see it")
	}
}

func TestMergeRemoteViewWithoutBaseTakesLocalItems(t *testing.T) {
	entryFor := func(tag byte) object.TreeEntry {
		var hash plumbing.Hash
		hash[0] = tag
		return object.TreeEntry{Mode: filemode.Regular, Hash: hash}
	}
	local := map[string]object.TreeEntry{
		"alpha/note.md": entryFor('a'),
	}
	remote := map[string]object.TreeEntry{
		"alpha/note.md": entryFor('x'),
		"alpha/extra":   entryFor('e'),
		"beta/note.md":  entryFor('b'),
	}

	got := mergeRemoteView(nil, local, remote)

	if got["alpha/note.md"].Hash != local["alpha/note.md"].Hash {
		t.Error("unrelated histories: locally present item did not take the local version")
	}
	if _, ok := got["alpha/extra"]; ok {
		t.Error("remote-only file of a locally present item survived")
	}
	if got["beta/note.md"].Hash != remote["beta/note.md"].Hash {
		t.Error("remote-only item dropped")
	}
}
