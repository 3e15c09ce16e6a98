package claim

import (
	"path/filepath"
	"testing"

	"casgate/internal/auth"
	"casgate/internal/constants"
	"casgate/internal/dag"
	"casgate/internal/database"
	"casgate/internal/logger"
)

func newTestService(t *testing.T) (*Service, *dag.Store) {
	t.Helper()
	db, err := database.InitStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to init test store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	nodes := dag.NewStore(db)
	return NewService(nodes, NewStore(db), logger.New(logger.LevelError)), nodes
}

func delegateContext(id string) *auth.Context {
	return &auth.Context{
		Type:        auth.ContextTypeDelegate,
		Realm:       "realm-a",
		DelegateID:  id,
		Delegate:    &auth.Delegate{DelegateID: id},
		IssuerChain: []string{"dlt_ROOT", id},
	}
}

func possessionTag(t *testing.T, realm, delegateID string, content []byte) string {
	t.Helper()
	key, err := auth.PossessionKey(realm, delegateID)
	if err != nil {
		t.Fatal(err)
	}
	tag, err := auth.PossessionTag(key, content)
	if err != nil {
		t.Fatal(err)
	}
	return tag
}

func TestSubmitAcceptsValidTag(t *testing.T) {
	svc, nodes := newTestService(t)
	content := []byte("the actual bytes")
	node, err := nodes.Put("realm-a", content, nil)
	if err != nil {
		t.Fatal(err)
	}

	capCtx := delegateContext("dlt_CLAIMER")
	tag := possessionTag(t, "realm-a", "dlt_CLAIMER", content)

	if err := svc.Submit(capCtx, node.Hash, tag); err != nil {
		t.Fatalf("valid claim rejected: %v", err)
	}

	owns, err := svc.Ownership().Owns("realm-a", node.Hash, "dlt_CLAIMER")
	if err != nil {
		t.Fatal(err)
	}
	if !owns {
		t.Error("accepted claim did not record ownership")
	}
}

func TestSubmitRejectsWrongTag(t *testing.T) {
	svc, nodes := newTestService(t)
	node, err := nodes.Put("realm-a", []byte("the actual bytes"), nil)
	if err != nil {
		t.Fatal(err)
	}

	capCtx := delegateContext("dlt_CLAIMER")
	wrongTag := possessionTag(t, "realm-a", "dlt_CLAIMER", []byte("guessed bytes"))

	err = svc.Submit(capCtx, node.Hash, wrongTag)
	authErr, ok := auth.AsError(err)
	if !ok || authErr.Code != constants.ErrCodeClaimRejected {
		t.Errorf("got %v, want %s", err, constants.ErrCodeClaimRejected)
	}

	owns, err := svc.Ownership().Owns("realm-a", node.Hash, "dlt_CLAIMER")
	if err != nil {
		t.Fatal(err)
	}
	if owns {
		t.Error("rejected claim recorded ownership")
	}
}

func TestSubmitTagIsDelegateBound(t *testing.T) {
	svc, nodes := newTestService(t)
	content := []byte("shared content")
	node, err := nodes.Put("realm-a", content, nil)
	if err != nil {
		t.Fatal(err)
	}

	// A tag minted under one delegate's key must not verify for another.
	stolenTag := possessionTag(t, "realm-a", "dlt_HONEST", content)
	err = svc.Submit(delegateContext("dlt_THIEF"), node.Hash, stolenTag)
	authErr, ok := auth.AsError(err)
	if !ok || authErr.Code != constants.ErrCodeClaimRejected {
		t.Errorf("replayed tag: got %v, want %s", err, constants.ErrCodeClaimRejected)
	}
}

func TestSubmitUnknownNode(t *testing.T) {
	svc, _ := newTestService(t)
	capCtx := delegateContext("dlt_CLAIMER")

	err := svc.Submit(capCtx, dag.ComputeNodeHash([]byte("never uploaded")), "00")
	authErr, ok := auth.AsError(err)
	if !ok || authErr.Code != constants.ErrCodeNodeNotFound {
		t.Errorf("got %v, want %s", err, constants.ErrCodeNodeNotFound)
	}
}

func TestSubmitEmptyNodeIsFree(t *testing.T) {
	svc, _ := newTestService(t)
	// No tag needed: the empty node is universally possessed.
	if err := svc.Submit(delegateContext("dlt_ANY"), dag.EmptyNodeHash, ""); err != nil {
		t.Errorf("empty-node claim failed: %v", err)
	}
}

func TestRecordFirstAcquisitionWins(t *testing.T) {
	svc, nodes := newTestService(t)
	node, err := nodes.Put("realm-a", []byte("x"), nil)
	if err != nil {
		t.Fatal(err)
	}

	store := svc.Ownership()
	if err := store.Record("realm-a", node.Hash, "dlt_A", ViaUpload); err != nil {
		t.Fatal(err)
	}
	if err := store.Record("realm-a", node.Hash, "dlt_A", ViaClaim); err != nil {
		t.Fatalf("re-record must be a no-op, got %v", err)
	}

	count, err := store.CountOwned("realm-a", "dlt_A")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("owned count = %d, want 1", count)
	}
}
