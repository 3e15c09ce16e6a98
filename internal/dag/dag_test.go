package dag

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"casgate/internal/constants"
	"casgate/internal/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.InitStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to init test store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func fakeHash(seed byte) string {
	return strings.Repeat(string(rune('a'+seed%6)), constants.HashLength)
}

func TestComputeNodeHash(t *testing.T) {
	if got := ComputeNodeHash(nil); got != EmptyNodeHash {
		t.Errorf("hash of empty content = %s, want the well-known empty hash", got)
	}
	if ComputeNodeHash([]byte("a")) == ComputeNodeHash([]byte("b")) {
		t.Error("different content hashed identically")
	}
	if len(ComputeNodeHash([]byte("x"))) != constants.HashLength {
		t.Error("node hash is not 64 hex chars")
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	content := []byte("leaf content")

	node, err := store.Put("realm-a", content, nil)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if node.Hash != ComputeNodeHash(content) {
		t.Error("stored hash does not match content")
	}
	if !node.IsLeaf() {
		t.Error("node with no children must be a leaf")
	}

	got, err := store.Get("realm-a", node.Hash)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("stored node not found")
	}
	if !bytes.Equal(got.Content, content) {
		t.Error("content lost in round trip")
	}
	if got.Size != int64(len(content)) {
		t.Errorf("size = %d, want %d", got.Size, len(content))
	}
	if len(got.Children) != 0 {
		t.Errorf("leaf children = %v, want empty", got.Children)
	}
}

func TestPutIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	content := []byte("same content")

	first, err := store.Put("realm-a", content, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.Put("realm-a", content, nil)
	if err != nil {
		t.Fatalf("re-inserting identical content must succeed: %v", err)
	}
	if first.Hash != second.Hash {
		t.Error("idempotent insert changed the hash")
	}
}

func TestPutInteriorNode(t *testing.T) {
	store := newTestStore(t)
	childA, err := store.Put("realm-a", []byte("child a"), nil)
	if err != nil {
		t.Fatal(err)
	}
	childB, err := store.Put("realm-a", []byte("child b"), nil)
	if err != nil {
		t.Fatal(err)
	}

	parent, err := store.Put("realm-a", []byte("parent"), []string{childA.Hash, childB.Hash})
	if err != nil {
		t.Fatalf("Put interior: %v", err)
	}

	children, found, err := store.ResolveChildren("realm-a", parent.Hash)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("interior node not found")
	}
	if len(children) != 2 || children[0] != childA.Hash || children[1] != childB.Hash {
		t.Errorf("children = %v, order must be preserved", children)
	}
}

func TestPutRejectsBadInput(t *testing.T) {
	store := newTestStore(t)

	tooMany := make([]string, constants.MaxNodeChildren+1)
	for i := range tooMany {
		tooMany[i] = fakeHash(byte(i))
	}

	tests := []struct {
		name     string
		content  []byte
		children []string
	}{
		{"too many children", []byte("x"), tooMany},
		{"malformed child hash", []byte("x"), []string{"not-a-hash"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Put("realm-a", tt.content, tt.children); err == nil {
				t.Error("expected rejection")
			}
		})
	}
}

func TestRealmIsolation(t *testing.T) {
	store := newTestStore(t)
	node, err := store.Put("realm-a", []byte("private"), nil)
	if err != nil {
		t.Fatal(err)
	}

	got, err := store.Get("realm-b", node.Hash)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("node visible across realm boundary")
	}

	_, found, err := store.ResolveChildren("realm-b", node.Hash)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("node resolvable across realm boundary")
	}
}

func TestExists(t *testing.T) {
	store := newTestStore(t)
	node, err := store.Put("realm-a", []byte("here"), nil)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := store.Exists("realm-a", node.Hash)
	if err != nil || !ok {
		t.Errorf("Exists = %v, %v, want true", ok, err)
	}
	ok, err = store.Exists("realm-a", fakeHash(1))
	if err != nil || ok {
		t.Errorf("Exists for absent hash = %v, %v, want false", ok, err)
	}
}

var _ Resolver = (*Store)(nil)
