package auth

import (
	"bytes"
	"testing"
)

func TestHashDerivationsAreDomainSeparated(t *testing.T) {
	// The same raw string hashed under different prefixes must never
	// collide across namespaces.
	user := ComputeUserIDHash("alice")
	realm := ComputeRealmHash("alice")
	delegate := ComputeDelegateIDHash("alice")

	if bytes.Equal(user, realm) || bytes.Equal(user, delegate) || bytes.Equal(realm, delegate) {
		t.Error("derivations for different namespaces collided")
	}
	for _, h := range [][]byte{user, realm, delegate} {
		if len(h) != 32 {
			t.Errorf("derived hash length = %d, want 32", len(h))
		}
	}
}

func TestComputeScopeHashPermutationInvariant(t *testing.T) {
	a := ComputeScopeHash([]string{"hash_x", "hash_y", "hash_z"})
	b := ComputeScopeHash([]string{"hash_z", "hash_x", "hash_y"})
	if !bytes.Equal(a, b) {
		t.Error("scope hash must not depend on root ordering")
	}

	if bytes.Equal(a, ComputeScopeHash([]string{"hash_x", "hash_y"})) {
		t.Error("different root sets produced the same scope hash")
	}
}

func TestComputeScopeHashEmptyAndSingle(t *testing.T) {
	empty := ComputeScopeHash(nil)
	if !bytes.Equal(empty, ComputeScopeHash([]string{})) {
		t.Error("nil and empty slice must hash identically")
	}
	single := ComputeScopeHash([]string{"hash_x"})
	if bytes.Equal(empty, single) {
		t.Error("empty scope collided with a single-root scope")
	}
}

func TestConstantTimeEqualHex(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"equal", "deadbeef", "deadbeef", true},
		{"different", "deadbeef", "deadbeff", false},
		{"length mismatch", "deadbeef", "deadbee", false},
		{"both empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConstantTimeEqualHex(tt.a, tt.b); got != tt.want {
				t.Errorf("ConstantTimeEqualHex(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestPossessionKeyIsDeterministicPerDelegate(t *testing.T) {
	key1, err := PossessionKey("realm-a", "dlt_ONE")
	if err != nil {
		t.Fatal(err)
	}
	key2, err := PossessionKey("realm-a", "dlt_ONE")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(key1, key2) {
		t.Error("possession key must be deterministic")
	}
	if len(key1) != 32 {
		t.Errorf("possession key length = %d, want 32", len(key1))
	}

	otherDelegate, err := PossessionKey("realm-a", "dlt_TWO")
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(key1, otherDelegate) {
		t.Error("different delegates must derive different keys")
	}

	otherRealm, err := PossessionKey("realm-b", "dlt_ONE")
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(key1, otherRealm) {
		t.Error("different realms must derive different keys")
	}
}

func TestPossessionTag(t *testing.T) {
	key, err := PossessionKey("realm-a", "dlt_ONE")
	if err != nil {
		t.Fatal(err)
	}
	content := []byte("some node content")

	tag1, err := PossessionTag(key, content)
	if err != nil {
		t.Fatal(err)
	}
	tag2, err := PossessionTag(key, content)
	if err != nil {
		t.Fatal(err)
	}
	if tag1 != tag2 {
		t.Error("possession tag must be deterministic over the same key and content")
	}

	otherContent, err := PossessionTag(key, []byte("other content"))
	if err != nil {
		t.Fatal(err)
	}
	if tag1 == otherContent {
		t.Error("different content produced the same tag")
	}

	otherKey, err := PossessionKey("realm-a", "dlt_TWO")
	if err != nil {
		t.Fatal(err)
	}
	otherKeyTag, err := PossessionTag(otherKey, content)
	if err != nil {
		t.Fatal(err)
	}
	if tag1 == otherKeyTag {
		t.Error("a tag computed under one delegate's key verified under another's")
	}
}
