package handles

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

func (r *Registry) live(handle string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.byToken[Token(handle)]
	return ok
}

func TestRegistry_MintResolve(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))

	h := r.Mint("item-1", []byte("png"), "image/png")
	if !strings.HasPrefix(h, "/handles/") {
		t.Fatalf("Unexpected handle format: %s", h)
	}

	data, ct, err := r.Resolve(Token(h))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if string(data) != "png" || ct != "image/png" {
		t.Errorf("Unexpected payload %q %q", data, ct)
	}
}

func TestRegistry_MintReplacesAndRevokesPrevious(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))

	first := r.Mint("item-1", []byte("a"), "image/png")
	second := r.Mint("item-1", []byte("b"), "image/png")

	if first == second {
		t.Fatal("Expected a fresh handle on replacement")
	}
	if r.live(first) {
		t.Error("Superseded handle still live")
	}
	if !r.live(second) {
		t.Error("New handle not live")
	}

	stats := r.Stats()
	if stats.Minted != 2 || stats.Revoked != 1 || stats.Live != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestRegistry_RevokeExactlyOnce(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	h := r.Mint("item-1", []byte("a"), "image/png")

	if !r.Revoke("item-1") {
		t.Fatal("First revoke should report a release")
	}
	if r.Revoke("item-1") {
		t.Error("Second revoke must be a no-op")
	}
	if r.RevokeAll() != 0 {
		t.Error("RevokeAll after revoke must find nothing live")
	}
	if r.Revoke("never-minted") {
		t.Error("Revoking an unknown item must be a no-op")
	}

	if r.live(h) {
		t.Error("Revoked handle still live")
	}
	if _, _, err := r.Resolve(Token(h)); !errors.Is(err, ErrRevoked) {
		t.Errorf("Expected ErrRevoked, got %v", err)
	}
	if got := r.Stats().Revoked; got != 1 {
		t.Errorf("Expected exactly one revocation, got %d", got)
	}
}

func TestRegistry_RevokeAll(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	r.Mint("a", []byte("a"), "image/png")
	r.Mint("b", []byte("b"), "image/png")
	r.Revoke("a")

	if n := r.RevokeAll(); n != 1 {
		t.Errorf("Expected 1 outstanding handle revoked, got %d", n)
	}
	if n := r.RevokeAll(); n != 0 {
		t.Errorf("Expected second RevokeAll to be a no-op, got %d", n)
	}

	stats := r.Stats()
	if stats.Live != 0 || stats.Revoked != 2 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}
