// Package handles issues revocable display handles over processed image payloads.
//
// A handle is an opaque token resolvable to bytes until it is revoked. Each item owns
// at most one live handle; every revocation goes through revokeLocked so a handle is
// released exactly once whichever path (replacement, deletion, clear, teardown) gets there first.
package handles

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrRevoked = errors.New("handle revoked or unknown")

const pathPrefix = "/handles/"

type entry struct {
	itemID      string
	token       string
	data        []byte
	contentType string
}

type Stats struct {
	Minted  int
	Revoked int
	Live    int
}

type Registry struct {
	mu      sync.Mutex
	byItem  map[string]*entry
	byToken map[string]*entry
	minted  int
	revoked int
	logger  *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		byItem:  make(map[string]*entry),
		byToken: make(map[string]*entry),
		logger:  logger,
	}
}

// Mint creates a handle for the item, revoking the one it supersedes.
func (r *Registry) Mint(itemID string, data []byte, contentType string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.revokeLocked(itemID)

	e := &entry{
		itemID:      itemID,
		token:       uuid.NewString(),
		data:        data,
		contentType: contentType,
	}
	r.byItem[itemID] = e
	r.byToken[e.token] = e
	r.minted++

	return pathPrefix + e.token
}

// Revoke releases the handle owned by the item. Unknown items are a no-op.
func (r *Registry) Revoke(itemID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revokeLocked(itemID)
}

// RevokeAll releases every outstanding handle and returns how many were live.
func (r *Registry) RevokeAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for itemID := range r.byItem {
		if r.revokeLocked(itemID) {
			n++
		}
	}
	return n
}

// Resolve returns the payload behind a live handle token.
func (r *Registry) Resolve(token string) ([]byte, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byToken[token]
	if !ok {
		return nil, "", ErrRevoked
	}
	return e.data, e.contentType, nil
}

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{Minted: r.minted, Revoked: r.revoked, Live: len(r.byToken)}
}

func (r *Registry) revokeLocked(itemID string) bool {
	e, ok := r.byItem[itemID]
	if !ok {
		return false
	}
	delete(r.byItem, itemID)
	delete(r.byToken, e.token)
	e.data = nil
	r.revoked++

	r.logger.Debug("Handle revoked",
		zap.String("item_id", itemID),
		zap.String("token", e.token),
	)
	return true
}

// Token extracts the token part of a handle URL.
func Token(handle string) string {
	return strings.TrimPrefix(handle, pathPrefix)
}
