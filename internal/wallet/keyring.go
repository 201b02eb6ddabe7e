package wallet

import (
	"strings"
	"sync"
)

// Keyring holds private keys for the lifetime of the process, keyed by
// address. Keys enter it when a wallet is generated and leave it zeroed.
// It exists so the dispatcher can sign transfers without key material ever
// appearing in tool arguments, logs, or persisted conversation turns.
type Keyring struct {
	mu   sync.Mutex
	keys map[string][]byte
}

// NewKeyring creates an empty keyring.
func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[string][]byte)}
}

// Put stores a copy of the key for an address. The caller keeps ownership
// of its own slice.
func (r *Keyring) Put(address string, key []byte) {
	cp := make([]byte, len(key))
	copy(cp, key)

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.keys[normalize(address)]; ok {
		zero(old)
	}
	r.keys[normalize(address)] = cp
}

// Get returns a copy of the key for an address. The caller must zero the
// copy when done.
func (r *Keyring) Get(address string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.keys[normalize(address)]
	if !ok {
		return nil, false
	}
	cp := make([]byte, len(key))
	copy(cp, key)
	return cp, true
}

// Remove zeroes and forgets the key for an address.
func (r *Keyring) Remove(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if key, ok := r.keys[normalize(address)]; ok {
		zero(key)
		delete(r.keys, normalize(address))
	}
}

// Close zeroes and forgets every key.
func (r *Keyring) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for addr, key := range r.keys {
		zero(key)
		delete(r.keys, addr)
	}
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
