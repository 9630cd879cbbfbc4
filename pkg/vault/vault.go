// Package vault holds in-memory credential values scoped to an account, with
// optional expiry. Values never leave process memory; persistence and
// encryption at rest live outside the bus.
package vault

import (
	"sync"
	"time"
)

type key struct {
	account string
	name    string
}

type entry struct {
	value   string
	expires time.Time // zero means no expiry
}

// Vault is an in-memory credential store for the privileged context.
type Vault struct {
	mu     sync.Mutex
	values map[key]entry
	now    func() time.Time
}

// New creates an empty vault.
func New() *Vault {
	return &Vault{values: make(map[key]entry), now: time.Now}
}

// Set stores a value for (account, name). A ttl of zero means the value
// never expires.
func (v *Vault) Set(account, name, value string, ttl time.Duration) {
	e := entry{value: value}
	if ttl > 0 {
		e.expires = v.now().Add(ttl)
	}
	v.mu.Lock()
	v.values[key{account, name}] = e
	v.mu.Unlock()
}

// Get returns the value for (account, name). Expired values are removed and
// reported as absent.
func (v *Vault) Get(account, name string) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	k := key{account, name}
	e, ok := v.values[k]
	if !ok {
		return "", false
	}
	if !e.expires.IsZero() && v.now().After(e.expires) {
		delete(v.values, k)
		return "", false
	}
	return e.value, true
}

// Delete removes the value for (account, name).
func (v *Vault) Delete(account, name string) {
	v.mu.Lock()
	delete(v.values, key{account, name})
	v.mu.Unlock()
}
