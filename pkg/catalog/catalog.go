// Package catalog defines the fixed wire contract: the set of message names
// with their payload/response shapes and the protocol version each requires.
// Adding a capability means adding one entry here plus one registration.
package catalog

import (
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"
)

// Built-in message names.
const (
	NamePing            = "bus.ping"
	NameSetStyle        = "ui.setStyle"
	NameAddClass        = "ui.addClass"
	NameRemoveClass     = "ui.removeClass"
	NameAuthDialog      = "auth.openDialog"
	NameCredentialGet   = "credential.get"
	NameCredentialSet   = "credential.set"
	NameAttachmentChunk = "attachment.chunk"
)

// Entry describes one message name of the wire contract.
type Entry struct {
	Name string
	// MinProto is a semver constraint the sender's protocol version must
	// satisfy, e.g. ">=1.0.0".
	MinProto string
	// Responds is true when the message expects a response envelope.
	Responds bool
}

// Catalog is the set of known entries. Register after startup is allowed and
// last-writer-wins, matching handler registration.
type Catalog struct {
	mu      sync.Mutex
	entries map[string]entry
}

type entry struct {
	Entry
	constraint *semver.Constraints
}

// New creates a catalog pre-populated with the built-in contract.
func New() *Catalog {
	c := &Catalog{entries: make(map[string]entry)}
	for _, e := range []Entry{
		{Name: NamePing, MinProto: ">=1.0.0", Responds: true},
		{Name: NameSetStyle, MinProto: ">=1.0.0"},
		{Name: NameAddClass, MinProto: ">=1.0.0"},
		{Name: NameRemoveClass, MinProto: ">=1.0.0"},
		{Name: NameAuthDialog, MinProto: ">=1.1.0", Responds: true},
		{Name: NameCredentialGet, MinProto: ">=1.1.0", Responds: true},
		{Name: NameCredentialSet, MinProto: ">=1.1.0", Responds: true},
		{Name: NameAttachmentChunk, MinProto: ">=1.2.0", Responds: true},
	} {
		if err := c.Register(e); err != nil {
			panic(err) // built-in constraints are static
		}
	}
	return c
}

// Register adds or replaces an entry.
func (c *Catalog) Register(e Entry) error {
	if e.Name == "" {
		return fmt.Errorf("catalog: entry name is required")
	}
	constraint, err := semver.NewConstraint(e.MinProto)
	if err != nil {
		return fmt.Errorf("catalog: invalid constraint %q for %s: %w", e.MinProto, e.Name, err)
	}
	c.mu.Lock()
	c.entries[e.Name] = entry{Entry: e, constraint: constraint}
	c.mu.Unlock()
	return nil
}

// Lookup returns the entry for a message name.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[name]
	return e.Entry, ok
}

// Compatible reports whether a sender speaking the given protocol version may
// use the named message. Unknown names and unparseable versions are
// compatible; the registry decides what to do with names it has no handler
// for.
func (c *Catalog) Compatible(name, proto string) bool {
	c.mu.Lock()
	e, ok := c.entries[name]
	c.mu.Unlock()
	if !ok || proto == "" {
		return true
	}
	v, err := semver.NewVersion(proto)
	if err != nil {
		return true
	}
	return e.constraint.Check(v)
}
