// Package admin keeps the set of administrator keys allowed to drive the
// settlement engine. The set is never empty once bootstrapped.
package admin

import (
	"encoding/hex"
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"go.etcd.io/bbolt"

	"github.com/bitfsorg/libsettle-go/store"
)

// RecordSize is the accounted storage footprint of one administrator record.
const RecordSize = 33 + 33 + 8 // key + added_by + added_at

// Admin is one registry record.
type Admin struct {
	PubKey  []byte // compressed
	AddedBy []byte // compressed; empty for the bootstrap admin
	AddedAt int64
}

// Hex returns the hex public key of the administrator.
func (a *Admin) Hex() string { return hex.EncodeToString(a.PubKey) }

// Registry reads and writes administrators inside one bbolt transaction.
type Registry struct {
	b *bbolt.Bucket
}

// NewRegistry binds a Registry to tx.
func NewRegistry(tx *bbolt.Tx) (*Registry, error) {
	b, err := store.Bucket(tx, store.BucketAdmins)
	if err != nil {
		return nil, err
	}
	return &Registry{b: b}, nil
}

// Bootstrap installs first as the sole administrator of an empty registry.
// Repeating it with the same key reports created=false.
func (r *Registry) Bootstrap(first *ec.PublicKey, now int64) (bool, error) {
	if first == nil {
		return false, fmt.Errorf("%w: first admin", ErrNilParam)
	}
	if r.IsAdmin(first) {
		return false, nil
	}
	if r.Count() > 0 {
		return false, ErrAlreadyBootstrapped
	}
	return true, r.put(&Admin{PubKey: first.Compressed(), AddedAt: now})
}

// IsAdmin reports whether key is an administrator.
func (r *Registry) IsAdmin(key *ec.PublicKey) bool {
	if key == nil {
		return false
	}
	return r.b.Get(key.Compressed()) != nil
}

// Add registers key. caller must be an administrator.
func (r *Registry) Add(caller, key *ec.PublicKey, now int64) error {
	if key == nil {
		return fmt.Errorf("%w: key", ErrNilParam)
	}
	if !r.IsAdmin(caller) {
		return ErrUnauthorized
	}
	if r.IsAdmin(key) {
		return fmt.Errorf("%w: %x", ErrAdminExists, key.Compressed())
	}
	return r.put(&Admin{PubKey: key.Compressed(), AddedBy: caller.Compressed(), AddedAt: now})
}

// Remove deletes key. caller must be an administrator, and the last
// administrator can never be removed.
func (r *Registry) Remove(caller, key *ec.PublicKey) error {
	if key == nil {
		return fmt.Errorf("%w: key", ErrNilParam)
	}
	if !r.IsAdmin(caller) {
		return ErrUnauthorized
	}
	if !r.IsAdmin(key) {
		return fmt.Errorf("%w: %x", ErrAdminNotFound, key.Compressed())
	}
	if r.Count() <= 1 {
		return ErrCannotRemoveLastAdmin
	}
	if err := r.b.Delete(key.Compressed()); err != nil {
		return fmt.Errorf("admin: delete: %w", err)
	}
	return nil
}

// Count returns the number of administrators.
func (r *Registry) Count() int {
	n := 0
	c := r.b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

// List returns every administrator in key order.
func (r *Registry) List() ([]*Admin, error) {
	var out []*Admin
	err := r.b.ForEach(func(_, v []byte) error {
		var a Admin
		if err := store.DecodeGob(v, &a); err != nil {
			return fmt.Errorf("admin: decode: %w", err)
		}
		out = append(out, &a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Registry) put(a *Admin) error {
	data, err := store.EncodeGob(a)
	if err != nil {
		return fmt.Errorf("admin: encode: %w", err)
	}
	if err := r.b.Put(a.PubKey, data); err != nil {
		return fmt.Errorf("admin: put: %w", err)
	}
	return nil
}
