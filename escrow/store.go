package escrow

import (
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/bitfsorg/libsettle-go/store"
)

// Store persists entries and grants inside one bbolt transaction.
type Store struct {
	entries *bbolt.Bucket
	grants  *bbolt.Bucket
}

// NewStore binds a Store to tx.
func NewStore(tx *bbolt.Tx) (*Store, error) {
	entries, err := store.Bucket(tx, store.BucketEscrows)
	if err != nil {
		return nil, err
	}
	grants, err := store.Bucket(tx, store.BucketGrants)
	if err != nil {
		return nil, err
	}
	return &Store{entries: entries, grants: grants}, nil
}

// Entry returns the entry at addr or ErrEntryNotFound.
func (s *Store) Entry(addr Address) (*Entry, error) {
	data := s.entries.Get(addr[:])
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, addr)
	}
	return UnmarshalEntry(data)
}

// PutEntry writes e at its address.
func (s *Store) PutEntry(e *Entry) error {
	data, err := MarshalEntry(e)
	if err != nil {
		return err
	}
	if err := s.entries.Put(e.Address[:], data); err != nil {
		return fmt.Errorf("escrow: put entry: %w", err)
	}
	return nil
}

// DeleteEntry removes the entry at addr.
func (s *Store) DeleteEntry(addr Address) error {
	if s.entries.Get(addr[:]) == nil {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, addr)
	}
	if err := s.entries.Delete(addr[:]); err != nil {
		return fmt.Errorf("escrow: delete entry: %w", err)
	}
	return nil
}

// Entries returns every stored entry.
func (s *Store) Entries() ([]*Entry, error) {
	var out []*Entry
	err := s.entries.ForEach(func(_, v []byte) error {
		e, err := UnmarshalEntry(v)
		if err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

// Grant returns the access grant at addr or ErrGrantNotFound.
func (s *Store) Grant(addr Address) (*Grant, error) {
	data := s.grants.Get(addr[:])
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrGrantNotFound, addr)
	}
	return UnmarshalGrant(data)
}

// CreateGrant writes g. A grant is written once; ErrGrantExists otherwise.
func (s *Store) CreateGrant(g *Grant) error {
	if s.grants.Get(g.Address[:]) != nil {
		return fmt.Errorf("%w: %s", ErrGrantExists, g.Address)
	}
	data, err := MarshalGrant(g)
	if err != nil {
		return err
	}
	if err := s.grants.Put(g.Address[:], data); err != nil {
		return fmt.Errorf("escrow: put grant: %w", err)
	}
	return nil
}

// DeleteGrant removes the grant at addr.
func (s *Store) DeleteGrant(addr Address) error {
	if s.grants.Get(addr[:]) == nil {
		return fmt.Errorf("%w: %s", ErrGrantNotFound, addr)
	}
	if err := s.grants.Delete(addr[:]); err != nil {
		return fmt.Errorf("escrow: delete grant: %w", err)
	}
	return nil
}

// Grants returns every stored access grant.
func (s *Store) Grants() ([]*Grant, error) {
	var out []*Grant
	err := s.grants.ForEach(func(_, v []byte) error {
		g, err := UnmarshalGrant(v)
		if err != nil {
			return err
		}
		out = append(out, g)
		return nil
	})
	return out, err
}
