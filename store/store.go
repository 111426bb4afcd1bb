// Package store owns the bbolt database every settlement record lives in.
//
// One engine operation maps to one bbolt read-write transaction: all
// transfers, mints, flag updates and record deletions made inside fn become
// visible together, or none do. bbolt admits a single writer at a time, which
// serializes concurrent operations on the same escrow identity.
package store

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	BucketHolders      = []byte("holders")
	BucketMints        = []byte("mints")
	BucketEscrows      = []byte("escrows")
	BucketGrants       = []byte("access_grants")
	BucketCollectibles = []byte("collectibles")
	BucketAdmins       = []byte("admins")
	BucketAccounts     = []byte("accounts")
	BucketDeposits     = []byte("deposits")
	BucketMeta         = []byte("meta")
)

// Buckets lists every bucket created at open time.
func Buckets() [][]byte {
	return [][]byte{
		BucketHolders, BucketMints, BucketEscrows, BucketGrants,
		BucketCollectibles, BucketAdmins, BucketAccounts, BucketDeposits, BucketMeta,
	}
}

// DB wraps a bbolt database with the settlement buckets in place.
type DB struct {
	db *bbolt.DB
}

// Open opens or creates the database at path.
// The parent directory is created if it does not exist.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range Buckets() {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("store: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error { return d.db.Close() }

// Path returns the database file path.
func (d *DB) Path() string { return d.db.Path() }

// Update runs fn in a read-write transaction. Returning an error from fn
// rolls back every write fn made.
func (d *DB) Update(fn func(tx *bbolt.Tx) error) error {
	return d.db.Update(fn)
}

// View runs fn in a read-only transaction.
func (d *DB) View(fn func(tx *bbolt.Tx) error) error {
	return d.db.View(fn)
}

// Bucket returns the named bucket or ErrMissingBucket.
func Bucket(tx *bbolt.Tx, name []byte) (*bbolt.Bucket, error) {
	b := tx.Bucket(name)
	if b == nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingBucket, name)
	}
	return b, nil
}

// EncodeGob serializes v using gob encoding.
func EncodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeGob deserializes gob-encoded data into v.
func DecodeGob(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
