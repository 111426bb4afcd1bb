package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func tempDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "settle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_CreatesBuckets(t *testing.T) {
	db := tempDB(t)
	err := db.View(func(tx *bbolt.Tx) error {
		for _, name := range Buckets() {
			if _, err := Bucket(tx, name); err != nil {
				return err
			}
		}
		return nil
	})
	assert.NoError(t, err)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("")
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestUpdate_RollsBackOnError(t *testing.T) {
	db := tempDB(t)
	boom := errors.New("boom")

	err := db.Update(func(tx *bbolt.Tx) error {
		b, err := Bucket(tx, BucketMeta)
		if err != nil {
			return err
		}
		if err := b.Put([]byte("k"), []byte("v")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = db.View(func(tx *bbolt.Tx) error {
		assert.Nil(t, tx.Bucket(BucketMeta).Get([]byte("k")))
		return nil
	})
	require.NoError(t, err)
}

func TestBucket_Missing(t *testing.T) {
	db := tempDB(t)
	err := db.View(func(tx *bbolt.Tx) error {
		_, err := Bucket(tx, []byte("nope"))
		return err
	})
	assert.ErrorIs(t, err, ErrMissingBucket)
}

func TestGobRoundTrip(t *testing.T) {
	type rec struct {
		Name  string
		Value uint64
	}
	data, err := EncodeGob(rec{Name: "a", Value: 7})
	require.NoError(t, err)

	var got rec
	require.NoError(t, DecodeGob(data, &got))
	assert.Equal(t, rec{Name: "a", Value: 7}, got)
}
