package admin

import (
	"path/filepath"
	"testing"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/bitfsorg/libsettle-go/store"
)

func pub(t *testing.T) *ec.PublicKey {
	t.Helper()
	k, err := ec.NewPrivateKey()
	require.NoError(t, err)
	return k.PubKey()
}

func withRegistry(t *testing.T, fn func(r *Registry)) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "admin.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Update(func(tx *bbolt.Tx) error {
		r, err := NewRegistry(tx)
		require.NoError(t, err)
		fn(r)
		return nil
	}))
}

func TestBootstrap(t *testing.T) {
	withRegistry(t, func(r *Registry) {
		first, other := pub(t), pub(t)
		created, err := r.Bootstrap(first, 1)
		require.NoError(t, err)
		assert.True(t, created)

		created, err = r.Bootstrap(first, 2)
		require.NoError(t, err)
		assert.False(t, created)

		_, err = r.Bootstrap(other, 3)
		assert.ErrorIs(t, err, ErrAlreadyBootstrapped)
		assert.Equal(t, 1, r.Count())
	})
}

func TestAddRemove(t *testing.T) {
	withRegistry(t, func(r *Registry) {
		a, b, stranger := pub(t), pub(t), pub(t)
		_, err := r.Bootstrap(a, 0)
		require.NoError(t, err)

		assert.ErrorIs(t, r.Add(stranger, b, 0), ErrUnauthorized)
		require.NoError(t, r.Add(a, b, 5))
		assert.ErrorIs(t, r.Add(a, b, 5), ErrAdminExists)
		assert.True(t, r.IsAdmin(b))

		list, err := r.List()
		require.NoError(t, err)
		assert.Len(t, list, 2)

		assert.ErrorIs(t, r.Remove(stranger, a), ErrUnauthorized)
		assert.ErrorIs(t, r.Remove(a, stranger), ErrAdminNotFound)
		require.NoError(t, r.Remove(b, a))
		assert.False(t, r.IsAdmin(a))
		assert.Equal(t, 1, r.Count())
	})
}

func TestRemove_LastAdmin(t *testing.T) {
	withRegistry(t, func(r *Registry) {
		a := pub(t)
		_, err := r.Bootstrap(a, 0)
		require.NoError(t, err)
		assert.ErrorIs(t, r.Remove(a, a), ErrCannotRemoveLastAdmin)
		assert.True(t, r.IsAdmin(a))
	})
}

func TestIsAdmin_Nil(t *testing.T) {
	withRegistry(t, func(r *Registry) {
		assert.False(t, r.IsAdmin(nil))
		_, err := r.Bootstrap(nil, 0)
		assert.ErrorIs(t, err, ErrNilParam)
	})
}
