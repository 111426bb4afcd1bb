package keys

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSeed(b byte) []byte {
	return bytes.Repeat([]byte{b}, SeedSize)
}

func TestNewKeyring_InvalidSeed(t *testing.T) {
	tests := []struct {
		name string
		seed []byte
	}{
		{"nil", nil},
		{"short", []byte{0x01, 0x02}},
		{"all zero", make([]byte, SeedSize)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKeyring(tt.seed)
			assert.ErrorIs(t, err, ErrInvalidSeed)
		})
	}
}

func TestDerive_Deterministic(t *testing.T) {
	k1, err := NewKeyring(testSeed(0x11))
	require.NoError(t, err)
	k2, err := NewKeyring(testSeed(0x11))
	require.NoError(t, err)

	a, err := k1.EscrowAuthority([]byte("entry-a"))
	require.NoError(t, err)
	b, err := k2.EscrowAuthority([]byte("entry-a"))
	require.NoError(t, err)
	assert.Equal(t, a.PubKey().Compressed(), b.PubKey().Compressed())
}

func TestDerive_SeparatesPurposeAndSalt(t *testing.T) {
	k, err := NewKeyring(testSeed(0x22))
	require.NoError(t, err)

	op, err := k.Operator()
	require.NoError(t, err)
	res, err := k.Reserve()
	require.NoError(t, err)
	e1, err := k.EscrowAuthority([]byte("entry-1"))
	require.NoError(t, err)
	e2, err := k.EscrowAuthority([]byte("entry-2"))
	require.NoError(t, err)
	c1, err := k.Custody("entry-1")
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, pub := range [][]byte{
		op.PubKey().Compressed(), res.PubKey().Compressed(),
		e1.PubKey().Compressed(), e2.PubKey().Compressed(), c1.PubKey().Compressed(),
	} {
		assert.False(t, seen[string(pub)], "derived keys must be distinct")
		seen[string(pub)] = true
	}
}

func TestNewKeyring_CopiesSeed(t *testing.T) {
	seed := testSeed(0x33)
	k, err := NewKeyring(seed)
	require.NoError(t, err)
	before, err := k.Operator()
	require.NoError(t, err)

	seed[0] ^= 0xff
	after, err := k.Operator()
	require.NoError(t, err)
	assert.Equal(t, before.PubKey().Compressed(), after.PubKey().Compressed())
}

func TestGenerateSeed(t *testing.T) {
	s1, err := GenerateSeed()
	require.NoError(t, err)
	s2, err := GenerateSeed()
	require.NoError(t, err)
	assert.Len(t, s1, SeedSize)
	assert.NotEqual(t, s1, s2)
}
