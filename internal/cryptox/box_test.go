package cryptox

import (
	"bytes"
	"testing"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBox(t *testing.T) *Box {
	t.Helper()
	b, err := NewBox(bytes.Repeat([]byte{0x42}, common.KeySize))
	require.NoError(t, err)
	return b
}

func TestNewBox_RejectsWrongKeySize(t *testing.T) {
	for _, n := range []int{0, 16, 24, 31, 33, 64} {
		_, err := NewBox(make([]byte, n))
		assert.Error(t, err, "key of %d bytes must be rejected", n)
	}
}

func TestSealOpen_RoundTrip(t *testing.T) {
	b := newTestBox(t)

	for _, p := range [][]byte{
		{},
		[]byte("A"),
		[]byte("hello, world"),
		bytes.Repeat([]byte{0xff}, 1<<16),
	} {
		ct, nonce, err := b.Seal(p)
		require.NoError(t, err)
		assert.Len(t, nonce, common.NonceSize)
		assert.Len(t, ct, len(p)+16)

		got, err := b.Open(ct, nonce)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(p, got))
	}
}

func TestSeal_FreshNoncePerCall(t *testing.T) {
	b := newTestBox(t)
	seen := make(map[string]struct{})

	for i := 0; i < 256; i++ {
		ct, nonce, err := b.Seal([]byte("same plaintext"))
		require.NoError(t, err)
		_, dup := seen[string(nonce)]
		require.False(t, dup, "nonce reused at iteration %d", i)
		seen[string(nonce)] = struct{}{}
		_ = ct
	}
}

func TestOpen_DetectsTampering(t *testing.T) {
	b := newTestBox(t)
	ct, nonce, err := b.Seal([]byte("integrity matters"))
	require.NoError(t, err)

	for i := 0; i < len(ct)*8; i++ {
		tampered := append([]byte(nil), ct...)
		tampered[i/8] ^= 1 << (i % 8)

		got, err := b.Open(tampered, nonce)
		require.ErrorIs(t, err, common.ErrAuthenticationFailure, "bit %d", i)
		require.Nil(t, got)
	}
}

func TestOpen_WrongNonceOrKey(t *testing.T) {
	b := newTestBox(t)
	ct, nonce, err := b.Seal([]byte("payload"))
	require.NoError(t, err)

	wrongNonce := append([]byte(nil), nonce...)
	wrongNonce[0] ^= 0x01
	_, err = b.Open(ct, wrongNonce)
	assert.ErrorIs(t, err, common.ErrAuthenticationFailure)

	_, err = b.Open(ct, nonce[:8])
	assert.ErrorIs(t, err, common.ErrAuthenticationFailure)

	other, err := NewBox(bytes.Repeat([]byte{0x24}, common.KeySize))
	require.NoError(t, err)
	_, err = other.Open(ct, nonce)
	assert.ErrorIs(t, err, common.ErrAuthenticationFailure)
}

func TestDeriveKey(t *testing.T) {
	k1 := DeriveKey([]byte("secret-password"), []byte("fixed-salt"))
	k2 := DeriveKey([]byte("secret-password"), []byte("fixed-salt"))
	k3 := DeriveKey([]byte("secret-password"), []byte("other-salt"))

	assert.Len(t, k1, common.KeySize)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)

	_, err := NewBox(k1)
	assert.NoError(t, err)
}
