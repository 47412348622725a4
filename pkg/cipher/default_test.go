package cipher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastParams keeps Argon2id cheap enough for unit tests to run quickly
// without weakening the production defaults used elsewhere.
var fastParams = KDFParams{MemoryKiB: 8 * 1024, Iterations: 1, Parallelism: 1}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := NewDefault(fastParams)
	ctx := context.Background()
	plaintext := []byte("the quick brown fox jumps over the lazy dog")

	envelope, err := c.Encrypt(ctx, plaintext, []Recipient{{ID: "alice", Passphrase: "correct horse battery staple"}})
	require.NoError(t, err)

	assert.Equal(t, Magic[:], envelope[:len(Magic)])

	got, err := c.Decrypt(ctx, envelope, Recipient{ID: "alice", Passphrase: "correct horse battery staple"})
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestDecryptWrongPassphraseFailsAuth(t *testing.T) {
	c := NewDefault(fastParams)
	ctx := context.Background()
	envelope, err := c.Encrypt(ctx, []byte("secret"), []Recipient{{ID: "alice", Passphrase: "right"}})
	require.NoError(t, err)

	_, err = c.Decrypt(ctx, envelope, Recipient{ID: "alice", Passphrase: "wrong"})
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestDecryptUnknownRecipientFailsAuth(t *testing.T) {
	c := NewDefault(fastParams)
	ctx := context.Background()
	envelope, err := c.Encrypt(ctx, []byte("secret"), []Recipient{{ID: "alice", Passphrase: "right"}})
	require.NoError(t, err)

	_, err = c.Decrypt(ctx, envelope, Recipient{ID: "bob", Passphrase: "right"})
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestMultiRecipientEnvelope(t *testing.T) {
	c := NewDefault(fastParams)
	ctx := context.Background()
	plaintext := []byte("shared secret note")

	envelope, err := c.Encrypt(ctx, plaintext, []Recipient{
		{ID: "alice", Passphrase: "alice-pass"},
		{ID: "bob", Passphrase: "bob-pass"},
	})
	require.NoError(t, err)

	gotAlice, err := c.Decrypt(ctx, envelope, Recipient{ID: "alice", Passphrase: "alice-pass"})
	require.NoError(t, err)
	assert.Equal(t, plaintext, gotAlice)

	gotBob, err := c.Decrypt(ctx, envelope, Recipient{ID: "bob", Passphrase: "bob-pass"})
	require.NoError(t, err)
	assert.Equal(t, plaintext, gotBob)
}

func TestDecryptTamperedCiphertextFailsAuth(t *testing.T) {
	c := NewDefault(fastParams)
	ctx := context.Background()
	envelope, err := c.Encrypt(ctx, []byte("secret"), []Recipient{{ID: "alice", Passphrase: "right"}})
	require.NoError(t, err)

	tampered := append([]byte(nil), envelope...)
	tampered[len(tampered)-1] ^= 0xFF

	_, err = c.Decrypt(ctx, tampered, Recipient{ID: "alice", Passphrase: "right"})
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestDecryptRejectsBadMagic(t *testing.T) {
	c := NewDefault(fastParams)
	_, err := c.Decrypt(context.Background(), []byte("not an envelope at all"), Recipient{ID: "alice", Passphrase: "x"})
	assert.ErrorIs(t, err, ErrBadEnvelope)
}

func TestEncryptRequiresAtLeastOneRecipient(t *testing.T) {
	c := NewDefault(fastParams)
	_, err := c.Encrypt(context.Background(), []byte("x"), nil)
	assert.Error(t, err)
}
