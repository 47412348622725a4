// Package cipher defines the encrypted-export envelope contract (spec.md
// §1, §6) plus a default implementation: magic bytes `MMENC01\0`, a
// JSON header (used as AEAD associated data) declaring algorithm, KDF,
// salt and nonce, followed by ciphertext. The envelope supports multiple
// recipients: a fresh symmetric file key is generated per encryption and
// wrapped once per recipient, so decrypting with any one recipient's
// passphrase recovers the same plaintext.
package cipher

import (
	"context"
	"errors"
	"time"
)

// Magic is the 8-byte file signature every envelope begins with.
var Magic = [8]byte{'M', 'M', 'E', 'N', 'C', '0', '1', 0}

// Algorithm identifies the AEAD cipher used for both the file key wrap and
// the payload itself.
type Algorithm string

const (
	AlgorithmChaCha20Poly1305 Algorithm = "chacha20poly1305"
)

// KDF identifies the key-derivation function used to turn a recipient's
// passphrase into a wrapping key.
type KDF string

const (
	KDFArgon2id KDF = "argon2id"
)

// KDFParams tunes Argon2id, read from config.KDFConfig (kdf.memory_kib,
// kdf.iterations, kdf.parallelism per spec.md §6).
type KDFParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

// Recipient is one passphrase-holding party a file is encrypted for.
// Decrypt needs only one matching Recipient's passphrase to recover the
// plaintext, regardless of how many recipients the file was encrypted for.
type Recipient struct {
	ID         string
	Passphrase string
}

// ErrAuthFailed is returned by Decrypt when no recipient block can be
// unwrapped with the supplied passphrase, or when the payload's
// authentication tag fails to verify — the two are deliberately not
// distinguished, so a wrong key never looks like silent corruption
// (spec.md §8: "Decrypt with wrong key -> Authentication/Integrity
// error, never silent corruption").
var ErrAuthFailed = errors.New("cipher: authentication failed")

// ErrBadEnvelope indicates the input is not a well-formed envelope (bad
// magic, truncated header, corrupt JSON).
var ErrBadEnvelope = errors.New("cipher: malformed envelope")

// Cipher is the capability interface the shard exporter/importer depends
// on. The default implementation (Default) needs no connection handle and
// carries no state beyond KDF tuning, consistent with spec.md §9's
// "capability interfaces carry no state beyond connection handles."
type Cipher interface {
	Encrypt(ctx context.Context, plaintext []byte, recipients []Recipient) ([]byte, error)
	Decrypt(ctx context.Context, envelope []byte, recipient Recipient) ([]byte, error)
}

// Header is the envelope's JSON-encoded, AAD-authenticated metadata block.
type Header struct {
	Version   int                 `json:"version"`
	Algorithm Algorithm           `json:"algorithm"`
	KDF       KDF                 `json:"kdf"`
	KDFParams KDFParams           `json:"kdf_params"`
	CreatedAt time.Time           `json:"created_at"`
	Nonce     string              `json:"nonce"` // base64, payload AEAD nonce
	Recipients []recipientBlock   `json:"recipients"`
}

// recipientBlock is one wrapped-file-key entry: the recipient's KDF salt
// and the file key, AEAD-wrapped under a key derived from that recipient's
// passphrase and salt.
type recipientBlock struct {
	ID           string `json:"id"`
	Salt         string `json:"salt"`          // base64
	WrapNonce    string `json:"wrap_nonce"`    // base64
	WrappedKey   string `json:"wrapped_key"`   // base64
}
