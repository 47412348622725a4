package cipher

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const fileKeySize = chacha20poly1305.KeySize // 32 bytes
const envelopeVersion = 1

// DefaultKDFParams mirrors config.KDFConfig's documented defaults
// (kdf.memory_kib=65536, kdf.iterations=3, kdf.parallelism=4, spec.md §6).
var DefaultKDFParams = KDFParams{MemoryKiB: 65536, Iterations: 3, Parallelism: 4}

// Default is the envelope Cipher described in spec.md §6: ChaCha20-Poly1305
// AEAD for both the payload and each recipient's wrapped file key,
// Argon2id for passphrase-to-key derivation.
type Default struct {
	KDFParams KDFParams
}

// NewDefault returns a Default cipher using params, or DefaultKDFParams if
// params is the zero value.
func NewDefault(params KDFParams) *Default {
	if params == (KDFParams{}) {
		params = DefaultKDFParams
	}
	return &Default{KDFParams: params}
}

func (d *Default) deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, d.KDFParams.Iterations, d.KDFParams.MemoryKiB, d.KDFParams.Parallelism, fileKeySize)
}

// Encrypt generates a fresh file key, encrypts plaintext under it with the
// header as additional authenticated data, wraps the file key once per
// recipient, and serializes the whole envelope: magic, big-endian header
// length, JSON header, ciphertext.
func (d *Default) Encrypt(ctx context.Context, plaintext []byte, recipients []Recipient) ([]byte, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("cipher: at least one recipient required")
	}

	fileKey := make([]byte, fileKeySize)
	if _, err := rand.Read(fileKey); err != nil {
		return nil, fmt.Errorf("cipher: generate file key: %w", err)
	}

	payloadAEAD, err := chacha20poly1305.New(fileKey)
	if err != nil {
		return nil, fmt.Errorf("cipher: init payload aead: %w", err)
	}
	payloadNonce := make([]byte, payloadAEAD.NonceSize())
	if _, err := rand.Read(payloadNonce); err != nil {
		return nil, fmt.Errorf("cipher: generate payload nonce: %w", err)
	}

	blocks := make([]recipientBlock, 0, len(recipients))
	for _, r := range recipients {
		block, err := d.wrapFileKey(r, fileKey)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}

	header := Header{
		Version:    envelopeVersion,
		Algorithm:  AlgorithmChaCha20Poly1305,
		KDF:        KDFArgon2id,
		KDFParams:  d.KDFParams,
		CreatedAt:  time.Now().UTC(),
		Nonce:      base64.StdEncoding.EncodeToString(payloadNonce),
		Recipients: blocks,
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("cipher: marshal header: %w", err)
	}

	ciphertext := payloadAEAD.Seal(nil, payloadNonce, plaintext, headerJSON)

	return assembleEnvelope(headerJSON, ciphertext), nil
}

// wrapFileKey derives a per-recipient key from (passphrase, fresh salt)
// via Argon2id and AEAD-wraps fileKey under it.
func (d *Default) wrapFileKey(r Recipient, fileKey []byte) (recipientBlock, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return recipientBlock{}, fmt.Errorf("cipher: generate salt for recipient %s: %w", r.ID, err)
	}
	wrapKey := d.deriveKey(r.Passphrase, salt)

	wrapAEAD, err := chacha20poly1305.New(wrapKey)
	if err != nil {
		return recipientBlock{}, fmt.Errorf("cipher: init wrap aead: %w", err)
	}
	wrapNonce := make([]byte, wrapAEAD.NonceSize())
	if _, err := rand.Read(wrapNonce); err != nil {
		return recipientBlock{}, fmt.Errorf("cipher: generate wrap nonce: %w", err)
	}
	wrapped := wrapAEAD.Seal(nil, wrapNonce, fileKey, []byte(r.ID))

	return recipientBlock{
		ID:         r.ID,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		WrapNonce:  base64.StdEncoding.EncodeToString(wrapNonce),
		WrappedKey: base64.StdEncoding.EncodeToString(wrapped),
	}, nil
}

// Decrypt parses envelope, finds the recipient block matching
// recipient.ID, unwraps the file key, and opens the payload. Any failure
// to unwrap or authenticate — wrong passphrase, unknown recipient ID,
// tampered ciphertext — returns ErrAuthFailed, never a partial or
// silently-corrupt plaintext.
func (d *Default) Decrypt(ctx context.Context, envelope []byte, recipient Recipient) ([]byte, error) {
	headerJSON, ciphertext, err := splitEnvelope(envelope)
	if err != nil {
		return nil, err
	}

	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}

	var fileKey []byte
	for _, block := range header.Recipients {
		if block.ID != recipient.ID {
			continue
		}
		key, err := unwrapFileKey(block, recipient, header.KDFParams)
		if err != nil {
			return nil, ErrAuthFailed
		}
		fileKey = key
		break
	}
	if fileKey == nil {
		return nil, ErrAuthFailed
	}

	payloadAEAD, err := chacha20poly1305.New(fileKey)
	if err != nil {
		return nil, fmt.Errorf("cipher: init payload aead: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(header.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: bad nonce encoding", ErrBadEnvelope)
	}

	plaintext, err := payloadAEAD.Open(nil, nonce, ciphertext, headerJSON)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func unwrapFileKey(block recipientBlock, recipient Recipient, params KDFParams) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(block.Salt)
	if err != nil {
		return nil, err
	}
	wrapNonce, err := base64.StdEncoding.DecodeString(block.WrapNonce)
	if err != nil {
		return nil, err
	}
	wrapped, err := base64.StdEncoding.DecodeString(block.WrappedKey)
	if err != nil {
		return nil, err
	}

	wrapKey := argon2.IDKey([]byte(recipient.Passphrase), salt, params.Iterations, params.MemoryKiB, params.Parallelism, fileKeySize)
	wrapAEAD, err := chacha20poly1305.New(wrapKey)
	if err != nil {
		return nil, err
	}
	return wrapAEAD.Open(nil, wrapNonce, wrapped, []byte(recipient.ID))
}

// assembleEnvelope writes magic, a big-endian uint32 header length, the
// header bytes, then ciphertext.
func assembleEnvelope(headerJSON, ciphertext []byte) []byte {
	out := make([]byte, 0, len(Magic)+4+len(headerJSON)+len(ciphertext))
	out = append(out, Magic[:]...)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(headerJSON)))
	out = append(out, lenBuf[:]...)
	out = append(out, headerJSON...)
	out = append(out, ciphertext...)
	return out
}

// splitEnvelope validates the magic prefix and splits the remainder into
// (headerJSON, ciphertext).
func splitEnvelope(envelope []byte) (headerJSON, ciphertext []byte, err error) {
	if len(envelope) < len(Magic)+4 {
		return nil, nil, fmt.Errorf("%w: too short", ErrBadEnvelope)
	}
	for i := range Magic {
		if envelope[i] != Magic[i] {
			return nil, nil, fmt.Errorf("%w: bad magic", ErrBadEnvelope)
		}
	}
	headerLen := binary.BigEndian.Uint32(envelope[len(Magic) : len(Magic)+4])
	start := len(Magic) + 4
	end := start + int(headerLen)
	if end > len(envelope) {
		return nil, nil, fmt.Errorf("%w: truncated header", ErrBadEnvelope)
	}
	return envelope[start:end], envelope[end:], nil
}
