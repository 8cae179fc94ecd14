// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package crypto seals secrets (authority keypairs) at rest under a
// passphrase. A sealed file is a self-contained JSON envelope: the Argon2id
// salt and parameters travel with the AES-GCM ciphertext, so the file plus
// the passphrase is all that is needed to open it.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// Argon2id parameters (OWASP recommended)
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2KeyLen  = 32        // AES-256

	saltLen = 32

	// EnvelopeVersion is the only envelope format this package writes.
	EnvelopeVersion = 1
)

var (
	// ErrIncorrectPassphrase indicates authentication of the ciphertext failed.
	ErrIncorrectPassphrase = errors.New("incorrect passphrase")

	// ErrUnsupportedEnvelope indicates an unknown envelope version.
	ErrUnsupportedEnvelope = errors.New("unsupported envelope version")
)

// kdfParams records how the key was stretched, so a file sealed with older
// parameters still opens after the defaults change.
type kdfParams struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"`
	Threads uint8  `json:"threads"`
}

var defaultKDF = kdfParams{Time: argon2Time, Memory: argon2Memory, Threads: argon2Threads}

// Envelope is the on-disk form of a sealed secret.
type Envelope struct {
	EnvelopeVersion int       `json:"envelope_version"`
	KDF             kdfParams `json:"kdf"`
	Salt            string    `json:"salt"`       // base64
	Nonce           string    `json:"nonce"`      // base64
	Ciphertext      string    `json:"ciphertext"` // base64, GCM tag included
}

// IsSealed reports whether data looks like a sealed envelope rather than a
// raw secret.
func IsSealed(data []byte) bool {
	var env Envelope
	return json.Unmarshal(data, &env) == nil && env.EnvelopeVersion > 0
}

// deriveKey stretches passphrase with Argon2id. The caller zeroes the key.
func deriveKey(passphrase, salt []byte, p kdfParams) []byte {
	return argon2.IDKey(passphrase, salt, p.Time, p.Memory, p.Threads, argon2KeyLen)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Seal encrypts plaintext under passphrase and returns the JSON envelope.
func Seal(plaintext, passphrase []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key := deriveKey(passphrase, salt, defaultKDF)
	defer ZeroBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	env := Envelope{
		EnvelopeVersion: EnvelopeVersion,
		KDF:             defaultKDF,
		Salt:            base64.StdEncoding.EncodeToString(salt),
		Nonce:           base64.StdEncoding.EncodeToString(nonce),
		Ciphertext:      base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, plaintext, nil)),
	}
	return json.MarshalIndent(env, "", "  ")
}

// Open decrypts an envelope produced by Seal.
func Open(sealed, passphrase []byte) ([]byte, error) {
	var env Envelope
	if err := json.Unmarshal(sealed, &env); err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}
	if env.EnvelopeVersion != EnvelopeVersion {
		return nil, fmt.Errorf("%w: %d (expected %d)", ErrUnsupportedEnvelope, env.EnvelopeVersion, EnvelopeVersion)
	}
	if env.KDF.Time == 0 || env.KDF.Memory == 0 || env.KDF.Threads == 0 {
		return nil, fmt.Errorf("envelope has invalid kdf parameters %+v", env.KDF)
	}

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	key := deriveKey(passphrase, salt, env.KDF)
	defer ZeroBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("envelope nonce is %d bytes, want %d", len(nonce), gcm.NonceSize())
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrIncorrectPassphrase
	}
	return plaintext, nil
}
