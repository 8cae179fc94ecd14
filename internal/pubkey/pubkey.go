// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package pubkey defines the 32-byte account identity used across the ledger,
// its base58 text form, and ed25519 keypairs that control signer accounts.
package pubkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Size is the length of a Pubkey in bytes.
const Size = 32

// ErrInvalidPubkey is returned when text or bytes cannot form a Pubkey.
var ErrInvalidPubkey = errors.New("invalid public key")

// Pubkey identifies an account on the ledger. It is either an ed25519 public
// key (a signer) or a program-derived address that has no private key.
type Pubkey [Size]byte

// Zero is the all-zero key. The system program lives at this address.
var Zero Pubkey

// String returns the base58 form.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// IsZero reports whether p is the all-zero key.
func (p Pubkey) IsZero() bool {
	return p == Zero
}

// Bytes returns a copy of the key as a slice.
func (p Pubkey) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, p[:])
	return b
}

// MarshalText implements encoding.TextMarshaler (used by yaml config).
func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pubkey) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Parse decodes a base58 string into a Pubkey.
func Parse(s string) (Pubkey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q: %v", ErrInvalidPubkey, s, err)
	}
	return FromBytes(raw)
}

// MustParse is Parse for package-level constants; it panics on bad input.
func MustParse(s string) Pubkey {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// FromBytes copies exactly Size bytes into a Pubkey.
func FromBytes(b []byte) (Pubkey, error) {
	var p Pubkey
	if len(b) != Size {
		return p, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPubkey, Size, len(b))
	}
	copy(p[:], b)
	return p, nil
}

// IsOnCurve returns true if the 32-byte value decodes to a valid edwards25519
// curve point (i.e., could be an ed25519 public key).
func IsOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// IsOnCurve reports whether p could be an ed25519 public key.
func (p Pubkey) IsOnCurve() bool {
	return IsOnCurve(p[:])
}

// Keypair is an ed25519 signing key together with its public identity.
type Keypair struct {
	private ed25519.PrivateKey
}

// KeypairSize is the length of the serialized keypair (seed || public key).
const KeypairSize = ed25519.PrivateKeySize

// NewKeypair generates a random keypair.
func NewKeypair() (Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Keypair{}, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return Keypair{private: priv}, nil
}

// KeypairFromSeed derives a keypair from a 32-byte seed.
func KeypairFromSeed(seed []byte) (Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return Keypair{}, fmt.Errorf("invalid seed size for ed25519: expected %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return Keypair{private: ed25519.NewKeyFromSeed(seed)}, nil
}

// KeypairFromBytes parses the 64-byte seed || public key layout written by
// common wallet tooling. The embedded public key must match the seed.
func KeypairFromBytes(b []byte) (Keypair, error) {
	if len(b) != KeypairSize {
		return Keypair{}, fmt.Errorf("invalid keypair size: expected %d bytes, got %d", KeypairSize, len(b))
	}
	kp, err := KeypairFromSeed(b[:ed25519.SeedSize])
	if err != nil {
		return Keypair{}, err
	}
	pub := kp.Public()
	if string(pub[:]) != string(b[ed25519.SeedSize:]) {
		return Keypair{}, errors.New("keypair public key does not match seed")
	}
	return kp, nil
}

// Public returns the keypair's identity.
func (k Keypair) Public() Pubkey {
	var p Pubkey
	copy(p[:], k.private[ed25519.SeedSize:])
	return p
}

// Bytes returns the 64-byte serialized keypair. Callers should zero it when done.
func (k Keypair) Bytes() []byte {
	b := make([]byte, KeypairSize)
	copy(b, k.private)
	return b
}

// Sign signs message with the keypair's private key.
func (k Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.private, message)
}

// Verify checks an ed25519 signature made by p.
func Verify(p Pubkey, message, signature []byte) bool {
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(p[:]), message, signature)
}
