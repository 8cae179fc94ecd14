// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package pda derives program-controlled account addresses.
//
// A derived address is the SHA-256 of the seeds, the owning program id and a
// fixed marker. Only results that are NOT valid edwards25519 points are
// accepted, so no private key can exist for them; the runtime lets the owning
// program sign for such an address by presenting the same seeds.
package pda

import (
	"encoding/binary"
	"errors"

	"github.com/minio/sha256-simd"

	"github.com/aplane-algo/apecho/internal/pubkey"
)

const (
	// MaxSeedLength is the maximum length of a single seed.
	MaxSeedLength = 32

	// MaxSeeds is the maximum number of seeds, the bump included.
	MaxSeeds = 16

	// AuthorityNamespace tags buffers controlled by an authority.
	AuthorityNamespace = "authority"
)

// marker is appended after the program id so derived addresses never collide
// with hashes computed for other purposes.
var marker = []byte("ProgramDerivedAddress")

var (
	// ErrMaxSeedLength is returned when a seed exceeds MaxSeedLength.
	ErrMaxSeedLength = errors.New("seed exceeds maximum length")

	// ErrMaxSeeds is returned when more than MaxSeeds seeds are supplied.
	ErrMaxSeeds = errors.New("too many seeds")

	// ErrInvalidSeeds is returned when the seeds hash to an on-curve point.
	ErrInvalidSeeds = errors.New("seeds produce an on-curve address")

	// ErrNoViableBump is returned when no bump yields an off-curve address.
	ErrNoViableBump = errors.New("unable to find a viable bump seed")
)

// CreateProgramAddress computes the address for the exact seeds given,
// including any bump the caller already appended.
func CreateProgramAddress(seeds [][]byte, programID pubkey.Pubkey) (pubkey.Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return pubkey.Zero, ErrMaxSeeds
	}
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return pubkey.Zero, ErrMaxSeedLength
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write(marker)

	var addr pubkey.Pubkey
	copy(addr[:], h.Sum(nil))
	if addr.IsOnCurve() {
		return pubkey.Zero, ErrInvalidSeeds
	}
	return addr, nil
}

// FindProgramAddress searches for the canonical bump: starting at 255 and
// counting down, the first bump whose address is off-curve wins. The search
// order matches the ledger's reference tooling so addresses computed by
// external clients agree with ours.
func FindProgramAddress(seeds [][]byte, programID pubkey.Pubkey) (pubkey.Pubkey, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return pubkey.Zero, 0, ErrMaxSeeds
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	bump := []byte{0}
	withBump[len(seeds)] = bump

	for b := 255; b >= 0; b-- {
		bump[0] = byte(b)
		addr, err := CreateProgramAddress(withBump, programID)
		switch {
		case err == nil:
			return addr, byte(b), nil
		case errors.Is(err, ErrInvalidSeeds):
			continue
		default:
			return pubkey.Zero, 0, err
		}
	}
	return pubkey.Zero, 0, ErrNoViableBump
}

// AuthorityBufferSeeds returns the seeds of the buffer owned by authority:
// the namespace tag, the authority key and the little-endian seed.
func AuthorityBufferSeeds(authority pubkey.Pubkey, seed uint64) [][]byte {
	return [][]byte{
		[]byte(AuthorityNamespace),
		authority.Bytes(),
		binary.LittleEndian.AppendUint64(nil, seed),
	}
}

// AuthorityBufferSignerSeeds is AuthorityBufferSeeds with the bump appended,
// the form the runtime accepts as a signature for the derived address.
func AuthorityBufferSignerSeeds(authority pubkey.Pubkey, seed uint64, bump uint8) [][]byte {
	return append(AuthorityBufferSeeds(authority, seed), []byte{bump})
}

// AuthorityBuffer derives the canonical buffer address and bump for
// (authority, seed) under programID.
func AuthorityBuffer(programID, authority pubkey.Pubkey, seed uint64) (pubkey.Pubkey, uint8, error) {
	return FindProgramAddress(AuthorityBufferSeeds(authority, seed), programID)
}
