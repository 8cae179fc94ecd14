// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package pda

import (
	"bytes"
	"errors"
	"testing"

	"github.com/aplane-algo/apecho/internal/pubkey"
)

var testProgramID = pubkey.MustParse("BPFLoaderUpgradeab1e11111111111111111111111")

// Reference vectors published with the ledger's address derivation rules.
func TestCreateProgramAddress_Vectors(t *testing.T) {
	seedKey := pubkey.MustParse("SeedPubey1111111111111111111111111111111111")

	tests := []struct {
		name  string
		seeds [][]byte
		want  string
	}{
		{
			name:  "empty seed with bump 1",
			seeds: [][]byte{[]byte(""), {1}},
			want:  "BwqrghZA2htAcqq8dzP1WDAhTXYTYWj7CHxF5j7TDBAe",
		},
		{
			name:  "utf8 seed",
			seeds: [][]byte{[]byte("☉"), {0}},
			want:  "13yWmRpaTR4r5nAktwLqMpRNr28tnVUZw26rTvPSSB19",
		},
		{
			name:  "two text seeds",
			seeds: [][]byte{[]byte("Talking"), []byte("Squirrels")},
			want:  "2fnQrngrQT4SeLcdToJAD96phoEjNL2man2kfRLCASVk",
		},
		{
			name:  "public key seed",
			seeds: [][]byte{seedKey.Bytes(), {1}},
			want:  "976ymqVnfE32QFe6NfGDctSvVa36LWnvYxhU6G2232YL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CreateProgramAddress(tt.seeds, testProgramID)
			if err != nil {
				t.Fatalf("CreateProgramAddress() error = %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("CreateProgramAddress() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCreateProgramAddress_SeedLimits(t *testing.T) {
	maxSeed := make([]byte, MaxSeedLength)
	tooLong := bytes.Repeat([]byte{127}, MaxSeedLength+1)

	if _, err := CreateProgramAddress([][]byte{tooLong}, testProgramID); !errors.Is(err, ErrMaxSeedLength) {
		t.Errorf("seed of %d bytes: error = %v, want ErrMaxSeedLength", len(tooLong), err)
	}

	// A max-length seed is accepted (or rejected only for being on-curve)
	if _, err := CreateProgramAddress([][]byte{maxSeed}, testProgramID); err != nil && !errors.Is(err, ErrInvalidSeeds) {
		t.Errorf("max-length seed: unexpected error %v", err)
	}

	seeds := make([][]byte, MaxSeeds+1)
	for i := range seeds {
		seeds[i] = []byte{byte(i)}
	}
	if _, err := CreateProgramAddress(seeds, testProgramID); !errors.Is(err, ErrMaxSeeds) {
		t.Errorf("%d seeds: error = %v, want ErrMaxSeeds", len(seeds), err)
	}
	if _, _, err := FindProgramAddress(seeds[:MaxSeeds], testProgramID); !errors.Is(err, ErrMaxSeeds) {
		t.Errorf("FindProgramAddress with %d seeds: error = %v, want ErrMaxSeeds", MaxSeeds, err)
	}
}

func TestFindProgramAddress_LargestViableBump(t *testing.T) {
	// Roughly half of all bumps are viable, so most derivations skip over
	// smaller viable bumps
	smallerViable := 0
	for i := 0; i < 100; i++ {
		kp, err := pubkey.NewKeypair()
		if err != nil {
			t.Fatalf("NewKeypair() error = %v", err)
		}
		seeds := [][]byte{[]byte("Lil'"), []byte("Bits"), kp.Public().Bytes()}

		addr, bump, err := FindProgramAddress(seeds, testProgramID)
		if err != nil {
			t.Fatalf("FindProgramAddress() error = %v", err)
		}
		if addr.IsOnCurve() {
			t.Fatalf("derived address %v is on curve", addr)
		}

		// Re-deriving with the bump reproduces the address
		again, err := CreateProgramAddress(append(seeds, []byte{bump}), testProgramID)
		if err != nil {
			t.Fatalf("CreateProgramAddress() error = %v", err)
		}
		if again != addr {
			t.Fatalf("CreateProgramAddress() = %v, want %v", again, addr)
		}

		// The canonical bump is the largest viable one: every higher bump
		// is unusable
		for b := int(bump) + 1; b <= 255; b++ {
			if _, err := CreateProgramAddress(append(seeds, []byte{byte(b)}), testProgramID); !errors.Is(err, ErrInvalidSeeds) {
				t.Fatalf("bump %d above canonical %d is viable (err = %v)", b, bump, err)
			}
		}
		for b := 0; b < int(bump); b++ {
			if _, err := CreateProgramAddress(append(seeds, []byte{byte(b)}), testProgramID); err == nil {
				smallerViable++
				break
			}
		}
	}
	if smallerViable == 0 {
		t.Error("no derivation had a viable bump below the canonical one; search is not picking the largest")
	}
}

func TestAuthorityBuffer_Deterministic(t *testing.T) {
	kp, err := pubkey.NewKeypair()
	if err != nil {
		t.Fatalf("NewKeypair() error = %v", err)
	}
	authority := kp.Public()

	addr1, bump1, err := AuthorityBuffer(testProgramID, authority, 7)
	if err != nil {
		t.Fatalf("AuthorityBuffer() error = %v", err)
	}
	addr2, bump2, err := AuthorityBuffer(testProgramID, authority, 7)
	if err != nil {
		t.Fatalf("AuthorityBuffer() error = %v", err)
	}
	if addr1 != addr2 || bump1 != bump2 {
		t.Errorf("derivation not deterministic: (%v, %d) vs (%v, %d)", addr1, bump1, addr2, bump2)
	}

	// Different seed or authority yields a different address
	addr3, _, err := AuthorityBuffer(testProgramID, authority, 8)
	if err != nil {
		t.Fatalf("AuthorityBuffer() error = %v", err)
	}
	if addr3 == addr1 {
		t.Error("different seeds produced the same address")
	}

	other, _ := pubkey.NewKeypair()
	addr4, _, err := AuthorityBuffer(testProgramID, other.Public(), 7)
	if err != nil {
		t.Fatalf("AuthorityBuffer() error = %v", err)
	}
	if addr4 == addr1 {
		t.Error("different authorities produced the same address")
	}

	// Signer seeds reproduce the address for the runtime's check
	signed, err := CreateProgramAddress(AuthorityBufferSignerSeeds(authority, 7, bump1), testProgramID)
	if err != nil {
		t.Fatalf("CreateProgramAddress(signer seeds) error = %v", err)
	}
	if signed != addr1 {
		t.Errorf("signer seeds address = %v, want %v", signed, addr1)
	}
}

func TestAuthorityBufferSeeds_Layout(t *testing.T) {
	var authority pubkey.Pubkey
	authority[0] = 0xAB
	seeds := AuthorityBufferSeeds(authority, 123907)

	if len(seeds) != 3 {
		t.Fatalf("len(seeds) = %d, want 3", len(seeds))
	}
	if string(seeds[0]) != "authority" {
		t.Errorf("namespace seed = %q, want %q", seeds[0], "authority")
	}
	if !bytes.Equal(seeds[1], authority[:]) {
		t.Errorf("authority seed = %x, want %x", seeds[1], authority[:])
	}
	// 123907 = 0x01E403 little-endian
	want := []byte{0x03, 0xE4, 0x01, 0, 0, 0, 0, 0}
	if !bytes.Equal(seeds[2], want) {
		t.Errorf("numeric seed = %x, want %x", seeds[2], want)
	}
}
