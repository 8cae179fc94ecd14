// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package chain

const (
	// AccountStorageOverhead is the per-account byte overhead charged for
	// metadata regardless of data length.
	AccountStorageOverhead = 128

	// DefaultLamportsPerByteYear is the default storage price.
	DefaultLamportsPerByteYear = 3480

	// DefaultExemptionThreshold is how many years of rent make an account exempt.
	DefaultExemptionThreshold = 2.0
)

// Rent prices ledger storage. Accounts holding at least MinimumBalance for
// their size are exempt from ongoing rent.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
}

// DefaultRent returns the standard rent parameters.
func DefaultRent() Rent {
	return Rent{
		LamportsPerByteYear: DefaultLamportsPerByteYear,
		ExemptionThreshold:  DefaultExemptionThreshold,
	}
}

// MinimumBalance returns the lamports an account of dataLen bytes must hold
// to be rent exempt.
func (r Rent) MinimumBalance(dataLen uint64) uint64 {
	bytes := AccountStorageOverhead + dataLen
	return uint64(float64(bytes*r.LamportsPerByteYear) * r.ExemptionThreshold)
}

// IsExempt reports whether lamports cover the minimum balance for dataLen.
func (r Rent) IsExempt(lamports, dataLen uint64) bool {
	return lamports >= r.MinimumBalance(dataLen)
}
