// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import "fmt"

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// FormatAmountWithDecimals formats an amount with the specified number of decimal places.
// If decimals is 0, returns the raw integer value.
func FormatAmountWithDecimals(amountUnits uint64, decimals uint64) string {
	if decimals == 0 {
		return fmt.Sprintf("%d", amountUnits)
	}
	divisor := uint64(1)
	for i := uint64(0); i < decimals; i++ {
		divisor *= 10
	}
	return fmt.Sprintf("%d.%0*d", amountUnits/divisor, decimals, amountUnits%divisor)
}

// FormatLamports renders lamports as SOL with full precision.
func FormatLamports(lamports uint64) string {
	return FormatAmountWithDecimals(lamports, 9) + " SOL"
}
