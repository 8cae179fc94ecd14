// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package processor

import (
	"fmt"

	"github.com/aplane-algo/apecho/internal/chain"
	"github.com/aplane-algo/apecho/internal/state"
)

// Each error wraps the program error code the runtime reports, so callers can
// match either the specific cause or the code with errors.Is.
var (
	// ErrAddressMismatch indicates the supplied buffer is not the address
	// derived from the authority and seed.
	ErrAddressMismatch = fmt.Errorf("%w: buffer address does not match derived address", chain.ErrIllegalOwner)

	// ErrBumpMismatch indicates the stored bump disagrees with re-derivation.
	ErrBumpMismatch = fmt.Errorf("%w: stored bump does not match derived bump", chain.ErrInvalidAccountData)

	// ErrUninitializedBuffer indicates the buffer is too small to hold a
	// header. It also matches state.ErrDecode.
	ErrUninitializedBuffer = fmt.Errorf("%w: %w", chain.ErrUninitializedAccount, state.ErrDecode)

	// ErrUnsupportedInstruction is returned for the reserved vending machine
	// variants.
	ErrUnsupportedInstruction = fmt.Errorf("%w: instruction not supported", chain.ErrInvalidInstructionData)
)
