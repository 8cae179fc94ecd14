// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package processor

import (
	"fmt"

	"github.com/aplane-algo/apecho/internal/chain"
	"github.com/aplane-algo/apecho/internal/pda"
	"github.com/aplane-algo/apecho/internal/state"
	"github.com/aplane-algo/apecho/internal/util"
)

// MaxBufferSize is the largest payload an authorized buffer can hold.
const MaxBufferSize = chain.MaxPermittedDataLength - state.HeaderSize

// InitializeAccounts names the accounts of an InitializeAuthorizedEcho
// instruction. Authority must sign; it pays for the new account.
type InitializeAccounts struct {
	Buffer        *chain.AccountInfo
	Authority     *chain.AccountInfo
	SystemProgram *chain.AccountInfo
}

// WriteAccounts names the accounts of an AuthorizedEcho instruction.
type WriteAccounts struct {
	Buffer    *chain.AccountInfo
	Authority *chain.AccountInfo
}

// Initialize creates the authority's derived buffer for bufferSeed with room
// for bufferSize payload bytes, funded to the rent-exempt minimum, and
// stamps the header. Failures of the account creation itself are returned
// unchanged.
func Initialize(ctx chain.InvokeContext, accts InitializeAccounts, bufferSeed, bufferSize uint64) error {
	// Bounded here so the size and rent arithmetic below cannot wrap.
	if bufferSize > MaxBufferSize {
		return fmt.Errorf("%w: buffer size %d exceeds %d", chain.ErrInvalidArgument, bufferSize, uint64(MaxBufferSize))
	}

	programID := ctx.ProgramID()
	authority := accts.Authority.Key

	bufferKey, bump, err := pda.AuthorityBuffer(programID, authority, bufferSeed)
	if err != nil {
		return fmt.Errorf("%w: %v", chain.ErrInvalidArgument, err)
	}
	if bufferKey != accts.Buffer.Key {
		util.Info("Authority key doesn't match",
			"buffer", accts.Buffer.Key.String(),
			"expected", bufferKey.String())
		return fmt.Errorf("%w: got %s, derived %s", ErrAddressMismatch, accts.Buffer.Key, bufferKey)
	}

	size := state.RequiredAccountSize(bufferSize)
	lamports := ctx.Rent().MinimumBalance(size)

	err = ctx.InvokeSigned(
		chain.CreateAccount(authority, bufferKey, lamports, size, programID),
		[]*chain.AccountInfo{accts.Authority, accts.Buffer, accts.SystemProgram},
		pda.AuthorityBufferSignerSeeds(authority, bufferSeed, bump),
	)
	if err != nil {
		return err
	}

	header := state.AuthorizedBufferHeader{Bump: bump, BufferSeed: bufferSeed}
	if err := header.MarshalTo(accts.Buffer.Data); err != nil {
		return err
	}

	util.Debug("initialized authorized buffer",
		"buffer", bufferKey.String(),
		"bump", bump,
		"seed", bufferSeed,
		"size", size,
		"lamports", lamports)
	return nil
}

// AuthorizedWrite writes data into the payload of the authority's buffer.
// The header's seed is re-derived with the supplied authority; both the bump
// and the address must match before anything is written. The payload is
// then fully rewritten: data is truncated to the payload length, and any
// remainder is zeroed.
func AuthorizedWrite(ctx chain.InvokeContext, accts WriteAccounts, data []byte) error {
	util.Debug("Authorized Echo instruction")
	buf := accts.Buffer

	if !accts.Authority.IsSigner {
		return fmt.Errorf("%w: authority %s", chain.ErrMissingRequiredSignature, accts.Authority.Key)
	}

	// Explicit length check ahead of decoding: an account that cannot hold a
	// header was never initialized by this program.
	if len(buf.Data) < state.HeaderSize {
		return fmt.Errorf("%w: %s holds %d bytes", ErrUninitializedBuffer, buf.Key, len(buf.Data))
	}
	header, err := state.Decode(buf.Data)
	if err != nil {
		return err
	}

	bufferKey, bump, err := pda.AuthorityBuffer(ctx.ProgramID(), accts.Authority.Key, header.BufferSeed)
	if err != nil {
		return fmt.Errorf("%w: %v", chain.ErrInvalidArgument, err)
	}
	if bump != header.Bump {
		util.Info("Bump seed doesn't match",
			"stored", header.Bump,
			"expected", bump)
		return fmt.Errorf("%w: stored %d, derived %d", ErrBumpMismatch, header.Bump, bump)
	}
	if bufferKey != buf.Key {
		util.Info("Authority key doesn't match",
			"buffer", buf.Key.String(),
			"expected", bufferKey.String())
		return fmt.Errorf("%w: got %s, derived %s", ErrAddressMismatch, buf.Key, bufferKey)
	}

	copyPayload(buf.Data[state.HeaderSize:], data)
	return nil
}

func copyPayload(dst, data []byte) {
	n := state.CopyPadded(dst, data)
	util.Debug("echoed bytes", "copied", n, "zeroed", len(dst)-n)
}
