// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package processor implements the echo program: plain echo into a buffer,
// and authorized buffers whose address is derived from an authority and a
// seed so that only that authority can write them.
package processor

import (
	"errors"
	"fmt"

	"github.com/aplane-algo/apecho/internal/chain"
	"github.com/aplane-algo/apecho/internal/instruction"
	"github.com/aplane-algo/apecho/internal/util"
)

// Program is the echo program. It keeps no state between invocations; all
// state lives in the accounts passed to Process.
type Program struct{}

// New returns the echo program, ready to register with a chain.Runtime.
func New() *Program {
	return &Program{}
}

// Process decodes one instruction and dispatches it. Account lists follow
// the positional contract of each variant:
//
//	Echo                      [buffer (w)]
//	InitializeAuthorizedEcho  [buffer (w), authority (s), system program]
//	AuthorizedEcho            [buffer (w), authority (s)]
func (p *Program) Process(ctx chain.InvokeContext, accounts []*chain.AccountInfo, data []byte) error {
	util.Debug("process_instruction",
		"program", ctx.ProgramID().String(),
		"accounts", len(accounts),
		"data", fmt.Sprintf("%v", data))

	ix, err := instruction.Decode(data)
	if err != nil {
		return fmt.Errorf("%w: %v", chain.ErrInvalidInstructionData, err)
	}
	util.Debug("processing instruction", "instruction", ix.Tag().String())

	switch ix := ix.(type) {
	case instruction.Echo:
		if len(accounts) < 1 {
			return chain.ErrNotEnoughAccountKeys
		}
		return Echo(ctx, EchoAccounts{Buffer: accounts[0]}, ix.Data)

	case instruction.InitializeAuthorizedEcho:
		if len(accounts) < 3 {
			return chain.ErrNotEnoughAccountKeys
		}
		return Initialize(ctx, InitializeAccounts{
			Buffer:        accounts[0],
			Authority:     accounts[1],
			SystemProgram: accounts[2],
		}, ix.BufferSeed, ix.BufferSize)

	case instruction.AuthorizedEcho:
		if len(accounts) < 2 {
			return chain.ErrNotEnoughAccountKeys
		}
		return AuthorizedWrite(ctx, WriteAccounts{
			Buffer:    accounts[0],
			Authority: accounts[1],
		}, ix.Data)

	case instruction.InitializeVendingMachineEcho, instruction.VendingMachineEcho:
		util.Debug("rejecting unsupported instruction", "instruction", ix.Tag().String())
		return fmt.Errorf("%w: %s", ErrUnsupportedInstruction, ix.Tag())

	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedInstruction, ix)
	}
}

// EchoAccounts names the accounts of an Echo instruction.
type EchoAccounts struct {
	Buffer *chain.AccountInfo
}

// Echo overwrites the whole of the buffer's data with data, truncating or
// zero-padding to the buffer's length. The runtime only commits the change if
// this program owns the buffer and it was passed writable.
func Echo(ctx chain.InvokeContext, accts EchoAccounts, data []byte) error {
	buf := accts.Buffer
	if !buf.IsWritable {
		return fmt.Errorf("%w: buffer %s must be writable", chain.ErrInvalidArgument, buf.Key)
	}
	if buf.Owner != ctx.ProgramID() {
		return fmt.Errorf("%w: buffer %s is owned by %s", chain.ErrIncorrectProgramID, buf.Key, buf.Owner)
	}
	copyPayload(buf.Data, data)
	return nil
}

// IsAuthorizationError reports whether err is a rejected authorized write or
// initialization (wrong buffer, forged header).
func IsAuthorizationError(err error) bool {
	return errors.Is(err, ErrAddressMismatch) || errors.Is(err, ErrBumpMismatch)
}
