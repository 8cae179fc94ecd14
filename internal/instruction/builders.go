// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package instruction

import (
	"github.com/aplane-algo/apecho/internal/chain"
	"github.com/aplane-algo/apecho/internal/pubkey"
)

// NewEcho builds an Echo instruction writing data into buffer.
func NewEcho(programID, buffer pubkey.Pubkey, data []byte) chain.Instruction {
	return chain.Instruction{
		ProgramID: programID,
		Accounts: []chain.AccountMeta{
			{Pubkey: buffer, IsWritable: true},
		},
		Data: Encode(Echo{Data: data}),
	}
}

// NewInitializeAuthorizedEcho builds the instruction that creates the derived
// buffer at buffer for authority. The authority funds the account, so it is
// passed writable as well as signer.
func NewInitializeAuthorizedEcho(programID, buffer, authority pubkey.Pubkey, bufferSeed, bufferSize uint64) chain.Instruction {
	return chain.Instruction{
		ProgramID: programID,
		Accounts: []chain.AccountMeta{
			{Pubkey: buffer, IsWritable: true},
			{Pubkey: authority, IsSigner: true, IsWritable: true},
			{Pubkey: chain.SystemProgramID},
		},
		Data: Encode(InitializeAuthorizedEcho{BufferSeed: bufferSeed, BufferSize: bufferSize}),
	}
}

// NewAuthorizedEcho builds the instruction that writes data into the
// authority's derived buffer.
func NewAuthorizedEcho(programID, buffer, authority pubkey.Pubkey, data []byte) chain.Instruction {
	return chain.Instruction{
		ProgramID: programID,
		Accounts: []chain.AccountMeta{
			{Pubkey: buffer, IsWritable: true},
			{Pubkey: authority, IsSigner: true},
		},
		Data: Encode(AuthorizedEcho{Data: data}),
	}
}
