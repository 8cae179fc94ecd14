// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package chain

import (
	"bytes"

	"github.com/aplane-algo/apecho/internal/pubkey"
)

// Account is the ledger-resident state stored under a key.
type Account struct {
	Lamports   uint64
	Owner      pubkey.Pubkey
	Executable bool
	Data       []byte
}

// Clone returns a deep copy of a.
func (a *Account) Clone() *Account {
	c := *a
	c.Data = bytes.Clone(a.Data)
	return &c
}

// IsUnused reports whether a looks like a key that was never allocated:
// no balance, no data, owned by the system program.
func (a *Account) IsUnused() bool {
	return a.Lamports == 0 && len(a.Data) == 0 && a.Owner == SystemProgramID
}

// AccountMeta names an account an instruction touches and the privileges
// the submitter grants it.
type AccountMeta struct {
	Pubkey     pubkey.Pubkey
	IsSigner   bool
	IsWritable bool
}

// Instruction is a single program call within a transaction.
type Instruction struct {
	ProgramID pubkey.Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// AccountInfo is a program's view of one account for the duration of an
// instruction. Infos for the same key share the underlying Account, so
// changes made by a cross-program call are visible to the caller.
// Programs must not retain an AccountInfo after Process returns.
type AccountInfo struct {
	Key        pubkey.Pubkey
	IsSigner   bool
	IsWritable bool
	*Account
}
