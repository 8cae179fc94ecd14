// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package chain

import (
	"encoding/binary"
	"fmt"

	"github.com/aplane-algo/apecho/internal/pubkey"
)

// SystemProgramID is the address of the built-in system program, which owns
// every fresh account and is the only way to allocate one.
var SystemProgramID = pubkey.Zero

// MaxPermittedDataLength caps the size of a single account.
const MaxPermittedDataLength = 10 * 1024 * 1024

// System instruction tags (u32 little-endian at offset 0).
const (
	systemCreateAccount uint32 = 0
	systemAssign        uint32 = 1
	systemTransfer      uint32 = 2
)

// CreateAccount builds a system instruction that funds `to` with lamports
// from `from`, allocates space bytes and assigns it to owner. Both accounts
// must sign; a derived `to` signs through InvokeSigned.
func CreateAccount(from, to pubkey.Pubkey, lamports, space uint64, owner pubkey.Pubkey) Instruction {
	data := binary.LittleEndian.AppendUint32(nil, systemCreateAccount)
	data = binary.LittleEndian.AppendUint64(data, lamports)
	data = binary.LittleEndian.AppendUint64(data, space)
	data = append(data, owner[:]...)
	return Instruction{
		ProgramID: SystemProgramID,
		Accounts: []AccountMeta{
			{Pubkey: from, IsSigner: true, IsWritable: true},
			{Pubkey: to, IsSigner: true, IsWritable: true},
		},
		Data: data,
	}
}

// Assign builds a system instruction that hands account to owner.
func Assign(account, owner pubkey.Pubkey) Instruction {
	data := binary.LittleEndian.AppendUint32(nil, systemAssign)
	data = append(data, owner[:]...)
	return Instruction{
		ProgramID: SystemProgramID,
		Accounts:  []AccountMeta{{Pubkey: account, IsSigner: true, IsWritable: true}},
		Data:      data,
	}
}

// Transfer builds a system instruction that moves lamports.
func Transfer(from, to pubkey.Pubkey, lamports uint64) Instruction {
	data := binary.LittleEndian.AppendUint32(nil, systemTransfer)
	data = binary.LittleEndian.AppendUint64(data, lamports)
	return Instruction{
		ProgramID: SystemProgramID,
		Accounts: []AccountMeta{
			{Pubkey: from, IsSigner: true, IsWritable: true},
			{Pubkey: to, IsWritable: true},
		},
		Data: data,
	}
}

type systemProgram struct{}

func (systemProgram) Process(ctx InvokeContext, accounts []*AccountInfo, data []byte) error {
	if len(data) < 4 {
		return ErrInvalidInstructionData
	}
	tag := binary.LittleEndian.Uint32(data)
	body := data[4:]

	switch tag {
	case systemCreateAccount:
		if len(body) != 8+8+pubkey.Size {
			return ErrInvalidInstructionData
		}
		if len(accounts) < 2 {
			return ErrNotEnoughAccountKeys
		}
		lamports := binary.LittleEndian.Uint64(body)
		space := binary.LittleEndian.Uint64(body[8:])
		owner, _ := pubkey.FromBytes(body[16:])
		return createAccount(accounts[0], accounts[1], lamports, space, owner)

	case systemAssign:
		if len(body) != pubkey.Size {
			return ErrInvalidInstructionData
		}
		if len(accounts) < 1 {
			return ErrNotEnoughAccountKeys
		}
		owner, _ := pubkey.FromBytes(body)
		acct := accounts[0]
		if !acct.IsSigner {
			return fmt.Errorf("%w: assign %s", ErrMissingRequiredSignature, acct.Key)
		}
		acct.Owner = owner
		return nil

	case systemTransfer:
		if len(body) != 8 {
			return ErrInvalidInstructionData
		}
		if len(accounts) < 2 {
			return ErrNotEnoughAccountKeys
		}
		return transfer(accounts[0], accounts[1], binary.LittleEndian.Uint64(body))

	default:
		return fmt.Errorf("%w: unknown system instruction %d", ErrInvalidInstructionData, tag)
	}
}

func createAccount(from, to *AccountInfo, lamports, space uint64, owner pubkey.Pubkey) error {
	if !from.IsSigner {
		return fmt.Errorf("%w: funding account %s", ErrMissingRequiredSignature, from.Key)
	}
	if !to.IsSigner {
		return fmt.Errorf("%w: new account %s", ErrMissingRequiredSignature, to.Key)
	}
	if !to.IsUnused() {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInUse, to.Key)
	}
	if space > MaxPermittedDataLength {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidAccountDataLength, space, MaxPermittedDataLength)
	}
	if len(from.Data) != 0 {
		return fmt.Errorf("%w: funding account %s carries data", ErrInvalidArgument, from.Key)
	}
	if from.Lamports < lamports {
		return fmt.Errorf("%w: %s has %d lamports, needs %d", ErrInsufficientFunds, from.Key, from.Lamports, lamports)
	}

	from.Lamports -= lamports
	to.Lamports += lamports
	to.Data = make([]byte, space)
	to.Owner = owner
	return nil
}

func transfer(from, to *AccountInfo, lamports uint64) error {
	if !from.IsSigner {
		return fmt.Errorf("%w: transfer from %s", ErrMissingRequiredSignature, from.Key)
	}
	if len(from.Data) != 0 {
		return fmt.Errorf("%w: transfer source %s carries data", ErrInvalidArgument, from.Key)
	}
	if from.Lamports < lamports {
		return fmt.Errorf("%w: %s has %d lamports, needs %d", ErrInsufficientFunds, from.Key, from.Lamports, lamports)
	}
	from.Lamports -= lamports
	to.Lamports += lamports
	return nil
}
