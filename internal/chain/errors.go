// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package chain

import (
	"errors"
	"fmt"
)

// ProgramError is the failure code a program hands back to the runtime.
// Codes are surfaced to the submitter unchanged.
type ProgramError uint32

const (
	ErrInvalidArgument ProgramError = iota + 1
	ErrInvalidInstructionData
	ErrInvalidAccountData
	ErrAccountDataTooSmall
	ErrInsufficientFunds
	ErrIncorrectProgramID
	ErrMissingRequiredSignature
	ErrAccountAlreadyInitialized
	ErrUninitializedAccount
	ErrNotEnoughAccountKeys
	ErrAccountAlreadyInUse
	ErrInvalidAccountDataLength
	ErrIllegalOwner
	ErrReadonlyDataModified
	ErrExternalAccountDataModified
	ErrReadonlyLamportChange
	ErrExternalLamportSpend
	ErrUnbalancedInstruction
	ErrPrivilegeEscalation
	ErrInsufficientFundsForRent
)

var programErrorNames = map[ProgramError]string{
	ErrInvalidArgument:             "invalid program argument",
	ErrInvalidInstructionData:      "invalid instruction data",
	ErrInvalidAccountData:          "invalid account data for instruction",
	ErrAccountDataTooSmall:         "account data too small for instruction",
	ErrInsufficientFunds:           "insufficient funds for instruction",
	ErrIncorrectProgramID:          "incorrect program id for instruction",
	ErrMissingRequiredSignature:    "missing required signature for instruction",
	ErrAccountAlreadyInitialized:   "instruction requires an uninitialized account",
	ErrUninitializedAccount:        "instruction requires an initialized account",
	ErrNotEnoughAccountKeys:        "insufficient account keys for instruction",
	ErrAccountAlreadyInUse:         "account already in use",
	ErrInvalidAccountDataLength:    "invalid account data length",
	ErrIllegalOwner:                "provided owner is not allowed",
	ErrReadonlyDataModified:        "instruction modified data of a read-only account",
	ErrExternalAccountDataModified: "instruction modified data of an account it does not own",
	ErrReadonlyLamportChange:       "instruction changed the balance of a read-only account",
	ErrExternalLamportSpend:        "instruction spent from the balance of an account it does not own",
	ErrUnbalancedInstruction:       "sum of account balances before and after instruction do not match",
	ErrPrivilegeEscalation:         "cross-program invocation with unauthorized signer or writable account",
	ErrInsufficientFundsForRent:    "account would not be rent exempt",
}

func (e ProgramError) Error() string {
	if name, ok := programErrorNames[e]; ok {
		return name
	}
	return fmt.Sprintf("program error %d", uint32(e))
}

// Code returns the numeric error code.
func (e ProgramError) Code() uint32 {
	return uint32(e)
}

// Runtime errors raised before any program runs.
var (
	// ErrProgramNotFound indicates an instruction targets an unregistered program.
	ErrProgramNotFound = errors.New("program not found")

	// ErrSignatureFailure indicates a missing or invalid transaction signature.
	ErrSignatureFailure = errors.New("transaction signature verification failed")

	// ErrEmptyTransaction indicates a transaction without instructions.
	ErrEmptyTransaction = errors.New("transaction has no instructions")

	// ErrAccountNotFound indicates a ledger lookup miss.
	ErrAccountNotFound = errors.New("account not found")

	// ErrCallDepth indicates cross-program invocations nested too deeply.
	ErrCallDepth = errors.New("cross-program invocation depth exceeded")
)

// TransactionError reports which instruction of a transaction failed.
// The whole transaction was rolled back.
type TransactionError struct {
	Index int
	Err   error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("instruction %d failed: %v", e.Index, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// AsProgramError extracts the program error code carried by err, if any.
func AsProgramError(err error) (ProgramError, bool) {
	var pe ProgramError
	if errors.As(err, &pe) {
		return pe, true
	}
	return 0, false
}
