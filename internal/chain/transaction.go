// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package chain

import (
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"

	"github.com/aplane-algo/apecho/internal/pubkey"
)

// Transaction is an ordered list of instructions that commits or fails as a
// unit, plus signatures from every account any instruction marks as signer.
type Transaction struct {
	Instructions []Instruction
	Signatures   map[pubkey.Pubkey][]byte
}

// NewTransaction returns an unsigned transaction.
func NewTransaction(instructions ...Instruction) *Transaction {
	return &Transaction{
		Instructions: instructions,
		Signatures:   make(map[pubkey.Pubkey][]byte),
	}
}

// Add appends instructions. Existing signatures are invalidated.
func (tx *Transaction) Add(instructions ...Instruction) {
	tx.Instructions = append(tx.Instructions, instructions...)
	clear(tx.Signatures)
}

// RequiredSigners returns every key marked as signer, first occurrence order.
func (tx *Transaction) RequiredSigners() []pubkey.Pubkey {
	seen := make(map[pubkey.Pubkey]bool)
	var signers []pubkey.Pubkey
	for _, ix := range tx.Instructions {
		for _, meta := range ix.Accounts {
			if meta.IsSigner && !seen[meta.Pubkey] {
				seen[meta.Pubkey] = true
				signers = append(signers, meta.Pubkey)
			}
		}
	}
	return signers
}

type metaRecord struct {
	Pubkey     []byte `codec:"k"`
	IsSigner   bool   `codec:"s"`
	IsWritable bool   `codec:"w"`
}

type instructionRecord struct {
	ProgramID []byte       `codec:"p"`
	Accounts  []metaRecord `codec:"a"`
	Data      []byte       `codec:"d"`
}

type messageRecord struct {
	Instructions []instructionRecord `codec:"ix"`
}

// Message returns the bytes signers sign: the msgpack encoding of the
// instructions.
func (tx *Transaction) Message() []byte {
	msg := messageRecord{Instructions: make([]instructionRecord, 0, len(tx.Instructions))}
	for _, ix := range tx.Instructions {
		rec := instructionRecord{
			ProgramID: ix.ProgramID.Bytes(),
			Accounts:  make([]metaRecord, 0, len(ix.Accounts)),
			Data:      ix.Data,
		}
		for _, meta := range ix.Accounts {
			rec.Accounts = append(rec.Accounts, metaRecord{
				Pubkey:     meta.Pubkey.Bytes(),
				IsSigner:   meta.IsSigner,
				IsWritable: meta.IsWritable,
			})
		}
		msg.Instructions = append(msg.Instructions, rec)
	}
	return msgpack.Encode(msg)
}

// Sign adds signatures from the given keypairs. Keypairs that no
// instruction requires are rejected.
func (tx *Transaction) Sign(keypairs ...pubkey.Keypair) error {
	required := make(map[pubkey.Pubkey]bool)
	for _, s := range tx.RequiredSigners() {
		required[s] = true
	}
	if tx.Signatures == nil {
		tx.Signatures = make(map[pubkey.Pubkey][]byte)
	}
	msg := tx.Message()
	for _, kp := range keypairs {
		pk := kp.Public()
		if !required[pk] {
			return fmt.Errorf("keypair %s is not a required signer", pk)
		}
		tx.Signatures[pk] = kp.Sign(msg)
	}
	return nil
}

// Verify checks that every required signer has a valid signature.
func (tx *Transaction) Verify() error {
	if len(tx.Instructions) == 0 {
		return ErrEmptyTransaction
	}
	msg := tx.Message()
	for _, signer := range tx.RequiredSigners() {
		sig, ok := tx.Signatures[signer]
		if !ok {
			return fmt.Errorf("%w: missing signature for %s", ErrSignatureFailure, signer)
		}
		if !pubkey.Verify(signer, msg, sig) {
			return fmt.Errorf("%w: invalid signature for %s", ErrSignatureFailure, signer)
		}
	}
	return nil
}
