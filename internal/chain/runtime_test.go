// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package chain

import (
	"bytes"
	"errors"
	"testing"

	"github.com/aplane-algo/apecho/internal/pda"
	"github.com/aplane-algo/apecho/internal/pubkey"
)

func mustKeypair(t *testing.T) pubkey.Keypair {
	t.Helper()
	kp, err := pubkey.NewKeypair()
	if err != nil {
		t.Fatalf("NewKeypair() error = %v", err)
	}
	return kp
}

func signAndSubmit(t *testing.T, rt *Runtime, signers []pubkey.Keypair, ixs ...Instruction) error {
	t.Helper()
	tx := NewTransaction(ixs...)
	if err := tx.Sign(signers...); err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	return rt.Submit(tx)
}

func testProgramID(b byte) pubkey.Pubkey {
	var id pubkey.Pubkey
	id[0] = 0xEC
	id[31] = b
	return id
}

func TestRent_MinimumBalance(t *testing.T) {
	tests := []struct {
		dataLen uint64
		want    uint64
	}{
		{0, 890_880},
		{13, 981_360},
		{9, 953_520},
		{128, 1_781_760},
	}
	rent := DefaultRent()
	for _, tt := range tests {
		if got := rent.MinimumBalance(tt.dataLen); got != tt.want {
			t.Errorf("MinimumBalance(%d) = %d, want %d", tt.dataLen, got, tt.want)
		}
	}
	if !rent.IsExempt(981_360, 13) {
		t.Error("IsExempt(981360, 13) = false, want true")
	}
	if rent.IsExempt(981_359, 13) {
		t.Error("IsExempt(981359, 13) = true, want false")
	}
}

func TestNewRuntime_Options(t *testing.T) {
	if _, err := NewRuntime(nil, WithRent(Rent{})); err == nil {
		t.Error("WithRent(zero) should fail")
	}
	if _, err := NewRuntime(nil, WithRent(Rent{LamportsPerByteYear: 1, ExemptionThreshold: -1})); err == nil {
		t.Error("WithRent(negative threshold) should fail")
	}
	if _, err := NewRuntime(nil, WithProgram(SystemProgramID, ProgramFunc(nil))); err == nil {
		t.Error("WithProgram(system id) should fail")
	}

	custom := Rent{LamportsPerByteYear: 10, ExemptionThreshold: 1}
	rt, err := NewRuntime(nil, WithRent(custom))
	if err != nil {
		t.Fatalf("NewRuntime() error = %v", err)
	}
	if rt.Rent() != custom {
		t.Errorf("Rent() = %+v, want %+v", rt.Rent(), custom)
	}
}

func TestSystem_CreateAccountAndTransfer(t *testing.T) {
	rt, _ := NewRuntime(nil)
	payer := mustKeypair(t)
	target := mustKeypair(t)
	owner := testProgramID(1)
	rt.Airdrop(payer.Public(), 10_000_000)

	lamports := rt.Rent().MinimumBalance(16)
	err := signAndSubmit(t, rt, []pubkey.Keypair{payer, target},
		CreateAccount(payer.Public(), target.Public(), lamports, 16, owner))
	if err != nil {
		t.Fatalf("CreateAccount error = %v", err)
	}

	acct, ok := rt.Account(target.Public())
	if !ok {
		t.Fatal("created account missing")
	}
	if acct.Owner != owner || len(acct.Data) != 16 || acct.Lamports != lamports {
		t.Errorf("account = %+v, want owner %v, 16 bytes, %d lamports", acct, owner, lamports)
	}
	if rt.Slot() != 1 {
		t.Errorf("Slot() = %d, want 1", rt.Slot())
	}

	// Creating it again fails
	err = signAndSubmit(t, rt, []pubkey.Keypair{payer, target},
		CreateAccount(payer.Public(), target.Public(), lamports, 16, owner))
	if !errors.Is(err, ErrAccountAlreadyInUse) {
		t.Errorf("second CreateAccount error = %v, want ErrAccountAlreadyInUse", err)
	}

	dest := mustKeypair(t).Public()
	if err := signAndSubmit(t, rt, []pubkey.Keypair{payer}, Transfer(payer.Public(), dest, 1_000_000)); err != nil {
		t.Fatalf("Transfer error = %v", err)
	}
	got, _ := rt.Account(dest)
	if got.Lamports != 1_000_000 {
		t.Errorf("dest lamports = %d, want 1000000", got.Lamports)
	}
	p, _ := rt.Account(payer.Public())
	if p.Lamports != 10_000_000-lamports-1_000_000 {
		t.Errorf("payer lamports = %d, want %d", p.Lamports, 10_000_000-lamports-1_000_000)
	}

	err = signAndSubmit(t, rt, []pubkey.Keypair{payer}, Transfer(payer.Public(), dest, 1<<40))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("overdraft error = %v, want ErrInsufficientFunds", err)
	}
}

func TestSystem_Assign(t *testing.T) {
	rt, _ := NewRuntime(nil)
	kp := mustKeypair(t)
	owner := testProgramID(2)
	rt.Airdrop(kp.Public(), 1_000_000)

	if err := signAndSubmit(t, rt, []pubkey.Keypair{kp}, Assign(kp.Public(), owner)); err != nil {
		t.Fatalf("Assign error = %v", err)
	}
	acct, _ := rt.Account(kp.Public())
	if acct.Owner != owner {
		t.Errorf("owner = %v, want %v", acct.Owner, owner)
	}

	// The system program no longer owns it and cannot reassign it back
	err := signAndSubmit(t, rt, []pubkey.Keypair{kp}, Assign(kp.Public(), SystemProgramID))
	if !errors.Is(err, ErrIllegalOwner) {
		t.Errorf("reassign error = %v, want ErrIllegalOwner", err)
	}
}

func TestSubmit_Signatures(t *testing.T) {
	rt, _ := NewRuntime(nil)
	payer := mustKeypair(t)
	other := mustKeypair(t)
	rt.Airdrop(payer.Public(), 5_000_000)
	ix := Transfer(payer.Public(), other.Public(), 1_000_000)

	if err := rt.Submit(NewTransaction(ix)); !errors.Is(err, ErrSignatureFailure) {
		t.Errorf("unsigned Submit error = %v, want ErrSignatureFailure", err)
	}

	forged := NewTransaction(ix)
	forged.Signatures[payer.Public()] = other.Sign(forged.Message())
	if err := rt.Submit(forged); !errors.Is(err, ErrSignatureFailure) {
		t.Errorf("forged Submit error = %v, want ErrSignatureFailure", err)
	}

	if err := rt.Submit(NewTransaction()); !errors.Is(err, ErrEmptyTransaction) {
		t.Errorf("empty Submit error = %v, want ErrEmptyTransaction", err)
	}

	tx := NewTransaction(ix)
	if err := tx.Sign(other); err == nil {
		t.Error("Sign() with a non-required keypair should fail")
	}
	if err := tx.Sign(payer); err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	tx.Add(Transfer(payer.Public(), other.Public(), 1))
	if len(tx.Signatures) != 0 {
		t.Error("Add() should drop existing signatures")
	}

	if rt.Slot() != 0 {
		t.Errorf("Slot() = %d, want 0 after rejected transactions", rt.Slot())
	}
}

func TestSubmit_ProgramNotFound(t *testing.T) {
	rt, _ := NewRuntime(nil)
	err := rt.Submit(NewTransaction(Instruction{ProgramID: testProgramID(9)}))
	if !errors.Is(err, ErrProgramNotFound) {
		t.Errorf("Submit error = %v, want ErrProgramNotFound", err)
	}
}

// writerProgram overwrites accounts[0].Data[0] with data[0].
var writerProgram = ProgramFunc(func(ctx InvokeContext, accounts []*AccountInfo, data []byte) error {
	accounts[0].Data[0] = data[0]
	return nil
})

func TestSubmit_OwnershipEnforced(t *testing.T) {
	writer := testProgramID(3)
	otherOwner := testProgramID(4)
	ledger := NewLedger()
	rt, _ := NewRuntime(ledger, WithProgram(writer, writerProgram))

	var owned, foreign pubkey.Pubkey
	owned[0], foreign[0] = 1, 2
	ledger.Put(owned, &Account{Lamports: 1_000_000_000, Owner: writer, Data: []byte{0}})
	ledger.Put(foreign, &Account{Lamports: 1_000_000_000, Owner: otherOwner, Data: []byte{0}})

	tests := []struct {
		name    string
		meta    AccountMeta
		wantErr error
	}{
		{"owned writable", AccountMeta{Pubkey: owned, IsWritable: true}, nil},
		{"owned readonly", AccountMeta{Pubkey: owned}, ErrReadonlyDataModified},
		{"foreign writable", AccountMeta{Pubkey: foreign, IsWritable: true}, ErrExternalAccountDataModified},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, _ := rt.Account(tt.meta.Pubkey)
			err := rt.Submit(NewTransaction(Instruction{
				ProgramID: writer,
				Accounts:  []AccountMeta{tt.meta},
				Data:      []byte{byte(i + 10)},
			}))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Submit error = %v, want %v", err, tt.wantErr)
			}
			after, _ := rt.Account(tt.meta.Pubkey)
			if tt.wantErr != nil && !bytes.Equal(before.Data, after.Data) {
				t.Errorf("data changed by rejected transaction: %v -> %v", before.Data, after.Data)
			}
			if tt.wantErr == nil && after.Data[0] != byte(i+10) {
				t.Errorf("data = %v, want [%d]", after.Data, i+10)
			}
		})
	}
}

func TestSubmit_LamportRules(t *testing.T) {
	thief := testProgramID(5)
	ledger := NewLedger()
	rt, _ := NewRuntime(ledger, WithProgram(thief, ProgramFunc(func(ctx InvokeContext, accounts []*AccountInfo, data []byte) error {
		switch data[0] {
		case 0: // move lamports from accounts[0] to accounts[1]
			accounts[0].Lamports -= 10
			accounts[1].Lamports += 10
		case 1: // mint
			accounts[0].Lamports += 10
		}
		return nil
	})))

	var victim, sink pubkey.Pubkey
	victim[0], sink[0] = 1, 2
	ledger.Credit(victim, 10_000_000)
	ledger.Credit(sink, 10_000_000)
	w := func(k pubkey.Pubkey) AccountMeta { return AccountMeta{Pubkey: k, IsWritable: true} }

	err := rt.Submit(NewTransaction(Instruction{ProgramID: thief, Accounts: []AccountMeta{w(victim), w(sink)}, Data: []byte{0}}))
	if !errors.Is(err, ErrExternalLamportSpend) {
		t.Errorf("spend error = %v, want ErrExternalLamportSpend", err)
	}

	err = rt.Submit(NewTransaction(Instruction{ProgramID: thief, Accounts: []AccountMeta{w(sink)}, Data: []byte{1}}))
	if !errors.Is(err, ErrUnbalancedInstruction) {
		t.Errorf("mint error = %v, want ErrUnbalancedInstruction", err)
	}

	err = rt.Submit(NewTransaction(Instruction{ProgramID: thief, Accounts: []AccountMeta{{Pubkey: sink}}, Data: []byte{1}}))
	if !errors.Is(err, ErrReadonlyLamportChange) {
		t.Errorf("readonly change error = %v, want ErrReadonlyLamportChange", err)
	}
}

func TestSubmit_RollbackOnLaterFailure(t *testing.T) {
	rt, _ := NewRuntime(nil)
	payer := mustKeypair(t)
	dest := mustKeypair(t).Public()
	rt.Airdrop(payer.Public(), 5_000_000)

	err := signAndSubmit(t, rt, []pubkey.Keypair{payer},
		Transfer(payer.Public(), dest, 1_000_000),
		Transfer(payer.Public(), dest, 1<<40))
	var txErr *TransactionError
	if !errors.As(err, &txErr) || txErr.Index != 1 {
		t.Fatalf("Submit error = %v, want TransactionError at index 1", err)
	}
	if code, ok := AsProgramError(err); !ok || code != ErrInsufficientFunds {
		t.Errorf("AsProgramError() = %v, %v, want ErrInsufficientFunds", code, ok)
	}
	if _, ok := rt.Account(dest); ok {
		t.Error("first transfer committed despite later failure")
	}
	p, _ := rt.Account(payer.Public())
	if p.Lamports != 5_000_000 {
		t.Errorf("payer lamports = %d, want 5000000", p.Lamports)
	}
}

func TestSubmit_RentCheckedAtCommit(t *testing.T) {
	rt, _ := NewRuntime(nil)
	payer := mustKeypair(t)
	rt.Airdrop(payer.Public(), 5_000_000)

	// A transfer below the exempt minimum leaves dest non-exempt
	err := signAndSubmit(t, rt, []pubkey.Keypair{payer}, Transfer(payer.Public(), mustKeypair(t).Public(), 100))
	if !errors.Is(err, ErrInsufficientFundsForRent) {
		t.Errorf("Submit error = %v, want ErrInsufficientFundsForRent", err)
	}

	// Draining an account entirely is fine: it is deleted at commit
	dest := mustKeypair(t).Public()
	if err := signAndSubmit(t, rt, []pubkey.Keypair{payer}, Transfer(payer.Public(), dest, 5_000_000)); err != nil {
		t.Fatalf("drain error = %v", err)
	}
	if _, ok := rt.Account(payer.Public()); ok {
		t.Error("drained account should be removed")
	}
}

// derivedCreator creates the account derived from "vault" through the
// system program, signing with the address derived from signWith.
func derivedCreator(signWith string) ProgramFunc {
	return func(ctx InvokeContext, accounts []*AccountInfo, data []byte) error {
		payer, vault, sys := accounts[0], accounts[1], accounts[2]
		_, bump, err := pda.FindProgramAddress([][]byte{[]byte(signWith)}, ctx.ProgramID())
		if err != nil {
			return err
		}
		ix := CreateAccount(payer.Key, vault.Key, ctx.Rent().MinimumBalance(4), 4, ctx.ProgramID())
		seeds := [][]byte{[]byte(signWith), {bump}}
		if err := ctx.InvokeSigned(ix, []*AccountInfo{payer, vault, sys}, seeds); err != nil {
			return err
		}
		// The program owns the account now and may write it
		vault.Data[0] = 0xAB
		return nil
	}
}

func TestInvokeSigned(t *testing.T) {
	good := testProgramID(6)
	bad := testProgramID(7)
	rt, _ := NewRuntime(nil,
		WithProgram(good, derivedCreator("vault")),
		WithProgram(bad, derivedCreator("other")),
	)
	payer := mustKeypair(t)
	rt.Airdrop(payer.Public(), 10_000_000)

	call := func(program pubkey.Pubkey, payerWritable bool) (pubkey.Pubkey, error) {
		vault, _, err := pda.FindProgramAddress([][]byte{[]byte("vault")}, program)
		if err != nil {
			t.Fatalf("FindProgramAddress() error = %v", err)
		}
		ix := Instruction{
			ProgramID: program,
			Accounts: []AccountMeta{
				{Pubkey: payer.Public(), IsSigner: true, IsWritable: payerWritable},
				{Pubkey: vault, IsWritable: true},
				{Pubkey: SystemProgramID},
			},
		}
		return vault, signAndSubmit(t, rt, []pubkey.Keypair{payer}, ix)
	}

	if _, err := call(bad, true); !errors.Is(err, ErrPrivilegeEscalation) {
		t.Errorf("wrong seeds error = %v, want ErrPrivilegeEscalation", err)
	}
	if _, err := call(good, false); !errors.Is(err, ErrPrivilegeEscalation) {
		t.Errorf("readonly payer error = %v, want ErrPrivilegeEscalation", err)
	}

	vault, err := call(good, true)
	if err != nil {
		t.Fatalf("InvokeSigned error = %v", err)
	}
	acct, ok := rt.Account(vault)
	if !ok {
		t.Fatal("vault not created")
	}
	if acct.Owner != good || !bytes.Equal(acct.Data, []byte{0xAB, 0, 0, 0}) {
		t.Errorf("vault = %+v, want owned by program with data [AB 0 0 0]", acct)
	}
}

func TestInvoke_DepthLimit(t *testing.T) {
	id := testProgramID(8)
	var calls int
	recurse := ProgramFunc(func(ctx InvokeContext, accounts []*AccountInfo, data []byte) error {
		calls++
		return ctx.Invoke(Instruction{ProgramID: id}, nil)
	})
	rt, _ := NewRuntime(nil, WithProgram(id, recurse))

	err := rt.Submit(NewTransaction(Instruction{ProgramID: id}))
	if !errors.Is(err, ErrCallDepth) {
		t.Errorf("Submit error = %v, want ErrCallDepth", err)
	}
	if calls != MaxInvokeDepth {
		t.Errorf("calls = %d, want %d", calls, MaxInvokeDepth)
	}
}
