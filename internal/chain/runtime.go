// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package chain is an in-process program runtime over a keyed account ledger.
//
// Transactions are verified, then executed one at a time (the runtime holds a
// lock for the whole transaction, which is the execution slot programs rely
// on). Instructions run against working copies of the touched accounts; the
// copies are committed only if every instruction succeeds, so a failed
// transaction leaves the ledger untouched.
package chain

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/aplane-algo/apecho/internal/pda"
	"github.com/aplane-algo/apecho/internal/pubkey"
	"github.com/aplane-algo/apecho/internal/util"
)

// MaxInvokeDepth bounds nested cross-program invocations.
const MaxInvokeDepth = 4

// Program is on-ledger logic addressed by a program id.
type Program interface {
	Process(ctx InvokeContext, accounts []*AccountInfo, data []byte) error
}

// ProgramFunc adapts a function to Program.
type ProgramFunc func(ctx InvokeContext, accounts []*AccountInfo, data []byte) error

// Process calls f.
func (f ProgramFunc) Process(ctx InvokeContext, accounts []*AccountInfo, data []byte) error {
	return f(ctx, accounts, data)
}

// InvokeContext is what a running program can ask of the runtime.
type InvokeContext interface {
	// ProgramID is the id of the running program.
	ProgramID() pubkey.Pubkey

	// Rent returns the ledger's rent parameters.
	Rent() Rent

	// Invoke calls another program with the caller's privileges.
	Invoke(ix Instruction, accounts []*AccountInfo) error

	// InvokeSigned is Invoke plus signatures for derived addresses. Each
	// entry of signerSeeds (bump included) must derive, under the calling
	// program's id, to an address that then counts as a signer.
	InvokeSigned(ix Instruction, accounts []*AccountInfo, signerSeeds ...[][]byte) error
}

// Runtime executes transactions against a Ledger.
type Runtime struct {
	mu       sync.Mutex
	ledger   *Ledger
	rent     Rent
	programs map[pubkey.Pubkey]Program
}

// RuntimeOption is a functional option for configuring the Runtime
type RuntimeOption func(*Runtime) error

// NewRuntime creates a runtime over ledger with the system program registered.
func NewRuntime(ledger *Ledger, opts ...RuntimeOption) (*Runtime, error) {
	if ledger == nil {
		ledger = NewLedger()
	}
	r := &Runtime{
		ledger:   ledger,
		rent:     DefaultRent(),
		programs: map[pubkey.Pubkey]Program{SystemProgramID: systemProgram{}},
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// WithRent sets the rent parameters
func WithRent(rent Rent) RuntimeOption {
	return func(r *Runtime) error {
		if rent.LamportsPerByteYear == 0 {
			return fmt.Errorf("rent lamports per byte-year must be positive")
		}
		if rent.ExemptionThreshold <= 0 {
			return fmt.Errorf("rent exemption threshold must be positive")
		}
		r.rent = rent
		return nil
	}
}

// WithProgram registers a program under id
func WithProgram(id pubkey.Pubkey, p Program) RuntimeOption {
	return func(r *Runtime) error {
		if id == SystemProgramID {
			return fmt.Errorf("program id %s is reserved for the system program", id)
		}
		r.programs[id] = p
		return nil
	}
}

// Rent returns the runtime's rent parameters.
func (r *Runtime) Rent() Rent {
	return r.rent
}

// Account returns a copy of the committed account at key.
func (r *Runtime) Account(key pubkey.Pubkey) (*Account, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ledger.Get(key)
}

// Airdrop credits lamports to key outside of any transaction.
func (r *Runtime) Airdrop(key pubkey.Pubkey, lamports uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledger.Credit(key, lamports)
	util.Debug("airdrop", "to", key.String(), "lamports", lamports)
}

// Save persists the committed ledger to path.
func (r *Runtime) Save(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ledger.Save(path)
}

// Slot returns the number of committed transactions.
func (r *Runtime) Slot() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ledger.Slot()
}

// Submit verifies and executes tx. Either every instruction succeeds and all
// changes are committed, or nothing is. Instruction failures are returned as
// *TransactionError wrapping the program's error unchanged.
func (r *Runtime) Submit(tx *Transaction) error {
	if err := tx.Verify(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	work := make(map[pubkey.Pubkey]*Account)
	orig := make(map[pubkey.Pubkey]*Account)
	load := func(key pubkey.Pubkey) *Account {
		if acct, ok := work[key]; ok {
			return acct
		}
		acct, ok := r.ledger.Get(key)
		if !ok {
			acct = &Account{Owner: SystemProgramID}
		}
		work[key] = acct
		orig[key] = acct.Clone()
		return acct
	}

	for i, ix := range tx.Instructions {
		infos := make([]*AccountInfo, len(ix.Accounts))
		for j, meta := range ix.Accounts {
			infos[j] = &AccountInfo{
				Key:        meta.Pubkey,
				IsSigner:   meta.IsSigner,
				IsWritable: meta.IsWritable,
				Account:    load(meta.Pubkey),
			}
		}
		if err := r.execute(ix.ProgramID, infos, ix.Data, 0); err != nil {
			util.Debug("transaction rolled back", "instruction", i, "error", err)
			return &TransactionError{Index: i, Err: err}
		}
	}

	for key, acct := range work {
		if accountEqual(acct, orig[key]) || acct.Lamports == 0 {
			continue
		}
		if !r.rent.IsExempt(acct.Lamports, uint64(len(acct.Data))) {
			return &TransactionError{
				Index: len(tx.Instructions) - 1,
				Err:   fmt.Errorf("%w: %s holds %d lamports, needs %d", ErrInsufficientFundsForRent, key, acct.Lamports, r.rent.MinimumBalance(uint64(len(acct.Data)))),
			}
		}
	}

	for key, acct := range work {
		if acct.Lamports == 0 {
			delete(r.ledger.accounts, key)
			continue
		}
		r.ledger.Put(key, acct)
	}
	r.ledger.slot++
	util.Debug("transaction committed", "slot", r.ledger.slot, "instructions", len(tx.Instructions))
	return nil
}

// execute runs one program invocation and checks the changes it made.
func (r *Runtime) execute(programID pubkey.Pubkey, infos []*AccountInfo, data []byte, depth int) error {
	prog, ok := r.programs[programID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProgramNotFound, programID)
	}
	inv := &invocation{
		rt:        r,
		programID: programID,
		depth:     depth,
		pre:       snapshot(infos),
	}
	if err := prog.Process(inv, infos, data); err != nil {
		return err
	}
	return verifyChanges(programID, inv.pre, infos)
}

// invocation implements InvokeContext for one program call.
type invocation struct {
	rt        *Runtime
	programID pubkey.Pubkey
	depth     int
	pre       map[*Account]preState
}

func (inv *invocation) ProgramID() pubkey.Pubkey { return inv.programID }

func (inv *invocation) Rent() Rent { return inv.rt.rent }

func (inv *invocation) Invoke(ix Instruction, accounts []*AccountInfo) error {
	return inv.InvokeSigned(ix, accounts)
}

func (inv *invocation) InvokeSigned(ix Instruction, accounts []*AccountInfo, signerSeeds ...[][]byte) error {
	if inv.depth+1 >= MaxInvokeDepth {
		return ErrCallDepth
	}

	signers := make(map[pubkey.Pubkey]bool)
	for _, info := range accounts {
		if info.IsSigner {
			signers[info.Key] = true
		}
	}
	for _, seeds := range signerSeeds {
		addr, err := pda.CreateProgramAddress(seeds, inv.programID)
		if err != nil {
			return fmt.Errorf("%w: bad signer seeds: %v", ErrInvalidArgument, err)
		}
		signers[addr] = true
	}

	callee := make([]*AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		var caller *AccountInfo
		for _, info := range accounts {
			if info.Key == meta.Pubkey {
				caller = info
				break
			}
		}
		if caller == nil {
			return fmt.Errorf("%w: account %s not passed to invoke", ErrNotEnoughAccountKeys, meta.Pubkey)
		}
		if meta.IsWritable && !caller.IsWritable {
			return fmt.Errorf("%w: %s is not writable", ErrPrivilegeEscalation, meta.Pubkey)
		}
		if meta.IsSigner && !signers[meta.Pubkey] {
			return fmt.Errorf("%w: %s did not sign", ErrPrivilegeEscalation, meta.Pubkey)
		}
		callee[i] = &AccountInfo{
			Key:        meta.Pubkey,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			Account:    caller.Account,
		}
	}

	if err := inv.rt.execute(ix.ProgramID, callee, ix.Data, inv.depth+1); err != nil {
		return err
	}

	// The callee's changes were already checked against its own privileges;
	// they become the caller's new baseline.
	for acct, st := range snapshot(callee) {
		if prev, ok := inv.pre[acct]; ok {
			st.writable = prev.writable
			st.key = prev.key
			inv.pre[acct] = st
		}
	}
	return nil
}

// preState is an account's state before an invocation.
type preState struct {
	lamports uint64
	owner    pubkey.Pubkey
	data     []byte
	writable bool
	key      pubkey.Pubkey
}

func snapshot(infos []*AccountInfo) map[*Account]preState {
	pre := make(map[*Account]preState, len(infos))
	for _, info := range infos {
		st, seen := pre[info.Account]
		if !seen {
			st = preState{
				lamports: info.Lamports,
				owner:    info.Owner,
				data:     bytes.Clone(info.Data),
				key:      info.Key,
			}
		}
		st.writable = st.writable || info.IsWritable
		pre[info.Account] = st
	}
	return pre
}

// verifyChanges enforces the ownership rules: only the owning program may
// change data, spend lamports or reassign an account, and only when the
// account was passed writable. Lamports are conserved.
func verifyChanges(programID pubkey.Pubkey, pre map[*Account]preState, infos []*AccountInfo) error {
	var before, after uint64
	checked := make(map[*Account]bool, len(infos))
	for _, info := range infos {
		acct := info.Account
		if checked[acct] {
			continue
		}
		checked[acct] = true
		st := pre[acct]
		before += st.lamports
		after += acct.Lamports

		ownedByCaller := st.owner == programID
		if acct.Owner != st.owner && (!ownedByCaller || !st.writable) {
			return fmt.Errorf("%w: %s reassigned by %s", ErrIllegalOwner, st.key, programID)
		}
		if !bytes.Equal(acct.Data, st.data) {
			if !st.writable {
				return fmt.Errorf("%w: %s", ErrReadonlyDataModified, st.key)
			}
			if !ownedByCaller {
				return fmt.Errorf("%w: %s", ErrExternalAccountDataModified, st.key)
			}
		}
		if acct.Lamports != st.lamports {
			if !st.writable {
				return fmt.Errorf("%w: %s", ErrReadonlyLamportChange, st.key)
			}
			if acct.Lamports < st.lamports && !ownedByCaller {
				return fmt.Errorf("%w: %s", ErrExternalLamportSpend, st.key)
			}
		}
	}
	if before != after {
		return ErrUnbalancedInstruction
	}
	return nil
}

func accountEqual(a, b *Account) bool {
	return a.Lamports == b.Lamports &&
		a.Owner == b.Owner &&
		a.Executable == b.Executable &&
		bytes.Equal(a.Data, b.Data)
}
