// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package chain

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"

	"github.com/aplane-algo/apecho/internal/fsutil"
	"github.com/aplane-algo/apecho/internal/pubkey"
)

// Ledger is the keyed account store. It is owned by a Runtime, which
// serializes access; direct use outside a Runtime is not synchronized.
type Ledger struct {
	slot     uint64
	accounts map[pubkey.Pubkey]*Account
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{accounts: make(map[pubkey.Pubkey]*Account)}
}

// Slot returns the number of committed transactions.
func (l *Ledger) Slot() uint64 {
	return l.slot
}

// Get returns a copy of the account stored at key.
func (l *Ledger) Get(key pubkey.Pubkey) (*Account, bool) {
	acct, ok := l.accounts[key]
	if !ok {
		return nil, false
	}
	return acct.Clone(), true
}

// Put stores a copy of acct at key. Unused accounts are removed instead.
func (l *Ledger) Put(key pubkey.Pubkey, acct *Account) {
	if acct.IsUnused() {
		delete(l.accounts, key)
		return
	}
	l.accounts[key] = acct.Clone()
}

// Keys returns all stored keys in ascending byte order.
func (l *Ledger) Keys() []pubkey.Pubkey {
	keys := make([]pubkey.Pubkey, 0, len(l.accounts))
	for k := range l.accounts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i][:], keys[j][:]) < 0
	})
	return keys
}

// Credit adds lamports to key, creating a system-owned account if needed.
func (l *Ledger) Credit(key pubkey.Pubkey, lamports uint64) {
	acct, ok := l.accounts[key]
	if !ok {
		acct = &Account{Owner: SystemProgramID}
		l.accounts[key] = acct
	}
	acct.Lamports += lamports
}

// accountRecord is the persisted form of one account.
type accountRecord struct {
	Key        []byte `codec:"key"`
	Lamports   uint64 `codec:"lamports"`
	Owner      []byte `codec:"owner"`
	Executable bool   `codec:"exec"`
	Data       []byte `codec:"data"`
}

// ledgerSnapshot is the persisted form of a Ledger.
type ledgerSnapshot struct {
	Version  int             `codec:"v"`
	Slot     uint64          `codec:"slot"`
	Accounts []accountRecord `codec:"accounts"`
}

const snapshotVersion = 1

// MarshalBinary encodes the ledger as a msgpack snapshot. Accounts are
// written in key order so identical ledgers encode identically.
func (l *Ledger) MarshalBinary() ([]byte, error) {
	snap := ledgerSnapshot{Version: snapshotVersion, Slot: l.slot}
	for _, key := range l.Keys() {
		acct := l.accounts[key]
		snap.Accounts = append(snap.Accounts, accountRecord{
			Key:        key.Bytes(),
			Lamports:   acct.Lamports,
			Owner:      acct.Owner.Bytes(),
			Executable: acct.Executable,
			Data:       acct.Data,
		})
	}
	return msgpack.Encode(snap), nil
}

// UnmarshalBinary replaces the ledger contents with a decoded snapshot.
func (l *Ledger) UnmarshalBinary(data []byte) error {
	var snap ledgerSnapshot
	if err := msgpack.Decode(data, &snap); err != nil {
		return fmt.Errorf("failed to decode ledger snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported ledger snapshot version %d (expected %d)", snap.Version, snapshotVersion)
	}

	accounts := make(map[pubkey.Pubkey]*Account, len(snap.Accounts))
	for i, rec := range snap.Accounts {
		key, err := pubkey.FromBytes(rec.Key)
		if err != nil {
			return fmt.Errorf("account %d: bad key: %w", i, err)
		}
		owner, err := pubkey.FromBytes(rec.Owner)
		if err != nil {
			return fmt.Errorf("account %s: bad owner: %w", key, err)
		}
		accounts[key] = &Account{
			Lamports:   rec.Lamports,
			Owner:      owner,
			Executable: rec.Executable,
			Data:       bytes.Clone(rec.Data),
		}
	}
	l.slot = snap.Slot
	l.accounts = accounts
	return nil
}

// Save writes the ledger snapshot to path atomically (temp file + rename).
func (l *Ledger) Save(path string) error {
	data, err := l.MarshalBinary()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := fsutil.MkdirAll(dir); err != nil {
			return fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := fsutil.WriteFile(tmp, data); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace ledger: %w", err)
	}
	return nil
}

// LoadLedger reads a ledger snapshot. A missing file yields an empty ledger.
func LoadLedger(path string) (*Ledger, error) {
	l := NewLedger()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	if err := l.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return l, nil
}
