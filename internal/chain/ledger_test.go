// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package chain

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"

	"github.com/aplane-algo/apecho/internal/pubkey"
)

func TestLedger_PutGet(t *testing.T) {
	l := NewLedger()
	var key pubkey.Pubkey
	key[0] = 7

	acct := &Account{Lamports: 5, Owner: testProgramID(1), Data: []byte{1, 2}}
	l.Put(key, acct)
	acct.Data[0] = 99

	got, ok := l.Get(key)
	if !ok {
		t.Fatal("Get() missing account")
	}
	if got.Data[0] != 1 {
		t.Error("Put() must store a copy")
	}
	got.Data[1] = 99
	again, _ := l.Get(key)
	if again.Data[1] != 2 {
		t.Error("Get() must return a copy")
	}

	l.Put(key, &Account{Owner: SystemProgramID})
	if _, ok := l.Get(key); ok {
		t.Error("Put() of an unused account should delete it")
	}
}

func TestLedger_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.msgpack")

	l := NewLedger()
	var a, b pubkey.Pubkey
	a[0], b[0] = 2, 1
	l.Credit(a, 1_000_000)
	l.Put(b, &Account{Lamports: 981_360, Owner: testProgramID(3), Data: []byte{0xFE, 7, 0, 0, 0, 0, 0, 0, 0, 1, 2, 3, 4}})
	l.slot = 42

	if err := l.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	loaded, err := LoadLedger(path)
	if err != nil {
		t.Fatalf("LoadLedger() error = %v", err)
	}
	if loaded.Slot() != 42 {
		t.Errorf("Slot() = %d, want 42", loaded.Slot())
	}
	keys := loaded.Keys()
	if len(keys) != 2 || keys[0] != b || keys[1] != a {
		t.Errorf("Keys() = %v, want [%v %v]", keys, b, a)
	}
	got, _ := loaded.Get(b)
	want, _ := l.Get(b)
	if got.Lamports != want.Lamports || got.Owner != want.Owner || !bytes.Equal(got.Data, want.Data) {
		t.Errorf("account = %+v, want %+v", got, want)
	}

	first, _ := l.MarshalBinary()
	second, _ := loaded.MarshalBinary()
	if !bytes.Equal(first, second) {
		t.Error("identical ledgers should encode identically")
	}
}

func TestLoadLedger_Missing(t *testing.T) {
	l, err := LoadLedger(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("LoadLedger() error = %v", err)
	}
	if len(l.Keys()) != 0 || l.Slot() != 0 {
		t.Error("missing ledger file should load empty")
	}
}

func TestLedger_UnmarshalBinaryErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte{0xC1, 0x00}},
		{"wrong version", msgpack.Encode(ledgerSnapshot{Version: 99})},
		{"short key", msgpack.Encode(ledgerSnapshot{
			Version:  snapshotVersion,
			Accounts: []accountRecord{{Key: []byte{1, 2}, Owner: make([]byte, 32)}},
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewLedger().UnmarshalBinary(tt.data); err == nil {
				t.Error("UnmarshalBinary() should fail")
			}
		})
	}
}

func TestRuntime_SavePersistsCommits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.msgpack")
	rt, _ := NewRuntime(nil)
	payer := mustKeypair(t)
	dest := mustKeypair(t).Public()
	rt.Airdrop(payer.Public(), 5_000_000)
	if err := signAndSubmit(t, rt, []pubkey.Keypair{payer}, Transfer(payer.Public(), dest, 1_000_000)); err != nil {
		t.Fatalf("Transfer error = %v", err)
	}
	if err := rt.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := LoadLedger(path)
	if err != nil {
		t.Fatalf("LoadLedger() error = %v", err)
	}
	rt2, _ := NewRuntime(loaded)
	acct, ok := rt2.Account(dest)
	if !ok || acct.Lamports != 1_000_000 {
		t.Errorf("reloaded dest = %+v, %v, want 1000000 lamports", acct, ok)
	}
	if rt2.Slot() != 1 {
		t.Errorf("reloaded Slot() = %d, want 1", rt2.Slot())
	}
}
