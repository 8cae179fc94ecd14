// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package testutil provides reusable test infrastructure and utilities.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aplane-algo/apecho/internal/chain"
	"github.com/aplane-algo/apecho/internal/crypto"
	"github.com/aplane-algo/apecho/internal/pubkey"
)

// Keypair generates a random keypair, failing the test on error.
func Keypair(t *testing.T) pubkey.Keypair {
	t.Helper()

	kp, err := pubkey.NewKeypair()
	if err != nil {
		t.Fatalf("Failed to generate keypair: %v", err)
	}
	return kp
}

// FundedKeypair generates a keypair and airdrops lamports to it on rt.
func FundedKeypair(t *testing.T, rt *chain.Runtime, lamports uint64) pubkey.Keypair {
	t.Helper()

	kp := Keypair(t)
	rt.Airdrop(kp.Public(), lamports)
	return kp
}

// SignAndSubmit builds a transaction from ixs, signs it with signers and
// submits it. Signing failures fail the test; the submit error is returned.
func SignAndSubmit(t *testing.T, rt *chain.Runtime, signers []pubkey.Keypair, ixs ...chain.Instruction) error {
	t.Helper()

	tx := chain.NewTransaction(ixs...)
	if err := tx.Sign(signers...); err != nil {
		t.Fatalf("Failed to sign transaction: %v", err)
	}
	return rt.Submit(tx)
}

// WriteTestKeyFile writes kp to dir/name in the raw 64-byte layout, or
// sealed under passphrase when it is non-empty. Returns the file path.
func WriteTestKeyFile(t *testing.T, dir, name string, kp pubkey.Keypair, passphrase []byte) string {
	t.Helper()

	data := kp.Bytes()
	defer crypto.ZeroBytes(data)

	dataToWrite := data
	if len(passphrase) > 0 {
		sealed, err := crypto.Seal(data, passphrase)
		if err != nil {
			t.Fatalf("Failed to seal key: %v", err)
		}
		dataToWrite = sealed
	}

	filePath := filepath.Join(dir, name)
	if err := os.WriteFile(filePath, dataToWrite, 0600); err != nil {
		t.Fatalf("Failed to write test key file: %v", err)
	}
	return filePath
}

// TempFile creates a temporary file with the given content, returning the path.
// The file is automatically cleaned up when the test completes.
func TempFile(t *testing.T, content []byte) string {
	t.Helper()

	tmpFile, err := os.CreateTemp(t.TempDir(), "testfile-*")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	if _, err := tmpFile.Write(content); err != nil {
		_ = tmpFile.Close()
		t.Fatalf("Failed to write temp file: %v", err)
	}

	_ = tmpFile.Close()
	return tmpFile.Name()
}
