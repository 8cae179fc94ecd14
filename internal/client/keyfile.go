// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aplane-algo/apecho/internal/crypto"
	"github.com/aplane-algo/apecho/internal/fsutil"
	"github.com/aplane-algo/apecho/internal/pubkey"
	"github.com/aplane-algo/apecho/internal/util"
)

// ErrPassphraseRequired is returned when a key file is sealed and no
// passphrase was supplied.
var ErrPassphraseRequired = errors.New("key file is encrypted; passphrase required")

// IsSealedKeyFile reports whether the key file at path is passphrase
// protected. A missing file is not sealed.
func IsSealedKeyFile(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read key file: %w", err)
	}
	defer crypto.ZeroBytes(data)
	return crypto.IsSealed(data), nil
}

// LoadAuthority reads a keypair from path. Two formats are accepted: the
// raw 64-byte secret||public layout, and a sealed envelope which needs
// passphrase.
func LoadAuthority(path string, passphrase []byte) (pubkey.Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pubkey.Keypair{}, fmt.Errorf("failed to read key file: %w", err)
	}
	defer crypto.ZeroBytes(data)

	raw := data
	if crypto.IsSealed(data) {
		if len(passphrase) == 0 {
			return pubkey.Keypair{}, ErrPassphraseRequired
		}
		raw, err = crypto.Open(data, passphrase)
		if err != nil {
			return pubkey.Keypair{}, fmt.Errorf("failed to open key file %s: %w", path, err)
		}
		defer crypto.ZeroBytes(raw)
	}

	kp, err := pubkey.KeypairFromBytes(raw)
	if err != nil {
		return pubkey.Keypair{}, fmt.Errorf("invalid key file %s: %w", path, err)
	}
	return kp, nil
}

// SaveAuthority writes kp to path, sealed when passphrase is non-empty.
// An existing file is never overwritten.
func SaveAuthority(path string, kp pubkey.Keypair, passphrase []byte) error {
	secret := kp.Bytes()
	defer crypto.ZeroBytes(secret)

	out := secret
	if len(passphrase) > 0 {
		sealed, err := crypto.Seal(secret, passphrase)
		if err != nil {
			return fmt.Errorf("failed to encrypt key: %w", err)
		}
		out = sealed
	}

	if err := fsutil.MkdirAll(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	f, err := fsutil.CreateFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
	if err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}
	if _, err := f.Write(out); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return f.Close()
}

// LoadOrCreateAuthority loads the keypair at path, generating and saving a
// new one on first use. created reports which happened.
func LoadOrCreateAuthority(path string, passphrase []byte) (kp pubkey.Keypair, created bool, err error) {
	if _, statErr := os.Stat(path); statErr == nil {
		kp, err = LoadAuthority(path, passphrase)
		return kp, false, err
	} else if !os.IsNotExist(statErr) {
		return pubkey.Keypair{}, false, fmt.Errorf("failed to stat key file: %w", statErr)
	}

	kp, err = pubkey.NewKeypair()
	if err != nil {
		return pubkey.Keypair{}, false, err
	}
	if err := SaveAuthority(path, kp, passphrase); err != nil {
		return pubkey.Keypair{}, false, err
	}
	util.Debug("generated authority", "path", path, "pubkey", kp.Public().String(), "sealed", len(passphrase) > 0)
	return kp, true, nil
}
