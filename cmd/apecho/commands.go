// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"unicode/utf8"

	"github.com/aplane-algo/apecho/internal/client"
	"github.com/aplane-algo/apecho/internal/crypto"
	"github.com/aplane-algo/apecho/internal/fsutil"
	"github.com/aplane-algo/apecho/internal/processor"
	"github.com/aplane-algo/apecho/internal/pubkey"
	"github.com/aplane-algo/apecho/internal/util"
)

// parseData turns a command line argument into buffer bytes.
func parseData(arg string, isHex bool) ([]byte, error) {
	if !isHex {
		return []byte(arg), nil
	}
	b, err := hex.DecodeString(arg)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}
	return b, nil
}

// formatData renders buffer bytes for display. Trailing zero padding is
// dropped from text; payloads that are not text are shown as hex.
func formatData(b []byte, isHex bool) string {
	if isHex {
		return hex.EncodeToString(b)
	}
	text := bytes.TrimRight(b, "\x00")
	if !utf8.Valid(text) || bytes.IndexByte(text, 0) >= 0 {
		return hex.EncodeToString(b)
	}
	return string(text)
}

func field(label, value string) {
	fmt.Printf("%s %s\n", util.Label(fmt.Sprintf("%-10s", label+":")), value)
}

// loadAuthority loads the configured authority, prompting for a passphrase
// when the key file is sealed. With create, a missing key file is generated
// unencrypted, as the write command has always done.
func loadAuthority(cfg util.Config, create bool) (pubkey.Keypair, error) {
	path := cfg.AuthorityKey
	sealed, err := client.IsSealedKeyFile(path)
	if err != nil {
		return pubkey.Keypair{}, err
	}

	var passphrase []byte
	if sealed {
		passphrase, err = readPassword(fmt.Sprintf("Passphrase for %s: ", path))
		if err != nil {
			return pubkey.Keypair{}, fmt.Errorf("reading passphrase: %w", err)
		}
	}

	var kp pubkey.Keypair
	err = crypto.WithSecret(passphrase, func(p []byte) error {
		if !create {
			kp, err = client.LoadAuthority(path, p)
			return err
		}
		var created bool
		kp, created, err = client.LoadOrCreateAuthority(path, p)
		if created {
			fmt.Fprintf(os.Stderr, "Generated new authority keypair at %s\n", path)
		}
		return err
	})
	return kp, err
}

// authorityArg parses an explicit authority, or falls back to the
// configured key file.
func authorityArg(cfg util.Config, args []string) (pubkey.Pubkey, error) {
	if len(args) > 0 {
		return pubkey.Parse(args[0])
	}
	kp, err := loadAuthority(cfg, false)
	if err != nil {
		return pubkey.Pubkey{}, err
	}
	return kp.Public(), nil
}

// explainWriteError names the buffer and authority when the program refused
// a write because the buffer belongs to someone else.
func explainWriteError(err error, buffer, authority pubkey.Pubkey) error {
	if processor.IsAuthorizationError(err) {
		return fmt.Errorf("buffer %s is not controlled by authority %s: %w", buffer, authority, err)
	}
	return err
}

func cmdWrite(cfg util.Config, opts options, arg string) error {
	data, err := parseData(arg, opts.hexData)
	if err != nil {
		return err
	}
	authority, err := loadAuthority(cfg, true)
	if err != nil {
		return err
	}
	c, err := client.Open(cfg)
	if err != nil {
		return err
	}

	buffer, err := c.Write(context.Background(), authority, opts.bufferSeed, data)
	if err != nil {
		return explainWriteError(err, buffer, authority.Public())
	}
	field("Authority", util.Address(authority.Public().String()))
	field("Buffer", util.Address(buffer.String()))
	field("Seed", strconv.FormatUint(opts.bufferSeed, 10))
	field("Wrote", fmt.Sprintf("%d bytes", len(data)))
	return nil
}

func cmdRead(cfg util.Config, opts options, args []string) error {
	authority, err := authorityArg(cfg, args)
	if err != nil {
		return err
	}

	read := func() ([]byte, error) {
		c, err := client.Open(cfg)
		if err != nil {
			return nil, err
		}
		return c.Read(authority, opts.bufferSeed)
	}

	payload, err := read()
	if err != nil && !opts.follow {
		return err
	}
	if err == nil {
		fmt.Println(util.Data(formatData(payload, opts.hexData)))
	}
	if !opts.follow {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fsutil.MkdirAll(filepath.Dir(cfg.LedgerFile)); err != nil {
		return err
	}
	last := payload
	return client.Watch(ctx, cfg.LedgerFile, func() {
		current, err := read()
		if err != nil {
			util.Debug("read after ledger change failed", "error", err)
			return
		}
		if bytes.Equal(current, last) {
			return
		}
		last = current
		fmt.Println(util.Data(formatData(current, opts.hexData)))
	})
}

func cmdEcho(cfg util.Config, opts options, arg string) error {
	data, err := parseData(arg, opts.hexData)
	if err != nil {
		return err
	}
	payer, err := loadAuthority(cfg, true)
	if err != nil {
		return err
	}
	c, err := client.Open(cfg)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if cfg.AirdropLamports > 0 {
		if err := c.Airdrop(ctx, payer.Public(), cfg.AirdropLamports); err != nil {
			return err
		}
	}

	buffer, err := c.Echo(ctx, payer, data)
	if err != nil {
		return err
	}
	field("Buffer", util.Address(buffer.String()))
	field("Wrote", fmt.Sprintf("%d bytes", len(data)))
	return nil
}

func cmdDerive(cfg util.Config, opts options, args []string) error {
	authority, err := authorityArg(cfg, args)
	if err != nil {
		return err
	}
	programID, err := pubkey.Parse(cfg.ProgramID)
	if err != nil {
		return err
	}
	c := client.New(nil, programID)
	buffer, bump, err := c.BufferAddress(authority, opts.bufferSeed)
	if err != nil {
		return err
	}
	field("Program", util.Address(programID.String()))
	field("Authority", util.Address(authority.String()))
	field("Seed", strconv.FormatUint(opts.bufferSeed, 10))
	field("Buffer", util.Address(buffer.String()))
	field("Bump", strconv.Itoa(int(bump)))
	return nil
}

func cmdInspect(cfg util.Config, opts options, arg string) error {
	address, err := pubkey.Parse(arg)
	if err != nil {
		return err
	}
	c, err := client.Open(cfg)
	if err != nil {
		return err
	}
	info, err := c.Inspect(address)
	if err != nil {
		return err
	}

	field("Address", util.Address(info.Address.String()))
	field("Owner", util.Address(info.Owner.String()))
	field("Balance", util.FormatLamports(info.Lamports))
	field("Size", fmt.Sprintf("%d bytes", len(info.Data)))
	if info.Header == nil {
		field("Data", util.Data(formatData(info.Data, opts.hexData)))
		return nil
	}
	field("Bump", strconv.Itoa(int(info.Header.Bump)))
	field("Seed", strconv.FormatUint(info.Header.BufferSeed, 10))
	field("Payload", util.Data(formatData(info.Payload, opts.hexData)))

	// Only an unencrypted key file is checked; inspect never prompts.
	if sealed, err := client.IsSealedKeyFile(cfg.AuthorityKey); err == nil && !sealed {
		if kp, err := client.LoadAuthority(cfg.AuthorityKey, nil); err == nil {
			verdict := "yes"
			if err := c.VerifyAuthority(info, kp.Public()); err != nil {
				verdict = "no (" + err.Error() + ")"
			}
			field("Yours", verdict)
		}
	}
	return nil
}

func cmdAirdrop(cfg util.Config, opts options, args []string) error {
	var to pubkey.Pubkey
	var err error
	if len(args) > 0 {
		to, err = pubkey.Parse(args[0])
	} else {
		to, err = authorityArg(cfg, nil)
	}
	if err != nil {
		return err
	}

	lamports := cfg.AirdropLamports
	if len(args) > 1 {
		lamports, err = strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid lamports %q: %w", args[1], err)
		}
	}
	if lamports == 0 {
		return fmt.Errorf("airdrop amount must be positive")
	}

	c, err := client.Open(cfg)
	if err != nil {
		return err
	}
	if err := c.Airdrop(context.Background(), to, lamports); err != nil {
		return err
	}
	field("Account", util.Address(to.String()))
	field("Balance", util.FormatLamports(c.Balance(to)))
	return nil
}

func cmdKeygen(cfg util.Config, opts options) error {
	if _, err := os.Stat(cfg.AuthorityKey); err == nil {
		return fmt.Errorf("key file %s already exists", cfg.AuthorityKey)
	}

	var passphrase []byte
	if opts.encrypt {
		var err error
		passphrase, err = readNewPassphrase()
		if err != nil {
			return err
		}
	}

	kp, err := pubkey.NewKeypair()
	if err != nil {
		return err
	}
	err = crypto.WithSecret(passphrase, func(p []byte) error {
		return client.SaveAuthority(cfg.AuthorityKey, kp, p)
	})
	if err != nil {
		return err
	}
	field("Key file", cfg.AuthorityKey)
	field("Authority", util.Address(kp.Public().String()))
	return nil
}
