// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package client drives the echo program from outside the ledger: it builds
// and signs transactions, submits them to a chain.Runtime and persists the
// resulting ledger.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/aplane-algo/apecho/internal/chain"
	"github.com/aplane-algo/apecho/internal/instruction"
	"github.com/aplane-algo/apecho/internal/pda"
	"github.com/aplane-algo/apecho/internal/processor"
	"github.com/aplane-algo/apecho/internal/pubkey"
	"github.com/aplane-algo/apecho/internal/state"
	"github.com/aplane-algo/apecho/internal/util"
)

// ErrBufferNotFound indicates no account exists at the buffer address.
var ErrBufferNotFound = fmt.Errorf("buffer %w", chain.ErrAccountNotFound)

// Client submits echo program transactions.
type Client struct {
	rt         *chain.Runtime
	programID  pubkey.Pubkey
	ledgerPath string
	airdrop    uint64
}

// Option is a functional option for configuring the Client
type Option func(*Client)

// WithLedgerPath persists the ledger to path after every change.
func WithLedgerPath(path string) Option {
	return func(c *Client) {
		c.ledgerPath = path
	}
}

// WithAirdrop credits lamports to the authority before each Write.
// Zero disables the airdrop.
func WithAirdrop(lamports uint64) Option {
	return func(c *Client) {
		c.airdrop = lamports
	}
}

// New creates a client for programID on rt. The echo program must already
// be registered with rt under programID.
func New(rt *chain.Runtime, programID pubkey.Pubkey, opts ...Option) *Client {
	c := &Client{rt: rt, programID: programID}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open loads the ledger named by cfg, registers the echo program and
// returns a client that saves back to the same ledger file.
func Open(cfg util.Config) (*Client, error) {
	programID, err := pubkey.Parse(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("invalid program id: %w", err)
	}
	ledger, err := chain.LoadLedger(cfg.LedgerFile)
	if err != nil {
		return nil, err
	}
	rt, err := chain.NewRuntime(ledger,
		chain.WithRent(chain.Rent{
			LamportsPerByteYear: cfg.Rent.LamportsPerByteYear,
			ExemptionThreshold:  cfg.Rent.ExemptionThreshold,
		}),
		chain.WithProgram(programID, processor.New()),
	)
	if err != nil {
		return nil, err
	}
	util.Debug("opened ledger", "path", cfg.LedgerFile, "slot", ledger.Slot())
	return New(rt, programID,
		WithLedgerPath(cfg.LedgerFile),
		WithAirdrop(cfg.AirdropLamports),
	), nil
}

// Runtime returns the underlying runtime.
func (c *Client) Runtime() *chain.Runtime {
	return c.rt
}

// ProgramID returns the echo program id.
func (c *Client) ProgramID() pubkey.Pubkey {
	return c.programID
}

// BufferAddress derives the authority's buffer for seed.
func (c *Client) BufferAddress(authority pubkey.Pubkey, seed uint64) (pubkey.Pubkey, uint8, error) {
	return pda.AuthorityBuffer(c.programID, authority, seed)
}

// Write stores data in the authority's buffer for seed. A missing buffer is
// created in the same transaction, sized to data. An existing buffer keeps
// its size, so data is truncated or zero-padded to fit.
func (c *Client) Write(ctx context.Context, authority pubkey.Keypair, seed uint64, data []byte) (pubkey.Pubkey, error) {
	if err := ctx.Err(); err != nil {
		return pubkey.Pubkey{}, err
	}

	buffer, _, err := c.BufferAddress(authority.Public(), seed)
	if err != nil {
		return pubkey.Pubkey{}, err
	}

	if c.airdrop > 0 {
		c.rt.Airdrop(authority.Public(), c.airdrop)
	}

	tx := chain.NewTransaction()
	if _, exists := c.rt.Account(buffer); !exists {
		util.Debug("buffer does not exist, initializing", "buffer", buffer.String(), "size", len(data))
		tx.Add(instruction.NewInitializeAuthorizedEcho(c.programID, buffer, authority.Public(), seed, uint64(len(data))))
	}
	tx.Add(instruction.NewAuthorizedEcho(c.programID, buffer, authority.Public(), data))

	if err := c.submit(tx, authority); err != nil {
		return buffer, err
	}
	return buffer, nil
}

// Read returns the payload of the authority's buffer for seed.
func (c *Client) Read(authority pubkey.Pubkey, seed uint64) ([]byte, error) {
	buffer, _, err := c.BufferAddress(authority, seed)
	if err != nil {
		return nil, err
	}
	acct, ok := c.rt.Account(buffer)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBufferNotFound, buffer)
	}
	return state.Payload(acct.Data)
}

// Echo creates a fresh buffer owned by the program, sized to data, and
// echoes data into it. payer funds the buffer.
func (c *Client) Echo(ctx context.Context, payer pubkey.Keypair, data []byte) (pubkey.Pubkey, error) {
	if err := ctx.Err(); err != nil {
		return pubkey.Pubkey{}, err
	}
	bufKP, err := pubkey.NewKeypair()
	if err != nil {
		return pubkey.Pubkey{}, err
	}
	buffer := bufKP.Public()
	size := uint64(len(data))

	tx := chain.NewTransaction(
		chain.CreateAccount(payer.Public(), buffer, c.rt.Rent().MinimumBalance(size), size, c.programID),
		instruction.NewEcho(c.programID, buffer, data),
	)
	if err := c.submit(tx, payer, bufKP); err != nil {
		return buffer, err
	}
	return buffer, nil
}

// Airdrop credits lamports to key and persists the ledger.
func (c *Client) Airdrop(ctx context.Context, key pubkey.Pubkey, lamports uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.rt.Airdrop(key, lamports)
	return c.persist()
}

// Balance returns the lamports held by key.
func (c *Client) Balance(key pubkey.Pubkey) uint64 {
	acct, ok := c.rt.Account(key)
	if !ok {
		return 0
	}
	return acct.Lamports
}

// BufferInfo describes an account as seen by the echo program.
type BufferInfo struct {
	Address  pubkey.Pubkey
	Owner    pubkey.Pubkey
	Lamports uint64
	Data     []byte

	// Header and Payload are set when the account is owned by the program
	// and large enough to carry an authorized buffer header. Plain echo
	// buffers also satisfy this, so Header is only meaningful for buffers
	// created by InitializeAuthorizedEcho; see VerifyAuthority.
	Header  *state.AuthorizedBufferHeader
	Payload []byte
}

// Inspect returns the account at address.
func (c *Client) Inspect(address pubkey.Pubkey) (*BufferInfo, error) {
	acct, ok := c.rt.Account(address)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBufferNotFound, address)
	}
	info := &BufferInfo{
		Address:  address,
		Owner:    acct.Owner,
		Lamports: acct.Lamports,
		Data:     acct.Data,
	}
	if acct.Owner == c.programID && len(acct.Data) >= state.HeaderSize {
		header, err := state.Decode(acct.Data)
		if err == nil {
			info.Header = &header
			info.Payload = acct.Data[state.HeaderSize:]
		}
	}
	return info, nil
}

// VerifyAuthority reports whether info is the authorized buffer of
// authority, checking the stored header the same way the program does
// before a write.
func (c *Client) VerifyAuthority(info *BufferInfo, authority pubkey.Pubkey) error {
	if info.Header == nil {
		return processor.ErrUninitializedBuffer
	}
	addr, bump, err := c.BufferAddress(authority, info.Header.BufferSeed)
	if err != nil {
		return err
	}
	if bump != info.Header.Bump {
		return processor.ErrBumpMismatch
	}
	if addr != info.Address {
		return processor.ErrAddressMismatch
	}
	return nil
}

func (c *Client) submit(tx *chain.Transaction, signers ...pubkey.Keypair) error {
	if err := tx.Sign(signers...); err != nil {
		return err
	}
	err := c.rt.Submit(tx)
	var txErr *chain.TransactionError
	if errors.As(err, &txErr) {
		util.Debug("transaction failed", "instruction", txErr.Index, "error", txErr.Err)
	}
	// Airdrops are applied outside the transaction, so persist even when it
	// fails.
	if perr := c.persist(); perr != nil && err == nil {
		err = perr
	}
	return err
}

func (c *Client) persist() error {
	if c.ledgerPath == "" {
		return nil
	}
	if err := c.rt.Save(c.ledgerPath); err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}
	return nil
}
