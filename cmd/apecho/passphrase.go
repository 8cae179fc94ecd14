// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/aplane-algo/apecho/internal/crypto"
)

// stdinReader is a shared reader for non-terminal stdin
var stdinReader *bufio.Reader

// readPassword reads a passphrase from the terminal without echo, or one
// line from stdin when it is not a terminal.
func readPassword(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd()) // #nosec G115 - file descriptors are small integers
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		pass, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		return pass, err
	}

	if stdinReader == nil {
		stdinReader = bufio.NewReader(os.Stdin)
	}
	line, err := stdinReader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, err
	}
	return bytes.TrimRight(line, "\r\n"), nil
}

// readNewPassphrase asks for a passphrase twice.
func readNewPassphrase() ([]byte, error) {
	pass1, err := readPassword("New passphrase: ")
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	pass2, err := readPassword("Confirm:        ")
	if err != nil {
		crypto.ZeroBytes(pass1)
		return nil, fmt.Errorf("reading confirmation: %w", err)
	}
	defer crypto.ZeroBytes(pass2)

	if !bytes.Equal(pass1, pass2) {
		crypto.ZeroBytes(pass1)
		return nil, errors.New("passphrases do not match")
	}
	if len(pass1) == 0 {
		return nil, errors.New("passphrase must not be empty")
	}
	return pass1, nil
}
