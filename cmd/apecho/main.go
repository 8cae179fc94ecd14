// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/aplane-algo/apecho/internal/util"
	"github.com/aplane-algo/apecho/internal/version"
)

// options holds the parsed command line.
type options struct {
	dataDir    string
	authKey    string
	bufferSeed uint64
	seedSet    bool
	follow     bool
	hexData    bool
	encrypt    bool
}

func usage(fs *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "apecho - Echo program client\n\n")
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  apecho [flags] write <data>\n")
	fmt.Fprintf(os.Stderr, "  apecho [flags] read [AUTHORITY] [--follow]\n")
	fmt.Fprintf(os.Stderr, "  apecho [flags] echo <data>\n")
	fmt.Fprintf(os.Stderr, "  apecho [flags] derive [AUTHORITY]\n")
	fmt.Fprintf(os.Stderr, "  apecho [flags] inspect <ADDRESS>\n")
	fmt.Fprintf(os.Stderr, "  apecho [flags] airdrop [ADDRESS] [lamports]\n")
	fmt.Fprintf(os.Stderr, "  apecho [flags] keygen [--encrypt]\n")
	fmt.Fprintf(os.Stderr, "\nFlags:\n")
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  apecho write \"hello world\"\n")
	fmt.Fprintf(os.Stderr, "  apecho read\n")
	fmt.Fprintf(os.Stderr, "  apecho --buffer-seed 7 write --hex 0909\n")
	fmt.Fprintf(os.Stderr, "  apecho read --follow\n")
	fmt.Fprintf(os.Stderr, "  apecho keygen --encrypt\n")
}

func main() {
	// Handle early-exit flags before any other processing
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" {
			fmt.Println(version.String())
			os.Exit(0)
		}
	}

	util.InitLogger()

	var opts options
	fs := pflag.NewFlagSet("apecho", pflag.ContinueOnError)
	fs.StringVarP(&opts.dataDir, "data", "d", "", "Data directory (or set APECHO_DATA, default ~/.apecho)")
	fs.StringVar(&opts.authKey, "authkey", "", "Authority keypair file (default from config, auth.key)")
	fs.Uint64Var(&opts.bufferSeed, "buffer-seed", util.DefaultBufferSeed, "Buffer seed")
	fs.BoolVarP(&opts.follow, "follow", "f", false, "Keep printing the buffer as the ledger changes (read)")
	fs.BoolVar(&opts.hexData, "hex", false, "Data arguments and output are hex encoded (write, read, echo)")
	fs.BoolVar(&opts.encrypt, "encrypt", false, "Protect the new keypair with a passphrase (keygen)")
	fs.Usage = func() { usage(fs) }

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	opts.seedSet = fs.Changed("buffer-seed")

	args := fs.Args()
	if len(args) < 1 {
		usage(fs)
		os.Exit(1)
	}

	dataDir := util.GetDataDir(opts.dataDir)
	cfg, err := util.LoadConfig(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if opts.authKey != "" {
		cfg.AuthorityKey = opts.authKey
	}
	if !opts.seedSet {
		opts.bufferSeed = cfg.BufferSeed
	}
	util.Debug("configuration", "data_dir", dataDir, "ledger", cfg.LedgerFile, "authority_key", cfg.AuthorityKey)

	if err := run(cfg, opts, args[0], args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, util.ErrorText("Error: "+err.Error()))
		os.Exit(1)
	}
}

// errUsage is returned by commands called with the wrong arguments.
var errUsage = errors.New("invalid arguments (see apecho --help)")

func run(cfg util.Config, opts options, command string, args []string) error {
	switch command {
	case "write":
		if len(args) != 1 {
			return fmt.Errorf("%w: write <data>", errUsage)
		}
		return cmdWrite(cfg, opts, args[0])

	case "read":
		if len(args) > 1 {
			return fmt.Errorf("%w: read [AUTHORITY]", errUsage)
		}
		return cmdRead(cfg, opts, args)

	case "echo":
		if len(args) != 1 {
			return fmt.Errorf("%w: echo <data>", errUsage)
		}
		return cmdEcho(cfg, opts, args[0])

	case "derive":
		if len(args) > 1 {
			return fmt.Errorf("%w: derive [AUTHORITY]", errUsage)
		}
		return cmdDerive(cfg, opts, args)

	case "inspect":
		if len(args) != 1 {
			return fmt.Errorf("%w: inspect <ADDRESS>", errUsage)
		}
		return cmdInspect(cfg, opts, args[0])

	case "airdrop":
		if len(args) > 2 {
			return fmt.Errorf("%w: airdrop [ADDRESS] [lamports]", errUsage)
		}
		return cmdAirdrop(cfg, opts, args)

	case "keygen":
		if len(args) != 0 {
			return fmt.Errorf("%w: keygen [--encrypt]", errUsage)
		}
		return cmdKeygen(cfg, opts)

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
