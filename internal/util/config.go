// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"
)

// DefaultProgramID is the address the echo program is registered under
// when config.yaml does not name one.
const DefaultProgramID = "Fn7FS1bY7EPY5aLq6GSFyq9T39fEUUYp9KfEGYVXRvLV"

// DefaultBufferSeed is the buffer seed used when none is given.
const DefaultBufferSeed = 123907

// DefaultAirdropLamports is the amount requested before each write (2 SOL).
const DefaultAirdropLamports = 2 * LamportsPerSOL

// RentConfig holds ledger storage pricing.
type RentConfig struct {
	LamportsPerByteYear uint64  `yaml:"lamports_per_byte_year" description:"Storage price in lamports per byte-year" default:"3480"`
	ExemptionThreshold  float64 `yaml:"exemption_threshold" description:"Years of rent an account must hold to be exempt" default:"2.0"`
}

// Config holds apecho configuration settings
type Config struct {
	ProgramID       string     `yaml:"program_id" description:"Echo program id (base58)" default:"Fn7FS1bY7EPY5aLq6GSFyq9T39fEUUYp9KfEGYVXRvLV"`
	LedgerFile      string     `yaml:"ledger_file" description:"Ledger snapshot path (relative to data dir)" default:"ledger.msgpack"`
	AuthorityKey    string     `yaml:"authority_key" description:"Authority keypair file (relative to data dir)" default:"auth.key"`
	BufferSeed      uint64     `yaml:"buffer_seed" description:"Default buffer seed" default:"123907"`
	AirdropLamports uint64     `yaml:"airdrop_lamports" description:"Lamports airdropped to the authority before a write (0 disables)" default:"2000000000"`
	Rent            RentConfig `yaml:"rent" description:"Rent parameters"`
}

// DefaultConfig returns the default configuration for runtime use.
func DefaultConfig() Config {
	return Config{
		ProgramID:       DefaultProgramID,
		LedgerFile:      "ledger.msgpack",
		AuthorityKey:    "auth.key",
		BufferSeed:      DefaultBufferSeed,
		AirdropLamports: DefaultAirdropLamports,
		Rent: RentConfig{
			LamportsPerByteYear: 3480,
			ExemptionThreshold:  2.0,
		},
	}
}

// GetDataDir returns the data directory for apecho.
// Resolution order: -d flag > APECHO_DATA env var > ~/.apecho
func GetDataDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envDir := os.Getenv("APECHO_DATA"); envDir != "" {
		return envDir
	}
	// Expand ~ to home directory
	home, err := os.UserHomeDir()
	if err != nil {
		return "" // Can't determine default
	}
	return filepath.Join(home, ".apecho")
}

// GetConfigPath returns the path to the config file in the data directory.
// Returns empty string if dataDir is empty.
func GetConfigPath(dataDir string) string {
	if dataDir == "" {
		return ""
	}
	return filepath.Join(dataDir, "config.yaml")
}

// ResolvePath resolves a path relative to baseDir if not absolute.
// Returns path unchanged if empty or already absolute.
func ResolvePath(path, baseDir string) string {
	if path == "" || baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// LoadConfig loads configuration from config.yaml in the data directory.
// If dataDir is empty or file doesn't exist, returns default config.
// Relative file paths are resolved relative to the data directory.
func LoadConfig(dataDir string) (Config, error) {
	config, err := LoadConfigFromPath(GetConfigPath(dataDir))
	if err != nil {
		return config, err
	}
	config.LedgerFile = ResolvePath(config.LedgerFile, dataDir)
	config.AuthorityKey = ResolvePath(config.AuthorityKey, dataDir)
	return config, nil
}

// LoadConfigFromPath loads configuration from the specified path.
// If path is empty, returns default config.
// If the file doesn't exist, returns default config.
func LoadConfigFromPath(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay config file values
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Fill in defaults for values explicitly blanked out
	defaults := DefaultConfig()
	if config.ProgramID == "" {
		config.ProgramID = defaults.ProgramID
	}
	if config.LedgerFile == "" {
		config.LedgerFile = defaults.LedgerFile
	}
	if config.AuthorityKey == "" {
		config.AuthorityKey = defaults.AuthorityKey
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	raw, err := base58.Decode(c.ProgramID)
	if err != nil || len(raw) != 32 {
		return fmt.Errorf("invalid program_id '%s' in config (must be a base58 32-byte key)", c.ProgramID)
	}
	if c.Rent.LamportsPerByteYear == 0 {
		return fmt.Errorf("rent.lamports_per_byte_year must be positive")
	}
	if c.Rent.ExemptionThreshold <= 0 {
		return fmt.Errorf("rent.exemption_threshold must be positive, got %v", c.Rent.ExemptionThreshold)
	}
	return nil
}
