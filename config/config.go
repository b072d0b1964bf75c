// Package config loads tonrelay settings from defaults, an optional file and TONRELAY_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tonrelay/tonrelay/ton/wallet"
)

const EnvPrefix = "TONRELAY"

type Toncenter struct {
	Endpoint  string        `mapstructure:"endpoint"`
	APIKey    string        `mapstructure:"api_key"`
	RateLimit float64       `mapstructure:"rate_limit"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type Wallet struct {
	Mnemonic         string `mapstructure:"mnemonic"`
	MnemonicPassword string `mapstructure:"mnemonic_password"`
	// Version is "v4r2" or "v5r1".
	Version    string        `mapstructure:"version"`
	Workchain  int8          `mapstructure:"workchain"`
	MessageTTL time.Duration `mapstructure:"message_ttl"`
}

type Logger struct {
	Level              string `mapstructure:"level"`
	PrettyPrintConsole bool   `mapstructure:"pretty_print_console"`
}

type Config struct {
	// Network is "mainnet" or "testnet".
	Network   string    `mapstructure:"network"`
	Toncenter Toncenter `mapstructure:"toncenter"`
	Wallet    Wallet    `mapstructure:"wallet"`
	Logger    Logger    `mapstructure:"logger"`
}

var endpoints = map[string]string{
	"mainnet": "https://toncenter.com",
	"testnet": "https://testnet.toncenter.com",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("network", "mainnet")
	v.SetDefault("toncenter.endpoint", "")
	v.SetDefault("toncenter.api_key", "")
	v.SetDefault("toncenter.rate_limit", 1)
	v.SetDefault("toncenter.timeout", 20*time.Second)
	v.SetDefault("wallet.mnemonic", "")
	v.SetDefault("wallet.mnemonic_password", "")
	v.SetDefault("wallet.version", "v4r2")
	v.SetDefault("wallet.workchain", 0)
	v.SetDefault("wallet.message_ttl", time.Duration(0))
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.pretty_print_console", true)
}

// Load reads the config file at path, if any, and overlays TONRELAY_* variables,
// e.g. TONRELAY_WALLET_MNEMONIC or TONRELAY_TONCENTER_API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.Network = strings.ToLower(c.Network)
	if _, ok := endpoints[c.Network]; !ok {
		return fmt.Errorf("unknown network %q", c.Network)
	}
	if c.Toncenter.Endpoint == "" {
		c.Toncenter.Endpoint = endpoints[c.Network]
	}
	if _, err := c.Wallet.WalletVersion(); err != nil {
		return err
	}
	if c.Toncenter.RateLimit < 0 {
		return errors.New("toncenter rate limit cannot be negative")
	}
	return nil
}

// WalletVersion maps the configured version name to a wallet.Version.
func (w Wallet) WalletVersion() (wallet.Version, error) {
	switch strings.ToLower(w.Version) {
	case "v4r2", "v4":
		return wallet.V4R2, nil
	case "v5r1", "v5", "w5":
		return wallet.V5R1, nil
	}
	return wallet.Unknown, fmt.Errorf("%w: %q", wallet.ErrInvalidWalletVariant, w.Version)
}

// WalletConfig is the wallet.Config for the configured network and version.
func (c *Config) WalletConfig() (wallet.Config, error) {
	ver, err := c.Wallet.WalletVersion()
	if err != nil {
		return wallet.Config{}, err
	}

	id := int32(wallet.MainnetGlobalID)
	if c.Network == "testnet" {
		id = wallet.TestnetGlobalID
	}

	return wallet.Config{
		Version:         ver,
		Workchain:       c.Wallet.Workchain,
		NetworkGlobalID: id,
	}, nil
}

// MnemonicWords splits the configured mnemonic on whitespace.
func (w Wallet) MnemonicWords() []string {
	return strings.Fields(w.Mnemonic)
}
