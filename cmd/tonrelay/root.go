package main

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tonrelay/tonrelay/config"
	"github.com/tonrelay/tonrelay/ton/wallet"
	"github.com/tonrelay/tonrelay/toncenter"
)

// app is shared by all subcommands, it is filled in before any of them runs.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	a := &app{}

	root := &cobra.Command{
		Use:   "tonrelay",
		Short: "Build, sign and relay TON wallet transfers",
		Long: `tonrelay derives a wallet from a mnemonic, builds signed external messages
for it and submits them through toncenter.

Configuration is read from --config and TONRELAY_* environment variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return errors.Wrap(err, "failed to load config")
			}

			a.cfg = cfg
			a.logger = newLogger(cfg.Logger, cmd.ErrOrStderr())
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (yaml, json or toml)")

	root.AddCommand(
		newAddressCmd(a),
		newTransferCmd(a),
		newJettonTransferCmd(a),
	)
	return root
}

func newLogger(cfg config.Logger, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	if cfg.PrettyPrintConsole {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

func (a *app) session() (*wallet.Session, error) {
	words := a.cfg.Wallet.MnemonicWords()
	if len(words) == 0 {
		return nil, errors.New("mnemonic is not configured, set wallet.mnemonic or TONRELAY_WALLET_MNEMONIC")
	}

	wcfg, err := a.cfg.WalletConfig()
	if err != nil {
		return nil, err
	}

	s, err := wallet.FromMnemonic(words, a.cfg.Wallet.MnemonicPassword, wcfg,
		wallet.WithLogger(a.logger),
		wallet.WithMessageTTL(a.cfg.Wallet.MessageTTL),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init wallet")
	}
	return s, nil
}

func (a *app) toncenter() *toncenter.Client {
	opts := []toncenter.Option{
		toncenter.WithTimeout(a.cfg.Toncenter.Timeout),
		toncenter.WithRateLimit(a.cfg.Toncenter.RateLimit),
		toncenter.WithLogger(a.logger),
	}
	if a.cfg.Toncenter.APIKey != "" {
		opts = append(opts, toncenter.WithAPIKey(a.cfg.Toncenter.APIKey))
	}
	return toncenter.New(a.cfg.Toncenter.Endpoint, opts...)
}
