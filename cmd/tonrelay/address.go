package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tonrelay/tonrelay/toncenter"
)

func newAddressCmd(a *app) *cobra.Command {
	var withState bool

	cmd := &cobra.Command{
		Use:   "address",
		Short: "Print the wallet address derived from the configured mnemonic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}

			testnet := a.cfg.Network == "testnet"
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "version:        %s\n", s.Version())
			fmt.Fprintf(out, "address:        %s\n", s.WalletAddress().Testnet(testnet))
			fmt.Fprintf(out, "bounceable:     %s\n", s.Address().Testnet(testnet))
			fmt.Fprintf(out, "raw:            %s\n", s.Address().StringRaw())
			fmt.Fprintf(out, "wallet id:      %d\n", s.DefaultWalletID())

			if !withState {
				return nil
			}

			info, err := a.toncenter().V2().GetAddressInformation(cmd.Context(), s.Address())
			if err != nil {
				return errors.Wrap(err, "failed to get address information")
			}

			fmt.Fprintf(out, "state:          %s\n", info.State)
			fmt.Fprintf(out, "balance:        %s TON\n", info.Balance.MustCoins(toncenter.TonDecimals))
			return nil
		},
	}

	cmd.Flags().BoolVar(&withState, "state", false, "also fetch account state and balance from toncenter")
	return cmd
}
