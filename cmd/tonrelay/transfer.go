package main

import (
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tonrelay/tonrelay/address"
	"github.com/tonrelay/tonrelay/tlb"
	"github.com/tonrelay/tonrelay/ton/jetton"
	"github.com/tonrelay/tonrelay/ton/wallet"
	"github.com/tonrelay/tonrelay/toncenter"
)

// sendFlags are shared by the transfer commands.
type sendFlags struct {
	dryRun bool
	// seqno >= 0 signs offline with the default wallet id, 0 also attaches the state init.
	seqno  int64
	bounce bool
	mode   uint8
}

func (f *sendFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "print the signed message instead of sending it")
	cmd.Flags().Int64Var(&f.seqno, "seqno", -1, "sign for this seqno without reading wallet state, implies --dry-run")
	cmd.Flags().BoolVar(&f.bounce, "bounce", true, "bounce the message back if the destination fails")
	cmd.Flags().Uint8Var(&f.mode, "mode", wallet.PayGasSeparately, "send mode")
}

func (a *app) send(cmd *cobra.Command, f *sendFlags, req *wallet.TransferRequest) error {
	s, err := a.session()
	if err != nil {
		return err
	}

	req.Bounce = &f.bounce
	req.Mode = &f.mode

	var res *wallet.Result
	switch {
	case f.seqno >= 0:
		if f.seqno > int64(^uint32(0)) {
			return errors.Errorf("seqno %d is out of range", f.seqno)
		}
		res, err = s.Build(req, &wallet.State{
			Seqno:       uint32(f.seqno),
			WalletID:    s.DefaultWalletID(),
			Initialized: f.seqno > 0,
		})
	case f.dryRun:
		res, err = s.BuildTransfer(cmd.Context(), toncenter.NewWalletState(a.toncenter()), req)
	default:
		ws := toncenter.NewWalletState(a.toncenter())
		res, err = s.SendTransfer(cmd.Context(), ws, ws, req)
	}
	if err != nil {
		return errors.Wrap(err, "failed to relay transfer")
	}

	out := cmd.OutOrStdout()
	if f.dryRun || f.seqno >= 0 {
		fmt.Fprintln(out, res.Base64)
	}

	a.logger.Info().
		Str("wallet", s.WalletAddress().String()).
		Uint32("seqno", res.Seqno).
		Str("hash", hex.EncodeToString(res.Hash())).
		Bool("sent", !f.dryRun && f.seqno < 0).
		Msg("transfer ready")
	return nil
}

func newTransferCmd(a *app) *cobra.Command {
	var (
		flags   sendFlags
		to      string
		amount  string
		comment string
	)

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Send TON from the wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			coins, err := tlb.FromTON(amount)
			if err != nil {
				return errors.Wrap(err, "invalid amount")
			}

			return a.send(cmd, &flags, &wallet.TransferRequest{
				To:      to,
				Amount:  coins,
				Comment: comment,
			})
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "destination address")
	cmd.Flags().StringVar(&amount, "amount", "", "amount in TON, e.g. 0.15")
	cmd.Flags().StringVar(&comment, "comment", "", "text comment")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	flags.register(cmd)
	return cmd
}

func newJettonTransferCmd(a *app) *cobra.Command {
	var (
		flags        sendFlags
		jettonWallet string
		to           string
		response     string
		amount       string
		decimals     int
		tonAmount    string
		forwardTON   string
		comment      string
		queryID      uint64
	)

	cmd := &cobra.Command{
		Use:   "jetton-transfer",
		Short: "Send jettons through the wallet's jetton wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jettons, err := tlb.FromDecimal(amount, decimals)
			if err != nil {
				return errors.Wrap(err, "invalid jetton amount")
			}
			attached, err := tlb.FromTON(tonAmount)
			if err != nil {
				return errors.Wrap(err, "invalid ton amount")
			}
			fwd, err := tlb.FromTON(forwardTON)
			if err != nil {
				return errors.Wrap(err, "invalid forward ton amount")
			}

			dst, err := address.ParseAnyAddr(to)
			if err != nil {
				return errors.Wrap(err, "invalid receiver")
			}

			payload := &jetton.TransferPayload{
				QueryID:          queryID,
				Amount:           jettons,
				Destination:      dst,
				ForwardTONAmount: fwd,
			}
			if response != "" {
				if payload.ResponseDestination, err = address.ParseAnyAddr(response); err != nil {
					return errors.Wrap(err, "invalid response address")
				}
			}
			if comment != "" {
				if payload.ForwardPayload, err = tlb.CreateCommentCell(comment); err != nil {
					return errors.Wrap(err, "invalid comment")
				}
			}

			body, err := payload.ToCell()
			if err != nil {
				return errors.Wrap(err, "failed to build jetton transfer")
			}

			return a.send(cmd, &flags, wallet.NewTransfer(jettonWallet, attached, body))
		},
	}

	cmd.Flags().StringVar(&jettonWallet, "jetton-wallet", "", "jetton wallet of the sender, the message goes there")
	cmd.Flags().StringVar(&to, "to", "", "owner address of the receiver")
	cmd.Flags().StringVar(&response, "response", "", "where to send excess TON, none by default")
	cmd.Flags().StringVar(&amount, "amount", "100", "jetton amount")
	cmd.Flags().IntVar(&decimals, "decimals", 6, "jetton decimals")
	cmd.Flags().StringVar(&tonAmount, "ton-amount", "0.1", "TON attached to pay jetton wallet fees")
	cmd.Flags().StringVar(&forwardTON, "forward-ton", "0", "TON forwarded to the receiver with the notification")
	cmd.Flags().StringVar(&comment, "comment", "", "forward payload comment")
	cmd.Flags().Uint64Var(&queryID, "query-id", 0, "query id")
	_ = cmd.MarkFlagRequired("jetton-wallet")
	_ = cmd.MarkFlagRequired("to")
	flags.register(cmd)
	return cmd
}
