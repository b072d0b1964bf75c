package toncenter

import (
	"context"
	"fmt"

	"github.com/tonrelay/tonrelay/address"
	"github.com/tonrelay/tonrelay/ton/wallet"
)

// WalletState serves wallet state reads and message submission over the v2 API.
type WalletState struct {
	api *V2
}

var (
	_ wallet.StateReader = (*WalletState)(nil)
	_ wallet.Submitter   = (*WalletState)(nil)
)

func NewWalletState(c *Client) *WalletState {
	return &WalletState{api: c.V2()}
}

func (w *WalletState) RunGetMethod(ctx context.Context, addr *address.Address, method string, stack [][]string) (*wallet.GetMethodResult, error) {
	res, err := w.api.RunGetMethod(ctx, addr, method, stack)
	if err != nil {
		return nil, err
	}

	if res.ExitCode == wallet.ErrCodeContractNotInitialized {
		return nil, fmt.Errorf("%w: %s", wallet.ErrContractNotInitialized, addr.String())
	}

	return &wallet.GetMethodResult{
		ExitCode: res.ExitCode,
		Stack:    res.Stack,
	}, nil
}

func (w *WalletState) SendBoc(ctx context.Context, boc []byte) error {
	return w.api.SendBoc(ctx, boc)
}
