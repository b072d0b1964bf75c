package toncenter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/tonrelay/tonrelay/address"
)

type V2 struct {
	client *Client
}

func (c *Client) V2() *V2 {
	return &V2{client: c}
}

func (v *V2) apiBase() string {
	return strings.TrimRight(v.client.baseURL, "/") + "/api/v2"
}

type AddressInformationV2Result struct {
	Balance           NanoCoins      `json:"balance"`
	LastTransactionID *TransactionID `json:"last_transaction_id"`
	State             string         `json:"state"` // "active", "uninitialized", "frozen"
}

// GetAddressInformation /getAddressInformation
func (v *V2) GetAddressInformation(ctx context.Context, addr *address.Address) (*AddressInformationV2Result, error) {
	q := url.Values{"address": []string{addr.String()}}
	return V2GetCall[AddressInformationV2Result](ctx, v, "getAddressInformation", q)
}

type WalletInformationV2Result struct {
	IsWallet          bool           `json:"wallet"`
	Balance           NanoCoins      `json:"balance"`
	AccountState      string         `json:"account_state"`
	WalletType        string         `json:"wallet_type"`
	Seqno             uint64         `json:"seqno"`
	LastTransactionID *TransactionID `json:"last_transaction_id"`
	WalletId          int64          `json:"wallet_id"`
}

// GetWalletInformation /getWalletInformation
func (v *V2) GetWalletInformation(ctx context.Context, addr *address.Address) (*WalletInformationV2Result, error) {
	q := url.Values{"address": []string{addr.String()}}
	return V2GetCall[WalletInformationV2Result](ctx, v, "getWalletInformation", q)
}

// SendBoc /sendBoc, data is the serialized external message.
func (v *V2) SendBoc(ctx context.Context, data []byte) error {
	_, err := V2PostCall[json.RawMessage](ctx, v, "sendBoc", map[string][]byte{
		"boc": data,
	})
	return err
}

type RunGetMethodV2Result struct {
	GasUsed  uint64
	ExitCode int
	// Stack holds [type, value] pairs, values which are not strings are kept as raw json.
	Stack [][]string
}

// RunGetMethod /runGetMethod, stack elements are [type, value] pairs like ["num", "0x1"].
func (v *V2) RunGetMethod(ctx context.Context, addr *address.Address, method string, stack [][]string) (*RunGetMethodV2Result, error) {
	type runGetMethodRequest struct {
		Address *address.Address `json:"address"`
		Method  string           `json:"method"`
		Stack   [][]string       `json:"stack"`
	}

	type runGetMethodResult struct {
		GasUsed  uint64              `json:"gas_used"`
		Stack    [][]json.RawMessage `json:"stack"`
		ExitCode int                 `json:"exit_code"`
	}

	if stack == nil {
		stack = [][]string{}
	}

	res, err := V2PostCall[runGetMethodResult](ctx, v, "runGetMethod", runGetMethodRequest{
		Address: addr,
		Method:  method,
		Stack:   stack,
	})
	if err != nil {
		return nil, err
	}

	stk, err := parseStackV2(res.Stack)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stack: %w", err)
	}

	return &RunGetMethodV2Result{
		GasUsed:  res.GasUsed,
		ExitCode: res.ExitCode,
		Stack:    stk,
	}, nil
}

func parseStackV2(stack [][]json.RawMessage) ([][]string, error) {
	stk := make([][]string, 0, len(stack))
	for _, a := range stack {
		if len(a) != 2 {
			return nil, fmt.Errorf("incorrect stack element")
		}

		var name string
		if err := json.Unmarshal(a[0], &name); err != nil {
			return nil, fmt.Errorf("incorrect stack element name type")
		}

		var val string
		if err := json.Unmarshal(a[1], &val); err != nil {
			val = string(a[1])
		}
		stk = append(stk, []string{name, val})
	}
	return stk, nil
}

func V2PostCall[T any](ctx context.Context, v *V2, method string, req any) (*T, error) {
	return doPOST[T](ctx, v.client, method, v.apiBase()+"/"+method, req)
}

func V2GetCall[T any](ctx context.Context, v *V2, method string, query url.Values) (*T, error) {
	return doGET[T](ctx, v.client, method, v.apiBase()+"/"+method, query)
}
