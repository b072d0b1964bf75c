package toncenter

import (
	"encoding/json"
	"math/big"

	"github.com/tonrelay/tonrelay/tlb"
)

const TonDecimals = 9

type TransactionID struct {
	LT   uint64 `json:"lt,string"`
	Hash []byte `json:"hash"`
}

type NanoCoins struct {
	val *big.Int
}

func (n *NanoCoins) Coins(decimals int) (tlb.Coins, error) {
	if n.val == nil {
		return tlb.FromNano(big.NewInt(0), decimals)
	}
	return tlb.FromNano(n.val, decimals)
}

func (n *NanoCoins) MustCoins(decimals int) tlb.Coins {
	c, err := n.Coins(decimals)
	if err != nil {
		panic(err)
	}
	return c
}

func (n *NanoCoins) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.val = new(big.Int)
	return n.val.UnmarshalText([]byte(s))
}

func (n *NanoCoins) MarshalJSON() ([]byte, error) {
	if n.val == nil {
		return json.Marshal("0")
	}
	return json.Marshal(n.val.String())
}
