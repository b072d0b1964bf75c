package tlb

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tonrelay/tonrelay/tvm/cell"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrTooBigAmount  = errors.New("too big number for coins")
)

// Coins is an amount in the smallest units together with its decimals, used for TON and jettons alike.
type Coins struct {
	decimals int
	val      *big.Int
}

var ZeroCoins = MustFromTON("0")

func (g Coins) String() string {
	if g.val == nil {
		return "0"
	}
	return decimal.NewFromBigInt(g.val, -int32(g.decimals)).String()
}

func (g Coins) Nano() *big.Int {
	if g.val == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(g.val)
}

func (g Coins) Decimals() int {
	return g.decimals
}

func (g Coins) IsZero() bool {
	return g.val == nil || g.val.Sign() == 0
}

func MustFromDecimal(val string, decimals int) Coins {
	v, err := FromDecimal(val, decimals)
	if err != nil {
		panic(err)
	}
	return v
}

func MustFromTON(val string) Coins {
	v, err := FromTON(val)
	if err != nil {
		panic(err)
	}
	return v
}

func MustFromNano(val *big.Int, decimals int) Coins {
	v, err := FromNano(val, decimals)
	if err != nil {
		panic(err)
	}
	return v
}

func FromNano(val *big.Int, decimals int) (Coins, error) {
	if val.Sign() < 0 {
		return Coins{}, fmt.Errorf("%w: negative value", ErrInvalidAmount)
	}
	if uint((val.BitLen()+7)>>3) >= 16 {
		return Coins{}, ErrTooBigAmount
	}

	return Coins{
		decimals: decimals,
		val:      new(big.Int).Set(val),
	}, nil
}

func FromNanoTON(val *big.Int) Coins {
	return Coins{
		decimals: 9,
		val:      new(big.Int).Set(val),
	}
}

func FromNanoTONU(val uint64) Coins {
	return Coins{
		decimals: 9,
		val:      new(big.Int).SetUint64(val),
	}
}

func FromTON(val string) (Coins, error) {
	return FromDecimal(val, 9)
}

// FromDecimal converts a human readable amount like "100.5" to smallest units.
// Non-zero digits beyond the given precision are rejected.
func FromDecimal(val string, decimals int) (Coins, error) {
	if decimals < 0 || decimals >= 128 {
		return Coins{}, fmt.Errorf("%w: invalid decimals %d", ErrInvalidAmount, decimals)
	}

	if val == "" || strings.HasPrefix(val, ".") || strings.HasSuffix(val, ".") ||
		strings.ContainsAny(val, "eE+-") {
		return Coins{}, fmt.Errorf("%w: %q", ErrInvalidAmount, val)
	}

	d, err := decimal.NewFromString(val)
	if err != nil {
		return Coins{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	nano := d.Shift(int32(decimals))
	if !nano.IsInteger() {
		return Coins{}, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, val, decimals)
	}
	return FromNano(nano.BigInt(), decimals)
}

// LoadFromCell keeps decimals already set on g, a zero value is treated as TON.
func (g *Coins) LoadFromCell(loader *cell.Slice) error {
	coins, err := loader.LoadBigCoins()
	if err != nil {
		return err
	}
	if g.decimals == 0 {
		g.decimals = 9
	}
	g.val = coins
	return nil
}

func (g Coins) ToCell() (*cell.Cell, error) {
	b := cell.BeginCell()
	if err := b.StoreBigCoins(g.Nano()); err != nil {
		return nil, err
	}
	return b.EndCell(), nil
}

func (g Coins) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", g.Nano().String())), nil
}

func (g *Coins) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("%w: invalid data", ErrInvalidAmount)
	}

	v, ok := new(big.Int).SetString(string(data[1:len(data)-1]), 10)
	if !ok {
		return fmt.Errorf("%w: invalid number %s", ErrInvalidAmount, data)
	}

	c, err := FromNano(v, 9)
	if err != nil {
		return err
	}
	*g = c
	return nil
}

func (g Coins) Compare(coins *Coins) int {
	return g.Nano().Cmp(coins.Nano())
}

func (g Coins) GreaterThan(coins *Coins) bool {
	return g.Compare(coins) > 0
}

func (g Coins) LessThan(coins *Coins) bool {
	return g.Compare(coins) < 0
}
