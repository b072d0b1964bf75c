package cell

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/tonrelay/tonrelay/address"
)

var (
	ErrNotEnoughData = errors.New("not enough data in slice")
	ErrNoMoreRefs    = errors.New("no more refs exists")
)

// Slice reads a cell sequentially, bits and refs are consumed independently.
type Slice struct {
	special  bool
	bitsSz   uint
	loadedSz uint
	data     []byte

	refs []*Cell
}

func (c *Slice) MustLoadRef() *Slice {
	r, err := c.LoadRef()
	if err != nil {
		panic(err)
	}
	return r
}

func (c *Slice) LoadRef() (*Slice, error) {
	ref, err := c.LoadRefCell()
	if err != nil {
		return nil, err
	}
	return ref.BeginParse(), nil
}

func (c *Slice) LoadRefCell() (*Cell, error) {
	if len(c.refs) == 0 {
		return nil, ErrNoMoreRefs
	}
	ref := c.refs[0]
	c.refs = c.refs[1:]
	return ref, nil
}

func (c *Slice) MustLoadMaybeRef() *Slice {
	r, err := c.LoadMaybeRef()
	if err != nil {
		panic(err)
	}
	return r
}

// LoadMaybeRef returns nil without error when the presence bit is 0.
func (c *Slice) LoadMaybeRef() (*Slice, error) {
	ref, err := c.LoadMaybeRefCell()
	if err != nil || ref == nil {
		return nil, err
	}
	return ref.BeginParse(), nil
}

func (c *Slice) LoadMaybeRefCell() (*Cell, error) {
	has, err := c.LoadBoolBit()
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	return c.LoadRefCell()
}

func (c *Slice) RefsNum() int {
	return len(c.refs)
}

func (c *Slice) BitsLeft() uint {
	return c.bitsSz - c.loadedSz
}

func (c *Slice) MustLoadCoins() uint64 {
	r, err := c.LoadCoins()
	if err != nil {
		panic(err)
	}
	return r
}

func (c *Slice) LoadCoins() (uint64, error) {
	value, err := c.LoadBigCoins()
	if err != nil {
		return 0, err
	}
	if !value.IsUint64() {
		return 0, ErrTooBigValue
	}
	return value.Uint64(), nil
}

func (c *Slice) MustLoadBigCoins() *big.Int {
	r, err := c.LoadBigCoins()
	if err != nil {
		panic(err)
	}
	return r
}

func (c *Slice) LoadBigCoins() (*big.Int, error) {
	ln, err := c.LoadUInt(4)
	if err != nil {
		return nil, err
	}
	return c.LoadBigUInt(uint(ln * 8))
}

func (c *Slice) MustLoadUInt(sz uint) uint64 {
	res, err := c.LoadUInt(sz)
	if err != nil {
		panic(err)
	}
	return res
}

func (c *Slice) LoadUInt(sz uint) (uint64, error) {
	if sz > 64 {
		return 0, ErrTooBigSize
	}

	b, err := c.LoadSlice(sz)
	if err != nil {
		return 0, err
	}

	var buf [8]byte
	copy(buf[:], b)
	return binary.BigEndian.Uint64(buf[:]) >> (64 - sz), nil
}

func (c *Slice) MustLoadInt(sz uint) int64 {
	res, err := c.LoadInt(sz)
	if err != nil {
		panic(err)
	}
	return res
}

func (c *Slice) LoadInt(sz uint) (int64, error) {
	u, err := c.LoadUInt(sz)
	if err != nil {
		return 0, err
	}

	if sz > 0 && sz < 64 && u&(1<<(sz-1)) != 0 {
		u |= ^uint64(0) << sz
	}
	return int64(u), nil
}

func (c *Slice) MustLoadBoolBit() bool {
	r, err := c.LoadBoolBit()
	if err != nil {
		panic(err)
	}
	return r
}

func (c *Slice) LoadBoolBit() (bool, error) {
	res, err := c.LoadUInt(1)
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (c *Slice) MustLoadBigUInt(sz uint) *big.Int {
	r, err := c.LoadBigUInt(sz)
	if err != nil {
		panic(err)
	}
	return r
}

func (c *Slice) LoadBigUInt(sz uint) (*big.Int, error) {
	if sz > 256 {
		return nil, ErrTooBigSize
	}

	b, err := c.LoadSlice(sz)
	if err != nil {
		return nil, err
	}

	return new(big.Int).Rsh(new(big.Int).SetBytes(b), (8-sz%8)%8), nil
}

func (c *Slice) LoadBigInt(sz uint) (*big.Int, error) {
	if sz > 257 {
		return nil, ErrTooBigSize
	}

	b, err := c.LoadSlice(sz)
	if err != nil {
		return nil, err
	}

	u := new(big.Int).Rsh(new(big.Int).SetBytes(b), (8-sz%8)%8)
	if sz > 0 && u.Bit(int(sz-1)) == 1 {
		u.Sub(u, new(big.Int).Lsh(big.NewInt(1), sz))
	}
	return u, nil
}

func (c *Slice) MustLoadSlice(sz uint) []byte {
	s, err := c.LoadSlice(sz)
	if err != nil {
		panic(err)
	}
	return s
}

// LoadSlice returns sz bits left aligned, unused bits of the last byte are zero.
func (c *Slice) LoadSlice(sz uint) ([]byte, error) {
	if c.BitsLeft() < sz {
		return nil, ErrNotEnoughData
	}

	out := make([]byte, (sz+7)/8)
	if c.loadedSz%8 == 0 {
		copy(out, c.data[c.loadedSz/8:])
		if rem := sz % 8; rem > 0 {
			out[len(out)-1] &= 0xFF << (8 - rem)
		}
	} else {
		for i := uint(0); i < sz; i++ {
			pos := c.loadedSz + i
			if c.data[pos/8]&(1<<(7-pos%8)) != 0 {
				out[i/8] |= 1 << (7 - i%8)
			}
		}
	}

	c.loadedSz += sz
	return out, nil
}

func (c *Slice) MustLoadAddr() *address.Address {
	a, err := c.LoadAddr()
	if err != nil {
		panic(err)
	}
	return a
}

// LoadAddr reads addr_none or addr_std without anycast.
func (c *Slice) LoadAddr() (*address.Address, error) {
	typ, err := c.LoadUInt(2)
	if err != nil {
		return nil, err
	}

	switch typ {
	case 0b00:
		return address.NewAddressNone(), nil
	case 0b10:
		anycast, err := c.LoadBoolBit()
		if err != nil {
			return nil, err
		}
		if anycast {
			return nil, ErrAddressTypeNotSupported
		}

		wc, err := c.LoadInt(8)
		if err != nil {
			return nil, err
		}

		data, err := c.LoadSlice(256)
		if err != nil {
			return nil, err
		}
		return address.NewAddress(0x11, byte(wc), data), nil
	}
	return nil, ErrAddressTypeNotSupported
}

func (c *Slice) LoadStringSnake() (string, error) {
	data, err := c.LoadBinarySnake()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *Slice) LoadBinarySnake() ([]byte, error) {
	var data []byte

	loader := c
	for {
		if loader.BitsLeft()%8 != 0 {
			return nil, errors.New("snake data is not byte aligned")
		}

		part, err := loader.LoadSlice(loader.BitsLeft())
		if err != nil {
			return nil, err
		}
		data = append(data, part...)

		if loader.RefsNum() == 0 {
			return data, nil
		}

		loader, err = loader.LoadRef()
		if err != nil {
			return nil, err
		}
	}
}

// RestBits consumes all remaining bits.
func (c *Slice) RestBits() (uint, []byte, error) {
	left := c.BitsLeft()
	data, err := c.LoadSlice(left)
	return left, data, err
}

func (c *Slice) Copy() *Slice {
	return &Slice{
		special:  c.special,
		bitsSz:   c.bitsSz,
		loadedSz: c.loadedSz,
		data:     c.data,
		refs:     append([]*Cell{}, c.refs...),
	}
}

// ToCell builds a cell from the unread bits and refs.
func (c *Slice) ToCell() (*Cell, error) {
	cp := c.Copy()

	sz, data, err := cp.RestBits()
	if err != nil {
		return nil, err
	}

	b := BeginCell()
	if err = b.StoreSlice(data, sz); err != nil {
		return nil, err
	}
	for _, ref := range cp.refs {
		if err = b.StoreRef(ref); err != nil {
			return nil, err
		}
	}

	cl := b.EndCell()
	cl.special = c.special
	if cl.special {
		cl.calculateHashes()
	}
	return cl, nil
}
