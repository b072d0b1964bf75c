package cell

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/tonrelay/tonrelay/address"
)

const (
	MaxBits = 1023
	MaxRefs = 4
)

var (
	ErrCapacityExceeded = errors.New("cell capacity exceeded")
	ErrRange            = errors.New("value does not fit requested width")
	ErrAlreadyFinalized = errors.New("builder is already finalized")

	ErrNotFit1023              = fmt.Errorf("%w: not enough space in cell, max 1023 bits", ErrCapacityExceeded)
	ErrTooMuchRefs             = fmt.Errorf("%w: too many refs, max 4", ErrCapacityExceeded)
	ErrTooBigValue             = fmt.Errorf("%w: too big value", ErrRange)
	ErrNegative                = fmt.Errorf("%w: value should be non-negative", ErrRange)
	ErrTooBigSize              = fmt.Errorf("%w: too big size", ErrRange)
	ErrSmallSlice              = errors.New("too small slice for this size")
	ErrRefCannotBeNil          = errors.New("ref cannot be nil")
	ErrAddressTypeNotSupported = errors.New("address type is not supported")
)

// Builder accumulates bits and refs until EndCell. Every failed store leaves it untouched.
type Builder struct {
	bitsSz uint
	data   []byte
	refs   []*Cell

	// set by EndCell, blocks further stores
	cell *Cell
}

func BeginCell() *Builder {
	return &Builder{}
}

func (b *Builder) canStore(bits uint, refs int) error {
	if b.cell != nil {
		return ErrAlreadyFinalized
	}
	if b.bitsSz+bits > MaxBits {
		return ErrNotFit1023
	}
	if len(b.refs)+refs > MaxRefs {
		return ErrTooMuchRefs
	}
	return nil
}

// appendBits writes the first sz bits of src, MSB first. Capacity must be checked by the caller.
func (b *Builder) appendBits(src []byte, sz uint) {
	if b.bitsSz%8 == 0 {
		full := sz / 8
		b.data = append(b.data, src[:full]...)
		if rem := sz % 8; rem > 0 {
			b.data = append(b.data, src[full]&(0xFF<<(8-rem)))
		}
		b.bitsSz += sz
		return
	}

	for i := uint(0); i < sz; i++ {
		if b.bitsSz%8 == 0 {
			b.data = append(b.data, 0)
		}
		if src[i/8]&(1<<(7-i%8)) != 0 {
			b.data[b.bitsSz/8] |= 1 << (7 - b.bitsSz%8)
		}
		b.bitsSz++
	}
}

func (b *Builder) MustStoreCoins(value uint64) *Builder {
	err := b.StoreCoins(value)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreCoins(value uint64) error {
	return b.StoreBigCoins(new(big.Int).SetUint64(value))
}

func (b *Builder) MustStoreBigCoins(value *big.Int) *Builder {
	err := b.StoreBigCoins(value)
	if err != nil {
		panic(err)
	}
	return b
}

// StoreBigCoins writes VarUInteger 16: 4 bits of byte length, then the value.
func (b *Builder) StoreBigCoins(value *big.Int) error {
	if value.Sign() < 0 {
		return ErrNegative
	}

	ln := uint((value.BitLen() + 7) >> 3)
	if ln >= 16 {
		return ErrTooBigValue
	}

	if err := b.canStore(4+ln*8, 0); err != nil {
		return err
	}

	b.appendBits([]byte{byte(ln << 4)}, 4)
	if ln > 0 {
		b.appendBits(value.FillBytes(make([]byte, ln)), ln*8)
	}
	return nil
}

func (b *Builder) MustStoreUInt(value uint64, sz uint) *Builder {
	err := b.StoreUInt(value, sz)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreUInt(value uint64, sz uint) error {
	if sz > 64 {
		return b.StoreBigUInt(new(big.Int).SetUint64(value), sz)
	}

	if sz < 64 && value>>sz != 0 {
		return ErrTooBigValue
	}

	if err := b.canStore(sz, 0); err != nil {
		return err
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], value<<(64-sz))
	b.appendBits(buf[:], sz)
	return nil
}

func (b *Builder) MustStoreInt(value int64, sz uint) *Builder {
	err := b.StoreInt(value, sz)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreInt(value int64, sz uint) error {
	if sz > 64 {
		return b.StoreBigInt(big.NewInt(value), sz)
	}

	if sz == 0 {
		if value != 0 {
			return ErrTooBigValue
		}
		return nil
	}

	if sz < 64 {
		lim := int64(1) << (sz - 1)
		if value < -lim || value >= lim {
			return ErrTooBigValue
		}
	}

	mask := ^uint64(0)
	if sz < 64 {
		mask = (uint64(1) << sz) - 1
	}
	return b.StoreUInt(uint64(value)&mask, sz)
}

func (b *Builder) MustStoreBoolBit(value bool) *Builder {
	err := b.StoreBoolBit(value)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreBoolBit(value bool) error {
	var i uint64
	if value {
		i = 1
	}
	return b.StoreUInt(i, 1)
}

func (b *Builder) MustStoreBigUInt(value *big.Int, sz uint) *Builder {
	err := b.StoreBigUInt(value, sz)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreBigUInt(value *big.Int, sz uint) error {
	if value.Sign() < 0 {
		return ErrNegative
	}
	if sz > 256 {
		return ErrTooBigSize
	}
	if uint(value.BitLen()) > sz {
		return ErrTooBigValue
	}
	return b.storeBig(value, sz)
}

// storeBig writes a non-negative value already known to fit into sz bits.
func (b *Builder) storeBig(value *big.Int, sz uint) error {
	if err := b.canStore(sz, 0); err != nil {
		return err
	}
	if sz == 0 {
		return nil
	}

	pad := (8 - sz%8) % 8
	buf := new(big.Int).Lsh(value, pad).FillBytes(make([]byte, (sz+7)/8))
	b.appendBits(buf, sz)
	return nil
}

func (b *Builder) MustStoreBigInt(value *big.Int, sz uint) *Builder {
	err := b.StoreBigInt(value, sz)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreBigInt(value *big.Int, sz uint) error {
	if sz > 257 {
		return ErrTooBigSize
	}
	if sz == 0 {
		if value.Sign() != 0 {
			return ErrTooBigValue
		}
		return nil
	}

	if value.Sign() >= 0 {
		if uint(value.BitLen()) >= sz {
			return ErrTooBigValue
		}
		return b.storeBig(value, sz)
	}

	// -v-1 must fit sz-1 bits
	if uint(new(big.Int).Not(value).BitLen()) >= sz {
		return ErrTooBigValue
	}

	twos := new(big.Int).Add(value, new(big.Int).Lsh(big.NewInt(1), sz))
	return b.storeBig(twos, sz)
}

func (b *Builder) MustStoreAddr(addr *address.Address) *Builder {
	err := b.StoreAddr(addr)
	if err != nil {
		panic(err)
	}
	return b
}

// StoreAddr writes addr_std, or addr_none when addr is nil.
func (b *Builder) StoreAddr(addr *address.Address) error {
	if addr == nil || addr.IsAddrNone() {
		return b.StoreUInt(0, 2)
	}

	if addr.Type() != address.StdAddress || len(addr.Data()) != 32 {
		return ErrAddressTypeNotSupported
	}

	wc := addr.Workchain()
	if wc < -128 || wc > 127 {
		return ErrTooBigValue
	}

	if err := b.canStore(2+1+8+256, 0); err != nil {
		return err
	}

	// addr_std$10, anycast:(Maybe Anycast) = 0
	b.appendBits([]byte{0b100_00000 | byte(wc)>>3, byte(wc) << 5}, 11)
	b.appendBits(addr.Data(), 256)
	return nil
}

func (b *Builder) MustStoreStringSnake(str string) *Builder {
	err := b.StoreStringSnake(str)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) MustStoreBinarySnake(data []byte) *Builder {
	err := b.StoreBinarySnake(data)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreStringSnake(str string) error {
	return b.StoreBinarySnake([]byte(str))
}

// StoreBinarySnake fills the rest of the builder with data and chains the remainder through refs.
func (b *Builder) StoreBinarySnake(data []byte) error {
	if b.cell != nil {
		return ErrAlreadyFinalized
	}

	var f func(space int) (*Builder, error)
	f = func(space int) (*Builder, error) {
		if len(data) < space {
			space = len(data)
		}

		c := BeginCell()
		if err := c.StoreSlice(data, uint(space)*8); err != nil {
			return nil, err
		}

		data = data[space:]

		if len(data) > 0 {
			ref, err := f(MaxBits / 8)
			if err != nil {
				return nil, err
			}

			if err = c.StoreRef(ref.EndCell()); err != nil {
				return nil, err
			}
		}

		return c, nil
	}

	snake, err := f(int(b.BitsLeft() / 8))
	if err != nil {
		return err
	}

	return b.StoreBuilder(snake)
}

func (b *Builder) MustStoreDict(root *Cell) *Builder {
	err := b.StoreDict(root)
	if err != nil {
		panic(err)
	}
	return b
}

// StoreDict writes a HashmapE: a presence bit and, when root is not nil, a ref to the dictionary root.
// The dictionary content is opaque here.
func (b *Builder) StoreDict(root *Cell) error {
	return b.StoreMaybeRef(root)
}

func (b *Builder) MustStoreMaybeRef(ref *Cell) *Builder {
	err := b.StoreMaybeRef(ref)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreMaybeRef(ref *Cell) error {
	if ref == nil {
		return b.StoreBoolBit(false)
	}

	if err := b.canStore(1, 1); err != nil {
		return err
	}

	b.appendBits([]byte{0x80}, 1)
	b.refs = append(b.refs, ref)
	return nil
}

func (b *Builder) MustStoreRef(ref *Cell) *Builder {
	err := b.StoreRef(ref)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreRef(ref *Cell) error {
	if ref == nil {
		return ErrRefCannotBeNil
	}

	if err := b.canStore(0, 1); err != nil {
		return err
	}

	b.refs = append(b.refs, ref)
	return nil
}

func (b *Builder) MustStoreSlice(bytes []byte, sz uint) *Builder {
	err := b.StoreSlice(bytes, sz)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) StoreSlice(bytes []byte, sz uint) error {
	if sz == 0 {
		return b.canStore(0, 0)
	}

	if uint(len(bytes))*8 < sz {
		return ErrSmallSlice
	}

	if err := b.canStore(sz, 0); err != nil {
		return err
	}

	b.appendBits(bytes, sz)
	return nil
}

func (b *Builder) MustStoreBuilder(builder *Builder) *Builder {
	err := b.StoreBuilder(builder)
	if err != nil {
		panic(err)
	}
	return b
}

// StoreBuilder splices in the bits and refs of another builder, which may already be finalized.
func (b *Builder) StoreBuilder(builder *Builder) error {
	if err := b.canStore(builder.bitsSz, len(builder.refs)); err != nil {
		return err
	}

	if builder.bitsSz > 0 {
		b.appendBits(builder.data, builder.bitsSz)
	}
	b.refs = append(b.refs, builder.refs...)
	return nil
}

func (b *Builder) RefsUsed() int {
	return len(b.refs)
}

func (b *Builder) BitsUsed() uint {
	return b.bitsSz
}

func (b *Builder) BitsLeft() uint {
	return MaxBits - b.bitsSz
}

func (b *Builder) RefsLeft() uint {
	return MaxRefs - uint(len(b.refs))
}

// Copy returns an unfinalized builder with the same content.
func (b *Builder) Copy() *Builder {
	return &Builder{
		bitsSz: b.bitsSz,
		data:   append([]byte{}, b.data...),
		refs:   append([]*Cell{}, b.refs...),
	}
}

// EndCell finalizes the builder. Later calls return the same cell, any further store fails with ErrAlreadyFinalized.
func (b *Builder) EndCell() *Cell {
	if b.cell != nil {
		return b.cell
	}

	c := &Cell{
		bitsSz: b.bitsSz,
		data:   append([]byte{}, b.data...),
		refs:   append([]*Cell{}, b.refs...),
	}
	c.calculateHashes()

	b.cell = c
	return c
}
