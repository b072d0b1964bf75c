package address

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/howeyc/crc16"
)

type AddrType int

const (
	NoneAddress AddrType = 0
	StdAddress  AddrType = 2
)

var ErrInvalidAddress = errors.New("invalid address")

// XMODEM: polynomial 0x1021, MSB first, zero init.
var crcTable = crc16.MakeBitsReversedTable(crc16.CCITTFalse)

type flags struct {
	bounceable bool
	testnet    bool
}

// Address is an immutable account address, either addr_std or addr_none.
type Address struct {
	flags     flags
	addrType  AddrType
	workchain int32
	data      []byte
}

func NewAddress(flags byte, workchain byte, data []byte) *Address {
	return &Address{
		flags:     parseFlags(flags),
		addrType:  StdAddress,
		workchain: int32(int8(workchain)),
		data:      append([]byte{}, data...),
	}
}

func NewAddressNone() *Address {
	return &Address{
		addrType: NoneAddress,
	}
}

func MustParseAddr(addr string) *Address {
	a, err := ParseAddr(addr)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseAddr parses the user-friendly form: 36 bytes of base64 or base64url text
// holding flags, workchain, account id and a crc16 checksum.
func ParseAddr(addr string) (*Address, error) {
	if len(addr) != 48 {
		return nil, fmt.Errorf("%w: incorrect length %d", ErrInvalidAddress, len(addr))
	}

	data, err := base64.URLEncoding.DecodeString(addr)
	if err != nil {
		data, err = base64.StdEncoding.DecodeString(addr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
	}

	checksum := binary.BigEndian.Uint16(data[34:])
	if crc16.Checksum(data[:34], crcTable) != checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}

	if data[0]&0x3f != 0x11 {
		return nil, fmt.Errorf("%w: unknown tag 0x%x", ErrInvalidAddress, data[0])
	}

	return NewAddress(data[0], data[1], data[2:34]), nil
}

func MustParseRawAddr(addr string) *Address {
	a, err := ParseRawAddr(addr)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseRawAddr parses the "workchain:hex" form.
func ParseRawAddr(addr string) (*Address, error) {
	wc, hash, ok := strings.Cut(addr, ":")
	if !ok {
		return nil, fmt.Errorf("%w: no workchain separator", ErrInvalidAddress)
	}

	w, err := strconv.ParseInt(wc, 10, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: bad workchain: %v", ErrInvalidAddress, err)
	}

	data, err := hex.DecodeString(hash)
	if err != nil {
		return nil, fmt.Errorf("%w: bad hash: %v", ErrInvalidAddress, err)
	}
	if len(data) != 32 {
		return nil, fmt.Errorf("%w: hash should be 32 bytes", ErrInvalidAddress)
	}

	return NewAddress(0x11, byte(int8(w)), data), nil
}

// ParseAnyAddr accepts both the user-friendly and the raw form.
func ParseAnyAddr(addr string) (*Address, error) {
	if strings.Contains(addr, ":") {
		return ParseRawAddr(addr)
	}
	return ParseAddr(addr)
}

func (a *Address) String() string {
	if a.addrType == NoneAddress {
		return "NONE"
	}

	var data = make([]byte, 36)
	data[0] = a.FlagsToByte()
	data[1] = byte(a.workchain)
	copy(data[2:34], a.data)
	binary.BigEndian.PutUint16(data[34:], a.Checksum())

	return base64.URLEncoding.EncodeToString(data)
}

func (a *Address) StringRaw() string {
	if a.addrType == NoneAddress {
		return "NONE"
	}
	return fmt.Sprintf("%d:%s", a.workchain, hex.EncodeToString(a.data))
}

func (a *Address) Dump() string {
	return fmt.Sprintf("human-readable address: %s isBounceable: %t, isTestnetOnly: %t, data.len: %d", a,
		a.IsBounceable(), a.IsTestnetOnly(), len(a.data))
}

func (a *Address) FlagsToByte() (flags byte) {
	// check for default flags (store for bounceable address, mainnet)
	flags = 0b00010001
	if !a.flags.bounceable {
		flags |= 1 << 6
	}
	if a.flags.testnet {
		flags |= 1 << 7
	}
	return flags
}

func parseFlags(data byte) flags {
	return flags{
		bounceable: data&(1<<6) == 0,
		testnet:    data&(1<<7) != 0,
	}
}

func (a *Address) Checksum() uint16 {
	var data = make([]byte, 34)
	data[0] = a.FlagsToByte()
	data[1] = byte(a.workchain)
	copy(data[2:], a.data)
	return crc16.Checksum(data, crcTable)
}

// Bounce returns a copy with the bounceable flag set to bounce.
func (a *Address) Bounce(bounce bool) *Address {
	c := a.Copy()
	c.flags.bounceable = bounce
	return c
}

// Testnet returns a copy with the testnet-only flag set.
func (a *Address) Testnet(testnet bool) *Address {
	c := a.Copy()
	c.flags.testnet = testnet
	return c
}

func (a *Address) Copy() *Address {
	return &Address{
		flags:     a.flags,
		addrType:  a.addrType,
		workchain: a.workchain,
		data:      append([]byte{}, a.data...),
	}
}

func (a *Address) IsBounceable() bool {
	return a.flags.bounceable
}

func (a *Address) IsTestnetOnly() bool {
	return a.flags.testnet
}

func (a *Address) IsAddrNone() bool {
	return a.addrType == NoneAddress
}

func (a *Address) Type() AddrType {
	return a.addrType
}

func (a *Address) Workchain() int32 {
	return a.workchain
}

func (a *Address) Data() []byte {
	return a.data
}

// Equals compares the on-chain identity only, presentation flags are ignored.
func (a *Address) Equals(b *Address) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.addrType == b.addrType && a.workchain == b.workchain && string(a.data) == string(b.data)
}

func (a *Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(data []byte) error {
	if string(data) == "NONE" {
		*a = *NewAddressNone()
		return nil
	}

	addr, err := ParseAnyAddr(string(data))
	if err != nil {
		return err
	}
	*a = *addr
	return nil
}
