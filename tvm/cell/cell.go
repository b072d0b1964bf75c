package cell

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
)

type Type uint8

const (
	OrdinaryCellType     Type = 0x00
	PrunedCellType       Type = 0x01
	LibraryCellType      Type = 0x02
	MerkleProofCellType  Type = 0x03
	MerkleUpdateCellType Type = 0x04
	UnknownCellType      Type = 0xFF
)

// Cell is immutable, its hash and depth are computed once on creation.
type Cell struct {
	special bool
	bitsSz  uint
	data    []byte
	refs    []*Cell

	hash  []byte
	depth uint16
}

func (c *Cell) BeginParse() *Slice {
	return &Slice{
		special: c.special,
		bitsSz:  c.bitsSz,
		data:    c.data,
		refs:    c.refs,
	}
}

// ToBuilder returns a new unfinalized builder holding the cell content.
func (c *Cell) ToBuilder() *Builder {
	return &Builder{
		bitsSz: c.bitsSz,
		data:   append([]byte{}, c.data...),
		refs:   append([]*Cell{}, c.refs...),
	}
}

func (c *Cell) BitsSize() uint {
	return c.bitsSz
}

func (c *Cell) RefsNum() uint {
	return uint(len(c.refs))
}

func (c *Cell) PeekRef(i int) (*Cell, error) {
	if i < 0 || i >= len(c.refs) {
		return nil, ErrNoMoreRefs
	}
	return c.refs[i], nil
}

func (c *Cell) GetType() Type {
	if !c.special {
		return OrdinaryCellType
	}
	if c.bitsSz < 8 {
		return UnknownCellType
	}

	switch Type(c.data[0]) {
	case PrunedCellType, LibraryCellType, MerkleProofCellType, MerkleUpdateCellType:
		return Type(c.data[0])
	}
	return UnknownCellType
}

func (c *Cell) Hash() []byte {
	return append([]byte{}, c.hash...)
}

func (c *Cell) Depth() uint16 {
	return c.depth
}

func (c *Cell) Sign(key ed25519.PrivateKey) []byte {
	return ed25519.Sign(key, c.hash)
}

func (c *Cell) Dump() string {
	return c.dump(0, false)
}

func (c *Cell) DumpBits() string {
	return c.dump(0, true)
}

func (c *Cell) dump(deep int, bin bool) string {
	var val string
	if bin {
		var sb strings.Builder
		for i := uint(0); i < c.bitsSz; i++ {
			if c.data[i/8]&(1<<(7-i%8)) != 0 {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
		val = sb.String()
	} else {
		val = strings.ToUpper(hex.EncodeToString(c.data))
	}

	str := strings.Repeat("  ", deep) + fmt.Sprint(c.bitsSz) + "[" + val + "]"
	if len(c.refs) > 0 {
		str += " -> {"
		for i, ref := range c.refs {
			str += "\n" + ref.dump(deep+1, bin)
			if i == len(c.refs)-1 {
				str += "\n"
			} else {
				str += ","
			}
		}
		str += strings.Repeat("  ", deep)
		return str + "}"
	}
	return str
}
