package cell

import (
	"crypto/sha256"
	"encoding/binary"
)

// calculateHashes fills the representation hash and depth, children must be already computed.
func (c *Cell) calculateHashes() {
	var depth uint16
	for _, r := range c.refs {
		if r.depth+1 > depth {
			depth = r.depth + 1
		}
	}

	h := sha256.New()
	h.Write(c.descriptors())
	h.Write(c.paddedData())

	var buf [2]byte
	for _, r := range c.refs {
		binary.BigEndian.PutUint16(buf[:], r.depth)
		h.Write(buf[:])
	}
	for _, r := range c.refs {
		h.Write(r.hash)
	}

	c.hash = h.Sum(nil)
	c.depth = depth
}

func (c *Cell) descriptors() []byte {
	var special byte
	if c.special {
		special = 8
	}

	d1 := byte(len(c.refs)) + special
	d2 := byte(c.bitsSz/8 + (c.bitsSz+7)/8)
	return []byte{d1, d2}
}

// paddedData appends the completion tag (1 followed by zeroes) when the data is not byte aligned.
func (c *Cell) paddedData() []byte {
	if c.bitsSz%8 == 0 {
		return c.data
	}

	data := append([]byte{}, c.data...)
	data[c.bitsSz/8] |= 1 << (7 - c.bitsSz%8)
	return data
}
