package boc

import (
	"bytes"

	"github.com/tonrelay/tonrelay/utils"
)

var Magic = []byte{0xB5, 0xEE, 0x9C, 0x72}

// Flags is the byte following the magic: has_idx, has_crc32c, has_cache_bits, 2 reserved bits
// and 3 bits holding the size of a cell index in bytes.
type Flags struct {
	HasIndex     bool
	HasCrc32c    bool
	HasCacheBits bool
	SizeBytes    int
}

func ParseFlags(data byte) Flags {
	return Flags{
		HasIndex:     utils.HasBit(data, 7),
		HasCrc32c:    utils.HasBit(data, 6),
		HasCacheBits: utils.HasBit(data, 5),
		SizeBytes:    int(data & 0b00000111),
	}
}

func (f Flags) Byte() byte {
	b := byte(f.SizeBytes) & 0b00000111
	if f.HasIndex {
		utils.SetBit(&b, 7)
	}
	if f.HasCrc32c {
		utils.SetBit(&b, 6)
	}
	if f.HasCacheBits {
		utils.SetBit(&b, 5)
	}
	return b
}

func IsBOC(data []byte) bool {
	return len(data) > len(Magic) && bytes.Equal(data[:len(Magic)], Magic)
}
