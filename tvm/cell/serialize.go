package cell

import (
	"encoding/binary"
	"hash/crc32"
	"math/bits"

	"github.com/tonrelay/tonrelay/tvm/boc"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func (c *Cell) ToBOC() []byte {
	return c.ToBOCWithFlags(true)
}

func (c *Cell) ToBOCWithFlags(withCRC bool) []byte {
	return ToBOCWithFlags([]*Cell{c}, withCRC)
}

// ToBOCWithFlags packs the roots and every distinct cell reachable from them into a bag of cells.
// Parents always precede their children, a single root gets index 0.
func ToBOCWithFlags(roots []*Cell, withCRC bool) []byte {
	if len(roots) == 0 {
		return nil
	}

	cells, index := flattenIndex(roots)

	sizeBytes := byteLen(uint64(len(cells)))

	var payload []byte
	for _, cl := range cells {
		payload = append(payload, cl.descriptors()...)
		payload = append(payload, cl.paddedData()...)
		for _, ref := range cl.refs {
			payload = append(payload, dynamicIntBytes(uint64(index[string(ref.hash)]), sizeBytes)...)
		}
	}

	offsetBytes := byteLen(uint64(len(payload)))

	flags := boc.Flags{
		HasCrc32c: withCRC,
		SizeBytes: sizeBytes,
	}

	data := append([]byte{}, boc.Magic...)
	data = append(data, flags.Byte(), byte(offsetBytes))
	data = append(data, dynamicIntBytes(uint64(len(cells)), sizeBytes)...)
	data = append(data, dynamicIntBytes(uint64(len(roots)), sizeBytes)...)
	data = append(data, dynamicIntBytes(0, sizeBytes)...) // absent
	data = append(data, dynamicIntBytes(uint64(len(payload)), offsetBytes)...)
	for _, r := range roots {
		data = append(data, dynamicIntBytes(uint64(index[string(r.hash)]), sizeBytes)...)
	}
	data = append(data, payload...)

	if withCRC {
		checksum := make([]byte, 4)
		binary.LittleEndian.PutUint32(checksum, crc32.Checksum(data, castagnoli))
		data = append(data, checksum...)
	}

	return data
}

// flattenIndex orders distinct cells topologically (reverse post-order) and maps hash to index.
func flattenIndex(roots []*Cell) ([]*Cell, map[string]int) {
	visited := map[string]bool{}
	var order []*Cell

	var visit func(c *Cell)
	visit = func(c *Cell) {
		k := string(c.hash)
		if visited[k] {
			return
		}
		visited[k] = true
		for _, ref := range c.refs {
			visit(ref)
		}
		order = append(order, c)
	}

	for i := len(roots) - 1; i >= 0; i-- {
		visit(roots[i])
	}

	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}

	index := make(map[string]int, len(order))
	for i, c := range order {
		index[string(c.hash)] = i
	}
	return order, index
}

func byteLen(v uint64) int {
	n := (bits.Len64(v) + 7) / 8
	if n == 0 {
		return 1
	}
	return n
}

func dynamicIntBytes(val uint64, sz int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, val)
	return buf[8-sz:]
}
