package cell

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math/bits"

	"github.com/tonrelay/tonrelay/tvm/boc"
)

var ErrInvalidBOC = errors.New("invalid boc")

func FromBOC(data []byte) (*Cell, error) {
	cells, err := FromBOCMultiRoot(data)
	if err != nil {
		return nil, err
	}

	return cells[0], nil
}

func FromBOCMultiRoot(data []byte) ([]*Cell, error) {
	r := newReader(data)

	magic, err := r.ReadBytes(len(boc.Magic))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBOC, err)
	}
	if !bytes.Equal(magic, boc.Magic) {
		return nil, fmt.Errorf("%w: unknown magic %x", ErrInvalidBOC, magic)
	}

	fb, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBOC, err)
	}
	flags := boc.ParseFlags(fb)
	if flags.SizeBytes == 0 || flags.SizeBytes > 4 {
		return nil, fmt.Errorf("%w: invalid cell index size %d", ErrInvalidBOC, flags.SizeBytes)
	}

	offsetBytes, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBOC, err)
	}
	if offsetBytes == 0 || offsetBytes > 8 {
		return nil, fmt.Errorf("%w: invalid offset size %d", ErrInvalidBOC, offsetBytes)
	}

	var cellsNum, rootsNum, absentNum, totalSize int
	for _, v := range []struct {
		dst *int
		sz  int
	}{
		{&cellsNum, flags.SizeBytes},
		{&rootsNum, flags.SizeBytes},
		{&absentNum, flags.SizeBytes},
		{&totalSize, int(offsetBytes)},
	} {
		if *v.dst, err = r.ReadInt(v.sz); err != nil {
			return nil, fmt.Errorf("%w: failed to read header: %v", ErrInvalidBOC, err)
		}
	}

	// every cell takes at least 2 descriptor bytes
	if cellsNum > len(data) || totalSize < 0 || totalSize > len(data) || cellsNum*2 > totalSize {
		return nil, fmt.Errorf("%w: %d cells in %d bytes of cell data", ErrInvalidBOC, cellsNum, totalSize)
	}
	if rootsNum == 0 || rootsNum > cellsNum {
		return nil, fmt.Errorf("%w: %d roots for %d cells", ErrInvalidBOC, rootsNum, cellsNum)
	}
	if absentNum != 0 {
		return nil, fmt.Errorf("%w: absent cells are not supported", ErrInvalidBOC)
	}

	rootsIdx := make([]int, rootsNum)
	for i := range rootsIdx {
		if rootsIdx[i], err = r.ReadInt(flags.SizeBytes); err != nil {
			return nil, fmt.Errorf("%w: failed to read root index: %v", ErrInvalidBOC, err)
		}
		if rootsIdx[i] >= cellsNum {
			return nil, fmt.Errorf("%w: root index %d out of range", ErrInvalidBOC, rootsIdx[i])
		}
	}

	if flags.HasIndex {
		if _, err = r.ReadBytes(cellsNum * int(offsetBytes)); err != nil {
			return nil, fmt.Errorf("%w: failed to skip index: %v", ErrInvalidBOC, err)
		}
	}

	cellsData, err := r.ReadBytes(totalSize)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read cells data: %v", ErrInvalidBOC, err)
	}

	if flags.HasCrc32c {
		payloadEnd := r.Offset()
		crc, err := r.ReadBytes(4)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read crc: %v", ErrInvalidBOC, err)
		}
		if crc32.Checksum(data[:payloadEnd], castagnoli) != binary.LittleEndian.Uint32(crc) {
			return nil, fmt.Errorf("%w: crc32c mismatch", ErrInvalidBOC)
		}
	}

	cells, err := parseCells(cellsNum, flags.SizeBytes, cellsData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBOC, err)
	}

	roots := make([]*Cell, rootsNum)
	for i, idx := range rootsIdx {
		roots[i] = cells[idx]
	}
	return roots, nil
}

type rawCell struct {
	special bool
	bitsSz  uint
	data    []byte
	refs    []int
}

func parseCells(cellsNum, refSzBytes int, data []byte) ([]*Cell, error) {
	r := newReader(data)

	raw := make([]rawCell, cellsNum)
	for i := 0; i < cellsNum; i++ {
		desc, err := r.ReadBytes(2)
		if err != nil {
			return nil, fmt.Errorf("failed to read descriptors of cell %d: %w", i, err)
		}

		d1, d2 := desc[0], desc[1]
		refsNum := int(d1 & 0b111)
		if refsNum > MaxRefs {
			return nil, fmt.Errorf("cell %d has %d refs", i, refsNum)
		}
		if d1&0b10000 != 0 {
			return nil, fmt.Errorf("cell %d is absent", i)
		}
		if d1>>5 != 0 {
			return nil, fmt.Errorf("cell %d has non zero level, not supported", i)
		}

		dataLn := int(d2+1) / 2
		payload, err := r.ReadBytes(dataLn)
		if err != nil {
			return nil, fmt.Errorf("failed to read data of cell %d: %w", i, err)
		}
		payload = append([]byte{}, payload...)

		bitsSz := uint(dataLn * 8)
		if d2%2 == 1 {
			last := payload[dataLn-1]
			if last == 0 {
				return nil, fmt.Errorf("cell %d has no completion tag", i)
			}
			tag := uint(bits.TrailingZeros8(last)) + 1
			bitsSz -= tag
			payload[dataLn-1] &= 0xFF << tag
		}
		if bitsSz > MaxBits {
			return nil, fmt.Errorf("cell %d has %d bits", i, bitsSz)
		}

		refs := make([]int, refsNum)
		for j := range refs {
			idx, err := r.ReadInt(refSzBytes)
			if err != nil {
				return nil, fmt.Errorf("failed to read ref %d of cell %d: %w", j, i, err)
			}
			if idx <= i || idx >= cellsNum {
				return nil, fmt.Errorf("ref %d of cell %d points to %d", j, i, idx)
			}
			refs[j] = idx
		}

		raw[i] = rawCell{
			special: d1&0b1000 != 0,
			bitsSz:  bitsSz,
			data:    payload,
			refs:    refs,
		}
	}

	// refs always point forward, so building from the tail sees children first
	cells := make([]*Cell, cellsNum)
	for i := cellsNum - 1; i >= 0; i-- {
		c := &Cell{
			special: raw[i].special,
			bitsSz:  raw[i].bitsSz,
			data:    raw[i].data,
			refs:    make([]*Cell, len(raw[i].refs)),
		}
		for j, idx := range raw[i].refs {
			c.refs[j] = cells[idx]
		}
		c.calculateHashes()
		cells[i] = c
	}

	return cells, nil
}
