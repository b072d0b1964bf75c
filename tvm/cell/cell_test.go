package cell

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"math/bits"
	mrand "math/rand"
	"testing"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCell_Hash(t *testing.T) {
	cc1 := BeginCell().MustStoreUInt(111, 63).EndCell()
	cc2 := BeginCell().MustStoreUInt(772227, 63).MustStoreRef(cc1).EndCell()
	cc3 := BeginCell().MustStoreUInt(333, 63).MustStoreRef(cc2).EndCell()
	cc := BeginCell().MustStoreUInt(777, 63).MustStoreRef(cc3).EndCell()

	b, _ := hex.DecodeString("bb2509fe3cff8f1faae19213774d218c018f9616cd397850c8ad9038db84eaa9")

	if !bytes.Equal(cc.Hash(), b) {
		t.Fatal("hash diff")
	}
	if cc.Depth() != 3 || cc1.Depth() != 0 {
		t.Fatal("wrong depth", cc.Depth(), cc1.Depth())
	}
}

func TestCell_HashEmpty(t *testing.T) {
	want, _ := hex.DecodeString("96a296d224f285c67bee93c30f8a309157f0daa35dc5b87e410b78630a09cfc7")
	if !bytes.Equal(BeginCell().EndCell().Hash(), want) {
		t.Fatal("empty cell hash diff")
	}
}

func buildTree(leaves [][]byte, root []byte) *Cell {
	rb := BeginCell().MustStoreSlice(root, uint(len(root))*8)
	for _, l := range leaves {
		rb.MustStoreRef(BeginCell().MustStoreSlice(l, uint(len(l))*8-3).EndCell())
	}
	return rb.EndCell()
}

func TestCell_HashDeterministic(t *testing.T) {
	leaves := [][]byte{{1, 2, 3}, {4, 5, 6, 7}, {8}}
	a := buildTree(leaves, []byte("root"))
	b := buildTree(leaves, []byte("root"))

	assert.Equal(t, a.Hash(), b.Hash())
	assert.Equal(t, a.Hash(), a.Hash())

	// the returned digest is a copy
	h := a.Hash()
	h[0] ^= 0xFF
	assert.NotEqual(t, h, a.Hash())
}

func TestCell_HashAvalanche(t *testing.T) {
	rnd := mrand.New(mrand.NewSource(42))

	leaves := make([][]byte, 3)
	for i := range leaves {
		leaves[i] = make([]byte, 16)
		rnd.Read(leaves[i])
	}
	root := make([]byte, 32)
	rnd.Read(root)

	base := buildTree(leaves, root).Hash()

	const trials = 300
	total := 0
	for i := 0; i < trials; i++ {
		target := rnd.Intn(len(leaves) + 1)
		var buf []byte
		var usable int
		if target == len(leaves) {
			buf, usable = root, len(root)*8
		} else {
			buf, usable = leaves[target], len(leaves[target])*8-3
		}

		bit := rnd.Intn(usable)
		buf[bit/8] ^= 1 << (7 - bit%8)
		h := buildTree(leaves, root).Hash()
		buf[bit/8] ^= 1 << (7 - bit%8)

		require.NotEqual(t, base, h, "flip of bit %d in part %d did not change root hash", bit, target)

		for j := range h {
			total += bits.OnesCount8(h[j] ^ base[j])
		}
	}

	avg := float64(total) / trials
	if avg < 118 || avg > 138 {
		t.Fatalf("average changed bits %.2f is far from 128", avg)
	}
}

func TestCell_Sign(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	c := BeginCell().MustStoreUInt(0xDEADBEEF, 32).EndCell()
	sig := c.Sign(priv)
	require.Len(t, sig, 64)
	assert.True(t, ed25519.Verify(pub, c.Hash(), sig))
}

func TestCell_Accessors(t *testing.T) {
	leaf := BeginCell().MustStoreUInt(1, 1).EndCell()
	c := BeginCell().MustStoreUInt(0b101, 3).MustStoreRef(leaf).EndCell()

	assert.Equal(t, OrdinaryCellType, c.GetType())
	assert.Equal(t, uint(3), c.BitsSize())
	assert.Equal(t, uint(1), c.RefsNum())

	r, err := c.PeekRef(0)
	require.NoError(t, err)
	assert.Same(t, leaf, r)
	_, err = c.PeekRef(1)
	assert.ErrorIs(t, err, ErrNoMoreRefs)

	assert.Equal(t, "3[101] -> {\n  1[1]\n}", c.DumpBits())
	assert.Equal(t, "3[A0] -> {\n  1[80]\n}", c.Dump())

	b := c.ToBuilder()
	require.NoError(t, b.StoreUInt(0, 1))
	assert.Equal(t, uint(3), c.BitsSize(), "cell must not change through its builder copy")
}
