package jetton

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonrelay/tonrelay/address"
	"github.com/tonrelay/tonrelay/tlb"
	"github.com/tonrelay/tonrelay/tvm/cell"
)

var dst = address.MustParseAddr("EQCD39VS5jcptHL8vMjEXrzGaRcCVYto7HUn4bpAOg8xqB2N")

func TestTransferPayload_ToCell(t *testing.T) {
	p := &TransferPayload{
		Amount:      tlb.MustFromDecimal("100", 6),
		Destination: dst,
	}

	c, err := p.ToCell()
	require.NoError(t, err)
	assert.Equal(t, uint(407), c.BitsSize())
	assert.Equal(t, uint(0), c.RefsNum())
	assert.Equal(t, "3051bebf800531b9d345689400fb02615741bc936a32f2e3a29b4854364d091b", hex.EncodeToString(c.Hash()))

	s := c.BeginParse()
	assert.Equal(t, uint64(OpTransfer), s.MustLoadUInt(32))
}

func TestTransferPayload_EmptyOptionalsAreAbsent(t *testing.T) {
	empty := cell.BeginCell().EndCell()

	withEmpty := &TransferPayload{
		Amount:           tlb.MustFromDecimal("100", 6),
		Destination:      dst,
		CustomPayload:    empty,
		ForwardTONAmount: tlb.ZeroCoins,
		ForwardPayload:   empty,
	}
	withNil := &TransferPayload{
		Amount:      tlb.MustFromDecimal("100", 6),
		Destination: dst,
	}

	a, err := withEmpty.ToCell()
	require.NoError(t, err)
	b, err := withNil.ToCell()
	require.NoError(t, err)

	assert.Equal(t, b.Hash(), a.Hash())
	assert.Equal(t, uint(0), a.RefsNum())

	// tail: response addr_none 00, custom payload 0, forward amount 0000, forward payload 0
	s := a.BeginParse()
	_, _ = s.LoadSlice(a.BitsSize() - 8)
	assert.Equal(t, uint64(0), s.MustLoadUInt(8))
}

func TestTransferPayload_RoundTrip(t *testing.T) {
	resp := address.MustParseAddr("EQC6KV4zs8TJtSZapOrRFmqSkxzpq-oSCoxekQRKElf4nC1I")
	fwd, err := tlb.CreateCommentCell("for you")
	require.NoError(t, err)
	custom := cell.BeginCell().MustStoreUInt(7, 8).EndCell()

	p := &TransferPayload{
		QueryID:             12345,
		Amount:              tlb.MustFromDecimal("1.5", 6),
		Destination:         dst,
		ResponseDestination: resp,
		CustomPayload:       custom,
		ForwardTONAmount:    tlb.MustFromTON("0.01"),
		ForwardPayload:      fwd,
	}

	c, err := p.ToCell()
	require.NoError(t, err)
	assert.Equal(t, uint(2), c.RefsNum())

	var back TransferPayload
	require.NoError(t, back.LoadFromCell(c.BeginParse()))
	assert.Equal(t, uint64(12345), back.QueryID)
	assert.Equal(t, "1500000", back.Amount.Nano().String())
	assert.True(t, back.Destination.Equals(dst))
	assert.True(t, back.ResponseDestination.Equals(resp))
	assert.Equal(t, custom.Hash(), back.CustomPayload.Hash())
	assert.Equal(t, "10000000", back.ForwardTONAmount.Nano().String())
	assert.Equal(t, fwd.Hash(), back.ForwardPayload.Hash())

	var none TransferPayload
	nc, err := (&TransferPayload{Amount: tlb.ZeroCoins, Destination: dst}).ToCell()
	require.NoError(t, err)
	require.NoError(t, none.LoadFromCell(nc.BeginParse()))
	assert.Nil(t, none.ResponseDestination)
	assert.Nil(t, none.CustomPayload)
	assert.Nil(t, none.ForwardPayload)
}

func TestMintPayload_RoundTrip(t *testing.T) {
	minter := address.MustParseAddr("EQC6KV4zs8TJtSZapOrRFmqSkxzpq-oSCoxekQRKElf4nC1I")

	p := &MintPayload{
		QueryID:   1,
		To:        dst,
		TONAmount: tlb.MustFromTON("0.05"),
		MasterMsg: InternalTransferPayload{
			QueryID:             1,
			Amount:              tlb.MustFromDecimal("1000", 6),
			From:                minter,
			ResponseDestination: dst,
			ForwardTONAmount:    tlb.ZeroCoins,
		},
	}

	c, err := p.ToCell()
	require.NoError(t, err)
	require.Equal(t, uint(1), c.RefsNum())

	var back MintPayload
	require.NoError(t, back.LoadFromCell(c.BeginParse()))
	assert.True(t, back.To.Equals(dst))
	assert.Equal(t, "50000000", back.TONAmount.Nano().String())
	assert.Equal(t, "1000000000", back.MasterMsg.Amount.Nano().String())
	assert.True(t, back.MasterMsg.From.Equals(minter))
	assert.Nil(t, back.MasterMsg.ForwardPayload)

	master, err := c.PeekRef(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(OpInternalTransfer), master.BeginParse().MustLoadUInt(32))

	var wrong TransferPayload
	assert.Error(t, wrong.LoadFromCell(c.BeginParse()))
}

func TestRandomQueryID(t *testing.T) {
	a, err := RandomQueryID()
	require.NoError(t, err)
	b, err := RandomQueryID()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
