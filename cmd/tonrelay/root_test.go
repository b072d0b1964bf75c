package main

import (
	"bytes"
	"encoding/base64"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonrelay/tonrelay/config"
	"github.com/tonrelay/tonrelay/tlb"
	"github.com/tonrelay/tonrelay/ton/jetton"
	"github.com/tonrelay/tonrelay/ton/wallet"
	"github.com/tonrelay/tonrelay/tvm/cell"
)

const testMnemonic = "birth pattern then forest walnut then phrase walnut fan pumpkin pattern then cluster blossom verify then forest velvet pond fiction pattern collect then then"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func testWallet(t *testing.T) *wallet.Session {
	t.Helper()
	s, err := wallet.FromMnemonic(strings.Fields(testMnemonic), "", wallet.Config{Version: wallet.V4R2})
	require.NoError(t, err)
	return s
}

// decodeExternal parses the base64 BOC printed by a dry run.
func decodeExternal(t *testing.T, out string) *tlb.ExternalMessage {
	t.Helper()

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(out))
	require.NoError(t, err)
	root, err := cell.FromBOC(raw)
	require.NoError(t, err)

	var msg tlb.ExternalMessage
	require.NoError(t, msg.LoadFromCell(root.BeginParse()))
	return &msg
}

func TestAddressCmd(t *testing.T) {
	t.Setenv("TONRELAY_WALLET_MNEMONIC", testMnemonic)

	out, err := run(t, "address")
	require.NoError(t, err)

	assert.Contains(t, out, "V4R2")
	assert.Contains(t, out, "UQB_2hgiLMfGAiDHTkFZ1CrYfa1AGNoiDsH-lkDw4lN70bFy")
	assert.Contains(t, out, "EQB_2hgiLMfGAiDHTkFZ1CrYfa1AGNoiDsH-lkDw4lN70ey3")
	assert.Contains(t, out, "698983191")
}

func TestAddressCmd_V5R1(t *testing.T) {
	t.Setenv("TONRELAY_WALLET_MNEMONIC", testMnemonic)
	t.Setenv("TONRELAY_WALLET_VERSION", "v5r1")

	out, err := run(t, "address")
	require.NoError(t, err)

	assert.Contains(t, out, "version:        V5R1\n")
	assert.Contains(t, out, "UQC0zbFSFUC7RgsznB66lMOAmfbK7OlLYZmsgenXIfyF-8yf")
	assert.Contains(t, out, "2147483409")
}

func TestAddressCmd_NoMnemonic(t *testing.T) {
	t.Setenv("TONRELAY_WALLET_MNEMONIC", "")

	_, err := run(t, "address")
	assert.ErrorContains(t, err, "mnemonic is not configured")
}

func TestTransferCmd_Offline(t *testing.T) {
	t.Setenv("TONRELAY_WALLET_MNEMONIC", testMnemonic)
	s := testWallet(t)

	out, err := run(t, "transfer",
		"--to", "EQDEGeK4o7bNgazTln27r0RC4YcOmerzIni3gUpsyqxfgMWk",
		"--amount", "0.5",
		"--comment", "hello",
		"--seqno", "3",
	)
	require.NoError(t, err)

	msg := decodeExternal(t, out)
	assert.Equal(t, s.Address().StringRaw(), msg.DstAddr.StringRaw())
	assert.Nil(t, msg.StateInit)
	assert.True(t, s.Verify(msg.Body))

	body := msg.Body.BeginParse()
	body.MustLoadSlice(512) // signature
	assert.Equal(t, uint64(wallet.DefaultSubwallet), body.MustLoadUInt(32))
	assert.Equal(t, uint64(0xFFFFFFFF), body.MustLoadUInt(32))
	assert.Equal(t, uint64(3), body.MustLoadUInt(32))
	assert.Equal(t, uint64(wallet.OpV4SimpleSend), body.MustLoadUInt(8))
	assert.Equal(t, uint64(wallet.PayGasSeparately), body.MustLoadUInt(8))

	var internal tlb.InternalMessage
	require.NoError(t, internal.LoadFromCell(body.MustLoadRef()))
	assert.Equal(t, "0.5", internal.Amount.String())
	assert.Equal(t, "hello", internal.Comment())
	assert.True(t, internal.Bounce)
}

func TestJettonTransferCmd_OfflineFirstUse(t *testing.T) {
	t.Setenv("TONRELAY_WALLET_MNEMONIC", testMnemonic)
	s := testWallet(t)

	out, err := run(t, "jetton-transfer",
		"--jetton-wallet", "EQCD39VS5jcptHL8vMjEXrzGaRcCVYto7HUn4bpAOg8xqB2N",
		"--to", "EQDEGeK4o7bNgazTln27r0RC4YcOmerzIni3gUpsyqxfgMWk",
		"--query-id", "7",
		"--seqno", "0",
	)
	require.NoError(t, err)

	msg := decodeExternal(t, out)
	require.NotNil(t, msg.StateInit)
	assert.Equal(t, s.StateInit().Code.Hash(), msg.StateInit.Code.Hash())
	assert.True(t, s.Verify(msg.Body))

	body := msg.Body.BeginParse()
	body.MustLoadSlice(512 + 32 + 32 + 32 + 8 + 8)

	var internal tlb.InternalMessage
	require.NoError(t, internal.LoadFromCell(body.MustLoadRef()))
	assert.Equal(t, "0:83dfd552e63729b472fcbcc8c45ebcc6691702558b68ec7527e1ba403a0f31a8", internal.DstAddr.StringRaw())
	assert.Equal(t, "0.1", internal.Amount.String())

	tp := jetton.TransferPayload{Amount: tlb.MustFromDecimal("0", 6)}
	require.NoError(t, tp.LoadFromCell(internal.Body.BeginParse()))
	assert.Equal(t, uint64(7), tp.QueryID)
	assert.Equal(t, "100", tp.Amount.String())
	assert.Nil(t, tp.ResponseDestination)
}

func TestTransferCmd_BadAmount(t *testing.T) {
	t.Setenv("TONRELAY_WALLET_MNEMONIC", testMnemonic)

	_, err := run(t, "transfer", "--to", "EQDEGeK4o7bNgazTln27r0RC4YcOmerzIni3gUpsyqxfgMWk", "--amount", "lots", "--seqno", "1")
	assert.ErrorContains(t, err, "invalid amount")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.Logger{Level: "warn"}, &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Str("k", "v").Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"k":"v"`)
}
