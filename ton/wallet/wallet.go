package wallet

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"

	"github.com/tonrelay/tonrelay/tvm/cell"
)

type Version int

// Network IDs
const MainnetGlobalID = -239
const TestnetGlobalID = -3

const (
	V4R2    Version = 42
	V5R1    Version = 52 // W5 release
	Unknown Version = 0
)

const (
	CarryAllRemainingBalance       = 128
	CarryAllRemainingIncomingValue = 64
	DestroyAccountIfZero           = 32
	IgnoreErrors                   = 2
	PayGasSeparately               = 1
)

// DefaultSubwallet is the wallet id of v3 and v4 wallets in the basechain.
const DefaultSubwallet = 698983191

// V4R2 op selectors
const (
	OpV4SimpleSend = 0
)

// V5R1 op codes
const (
	OpV5AuthSignedExternal = 0x7369676e
	OpV5ActionSendMsg      = 0x0ec3c86d
)

// ErrCodeContractNotInitialized is the exit code get methods return for an account without code.
const ErrCodeContractNotInitialized = -13

var (
	ErrInvalidWalletVariant = errors.New("wallet version is not supported")
	ErrSigningKeyInvalid    = errors.New("signing key is invalid")
)

func (v Version) String() string {
	switch v {
	case Unknown:
		return "unknown"
	case V5R1:
		// 52 is the numeric tag of the fifth revision, not V5R2
		return "V5R1"
	}
	if v/10 > 0 && v/10 < 10 {
		return fmt.Sprintf("V%dR%d", v/10, v%10)
	}
	return fmt.Sprintf("%d", v)
}

// Config selects the wallet contract a key is bound to.
type Config struct {
	Version   Version
	Workchain int8
	// NetworkGlobalID is mixed into the V5R1 wallet id, zero means mainnet.
	NetworkGlobalID int32
}

func (c Config) networkID() int32 {
	if c.NetworkGlobalID == 0 {
		return MainnetGlobalID
	}
	return c.NetworkGlobalID
}

// envelope is the unsigned part of a wallet external body.
type envelope struct {
	WalletID   uint32
	ValidUntil uint32
	Seqno      uint32
	Mode       uint8
	Message    *cell.Cell
}

type variant struct {
	code *cell.Cell
	// walletID returns the id stored in the data cell of a fresh contract.
	walletID func(cfg Config) uint32
	data     func(pub ed25519.PublicKey, walletID uint32) *cell.Cell
	envelope func(e *envelope) (*cell.Builder, error)
	// tailSignature is set when the contract expects the signature after the envelope bits.
	tailSignature bool
	fixMode       func(mode uint8) uint8
}

var (
	walletCodeHex = map[Version]string{
		V4R2: _V4R2CodeHex,
		V5R1: _V5R1CodeHex,
	}
	variants = map[Version]*variant{}
)

func init() {
	code := map[Version]*cell.Cell{}
	for ver, codeHex := range walletCodeHex {
		boc, err := hex.DecodeString(codeHex)
		if err != nil {
			panic(err)
		}
		code[ver], err = cell.FromBOC(boc)
		if err != nil {
			panic(err)
		}
	}

	variants[V4R2] = &variant{
		code:     code[V4R2],
		walletID: v4WalletID,
		data:     v4Data,
		envelope: v4Envelope,
		fixMode:  func(mode uint8) uint8 { return mode },
	}
	variants[V5R1] = &variant{
		code:          code[V5R1],
		walletID:      v5WalletID,
		data:          v5Data,
		envelope:      v5Envelope,
		tailSignature: true,
		// external sends without ignore errors are rejected by the contract
		fixMode: func(mode uint8) uint8 { return mode | IgnoreErrors },
	}
}

func getVariant(ver Version) (*variant, error) {
	v, ok := variants[ver]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWalletVariant, ver)
	}
	return v, nil
}

// defining some funcs this way to mock for tests
var timeNow = time.Now

func v4WalletID(cfg Config) uint32 {
	return DefaultSubwallet + uint32(int32(cfg.Workchain))
}

func v4Data(pub ed25519.PublicKey, walletID uint32) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(0, 32).                // seqno
		MustStoreUInt(uint64(walletID), 32). // subwallet
		MustStoreSlice(pub, 256).
		MustStoreDict(nil). // plugins
		EndCell()
}

func v4Envelope(e *envelope) (*cell.Builder, error) {
	b := cell.BeginCell().
		MustStoreUInt(uint64(e.WalletID), 32).
		MustStoreUInt(uint64(e.ValidUntil), 32).
		MustStoreUInt(uint64(e.Seqno), 32).
		MustStoreUInt(OpV4SimpleSend, 8).
		MustStoreUInt(uint64(e.Mode), 8)

	if err := b.StoreRef(e.Message); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}
	return b, nil
}

// v5WalletID packs the client context: signature flag, workchain, version 0 and subwallet number 0.
func v5WalletID(cfg Config) uint32 {
	ctx := uint32(1)<<31 | uint32(uint8(cfg.Workchain))<<23
	return ctx ^ uint32(cfg.networkID())
}

func v5Data(pub ed25519.PublicKey, walletID uint32) *cell.Cell {
	return cell.BeginCell().
		MustStoreBoolBit(true). // signature auth allowed
		MustStoreUInt(0, 32).   // seqno
		MustStoreUInt(uint64(walletID), 32).
		MustStoreSlice(pub, 256).
		MustStoreDict(nil). // extensions
		EndCell()
}

func v5Envelope(e *envelope) (*cell.Builder, error) {
	if e.Message == nil {
		return nil, errors.New("message is nil")
	}

	list := cell.BeginCell().
		MustStoreRef(cell.BeginCell().EndCell()). // previous actions
		MustStoreUInt(OpV5ActionSendMsg, 32).
		MustStoreUInt(uint64(e.Mode), 8).
		MustStoreRef(e.Message).
		EndCell()

	return cell.BeginCell().
		MustStoreUInt(OpV5AuthSignedExternal, 32).
		MustStoreUInt(uint64(e.WalletID), 32).
		MustStoreUInt(uint64(e.ValidUntil), 32).
		MustStoreUInt(uint64(e.Seqno), 32).
		MustStoreMaybeRef(list).
		MustStoreBoolBit(false), nil // no extended actions
}
