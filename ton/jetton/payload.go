package jetton

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/tonrelay/tonrelay/address"
	"github.com/tonrelay/tonrelay/tlb"
	"github.com/tonrelay/tonrelay/tvm/cell"
)

// Operation codes of the jetton standard used by the payload builders.
const (
	OpMint             uint32 = 21
	OpInternalTransfer uint32 = 0x178d4519
	OpTransfer         uint32 = 0x0f8a7ea5
)

// TransferPayload is the body sent to the owner's jetton wallet to move jettons to Destination.
type TransferPayload struct {
	QueryID             uint64
	Amount              tlb.Coins
	Destination         *address.Address
	ResponseDestination *address.Address
	CustomPayload       *cell.Cell
	ForwardTONAmount    tlb.Coins
	ForwardPayload      *cell.Cell
}

// InternalTransferPayload is what a jetton wallet or minter sends to the receiving jetton wallet.
type InternalTransferPayload struct {
	QueryID             uint64
	Amount              tlb.Coins
	From                *address.Address
	ResponseDestination *address.Address
	ForwardTONAmount    tlb.Coins
	ForwardPayload      *cell.Cell
}

// MintPayload asks the minter to send TONAmount to the wallet of To together with MasterMsg.
type MintPayload struct {
	QueryID   uint64
	To        *address.Address
	TONAmount tlb.Coins
	MasterMsg InternalTransferPayload
}

// RandomQueryID returns a random query id to match responses with requests.
func RandomQueryID() (uint64, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// optional treats an empty cell the same as no cell, so it is encoded with the absent bit.
func optional(c *cell.Cell) *cell.Cell {
	if c != nil && c.BitsSize() == 0 && c.RefsNum() == 0 {
		return nil
	}
	return c
}

func (p *TransferPayload) ToCell() (*cell.Cell, error) {
	b := cell.BeginCell().
		MustStoreUInt(uint64(OpTransfer), 32).
		MustStoreUInt(p.QueryID, 64)

	if err := b.StoreBigCoins(p.Amount.Nano()); err != nil {
		return nil, fmt.Errorf("failed to store amount: %w", err)
	}
	if err := b.StoreAddr(p.Destination); err != nil {
		return nil, fmt.Errorf("failed to store destination: %w", err)
	}
	if err := b.StoreAddr(p.ResponseDestination); err != nil {
		return nil, fmt.Errorf("failed to store response destination: %w", err)
	}
	if err := b.StoreMaybeRef(optional(p.CustomPayload)); err != nil {
		return nil, fmt.Errorf("failed to store custom payload: %w", err)
	}
	if err := b.StoreBigCoins(p.ForwardTONAmount.Nano()); err != nil {
		return nil, fmt.Errorf("failed to store forward amount: %w", err)
	}
	if err := b.StoreMaybeRef(optional(p.ForwardPayload)); err != nil {
		return nil, fmt.Errorf("failed to store forward payload: %w", err)
	}
	return b.EndCell(), nil
}

func (p *TransferPayload) LoadFromCell(loader *cell.Slice) error {
	if err := loadOp(loader, OpTransfer); err != nil {
		return err
	}

	var err error
	if p.QueryID, err = loader.LoadUInt(64); err != nil {
		return fmt.Errorf("failed to load query id: %w", err)
	}
	if err = p.Amount.LoadFromCell(loader); err != nil {
		return fmt.Errorf("failed to load amount: %w", err)
	}
	if p.Destination, err = loader.LoadAddr(); err != nil {
		return fmt.Errorf("failed to load destination: %w", err)
	}
	if p.ResponseDestination, err = loadOptionalAddr(loader); err != nil {
		return fmt.Errorf("failed to load response destination: %w", err)
	}
	if p.CustomPayload, err = loader.LoadMaybeRefCell(); err != nil {
		return fmt.Errorf("failed to load custom payload: %w", err)
	}
	if err = p.ForwardTONAmount.LoadFromCell(loader); err != nil {
		return fmt.Errorf("failed to load forward amount: %w", err)
	}
	if p.ForwardPayload, err = loadEitherRef(loader); err != nil {
		return fmt.Errorf("failed to load forward payload: %w", err)
	}
	return nil
}

func (p *InternalTransferPayload) ToCell() (*cell.Cell, error) {
	b := cell.BeginCell().
		MustStoreUInt(uint64(OpInternalTransfer), 32).
		MustStoreUInt(p.QueryID, 64)

	if err := b.StoreBigCoins(p.Amount.Nano()); err != nil {
		return nil, fmt.Errorf("failed to store amount: %w", err)
	}
	if err := b.StoreAddr(p.From); err != nil {
		return nil, fmt.Errorf("failed to store from: %w", err)
	}
	if err := b.StoreAddr(p.ResponseDestination); err != nil {
		return nil, fmt.Errorf("failed to store response destination: %w", err)
	}
	if err := b.StoreBigCoins(p.ForwardTONAmount.Nano()); err != nil {
		return nil, fmt.Errorf("failed to store forward amount: %w", err)
	}
	if err := b.StoreMaybeRef(optional(p.ForwardPayload)); err != nil {
		return nil, fmt.Errorf("failed to store forward payload: %w", err)
	}
	return b.EndCell(), nil
}

func (p *InternalTransferPayload) LoadFromCell(loader *cell.Slice) error {
	if err := loadOp(loader, OpInternalTransfer); err != nil {
		return err
	}

	var err error
	if p.QueryID, err = loader.LoadUInt(64); err != nil {
		return fmt.Errorf("failed to load query id: %w", err)
	}
	if err = p.Amount.LoadFromCell(loader); err != nil {
		return fmt.Errorf("failed to load amount: %w", err)
	}
	if p.From, err = loadOptionalAddr(loader); err != nil {
		return fmt.Errorf("failed to load from: %w", err)
	}
	if p.ResponseDestination, err = loadOptionalAddr(loader); err != nil {
		return fmt.Errorf("failed to load response destination: %w", err)
	}
	if err = p.ForwardTONAmount.LoadFromCell(loader); err != nil {
		return fmt.Errorf("failed to load forward amount: %w", err)
	}
	if p.ForwardPayload, err = loadEitherRef(loader); err != nil {
		return fmt.Errorf("failed to load forward payload: %w", err)
	}
	return nil
}

func (p *MintPayload) ToCell() (*cell.Cell, error) {
	master, err := p.MasterMsg.ToCell()
	if err != nil {
		return nil, fmt.Errorf("failed to build master message: %w", err)
	}

	b := cell.BeginCell().
		MustStoreUInt(uint64(OpMint), 32).
		MustStoreUInt(p.QueryID, 64)

	if err = b.StoreAddr(p.To); err != nil {
		return nil, fmt.Errorf("failed to store receiver: %w", err)
	}
	if err = b.StoreBigCoins(p.TONAmount.Nano()); err != nil {
		return nil, fmt.Errorf("failed to store ton amount: %w", err)
	}
	if err = b.StoreRef(master); err != nil {
		return nil, fmt.Errorf("failed to store master message: %w", err)
	}
	return b.EndCell(), nil
}

func (p *MintPayload) LoadFromCell(loader *cell.Slice) error {
	if err := loadOp(loader, OpMint); err != nil {
		return err
	}

	var err error
	if p.QueryID, err = loader.LoadUInt(64); err != nil {
		return fmt.Errorf("failed to load query id: %w", err)
	}
	if p.To, err = loader.LoadAddr(); err != nil {
		return fmt.Errorf("failed to load receiver: %w", err)
	}
	if err = p.TONAmount.LoadFromCell(loader); err != nil {
		return fmt.Errorf("failed to load ton amount: %w", err)
	}

	master, err := loader.LoadRef()
	if err != nil {
		return fmt.Errorf("failed to load master message: %w", err)
	}
	return p.MasterMsg.LoadFromCell(master)
}

func loadOp(loader *cell.Slice, want uint32) error {
	op, err := loader.LoadUInt(32)
	if err != nil {
		return fmt.Errorf("failed to load op: %w", err)
	}
	if uint32(op) != want {
		return fmt.Errorf("unexpected op 0x%x, want 0x%x", op, want)
	}
	return nil
}

func loadOptionalAddr(loader *cell.Slice) (*address.Address, error) {
	addr, err := loader.LoadAddr()
	if err != nil {
		return nil, err
	}
	if addr.IsAddrNone() {
		return nil, nil
	}
	return addr, nil
}

// loadEitherRef reads a forward payload written either inline or as a ref, an empty inline payload gives nil.
func loadEitherRef(loader *cell.Slice) (*cell.Cell, error) {
	isRef, err := loader.LoadBoolBit()
	if err != nil {
		return nil, err
	}
	if isRef {
		return loader.LoadRefCell()
	}
	if loader.BitsLeft() == 0 && loader.RefsNum() == 0 {
		return nil, nil
	}
	return loader.ToCell()
}
