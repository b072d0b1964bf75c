package tlb

import (
	"errors"
	"fmt"

	"github.com/tonrelay/tonrelay/address"
	"github.com/tonrelay/tonrelay/tvm/cell"
)

// InternalMessage is int_msg_info with its init and body. Client built messages leave
// source, fees, lt and created_at zero, the network fills them in.
type InternalMessage struct {
	IHRDisabled bool
	Bounce      bool
	Bounced     bool
	SrcAddr     *address.Address
	DstAddr     *address.Address
	Amount      Coins
	IHRFee      Coins
	FwdFee      Coins
	CreatedLT   uint64
	CreatedAt   uint32

	StateInit *StateInit
	Body      *cell.Cell
}

// ExternalMessage is ext_in_msg_info, the signed message a wallet receives from outside.
type ExternalMessage struct {
	SrcAddr   *address.Address
	DstAddr   *address.Address
	ImportFee Coins

	StateInit *StateInit
	Body      *cell.Cell
}

func (m *InternalMessage) Payload() *cell.Cell {
	return m.Body
}

func (m *InternalMessage) DestAddr() *address.Address {
	return m.DstAddr
}

// Comment returns the text of a comment body (op 0), or an empty string.
func (m *InternalMessage) Comment() string {
	if m.Body != nil {
		l := m.Body.BeginParse()
		if val, err := l.LoadUInt(32); err == nil && val == 0 {
			str, _ := l.LoadStringSnake()
			return str
		}
	}
	return ""
}

func (m *ExternalMessage) Payload() *cell.Cell {
	return m.Body
}

func (m *ExternalMessage) DestAddr() *address.Address {
	return m.DstAddr
}

// CreateCommentCell builds a text comment body: 32 zero bits followed by snake encoded text.
func CreateCommentCell(text string) (*cell.Cell, error) {
	b := cell.BeginCell().MustStoreUInt(0, 32)
	if err := b.StoreStringSnake(text); err != nil {
		return nil, fmt.Errorf("failed to store comment: %w", err)
	}
	return b.EndCell(), nil
}

func appendInitStateAndBody(b *cell.Builder, stateInit *StateInit, body *cell.Cell, forceBodyRef bool) error {
	if stateInit == nil {
		if err := b.StoreBoolBit(false); err != nil {
			return err
		}
	} else {
		stateCell, err := stateInit.ToCell()
		if err != nil {
			return fmt.Errorf("failed to serialize state init: %w", err)
		}

		// presence bit, either bit and one more for the body
		if stateCell.BitsSize()+3 > b.BitsLeft() || stateCell.RefsNum()+1 > b.RefsLeft() {
			err = b.StoreUInt(0b11, 2) // state as ref
			if err == nil {
				err = b.StoreRef(stateCell)
			}
		} else {
			err = b.StoreUInt(0b10, 2) // state as slice
			if err == nil {
				err = b.StoreBuilder(stateCell.ToBuilder())
			}
		}
		if err != nil {
			return fmt.Errorf("failed to store message state init: %w", err)
		}
	}

	if body == nil {
		return b.StoreBoolBit(false)
	}

	var err error
	if forceBodyRef || body.BitsSize()+1 > b.BitsLeft() || body.RefsNum() > b.RefsLeft() {
		err = b.StoreBoolBit(true) // body as ref
		if err == nil {
			err = b.StoreRef(body)
		}
	} else {
		err = b.StoreBoolBit(false) // body as slice
		if err == nil {
			err = b.StoreBuilder(body.ToBuilder())
		}
	}
	if err != nil {
		return fmt.Errorf("failed to store message body: %w", err)
	}
	return nil
}

func loadInitStateAndBody(loader *cell.Slice) (*StateInit, *cell.Cell, error) {
	var stateInit *StateInit

	hasInit, err := loader.LoadBoolBit()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load state init flag: %w", err)
	}
	if hasInit {
		asRef, err := loader.LoadBoolBit()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load state init either: %w", err)
		}

		from := loader
		if asRef {
			if from, err = loader.LoadRef(); err != nil {
				return nil, nil, fmt.Errorf("failed to load state init ref: %w", err)
			}
		}

		stateInit = &StateInit{}
		if err = stateInit.LoadFromCell(from); err != nil {
			return nil, nil, fmt.Errorf("failed to parse state init: %w", err)
		}
	}

	bodyRef, err := loader.LoadBoolBit()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load body either: %w", err)
	}

	var body *cell.Cell
	if bodyRef {
		body, err = loader.LoadRefCell()
	} else {
		body, err = loader.ToCell()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load body: %w", err)
	}
	return stateInit, body, nil
}

func (m *InternalMessage) ToCell() (*cell.Cell, error) {
	b := cell.BeginCell()
	b.MustStoreUInt(0, 1) // int_msg_info$0
	b.MustStoreBoolBit(m.IHRDisabled)
	b.MustStoreBoolBit(m.Bounce)
	b.MustStoreBoolBit(m.Bounced)

	if err := b.StoreAddr(m.SrcAddr); err != nil {
		return nil, fmt.Errorf("failed to store source: %w", err)
	}
	if err := b.StoreAddr(m.DstAddr); err != nil {
		return nil, fmt.Errorf("failed to store destination: %w", err)
	}
	if err := b.StoreBigCoins(m.Amount.Nano()); err != nil {
		return nil, fmt.Errorf("failed to store amount: %w", err)
	}

	b.MustStoreDict(nil) // extra currencies

	b.MustStoreBigCoins(m.IHRFee.Nano())
	b.MustStoreBigCoins(m.FwdFee.Nano())

	b.MustStoreUInt(m.CreatedLT, 64)
	b.MustStoreUInt(uint64(m.CreatedAt), 32)

	if err := appendInitStateAndBody(b, m.StateInit, m.Body, false); err != nil {
		return nil, err
	}

	return b.EndCell(), nil
}

func (m *InternalMessage) LoadFromCell(loader *cell.Slice) error {
	tag, err := loader.LoadUInt(1)
	if err != nil {
		return err
	}
	if tag != 0 {
		return errors.New("not an internal message")
	}

	if m.IHRDisabled, err = loader.LoadBoolBit(); err != nil {
		return err
	}
	if m.Bounce, err = loader.LoadBoolBit(); err != nil {
		return err
	}
	if m.Bounced, err = loader.LoadBoolBit(); err != nil {
		return err
	}
	if m.SrcAddr, err = loader.LoadAddr(); err != nil {
		return fmt.Errorf("failed to load source: %w", err)
	}
	if m.DstAddr, err = loader.LoadAddr(); err != nil {
		return fmt.Errorf("failed to load destination: %w", err)
	}
	if err = m.Amount.LoadFromCell(loader); err != nil {
		return fmt.Errorf("failed to load amount: %w", err)
	}
	if _, err = loader.LoadMaybeRefCell(); err != nil {
		return fmt.Errorf("failed to load extra currencies: %w", err)
	}
	if err = m.IHRFee.LoadFromCell(loader); err != nil {
		return fmt.Errorf("failed to load ihr fee: %w", err)
	}
	if err = m.FwdFee.LoadFromCell(loader); err != nil {
		return fmt.Errorf("failed to load fwd fee: %w", err)
	}
	if m.CreatedLT, err = loader.LoadUInt(64); err != nil {
		return err
	}
	createdAt, err := loader.LoadUInt(32)
	if err != nil {
		return err
	}
	m.CreatedAt = uint32(createdAt)

	m.StateInit, m.Body, err = loadInitStateAndBody(loader)
	return err
}

func (m *InternalMessage) Dump() string {
	payload := "empty"
	if m.Body != nil {
		payload = m.Body.Dump()
	}
	return fmt.Sprintf("Amount %s TON, Created at: %d, Created lt %d\nBounce: %t, Bounced %t, IHRDisabled %t\nSrcAddr: %s\nDstAddr: %s\nPayload: %s",
		m.Amount.String(), m.CreatedAt, m.CreatedLT, m.Bounce, m.Bounced, m.IHRDisabled, m.SrcAddr, m.DstAddr, payload)
}

// ToCell always puts the body into a ref.
func (m *ExternalMessage) ToCell() (*cell.Cell, error) {
	b := cell.BeginCell().MustStoreUInt(0b10, 2) // ext_in_msg_info$10

	if err := b.StoreAddr(m.SrcAddr); err != nil {
		return nil, fmt.Errorf("failed to store source: %w", err)
	}
	if err := b.StoreAddr(m.DstAddr); err != nil {
		return nil, fmt.Errorf("failed to store destination: %w", err)
	}
	if err := b.StoreBigCoins(m.ImportFee.Nano()); err != nil {
		return nil, fmt.Errorf("failed to store import fee: %w", err)
	}

	if err := appendInitStateAndBody(b, m.StateInit, m.Body, true); err != nil {
		return nil, err
	}

	return b.EndCell(), nil
}

func (m *ExternalMessage) LoadFromCell(loader *cell.Slice) error {
	tag, err := loader.LoadUInt(2)
	if err != nil {
		return err
	}
	if tag != 0b10 {
		return errors.New("not an external in message")
	}

	if m.SrcAddr, err = loader.LoadAddr(); err != nil {
		return fmt.Errorf("failed to load source: %w", err)
	}
	if m.DstAddr, err = loader.LoadAddr(); err != nil {
		return fmt.Errorf("failed to load destination: %w", err)
	}
	if err = m.ImportFee.LoadFromCell(loader); err != nil {
		return fmt.Errorf("failed to load import fee: %w", err)
	}

	m.StateInit, m.Body, err = loadInitStateAndBody(loader)
	return err
}
