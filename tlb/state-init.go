package tlb

import (
	"fmt"

	"github.com/tonrelay/tonrelay/address"
	"github.com/tonrelay/tonrelay/tvm/cell"
)

// StateInit holds the code and data a contract is deployed with.
// split_depth, special and library are always absent here.
type StateInit struct {
	Code *cell.Cell
	Data *cell.Cell
}

func (s *StateInit) ToCell() (*cell.Cell, error) {
	b := cell.BeginCell()
	if err := b.StoreUInt(0b00, 2); err != nil { // no split_depth, no tick-tock
		return nil, err
	}
	if err := b.StoreMaybeRef(s.Code); err != nil {
		return nil, fmt.Errorf("failed to store code: %w", err)
	}
	if err := b.StoreMaybeRef(s.Data); err != nil {
		return nil, fmt.Errorf("failed to store data: %w", err)
	}
	if err := b.StoreDict(nil); err != nil { // library
		return nil, err
	}
	return b.EndCell(), nil
}

func (s *StateInit) LoadFromCell(loader *cell.Slice) error {
	hdr, err := loader.LoadUInt(2)
	if err != nil {
		return fmt.Errorf("failed to load state init header: %w", err)
	}
	if hdr != 0 {
		return fmt.Errorf("split depth and tick-tock are not supported")
	}

	if s.Code, err = loader.LoadMaybeRefCell(); err != nil {
		return fmt.Errorf("failed to load code: %w", err)
	}
	if s.Data, err = loader.LoadMaybeRefCell(); err != nil {
		return fmt.Errorf("failed to load data: %w", err)
	}

	lib, err := loader.LoadMaybeRefCell()
	if err != nil {
		return fmt.Errorf("failed to load library: %w", err)
	}
	if lib != nil {
		return fmt.Errorf("libraries are not supported")
	}
	return nil
}

// CalcAddress is the address a contract with this state gets in the given workchain.
func (s *StateInit) CalcAddress(workchain int8) (*address.Address, error) {
	c, err := s.ToCell()
	if err != nil {
		return nil, err
	}
	return address.NewAddress(0x11, byte(workchain), c.Hash()), nil
}
