package wallet

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tonrelay/tonrelay/address"
)

var (
	ErrStateUnavailable       = errors.New("wallet state unavailable")
	ErrContractNotInitialized = errors.New("contract is not initialized")
)

// StateReader runs read-only get methods of a contract against current chain state.
// An account without code should be reported as ErrContractNotInitialized, either as
// the returned error or with the ErrCodeContractNotInitialized exit code.
type StateReader interface {
	RunGetMethod(ctx context.Context, addr *address.Address, method string, stack [][]string) (*GetMethodResult, error)
}

// GetMethodResult is the result of a get method, stack entries are [type, value] pairs.
type GetMethodResult struct {
	ExitCode int
	Stack    [][]string
}

// State is what a wallet needs from the chain to sign a new message.
type State struct {
	Seqno    uint32
	WalletID uint32
	// Initialized is false when the contract has no code yet,
	// the state init is attached to the next message then.
	Initialized bool
}

// FetchState reads seqno and wallet id concurrently. Nothing is cached or retried.
func (s *Session) FetchState(ctx context.Context, reader StateReader) (*State, error) {
	st := &State{Initialized: true}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.Seqno, err = readUint32(gCtx, reader, s.addr, "seqno")
		return err
	})
	g.Go(func() (err error) {
		st.WalletID, err = readUint32(gCtx, reader, s.addr, "get_subwallet_id")
		return err
	})

	if err := g.Wait(); err != nil {
		if !errors.Is(err, ErrContractNotInitialized) {
			return nil, err
		}

		s.logger.Debug().Str("addr", s.addr.String()).Msg("wallet is not initialized, state init will be attached")
		return &State{
			Seqno:    0,
			WalletID: s.walletID,
		}, nil
	}

	s.logger.Debug().
		Str("addr", s.addr.String()).
		Uint32("seqno", st.Seqno).
		Uint32("wallet_id", st.WalletID).
		Msg("wallet state fetched")

	return st, nil
}

func readUint32(ctx context.Context, reader StateReader, addr *address.Address, method string) (uint32, error) {
	res, err := reader.RunGetMethod(ctx, addr, method, [][]string{})
	if err != nil {
		if errors.Is(err, ErrContractNotInitialized) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: run %s: %w", ErrStateUnavailable, method, err)
	}

	switch res.ExitCode {
	case 0, 1:
	case ErrCodeContractNotInitialized:
		return 0, ErrContractNotInitialized
	default:
		return 0, fmt.Errorf("%w: %s exited with code %d", ErrStateUnavailable, method, res.ExitCode)
	}

	if len(res.Stack) == 0 || len(res.Stack[0]) < 2 {
		return 0, fmt.Errorf("%w: %s returned an empty stack", ErrStateUnavailable, method)
	}

	val, err := parseStackNum(res.Stack[0][1])
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrStateUnavailable, method, err)
	}
	return val, nil
}

// parseStackNum parses a hex encoded stack number, with or without the 0x prefix.
func parseStackNum(v string) (uint32, error) {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(strings.TrimPrefix(v, "0x"), "0X")
	if v == "" {
		return 0, errors.New("empty number")
	}

	n, err := strconv.ParseUint(v, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %q as uint32: %w", v, err)
	}
	return uint32(n), nil
}
