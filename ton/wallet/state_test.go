package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonrelay/tonrelay/address"
)

func TestParseStackNum(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
		err  bool
	}{
		{"0x5", 5, false},
		{"5", 5, false},
		{"0x29a9a317", DefaultSubwallet, false},
		{"29A9A317", DefaultSubwallet, false},
		{" 0xff ", 255, false},
		{"0xffffffff", 0xFFFFFFFF, false},
		{"0x100000000", 0, true},
		{"0x", 0, true},
		{"", 0, true},
		{"-0x1", 0, true},
		{"zz", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := parseStackNum(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestFetchState(t *testing.T) {
	s := testSession(t, V4R2)
	chain := &fakeChain{seqno: 5, walletID: DefaultSubwallet}

	st, err := s.FetchState(context.Background(), chain)
	require.NoError(t, err)
	assert.Equal(t, &State{Seqno: 5, WalletID: DefaultSubwallet, Initialized: true}, st)
	assert.ElementsMatch(t, []string{"seqno", "get_subwallet_id"}, chain.calls)
}

func TestFetchState_NotInitialized(t *testing.T) {
	for _, chain := range []*fakeChain{
		{exitCode: ErrCodeContractNotInitialized, seqno: 7},
		{err: ErrContractNotInitialized},
	} {
		s := testSession(t, V5R1)

		st, err := s.FetchState(context.Background(), chain)
		require.NoError(t, err)
		assert.Equal(t, &State{Seqno: 0, WalletID: s.DefaultWalletID()}, st)
	}
}

func TestFetchState_Unavailable(t *testing.T) {
	errNet := errors.New("connection reset")

	tests := []struct {
		name  string
		chain *fakeChain
		cause error
	}{
		{"read failed", &fakeChain{err: errNet}, errNet},
		{"exit code", &fakeChain{exitCode: 11}, nil},
		{"canceled", &fakeChain{err: context.Canceled}, context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSession(t, V4R2)

			_, err := s.FetchState(context.Background(), tt.chain)
			require.ErrorIs(t, err, ErrStateUnavailable)
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}
		})
	}
}

type stackReader struct {
	res *GetMethodResult
}

func (r stackReader) RunGetMethod(context.Context, *address.Address, string, [][]string) (*GetMethodResult, error) {
	return r.res, nil
}

func TestReadUint32_BadStack(t *testing.T) {
	s := testSession(t, V4R2)

	for _, res := range []*GetMethodResult{
		{},
		{Stack: [][]string{{"num"}}},
		{Stack: [][]string{{"num", "hello"}}},
	} {
		_, err := readUint32(context.Background(), stackReader{res: res}, s.addr, "seqno")
		assert.ErrorIs(t, err, ErrStateUnavailable)
	}
}
