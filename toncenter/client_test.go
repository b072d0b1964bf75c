package toncenter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonrelay/tonrelay/address"
	"github.com/tonrelay/tonrelay/tlb"
	"github.com/tonrelay/tonrelay/ton/wallet"
)

var testAddr = address.MustParseAddr("EQCD39VS5jcptHL8vMjEXrzGaRcCVYto7HUn4bpAOg8xqB2N")

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestV2_RunGetMethod(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v2/runGetMethod", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			Address string     `json:"address"`
			Method  string     `json:"method"`
			Stack   [][]string `json:"stack"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, testAddr.String(), req.Address)
		assert.Equal(t, "seqno", req.Method)
		assert.NotNil(t, req.Stack)

		_, _ = io.WriteString(w, `{"ok":true,"result":{"gas_used":444,"exit_code":0,"stack":[["num","0x2a"],["cell",{"bytes":"te6c"}]]}}`)
	})

	c := New(srv.URL, WithAPIKey("secret"))
	res, err := c.V2().RunGetMethod(context.Background(), testAddr, "seqno", nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(444), res.GasUsed)
	assert.Equal(t, 0, res.ExitCode)
	require.Len(t, res.Stack, 2)
	assert.Equal(t, []string{"num", "0x2a"}, res.Stack[0])
	assert.Equal(t, "cell", res.Stack[1][0])
	assert.JSONEq(t, `{"bytes":"te6c"}`, res.Stack[1][1])
}

func TestV2_SendBoc(t *testing.T) {
	boc := []byte{0xb5, 0xee, 0x9c, 0x72, 0x01}

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/sendBoc", r.URL.Path)

		var req struct {
			Boc string `json:"boc"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, base64.StdEncoding.EncodeToString(boc), req.Boc)

		_, _ = io.WriteString(w, `{"ok":true,"result":{"@type":"ok"}}`)
	})

	require.NoError(t, New(srv.URL).V2().SendBoc(context.Background(), boc))
}

func TestV2_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   int
	}{
		{"not ok", http.StatusOK, `{"ok":false,"error":"LITE_SERVER_UNKNOWN: cannot apply external message","code":500}`, 500},
		{"string result", http.StatusUnprocessableEntity, `{"ok":false,"result":"Incorrect address","code":422}`, 422},
		{"gateway timeout", http.StatusGatewayTimeout, `{"ok":false,"error":"Lite Server Timeout"}`, 0},
		{"plain text", http.StatusBadGateway, `bad gateway`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := New(srv.URL).V2().RunGetMethod(context.Background(), testAddr, "seqno", nil)
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), err.Error())
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.code, apiErr.Code)
		})
	}
}

func TestV2_GetAddressInformation(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v2/getAddressInformation", r.URL.Path)
		assert.Equal(t, testAddr.String(), r.URL.Query().Get("address"))

		_, _ = io.WriteString(w, `{"ok":true,"result":{"balance":"1500000000","state":"active","last_transaction_id":{"lt":"47000000000001","hash":"AAAA"}}}`)
	})

	res, err := New(srv.URL).V2().GetAddressInformation(context.Background(), testAddr)
	require.NoError(t, err)
	assert.Equal(t, "active", res.State)
	assert.Equal(t, "1.5", res.Balance.MustCoins(TonDecimals).String())
	assert.Equal(t, uint64(47000000000001), res.LastTransactionID.LT)
}

func TestV2_GetWalletInformation(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/getWalletInformation", r.URL.Path)
		_, _ = io.WriteString(w, `{"ok":true,"result":{"wallet":true,"balance":"0","account_state":"active","wallet_type":"wallet v4 r2","seqno":5,"wallet_id":698983191}}`)
	})

	res, err := New(srv.URL).V2().GetWalletInformation(context.Background(), testAddr)
	require.NoError(t, err)
	assert.True(t, res.IsWallet)
	assert.Equal(t, uint64(5), res.Seqno)
	assert.Equal(t, int64(698983191), res.WalletId)
}

func TestClient_Metrics(t *testing.T) {
	var fail atomic.Bool
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"ok":false,"error":"boom","code":500}`)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":{}}`)
	})

	reg := prometheus.NewRegistry()
	c := New(srv.URL, WithMetrics(reg))

	require.NoError(t, c.V2().SendBoc(context.Background(), []byte{1}))
	require.NoError(t, c.V2().SendBoc(context.Background(), []byte{1}))
	fail.Store(true)
	require.Error(t, c.V2().SendBoc(context.Background(), []byte{1}))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.metrics.requests.WithLabelValues("sendBoc", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.requests.WithLabelValues("sendBoc", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.metrics.duration))
}

func TestClient_RateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"ok":true,"result":{}}`)
	})

	c := New(srv.URL, WithRateLimit(1))
	require.NoError(t, c.V2().SendBoc(context.Background(), []byte{1}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.V2().SendBoc(ctx, []byte{1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWalletState(t *testing.T) {
	var sent atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/runGetMethod":
			var req struct {
				Method string `json:"method"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

			switch req.Method {
			case "seqno":
				_, _ = io.WriteString(w, `{"ok":true,"result":{"exit_code":0,"stack":[["num","0x5"]]}}`)
			case "get_subwallet_id":
				_, _ = io.WriteString(w, `{"ok":true,"result":{"exit_code":0,"stack":[["num","0x29a9a317"]]}}`)
			default:
				_, _ = io.WriteString(w, `{"ok":true,"result":{"exit_code":11,"stack":[]}}`)
			}
		case "/api/v2/sendBoc":
			sent.Add(1)
			_, _ = io.WriteString(w, `{"ok":true,"result":{"@type":"ok"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	s, err := wallet.FromMnemonic(wallet.NewSeed(), "", wallet.Config{Version: wallet.V4R2})
	require.NoError(t, err)

	ws := NewWalletState(New(srv.URL))
	st, err := s.FetchState(context.Background(), ws)
	require.NoError(t, err)
	assert.Equal(t, &wallet.State{Seqno: 5, WalletID: wallet.DefaultSubwallet, Initialized: true}, st)

	req := wallet.NewTransfer(testAddr.String(), tlb.MustFromTON("0.01"), nil)
	res, err := s.SendTransfer(context.Background(), ws, ws, req)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), res.Seqno)
	assert.Equal(t, int32(1), sent.Load())
}

func TestWalletState_NotInitialized(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":true,"result":{"exit_code":-13,"stack":[]}}`)
	})

	ws := NewWalletState(New(srv.URL))
	_, err := ws.RunGetMethod(context.Background(), testAddr, "seqno", nil)
	assert.ErrorIs(t, err, wallet.ErrContractNotInitialized)

	s, err := wallet.FromMnemonic(wallet.NewSeed(), "", wallet.Config{Version: wallet.V5R1})
	require.NoError(t, err)

	st, err := s.FetchState(context.Background(), ws)
	require.NoError(t, err)
	assert.False(t, st.Initialized)
	assert.Equal(t, s.DefaultWalletID(), st.WalletID)
}
