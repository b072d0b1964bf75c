package wallet

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tonrelay/tonrelay/address"
	"github.com/tonrelay/tonrelay/tlb"
	"github.com/tonrelay/tonrelay/tvm/cell"
)

// Submitter broadcasts a serialized external message.
type Submitter interface {
	SendBoc(ctx context.Context, boc []byte) error
}

// Session binds a key to a wallet contract. It keeps no chain state,
// seqno and wallet id are read fresh for every message.
type Session struct {
	key    ed25519.PrivateKey
	pubKey ed25519.PublicKey
	cfg    Config
	ver    *variant

	walletID  uint32
	addr      *address.Address
	stateInit *tlb.StateInit

	ttl    time.Duration
	logger zerolog.Logger

	// held by SendTransfer from state read till submission
	sendMx sync.Mutex
}

type Option func(*Session)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithMessageTTL makes messages expire after ttl. By default they never expire.
func WithMessageTTL(ttl time.Duration) Option {
	return func(s *Session) {
		s.ttl = ttl
	}
}

func NewSession(key ed25519.PrivateKey, cfg Config, opts ...Option) (*Session, error) {
	ver, err := getVariant(cfg.Version)
	if err != nil {
		return nil, err
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, ErrSigningKeyInvalid
	}

	pub := key.Public().(ed25519.PublicKey)
	walletID := ver.walletID(cfg)

	state := &tlb.StateInit{
		Code: ver.code,
		Data: ver.data(pub, walletID),
	}
	addr, err := state.CalcAddress(cfg.Workchain)
	if err != nil {
		return nil, fmt.Errorf("failed to calc address: %w", err)
	}

	s := &Session{
		key:       key,
		pubKey:    pub,
		cfg:       cfg,
		ver:       ver,
		walletID:  walletID,
		addr:      addr,
		stateInit: state,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func FromMnemonic(words []string, password string, cfg Config, opts ...Option) (*Session, error) {
	if _, err := getVariant(cfg.Version); err != nil {
		return nil, err
	}

	kp, err := KeyPairFromMnemonic(words, password)
	if err != nil {
		return nil, err
	}
	return NewSession(kp.Private, cfg, opts...)
}

// Address returns the bounceable form of the wallet address.
func (s *Session) Address() *address.Address {
	return s.addr.Copy()
}

// WalletAddress returns the non bounceable form, the one to show to users.
func (s *Session) WalletAddress() *address.Address {
	return s.addr.Bounce(false)
}

func (s *Session) PublicKey() ed25519.PublicKey {
	return s.pubKey
}

func (s *Session) StateInit() *tlb.StateInit {
	return s.stateInit
}

func (s *Session) Version() Version {
	return s.cfg.Version
}

// DefaultWalletID is the wallet id of a contract deployed from StateInit.
func (s *Session) DefaultWalletID() uint32 {
	return s.walletID
}

// TransferRequest describes one internal message sent from the wallet.
type TransferRequest struct {
	To     string
	Amount tlb.Coins
	// Bounce defaults to true when nil.
	Bounce    *bool
	StateInit *tlb.StateInit
	// Body and Comment are mutually exclusive.
	Body    *cell.Cell
	Comment string
	// Mode defaults to PayGasSeparately when nil.
	Mode *uint8
}

// NewTransfer is a request with the default bounce flag and PayGasSeparately mode.
func NewTransfer(to string, amount tlb.Coins, body *cell.Cell) *TransferRequest {
	return &TransferRequest{
		To:     to,
		Amount: amount,
		Body:   body,
	}
}

func (r *TransferRequest) mode() uint8 {
	if r.Mode == nil {
		return PayGasSeparately
	}
	return *r.Mode
}

func (r *TransferRequest) message() (*tlb.InternalMessage, error) {
	to, err := address.ParseAnyAddr(r.To)
	if err != nil {
		return nil, fmt.Errorf("failed to parse destination: %w", err)
	}

	body := r.Body
	if r.Comment != "" {
		if body != nil {
			return nil, errors.New("body and comment cannot be set together")
		}
		if body, err = tlb.CreateCommentCell(r.Comment); err != nil {
			return nil, fmt.Errorf("failed to build comment: %w", err)
		}
	}

	bounce := true
	if r.Bounce != nil {
		bounce = *r.Bounce
	}

	return &tlb.InternalMessage{
		IHRDisabled: true,
		Bounce:      bounce,
		DstAddr:     to,
		Amount:      r.Amount,
		StateInit:   r.StateInit,
		Body:        body,
	}, nil
}

// Result is a signed external message in all forms a caller may need.
type Result struct {
	BOC    []byte
	Base64 string

	Message *tlb.ExternalMessage
	// Body is the signed body carried by Message.
	Body *cell.Cell

	Seqno       uint32
	SubwalletID uint32

	cell *cell.Cell
}

// Hash is the hash of the external message cell, used to track it on chain.
func (r *Result) Hash() []byte {
	return r.cell.Hash()
}

// Cell returns the root cell of the external message.
func (r *Result) Cell() *cell.Cell {
	return r.cell
}

// BuildTransfer fetches the wallet state and builds a signed external message.
// It takes no lock, concurrent calls for the same wallet may get the same seqno.
func (s *Session) BuildTransfer(ctx context.Context, reader StateReader, req *TransferRequest) (*Result, error) {
	// fail on bad input before touching the network
	if _, err := req.message(); err != nil {
		return nil, err
	}

	st, err := s.FetchState(ctx, reader)
	if err != nil {
		return nil, err
	}

	if err = ctx.Err(); err != nil {
		return nil, err
	}
	return s.Build(req, st)
}

// Build signs the transfer for an already known wallet state.
func (s *Session) Build(req *TransferRequest, st *State) (*Result, error) {
	msg, err := req.message()
	if err != nil {
		return nil, err
	}

	msgCell, err := msg.ToCell()
	if err != nil {
		return nil, fmt.Errorf("failed to build internal message: %w", err)
	}

	validUntil := uint32(math.MaxUint32)
	if s.ttl > 0 {
		validUntil = uint32(timeNow().Add(s.ttl).UTC().Unix())
	}

	env, err := s.ver.envelope(&envelope{
		WalletID:   st.WalletID,
		ValidUntil: validUntil,
		Seqno:      st.Seqno,
		Mode:       s.ver.fixMode(req.mode()),
		Message:    msgCell,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build envelope: %w", err)
	}

	var body *cell.Cell
	if s.ver.tailSignature {
		body, err = signEnvelopeTail(env.EndCell(), s.key)
	} else {
		body, err = SignEnvelope(env.EndCell(), s.key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to sign envelope: %w", err)
	}

	ext := &tlb.ExternalMessage{
		DstAddr: s.addr,
		Body:    body,
	}
	if !st.Initialized {
		ext.StateInit = s.stateInit
	}

	extCell, err := ext.ToCell()
	if err != nil {
		return nil, fmt.Errorf("failed to build external message: %w", err)
	}

	boc := extCell.ToBOC()
	res := &Result{
		BOC:         boc,
		Base64:      base64.StdEncoding.EncodeToString(boc),
		Message:     ext,
		Body:        body,
		Seqno:       st.Seqno,
		SubwalletID: st.WalletID,
		cell:        extCell,
	}

	s.logger.Debug().
		Str("wallet", s.addr.String()).
		Str("to", msg.DstAddr.String()).
		Uint32("seqno", st.Seqno).
		Bool("with_state_init", ext.StateInit != nil).
		Hex("hash", res.Hash()).
		Msg("external message built")

	return res, nil
}

// Verify checks the signature of a body built by this session.
func (s *Session) Verify(body *cell.Cell) bool {
	if s.ver.tailSignature {
		return verifyEnvelopeTail(body, s.pubKey)
	}
	return VerifyEnvelope(body, s.pubKey)
}

// SendTransfer builds and submits a transfer. Calls on one session are serialized
// from the state read till the submission returns, so they never reuse a seqno.
func (s *Session) SendTransfer(ctx context.Context, reader StateReader, sub Submitter, req *TransferRequest) (*Result, error) {
	s.sendMx.Lock()
	defer s.sendMx.Unlock()

	res, err := s.BuildTransfer(ctx, reader, req)
	if err != nil {
		return nil, err
	}

	if err = sub.SendBoc(ctx, res.BOC); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	s.logger.Debug().Hex("hash", res.Hash()).Uint32("seqno", res.Seqno).Msg("external message sent")
	return res, nil
}
