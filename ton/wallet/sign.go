package wallet

import (
	"fmt"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"

	"github.com/tonrelay/tonrelay/tvm/cell"
)

const _SignatureBits = ed25519.SignatureSize * 8

// SignEnvelope signs the envelope hash and returns a cell with the signature
// followed by the envelope bits. Refs are kept in order.
func SignEnvelope(envelope *cell.Cell, key ed25519.PrivateKey) (*cell.Cell, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, ErrSigningKeyInvalid
	}

	b := cell.BeginCell()
	if err := b.StoreSlice(envelope.Sign(key), _SignatureBits); err != nil {
		return nil, fmt.Errorf("failed to store signature: %w", err)
	}
	if err := b.StoreBuilder(envelope.ToBuilder()); err != nil {
		return nil, fmt.Errorf("failed to store envelope: %w", err)
	}
	return b.EndCell(), nil
}

// signEnvelopeTail is SignEnvelope with the signature placed after the envelope bits.
func signEnvelopeTail(envelope *cell.Cell, key ed25519.PrivateKey) (*cell.Cell, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, ErrSigningKeyInvalid
	}

	b := envelope.ToBuilder()
	if err := b.StoreSlice(envelope.Sign(key), _SignatureBits); err != nil {
		return nil, fmt.Errorf("failed to store signature: %w", err)
	}
	return b.EndCell(), nil
}

// VerifyEnvelope checks a body produced by SignEnvelope against the public key.
func VerifyEnvelope(signed *cell.Cell, pub ed25519.PublicKey) bool {
	if len(pub) != ed25519.PublicKeySize || signed.BitsSize() < _SignatureBits {
		return false
	}

	s := signed.BeginParse()
	sig, err := s.LoadSlice(_SignatureBits)
	if err != nil {
		return false
	}
	env, err := s.ToCell()
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, env.Hash(), sig)
}

func verifyEnvelopeTail(signed *cell.Cell, pub ed25519.PublicKey) bool {
	if len(pub) != ed25519.PublicKeySize || signed.BitsSize() < _SignatureBits {
		return false
	}

	sz := signed.BitsSize() - _SignatureBits
	s := signed.BeginParse()
	data, err := s.LoadSlice(sz)
	if err != nil {
		return false
	}
	sig, err := s.LoadSlice(_SignatureBits)
	if err != nil {
		return false
	}

	b := cell.BeginCell()
	if err = b.StoreSlice(data, sz); err != nil {
		return false
	}
	for i := 0; i < int(signed.RefsNum()); i++ {
		ref, err := signed.PeekRef(i)
		if err != nil {
			return false
		}
		if err = b.StoreRef(ref); err != nil {
			return false
		}
	}
	return ed25519.Verify(pub, b.EndCell().Hash(), sig)
}
