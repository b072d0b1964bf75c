package wallet

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
	"github.com/tyler-smith/go-bip39/wordlists"
	"golang.org/x/crypto/pbkdf2"
)

const (
	_MnemonicWords = 24
	_Iterations    = 100000
	_Salt          = "TON default seed"
	_BasicSalt     = "TON seed version"
	_PasswordSalt  = "TON fast seed version"
)

var ErrInvalidMnemonic = errors.New("invalid mnemonic")

var wordsIndex = func() map[string]bool {
	m := make(map[string]bool, len(wordlists.English))
	for _, w := range wordlists.English {
		m[w] = true
	}
	return m
}()

type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

func NewSeed() []string {
	return NewSeedWithPassword("")
}

// NewSeedWithPassword generates 24 words which are valid only together with the password.
func NewSeedWithPassword(password string) []string {
	for {
		seed := randomWords(_MnemonicWords)

		if len(password) > 0 && !isPasswordNeeded(seed) {
			continue
		}
		if !isBasicSeed(mnemonicEntropy(seed, password)) {
			continue
		}
		return seed
	}
}

// KeyPairFromMnemonic validates the words and derives the ed25519 key pair from them.
func KeyPairFromMnemonic(words []string, password string) (*KeyPair, error) {
	words = normalizeWords(words)
	if err := validateMnemonic(words, password); err != nil {
		return nil, err
	}

	seed := pbkdf2.Key(mnemonicEntropy(words, password), []byte(_Salt), _Iterations, ed25519.SeedSize, sha512.New)
	key := ed25519.NewKeyFromSeed(seed)

	return &KeyPair{
		Public:  key.Public().(ed25519.PublicKey),
		Private: key,
	}, nil
}

func validateMnemonic(words []string, password string) error {
	if len(words) == 0 {
		return fmt.Errorf("%w: no words", ErrInvalidMnemonic)
	}
	for _, w := range words {
		if !wordsIndex[w] {
			return fmt.Errorf("%w: unknown word %q", ErrInvalidMnemonic, w)
		}
	}

	if len(password) > 0 && !isPasswordNeeded(words) {
		return fmt.Errorf("%w: password is not used by this seed", ErrInvalidMnemonic)
	}
	if !isBasicSeed(mnemonicEntropy(words, password)) {
		return fmt.Errorf("%w: checksum mismatch, check words and password", ErrInvalidMnemonic)
	}
	return nil
}

func normalizeWords(words []string) []string {
	res := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			res = append(res, w)
		}
	}
	return res
}

func mnemonicEntropy(words []string, password string) []byte {
	mac := hmac.New(sha512.New, []byte(strings.Join(words, " ")))
	mac.Write([]byte(password))
	return mac.Sum(nil)
}

func isBasicSeed(entropy []byte) bool {
	return pbkdf2.Key(entropy, []byte(_BasicSalt), _Iterations/256, 1, sha512.New)[0] == 0
}

func isPasswordSeed(entropy []byte) bool {
	return pbkdf2.Key(entropy, []byte(_PasswordSalt), 1, 1, sha512.New)[0] == 1
}

func isPasswordNeeded(words []string) bool {
	entropy := mnemonicEntropy(words, "")
	return isPasswordSeed(entropy) && !isBasicSeed(entropy)
}

func randomWords(n int) []string {
	max := big.NewInt(int64(len(wordlists.English)))

	words := make([]string, n)
	for i := range words {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		words[i] = wordlists.English[idx.Int64()]
	}
	return words
}
