package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const sealedPrefix = "sbx:"

var ErrUnseal = errors.New("secrets: unable to open sealed value")

// Sealer encrypts webhook signing secrets at rest. A Sealer built from an
// empty key passes values through unchanged.
type Sealer struct {
	key *[32]byte
}

func NewSealer(passphrase string) *Sealer {
	if passphrase == "" {
		return &Sealer{}
	}
	key := sha256.Sum256([]byte(passphrase))
	return &Sealer{key: &key}
}

func (s *Sealer) Seal(plaintext string) (string, error) {
	if s == nil || s.key == nil {
		return plaintext, nil
	}

	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, s.key)
	return sealedPrefix + base64.StdEncoding.EncodeToString(box), nil
}

// Open reverses Seal. Values stored before a key was configured are returned as-is.
func (s *Sealer) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	if s == nil || s.key == nil {
		return "", ErrUnseal
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil || len(raw) < 24 {
		return "", ErrUnseal
	}

	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, s.key)
	if !ok {
		return "", ErrUnseal
	}
	return string(plain), nil
}
