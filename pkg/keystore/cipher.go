package keystore

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"

	"github.com/mpcparty/core/pkg/cryptoutil"
	"github.com/mpcparty/core/pkg/mpcerrors"
)

// MinIterations is the PBKDF2 floor from spec.md §4.8.
const MinIterations = 100_000

// Cipher derives an at-rest AES-256 key from a caller-supplied passphrase
// via PBKDF2-SHA256 and wraps cryptoutil's AES-256-GCM scheme (a fresh
// random IV per blob) around it.
type Cipher struct {
	key []byte
}

// NewCipher derives the key from passphrase and salt. iterations must be
// at least MinIterations.
func NewCipher(passphrase string, salt []byte, iterations int) (*Cipher, error) {
	if iterations < MinIterations {
		return nil, mpcerrors.New(mpcerrors.Config, "pbkdf2 iterations below the required minimum")
	}
	if len(salt) == 0 {
		return nil, mpcerrors.New(mpcerrors.Config, "pbkdf2 salt must not be empty")
	}
	key := pbkdf2.Key([]byte(passphrase), salt, iterations, cryptoutil.KeySize, sha256.New)
	return &Cipher{key: key}, nil
}

// Encrypt seals plaintext under the derived key.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	ciphertext, err := cryptoutil.Encrypt(c.key, plaintext)
	if err != nil {
		return nil, err
	}
	return []byte(ciphertext), nil
}

// Decrypt opens a blob produced by Encrypt.
func (c *Cipher) Decrypt(blob []byte) ([]byte, error) {
	return cryptoutil.Decrypt(c.key, string(blob))
}
