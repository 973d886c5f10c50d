// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

// Package cryptoutil implements the fixed content-encryption scheme used on
// the wire: AES-256-GCM with a 96-bit random IV prefixed to the ciphertext,
// base64-encoded (spec.md §4.1).
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"

	"github.com/mpcparty/core/pkg/mpcerrors"
)

// KeySize is the required raw AES-256 key length.
const KeySize = 32

// IVSize is the GCM standard 96-bit nonce size.
const IVSize = 12

// ImportKey accepts either raw 32 bytes or a base64 encoding of 32 bytes.
// Any other length fails with BadKey.
func ImportKey(data []byte) ([]byte, error) {
	if len(data) == KeySize {
		return data, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil || len(decoded) != KeySize {
		return nil, mpcerrors.New(mpcerrors.BadKey, "key must be 32 raw bytes or base64 of 32 bytes")
	}
	return decoded, nil
}

// ExportKey returns the base64 encoding of a 32-byte key.
func ExportKey(key []byte) (string, error) {
	if len(key) != KeySize {
		return "", mpcerrors.New(mpcerrors.BadKey, "key must be 32 bytes")
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, mpcerrors.New(mpcerrors.BadKey, "AES key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, mpcerrors.Wrap(mpcerrors.CryptoFailure, "failed to construct AES cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, mpcerrors.Wrap(mpcerrors.CryptoFailure, "failed to construct GCM mode", err)
	}
	return aead, nil
}

// Encrypt seals plaintext under key with a fresh random IV, drawn from a
// cryptographic RNG so it is never reused, and returns
// base64(IV ‖ ciphertext‖tag).
func Encrypt(key, plaintext []byte) (string, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}

	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", mpcerrors.Wrap(mpcerrors.CryptoFailure, "failed to generate IV", err)
	}

	sealed := aead.Seal(nil, iv, plaintext, nil)

	out := make([]byte, len(iv)+len(sealed))
	copy(out, iv)
	copy(out[len(iv):], sealed)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt parses base64 content as IV ‖ ciphertext‖tag and opens it under key.
func Decrypt(key []byte, content string) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, mpcerrors.Wrap(mpcerrors.CryptoFailure, "content is not valid base64", err)
	}
	if len(raw) < IVSize {
		return nil, mpcerrors.New(mpcerrors.CryptoFailure, "content shorter than IV size")
	}

	iv := raw[:IVSize]
	sealed := raw[IVSize:]

	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, mpcerrors.Wrap(mpcerrors.CryptoFailure, "GCM authentication failed", err)
	}
	return plaintext, nil
}
