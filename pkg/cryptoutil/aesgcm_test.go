package cryptoutil

import (
	"crypto/rand"
	"testing"

	"github.com/mpcparty/core/pkg/mpcerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := randomKey(t)
	plaintext := []byte("round 1 payload")

	ciphertext, err := Encrypt(key, plaintext)
	require.NoError(t, err)

	decrypted, err := Decrypt(key, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptNeverReusesIV(t *testing.T) {
	key := randomKey(t)
	seen := make(map[string]bool)

	for i := 0; i < 200; i++ {
		ct, err := Encrypt(key, []byte("same plaintext"))
		require.NoError(t, err)
		iv := ct[:16] // the 12 IV bytes encode to exactly the first 16 base64 characters
		assert.False(t, seen[iv], "IV prefix repeated across calls")
		seen[iv] = true
	}
}

func TestDecryptRejectsBadKeySize(t *testing.T) {
	_, err := Decrypt([]byte("too-short"), "x")
	require.Error(t, err)
	kind, ok := mpcerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, mpcerrors.BadKey, kind)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	key := randomKey(t)
	ct, err := Encrypt(key, []byte("payload"))
	require.NoError(t, err)

	tampered := []byte(ct)
	tampered[len(tampered)-1] ^= 0x01

	_, err = Decrypt(key, string(tampered))
	require.Error(t, err)
}

func TestImportExportKey(t *testing.T) {
	key := randomKey(t)

	encoded, err := ExportKey(key)
	require.NoError(t, err)

	imported, err := ImportKey([]byte(encoded))
	require.NoError(t, err)
	assert.Equal(t, key, imported)

	rawImported, err := ImportKey(key)
	require.NoError(t, err)
	assert.Equal(t, key, rawImported)

	_, err = ImportKey([]byte("not-32-bytes"))
	require.Error(t, err)
}

func FuzzEncryptDecryptRoundTrip(f *testing.F) {
	f.Add([]byte("hello"))
	f.Add([]byte(""))
	f.Add(make([]byte, 1024))

	key := make([]byte, KeySize)
	_, _ = rand.Read(key)

	f.Fuzz(func(t *testing.T, plaintext []byte) {
		ciphertext, err := Encrypt(key, plaintext)
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}
		decrypted, err := Decrypt(key, ciphertext)
		if err != nil {
			t.Fatalf("decrypt failed: %v", err)
		}
		if string(decrypted) != string(plaintext) {
			t.Fatalf("round trip mismatch: got %q want %q", decrypted, plaintext)
		}
	})
}
