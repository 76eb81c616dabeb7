package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAesRoundTrip(t *testing.T) {
	var key [AesKeySize]byte
	copy(key[:], "0123456789abcdef")

	plaintext := make([]byte, 0x4000)
	for i := range plaintext {
		plaintext[i] = byte(i)
	}

	ciphertext, err := AesEncrypt(key, plaintext)
	require.NoError(t, err)
	require.Len(t, ciphertext, len(plaintext))
	assert.False(t, bytes.Equal(ciphertext, plaintext))

	decrypted, err := AesDecrypt(key, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestAesRejectsPartialBlocks(t *testing.T) {
	var key [AesKeySize]byte

	tests := []struct {
		name string
		size int
	}{
		{name: "empty", size: 0},
		{name: "partial block", size: 15},
		{name: "one and a half blocks", size: 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AesEncrypt(key, make([]byte, tt.size))
			assert.Error(t, err)
			_, err = AesDecrypt(key, make([]byte, tt.size))
			assert.Error(t, err)
		})
	}
}

// RFC 2202 test case 1 for HMAC-SHA1.
func TestMACReferenceVector(t *testing.T) {
	var key [HmacKeySize]byte
	for i := range key {
		key[i] = 0x0b
	}

	expected, err := hex.DecodeString("b617318655057264e28bc0b6fb378c8ef146be00")
	require.NoError(t, err)

	mac := MAC(key, []byte("Hi "), []byte("There"))
	assert.Equal(t, expected, mac[:])
}

func TestMACSaltIsPrefix(t *testing.T) {
	var key [HmacKeySize]byte
	copy(key[:], "integrity-key-bytes!")

	salt := bytes.Repeat([]byte{0xa5}, 0x40)
	data := []byte("cluster payload")

	joined := MAC(key, nil, append(append([]byte{}, salt...), data...))
	split := MAC(key, salt, data)
	assert.Equal(t, joined, split)
}

func TestNewKeyBundle(t *testing.T) {
	tests := []struct {
		name        string
		hmacLen     int
		aesLen      int
		expectError bool
	}{
		{name: "valid", hmacLen: 20, aesLen: 16},
		{name: "short hmac", hmacLen: 19, aesLen: 16, expectError: true},
		{name: "long aes", hmacLen: 20, aesLen: 17, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundle, err := NewKeyBundle(make([]byte, tt.hmacLen), make([]byte, tt.aesLen))
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, [HmacKeySize]byte{}, bundle.HMAC)
			}
		})
	}
}

func TestDeriveKeyBundle(t *testing.T) {
	a := DeriveKeyBundle([]byte("passphrase"), []byte("salt"), 1000)
	b := DeriveKeyBundle([]byte("passphrase"), []byte("salt"), 1000)
	c := DeriveKeyBundle([]byte("other"), []byte("salt"), 1000)

	assert.Equal(t, a, b, "derivation must be deterministic")
	assert.NotEqual(t, a, c, "different passphrases must yield different bundles")
	assert.NotEqual(t, a.HMAC[:16], a.AES[:], "key halves must differ")
}
