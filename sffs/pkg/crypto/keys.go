package crypto

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// DefaultDeriveIterations is the PBKDF2 iteration count used when deriving a
// key bundle from a passphrase.
const DefaultDeriveIterations = 100000

// NewKeyBundle builds a bundle from raw key material.
func NewKeyBundle(hmacKey, aesKey []byte) (KeyBundle, error) {
	var bundle KeyBundle
	if len(hmacKey) != HmacKeySize {
		return bundle, fmt.Errorf("HMAC key must be %d bytes, got %d", HmacKeySize, len(hmacKey))
	}
	if len(aesKey) != AesKeySize {
		return bundle, fmt.Errorf("AES key must be %d bytes, got %d", AesKeySize, len(aesKey))
	}
	copy(bundle.HMAC[:], hmacKey)
	copy(bundle.AES[:], aesKey)
	return bundle, nil
}

// DeriveKeyBundle derives a key bundle from a passphrase using
// PBKDF2-HMAC-SHA256. Useful for freshly formatted images where no console
// key material exists; images made this way are only readable with the same
// passphrase and salt.
func DeriveKeyBundle(passphrase, salt []byte, iterations int) KeyBundle {
	if iterations <= 0 {
		iterations = DefaultDeriveIterations
	}
	material := pbkdf2.Key(passphrase, salt, iterations, HmacKeySize+AesKeySize, sha256.New)

	var bundle KeyBundle
	copy(bundle.HMAC[:], material[:HmacKeySize])
	copy(bundle.AES[:], material[HmacKeySize:])
	return bundle
}
