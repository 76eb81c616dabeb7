// Package crypto provides the cryptographic primitives used by the SFFS
// driver: AES-128-CBC for cluster data and salted HMAC-SHA1 for cluster and
// superblock integrity tags.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"
	"errors"
	"fmt"
)

// HashSize is the length of an integrity tag.
const HashSize = sha1.Size

// Hash is a 20-byte HMAC-SHA1 tag.
type Hash [HashSize]byte

// AesKeySize is the length of the cluster encryption key.
const AesKeySize = 16

// HmacKeySize is the length of the integrity key.
const HmacKeySize = 20

// KeyBundle holds the key material for one NAND image.
type KeyBundle struct {
	HMAC [HmacKeySize]byte
	AES  [AesKeySize]byte
}

// AesEncrypt encrypts src with AES-128-CBC and a zero IV. src must be a
// multiple of the AES block size; each call starts a fresh CBC chain.
func AesEncrypt(key [AesKeySize]byte, src []byte) ([]byte, error) {
	if len(src) == 0 || len(src)%aes.BlockSize != 0 {
		return nil, errors.New("source length must be a non-zero multiple of the AES block size")
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to initialise AES: %w", err)
	}
	var iv [aes.BlockSize]byte
	dst := make([]byte, len(src))
	cipher.NewCBCEncrypter(block, iv[:]).CryptBlocks(dst, src)
	return dst, nil
}

// AesDecrypt decrypts src with AES-128-CBC and a zero IV.
func AesDecrypt(key [AesKeySize]byte, src []byte) ([]byte, error) {
	if len(src) == 0 || len(src)%aes.BlockSize != 0 {
		return nil, errors.New("source length must be a non-zero multiple of the AES block size")
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to initialise AES: %w", err)
	}
	var iv [aes.BlockSize]byte
	dst := make([]byte, len(src))
	cipher.NewCBCDecrypter(block, iv[:]).CryptBlocks(dst, src)
	return dst, nil
}

// MAC computes the HMAC-SHA1 tag over salt followed by data. The 20-byte key
// is zero-padded to the SHA1 block size per RFC 2104.
func MAC(key [HmacKeySize]byte, salt, data []byte) Hash {
	mac := hmac.New(sha1.New, key[:])
	mac.Write(salt)
	mac.Write(data)
	var h Hash
	copy(h[:], mac.Sum(nil))
	return h
}
