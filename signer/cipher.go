package signer

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"

	"github.com/firasghr/HeyteaDIY/apperr"
)

// MobileCipher encrypts phone numbers with AES-128-CBC and PKCS#7 padding.
// It is immutable after construction and safe for concurrent use.
type MobileCipher struct {
	block cipher.Block
	iv    []byte
}

// NewMobileCipher parses key and iv with ParseSecret. Both must resolve to
// exactly 16 bytes; anything else is a configuration error.
func NewMobileCipher(key, iv string) (*MobileCipher, error) {
	k := ParseSecret(key)
	v := ParseSecret(iv)
	if len(k) == 0 || len(v) == 0 {
		return nil, apperr.New(apperr.KindConfiguration, "missing HeyTea AES key or IV")
	}
	if len(k) != aes.BlockSize || len(v) != aes.BlockSize {
		return nil, apperr.New(apperr.KindConfiguration,
			fmt.Sprintf("HeyTea AES key and IV must each be 16 bytes (got %d and %d)", len(k), len(v)))
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "invalid HeyTea AES key", err)
	}
	return &MobileCipher{block: block, iv: v}, nil
}

// Encrypt returns base64(AES-128-CBC(PKCS7(mobile))). The same mobile always
// yields the same ciphertext, since the IV is fixed.
func (c *MobileCipher) Encrypt(mobile string) string {
	plain := pkcs7Pad([]byte(mobile), aes.BlockSize)
	out := make([]byte, len(plain))
	// CBC mode mutates its IV state, so each call gets a fresh encrypter.
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, plain)
	return base64.StdEncoding.EncodeToString(out)
}

// EncryptMobile is a one-shot form of NewMobileCipher + Encrypt.
func EncryptMobile(key, iv, mobile string) (string, error) {
	c, err := NewMobileCipher(key, iv)
	if err != nil {
		return "", err
	}
	return c.Encrypt(mobile), nil
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}
