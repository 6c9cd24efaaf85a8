package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// BlockCipher is a block cipher used in CBC mode by the frame codec.
type BlockCipher interface {
	// Name identifies the cipher inside a suite name.
	Name() string

	// KeySize is the key length in bytes.
	KeySize() int

	// BlockSize is the cipher block length in bytes.
	BlockSize() int

	// NewEncrypter returns a CBC encrypter. The returned mode keeps its
	// chaining value between CryptBlocks calls.
	NewEncrypter(key, iv []byte) (cipher.BlockMode, error)

	// NewDecrypter returns a CBC decrypter with the same chaining behaviour.
	NewDecrypter(key, iv []byte) (cipher.BlockMode, error)
}

// AESCBC is AES in CBC mode.
type AESCBC struct {
	// KeyBytes is 16, 24 or 32.
	KeyBytes int
}

// Name returns e.g. "aes256cbc".
func (a AESCBC) Name() string { return fmt.Sprintf("aes%dcbc", a.KeyBytes*8) }

// KeySize returns KeyBytes.
func (a AESCBC) KeySize() int { return a.KeyBytes }

// BlockSize returns 16.
func (AESCBC) BlockSize() int { return aes.BlockSize }

// NewEncrypter returns a CBC encrypter.
func (a AESCBC) NewEncrypter(key, iv []byte) (cipher.BlockMode, error) {
	block, err := a.block(key, iv)
	if err != nil {
		return nil, err
	}
	return cipher.NewCBCEncrypter(block, iv), nil
}

// NewDecrypter returns a CBC decrypter.
func (a AESCBC) NewDecrypter(key, iv []byte) (cipher.BlockMode, error) {
	block, err := a.block(key, iv)
	if err != nil {
		return nil, err
	}
	return cipher.NewCBCDecrypter(block, iv), nil
}

func (a AESCBC) block(key, iv []byte) (cipher.Block, error) {
	if len(key) != a.KeyBytes {
		return nil, fmt.Errorf("aes-cbc: key must be %d bytes, got %d", a.KeyBytes, len(key))
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("aes-cbc: IV must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	return aes.NewCipher(key)
}
