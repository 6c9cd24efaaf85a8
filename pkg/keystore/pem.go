package keystore

import (
	"bytes"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/backkem/dacgate/pkg/crypto"
)

const pemType = "PRIVATE KEY"

// WritePEM writes id as a PKCS#8 PEM block.
func WritePEM(w io.Writer, id Identity) error {
	der, err := encode(id)
	if err != nil {
		return err
	}
	defer crypto.Zero(der)
	return pem.Encode(w, &pem.Block{Type: pemType, Bytes: der})
}

// ReadPEM reads the first PKCS#8 PEM block from r. The suite is the first
// built-in suite whose signature primitive accepts the key.
func ReadPEM(r io.Reader) (Identity, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Identity{}, err
	}
	defer crypto.Zero(data)

	block, _ := pem.Decode(data)
	if block == nil {
		return Identity{}, fmt.Errorf("%w: no PEM block", ErrInvalidIdentity)
	}
	if block.Type != pemType {
		return Identity{}, fmt.Errorf("%w: PEM type %q, want %q", ErrInvalidIdentity, block.Type, pemType)
	}
	defer crypto.Zero(block.Bytes)

	for _, name := range crypto.Suites() {
		if id, err := decode(name, block.Bytes); err == nil {
			return id, nil
		}
	}
	return Identity{}, fmt.Errorf("%w: key type not supported by any suite", ErrInvalidIdentity)
}

// LoadPEM reads an identity from a PEM file.
func LoadPEM(path string) (Identity, error) {
	f, err := os.Open(path)
	if err != nil {
		return Identity{}, err
	}
	defer f.Close()
	return ReadPEM(f)
}

// SavePEM writes id to path with owner-only permissions. The file is
// replaced atomically.
func SavePEM(path string, id Identity) error {
	var buf bytes.Buffer
	if err := WritePEM(&buf, id); err != nil {
		return err
	}
	defer crypto.Zero(buf.Bytes())

	tmp, err := os.CreateTemp(filepath.Dir(path), ".dacgate-key-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
