// Package keystore persists long-term identity key pairs.
//
// Keys are stored as PKCS#8 DER together with the name of the suite they
// belong to, either in a keyring (OS keychain, Secret Service, encrypted
// file, ...) or in PEM files.
package keystore

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
	"github.com/backkem/dacgate/pkg/crypto"
)

// ServiceName is the keyring service identities are stored under.
const ServiceName = "dacgate"

// itemPrefix namespaces identity items inside the keyring.
const itemPrefix = "identity."

// Keystore errors.
var (
	// ErrNotFound is returned when no identity is stored under a name.
	ErrNotFound = errors.New("keystore: identity not found")

	// ErrInvalidName is returned for an empty identity name.
	ErrInvalidName = errors.New("keystore: invalid identity name")

	// ErrInvalidIdentity is returned when a stored or supplied identity
	// cannot be encoded or decoded.
	ErrInvalidIdentity = errors.New("keystore: invalid identity")
)

// Identity is a key pair and the suite whose signature primitive it
// belongs to.
type Identity struct {
	Suite   string
	KeyPair crypto.KeyPair
}

// Fingerprint returns the fingerprint of the public key.
func (id Identity) Fingerprint() string {
	return crypto.Fingerprint(id.KeyPair.Public)
}

// Store loads and saves named identities.
type Store interface {
	Load(name string) (Identity, error)
	Save(name string, id Identity) error
	Delete(name string) error
}

// Config configures a keyring-backed store.
type Config struct {
	// Backend restricts the keyring backend, e.g. "file" or "keychain".
	// Empty allows every backend available on the platform.
	Backend string

	// Dir is the directory of the encrypted file backend.
	// Default: "~/.dacgate/keys"
	Dir string

	// Passphrase prompts for the file backend's passphrase.
	Passphrase keyring.PromptFunc
}

// KeyringStore stores identities in a keyring.
type KeyringStore struct {
	kr keyring.Keyring
}

// Open opens the keyring described by config.
func Open(config Config) (*KeyringStore, error) {
	kc := keyring.Config{
		ServiceName:      ServiceName,
		FileDir:          config.Dir,
		FilePasswordFunc: config.Passphrase,
		KeychainName:     ServiceName,
	}
	if kc.FileDir == "" {
		kc.FileDir = "~/.dacgate/keys"
	}
	if config.Backend != "" {
		backend := keyring.BackendType(config.Backend)
		found := false
		for _, b := range keyring.AvailableBackends() {
			if b == backend {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("keystore: unsupported keyring backend %q", config.Backend)
		}
		kc.AllowedBackends = []keyring.BackendType{backend}
	}

	kr, err := keyring.Open(kc)
	if err != nil {
		return nil, fmt.Errorf("keystore: open keyring: %w", err)
	}
	return NewKeyringStore(kr), nil
}

// NewKeyringStore wraps an open keyring.
func NewKeyringStore(kr keyring.Keyring) *KeyringStore {
	return &KeyringStore{kr: kr}
}

// Load returns the identity stored under name.
func (s *KeyringStore) Load(name string) (Identity, error) {
	if name == "" {
		return Identity{}, ErrInvalidName
	}
	item, err := s.kr.Get(itemPrefix + name)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return Identity{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return Identity{}, fmt.Errorf("keystore: load %s: %w", name, err)
	}
	return decode(item.Label, item.Data)
}

// Save stores id under name, replacing any previous identity.
func (s *KeyringStore) Save(name string, id Identity) error {
	if name == "" {
		return ErrInvalidName
	}
	der, err := encode(id)
	if err != nil {
		return err
	}

	err = s.kr.Set(keyring.Item{
		Key:         itemPrefix + name,
		Data:        der,
		Label:       id.Suite,
		Description: "dacgate identity " + crypto.ShortFingerprint(id.KeyPair.Public),
	})
	if err != nil {
		return fmt.Errorf("keystore: save %s: %w", name, err)
	}
	return nil
}

// Delete removes the identity stored under name.
func (s *KeyringStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	err := s.kr.Remove(itemPrefix + name)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return err
}

// Names lists the stored identity names.
func (s *KeyringStore) Names() ([]string, error) {
	keys, err := s.kr.Keys()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, k := range keys {
		if len(k) > len(itemPrefix) && k[:len(itemPrefix)] == itemPrefix {
			names = append(names, k[len(itemPrefix):])
		}
	}
	return names, nil
}

func encode(id Identity) ([]byte, error) {
	suite, err := crypto.SuiteByName(id.Suite)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
	}
	der, err := suite.Signature.MarshalPrivateKey(id.KeyPair.Private)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	return der, nil
}

func decode(suiteName string, der []byte) (Identity, error) {
	suite, err := crypto.SuiteByName(suiteName)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
	}
	kp, err := suite.Signature.ParsePrivateKey(der)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	return Identity{Suite: suiteName, KeyPair: kp}, nil
}
