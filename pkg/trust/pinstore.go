package trust

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/backkem/dacgate/pkg/crypto"
	"github.com/pion/logging"
)

// Pin is one trusted identity.
type Pin struct {
	Fingerprint string
	Label       string
}

// PinStoreConfig configures a PinStore.
type PinStoreConfig struct {
	// TrustOnFirstUse pins the first unknown key presented while the store
	// is empty, then behaves as a normal pin store.
	TrustOnFirstUse bool

	// LoggerFactory for the store's logger. Optional.
	LoggerFactory logging.LoggerFactory
}

// PinStore accepts identity keys whose fingerprints have been pinned.
// It is safe for concurrent use.
type PinStore struct {
	pins map[string]string // fingerprint -> label
	tofu bool
	log  logging.LeveledLogger

	mu sync.RWMutex
}

// NewPinStore creates an empty pin store.
func NewPinStore(config PinStoreConfig) *PinStore {
	s := &PinStore{
		pins: make(map[string]string),
		tofu: config.TrustOnFirstUse,
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("trust")
	}
	return s
}

// VerifyIdentity accepts pub if its fingerprint is pinned. With
// TrustOnFirstUse an unknown key is accepted provisionally while the store
// is empty; it is only pinned by ConfirmIdentity.
func (s *PinStore) VerifyIdentity(pub []byte) error {
	fp := crypto.Fingerprint(pub)

	s.mu.RLock()
	label, ok := s.pins[fp]
	empty := len(s.pins) == 0
	s.mu.RUnlock()

	if ok {
		if s.log != nil {
			s.log.Debugf("accepted pinned identity %s (%s)", fp[:16], label)
		}
		return nil
	}
	if s.tofu && empty {
		return nil
	}

	if s.log != nil {
		s.log.Infof("rejected unpinned identity %s", fp[:16])
	}
	return fmt.Errorf("%w: %s", ErrNotPinned, fp[:16])
}

// ConfirmIdentity pins a provisionally accepted key once it has signed the
// handshake. Only the first confirmed key is pinned; later unknown keys are
// rejected.
func (s *PinStore) ConfirmIdentity(pub []byte) error {
	fp := crypto.Fingerprint(pub)

	s.mu.Lock()
	if _, ok := s.pins[fp]; ok {
		s.mu.Unlock()
		return nil
	}
	if !s.tofu || len(s.pins) != 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotPinned, fp[:16])
	}
	s.pins[fp] = "first-use"
	s.mu.Unlock()

	if s.log != nil {
		s.log.Warnf("trust on first use: pinned identity %s", fp)
	}
	return nil
}

// PinKey pins the fingerprint of pub.
func (s *PinStore) PinKey(pub []byte, label string) {
	// A fingerprint computed locally is always valid.
	_ = s.Pin(crypto.Fingerprint(pub), label)
}

// Pin pins a hex fingerprint.
func (s *PinStore) Pin(fingerprint, label string) error {
	fp, err := normalizeFingerprint(fingerprint)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pins[fp] = label
	return nil
}

// Unpin removes a fingerprint. It reports whether it was pinned.
func (s *PinStore) Unpin(fingerprint string) bool {
	fp, err := normalizeFingerprint(fingerprint)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pins[fp]
	delete(s.pins, fp)
	return ok
}

// Pinned reports whether a fingerprint is pinned and returns its label.
func (s *PinStore) Pinned(fingerprint string) (string, bool) {
	fp, err := normalizeFingerprint(fingerprint)
	if err != nil {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	label, ok := s.pins[fp]
	return label, ok
}

// Entries returns all pins sorted by fingerprint.
func (s *PinStore) Entries() []Pin {
	s.mu.RLock()
	out := make([]Pin, 0, len(s.pins))
	for fp, label := range s.pins {
		out = append(out, Pin{Fingerprint: fp, Label: label})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Fingerprint < out[j].Fingerprint })
	return out
}

// Len returns the number of pins.
func (s *PinStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pins)
}

// ReadFrom loads pins from r, one "<hex-fingerprint> [label]" per line.
// Blank lines and lines starting with '#' are ignored.
func (s *PinStore) ReadFrom(r io.Reader) (int64, error) {
	var n int64
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		n += int64(len(text)) + 1

		text = strings.TrimSpace(text)
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.SplitN(text, " ", 2)
		label := ""
		if len(fields) == 2 {
			label = strings.TrimSpace(fields[1])
		}
		if err := s.Pin(fields[0], label); err != nil {
			return n, fmt.Errorf("%w: line %d: %v", ErrInvalidPinFile, line, err)
		}
	}
	return n, scanner.Err()
}

// WriteTo writes pins in the ReadFrom format.
func (s *PinStore) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, p := range s.Entries() {
		line := p.Fingerprint
		if p.Label != "" {
			line += " " + p.Label
		}
		written, err := fmt.Fprintln(w, line)
		n += int64(written)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// LoadPinFile creates a pin store from a file. A missing file yields an
// empty store.
func LoadPinFile(path string, config PinStoreConfig) (*PinStore, error) {
	s := NewPinStore(config)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	defer f.Close()

	if _, err := s.ReadFrom(f); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes the store to path, replacing the file.
func (s *PinStore) Save(path string) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := s.WriteTo(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func normalizeFingerprint(fp string) (string, error) {
	fp = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(fp), ":", ""))
	raw, err := hex.DecodeString(fp)
	if err != nil || len(raw) != crypto.SHA256LenBytes {
		return "", fmt.Errorf("%w: %q", ErrInvalidFingerprint, fp)
	}
	return fp, nil
}
