package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
	"github.com/backkem/dacgate/pkg/crypto"
	"github.com/backkem/dacgate/pkg/keystore"
	"github.com/backkem/dacgate/pkg/trust"
	"golang.org/x/term"
)

// passphraseEnv supplies the file keyring passphrase without a prompt.
const passphraseEnv = "DACGATE_PASSPHRASE"

// promptPassphrase reads a passphrase from the terminal without echo.
func promptPassphrase(prompt string) (string, error) {
	if p, ok := os.LookupEnv(passphraseEnv); ok {
		return p, nil
	}

	var w io.Writer = os.Stderr
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("no terminal available for passphrase prompt; set %s", passphraseEnv)
	}

	fmt.Fprintf(w, "%s: ", prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func openKeystore() (*keystore.KeyringStore, error) {
	return keystore.Open(keystore.Config{
		Backend:    global.keyringBackend,
		Dir:        filepath.Join(global.home, "keys"),
		Passphrase: keyring.PromptFunc(promptPassphrase),
	})
}

// loadIdentity loads the identity named by --identity-file or --identity.
func loadIdentity() (keystore.Identity, error) {
	if global.identityFile != "" {
		return keystore.LoadPEM(global.identityFile)
	}
	ks, err := openKeystore()
	if err != nil {
		return keystore.Identity{}, err
	}
	id, err := ks.Load(global.identity)
	if errors.Is(err, keystore.ErrNotFound) {
		return keystore.Identity{}, fmt.Errorf("%w: run 'dacgate keygen --identity %s' first", err, global.identity)
	}
	return id, err
}

// loadIdentitySuite loads the identity and its suite.
func loadIdentitySuite() (keystore.Identity, *crypto.Suite, error) {
	id, err := loadIdentity()
	if err != nil {
		return id, nil, err
	}
	suite, err := crypto.SuiteByName(id.Suite)
	if err != nil {
		return id, nil, err
	}
	return id, suite, nil
}

// loadPins opens the pin file.
func loadPins(tofu bool) (*trust.PinStore, error) {
	return trust.LoadPinFile(global.pinsFile, trust.PinStoreConfig{
		TrustOnFirstUse: tofu,
		LoggerFactory:   global.loggerFactory,
	})
}
