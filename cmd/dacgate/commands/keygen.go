package commands

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"

	"github.com/backkem/dacgate/pkg/crypto"
	"github.com/backkem/dacgate/pkg/keystore"
	"github.com/spf13/cobra"
)

func keygenCmd() *cobra.Command {
	var (
		suiteName string
		force     bool
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a long-term identity",
		Long: "Generate a long-term identity key pair and store it in the keyring, " +
			"or in the PEM file given by --identity-file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			suite, err := crypto.SuiteByName(suiteName)
			if err != nil {
				return err
			}
			kp, err := suite.Signature.GenerateKey(rand.Reader)
			if err != nil {
				return err
			}
			id := keystore.Identity{Suite: suite.Name(), KeyPair: kp}
			defer id.KeyPair.Zero()

			if global.identityFile != "" {
				if _, err := os.Stat(global.identityFile); err == nil && !force {
					return fmt.Errorf("%s exists; use --force to replace it", global.identityFile)
				}
				if err := keystore.SavePEM(global.identityFile, id); err != nil {
					return err
				}
			} else {
				ks, err := openKeystore()
				if err != nil {
					return err
				}
				if _, err := ks.Load(global.identity); err == nil && !force {
					return fmt.Errorf("identity %q exists; use --force to replace it", global.identity)
				} else if err != nil && !errors.Is(err, keystore.ErrNotFound) {
					return err
				}
				if err := ks.Save(global.identity, id); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Suite:       %s\n", id.Suite)
			fmt.Fprintf(cmd.OutOrStdout(), "Fingerprint: %s\n", id.Fingerprint())
			return nil
		},
	}
	cmd.Flags().StringVar(&suiteName, "suite", crypto.SuiteCurve25519, "cipher suite")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing identity")
	return cmd
}

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the identity fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := loadIdentity()
			if err != nil {
				return err
			}
			defer id.KeyPair.Zero()
			fmt.Fprintln(cmd.OutOrStdout(), id.Fingerprint())
			return nil
		},
	}
}
