package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pion/logging"
	"github.com/spf13/cobra"
)

// globalOptions are the flags shared by every command.
type globalOptions struct {
	home           string
	identity       string
	identityFile   string
	keyringBackend string
	pinsFile       string
	logLevel       string

	loggerFactory logging.LoggerFactory
}

var global globalOptions

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dacgate",
		Short:         "Vehicle access-control gateway over an authenticated secure channel",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if global.home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				global.home = filepath.Join(dir, ".dacgate")
			}
			if err := os.MkdirAll(global.home, 0o700); err != nil {
				return err
			}
			if global.pinsFile == "" {
				global.pinsFile = filepath.Join(global.home, "pins")
			}

			lf, err := newLoggerFactory(global.logLevel)
			if err != nil {
				return err
			}
			global.loggerFactory = lf
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&global.home, "home", "", "config dir (default ~/.dacgate)")
	flags.StringVar(&global.identity, "identity", "default", "name of the identity in the keyring")
	flags.StringVar(&global.identityFile, "identity-file", "", "PEM identity file (overrides --identity)")
	flags.StringVar(&global.keyringBackend, "keyring-backend", "", "keyring backend, e.g. file or keychain (default: any available)")
	flags.StringVar(&global.pinsFile, "pins", "", "pinned fingerprints file (default <home>/pins)")
	flags.StringVar(&global.logLevel, "log-level", "warn", "log level: disabled, error, warn, info, debug, trace")

	root.AddCommand(
		keygenCmd(),
		fingerprintCmd(),
		trustCmd(),
		serveCmd(),
		requestCmd(),
		shellCmd(),
		discoverCmd(),
	)
	return root
}

func parseLogLevel(s string) (logging.LogLevel, error) {
	switch strings.ToLower(s) {
	case "disabled", "off", "none":
		return logging.LogLevelDisabled, nil
	case "error":
		return logging.LogLevelError, nil
	case "warn", "warning":
		return logging.LogLevelWarn, nil
	case "info":
		return logging.LogLevelInfo, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "trace":
		return logging.LogLevelTrace, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

func newLoggerFactory(level string) (logging.LoggerFactory, error) {
	l, err := parseLogLevel(level)
	if err != nil {
		return nil, err
	}
	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = l
	return lf, nil
}
