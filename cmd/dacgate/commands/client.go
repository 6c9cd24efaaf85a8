package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/backkem/dacgate/pkg/discovery"
	"github.com/backkem/dacgate/pkg/gateway"
	"github.com/backkem/dacgate/pkg/trust"
	"github.com/spf13/cobra"
)

// clientOptions select and authenticate a gateway.
type clientOptions struct {
	addr     string
	instance string
	tofu     bool
	timeout  time.Duration
}

func (o *clientOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.addr, "addr", "", "gateway address host[:port]")
	f.StringVar(&o.instance, "instance", "", "find the gateway by DNS-SD instance name instead of --addr")
	f.BoolVar(&o.tofu, "tofu", false, "pin the gateway identity on first use while the pin file is empty")
	f.DurationVar(&o.timeout, "timeout", 10*time.Second, "connect and request timeout")
}

// resolve returns the address to dial.
func (o *clientOptions) resolve(ctx context.Context) (string, error) {
	switch {
	case o.addr != "" && o.instance != "":
		return "", fmt.Errorf("--addr and --instance are mutually exclusive")
	case o.addr != "":
		return o.addr, nil
	case o.instance != "":
		r, err := discovery.NewResolver(discovery.ResolverConfig{
			LookupTimeout: o.timeout,
			LoggerFactory: global.loggerFactory,
		})
		if err != nil {
			return "", err
		}
		svc, err := r.Lookup(ctx, o.instance)
		if err != nil {
			return "", fmt.Errorf("lookup %s: %w", o.instance, err)
		}
		if svc.Addr() == "" {
			return "", fmt.Errorf("lookup %s: no addresses", o.instance)
		}
		return svc.Addr(), nil
	default:
		return "", fmt.Errorf("one of --addr or --instance is required")
	}
}

// connect dials and authenticates the gateway. A gateway pinned on first
// use is saved to the pin file.
func (o *clientOptions) connect(ctx context.Context) (*gateway.Client, error) {
	id, suite, err := loadIdentitySuite()
	if err != nil {
		return nil, err
	}
	defer id.KeyPair.Zero()

	pins, err := loadPins(o.tofu)
	if err != nil {
		return nil, err
	}
	if pins.Len() == 0 && !o.tofu {
		return nil, fmt.Errorf("no pinned gateways in %s; use 'dacgate trust add' or --tofu", global.pinsFile)
	}

	addr, err := o.resolve(ctx)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	pinned := pins.Len()
	c, err := gateway.Dial(dialCtx, addr, gateway.ClientConfig{
		Identity:       &id.KeyPair,
		Suite:          suite,
		Verifier:       trust.Verifier(pins),
		RequestTimeout: o.timeout,
		LoggerFactory:  global.loggerFactory,
	})
	if err != nil {
		return nil, err
	}

	if pins.Len() != pinned {
		if err := pins.Save(global.pinsFile); err != nil {
			c.Close()
			return nil, fmt.Errorf("save pins: %w", err)
		}
		fmt.Printf("Pinned gateway %s\n", c.PeerFingerprint())
	}
	return c, nil
}
