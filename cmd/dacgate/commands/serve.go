package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/backkem/dacgate/pkg/acl"
	"github.com/backkem/dacgate/pkg/discovery"
	"github.com/backkem/dacgate/pkg/gateway"
	"github.com/backkem/dacgate/pkg/session"
	"github.com/backkem/dacgate/pkg/transport"
	"github.com/pion/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	listen        string
	aclFile       string
	tofu          bool
	advertise     bool
	instance      string
	metricsAddr   string
	maxSessions   int
	maxHandshakes int
	idleTimeout   time.Duration
	policy        string
	sequenceLimit uint64
}

func serveCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.listen, "listen", ":"+strconv.Itoa(transport.DefaultPort), "TCP listen address")
	f.StringVar(&opts.aclFile, "acl", "", "ACL file (default <home>/acl)")
	f.BoolVar(&opts.tofu, "tofu", false, "pin the first client identity while the pin file is empty")
	f.BoolVar(&opts.advertise, "advertise", false, "advertise the gateway with DNS-SD")
	f.StringVar(&opts.instance, "instance", "", "DNS-SD instance name (default dacgate-<short fingerprint>)")
	f.StringVar(&opts.metricsAddr, "metrics", "", "serve Prometheus metrics on this address, e.g. :9090")
	f.IntVar(&opts.maxSessions, "max-sessions", session.DefaultMaxSessions, "maximum concurrent sessions")
	f.IntVar(&opts.maxHandshakes, "max-handshakes", gateway.DefaultMaxHandshakes, "maximum concurrent handshakes")
	f.DurationVar(&opts.idleTimeout, "idle-timeout", 5*time.Minute, "close sessions idle for this long (0 disables)")
	f.StringVar(&opts.policy, "counter-policy", session.CounterPolicyFail.String(), "sequence exhaustion policy: fail or rekey")
	f.Uint64Var(&opts.sequenceLimit, "sequence-limit", 0, "frames per direction before the counter policy applies (0 uses the default)")
	return cmd
}

// demoCommands are the commands a gateway serves out of the box. They only
// log; wiring them to actuators is left to the integration.
func demoCommands(h *gateway.CommandHandler, checker *acl.Checker, log logging.LeveledLogger) error {
	run := func(action string) gateway.CommandFunc {
		return func(_ context.Context, req *gateway.Request, args []string) error {
			log.Infof("[%s] %s %v by %s", req.ConnID, action, args, req.Peer)
			return nil
		}
	}
	for _, name := range []string{"unlock", "lock", "status"} {
		if err := h.Register(name, run(name)); err != nil {
			return err
		}
	}
	return checker.Require("status", acl.PrivilegeView)
}

func runServe(ctx context.Context, opts serveOptions) error {
	lf := global.loggerFactory
	log := lf.NewLogger("dacgate")

	id, suite, err := loadIdentitySuite()
	if err != nil {
		return err
	}
	defer id.KeyPair.Zero()

	policy, err := session.ParseCounterPolicy(opts.policy)
	if err != nil {
		return err
	}

	pins, err := loadPins(opts.tofu)
	if err != nil {
		return err
	}

	aclFile := opts.aclFile
	if aclFile == "" {
		aclFile = filepath.Join(global.home, "acl")
	}
	checker, err := acl.LoadFile(aclFile)
	if errors.Is(err, os.ErrNotExist) {
		log.Warnf("no ACL at %s: every command will be denied", aclFile)
		checker, err = acl.NewChecker(), nil
	}
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := gateway.NewMetrics(reg)

	handler := gateway.NewCommandHandler(gateway.CommandHandlerConfig{
		ACL:           checker,
		Metrics:       metrics,
		LoggerFactory: lf,
	})
	if err := demoCommands(handler, checker, log); err != nil {
		return err
	}

	server, err := gateway.NewServer(gateway.ServerConfig{
		ListenAddr:    opts.listen,
		Identity:      id.KeyPair,
		Suite:         suite,
		Verifier:      pins,
		Handler:       handler,
		MaxSessions:   opts.maxSessions,
		MaxHandshakes: opts.maxHandshakes,
		IdleTimeout:   opts.idleTimeout,
		CounterPolicy: policy,
		SequenceLimit: opts.sequenceLimit,
		Metrics:       metrics,
		LoggerFactory: lf,
	})
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}
	defer server.Stop()
	fmt.Printf("Gateway %s listening on %s\n", server.Fingerprint(), server.Addr())

	if opts.advertise {
		port := transport.DefaultPort
		if tcp, ok := server.Addr().(*net.TCPAddr); ok {
			port = tcp.Port
		}
		adv, err := discovery.NewAdvertiser(discovery.AdvertiserConfig{Port: port, LoggerFactory: lf})
		if err != nil {
			return err
		}
		instance := opts.instance
		if instance == "" {
			instance = discovery.InstanceName(id.KeyPair.Public)
		}
		if err := adv.AdvertiseUntil(ctx, instance, discovery.GatewayTXT{
			Fingerprint: server.Fingerprint(),
			Suite:       suite.Name(),
		}); err != nil {
			return err
		}
	}

	if opts.metricsAddr != "" {
		srv := &http.Server{
			Addr:              opts.metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("metrics: %v", err)
			}
		}()
		defer srv.Close()
	}

	pinned := pins.Len()
	<-ctx.Done()
	log.Info("shutting down")

	if opts.tofu && pins.Len() != pinned {
		if err := pins.Save(global.pinsFile); err != nil {
			return fmt.Errorf("save pins: %w", err)
		}
	}
	return nil
}
