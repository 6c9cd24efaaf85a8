package gateway

import (
	"context"
	"crypto/rand"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/backkem/dacgate/pkg/acl"
	"github.com/backkem/dacgate/pkg/crypto"
	"github.com/backkem/dacgate/pkg/securechannel"
	"github.com/backkem/dacgate/pkg/transport"
	"github.com/backkem/dacgate/pkg/trust"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// pipeHost is the remote host of every connection dialed through the
// "gateway" PipeListener.
const pipeHost = "pipe:gateway:0"

type testGateway struct {
	server   *Server
	listener *transport.PipeListener
	metrics  *Metrics
	pins     *trust.PinStore
	acl      *acl.Checker
	serverID crypto.KeyPair
	clientID crypto.KeyPair

	mu     sync.Mutex
	opened []string
}

func newIdentity(t *testing.T) crypto.KeyPair {
	t.Helper()
	id, err := crypto.NewCurve25519Suite().Signature.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	return id
}

// newTestGateway starts a gateway on a PipeListener. The client identity is
// pinned and allowed to run "open".
func newTestGateway(t *testing.T, mutate func(*ServerConfig)) *testGateway {
	t.Helper()
	g := &testGateway{
		listener: transport.NewPipeListener("gateway"),
		metrics:  NewMetrics(nil),
		pins:     trust.NewPinStore(trust.PinStoreConfig{}),
		acl:      acl.NewChecker(),
		serverID: newIdentity(t),
		clientID: newIdentity(t),
	}
	g.pins.PinKey(g.clientID.Public, "client")
	if err := g.acl.AddEntry(acl.Entry{
		Subject:   crypto.Fingerprint(g.clientID.Public),
		Commands:  []string{"open"},
		Privilege: acl.PrivilegeOperate,
	}); err != nil {
		t.Fatalf("AddEntry() error = %v", err)
	}

	handler := NewCommandHandler(CommandHandlerConfig{ACL: g.acl, Metrics: g.metrics})
	handler.Register("open", func(_ context.Context, _ *Request, args []string) error {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.opened = append(g.opened, args...)
		return nil
	})

	config := ServerConfig{
		Listener: g.listener,
		Identity: g.serverID,
		Verifier: g.pins,
		Handler:  handler,
		Metrics:  g.metrics,
	}
	if mutate != nil {
		mutate(&config)
	}
	s, err := NewServer(config)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	g.server = s
	return g
}

// clientConfig trusts exactly the gateway identity.
func (g *testGateway) clientConfig() ClientConfig {
	pins := trust.NewPinStore(trust.PinStoreConfig{})
	pins.PinKey(g.serverID.Public, "gateway")
	id := g.clientID
	return ClientConfig{
		Identity:       &id,
		Verifier:       pins,
		RequestTimeout: 2 * time.Second,
	}
}

func (g *testGateway) connect(t *testing.T, config ClientConfig) (*Client, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := g.listener.Dial(ctx)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	c, err := NewClient(ctx, conn, config)
	if err == nil {
		t.Cleanup(func() { c.Close() })
	}
	return c, err
}

func (g *testGateway) mustConnect(t *testing.T) *Client {
	t.Helper()
	c, err := g.connect(t, g.clientConfig())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestServer_Commands(t *testing.T) {
	g := newTestGateway(t, nil)
	c := g.mustConnect(t)
	ctx := testContext(t)

	if got, want := c.PeerFingerprint(), g.server.Fingerprint(); got != want {
		t.Errorf("PeerFingerprint() = %s, want %s", got, want)
	}

	tests := []struct {
		line string
		want Decision
	}{
		{"open front", DecisionGranted},
		{"open 'rear hatch'", DecisionGranted},
		{"close", DecisionUnknownCommand},
		{"", DecisionBadRequest},
	}
	for _, tt := range tests {
		got, err := c.Command(ctx, tt.line)
		if err != nil {
			t.Fatalf("Command(%q) error = %v", tt.line, err)
		}
		if got != tt.want {
			t.Errorf("Command(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}

	g.mu.Lock()
	opened := append([]string(nil), g.opened...)
	g.mu.Unlock()
	if len(opened) != 2 || opened[0] != "front" || opened[1] != "rear hatch" {
		t.Errorf("opened = %q", opened)
	}

	sessions := g.server.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("Sessions() = %d entries, want 1", len(sessions))
	}
	if got, want := sessions[0].Peer, crypto.Fingerprint(g.clientID.Public); got != want {
		t.Errorf("session peer = %s, want %s", got, want)
	}

	m := g.metrics
	waitFor(t, "outbound frames", func() bool {
		return testutil.ToFloat64(m.Frames.WithLabelValues(DirectionOut)) == 4
	})
	if got := testutil.ToFloat64(m.Frames.WithLabelValues(DirectionIn)); got != 4 {
		t.Errorf("inbound frames = %v, want 4", got)
	}
	if got := testutil.ToFloat64(m.ActiveSessions); got != 1 {
		t.Errorf("active sessions = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.HandshakeFailures); n != 0 {
		t.Errorf("handshake failure series = %d, want 0", n)
	}

	c.Close()
	waitFor(t, "session removal", func() bool { return len(g.server.Sessions()) == 0 })
	waitFor(t, "active sessions", func() bool { return testutil.ToFloat64(m.ActiveSessions) == 0 })
}

func TestServer_ACLAppliesToPeer(t *testing.T) {
	g := newTestGateway(t, nil)

	// A second pinned client without ACL entries.
	other := newIdentity(t)
	g.pins.PinKey(other.Public, "other")
	config := g.clientConfig()
	config.Identity = &other

	c, err := g.connect(t, config)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	got, err := c.Command(testContext(t), "open front")
	if err != nil {
		t.Fatalf("Command() error = %v", err)
	}
	if got != DecisionDenied {
		t.Errorf("Command() = %v, want Denied", got)
	}
}

func TestServer_UnknownClient(t *testing.T) {
	g := newTestGateway(t, nil)

	stranger := newIdentity(t)
	config := g.clientConfig()
	config.Identity = &stranger

	// The client is ready once ClientAuth is sent; the rejection shows up
	// on the first request.
	c, err := g.connect(t, config)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, err := c.Command(testContext(t), "open front"); err == nil {
		t.Fatal("Command() succeeded for an unpinned client")
	}

	waitFor(t, "handshake failure", func() bool {
		return testutil.ToFloat64(g.metrics.HandshakeFailures.WithLabelValues("AuthenticationError")) == 1
	})
	if got := g.server.Strikes(pipeHost); got != 1 {
		t.Errorf("Strikes() = %d, want 1", got)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.opened) != 0 {
		t.Errorf("opened = %q, want none", g.opened)
	}
}

func TestServer_ClientRejectsGateway(t *testing.T) {
	g := newTestGateway(t, nil)

	config := g.clientConfig()
	config.Verifier = trust.RejectAll()
	_, err := g.connect(t, config)
	if securechannel.KindOf(err) != securechannel.KindAuthentication {
		t.Fatalf("NewClient() error = %v, want AuthenticationError", err)
	}
	if !errors.Is(err, securechannel.ErrIdentityRejected) {
		t.Errorf("NewClient() error = %v, want ErrIdentityRejected", err)
	}
	waitFor(t, "handshake failure", func() bool {
		return testutil.ToFloat64(g.metrics.HandshakeFailures.WithLabelValues("AuthenticationError")) == 1
	})
}

func TestServer_Lockout(t *testing.T) {
	g := newTestGateway(t, func(c *ServerConfig) {
		c.LockoutThreshold = 2
	})

	stranger := newIdentity(t)
	config := g.clientConfig()
	config.Identity = &stranger

	for i := 1; i <= 2; i++ {
		c, err := g.connect(t, config)
		if err != nil {
			t.Fatalf("attempt %d: NewClient() error = %v", i, err)
		}
		c.Command(testContext(t), "open")
		waitFor(t, "strike", func() bool { return g.server.Strikes(pipeHost) == i })
	}
	if !g.server.Locked(pipeHost) {
		t.Fatal("Locked() = false after reaching the threshold")
	}

	// Even a trusted client is refused while its host is locked out.
	if _, err := g.connect(t, g.clientConfig()); securechannel.KindOf(err) != securechannel.KindTransport {
		t.Errorf("NewClient() error = %v, want TransportError", err)
	}
	if got := testutil.ToFloat64(g.metrics.Lockouts); got != 1 {
		t.Errorf("lockouts = %v, want 1", got)
	}

	g.server.Unlock(pipeHost)
	if g.server.Locked(pipeHost) {
		t.Fatal("Locked() = true after Unlock")
	}
	c := g.mustConnect(t)
	if d, err := c.Command(testContext(t), "open"); err != nil || d != DecisionGranted {
		t.Errorf("Command() = %v, %v after Unlock", d, err)
	}
}

func TestServer_TamperedFrameStrikes(t *testing.T) {
	g := newTestGateway(t, nil)

	// Chunks from the dialing side: ClientHello, ClientAuth, then requests.
	var mu sync.Mutex
	sent := 0
	g.listener.SetInterceptor(func(from int, chunk []byte) [][]byte {
		if from != 0 {
			return [][]byte{chunk}
		}
		mu.Lock()
		defer mu.Unlock()
		sent++
		if sent == 4 {
			chunk[len(chunk)-1] ^= 0x01
		}
		return [][]byte{chunk}
	})
	c := g.mustConnect(t)
	ctx := testContext(t)

	if d, err := c.Command(ctx, "open first"); err != nil || d != DecisionGranted {
		t.Fatalf("Command() = %v, %v, want Granted", d, err)
	}
	if _, err := c.Command(ctx, "open second"); err == nil {
		t.Fatal("Command() succeeded with a tampered frame")
	}

	waitFor(t, "strike", func() bool { return g.server.Strikes(pipeHost) == 1 })
	waitFor(t, "session removal", func() bool { return len(g.server.Sessions()) == 0 })

	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.opened) != 1 || g.opened[0] != "first" {
		t.Errorf("opened = %q, want [first]", g.opened)
	}
}

func TestServer_MaxSessions(t *testing.T) {
	g := newTestGateway(t, func(c *ServerConfig) {
		c.MaxSessions = 1
	})
	first := g.mustConnect(t)
	waitFor(t, "first session", func() bool { return len(g.server.Sessions()) == 1 })

	if _, err := g.connect(t, g.clientConfig()); securechannel.KindOf(err) != securechannel.KindTransport {
		t.Errorf("second NewClient() error = %v, want TransportError", err)
	}

	first.Close()
	waitFor(t, "session removal", func() bool { return len(g.server.Sessions()) == 0 })
	g.mustConnect(t)
}

func TestServer_IdleTimeout(t *testing.T) {
	g := newTestGateway(t, func(c *ServerConfig) {
		c.IdleTimeout = 50 * time.Millisecond
	})
	c := g.mustConnect(t)
	waitFor(t, "idle session to close", func() bool { return len(g.server.Sessions()) == 0 })

	if _, err := c.Command(testContext(t), "open"); err == nil {
		t.Error("Command() succeeded on an idle-closed session")
	}
}

func TestServer_Stop(t *testing.T) {
	g := newTestGateway(t, nil)
	c := g.mustConnect(t)
	waitFor(t, "session", func() bool { return len(g.server.Sessions()) == 1 })

	if err := g.server.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if n := len(g.server.Sessions()); n != 0 {
		t.Errorf("Sessions() after Stop = %d, want 0", n)
	}
	if _, err := c.Command(testContext(t), "open"); err == nil {
		t.Error("Command() succeeded after Stop")
	}
	if err := g.server.Stop(); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("second Stop() error = %v, want ErrClosed", err)
	}
}

func TestServer_TCP(t *testing.T) {
	serverID := newIdentity(t)
	clientID := newIdentity(t)

	checker := acl.NewChecker()
	checker.AddEntry(acl.Entry{
		Subject:   crypto.Fingerprint(clientID.Public),
		Commands:  []string{acl.WildcardCommand},
		Privilege: acl.PrivilegeAdminister,
	})
	handler := NewCommandHandler(CommandHandlerConfig{ACL: checker})
	handler.Register("unlock", func(context.Context, *Request, []string) error { return nil })

	s, err := NewServer(ServerConfig{
		ListenAddr: "127.0.0.1:0",
		Identity:   serverID,
		Verifier:   trust.AcceptAll(),
		Handler:    handler,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	c, err := Dial(testContext(t), s.Addr().String(), ClientConfig{
		Identity: &clientID,
		Verifier: trust.AcceptAll(),
	})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Close()

	if d, err := c.Command(testContext(t), "unlock"); err != nil || d != DecisionGranted {
		t.Errorf("Command() = %v, %v, want Granted", d, err)
	}
	if len(c.Binding()) == 0 {
		t.Error("Binding() is empty")
	}
}

func TestNewServer_InvalidConfig(t *testing.T) {
	id := newIdentity(t)
	handler := HandlerFunc(func(context.Context, *Request) []byte { return nil })
	valid := func() ServerConfig {
		return ServerConfig{
			Listener: transport.NewPipeListener("invalid"),
			Identity: id,
			Verifier: trust.AcceptAll(),
			Handler:  handler,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr error
	}{
		{"no identity", func(c *ServerConfig) { c.Identity = crypto.KeyPair{} }, ErrNoIdentity},
		{"no verifier", func(c *ServerConfig) { c.Verifier = nil }, ErrNoVerifier},
		{"no handler", func(c *ServerConfig) { c.Handler = nil }, ErrNoHandler},
		{"negative sessions", func(c *ServerConfig) { c.MaxSessions = -1 }, ErrInvalidConfig},
		{"negative idle", func(c *ServerConfig) { c.IdleTimeout = -time.Second }, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(&config)
			if _, err := NewServer(config); !errors.Is(err, tt.wantErr) {
				t.Errorf("NewServer() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClient_Close(t *testing.T) {
	g := newTestGateway(t, nil)
	c := g.mustConnect(t)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := c.Request(testContext(t), []byte("open")); !errors.Is(err, ErrClientClosed) {
		t.Errorf("Request() after Close error = %v, want ErrClientClosed", err)
	}
}

func TestDial_Errors(t *testing.T) {
	if _, err := Dial(context.Background(), "127.0.0.1:1", ClientConfig{}); !errors.Is(err, ErrNoVerifier) {
		t.Errorf("Dial() without verifier error = %v, want ErrNoVerifier", err)
	}
	if _, err := Dial(context.Background(), "", ClientConfig{Verifier: trust.AcceptAll()}); !errors.Is(err, transport.ErrInvalidAddress) {
		t.Errorf("Dial(\"\") error = %v, want ErrInvalidAddress", err)
	}
}
