package gateway

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/backkem/dacgate/pkg/acl"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var (
	operatorFP = strings.Repeat("ab", 32)
	viewerFP   = strings.Repeat("cd", 32)
)

func testChecker(t *testing.T) *acl.Checker {
	t.Helper()
	c := acl.NewChecker()
	if err := c.SetEntries([]acl.Entry{
		{Subject: operatorFP, Commands: []string{acl.WildcardCommand}, Privilege: acl.PrivilegeOperate},
		{Subject: viewerFP, Commands: []string{"status"}, Privilege: acl.PrivilegeView},
	}); err != nil {
		t.Fatalf("SetEntries() error = %v", err)
	}
	if err := c.Require("status", acl.PrivilegeView); err != nil {
		t.Fatalf("Require() error = %v", err)
	}
	return c
}

func TestCommandHandler_Decide(t *testing.T) {
	m := NewMetrics(nil)
	h := NewCommandHandler(CommandHandlerConfig{ACL: testChecker(t), Metrics: m})

	var gotArgs []string
	if err := h.Register("open", func(_ context.Context, _ *Request, args []string) error {
		gotArgs = args
		return nil
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	h.Register("status", func(context.Context, *Request, []string) error { return nil })
	h.Register("jam", func(context.Context, *Request, []string) error { return errors.New("motor stalled") })

	tests := []struct {
		name     string
		peer     string
		payload  string
		want     Decision
		wantArgs []string
	}{
		{"granted with args", operatorFP, `open "front left"`, DecisionGranted, []string{"front left"}},
		{"granted no args", operatorFP, "open", DecisionGranted, []string{}},
		{"viewer status", viewerFP, "status", DecisionGranted, nil},
		{"viewer lacks privilege", viewerFP, "open", DecisionDenied, nil},
		{"unknown peer", strings.Repeat("ef", 32), "status", DecisionDenied, nil},
		{"unknown command", operatorFP, "teleport", DecisionUnknownCommand, nil},
		{"empty", operatorFP, "", DecisionBadRequest, nil},
		{"whitespace", operatorFP, "   ", DecisionBadRequest, nil},
		{"unterminated quote", operatorFP, `open "front`, DecisionBadRequest, nil},
		{"command fails", operatorFP, "jam", DecisionError, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotArgs = nil
			got := h.Decide(context.Background(), &Request{ConnID: "test", Peer: tt.peer, Payload: []byte(tt.payload)})
			if got != tt.want {
				t.Errorf("Decide(%q) = %v, want %v", tt.payload, got, tt.want)
			}
			if tt.wantArgs != nil && strings.Join(gotArgs, "|") != strings.Join(tt.wantArgs, "|") {
				t.Errorf("args = %q, want %q", gotArgs, tt.wantArgs)
			}
		})
	}

	if got := testutil.ToFloat64(m.Decisions.WithLabelValues("Granted")); got != 3 {
		t.Errorf("granted decisions = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.Decisions.WithLabelValues("Denied")); got != 2 {
		t.Errorf("denied decisions = %v, want 2", got)
	}
}

func TestCommandHandler_NilACLDenies(t *testing.T) {
	h := NewCommandHandler(CommandHandlerConfig{})
	h.Register("open", func(context.Context, *Request, []string) error {
		t.Error("command ran without an ACL")
		return nil
	})
	resp := h.Handle(context.Background(), &Request{Peer: operatorFP, Payload: []byte("open")})
	if d, err := ParseDecision(resp); err != nil || d != DecisionDenied {
		t.Errorf("Handle() = %v, %v, want Denied", d, err)
	}
}

func TestCommandHandler_Register(t *testing.T) {
	h := NewCommandHandler(CommandHandlerConfig{})
	noop := func(context.Context, *Request, []string) error { return nil }

	for _, name := range []string{"", "open door", "a,b", acl.WildcardCommand} {
		if err := h.Register(name, noop); !errors.Is(err, acl.ErrInvalidCommand) {
			t.Errorf("Register(%q) error = %v, want ErrInvalidCommand", name, err)
		}
	}
	h.Register("unlock", noop)
	h.Register("lock", noop)
	if got, want := h.Commands(), []string{"lock", "unlock"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Commands() = %v, want %v", got, want)
	}
}

func TestHandlerFunc(t *testing.T) {
	var h Handler = HandlerFunc(func(_ context.Context, req *Request) []byte {
		return append([]byte("echo:"), req.Payload...)
	})
	if got := string(h.Handle(context.Background(), &Request{Payload: []byte("hi")})); got != "echo:hi" {
		t.Errorf("Handle() = %q", got)
	}
}

func TestNewMetrics_Register(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := NewMetrics(reg)

	m.HandshakeSeconds.Observe(0.01)
	m.HandshakeFailures.WithLabelValues("IntegrityError").Inc()
	m.Frames.WithLabelValues(DirectionIn).Inc()
	m.Frames.WithLabelValues(DirectionOut).Inc()
	m.Decisions.WithLabelValues(DecisionGranted.String()).Inc()
	m.ActiveSessions.Set(2)
	m.Lockouts.Inc()

	n, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if n != 7 {
		t.Errorf("gathered %d series, want 7", n)
	}
	if n, _ := testutil.GatherAndCount(reg, "dacgate_frames_total"); n != 2 {
		t.Errorf("dacgate_frames_total series = %d, want 2", n)
	}
}
