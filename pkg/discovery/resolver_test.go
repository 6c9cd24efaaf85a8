package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/backkem/dacgate/pkg/crypto"
)

func newMockResolver(t *testing.T) (*Resolver, *MockMDNSResolver) {
	t.Helper()
	mock := NewMockMDNSResolver()
	r, err := NewResolver(ResolverConfig{MDNSResolver: mock, BrowseTimeout: time.Second, LookupTimeout: time.Second})
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	return r, mock
}

func collect(t *testing.T, ch <-chan ResolvedService) []ResolvedService {
	t.Helper()
	var out []ResolvedService
	timeout := time.After(2 * time.Second)
	for {
		select {
		case svc, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, svc)
		case <-timeout:
			t.Fatal("browse did not finish")
		}
	}
}

func TestResolver_Browse(t *testing.T) {
	r, mock := newMockResolver(t)

	other := GatewayTXT{Fingerprint: crypto.Fingerprint([]byte("rear")), Suite: crypto.SuiteP256}
	mock.RegisterService(ServiceGateway, MockGatewayService("front", 9998, net.ParseIP("192.168.1.20"), testTXT()))
	mock.RegisterService(ServiceGateway, MockGatewayService("rear", 9999, net.ParseIP("fd00::2"), other))
	mock.RegisterService(ServiceGateway, MockGatewayService("front", 9998, net.ParseIP("192.168.1.20"), testTXT()))

	broken := MockGatewayService("broken", 9998, net.ParseIP("192.168.1.30"), testTXT())
	broken.Text = []string{"fp=zz"}
	mock.RegisterService(ServiceGateway, broken)
	mock.RegisterService("_other._tcp", MockGatewayService("elsewhere", 1, net.ParseIP("10.0.0.1"), testTXT()))

	ch, err := r.Browse(context.Background())
	if err != nil {
		t.Fatalf("Browse() error = %v", err)
	}
	got := collect(t, ch)
	if len(got) != 2 {
		t.Fatalf("Browse() found %d gateways, want 2: %+v", len(got), got)
	}

	front, rear := got[0], got[1]
	if front.InstanceName != "front" || front.TXT.Fingerprint != testFP || front.Addr() != "192.168.1.20:9998" {
		t.Errorf("front = %+v", front)
	}
	if rear.InstanceName != "rear" || rear.TXT.Suite != crypto.SuiteP256 || rear.Addr() != "[fd00::2]:9999" {
		t.Errorf("rear = %+v", rear)
	}
}

func TestResolver_BrowseError(t *testing.T) {
	r, mock := newMockResolver(t)
	mock.FailWith(errors.New("no multicast"))
	if _, err := r.Browse(context.Background()); err == nil {
		t.Error("Browse() succeeded with a failing resolver")
	}
}

func TestResolver_BrowseCanceled(t *testing.T) {
	r, mock := newMockResolver(t)
	mock.RegisterService(ServiceGateway, MockGatewayService("a", 1, net.ParseIP("10.0.0.1"), testTXT()))
	mock.RegisterService(ServiceGateway, MockGatewayService("b", 1, net.ParseIP("10.0.0.2"), testTXT()))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := r.Browse(ctx)
	if err != nil {
		t.Fatalf("Browse() error = %v", err)
	}
	cancel()
	collect(t, ch)
}

func TestResolver_Lookup(t *testing.T) {
	r, mock := newMockResolver(t)
	mock.RegisterService(ServiceGateway, MockGatewayService("front", 9998, net.ParseIP("10.0.0.5"), testTXT()))

	svc, err := r.Lookup(context.Background(), "front")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if svc.Addr() != "10.0.0.5:9998" || svc.TXT.Fingerprint != testFP {
		t.Errorf("Lookup() = %+v", svc)
	}

	if _, err := r.Lookup(context.Background(), "rear"); !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("Lookup(missing) error = %v, want ErrServiceNotFound", err)
	}
	if _, err := r.Lookup(context.Background(), ""); !errors.Is(err, ErrInvalidInstanceName) {
		t.Errorf("Lookup(\"\") error = %v, want ErrInvalidInstanceName", err)
	}
}

func TestResolvedService_Addr(t *testing.T) {
	var empty ResolvedService
	if empty.Addr() != "" || empty.PreferredIP() != nil {
		t.Error("empty service has an address")
	}
}
