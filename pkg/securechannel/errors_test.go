package securechannel

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/backkem/dacgate/pkg/crypto"
	"github.com/backkem/dacgate/pkg/message"
	"github.com/backkem/dacgate/pkg/session"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{message.ErrMACMismatch, KindIntegrity},
		{message.ErrSequenceMismatch, KindIntegrity},
		{message.ErrLengthMismatch, KindIntegrity},
		{message.ErrInvalidLength, KindProtocol},
		{message.ErrRecordTooLarge, KindProtocol},
		{message.ErrEmptyRecord, KindProtocol},
		{message.ErrCounterExhausted, KindConfiguration},
		{crypto.ErrInvalidPublicKey, KindProtocol},
		{crypto.ErrInvalidSignature, KindAuthentication},
		{message.ErrPayloadTooLarge, KindConfiguration},
		{session.ErrContextClosed, KindConfiguration},
		{io.EOF, KindTransport},
		{errors.New("connection reset"), KindTransport},
		{fmt.Errorf("wrapped: %w", message.ErrMACMismatch), KindIntegrity},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			e := classify(opReceive, tt.err)
			if e.Kind != tt.want {
				t.Errorf("classify(%v) = %s, want %s", tt.err, e.Kind, tt.want)
			}
			if !errors.Is(e, tt.err) {
				t.Error("classified error does not wrap the cause")
			}
		})
	}

	// Already classified errors pass through.
	orig := newError(KindAuthentication, opAuthenticate, ErrIdentityRejected)
	if got := classify(opSend, fmt.Errorf("ctx: %w", orig)); got != orig {
		t.Errorf("classify() = %v, want the original error", got)
	}
}

func TestError_Format(t *testing.T) {
	err := newError(KindIntegrity, opReceive, message.ErrMACMismatch)
	want := "securechannel: receive: IntegrityError: " + message.ErrMACMismatch.Error()
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Errorf("KindOf(plain) = %s, want UnknownError", got)
	}
	if got := KindOf(nil); got != KindUnknown {
		t.Errorf("KindOf(nil) = %s, want UnknownError", got)
	}
	wrapped := fmt.Errorf("gateway: %w", newError(KindProtocol, opAuthenticate, ErrMalformedMessage))
	if got := KindOf(wrapped); got != KindProtocol {
		t.Errorf("KindOf(wrapped) = %s, want ProtocolError", got)
	}
}

func TestIsAttackSignal(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindTransport, false},
		{KindProtocol, false},
		{KindAuthentication, true},
		{KindIntegrity, true},
		{KindConfiguration, false},
	}
	for _, tt := range tests {
		if got := IsAttackSignal(newError(tt.kind, opReceive, io.EOF)); got != tt.want {
			t.Errorf("IsAttackSignal(%s) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindTransport, "TransportError"},
		{KindProtocol, "ProtocolError"},
		{KindAuthentication, "AuthenticationError"},
		{KindIntegrity, "IntegrityError"},
		{KindConfiguration, "ConfigurationError"},
		{KindUnknown, "UnknownError"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestState(t *testing.T) {
	tests := []struct {
		state State
		want  string
		ready bool
	}{
		{StateInit, "Init", false},
		{StateKeyExchange, "KeyExchange", false},
		{StateVerify, "Verify", false},
		{StateFinish, "Finish", false},
		{StateDone, "Done", true},
		{StateFailed, "Failed", false},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
		if got := tt.state.Ready(); got != tt.ready {
			t.Errorf("%s.Ready() = %v, want %v", tt.state, got, tt.ready)
		}
	}
}
