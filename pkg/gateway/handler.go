package gateway

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/backkem/dacgate/pkg/acl"
	"github.com/google/shlex"
	"github.com/pion/logging"
)

// Request is one request frame from an authenticated peer.
type Request struct {
	// ConnID identifies the connection in logs.
	ConnID string

	// Peer is the fingerprint of the peer's identity key.
	Peer string

	// Payload is the decrypted request frame.
	Payload []byte
}

// Handler answers requests. The returned bytes are sent back as one frame;
// they must fit in a frame.
type Handler interface {
	Handle(ctx context.Context, req *Request) []byte
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *Request) []byte

// Handle calls f(ctx, req).
func (f HandlerFunc) Handle(ctx context.Context, req *Request) []byte {
	return f(ctx, req)
}

// CommandFunc runs a granted command. A non-nil error becomes
// DecisionError.
type CommandFunc func(ctx context.Context, req *Request, args []string) error

// CommandHandlerConfig configures a CommandHandler.
type CommandHandlerConfig struct {
	// ACL decides which peers may run which commands. A nil ACL denies
	// everything.
	ACL *acl.Checker

	// Metrics counts decisions. Optional.
	Metrics *Metrics

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// CommandHandler dispatches text commands after an ACL check.
type CommandHandler struct {
	acl     *acl.Checker
	metrics *Metrics
	log     logging.LeveledLogger

	mu       sync.RWMutex
	commands map[string]CommandFunc
}

// NewCommandHandler creates a handler with no commands.
func NewCommandHandler(config CommandHandlerConfig) *CommandHandler {
	h := &CommandHandler{
		acl:      config.ACL,
		metrics:  config.Metrics,
		commands: make(map[string]CommandFunc),
	}
	if config.LoggerFactory != nil {
		h.log = config.LoggerFactory.NewLogger("gateway")
	}
	return h
}

// Register adds a command. The ACL decides who may run it; use
// acl.Checker.Require to set its privilege.
func (h *CommandHandler) Register(name string, fn CommandFunc) error {
	if err := acl.ValidateCommand(name); err != nil {
		return err
	}
	if name == acl.WildcardCommand {
		return fmt.Errorf("%w: %q", acl.ErrInvalidCommand, name)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands[name] = fn
	return nil
}

// Commands returns the registered command names in sorted order.
func (h *CommandHandler) Commands() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.commands))
	for name := range h.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decide parses and runs one request and returns its decision.
func (h *CommandHandler) Decide(ctx context.Context, req *Request) Decision {
	d := h.decide(ctx, req)
	if h.metrics != nil {
		h.metrics.Decisions.WithLabelValues(d.String()).Inc()
	}
	return d
}

func (h *CommandHandler) decide(ctx context.Context, req *Request) Decision {
	args, err := shlex.Split(string(req.Payload))
	if err != nil || len(args) == 0 {
		return DecisionBadRequest
	}
	name := args[0]

	h.mu.RLock()
	fn, ok := h.commands[name]
	h.mu.RUnlock()
	if !ok {
		return DecisionUnknownCommand
	}

	if h.acl == nil || h.acl.Check(req.Peer, name) != acl.ResultAllowed {
		if h.log != nil {
			h.log.Infof("[%s] denied %q for %s", req.ConnID, name, req.Peer)
		}
		return DecisionDenied
	}

	if err := fn(ctx, req, args[1:]); err != nil {
		if h.log != nil {
			h.log.Warnf("[%s] command %q failed: %v", req.ConnID, name, err)
		}
		return DecisionError
	}
	if h.log != nil {
		h.log.Infof("[%s] granted %q for %s", req.ConnID, name, req.Peer)
	}
	return DecisionGranted
}

// Handle implements Handler.
func (h *CommandHandler) Handle(ctx context.Context, req *Request) []byte {
	return h.Decide(ctx, req).Bytes()
}
