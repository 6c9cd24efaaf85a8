package transport

import (
	"fmt"
	"io"
	"math/rand"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/transport/v3/deadline"
	"github.com/pion/transport/v3/test"
)

// Chunk kinds carried over the bridge. Every bridge packet starts with one.
const (
	chunkData byte = 0
	chunkEOF  byte = 1
)

// maxChunk bounds a single Write so it fits one bridge packet.
const maxChunk = 1 << 17

// NetworkCondition configures network behavior simulation.
type NetworkCondition struct {
	// DropRate is the probability of dropping a write (0.0 - 1.0).
	DropRate float64

	// DelayMin is the minimum delay to add to each write.
	DelayMin time.Duration

	// DelayMax is the maximum delay to add to each write.
	// Actual delay is uniformly distributed between DelayMin and DelayMax.
	DelayMax time.Duration

	// DuplicateRate is the probability of delivering a write twice (0.0 - 1.0).
	DuplicateRate float64
}

// Interceptor sees every chunk written into a pipe and returns the chunks
// to deliver in its place. Returning nil drops the chunk; returning it
// twice replays it; returning modified bytes tampers with it. from is the
// writing endpoint (0 or 1). chunk must not be retained unmodified; copy it.
type Interceptor func(from int, chunk []byte) [][]byte

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess enables automatic delivery in a background goroutine.
	// Default: true
	AutoProcess bool

	// ProcessInterval is how often the auto-processor checks for chunks.
	// Default: 1ms
	ProcessInterval time.Duration
}

// DefaultPipeConfig returns the default pipe configuration.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		AutoProcess:     true,
		ProcessInterval: 1 * time.Millisecond,
	}
}

// Pipe is an in-memory duplex byte stream between two endpoints, built on
// pion's test.Bridge. Each Write becomes one bridge packet; each endpoint
// buffers partial reads so the pipe behaves like a TCP connection.
//
// By default chunks are delivered in a background goroutine. Use
// NewPipeWithConfig with AutoProcess false and call Process for manual
// control.
type Pipe struct {
	bridge *test.Bridge
	ends   [2]*StreamConn

	mu              sync.RWMutex
	condition       NetworkCondition
	interceptor     Interceptor
	closed          bool
	rng             *rand.Rand
	autoProcess     bool
	processInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

// NewPipe creates a new pipe with auto-processing enabled.
func NewPipe() *Pipe {
	return NewPipeWithConfig(DefaultPipeConfig())
}

// NewPipeWithConfig creates a new pipe with the given configuration.
func NewPipeWithConfig(config PipeConfig) *Pipe {
	p := &Pipe{
		bridge:          test.NewBridge(),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		autoProcess:     config.AutoProcess,
		processInterval: config.ProcessInterval,
		stopCh:          make(chan struct{}),
	}
	if p.processInterval == 0 {
		p.processInterval = 1 * time.Millisecond
	}

	p.ends[0] = newStreamConn(p, 0, p.bridge.GetConn0())
	p.ends[1] = newStreamConn(p, 1, p.bridge.GetConn1())

	if p.autoProcess {
		p.startAutoProcess()
	}
	return p
}

func (p *Pipe) startAutoProcess() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.processInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.Process()
			}
		}
	}()
}

// AutoProcess returns whether auto-processing is enabled.
func (p *Pipe) AutoProcess() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.autoProcess
}

// SetCondition configures network condition simulation for both directions.
func (p *Pipe) SetCondition(cond NetworkCondition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.condition = cond
}

// Condition returns the current network condition configuration.
func (p *Pipe) Condition() NetworkCondition {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.condition
}

// SetInterceptor installs an interceptor for both directions. Nil removes it.
func (p *Pipe) SetInterceptor(i Interceptor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interceptor = i
}

// Conn0 returns endpoint 0.
func (p *Pipe) Conn0() *StreamConn {
	return p.ends[0]
}

// Conn1 returns endpoint 1.
func (p *Pipe) Conn1() *StreamConn {
	return p.ends[1]
}

// Tick delivers at most one chunk in each direction to a waiting reader.
// Returns the number of chunks delivered (0, 1, or 2).
func (p *Pipe) Tick() int {
	return p.bridge.Tick()
}

// Process delivers queued chunks until no waiting reader accepts more.
// Returns the number of chunks delivered.
func (p *Pipe) Process() int {
	count := 0
	for {
		n := p.Tick()
		if n == 0 {
			break
		}
		count += n
	}
	return count
}

// Close closes both endpoints and stops auto-processing.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.autoProcess {
		close(p.stopCh)
	}
	p.mu.Unlock()

	p.wg.Wait()

	_ = p.ends[0].Close()
	_ = p.ends[1].Close()

	var errs []error
	if err := p.bridge.GetConn0().Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.bridge.GetConn1().Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// push applies conditions and the interceptor, then queues the chunks.
func (p *Pipe) push(from int, chunk []byte) error {
	p.mu.RLock()
	cond := p.condition
	intercept := p.interceptor
	closed := p.closed
	p.mu.RUnlock()

	if closed {
		return net.ErrClosed
	}

	chunks := [][]byte{chunk}
	if intercept != nil {
		chunks = intercept(from, append([]byte(nil), chunk...))
	}

	if cond.DropRate > 0 && p.chance(cond.DropRate) {
		return nil
	}
	if cond.DelayMax > 0 {
		delay := cond.DelayMin
		if cond.DelayMax > cond.DelayMin {
			p.mu.Lock()
			delay += time.Duration(p.rng.Int63n(int64(cond.DelayMax - cond.DelayMin)))
			p.mu.Unlock()
		}
		if delay > 0 {
			time.Sleep(delay)
		}
	}
	if cond.DuplicateRate > 0 && p.chance(cond.DuplicateRate) && len(chunks) > 0 {
		chunks = append(chunks, chunks[len(chunks)-1])
	}

	conn := p.bridge.GetConn0()
	if from == 1 {
		conn = p.bridge.GetConn1()
	}
	for _, c := range chunks {
		packet := make([]byte, 1+len(c))
		packet[0] = chunkData
		copy(packet[1:], c)
		if _, err := conn.Write(packet); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipe) chance(rate float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64() < rate
}

// PipeAddr implements net.Addr for pipe endpoints.
type PipeAddr struct {
	ID   int    // Endpoint ID (0 or 1)
	Name string // Optional pipe name
}

// Network returns "pipe".
func (a PipeAddr) Network() string { return "pipe" }

// String returns a string representation of the address.
func (a PipeAddr) String() string {
	if a.Name != "" {
		return fmt.Sprintf("pipe:%s:%d", a.Name, a.ID)
	}
	return fmt.Sprintf("pipe:%d", a.ID)
}

// StreamConn is one endpoint of a Pipe. It implements net.Conn.
//
// Close delivers end-of-stream to the peer after any data already written,
// so the peer's Read returns io.EOF once it has drained the pipe.
type StreamConn struct {
	pipe  *Pipe
	id    int
	conn  net.Conn
	local PipeAddr
	peer  PipeAddr

	in     chan []byte
	done   chan struct{}
	closed atomic.Bool

	readDeadline  *deadline.Deadline
	writeDeadline *deadline.Deadline

	rmu     sync.Mutex
	pending []byte
	eof     bool
}

func newStreamConn(p *Pipe, id int, conn net.Conn) *StreamConn {
	c := &StreamConn{
		pipe:          p,
		id:            id,
		conn:          conn,
		local:         PipeAddr{ID: id},
		peer:          PipeAddr{ID: 1 - id},
		in:            make(chan []byte),
		done:          make(chan struct{}),
		readDeadline:  deadline.New(),
		writeDeadline: deadline.New(),
	}
	go c.pump()
	return c
}

// pump keeps a reader parked on the bridge so Tick can always deliver.
func (c *StreamConn) pump() {
	defer close(c.in)
	buf := make([]byte, maxChunk+1)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		packet := append([]byte(nil), buf[:n]...)
		select {
		case c.in <- packet:
		case <-c.done:
			return
		}
	}
}

// Read reads buffered stream bytes, waiting for the next chunk when the
// buffer is empty.
func (c *StreamConn) Read(b []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	for len(c.pending) == 0 {
		if c.closed.Load() {
			return 0, net.ErrClosed
		}
		if c.eof {
			return 0, io.EOF
		}
		select {
		case packet, ok := <-c.in:
			if !ok {
				c.eof = true
				continue
			}
			if packet[0] == chunkEOF {
				c.eof = true
				continue
			}
			c.pending = packet[1:]
		case <-c.done:
			return 0, net.ErrClosed
		case <-c.readDeadline.Done():
			return 0, os.ErrDeadlineExceeded
		}
	}

	n := copy(b, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write sends b to the peer as one chunk.
func (c *StreamConn) Write(b []byte) (int, error) {
	if c.closed.Load() {
		return 0, net.ErrClosed
	}
	select {
	case <-c.writeDeadline.Done():
		return 0, os.ErrDeadlineExceeded
	default:
	}
	if len(b) > maxChunk {
		return 0, fmt.Errorf("transport: write of %d bytes exceeds pipe chunk size", len(b))
	}
	if err := c.pipe.push(c.id, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Close signals end-of-stream to the peer and unblocks local reads.
func (c *StreamConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	_, _ = c.conn.Write([]byte{chunkEOF})
	close(c.done)
	return nil
}

// LocalAddr returns the local network address.
func (c *StreamConn) LocalAddr() net.Addr {
	return c.local
}

// RemoteAddr returns the remote network address.
func (c *StreamConn) RemoteAddr() net.Addr {
	return c.peer
}

// SetDeadline sets the read and write deadlines.
func (c *StreamConn) SetDeadline(t time.Time) error {
	c.readDeadline.Set(t)
	c.writeDeadline.Set(t)
	return nil
}

// SetReadDeadline sets the read deadline.
func (c *StreamConn) SetReadDeadline(t time.Time) error {
	c.readDeadline.Set(t)
	return nil
}

// SetWriteDeadline sets the write deadline.
func (c *StreamConn) SetWriteDeadline(t time.Time) error {
	c.writeDeadline.Set(t)
	return nil
}

// Verify StreamConn implements net.Conn.
var _ net.Conn = (*StreamConn)(nil)
