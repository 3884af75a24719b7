// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/doublejinitials/rover-research/lib/clock"
)

// State is the connection state of a Channel, observable on States().
type State int

const (
	// StateDisconnected means no machinery is running: the state
	// before Open and after Close.
	StateDisconnected State = iota

	// StateConnecting means the channel is dialing or awaiting an
	// accept.
	StateConnecting

	// StateConnected means a peer is attached and Send will enqueue.
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

var (
	// ErrNotConnected is returned by Send when no peer is attached.
	ErrNotConnected = errors.New("channel: no connected peer")

	// ErrClosed is returned by Send and Open after Close.
	ErrClosed = errors.New("channel: closed")

	// ErrPayloadTooLarge is returned by Send for payloads over the
	// frame size limit.
	ErrPayloadTooLarge = errors.New("channel: payload exceeds maximum frame size")
)

// DefaultHeartbeatInterval is the ping cadence when Config leaves
// HeartbeatInterval zero.
const DefaultHeartbeatInterval = 2 * time.Second

// silentIntervals is how many heartbeat intervals a peer may go
// without sending any frame before the connection is declared dead.
const silentIntervals = 3

// Reconnect backoff for the client role. Starts at initialBackoff and
// doubles on each consecutive dial failure, capped at maxBackoff.
// Resets on a successful connection.
const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// dialTimeout bounds a single client dial attempt.
const dialTimeout = 10 * time.Second

// Queue capacities. Sends beyond sendQueueSize block the caller;
// inbound frames beyond inboundQueueSize block the reader, pushing
// backpressure onto TCP.
const (
	sendQueueSize    = 64
	inboundQueueSize = 256
	messageQueueSize = 64
	stateQueueSize   = 16
)

type role int

const (
	roleClient role = iota
	roleServer
)

func (r role) String() string {
	if r == roleServer {
		return "server"
	}
	return "client"
}

// Config describes one control channel. All fields except
// HeartbeatInterval are required.
type Config struct {
	// Name identifies the channel in log records ("main", "drive").
	Name string

	// Address is the TCP address: the listen address for a server
	// ("0.0.0.0:5508"), the remote address for a client
	// ("192.168.1.20:5508").
	Address string

	Logger *slog.Logger
	Clock  clock.Clock

	// HeartbeatInterval overrides the ping cadence. Zero means
	// DefaultHeartbeatInterval.
	HeartbeatInterval time.Duration
}

// Channel is one ordered, reliable, message-oriented connection in
// either role. Create it with Client or Server, start it with Open.
type Channel struct {
	name      string
	address   string
	role      role
	logger    *slog.Logger
	clock     clock.Clock
	heartbeat time.Duration

	messages chan []byte
	states   chan State
	inbound  chan delayedMessage
	done     chan struct{}

	rtt atomic.Int64 // nanoseconds; -1 until the first pong

	mu       sync.Mutex
	state    State
	delay    time.Duration
	peer     *peerConn
	started  bool
	closed   bool
	listener net.Listener

	closeOnce sync.Once
	wg        sync.WaitGroup

	// Backoff bounds, narrowed in tests.
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// delayedMessage is one inbound payload waiting in the simulated-delay
// queue.
type delayedMessage struct {
	payload []byte
	due     time.Time
}

// peerConn is one live TCP connection with its outbound queues. The
// socket is written only by the connection's writer goroutine.
type peerConn struct {
	id        string
	conn      net.Conn
	sendQueue chan []byte
	pongQueue chan []byte
	done      chan struct{}
	closeOnce sync.Once

	lastInbound atomic.Int64 // UnixNano of the most recent inbound frame
}

func (p *peerConn) close() {
	p.closeOnce.Do(func() { close(p.done) })
}

// Client returns a channel that dials address and re-dials with
// exponential backoff whenever the connection drops.
func Client(config Config) *Channel {
	return newChannel(config, roleClient)
}

// Server returns a channel that listens on address and serves one
// peer at a time. A new accept while a peer is connected replaces the
// old peer.
func Server(config Config) *Channel {
	return newChannel(config, roleServer)
}

func newChannel(config Config, r role) *Channel {
	heartbeat := config.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	c := &Channel{
		name:           config.Name,
		address:        config.Address,
		role:           r,
		logger:         config.Logger.With("channel", config.Name, "role", r.String()),
		clock:          config.Clock,
		heartbeat:      heartbeat,
		messages:       make(chan []byte, messageQueueSize),
		states:         make(chan State, stateQueueSize),
		inbound:        make(chan delayedMessage, inboundQueueSize),
		done:           make(chan struct{}),
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
	c.rtt.Store(-1)
	return c
}

// Open starts the connect/accept machinery and returns once it is
// running; connection progress is reported on States(). For a server
// the listen error is returned synchronously; client dial failures
// are retried, never returned. Cancelling ctx closes the channel.
func (c *Channel) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return errors.New("channel: already open")
	}
	if c.address == "" {
		c.mu.Unlock()
		return errors.New("channel: no address configured")
	}
	c.started = true

	if c.role == roleServer {
		listener, err := net.Listen("tcp", c.address)
		if err != nil {
			c.started = false
			c.mu.Unlock()
			return fmt.Errorf("listen on %s: %w", c.address, err)
		}
		c.listener = listener
	}
	c.mu.Unlock()

	c.setState(StateConnecting)

	c.wg.Add(1)
	go c.runDelayPump()

	switch c.role {
	case roleClient:
		c.wg.Add(1)
		go c.runClient(ctx)
	case roleServer:
		c.logger.Info("listening", "address", c.listener.Addr().String())
		c.wg.Add(1)
		go c.runServer()
	}

	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()
	return nil
}

// Address returns the channel's TCP address. For a listening server
// this is the bound address, so a ":0" configuration reports the real
// port.
func (c *Channel) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listener != nil {
		return c.listener.Addr().String()
	}
	return c.address
}

// Messages returns the inbound payload stream, delivered in receive
// order. Closed by Close.
func (c *Channel) Messages() <-chan []byte { return c.messages }

// States returns connection-state transitions. If a consumer falls
// behind, the oldest pending transition is dropped; State() always
// holds the current value. Closed by Close.
func (c *Channel) States() <-chan State { return c.states }

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RTT returns the most recent heartbeat round trip, negative until
// the first measurement. The value survives reconnects; it is the
// last link quality observed, not a per-connection counter.
func (c *Channel) RTT() time.Duration {
	return time.Duration(c.rtt.Load())
}

// SetSimulatedDelay holds every subsequently received message for d
// between receipt and delivery on Messages(). Delivery order never
// changes, even across a delay change. Zero or negative restores
// direct delivery.
func (c *Channel) SetSimulatedDelay(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.mu.Lock()
	c.delay = d
	c.mu.Unlock()
	c.logger.Info("simulated delay set", "delay", d)
}

func (c *Channel) simulatedDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delay
}

// Send enqueues one message for the connected peer. Messages are
// written by a single writer goroutine in Send order. The payload is
// not copied; callers must not modify it after Send returns.
func (c *Channel) Send(payload []byte) error {
	if len(payload) > maxPayloadLength {
		return ErrPayloadTooLarge
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	peer := c.peer
	c.mu.Unlock()
	if peer == nil {
		return ErrNotConnected
	}
	select {
	case peer.sendQueue <- payload:
		return nil
	case <-peer.done:
		return ErrNotConnected
	case <-c.done:
		return ErrClosed
	}
}

// Close tears down the connection, the listener, and every goroutine,
// then closes Messages() and States(). Safe to call more than once.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		listener := c.listener
		peer := c.peer
		c.mu.Unlock()

		close(c.done)
		if listener != nil {
			listener.Close()
		}
		if peer != nil {
			peer.close()
		}
		c.wg.Wait()

		c.setState(StateDisconnected)
		close(c.messages)
		close(c.states)
		c.logger.Info("closed")
	})
	return nil
}

// setState records a transition and publishes it on States().
// Unchanged states are not republished. When the buffer is full the
// oldest pending transition is dropped so the connection machinery
// never blocks on a slow observer.
func (c *Channel) setState(state State) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()

	for {
		select {
		case c.states <- state:
			return
		default:
		}
		select {
		case <-c.states:
		default:
		}
	}
}

// runClient dials in a loop with exponential backoff between failed
// attempts, servicing one connection at a time until the channel
// closes.
func (c *Channel) runClient(ctx context.Context) {
	defer c.wg.Done()

	backoff := c.initialBackoff
	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.setState(StateConnecting)
		dialer := &net.Dialer{Timeout: dialTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", c.address)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("dial failed, retrying",
				"address", c.address,
				"backoff", backoff,
				"error", err,
			)
			select {
			case <-c.clock.After(backoff):
			case <-c.done:
				return
			}
			backoff *= 2
			if backoff > c.maxBackoff {
				backoff = c.maxBackoff
			}
			continue
		}

		backoff = c.initialBackoff
		c.runConn(conn)
	}
}

// runServer accepts connections for the channel's lifetime. Each new
// peer replaces the previous one.
func (c *Channel) runServer() {
	defer c.wg.Done()

	for {
		conn, err := c.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("accept failed", "error", err)
			continue
		}

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.runConn(conn)
		}()
	}
}

// runConn services one live connection until it dies or is replaced.
// Blocks for the connection lifetime.
func (c *Channel) runConn(conn net.Conn) {
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}

	peer := &peerConn{
		id:        uuid.NewString(),
		conn:      conn,
		sendQueue: make(chan []byte, sendQueueSize),
		pongQueue: make(chan []byte, 4),
		done:      make(chan struct{}),
	}
	peer.lastInbound.Store(c.clock.Now().UnixNano())

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return
	}
	previous := c.peer
	c.peer = peer
	c.mu.Unlock()

	if previous != nil {
		c.logger.Info("replacing connected peer", "old_connection_id", previous.id)
		previous.close()
	}

	logger := c.logger.With("connection_id", peer.id, "remote", conn.RemoteAddr().String())
	logger.Info("peer connected")
	c.setState(StateConnected)

	var pumps sync.WaitGroup

	// Writer: the only goroutine that writes to the socket. Drains
	// application sends and pong echoes, and pings on the heartbeat.
	pumps.Add(1)
	go func() {
		defer pumps.Done()
		defer peer.close()
		ticker := c.clock.NewTicker(c.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case payload := <-peer.sendQueue:
				if err := writeFrame(conn, frameData, payload); err != nil {
					logger.Warn("write failed", "error", err)
					return
				}
			case payload := <-peer.pongQueue:
				if err := writeFrame(conn, framePong, payload); err != nil {
					logger.Warn("write failed", "error", err)
					return
				}
			case <-ticker.C:
				var stamp [8]byte
				binary.BigEndian.PutUint64(stamp[:], uint64(c.clock.Now().UnixNano()))
				if err := writeFrame(conn, framePing, stamp[:]); err != nil {
					logger.Warn("write failed", "error", err)
					return
				}
			case <-peer.done:
				return
			}
		}
	}()

	// Reader: decodes frames, echoes pings, measures pongs, and
	// queues data payloads for delivery.
	pumps.Add(1)
	go func() {
		defer pumps.Done()
		defer peer.close()
		for {
			kind, payload, err := readFrame(conn)
			if err != nil {
				select {
				case <-peer.done: // socket closed during teardown
				default:
					logger.Warn("read failed", "error", err)
				}
				return
			}
			peer.lastInbound.Store(c.clock.Now().UnixNano())

			switch kind {
			case frameData:
				item := delayedMessage{
					payload: payload,
					due:     c.clock.Now().Add(c.simulatedDelay()),
				}
				select {
				case c.inbound <- item:
				case <-c.done:
					return
				}
			case framePing:
				select {
				case peer.pongQueue <- payload:
				default:
					// Writer saturated; the peer's next ping will
					// measure instead.
				}
			case framePong:
				if len(payload) == 8 {
					sent := int64(binary.BigEndian.Uint64(payload))
					c.rtt.Store(c.clock.Now().UnixNano() - sent)
				}
			default:
				logger.Error("unknown frame kind, dropping connection", "kind", kind)
				return
			}
		}
	}()

	// Liveness: a peer that has sent nothing for silentIntervals
	// heartbeats is dead. Covers half-open TCP connections that a
	// blocked read never notices.
	pumps.Add(1)
	go func() {
		defer pumps.Done()
		ticker := c.clock.NewTicker(c.heartbeat)
		defer ticker.Stop()
		deadline := (time.Duration(silentIntervals) * c.heartbeat).Nanoseconds()
		for {
			select {
			case <-ticker.C:
				silent := c.clock.Now().UnixNano() - peer.lastInbound.Load()
				if silent > deadline {
					logger.Warn("peer silent, dropping connection",
						"silent", time.Duration(silent).String())
					peer.close()
					return
				}
			case <-peer.done:
				return
			}
		}
	}()

	<-peer.done
	conn.Close()
	pumps.Wait()

	c.mu.Lock()
	wasCurrent := c.peer == peer
	if wasCurrent {
		c.peer = nil
	}
	closed := c.closed
	c.mu.Unlock()

	logger.Info("peer disconnected")
	if wasCurrent && !closed {
		c.setState(StateDisconnected)
		c.setState(StateConnecting)
	}
}

// runDelayPump releases inbound payloads to Messages() once their due
// time arrives. Everything flows through the same FIFO, so changing
// the simulated delay never reorders delivery.
func (c *Channel) runDelayPump() {
	defer c.wg.Done()
	for {
		select {
		case item := <-c.inbound:
			if wait := item.due.Sub(c.clock.Now()); wait > 0 {
				select {
				case <-c.clock.After(wait):
				case <-c.done:
					return
				}
			}
			select {
			case c.messages <- item.payload:
			case <-c.done:
				return
			}
		case <-c.done:
			return
		}
	}
}
