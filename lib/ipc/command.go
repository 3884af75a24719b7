// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/doublejinitials/rover-research/lib/codec"
)

// commandTimeout bounds a Send whose context carries no deadline of
// its own. Commands are acknowledged synchronously by a local process,
// so anything slower than this means the child is wedged.
const commandTimeout = 10 * time.Second

// CommandHandler produces the acknowledgement for one decoded command.
// It runs on the server's connection goroutine; a slow handler delays
// the next command, which is intentional, because commands against a
// single pipeline must not be reordered.
type CommandHandler func(Command) Response

// CommandServer is the child side of the command plane. It serves one
// connection at a time: the child runs a single pipeline, so a single
// commanding parent is the contract, and a second dialer simply waits
// in the listen backlog until the first hangs up.
type CommandServer struct {
	logger   *slog.Logger
	listener net.Listener
	handler  CommandHandler

	mu     sync.Mutex
	conn   net.Conn
	closed bool

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewCommandServer starts serving commands on listener, which the
// caller binds with Listen.
func NewCommandServer(listener net.Listener, handler CommandHandler, logger *slog.Logger) *CommandServer {
	s := &CommandServer{
		logger:   logger,
		listener: listener,
		handler:  handler,
	}
	s.wg.Add(1)
	go s.serve()
	return s
}

func (s *CommandServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accepting command connection", "error", err)
			continue
		}
		if !s.adopt(conn) {
			conn.Close()
			return
		}
		s.serveConn(conn)
		s.release(conn)
	}
}

func (s *CommandServer) serveConn(conn net.Conn) {
	decoder := codec.NewDecoder(conn)
	encoder := codec.NewEncoder(conn)
	for {
		var command Command
		if err := decoder.Decode(&command); err != nil {
			// EOF is the parent hanging up; ErrClosed is our own
			// Close.
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("decoding command", "error", err)
			// The stream position is unrecoverable after a bad frame:
			// answer once, then drop the connection so the parent
			// redials.
			if err := encoder.Encode(Response{OK: false, Error: "invalid command"}); err != nil {
				s.logger.Error("writing command response", "error", err)
			}
			return
		}
		s.logger.Info("command received", "kind", command.Kind)
		response := s.handler(command)
		if err := encoder.Encode(response); err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Error("writing command response", "error", err)
			}
			return
		}
	}
}

// adopt records conn as the connection being served, or reports that
// the server has closed.
func (s *CommandServer) adopt(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conn = conn
	return true
}

func (s *CommandServer) release(conn net.Conn) {
	conn.Close()
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
}

// Close stops serving, disconnects the current parent if one is
// connected, and waits for the serve goroutine to finish.
func (s *CommandServer) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.listener.Close()
		if s.conn != nil {
			s.conn.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
	})
}

// CommandClient sends commands to one child over a persistent
// connection. It dials lazily on the first Send, because the child's
// socket does not exist until the child has started. After a transport
// error the failing Send reports it and drops the connection; the next
// Send redials, so a restarted child costs exactly one failed command.
//
// Safe for concurrent use; Sends are serialized.
type CommandClient struct {
	socketPath string

	mu      sync.Mutex
	conn    net.Conn
	encoder *codec.Encoder
	decoder *codec.Decoder
}

// NewCommandClient returns a client for the child command socket at
// socketPath. No connection is made until the first Send.
func NewCommandClient(socketPath string) *CommandClient {
	return &CommandClient{socketPath: socketPath}
}

// Send delivers one command and waits for its acknowledgement. The
// context's deadline bounds the whole exchange; without one a default
// applies. A Response with OK false is a rejection by the child, not a
// transport error, and leaves the connection usable.
func (c *CommandClient) Send(ctx context.Context, command Command) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		conn, err := (&net.Dialer{}).DialContext(ctx, "unix", c.socketPath)
		if err != nil {
			return Response{}, fmt.Errorf("connecting to child command socket %s: %w", c.socketPath, err)
		}
		c.conn = conn
		c.encoder = codec.NewEncoder(conn)
		c.decoder = codec.NewDecoder(conn)
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(commandTimeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		c.reset()
		return Response{}, fmt.Errorf("setting command deadline: %w", err)
	}
	if err := c.encoder.Encode(command); err != nil {
		c.reset()
		return Response{}, fmt.Errorf("sending %s command: %w", command.Kind, err)
	}
	var response Response
	if err := c.decoder.Decode(&response); err != nil {
		c.reset()
		return Response{}, fmt.Errorf("reading %s acknowledgement: %w", command.Kind, err)
	}
	return response, nil
}

// reset drops the cached connection so the next Send redials. Callers
// must hold mu.
func (c *CommandClient) reset() {
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = nil
	c.encoder = nil
	c.decoder = nil
}

// Close disconnects from the child. A later Send redials.
func (c *CommandClient) Close() {
	c.mu.Lock()
	c.reset()
	c.mu.Unlock()
}
