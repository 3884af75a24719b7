// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/doublejinitials/rover-research/lib/codec"
	"github.com/doublejinitials/rover-research/lib/media"
)

// notifyQueueSize bounds how many notifications a child can have in
// flight before new ones are dropped. The parent drains the stream
// continuously, so the queue only fills when the parent has stalled,
// and stalling the pipeline supervisor to wait for it would be worse
// than losing a status message.
const notifyQueueSize = 64

// ChildNotifier delivers fire-and-forget status notifications from a
// media streamer to its parent's notification socket. Every method
// returns immediately: delivery happens on a background writer, and a
// full queue drops the message rather than blocking the caller.
type ChildNotifier struct {
	logger *slog.Logger
	source Source
	conn   net.Conn
	queue  chan Notification
	quit   chan struct{}
	done   chan struct{}

	closeOnce sync.Once
}

var _ media.Notifier = (*ChildNotifier)(nil)

// NewChildNotifier connects to the parent's notification socket and
// starts the background writer. Every notification it sends is stamped
// with source. A dial failure is fatal for the caller: a streamer that
// cannot reach its parent has no way to report anything.
func NewChildNotifier(socketPath string, source Source, logger *slog.Logger) (*ChildNotifier, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to parent notification socket %s: %w", socketPath, err)
	}
	n := &ChildNotifier{
		logger: logger,
		source: source,
		conn:   conn,
		queue:  make(chan Notification, notifyQueueSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go n.writeLoop()
	return n, nil
}

// ChildReady reports that the child is idle with no pipeline running.
func (n *ChildNotifier) ChildReady() {
	n.enqueue(Notification{Kind: KindReady})
}

// ChildStreaming reports that a pipeline reached playback.
func (n *ChildNotifier) ChildStreaming() {
	n.enqueue(Notification{Kind: KindStreaming})
}

// ChildError reports a pipeline failure.
func (n *ChildNotifier) ChildError(message string) {
	n.enqueue(Notification{Kind: KindError, Message: message})
}

// ChildLogInfo forwards a log line for the parent's journal.
func (n *ChildNotifier) ChildLogInfo(tag, message string) {
	n.enqueue(Notification{Kind: KindLog, Tag: tag, Message: message})
}

func (n *ChildNotifier) enqueue(notification Notification) {
	notification.Source = n.source
	select {
	case n.queue <- notification:
	case <-n.quit:
		// Closed; nothing left to deliver to.
	default:
		n.logger.Warn("notification queue full, dropping", "kind", notification.Kind)
	}
}

func (n *ChildNotifier) writeLoop() {
	defer close(n.done)
	encoder := codec.NewEncoder(n.conn)
	for {
		select {
		case notification := <-n.queue:
			if err := encoder.Encode(notification); err != nil {
				if !errors.Is(err, net.ErrClosed) {
					n.logger.Error("writing notification", "error", err)
				}
				return
			}
		case <-n.quit:
			return
		}
	}
}

// Close stops the writer and disconnects from the parent. Queued but
// unsent notifications are discarded.
func (n *ChildNotifier) Close() {
	n.closeOnce.Do(func() {
		close(n.quit)
		// Close the connection before waiting so a writer blocked in
		// Encode is forced out.
		n.conn.Close()
		<-n.done
	})
}

// NotificationServer is the parent side of the notification plane. It
// accepts one connection per child and invokes the handler for every
// decoded notification.
//
// The handler runs on the reader goroutine of whichever child sent the
// notification, so handlers touching shared state must synchronize.
// Notifications from one child arrive in the order it sent them; no
// ordering holds across children.
type NotificationServer struct {
	logger   *slog.Logger
	listener net.Listener
	handler  func(Notification)

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewNotificationServer starts accepting children on listener, which
// the caller binds with Listen. The socket already exists when children
// are spawned, so there is no race against the bind.
func NewNotificationServer(listener net.Listener, handler func(Notification), logger *slog.Logger) *NotificationServer {
	s := &NotificationServer{
		logger:   logger,
		listener: listener,
		handler:  handler,
		conns:    make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	return s
}

func (s *NotificationServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accepting notification connection", "error", err)
			continue
		}
		if !s.track(conn) {
			conn.Close()
			return
		}
		s.wg.Add(1)
		go s.readStream(conn)
	}
}

func (s *NotificationServer) readStream(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()
	decoder := codec.NewDecoder(conn)
	for {
		var notification Notification
		if err := decoder.Decode(&notification); err != nil {
			// EOF is a child hanging up; ErrClosed is our own Close.
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Error("decoding notification", "error", err)
			}
			return
		}
		s.handler(notification)
	}
}

func (s *NotificationServer) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *NotificationServer) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// Close stops accepting, disconnects every child, and waits for the
// reader goroutines to finish. No handler invocations happen after
// Close returns.
func (s *NotificationServer) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.listener.Close()
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
	})
}
