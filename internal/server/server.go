package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/medusa-kv/medusa/internal/protocol"
	"github.com/medusa-kv/medusa/internal/stats"
	"github.com/medusa-kv/medusa/internal/store"
	"github.com/medusa-kv/medusa/internal/version"
)

// Options controls connection handling.
type Options struct {
	// MaxConnections caps concurrently served clients. Connections over
	// the cap receive an error reply and are closed. Zero means no cap.
	MaxConnections int

	// Timeout is the per-connection idle limit. Zero disables deadlines.
	Timeout time.Duration
}

// Server accepts TCP connections and serves the command protocol, one
// goroutine per client. All clients share the same store and handler.
type Server struct {
	addr    string
	opts    Options
	handler *Handler
	stats   *stats.Stats
	log     *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	clients  map[net.Conn]struct{}
	closed   bool

	wg sync.WaitGroup
}

// New creates a Server. The store and stats are shared with the caller so
// the metrics endpoint can observe them.
func New(addr string, st *store.Store, s *stats.Stats, log *slog.Logger, opts Options) *Server {
	srv := &Server{
		addr:    addr,
		opts:    opts,
		stats:   s,
		log:     log,
		clients: make(map[net.Conn]struct{}),
	}
	srv.handler = NewHandler(st, s, srv.ClientCount)
	return srv
}

// ClientCount returns the number of currently connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Addr returns the bound listen address, valid after Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Start binds the listener and serves until the context is cancelled or
// Close is called. It blocks.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.addr, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return errors.New("server: already closed")
	}
	s.listener = ln
	s.mu.Unlock()

	s.log.Info("server listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			s.log.Error("accept failed", "error", err)
			continue
		}
		s.dispatchConn(conn)
	}
}

// dispatchConn admits or rejects a new connection against the cap.
func (s *Server) dispatchConn(conn net.Conn) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	if s.opts.MaxConnections > 0 && len(s.clients) >= s.opts.MaxConnections {
		s.mu.Unlock()
		s.log.Warn("connection rejected", "remote", conn.RemoteAddr().String(), "reason", "max connections")
		w := protocol.NewWriter(conn)
		w.WriteReply(protocol.Errorf("max connections reached"))
		conn.Close()
		return
	}
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	s.stats.RecordConnection()
	s.wg.Add(1)
	go s.serveConn(conn)
}

// serveConn runs the read/dispatch/reply loop for one client.
func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.removeClient(conn)

	remote := conn.RemoteAddr().String()
	s.log.Debug("client connected", "remote", remote)

	reader := protocol.NewReader(conn)
	writer := protocol.NewWriter(conn)

	if err := writer.WriteLine(greeting()); err != nil {
		s.log.Debug("greeting failed", "remote", remote, "error", err)
		return
	}

	for {
		if s.opts.Timeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.opts.Timeout))
		}

		line, err := reader.ReadLine()
		if err != nil {
			if err != io.EOF {
				var nerr net.Error
				if errors.As(err, &nerr) && nerr.Timeout() {
					s.log.Debug("client timed out", "remote", remote)
				} else {
					s.log.Debug("read failed", "remote", remote, "error", err)
				}
			}
			return
		}
		if line == "" {
			continue
		}

		cmd, err := protocol.Parse(line)
		if err != nil {
			s.stats.RecordError()
			if werr := writer.WriteReply(protocol.Errorf("%s", protocolMessage(err))); werr != nil {
				return
			}
			continue
		}

		reply, closeConn := s.handler.Dispatch(cmd)
		if err := writer.WriteReply(reply); err != nil {
			s.log.Debug("write failed", "remote", remote, "error", err)
			return
		}
		if closeConn {
			s.log.Debug("client quit", "remote", remote)
			return
		}
	}
}

func (s *Server) removeClient(conn net.Conn) {
	conn.Close()
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
}

// Close stops accepting, closes all client connections, and waits for
// their goroutines to finish. Safe to call more than once.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	ln := s.listener
	conns := make([]net.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for _, conn := range conns {
		conn.Close()
	}
	s.wg.Wait()
	s.log.Info("server stopped")
}

// greeting is the single banner line written before the command loop.
func greeting() string {
	return "MEDUSA v" + version.Version + " ready"
}

// protocolMessage strips the package prefix from a parse error so the
// client sees just the human-readable part.
func protocolMessage(err error) string {
	return strings.TrimPrefix(err.Error(), "protocol: invalid command: ")
}
