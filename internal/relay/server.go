package relay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/proxy"

	"lokipool/internal/shared/types"
	"lokipool/proxypool/model"
)

// UpstreamSelector is the relay's view of the active-proxy state: a
// brief, non-blocking read of the current upstream per session.
type UpstreamSelector interface {
	Current() (model.ProxyRecord, bool)
}

// Server is the local SOCKS5 front-end. Every accepted client
// connection becomes an independent session relayed through the
// currently selected upstream proxy.
type Server struct {
	cfg      *types.Config
	selector UpstreamSelector
	logger   zerolog.Logger

	listener net.Listener
	// slots enforces the max-connections ceiling; connections beyond
	// it are refused at accept time, never queued.
	slots chan struct{}

	activeConnections atomic.Int64
	uplinkBytes       atomic.Uint64
	downlinkBytes     atomic.Uint64
}

// New creates the relay server. Listen must be called before Serve.
func New(cfg *types.Config, selector UpstreamSelector) *Server {
	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 100
	}
	return &Server{
		cfg:      cfg,
		selector: selector,
		logger:   log.With().Str("component", "Relay").Logger(),
		slots:    make(chan struct{}, maxConns),
	}
}

// Listen binds the local listening socket. A bind failure is fatal to
// the process; the caller must not run without it.
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.cfg.BindHost, strconv.Itoa(s.cfg.BindPort))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	s.listener = listener
	s.logger.Info().Str("listen_addr", listener.Addr().String()).Msg("SOCKS5 server listening.")
	return nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve runs the accept loop until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			if s.cfg.ShowErrorLog {
				s.logger.Warn().Err(err).Msg("Accept failed.")
			}
			continue
		}

		select {
		case s.slots <- struct{}{}:
		default:
			s.logger.Warn().Str("remote", conn.RemoteAddr().String()).Msg("Connection ceiling reached, refusing connection.")
			conn.Close()
			continue
		}

		if s.cfg.ShowConnectionLog {
			s.logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("New connection.")
		}

		go func() {
			defer func() { <-s.slots }()
			s.handleConnection(conn)
		}()
	}
}

// Close shuts down the listener; in-flight sessions end when their
// sockets close.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// Stats returns the session count and total relayed traffic.
func (s *Server) Stats() (active int64, uplink, downlink uint64) {
	return s.activeConnections.Load(), s.uplinkBytes.Load(), s.downlinkBytes.Load()
}

func (s *Server) handleConnection(clientConn net.Conn) {
	defer clientConn.Close()
	s.activeConnections.Add(1)
	defer s.activeConnections.Add(-1)

	l := s.logger.With().Str("trace_id", uuid.NewString()).Logger()

	reader := bufio.NewReader(clientConn)
	cmd, targetAddr, err := handshakeWithClient(clientConn, reader)
	if err != nil {
		if s.cfg.ShowErrorLog {
			l.Warn().Err(err).Msg("SOCKS5 handshake with client failed.")
		}
		return
	}
	if cmd != cmdConnect {
		writeReply(clientConn, repCommandNotSupported)
		return
	}

	rec, ok := s.selector.Current()
	if !ok {
		writeReply(clientConn, repGeneralFailure)
		if s.cfg.ShowErrorLog {
			l.Warn().Msg("No active proxy, rejecting session.")
		}
		return
	}

	upstream, err := s.dialUpstream(rec.Address, targetAddr)
	if err != nil {
		if s.cfg.ShowErrorLog {
			l.Error().Err(err).Str("upstream", rec.Address).Str("target", targetAddr).Msg("Failed to reach target via upstream proxy.")
		}
		writeReply(clientConn, repHostUnreachable)
		return
	}
	defer upstream.Close()

	if err := writeReply(clientConn, repSuccess); err != nil {
		return
	}

	if s.cfg.ShowConnectionLog {
		l.Info().Str("upstream", rec.Address).Str("target", targetAddr).Msg("Session established.")
	}

	counted := NewCountedConn(upstream, &s.uplinkBytes, &s.downlinkBytes)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		io.Copy(counted, reader)
		closeWrite(upstream)
	}()
	go func() {
		defer wg.Done()
		io.Copy(clientConn, counted)
		closeWrite(clientConn)
	}()

	wg.Wait()
}

// dialUpstream connects to the target through the upstream SOCKS5
// proxy, retrying up to the configured count before giving up.
func (s *Server) dialUpstream(upstreamAddr, targetAddr string) (net.Conn, error) {
	timeout := time.Duration(s.cfg.TestTimeout) * time.Second
	attempts := s.cfg.RetryTimes
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		dialer, err := proxy.SOCKS5("tcp", upstreamAddr, nil, &net.Dialer{Timeout: timeout})
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		conn, err := dialer.(proxy.ContextDialer).DialContext(ctx, "tcp", targetAddr)
		cancel()
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// closeWrite half-closes the write side so the peer sees EOF; falls
// back to a full close when the connection cannot half-close.
func closeWrite(conn net.Conn) {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		cw.CloseWrite()
		return
	}
	conn.Close()
}
