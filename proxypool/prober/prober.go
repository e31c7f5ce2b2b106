package prober

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/net/proxy"
)

// FailureKind classifies why a probe failed. The pool treats all
// kinds identically; they only differ in diagnostics.
type FailureKind int

const (
	KindTimeout FailureKind = iota
	KindConnectionError
	KindProtocolError
)

func (k FailureKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnectionError:
		return "connection_error"
	case KindProtocolError:
		return "protocol_error"
	default:
		return "unknown"
	}
}

// ProbeFailure wraps the underlying error of a failed probe attempt.
type ProbeFailure struct {
	Kind    FailureKind
	Address string
	Err     error
}

func (e *ProbeFailure) Error() string {
	return fmt.Sprintf("probe %s failed (%s): %v", e.Address, e.Kind, e.Err)
}

func (e *ProbeFailure) Unwrap() error {
	return e.Err
}

// Prober tests a single candidate address for SOCKS5 reachability by
// performing a no-auth handshake and a CONNECT to a fixed target.
// It is stateless per call and never touches the pool itself.
type Prober struct {
	target  string
	timeout time.Duration
}

// New creates a Prober against the given probe target.
func New(target string, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Prober{
		target:  target,
		timeout: timeout,
	}
}

// Probe attempts a SOCKS5 CONNECT through addr to the probe target and
// returns the elapsed time from connection start to a successful
// CONNECT acknowledgment. The probe connection is closed on every
// exit path.
func (p *Prober) Probe(ctx context.Context, addr string) (time.Duration, error) {
	dialer, err := proxy.SOCKS5("tcp", addr, nil, &net.Dialer{Timeout: p.timeout})
	if err != nil {
		return 0, &ProbeFailure{Kind: KindConnectionError, Address: addr, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	conn, err := dialer.(proxy.ContextDialer).DialContext(ctx, "tcp", p.target)
	if err != nil {
		return 0, &ProbeFailure{Kind: classify(err), Address: addr, Err: err}
	}
	latency := time.Since(start)
	conn.Close()
	return latency, nil
}

// classify maps a dial error onto a FailureKind. x/net/proxy wraps
// both transport and handshake failures in *net.OpError; a nested net
// or syscall error means the transport itself failed, anything else is
// a malformed SOCKS5 exchange.
func classify(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return KindTimeout
	}
	var op *net.OpError
	if errors.As(err, &op) {
		if op.Op == "dial" {
			return KindConnectionError
		}
		var inner *net.OpError
		if errors.As(op.Err, &inner) {
			return KindConnectionError
		}
		var errno syscall.Errno
		if errors.As(op.Err, &errno) {
			return KindConnectionError
		}
		return KindProtocolError
	}
	return KindConnectionError
}
