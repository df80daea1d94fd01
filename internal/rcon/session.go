package rcon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"syscall"
	"time"
)

const (
	DefaultPort           = 25575
	DefaultConnectTimeout = 10 * time.Second
	DefaultCommandTimeout = 10 * time.Second

	readChunkSize = 4096
)

var (
	ErrAuthFailed       = errors.New("rcon: authentication failed")
	ErrCommandTimeout   = errors.New("rcon: timed out waiting for response")
	ErrInvalidState     = errors.New("rcon: session not ready")
	ErrConnectionClosed = errors.New("rcon: connection closed by peer")
)

// ConnectError reports a transport-level failure to reach the endpoint.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string { return fmt.Sprintf("rcon: connect %s: %v", e.Addr, e.Err) }
func (e *ConnectError) Unwrap() error { return e.Err }

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateReady
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ContextDialer is satisfied by *net.Dialer.
type ContextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type Options struct {
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	Dialer         ContextDialer
	Logger         *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = DefaultCommandTimeout
	}
	if o.Dialer == nil {
		o.Dialer = &net.Dialer{}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Session is one authenticated conversation with a game server. It is not
// meant to be shared: commands are serialized, and only Close may be called
// concurrently with a pending command.
type Session struct {
	host string
	port int
	opts Options
	log  *slog.Logger

	conn net.Conn

	mu     sync.Mutex
	state  State
	nextID int32

	ioMu  sync.Mutex
	buf   []byte
	chunk []byte

	closeOnce sync.Once
}

// Dial connects to host:port and authenticates with password. On any error
// the transport is already closed.
func Dial(ctx context.Context, host string, port int, password string, opts Options) (*Session, error) {
	s := newSession(host, port, opts)
	if err := s.open(ctx, password); err != nil {
		return nil, err
	}
	return s, nil
}

func newSession(host string, port int, opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		host:   host,
		port:   port,
		opts:   opts,
		log:    opts.Logger.With("endpoint", net.JoinHostPort(host, strconv.Itoa(port))),
		state:  StateDisconnected,
		nextID: 1,
		chunk:  make([]byte, readChunkSize),
	}
}

func (s *Session) Addr() string { return net.JoinHostPort(s.host, strconv.Itoa(s.port)) }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = st
}

func (s *Session) allocID() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	if s.nextID <= 0 {
		s.nextID = 1
	}
	return id
}

func (s *Session) open(ctx context.Context, password string) error {
	s.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	defer cancel()

	conn, err := s.opts.Dialer.DialContext(dialCtx, "tcp", s.Addr())
	if err != nil {
		s.setState(StateFailed)
		return &ConnectError{Addr: s.Addr(), Err: err}
	}
	s.conn = conn
	s.log.Debug("rcon connected")

	s.setState(StateAuthenticating)
	if err := s.authenticate(ctx, password); err != nil {
		s.setState(StateFailed)
		_ = s.conn.Close()
		return err
	}
	s.setState(StateReady)
	s.log.Debug("rcon authenticated")
	return nil
}

func (s *Session) authenticate(ctx context.Context, password string) error {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	id := s.allocID()
	dl := s.deadline(ctx)
	if err := s.writePacket(ctx, id, TypeAuth, password, dl); err != nil {
		return err
	}
	pkt, err := s.readPacket(ctx, dl)
	if err != nil {
		return err
	}
	if pkt.ID == AuthFailedID {
		return ErrAuthFailed
	}
	return nil
}

// SendCommand runs one command and returns the body of the correlated reply.
// Replies carrying another request id are dropped.
func (s *Session) SendCommand(ctx context.Context, command string) (string, error) {
	if st := s.State(); st != StateReady {
		return "", fmt.Errorf("%w (state=%s)", ErrInvalidState, st)
	}

	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	id := s.allocID()
	dl := s.deadline(ctx)
	if err := s.writePacket(ctx, id, TypeCommand, command, dl); err != nil {
		return "", s.fail(err)
	}

	for {
		pkt, err := s.readPacket(ctx, dl)
		if err != nil {
			return "", s.fail(err)
		}
		if pkt.ID != id {
			s.log.Debug("discarding uncorrelated packet", "want", id, "got", pkt.ID, "type", pkt.Type)
			continue
		}
		return pkt.Body, nil
	}
}

// fail marks the session unusable for anything but Close. Encoding errors
// are caught before any bytes hit the wire, so they leave it Ready.
func (s *Session) fail(err error) error {
	var encErr *EncodingError
	if !errors.As(err, &encErr) {
		s.setState(StateFailed)
	}
	return err
}

// ioDeadline is the socket deadline of one round trip. fromCtx is set when
// the context deadline is the earlier of the two, so its expiry is reported
// as the context's error and not as a command timeout.
type ioDeadline struct {
	at      time.Time
	fromCtx bool
}

func (s *Session) deadline(ctx context.Context) ioDeadline {
	d := time.Now().Add(s.opts.CommandTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && !ctxDeadline.After(d) {
		return ioDeadline{at: ctxDeadline, fromCtx: true}
	}
	return ioDeadline{at: d}
}

func (s *Session) writePacket(ctx context.Context, id int32, typ PacketType, body string, dl ioDeadline) error {
	frame, err := Encode(id, typ, body)
	if err != nil {
		return err
	}
	if err := s.conn.SetWriteDeadline(dl.at); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() { _ = s.conn.SetWriteDeadline(time.Now()) })
	defer stop()

	if _, err := s.conn.Write(frame); err != nil {
		return s.ioError(ctx, dl, err)
	}
	return nil
}

// readPacket returns the next complete frame, reading from the connection
// until Decode stops reporting ErrIncomplete.
func (s *Session) readPacket(ctx context.Context, dl ioDeadline) (Packet, error) {
	if err := s.conn.SetReadDeadline(dl.at); err != nil {
		return Packet{}, err
	}

	stop := context.AfterFunc(ctx, func() { _ = s.conn.SetReadDeadline(time.Now()) })
	defer stop()

	var readErr error
	for {
		pkt, n, err := Decode(s.buf)
		if err == nil {
			s.buf = append(s.buf[:0], s.buf[n:]...)
			return pkt, nil
		}
		if !errors.Is(err, ErrIncomplete) {
			return Packet{}, err
		}
		// the last read may have delivered a full frame along with its error
		if readErr != nil {
			return Packet{}, s.ioError(ctx, dl, readErr)
		}

		n, readErr = s.conn.Read(s.chunk)
		if n > 0 {
			s.buf = append(s.buf, s.chunk[:n]...)
		}
	}
}

func (s *Session) ioError(ctx context.Context, dl ioDeadline, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		if dl.fromCtx {
			// the socket can notice the deadline before the context does
			<-ctx.Done()
			return ctx.Err()
		}
		return ErrCommandTimeout
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, syscall.ECONNRESET) {
		return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	return err
}

// Close releases the transport. It is safe to call more than once and from
// any state.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		if s.conn != nil {
			err = s.conn.Close()
		}
	})
	return err
}
