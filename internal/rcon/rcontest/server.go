// Package rcontest provides an in-process RCON endpoint for tests, in the
// spirit of net/http/httptest.
package rcontest

import (
	"errors"
	"gamewarden/internal/rcon"
	"net"
	"strconv"
	"sync"
	"time"
)

type Server struct {
	Password string

	// Handler produces the reply body for a command. Nil replies with "".
	Handler func(command string) string

	// ChunkSize splits every outgoing frame into writes of at most this many
	// bytes with a short pause in between. Zero writes whole frames.
	ChunkSize int

	// Decoy sends a frame with an unrelated request id before each reply.
	Decoy bool

	// AuthReplyID, when non-zero, overrides the id sent back for AUTH.
	AuthReplyID int32

	// Stall returns true for commands that must never be answered.
	Stall func(command string) bool

	// HangUp returns true for commands after which the server closes the
	// connection without replying.
	HangUp func(command string) bool

	ln net.Listener
	wg sync.WaitGroup

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	commands []string
	arrivals []time.Time
	authIDs  []int32
	accepted int
	closed   bool
}

func NewServer(password string, handler func(string) string) *Server {
	s := NewUnstartedServer(password, handler)
	s.Start()
	return s
}

func NewUnstartedServer(password string, handler func(string) string) *Server {
	return &Server{
		Password: password,
		Handler:  handler,
		conns:    map[net.Conn]struct{}{},
	}
}

func (s *Server) Start() {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic("rcontest: listen: " + err.Error())
	}
	s.ln = ln

	s.wg.Add(1)
	go s.serve()
}

func (s *Server) Addr() string { return s.ln.Addr().String() }

func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	n, _ := strconv.Atoi(port)
	return n
}

func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// CommandTimes returns when each entry of Commands was received.
func (s *Server) CommandTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.arrivals...)
}

// AuthIDs returns the request ids of every AUTH packet received.
func (s *Server) AuthIDs() []int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int32(nil), s.authIDs...)
}

func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	_ = s.ln.Close()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = c.Close()
			return
		}
		s.conns[c] = struct{}{}
		s.accepted++
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handle(c)
	}
}

func (s *Server) handle(c net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		_ = c.Close()
	}()

	var buf []byte
	chunk := make([]byte, 1024)
	authed := false

	for {
		pkt, n, err := rcon.Decode(buf)
		if err != nil {
			if !errors.Is(err, rcon.ErrIncomplete) {
				return
			}
			m, rerr := c.Read(chunk)
			buf = append(buf, chunk[:m]...)
			if rerr != nil {
				return
			}
			continue
		}
		buf = buf[n:]

		switch pkt.Type {
		case rcon.TypeAuth:
			s.mu.Lock()
			s.authIDs = append(s.authIDs, pkt.ID)
			s.mu.Unlock()

			id := pkt.ID
			if pkt.Body != s.Password {
				id = rcon.AuthFailedID
			} else {
				authed = true
			}
			if s.AuthReplyID != 0 {
				id = s.AuthReplyID
			}
			if !s.write(c, id, rcon.TypeAuthResponse, "") {
				return
			}

		case rcon.TypeCommand:
			if !authed {
				continue
			}
			s.mu.Lock()
			s.commands = append(s.commands, pkt.Body)
			s.arrivals = append(s.arrivals, time.Now())
			s.mu.Unlock()

			if s.HangUp != nil && s.HangUp(pkt.Body) {
				return
			}
			if s.Stall != nil && s.Stall(pkt.Body) {
				continue
			}
			if s.Decoy && !s.write(c, pkt.ID+1000, rcon.TypeResponse, "decoy") {
				return
			}
			reply := ""
			if s.Handler != nil {
				reply = s.Handler(pkt.Body)
			}
			if !s.write(c, pkt.ID, rcon.TypeResponse, reply) {
				return
			}
		}
	}
}

func (s *Server) write(c net.Conn, id int32, typ rcon.PacketType, body string) bool {
	frame, err := rcon.Encode(id, typ, body)
	if err != nil {
		return false
	}
	if s.ChunkSize <= 0 {
		_, err = c.Write(frame)
		return err == nil
	}
	for len(frame) > 0 {
		n := min(s.ChunkSize, len(frame))
		if _, err := c.Write(frame[:n]); err != nil {
			return false
		}
		frame = frame[n:]
		time.Sleep(2 * time.Millisecond)
	}
	return true
}
