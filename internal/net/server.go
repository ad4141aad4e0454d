package net

import (
	"errors"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// arrivalBacklog bounds sessions accepted but not yet taken by the arena
// loop. Beyond it new clients are turned away.
const arrivalBacklog = 64

// Server listens for arena clients. Each accepted connection becomes a
// started Session that waits in the arrivals channel until the arena loop
// attaches it at the start of a tick.
type Server struct {
	ln       net.Listener
	lastID   atomic.Uint64
	arrivals chan *Session
	opts     SessionOptions
	stopping atomic.Bool
	log      *zap.Logger
}

func NewServer(bindAddr string, opts SessionOptions, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	return &Server{
		ln:       ln,
		arrivals: make(chan *Session, arrivalBacklog),
		opts:     opts,
		log:      log.Named("net"),
	}, nil
}

// AcceptLoop accepts clients until Shutdown. Run it on its own goroutine.
// Transient accept failures back off up to a second.
func (s *Server) AcceptLoop() {
	var backoff time.Duration
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.stopping.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
			s.log.Error("accept failed", zap.Error(err), zap.Duration("retry_in", backoff))
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		s.admit(conn)
	}
}

// admit starts a session for conn and queues it for the arena loop.
func (s *Server) admit(conn net.Conn) {
	sess := NewSession(conn, s.lastID.Add(1), s.opts, s.log)
	sess.Start()

	select {
	case s.arrivals <- sess:
		s.log.Info("arena client connected", zap.Uint64("session", sess.ID), zap.String("ip", sess.IP))
	default:
		s.log.Warn("arrival backlog full, turning client away", zap.String("ip", sess.IP))
		sess.Close()
	}
}

// NewSessions yields sessions that have been greeted and await the arena loop.
func (s *Server) NewSessions() <-chan *Session {
	return s.arrivals
}

// Shutdown closes the listener. Sessions already handed over stay open.
func (s *Server) Shutdown() {
	if s.stopping.Swap(true) {
		return
	}
	s.ln.Close()
}

func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}
