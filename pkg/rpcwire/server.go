package rpcwire

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"golang.org/x/net/netutil"

	"github.com/csudata/clup-agent/pkg/logging"
)

// HandlerFunc implements one RPC method. args is the msgpack-encoded
// Request.Args blob; the returned payload is msgpack-encoded into the
// Response. A non-zero errCode means domain failure (>0, permanent) or
// transient infrastructure failure (<0); handlers should never panic for
// expected failure modes.
type HandlerFunc func(args []byte) (errCode int, payload []byte)

// Server binds a TCP listener and dispatches each authenticated call to a
// registered method handler, capping concurrent connections the way the
// source agent's RPC service uses a fixed 10-worker thread pool.
type Server struct {
	secret   string
	poolSize int

	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	listener net.Listener
}

// NewServer creates a Server that authenticates calls against secret and
// serves at most poolSize connections concurrently.
func NewServer(secret string, poolSize int) *Server {
	if poolSize <= 0 {
		poolSize = 10
	}
	return &Server{
		secret:   secret,
		poolSize: poolSize,
		handlers: make(map[string]HandlerFunc),
	}
}

// Register binds a method name to a handler. Re-registering a method
// replaces the previous handler.
func (s *Server) Register(method string, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Methods returns the currently registered method names, unordered.
func (s *Server) Methods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	methods := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		methods = append(methods, m)
	}
	return methods
}

// Serve binds addr and blocks, accepting and dispatching connections
// until the listener is closed.
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	limited := netutil.LimitListener(ln, s.poolSize)
	s.listener = limited

	log := logging.WithComponent("rpcwire")
	log.Info().Str("addr", addr).Int("pool_size", s.poolSize).Msg("rpc server listening")

	for {
		conn, err := limited.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	log := logging.WithComponent("rpcwire")

	for {
		var req Request
		if err := readFrame(conn, &req); err != nil {
			return
		}

		if !authenticate(req.AuthToken, s.secret, req.RequestID) {
			resp := Response{RequestID: req.RequestID, ErrCode: -1}
			resp.Payload, _ = EncodeArgs("authentication failed")
			if err := writeFrame(conn, &resp); err != nil {
				return
			}
			continue
		}

		s.mu.RLock()
		h, ok := s.handlers[req.Method]
		s.mu.RUnlock()

		var resp Response
		resp.RequestID = req.RequestID
		if !ok {
			resp.ErrCode = -1
			resp.Payload, _ = EncodeArgs(fmt.Sprintf("unknown method %q", req.Method))
		} else {
			errCode, payload := safeInvoke(h, req.Args)
			resp.ErrCode = errCode
			resp.Payload = payload
		}

		if err := writeFrame(conn, &resp); err != nil {
			log.Debug().Err(err).Str("method", req.Method).Msg("write response failed")
			return
		}
	}
}

// safeInvoke recovers from a handler panic and turns it into a transient
// error response instead of taking down the connection goroutine.
func safeInvoke(h HandlerFunc, args []byte) (errCode int, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			errCode = -1
			payload, _ = EncodeArgs(fmt.Sprintf("handler panic: %v", r))
		}
	}()
	return h(args)
}
