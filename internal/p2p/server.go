// Package p2p implements the transfer wire protocol: a concurrent TCP
// listener for inbound transfers and a one-shot client for outbound
// sends. Both sides converge on the ledger package for every balance
// mutation.
package p2p

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	interfaces "github.com/luckglobal/ontime-peer/internal/interfaces"
	"github.com/luckglobal/ontime-peer/internal/ledger"
	"github.com/luckglobal/ontime-peer/internal/models/events"
	"github.com/luckglobal/ontime-peer/internal/protocol"
)

// ErrPayloadTooLarge rejects an inbound message that exceeds the
// configured size bound before a complete frame was seen.
var ErrPayloadTooLarge = errors.New("received data too large")

// ServerConfig carries the listener settings.
type ServerConfig struct {
	BindAddr   string // empty binds all interfaces
	Port       int
	Timeout    time.Duration // per-connection read/write deadline
	BufferSize int           // socket read chunk size
	MaxPayload int           // upper bound on an accumulated request
	MaxConns   int           // concurrent handler cap, <=0 means no cap
}

// Server accepts inbound transfer connections and applies valid
// transfers to the ledger. Each connection gets its own handler
// goroutine bounded by the configured timeout; the accept loop never
// waits on a client.
type Server struct {
	cfg ServerConfig
	lgr *ledger.Ledger
	pub interfaces.EventPublisher
	log zerolog.Logger

	lis net.Listener
	sem chan struct{}
	wg  sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewServer(cfg ServerConfig, lgr *ledger.Ledger, pub interfaces.EventPublisher, log zerolog.Logger) *Server {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 2048
	}
	if cfg.MaxPayload <= 0 {
		cfg.MaxPayload = cfg.BufferSize * 10
	}
	s := &Server{
		cfg: cfg,
		lgr: lgr,
		pub: pub,
		log: log.With().Str("component", "p2p-server").Logger(),
	}
	if cfg.MaxConns > 0 {
		s.sem = make(chan struct{}, cfg.MaxConns)
	}
	return s
}

// Start binds the listener and launches the accept loop. A bind failure
// is reported to the consumer and returned; the caller is expected to
// keep the process alive in send-only mode.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.BindAddr, strconv.Itoa(s.cfg.Port))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		s.log.Error().Err(err).Str("addr", addr).Msg("listener bind failed, receiving disabled")
		s.publish(events.TopicListenerBindFailed, events.NewListenerBindFailed(err.Error()))
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	s.lis = lis
	s.log.Info().Str("addr", lis.Addr().String()).Msg("listener started")

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound address, or nil when receiving is disabled.
func (s *Server) Addr() net.Addr {
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

// Stop closes the listener and waits for in-flight handlers to finish.
// A handler that has started a ledger mutation always completes it.
func (s *Server) Stop() {
	s.mu.Lock()
	s.closed = true
	lis := s.lis
	s.mu.Unlock()

	if lis != nil {
		lis.Close()
	}
	s.wg.Wait()
	s.log.Info().Msg("listener stopped")
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.lis.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Error().Err(err).Msg("accept failed")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		// the handler goroutine waits for a concurrency slot so the
		// accept loop itself never blocks behind slow clients; queue
		// wait is bounded because every running handler is bounded by
		// the connection timeout
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if s.sem != nil {
				s.sem <- struct{}{}
				defer func() { <-s.sem }()
			}
			s.handle(conn)
		}()
	}
}

// handle runs one connection through its lifecycle: read a complete
// request, decode, apply, respond. Decode failures answer with a
// structured error and never touch the ledger.
func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	log := s.log.With().Str("remote", remote).Logger()
	conn.SetDeadline(time.Now().Add(s.cfg.Timeout))

	raw, err := s.readRequest(conn)
	if err != nil {
		if errors.Is(err, ErrPayloadTooLarge) {
			log.Warn().Msg("request exceeded payload bound")
			s.respond(conn, protocol.StatusError, ErrPayloadTooLarge.Error())
		} else {
			// timeout or disconnect mid-request: nothing useful to reply
			log.Warn().Err(err).Msg("request read failed")
		}
		return
	}

	tr, err := protocol.DecodeRequest(raw)
	if err != nil {
		log.Warn().Err(err).Msg("rejected malformed transfer request")
		s.respond(conn, protocol.StatusError, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	_, err = s.lgr.ApplyIncoming(ctx, tr.Amount, tr.SenderAddress, "Received from "+remote)
	if err != nil {
		log.Error().Err(err).Stringer("amount", tr.Amount).Msg("failed to apply inbound transfer")
		s.respond(conn, protocol.StatusError, "internal server error processing transfer")
		return
	}

	log.Info().Stringer("amount", tr.Amount).Str("sender", tr.SenderAddress).Msg("inbound transfer applied")
	s.respond(conn, protocol.StatusSuccess, "Transfer acknowledged")
}

// readRequest accumulates chunks until a complete message arrives or
// the payload bound is exceeded.
func (s *Server) readRequest(conn net.Conn) ([]byte, error) {
	var raw []byte
	buf := make([]byte, s.cfg.BufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			raw = append(raw, buf[:n]...)
			if protocol.Complete(raw) {
				return raw, nil
			}
			if len(raw) > s.cfg.MaxPayload {
				return nil, ErrPayloadTooLarge
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) && protocol.Complete(raw) {
				return raw, nil
			}
			return nil, err
		}
	}
}

func (s *Server) respond(conn net.Conn, status, message string) {
	if _, err := conn.Write(protocol.EncodeResponse(status, message)); err != nil {
		s.log.Debug().Err(err).Msg("response write failed")
	}
}

func (s *Server) publish(topic string, event any) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(topic, event); err != nil {
		s.log.Warn().Err(err).Str("topic", topic).Msg("event publish failed")
	}
}
