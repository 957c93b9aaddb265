package smtp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/OliverSchlueter/goutils/sloki"
	"github.com/OliverSchlueter/smteepee/internal/messages"
	"github.com/OliverSchlueter/smteepee/internal/metrics"
	"github.com/OliverSchlueter/smteepee/internal/textproto"
	"github.com/google/uuid"
)

const (
	DefaultAddr   = "127.0.0.1:2525"
	DefaultDomain = "groove.com"
)

type Server struct {
	domain      string
	addr        string
	idleTimeout time.Duration
	messages    *messages.Store
	signer      *Signer
	metrics     *metrics.Metrics

	listener net.Listener
	sessions sync.WaitGroup
}

type Configuration struct {
	Domain      string
	Addr        string
	IdleTimeout time.Duration
	Messages    *messages.Store
	Signer      *Signer
	Metrics     *metrics.Metrics
}

func NewServer(config Configuration) *Server {
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	if config.Domain == "" {
		config.Domain = DefaultDomain
	}

	return &Server{
		domain:      config.Domain,
		addr:        config.Addr,
		idleTimeout: config.IdleTimeout,
		messages:    config.Messages,
		signer:      config.Signer,
		metrics:     config.Metrics,
	}
}

// Listen binds the listening socket and returns its address.
func (s *Server) Listen() (net.Addr, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = listener

	slog.Info("SMTP server listening", "addr", listener.Addr().String(), "domain", s.domain)
	return listener.Addr(), nil
}

// Serve accepts connections until ctx is cancelled. Cancelling closes the
// listener and every open connection, and Serve returns once all sessions
// have finished.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("smtp: Serve called before Listen")
	}

	stop := context.AfterFunc(ctx, func() {
		s.listener.Close()
	})
	defer stop()
	defer s.sessions.Wait()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Warn("Failed to accept connection", sloki.WrapError(err))
			continue
		}

		s.sessions.Add(1)
		go s.handle(ctx, conn)
	}
}

func (s *Server) Start(ctx context.Context) error {
	if _, err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer s.sessions.Done()
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	remoteAddr := conn.RemoteAddr().String()
	log := slog.With("session_id", uuid.NewString(), "remote_addr", remoteAddr)
	log.Debug("New connection established")

	s.metrics.SessionStarted()

	session := NewSession(s.domain, textproto.NewConn(conn, s.idleTimeout))
	mail, err := session.Run(ctx)

	outcome := metrics.OutcomeMessage
	switch {
	case errors.Is(err, ErrNoMessage):
		outcome = metrics.OutcomeNoMessage
		log.Info("No message created")

	case err != nil:
		outcome = metrics.OutcomeError
		if ctx.Err() != nil {
			log.Debug("Connection closed on shutdown")
		} else {
			log.Warn("Session ended with a transport error", sloki.WrapError(err))
		}

	default:
		s.deliver(context.WithoutCancel(ctx), log, remoteAddr, mail)
	}

	s.metrics.SessionFinished(outcome)
}

// deliver persists a finished mail. The client has already been answered,
// so failures are only logged.
func (s *Server) deliver(ctx context.Context, log *slog.Logger, remoteAddr string, mail *Mail) {
	m := messages.Message{
		RemoteAddr:  remoteAddr,
		From:        mail.From,
		To:          mail.To,
		Data:        mail.Data,
		Interrupted: mail.Interrupted,
	}

	if m.Interrupted {
		log.Warn("Connection closed during DATA, keeping partial message", "lines", len(m.Data))
	}

	if s.signer != nil {
		if err := s.signer.Sign(&m); err != nil {
			log.Warn("Failed to DKIM sign message, storing it unsigned", sloki.WrapError(err))
		}
	}

	if s.messages == nil {
		log.Info("Incoming email received", "from", m.From, "recipients", len(m.To), "size", m.Size())
		return
	}

	stored, err := s.messages.Create(ctx, m)
	if err != nil {
		s.metrics.StoreFailed()
		log.Error("Failed to save incoming email", sloki.WrapError(err))
		return
	}

	s.metrics.MessageStored()
	log.Info("Incoming email received",
		"message_id", stored.ID,
		"from", stored.From,
		"recipients", len(stored.To),
		"size", stored.Size(),
		"file", stored.FileName,
	)
}
