package smtp

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNotReady is returned by a non-blocking Transport when a read has no
	// line available yet or a flush has not drained.
	ErrNotReady = errors.New("smtp: transport not ready")

	// ErrNoMessage is returned by Run when the session ended without ever
	// recording a sender, recipient or body line.
	ErrNoMessage = errors.New("smtp: no message created")

	// ErrStalled is returned by Run when the transport suspends but cannot
	// be waited on.
	ErrStalled = errors.New("smtp: transport suspended without a waiter")
)

// Transport is the line-oriented connection a Session talks over.
type Transport interface {
	// ReadLine returns the next line. It returns io.EOF once the stream has
	// ended and ErrNotReady if no line is available yet.
	ReadLine() (string, error)
	// WriteLine queues a line for sending. It must not block.
	WriteLine(line string) error
	// Flush sends queued lines. It returns ErrNotReady while they have not
	// drained yet.
	Flush() error
}

// Waiter is implemented by transports that can return ErrNotReady. Wait
// blocks until the transport may have made progress.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Session drives the dialogue of a single connection.
//
// The session is a resumable state machine: Poll runs it until it has to
// wait for the transport or the dialogue is over. Every queued reply puts
// the session into a flushing phase, and the current state does not act
// again before the flush has completed. A suspended Poll leaves the state
// untouched, so the next call resumes without repeating a reply or a
// recorded line.
type Session struct {
	domain    string
	transport Transport

	state    State
	flushing bool
	mail     *Mail

	done   bool
	result *Mail
	err    error
}

func NewSession(domain string, transport Transport) *Session {
	return &Session{
		domain:    domain,
		transport: transport,
		state:     StateSendGreeting,
	}
}

// State returns the current dialogue state and whether a flush is pending.
func (s *Session) State() (State, bool) {
	return s.state, s.flushing
}

// Poll advances the session as far as the transport allows.
//
// It returns done=false when the transport is not ready; call Poll again
// once it is. When done is true the returned Mail is the finished message,
// or nil if none was created. Once done, Poll keeps returning the same
// outcome without touching the transport. The returned Mail is shared
// between those calls and belongs to the caller; the session never writes
// to it again. A transport error ends the
// session and is returned from every later call.
func (s *Session) Poll() (*Mail, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	if s.done {
		return s.result, true, nil
	}

	for {
		if s.flushing {
			if err := s.transport.Flush(); err != nil {
				if errors.Is(err, ErrNotReady) {
					return nil, false, nil
				}
				return nil, false, s.fail(fmt.Errorf("smtp: flush: %w", err))
			}
			s.flushing = false
			continue
		}

		switch s.state {
		case StateSendGreeting:
			if err := s.reply(StatusServiceReady, StateReceiveGreeting); err != nil {
				return nil, false, err
			}

		case StateReceiveGreeting:
			line, closed, err := s.readLine()
			if err != nil {
				return s.suspendOrFail(err)
			}
			if !closed && CmdHelo.Matches(line) {
				s.state = StateAccepted
			} else {
				s.state = StateRejected
			}

		case StateAccepted:
			if err := s.reply(fmt.Sprintf(StatusGreeting, s.domain), StateAccept); err != nil {
				return nil, false, err
			}

		case StateAccept:
			line, closed, err := s.readLine()
			if err != nil {
				return s.suspendOrFail(err)
			}
			if closed {
				s.state = StateRejected
				continue
			}
			if err := s.accept(line); err != nil {
				return nil, false, err
			}

		case StateAcceptData:
			line, closed, err := s.readLine()
			if err != nil {
				return s.suspendOrFail(err)
			}
			if closed {
				// The peer is gone, so no reply can be delivered.
				if s.mail != nil {
					s.mail.Interrupted = true
				}
				s.state = StateEnd
				continue
			}
			if line == DataTerminator {
				if err := s.reply(StatusQueued, StateAccept); err != nil {
					return nil, false, err
				}
				continue
			}
			s.message().AddLine(line)

		case StateRejected:
			if err := s.reply(StatusError, StateEnd); err != nil {
				return nil, false, err
			}

		case StateEnd:
			s.result, s.mail = s.mail, nil
			s.done = true
			return s.result, true, nil

		default:
			return nil, false, s.fail(fmt.Errorf("smtp: invalid session state %d", s.state))
		}
	}
}

// Run polls the session until it is done. It returns ErrNoMessage if the
// dialogue ended without a message and a wrapped transport error if the
// connection failed.
func (s *Session) Run(ctx context.Context) (*Mail, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		m, done, err := s.Poll()
		if err != nil {
			return nil, err
		}
		if done {
			if m == nil {
				return nil, ErrNoMessage
			}
			return m, nil
		}

		w, ok := s.transport.(Waiter)
		if !ok {
			return nil, ErrStalled
		}
		if err := w.Wait(ctx); err != nil {
			return nil, err
		}
	}
}

// accept dispatches a command line received in StateAccept.
func (s *Session) accept(line string) error {
	switch {
	case CmdMailFrom.Matches(line):
		s.message().SetFrom(line)
		return s.reply(StatusOK, StateAccept)

	case CmdRcptTo.Matches(line):
		s.message().AddRecipient(line)
		return s.reply(StatusOK, StateAccept)

	case CmdData.Matches(line):
		return s.reply(StatusStartMailInput, StateAcceptData)

	case CmdQuit.Matches(line):
		return s.reply(StatusConnClosed, StateEnd)

	default:
		s.state = StateRejected
		return nil
	}
}

// reply queues line and moves to next behind a pending flush.
func (s *Session) reply(line string, next State) error {
	if err := s.transport.WriteLine(line); err != nil {
		return s.fail(fmt.Errorf("smtp: write: %w", err))
	}
	s.state = next
	s.flushing = true
	return nil
}

// readLine reports closed=true at the end of the stream. ErrNotReady is
// passed through unwrapped.
func (s *Session) readLine() (line string, closed bool, err error) {
	line, err = s.transport.ReadLine()
	switch {
	case err == nil:
		return line, false, nil
	case errors.Is(err, io.EOF):
		return "", true, nil
	case errors.Is(err, ErrNotReady):
		return "", false, err
	default:
		return "", false, fmt.Errorf("smtp: read: %w", err)
	}
}

func (s *Session) suspendOrFail(err error) (*Mail, bool, error) {
	if errors.Is(err, ErrNotReady) {
		return nil, false, nil
	}
	return nil, false, s.fail(err)
}

func (s *Session) fail(err error) error {
	s.err = err
	s.mail = nil
	return err
}

// message returns the mail under construction, creating it on first use.
func (s *Session) message() *Mail {
	if s.mail == nil {
		s.mail = &Mail{}
	}
	return s.mail
}
