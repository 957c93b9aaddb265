// Package textproto frames a net.Conn into CRLF-terminated text lines.
package textproto

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"
)

// Conn reads and writes text lines over a network connection.
// Written lines are buffered until Flush is called.
type Conn struct {
	conn        net.Conn
	r           *bufio.Reader
	w           *bufio.Writer
	idleTimeout time.Duration
	eof         bool

	// log prefixes for received and sent lines
	in, out string
}

// NewConn wraps c. A positive idleTimeout sets a read deadline before every
// read, so a silent peer ends the session with a timeout error.
func NewConn(c net.Conn, idleTimeout time.Duration) *Conn {
	return &Conn{
		conn:        c,
		r:           bufio.NewReader(c),
		w:           bufio.NewWriter(c),
		idleTimeout: idleTimeout,
		in:          "C: ",
		out:         "S: ",
	}
}

// NewClientConn wraps the client side of a connection. It differs from
// NewConn only in how lines are logged.
func NewClientConn(c net.Conn) *Conn {
	conn := NewConn(c, 0)
	conn.in, conn.out = "S: ", "C: "
	return conn
}

// RemoteAddr returns the peer address of the underlying connection.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// ReadLine returns the next line without its line ending. At the end of the
// stream it returns io.EOF. An unterminated trailing line is returned as a
// regular line before io.EOF is reported.
func (c *Conn) ReadLine() (string, error) {
	if c.eof {
		return "", io.EOF
	}

	if c.idleTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout)); err != nil {
			return "", err
		}
	}

	line, err := c.r.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", err
		}
		c.eof = true
		if line == "" {
			return "", io.EOF
		}
	}

	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	slog.Debug(c.in + line)
	return line, nil
}

// WriteLine queues line followed by CRLF. Nothing is sent until Flush.
func (c *Conn) WriteLine(line string) error {
	if _, err := c.w.WriteString(line + "\r\n"); err != nil {
		return err
	}

	slog.Debug(c.out + line)
	return nil
}

// Flush sends all queued lines.
func (c *Conn) Flush() error {
	return c.w.Flush()
}
