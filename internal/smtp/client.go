package smtp

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/OliverSchlueter/smteepee/internal/textproto"
)

const clientName = "localhost"

// SendMail submits one message to the listener at addr. Data lines are sent
// verbatim, so none of them may be the lone terminator.
func SendMail(ctx context.Context, addr, from string, to []string, data []string) error {
	for i, line := range data {
		if line == DataTerminator {
			return fmt.Errorf("data line %d is the DATA terminator", i+1)
		}
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server %s: %w", addr, err)
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(dl); err != nil {
			return err
		}
	}

	c := textproto.NewClientConn(conn)

	// 1. Read server greeting
	if err := expectStatus(c, "220"); err != nil {
		return fmt.Errorf("failed to read server greeting: %w", err)
	}

	// 2. Send HELO
	if err := command(c, fmt.Sprintf(CmdHelo.Structure, clientName), "250"); err != nil {
		return fmt.Errorf("HELO command failed: %w", err)
	}

	// 3. Envelope
	if err := command(c, fmt.Sprintf(CmdMailFrom.Structure, from), "250"); err != nil {
		return fmt.Errorf("MAIL FROM command failed: %w", err)
	}

	for _, rcpt := range to {
		if err := command(c, fmt.Sprintf(CmdRcptTo.Structure, rcpt), "250"); err != nil {
			return fmt.Errorf("RCPT TO command failed for %s: %w", rcpt, err)
		}
	}

	// 4. Message content
	if err := command(c, CmdData.Structure, "354"); err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	for _, line := range data {
		if err := c.WriteLine(line); err != nil {
			return err
		}
	}
	if err := command(c, DataTerminator, "250"); err != nil {
		return fmt.Errorf("email data submission failed: %w", err)
	}

	if err := command(c, CmdQuit.Structure, "221"); err != nil {
		return fmt.Errorf("QUIT command failed: %w", err)
	}

	return nil
}

func command(c *textproto.Conn, line, code string) error {
	if err := c.WriteLine(line); err != nil {
		return err
	}
	if err := c.Flush(); err != nil {
		return err
	}
	return expectStatus(c, code)
}

func expectStatus(c *textproto.Conn, code string) error {
	line, err := c.ReadLine()
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if !strings.HasPrefix(line, code+" ") {
		return fmt.Errorf("expected status %s, got %s", code, line)
	}
	return nil
}
