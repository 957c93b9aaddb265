package smtp

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
)

// ComposeLines builds a plain text message and returns it split into the
// lines that are sent during DATA.
func ComposeLines(from string, to []string, subject, body string) ([]string, error) {
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("failed to set From address: %w", err)
	}
	if err := m.To(to...); err != nil {
		return nil, fmt.Errorf("failed to set To address: %w", err)
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, body)

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to render message: %w", err)
	}

	raw := strings.ReplaceAll(buf.String(), "\r\n", "\n")
	raw = strings.TrimSuffix(raw, "\n")
	return strings.Split(raw, "\n"), nil
}
