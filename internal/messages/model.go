package messages

import (
	"strings"
	"time"
)

type Message struct {
	ID          string    `json:"id"`
	ReceivedAt  time.Time `json:"received_at"`
	RemoteAddr  string    `json:"remote_addr"`
	From        string    `json:"from"`
	To          []string  `json:"to"`
	Data        []string  `json:"data"`
	Interrupted bool      `json:"interrupted"`
	FileName    string    `json:"file_name,omitempty"`
}

// Body renders the DATA lines as they are written to disk, each terminated
// by CRLF.
func (m *Message) Body() []byte {
	var sb strings.Builder
	for _, line := range m.Data {
		sb.WriteString(line)
		sb.WriteString("\r\n")
	}
	return []byte(sb.String())
}

func (m *Message) Size() int {
	size := 0
	for _, line := range m.Data {
		size += len(line) + 2
	}
	return size
}
