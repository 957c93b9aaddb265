package smtp

// Mail is the message built up during one session. Every field holds the
// client's lines verbatim.
type Mail struct {
	From        string   // full MAIL FROM: line, empty until set
	To          []string // full RCPT TO: lines in arrival order
	Data        []string // DATA lines without the terminator
	Interrupted bool     // stream ended before the terminator
}

func (m *Mail) SetFrom(line string) {
	m.From = line
}

func (m *Mail) AddRecipient(line string) {
	m.To = append(m.To, line)
}

func (m *Mail) AddLine(line string) {
	m.Data = append(m.Data, line)
}

// State is the stage of the dialogue a Session is in.
type State int

const (
	StateSendGreeting State = iota
	StateReceiveGreeting
	StateAccepted
	StateAccept
	StateAcceptData
	StateRejected
	StateEnd
)

func (s State) String() string {
	switch s {
	case StateSendGreeting:
		return "SendGreeting"
	case StateReceiveGreeting:
		return "ReceiveGreeting"
	case StateAccepted:
		return "Accepted"
	case StateAccept:
		return "Accept"
	case StateAcceptData:
		return "AcceptData"
	case StateRejected:
		return "Rejected"
	case StateEnd:
		return "End"
	default:
		return "Unknown"
	}
}
