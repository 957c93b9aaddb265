package smtp

import "strings"

type Command struct {
	Name      string
	Structure string
	Prefix    string
}

var (
	CmdHelo = Command{
		Name:      "HELO",
		Prefix:    "HELO",
		Structure: "HELO %s",
	}

	CmdMailFrom = Command{
		Name:      "MAIL FROM",
		Prefix:    "MAIL FROM:",
		Structure: "MAIL FROM:<%s>",
	}

	CmdRcptTo = Command{
		Name:      "RCPT TO",
		Prefix:    "RCPT TO:",
		Structure: "RCPT TO:<%s>",
	}

	CmdData = Command{
		Name:      "DATA",
		Prefix:    "DATA",
		Structure: "DATA",
	}

	CmdQuit = Command{
		Name:      "QUIT",
		Prefix:    "QUIT",
		Structure: "QUIT",
	}

	// DataTerminator ends the DATA phase. It must match the whole line.
	DataTerminator = "."
)

// Matches reports whether line starts with the command prefix.
// Matching is case-sensitive.
func (c Command) Matches(line string) bool {
	return strings.HasPrefix(line, c.Prefix)
}
