package smtp

const (
	StatusServiceReady   = "220 local ESMTP smteepee"
	StatusConnClosed     = "221 Bye"
	StatusGreeting       = "250 %s, I hope this day finds you well." // server domain
	StatusOK             = "250 OK"
	StatusQueued         = "250 Ok: queued as plork"
	StatusStartMailInput = "354 End data with <CR><LF>.<CR><LF>"
	StatusError          = "Error"
)
