package messaging

// Common identifiers used across test files.
const (
	testSenderJID = "15551234567@s.whatsapp.net"
	testGroupJID  = "120363041234567890@g.us"
)
