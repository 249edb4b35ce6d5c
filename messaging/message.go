package messaging

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// StubType identifies a system (non-user) message.
type StubType uint16

const (
	// StubTypeUnknown is the zero stub type.
	StubTypeUnknown StubType = 0
	// StubTypeGroupParticipantAdd records a participant joining a group.
	StubTypeGroupParticipantAdd StubType = 27
)

// String returns the protocol name of the stub type.
func (s StubType) String() string {
	switch s {
	case StubTypeGroupParticipantAdd:
		return "GROUP_PARTICIPANT_ADD"
	default:
		return "UNKNOWN"
	}
}

// UpsertType tells the message store how an upserted message arrived.
type UpsertType string

const (
	// UpsertNotify marks a new message that should notify the user.
	UpsertNotify UpsertType = "notify"
)

// MessageKey addresses one stored message.
type MessageKey struct {
	RemoteJID   string
	ID          string
	FromMe      bool
	Participant string
}

// KeyFromString builds a key that only knows the remote party. It is used
// when the caller has the sender's identifier but not the full message key.
func KeyFromString(remoteJID string) MessageKey {
	return MessageKey{RemoteJID: remoteJID}
}

// IsComplete reports whether the key identifies a specific message.
func (k MessageKey) IsComplete() bool {
	return k.ID != ""
}

// GroupInviteMessage is the invite payload of a chat message.
type GroupInviteMessage struct {
	GroupJID         string
	InviteCode       string
	InviteExpiration int64
	GroupName        string
	Caption          string
}

// Expired returns a copy of the invite with its code and expiration
// cleared. A rendered invite in that state can no longer be accepted.
func (m GroupInviteMessage) Expired() GroupInviteMessage {
	m.InviteCode = ""
	m.InviteExpiration = 0
	return m
}

// IsExpired reports whether the invite has been consumed or has passed its
// expiration at now.
func (m GroupInviteMessage) IsExpired(now time.Time) bool {
	if m.InviteCode == "" {
		return true
	}
	return m.InviteExpiration > 0 && now.Unix() >= m.InviteExpiration
}

// MessagePatch carries the fields of a message that changed.
type MessagePatch struct {
	GroupInvite *GroupInviteMessage
}

// MessageUpdate is one entry of a "messages.update" event.
type MessageUpdate struct {
	Key    MessageKey
	Update MessagePatch
}

// WebMessage is a stored message as handed to the message store.
type WebMessage struct {
	Key            MessageKey
	StubType       StubType
	StubParameters []string
	Participant    string
	Timestamp      time.Time
}

// GenerateMessageID returns a fresh message identifier in the uppercase hex
// form used by the protocol.
func GenerateMessageID() string {
	id := uuid.New()
	return "3EB0" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))[:18]
}
