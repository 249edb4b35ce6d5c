// Package jid handles the domain-qualified entity identifiers used to
// address users and groups.
//
// An identifier has the form user[:device]@server. Groups live on the
// GroupServer domain; identifiers received without a server part are
// qualified before they are used as cache keys or request targets.
package jid

import (
	"strings"
)

const (
	// GroupServer is the domain suffix of every group identifier.
	GroupServer = "g.us"
	// UserServer is the canonical domain of user identifiers.
	UserServer = "s.whatsapp.net"
	// LegacyUserServer is the older user domain, normalized to UserServer.
	LegacyUserServer = "c.us"
)

// Separator splits the user part from the server part.
const Separator = "@"

// JID is a decoded identifier.
type JID struct {
	User   string
	Device string
	Server string
}

// String encodes the identifier back to its user[:device]@server form.
func (j JID) String() string {
	user := j.User
	if j.Device != "" {
		user += ":" + j.Device
	}
	if user == "" {
		return Separator + j.Server
	}
	return user + Separator + j.Server
}

// Parse splits a raw identifier. The second result is false when the input
// has no server part.
func Parse(raw string) (JID, bool) {
	idx := strings.LastIndex(raw, Separator)
	if idx < 0 {
		return JID{User: raw}, false
	}
	user, server := raw[:idx], raw[idx+1:]
	j := JID{Server: server}
	if colon := strings.Index(user, ":"); colon >= 0 {
		j.User, j.Device = user[:colon], user[colon+1:]
	} else {
		j.User = user
	}
	return j, true
}

// Encode joins a user and server into an identifier.
func Encode(user, server string) string {
	return JID{User: user, Server: server}.String()
}

// IsQualified reports whether raw carries a domain part.
func IsQualified(raw string) bool {
	return strings.Contains(raw, Separator)
}

// Group canonicalizes a group identifier. Qualified identifiers are returned
// unchanged; bare ones get the group domain appended.
func Group(raw string) string {
	if IsQualified(raw) {
		return raw
	}
	return Encode(raw, GroupServer)
}

// NormalizeUser strips any device suffix and maps the legacy user domain to
// UserServer. Identifiers that do not parse are returned unchanged.
func NormalizeUser(raw string) string {
	j, ok := Parse(raw)
	if !ok {
		return raw
	}
	server := j.Server
	if server == LegacyUserServer {
		server = UserServer
	}
	return Encode(j.User, server)
}

// GroupServerAddress is the address used for requests that target the group
// directory as a whole rather than one group.
func GroupServerAddress() string {
	return Separator + GroupServer
}
