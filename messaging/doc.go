// Package messaging provides the message-side value types the group
// directory reads and produces.
//
// # Overview
//
// Group operations touch the message store in two places: accepting an
// invite rewrites the rendered invite message so it cannot be accepted
// again, and a system stub message records that the local account joined.
// This package holds those shapes:
//
//   - [MessageKey]: Addresses a stored message (chat, id, sender).
//   - [GroupInviteMessage]: The invite payload carried by a chat message.
//   - [WebMessage]: A stored message, including system stubs.
//   - [MessageUpdate]: A patch emitted on the "messages.update" event.
//
// Persisting messages is the job of the message store; this package only
// builds the values handed to it.
//
// # Usage
//
//	key := messaging.KeyFromString(senderID)
//	expired := invite.Expired()
//	update := messaging.MessageUpdate{
//	    Key:    key,
//	    Update: messaging.MessagePatch{GroupInvite: &expired},
//	}
package messaging
