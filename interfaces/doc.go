// Package interfaces defines the narrow contracts the group directory uses
// to reach the rest of the client.
//
// The directory never talks to a socket, a credential file or a message
// database directly. It is handed implementations of these interfaces at
// construction time:
//
//   - [Querier]: one request/response round-trip over the attributed tree.
//   - [EventEmitter]: publishes "groups.update" and "messages.update".
//   - [NotificationRouter]: delivers inbound notifications by route.
//   - [DirtyBitCleaner]: acknowledges a dirty signal to the remote.
//   - [MessageUpserter]: persists synthesized system messages.
//   - [CredentialStore]: exposes the local account identifier.
//
// The events package provides an in-process EventEmitter and
// NotificationRouter.
package interfaces
