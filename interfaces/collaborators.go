package interfaces

import (
	"context"

	"github.com/opd-ai/groupdir/messaging"
	"github.com/opd-ai/groupdir/node"
)

// Querier performs a single request/response exchange with the remote
// service. Timeouts are the implementation's responsibility; a timeout is
// reported as an ordinary error.
type Querier interface {
	Query(ctx context.Context, request *node.Node) (*node.Node, error)
}

// QuerierFunc adapts a function to the Querier interface.
type QuerierFunc func(ctx context.Context, request *node.Node) (*node.Node, error)

// Query implements Querier for QuerierFunc.
func (f QuerierFunc) Query(ctx context.Context, request *node.Node) (*node.Node, error) {
	return f(ctx, request)
}

// EventEmitter publishes a named event with its payload.
type EventEmitter interface {
	Emit(event string, payload any)
}

// NotificationHandler receives an inbound notification node.
type NotificationHandler func(n *node.Node)

// NotificationRouter delivers inbound notifications to handlers registered
// for a route such as "ib,,dirty".
type NotificationRouter interface {
	RegisterHandler(route string, handler NotificationHandler)
}

// DirtyBitCleaner acknowledges that a dirty category has been refreshed.
type DirtyBitCleaner interface {
	CleanDirtyBits(ctx context.Context, category string) error
}

// MessageUpserter persists a message into the local message store.
type MessageUpserter interface {
	UpsertMessage(ctx context.Context, msg *messaging.WebMessage, upsertType messaging.UpsertType) error
}

// CredentialStore exposes the identity of the local account.
type CredentialStore interface {
	SelfID() string
}
