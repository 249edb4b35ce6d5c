package group

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/opd-ai/groupdir/config"
	"github.com/opd-ai/groupdir/interfaces"
	"github.com/opd-ai/groupdir/jid"
	"github.com/opd-ai/groupdir/messaging"
	"github.com/opd-ai/groupdir/node"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// groupNamespace is the xmlns of every group request.
const groupNamespace = "w:g2"

// Dependencies are the collaborators a Directory is built from. Only
// Querier is required.
type Dependencies struct {
	Querier interfaces.Querier
	// Events receives "groups.update" and "messages.update".
	Events interfaces.EventEmitter
	// Router, when set, delivers dirty notifications to the directory.
	Router interfaces.NotificationRouter
	// DirtyBits acknowledges a completed groups resync.
	DirtyBits interfaces.DirtyBitCleaner
	// Messages persists the stub message written by invite acceptance.
	Messages interfaces.MessageUpserter
	// Credentials supplies the local account id for invite acceptance.
	Credentials interfaces.CredentialStore
	// NotificationHandler handles items of the notification queue.
	NotificationHandler Handler[*node.Node]
	// Registerer receives the directory's metrics; nil uses a private registry.
	Registerer prometheus.Registerer
	// Clock is injectable for tests.
	Clock TimeProvider
}

// Directory is the group directory of one client connection.
type Directory struct {
	cfg     *config.Config
	querier interfaces.Querier
	events  interfaces.EventEmitter
	router  interfaces.NotificationRouter
	dirty   interfaces.DirtyBitCleaner
	store   interfaces.MessageUpserter
	creds   interfaces.CredentialStore
	clock   TimeProvider
	metrics *Metrics

	cache         *Cache
	notifications *Queue[*node.Node]

	// ctx is cancelled by Stop and bounds background work.
	ctx    context.Context
	cancel context.CancelFunc

	resyncMu      sync.Mutex
	resyncState   ResyncState
	resyncPending bool

	inviteRequests chan *acceptRequest
	// inviteDone is closed when the invite worker exits.
	inviteDone chan struct{}
	// acceptedInvites is owned by the invite worker goroutine.
	acceptedInvites map[string]string

	mu       sync.Mutex
	running  bool
	stopped  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewDirectory creates a directory. Call Start before using invite
// acceptance or relying on the periodic sweep.
func NewDirectory(cfg *config.Config, deps Dependencies) (*Directory, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid group directory config: %w", err)
	}
	if deps.Querier == nil {
		return nil, errors.New("group directory requires a querier")
	}

	policy := EvictOldestInserted
	if cfg.EvictionPolicy == config.EvictAccess {
		policy = EvictLeastRecentlyUsed
	}

	clock := getTimeProvider(deps.Clock)
	metrics := NewMetrics(deps.Registerer)
	ctx, cancel := context.WithCancel(context.Background())

	d := &Directory{
		cfg:     cfg,
		querier: deps.Querier,
		events:  deps.Events,
		router:  deps.Router,
		dirty:   deps.DirtyBits,
		store:   deps.Messages,
		creds:   deps.Credentials,
		clock:   clock,
		metrics: metrics,
		cache: NewCache(CacheOptions{
			TTL:      cfg.CacheTTL,
			Capacity: cfg.CacheCapacity,
			Policy:   policy,
			Collapse: cfg.CollapseDuplicateFetches,
			Clock:    clock,
			Metrics:  metrics,
			Context:  ctx,
		}),
		ctx:             ctx,
		cancel:          cancel,
		inviteRequests:  make(chan *acceptRequest, cfg.InviteQueueSize),
		inviteDone:      make(chan struct{}),
		acceptedInvites: make(map[string]string),
		stopChan:        make(chan struct{}),
	}

	handler := deps.NotificationHandler
	if handler == nil {
		handler = discardNotification
	}
	d.notifications = NewQueue(ctx, "group_notifications", handler, metrics)

	logrus.WithFields(logrus.Fields{
		"function":       "NewDirectory",
		"cache_ttl":      cfg.CacheTTL,
		"cache_capacity": cfg.CacheCapacity,
		"eviction":       cfg.EvictionPolicy,
	}).Info("Group directory created")

	return d, nil
}

// Start launches the cache sweeper and the invite worker and subscribes to
// dirty notifications. Calling Start twice is a no-op.
func (d *Directory) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running || d.stopped {
		return
	}
	d.running = true

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		d.cache.runSweeper(d.cfg.SweepInterval, d.stopChan)
	}()
	go func() {
		defer d.wg.Done()
		d.inviteWorker()
	}()

	if d.router != nil {
		d.router.RegisterHandler(interfaces.RouteDirty, d.onDirtyNotification)
	}

	logrus.WithFields(logrus.Fields{
		"function":       "Start",
		"sweep_interval": d.cfg.SweepInterval,
	}).Info("Group directory started")
}

// Stop shuts down background work. A stopped directory cannot be restarted.
func (d *Directory) Stop() {
	d.mu.Lock()
	if !d.running {
		d.stopped = true
		d.cancel()
		d.mu.Unlock()
		return
	}
	d.running = false
	d.stopped = true
	close(d.stopChan)
	d.cancel()
	d.mu.Unlock()

	d.wg.Wait()

	logrus.WithFields(logrus.Fields{
		"function": "Stop",
	}).Info("Group directory stopped")
}

// Cache exposes the metadata cache.
func (d *Directory) Cache() *Cache {
	return d.cache
}

// EnqueueNotification hands an inbound group notification to the
// notification queue.
func (d *Directory) EnqueueNotification(n *node.Node) {
	d.notifications.Enqueue(n)
}

// WaitNotifications blocks until the notification queue is drained.
func (d *Directory) WaitNotifications() {
	d.notifications.Wait()
}

func discardNotification(_ context.Context, n *node.Node) error {
	logrus.WithFields(logrus.Fields{
		"function": "discardNotification",
		"tag":      tagOf(n),
	}).Debug("No notification handler configured, dropping item")
	return nil
}

// groupQuery performs one round-trip with the group service. Transport
// errors, empty responses and error responses all wrap ErrTransportFailure.
func (d *Directory) groupQuery(ctx context.Context, operation, to, queryType string, content ...*node.Node) (*node.Node, error) {
	request := node.New("iq", node.Attrs{
		"type":  queryType,
		"xmlns": groupNamespace,
		"to":    to,
	}, content...)

	logrus.WithFields(logrus.Fields{
		"function":  "groupQuery",
		"operation": operation,
		"to":        to,
		"type":      queryType,
	}).Debug("Sending group query")

	response, err := d.querier.Query(ctx, request)
	if err == nil && response == nil {
		err = fmt.Errorf("%w: empty response", ErrTransportFailure)
	} else if err != nil {
		err = fmt.Errorf("%w: %w", ErrTransportFailure, err)
	} else if remoteErr := responseError(response); remoteErr != nil {
		err = remoteErr
	}

	d.metrics.query(operation, err)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "groupQuery",
			"operation": operation,
			"to":        to,
			"error":     err.Error(),
		}).Warn("Group query failed")
		return nil, err
	}
	return response, nil
}

// responseError extracts an error response, if the response is one.
func responseError(response *node.Node) error {
	if response.Attr("type") != "error" && response.Child("error") == nil {
		return nil
	}
	errNode := response.Child("error")
	return &RemoteError{
		Code: errNode.Attr("code"),
		Text: errNode.Attr("text"),
	}
}

// absentOnTransportFailure converts a transport failure of a read operation
// into an absent result. Other errors are returned unchanged.
func absentOnTransportFailure(operation string, err error) error {
	if errors.Is(err, ErrTransportFailure) {
		logrus.WithFields(logrus.Fields{
			"function": operation,
			"error":    err.Error(),
		}).Warn("Group read failed, returning no result")
		return nil
	}
	return err
}

// GroupMetadata returns metadata for a group, from the cache while fresh.
// A transport failure yields (nil, nil).
func (d *Directory) GroupMetadata(ctx context.Context, groupID string) (*Metadata, error) {
	md, err := d.cachedMetadata(ctx, jid.Group(groupID))
	if err != nil {
		return nil, absentOnTransportFailure("GroupMetadata", err)
	}
	return md, nil
}

// cachedMetadata is the cache-through read with errors preserved.
func (d *Directory) cachedMetadata(ctx context.Context, groupID string) (*Metadata, error) {
	return d.cache.GetOrFetch(ctx, groupID, d.fetchMetadata)
}

func (d *Directory) fetchMetadata(ctx context.Context, groupID string) (*Metadata, error) {
	response, err := d.groupQuery(ctx, "metadata", groupID, "get",
		node.New("query", node.Attrs{"request": "interactive"}))
	if err != nil {
		return nil, err
	}
	return ExtractMetadata(response)
}

// BatchGroupMetadata reads several groups concurrently. The result has one
// slot per input id, in input order; a group that could not be read leaves
// its slot nil without affecting the others.
func (d *Directory) BatchGroupMetadata(ctx context.Context, groupIDs []string) []*Metadata {
	results := make([]*Metadata, len(groupIDs))

	var g errgroup.Group
	if d.cfg.BatchConcurrency > 0 {
		g.SetLimit(d.cfg.BatchConcurrency)
	}
	for i, id := range groupIDs {
		i, id := i, id
		g.Go(func() error {
			md, err := d.GroupMetadata(ctx, id)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "BatchGroupMetadata",
					"group_id": id,
					"index":    i,
					"error":    err.Error(),
				}).Warn("Batch entry failed")
				return nil
			}
			results[i] = md
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// emit publishes an event when an emitter is configured.
func (d *Directory) emit(event string, payload any) {
	if d.events == nil {
		return
	}
	d.events.Emit(event, payload)
}

// selfID returns the local account id, or "" without credentials.
func (d *Directory) selfID() string {
	if d.creds == nil {
		return ""
	}
	return d.creds.SelfID()
}

// upsert persists msg when a message store is configured.
func (d *Directory) upsert(ctx context.Context, msg *messaging.WebMessage) error {
	if d.store == nil {
		return nil
	}
	return d.store.UpsertMessage(ctx, msg, messaging.UpsertNotify)
}
