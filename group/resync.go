package group

import (
	"context"
	"fmt"

	"github.com/opd-ai/groupdir/interfaces"
	"github.com/opd-ai/groupdir/jid"
	"github.com/opd-ai/groupdir/node"
	"github.com/sirupsen/logrus"
)

// ResyncState is the state of the dirty-signal reconciliation.
type ResyncState uint8

const (
	// ResyncIdle means no resync is running.
	ResyncIdle ResyncState = iota
	// ResyncRunning means a bulk resync is in progress.
	ResyncRunning
)

// String returns a human-readable name of the state.
func (s ResyncState) String() string {
	if s == ResyncRunning {
		return "resyncing"
	}
	return "idle"
}

// FetchAllParticipating reloads every group the account participates in.
// The cache is replaced wholesale by the result, so groups missing from the
// response disappear from the cache, and a "groups.update" event carries
// the new groups in response order.
func (d *Directory) FetchAllParticipating(ctx context.Context) (map[string]*Metadata, error) {
	response, err := d.groupQuery(ctx, "participating", jid.GroupServerAddress(), "get",
		node.New("participating", nil,
			node.New("participants", nil),
			node.New("description", nil)))
	if err != nil {
		return nil, err
	}

	groupNodes := response.Child("groups").Children("group")
	byID := make(map[string]*Metadata, len(groupNodes))
	index := make(map[string]int, len(groupNodes))
	ordered := make([]*Metadata, 0, len(groupNodes))
	for _, g := range groupNodes {
		md, err := extractGroupNode(g)
		if err != nil {
			return nil, fmt.Errorf("participating groups: %w", err)
		}
		if i, dup := index[md.ID]; dup {
			ordered[i] = md
		} else {
			index[md.ID] = len(ordered)
			ordered = append(ordered, md)
		}
		byID[md.ID] = md
	}

	d.cache.ReplaceAll(ordered)
	d.emit(interfaces.EventGroupsUpdate, ordered)

	logrus.WithFields(logrus.Fields{
		"function": "FetchAllParticipating",
		"groups":   len(ordered),
	}).Info("Fetched all participating groups")

	return byID, nil
}

// ResyncState reports whether a resync is running.
func (d *Directory) ResyncState() ResyncState {
	d.resyncMu.Lock()
	defer d.resyncMu.Unlock()
	return d.resyncState
}

// HandleDirtyNotification reacts to an inbound dirty signal. Signals for
// categories other than groups are ignored. A signal arriving while a
// resync runs is coalesced into one further resync by the running call,
// and this call returns nil immediately.
func (d *Directory) HandleDirtyNotification(ctx context.Context, n *node.Node) error {
	dirty := n.Child("dirty")
	if dirty == nil || dirty.Attr("type") != interfaces.DirtyCategoryGroups {
		logrus.WithFields(logrus.Fields{
			"function": "HandleDirtyNotification",
			"category": dirty.Attr("type"),
		}).Debug("Ignoring dirty notification for another category")
		return nil
	}

	d.resyncMu.Lock()
	if d.resyncState == ResyncRunning {
		d.resyncPending = true
		d.resyncMu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "HandleDirtyNotification",
		}).Debug("Resync already running, coalescing dirty signal")
		return nil
	}
	d.resyncState = ResyncRunning
	d.resyncMu.Unlock()

	var err error
	for {
		err = d.resyncOnce(ctx)

		d.resyncMu.Lock()
		if !d.resyncPending {
			d.resyncState = ResyncIdle
			d.resyncMu.Unlock()
			return err
		}
		d.resyncPending = false
		d.resyncMu.Unlock()
	}
}

// resyncOnce runs one bulk resync and acknowledges the dirty bit on success.
func (d *Directory) resyncOnce(ctx context.Context) error {
	_, err := d.FetchAllParticipating(ctx)
	if err == nil && d.dirty != nil {
		if cleanErr := d.dirty.CleanDirtyBits(ctx, interfaces.DirtyCategoryGroups); cleanErr != nil {
			err = fmt.Errorf("clean dirty bits: %w", cleanErr)
		}
	}
	d.metrics.resync(err)

	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "resyncOnce",
			"error":    err.Error(),
		}).Error("Group resync failed")
	}
	return err
}

// onDirtyNotification is the router callback for dirty signals. It runs
// the resync off the router's goroutine.
func (d *Directory) onDirtyNotification(n *node.Node) {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		_ = d.HandleDirtyNotification(d.ctx, n)
	}()
}
