// Package group implements the group directory: a locally cached,
// eventually-consistent view of the groups the account belongs to, and the
// operations that manage them through the remote group service.
//
// # Components
//
//   - [Cache]: time- and capacity-bounded store of group metadata. Entries are
//     fresh for the configured TTL, swept periodically and evicted
//     oldest-inserted first once the cache is full.
//   - [ExtractMetadata]: pure parser from a response tree to [Metadata].
//   - [Queue]: single-flight, strictly ordered processor for inbound items.
//     A failing item is logged and the queue moves on.
//   - [Directory]: wires the above to a [interfaces.Querier] and exposes
//     every group operation, the bulk resync triggered by dirty signals and
//     the exclusive invite-acceptance flow.
//
// # Reads and mutations
//
// Read operations ([Directory.GroupMetadata], [Directory.BatchGroupMetadata],
// [Directory.InviteCode], [Directory.GetInviteInfo],
// [Directory.MembershipRequestsList]) treat transport failures as an absent
// result: they log and return a nil value with a nil error. Mutations return
// the failure wrapped in [ErrTransportFailure]. A response the parser cannot
// understand always surfaces as [ErrMalformedResponse].
//
// # Usage
//
//	dir, err := group.NewDirectory(config.Default(), group.Dependencies{
//	    Querier:     conn,
//	    Events:      bus,
//	    Router:      bus,
//	    DirtyBits:   conn,
//	    Messages:    store,
//	    Credentials: creds,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	dir.Start()
//	defer dir.Stop()
//
//	md, err := dir.GroupMetadata(ctx, "120363041234567890@g.us")
//
// # Concurrency
//
// A Directory is safe for concurrent use. Cache reads for different groups
// proceed in parallel; concurrent misses for the same group share one
// round-trip unless CollapseDuplicateFetches is disabled. Invite acceptance
// runs on a single worker goroutine in FIFO order, and a dirty signal that
// arrives during a resync is folded into one more resync rather than run in
// parallel.
package group
