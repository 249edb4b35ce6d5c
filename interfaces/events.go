package interfaces

// Event names emitted by the group directory.
const (
	// EventGroupsUpdate carries a []*group.Metadata snapshot.
	EventGroupsUpdate = "groups.update"
	// EventMessagesUpdate carries a []messaging.MessageUpdate batch.
	EventMessagesUpdate = "messages.update"
)

// RouteDirty is the notification route of an inbound dirty signal.
const RouteDirty = "ib,,dirty"

// DirtyCategoryGroups is the dirty category that triggers a group resync.
const DirtyCategoryGroups = "groups"
