package group

import (
	"context"
	"fmt"
	"strconv"

	"github.com/opd-ai/groupdir/jid"
	"github.com/opd-ai/groupdir/limits"
	"github.com/opd-ai/groupdir/messaging"
	"github.com/opd-ai/groupdir/node"
	"github.com/sirupsen/logrus"
)

// ParticipantAction changes the membership or role of participants.
type ParticipantAction string

const (
	ParticipantAdd     ParticipantAction = "add"
	ParticipantRemove  ParticipantAction = "remove"
	ParticipantPromote ParticipantAction = "promote"
	ParticipantDemote  ParticipantAction = "demote"
)

func (a ParticipantAction) valid() bool {
	switch a {
	case ParticipantAdd, ParticipantRemove, ParticipantPromote, ParticipantDemote:
		return true
	}
	return false
}

// RequestAction answers pending join requests.
type RequestAction string

const (
	RequestApprove RequestAction = "approve"
	RequestReject  RequestAction = "reject"
)

func (a RequestAction) valid() bool {
	return a == RequestApprove || a == RequestReject
}

// Setting is a group setting toggle.
type Setting string

const (
	// SettingAnnouncement lets only admins send messages.
	SettingAnnouncement Setting = "announcement"
	// SettingNotAnnouncement lets everyone send messages.
	SettingNotAnnouncement Setting = "not_announcement"
	// SettingLocked lets only admins edit group info.
	SettingLocked Setting = "locked"
	// SettingUnlocked lets everyone edit group info.
	SettingUnlocked Setting = "unlocked"
)

func (s Setting) valid() bool {
	switch s {
	case SettingAnnouncement, SettingNotAnnouncement, SettingLocked, SettingUnlocked:
		return true
	}
	return false
}

// AddMode controls who may add participants.
type AddMode string

const (
	AddModeAdmins     AddMode = "admin_add"
	AddModeAllMembers AddMode = memberAddModeAll
)

// ApprovalMode switches join approval on or off.
type ApprovalMode string

const (
	ApprovalOn  ApprovalMode = "on"
	ApprovalOff ApprovalMode = "off"
)

// ParticipantResult is the per-participant outcome of a membership request.
// Status is the error code reported by the service, or "200" on success.
type ParticipantResult struct {
	Status  string
	ID      string
	Content *node.Node
}

// OK reports whether the participant was updated.
func (r ParticipantResult) OK() bool {
	return r.Status == "200"
}

func participantNodes(ids []string) []*node.Node {
	nodes := make([]*node.Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, node.New("participant", node.Attrs{"jid": id}))
	}
	return nodes
}

func participantResults(parent *node.Node) []ParticipantResult {
	affected := parent.Children("participant")
	results := make([]ParticipantResult, 0, len(affected))
	for _, p := range affected {
		status := p.Attr("error")
		if status == "" {
			status = "200"
		}
		results = append(results, ParticipantResult{
			Status:  status,
			ID:      p.Attr("jid"),
			Content: p,
		})
	}
	return results
}

// Create creates a group with the given subject and initial participants
// and returns its metadata. The new group is cached.
func (d *Directory) Create(ctx context.Context, subject string, participants []string) (*Metadata, error) {
	if err := limits.ValidateSubject(subject); err != nil {
		return nil, err
	}

	response, err := d.groupQuery(ctx, "create", jid.GroupServerAddress(), "set",
		node.New("create", node.Attrs{
			"subject": subject,
			"key":     messaging.GenerateMessageID(),
		}, participantNodes(participants)...))
	if err != nil {
		return nil, err
	}

	md, err := ExtractMetadata(response)
	if err != nil {
		return nil, err
	}
	d.cache.Put(md.ID, md)

	logrus.WithFields(logrus.Fields{
		"function":     "Create",
		"group_id":     md.ID,
		"participants": md.Size,
	}).Info("Group created")
	return md, nil
}

// Leave leaves a group.
func (d *Directory) Leave(ctx context.Context, groupID string) error {
	groupID = jid.Group(groupID)
	_, err := d.groupQuery(ctx, "leave", jid.GroupServerAddress(), "set",
		node.New("leave", nil, node.New("group", node.Attrs{"id": groupID})))
	if err != nil {
		return err
	}
	d.cache.Delete(groupID)

	logrus.WithFields(logrus.Fields{
		"function": "Leave",
		"group_id": groupID,
	}).Info("Left group")
	return nil
}

// UpdateSubject renames a group.
func (d *Directory) UpdateSubject(ctx context.Context, groupID, subject string) error {
	if err := limits.ValidateSubject(subject); err != nil {
		return err
	}
	groupID = jid.Group(groupID)
	_, err := d.groupQuery(ctx, "subject", groupID, "set", node.NewText("subject", nil, subject))
	if err != nil {
		return err
	}
	d.cache.Delete(groupID)
	return nil
}

// UpdateDescription replaces the group description. An empty description
// deletes it. The current description revision is read first so the
// service can detect concurrent edits.
func (d *Directory) UpdateDescription(ctx context.Context, groupID, description string) error {
	if err := limits.ValidateDescription(description); err != nil {
		return err
	}
	groupID = jid.Group(groupID)

	current, err := d.cachedMetadata(ctx, groupID)
	if err != nil {
		return fmt.Errorf("read current description of %s: %w", groupID, err)
	}

	attrs := node.Attrs{}
	var content []*node.Node
	if description != "" {
		attrs["id"] = messaging.GenerateMessageID()
		content = append(content, node.NewText("body", nil, description))
	} else {
		attrs["delete"] = "true"
	}
	if current != nil && current.DescriptionID != "" {
		attrs["prev"] = current.DescriptionID
	}

	_, err = d.groupQuery(ctx, "description", groupID, "set", node.New("description", attrs, content...))
	if err != nil {
		return err
	}
	d.cache.Delete(groupID)
	return nil
}

// ParticipantsUpdate adds, removes, promotes or demotes participants and
// reports the outcome for each of them.
func (d *Directory) ParticipantsUpdate(ctx context.Context, groupID string, participants []string, action ParticipantAction) ([]ParticipantResult, error) {
	if !action.valid() {
		return nil, fmt.Errorf("%w: participant action %q", ErrInvalidAction, action)
	}
	if err := limits.ValidateParticipants(participants); err != nil {
		return nil, err
	}
	groupID = jid.Group(groupID)

	response, err := d.groupQuery(ctx, "participants_"+string(action), groupID, "set",
		node.New(string(action), nil, participantNodes(participants)...))
	if err != nil {
		return nil, err
	}
	d.cache.Delete(groupID)

	results := participantResults(response.Child(string(action)))
	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	logrus.WithFields(logrus.Fields{
		"function": "ParticipantsUpdate",
		"group_id": groupID,
		"action":   action,
		"affected": len(results),
		"failed":   failed,
	}).Info("Participants updated")
	return results, nil
}

// MembershipRequestsList returns the pending join requests of a group as
// their raw attribute sets. A transport failure yields (nil, nil).
func (d *Directory) MembershipRequestsList(ctx context.Context, groupID string) ([]map[string]string, error) {
	groupID = jid.Group(groupID)
	response, err := d.groupQuery(ctx, "membership_requests", groupID, "get",
		node.New("membership_approval_requests", nil))
	if err != nil {
		return nil, absentOnTransportFailure("MembershipRequestsList", err)
	}

	requests := response.Child("membership_approval_requests").Children("membership_approval_request")
	out := make([]map[string]string, 0, len(requests))
	for _, r := range requests {
		attrs := make(map[string]string, len(r.Attrs))
		for k, v := range r.Attrs {
			attrs[k] = v
		}
		out = append(out, attrs)
	}
	return out, nil
}

// MembershipRequestsUpdate approves or rejects pending join requests.
func (d *Directory) MembershipRequestsUpdate(ctx context.Context, groupID string, participants []string, action RequestAction) ([]ParticipantResult, error) {
	if !action.valid() {
		return nil, fmt.Errorf("%w: request action %q", ErrInvalidAction, action)
	}
	if err := limits.ValidateParticipants(participants); err != nil {
		return nil, err
	}
	groupID = jid.Group(groupID)

	response, err := d.groupQuery(ctx, "membership_requests_"+string(action), groupID, "set",
		node.New("membership_requests_action", nil,
			node.New(string(action), nil, participantNodes(participants)...)))
	if err != nil {
		return nil, err
	}
	if action == RequestApprove {
		d.cache.Delete(groupID)
	}

	return participantResults(response.Child("membership_requests_action").Child(string(action))), nil
}

// InviteCode returns the current invite code of a group. A transport
// failure yields ("", nil).
func (d *Directory) InviteCode(ctx context.Context, groupID string) (string, error) {
	response, err := d.groupQuery(ctx, "invite_code", jid.Group(groupID), "get", node.New("invite", nil))
	if err != nil {
		return "", absentOnTransportFailure("InviteCode", err)
	}
	return response.Child("invite").Attr("code"), nil
}

// RevokeInvite invalidates the current invite code and returns the new one.
func (d *Directory) RevokeInvite(ctx context.Context, groupID string) (string, error) {
	response, err := d.groupQuery(ctx, "revoke_invite", jid.Group(groupID), "set", node.New("invite", nil))
	if err != nil {
		return "", err
	}
	return response.Child("invite").Attr("code"), nil
}

// AcceptInvite joins a group through an invite code and returns the
// group's id.
func (d *Directory) AcceptInvite(ctx context.Context, code string) (string, error) {
	response, err := d.groupQuery(ctx, "accept_invite", jid.GroupServerAddress(), "set",
		node.New("invite", node.Attrs{"code": code}))
	if err != nil {
		return "", err
	}
	groupID := response.Child("group").Attr("jid")

	logrus.WithFields(logrus.Fields{
		"function": "AcceptInvite",
		"code":     redactCode(code),
		"group_id": groupID,
	}).Info("Joined group through invite code")
	return groupID, nil
}

// GetInviteInfo returns the metadata of the group an invite code points
// to. A transport failure yields (nil, nil).
func (d *Directory) GetInviteInfo(ctx context.Context, code string) (*Metadata, error) {
	response, err := d.groupQuery(ctx, "invite_info", jid.GroupServerAddress(), "get",
		node.New("invite", node.Attrs{"code": code}))
	if err != nil {
		return nil, absentOnTransportFailure("GetInviteInfo", err)
	}
	return ExtractMetadata(response)
}

// ToggleEphemeral sets the disappearing-message timer; 0 turns it off.
func (d *Directory) ToggleEphemeral(ctx context.Context, groupID string, seconds uint32) error {
	content := node.New("not_ephemeral", nil)
	if seconds > 0 {
		content = node.New("ephemeral", node.Attrs{"expiration": strconv.FormatUint(uint64(seconds), 10)})
	}
	return d.settingQuery(ctx, "ephemeral", groupID, content)
}

// SettingUpdate toggles announcement-only or locked mode.
func (d *Directory) SettingUpdate(ctx context.Context, groupID string, setting Setting) error {
	if !setting.valid() {
		return fmt.Errorf("%w: setting %q", ErrInvalidAction, setting)
	}
	return d.settingQuery(ctx, "setting", groupID, node.New(string(setting), nil))
}

// MemberAddMode sets who may add participants.
func (d *Directory) MemberAddMode(ctx context.Context, groupID string, mode AddMode) error {
	if mode != AddModeAdmins && mode != AddModeAllMembers {
		return fmt.Errorf("%w: member add mode %q", ErrInvalidAction, mode)
	}
	return d.settingQuery(ctx, "member_add_mode", groupID, node.NewText("member_add_mode", nil, string(mode)))
}

// JoinApprovalMode turns admin approval of join requests on or off.
func (d *Directory) JoinApprovalMode(ctx context.Context, groupID string, mode ApprovalMode) error {
	if mode != ApprovalOn && mode != ApprovalOff {
		return fmt.Errorf("%w: join approval mode %q", ErrInvalidAction, mode)
	}
	return d.settingQuery(ctx, "join_approval_mode", groupID,
		node.New("membership_approval_mode", nil,
			node.New("group_join", node.Attrs{"state": string(mode)})))
}

// settingQuery submits a setting change and drops the cached metadata.
func (d *Directory) settingQuery(ctx context.Context, operation, groupID string, content *node.Node) error {
	groupID = jid.Group(groupID)
	if _, err := d.groupQuery(ctx, operation, groupID, "set", content); err != nil {
		return err
	}
	d.cache.Delete(groupID)
	return nil
}
