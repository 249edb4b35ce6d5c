package group

import (
	"fmt"
	"strconv"
	"time"

	"github.com/opd-ai/groupdir/jid"
	"github.com/opd-ai/groupdir/node"
)

// Role is a participant's role in a group.
type Role uint8

const (
	// RoleNone is a regular participant.
	RoleNone Role = iota
	// RoleAdmin can manage participants and settings.
	RoleAdmin
	// RoleSuperAdmin created the group and cannot be demoted.
	RoleSuperAdmin
)

// String returns the protocol name of the role.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleSuperAdmin:
		return "superadmin"
	default:
		return "none"
	}
}

// parseRole maps a participant "type" attribute to a Role.
func parseRole(s string) Role {
	switch s {
	case "admin":
		return RoleAdmin
	case "superadmin":
		return RoleSuperAdmin
	default:
		return RoleNone
	}
}

// Participant is a member of a group.
type Participant struct {
	ID   string
	Role Role
}

// Metadata describes one group. Optional string fields are empty when the
// response did not carry them.
type Metadata struct {
	ID           string
	Subject      string
	SubjectOwner string
	SubjectTime  time.Time
	Size         int
	Creation     time.Time
	Owner        string

	Description   string
	DescriptionID string
	LinkedParent  string

	// Restrict means only admins can edit group info.
	Restrict bool
	// Announce means only admins can send messages.
	Announce            bool
	IsCommunity         bool
	IsCommunityAnnounce bool
	JoinApprovalMode    bool
	MemberAddMode       bool

	// EphemeralDuration is the disappearing-message timer in seconds, 0 when off.
	EphemeralDuration uint32

	Participants []Participant
}

// Clone returns a deep copy of m.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	c := *m
	c.Participants = append([]Participant(nil), m.Participants...)
	return &c
}

// memberAddModeAll is the member_add_mode value that lets every member add
// participants.
const memberAddModeAll = "all_member_add"

// ExtractMetadata converts a group response into Metadata. It performs no
// I/O. A response without a "group" child, or whose group lacks an id or
// subject, fails with ErrMalformedResponse.
func ExtractMetadata(result *node.Node) (*Metadata, error) {
	group := result.Child("group")
	if group == nil {
		return nil, fmt.Errorf("%w: no group node in %q", ErrMalformedResponse, tagOf(result))
	}
	if group.Attr("id") == "" {
		return nil, fmt.Errorf("%w: group node has no id", ErrMalformedResponse)
	}
	if !group.HasAttr("subject") {
		return nil, fmt.Errorf("%w: group %s has no subject", ErrMalformedResponse, group.Attr("id"))
	}

	md := &Metadata{
		ID:           jid.Group(group.Attr("id")),
		Subject:      group.Attr("subject"),
		SubjectOwner: group.Attr("s_o"),
		SubjectTime:  parseUnix(group.Attr("s_t")),
		Creation:     parseUnix(group.Attr("creation")),
		LinkedParent: group.Child("linked_parent").Attr("jid"),

		Restrict:            group.Child("locked") != nil,
		Announce:            group.Child("announcement") != nil,
		IsCommunity:         group.Child("parent") != nil,
		IsCommunityAnnounce: group.Child("default_sub_group") != nil,
		JoinApprovalMode:    group.Child("membership_approval_mode") != nil,
		MemberAddMode:       group.ChildText("member_add_mode") == memberAddModeAll,
	}

	if creator := group.Attr("creator"); creator != "" {
		md.Owner = jid.NormalizeUser(creator)
	}

	if desc := group.Child("description"); desc != nil {
		md.Description = desc.ChildText("body")
		md.DescriptionID = desc.Attr("id")
	}

	if eph := group.Child("ephemeral"); eph.HasAttr("expiration") {
		if v, err := strconv.ParseUint(eph.Attr("expiration"), 10, 32); err == nil {
			md.EphemeralDuration = uint32(v)
		}
	}

	participants := group.Children("participant")
	md.Participants = make([]Participant, 0, len(participants))
	for _, p := range participants {
		md.Participants = append(md.Participants, Participant{
			ID:   p.Attr("jid"),
			Role: parseRole(p.Attr("type")),
		})
	}
	md.Size = len(md.Participants)

	return md, nil
}

// extractGroupNode parses a single group node taken out of a bulk response
// by wrapping it the way a single-group response is shaped.
func extractGroupNode(group *node.Node) (*Metadata, error) {
	return ExtractMetadata(node.Wrap("result", group))
}

// parseUnix parses a unix-seconds attribute. Missing or invalid values yield
// the zero time.
func parseUnix(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}

func tagOf(n *node.Node) string {
	if n == nil {
		return ""
	}
	return n.Tag
}
