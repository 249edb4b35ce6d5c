package group

import (
	"context"
	"strings"
	"testing"

	"github.com/opd-ai/groupdir/limits"
	"github.com/opd-ai/groupdir/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// primeCache stores metadata for testGroupID so mutations can be checked
// for invalidation.
func primeCache(t *testing.T, td *testDirectory) {
	t.Helper()
	td.Cache().Put(testGroupID, testMetadata(testGroupID))
	require.Equal(t, 1, td.Cache().Len())
}

func TestDirectory_Create(t *testing.T) {
	td := newTestDirectory(t, nil)
	td.querier.setHandler(func(req *node.Node) (*node.Node, error) {
		create := req.Child("create")
		return resultIQ(groupNode(testGroupBareID, create.Attr("subject"), testSelfID, testMemberID)), nil
	})

	md, err := td.Create(context.Background(), "Book club", []string{testMemberID})
	require.NoError(t, err)
	assert.Equal(t, testGroupID, md.ID)
	assert.Equal(t, "Book club", md.Subject)
	assert.Equal(t, 2, md.Size)

	req := td.querier.last()
	assert.Equal(t, "@g.us", req.Attr("to"))
	assert.Equal(t, "set", req.Attr("type"))
	create := req.Child("create")
	require.NotNil(t, create)
	assert.Len(t, create.Attr("key"), 22)
	participants := create.Children("participant")
	require.Len(t, participants, 1)
	assert.Equal(t, testMemberID, participants[0].Attr("jid"))

	cached, ok := td.Cache().Get(testGroupID)
	require.True(t, ok, "created group is cached")
	assert.Equal(t, "Book club", cached.Subject)
}

func TestDirectory_CreateValidatesSubject(t *testing.T) {
	td := newTestDirectory(t, nil)

	_, err := td.Create(context.Background(), "", nil)
	assert.ErrorIs(t, err, limits.ErrSubjectEmpty)

	_, err = td.Create(context.Background(), strings.Repeat("x", limits.MaxSubjectLength+1), nil)
	assert.ErrorIs(t, err, limits.ErrSubjectTooLong)
	assert.Equal(t, 0, td.querier.count())
}

func TestDirectory_MutationsPropagateTransportFailure(t *testing.T) {
	td := newTestDirectory(t, nil)
	td.querier.setHandler(func(*node.Node) (*node.Node, error) { return nil, errMockTransport })
	primeCache(t, td)
	ctx := context.Background()

	_, err := td.Create(ctx, "s", nil)
	assert.ErrorIs(t, err, ErrTransportFailure)
	assert.ErrorIs(t, err, errMockTransport)
	assert.ErrorIs(t, td.Leave(ctx, testGroupID), ErrTransportFailure)
	assert.ErrorIs(t, td.UpdateSubject(ctx, testGroupID, "s"), ErrTransportFailure)
	_, err = td.ParticipantsUpdate(ctx, testGroupID, []string{testMemberID}, ParticipantAdd)
	assert.ErrorIs(t, err, ErrTransportFailure)
	_, err = td.RevokeInvite(ctx, testGroupID)
	assert.ErrorIs(t, err, ErrTransportFailure)
	_, err = td.AcceptInvite(ctx, testInviteCode)
	assert.ErrorIs(t, err, ErrTransportFailure)
	assert.ErrorIs(t, td.ToggleEphemeral(ctx, testGroupID, 0), ErrTransportFailure)

	assert.Equal(t, 1, td.Cache().Len(), "failed mutations keep the cache")
}

func TestDirectory_ReadsAbsentOnTransportFailure(t *testing.T) {
	td := newTestDirectory(t, nil)
	td.querier.setHandler(func(*node.Node) (*node.Node, error) { return nil, errMockTransport })
	ctx := context.Background()

	code, err := td.InviteCode(ctx, testGroupID)
	assert.NoError(t, err)
	assert.Empty(t, code)

	info, err := td.GetInviteInfo(ctx, testInviteCode)
	assert.NoError(t, err)
	assert.Nil(t, info)

	requests, err := td.MembershipRequestsList(ctx, testGroupID)
	assert.NoError(t, err)
	assert.Nil(t, requests)
}

func TestDirectory_Leave(t *testing.T) {
	td := newTestDirectory(t, nil)
	primeCache(t, td)

	require.NoError(t, td.Leave(context.Background(), testGroupBareID))

	req := td.querier.last()
	assert.Equal(t, "@g.us", req.Attr("to"))
	assert.Equal(t, testGroupID, req.Child("leave").Child("group").Attr("id"))
	assert.Equal(t, 0, td.Cache().Len())
}

func TestDirectory_UpdateSubject(t *testing.T) {
	td := newTestDirectory(t, nil)
	primeCache(t, td)

	require.NoError(t, td.UpdateSubject(context.Background(), testGroupID, "New name"))

	req := td.querier.last()
	assert.Equal(t, testGroupID, req.Attr("to"))
	assert.Equal(t, "New name", req.ChildText("subject"))
	assert.Equal(t, 0, td.Cache().Len())
}

func TestDirectory_UpdateDescription(t *testing.T) {
	td := newTestDirectory(t, nil)
	td.querier.setHandler(func(req *node.Node) (*node.Node, error) {
		if req.Child("query") != nil {
			g := groupNode(testGroupID, "s")
			g.Content = append(g.Content, node.New("description", node.Attrs{"id": "PREV1"},
				node.NewText("body", nil, "old")))
			return resultIQ(g), nil
		}
		return resultIQ(), nil
	})
	ctx := context.Background()

	require.NoError(t, td.UpdateDescription(ctx, testGroupID, "fresh text"))

	desc := td.querier.last().Child("description")
	require.NotNil(t, desc)
	assert.Equal(t, "PREV1", desc.Attr("prev"))
	assert.NotEmpty(t, desc.Attr("id"))
	assert.False(t, desc.HasAttr("delete"))
	assert.Equal(t, "fresh text", desc.ChildText("body"))

	require.NoError(t, td.UpdateDescription(ctx, testGroupID, ""))
	desc = td.querier.last().Child("description")
	assert.Equal(t, "true", desc.Attr("delete"))
	assert.False(t, desc.HasAttr("id"))
	assert.Nil(t, desc.Child("body"))
}

func TestDirectory_UpdateDescriptionFailsWhenCurrentUnreadable(t *testing.T) {
	td := newTestDirectory(t, nil)
	td.querier.setHandler(func(*node.Node) (*node.Node, error) { return nil, errMockTransport })

	err := td.UpdateDescription(context.Background(), testGroupID, "text")
	assert.ErrorIs(t, err, ErrTransportFailure)
	assert.Equal(t, 1, td.querier.count(), "description is not sent")
}

func TestDirectory_ParticipantsUpdate(t *testing.T) {
	td := newTestDirectory(t, nil)
	td.querier.setHandler(func(req *node.Node) (*node.Node, error) {
		return resultIQ(node.New("add", nil,
			node.New("participant", node.Attrs{"jid": testMemberID}),
			node.New("participant", node.Attrs{"jid": testAdminID, "error": "403"}),
		)), nil
	})
	primeCache(t, td)

	results, err := td.ParticipantsUpdate(context.Background(), testGroupID,
		[]string{testMemberID, testAdminID}, ParticipantAdd)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "200", results[0].Status)
	assert.True(t, results[0].OK())
	assert.Equal(t, testMemberID, results[0].ID)
	assert.Equal(t, "403", results[1].Status)
	assert.False(t, results[1].OK())

	add := td.querier.last().Child("add")
	require.NotNil(t, add)
	assert.Len(t, add.Children("participant"), 2)
	assert.Equal(t, 0, td.Cache().Len())
}

func TestDirectory_ParticipantsUpdateValidation(t *testing.T) {
	td := newTestDirectory(t, nil)
	ctx := context.Background()

	_, err := td.ParticipantsUpdate(ctx, testGroupID, []string{testMemberID}, ParticipantAction("kick"))
	assert.ErrorIs(t, err, ErrInvalidAction)

	_, err = td.ParticipantsUpdate(ctx, testGroupID, nil, ParticipantRemove)
	assert.ErrorIs(t, err, limits.ErrNoParticipants)

	assert.Equal(t, 0, td.querier.count())
}

func TestDirectory_MembershipRequests(t *testing.T) {
	td := newTestDirectory(t, nil)
	td.querier.setHandler(func(req *node.Node) (*node.Node, error) {
		if req.Attr("type") == "get" {
			return resultIQ(node.New("membership_approval_requests", nil,
				node.New("membership_approval_request", node.Attrs{"jid": testMemberID, "request_method": "invite_link"}),
			)), nil
		}
		return resultIQ(node.New("membership_requests_action", nil,
			node.New("approve", nil, node.New("participant", node.Attrs{"jid": testMemberID})),
		)), nil
	})
	ctx := context.Background()

	pending, err := td.MembershipRequestsList(ctx, testGroupBareID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, testMemberID, pending[0]["jid"])
	assert.Equal(t, "invite_link", pending[0]["request_method"])
	assert.NotNil(t, td.querier.last().Child("membership_approval_requests"))

	results, err := td.MembershipRequestsUpdate(ctx, testGroupID, []string{testMemberID}, RequestApprove)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].OK())
	action := td.querier.last().Child("membership_requests_action")
	require.NotNil(t, action)
	assert.Len(t, action.Child("approve").Children("participant"), 1)

	_, err = td.MembershipRequestsUpdate(ctx, testGroupID, []string{testMemberID}, RequestAction("ignore"))
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestDirectory_InviteCodes(t *testing.T) {
	td := newTestDirectory(t, nil)
	td.querier.setHandler(func(req *node.Node) (*node.Node, error) {
		invite := req.Child("invite")
		switch {
		case req.Attr("type") == "get" && invite.HasAttr("code"):
			return resultIQ(groupNode(testGroupID, "Invited")), nil
		case req.Attr("type") == "get":
			return resultIQ(node.New("invite", node.Attrs{"code": testInviteCode})), nil
		case invite.HasAttr("code"):
			return resultIQ(node.New("group", node.Attrs{"jid": testGroupID})), nil
		default:
			return resultIQ(node.New("invite", node.Attrs{"code": "NEWCODE"})), nil
		}
	})
	ctx := context.Background()

	code, err := td.InviteCode(ctx, testGroupBareID)
	require.NoError(t, err)
	assert.Equal(t, testInviteCode, code)
	assert.Equal(t, testGroupID, td.querier.last().Attr("to"))

	code, err = td.RevokeInvite(ctx, testGroupID)
	require.NoError(t, err)
	assert.Equal(t, "NEWCODE", code)
	assert.Equal(t, "set", td.querier.last().Attr("type"))

	joined, err := td.AcceptInvite(ctx, testInviteCode)
	require.NoError(t, err)
	assert.Equal(t, testGroupID, joined)
	req := td.querier.last()
	assert.Equal(t, "@g.us", req.Attr("to"))
	assert.Equal(t, testInviteCode, req.Child("invite").Attr("code"))

	info, err := td.GetInviteInfo(ctx, testInviteCode)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Invited", info.Subject)
}

func TestDirectory_Settings(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		call  func(d *Directory) error
		check func(t *testing.T, content *node.Node)
	}{
		{
			name: "ephemeral on",
			call: func(d *Directory) error { return d.ToggleEphemeral(ctx, testGroupID, 604800) },
			check: func(t *testing.T, content *node.Node) {
				assert.Equal(t, "ephemeral", content.Tag)
				assert.Equal(t, "604800", content.Attr("expiration"))
			},
		},
		{
			name: "ephemeral off",
			call: func(d *Directory) error { return d.ToggleEphemeral(ctx, testGroupID, 0) },
			check: func(t *testing.T, content *node.Node) {
				assert.Equal(t, "not_ephemeral", content.Tag)
			},
		},
		{
			name: "announcement",
			call: func(d *Directory) error { return d.SettingUpdate(ctx, testGroupID, SettingAnnouncement) },
			check: func(t *testing.T, content *node.Node) {
				assert.Equal(t, "announcement", content.Tag)
			},
		},
		{
			name: "unlocked",
			call: func(d *Directory) error { return d.SettingUpdate(ctx, testGroupID, SettingUnlocked) },
			check: func(t *testing.T, content *node.Node) {
				assert.Equal(t, "unlocked", content.Tag)
			},
		},
		{
			name: "member add mode",
			call: func(d *Directory) error { return d.MemberAddMode(ctx, testGroupID, AddModeAllMembers) },
			check: func(t *testing.T, content *node.Node) {
				assert.Equal(t, "member_add_mode", content.Tag)
				assert.Equal(t, "all_member_add", content.Text())
			},
		},
		{
			name: "join approval",
			call: func(d *Directory) error { return d.JoinApprovalMode(ctx, testGroupID, ApprovalOn) },
			check: func(t *testing.T, content *node.Node) {
				assert.Equal(t, "membership_approval_mode", content.Tag)
				assert.Equal(t, "on", content.Child("group_join").Attr("state"))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			td := newTestDirectory(t, nil)
			primeCache(t, td)

			require.NoError(t, tt.call(td.Directory))

			req := td.querier.last()
			assert.Equal(t, "set", req.Attr("type"))
			assert.Equal(t, testGroupID, req.Attr("to"))
			require.Len(t, req.Content, 1)
			tt.check(t, req.Content[0])
			assert.Equal(t, 0, td.Cache().Len())
		})
	}
}

func TestDirectory_SettingsValidation(t *testing.T) {
	td := newTestDirectory(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, td.SettingUpdate(ctx, testGroupID, Setting("muted")), ErrInvalidAction)
	assert.ErrorIs(t, td.MemberAddMode(ctx, testGroupID, AddMode("anyone")), ErrInvalidAction)
	assert.ErrorIs(t, td.JoinApprovalMode(ctx, testGroupID, ApprovalMode("maybe")), ErrInvalidAction)
	assert.Equal(t, 0, td.querier.count())
}
