package group

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/opd-ai/groupdir/interfaces"
	"github.com/opd-ai/groupdir/jid"
	"github.com/opd-ai/groupdir/messaging"
	"github.com/opd-ai/groupdir/node"
	"github.com/sirupsen/logrus"
)

// InviteState is the progress of one invite acceptance.
type InviteState uint8

const (
	InviteOffered InviteState = iota
	InviteAccepting
	InviteAccepted
	InviteFailed
)

// String returns a human-readable name of the state.
func (s InviteState) String() string {
	switch s {
	case InviteAccepting:
		return "accepting"
	case InviteAccepted:
		return "accepted"
	case InviteFailed:
		return "failed"
	default:
		return "offered"
	}
}

type acceptRequest struct {
	ctx    context.Context
	key    messaging.MessageKey
	invite messaging.GroupInviteMessage
	reply  chan acceptResult
	// claimed is set by whichever of the worker or an abandoning caller
	// gets to the request first.
	claimed atomic.Bool
}

type acceptResult struct {
	groupID string
	err     error
}

// AcceptInviteFrom accepts an invite when only the inviting sender is
// known. The rendered invite message is not rewritten in that case.
func (d *Directory) AcceptInviteFrom(ctx context.Context, senderID string, invite messaging.GroupInviteMessage) (string, error) {
	return d.AcceptInviteMessage(ctx, messaging.KeyFromString(senderID), invite)
}

// AcceptInviteMessage accepts a received group invite message.
//
// Acceptances run one at a time in arrival order. On success the stored
// invite message, when key identifies it, is replaced by an expired copy,
// a participant-add stub message is persisted, and the joined group's id is
// returned. If the service rejects the request nothing local changes. The
// same invite is accepted at most once per directory; a repeat fails with
// ErrInviteAlreadyAccepted.
//
// Cancelling ctx while the request is still queued abandons it. Once the
// worker has picked the request up, the call waits for its outcome so the
// returned error always matches what happened locally; a cancelled ctx or a
// Stop then aborts the round-trip itself.
func (d *Directory) AcceptInviteMessage(ctx context.Context, key messaging.MessageKey, invite messaging.GroupInviteMessage) (string, error) {
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()
	if !running {
		return "", ErrDirectoryStopped
	}

	req := &acceptRequest{
		ctx:    ctx,
		key:    key,
		invite: invite,
		reply:  make(chan acceptResult, 1),
	}

	select {
	case d.inviteRequests <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-d.stopChan:
		return "", ErrDirectoryStopped
	}

	select {
	case res := <-req.reply:
		return res.groupID, res.err
	case <-ctx.Done():
		if req.claimed.CompareAndSwap(false, true) {
			return "", ctx.Err()
		}
	case <-d.inviteDone:
	}
	return d.awaitAccept(req)
}

// awaitAccept waits for the outcome of a request the worker has claimed or
// may still claim.
func (d *Directory) awaitAccept(req *acceptRequest) (string, error) {
	select {
	case res := <-req.reply:
		return res.groupID, res.err
	case <-d.inviteDone:
		select {
		case res := <-req.reply:
			return res.groupID, res.err
		default:
			return "", ErrDirectoryStopped
		}
	}
}

// inviteWorker serializes invite acceptances.
func (d *Directory) inviteWorker() {
	defer close(d.inviteDone)
	for {
		select {
		case req := <-d.inviteRequests:
			if !req.claimed.CompareAndSwap(false, true) {
				continue
			}
			groupID, err := d.acceptInvite(req)
			d.metrics.inviteAccept(err)
			req.reply <- acceptResult{groupID: groupID, err: err}
		case <-d.stopChan:
			return
		}
	}
}

// consumedInviteKey identifies an invite for the accepted-once check.
func consumedInviteKey(invite messaging.GroupInviteMessage) string {
	return jid.Group(invite.GroupJID) + "/" + invite.InviteCode
}

// acceptInvite runs on the invite worker goroutine. Its round-trip is
// cancelled by either the caller's context or Stop.
func (d *Directory) acceptInvite(req *acceptRequest) (string, error) {
	if d.ctx.Err() != nil {
		return "", ErrDirectoryStopped
	}
	if err := req.ctx.Err(); err != nil {
		return "", err
	}
	ctx, cancel := context.WithCancel(req.ctx)
	defer cancel()
	stop := context.AfterFunc(d.ctx, cancel)
	defer stop()

	key, invite := req.key, req.invite
	groupID := jid.Group(invite.GroupJID)
	log := logrus.WithFields(logrus.Fields{
		"function": "acceptInvite",
		"group_id": groupID,
		"inviter":  key.RemoteJID,
		"code":     redactCode(invite.InviteCode),
	})

	state := InviteOffered
	if invite.IsExpired(d.clock.Now()) {
		log.WithFields(logrus.Fields{
			"state":      state,
			"expiration": invite.InviteExpiration,
		}).Warn("Refusing expired invite")
		return "", ErrInviteExpired
	}
	consumed := consumedInviteKey(invite)
	if _, ok := d.acceptedInvites[consumed]; ok {
		log.WithField("state", state).Warn("Invite already accepted")
		return "", ErrInviteAlreadyAccepted
	}

	state = InviteAccepting
	submittedAt := d.clock.Now()
	log.WithField("state", state).Debug("Submitting invite acceptance")
	response, err := d.groupQuery(ctx, "accept_invite_message", groupID, "set",
		node.New("accept", node.Attrs{
			"code":       invite.InviteCode,
			"expiration": strconv.FormatInt(invite.InviteExpiration, 10),
			"admin":      key.RemoteJID,
		}))
	if err != nil {
		state = InviteFailed
		log.WithFields(logrus.Fields{
			"state": state,
			"error": err.Error(),
		}).Warn("Invite acceptance rejected")
		return "", err
	}

	joined := response.Attr("from")
	d.acceptedInvites[consumed] = joined

	if key.IsComplete() {
		expired := invite.Expired()
		d.emit(interfaces.EventMessagesUpdate, []messaging.MessageUpdate{{
			Key:    key,
			Update: messaging.MessagePatch{GroupInvite: &expired},
		}})
	}

	stub := participantAddStub(groupID, key.RemoteJID, d.selfID(), submittedAt)
	if err := d.upsert(ctx, stub); err != nil {
		log.WithFields(logrus.Fields{
			"stub_type": stub.StubType.String(),
			"error":     err.Error(),
		}).Warn("Failed to persist stub message")
	}

	state = InviteAccepted
	log.WithFields(logrus.Fields{
		"state":  state,
		"joined": joined,
	}).Info("Invite accepted")
	return joined, nil
}

// participantAddStub builds the system message recording that self joined
// groupID on inviter's invite.
func participantAddStub(groupID, inviter, self string, at time.Time) *messaging.WebMessage {
	return &messaging.WebMessage{
		Key: messaging.MessageKey{
			RemoteJID:   groupID,
			ID:          messaging.GenerateMessageID(),
			FromMe:      false,
			Participant: inviter,
		},
		StubType:       messaging.StubTypeGroupParticipantAdd,
		StubParameters: []string{self},
		Participant:    inviter,
		Timestamp:      at.Truncate(time.Second),
	}
}
