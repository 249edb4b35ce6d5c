package group

import "time"

// Common test constants used across the group package tests.

const (
	// testGroupID is a fully qualified group id.
	testGroupID = "120363021111111111@g.us"

	// testGroupBareID is testGroupID without its server.
	testGroupBareID = "120363021111111111"

	// testOtherGroupID is a second fully qualified group id.
	testOtherGroupID = "120363022222222222@g.us"

	// testThirdGroupID is a third fully qualified group id.
	testThirdGroupID = "120363023333333333@g.us"

	// testSelfID is the local account.
	testSelfID = "15550000000@s.whatsapp.net"

	// testAdminID is a group admin and invite sender.
	testAdminID = "15551111111@s.whatsapp.net"

	// testMemberID is a regular participant.
	testMemberID = "15552222222@s.whatsapp.net"

	// testInviteCode is an invite code as the service hands them out.
	testInviteCode = "Kx8Dk2mQp0aBcDeF"

	// testInviteExpiration is the unix expiration of testInviteCode.
	testInviteExpiration int64 = 1893456000

	// testTTL is the default cache time to live.
	testTTL = 10 * time.Minute

	// testCapacity is the default cache capacity.
	testCapacity = 100
)

// testEpoch is the starting point of the mock clock.
var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
