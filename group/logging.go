package group

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// redactCode returns a short digest of an invite code for log fields.
// Invite codes grant access to a group and are never logged verbatim.
func redactCode(code string) string {
	if code == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(code))
	return hex.EncodeToString(sum[:4])
}
