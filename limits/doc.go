// Package limits provides centralized size limits for group fields and the
// validators the directory runs before issuing a request.
//
// # Limits
//
//   - MaxSubjectLength (100 runes): longest accepted group subject.
//   - MaxDescriptionLength (2048 runes): longest accepted group description.
//   - MaxParticipantsPerRequest (1024): most participants one add/remove/
//     promote/demote request may list.
//
// Rejecting oversized input locally avoids a round-trip the remote would
// refuse anyway. Errors wrap package sentinels so callers can use errors.Is:
//
//	if err := limits.ValidateSubject(subject); errors.Is(err, limits.ErrSubjectTooLong) {
//	    // ask the user for a shorter subject
//	}
package limits
