package limits

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

const (
	// MaxSubjectLength is the longest group subject, in runes.
	MaxSubjectLength = 100

	// MaxDescriptionLength is the longest group description, in runes.
	MaxDescriptionLength = 2048

	// MaxParticipantsPerRequest bounds the participant list of one request.
	MaxParticipantsPerRequest = 1024
)

var (
	// ErrSubjectEmpty indicates an empty subject was provided.
	ErrSubjectEmpty = errors.New("empty subject")

	// ErrSubjectTooLong indicates a subject exceeds MaxSubjectLength.
	ErrSubjectTooLong = errors.New("subject too long")

	// ErrDescriptionTooLong indicates a description exceeds MaxDescriptionLength.
	ErrDescriptionTooLong = errors.New("description too long")

	// ErrNoParticipants indicates an empty participant list.
	ErrNoParticipants = errors.New("no participants")

	// ErrTooManyParticipants indicates a participant list exceeds MaxParticipantsPerRequest.
	ErrTooManyParticipants = errors.New("too many participants")

	// ErrInvalidUTF8 indicates text that is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("invalid utf-8")
)

// ValidateSubject checks a group subject.
func ValidateSubject(subject string) error {
	if subject == "" {
		return ErrSubjectEmpty
	}
	if !utf8.ValidString(subject) {
		return fmt.Errorf("%w: subject", ErrInvalidUTF8)
	}
	if n := utf8.RuneCountInString(subject); n > MaxSubjectLength {
		return fmt.Errorf("%w: length %d exceeds limit %d", ErrSubjectTooLong, n, MaxSubjectLength)
	}
	return nil
}

// ValidateDescription checks a group description. The empty description is
// valid and means "delete the description".
func ValidateDescription(description string) error {
	if !utf8.ValidString(description) {
		return fmt.Errorf("%w: description", ErrInvalidUTF8)
	}
	if n := utf8.RuneCountInString(description); n > MaxDescriptionLength {
		return fmt.Errorf("%w: length %d exceeds limit %d", ErrDescriptionTooLong, n, MaxDescriptionLength)
	}
	return nil
}

// ValidateParticipants checks the participant list of one request.
func ValidateParticipants(ids []string) error {
	if len(ids) == 0 {
		return ErrNoParticipants
	}
	if len(ids) > MaxParticipantsPerRequest {
		return fmt.Errorf("%w: %d exceeds limit %d", ErrTooManyParticipants, len(ids), MaxParticipantsPerRequest)
	}
	return nil
}
