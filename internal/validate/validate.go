// Package validate holds the pure input checks applied to room identifiers,
// display names, and chat text before they reach the room directory.
//
// Every check returns nil or an *Error naming the rejected field. Nothing here
// sanitizes or truncates input: a value either passes unchanged or is refused.
package validate

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Field identifies which kind of input a validation error refers to. The
// values double as the error categories reported to clients.
type Field string

// Validated fields.
const (
	FieldRoom     Field = "room"
	FieldUserName Field = "username"
	FieldChat     Field = "chat"
)

// Limits applied by the validators.
const (
	MinRoomIDLength   = 3
	MaxRoomIDLength   = 32
	MinUserNameLength = 2
	MaxUserNameLength = 20
	MaxChatLength     = 500

	// spamRunLength is the run length at which repeated characters, capitals,
	// or digits mark a chat message as spam.
	spamRunLength = 10
)

// ErrInvalid matches every *Error through errors.Is.
var ErrInvalid = errors.New("invalid input")

// Error reports why an input was rejected.
type Error struct {
	Field  Field
	Reason string
}

func (e *Error) Error() string {
	return string(e.Field) + ": " + e.Reason
}

// Is lets callers test for ErrInvalid without caring about the field.
func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

func invalid(field Field, reason string) error {
	return &Error{Field: field, Reason: reason}
}

var (
	roomIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	urlPattern      = regexp.MustCompile(`(?i)(https?://|ftp://|www\.)\S+`)
	upperRunPattern = regexp.MustCompile(`[A-Z]{10,}`)
	digitRunPattern = regexp.MustCompile(`[0-9]{10,}`)
)

// forbiddenNameChars are refused in display names so that a name rendered as
// unescaped markup cannot inject elements or attributes.
const forbiddenNameChars = `<>"'&`

// RoomID checks a room identifier: 3 to 32 characters drawn from letters,
// digits, hyphen and underscore. Identifiers are case-sensitive.
func RoomID(id string) error {
	if id == "" {
		return invalid(FieldRoom, "Room ID is required")
	}
	n := utf8.RuneCountInString(id)
	if n < MinRoomIDLength || n > MaxRoomIDLength {
		return invalid(FieldRoom, "Room ID must be between 3 and 32 characters")
	}
	if !roomIDPattern.MatchString(id) {
		return invalid(FieldRoom, "Room ID may only contain letters, digits, hyphens and underscores")
	}
	return nil
}

// UserName checks a display name. The raw value may be at most 20 characters,
// must have at least 2 characters once trimmed, and must not contain markup
// characters.
func UserName(name string) error {
	if name == "" {
		return invalid(FieldUserName, "Username is required")
	}
	if utf8.RuneCountInString(name) > MaxUserNameLength {
		return invalid(FieldUserName, "Username must be at most 20 characters")
	}
	if utf8.RuneCountInString(strings.TrimSpace(name)) < MinUserNameLength {
		return invalid(FieldUserName, "Username must be at least 2 characters")
	}
	if strings.ContainsAny(name, forbiddenNameChars) {
		return invalid(FieldUserName, "Username contains forbidden characters")
	}
	return nil
}

// ChatText checks a chat message body. Spam is rejected outright.
func ChatText(text string) error {
	if strings.TrimSpace(text) == "" {
		return invalid(FieldChat, "Message cannot be empty")
	}
	if utf8.RuneCountInString(text) > MaxChatLength {
		return invalid(FieldChat, "Message must be at most 500 characters")
	}
	if IsSpam(text) {
		return invalid(FieldChat, "Message looks like spam")
	}
	return nil
}

// IsSpam reports whether text matches any spam signature: a run of 10 or more
// identical characters, an embedded URL, 10 or more consecutive capitals, or
// 10 or more consecutive digits.
func IsSpam(text string) bool {
	return hasRepeatedRun(text, spamRunLength) ||
		urlPattern.MatchString(text) ||
		upperRunPattern.MatchString(text) ||
		digitRunPattern.MatchString(text)
}

// hasRepeatedRun reports whether text contains n or more consecutive copies of
// the same rune. Line breaks reset the run.
func hasRepeatedRun(text string, n int) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == '\n' {
			run = 0
			continue
		}
		if run > 0 && r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run >= n {
			return true
		}
	}
	return false
}
