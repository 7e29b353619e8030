// Package phone normalizes contact phone numbers extracted from JIDs.
package phone

import (
	"strings"

	"go.mau.fi/whatsmeow/types"
)

// MinDigits is the minimum length of a valid normalized number.
const MinDigits = 10

// Normalize strips everything that is not a digit from a JID user part,
// including device suffixes like ":12" and agent annotations.
func Normalize(user string) string {
	if i := strings.IndexAny(user, ":."); i >= 0 {
		user = user[:i]
	}
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, user)
}

// Valid reports whether a normalized number is long enough to identify
// a contact.
func Valid(number string) bool {
	return len(number) >= MinDigits
}

// ToJID builds a user JID from a normalized number.
func ToJID(number string) types.JID {
	return types.JID{
		User:   Normalize(number),
		Server: types.DefaultUserServer,
	}
}
