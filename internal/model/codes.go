package model

import (
	"regexp"

	"github.com/gofrs/uuid/v5"
)

var kodePattern = regexp.MustCompile(`^[A-Z0-9_]+$`)

// IsValidKode reports whether s matches the code character set ^[A-Z0-9_]+$.
func IsValidKode(s string) bool { return kodePattern.MatchString(s) }

// IsUUIDShaped reports whether s is a canonical textual UUID v4
// (8-4-4-4-12 hex, version nibble 4, RFC 4122 variant). Such codes are
// synthetic branch markers in the UI tree, not semantic codes.
func IsUUIDShaped(s string) bool {
	if len(s) != 36 || s[8] != '-' || s[13] != '-' || s[18] != '-' || s[23] != '-' {
		return false
	}
	id, err := uuid.FromString(s)
	if err != nil {
		return false
	}
	return id.Version() == uuid.V4 && id.Variant() == uuid.VariantRFC4122
}
