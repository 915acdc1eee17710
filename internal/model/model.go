// Package model defines domain entities used by services and repositories.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// UnknownAuthor is stamped when no authenticated principal is available.
const UnknownAuthor = "unknown"

// DocumentKind names one of the three independently versioned documents.
type DocumentKind string

const (
	KindKodeverk            DocumentKind = "kodeverk"
	KindBeregningsregelverk DocumentKind = "beregningsregler"
	KindSaksbehandlerUI     DocumentKind = "saksbehandler-ui"
)

// Kinds lists all document kinds in a stable order.
var Kinds = []DocumentKind{KindKodeverk, KindBeregningsregelverk, KindSaksbehandlerUI}

// ParseKind validates a path/flag value and returns the kind.
func ParseKind(s string) (DocumentKind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown document kind %q", s)
}

// Prefix is the object-name namespace shared by all snapshots of the kind.
func (k DocumentKind) Prefix() string { return string(k) + "/" }

// DocumentName is the per-kind file stem used in version ids.
func (k DocumentKind) DocumentName() string {
	switch k {
	case KindKodeverk:
		return "vilkar"
	case KindBeregningsregelverk:
		return "regler"
	case KindSaksbehandlerUI:
		return "sporsmal"
	default:
		return "dokument"
	}
}

// ObjectName maps a version id to its object name inside the kind's namespace.
func (k DocumentKind) ObjectName(versionID string) string {
	return k.Prefix() + versionID + ".json"
}

// ObjectInfo is a listing entry returned by blob backends (no body).
type ObjectInfo struct {
	Name      string
	UpdatedAt time.Time
	Metadata  map[string]string
}

// Metadata keys written with every snapshot.
const (
	MetaCreatedBy = "createdBy"
	MetaCreatedAt = "createdAt"
)

// VersionInfo describes a snapshot without its body. UpdatedAt is the
// backend's object timestamp; "latest" is resolved by it.
type VersionInfo struct {
	Kind      DocumentKind `json:"documentKind"`
	VersionID string       `json:"versionId"`
	CreatedBy string       `json:"createdBy"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// VersionedDocument is an immutable snapshot of a document body.
type VersionedDocument struct {
	VersionInfo
	Body json.RawMessage `json:"body"`
}

// SaveResult is returned after a successful commit.
type SaveResult struct {
	VersionInfo
	// Stamped counts entries whose editor metadata was updated by the save.
	Stamped int `json:"stamped"`
}
