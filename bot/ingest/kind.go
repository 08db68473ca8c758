// Package ingest turns raw uploaded bytes into validated domain records:
// it classifies artifacts, extracts normalized phone numbers, and applies
// the per-workflow archive policies.
package ingest

// Kind is the closed classification result for an uploaded artifact.
type Kind int

const (
	// KindUnrecognized means no classification rule matched.
	KindUnrecognized Kind = iota
	// KindCredential marks session/credential material for an external account.
	KindCredential
	// KindNumberSource marks a text artifact carrying phone numbers.
	KindNumberSource
	// KindArchive marks a compressed container whose members are classified
	// individually.
	KindArchive
)

func (k Kind) String() string {
	switch k {
	case KindCredential:
		return "credential"
	case KindNumberSource:
		return "numbers"
	case KindArchive:
		return "archive"
	default:
		return "unrecognized"
	}
}

// Artifact is a transient uploaded file: never persisted by this layer.
type Artifact struct {
	Filename     string
	Data         []byte
	DeclaredSize int64
}
