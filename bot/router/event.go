// Package router is the state-scoped event router: it decides, for every
// inbound event, which handling routine may act on it, what context data the
// routine sees, and commits the resulting transition before side effects are
// dispatched.
package router

import "github.com/thertxnetworktwo/toolkit/bot/ingest"

// Kind discriminates inbound event variants.
type Kind int

const (
	// KindButton is an inline-button activation carrying an action id.
	KindButton Kind = iota
	// KindText is a free-text message.
	KindText
	// KindFile is an uploaded document with its bytes already downloaded.
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindButton:
		return "button"
	case KindText:
		return "text"
	default:
		return "file"
	}
}

// Event is one inbound user action delivered by the transport collaborator.
type Event struct {
	UserID  int64
	Kind    Kind
	Action  string
	Payload string
	Text    string
	File    *ingest.Artifact
}

// Button builds a button-activation event.
func Button(userID int64, action, payload string) Event {
	return Event{UserID: userID, Kind: KindButton, Action: action, Payload: payload}
}

// Text builds a free-text event.
func Text(userID int64, text string) Event {
	return Event{UserID: userID, Kind: KindText, Text: text}
}

// File builds an upload event from already-downloaded bytes.
func File(userID int64, filename string, data []byte) Event {
	return Event{UserID: userID, Kind: KindFile, File: &ingest.Artifact{
		Filename:     filename,
		Data:         data,
		DeclaredSize: int64(len(data)),
	}}
}
