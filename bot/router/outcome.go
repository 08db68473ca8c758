package router

import (
	"context"

	"github.com/thertxnetworktwo/toolkit/bot/ingest"
	"github.com/thertxnetworktwo/toolkit/bot/state"
)

// Code classifies how an event was resolved. Every code is recoverable: it
// maps to a user-facing reply and a well-defined next state, never a process
// failure.
type Code string

const (
	CodeOK                  Code = "ok"
	CodeStateMismatch       Code = "state_mismatch"
	CodeUnrecognized        Code = "unrecognized"
	CodeCorruptArchive      Code = "corrupt_archive"
	CodeArchiveTooLarge     Code = "archive_too_large"
	CodeConfirmationMissing Code = "confirmation_missing"
	CodePersistenceFailed   Code = "persistence_failed"
)

// Btn describes one inline button of a reply.
type Btn struct {
	Text    string
	Action  string
	Payload string
}

// Reply is the content handed back to the transport collaborator.
type Reply struct {
	Text    string
	Buttons [][]Btn
}

// Row is a convenience constructor for one button row.
func Row(btns ...Btn) []Btn { return btns }

// Outcome is the result of handling one event.
type Outcome struct {
	Code  Code
	Reply Reply
}

// Input is the normalized form of an event as seen by a routine. For file
// events the router resolves raw bytes through the classifier (and, for
// archives, the state-appropriate extraction policy) before dispatch.
type Input struct {
	Text     string
	Payload  string
	Filename string
	Kind     ingest.Kind
	// Credential carries the credential bytes for KindCredential inputs.
	Credential []byte
	// Batch carries extracted numbers for KindNumberSource inputs.
	Batch *ingest.Batch
}

// Bag is the read view of a user's context bag exposed to routines. Writes
// go through the transition so the router controls commit ordering.
type Bag interface {
	Get(key string) (interface{}, bool)
	GetString(key string) (string, bool)
	GetStrings(key string) ([]string, bool)
}

// Turn is everything a routine may consult while handling one event.
type Turn struct {
	Ctx    context.Context
	UserID int64
	State  state.State
	Event  Event
	Input  Input
	Bag    Bag
}

// Effect is an external side effect dispatched after the transition commits.
type Effect func(ctx context.Context) error

// Transition is what a routine returns: the next state, context mutations,
// the reply, and side effects to dispatch after commit.
type Transition struct {
	// Next is the state to commit; empty means the state is unchanged.
	Next state.State
	// Set upserts context keys. Ignored when Next is Idle, which always
	// clears the bag.
	Set map[string]interface{}
	// ClearBag empties the bag without changing state.
	ClearBag bool
	Reply    Reply
	// Code defaults to CodeOK when empty.
	Code    Code
	Effects []Effect
}

// Routine handles events for one (state, event kind) binding or one button
// action.
type Routine interface {
	Handle(t *Turn) (Transition, error)
}

// RoutineFunc adapts a function to the Routine interface.
type RoutineFunc func(t *Turn) (Transition, error)

// Handle executes the underlying function.
func (f RoutineFunc) Handle(t *Turn) (Transition, error) { return f(t) }
