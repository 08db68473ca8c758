// Package state tracks, per user, the current interaction state and the
// transient context bag scoped to the active workflow.
package state

// State identifies which handling routine may process a user's next event.
type State string

const (
	// Idle indicates there is no active workflow for the user.
	Idle State = "idle"
	// ChannelSetup expects a channel reference and display name as text.
	ChannelSetup State = "channel_setup"
	// SessionUpload expects a credential file upload.
	SessionUpload State = "session_upload"
	// FileUpload expects a phone-number file for a bulk check.
	FileUpload State = "file_upload"
	// WithdrawProcessing accumulates numbers for a withdraw request.
	WithdrawProcessing State = "withdraw_processing"
	// AdminCommand expects administrative text input.
	AdminCommand State = "admin_command"
)

// Manager owns user interaction states and context bags.
//
// A user with no record is in Idle with an empty bag. Transitioning a user
// to Idle clears the bag, so stale workflow data never leaks into a later,
// unrelated workflow.
type Manager interface {
	GetState(userID int64) State
	SetState(userID int64, st State)

	GetContext(userID int64, key string) (interface{}, bool)
	SetContext(userID int64, key string, value interface{})
	ClearContext(userID int64)

	GetContextString(userID int64, key string) (string, bool)
	GetContextStrings(userID int64, key string) ([]string, bool)
}
