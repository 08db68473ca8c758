// Package flows holds the handling routines: one per interaction state plus
// the button actions that navigate between them. Routines consume normalized
// input and bag data and return transitions; everything external goes through
// the Store and Checker collaborators.
package flows

import (
	"context"

	"github.com/thertxnetworktwo/toolkit/bot/frozen"
	"github.com/thertxnetworktwo/toolkit/bot/ingest"
	"github.com/thertxnetworktwo/toolkit/bot/router"
	"github.com/thertxnetworktwo/toolkit/bot/state"
	"github.com/thertxnetworktwo/toolkit/bot/storage"
	"github.com/thertxnetworktwo/toolkit/core/telegram/format"
)

// Button action identifiers. Payloads, when present, ride alongside in the
// callback data.
const (
	ActMainMenu    = "main_menu"
	ActHelp        = "help"
	ActStatus      = "view_status"
	ActPremiumInfo = "premium_info"

	ActSessionMenu          = "session_menu"
	ActSessionHelp          = "session_help"
	ActUploadSession        = "upload_session"
	ActRemoveSession        = "remove_session"
	ActConfirmRemoveSession = "confirm_remove_session"

	ActManageChannels       = "manage_channels"
	ActAddChannel           = "add_channel"
	ActRemoveChannel        = "remove_channel"
	ActConfirmRemoveChannel = "confirm_remove_channel"

	ActCheckFrozen     = "check_frozen"
	ActFrozenSingle    = "frozen_single"
	ActFrozenBulk      = "frozen_bulk"
	ActCheckBulkFrozen = "check_bulk_frozen"

	ActWithdrawMenu        = "process_withdraw"
	ActStartWithdraw       = "start_withdraw"
	ActProcessBulkWithdraw = "process_bulk_withdraw"
	ActConfirmWithdraw     = "confirm_withdraw"

	ActAdminUsers         = "admin_users"
	ActAdminAddPremium    = "admin_add_premium"
	ActAdminRemovePremium = "admin_remove_premium"
)

// Actions lists every button action id the flows register. Transports use it
// to route callback data without keeping their own copy of the table.
func Actions() []string {
	return []string{
		ActMainMenu, ActHelp, ActStatus, ActPremiumInfo,
		ActSessionMenu, ActSessionHelp, ActUploadSession, ActRemoveSession, ActConfirmRemoveSession,
		ActManageChannels, ActAddChannel, ActRemoveChannel, ActConfirmRemoveChannel,
		ActCheckFrozen, ActFrozenSingle, ActFrozenBulk, ActCheckBulkFrozen,
		ActWithdrawMenu, ActStartWithdraw, ActProcessBulkWithdraw, ActConfirmWithdraw,
		ActAdminUsers, ActAdminAddPremium, ActAdminRemovePremium,
	}
}

// Context bag keys.
const (
	keyBulkNumbers     = "bulk_numbers"
	keyBulkSources     = "bulk_sources"
	keyDetectedNumbers = "detected_numbers"
	keyDetectedFile    = "detected_file"
	keyWithdrawNumbers = "withdraw_numbers"
	keyCheckType       = "check_type"
	keyAdminAction     = "admin_action"
	keySessionToken    = "session_removal_token"
	keyChannelToken    = "channel_removal_token"
	keyChannelRef      = "channel_removal_ref"
)

// Store is the persistence collaborator as the routines see it.
type Store interface {
	GetUser(ctx context.Context, id int64) (*storage.User, error)
	SetPremium(ctx context.Context, id int64, premium bool) error

	AddChannel(ctx context.Context, userID int64, ref, name string) error
	ListChannels(ctx context.Context, userID int64) ([]storage.Channel, error)
	RemoveChannel(ctx context.Context, userID int64, ref string) error

	SaveSession(ctx context.Context, userID int64, filename string, data []byte) error
	GetSession(ctx context.Context, userID int64) (*storage.Session, error)
	RemoveSession(ctx context.Context, userID int64) error

	CreateWithdraw(ctx context.Context, id string, userID int64, numbers []string) error
}

// Deps carries the collaborators every routine may need.
type Deps struct {
	Store      Store
	Checker    frozen.Checker
	Classifier *ingest.Classifier
	AdminIDs   []int64
}

func (d Deps) isAdmin(id int64) bool {
	for _, a := range d.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}

// Register binds every routine and action onto the router. Called once at
// wiring time.
func Register(r *router.Router, d Deps) {
	if d.Classifier == nil {
		d.Classifier = r.Classifier()
	}

	// navigation and info
	r.Action(ActMainMenu, d.mainMenu())
	r.Action(ActHelp, d.help())
	r.Action(ActStatus, d.status())
	r.Action(ActPremiumInfo, d.premiumInfo())

	// session lifecycle
	r.Action(ActSessionMenu, d.sessionMenu())
	r.Action(ActSessionHelp, d.sessionHelp())
	r.Action(ActUploadSession, d.uploadSession())
	r.Action(ActRemoveSession, d.removeSession())
	r.Action(ActConfirmRemoveSession, d.confirmRemoveSession())
	r.Bind(state.SessionUpload, router.KindFile, d.sessionFile())

	// channels
	r.Action(ActManageChannels, d.manageChannels())
	r.Action(ActAddChannel, d.addChannel())
	r.Action(ActRemoveChannel, d.removeChannel())
	r.Action(ActConfirmRemoveChannel, d.confirmRemoveChannel())
	r.Bind(state.ChannelSetup, router.KindText, d.channelSetup())

	// number checking
	r.Action(ActCheckFrozen, d.frozenMenu())
	r.Action(ActFrozenSingle, d.frozenSingle())
	r.Action(ActFrozenBulk, d.frozenBulk())
	r.Action(ActCheckBulkFrozen, d.checkBulkFrozen())
	r.Bind(state.FileUpload, router.KindFile, d.bulkFile())
	r.Bind(state.FileUpload, router.KindText, d.bulkText())

	// withdraw processing
	r.Action(ActWithdrawMenu, d.withdrawMenu())
	r.Action(ActStartWithdraw, d.startWithdraw())
	r.Action(ActProcessBulkWithdraw, d.processBulkWithdraw())
	r.Action(ActConfirmWithdraw, d.confirmWithdraw())
	r.Bind(state.WithdrawProcessing, router.KindText, d.withdrawText())
	r.Bind(state.WithdrawProcessing, router.KindFile, d.withdrawFile())

	// admin
	r.Action(ActAdminUsers, d.adminUsers())
	r.Action(ActAdminAddPremium, d.adminPremiumPrompt(true))
	r.Action(ActAdminRemovePremium, d.adminPremiumPrompt(false))
	r.Bind(state.AdminCommand, router.KindText, d.adminInput())

	// idle smart detection
	r.Bind(state.Idle, router.KindText, d.smartText())
	r.Bind(state.Idle, router.KindFile, d.smartFile())
}

func backToMenu() [][]router.Btn {
	return [][]router.Btn{router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu})}
}

// mdSafe escapes user-supplied strings before they are interpolated into
// Markdown reply text.
func mdSafe(s string) string {
	escaped, err := format.EscapeMarkdown(s, format.MarkdownV1, "")
	if err != nil {
		return s
	}
	return escaped
}
