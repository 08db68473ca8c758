package flows

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/thertxnetworktwo/toolkit/bot/ingest"
	"github.com/thertxnetworktwo/toolkit/bot/router"
	"github.com/thertxnetworktwo/toolkit/bot/state"
	"github.com/thertxnetworktwo/toolkit/bot/storage"
)

func (d Deps) sessionMenu() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		// cancelling a staged removal drops its token
		var clear bool
		if _, staged := t.Bag.GetString(keySessionToken); staged {
			clear = true
		}

		s, err := d.Store.GetSession(t.Ctx, t.UserID)
		switch {
		case err == nil:
			return router.Transition{
				ClearBag: clear,
				Reply: router.Reply{
					Text: fmt.Sprintf("*Session*\n\nStored session: %s", mdSafe(s.Filename)),
					Buttons: [][]router.Btn{
						router.Row(router.Btn{Text: "Replace Session", Action: ActUploadSession}),
						router.Row(router.Btn{Text: "Remove Session", Action: ActRemoveSession}),
						router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
					},
				},
			}, nil
		case errors.Is(err, storage.ErrNotFound):
			return router.Transition{
				ClearBag: clear,
				Reply: router.Reply{
					Text: "*Session*\n\nNo session stored yet.",
					Buttons: [][]router.Btn{
						router.Row(router.Btn{Text: "Upload Session", Action: ActUploadSession}),
						router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
						router.Row(router.Btn{Text: "How to get a session?", Action: ActSessionHelp}),
					},
				},
			}, nil
		default:
			return router.Transition{}, err
		}
	})
}

func (d Deps) sessionHelp() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		text := strings.Join([]string{
			"*Getting a session file*",
			"",
			"Export it from your client as a .session, .tdata or .json file,",
			"or pack it into a .zip. Then pick Upload Session and send the file.",
		}, "\n")
		return router.Transition{
			Reply: router.Reply{
				Text: text,
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Upload Session", Action: ActUploadSession}),
					router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
				},
			},
		}, nil
	})
}

// uploadSession is a pure navigation action: it only moves the user into the
// upload state.
func (d Deps) uploadSession() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		return router.Transition{
			Next: state.SessionUpload,
			Reply: router.Reply{
				Text: "*Upload Session*\n\nSend your .session, .tdata or .json file now. A .zip containing one is fine too.",
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Cancel", Action: ActSessionMenu}),
				},
			},
		}, nil
	})
}

// sessionFile persists the credential artifact and returns the user to Idle.
// Persistence runs inside the routine so a failed save keeps the user in the
// upload state for a retry.
func (d Deps) sessionFile() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		if t.Input.Kind != ingest.KindCredential {
			return router.Transition{
				Code: router.CodeUnrecognized,
				Reply: router.Reply{
					Text: fmt.Sprintf("%q is not a session file. Send a .session, .tdata or .json file, or a .zip containing one.", t.Input.Filename),
					Buttons: [][]router.Btn{
						router.Row(router.Btn{Text: "Cancel", Action: ActSessionMenu}),
					},
				},
			}, nil
		}

		if err := d.Store.SaveSession(t.Ctx, t.UserID, t.Input.Filename, t.Input.Credential); err != nil {
			return router.Transition{}, err
		}

		return router.Transition{
			Next: state.Idle,
			Reply: router.Reply{
				Text: fmt.Sprintf("*Session Saved*\n\nStored %s. You can replace it any time from the Session menu.", mdSafe(t.Input.Filename)),
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
				},
			},
		}, nil
	})
}

// removeSession stages the removal: it stores a one-time token in the bag and
// asks for confirmation. The destructive call happens only in
// confirmRemoveSession, and only when the token is still there.
func (d Deps) removeSession() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		if _, err := d.Store.GetSession(t.Ctx, t.UserID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return router.Transition{
					Reply: router.Reply{
						Text: "No session stored, nothing to remove.",
						Buttons: [][]router.Btn{
							router.Row(router.Btn{Text: "Upload Session", Action: ActUploadSession}),
							router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
						},
					},
				}, nil
			}
			return router.Transition{}, err
		}

		token := uuid.NewString()
		return router.Transition{
			Set: map[string]interface{}{keySessionToken: token},
			Reply: router.Reply{
				Text: "*Remove Session?*\n\nThis deletes your stored session. You will need to upload a new one to keep working.",
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Yes, Remove Session", Action: ActConfirmRemoveSession, Payload: token}),
					router.Row(router.Btn{Text: "Cancel", Action: ActSessionMenu}),
				},
			},
		}, nil
	})
}

func (d Deps) confirmRemoveSession() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		token, ok := t.Bag.GetString(keySessionToken)
		if !ok || token == "" || token != t.Input.Payload {
			return router.Transition{
				Code: router.CodeConfirmationMissing,
				Reply: router.Reply{
					Text: "Nothing to confirm. Start the removal again from the Session menu.",
					Buttons: [][]router.Btn{
						router.Row(router.Btn{Text: "Session Menu", Action: ActSessionMenu}),
					},
				},
			}, nil
		}

		if err := d.Store.RemoveSession(t.Ctx, t.UserID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return router.Transition{
					ClearBag: true,
					Code:     router.CodeConfirmationMissing,
					Reply: router.Reply{
						Text:    "The session is already gone.",
						Buttons: backToMenu(),
					},
				}, nil
			}
			return router.Transition{}, err
		}

		return router.Transition{
			ClearBag: true,
			Reply: router.Reply{
				Text: "*Session Removed*\n\nUpload a new session whenever you are ready.",
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Upload New Session", Action: ActUploadSession}),
					router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
				},
			},
		}, nil
	})
}
