package flows

import (
	"errors"
	"fmt"
	"strings"

	"github.com/thertxnetworktwo/toolkit/bot/router"
	"github.com/thertxnetworktwo/toolkit/bot/state"
	"github.com/thertxnetworktwo/toolkit/bot/storage"
)

// mainMenu resets the user to Idle and builds the menu from what they have
// set up so far: premium gate first, then session, then channels.
func (d Deps) mainMenu() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		u, err := d.Store.GetUser(t.Ctx, t.UserID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return router.Transition{}, err
		}

		var (
			premium    = u != nil && u.IsPremium
			hasSession bool
			channels   []storage.Channel
		)
		if premium {
			if _, err := d.Store.GetSession(t.Ctx, t.UserID); err == nil {
				hasSession = true
			} else if !errors.Is(err, storage.ErrNotFound) {
				return router.Transition{}, err
			}
			if channels, err = d.Store.ListChannels(t.Ctx, t.UserID); err != nil {
				return router.Transition{}, err
			}
		}

		var rows [][]router.Btn
		switch {
		case premium && hasSession && len(channels) > 0:
			rows = [][]router.Btn{
				router.Row(
					router.Btn{Text: "Check Frozen", Action: ActCheckFrozen},
					router.Btn{Text: "Withdraw", Action: ActWithdrawMenu},
				),
				router.Row(
					router.Btn{Text: "Channels", Action: ActManageChannels},
					router.Btn{Text: "Session", Action: ActSessionMenu},
				),
				router.Row(
					router.Btn{Text: "Status", Action: ActStatus},
					router.Btn{Text: "Help", Action: ActHelp},
				),
			}
		case premium && hasSession:
			rows = [][]router.Btn{
				router.Row(router.Btn{Text: "Add Channels First", Action: ActManageChannels}),
				router.Row(
					router.Btn{Text: "Session", Action: ActSessionMenu},
					router.Btn{Text: "Status", Action: ActStatus},
				),
				router.Row(router.Btn{Text: "Help", Action: ActHelp}),
			}
		case premium:
			rows = [][]router.Btn{
				router.Row(router.Btn{Text: "Upload Session First", Action: ActSessionMenu}),
				router.Row(
					router.Btn{Text: "Status", Action: ActStatus},
					router.Btn{Text: "Help", Action: ActHelp},
				),
			}
		default:
			rows = [][]router.Btn{
				router.Row(router.Btn{Text: "Get Premium", Action: ActPremiumInfo}),
				router.Row(router.Btn{Text: "Help", Action: ActHelp}),
			}
		}

		return router.Transition{
			Next:  state.Idle,
			Reply: router.Reply{Text: "*Main Menu*\n\nPick what to do next.", Buttons: rows},
		}, nil
	})
}

func (d Deps) help() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		text := strings.Join([]string{
			"*Help*",
			"",
			"1. Upload your session file (Session menu).",
			"2. Add the channels you work with.",
			"3. Upload number lists (.txt, .csv, or .zip) to check or withdraw.",
			"",
			"Send /start any time to reset and get back to the main menu.",
		}, "\n")
		return router.Transition{
			Reply: router.Reply{
				Text: text,
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
					router.Row(router.Btn{Text: "Get Premium", Action: ActPremiumInfo}),
				},
			},
		}, nil
	})
}

// status summarizes the user's setup: premium flag, stored session, channels.
func (d Deps) status() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		u, err := d.Store.GetUser(t.Ctx, t.UserID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return router.Transition{}, err
		}

		sessionLine := "none"
		if s, err := d.Store.GetSession(t.Ctx, t.UserID); err == nil {
			sessionLine = mdSafe(s.Filename)
		} else if !errors.Is(err, storage.ErrNotFound) {
			return router.Transition{}, err
		}

		channels, err := d.Store.ListChannels(t.Ctx, t.UserID)
		if err != nil {
			return router.Transition{}, err
		}

		premiumLine := "no"
		if u != nil && u.IsPremium {
			premiumLine = "yes"
		}

		text := fmt.Sprintf(
			"*Status*\n\nPremium: %s\nSession: %s\nChannels: %d",
			premiumLine, sessionLine, len(channels),
		)
		return router.Transition{
			Reply: router.Reply{
				Text: text,
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
					router.Row(router.Btn{Text: "Manage Channels", Action: ActManageChannels}),
				},
			},
		}, nil
	})
}

func (d Deps) premiumInfo() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		text := strings.Join([]string{
			"*Premium Access*",
			"",
			"Premium unlocks number checking, withdraw processing and up to 100 channels.",
			"Contact the administrator to get access.",
		}, "\n")
		return router.Transition{
			Reply: router.Reply{
				Text: text,
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
					router.Row(router.Btn{Text: "Help", Action: ActHelp}),
				},
			},
		}, nil
	})
}
