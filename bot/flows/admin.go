package flows

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/thertxnetworktwo/toolkit/bot/router"
	"github.com/thertxnetworktwo/toolkit/bot/state"
	"github.com/thertxnetworktwo/toolkit/bot/storage"
)

const (
	adminActionAddPremium    = "add_premium"
	adminActionRemovePremium = "remove_premium"
)

func accessDenied() (router.Transition, error) {
	return router.Transition{
		Next:  state.Idle,
		Reply: router.Reply{Text: "Access denied.", Buttons: backToMenu()},
	}, nil
}

func (d Deps) adminUsers() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		if !d.isAdmin(t.UserID) {
			return accessDenied()
		}
		return router.Transition{
			Reply: router.Reply{
				Text: "*User Management*",
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Add Premium", Action: ActAdminAddPremium}),
					router.Row(router.Btn{Text: "Remove Premium", Action: ActAdminRemovePremium}),
					router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
				},
			},
		}, nil
	})
}

// adminPremiumPrompt moves the admin into command mode with the chosen action
// staged in the bag; the next message supplies the target user id.
func (d Deps) adminPremiumPrompt(grant bool) router.Routine {
	action := adminActionRemovePremium
	verb := "revoke premium from"
	if grant {
		action = adminActionAddPremium
		verb = "grant premium to"
	}
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		if !d.isAdmin(t.UserID) {
			return accessDenied()
		}
		return router.Transition{
			Next: state.AdminCommand,
			Set:  map[string]interface{}{keyAdminAction: action},
			Reply: router.Reply{
				Text: fmt.Sprintf("Send the numeric user id to %s.", verb),
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Cancel", Action: ActAdminUsers}),
				},
			},
		}, nil
	})
}

// adminInput consumes the target user id for the staged admin action.
func (d Deps) adminInput() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		if !d.isAdmin(t.UserID) {
			return accessDenied()
		}

		action, _ := t.Bag.GetString(keyAdminAction)
		grant := false
		switch action {
		case adminActionAddPremium:
			grant = true
		case adminActionRemovePremium:
		default:
			return router.Transition{
				Next:  state.Idle,
				Reply: router.Reply{Text: "Unknown admin action.", Buttons: backToMenu()},
			}, nil
		}

		target, err := strconv.ParseInt(strings.TrimSpace(t.Input.Text), 10, 64)
		if err != nil {
			return router.Transition{
				Reply: router.Reply{
					Text: "Invalid user id. Send a numeric id.",
					Buttons: [][]router.Btn{
						router.Row(router.Btn{Text: "Cancel", Action: ActAdminUsers}),
					},
				},
			}, nil
		}

		if err := d.Store.SetPremium(t.Ctx, target, grant); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return router.Transition{
					Reply: router.Reply{
						Text: fmt.Sprintf("User %d is not registered.", target),
						Buttons: [][]router.Btn{
							router.Row(router.Btn{Text: "Cancel", Action: ActAdminUsers}),
						},
					},
				}, nil
			}
			return router.Transition{}, err
		}

		verb := "removed from"
		if grant {
			verb = "granted to"
		}
		return router.Transition{
			Next: state.Idle,
			Reply: router.Reply{
				Text: fmt.Sprintf("Premium %s user %d.", verb, target),
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Admin Panel", Action: ActAdminUsers}),
					router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
				},
			},
		}, nil
	})
}
