package flows

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/thertxnetworktwo/toolkit/bot/router"
	"github.com/thertxnetworktwo/toolkit/bot/state"
	"github.com/thertxnetworktwo/toolkit/bot/storage"
)

const (
	maxChannelNameLen  = 100
	maxChannelsFree    = 5
	maxChannelsPremium = 100
)

var (
	channelUsernameRe = regexp.MustCompile(`^@([a-zA-Z0-9_]+)\s+(.+)$`)
	channelIDRe       = regexp.MustCompile(`^(-100\d{10,})\s+(.+)$`)
)

// parseChannelInput accepts "@username Display Name" or "-100<id> Display
// Name" and returns the channel ref plus display name.
func parseChannelInput(text string) (ref, name string, ok bool) {
	text = strings.TrimSpace(text)
	if m := channelUsernameRe.FindStringSubmatch(text); m != nil {
		return "@" + m[1], m[2], true
	}
	if m := channelIDRe.FindStringSubmatch(text); m != nil {
		return m[1], m[2], true
	}
	return "", "", false
}

func (d Deps) manageChannels() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		channels, err := d.Store.ListChannels(t.Ctx, t.UserID)
		if err != nil {
			return router.Transition{}, err
		}

		var b strings.Builder
		b.WriteString("*Your Channels*\n\n")
		if len(channels) == 0 {
			b.WriteString("No channels added yet.")
		}
		var rows [][]router.Btn
		for _, ch := range channels {
			fmt.Fprintf(&b, "%s (%s)\n", mdSafe(ch.Name), mdSafe(ch.Ref))
			rows = append(rows, router.Row(router.Btn{
				Text:    "Remove " + ch.Name,
				Action:  ActRemoveChannel,
				Payload: ch.Ref,
			}))
		}
		rows = append(rows,
			router.Row(router.Btn{Text: "Add Channel", Action: ActAddChannel}),
			router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
		)

		// cancelling a staged removal drops its token
		tr := router.Transition{Reply: router.Reply{Text: b.String(), Buttons: rows}}
		if _, staged := t.Bag.GetString(keyChannelToken); staged {
			tr.ClearBag = true
		}
		return tr, nil
	})
}

// addChannel moves the user into channel setup, gated by the channel cap for
// their tier.
func (d Deps) addChannel() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		u, err := d.Store.GetUser(t.Ctx, t.UserID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return router.Transition{}, err
		}
		channels, err := d.Store.ListChannels(t.Ctx, t.UserID)
		if err != nil {
			return router.Transition{}, err
		}

		limit := maxChannelsFree
		if u != nil && u.IsPremium {
			limit = maxChannelsPremium
		}
		if len(channels) >= limit {
			rows := [][]router.Btn{
				router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
				router.Row(router.Btn{Text: "Manage Channels", Action: ActManageChannels}),
			}
			if u == nil || !u.IsPremium {
				rows = append([][]router.Btn{
					router.Row(router.Btn{Text: "Get Premium", Action: ActPremiumInfo}),
				}, rows...)
			}
			return router.Transition{
				Reply: router.Reply{
					Text:    fmt.Sprintf("You reached the limit of %d channels.", limit),
					Buttons: rows,
				},
			}, nil
		}

		text := strings.Join([]string{
			"*Add Channel*",
			"",
			"Send the channel in one of these formats:",
			"`@channel_username Channel Name`",
			"`-1001234567890 Channel Name`",
		}, "\n")
		return router.Transition{
			Next: state.ChannelSetup,
			Reply: router.Reply{
				Text: text,
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Cancel", Action: ActManageChannels}),
				},
			},
		}, nil
	})
}

// channelSetup consumes the text the user sends while in channel setup.
func (d Deps) channelSetup() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		cancel := [][]router.Btn{
			router.Row(router.Btn{Text: "Cancel", Action: ActManageChannels}),
		}

		ref, name, ok := parseChannelInput(t.Input.Text)
		if !ok {
			text := strings.Join([]string{
				"*Invalid Format*",
				"",
				"Use one of:",
				"`@channel_username Channel Name`",
				"`-1001234567890 Channel Name`",
			}, "\n")
			return router.Transition{
				Reply: router.Reply{Text: text, Buttons: cancel},
			}, nil
		}
		if len(name) > maxChannelNameLen {
			return router.Transition{
				Reply: router.Reply{Text: "Channel name is too long, use a shorter one.", Buttons: cancel},
			}, nil
		}

		if err := d.Store.AddChannel(t.Ctx, t.UserID, ref, name); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return router.Transition{
					Reply: router.Reply{
						Text: "This channel is already on your list.",
						Buttons: [][]router.Btn{
							router.Row(router.Btn{Text: "Manage Channels", Action: ActManageChannels}),
						},
					},
				}, nil
			}
			return router.Transition{}, err
		}

		return router.Transition{
			Next: state.Idle,
			Reply: router.Reply{
				Text: fmt.Sprintf("*Channel Added*\n\n%s (%s) is ready for number checking.", mdSafe(name), mdSafe(ref)),
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Manage Channels", Action: ActManageChannels}),
					router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
				},
			},
		}, nil
	})
}

// removeChannel stages the removal behind a one-time token, mirroring session
// removal: the destructive call waits for the confirming action.
func (d Deps) removeChannel() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		ref := t.Input.Payload
		if ref == "" {
			return router.Transition{
				Code:  router.CodeConfirmationMissing,
				Reply: router.Reply{Text: "Nothing selected to remove.", Buttons: backToMenu()},
			}, nil
		}

		token := uuid.NewString()
		return router.Transition{
			Set: map[string]interface{}{
				keyChannelToken: token,
				keyChannelRef:   ref,
			},
			Reply: router.Reply{
				Text: fmt.Sprintf("*Remove Channel?*\n\n%s will be removed from your list.", mdSafe(ref)),
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Yes, Remove", Action: ActConfirmRemoveChannel, Payload: token}),
					router.Row(router.Btn{Text: "Cancel", Action: ActManageChannels}),
				},
			},
		}, nil
	})
}

func (d Deps) confirmRemoveChannel() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		token, okTok := t.Bag.GetString(keyChannelToken)
		ref, okRef := t.Bag.GetString(keyChannelRef)
		if !okTok || !okRef || token == "" || token != t.Input.Payload {
			return router.Transition{
				Code: router.CodeConfirmationMissing,
				Reply: router.Reply{
					Text: "Nothing to confirm. Start the removal again from channel management.",
					Buttons: [][]router.Btn{
						router.Row(router.Btn{Text: "Manage Channels", Action: ActManageChannels}),
					},
				},
			}, nil
		}

		if err := d.Store.RemoveChannel(t.Ctx, t.UserID, ref); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return router.Transition{
					ClearBag: true,
					Code:     router.CodeConfirmationMissing,
					Reply:    router.Reply{Text: "That channel is already gone.", Buttons: backToMenu()},
				}, nil
			}
			return router.Transition{}, err
		}

		return router.Transition{
			ClearBag: true,
			Reply: router.Reply{
				Text: fmt.Sprintf("*Channel Removed*\n\n%s is off your list.", mdSafe(ref)),
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Manage Channels", Action: ActManageChannels}),
					router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
				},
			},
		}, nil
	})
}
