package flows

import (
	"fmt"
	"strings"

	"github.com/thertxnetworktwo/toolkit/bot/frozen"
	"github.com/thertxnetworktwo/toolkit/bot/router"
	"github.com/thertxnetworktwo/toolkit/bot/state"
)

// pendingNumbers returns the numbers staged for processing: an explicit bulk
// upload wins over a smart-detected batch.
func pendingNumbers(bag router.Bag) ([]string, string) {
	if nums, ok := bag.GetStrings(keyBulkNumbers); ok && len(nums) > 0 {
		sources, _ := bag.GetStrings(keyBulkSources)
		return nums, strings.Join(sources, ", ")
	}
	if nums, ok := bag.GetStrings(keyDetectedNumbers); ok && len(nums) > 0 {
		src, _ := bag.GetString(keyDetectedFile)
		return nums, src
	}
	return nil, ""
}

func (d Deps) frozenMenu() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		if nums, src := pendingNumbers(t.Bag); len(nums) > 0 {
			return router.Transition{
				Reply: router.Reply{
					Text: fmt.Sprintf("*Check Frozen*\n\n%d numbers loaded from %s.", len(nums), mdSafe(src)),
					Buttons: [][]router.Btn{
						router.Row(router.Btn{Text: "Check Detected Numbers", Action: ActCheckBulkFrozen}),
						router.Row(router.Btn{Text: "Single Check", Action: ActFrozenSingle}),
						router.Row(router.Btn{Text: "Upload New File", Action: ActFrozenBulk}),
						router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
					},
				},
			}, nil
		}

		return router.Transition{
			Reply: router.Reply{
				Text: "*Check Frozen*\n\nCheck a single number or upload a file with many.",
				Buttons: [][]router.Btn{
					router.Row(
						router.Btn{Text: "Single Check", Action: ActFrozenSingle},
						router.Btn{Text: "Bulk Check", Action: ActFrozenBulk},
					),
					router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
				},
			},
		}, nil
	})
}

func (d Deps) frozenSingle() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		return router.Transition{
			Next: state.FileUpload,
			Set:  map[string]interface{}{keyCheckType: "single"},
			Reply: router.Reply{
				Text: "*Single Number Check*\n\nSend the phone number as a message, e.g. `+1234567890`.",
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Cancel", Action: ActCheckFrozen}),
				},
			},
		}, nil
	})
}

func (d Deps) frozenBulk() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		return router.Transition{
			Next: state.FileUpload,
			Set:  map[string]interface{}{keyCheckType: "bulk"},
			Reply: router.Reply{
				Text: "*Bulk Number Check*\n\nUpload a .txt, .csv or .zip file with phone numbers.",
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Cancel", Action: ActCheckFrozen}),
				},
			},
		}, nil
	})
}

// bulkFile stages an uploaded number batch in the bag and offers the next
// steps. The batch arrives already extracted and deduplicated.
func (d Deps) bulkFile() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		batch := t.Input.Batch
		if batch == nil || batch.Len() == 0 {
			return router.Transition{
				Reply: router.Reply{
					Text: fmt.Sprintf("No phone numbers found in %s.", mdSafe(t.Input.Filename)),
					Buttons: [][]router.Btn{
						router.Row(router.Btn{Text: "Try Again", Action: ActFrozenBulk}),
						router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
					},
				},
			}, nil
		}

		return router.Transition{
			Set: map[string]interface{}{
				keyBulkNumbers: batch.Numbers(),
				keyBulkSources: batch.Sources(),
			},
			Reply: router.Reply{
				Text: fmt.Sprintf("*%d numbers found*\n\nSource: %s", batch.Len(), mdSafe(strings.Join(batch.Sources(), ", "))),
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Check Frozen Now", Action: ActCheckBulkFrozen}),
					router.Row(router.Btn{Text: "Withdraw Instead", Action: ActProcessBulkWithdraw}),
					router.Row(router.Btn{Text: "Cancel", Action: ActMainMenu}),
				},
			},
		}, nil
	})
}

// bulkText handles text while waiting for numbers: single-check mode checks
// the first number immediately, otherwise the message is treated as a pasted
// list.
func (d Deps) bulkText() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		batch := d.Classifier.ExtractNumbers(t.Input.Text, "message")
		if batch.Len() == 0 {
			return router.Transition{
				Reply: router.Reply{
					Text: "No phone number found in the message. Send it like `+1234567890`.",
					Buttons: [][]router.Btn{
						router.Row(router.Btn{Text: "Cancel", Action: ActCheckFrozen}),
					},
				},
			}, nil
		}

		if mode, _ := t.Bag.GetString(keyCheckType); mode == "single" {
			return d.checkNow(t, batch.Numbers()[:1], "message")
		}

		return router.Transition{
			Set: map[string]interface{}{
				keyBulkNumbers: batch.Numbers(),
				keyBulkSources: batch.Sources(),
			},
			Reply: router.Reply{
				Text: fmt.Sprintf("*%d numbers found*", batch.Len()),
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Check Frozen Now", Action: ActCheckBulkFrozen}),
					router.Row(router.Btn{Text: "Cancel", Action: ActMainMenu}),
				},
			},
		}, nil
	})
}

// checkBulkFrozen forwards the staged batch to the checking collaborator and
// reports the summary. The staged data is consumed either way.
func (d Deps) checkBulkFrozen() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		nums, src := pendingNumbers(t.Bag)
		if len(nums) == 0 {
			return router.Transition{
				Code:  router.CodeConfirmationMissing,
				Reply: router.Reply{Text: "No numbers loaded to check. Upload a file first.", Buttons: backToMenu()},
			}, nil
		}
		return d.checkNow(t, nums, src)
	})
}

// checkNow runs the check synchronously so the reply can carry the results.
// A checker failure keeps the staged numbers for a retry.
func (d Deps) checkNow(t *router.Turn, nums []string, src string) (router.Transition, error) {
	channels, err := d.Store.ListChannels(t.Ctx, t.UserID)
	if err != nil {
		return router.Transition{}, err
	}
	if len(channels) == 0 {
		return router.Transition{
			Reply: router.Reply{
				Text: "No channels to check against. Add a channel first.",
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Add Channels", Action: ActManageChannels}),
					router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
				},
			},
		}, nil
	}

	results, err := d.Checker.Check(t.Ctx, nums, channels[0].Ref)
	if err != nil {
		return router.Transition{}, err
	}
	sum := frozen.Summarize(results)

	text := fmt.Sprintf(
		"*Check Complete*\n\nSource: %s\nChannel: %s\nTotal: %d\nFrozen: %d\nActive: %d",
		orUnknown(src), channels[0].Ref, sum.Total, sum.Frozen, sum.Active,
	)
	return router.Transition{
		Next:  state.Idle,
		Reply: router.Reply{Text: text, Buttons: backToMenu()},
	}, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
