package flows

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/thertxnetworktwo/toolkit/bot/router"
	"github.com/thertxnetworktwo/toolkit/bot/state"
)

// mergeUnique appends add to existing, keeping first-seen order and dropping
// duplicates.
func mergeUnique(existing, add []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(add))
	out := make([]string, 0, len(existing)+len(add))
	for _, s := range [][]string{existing, add} {
		for _, n := range s {
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

func (d Deps) withdrawMenu() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		if nums, src := pendingNumbers(t.Bag); len(nums) > 0 {
			return router.Transition{
				Reply: router.Reply{
					Text: fmt.Sprintf("*Withdraw*\n\n%d numbers loaded from %s.", len(nums), mdSafe(src)),
					Buttons: [][]router.Btn{
						router.Row(router.Btn{Text: "Process Detected Numbers", Action: ActProcessBulkWithdraw}),
						router.Row(router.Btn{Text: "Manual Input", Action: ActStartWithdraw}),
						router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
					},
				},
			}, nil
		}

		return router.Transition{
			Reply: router.Reply{
				Text: "*Withdraw*\n\nSend numbers by message or file and confirm when done.",
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Start Processing", Action: ActStartWithdraw}),
					router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
				},
			},
		}, nil
	})
}

func (d Deps) startWithdraw() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		text := strings.Join([]string{
			"*Withdraw Processing*",
			"",
			"Send messages or files (.txt, .csv, .zip) with phone numbers.",
			"Numbers accumulate until you confirm.",
		}, "\n")
		return router.Transition{
			Next: state.WithdrawProcessing,
			Reply: router.Reply{
				Text: text,
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Cancel", Action: ActMainMenu}),
				},
			},
		}, nil
	})
}

// processBulkWithdraw seeds withdraw processing with the staged batch.
func (d Deps) processBulkWithdraw() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		nums, src := pendingNumbers(t.Bag)
		if len(nums) == 0 {
			return router.Transition{
				Code:  router.CodeConfirmationMissing,
				Reply: router.Reply{Text: "No numbers loaded to process.", Buttons: backToMenu()},
			}, nil
		}

		return router.Transition{
			Next: state.WithdrawProcessing,
			Set:  map[string]interface{}{keyWithdrawNumbers: nums},
			Reply: router.Reply{
				Text: fmt.Sprintf("*Withdraw Processing Started*\n\nSource: %s\nNumbers: %d\n\nSend more numbers or process them all.", mdSafe(orUnknown(src)), len(nums)),
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Process All", Action: ActConfirmWithdraw}),
					router.Row(router.Btn{Text: "Cancel", Action: ActMainMenu}),
				},
			},
		}, nil
	})
}

// withdrawText accumulates numbers from a message into the pending set.
func (d Deps) withdrawText() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		batch := d.Classifier.ExtractNumbers(t.Input.Text, "message")
		if batch.Len() == 0 {
			return router.Transition{
				Reply: router.Reply{
					Text: "No phone numbers found in the message.",
					Buttons: [][]router.Btn{
						router.Row(router.Btn{Text: "Cancel", Action: ActMainMenu}),
					},
				},
			}, nil
		}

		existing, _ := t.Bag.GetStrings(keyWithdrawNumbers)
		merged := mergeUnique(existing, batch.Numbers())

		return router.Transition{
			Set: map[string]interface{}{keyWithdrawNumbers: merged},
			Reply: router.Reply{
				Text: fmt.Sprintf("*Numbers Added*\n\nNew: %d\nTotal pending: %d", batch.Len(), len(merged)),
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Confirm Processing", Action: ActConfirmWithdraw}),
					router.Row(router.Btn{Text: "Cancel", Action: ActMainMenu}),
				},
			},
		}, nil
	})
}

// withdrawFile accumulates numbers from an uploaded file or archive.
func (d Deps) withdrawFile() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		batch := t.Input.Batch
		if batch == nil || batch.Len() == 0 {
			return router.Transition{
				Reply: router.Reply{
					Text: fmt.Sprintf("No phone numbers found in %s.", mdSafe(t.Input.Filename)),
					Buttons: [][]router.Btn{
						router.Row(router.Btn{Text: "Try Again", Action: ActWithdrawMenu}),
					},
				},
			}, nil
		}

		existing, _ := t.Bag.GetStrings(keyWithdrawNumbers)
		merged := mergeUnique(existing, batch.Numbers())

		return router.Transition{
			Set: map[string]interface{}{keyWithdrawNumbers: merged},
			Reply: router.Reply{
				Text: fmt.Sprintf("*File Added*\n\nFile: %s\nNew numbers: %d\nTotal pending: %d", mdSafe(t.Input.Filename), batch.Len(), len(merged)),
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Process All", Action: ActConfirmWithdraw}),
					router.Row(router.Btn{Text: "Cancel", Action: ActMainMenu}),
				},
			},
		}, nil
	})
}

// confirmWithdraw consumes the pending numbers into a withdraw request.
// Without pending numbers there is nothing to confirm and no persistence
// call happens.
func (d Deps) confirmWithdraw() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		nums, ok := t.Bag.GetStrings(keyWithdrawNumbers)
		if !ok || len(nums) == 0 {
			return router.Transition{
				Code: router.CodeConfirmationMissing,
				Reply: router.Reply{
					Text: "No numbers collected for processing.",
					Buttons: [][]router.Btn{
						router.Row(router.Btn{Text: "Start Again", Action: ActWithdrawMenu}),
					},
				},
			}, nil
		}

		requestID := uuid.NewString()
		if err := d.Store.CreateWithdraw(t.Ctx, requestID, t.UserID, nums); err != nil {
			return router.Transition{}, err
		}

		return router.Transition{
			Next: state.Idle,
			Reply: router.Reply{
				Text: fmt.Sprintf("*Withdraw Submitted*\n\nRequest: %s\nNumbers: %d\n\nYou will be notified when processing completes.", requestID, len(nums)),
				Buttons: backToMenu(),
			},
		}, nil
	})
}
