package flows

import (
	"fmt"

	"github.com/thertxnetworktwo/toolkit/bot/ingest"
	"github.com/thertxnetworktwo/toolkit/bot/router"
)

// smartText watches idle messages for phone numbers and offers to process
// them; anything else gets menu guidance.
func (d Deps) smartText() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		batch := d.Classifier.ExtractNumbers(t.Input.Text, "message")
		if batch.Len() == 0 {
			return router.Transition{
				Reply: router.Reply{
					Text:    "Use the menu to pick what to do next.",
					Buttons: backToMenu(),
				},
			}, nil
		}

		return router.Transition{
			Set: map[string]interface{}{
				keyDetectedNumbers: batch.Numbers(),
				keyDetectedFile:    "message",
			},
			Reply: router.Reply{
				Text: fmt.Sprintf("*%d numbers found*\n\nCheck them for frozen status or start a withdraw?", batch.Len()),
				Buttons: [][]router.Btn{
					router.Row(router.Btn{Text: "Check Frozen", Action: ActCheckFrozen}),
					router.Row(router.Btn{Text: "Withdraw", Action: ActWithdrawMenu}),
					router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
				},
			},
		}, nil
	})
}

// smartFile classifies idle uploads and stages number batches under the
// detected keys. The stash lives only until the next Idle-bound transition,
// so it cannot leak into an unrelated workflow.
func (d Deps) smartFile() router.Routine {
	return router.RoutineFunc(func(t *router.Turn) (router.Transition, error) {
		switch t.Input.Kind {
		case ingest.KindCredential:
			return router.Transition{
				Reply: router.Reply{
					Text: fmt.Sprintf("*Session File Detected*\n\nFile: %s\n\nUpload it as your session?", mdSafe(t.Input.Filename)),
					Buttons: [][]router.Btn{
						router.Row(router.Btn{Text: "Upload Session", Action: ActUploadSession}),
						router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
					},
				},
			}, nil

		case ingest.KindNumberSource:
			batch := t.Input.Batch
			if batch == nil || batch.Len() == 0 {
				return router.Transition{
					Reply: router.Reply{
						Text:    fmt.Sprintf("No phone numbers found in %s.", mdSafe(t.Input.Filename)),
						Buttons: backToMenu(),
					},
				}, nil
			}
			return router.Transition{
				Set: map[string]interface{}{
					keyDetectedNumbers: batch.Numbers(),
					keyDetectedFile:    t.Input.Filename,
				},
				Reply: router.Reply{
					Text: fmt.Sprintf("*%d numbers found*\n\nFile: %s\n\nCheck them for frozen status or start a withdraw?", batch.Len(), mdSafe(t.Input.Filename)),
					Buttons: [][]router.Btn{
						router.Row(router.Btn{Text: "Check Frozen", Action: ActCheckFrozen}),
						router.Row(router.Btn{Text: "Withdraw", Action: ActWithdrawMenu}),
						router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
					},
				},
			}, nil

		default:
			return router.Transition{
				Code: router.CodeUnrecognized,
				Reply: router.Reply{
					Text: "I'm not sure what to do with this file. Pick an action first.",
					Buttons: [][]router.Btn{
						router.Row(router.Btn{Text: "Session Upload", Action: ActSessionMenu}),
						router.Row(router.Btn{Text: "Check Frozen", Action: ActCheckFrozen}),
						router.Row(router.Btn{Text: "Main Menu", Action: ActMainMenu}),
					},
				},
			}, nil
		}
	})
}
