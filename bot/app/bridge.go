package app

import (
	"fmt"
	"io"

	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/thertxnetworktwo/toolkit/bot/router"
	"github.com/thertxnetworktwo/toolkit/bot/state"
	"github.com/thertxnetworktwo/toolkit/core/logger"
	"github.com/thertxnetworktwo/toolkit/core/telegram/callbacks"
	tghelpers "github.com/thertxnetworktwo/toolkit/core/telegram/helpers"
	"github.com/thertxnetworktwo/toolkit/core/telegram/keyboard"
	tgrouter "github.com/thertxnetworktwo/toolkit/core/telegram/router"
	"github.com/thertxnetworktwo/toolkit/core/telegram/ui"
)

// bridge translates Telegram updates into router events and delivers the
// resulting outcomes back as messages with inline keyboards.
type bridge struct {
	app *App
}

var (
	_ tgrouter.FSM        = (*bridge)(nil)
	_ ui.FallbackProvider = (*bridge)(nil)
)

// InProgress reports whether the sender is mid-workflow, in which case text
// and document updates bypass command lookup and go straight to the router.
func (b *bridge) InProgress(userID int64) bool {
	return b.app.router.States().GetState(userID) != state.Idle
}

// ManagerHandler forwards an in-progress update to the router.
func (b *bridge) ManagerHandler(c tele.Context) error {
	if msg := c.Message(); msg != nil && msg.Document != nil {
		return b.document(c)
	}
	return b.text(c)
}

func (b *bridge) UnknownText() tele.HandlerFunc     { return b.text }
func (b *bridge) UnknownDocument() tele.HandlerFunc { return b.document }

// UnknownCallback still goes through the router: an action it does not know
// yields the same stale-button reply as any other out-of-place activation.
func (b *bridge) UnknownCallback() tele.HandlerFunc { return b.callback }

// action adapts a fixed button action into a command handler.
func (b *bridge) action(act string) tele.HandlerFunc {
	return func(c tele.Context) error {
		return b.dispatch(c, router.Button(c.Sender().ID, act, ""))
	}
}

func (b *bridge) callback(c tele.Context) error {
	key, payload := callbacks.ParseCallbackData(c.Callback())
	return b.dispatch(c, router.Button(c.Sender().ID, key, payload))
}

func (b *bridge) text(c tele.Context) error {
	return b.dispatch(c, router.Text(c.Sender().ID, c.Text()))
}

func (b *bridge) document(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Document == nil {
		return nil
	}
	doc := msg.Document
	maxBytes := b.app.cfg.MaxUploadBytes()
	if doc.FileSize > maxBytes {
		return tghelpers.SendMD(c, fmt.Sprintf("That file is too large. The limit is %d MB.", maxBytes>>20))
	}

	rc, err := c.Bot().File(&doc.File)
	if err != nil {
		logger.Error(tghelpers.BuildContext(c), "app", "file.download_failed",
			slog.Int64("user_id", c.Sender().ID),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendMD(c, "Downloading your file failed. Please send it again.")
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxBytes+1))
	if err != nil {
		logger.Error(tghelpers.BuildContext(c), "app", "file.read_failed",
			slog.Int64("user_id", c.Sender().ID),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendMD(c, "Downloading your file failed. Please send it again.")
	}
	if int64(len(data)) > maxBytes {
		return tghelpers.SendMD(c, fmt.Sprintf("That file is too large. The limit is %d MB.", maxBytes>>20))
	}

	return b.dispatch(c, router.File(c.Sender().ID, doc.FileName, data))
}

// dispatch records the sender, runs the event through the router, and sends
// the reply.
func (b *bridge) dispatch(c tele.Context, ev router.Event) error {
	ctx := tghelpers.BuildContext(c)

	if s := c.Sender(); s != nil {
		if err := b.app.repo.EnsureUser(ctx, s.ID, s.Username); err != nil {
			logger.Warn(ctx, "app", "user.upsert_failed",
				slog.Int64("user_id", s.ID),
				slog.String("err", err.Error()),
			)
		}
	}

	out := b.app.router.Handle(ctx, ev)
	return b.deliver(c, out)
}

func (b *bridge) deliver(c tele.Context, out router.Outcome) error {
	if out.Reply.Text == "" {
		return nil
	}
	if len(out.Reply.Buttons) == 0 {
		return tghelpers.SendMD(c, out.Reply.Text)
	}
	return tghelpers.SendMD(c, out.Reply.Text, inlineKeyboard(out.Reply.Buttons))
}

func inlineKeyboard(buttons [][]router.Btn) *tele.ReplyMarkup {
	rows := make([][]keyboard.InlineBtn, len(buttons))
	for i, row := range buttons {
		r := make([]keyboard.InlineBtn, len(row))
		for j, btn := range row {
			r[j] = keyboard.InlineBtn{Text: btn.Text, Unique: btn.Action, Data: btn.Payload}
		}
		rows[i] = r
	}
	return keyboard.InlineButtonsRows(rows...)
}
