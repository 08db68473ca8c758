package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/thertxnetworktwo/toolkit/bot/archive"
	"github.com/thertxnetworktwo/toolkit/bot/ingest"
	"github.com/thertxnetworktwo/toolkit/bot/state"
	"github.com/thertxnetworktwo/toolkit/core/logger"
)

// ErrPersistence marks collaborator failures a routine could not absorb.
// Storage wraps its errors with it so the router can map them to
// CodePersistenceFailed without knowing the backend.
var ErrPersistence = errors.New("persistence failed")

type bindingKey struct {
	st   state.State
	kind Kind
}

// Options configure a Router.
type Options struct {
	States     state.Manager
	Classifier *ingest.Classifier
	Limits     archive.Limits
}

// Router serializes events per user, resolves the routine bound to the
// sender's state and event kind, and commits transitions to the context
// store before dispatching side effects.
type Router struct {
	states     state.Manager
	classifier *ingest.Classifier
	limits     archive.Limits

	bindings map[bindingKey]Routine
	actions  map[string]Routine

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// New constructs an empty router. Bindings and actions are registered by the
// flows package before the first event arrives.
func New(opts Options) *Router {
	cls := opts.Classifier
	if cls == nil {
		cls = ingest.NewClassifier(ingest.DefaultRules())
	}
	limits := opts.Limits
	if limits.MaxMembers == 0 && limits.MaxMemberBytes == 0 && limits.MaxTotalBytes == 0 {
		limits = archive.DefaultLimits()
	}
	states := opts.States
	if states == nil {
		states = state.NewMemoryManager()
	}
	return &Router{
		states:     states,
		classifier: cls,
		limits:     limits,
		bindings:   make(map[bindingKey]Routine),
		actions:    make(map[string]Routine),
		locks:      make(map[int64]*sync.Mutex),
	}
}

// States exposes the context store, mainly for transport-level wiring such
// as clearing state on /start.
func (r *Router) States() state.Manager { return r.states }

// Classifier exposes the configured content classifier.
func (r *Router) Classifier() *ingest.Classifier { return r.classifier }

// Bind registers the routine for a (state, event kind) pair. The table is
// static: registration happens once at wiring time, duplicates panic.
func (r *Router) Bind(st state.State, kind Kind, rt Routine) {
	key := bindingKey{st: st, kind: kind}
	if _, exists := r.bindings[key]; exists {
		panic(fmt.Sprintf("router: duplicate binding %s/%s", st, kind))
	}
	r.bindings[key] = rt
}

// Action registers the routine for a button action id. Actions compose with
// the state machine: navigation actions are stateless except for the state
// they write.
func (r *Router) Action(key string, rt Routine) {
	if _, exists := r.actions[key]; exists {
		panic(fmt.Sprintf("router: duplicate action %s", key))
	}
	r.actions[key] = rt
}

// Handle processes one inbound event to completion. Calls for the same user
// are serialized; calls for different users proceed independently.
func (r *Router) Handle(ctx context.Context, ev Event) Outcome {
	lock := r.userLock(ev.UserID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	st := r.states.GetState(ev.UserID)

	turn := &Turn{
		Ctx:    ctx,
		UserID: ev.UserID,
		State:  st,
		Event:  ev,
		Bag:    bagView{states: r.states, userID: ev.UserID},
	}

	if ev.Kind == KindFile {
		input, reject := r.normalizeFile(st, ev)
		if reject != nil {
			r.logHandled(ctx, ev, st, *reject, start)
			return *reject
		}
		turn.Input = input
	} else {
		turn.Input = Input{Text: ev.Text, Payload: ev.Payload}
	}

	rt := r.resolve(st, ev)
	if rt == nil {
		out := r.stateMismatch(st, ev)
		r.logHandled(ctx, ev, st, out, start)
		return out
	}

	tr, err := rt.Handle(turn)
	if err != nil {
		out := r.failed(ctx, ev, st, err)
		r.logHandled(ctx, ev, st, out, start)
		return out
	}

	r.commit(ev.UserID, tr)

	out := Outcome{Code: tr.Code, Reply: tr.Reply}
	if out.Code == "" {
		out.Code = CodeOK
	}
	for _, effect := range tr.Effects {
		if err := effect(ctx); err != nil {
			logger.Error(ctx, "router", "effect.failed",
				slog.Int64("user_id", ev.UserID),
				slog.String("err", err.Error()),
			)
			out = Outcome{Code: CodePersistenceFailed, Reply: persistenceFailedReply()}
			break
		}
	}

	r.logHandled(ctx, ev, st, out, start)
	return out
}

// resolve selects the routine for the event: button actions go through the
// action table, text and file events through the (state, kind) table.
func (r *Router) resolve(st state.State, ev Event) Routine {
	if ev.Kind == KindButton {
		if rt, ok := r.actions[ev.Action]; ok {
			return rt
		}
		if rt, ok := r.bindings[bindingKey{st: st, kind: KindButton}]; ok {
			return rt
		}
		return nil
	}
	return r.bindings[bindingKey{st: st, kind: ev.Kind}]
}

// commit applies next state, then context mutations, in that order. A crash
// after commit but before side effects leaves state consistent with
// "transition accepted".
func (r *Router) commit(userID int64, tr Transition) {
	if tr.ClearBag {
		r.states.ClearContext(userID)
	}
	if tr.Next != "" {
		r.states.SetState(userID, tr.Next)
	}
	if tr.Next == state.Idle {
		// Idle always means an empty bag; late mutations would leak
		// workflow data into the next, unrelated workflow.
		return
	}
	for k, v := range tr.Set {
		r.states.SetContext(userID, k, v)
	}
}

// normalizeFile classifies the upload and resolves archives by the policy of
// the current state: session upload takes the first credential member, every
// other state merges number sources into one batch.
func (r *Router) normalizeFile(st state.State, ev Event) (Input, *Outcome) {
	art := ev.File
	kind := r.classifier.Classify(art.Filename, art.Data)
	input := Input{Filename: art.Filename, Kind: kind}

	switch kind {
	case ingest.KindCredential:
		input.Credential = art.Data
		return input, nil

	case ingest.KindNumberSource:
		input.Batch = r.classifier.ExtractNumbers(string(art.Data), art.Filename)
		return input, nil

	case ingest.KindArchive:
		if st == state.SessionUpload {
			member, err := r.classifier.CredentialFromArchive(art.Data, r.limits)
			if err != nil {
				return Input{}, r.archiveFailure(err)
			}
			if member == nil {
				input.Kind = ingest.KindUnrecognized
				out := unrecognizedReply(art.Filename)
				return input, &out
			}
			input.Kind = ingest.KindCredential
			input.Credential = member.Data
			input.Filename = member.Path
			return input, nil
		}
		batch, err := r.classifier.BatchFromArchive(art.Data, r.limits)
		if err != nil {
			return Input{}, r.archiveFailure(err)
		}
		input.Kind = ingest.KindNumberSource
		input.Batch = batch
		return input, nil

	default:
		out := unrecognizedReply(art.Filename)
		return input, &out
	}
}

func (r *Router) archiveFailure(err error) *Outcome {
	var out Outcome
	switch {
	case errors.Is(err, archive.ErrTooLarge):
		out = Outcome{
			Code:  CodeArchiveTooLarge,
			Reply: Reply{Text: "The archive exceeds the allowed size. Split it and try again."},
		}
	default:
		out = Outcome{
			Code:  CodeCorruptArchive,
			Reply: Reply{Text: "The archive could not be read. Re-pack it as a plain .zip and try again."},
		}
	}
	return &out
}

func (r *Router) stateMismatch(st state.State, ev Event) Outcome {
	text := "That action does not fit what we are doing right now. Use the menu to pick the next step."
	if ev.Kind == KindButton {
		text = "That button is no longer valid here. Use the menu to pick the next step."
	}
	return Outcome{
		Code: CodeStateMismatch,
		Reply: Reply{
			Text:    text,
			Buttons: [][]Btn{Row(Btn{Text: "Main Menu", Action: "main_menu"})},
		},
	}
}

func (r *Router) failed(ctx context.Context, ev Event, st state.State, err error) Outcome {
	logger.Error(ctx, "router", "routine.failed",
		slog.Int64("user_id", ev.UserID),
		slog.String("state", string(st)),
		slog.String("kind", ev.Kind.String()),
		slog.String("err", err.Error()),
	)
	// State is left untouched so the user can simply retry.
	return Outcome{Code: CodePersistenceFailed, Reply: persistenceFailedReply()}
}

func persistenceFailedReply() Reply {
	return Reply{
		Text:    "Saving your data failed. Nothing was changed; please try again.",
		Buttons: [][]Btn{Row(Btn{Text: "Main Menu", Action: "main_menu"})},
	}
}

func unrecognizedReply(filename string) Outcome {
	return Outcome{
		Code: CodeUnrecognized,
		Reply: Reply{
			Text: fmt.Sprintf("I can't use %q. Accepted uploads: %s.", filename, ingest.AcceptedKinds()),
			Buttons: [][]Btn{
				Row(Btn{Text: "Upload Session", Action: "session_menu"}),
				Row(Btn{Text: "Check Frozen", Action: "check_frozen"}),
				Row(Btn{Text: "Main Menu", Action: "main_menu"}),
			},
		},
	}
}

func (r *Router) userLock(userID int64) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[userID] = l
	}
	return l
}

func (r *Router) logHandled(ctx context.Context, ev Event, st state.State, out Outcome, start time.Time) {
	status := "ok"
	if out.Code != CodeOK {
		status = "fail"
	}
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.Int64("user_id", ev.UserID),
		slog.String("state", string(st)),
		slog.String("kind", ev.Kind.String()),
		slog.String("code", string(out.Code)),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	}
	if ev.Action != "" {
		attrs = append(attrs, slog.String("action", ev.Action))
	}
	if ev.File != nil {
		attrs = append(attrs, slog.String("filename", logger.SanitizeLimit(ev.File.Filename, 64)))
	}
	logger.Info(ctx, "router", "event.handled", attrs...)
}

// bagView adapts the state manager to the read-only Bag routines receive.
type bagView struct {
	states state.Manager
	userID int64
}

func (b bagView) Get(key string) (interface{}, bool) { return b.states.GetContext(b.userID, key) }
func (b bagView) GetString(key string) (string, bool) {
	return b.states.GetContextString(b.userID, key)
}
func (b bagView) GetStrings(key string) ([]string, bool) {
	return b.states.GetContextStrings(b.userID, key)
}
