package router

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thertxnetworktwo/toolkit/bot/ingest"
	"github.com/thertxnetworktwo/toolkit/bot/state"
)

func newTestRouter() *Router {
	return New(Options{})
}

func TestUnboundEventIsStateMismatch(t *testing.T) {
	r := newTestRouter()
	r.States().SetState(1, state.ChannelSetup)
	r.States().SetContext(1, "k", "v")

	out := r.Handle(context.Background(), File(1, "numbers.txt", []byte("1234567890\n")))

	assert.Equal(t, CodeStateMismatch, out.Code)
	assert.NotEmpty(t, out.Reply.Text)
	// no mutation
	assert.Equal(t, state.ChannelSetup, r.States().GetState(1))
	v, ok := r.States().GetContext(1, "k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestUnknownActionIsStateMismatch(t *testing.T) {
	r := newTestRouter()
	out := r.Handle(context.Background(), Button(1, "bogus_action", ""))
	assert.Equal(t, CodeStateMismatch, out.Code)
	assert.Equal(t, state.Idle, r.States().GetState(1))
}

func TestCommitOrderStateThenContext(t *testing.T) {
	r := newTestRouter()
	r.Bind(state.Idle, KindText, RoutineFunc(func(tn *Turn) (Transition, error) {
		return Transition{
			Next:  state.WithdrawProcessing,
			Set:   map[string]interface{}{"withdraw_numbers": []string{"1234567890"}},
			Reply: Reply{Text: "ok"},
		}, nil
	}))

	out := r.Handle(context.Background(), Text(5, "1234567890"))

	assert.Equal(t, CodeOK, out.Code)
	assert.Equal(t, state.WithdrawProcessing, r.States().GetState(5))
	nums, ok := r.States().GetContextStrings(5, "withdraw_numbers")
	require.True(t, ok)
	assert.Equal(t, []string{"1234567890"}, nums)
}

func TestTransitionToIdleDropsMutations(t *testing.T) {
	r := newTestRouter()
	r.States().SetState(9, state.FileUpload)
	r.States().SetContext(9, "leftover", true)
	r.Bind(state.FileUpload, KindText, RoutineFunc(func(tn *Turn) (Transition, error) {
		return Transition{
			Next: state.Idle,
			Set:  map[string]interface{}{"must_not_leak": true},
		}, nil
	}))

	r.Handle(context.Background(), Text(9, "done"))

	assert.Equal(t, state.Idle, r.States().GetState(9))
	_, ok := r.States().GetContext(9, "leftover")
	assert.False(t, ok)
	_, ok = r.States().GetContext(9, "must_not_leak")
	assert.False(t, ok)
}

func TestRoutineErrorLeavesStateUnchanged(t *testing.T) {
	r := newTestRouter()
	r.States().SetState(2, state.ChannelSetup)
	r.Bind(state.ChannelSetup, KindText, RoutineFunc(func(tn *Turn) (Transition, error) {
		return Transition{}, errors.New("db down")
	}))

	out := r.Handle(context.Background(), Text(2, "@chan Name"))

	assert.Equal(t, CodePersistenceFailed, out.Code)
	assert.Equal(t, state.ChannelSetup, r.States().GetState(2))
}

func TestEffectFailureSurfacesAfterCommit(t *testing.T) {
	r := newTestRouter()
	r.Bind(state.Idle, KindText, RoutineFunc(func(tn *Turn) (Transition, error) {
		return Transition{
			Next: state.SessionUpload,
			Effects: []Effect{func(ctx context.Context) error {
				return errors.New("persist failed")
			}},
		}, nil
	}))

	out := r.Handle(context.Background(), Text(3, "hi"))

	assert.Equal(t, CodePersistenceFailed, out.Code)
	// the transition itself stands; retry belongs to the caller
	assert.Equal(t, state.SessionUpload, r.States().GetState(3))
}

func TestUnrecognizedFileNamesTheFileAndAcceptedKinds(t *testing.T) {
	r := newTestRouter()
	out := r.Handle(context.Background(), File(4, "virus.exe", []byte{0x4d, 0x5a}))

	assert.Equal(t, CodeUnrecognized, out.Code)
	assert.Contains(t, out.Reply.Text, "virus.exe")
	assert.Contains(t, out.Reply.Text, ".session")
	assert.Equal(t, state.Idle, r.States().GetState(4))
}

func TestCorruptArchiveOutcome(t *testing.T) {
	r := newTestRouter()
	r.States().SetState(6, state.FileUpload)
	r.Bind(state.FileUpload, KindFile, RoutineFunc(func(tn *Turn) (Transition, error) {
		t.Fatal("routine must not run for a corrupt archive")
		return Transition{}, nil
	}))

	out := r.Handle(context.Background(), File(6, "broken.zip", []byte("not a zip")))
	assert.Equal(t, CodeCorruptArchive, out.Code)
	assert.Equal(t, state.FileUpload, r.States().GetState(6))
}

func zipWith(t *testing.T, names []string, contents map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(contents[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestArchiveInSessionUploadTakesFirstCredential(t *testing.T) {
	r := newTestRouter()
	r.States().SetState(7, state.SessionUpload)

	var got Input
	r.Bind(state.SessionUpload, KindFile, RoutineFunc(func(tn *Turn) (Transition, error) {
		got = tn.Input
		return Transition{Next: state.Idle, Reply: Reply{Text: "saved"}}, nil
	}))

	data := zipWith(t,
		[]string{"a.txt", "b.session", "c.session"},
		map[string]string{"a.txt": "1234567890", "b.session": "first", "c.session": "second"},
	)
	out := r.Handle(context.Background(), File(7, "bundle.zip", data))

	assert.Equal(t, CodeOK, out.Code)
	assert.Equal(t, ingest.KindCredential, got.Kind)
	assert.Equal(t, "b.session", got.Filename)
	assert.Equal(t, []byte("first"), got.Credential)
}

func TestArchiveInBulkModeMergesNumberMembers(t *testing.T) {
	r := newTestRouter()
	r.States().SetState(8, state.FileUpload)

	var got Input
	r.Bind(state.FileUpload, KindFile, RoutineFunc(func(tn *Turn) (Transition, error) {
		got = tn.Input
		return Transition{Reply: Reply{Text: "ok"}}, nil
	}))

	data := zipWith(t,
		[]string{"one.txt", "skip.session", "two.txt"},
		map[string]string{
			"one.txt":      "1234567890\n5556667778\n",
			"skip.session": "x",
			"two.txt":      "5556667778\n9990001112\n",
		},
	)
	out := r.Handle(context.Background(), File(8, "bundle.zip", data))

	assert.Equal(t, CodeOK, out.Code)
	require.NotNil(t, got.Batch)
	assert.Equal(t, []string{"1234567890", "5556667778", "9990001112"}, got.Batch.Numbers())
}

func TestSameUserEventsAreSerialized(t *testing.T) {
	r := newTestRouter()

	started := make(chan struct{})
	release := make(chan struct{})
	var order []string
	var mu sync.Mutex

	r.Bind(state.Idle, KindText, RoutineFunc(func(tn *Turn) (Transition, error) {
		close(started)
		<-release
		mu.Lock()
		order = append(order, "e1")
		mu.Unlock()
		return Transition{
			Next: state.WithdrawProcessing,
			Set:  map[string]interface{}{"withdraw_numbers": []string{"1234567890"}},
		}, nil
	}))
	r.Bind(state.WithdrawProcessing, KindText, RoutineFunc(func(tn *Turn) (Transition, error) {
		// e2 must observe exactly what e1 committed
		nums, ok := tn.Bag.GetStrings("withdraw_numbers")
		mu.Lock()
		order = append(order, "e2")
		mu.Unlock()
		if !ok || len(nums) != 1 {
			t.Errorf("second event observed stale context: %v %v", nums, ok)
		}
		return Transition{}, nil
	}))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.Handle(context.Background(), Text(11, "first"))
	}()
	<-started
	go func() {
		defer wg.Done()
		r.Handle(context.Background(), Text(11, "second"))
	}()
	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"e1", "e2"}, order)
}

func TestDifferentUsersDoNotBlockEachOther(t *testing.T) {
	r := newTestRouter()
	blockA := make(chan struct{})
	aRunning := make(chan struct{})

	r.Bind(state.Idle, KindText, RoutineFunc(func(tn *Turn) (Transition, error) {
		if tn.UserID == 1 {
			close(aRunning)
			<-blockA
		}
		return Transition{}, nil
	}))

	done := make(chan struct{})
	go func() {
		r.Handle(context.Background(), Text(1, "slow"))
		close(done)
	}()
	<-aRunning

	// user 2 completes while user 1 is still in flight
	out := r.Handle(context.Background(), Text(2, "fast"))
	assert.Equal(t, CodeOK, out.Code)

	close(blockA)
	<-done
}

func TestDuplicateBindingPanics(t *testing.T) {
	r := newTestRouter()
	rt := RoutineFunc(func(tn *Turn) (Transition, error) { return Transition{}, nil })
	r.Bind(state.Idle, KindText, rt)
	assert.Panics(t, func() { r.Bind(state.Idle, KindText, rt) })
	r.Action("main_menu", rt)
	assert.Panics(t, func() { r.Action("main_menu", rt) })
}
