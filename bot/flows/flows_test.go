package flows

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thertxnetworktwo/toolkit/bot/frozen"
	"github.com/thertxnetworktwo/toolkit/bot/router"
	"github.com/thertxnetworktwo/toolkit/bot/state"
	"github.com/thertxnetworktwo/toolkit/bot/storage"
)

type fakeStore struct {
	user     *storage.User
	session  *storage.Session
	channels []storage.Channel

	savedSessions   []string
	removedSessions int
	addedChannels   []string
	removedChannels []string
	withdraws       [][]string
	premiumSet      map[int64]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{premiumSet: make(map[int64]bool)}
}

func (f *fakeStore) GetUser(_ context.Context, id int64) (*storage.User, error) {
	if f.user == nil {
		return nil, storage.ErrNotFound
	}
	return f.user, nil
}

func (f *fakeStore) SetPremium(_ context.Context, id int64, premium bool) error {
	f.premiumSet[id] = premium
	return nil
}

func (f *fakeStore) AddChannel(_ context.Context, _ int64, ref, name string) error {
	for _, existing := range f.addedChannels {
		if existing == ref {
			return storage.ErrDuplicate
		}
	}
	f.addedChannels = append(f.addedChannels, ref)
	f.channels = append(f.channels, storage.Channel{Ref: ref, Name: name, IsActive: true})
	return nil
}

func (f *fakeStore) ListChannels(_ context.Context, _ int64) ([]storage.Channel, error) {
	return f.channels, nil
}

func (f *fakeStore) RemoveChannel(_ context.Context, _ int64, ref string) error {
	f.removedChannels = append(f.removedChannels, ref)
	return nil
}

func (f *fakeStore) SaveSession(_ context.Context, _ int64, filename string, _ []byte) error {
	f.savedSessions = append(f.savedSessions, filename)
	f.session = &storage.Session{Filename: filename, IsActive: true}
	return nil
}

func (f *fakeStore) GetSession(_ context.Context, _ int64) (*storage.Session, error) {
	if f.session == nil {
		return nil, storage.ErrNotFound
	}
	return f.session, nil
}

func (f *fakeStore) RemoveSession(_ context.Context, _ int64) error {
	if f.session == nil {
		return storage.ErrNotFound
	}
	f.session = nil
	f.removedSessions++
	return nil
}

func (f *fakeStore) CreateWithdraw(_ context.Context, _ string, _ int64, numbers []string) error {
	f.withdraws = append(f.withdraws, numbers)
	return nil
}

type fakeChecker struct {
	batches  [][]string
	channels []string
}

func (f *fakeChecker) Check(_ context.Context, numbers []string, channelRef string) ([]frozen.Result, error) {
	f.batches = append(f.batches, numbers)
	f.channels = append(f.channels, channelRef)
	out := make([]frozen.Result, len(numbers))
	for i, n := range numbers {
		out[i] = frozen.Result{Number: n}
	}
	return out, nil
}

func newHarness(t *testing.T) (*router.Router, *fakeStore, *fakeChecker) {
	t.Helper()
	r := router.New(router.Options{})
	fs := newFakeStore()
	fc := &fakeChecker{}
	Register(r, Deps{Store: fs, Checker: fc, AdminIDs: []int64{99}})
	return r, fs, fc
}

func TestIdleUploadThenCheckForwardsBatch(t *testing.T) {
	r, fs, fc := newHarness(t)
	fs.channels = []storage.Channel{{Ref: "@chan", Name: "Chan", IsActive: true}}
	ctx := context.Background()

	data := []byte("1234567890\nnot a number\n+44 1632 960123\nhello world\n9876543210\n")
	out := r.Handle(ctx, router.File(7, "numbers.txt", data))

	require.Equal(t, router.CodeOK, out.Code)
	assert.Contains(t, out.Reply.Text, "3 numbers found")
	assert.Equal(t, state.Idle, r.States().GetState(7))

	out = r.Handle(ctx, router.Button(7, ActCheckBulkFrozen, ""))
	require.Equal(t, router.CodeOK, out.Code)

	require.Len(t, fc.batches, 1)
	assert.Equal(t, []string{"1234567890", "441632960123", "9876543210"}, fc.batches[0])
	assert.Equal(t, []string{"@chan"}, fc.channels)

	// staged numbers are consumed by the Idle-bound transition
	_, ok := r.States().GetContext(7, keyDetectedNumbers)
	assert.False(t, ok)
}

func TestCheckWithoutStagedNumbers(t *testing.T) {
	r, _, fc := newHarness(t)

	out := r.Handle(context.Background(), router.Button(1, ActCheckBulkFrozen, ""))
	assert.Equal(t, router.CodeConfirmationMissing, out.Code)
	assert.Empty(t, fc.batches)
}

func TestConfirmRemoveSessionWithoutRequest(t *testing.T) {
	r, fs, _ := newHarness(t)
	fs.session = &storage.Session{Filename: "acc.session", IsActive: true}

	out := r.Handle(context.Background(), router.Button(2, ActConfirmRemoveSession, "stale-token"))

	assert.Equal(t, router.CodeConfirmationMissing, out.Code)
	assert.Equal(t, 0, fs.removedSessions, "no persistence call without a pending token")
	assert.NotNil(t, fs.session)
}

func TestSessionRemovalTwoStep(t *testing.T) {
	r, fs, _ := newHarness(t)
	fs.session = &storage.Session{Filename: "acc.session", IsActive: true}
	ctx := context.Background()

	out := r.Handle(ctx, router.Button(3, ActRemoveSession, ""))
	require.Equal(t, router.CodeOK, out.Code)
	assert.Equal(t, 0, fs.removedSessions)

	// the confirm button carries the token as payload
	var token string
	for _, row := range out.Reply.Buttons {
		for _, btn := range row {
			if btn.Action == ActConfirmRemoveSession {
				token = btn.Payload
			}
		}
	}
	require.NotEmpty(t, token)

	out = r.Handle(ctx, router.Button(3, ActConfirmRemoveSession, token))
	require.Equal(t, router.CodeOK, out.Code)
	assert.Equal(t, 1, fs.removedSessions)
	_, ok := r.States().GetContext(3, keySessionToken)
	assert.False(t, ok, "token consumed with the removal")
}

func TestSessionRemovalWrongToken(t *testing.T) {
	r, fs, _ := newHarness(t)
	fs.session = &storage.Session{Filename: "acc.session", IsActive: true}
	ctx := context.Background()

	r.Handle(ctx, router.Button(4, ActRemoveSession, ""))
	out := r.Handle(ctx, router.Button(4, ActConfirmRemoveSession, "forged"))

	assert.Equal(t, router.CodeConfirmationMissing, out.Code)
	assert.Equal(t, 0, fs.removedSessions)
}

func TestSessionUploadFlow(t *testing.T) {
	r, fs, _ := newHarness(t)
	ctx := context.Background()

	out := r.Handle(ctx, router.Button(5, ActUploadSession, ""))
	require.Equal(t, router.CodeOK, out.Code)
	assert.Equal(t, state.SessionUpload, r.States().GetState(5))

	out = r.Handle(ctx, router.File(5, "acc.session", []byte("blob")))
	require.Equal(t, router.CodeOK, out.Code)
	assert.Equal(t, []string{"acc.session"}, fs.savedSessions)
	assert.Equal(t, state.Idle, r.States().GetState(5))
}

func TestSessionUploadRejectsNumberFile(t *testing.T) {
	r, fs, _ := newHarness(t)
	ctx := context.Background()

	r.Handle(ctx, router.Button(6, ActUploadSession, ""))
	out := r.Handle(ctx, router.File(6, "numbers.txt", []byte("1234567890\n")))

	assert.Equal(t, router.CodeUnrecognized, out.Code)
	assert.Empty(t, fs.savedSessions)
	assert.Equal(t, state.SessionUpload, r.States().GetState(6), "stays in upload for a retry")
}

func TestChannelSetupFlow(t *testing.T) {
	r, fs, _ := newHarness(t)
	fs.user = &storage.User{ID: 8, IsPremium: true}
	ctx := context.Background()

	out := r.Handle(ctx, router.Button(8, ActAddChannel, ""))
	require.Equal(t, router.CodeOK, out.Code)
	assert.Equal(t, state.ChannelSetup, r.States().GetState(8))

	out = r.Handle(ctx, router.Text(8, "@mychannel My Test Channel"))
	require.Equal(t, router.CodeOK, out.Code)
	assert.Equal(t, []string{"@mychannel"}, fs.addedChannels)
	assert.Equal(t, state.Idle, r.States().GetState(8))
}

func TestChannelSetupBadFormatKeepsState(t *testing.T) {
	r, fs, _ := newHarness(t)
	fs.user = &storage.User{ID: 9, IsPremium: true}
	ctx := context.Background()

	r.Handle(ctx, router.Button(9, ActAddChannel, ""))
	out := r.Handle(ctx, router.Text(9, "just some words"))

	require.Equal(t, router.CodeOK, out.Code)
	assert.Contains(t, out.Reply.Text, "Invalid Format")
	assert.Empty(t, fs.addedChannels)
	assert.Equal(t, state.ChannelSetup, r.States().GetState(9))
}

func TestChannelSetupDuplicate(t *testing.T) {
	r, fs, _ := newHarness(t)
	fs.user = &storage.User{ID: 10, IsPremium: true}
	ctx := context.Background()

	r.Handle(ctx, router.Button(10, ActAddChannel, ""))
	r.Handle(ctx, router.Text(10, "@mychannel First"))
	r.Handle(ctx, router.Button(10, ActAddChannel, ""))
	out := r.Handle(ctx, router.Text(10, "@mychannel Again"))

	assert.Contains(t, out.Reply.Text, "already on your list")
	assert.Len(t, fs.addedChannels, 1)
}

func TestParseChannelInput(t *testing.T) {
	cases := []struct {
		in        string
		ref, name string
		ok        bool
	}{
		{"@mychannel My Channel", "@mychannel", "My Channel", true},
		{"-1002647763210 Big Channel", "-1002647763210", "Big Channel", true},
		{"  @mychannel Trimmed  ", "@mychannel", "Trimmed", true},
		{"@mychannel", "", "", false},
		{"-100123 Short ID", "", "", false},
		{"plain words", "", "", false},
	}
	for _, tc := range cases {
		ref, name, ok := parseChannelInput(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		if tc.ok {
			assert.Equal(t, tc.ref, ref, tc.in)
			assert.Equal(t, tc.name, name, tc.in)
		}
	}
}

func TestWithdrawAccumulateAndConfirm(t *testing.T) {
	r, fs, _ := newHarness(t)
	ctx := context.Background()

	r.Handle(ctx, router.Button(11, ActStartWithdraw, ""))
	assert.Equal(t, state.WithdrawProcessing, r.States().GetState(11))

	out := r.Handle(ctx, router.Text(11, "1234567890\n9876543210"))
	require.Equal(t, router.CodeOK, out.Code)
	assert.Contains(t, out.Reply.Text, "Total pending: 2")

	// duplicates across messages and files stay deduplicated
	out = r.Handle(ctx, router.File(11, "more.txt", []byte("9876543210\n5556667778\n")))
	require.Equal(t, router.CodeOK, out.Code)
	assert.Contains(t, out.Reply.Text, "Total pending: 3")

	out = r.Handle(ctx, router.Button(11, ActConfirmWithdraw, ""))
	require.Equal(t, router.CodeOK, out.Code)
	require.Len(t, fs.withdraws, 1)
	assert.Equal(t, []string{"1234567890", "9876543210", "5556667778"}, fs.withdraws[0])
	assert.Equal(t, state.Idle, r.States().GetState(11))
}

func TestConfirmWithdrawWithoutNumbers(t *testing.T) {
	r, fs, _ := newHarness(t)

	out := r.Handle(context.Background(), router.Button(12, ActConfirmWithdraw, ""))
	assert.Equal(t, router.CodeConfirmationMissing, out.Code)
	assert.Empty(t, fs.withdraws)
}

func TestAdminPremiumGrant(t *testing.T) {
	r, fs, _ := newHarness(t)
	ctx := context.Background()

	out := r.Handle(ctx, router.Button(99, ActAdminAddPremium, ""))
	require.Equal(t, router.CodeOK, out.Code)
	assert.Equal(t, state.AdminCommand, r.States().GetState(99))

	out = r.Handle(ctx, router.Text(99, " 12345 "))
	require.Equal(t, router.CodeOK, out.Code)
	assert.True(t, fs.premiumSet[12345])
	assert.Equal(t, state.Idle, r.States().GetState(99))
}

func TestAdminActionsDeniedForNonAdmin(t *testing.T) {
	r, fs, _ := newHarness(t)

	out := r.Handle(context.Background(), router.Button(13, ActAdminAddPremium, ""))
	assert.Contains(t, out.Reply.Text, "Access denied")
	assert.Equal(t, state.Idle, r.States().GetState(13))
	assert.Empty(t, fs.premiumSet)
}

func TestSingleCheckFromText(t *testing.T) {
	r, fs, fc := newHarness(t)
	fs.channels = []storage.Channel{{Ref: "@chan", Name: "Chan", IsActive: true}}
	ctx := context.Background()

	r.Handle(ctx, router.Button(14, ActFrozenSingle, ""))
	assert.Equal(t, state.FileUpload, r.States().GetState(14))

	out := r.Handle(ctx, router.Text(14, "+1 (234) 567-8901"))
	require.Equal(t, router.CodeOK, out.Code)
	require.Len(t, fc.batches, 1)
	assert.Equal(t, []string{"12345678901"}, fc.batches[0])
	assert.Equal(t, state.Idle, r.States().GetState(14))
}

func TestBulkUploadStagesWithoutForwarding(t *testing.T) {
	r, _, fc := newHarness(t)
	ctx := context.Background()

	r.Handle(ctx, router.Button(15, ActFrozenBulk, ""))
	out := r.Handle(ctx, router.File(15, "numbers.txt", []byte("1234567890\n1234567890\n9876543210\n")))
	require.Equal(t, router.CodeOK, out.Code)
	assert.Contains(t, out.Reply.Text, "2 numbers found")
	assert.Empty(t, fc.batches, "nothing forwarded before the check action")
}

func TestSmartDetectSessionFile(t *testing.T) {
	r, fs, _ := newHarness(t)

	out := r.Handle(context.Background(), router.File(16, "acc.session", []byte("blob")))
	require.Equal(t, router.CodeOK, out.Code)
	assert.Contains(t, out.Reply.Text, "Session File Detected")
	assert.Empty(t, fs.savedSessions, "detection never persists by itself")
	assert.Equal(t, state.Idle, r.States().GetState(16))
}

func TestMainMenuDiscardsDetectedNumbers(t *testing.T) {
	r, _, _ := newHarness(t)
	ctx := context.Background()

	r.Handle(ctx, router.File(17, "numbers.txt", []byte("1234567890\n")))
	_, ok := r.States().GetContext(17, keyDetectedNumbers)
	require.True(t, ok)

	r.Handle(ctx, router.Button(17, ActMainMenu, ""))
	_, ok = r.States().GetContext(17, keyDetectedNumbers)
	assert.False(t, ok, "Idle-bound transition clears the stash")
}
