package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/user/blurt/internal/clock"
	"github.com/user/blurt/internal/delivery"
	"github.com/user/blurt/internal/entity"
	"github.com/user/blurt/internal/state"
	"github.com/user/blurt/internal/types"
)

type fixture struct {
	store *entity.Store
	clock *clock.Clock
	dir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := time.LoadLocation(clock.DefaultZone)
	require.NoError(t, err)
	dir := t.TempDir()
	return &fixture{
		store: entity.New(state.NewFileStore(dir)),
		clock: clock.Fixed(loc, time.Date(2026, 3, 1, 10, 0, 0, 0, loc)),
		dir:   dir,
	}
}

func (f *fixture) put(t *testing.T, c types.Collection, id string, v any) {
	t.Helper()
	require.NoError(t, f.store.Put(context.Background(), c, id, v))
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	f.put(t, types.CollectionEvents, "e1", &types.Item{ID: "e1", Name: "Launch", StartDatetime: "2026-03-05 15:00", EndDatetime: "2026-03-05 17:00", IsActive: types.FlagTrue})
	f.put(t, types.CollectionEvents, "e2", &types.Item{ID: "e2", Name: "Town hall", StartDatetime: "2026-03-04 09:00", EndDatetime: "2026-03-04 10:00", IsActive: types.FlagTrue})
	f.put(t, types.CollectionEvents, "e3", &types.Item{ID: "e3", Name: "Workshop", Description: "Bring a laptop", StartDatetime: "2026-03-03 12:00", EndDatetime: "2026-03-03 14:00", IsActive: types.FlagTrue})
	f.put(t, types.CollectionEvents, "old", &types.Item{ID: "old", Name: "Kickoff", StartDatetime: "2026-02-20 12:00", EndDatetime: "2026-02-20 13:00", IsActive: types.FlagTrue})
	f.put(t, types.CollectionAnnouncements, "a1", &types.Item{ID: "a1", Name: "Parking", StartDatetime: "2026-02-28 00:00", EndDatetime: "2026-03-10 00:00", IsActive: types.FlagTrue})
	f.put(t, types.CollectionAnnouncements, "a2", &types.Item{ID: "a2", Name: "Lunch", StartDatetime: "2026-02-28 00:00", EndDatetime: "2026-03-10 00:00", IsActive: types.FlagTrue})
	f.put(t, types.CollectionUsers, "bob", &types.User{
		ID:                    "bob",
		Name:                  "Bob",
		Locale:                "ja-JP",
		SignalID:              "amber-brook-cedar",
		EventsToNotify:        []string{"e1", "e2"},
		EventsToAttend:        []string{"e2", "e3", "old"},
		AnnouncementsToNotify: []string{"a1", "a2"},
		AnnouncementsListened: []string{"a2"},
		IsFromSheets:          true,
	})
}

func (f *fixture) builder() *Builder {
	return NewBuilder(f.store, f.clock, &AssetNamer{Prefix: "https://cdn.example.com/audio/"})
}

func TestBuildGolden(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	m, err := f.builder().Build(context.Background(), "bob")
	require.NoError(t, err)
	require.Equal(t, "amber-brook-cedar", m.SignalID)

	data, err := json.MarshalIndent(m, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "manifest", append(data, '\n'))
}

func TestBuildStoresAudioURLs(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	_, err := f.builder().Build(ctx, "bob")
	require.NoError(t, err)

	user, err := f.store.User(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/audio/amber-brook-cedar-event.mp3", user.EventAudio)
	require.Equal(t, "https://cdn.example.com/audio/amber-brook-cedar-schedule.mp3", user.ScheduleAudio)
	require.Equal(t, []string{"e1", "e2"}, user.EventsToNotify)
}

func TestBuildKeepsExistingAudio(t *testing.T) {
	f := newFixture(t)
	f.put(t, types.CollectionUsers, "amy", &types.User{ID: "amy", SignalID: "mint-moss-pine", EventAudio: "custom.mp3"})

	var writes int
	f.store.Observe(func(context.Context, string) { writes++ })
	m, err := f.builder().Build(context.Background(), "amy")
	require.NoError(t, err)
	require.Empty(t, m.Results)
	require.Equal(t, 1, writes)

	user, err := f.store.User(context.Background(), "amy")
	require.NoError(t, err)
	require.Equal(t, "custom.mp3", user.EventAudio)
	require.Equal(t, "mint-moss-pine-announcement.mp3", (&AssetNamer{}).URL("mint-moss-pine", "announcement"))
}

func TestBuildNoticeWithoutInviteStartsNow(t *testing.T) {
	f := newFixture(t)
	f.put(t, types.CollectionAnnouncements, "a1", &types.Item{ID: "a1", StartDatetime: "2026-02-28 00:00", EndDatetime: "2026-03-10 00:00"})
	f.put(t, types.CollectionUsers, "cy", &types.User{ID: "cy", SignalID: "s", Locale: "en-GB", AnnouncementsToNotify: []string{"a1"}})

	m, err := NewBuilder(f.store, f.clock, nil).Build(context.Background(), "cy")
	require.NoError(t, err)
	require.Len(t, m.Results, 1)
	require.Equal(t, TypeNotice, m.Results[0].Type)
	require.Equal(t, f.clock.Now().Unix(), m.Results[0].StartTime)
	require.Equal(t, "en", m.Results[0].Language)
}

func TestBuildErrors(t *testing.T) {
	f := newFixture(t)
	f.put(t, types.CollectionUsers, "nosig", &types.User{ID: "nosig"})
	b := f.builder()

	_, err := b.Build(context.Background(), "ghost")
	require.True(t, errors.Is(err, entity.ErrNotFound), "got %v", err)

	_, err = b.Build(context.Background(), "nosig")
	require.True(t, errors.Is(err, ErrNoSignalID), "got %v", err)
}

type recorder struct {
	mu      sync.Mutex
	notices []delivery.Notice
}

func (r *recorder) Notify(_ context.Context, n delivery.Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}

func TestPublishWritesFilesAndNotifies(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	rec := &recorder{}
	pub := NewPublisher(f.builder(), f.dir, rec, nil)

	m, err := pub.Publish(context.Background(), "bob")
	require.NoError(t, err)

	data, err := os.ReadFile(pub.Path("amber-brook-cedar"))
	require.NoError(t, err)
	var got Manifest
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got.Results, len(m.Results))
	require.True(t, got.IsFromSheets)

	data, err = os.ReadFile(pub.StatusPath("amber-brook-cedar"))
	require.NoError(t, err)
	require.JSONEq(t, `{"status": true}`, string(data))

	require.Equal(t, 1, rec.count())
	n := rec.notices[0]
	require.Equal(t, delivery.KindManifestUpdated, n.Kind)
	require.Equal(t, "bob", n.UserID)
	require.Equal(t, 4, n.Count)
	require.Equal(t, "notifiers/amber-brook-cedar.json", n.Path)
}

func TestRebuilderDebouncesWrites(t *testing.T) {
	f := newFixture(t)
	f.put(t, types.CollectionUsers, "bob", &types.User{ID: "bob", SignalID: "amber-brook-cedar", EventAudio: "e", AnnouncementAudio: "a", ScheduleAudio: "s"})
	rec := &recorder{}
	rb := NewRebuilder(NewPublisher(f.builder(), f.dir, rec, nil), 50*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rb.Watch(ctx, f.store)

	for _, ids := range [][]string{{"e1"}, {"e2"}, {"e3"}} {
		require.NoError(t, f.store.Add(ctx, entity.UserList("bob", types.FieldEventsToNotify), ids...))
	}
	rb.Wait()
	require.Equal(t, 1, rec.count())

	_, err := os.Stat(NewPublisher(nil, f.dir, nil, nil).Path("amber-brook-cedar"))
	require.NoError(t, err)
}

func TestRebuilderIgnoresUsersWithoutSignal(t *testing.T) {
	f := newFixture(t)
	rec := &recorder{}
	rb := NewRebuilder(NewPublisher(f.builder(), f.dir, rec, nil), 10*time.Millisecond, nil)
	rb.Watch(context.Background(), f.store)

	f.put(t, types.CollectionUsers, "anon", &types.User{ID: "anon"})
	rb.Wait()
	require.Zero(t, rec.count())
}
