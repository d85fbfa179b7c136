package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/erauner12/shiftsync/internal/domain"
	"github.com/erauner12/shiftsync/internal/kvstore"
	"github.com/erauner12/shiftsync/internal/syncx"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeAPI serves records from a map. Keys in fail return an error.
type fakeAPI struct {
	mu      sync.Mutex
	records map[string]syncx.Record
	fail    map[string]error
	block   chan struct{}
	started chan struct{}
	gets    int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{records: map[string]syncx.Record{}, fail: map[string]error{}}
}

func (f *fakeAPI) GetRecord(_ context.Context, key string) (*syncx.Record, error) {
	if f.block != nil {
		if f.started != nil {
			close(f.started)
			f.started = nil
		}
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if err := f.fail[key]; err != nil {
		return nil, err
	}
	rec, ok := f.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeAPI) PushRecord(_ context.Context, key string, rec syncx.Record) (*syncx.OfferResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.records[key]
	var cur *syncx.Record
	if ok {
		cur = &stored
	}
	if !syncx.Accepts(cur, rec) {
		return &syncx.OfferResult{Updated: false, Timestamp: stored.Timestamp}, nil
	}
	f.records[key] = rec
	return &syncx.OfferResult{Updated: true, Timestamp: rec.Timestamp}, nil
}

func (f *fakeAPI) set(key string, ts int64, data string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[key] = syncx.Record{Data: json.RawMessage(data), Timestamp: ts, DeviceID: "other", Version: ts}
}

// failingApplier fails the first n applies.
type failingApplier struct {
	next Applier
	n    int
}

func (a *failingApplier) Apply(ctx context.Context, key string, data json.RawMessage) error {
	if a.n > 0 {
		a.n--
		return errors.New("disk full")
	}
	return a.next.Apply(ctx, key, data)
}

const testDate = "2024-06-01"

type fixture struct {
	api   *fakeAPI
	local *kvstore.Memory
	cache *syncx.MemoryRecords
	rec   *Reconciler
}

func newFixture(t *testing.T, applier func(Applier) Applier) *fixture {
	t.Helper()
	f := &fixture{api: newFakeAPI(), local: kvstore.NewMemory(), cache: syncx.NewMemoryRecords()}
	var app Applier = StoreApplier{Store: f.local}
	if applier != nil {
		app = applier(app)
	}
	f.rec = NewReconciler(ReconcilerConfig{
		API:     f.api,
		Cache:   f.cache,
		Applier: app,
		Keys:    func() []string { return syncx.WatchedKeys(testDate) },
	})
	return f
}

func (f *fixture) dayPart(t *testing.T) *domain.DayPartDoc {
	t.Helper()
	doc, err := kvstore.NewCollection[domain.DayPartDoc](f.local, string(domain.CategoryDayParts)).Get(context.Background(), testDate)
	require.NoError(t, err)
	return doc
}

func TestReconciler_AdoptsNewerRecord(t *testing.T) {
	f := newFixture(t, nil)
	f.api.set("daypart_2024-06-01", 1000, `{"dayPart":"Lunch"}`)

	res, ok := f.rec.RunOnce(context.Background())
	require.True(t, ok)
	assert.Equal(t, 3, res.Checked)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 2, res.Missing)
	assert.Equal(t, 0, res.Errors)

	doc := f.dayPart(t)
	require.NotNil(t, doc)
	assert.Equal(t, domain.Lunch, doc.DayPart)

	cached, err := f.cache.Get(context.Background(), "daypart_2024-06-01")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, int64(1000), cached.Timestamp)

	assert.Equal(t, StatusOnline, f.rec.Status())
	assert.False(t, f.rec.LastPass().IsZero())
}

func TestReconciler_IgnoresSameOrOlderRecord(t *testing.T) {
	tests := []struct {
		name     string
		cachedTS int64
	}{
		{"equal timestamp", 1000},
		{"cache newer", 2000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			ctx := context.Background()
			require.NoError(t, f.cache.Set(ctx, "daypart_2024-06-01", syncx.Record{
				Data: json.RawMessage(`{"dayPart":"Breakfast"}`), Timestamp: tt.cachedTS,
			}))
			f.api.set("daypart_2024-06-01", 1000, `{"dayPart":"Lunch"}`)

			res, ok := f.rec.RunOnce(ctx)
			require.True(t, ok)
			assert.Equal(t, 0, res.Applied)
			assert.Nil(t, f.dayPart(t), "local state must not be touched")

			cached, err := f.cache.Get(ctx, "daypart_2024-06-01")
			require.NoError(t, err)
			assert.Equal(t, tt.cachedTS, cached.Timestamp)
		})
	}
}

func TestReconciler_FetchErrorGoesOffline(t *testing.T) {
	f := newFixture(t, nil)
	f.api.fail["schedule_2024-06-01"] = errors.New("connection refused")
	f.api.set("daypart_2024-06-01", 1000, `{"dayPart":"Lunch"}`)

	res, ok := f.rec.RunOnce(context.Background())
	require.True(t, ok)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, 1, res.Applied, "other keys still reconcile")
	assert.True(t, res.Offline)
	assert.Equal(t, StatusOffline, f.rec.Status())
	assert.True(t, f.rec.LastPass().IsZero())

	delete(f.api.fail, "schedule_2024-06-01")
	_, ok = f.rec.RunOnce(context.Background())
	require.True(t, ok)
	assert.Equal(t, StatusOnline, f.rec.Status())
	assert.False(t, f.rec.LastPass().IsZero())
}

func TestReconciler_FailedApplyIsRetried(t *testing.T) {
	f := newFixture(t, func(next Applier) Applier { return &failingApplier{next: next, n: 1} })
	f.api.set("daypart_2024-06-01", 1000, `{"dayPart":"Lunch"}`)

	res, _ := f.rec.RunOnce(context.Background())
	assert.Equal(t, 1, res.Errors)
	assert.False(t, res.Offline)
	assert.Equal(t, StatusOnline, f.rec.Status())

	cached, err := f.cache.Get(context.Background(), "daypart_2024-06-01")
	require.NoError(t, err)
	assert.Nil(t, cached, "cache is only updated after a successful apply")

	res, _ = f.rec.RunOnce(context.Background())
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, domain.Lunch, f.dayPart(t).DayPart)
}

func TestReconciler_UnknownKeyCountsAsError(t *testing.T) {
	f := newFixture(t, nil)
	f.rec.cfg.Keys = func() []string { return []string{"bogus_2024-06-01"} }
	f.api.set("bogus_2024-06-01", 1000, `{}`)

	res, _ := f.rec.RunOnce(context.Background())
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, StatusOnline, f.rec.Status())
}

func TestReconciler_SkipsOverlappingPass(t *testing.T) {
	f := newFixture(t, nil)
	f.api.block = make(chan struct{})
	f.api.started = make(chan struct{})
	started := f.api.started

	require.True(t, f.rec.Trigger())
	<-started

	assert.False(t, f.rec.Trigger())
	_, ok := f.rec.RunOnce(context.Background())
	assert.False(t, ok)

	close(f.api.block)
	require.Eventually(t, func() bool { return !f.rec.inFlight.Load() }, time.Second, 5*time.Millisecond)
	f.rec.wg.Wait()
	assert.Equal(t, StatusOnline, f.rec.Status())
}

func TestReconciler_RunStopsAndWaits(t *testing.T) {
	f := newFixture(t, nil)
	f.api.set("schedule_2024-06-01", 1000, `{"employees":[{"name":"Ana"}]}`)

	passes := make(chan PassResult, 10)
	f.rec.cfg.Interval = 10 * time.Millisecond
	f.rec.cfg.OnPass = func(res PassResult) {
		select {
		case passes <- res:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.rec.Run(ctx) }()

	first := <-passes
	assert.Equal(t, 1, first.Applied)

	cancel()
	require.NoError(t, <-done)
	assert.False(t, f.rec.Trigger(), "no passes after Run returns")
}

func TestStoreApplier(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	a := StoreApplier{Store: store}

	require.NoError(t, a.Apply(ctx, "lastDayPart_2024-06-01", json.RawMessage(`{"dayPart":"Lunch"}`)))
	raw, err := store.Read(ctx, "dayparts", "2024-06-01")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"Lunch"`)

	err = a.Apply(ctx, "notes_2024-06-01", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrUnknownKey)

	err = a.Apply(ctx, "daypart_2024-06-01", json.RawMessage(`{"dayPart":"Dinner"}`))
	assert.Error(t, err)

	err = a.Apply(ctx, "schedule_2024-06-01", json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}
