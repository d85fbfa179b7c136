package syncx

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erauner12/shiftsync/internal/kvstore"
)

func recordStores() map[string]func() RecordStore {
	return map[string]func() RecordStore{
		"memory": func() RecordStore { return NewMemoryRecords() },
		"kv":     func() RecordStore { return NewKVRecords(kvstore.NewMemory()) },
	}
}

func rec(data string, ts int64, device string) Record {
	return Record{Data: json.RawMessage(data), Timestamp: ts, DeviceID: device, Version: ts}
}

func TestAccepts(t *testing.T) {
	stored := rec(`{}`, 1000, "A")
	tests := []struct {
		name    string
		stored  *Record
		offered Record
		want    bool
	}{
		{"nothing stored", nil, rec(`{}`, 1, "B"), true},
		{"newer", &stored, rec(`{}`, 1001, "B"), true},
		{"equal", &stored, rec(`{}`, 1000, "B"), false},
		{"older", &stored, rec(`{}`, 999, "B"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Accepts(tt.stored, tt.offered))
		})
	}
}

func TestRegistry_LastWriteWins(t *testing.T) {
	orders := map[string][]Record{
		"ascending":  {rec(`{"v":1}`, 100, "A"), rec(`{"v":2}`, 200, "B")},
		"descending": {rec(`{"v":2}`, 200, "B"), rec(`{"v":1}`, 100, "A")},
	}
	for storeName, newStore := range recordStores() {
		for orderName, records := range orders {
			t.Run(storeName+"/"+orderName, func(t *testing.T) {
				ctx := context.Background()
				r := NewRegistry(newStore())
				for _, rc := range records {
					_, err := r.Offer(ctx, "schedule_2024-06-01", rc)
					require.NoError(t, err)
				}
				got, err := r.Get(ctx, "schedule_2024-06-01")
				require.NoError(t, err)
				require.NotNil(t, got)
				assert.Equal(t, int64(200), got.Timestamp)
				assert.JSONEq(t, `{"v":2}`, string(got.Data))
				assert.Equal(t, "B", got.DeviceID)
			})
		}
	}
}

func TestRegistry_EqualTimestampKeepsFirst(t *testing.T) {
	for name, newStore := range recordStores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := NewRegistry(newStore())

			res, err := r.Offer(ctx, "daypart_2024-06-01", rec(`{"dayPart":"Lunch"}`, 500, "A"))
			require.NoError(t, err)
			assert.True(t, res.Updated)

			res, err = r.Offer(ctx, "daypart_2024-06-01", rec(`{"dayPart":"Breakfast"}`, 500, "B"))
			require.NoError(t, err)
			assert.False(t, res.Updated)
			assert.Equal(t, int64(500), res.Timestamp)

			got, err := r.Get(ctx, "daypart_2024-06-01")
			require.NoError(t, err)
			assert.Equal(t, "A", got.DeviceID)
		})
	}
}

func TestRegistry_LowerTimestampRejected(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemoryRecords())
	r.now = func() int64 { return 42 }

	res, err := r.Offer(ctx, "daypart_2024-06-01", rec(`{"dayPart":"Lunch"}`, 1000, "A"))
	require.NoError(t, err)
	assert.Equal(t, OfferResult{Updated: true, Timestamp: 1000, ServerTimestamp: 42}, res)

	res, err = r.Offer(ctx, "daypart_2024-06-01", rec(`{"dayPart":"Breakfast"}`, 900, "B"))
	require.NoError(t, err)
	assert.Equal(t, OfferResult{Updated: false, Timestamp: 1000, ServerTimestamp: 42}, res)

	got, err := r.Get(ctx, "daypart_2024-06-01")
	require.NoError(t, err)
	assert.JSONEq(t, `{"dayPart":"Lunch"}`, string(got.Data))
}

func TestRegistry_ConcurrentOffers(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewMemoryRecords())

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(ts int64) {
			defer wg.Done()
			res, err := r.Offer(ctx, "k", rec(fmt.Sprintf(`{"n":%d}`, ts), 7, "dev"))
			assert.NoError(t, err)
			if res.Updated {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(int64(i))
	}
	wg.Wait()
	assert.Equal(t, 1, winners, "exactly one offer wins a shared timestamp")
}

func TestRegistry_Keys(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range recordStores() {
		t.Run(name, func(t *testing.T) {
			r := NewRegistry(newStore())
			_, err := r.Offer(ctx, "schedule_2024-06-02", rec(`{}`, 1, "A"))
			require.NoError(t, err)
			_, err = r.Offer(ctx, "assignments_2024-06-01", rec(`{}`, 1, "A"))
			require.NoError(t, err)

			keys, err := r.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"assignments_2024-06-01", "schedule_2024-06-02"}, keys)

			miss, err := r.Get(ctx, "unseen-key")
			require.NoError(t, err)
			assert.Nil(t, miss)
		})
	}
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rec     Record
		wantErr bool
	}{
		{"ok", rec(`{"a":1}`, 1, "A"), false},
		{"string data", rec(`"x"`, 1, "A"), false},
		{"missing data", Record{Timestamp: 1}, true},
		{"null data", rec(`null`, 1, "A"), true},
		{"zero timestamp", rec(`{}`, 0, "A"), true},
		{"negative timestamp", rec(`{}`, -5, "A"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRecord)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
