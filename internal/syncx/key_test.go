package syncx

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/erauner12/shiftsync/internal/domain"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		in     string
		want   Key
		wantOK bool
	}{
		{"schedule_2024-06-01", Key{domain.CategorySchedules, "2024-06-01"}, true},
		{"assignments_2024-06-01", Key{domain.CategoryAssignments, "2024-06-01"}, true},
		{"daypart_2024-06-01", Key{domain.CategoryDayParts, "2024-06-01"}, true},
		{"lastDayPart_2024-06-01", Key{domain.CategoryDayParts, "2024-06-01"}, true},
		{"schedules_2024-06-01", Key{}, false},
		{"schedule_2024-13-40", Key{}, false},
		{"unseen-key", Key{}, false},
		{"", Key{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseKey(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeyRoundTrip(t *testing.T) {
	for _, key := range WatchedKeys("2024-06-01") {
		k, ok := ParseKey(key)
		assert.True(t, ok, key)
		assert.Equal(t, key, k.String())
	}
	assert.Equal(t, []string{"schedule_2024-06-01", "assignments_2024-06-01", "daypart_2024-06-01"}, WatchedKeys("2024-06-01"))
}
