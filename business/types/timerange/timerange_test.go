package timerange_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jcpaschoal/spi-agenda/business/types/timerange"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, min int) time.Time {
	return time.Date(2024, 3, 1, hour, min, 0, 0, time.UTC)
}

func TestNewRejectsEmptyAndInverted(t *testing.T) {
	_, err := timerange.New(at(10, 0), at(10, 0))
	require.True(t, errors.Is(err, timerange.ErrInvalidRange))

	_, err = timerange.New(at(11, 0), at(10, 0))
	require.True(t, errors.Is(err, timerange.ErrInvalidRange))

	r, err := timerange.New(at(10, 0), at(11, 0))
	require.NoError(t, err)
	require.Equal(t, time.Hour, r.Duration())
}

func TestOverlapsHalfOpen(t *testing.T) {
	base := timerange.MustNew(at(10, 0), at(11, 0))

	tests := []struct {
		name string
		r    timerange.Range
		want bool
	}{
		{"touching after", timerange.MustNew(at(11, 0), at(12, 0)), false},
		{"touching before", timerange.MustNew(at(9, 0), at(10, 0)), false},
		{"inside", timerange.MustNew(at(10, 15), at(10, 45)), true},
		{"straddles start", timerange.MustNew(at(9, 30), at(10, 30)), true},
		{"straddles end", timerange.MustNew(at(10, 59), at(11, 30)), true},
		{"covers", timerange.MustNew(at(9, 0), at(12, 0)), true},
		{"disjoint", timerange.MustNew(at(13, 0), at(14, 0)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Overlaps(tt.r))
			assert.Equal(t, tt.want, tt.r.Overlaps(base))
		})
	}
}

func TestNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	r := timerange.MustNew(time.Date(2024, 3, 1, 7, 0, 0, 0, loc), time.Date(2024, 3, 1, 8, 0, 0, 0, loc))

	require.Equal(t, time.UTC, r.Start().Location())
	require.True(t, r.Equal(timerange.MustNew(at(10, 0), at(11, 0))))
}

func TestJSONRoundTripValidates(t *testing.T) {
	r := timerange.MustNew(at(10, 0), at(11, 0))

	data, err := r.MarshalJSON()
	require.NoError(t, err)

	var got timerange.Range
	require.NoError(t, got.UnmarshalJSON(data))
	require.True(t, r.Equal(got))

	err = got.UnmarshalJSON([]byte(`{"start":"2024-03-01T11:00:00Z","end":"2024-03-01T10:00:00Z"}`))
	require.True(t, errors.Is(err, timerange.ErrInvalidRange))
}
