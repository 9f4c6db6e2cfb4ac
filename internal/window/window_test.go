package window

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloorHour(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	tcs := map[string]struct {
		in   time.Time
		want time.Time
	}{
		"mid hour": {
			in:   time.Date(2024, 3, 7, 14, 35, 12, 900, time.UTC),
			want: time.Date(2024, 3, 7, 14, 0, 0, 0, time.UTC),
		},
		"already aligned": {
			in:   time.Date(2024, 3, 7, 14, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 7, 14, 0, 0, 0, time.UTC),
		},
		"non-utc input": {
			in:   time.Date(2024, 3, 7, 9, 59, 59, 0, est),
			want: time.Date(2024, 3, 7, 14, 0, 0, 0, time.UTC),
		},
	}
	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			assert.True(t, tc.want.Equal(FloorHour(tc.in)))
		})
	}
}

func TestNew(t *testing.T) {
	aligned := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("valid", func(t *testing.T) {
		w, err := New(aligned, aligned.Add(24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 24, w.Hours())
	})

	t.Run("from equals to", func(t *testing.T) {
		_, err := New(aligned, aligned)
		assert.True(t, errors.Is(err, ErrWindowOrder))
	})

	t.Run("from after to", func(t *testing.T) {
		_, err := New(aligned.Add(time.Hour), aligned)
		assert.True(t, errors.Is(err, ErrWindowOrder))
	})

	t.Run("unaligned bound", func(t *testing.T) {
		_, err := New(aligned.Add(30*time.Minute), aligned.Add(2*time.Hour))
		assert.True(t, errors.Is(err, ErrNotHourAligned))
	})
}

func TestMaterialization(t *testing.T) {
	now := time.Date(2024, 3, 7, 14, 35, 12, 0, time.UTC)

	w, err := Materialization(now, 28*24*time.Hour)
	require.NoError(t, err)
	assert.True(t, w.To.Equal(time.Date(2024, 3, 7, 14, 0, 0, 0, time.UTC)))
	assert.True(t, w.From.Equal(time.Date(2024, 2, 8, 14, 0, 0, 0, time.UTC)))
	assert.Equal(t, 28*24, w.Hours())

	_, err = Materialization(now, 0)
	assert.True(t, errors.Is(err, ErrSpanTooSmall))

	_, err = Materialization(now, 90*time.Minute)
	assert.True(t, errors.Is(err, ErrSpanTooSmall))
}

func TestShiftRoundTrip(t *testing.T) {
	w, err := Materialization(time.Date(2024, 3, 7, 14, 12, 0, 0, time.UTC), 28*24*time.Hour)
	require.NoError(t, err)

	const shift = 52 * 7 * 24 * time.Hour
	back := w.ShiftBack(shift)
	assert.True(t, back.From.Equal(time.Date(2023, 3, 9, 14, 0, 0, 0, time.UTC)))
	assert.Equal(t, w.Hours(), back.Hours())

	forward := back.ShiftForward(shift)
	assert.True(t, forward.From.Equal(w.From))
	assert.True(t, forward.To.Equal(w.To))
}

func TestContains(t *testing.T) {
	w, err := New(
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	assert.True(t, w.Contains(w.From))
	assert.True(t, w.Contains(w.To.Add(-time.Nanosecond)))
	assert.False(t, w.Contains(w.To))
	assert.False(t, w.Contains(w.From.Add(-time.Nanosecond)))
}

func TestMonths(t *testing.T) {
	tcs := map[string]struct {
		from, to time.Time
		want     []string
	}{
		"single month": {
			from: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
			to:   time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
			want: []string{"2024-01"},
		},
		"two months": {
			from: time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
			to:   time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC),
			want: []string{"2024-01", "2024-02"},
		},
		"year boundary": {
			from: time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC),
			to:   time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC),
			want: []string{"2023-12", "2024-01"},
		},
		"to at month start excludes that month": {
			from: time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
			to:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			want: []string{"2024-01"},
		},
		"spanning three": {
			from: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			to:   time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC),
			want: []string{"2024-01", "2024-02", "2024-03"},
		},
	}
	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			w, err := New(tc.from, tc.to)
			require.NoError(t, err)
			var got []string
			for _, m := range w.Months() {
				got = append(got, m.Key())
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMonth(t *testing.T) {
	dec := Month{Year: 2023, Month: time.December}
	jan := dec.Next()
	assert.Equal(t, Month{Year: 2024, Month: time.January}, jan)
	assert.True(t, dec.Before(jan))
	assert.False(t, jan.Before(dec))
	assert.Equal(t, "2023-12", dec.Key())

	feb := Month{Year: 2024, Month: time.February} // leap year
	assert.True(t, feb.Contains(time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)))
	assert.False(t, feb.Contains(feb.End()))
	assert.True(t, feb.End().Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
}
