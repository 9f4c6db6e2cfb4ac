// Package window holds the date arithmetic for materialization runs:
// hour-aligned half-open UTC ranges and the calendar months they touch.
package window

import (
	"time"

	"github.com/pkg/errors"
)

var (
	ErrWindowOrder    = errors.New("window: from must be before to")
	ErrNotHourAligned = errors.New("window: bounds must be hour-aligned")
	ErrSpanTooSmall   = errors.New("window: span must be a positive number of hours")
)

// FloorHour truncates t to the start of its hour, in UTC.
func FloorHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// Window is a half-open UTC time range [From, To). Bounds are always
// hour-aligned; construct through New or Materialization.
type Window struct {
	From time.Time
	To   time.Time
}

// New validates ordering and hour alignment and normalizes both bounds to UTC.
func New(from, to time.Time) (Window, error) {
	from, to = from.UTC(), to.UTC()
	if !from.Before(to) {
		return Window{}, errors.Wrapf(ErrWindowOrder, "from=%s to=%s",
			from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	if !from.Equal(FloorHour(from)) || !to.Equal(FloorHour(to)) {
		return Window{}, errors.Wrapf(ErrNotHourAligned, "from=%s to=%s",
			from.Format(time.RFC3339Nano), to.Format(time.RFC3339Nano))
	}
	return Window{From: from, To: to}, nil
}

// Materialization returns the window ending at now floored to the hour and
// spanning span backwards: [floor(now)-span, floor(now)).
func Materialization(now time.Time, span time.Duration) (Window, error) {
	if span < time.Hour || span%time.Hour != 0 {
		return Window{}, errors.Wrapf(ErrSpanTooSmall, "span=%s", span)
	}
	to := FloorHour(now)
	return New(to.Add(-span), to)
}

// ShiftBack moves both bounds d into the past.
func (w Window) ShiftBack(d time.Duration) Window {
	return Window{From: w.From.Add(-d), To: w.To.Add(-d)}
}

// ShiftForward moves both bounds d into the future.
func (w Window) ShiftForward(d time.Duration) Window {
	return Window{From: w.From.Add(d), To: w.To.Add(d)}
}

// Hours is the number of whole hours covered by the window.
func (w Window) Hours() int {
	return int(w.To.Sub(w.From) / time.Hour)
}

// Contains reports whether t lies inside the half-open range.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// Months lists the calendar months the window touches, oldest first. The
// exclusive upper bound does not drag in a month it only abuts: a window
// ending exactly at a month start stops at the previous month.
func (w Window) Months() []Month {
	last := MonthOf(w.To.Add(-time.Nanosecond))
	var months []Month
	for m := MonthOf(w.From); !last.Before(m); m = m.Next() {
		months = append(months, m)
	}
	return months
}

// Month is a calendar month in UTC.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) Month {
	t = t.UTC()
	return Month{Year: t.Year(), Month: t.Month()}
}

// Start is the first instant of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant of the following month (exclusive upper bound).
func (m Month) End() time.Time {
	return m.Next().Start()
}

// Next returns the following calendar month.
func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

// Before orders months chronologically.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// Contains reports whether t falls inside the month.
func (m Month) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(m.Start()) && t.Before(m.End())
}

// Key formats the month as "2006-01", the form used in TLC file names.
func (m Month) Key() string {
	return m.Start().Format("2006-01")
}
