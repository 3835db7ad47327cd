package treepics

import (
	"fmt"
	"math"
	"time"
)

// LabelDateFormat is used for timeline labels.
var LabelDateFormat = "Jan 2, 2006"

// MonthSet is a set of calendar months, bit i is month i (0 = January).
type MonthSet uint16

// AllMonths has every month selected.
const AllMonths MonthSet = 1<<12 - 1

// Has returns true if month m (0-11) is selected.
func (s MonthSet) Has(m int) bool {
	return m >= 0 && m < 12 && s&(1<<m) != 0
}

// Toggle flips month m. Out of range months are ignored.
func (s MonthSet) Toggle(m int) MonthSet {
	if m < 0 || m >= 12 {
		return s
	}
	return s ^ (1 << m)
}

// Len is the number of selected months.
func (s MonthSet) Len() int {
	n := 0
	for m := 0; m < 12; m++ {
		if s.Has(m) {
			n++
		}
	}
	return n
}

// Months returns the selected month numbers in order.
func (s MonthSet) Months() []int {
	ms := []int{}
	for m := 0; m < 12; m++ {
		if s.Has(m) {
			ms = append(ms, m)
		}
	}
	return ms
}

// NewMonthSet returns a set containing the given months.
func NewMonthSet(ms ...int) MonthSet {
	var s MonthSet
	for _, m := range ms {
		if m >= 0 && m < 12 {
			s |= 1 << m
		}
	}
	return s
}

// Filter narrows the photos shown on the map.
type Filter struct {
	// From and Through bound the timestamp, a zero value is unbounded.
	From    time.Time
	Through time.Time
	Months  MonthSet
}

// NewFilter returns a filter that passes every dated photo.
func NewFilter() Filter {
	return Filter{Months: AllMonths}
}

// Pass returns true if p is visible under f. Undated photos never pass.
func (f Filter) Pass(p *Photo) bool {
	if !p.Dated() {
		return false
	}
	if !f.From.IsZero() && p.Taken.Before(f.From) {
		return false
	}
	if !f.Through.IsZero() && p.Taken.After(f.Through) {
		return false
	}
	return f.Months.Has(int(p.Taken.Month()) - 1)
}

// Apply returns the photos in all that pass the filter, preserving order.
func Apply(all []*Photo, f Filter) []*Photo {
	ps := []*Photo{}
	for _, p := range all {
		if f.Pass(p) {
			ps = append(ps, p)
		}
	}
	return ps
}

// Timeline is the span of timestamps in a photo collection.
type Timeline struct {
	Start time.Time
	End   time.Time
}

// NewTimeline returns the span covering every dated photo.
func NewTimeline(ps []*Photo) Timeline {
	tl := Timeline{}
	for _, p := range ps {
		if !p.Dated() {
			continue
		}
		if tl.Start.IsZero() || p.Taken.Before(tl.Start) {
			tl.Start = p.Taken
		}
		if tl.End.IsZero() || p.Taken.After(tl.End) {
			tl.End = p.Taken
		}
	}
	return tl
}

// Empty returns true if no photo was dated.
func (tl Timeline) Empty() bool {
	return tl.Start.IsZero()
}

// At returns the instant pct percent of the way through the timeline.
func (tl Timeline) At(pct int) time.Time {
	total := tl.End.Sub(tl.Start)
	return tl.Start.Add(time.Duration(float64(total) * float64(pct) / 100))
}

// Range converts slider positions into filter bounds. 0% leaves the start unbounded
// and 100% leaves the end unbounded.
func (tl Timeline) Range(startPct, endPct int) (from, through time.Time) {
	if tl.Empty() {
		return time.Time{}, time.Time{}
	}
	if startPct > 0 {
		from = tl.At(startPct)
	}
	if endPct < 100 {
		through = tl.At(endPct)
	}
	return from, through
}

// ClampRange keeps slider positions within 0-100 with start <= end.
// moved names the slider that changed ("start" or "end"); the other one wins ties.
func ClampRange(startPct, endPct int, moved string) (int, int) {
	startPct = min(max(startPct, 0), 100)
	endPct = min(max(endPct, 0), 100)
	if startPct > endPct {
		if moved == "end" {
			endPct = startPct
		} else {
			startPct = endPct
		}
	}
	return startPct, endPct
}

// RangeLabel describes the selected part of the timeline.
func (tl Timeline) RangeLabel(startPct, endPct int) string {
	if tl.Empty() || (startPct <= 0 && endPct >= 100) {
		return "Showing all photos"
	}
	from := tl.At(startPct).Format(LabelDateFormat)
	through := tl.At(endPct).Format(LabelDateFormat)

	switch {
	case startPct <= 0:
		return "Photos through: " + through
	case endPct >= 100:
		return "Photos from: " + from
	default:
		return fmt.Sprintf("Photos from: %s to: %s", from, through)
	}
}

// ResultsLabel summarizes how many photos are visible.
func ResultsLabel(shown, total int) string {
	if shown == total || total == 0 {
		return "All photos shown (no filters active)"
	}
	pct := int(math.Round(float64(shown) / float64(total) * 100))
	return fmt.Sprintf("%d of %d photos shown (%d%%)", shown, total, pct)
}
