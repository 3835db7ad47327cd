package serve

import (
	"errors"
	"fmt"

	"github.com/tstromberg/treepics/pkg/treepics"
)

var (
	// ErrUnknownEvent is returned for event types the viewer does not handle.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrStaleView is returned for clicks on markers or photos the page no longer shows.
	ErrStaleView = errors.New("event refers to an older view")
)

// Event is one UI interaction sent by the page.
type Event struct {
	Type string `json:"type"`

	Zoom  float64 `json:"zoom,omitempty"`
	Start int     `json:"start,omitempty"`
	End   int     `json:"end,omitempty"`
	Moved string  `json:"moved,omitempty"`
	Month int     `json:"month,omitempty"`
	Index int     `json:"index,omitempty"`
	Key   string  `json:"key,omitempty"`
	// Gen is the view generation a marker or photo index was taken from.
	Gen int `json:"gen,omitempty"`
}

// Apply runs the event against a viewer.
func (e Event) Apply(v *treepics.Viewer) error {
	switch e.Type {
	case "zoom":
		v.SetZoom(e.Zoom)
	case "timeline":
		v.SetTimeline(e.Start, e.End, e.Moved)
	case "month":
		if e.Month < 0 || e.Month > 11 {
			return fmt.Errorf("month %d: %w", e.Month, treepics.ErrIndexRange)
		}
		v.ToggleMonth(e.Month)
	case "months-all":
		v.SelectAllMonths()
	case "months-none":
		v.ClearMonths()
	case "clear":
		v.ClearFilters()
	case "marker":
		if err := e.current(v); err != nil {
			return err
		}
		return v.ClickMarker(e.Index)
	case "photo":
		if err := e.current(v); err != nil {
			return err
		}
		return v.OpenPhoto(e.Index)
	case "next":
		v.Gallery().Next()
	case "prev":
		v.Gallery().Prev()
	case "key":
		v.Gallery().Key(e.Key)
	case "close":
		v.Gallery().Close()
	case "outside":
		v.Gallery().ClickOutside()
	default:
		return fmt.Errorf("%q: %w", e.Type, ErrUnknownEvent)
	}
	return nil
}

// current checks that an index-bearing event was sent from the viewer's latest view.
func (e Event) current(v *treepics.Viewer) error {
	if e.Gen != v.Generation() {
		return fmt.Errorf("%s from view %d, now %d: %w", e.Type, e.Gen, v.Generation(), ErrStaleView)
	}
	return nil
}
