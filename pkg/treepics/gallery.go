package treepics

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSelection is returned when the lightbox is opened with no cluster selected.
	ErrNoSelection = errors.New("no cluster selected")
	// ErrIndexRange is returned for a photo index outside the selected cluster.
	ErrIndexRange = errors.New("photo index out of range")
)

// GalleryState is the state of the photo viewer.
type GalleryState int

const (
	// Closed shows no lightbox.
	Closed GalleryState = iota
	// ListView lists the selected cluster in the side pane.
	ListView
	// Lightbox shows one photo full size.
	Lightbox
)

func (s GalleryState) String() string {
	switch s {
	case ListView:
		return "list"
	case Lightbox:
		return "lightbox"
	default:
		return "closed"
	}
}

// Gallery is the photo list and lightbox for the selected cluster.
//
// The selection outlives the lightbox: closing the lightbox returns to Closed but the
// side pane still lists the selected photos until Reset or the next Show.
type Gallery struct {
	state  GalleryState
	photos []*Photo
	index  int
}

// NewGallery returns a closed gallery with nothing selected.
func NewGallery() *Gallery {
	return &Gallery{}
}

// State returns the current state.
func (g *Gallery) State() GalleryState {
	return g.state
}

// Photos returns the selected cluster's photos.
func (g *Gallery) Photos() []*Photo {
	return g.photos
}

// Index returns the lightbox position.
func (g *Gallery) Index() int {
	return g.index
}

// Show selects a cluster's photos and lists them.
func (g *Gallery) Show(ps []*Photo) {
	g.photos = ps
	g.index = 0
	g.state = ListView
}

// Open shows photo i of the selection in the lightbox.
func (g *Gallery) Open(i int) error {
	if len(g.photos) == 0 {
		return ErrNoSelection
	}
	if i < 0 || i >= len(g.photos) {
		return fmt.Errorf("open %d of %d: %w", i, len(g.photos), ErrIndexRange)
	}
	g.index = i
	g.state = Lightbox
	return nil
}

// Current returns the photo shown in the lightbox, or nil.
func (g *Gallery) Current() *Photo {
	if g.state != Lightbox || len(g.photos) == 0 {
		return nil
	}
	return g.photos[g.index]
}

// HasPrev returns true if Prev would move.
func (g *Gallery) HasPrev() bool {
	return g.state == Lightbox && g.index > 0
}

// HasNext returns true if Next would move.
func (g *Gallery) HasNext() bool {
	return g.state == Lightbox && g.index < len(g.photos)-1
}

// ShowNav is false when there is nothing to navigate between.
func (g *Gallery) ShowNav() bool {
	return len(g.photos) > 1
}

// Next moves forward one photo, stopping at the last.
func (g *Gallery) Next() bool {
	if !g.HasNext() {
		return false
	}
	g.index++
	return true
}

// Prev moves back one photo, stopping at the first.
func (g *Gallery) Prev() bool {
	if !g.HasPrev() {
		return false
	}
	g.index--
	return true
}

// Counter returns "i of n" for the lightbox.
func (g *Gallery) Counter() string {
	if g.state != Lightbox {
		return ""
	}
	return fmt.Sprintf("%d of %d", g.index+1, len(g.photos))
}

// Key handles a keyboard key while the lightbox is open.
// It returns true if the key was consumed.
func (g *Gallery) Key(key string) bool {
	if g.state != Lightbox {
		return false
	}
	switch key {
	case "Escape":
		g.Close()
	case "ArrowLeft":
		g.Prev()
	case "ArrowRight":
		g.Next()
	default:
		return false
	}
	return true
}

// Close hides the lightbox.
func (g *Gallery) Close() {
	g.state = Closed
}

// ClickOutside handles a click on the backdrop around the image.
func (g *Gallery) ClickOutside() {
	if g.state == Lightbox {
		g.Close()
	}
}

// Reset drops the selection, returning the pane to its prompt.
func (g *Gallery) Reset() {
	g.state = Closed
	g.photos = nil
	g.index = 0
}
