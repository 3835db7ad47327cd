package treepics

import (
	"fmt"

	"k8s.io/klog/v2"
)

// TakenFormat is used for photo dates in the gallery and lightbox.
var TakenFormat = "January 2, 2006 at 03:04 PM"

// Options configure a Viewer.
type Options struct {
	Scale Scale
	// Zoom is the zoom level before the page reports one.
	Zoom float64
	// PhotoURL and ThumbURL return the full size and gallery thumbnail URLs for a photo.
	// Both default to its web path.
	PhotoURL func(*Photo) string
	ThumbURL func(*Photo) string
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{Scale: DefaultScale, Zoom: 10}
}

// Viewer is the state of one map page: filters, clusters, markers and gallery.
// Every UI event is a method; callers must not invoke methods concurrently.
type Viewer struct {
	opts Options

	all []*Photo
	// visible is every photo until the first filter event, undated ones included.
	visible []*Photo

	timeline Timeline
	filter   Filter
	startPct int
	endPct   int

	zoom     float64
	clusters []*Cluster
	markers  []Marker
	fitDone  bool
	// gen changes whenever marker or gallery indexes would mean something else.
	gen int

	gallery *Gallery
}

// NewViewer returns a viewer showing every photo.
func NewViewer(all []*Photo, opts Options) *Viewer {
	if opts.Scale == (Scale{}) {
		opts.Scale = DefaultScale
	}
	if opts.PhotoURL == nil {
		opts.PhotoURL = func(p *Photo) string { return p.WebPath }
	}
	if opts.ThumbURL == nil {
		opts.ThumbURL = opts.PhotoURL
	}

	v := &Viewer{
		opts:     opts,
		all:      all,
		visible:  all,
		timeline: NewTimeline(all),
		filter:   NewFilter(),
		endPct:   100,
		zoom:     opts.Zoom,
		gallery:  NewGallery(),
	}
	v.recluster()
	return v
}

// Visible returns the photos that pass the current filters.
func (v *Viewer) Visible() []*Photo {
	return v.visible
}

// Clusters returns the clusters of the last pass.
func (v *Viewer) Clusters() []*Cluster {
	return v.clusters
}

// Markers returns the markers of the last pass.
func (v *Viewer) Markers() []Marker {
	return v.markers
}

// Filter returns the current filter.
func (v *Viewer) Filter() Filter {
	return v.filter
}

// Gallery returns the gallery state machine.
func (v *Viewer) Gallery() *Gallery {
	return v.gallery
}

// Generation identifies the markers and gallery list that indexes refer to.
func (v *Viewer) Generation() int {
	return v.gen
}

// Zoom returns the current zoom level.
func (v *Viewer) Zoom() float64 {
	return v.zoom
}

// SetZoom re-clusters for a new zoom level.
func (v *Viewer) SetZoom(z float64) {
	v.zoom = z
	v.recluster()
}

// SetTimeline moves the timeline sliders. moved is "start" or "end".
func (v *Viewer) SetTimeline(startPct, endPct int, moved string) {
	v.startPct, v.endPct = ClampRange(startPct, endPct, moved)
	v.applyFilters()
}

// ToggleMonth flips month m (0 = January).
func (v *Viewer) ToggleMonth(m int) {
	v.filter.Months = v.filter.Months.Toggle(m)
	v.applyFilters()
}

// SelectAllMonths selects every month.
func (v *Viewer) SelectAllMonths() {
	v.filter.Months = AllMonths
	v.applyFilters()
}

// ClearMonths deselects every month.
func (v *Viewer) ClearMonths() {
	v.filter.Months = 0
	v.applyFilters()
}

// ClearFilters resets the timeline and month selection.
func (v *Viewer) ClearFilters() {
	v.startPct, v.endPct = 0, 100
	v.filter.Months = AllMonths
	v.applyFilters()
}

// ClickMarker opens the gallery for cluster i.
func (v *Viewer) ClickMarker(i int) error {
	if i < 0 || i >= len(v.clusters) {
		return fmt.Errorf("marker %d of %d: %w", i, len(v.clusters), ErrIndexRange)
	}
	klog.V(1).Infof("showing cluster %d with %d photos", i, v.clusters[i].Count)
	v.gallery.Show(v.clusters[i].Photos)
	v.gen++
	return nil
}

// OpenPhoto opens photo i of the selected cluster in the lightbox.
func (v *Viewer) OpenPhoto(i int) error {
	return v.gallery.Open(i)
}

func (v *Viewer) applyFilters() {
	v.filter.From, v.filter.Through = v.timeline.Range(v.startPct, v.endPct)
	v.visible = Apply(v.all, v.filter)
	klog.V(1).Infof("filter %+v: %d of %d photos visible", v.filter, len(v.visible), len(v.all))

	v.recluster()

	sel := v.gallery.Photos()
	if len(sel) == 0 {
		return
	}
	seen := make(map[*Photo]bool, len(v.visible))
	for _, p := range v.visible {
		seen[p] = true
	}
	for _, p := range sel {
		if seen[p] {
			return
		}
	}
	klog.V(1).Infof("selected cluster is no longer visible, resetting gallery")
	v.gallery.Reset()
}

func (v *Viewer) recluster() {
	v.clusters = Group(v.visible, v.opts.Scale.Threshold(v.zoom))
	v.markers = Markers(v.clusters)
	v.gen++
}

// filtersActive returns true if the clear-filters control should be enabled.
func (v *Viewer) filtersActive() bool {
	return v.startPct > 0 || v.endPct < 100 || v.filter.Months.Len() < 12
}

// View is everything the page needs to draw the current state.
type View struct {
	Gen       int         `json:"gen"`
	Zoom      float64     `json:"zoom"`
	Threshold float64     `json:"threshold"`
	Markers   []Marker    `json:"markers"`
	Fit       *Bounds     `json:"fit,omitempty"`
	Filters   FilterView  `json:"filters"`
	Gallery   GalleryView `json:"gallery"`
}

// FilterView is the state of the filter controls.
type FilterView struct {
	StartLabel   string   `json:"start_label"`
	EndLabel     string   `json:"end_label"`
	StartPct     int      `json:"start_pct"`
	EndPct       int      `json:"end_pct"`
	Current      string   `json:"current"`
	Months       [12]bool `json:"months"`
	Results      string   `json:"results"`
	Shown        int      `json:"shown"`
	Total        int      `json:"total"`
	ClearEnabled bool     `json:"clear_enabled"`
}

// GalleryView is the state of the side pane and lightbox.
type GalleryView struct {
	State   string      `json:"state"`
	Photos  []PhotoView `json:"photos"`
	Index   int         `json:"index"`
	Counter string      `json:"counter"`
	HasPrev bool        `json:"has_prev"`
	HasNext bool        `json:"has_next"`
	ShowNav bool        `json:"show_nav"`
	Current *PhotoView  `json:"current,omitempty"`
	// Pane is the rendered side pane, filled in by the caller.
	Pane string `json:"pane"`
}

// PhotoView is a photo as shown in the gallery.
type PhotoView struct {
	Index    int    `json:"index"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Thumb    string `json:"thumb"`
	Taken    string `json:"taken"`
	Camera   string `json:"camera,omitempty"`
}

// View returns a snapshot of the current state. Only the first view carries fit
// bounds, so later re-clustering never moves the viewport.
func (v *Viewer) View() View {
	vw := View{
		Gen:       v.gen,
		Zoom:      v.zoom,
		Threshold: v.opts.Scale.Threshold(v.zoom),
		Markers:   v.markers,
		Filters:   v.filterView(),
		Gallery:   v.galleryView(),
	}

	if !v.fitDone {
		if b := MarkerBounds(v.markers); b != nil {
			p := b.Pad(FitPadding)
			vw.Fit = &p
		}
		v.fitDone = true
	}
	return vw
}

func (v *Viewer) filterView() FilterView {
	fv := FilterView{
		StartPct:     v.startPct,
		EndPct:       v.endPct,
		Current:      v.timeline.RangeLabel(v.startPct, v.endPct),
		Shown:        len(v.visible),
		Total:        len(v.all),
		Results:      ResultsLabel(len(v.visible), len(v.all)),
		ClearEnabled: v.filtersActive(),
	}
	if !v.timeline.Empty() {
		fv.StartLabel = v.timeline.Start.Format(LabelDateFormat)
		fv.EndLabel = v.timeline.End.Format(LabelDateFormat)
	}
	for m := 0; m < 12; m++ {
		fv.Months[m] = v.filter.Months.Has(m)
	}
	return fv
}

func (v *Viewer) galleryView() GalleryView {
	g := v.gallery
	gv := GalleryView{
		State:   g.State().String(),
		Photos:  []PhotoView{},
		Index:   g.Index(),
		Counter: g.Counter(),
		HasPrev: g.HasPrev(),
		HasNext: g.HasNext(),
		ShowNav: g.ShowNav(),
	}
	for i, p := range g.Photos() {
		gv.Photos = append(gv.Photos, v.photoView(i, p))
	}
	if c := g.Current(); c != nil {
		pv := v.photoView(g.Index(), c)
		gv.Current = &pv
	}
	return gv
}

func (v *Viewer) photoView(i int, p *Photo) PhotoView {
	return PhotoView{
		Index:    i,
		Filename: p.Filename,
		URL:      v.opts.PhotoURL(p),
		Thumb:    v.opts.ThumbURL(p),
		Taken:    FormatTaken(p),
		Camera:   p.Camera(),
	}
}

// FormatTaken formats a photo's timestamp for display.
func FormatTaken(p *Photo) string {
	if !p.Dated() {
		return "Date unknown"
	}
	return p.Taken.Format(TakenFormat)
}
