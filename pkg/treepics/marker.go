package treepics

import (
	"math"
	"strconv"
)

// FitPadding is the fraction added around the marker bounds when fitting the viewport.
var FitPadding = 0.1

// Marker is a map pin for one cluster.
type Marker struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Count    int     `json:"count"`
	Size     int     `json:"size"`
	FontSize int     `json:"font_size"`
	// Cluster is the index of the cluster this marker opens.
	Cluster int `json:"cluster"`
}

// MarkerSize returns the marker diameter in pixels for a photo count.
func MarkerSize(count int) int {
	switch {
	case count <= 1:
		return 20
	case count <= 5:
		return 25
	case count <= 10:
		return 30
	case count <= 20:
		return 35
	default:
		return 40
	}
}

// MarkerFontSize returns the label font size for a marker, shrinking for 3+ digit counts.
func MarkerFontSize(count int, size int) int {
	fs := math.Max(10, float64(size)*0.4)
	if len(strconv.Itoa(count)) > 2 {
		fs *= 0.8
	}
	return int(math.Max(8, math.Floor(fs)))
}

// Markers lays out one marker per cluster.
func Markers(cs []*Cluster) []Marker {
	ms := make([]Marker, 0, len(cs))
	for i, c := range cs {
		size := MarkerSize(c.Count)
		ms = append(ms, Marker{
			Lat:      c.CenterLat,
			Lon:      c.CenterLon,
			Count:    c.Count,
			Size:     size,
			FontSize: MarkerFontSize(c.Count, size),
			Cluster:  i,
		})
	}
	return ms
}

// Bounds is a latitude/longitude box.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// MarkerBounds returns the box around all markers, or nil if there are none.
func MarkerBounds(ms []Marker) *Bounds {
	if len(ms) == 0 {
		return nil
	}
	b := &Bounds{South: ms[0].Lat, North: ms[0].Lat, West: ms[0].Lon, East: ms[0].Lon}
	for _, m := range ms[1:] {
		b.South = math.Min(b.South, m.Lat)
		b.North = math.Max(b.North, m.Lat)
		b.West = math.Min(b.West, m.Lon)
		b.East = math.Max(b.East, m.Lon)
	}
	return b
}

// Pad grows the box on every side by ratio of its height and width.
func (b Bounds) Pad(ratio float64) Bounds {
	dLat := (b.North - b.South) * ratio
	dLon := (b.East - b.West) * ratio
	return Bounds{
		South: b.South - dLat,
		West:  b.West - dLon,
		North: b.North + dLat,
		East:  b.East + dLon,
	}
}
