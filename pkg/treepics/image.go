package treepics

import (
	"strings"
	"time"
)

// Photo is a single geotagged photo from the manifest.
type Photo struct {
	Filename string  `json:"filename"`
	WebPath  string  `json:"web_path"`
	Lat      float64 `json:"latitude"`
	Lon      float64 `json:"longitude"`

	// Taken is zero when the manifest has no usable timestamp.
	Taken time.Time `json:"datetime_taken"`

	Make  string `json:"camera_make,omitempty"`
	Model string `json:"camera_model,omitempty"`

	Width  int64 `json:"image_width,omitempty"`
	Height int64 `json:"image_height,omitempty"`
}

// Dated returns true if the photo has a timestamp.
func (p *Photo) Dated() bool {
	return !p.Taken.IsZero()
}

// sortTime is the instant used for chronological ordering, undated photos sort as the epoch.
func (p *Photo) sortTime() time.Time {
	if p.Taken.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return p.Taken
}

// Camera returns "make model", or "" unless both are known.
func (p *Photo) Camera() string {
	mk := strings.TrimSpace(p.Make)
	model := strings.TrimSpace(p.Model)
	if mk == "" || model == "" {
		return ""
	}
	return mk + " " + model
}

// Cluster is a group of photos shown under one map marker.
type Cluster struct {
	CenterLat float64  `json:"center_lat"`
	CenterLon float64  `json:"center_lon"`
	Photos    []*Photo `json:"photos"`
	Count     int      `json:"photo_count"`
}
