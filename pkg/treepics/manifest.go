package treepics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"k8s.io/klog/v2"
)

// takenFormats are the timestamp layouts accepted for datetime_taken.
var takenFormats = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006:01:02 15:04:05",
	"2006-01-02",
}

// Manifest is the flattened photo collection read from a manifest file.
type Manifest struct {
	Photos []*Photo
	// Skipped counts malformed records that were dropped.
	Skipped int
}

// manifestEntry is either a cluster (Photos set) or a single photo.
type manifestEntry struct {
	Photos []manifestPhoto `json:"photos"`
	manifestPhoto
}

type manifestPhoto struct {
	Filename string   `json:"filename"`
	WebPath  string   `json:"web_path"`
	Lat      *float64 `json:"latitude"`
	Lon      *float64 `json:"longitude"`
	Taken    *string  `json:"datetime_taken"`
	Make     *string  `json:"camera_make"`
	Model    *string  `json:"camera_model"`
	Width    *float64 `json:"image_width"`
	Height   *float64 `json:"image_height"`
}

// LoadManifest reads and flattens a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	m, err := ParseManifest(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	klog.Infof("loaded %d photos from %s (%d skipped)", len(m.Photos), path, m.Skipped)
	return m, nil
}

// ParseManifest decodes a manifest: a JSON array of clusters and/or photos.
// Photos are returned in chronological order, undated photos first.
func ParseManifest(r io.Reader) (*Manifest, error) {
	bs, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	var es []manifestEntry
	if err := json.Unmarshal(nullNaN(bs), &es); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	m := &Manifest{}
	add := func(mp manifestPhoto) {
		p, err := mp.photo()
		if err != nil {
			klog.Warningf("skipping manifest record %q: %v", mp.Filename, err)
			m.Skipped++
			return
		}
		m.Photos = append(m.Photos, p)
	}

	for _, e := range es {
		if e.Photos != nil {
			for _, mp := range e.Photos {
				add(mp)
			}
			continue
		}
		add(e.manifestPhoto)
	}

	sort.SliceStable(m.Photos, func(i, j int) bool {
		return m.Photos[i].sortTime().Before(m.Photos[j].sortTime())
	})

	return m, nil
}

func (mp manifestPhoto) photo() (*Photo, error) {
	if mp.Filename == "" {
		return nil, fmt.Errorf("missing filename")
	}
	if mp.WebPath == "" {
		return nil, fmt.Errorf("missing web_path")
	}
	if mp.Lat == nil || mp.Lon == nil {
		return nil, fmt.Errorf("missing coordinates")
	}
	if *mp.Lat < -90 || *mp.Lat > 90 || *mp.Lon < -180 || *mp.Lon > 180 {
		return nil, fmt.Errorf("coordinates out of range: %f,%f", *mp.Lat, *mp.Lon)
	}

	p := &Photo{
		Filename: mp.Filename,
		WebPath:  mp.WebPath,
		Lat:      *mp.Lat,
		Lon:      *mp.Lon,
		Make:     deref(mp.Make),
		Model:    deref(mp.Model),
	}

	if mp.Width != nil {
		p.Width = int64(*mp.Width)
	}
	if mp.Height != nil {
		p.Height = int64(*mp.Height)
	}

	if mp.Taken != nil {
		t, err := ParseTaken(*mp.Taken)
		if err != nil {
			klog.Warningf("%s: %v, treating as undated", mp.Filename, err)
		}
		p.Taken = t
	}

	return p, nil
}

// ParseTaken parses a manifest timestamp. Empty and placeholder values return the zero time.
func ParseTaken(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "NaT", "None", "null", "nan":
		return time.Time{}, nil
	}

	for _, f := range takenFormats {
		t, err := time.Parse(f, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// nonFinite are the bare number tokens Python's json module emits for non-finite floats.
var nonFinite = [][]byte{[]byte("-Infinity"), []byte("Infinity"), []byte("NaN")}

// nullNaN rewrites bare NaN and Infinity tokens into null.
func nullNaN(bs []byte) []byte {
	if !bytes.Contains(bs, []byte("NaN")) && !bytes.Contains(bs, []byte("Infinity")) {
		return bs
	}

	out := make([]byte, 0, len(bs))
	inString := false
	escaped := false
next:
	for i := 0; i < len(bs); i++ {
		c := bs[i]
		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		if c == '"' {
			inString = true
		}
		for _, tok := range nonFinite {
			if bytes.HasPrefix(bs[i:], tok) {
				out = append(out, "null"...)
				i += len(tok) - 1
				continue next
			}
		}
		out = append(out, c)
	}
	return out
}
