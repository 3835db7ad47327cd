package treepics

import (
	"math"
	"sort"
)

// Scale maps a map zoom level to a clustering threshold in degrees.
type Scale struct {
	// Base is the threshold at zoom 11, where the exponent is zero.
	Base float64 `yaml:"base"`
	// Floor is the smallest threshold returned, roughly 2-3 city blocks.
	Floor float64 `yaml:"floor"`
}

// DefaultScale merges markers well before they visually overlap.
var DefaultScale = Scale{Base: 0.03, Floor: 0.002}

// Threshold returns the clustering distance for a zoom level.
// Zooming out grows the threshold by a factor of 3 per level.
func (s Scale) Threshold(zoom float64) float64 {
	factor := math.Max(1, 18-zoom)
	t := s.Base * math.Pow(3, factor-7)
	return math.Max(t, s.Floor)
}

// Threshold returns the clustering distance for a zoom level using DefaultScale.
func Threshold(zoom float64) float64 {
	return DefaultScale.Threshold(zoom)
}

// Distance is the planar distance between two coordinates, in degrees.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	return math.Hypot(lat2-lat1, lon2-lon1)
}

// Group partitions photos into clusters. Each unassigned photo, in input order, seeds a
// cluster that absorbs every unassigned photo within threshold of the seed.
func Group(ps []*Photo, threshold float64) []*Cluster {
	cs := []*Cluster{}
	taken := make([]bool, len(ps))

	for i, seed := range ps {
		if taken[i] {
			continue
		}
		taken[i] = true

		c := &Cluster{
			CenterLat: seed.Lat,
			CenterLon: seed.Lon,
			Photos:    []*Photo{seed},
		}

		for j := i + 1; j < len(ps); j++ {
			if taken[j] {
				continue
			}
			if Distance(seed.Lat, seed.Lon, ps[j].Lat, ps[j].Lon) <= threshold {
				c.Photos = append(c.Photos, ps[j])
				taken[j] = true
			}
		}

		if len(c.Photos) > 1 {
			var lat, lon float64
			for _, p := range c.Photos {
				lat += p.Lat
				lon += p.Lon
			}
			c.CenterLat = lat / float64(len(c.Photos))
			c.CenterLon = lon / float64(len(c.Photos))
		}

		sort.SliceStable(c.Photos, func(a, b int) bool {
			return c.Photos[a].sortTime().Before(c.Photos[b].sortTime())
		})
		c.Count = len(c.Photos)
		cs = append(cs, c)
	}

	return cs
}
