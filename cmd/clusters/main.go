// clusters prints how a manifest groups into map markers at a zoom level
package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"k8s.io/klog/v2"

	"github.com/tstromberg/treepics/pkg/treepics"
)

var (
	zoom    = flag.Float64("zoom", 10, "map zoom level")
	months  = flag.String("months", "", "comma-separated months to keep (0 = January), default all")
	base    = flag.Float64("base", treepics.DefaultScale.Base, "base clustering threshold in degrees")
	floor   = flag.Float64("floor", treepics.DefaultScale.Floor, "minimum clustering threshold in degrees")
	verbose = flag.Bool("v-photos", false, "list the photos in each cluster")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if flag.NArg() != 1 {
		klog.Exitf("usage: clusters [flags] <manifest.json>")
	}

	m, err := treepics.LoadManifest(flag.Arg(0))
	if err != nil {
		klog.Exitf("unable to load: %v", err)
	}

	ps := m.Photos
	if *months != "" {
		ms, err := parseMonths(*months)
		if err != nil {
			klog.Exitf("--months: %v", err)
		}
		f := treepics.NewFilter()
		f.Months = ms
		ps = treepics.Apply(ps, f)
	}

	s := treepics.Scale{Base: *base, Floor: *floor}
	t := s.Threshold(*zoom)
	cs := treepics.Group(ps, t)

	fmt.Printf("zoom %.1f: threshold %.5f degrees, %d photos in %d clusters\n", *zoom, t, len(ps), len(cs))
	for i, c := range cs {
		fmt.Printf("%3d  %10.5f %11.5f  %4d photos  (%dpx marker)\n", i, c.CenterLat, c.CenterLon, c.Count, treepics.MarkerSize(c.Count))
		if !*verbose {
			continue
		}
		for _, p := range c.Photos {
			fmt.Printf("       %s  %s\n", treepics.FormatTaken(p), p.Filename)
		}
	}
}

func parseMonths(s string) (treepics.MonthSet, error) {
	var ms []int
	for _, f := range strings.Split(s, ",") {
		m, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return 0, err
		}
		if m < 0 || m > 11 {
			return 0, fmt.Errorf("month %d out of range", m)
		}
		ms = append(ms, m)
	}
	return treepics.NewMonthSet(ms...), nil
}
