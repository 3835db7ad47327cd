package treepics

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
	"k8s.io/klog/v2"
)

// Find returns the slash-separated paths, relative to root, of every non-hidden file under root.
func Find(root string) (map[string]bool, error) {
	found := map[string]bool{}

	err := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(p string, de *godirwalk.Dirent) error {
			if p != root && filepath.Base(p)[0] == '.' {
				if de.IsDir() {
					return godirwalk.SkipThis
				}
				return nil
			}

			if de.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			found[filepath.ToSlash(rel)] = true
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	klog.V(1).Infof("found %d files under %s", len(found), root)
	return found, nil
}

// Prune drops photos whose web path is not in the found set.
func Prune(ps []*Photo, found map[string]bool) ([]*Photo, int) {
	kept := []*Photo{}
	dropped := 0
	for _, p := range ps {
		rel := strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(p.WebPath)), "/")
		if !found[rel] {
			klog.Warningf("%s: %s not found, skipping", p.Filename, p.WebPath)
			dropped++
			continue
		}
		kept = append(kept, p)
	}
	return kept, dropped
}
