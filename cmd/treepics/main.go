package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"k8s.io/klog/v2"

	"github.com/tstromberg/treepics/pkg/serve"
	"github.com/tstromberg/treepics/pkg/treepics"
)

var (
	configPath = flag.String("config", "", "path to YAML config (default: $XDG_CONFIG_HOME/treepics/config.yaml)")
	envPath    = flag.String("env", ".env", "optional .env file with TREEPICS_* settings")
	manifest   = flag.String("manifest", "", "Location of the photo manifest (JSON)")
	photoDir   = flag.String("photos", "", "directory that manifest web_path values are relative to")
	cacheDir   = flag.String("cache", "", "thumbnail cache directory")
	title      = flag.String("title", "", "Title of photo collection")
	addr       = flag.String("addr", "", "host:port to bind to")
	watchFlag  = flag.Bool("watch", false, "watch the manifest for changes and reload")
	checkFiles = flag.Bool("check-files", true, "skip manifest records whose photo file is missing")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		klog.Exitf("load %s: %v", *envPath, err)
	}

	c, err := treepics.LoadConfig(*configPath)
	if err != nil {
		klog.Exitf("config: %v", err)
	}
	if err := c.ApplyEnv(); err != nil {
		klog.Exitf("config: %v", err)
	}
	override(&c.Manifest, *manifest)
	override(&c.PhotoDir, *photoDir)
	override(&c.CacheDir, *cacheDir)
	override(&c.Collection, *title)
	override(&c.Addr, *addr)

	if c.Manifest == "" {
		klog.Exitf("--manifest is a required flag")
	}

	ps, err := load(c)
	if err != nil {
		klog.Exitf("load failed: %v", err)
	}

	s, err := serve.New(c, ps)
	if err != nil {
		klog.Exitf("server: %v", err)
	}
	defer s.Close()

	var wg sync.WaitGroup
	if *watchFlag {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watch(c, s); err != nil {
				klog.Errorf("watch failed: %v", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		klog.Infof("Listening on %s...", c.Addr)
		if err := http.ListenAndServe(c.Addr, s.Handler()); err != nil {
			klog.Exitf("listen failed: %v", err)
		}
	}()

	wg.Wait()
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// load reads the manifest and drops records whose photo is missing.
func load(c *treepics.Config) ([]*treepics.Photo, error) {
	m, err := treepics.LoadManifest(c.Manifest)
	if err != nil {
		return nil, err
	}
	if !*checkFiles {
		return m.Photos, nil
	}

	found, err := treepics.Find(c.PhotoDir)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	ps, dropped := treepics.Prune(m.Photos, found)
	if dropped > 0 {
		klog.Warningf("%d manifest records have no photo under %s", dropped, c.PhotoDir)
	}
	return ps, nil
}

// watch reloads the server whenever the manifest changes.
func watch(c *treepics.Config, s *serve.Server) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	defer w.Close()

	target := filepath.Clean(c.Manifest)
	// Editors often replace files, so watch the directory rather than the file.
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	klog.Infof("watching %s ...", target)

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			klog.V(1).Infof("event: %v", event)
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			ps, err := load(c)
			if err != nil {
				klog.Errorf("reload failed, keeping previous photos: %v", err)
				continue
			}
			s.Reload(ps)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			klog.Errorf("watch error: %v", err)
		}
	}
}
