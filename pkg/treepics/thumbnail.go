package treepics

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "image/jpeg"
	_ "image/png"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"github.com/otiai10/copy"
	"k8s.io/klog/v2"
)

// ErrOutsideRoot is returned for thumbnail requests that escape the photo directory.
var ErrOutsideRoot = errors.New("path outside photo directory")

// ThumbOpts are thumbnail options. A zero X or Y keeps the aspect ratio.
type ThumbOpts struct {
	X       int `yaml:"x"`
	Y       int `yaml:"y"`
	Quality int `yaml:"quality"`
}

// defaultThumbOpts matches the 200px tall gallery list images.
var defaultThumbOpts = ThumbOpts{Y: 200, Quality: 80}

// Thumbnailer creates and caches gallery thumbnails.
type Thumbnailer struct {
	root  string
	cache string
	opts  ThumbOpts

	mu sync.Mutex
}

// NewThumbnailer returns a thumbnailer for photos under root, caching into cache.
func NewThumbnailer(root string, cache string, opts ThumbOpts) *Thumbnailer {
	if opts.X == 0 && opts.Y == 0 {
		opts = defaultThumbOpts
	}
	if opts.Quality == 0 {
		opts.Quality = defaultThumbOpts.Quality
	}
	return &Thumbnailer{root: root, cache: cache, opts: opts}
}

// Path returns the path of an up-to-date thumbnail for a photo relative to root,
// creating it if needed.
func (t *Thumbnailer) Path(rel string) (string, error) {
	src, rel, err := t.source(rel)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	sst, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("stat: %w", err)
	}

	dest := filepath.Join(t.cache, thumbRelPath(rel, t.opts))
	dst, err := os.Stat(dest)
	if err == nil && dst.Size() > int64(128) && !sst.ModTime().After(dst.ModTime()) {
		klog.V(1).Infof("%s exists (%d bytes)", dest, dst.Size())
		return dest, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}

	small, err := fits(src, t.opts)
	if err != nil {
		return "", err
	}
	if small && isJPEG(src) {
		klog.V(1).Infof("%s already fits %+v, copying", src, t.opts)
		if err := copy.Copy(src, dest); err != nil {
			return "", fmt.Errorf("copy: %w", err)
		}
		return dest, nil
	}

	img, err := imgio.Open(src)
	if err != nil {
		return "", fmt.Errorf("imgio.Open: %w", err)
	}
	tm, err := createThumb(img, dest, t.opts)
	if err != nil {
		return "", fmt.Errorf("create thumb: %w", err)
	}
	klog.V(1).Infof("created thumb: %+v", tm)
	return dest, nil
}

// source resolves rel under the photo root, returning the full and cleaned relative paths.
func (t *Thumbnailer) source(rel string) (string, string, error) {
	src := filepath.Join(t.root, filepath.Clean("/"+filepath.FromSlash(rel)))
	r, err := filepath.Rel(t.root, src)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%q: %w", rel, ErrOutsideRoot)
	}
	return src, r, nil
}

// ThumbMeta describes a thumbnail.
type ThumbMeta struct {
	X    int
	Y    int
	Path string
}

func createThumb(i image.Image, path string, t ThumbOpts) (*ThumbMeta, error) {
	klog.Infof("creating %dx%d thumb: %s - %+v", t.X, t.Y, path, i.Bounds())
	x := t.X
	y := t.Y

	if i.Bounds().Dy() == 0 {
		return nil, fmt.Errorf("no Y for %+v", i.Bounds())
	}

	if i.Bounds().Dx() == 0 {
		return nil, fmt.Errorf("no X for %+v", i.Bounds())
	}

	if t.X == 0 {
		scale := float64(i.Bounds().Dy()) / float64(t.Y)
		x = int(float64(i.Bounds().Dx()) / scale)
	}

	if t.Y == 0 {
		scale := float64(i.Bounds().Dx()) / float64(t.X)
		y = int(float64(i.Bounds().Dy()) / scale)
	}

	rimg := transform.Resize(i, x, y, transform.Lanczos)
	if err := imgio.Save(path, rimg, imgio.JPEGEncoder(t.Quality)); err != nil {
		klog.Errorf("save failed: %s", err)
		return nil, fmt.Errorf("save: %w", err)
	}

	return &ThumbMeta{X: rimg.Bounds().Dx(), Y: rimg.Bounds().Dy(), Path: path}, nil
}

// fits returns true if the image at path is no larger than the thumbnail size.
func fits(path string, t ThumbOpts) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	ic, _, err := image.DecodeConfig(f)
	if err != nil {
		return false, fmt.Errorf("unable to decode: %w", err)
	}

	if t.X != 0 && ic.Width > t.X {
		return false, nil
	}
	if t.Y != 0 && ic.Height > t.Y {
		return false, nil
	}
	return true, nil
}

func isJPEG(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return true
	}
	return false
}

// thumbRelPath returns the cache path of a thumbnail, keyed by its dimensions.
func thumbRelPath(rel string, t ThumbOpts) string {
	rel = filepath.FromSlash(rel)
	base := filepath.Base(rel)
	noExt := strings.TrimSuffix(base, filepath.Ext(base))

	dimensions := ""
	if t.X != 0 {
		dimensions = fmt.Sprintf("x%d", t.X)
	}
	if t.Y != 0 {
		dimensions += fmt.Sprintf("y%d", t.Y)
	}

	newBase := fmt.Sprintf("%s@%s.jpg", noExt, dimensions)
	return urlSafePath(filepath.Join(filepath.Dir(rel), "_", newBase))
}

// urlSafePath replaces characters that need escaping in URLs.
func urlSafePath(p string) string {
	return strings.NewReplacer(" ", "_", "#", "_", "?", "_", "%", "_").Replace(p)
}
