package serve

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/gorilla/websocket"

	"github.com/tstromberg/treepics/pkg/treepics"
)

func testPhotos(t *testing.T) []*treepics.Photo {
	t.Helper()
	ps := []*treepics.Photo{}
	for _, p := range []struct {
		name     string
		lat, lon float64
		taken    string
	}{
		{"jan.jpg", 40.70, -74.00, "2024-01-01"},
		{"jun.jpg", 40.70, -74.00, "2024-06-01"},
		{"far.jpg", 45.00, -70.00, "2024-03-01"},
	} {
		taken, err := treepics.ParseTaken(p.taken)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		ps = append(ps, &treepics.Photo{Filename: p.name, WebPath: "trees/" + p.name, Lat: p.lat, Lon: p.lon, Taken: taken})
	}
	return ps
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	c := treepics.DefaultConfig()
	c.Collection = "Test Trees"
	c.PhotoDir = t.TempDir()
	c.CacheDir = t.TempDir()

	s, err := New(c, testPhotos(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return s, ts
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func getView(t *testing.T, cl *http.Client, ts *httptest.Server) treepics.View {
	t.Helper()
	resp, err := cl.Get(ts.URL + "/api/view")
	if err != nil {
		t.Fatalf("get view: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get view: status %d", resp.StatusCode)
	}
	var vw treepics.View
	if err := json.NewDecoder(resp.Body).Decode(&vw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return vw
}

func postEvent(t *testing.T, cl *http.Client, ts *httptest.Server, body string) (int, treepics.View) {
	t.Helper()
	resp, err := cl.Post(ts.URL+"/api/event", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post event: %v", err)
	}
	defer resp.Body.Close()
	var vw treepics.View
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&vw); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode, vw
}

func click(t *testing.T, cl *http.Client, ts *httptest.Server, typ string, index int, gen int) (int, treepics.View) {
	t.Helper()
	return postEvent(t, cl, ts, fmt.Sprintf(`{"type": %q, "index": %d, "gen": %d}`, typ, index, gen))
}

func TestIndex(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}

	for path, want := range map[string]int{"/nope": http.StatusNotFound, "/healthz": http.StatusOK} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("GET %s = %d, want %d", path, resp.StatusCode, want)
		}
	}
}

func TestEventRoundTrip(t *testing.T) {
	_, ts := newTestServer(t)
	cl := newClient(t)

	vw := getView(t, cl, ts)
	if len(vw.Markers) != 2 || vw.Fit == nil {
		t.Fatalf("initial view: %d markers, fit %v", len(vw.Markers), vw.Fit)
	}
	if !strings.Contains(vw.Gallery.Pane, "Select a location on the map") {
		t.Errorf("initial pane = %q", vw.Gallery.Pane)
	}

	code, vw := click(t, cl, ts, "marker", 0, vw.Gen)
	if code != http.StatusOK {
		t.Fatalf("marker: status %d", code)
	}
	if vw.Fit != nil {
		t.Errorf("fit bounds sent after the first view")
	}
	if vw.Gallery.State != "list" || len(vw.Gallery.Photos) != 2 {
		t.Errorf("gallery = %+v, want a list of 2", vw.Gallery)
	}
	if !strings.Contains(vw.Gallery.Pane, "Photos from this location (2 photos)") {
		t.Errorf("pane = %q", vw.Gallery.Pane)
	}
	if got := vw.Gallery.Photos[0].URL; got != "media/trees/jan.jpg" {
		t.Errorf("photo URL = %q", got)
	}

	_, vw = click(t, cl, ts, "photo", 0, vw.Gen)
	if vw.Gallery.State != "lightbox" || vw.Gallery.Counter != "1 of 2" || !vw.Gallery.HasNext {
		t.Errorf("gallery = %+v, want lightbox at 1 of 2", vw.Gallery)
	}
	_, vw = postEvent(t, cl, ts, `{"type": "key", "key": "ArrowRight"}`)
	if vw.Gallery.Current == nil || vw.Gallery.Current.Filename != "jun.jpg" {
		t.Errorf("current = %+v, want jun.jpg", vw.Gallery.Current)
	}
	_, vw = postEvent(t, cl, ts, `{"type": "key", "key": "Escape"}`)
	if vw.Gallery.State != "closed" || vw.Gallery.Current != nil {
		t.Errorf("gallery = %+v, want closed", vw.Gallery)
	}

	_, vw = postEvent(t, cl, ts, `{"type": "month", "month": 5}`)
	if vw.Filters.Months[5] || vw.Filters.Shown != 2 || !vw.Filters.ClearEnabled {
		t.Errorf("filters = %+v, want June off", vw.Filters)
	}
	_, vw = postEvent(t, cl, ts, `{"type": "clear"}`)
	if vw.Filters.Shown != 3 || vw.Filters.ClearEnabled {
		t.Errorf("filters = %+v, want cleared", vw.Filters)
	}
}

func TestEventErrors(t *testing.T) {
	_, ts := newTestServer(t)
	cl := newClient(t)
	gen := getView(t, cl, ts).Gen

	for _, body := range []string{
		`not json`,
		`{"type": "dance"}`,
		`{"type": "month", "month": 12}`,
		fmt.Sprintf(`{"type": "marker", "index": 9, "gen": %d}`, gen),
		fmt.Sprintf(`{"type": "photo", "index": 0, "gen": %d}`, gen),
	} {
		if code, _ := postEvent(t, cl, ts, body); code != http.StatusBadRequest {
			t.Errorf("POST %s = %d, want 400", body, code)
		}
	}

	resp, err := cl.Get(ts.URL + "/api/event")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/event = %d, want 405", resp.StatusCode)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	_, ts := newTestServer(t)
	a := newClient(t)
	b := newClient(t)

	if code, _ := click(t, a, ts, "marker", 0, getView(t, a, ts).Gen); code != http.StatusOK {
		t.Fatalf("marker: status %d", code)
	}
	if vw := getView(t, b, ts); vw.Gallery.State != "closed" {
		t.Errorf("second session sees gallery state %q", vw.Gallery.State)
	}
	if vw := getView(t, a, ts); vw.Gallery.State != "list" {
		t.Errorf("first session lost its gallery: %q", vw.Gallery.State)
	}
}

func TestPageLoadStartsFresh(t *testing.T) {
	_, ts := newTestServer(t)
	cl := newClient(t)

	page := func() {
		t.Helper()
		resp, err := cl.Get(ts.URL + "/")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		resp.Body.Close()
	}

	page()
	vw := getView(t, cl, ts)
	click(t, cl, ts, "marker", 0, vw.Gen)
	if code, _ := postEvent(t, cl, ts, `{"type": "months-none"}`); code != http.StatusOK {
		t.Fatalf("months-none: status %d", code)
	}

	page()
	vw = getView(t, cl, ts)
	if vw.Fit == nil {
		t.Errorf("reloaded page has no fit bounds")
	}
	if vw.Filters.Shown != vw.Filters.Total || vw.Filters.ClearEnabled {
		t.Errorf("reloaded page kept its filters: %d of %d shown", vw.Filters.Shown, vw.Filters.Total)
	}
	if vw.Gallery.State != "closed" || len(vw.Gallery.Photos) != 0 {
		t.Errorf("reloaded page kept its gallery: %+v", vw.Gallery)
	}
}

func TestStaleClick(t *testing.T) {
	_, ts := newTestServer(t)
	cl := newClient(t)

	vw := getView(t, cl, ts)
	if len(vw.Markers) != 2 {
		t.Fatalf("%d markers, want 2", len(vw.Markers))
	}
	if code, _ := postEvent(t, cl, ts, `{"type": "zoom", "zoom": 3}`); code != http.StatusOK {
		t.Fatalf("zoom: status %d", code)
	}

	for _, i := range []int{0, 1} {
		if code, _ := click(t, cl, ts, "marker", i, vw.Gen); code != http.StatusConflict {
			t.Errorf("stale click on marker %d = %d, want 409", i, code)
		}
	}
	if vw := getView(t, cl, ts); vw.Gallery.State != "closed" {
		t.Errorf("stale click opened the gallery: %+v", vw.Gallery)
	}
}

func TestSessionExpiry(t *testing.T) {
	s, ts := newTestServer(t)
	cl := newClient(t)

	click(t, cl, ts, "marker", 0, getView(t, cl, ts).Gen)

	s.mu.Lock()
	for _, ss := range s.sessions {
		ss.seen = time.Now().Add(-s.c.SessionTTL - time.Minute)
	}
	s.mu.Unlock()

	if vw := getView(t, cl, ts); vw.Gallery.State != "closed" || vw.Fit == nil {
		t.Errorf("expired session was reused: %+v", vw.Gallery)
	}
}

func TestReload(t *testing.T) {
	s, ts := newTestServer(t)
	cl := newClient(t)
	click(t, cl, ts, "marker", 0, getView(t, cl, ts).Gen)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for s.hub.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("websocket never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.Reload(testPhotos(t)[:1])

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != string(ReloadMessage) {
		t.Errorf("message = %q, want %q", msg, ReloadMessage)
	}

	vw := getView(t, cl, ts)
	if vw.Gallery.State != "closed" || len(vw.Markers) != 1 || vw.Filters.Total != 1 {
		t.Errorf("session survived reload: %d markers, gallery %q", len(vw.Markers), vw.Gallery.State)
	}
}

func TestLiveReloadSameOrigin(t *testing.T) {
	_, ts := newTestServer(t)
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	h := http.Header{"Origin": []string{"http://elsewhere.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(u, h)
	if err == nil {
		conn.Close()
		t.Fatalf("cross-origin websocket was accepted")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("cross-origin dial = %v, want 403", err)
	}

	h = http.Header{"Origin": []string{ts.URL}}
	conn, _, err = websocket.DefaultDialer.Dial(u, h)
	if err != nil {
		t.Fatalf("same-origin dial: %v", err)
	}
	conn.Close()
}

func TestThumbs(t *testing.T) {
	s, ts := newTestServer(t)

	src := filepath.Join(s.c.PhotoDir, "trees", "oak.png")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := imgio.Save(src, image.NewRGBA(image.Rect(0, 0, 300, 400)), imgio.PNGEncoder()); err != nil {
		t.Fatalf("save: %v", err)
	}

	resp, err := http.Get(ts.URL + "/thumbs/trees/oak.png")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dy() != 200 {
		t.Errorf("thumbnail height = %d, want 200", img.Bounds().Dy())
	}

	for path, want := range map[string]int{
		"/thumbs/trees/missing.jpg": http.StatusNotFound,
		"/media/trees/oak.png":      http.StatusOK,
		"/media/trees/missing.jpg":  http.StatusNotFound,
	} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("GET %s = %d, want %d", path, resp.StatusCode, want)
		}
	}
}
