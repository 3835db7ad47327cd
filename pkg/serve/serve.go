// Package serve provides the HTTP handlers for browsing a photo map.
package serve

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/tstromberg/treepics/pkg/treepics"
)

// SessionCookie holds the browser's session id.
var SessionCookie = "treepics_session"

// Server serves the map page and keeps one Viewer per browser session.
type Server struct {
	c      *treepics.Config
	index  []byte
	thumbs *treepics.Thumbnailer
	hub    *Hub

	mu       sync.Mutex
	photos   []*treepics.Photo
	sessions map[string]*session

	now func() time.Time
}

// session serializes the events of one page, like a browser event loop.
type session struct {
	mu   sync.Mutex
	v    *treepics.Viewer
	seen time.Time
}

// New creates a new server.
func New(c *treepics.Config, photos []*treepics.Photo) (*Server, error) {
	idx, err := treepics.RenderIndex(c)
	if err != nil {
		return nil, err
	}

	cache := c.CacheDir
	if cache == "" {
		cache = filepath.Join(os.TempDir(), "treepics-thumbs")
	}

	s := &Server{
		c:        c,
		index:    idx,
		thumbs:   treepics.NewThumbnailer(c.PhotoDir, cache, c.Thumb),
		hub:      NewHub(),
		photos:   photos,
		sessions: map[string]*session{},
		now:      time.Now,
	}
	go s.hub.Run()
	return s, nil
}

// Close disconnects live-reload clients.
func (s *Server) Close() {
	s.hub.Stop()
}

// Reload replaces the photo collection. Existing sessions are dropped and
// connected pages are told to reload.
func (s *Server) Reload(photos []*treepics.Photo) {
	s.mu.Lock()
	s.photos = photos
	n := len(s.sessions)
	s.sessions = map[string]*session{}
	s.mu.Unlock()

	klog.Infof("reloaded %d photos, dropped %d sessions", len(photos), n)
	s.hub.Broadcast(ReloadMessage)
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.IndexHandler())
	mux.HandleFunc("/api/view", s.ViewHandler())
	mux.HandleFunc("/api/event", s.EventHandler())
	mux.Handle("/media/", http.StripPrefix("/media/", http.FileServer(http.Dir(s.c.PhotoDir))))
	mux.Handle("/thumbs/", http.StripPrefix("/thumbs/", s.ThumbHandler()))
	mux.Handle("/ws", s.hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	return mux
}

// IndexHandler serves the map page. Every page load starts a fresh session, so a
// refresh begins from the initial filters and viewport.
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		now := s.now()
		s.mu.Lock()
		s.expire(now)
		if ck, err := r.Cookie(SessionCookie); err == nil {
			delete(s.sessions, ck.Value)
		}
		s.newSession(w, now)
		s.mu.Unlock()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(s.index)
	}
}

// ViewHandler returns the session's current view.
func (s *Server) ViewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ss := s.session(w, r)
		ss.mu.Lock()
		defer ss.mu.Unlock()
		s.writeView(w, ss.v)
	}
}

// EventHandler applies one UI event and returns the resulting view.
func (s *Server) EventHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var e Event
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&e); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		ss := s.session(w, r)
		ss.mu.Lock()
		defer ss.mu.Unlock()

		klog.V(1).Infof("event: %+v", e)
		if err := e.Apply(ss.v); err != nil {
			klog.V(1).Infof("rejected event %+v: %v", e, err)
			code := http.StatusBadRequest
			if errors.Is(err, ErrStaleView) {
				code = http.StatusConflict
			}
			http.Error(w, err.Error(), code)
			return
		}
		s.writeView(w, ss.v)
	}
}

// ThumbHandler serves gallery thumbnails for paths relative to the photo directory.
func (s *Server) ThumbHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.thumbs.Path(r.URL.Path)
		switch {
		case err == nil:
			w.Header().Set("Cache-Control", "max-age=86400")
			http.ServeFile(w, r, p)
		case errors.Is(err, treepics.ErrOutsideRoot):
			http.Error(w, "bad path", http.StatusBadRequest)
		case errors.Is(err, os.ErrNotExist):
			http.NotFound(w, r)
		default:
			klog.Errorf("thumbnail %s: %v", r.URL.Path, err)
			http.Error(w, "thumbnail failed", http.StatusInternalServerError)
		}
	}
}

func (s *Server) writeView(w http.ResponseWriter, v *treepics.Viewer) {
	vw := v.View()
	pane, err := treepics.RenderPane(vw.Gallery)
	if err != nil {
		klog.Errorf("render pane: %v", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	vw.Gallery.Pane = pane

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(vw); err != nil {
		klog.Warningf("write view: %v", err)
	}
}

// session returns the caller's session, creating one (and its cookie) if needed.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.expire(now)

	if ck, err := r.Cookie(SessionCookie); err == nil {
		if ss, ok := s.sessions[ck.Value]; ok {
			ss.seen = now
			return ss
		}
	}

	return s.newSession(w, now)
}

// newSession creates a session and sets its cookie. Callers hold s.mu.
func (s *Server) newSession(w http.ResponseWriter, now time.Time) *session {
	id := uuid.NewString()
	ss := &session{v: treepics.NewViewer(s.photos, s.viewerOptions()), seen: now}
	s.sessions[id] = ss
	klog.V(1).Infof("new session %s, %d active", id, len(s.sessions))

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return ss
}

// expire drops idle sessions. Callers hold s.mu.
func (s *Server) expire(now time.Time) {
	if s.c.SessionTTL <= 0 {
		return
	}
	for id, ss := range s.sessions {
		if now.Sub(ss.seen) > s.c.SessionTTL {
			delete(s.sessions, id)
		}
	}
}

func (s *Server) viewerOptions() treepics.Options {
	return treepics.Options{
		Scale: s.c.Scale,
		Zoom:  s.c.Zoom,
		PhotoURL: func(p *treepics.Photo) string {
			return "media/" + strings.TrimPrefix(p.WebPath, "/")
		},
		ThumbURL: func(p *treepics.Photo) string {
			return "thumbs/" + strings.TrimPrefix(p.WebPath, "/")
		},
	}
}
