package http

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"giftregistry/internal/cache"
	"giftregistry/internal/core"
	"giftregistry/internal/feed"
	"giftregistry/internal/inspiration"
	"giftregistry/internal/log"
	"giftregistry/internal/metrics"
	"giftregistry/internal/middleware/identity"
	"giftregistry/internal/middleware/ratelimit"
	"giftregistry/internal/middleware/security"
	"giftregistry/internal/middleware/trace"
	appweb "giftregistry/web"
)

// GiftService is the mutation side of the registry.
type GiftService interface {
	CreateGift(ctx context.Context, in core.GiftInput, user string) (string, error)
	EditGift(ctx context.Context, id string, in core.GiftInput, user string) error
	TogglePurchased(ctx context.Context, id, user string) (bool, error)
	AddContribution(ctx context.Context, id, rawAmount, user string) (core.Progress, error)
	DeleteGift(ctx context.Context, id, user string) error
	AcceptSuggestion(ctx context.Context, name, recipient, user string) (string, error)
}

// SnapshotSource is the read side of the registry.
type SnapshotSource interface {
	Current() *feed.Snapshot
	OnChange(fn func(*feed.Snapshot))
}

// Options wires the server. Gifts and Feed are required; everything else
// has a default.
type Options struct {
	Addr           string
	Gifts          GiftService
	Feed           SnapshotSource
	Views          *cache.ViewCache
	Inspiration    *inspiration.Catalog
	Metrics        *metrics.Metrics
	Logger         *log.Logger
	Authenticator  identity.Authenticator
	Limiter        *ratelimit.Limiter
	ClientIP       *security.ClientIPResolver
	DefaultGroupBy core.GroupKey
	PublicBaseURL  string
	FirebaseAuth   bool
}

type Server struct {
	http.Server
	templates   *template.Template
	gifts       GiftService
	feed        SnapshotSource
	views       *cache.ViewCache
	inspiration *inspiration.Catalog
	metrics     *metrics.Metrics
	logger      *log.Logger
	groupBy     core.GroupKey
	baseURL     string
	authMode    string
	streams     *streamHub
	started     time.Time
	now         func() time.Time
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	views := opts.Views
	if views == nil {
		views = cache.NewViewCache(64, 5*time.Minute, opts.Metrics)
	}
	catalog := opts.Inspiration
	if catalog == nil {
		var err error
		if catalog, err = inspiration.Default(); err != nil {
			logger.Warn("Failed loading inspiration catalog", log.FieldError, err)
			catalog = &inspiration.Catalog{}
		}
	}
	groupBy := opts.DefaultGroupBy
	if groupBy == "" {
		groupBy = core.GroupByRecipient
	}
	authMode := "header"
	if opts.FirebaseAuth {
		authMode = "firebase"
	}

	s := &Server{
		gifts:       opts.Gifts,
		feed:        opts.Feed,
		views:       views,
		inspiration: catalog,
		metrics:     opts.Metrics,
		logger:      logger.WithComponent(log.ComponentHTTP),
		groupBy:     groupBy,
		baseURL:     opts.PublicBaseURL,
		authMode:    authMode,
		streams:     newStreamHub(),
		started:     time.Now(),
		now:         time.Now,
	}

	s.feed.OnChange(func(snap *feed.Snapshot) {
		s.views.Invalidate(snap.Version)
		s.streams.publish(snap.Version)
	})

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServerFS(sub))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ui/registry", s.handleRegistryPartial)
	mux.HandleFunc("GET /ui/inspiration", s.handleInspirationPartial)
	mux.HandleFunc("GET /bookmarklet.js", s.handleBookmarklet)

	mux.HandleFunc("GET /api/view", s.handleView)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	mux.HandleFunc("GET /api/countdown", s.handleCountdown)
	mux.HandleFunc("GET /api/suggestions", s.handleSuggestions)
	mux.HandleFunc("GET /api/inspiration", s.handleInspiration)
	mux.HandleFunc("GET /api/stream", s.handleStream)

	mux.HandleFunc("POST /gifts", s.handleCreateGift)
	mux.HandleFunc("POST /gifts/suggestions", s.handleAcceptSuggestion)
	mux.HandleFunc("POST /gifts/{id}", s.handleEditGift)
	mux.HandleFunc("POST /gifts/{id}/purchased", s.handleTogglePurchased)
	mux.HandleFunc("POST /gifts/{id}/contributions", s.handleAddContribution)
	mux.HandleFunc("DELETE /gifts/{id}", s.handleDeleteGift)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	auth := opts.Authenticator
	if auth == nil {
		auth = identity.HeaderAuthenticator{}
	}
	clientIP := opts.ClientIP
	if clientIP == nil {
		clientIP = security.NewClientIPResolver()
	}

	var handler http.Handler = s.instrument(mux)
	handler = identity.Middleware(auth)(handler)
	if opts.Limiter != nil {
		handler = opts.Limiter.Middleware(clientIP.ClientIP, s.rateLimited)(handler)
	}
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig(opts.FirebaseAuth)).Middleware(handler)
	handler = log.Middleware(logger, trace.FromRequest)(handler)
	handler = trace.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.RegisterOnShutdown(s.streams.close)

	return s
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
	s.errorResponse(r, http.StatusTooManyRequests, "Too many changes, try again in a minute").Write(w)
}

// instrument records request metrics by route pattern. It must wrap the mux
// directly: the mux sets r.Pattern on the request it receives.
func (s *Server) instrument(next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveHTTP(route, rec.status, time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// streamHub fans snapshot versions out to open event streams. Slow readers
// only ever see the latest version.
type streamHub struct {
	mu     sync.Mutex
	subs   map[chan uint64]struct{}
	closed bool
}

func newStreamHub() *streamHub {
	return &streamHub{subs: make(map[chan uint64]struct{})}
}

func (h *streamHub) subscribe() (<-chan uint64, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan uint64, 1)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

func (h *streamHub) publish(version uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		ch <- version
	}
}

func (h *streamHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *streamHub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

var templateFuncs = template.FuncMap{
	"currency": func(v any) string { return core.FormatCurrency(v) },
	"percent": func(p float64) string {
		return fmt.Sprintf("%.0f", p)
	},
	"meter": func(p float64) float64 {
		return min(max(p, 0), 100)
	},
	"blanks": func(n int) []struct{} { return make([]struct{}, max(n, 0)) },
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}
