package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"giftregistry/internal/core"
	"giftregistry/internal/feed"
	"giftregistry/internal/inspiration"
	"giftregistry/internal/log"
	"giftregistry/internal/middleware/identity"
)

// pageData feeds index.html and its partials.
type pageData struct {
	Version     uint64
	Ready       bool
	User        string
	AuthMode    string
	GroupBy     core.GroupKey
	GroupKeys   []core.GroupKey
	Groups      []core.GroupView
	Stats       core.StatsView
	Calendar    core.CalendarMonth
	PrevMonth   MonthParams
	NextMonth   MonthParams
	EventDate   time.Time
	Countdown   core.Countdown
	Suggestions []core.Suggestion
	Inspiration inspirationData
	Prefill     Prefill
}

type inspirationData struct {
	Selected string             `json:"selected"`
	Groups   []string           `json:"groups"`
	Cards    []inspiration.Card `json:"cards"`
}

func (s *Server) groupKey(r *http.Request) core.GroupKey {
	if v := r.URL.Query().Get("group_by"); v != "" {
		return core.ParseGroupKey(v)
	}
	return s.groupBy
}

// view returns the current snapshot and its grouped projection.
func (s *Server) view(key core.GroupKey) (*feed.Snapshot, []core.GroupView) {
	snap := s.feed.Current()
	return snap, s.views.Get(snap.Version, key, snap.Records)
}

func (s *Server) buildPage(r *http.Request) pageData {
	now := s.now()
	snap, groups := s.view(s.groupKey(r))
	month := ParseMonthParams(r.URL.Query(), now)
	event := core.NextEventDate(now)
	group := r.URL.Query().Get("group")
	if group == "" {
		group = inspiration.All
	}

	return pageData{
		Version:     snap.Version,
		Ready:       snap.Ready(),
		User:        identity.User(r.Context()),
		AuthMode:    s.authMode,
		GroupBy:     s.groupKey(r),
		GroupKeys:   []core.GroupKey{core.GroupByRecipient, core.GroupByCategory, core.GroupByEvent},
		Groups:      groups,
		Stats:       core.ProjectStats(snap.Records),
		Calendar:    core.ProjectCalendar(snap.Records, month.Year, month.Month),
		PrevMonth:   shiftMonth(month, -1),
		NextMonth:   shiftMonth(month, 1),
		EventDate:   event,
		Countdown:   core.CountdownTo(now, event),
		Suggestions: core.Suggestions(),
		Inspiration: s.inspirationFor(group),
		Prefill:     ParsePrefill(r.URL.Query()),
	}
}

func shiftMonth(m MonthParams, delta int) MonthParams {
	t := time.Date(m.Year, time.Month(m.Month)+time.Month(delta), 1, 0, 0, 0, 0, time.UTC)
	return MonthParams{Year: t.Year(), Month: int(t.Month())}
}

func (s *Server) inspirationFor(group string) inspirationData {
	return inspirationData{
		Selected: strings.ToLower(strings.TrimSpace(group)),
		Groups:   append([]string{inspiration.All}, s.inspiration.Groups()...),
		Cards:    s.inspiration.Filter(group),
	}
}

// render executes a template into a buffer so a failure never leaves a
// half-written page behind.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template render failed",
			log.FieldError, err, "template", name)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "index.html", s.buildPage(r))
}

func (s *Server) handleRegistryPartial(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "registry", s.buildPage(r))
}

func (s *Server) handleInspirationPartial(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "inspiration", s.inspirationFor(r.URL.Query().Get("group")))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewHTMXResponse().Status(status).BodyJSON(v).Write(w)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	key := s.groupKey(r)
	snap, groups := s.view(key)
	writeJSON(w, http.StatusOK, map[string]any{
		"version": snap.Version,
		"groupBy": key,
		"groups":  groups,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, core.ProjectStats(s.feed.Current().Records))
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	month := ParseMonthParams(r.URL.Query(), s.now())
	writeJSON(w, http.StatusOK, core.ProjectCalendar(s.feed.Current().Records, month.Year, month.Month))
}

func (s *Server) handleCountdown(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	target := core.NextEventDate(now)
	writeJSON(w, http.StatusOK, map[string]any{
		"target":    target.Format(time.RFC3339),
		"countdown": core.CountdownTo(now, target),
	})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, core.Suggestions())
}

func (s *Server) handleInspiration(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.inspirationFor(r.URL.Query().Get("group")))
}

const bookmarkletTemplate = `javascript:(() => {
  const title = document.querySelector('h1')?.innerText || document.title;
  const priceMatch = document.body.innerText.match(/\$(\d+\.\d{2})/);
  const target = new URL(%s);
  target.searchParams.set('action', 'add');
  target.searchParams.set('name', title);
  target.searchParams.set('price', priceMatch ? priceMatch[1] : '');
  target.searchParams.set('link', window.location.href);
  window.open(target, '_blank');
})();
`

// handleBookmarklet serves a bookmarklet that opens the add form prefilled
// with the current page's title, first dollar price and URL.
func (s *Server) handleBookmarklet(w http.ResponseWriter, r *http.Request) {
	base := s.baseURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	target, _ := json.Marshal(strings.TrimRight(base, "/") + "/")
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	fmt.Fprintf(w, bookmarkletTemplate, target)
}

// handleStream pushes the snapshot version as server-sent events so pages
// refresh as soon as the registry changes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	updates, cancel := s.streams.subscribe()
	defer cancel()

	send := func(version uint64) error {
		if _, err := fmt.Fprintf(w, "event: snapshot\ndata: {\"version\":%d}\n\n", version); err != nil {
			return err
		}
		return rc.Flush()
	}
	if err := send(s.feed.Current().Version); err != nil {
		return
	}

	keepalive := time.NewTicker(25 * time.Second)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case version, ok := <-updates:
			if !ok || send(version) != nil {
				return
			}
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil || rc.Flush() != nil {
				return
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports ready once the first snapshot has been applied.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	snap := s.feed.Current()
	checks := map[string]any{
		"templates": s.templates != nil,
		"snapshot": map[string]any{
			"version": snap.Version,
			"records": len(snap.Records),
		},
		"view_cache_entries": s.views.Size(),
		"streams":            s.streams.size(),
	}
	if snap.LastError != nil {
		checks["last_error"] = snap.LastError.Error()
	}

	status, code := "ready", http.StatusOK
	if !snap.Ready() || s.templates == nil {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}
