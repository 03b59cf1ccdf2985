package query

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"stockline/internal/api"
	"stockline/internal/domain"
	"stockline/internal/session"
)

// InventoryPath is the remote listing endpoint, relative to the base.
const InventoryPath = "/api/mobile/inventory"

// Category is the coarse server-side filter. Server-side filter params are
// best-effort hints; the local filter in Filtered is the source of truth.
type Category string

const (
	CategoryAll   Category = "all"
	CategoryMD    Category = "md"
	CategoryAlbum Category = "album"
)

// Engine is the search/filter state machine over the remote inventory
// listing.
type Engine struct {
	Client   *api.Client
	Sessions *session.Manager
	Log      *logrus.Logger

	mu       sync.Mutex
	keyword  string
	category Category
	option   string
	rows     []domain.InventoryRow
	loading  bool
	lastAuto string
	autoSeen bool
}

// New creates an engine with no rows loaded and the category filter wide
// open.
func New(client *api.Client, sessions *session.Manager) *Engine {
	return &Engine{
		Client:   client,
		Sessions: sessions,
		Log:      logrus.StandardLogger(),
		category: CategoryAll,
	}
}

// Query issues one listing GET for the keyword plus the active filters and
// replaces rows on success. Failures of any class leave rows untouched.
func (e *Engine) Query(ctx context.Context, keyword string) error {
	keyword = strings.TrimSpace(keyword)

	e.mu.Lock()
	e.loading = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.loading = false
		e.mu.Unlock()
	}()

	rows, err := e.Lookup(ctx, keyword)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.keyword = keyword
	e.rows = rows
	e.mu.Unlock()
	return nil
}

// Lookup performs the listing GET without replacing any engine state. The
// meta resolver and hydration use this to search without clobbering the
// screen's rows.
func (e *Engine) Lookup(ctx context.Context, keyword string) ([]domain.InventoryRow, error) {
	if e.Client == nil || e.Client.Base == "" {
		return nil, &api.ConfigError{Reason: "base endpoint not configured"}
	}
	sess := e.Sessions.Current()
	switch sess.Status {
	case session.StatusLoading:
		return nil, &api.AuthError{State: "loading"}
	case session.StatusSignedOut:
		return nil, &api.AuthError{State: "signed_out"}
	}

	q := url.Values{}
	if keyword != "" {
		q.Set("q", keyword)
	}
	e.mu.Lock()
	if e.category != CategoryAll && e.category != "" {
		q.Set("category", string(e.category))
	}
	if opt := strings.TrimSpace(e.option); opt != "" {
		q.Set("option", opt)
	}
	e.mu.Unlock()

	var rows []domain.InventoryRow
	if err := e.Client.GetJSON(ctx, InventoryPath, q, sess.Token, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// AutoQuery handles a scan code returned to the listing: re-query exactly
// once per distinct incoming code. An identical repeat is idempotent and
// issues nothing. Returns whether a query ran.
func (e *Engine) AutoQuery(ctx context.Context, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, nil
	}
	e.mu.Lock()
	if e.autoSeen && e.lastAuto == code {
		e.mu.Unlock()
		return false, nil
	}
	e.autoSeen = true
	e.lastAuto = code
	e.mu.Unlock()
	return true, e.Query(ctx, code)
}

// SetCategory switches the category filter. No network: Filtered reflects it
// immediately against the last fetched rows.
func (e *Engine) SetCategory(c Category) {
	e.mu.Lock()
	e.category = c
	e.mu.Unlock()
}

// SetOption sets the option substring filter, matched case-insensitively.
func (e *Engine) SetOption(opt string) {
	e.mu.Lock()
	e.option = opt
	e.mu.Unlock()
}

// Keyword returns the last successfully queried keyword.
func (e *Engine) Keyword() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.keyword
}

// Loading reports whether a query is in flight.
func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// Rows returns the last fetched rows, unfiltered.
func (e *Engine) Rows() []domain.InventoryRow {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.InventoryRow, len(e.rows))
	copy(out, e.rows)
	return out
}

// Filtered applies the local category and option filters to the last fetched
// rows. Instant, never invalidates rows.
func (e *Engine) Filtered() []domain.InventoryRow {
	e.mu.Lock()
	cat := e.category
	opt := strings.ToLower(strings.TrimSpace(e.option))
	rows := e.rows
	e.mu.Unlock()

	var out []domain.InventoryRow
	for _, r := range rows {
		if cat != CategoryAll && cat != "" && !strings.EqualFold(r.Category, string(cat)) {
			continue
		}
		if opt != "" && !strings.Contains(strings.ToLower(r.Option), opt) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Locations returns the distinct sorted locations in the last fetched rows,
// used to suggest transfer destinations.
func (e *Engine) Locations() []string {
	seen := map[string]bool{}
	for _, r := range e.Rows() {
		if r.Location != "" {
			seen[r.Location] = true
		}
	}
	out := make([]string, 0, len(seen))
	for loc := range seen {
		out = append(out, loc)
	}
	sort.Strings(out)
	return out
}

// Reset restores the initial state: keyword, filters, rows, and the
// auto-query latch all clear.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.keyword = ""
	e.option = ""
	e.category = CategoryAll
	e.rows = nil
	e.lastAuto = ""
	e.autoSeen = false
	e.mu.Unlock()
}
