package query

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"stockline/internal/api"
	"stockline/internal/domain"
	"stockline/internal/session"
)

type staticProvider struct{ token string }

func (p *staticProvider) FetchSession(ctx context.Context) (string, error) { return p.token, nil }
func (p *staticProvider) OnChange(fn func(string)) func()                  { return func() {} }
func (p *staticProvider) SignIn(ctx context.Context, email, password string) error {
	return nil
}
func (p *staticProvider) SignOut(ctx context.Context) error { return nil }

func signedIn(t *testing.T) *session.Manager {
	t.Helper()
	m := session.NewManager(&staticProvider{token: "tok"})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	return m
}

func signedOut(t *testing.T) *session.Manager {
	t.Helper()
	m := session.NewManager(&staticProvider{})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	return m
}

// listingServer serves a fixed row set and counts hits. Swap serveHTML on to
// imitate a captive portal mid-session.
type listingServer struct {
	mu        sync.Mutex
	hits      int
	lastQuery map[string]string
	rows      []domain.InventoryRow
	serveHTML bool
}

func (s *listingServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits++
		s.lastQuery = map[string]string{
			"q":        r.URL.Query().Get("q"),
			"category": r.URL.Query().Get("category"),
			"option":   r.URL.Query().Get("option"),
		}
		html := s.serveHTML
		rows := s.rows
		s.mu.Unlock()

		if html {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html>maintenance</html>"))
			return
		}
		json.NewEncoder(w).Encode(rows)
	}
}

func (s *listingServer) hitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

var sampleRows = []domain.InventoryRow{
	{ItemID: "it-1", Artist: "NOVA", Category: "album", AlbumVersion: "1st Full", Option: "A ver", Location: "B-01", Quantity: 3},
	{ItemID: "it-2", Artist: "NOVA", Category: "md", AlbumVersion: "Lightstick", Location: "A-02", Quantity: 9},
	{ItemID: "it-3", Artist: "VELVET", Category: "album", AlbumVersion: "Mini 3", Option: "B ver", Location: "A-02", Quantity: 1},
}

func TestQueryReplacesRows(t *testing.T) {
	ls := &listingServer{rows: sampleRows}
	srv := httptest.NewServer(ls.handler())
	defer srv.Close()

	e := New(api.New(srv.URL), signedIn(t))
	if err := e.Query(context.Background(), "nova"); err != nil {
		t.Fatalf("query: %v", err)
	}
	if got := len(e.Rows()); got != 3 {
		t.Fatalf("rows = %d, want 3", got)
	}
	if e.Keyword() != "nova" {
		t.Fatalf("keyword = %q", e.Keyword())
	}
	if ls.lastQuery["q"] != "nova" {
		t.Fatalf("server saw q=%q", ls.lastQuery["q"])
	}
}

func TestFailedQueryLeavesRowsIntact(t *testing.T) {
	ls := &listingServer{rows: sampleRows}
	srv := httptest.NewServer(ls.handler())
	defer srv.Close()

	e := New(api.New(srv.URL), signedIn(t))
	if err := e.Query(context.Background(), "nova"); err != nil {
		t.Fatalf("query: %v", err)
	}

	ls.mu.Lock()
	ls.serveHTML = true
	ls.mu.Unlock()

	err := e.Query(context.Background(), "velvet")
	var pm *api.ProtocolMismatchError
	if !errors.As(err, &pm) {
		t.Fatalf("err = %v, want ProtocolMismatchError", err)
	}
	if got := len(e.Rows()); got != 3 {
		t.Fatalf("failed query clobbered rows: %d", got)
	}
	if e.Keyword() != "nova" {
		t.Fatalf("failed query moved keyword to %q", e.Keyword())
	}
}

func TestSignedOutFailsBeforeNetwork(t *testing.T) {
	ls := &listingServer{rows: sampleRows}
	srv := httptest.NewServer(ls.handler())
	defer srv.Close()

	e := New(api.New(srv.URL), signedOut(t))
	err := e.Query(context.Background(), "nova")
	var ae *api.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want AuthError", err)
	}
	if ls.hitCount() != 0 {
		t.Fatalf("signed-out query reached the server")
	}
}

func TestLoadingSessionIsRetryableAuthError(t *testing.T) {
	m := session.NewManager(&staticProvider{token: "tok"})
	// Not started: still loading.
	e := New(api.New("http://unused.invalid"), m)
	err := e.Query(context.Background(), "x")
	var ae *api.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want AuthError", err)
	}
	if !ae.Retryable() {
		t.Fatalf("loading must be retryable")
	}
}

func TestMissingBaseFailsClosed(t *testing.T) {
	e := New(&api.Client{}, signedIn(t))
	err := e.Query(context.Background(), "x")
	var ce *api.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
}

func TestAutoQueryRunsOncePerCode(t *testing.T) {
	ls := &listingServer{rows: sampleRows}
	srv := httptest.NewServer(ls.handler())
	defer srv.Close()

	e := New(api.New(srv.URL), signedIn(t))
	for _, code := range []string{"880001", "880001", "880001"} {
		if _, err := e.AutoQuery(context.Background(), code); err != nil {
			t.Fatalf("auto query: %v", err)
		}
	}
	if ls.hitCount() != 1 {
		t.Fatalf("hits = %d, want 1", ls.hitCount())
	}

	ran, err := e.AutoQuery(context.Background(), "880002")
	if err != nil || !ran {
		t.Fatalf("changed code must re-query: ran=%v err=%v", ran, err)
	}
	if ls.hitCount() != 2 {
		t.Fatalf("hits = %d, want 2", ls.hitCount())
	}
}

func TestFilteredIsLocalAndInstant(t *testing.T) {
	ls := &listingServer{rows: sampleRows}
	srv := httptest.NewServer(ls.handler())
	defer srv.Close()

	e := New(api.New(srv.URL), signedIn(t))
	if err := e.Query(context.Background(), ""); err != nil {
		t.Fatalf("query: %v", err)
	}
	before := ls.hitCount()

	e.SetCategory(CategoryAlbum)
	if got := len(e.Filtered()); got != 2 {
		t.Fatalf("album filter = %d rows, want 2", got)
	}
	e.SetOption("a VER")
	if got := len(e.Filtered()); got != 1 {
		t.Fatalf("option filter = %d rows, want 1", got)
	}
	e.SetCategory(CategoryAll)
	e.SetOption("")
	if got := len(e.Filtered()); got != 3 {
		t.Fatalf("cleared filters = %d rows, want 3", got)
	}

	if ls.hitCount() != before {
		t.Fatalf("local filtering issued requests")
	}
}

func TestLocationsDistinctSorted(t *testing.T) {
	ls := &listingServer{rows: sampleRows}
	srv := httptest.NewServer(ls.handler())
	defer srv.Close()

	e := New(api.New(srv.URL), signedIn(t))
	if err := e.Query(context.Background(), ""); err != nil {
		t.Fatalf("query: %v", err)
	}
	locs := e.Locations()
	want := []string{"A-02", "B-01"}
	if len(locs) != len(want) {
		t.Fatalf("locations = %v, want %v", locs, want)
	}
	for i := range want {
		if locs[i] != want[i] {
			t.Fatalf("locations = %v, want %v", locs, want)
		}
	}
}

func TestResetClearsEverything(t *testing.T) {
	ls := &listingServer{rows: sampleRows}
	srv := httptest.NewServer(ls.handler())
	defer srv.Close()

	e := New(api.New(srv.URL), signedIn(t))
	if _, err := e.AutoQuery(context.Background(), "880001"); err != nil {
		t.Fatalf("auto query: %v", err)
	}
	e.Reset()
	if len(e.Rows()) != 0 || e.Keyword() != "" {
		t.Fatalf("reset left state: rows=%d keyword=%q", len(e.Rows()), e.Keyword())
	}
	// The auto-query latch resets too: the same code queries again.
	ran, err := e.AutoQuery(context.Background(), "880001")
	if err != nil || !ran {
		t.Fatalf("auto query after reset: ran=%v err=%v", ran, err)
	}
}
