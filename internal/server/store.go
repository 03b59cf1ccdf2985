package server

import (
	"sort"
	"strings"
	"sync"

	"stockline/internal/domain"
)

// Store is the in-memory backing state for the dev server. It exists so the
// CLI workflows can be exercised end to end without a real backend.
type Store struct {
	mu    sync.Mutex
	rows  []domain.InventoryRow
	items map[string]domain.MetaInfo
	// seen maps idempotency keys to the endpoint that first accepted them.
	seen map[string]string
}

// NewStore seeds a store with a small fixed inventory.
func NewStore() *Store {
	rows := []domain.InventoryRow{
		{ItemID: "it-001", Artist: "NOVA", Category: "album", AlbumVersion: "1st Full", Option: "A ver", Location: "A-01", Quantity: 24, Barcode: "8800001"},
		{ItemID: "it-002", Artist: "NOVA", Category: "md", AlbumVersion: "Lightstick", Location: "A-02", Quantity: 7, Barcode: "8800002"},
		{ItemID: "it-003", Artist: "VELVET", Category: "album", AlbumVersion: "Mini 3", Option: "B ver", Location: "B-01", Quantity: 12, Barcode: "8800003"},
		{ItemID: "it-004", Artist: "VELVET", Category: "md", AlbumVersion: "Photocard Set", Location: "B-01", Quantity: 40, Barcode: "8800004"},
	}
	items := map[string]domain.MetaInfo{}
	for _, r := range rows {
		items[r.ItemID] = domain.MetaInfo{
			Artist:       r.Artist,
			Category:     r.Category,
			AlbumVersion: r.AlbumVersion,
			Option:       r.Option,
		}
	}
	return &Store{rows: rows, items: items, seen: map[string]string{}}
}

// Search applies the listing filters: keyword across artist, album version,
// option, location and barcode, then category and option narrowing.
func (s *Store) Search(q, category, option string) []domain.InventoryRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	q = strings.ToLower(strings.TrimSpace(q))
	option = strings.ToLower(strings.TrimSpace(option))

	var out []domain.InventoryRow
	for _, r := range s.rows {
		if q != "" && !rowMatches(r, q) {
			continue
		}
		if category != "" && category != "all" && !strings.EqualFold(r.Category, category) {
			continue
		}
		if option != "" && !strings.Contains(strings.ToLower(r.Option), option) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

func rowMatches(r domain.InventoryRow, q string) bool {
	for _, f := range []string{r.Artist, r.AlbumVersion, r.Option, r.Location, r.Barcode} {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// Item returns the metadata for an item id.
func (s *Store) Item(id string) (domain.MetaInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.items[id]
	return info, ok
}

// Accept records an idempotency key. The second call with the same key
// reports replay=true and does not mutate anything.
func (s *Store) Accept(key, endpoint string) (replay bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; ok {
		return true
	}
	s.seen[key] = endpoint
	return false
}
