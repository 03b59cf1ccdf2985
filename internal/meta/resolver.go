package meta

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"stockline/internal/domain"
	"stockline/internal/workflow"
)

// Status tracks how far resolution of an item's metadata has come. Submission
// is only allowed from StatusResolved.
type Status string

const (
	StatusUnresolved Status = "unresolved"
	StatusResolving  Status = "resolving"
	StatusResolved   Status = "resolved"
	StatusAmbiguous  Status = "ambiguous"
)

// Store fetches the canonical metadata for a single item id.
type Store interface {
	ItemMeta(ctx context.Context, itemID string) (domain.MetaInfo, bool, error)
}

// UnresolvedError reports an Apply attempt while metadata is not resolved.
type UnresolvedError struct {
	Status Status
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("item metadata not resolved (status %s)", e.Status)
}

// Resolver loads item metadata for a transfer and gates submission on having
// exactly one resolved candidate.
type Resolver struct {
	Store  Store
	Lookup workflow.Lookup
	Log    *logrus.Logger

	mu         sync.Mutex
	status     Status
	meta       domain.MetaInfo
	candidates []domain.InventoryRow
}

func NewResolver(store Store, lookup workflow.Lookup) *Resolver {
	return &Resolver{
		Store:  store,
		Lookup: lookup,
		Log:    logrus.StandardLogger(),
		status: StatusUnresolved,
	}
}

// ResolveItem loads metadata for a known item id from the store.
func (r *Resolver) ResolveItem(ctx context.Context, itemID string) error {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		r.setStatus(StatusUnresolved)
		return nil
	}

	r.setStatus(StatusResolving)
	info, ok, err := r.Store.ItemMeta(ctx, itemID)
	if err != nil {
		r.setStatus(StatusUnresolved)
		return err
	}
	if !ok || !info.Complete() {
		r.Log.WithField("item", itemID).Warn("item metadata missing or partial")
		r.setStatus(StatusUnresolved)
		return nil
	}

	r.mu.Lock()
	r.meta = info
	r.status = StatusResolved
	r.mu.Unlock()
	return nil
}

// ResolveBarcode searches the listing for a barcode. Zero matches leave the
// resolver unresolved, one match resolves it, several leave a candidate set
// for Select.
func (r *Resolver) ResolveBarcode(ctx context.Context, barcode string) error {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		r.setStatus(StatusUnresolved)
		return nil
	}

	r.setStatus(StatusResolving)
	rows, err := r.Lookup.Lookup(ctx, barcode)
	if err != nil {
		r.setStatus(StatusUnresolved)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch len(rows) {
	case 0:
		r.status = StatusUnresolved
		r.candidates = nil
	case 1:
		r.applyRow(rows[0])
	default:
		r.status = StatusAmbiguous
		r.candidates = rows
	}
	return nil
}

// Select picks one row out of an ambiguous candidate set.
func (r *Resolver) Select(i int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusAmbiguous {
		return fmt.Errorf("no candidates to select from")
	}
	if i < 0 || i >= len(r.candidates) {
		return fmt.Errorf("candidate index %d out of range", i)
	}
	r.applyRow(r.candidates[i])
	return nil
}

// applyRow resolves from a listing row. Caller holds r.mu.
func (r *Resolver) applyRow(row domain.InventoryRow) {
	r.meta = domain.MetaInfo{
		Artist:       row.Artist,
		Category:     row.Category,
		AlbumVersion: row.AlbumVersion,
		Option:       row.Option,
	}
	r.status = StatusResolved
	r.candidates = nil
}

func (r *Resolver) setStatus(s Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

func (r *Resolver) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Resolver) Meta() domain.MetaInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.meta
}

func (r *Resolver) Candidates() []domain.InventoryRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.InventoryRow, len(r.candidates))
	copy(out, r.candidates)
	return out
}

// Apply copies resolved metadata into the workflow context. Any status other
// than resolved blocks with an UnresolvedError, so a transfer cannot be
// submitted mid-load.
func (r *Resolver) Apply(wctx *workflow.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusResolved {
		return &UnresolvedError{Status: r.status}
	}
	wctx.Artist = r.meta.Artist
	wctx.Category = r.meta.Category
	wctx.AlbumVersion = r.meta.AlbumVersion
	wctx.Option = r.meta.Option
	return nil
}

// Reset returns the resolver to its initial unresolved state.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.status = StatusUnresolved
	r.meta = domain.MetaInfo{}
	r.candidates = nil
	r.mu.Unlock()
}
