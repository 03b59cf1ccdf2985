package meta

import (
	"context"
	"errors"
	"testing"

	"stockline/internal/domain"
	"stockline/internal/workflow"
)

type fakeStore map[string]domain.MetaInfo

func (s fakeStore) ItemMeta(ctx context.Context, itemID string) (domain.MetaInfo, bool, error) {
	info, ok := s[itemID]
	return info, ok, nil
}

type fakeLookup struct {
	rows []domain.InventoryRow
	err  error
}

func (l *fakeLookup) Lookup(ctx context.Context, keyword string) ([]domain.InventoryRow, error) {
	return l.rows, l.err
}

func TestResolveItemKnownID(t *testing.T) {
	store := fakeStore{
		"it-1": {Artist: "NOVA", Category: "album", AlbumVersion: "1st Full", Option: "A ver"},
	}
	r := NewResolver(store, &fakeLookup{})
	if err := r.ResolveItem(context.Background(), "it-1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.Status() != StatusResolved {
		t.Fatalf("status = %s, want resolved", r.Status())
	}
	if got := r.Meta(); got.Artist != "NOVA" || got.AlbumVersion != "1st Full" {
		t.Fatalf("meta = %+v", got)
	}
}

func TestResolveItemMissingStaysUnresolved(t *testing.T) {
	r := NewResolver(fakeStore{}, &fakeLookup{})
	if err := r.ResolveItem(context.Background(), "it-404"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.Status() != StatusUnresolved {
		t.Fatalf("status = %s, want unresolved", r.Status())
	}
}

func TestResolveItemPartialMetaStaysUnresolved(t *testing.T) {
	store := fakeStore{"it-2": {Artist: "NOVA"}}
	r := NewResolver(store, &fakeLookup{})
	if err := r.ResolveItem(context.Background(), "it-2"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.Status() != StatusUnresolved {
		t.Fatalf("partial metadata resolved: %s", r.Status())
	}
}

func TestResolveBarcodeSingleMatch(t *testing.T) {
	lookup := &fakeLookup{rows: []domain.InventoryRow{
		{ItemID: "it-1", Artist: "NOVA", Category: "album", AlbumVersion: "1st Full", Option: "A ver"},
	}}
	r := NewResolver(fakeStore{}, lookup)
	if err := r.ResolveBarcode(context.Background(), "880001"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.Status() != StatusResolved {
		t.Fatalf("status = %s, want resolved", r.Status())
	}
}

func TestResolveBarcodeNoMatch(t *testing.T) {
	r := NewResolver(fakeStore{}, &fakeLookup{})
	if err := r.ResolveBarcode(context.Background(), "nope"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.Status() != StatusUnresolved {
		t.Fatalf("status = %s, want unresolved", r.Status())
	}
}

func TestResolveBarcodeAmbiguousNeedsSelect(t *testing.T) {
	lookup := &fakeLookup{rows: []domain.InventoryRow{
		{ItemID: "it-1", Artist: "NOVA", Category: "album", AlbumVersion: "1st Full", Option: "A ver"},
		{ItemID: "it-2", Artist: "NOVA", Category: "album", AlbumVersion: "1st Full", Option: "B ver"},
	}}
	r := NewResolver(fakeStore{}, lookup)
	if err := r.ResolveBarcode(context.Background(), "880001"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.Status() != StatusAmbiguous {
		t.Fatalf("status = %s, want ambiguous", r.Status())
	}
	if got := len(r.Candidates()); got != 2 {
		t.Fatalf("candidates = %d, want 2", got)
	}

	if err := r.Select(5); err == nil {
		t.Fatalf("out-of-range select accepted")
	}
	if err := r.Select(1); err != nil {
		t.Fatalf("select: %v", err)
	}
	if r.Status() != StatusResolved || r.Meta().Option != "B ver" {
		t.Fatalf("select picked wrong candidate: %s %+v", r.Status(), r.Meta())
	}
}

func TestApplyBlockedUntilResolved(t *testing.T) {
	r := NewResolver(fakeStore{}, &fakeLookup{})
	wctx := workflow.New(workflow.ModeTransfer, workflow.DirectionOut)

	err := r.Apply(wctx)
	var ue *UnresolvedError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want UnresolvedError", err)
	}
	if ue.Status != StatusUnresolved {
		t.Fatalf("error status = %s", ue.Status)
	}
	if wctx.Artist != "" {
		t.Fatalf("blocked apply still wrote fields: %+v", wctx)
	}
}

func TestApplyCopiesResolvedMeta(t *testing.T) {
	store := fakeStore{
		"it-1": {Artist: "NOVA", Category: "album", AlbumVersion: "1st Full", Option: "A ver"},
	}
	r := NewResolver(store, &fakeLookup{})
	if err := r.ResolveItem(context.Background(), "it-1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	wctx := workflow.New(workflow.ModeTransfer, workflow.DirectionOut)
	wctx.Quantity = "5"
	if err := r.Apply(wctx); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if wctx.Artist != "NOVA" || wctx.Category != "album" || wctx.AlbumVersion != "1st Full" {
		t.Fatalf("apply incomplete: %+v", wctx)
	}
	if wctx.Quantity != "5" {
		t.Fatalf("apply touched quantity: %q", wctx.Quantity)
	}
}

func TestLookupErrorPropagatesAndUnresolves(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("listing down")}
	r := NewResolver(fakeStore{}, lookup)
	if err := r.ResolveBarcode(context.Background(), "880001"); err == nil {
		t.Fatalf("lookup error swallowed")
	}
	if r.Status() != StatusUnresolved {
		t.Fatalf("status = %s, want unresolved after failure", r.Status())
	}
}

func TestResetReturnsToInitialState(t *testing.T) {
	store := fakeStore{
		"it-1": {Artist: "NOVA", Category: "album", AlbumVersion: "1st Full"},
	}
	r := NewResolver(store, &fakeLookup{})
	if err := r.ResolveItem(context.Background(), "it-1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	r.Reset()
	if r.Status() != StatusUnresolved || r.Meta().Artist != "" {
		t.Fatalf("reset incomplete: %s %+v", r.Status(), r.Meta())
	}
}
