package workflow

import (
	"context"
	"strings"

	"stockline/internal/domain"
)

// Lookup finds inventory rows for a keyword without touching any listing
// state.
type Lookup interface {
	Lookup(ctx context.Context, keyword string) ([]domain.InventoryRow, error)
}

// Hydrate fills identity fields from the first inventory row matching the
// context's barcode. This is a separate step after a scan merge and never
// part of the scan bridge's contract. No match leaves the context
// untouched; quantity and memo are never overwritten either way.
func Hydrate(ctx context.Context, src Lookup, wctx *Context) error {
	code := strings.TrimSpace(wctx.Barcode)
	if code == "" {
		return nil
	}
	rows, err := src.Lookup(ctx, code)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	r := rows[0]
	wctx.Artist = r.Artist
	wctx.Category = r.Category
	wctx.AlbumVersion = r.AlbumVersion
	wctx.Option = r.Option
	wctx.Location = r.Location
	return nil
}
