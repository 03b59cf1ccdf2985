package workflow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"stockline/internal/domain"
)

// Mode selects the workflow kind.
type Mode string

const (
	ModeQuickIn  Mode = "quick-in"
	ModeMovement Mode = "movement"
	ModeTransfer Mode = "transfer"
)

// Direction of a stock movement.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// Context is the mutable record of one in-progress movement or transfer. It
// is owned exclusively by the screen that created it; the scan bridge and the
// meta resolver work on snapshots and hand back new values.
//
// Quantity is kept exactly as entered. Non-numeric input stays in the field
// and fails validation at submission time; it is never clamped or coerced
// while editing.
type Context struct {
	ID           string
	Mode         Mode
	Direction    Direction
	ItemID       string
	Artist       string
	Category     string
	AlbumVersion string
	Option       string
	Location     string
	ToLocation   string
	Barcode      string
	Quantity     string
	Memo         string
}

// New creates a context for a fresh workflow with its own instance identity.
func New(mode Mode, direction Direction) *Context {
	return &Context{
		ID:        uuid.NewString(),
		Mode:      mode,
		Direction: direction,
		Quantity:  "1",
	}
}

// Clone returns an independent copy sharing the same workflow instance ID.
func (c *Context) Clone() *Context {
	dup := *c
	return &dup
}

// Prefill populates identity fields from a selected inventory row. Quantity
// and memo are left alone: prefill seeds a workflow, it does not edit one.
func (c *Context) Prefill(row domain.InventoryRow) {
	c.ItemID = row.ItemID
	c.Artist = row.Artist
	c.Category = row.Category
	c.AlbumVersion = row.AlbumVersion
	c.Option = row.Option
	c.Location = row.Location
	c.Barcode = row.Barcode
}

// EffectiveDirection derives the wire direction from the mode: quick-in
// always forces IN, movement uses the explicit direction, transfer has none.
func (c *Context) EffectiveDirection() Direction {
	if c.Mode == ModeQuickIn {
		return DirectionIn
	}
	return c.Direction
}

// ParseQuantity validates the as-entered quantity at submission time: a
// finite integer >= 1.
func (c *Context) ParseQuantity() (int, error) {
	raw := strings.TrimSpace(c.Quantity)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("quantity %q is not a whole number", c.Quantity)
	}
	if n < 1 {
		return 0, fmt.Errorf("quantity must be at least 1, got %d", n)
	}
	return n, nil
}

// setField applies a scanned code to exactly one context field. Targets map
// one to one onto scan targets; anything else is a programming error at the
// call site.
func (c *Context) setField(target Target, value string) error {
	switch target {
	case TargetBarcode:
		c.Barcode = value
	case TargetLocation:
		c.Location = value
	case TargetToLocation:
		c.ToLocation = value
	default:
		return fmt.Errorf("target %q is not a context field", target)
	}
	return nil
}
