package workflow

// Params is the opaque key-value bag the navigation layer transfers between
// logical screens. Keys follow the mobile API's snake_case field names so a
// bag survives a round trip through external routing untouched.
type Params map[string]string

const (
	paramID           = "id"
	paramMode         = "mode"
	paramDirection    = "direction"
	paramItemID       = "item_id"
	paramArtist       = "artist"
	paramCategory     = "category"
	paramAlbumVersion = "album_version"
	paramOption       = "option"
	paramLocation     = "location"
	paramToLocation   = "to_location"
	paramBarcode      = "barcode"
	paramQuantity     = "quantity"
	paramMemo         = "memo"
)

// Params serializes the whole context into a bag. The bag is the round-trip
// token for a capture detour: the detour may outlive any in-memory state, so
// nothing is allowed to live only in memory.
func (c *Context) Params() Params {
	p := Params{
		paramID:        c.ID,
		paramMode:      string(c.Mode),
		paramDirection: string(c.Direction),
		paramQuantity:  c.Quantity,
	}
	setIfPresent(p, paramItemID, c.ItemID)
	setIfPresent(p, paramArtist, c.Artist)
	setIfPresent(p, paramCategory, c.Category)
	setIfPresent(p, paramAlbumVersion, c.AlbumVersion)
	setIfPresent(p, paramOption, c.Option)
	setIfPresent(p, paramLocation, c.Location)
	setIfPresent(p, paramToLocation, c.ToLocation)
	setIfPresent(p, paramBarcode, c.Barcode)
	setIfPresent(p, paramMemo, c.Memo)
	return p
}

// FromParams rebuilds a context from a bag produced by Params.
func FromParams(p Params) *Context {
	return &Context{
		ID:           p[paramID],
		Mode:         Mode(p[paramMode]),
		Direction:    Direction(p[paramDirection]),
		ItemID:       p[paramItemID],
		Artist:       p[paramArtist],
		Category:     p[paramCategory],
		AlbumVersion: p[paramAlbumVersion],
		Option:       p[paramOption],
		Location:     p[paramLocation],
		ToLocation:   p[paramToLocation],
		Barcode:      p[paramBarcode],
		Quantity:     p[paramQuantity],
		Memo:         p[paramMemo],
	}
}

// Clone returns an independent copy of the bag.
func (p Params) Clone() Params {
	dup := make(Params, len(p))
	for k, v := range p {
		dup[k] = v
	}
	return dup
}

func setIfPresent(p Params, key, value string) {
	if value != "" {
		p[key] = value
	}
}
