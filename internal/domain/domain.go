package domain

// InventoryRow is one line of the remote inventory listing.
type InventoryRow struct {
	ItemID       string `json:"item_id"`
	Artist       string `json:"artist"`
	Category     string `json:"category"`
	AlbumVersion string `json:"album_version"`
	Option       string `json:"option,omitempty"`
	Location     string `json:"location"`
	Quantity     int    `json:"quantity"`
	Barcode      string `json:"barcode,omitempty"`
}

// MetaInfo is the authoritative item metadata the backend requires for a
// transfer. Artist, Category and AlbumVersion must be non-empty before a
// transfer may be submitted.
type MetaInfo struct {
	Artist       string `json:"artist"`
	Category     string `json:"category"`
	AlbumVersion string `json:"album_version"`
	Option       string `json:"option,omitempty"`
}

// Complete reports whether every required field is present.
func (m MetaInfo) Complete() bool {
	return m.Artist != "" && m.Category != "" && m.AlbumVersion != ""
}

// Movement is the wire payload for a stock movement submission.
type Movement struct {
	Artist         string `json:"artist"`
	Category       string `json:"category"`
	AlbumVersion   string `json:"album_version"`
	Option         string `json:"option,omitempty"`
	Location       string `json:"location"`
	Quantity       int    `json:"quantity"`
	Direction      string `json:"direction"`
	Memo           string `json:"memo,omitempty"`
	Barcode        string `json:"barcode,omitempty"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// Transfer is the wire payload for a location transfer submission.
type Transfer struct {
	ItemID         string `json:"item_id,omitempty"`
	Artist         string `json:"artist"`
	Category       string `json:"category"`
	AlbumVersion   string `json:"album_version"`
	Option         string `json:"option,omitempty"`
	FromLocation   string `json:"from_location"`
	ToLocation     string `json:"to_location"`
	Quantity       int    `json:"quantity"`
	Memo           string `json:"memo,omitempty"`
	Barcode        string `json:"barcode,omitempty"`
	IdempotencyKey string `json:"idempotencyKey"`
}
