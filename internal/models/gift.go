package models

import "time"

// DefaultOrder is the display rank given to rows whose order cell is absent or
// unparsable. It places them after every explicitly ordered row.
const DefaultOrder = 999

// Gift represents one catalog entry sourced from a spreadsheet row.
type Gift struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ProductURL string `json:"productUrl"`
	ImageURL   string `json:"imageUrl"`
	Order      int    `json:"order"`
	Visible    bool   `json:"visible"`
	Reserved   bool   `json:"reserved"`
	ReservedBy string `json:"reservedBy,omitempty"`
	// ReservationColumns is set when the row carried the reserved column, so
	// Reserved reflects the spreadsheet rather than a default.
	ReservationColumns bool `json:"reservationColumns,omitempty"`
	// RowIndex is the 1-based physical spreadsheet row (the header is row 1).
	RowIndex int `json:"rowIndex,omitempty"`
	// Position is the 0-based line the gift was parsed from. It breaks ties
	// between gifts sharing the same Order.
	Position int `json:"position"`
}

// Less orders gifts by Order, then by their original row position.
func (g Gift) Less(other Gift) bool {
	if g.Order != other.Order {
		return g.Order < other.Order
	}
	return g.Position < other.Position
}

// CacheEntry is the last successfully fetched catalog.
type CacheEntry struct {
	Gifts     []Gift `json:"gifts"`
	FetchedAt int64  `json:"fetchedAtEpochMs"`
	Source    string `json:"sourceLabel"`
}

// Age returns how long ago the entry was fetched.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(e.FetchedAt))
}

// IsFresh reports whether now - FetchedAt < ttl. A nil entry is never fresh.
func (e *CacheEntry) IsFresh(now time.Time, ttl time.Duration) bool {
	if e == nil {
		return false
	}
	return now.UnixMilli()-e.FetchedAt < ttl.Milliseconds()
}
