package models

import "time"

// ReservationClaim is a locally recorded reservation. Claims are append-only.
type ReservationClaim struct {
	ID        string    `json:"id" db:"id"`
	GiftID    string    `json:"giftId" db:"gift_id"`
	GiftTitle string    `json:"giftTitle" db:"gift_title"`
	GuestName string    `json:"guestName" db:"guest_name"`
	Message   string    `json:"message,omitempty" db:"message"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	// Synced is false when the claim could not be written to the shared
	// spreadsheet and only exists on this device.
	Synced bool `json:"synced" db:"synced"`
}

// ReservationView is the merged reserved status of a single gift.
type ReservationView struct {
	Reserved   bool   `json:"reserved"`
	ReservedBy string `json:"reservedBy,omitempty"`
}

// RemoteReservation is the reservation status of one spreadsheet row.
type RemoteReservation struct {
	Reserved   bool   `json:"reserved"`
	ReservedBy string `json:"reservedBy"`
	Title      string `json:"title"`
	RowIndex   int    `json:"rowIndex"`
}
