package api

import (
	"time"

	"github.com/Kerhoff/giftlist/internal/models"
	"github.com/Kerhoff/giftlist/internal/service"
)

// ReserveGiftRequest is the body of POST /api/reserve-gift.
type ReserveGiftRequest struct {
	GiftTitle  string `json:"giftTitle"`
	ReservedBy string `json:"reservedBy"`
	RowIndex   *int   `json:"rowIndex"`
	GiftID     string `json:"giftId,omitempty"`
}

// ReserveGiftResponse is returned by POST /api/reserve-gift. Success is true
// even when the sheet was not updated; Warning and SheetsUpdated carry the
// difference.
type ReserveGiftResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	GiftTitle     string `json:"giftTitle"`
	ReservedBy    string `json:"reservedBy"`
	RowIndex      int    `json:"rowIndex"`
	SheetsUpdated bool   `json:"sheets_updated,omitempty"`
	RangeUpdated  string `json:"range_updated,omitempty"`
	Warning       string `json:"warning,omitempty"`
}

// SyncReservationsResponse is returned by GET /api/sync-reservations.
type SyncReservationsResponse struct {
	Success   bool                                `json:"success"`
	Data      map[string]models.RemoteReservation `json:"data"`
	Count     int                                 `json:"count"`
	Timestamp *time.Time                          `json:"timestamp,omitempty"`
	Message   string                              `json:"message,omitempty"`
	Error     string                              `json:"error,omitempty"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// GiftsResponse is returned by GET /api/gifts.
type GiftsResponse struct {
	Gifts  []models.Gift      `json:"gifts"`
	Count  int                `json:"count"`
	Status service.SyncStatus `json:"status"`
}

// CreateReservationRequest is the body of POST /api/reservations.
type CreateReservationRequest struct {
	GiftID    string `json:"giftId"`
	GuestName string `json:"guestName"`
	Message   string `json:"message,omitempty"`
}

// CreateReservationResponse is returned by POST /api/reservations.
type CreateReservationResponse struct {
	Success      bool                    `json:"success"`
	Claim        models.ReservationClaim `json:"claim"`
	Synced       bool                    `json:"synced"`
	Warning      string                  `json:"warning,omitempty"`
	Notification string                  `json:"notificationError,omitempty"`
}
