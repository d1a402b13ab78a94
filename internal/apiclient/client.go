// Package apiclient talks to a remote gift list API and can stand in for
// direct spreadsheet access.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/giftlist/internal/api"
	"github.com/Kerhoff/giftlist/internal/models"
)

const (
	defaultTimeout = 10 * time.Second
	healthTimeout  = 3 * time.Second
	maxBodyBytes   = 1 << 20
)

// ErrMalformedResponse is returned when a response lacks a required field.
var ErrMalformedResponse = errors.New("malformed API response")

// Client calls the reserve-gift, sync-reservations and health endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logrus.Logger
}

// New creates a Client for baseURL, e.g. "https://lista.example.com".
func New(baseURL string, httpClient *http.Client, logger *logrus.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// Wire shapes with pointer fields so missing keys are detectable.
type reserveGiftWire struct {
	Success       *bool   `json:"success"`
	Message       *string `json:"message"`
	RowIndex      *int    `json:"rowIndex"`
	SheetsUpdated bool    `json:"sheets_updated"`
	Warning       string  `json:"warning"`
}

type reservationWire struct {
	Reserved   *bool   `json:"reserved"`
	ReservedBy *string `json:"reservedBy"`
	Title      string  `json:"title"`
	RowIndex   int     `json:"rowIndex"`
}

type syncWire struct {
	Success *bool                      `json:"success"`
	Data    map[string]reservationWire `json:"data"`
	Count   *int                       `json:"count"`
	Error   string                     `json:"error"`
}

type healthWire struct {
	Status    *string    `json:"status"`
	Timestamp *time.Time `json:"timestamp"`
}

// ReserveGift posts a reservation.
func (c *Client) ReserveGift(ctx context.Context, req api.ReserveGiftRequest) (*api.ReserveGiftResponse, error) {
	var wire reserveGiftWire
	if err := c.do(ctx, http.MethodPost, "/api/reserve-gift", req, &wire); err != nil {
		return nil, err
	}
	if wire.Success == nil || wire.Message == nil || wire.RowIndex == nil {
		return nil, fmt.Errorf("%w: reserve-gift needs success, message and rowIndex", ErrMalformedResponse)
	}
	return &api.ReserveGiftResponse{
		Success:       *wire.Success,
		Message:       *wire.Message,
		GiftTitle:     req.GiftTitle,
		ReservedBy:    req.ReservedBy,
		RowIndex:      *wire.RowIndex,
		SheetsUpdated: wire.SheetsUpdated,
		Warning:       wire.Warning,
	}, nil
}

// SyncReservations fetches the reserved rows.
func (c *Client) SyncReservations(ctx context.Context) (map[string]models.RemoteReservation, error) {
	var wire syncWire
	if err := c.do(ctx, http.MethodGet, "/api/sync-reservations", nil, &wire); err != nil {
		return nil, err
	}
	if wire.Success == nil {
		return nil, fmt.Errorf("%w: sync-reservations needs success", ErrMalformedResponse)
	}
	if !*wire.Success {
		return nil, fmt.Errorf("sync-reservations failed: %s", wire.Error)
	}
	if wire.Data == nil || wire.Count == nil {
		return nil, fmt.Errorf("%w: sync-reservations needs data and count", ErrMalformedResponse)
	}

	out := make(map[string]models.RemoteReservation, len(wire.Data))
	for id, r := range wire.Data {
		if r.Reserved == nil || r.ReservedBy == nil {
			return nil, fmt.Errorf("%w: entry %s needs reserved and reservedBy", ErrMalformedResponse, id)
		}
		out[id] = models.RemoteReservation{
			Reserved:   *r.Reserved,
			ReservedBy: *r.ReservedBy,
			Title:      r.Title,
			RowIndex:   r.RowIndex,
		}
	}
	return out, nil
}

// Health checks the API.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var wire healthWire
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &wire); err != nil {
		return nil, err
	}
	if wire.Status == nil || wire.Timestamp == nil {
		return nil, fmt.Errorf("%w: health needs status and timestamp", ErrMalformedResponse)
	}
	return &api.HealthResponse{Status: *wire.Status, Timestamp: *wire.Timestamp}, nil
}

// Available reports whether the API answers its health check.
func (c *Client) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()

	h, err := c.Health(ctx)
	if err != nil {
		c.logger.WithError(err).Debug("Reservation API health check failed")
		return false
	}
	return h.Status == "OK"
}

// Write reserves a row through the API. Only a confirmed sheet update counts
// as success.
func (c *Client) Write(ctx context.Context, giftID, title, guestName string, rowIndex int) bool {
	resp, err := c.ReserveGift(ctx, api.ReserveGiftRequest{
		GiftTitle:  title,
		ReservedBy: guestName,
		RowIndex:   &rowIndex,
		GiftID:     giftID,
	})
	if err != nil {
		c.logger.WithError(err).WithField("gift_id", giftID).Error("Reservation API call failed")
		return false
	}
	if !resp.Success || !resp.SheetsUpdated {
		c.logger.WithFields(logrus.Fields{
			"gift_id": giftID,
			"warning": resp.Warning,
		}).Warn("Reservation API did not update the sheet")
		return false
	}
	return true
}

// ReadAll is SyncReservations.
func (c *Client) ReadAll(ctx context.Context) (map[string]models.RemoteReservation, error) {
	return c.SyncReservations(ctx)
}

func (c *Client) do(ctx context.Context, method, path string, body, dst any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}

	// sync-reservations reports read failures as a 500 with a JSON body.
	if resp.StatusCode >= 400 && !(resp.StatusCode == http.StatusInternalServerError && json.Valid(raw)) {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
