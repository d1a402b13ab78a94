package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/giftlist/internal/models"
	"github.com/Kerhoff/giftlist/internal/reservation"
	"github.com/Kerhoff/giftlist/internal/service"
	"github.com/Kerhoff/giftlist/internal/sheets"
)

// Server provides the HTTP API used by the gift list front end.
type Server struct {
	svc       *service.Service
	sheet     reservation.RemoteStore
	sheetName string
	logger    *logrus.Logger
	mux       *http.ServeMux
	now       func() time.Time
}

// NewServer creates a Server, registers all routes, and returns it. sheet
// backs the direct reserve-gift and sync-reservations endpoints; it may be
// unavailable.
func NewServer(svc *service.Service, sheet reservation.RemoteStore, sheetName string, logger *logrus.Logger) *Server {
	if sheetName == "" {
		sheetName = sheets.DefaultSheetName
	}
	s := &Server{
		svc:       svc,
		sheet:     sheet,
		sheetName: sheetName,
		logger:    logger,
		mux:       http.NewServeMux(),
		now:       time.Now,
	}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.withCORS(s.mux)
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func (s *Server) routes() {
	// API – shared sheet
	s.mux.HandleFunc("POST /api/reserve-gift", s.handleReserveGift)
	s.mux.HandleFunc("GET /api/sync-reservations", s.handleSyncReservations)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// API – catalog and reservation flow
	s.mux.HandleFunc("GET /api/gifts", s.handleGetGifts)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("POST /api/reservations", s.handleCreateReservation)
}

// withCORS answers preflight requests and allows any origin on /api/.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			h := w.Header()
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Methods", "GET,OPTIONS,POST")
			h.Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, X-Requested-With")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads the request body into dst and returns an error message on
// failure.  The caller should return immediately when ok == false.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// ---------------------------------------------------------------------------
// Shared sheet
// ---------------------------------------------------------------------------

func (s *Server) handleReserveGift(w http.ResponseWriter, r *http.Request) {
	var req ReserveGiftRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	title := strings.TrimSpace(req.GiftTitle)
	guest := strings.TrimSpace(req.ReservedBy)
	if title == "" || guest == "" || req.RowIndex == nil {
		s.respondError(w, http.StatusBadRequest, "giftTitle, reservedBy and rowIndex are required")
		return
	}
	row := *req.RowIndex

	resp := ReserveGiftResponse{
		Success:    true,
		GiftTitle:  title,
		ReservedBy: guest,
		RowIndex:   row,
	}
	log := s.logger.WithFields(logrus.Fields{
		"gift_title":  title,
		"reserved_by": guest,
		"row_index":   row,
	})

	if s.sheet == nil || !s.sheet.Available() {
		log.Warn("Sheets not configured, reservation kept locally")
		resp.Message = "Gift reserved locally (Google Sheets not configured)"
		resp.Warning = "Google Sheets not configured"
		s.respondJSON(w, http.StatusOK, resp)
		return
	}

	if !s.sheet.Write(r.Context(), req.GiftID, title, guest, row) {
		resp.Message = "Gift reserved locally (sheet update failed)"
		resp.Warning = "Failed to update the spreadsheet"
		s.respondJSON(w, http.StatusOK, resp)
		return
	}

	resp.Message = "Gift reserved in the shared spreadsheet"
	resp.SheetsUpdated = true
	resp.RangeUpdated = sheets.RangeFor(s.sheetName, row)
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSyncReservations(w http.ResponseWriter, r *http.Request) {
	if s.sheet == nil || !s.sheet.Available() {
		s.respondJSON(w, http.StatusOK, SyncReservationsResponse{
			Success: true,
			Data:    map[string]models.RemoteReservation{},
			Message: "Google Sheets not configured",
		})
		return
	}

	all, err := s.sheet.ReadAll(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("failed to read reservations")
		s.respondJSON(w, http.StatusInternalServerError, SyncReservationsResponse{
			Success: false,
			Error:   "failed to read spreadsheet",
		})
		return
	}

	reserved := make(map[string]models.RemoteReservation)
	for id, res := range all {
		if res.Reserved {
			reserved[id] = res
		}
	}

	now := s.now().UTC()
	s.logger.WithField("count", len(reserved)).Info("Reservations synced")
	s.respondJSON(w, http.StatusOK, SyncReservationsResponse{
		Success:   true,
		Data:      reserved,
		Count:     len(reserved),
		Timestamp: &now,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthResponse{Status: "OK", Timestamp: s.now().UTC()})
}

// ---------------------------------------------------------------------------
// Catalog and reservation flow
// ---------------------------------------------------------------------------

func (s *Server) handleGetGifts(w http.ResponseWriter, r *http.Request) {
	gifts := s.svc.Gifts()
	if gifts == nil {
		gifts = []models.Gift{}
	}
	s.respondJSON(w, http.StatusOK, GiftsResponse{
		Gifts:  gifts,
		Count:  len(gifts),
		Status: s.svc.Catalog.Status(),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Refresh(r.Context())
	switch {
	case err == nil:
		s.respondJSON(w, http.StatusOK, s.svc.Catalog.Status())
	case errors.Is(err, service.ErrSyncInFlight), errors.Is(err, service.ErrSyncSuperseded):
		s.respondError(w, http.StatusConflict, "superseded by another catalog refresh")
	default:
		s.logger.WithError(err).Error("failed to refresh catalog")
		s.respondError(w, http.StatusBadGateway, "failed to refresh catalog")
	}
}

func (s *Server) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	var req CreateReservationRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if strings.TrimSpace(req.GiftID) == "" {
		s.respondError(w, http.StatusBadRequest, "giftId is required")
		return
	}

	out, err := s.svc.Reservations.Reserve(r.Context(), req.GiftID, req.GuestName, req.Message)
	switch {
	case err == nil:
	case errors.Is(err, reservation.ErrGuestNameRequired):
		s.respondError(w, http.StatusBadRequest, "guestName is required")
		return
	case errors.Is(err, reservation.ErrGiftNotFound):
		s.respondError(w, http.StatusNotFound, "gift not found")
		return
	case errors.Is(err, reservation.ErrAlreadyReserved):
		s.respondError(w, http.StatusConflict, "gift is already reserved")
		return
	case errors.Is(err, reservation.ErrRemoteWrite):
		s.respondError(w, http.StatusBadGateway, "could not update the shared list, please try again")
		return
	default:
		s.logger.WithError(err).Error("failed to reserve gift")
		s.respondError(w, http.StatusInternalServerError, "failed to reserve gift")
		return
	}

	resp := CreateReservationResponse{
		Success: true,
		Claim:   out.Claim,
		Synced:  out.Synced,
		Warning: out.Warning,
	}
	if out.NotificationErr != nil {
		resp.Notification = "notification could not be delivered"
	}
	s.respondJSON(w, http.StatusOK, resp)
}
