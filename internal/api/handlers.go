package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rentescrow/internal/models"
)

const userIDHeaderDefault = "x-user-id"

var errMissingUserID = errors.New("missing or invalid user id")

// userID reads the acting user set by the fronting API layer.
func (s *HTTPServer) userID(r *http.Request) (int64, error) {
	header := strings.TrimSpace(s.cfg.Auth.HeaderUserID)
	if header == "" {
		header = userIDHeaderDefault
	}
	id, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(header)), 10, 64)
	if err != nil || id <= 0 {
		return 0, errMissingUserID
	}
	return id, nil
}

func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// parseOptionalDate parses YYYY-MM-DD; an empty string yields nil.
func parseOptionalDate(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := models.ParseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s; expected YYYY-MM-DD", field)
	}
	return &t, nil
}

func bookingID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid booking id")
	}
	return id, nil
}

type saveUserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

func (s *HTTPServer) handleSaveUser(w http.ResponseWriter, r *http.Request) {
	if s.deps.Users == nil {
		writeError(w, http.StatusNotImplemented, "user sync is disabled")
		return
	}

	var body saveUserRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user := &models.User{
		Email:     body.Email,
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Phone:     body.Phone,
	}
	if err := s.deps.Users.SaveUser(r.Context(), user); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func listingID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid listing id")
	}
	return id, nil
}

type listingStatusRequest struct {
	Status string `json:"status"`
}

func (s *HTTPServer) handleSetListingStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Listings == nil {
		writeError(w, http.StatusNotImplemented, "listing updates are disabled")
		return
	}
	id, err := listingID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body listingStatusRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	l, err := s.deps.Listings.SetStatus(r.Context(), id, body.Status)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listing": l})
}

func (s *HTTPServer) handleSetListingBank(w http.ResponseWriter, r *http.Request) {
	if s.deps.Listings == nil {
		writeError(w, http.StatusNotImplemented, "listing updates are disabled")
		return
	}
	id, err := listingID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body models.BankDetails
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	l, err := s.deps.Listings.SetBankDetails(r.Context(), id, body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listing": l})
}

type saveIntentRequest struct {
	ListingType string `json:"listing_type"`
	ListingID   int64  `json:"listing_id"`
	CheckIn     string `json:"check_in"`
	CheckOut    string `json:"check_out"`
}

func (s *HTTPServer) handleSaveIntent(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var body saveIntentRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	checkIn, err := parseOptionalDate("check_in", body.CheckIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	checkOut, err := parseOptionalDate("check_out", body.CheckOut)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := s.deps.Bookings.SaveIntent(r.Context(), models.SaveIntentRequest{
		UserID:      userID,
		ListingType: body.ListingType,
		ListingID:   body.ListingID,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"booking": booking})
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	bookings, err := s.deps.Bookings.ListBookings(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []*models.BookingView{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleConfirmBooking(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.bookingAction(w, r)
	if !ok {
		return
	}

	res, err := s.deps.Bookings.ConfirmBooking(r.Context(), id, userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.bookingAction(w, r)
	if !ok {
		return
	}

	booking, err := s.deps.Bookings.CancelBooking(r.Context(), id, userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": booking})
}

func (s *HTTPServer) handleRequestRefund(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.bookingAction(w, r)
	if !ok {
		return
	}

	booking, err := s.deps.Bookings.RequestRefund(r.Context(), id, userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": booking})
}

func (s *HTTPServer) handleReleaseFunds(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.bookingAction(w, r)
	if !ok {
		return
	}

	booking, err := s.deps.Bookings.ReleaseFunds(r.Context(), id, userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": booking})
}

// bookingAction extracts the acting user and the booking id, writing the error response itself.
func (s *HTTPServer) bookingAction(w http.ResponseWriter, r *http.Request) (userID, id int64, ok bool) {
	userID, err := s.userID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return 0, 0, false
	}
	id, err = bookingID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return userID, id, true
}

type paymentRequest struct {
	ListingType string `json:"listing_type"`
	ListingID   int64  `json:"listing_id"`
	PaymentType string `json:"payment_type"`
	CheckIn     string `json:"check_in"`
	CheckOut    string `json:"check_out"`
	RoomTypeID  *int64 `json:"room_type_id"`
}

func (s *HTTPServer) handleInitiatePayment(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var body paymentRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	checkIn, err := parseOptionalDate("check_in", body.CheckIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	checkOut, err := parseOptionalDate("check_out", body.CheckOut)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.Bookings.InitiatePayment(r.Context(), models.PaymentRequest{
		UserID:      userID,
		ListingType: body.ListingType,
		ListingID:   body.ListingID,
		PaymentType: body.PaymentType,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		RoomTypeID:  body.RoomTypeID,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Exporter == nil {
		writeError(w, http.StatusNotImplemented, "exports are disabled")
		return
	}

	q := r.URL.Query()
	start, err := models.ParseDate(strings.TrimSpace(q.Get("start")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start; expected YYYY-MM-DD")
		return
	}
	end, err := models.ParseDate(strings.TrimSpace(q.Get("end")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end; expected YYYY-MM-DD")
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end is before start")
		return
	}

	// end date is inclusive
	endOfDay := end.AddDate(0, 0, 1).Add(-time.Nanosecond)

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="bookings_%s_to_%s.xlsx"`,
		models.FormatDate(start), models.FormatDate(end)))
	if err := s.deps.Exporter.Export(r.Context(), w, start, endOfDay); err != nil {
		s.logger.Error().Err(err).Msg("export failed")
		w.Header().Del("Content-Disposition")
		writeError(w, http.StatusInternalServerError, "export failed")
	}
}
