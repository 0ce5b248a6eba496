package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/university-library/internal/application"
)

type lendingService interface {
	Borrow(ctx context.Context, params application.BorrowParams) (application.Loan, error)
	Return(ctx context.Context, params application.ReturnParams) (application.Loan, error)
	Reserve(ctx context.Context, params application.ReserveParams) (application.Reservation, error)
	CancelReservation(ctx context.Context, params application.CancelReservationParams) error
	MemberLoans(ctx context.Context, principal application.Principal, memberID string) ([]application.Loan, error)
	MemberReservations(ctx context.Context, principal application.Principal, memberID string) ([]application.Reservation, error)
}

type LendingHandler struct {
	service   lendingService
	responder responder
}

func NewLendingHandler(service lendingService, logger *slog.Logger) *LendingHandler {
	return &LendingHandler{service: service, responder: newResponder(logger)}
}

func (h *LendingHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req borrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if strings.TrimSpace(req.BookID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	loan, err := h.service.Borrow(r.Context(), application.BorrowParams{
		Principal: principal,
		BookID:    strings.TrimSpace(req.BookID),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, loanResponse{Loan: toLoanDTO(loan)})
}

func (h *LendingHandler) Return(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req returnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if strings.TrimSpace(req.BookID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	loan, err := h.service.Return(r.Context(), application.ReturnParams{
		Principal: principal,
		BookID:    strings.TrimSpace(req.BookID),
		MemberID:  strings.TrimSpace(req.MemberID),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, loanResponse{Loan: toLoanDTO(loan)})
}

func (h *LendingHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if strings.TrimSpace(req.BookID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	reservation, err := h.service.Reserve(r.Context(), application.ReserveParams{
		Principal: principal,
		BookID:    strings.TrimSpace(req.BookID),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, reservationResponse{Reservation: toReservationDTO(reservation)})
}

func (h *LendingHandler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	reservationID, ok := ReservationIDFromContext(r.Context())
	if !ok || strings.TrimSpace(reservationID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservationID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	if err := h.service.CancelReservation(r.Context(), application.CancelReservationParams{
		Principal:     principal,
		ReservationID: reservationID,
	}); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// ListLoans lists the caller's lending history. Administrators may pass a
// member_id query parameter to inspect another member.
func (h *LendingHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	memberID := strings.TrimSpace(r.URL.Query().Get("member_id"))
	if memberID == "" {
		memberID = principal.MemberID
	}

	loans, err := h.service.MemberLoans(r.Context(), principal, memberID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listLoansResponse{Loans: toLoanDTOs(loans)})
}

// ListReservations lists the caller's reservations. Administrators may pass
// a member_id query parameter to inspect another member.
func (h *LendingHandler) ListReservations(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	memberID := strings.TrimSpace(r.URL.Query().Get("member_id"))
	if memberID == "" {
		memberID = principal.MemberID
	}

	reservations, err := h.service.MemberReservations(r.Context(), principal, memberID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listReservationsResponse{Reservations: toReservationDTOs(reservations)})
}

// MemberLoans lists the lending history of the member named in the path.
func (h *LendingHandler) MemberLoans(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	memberID, ok := MemberIDFromContext(r.Context())
	if !ok || strings.TrimSpace(memberID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMemberID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	loans, err := h.service.MemberLoans(r.Context(), principal, memberID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listLoansResponse{Loans: toLoanDTOs(loans)})
}

// MemberReservations lists the reservations of the member named in the path.
func (h *LendingHandler) MemberReservations(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	memberID, ok := MemberIDFromContext(r.Context())
	if !ok || strings.TrimSpace(memberID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMemberID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	reservations, err := h.service.MemberReservations(r.Context(), principal, memberID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listReservationsResponse{Reservations: toReservationDTOs(reservations)})
}

type borrowRequest struct {
	BookID string `json:"book_id"`
}

type returnRequest struct {
	BookID   string `json:"book_id"`
	MemberID string `json:"member_id"`
}

type reserveRequest struct {
	BookID string `json:"book_id"`
}

type loanDTO struct {
	ID         string `json:"id"`
	BookID     string `json:"book_id"`
	MemberID   string `json:"member_id"`
	BorrowedAt string `json:"borrowed_at"`
	DueAt      string `json:"due_at"`
	ReturnedAt string `json:"returned_at,omitempty"`
}

type reservationDTO struct {
	ID          string `json:"id"`
	BookID      string `json:"book_id"`
	MemberID    string `json:"member_id"`
	ReservedAt  string `json:"reserved_at"`
	ExpiresAt   string `json:"expires_at"`
	CancelledAt string `json:"cancelled_at,omitempty"`
}

type loanResponse struct {
	Loan loanDTO `json:"loan"`
}

type listLoansResponse struct {
	Loans []loanDTO `json:"loans"`
}

type reservationResponse struct {
	Reservation reservationDTO `json:"reservation"`
}

type listReservationsResponse struct {
	Reservations []reservationDTO `json:"reservations"`
}

func toLoanDTO(loan application.Loan) loanDTO {
	dto := loanDTO{
		ID:         loan.ID,
		BookID:     loan.BookID,
		MemberID:   loan.MemberID,
		BorrowedAt: formatTimestamp(loan.BorrowedAt),
		DueAt:      formatTimestamp(loan.DueAt),
	}
	if loan.ReturnedAt != nil {
		dto.ReturnedAt = formatTimestamp(*loan.ReturnedAt)
	}
	return dto
}

func toLoanDTOs(loans []application.Loan) []loanDTO {
	dtos := make([]loanDTO, 0, len(loans))
	for _, loan := range loans {
		dtos = append(dtos, toLoanDTO(loan))
	}
	return dtos
}

func toReservationDTO(reservation application.Reservation) reservationDTO {
	dto := reservationDTO{
		ID:         reservation.ID,
		BookID:     reservation.BookID,
		MemberID:   reservation.MemberID,
		ReservedAt: formatTimestamp(reservation.ReservedAt),
		ExpiresAt:  formatTimestamp(reservation.ExpiresAt),
	}
	if reservation.CancelledAt != nil {
		dto.CancelledAt = formatTimestamp(*reservation.CancelledAt)
	}
	return dto
}

func toReservationDTOs(reservations []application.Reservation) []reservationDTO {
	dtos := make([]reservationDTO, 0, len(reservations))
	for _, reservation := range reservations {
		dtos = append(dtos, toReservationDTO(reservation))
	}
	return dtos
}
