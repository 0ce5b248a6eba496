package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/university-library/internal/application"
	"github.com/example/university-library/internal/ledger"
)

type memberService interface {
	CreateMember(ctx context.Context, params application.CreateMemberParams) (application.Member, error)
	UpdateMember(ctx context.Context, params application.UpdateMemberParams) (application.Member, error)
	GetMember(ctx context.Context, principal application.Principal, memberID string) (application.Member, error)
	ListMembers(ctx context.Context, principal application.Principal) ([]application.Member, error)
	DeleteMember(ctx context.Context, principal application.Principal, memberID string) error
}

type cardService interface {
	IssueCard(ctx context.Context, params application.IssueCardParams) (ledger.LibraryCard, error)
	SetCardStatus(ctx context.Context, params application.SetCardStatusParams) (ledger.LibraryCard, error)
}

type MemberHandler struct {
	service   memberService
	cards     cardService
	responder responder
}

func NewMemberHandler(service memberService, cards cardService, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{service: service, cards: cards, responder: newResponder(logger)}
}

func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	member, err := h.service.CreateMember(r.Context(), application.CreateMemberParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, memberResponse{Member: toMemberDTO(member)})
}

func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	memberID, ok := MemberIDFromContext(r.Context())
	if !ok || strings.TrimSpace(memberID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMemberID)
		return
	}

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	member, err := h.service.UpdateMember(r.Context(), application.UpdateMemberParams{
		Principal: principal,
		MemberID:  memberID,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, memberResponse{Member: toMemberDTO(member)})
}

func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	member, err := h.service.GetMember(r.Context(), principal, memberID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, memberResponse{Member: toMemberDTO(member)})
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	members, err := h.service.ListMembers(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listMembersResponse{Members: toMemberDTOs(members)})
}

func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	if err := h.service.DeleteMember(r.Context(), principal, memberID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// IssueCard hands a fresh library card to the member named in the path.
func (h *MemberHandler) IssueCard(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.cards == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	memberID, ok := MemberIDFromContext(r.Context())
	if !ok || strings.TrimSpace(memberID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMemberID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	card, err := h.cards.IssueCard(r.Context(), application.IssueCardParams{
		Principal: principal,
		MemberID:  memberID,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, cardResponse{Card: toCardDTO(&card)})
}

// UpdateCard toggles the member's card between active and suspended.
func (h *MemberHandler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.cards == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	memberID, ok := MemberIDFromContext(r.Context())
	if !ok || strings.TrimSpace(memberID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMemberID)
		return
	}

	var req cardStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	card, err := h.cards.SetCardStatus(r.Context(), application.SetCardStatusParams{
		Principal: principal,
		MemberID:  memberID,
		Status:    ledger.CardStatus(strings.ToUpper(strings.TrimSpace(req.Status))),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, cardResponse{Card: toCardDTO(&card)})
}

type memberRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

func (r memberRequest) toInput() application.MemberInput {
	return application.MemberInput{
		Name:       strings.TrimSpace(r.Name),
		Email:      strings.TrimSpace(r.Email),
		Password:   r.Password,
		Role:       ledger.Role(strings.ToUpper(strings.TrimSpace(r.Role))),
		Department: strings.TrimSpace(r.Department),
	}
}

type cardStatusRequest struct {
	Status string `json:"status"`
}

type memberDTO struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Role       string   `json:"role"`
	Department string   `json:"department,omitempty"`
	Card       *cardDTO `json:"card,omitempty"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
}

type cardDTO struct {
	Number    string `json:"number"`
	IssuedAt  string `json:"issued_at"`
	ExpiresAt string `json:"expires_at"`
	Status    string `json:"status"`
}

type memberResponse struct {
	Member memberDTO `json:"member"`
}

type listMembersResponse struct {
	Members []memberDTO `json:"members"`
}

type cardResponse struct {
	Card *cardDTO `json:"card"`
}

func toMemberDTO(member application.Member) memberDTO {
	return memberDTO{
		ID:         member.ID,
		Name:       member.Name,
		Email:      member.Email,
		Role:       string(member.Role),
		Department: member.Department,
		Card:       toCardDTO(member.Card),
		CreatedAt:  formatTimestamp(member.CreatedAt),
		UpdatedAt:  formatTimestamp(member.UpdatedAt),
	}
}

func toMemberDTOs(members []application.Member) []memberDTO {
	dtos := make([]memberDTO, 0, len(members))
	for _, member := range members {
		dtos = append(dtos, toMemberDTO(member))
	}
	return dtos
}

func toCardDTO(card *ledger.LibraryCard) *cardDTO {
	if card == nil {
		return nil
	}
	return &cardDTO{
		Number:    card.Number,
		IssuedAt:  formatTimestamp(card.IssuedAt),
		ExpiresAt: formatTimestamp(card.ExpiresAt),
		Status:    string(card.Status),
	}
}
