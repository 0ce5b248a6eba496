package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/university-library/internal/application"
)

type assistantService interface {
	Query(ctx context.Context, params application.AssistantQueryParams) (application.AssistantAnswer, error)
	Recommendations(ctx context.Context, params application.RecommendationsParams) (application.AssistantAnswer, error)
}

type AssistantHandler struct {
	service   assistantService
	responder responder
}

func NewAssistantHandler(service assistantService, logger *slog.Logger) *AssistantHandler {
	return &AssistantHandler{service: service, responder: newResponder(logger)}
}

func (h *AssistantHandler) Query(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req assistantQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	answer, err := h.service.Query(r.Context(), application.AssistantQueryParams{
		Principal: principal,
		Question:  strings.TrimSpace(req.Question),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, assistantAnswerResponse{
		Answer:   answer.Text,
		Fallback: answer.Fallback,
	})
}

func (h *AssistantHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req recommendationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	memberID := strings.TrimSpace(req.MemberID)
	if memberID == "" {
		memberID = principal.MemberID
	}

	answer, err := h.service.Recommendations(r.Context(), application.RecommendationsParams{
		Principal: principal,
		MemberID:  memberID,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, assistantAnswerResponse{
		Answer:   answer.Text,
		Fallback: answer.Fallback,
	})
}

type assistantQueryRequest struct {
	Question string `json:"question"`
}

type recommendationsRequest struct {
	MemberID string `json:"member_id"`
}

type assistantAnswerResponse struct {
	Answer   string `json:"answer"`
	Fallback bool   `json:"fallback"`
}
