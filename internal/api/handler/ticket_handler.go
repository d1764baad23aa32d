package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/deskhub/helpdesk/internal/api/middleware"
	"github.com/deskhub/helpdesk/internal/domain"
	"github.com/deskhub/helpdesk/internal/service"
)

// TicketHandler handles the ticket endpoints.
type TicketHandler struct {
	svc    *service.TicketService
	logger *zap.Logger
}

func NewTicketHandler(svc *service.TicketService, logger *zap.Logger) *TicketHandler {
	return &TicketHandler{svc: svc, logger: logger}
}

// Create handles POST /api/v1/tickets
func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	t, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.logger.Warn("create ticket failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, t)
}

// GetByID handles GET /api/v1/tickets/{id}
func (h *TicketHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// updateTicketRequest mirrors domain.TicketChange at the wire level.
// assignee_id, team_id and paused_until keep their raw JSON so that an
// explicit null (clear the field) is distinguishable from absence.
type updateTicketRequest struct {
	Title       *string          `json:"title"`
	Note        *string          `json:"note"`
	Done        *bool            `json:"done"`
	Priority    *domain.Priority `json:"priority"`
	AssigneeID  json.RawMessage  `json:"assignee_id"`
	TeamID      json.RawMessage  `json:"team_id"`
	PausedUntil json.RawMessage  `json:"paused_until"`
}

func (req *updateTicketRequest) change() (domain.TicketChange, error) {
	change := domain.TicketChange{
		Title:    req.Title,
		Note:     req.Note,
		Done:     req.Done,
		Priority: req.Priority,
	}

	if req.AssigneeID != nil {
		v, err := optionalString(req.AssigneeID)
		if err != nil {
			return change, err
		}
		change.AssigneeID = &v
	}
	if req.TeamID != nil {
		v, err := optionalString(req.TeamID)
		if err != nil {
			return change, err
		}
		change.TeamID = &v
	}
	if req.PausedUntil != nil {
		var v *time.Time
		if string(req.PausedUntil) != "null" {
			var t time.Time
			if err := json.Unmarshal(req.PausedUntil, &t); err != nil {
				return change, err
			}
			v = &t
		}
		change.PausedUntil = &v
	}
	return change, nil
}

func optionalString(raw json.RawMessage) (*string, error) {
	if string(raw) == "null" {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Update handles PATCH /api/v1/tickets/{id}
func (h *TicketHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	change, err := req.change()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	t, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), change)
	if err != nil {
		h.logger.Warn("update ticket failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.String("ticket_id", chi.URLParam(r, "id")),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// AddComment handles POST /api/v1/tickets/{id}/comments
func (h *TicketHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AuthorID string `json:"author_id"`
		Text     string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AuthorID == "" || req.Text == "" {
		respondError(w, http.StatusBadRequest, "author_id and text are required")
		return
	}

	c, err := h.svc.AddComment(r.Context(), chi.URLParam(r, "id"), req.AuthorID, req.Text)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// AddCoAssignee handles POST /api/v1/tickets/{id}/co-assignees
func (h *TicketHandler) AddCoAssignee(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	t, err := h.svc.AddCoAssignee(r.Context(), chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}
