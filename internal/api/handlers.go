package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"intake.app/console/internal/core"
	"intake.app/console/internal/intakeapi"
	"intake.app/console/internal/objectstore"
)

type APIHandler struct {
	conversations *core.ConversationService
	reviews       *core.ReviewService
}

func NewAPIHandler(cs *core.ConversationService, rs *core.ReviewService) *APIHandler {
	return &APIHandler{conversations: cs, reviews: rs}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor maps engine and upstream errors onto HTTP statuses.
func statusFor(err error) int {
	var apiErr *intakeapi.APIError
	switch {
	case errors.Is(err, core.ErrNotCurrent), errors.Is(err, core.ErrClosed):
		return http.StatusConflict
	case errors.Is(err, core.ErrEmptyAnswer),
		errors.Is(err, core.ErrUnknownOption),
		errors.Is(err, core.ErrWrongInput),
		errors.Is(err, core.ErrOtherNotOpen),
		errors.Is(err, core.ErrIncompleteSections),
		errors.Is(err, core.ErrNoSelection),
		errors.Is(err, core.ErrEmptyComment),
		errors.Is(err, core.ErrNoDepartments),
		errors.Is(err, core.ErrUnknownDepartment):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNoSummary),
		errors.Is(err, core.ErrUnknownComment),
		errors.Is(err, objectstore.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, err error) {
	var apiErr *intakeapi.APIError
	msg := err.Error()
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		msg = apiErr.Detail
	}
	http.Error(w, msg, statusFor(err))
}

// Dashboard and sessions

func (h *APIHandler) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newDashboardDTO(h.conversations.Dashboard(r.Context())))
}

// ListSessionsHandler always answers 200; a backend failure shows up as the
// error banner.
func (h *APIHandler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	list := h.conversations.ListSessions(r.Context())
	writeJSON(w, http.StatusOK, SessionListDTO{Sessions: list.Sessions, Error: list.Error})
}

func (h *APIHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	sess, err := h.conversations.GetSession(r.Context(), sessionID)
	if err != nil {
		log.Printf("Error getting session %s: %v", sessionID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Conversation

func (h *APIHandler) StartChatHandler(w http.ResponseWriter, r *http.Request) {
	conv := h.conversations.Start(r.Context(), chi.URLParam(r, "sessionID"))
	writeJSON(w, http.StatusOK, newConversationDTO(conv.View()))
}

func (h *APIHandler) GetChatHandler(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newConversationDTO(conv.View()))
}

func (h *APIHandler) conversation(w http.ResponseWriter, r *http.Request) (*core.Conversation, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	conv, ok := h.conversations.Get(sessionID)
	if !ok {
		http.Error(w, "Session is not open; start it first", http.StatusNotFound)
		return nil, false
	}
	return conv, true
}

type SelectOptionRequest struct {
	MessageID string `json:"message_id"`
	Option    string `json:"option"`
}

type TextAnswerRequest struct {
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
}

type SectionsAnswerRequest struct {
	MessageID string   `json:"message_id"`
	Answers   []string `json:"answers"`
}

// answered writes the thread after an answer. A failed next-question call
// still returns the thread, which carries the recorded answer.
func (h *APIHandler) answered(w http.ResponseWriter, conv *core.Conversation, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, newConversationDTO(conv.View()))
		return
	}
	status := statusFor(err)
	if status == http.StatusBadGateway {
		writeJSON(w, status, newConversationDTO(conv.View()))
		return
	}
	http.Error(w, err.Error(), status)
}

func (h *APIHandler) SelectOptionHandler(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	var req SelectOptionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.answered(w, conv, h.conversations.SelectOption(r.Context(), conv, req.MessageID, req.Option))
}

func (h *APIHandler) SubmitOtherHandler(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	var req TextAnswerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.answered(w, conv, h.conversations.SubmitOther(r.Context(), conv, req.MessageID, req.Text))
}

func (h *APIHandler) SubmitTextHandler(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	var req TextAnswerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.answered(w, conv, h.conversations.SubmitText(r.Context(), conv, req.MessageID, req.Text))
}

func (h *APIHandler) SubmitSectionsHandler(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	var req SectionsAnswerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.answered(w, conv, h.conversations.SubmitSections(r.Context(), conv, req.MessageID, req.Answers))
}

type CompleteResponse struct {
	SessionID string `json:"session_id"`
	Uploaded  bool   `json:"uploaded"`
	Error     string `json:"error,omitempty"`
}

// CompleteChatHandler finalizes the session. Upload failures are reported
// in the body; the engine is closed either way.
func (h *APIHandler) CompleteChatHandler(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	resp := CompleteResponse{SessionID: conv.SessionID(), Uploaded: conv.FirstAnswer() != ""}
	if err := h.conversations.Complete(r.Context(), conv); err != nil {
		log.Printf("Error completing session %s: %v", conv.SessionID(), err)
		resp.Uploaded = false
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
