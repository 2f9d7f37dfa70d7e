package api

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"intake.app/console/internal/core"
	"intake.app/console/internal/store"
)

// Transcripts

func (h *APIHandler) GetTranscriptHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	entries, err := h.reviews.Transcript(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []store.TranscriptEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *APIHandler) SaveTranscriptHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.conversations.SaveTranscript(r.Context(), sessionID); err != nil {
		log.Printf("Error saving transcript for session %s: %v", sessionID, err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Summary review

func (h *APIHandler) review(r *http.Request) *core.Review {
	return h.reviews.Review(r.Context(), chi.URLParam(r, "sessionID"))
}

func (h *APIHandler) writeReview(w http.ResponseWriter, status int, rv *core.Review) {
	v := rv.View()
	rendered, err := rv.RenderHTML()
	if err != nil {
		log.Printf("Error rendering summary for session %s: %v", v.SessionID, err)
	}
	segs := rv.Segments()
	if segs == nil {
		segs = []core.Segment{}
	}
	writeJSON(w, status, ReviewDTO{
		SessionID:  v.SessionID,
		Summary:    v.Summary,
		HasSummary: v.HasSummary,
		HTML:       rendered,
		Highlight:  rv.HighlightMode(),
		Segments:   segs,
		Comments:   v.Comments,
		Pending:    v.Pending,
		Loading:    v.Loading,
		Error:      v.LastError,
	})
}

func (h *APIHandler) GetSummaryHandler(w http.ResponseWriter, r *http.Request) {
	h.writeReview(w, http.StatusOK, h.review(r))
}

// GenerateSummaryHandler answers with the review state; on failure the
// status is 502 and the previous summary is kept.
func (h *APIHandler) GenerateSummaryHandler(w http.ResponseWriter, r *http.Request) {
	rv := h.review(r)
	status := http.StatusOK
	if err := rv.Generate(r.Context()); err != nil {
		status = statusFor(err)
	}
	h.writeReview(w, status, rv)
}

func (h *APIHandler) RegenerateSummaryHandler(w http.ResponseWriter, r *http.Request) {
	rv := h.review(r)
	status := http.StatusOK
	if err := rv.Regenerate(r.Context()); err != nil {
		status = statusFor(err)
	}
	h.writeReview(w, status, rv)
}

type SelectionRequest struct {
	Text        string    `json:"text"`
	InContainer bool      `json:"in_container"`
	Box         core.Rect `json:"box"`
}

// SelectionHandler opens a pending selection. A dropped selection answers
// 200 with no pending field.
func (h *APIHandler) SelectionHandler(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rv := h.review(r)
	if _, err := rv.Select(core.Selection{Text: req.Text, InContainer: req.InContainer, Box: req.Box}); err != nil {
		writeError(w, err)
		return
	}
	h.writeReview(w, http.StatusOK, rv)
}

func (h *APIHandler) ClearSelectionHandler(w http.ResponseWriter, r *http.Request) {
	rv := h.review(r)
	rv.ClearSelection()
	h.writeReview(w, http.StatusOK, rv)
}

type CommentRequest struct {
	Comment string `json:"comment"`
}

func (h *APIHandler) AddCommentHandler(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.review(r).AddComment(req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *APIHandler) DeleteCommentHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.review(r).DeleteComment(chi.URLParam(r, "commentID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Department tagging

func (h *APIHandler) routing(w http.ResponseWriter, r *http.Request) (*core.Routing, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	rt, err := h.reviews.Routing(sessionID)
	if err != nil {
		log.Printf("Error loading routing for session %s: %v", sessionID, err)
		http.Error(w, "Failed to load routing", http.StatusInternalServerError)
		return nil, false
	}
	return rt, true
}

func (h *APIHandler) GetTaggingHandler(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.routing(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newRoutingDTO(rt.View()))
}

type ToggleRequest struct {
	Department string `json:"department"`
}

func (h *APIHandler) ToggleDepartmentHandler(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.routing(w, r)
	if !ok {
		return
	}
	var req ToggleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := rt.Toggle(req.Department); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRoutingDTO(rt.View()))
}

type NotesRequest struct {
	Notes string `json:"notes"`
}

func (h *APIHandler) SetNotesHandler(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.routing(w, r)
	if !ok {
		return
	}
	var req NotesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rt.SetNotes(req.Notes)
	writeJSON(w, http.StatusOK, newRoutingDTO(rt.View()))
}

func (h *APIHandler) SendRoutingHandler(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.routing(w, r)
	if !ok {
		return
	}
	sent, err := rt.Send()
	if err != nil {
		if statusFor(err) == http.StatusBadRequest {
			writeError(w, err)
			return
		}
		log.Printf("Error sending routing for %s: %v", chi.URLParam(r, "sessionID"), err)
		http.Error(w, "Failed to save routing", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, sent)
}
