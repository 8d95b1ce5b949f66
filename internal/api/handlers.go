package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/khanglvm/profile-qa/internal/chat"
	"github.com/khanglvm/profile-qa/internal/errkind"
	"github.com/khanglvm/profile-qa/internal/knowledge"
	"github.com/khanglvm/profile-qa/internal/logging"
)

const maxBodyBytes = 64 << 10

type queryRequest struct {
	Text  string `json:"text"`
	Style string `json:"style,omitempty"`
}

type styleRequest struct {
	Style string `json:"style"`
}

type contactRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type healthResponse struct {
	Status    string   `json:"status"`
	SessionID string   `json:"session_id"`
	Engines   []string `json:"engines"`
	Available []string `json:"available"`
}

type chatHandler struct {
	session *chat.Session
	contact *rate.Limiter
	log     logging.Logger
}

// Health handles GET /health. It reports 503 when no engine is available.
func (h *chatHandler) Health(w http.ResponseWriter, r *http.Request) {
	st := h.session.Stats()

	resp := healthResponse{
		Status:    "ok",
		SessionID: st.Conversation.SessionID,
		Engines:   make([]string, 0, len(st.Engines)),
		Available: st.Available,
	}
	for _, m := range st.Engines {
		resp.Engines = append(resp.Engines, m.Engine)
	}
	if resp.Available == nil {
		resp.Available = []string{}
	}

	status := http.StatusOK
	switch {
	case len(resp.Available) == 0:
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	case len(resp.Available) < len(resp.Engines):
		resp.Status = "degraded"
	}
	writeJSON(w, status, resp)
}

// Stats handles GET /stats.
func (h *chatHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Stats())
}

// Query handles POST /query.
func (h *chatHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Style != "" {
		style, ok := knowledge.ParseStyle(req.Style)
		if !ok {
			writeError(w, http.StatusBadRequest, unknownStyle(req.Style))
			return
		}
		if err := h.session.SelectStyle(style); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	reply, err := h.session.ProcessQuery(r.Context(), req.Text)
	switch {
	case errkind.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.log.Warn("query aborted", "id", GetRequestID(r), "error", err)
		writeError(w, http.StatusServiceUnavailable, "the request was cancelled, please try again")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// Style handles POST /style.
func (h *chatHandler) Style(w http.ResponseWriter, r *http.Request) {
	var req styleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	style, ok := knowledge.ParseStyle(req.Style)
	if !ok {
		writeError(w, http.StatusBadRequest, unknownStyle(req.Style))
		return
	}
	if err := h.session.SelectStyle(style); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, styleRequest{Style: string(style)})
}

// Restart handles POST /restart.
func (h *chatHandler) Restart(w http.ResponseWriter, r *http.Request) {
	id := h.session.Restart()
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id})
}

// Contact handles POST /contact. Submissions are rate limited.
func (h *chatHandler) Contact(w http.ResponseWriter, r *http.Request) {
	if !h.contact.Allow() {
		w.Header().Set("Retry-After", "10")
		writeError(w, http.StatusTooManyRequests, "too many contact requests, please wait a moment")
		return
	}

	var req contactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res := h.session.SubmitContactForm(req.Name, req.Email)
	if !res.Success {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func unknownStyle(s string) string {
	return fmt.Sprintf("unknown style %q (expected one of %v)", s, knowledge.Styles())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
