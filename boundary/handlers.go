// ABOUTME: HTTP handlers for the dialogue, session, tool, and frequency-settings endpoints,
// ABOUTME: each translating a typed request/response into the {success, error, result} envelope.

package boundary

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389-research/dialogued/proactive"
	"github.com/2389-research/dialogued/store"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	storeStatus := "ok"
	if err := s.store.Health(r.Context()); err != nil {
		status = "degraded"
		storeStatus = "fallback"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status, "store": storeStatus})
}

type dialogueInputRequest struct {
	Input     string         `json:"input"`
	SessionID string         `json:"sessionId"`
	UserID    string         `json:"userId"`
	Context   map[string]any `json:"context"`
}

func (s *Server) handleDialogueInput(w http.ResponseWriter, r *http.Request) {
	var req dialogueInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Input == "" {
		writeError(w, http.StatusBadRequest, "input is required")
		return
	}
	if req.UserID == "" {
		req.UserID = "anonymous"
	}

	result, err := s.orchestrator.ProcessInput(r.Context(), req.UserID, req.SessionID, req.Input, req.Context)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	meta := map[string]any{}
	if result.Fallback {
		meta["fallback"] = true
	}
	if result.ModelFallback {
		meta["modelFallback"] = true
	}
	if result.Timeout {
		meta["timeout"] = true
	}
	if result.ContextUsed {
		meta["contextUsed"] = true
	}
	if len(result.ToolsUsed) > 0 {
		meta["toolsUsed"] = result.ToolsUsed
	}

	writeJSON(w, http.StatusOK, envelope{Success: true, Result: map[string]any{
		"id":        result.TurnID,
		"input":     req.Input,
		"response":  result.Reply,
		"sessionId": result.SessionID,
		"timestamp": result.Timestamp.Format(timestampFormat),
		"metadata":  meta,
	}})
}

type createSessionRequest struct {
	UserID       string `json:"userId"`
	Title        string `json:"title"`
	DialogueType string `json:"dialogueType"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	dt := store.DialogueType(req.DialogueType)
	if dt == "" {
		dt = store.DefaultDialogueType
	}
	if !store.ValidDialogueType(dt) {
		writeError(w, http.StatusBadRequest, "unknown dialogueType")
		return
	}
	title := req.Title
	if title == "" {
		title = "New conversation"
	}

	session, err := s.store.CreateSession(r.Context(), req.UserID, title, dt, nil)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, sessionView(session))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

	sessions, err := s.store.ListSessionsByUser(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	items := make([]any, 0, len(sessions))
	for _, sess := range sessions {
		items = append(items, sessionView(sess))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sessionView(session))
}

func (s *Server) handleGetTurns(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetSession(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	limit := parseIntDefault(r.URL.Query().Get("limit"), 0)
	beforeID := r.URL.Query().Get("beforeId")

	turns, err := s.store.GetTurns(r.Context(), id, limit, beforeID)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	items := make([]any, 0, len(turns))
	for _, t := range turns {
		items = append(items, map[string]any{
			"id":        t.ID,
			"sessionId": t.SessionID,
			"role":      t.Role,
			"content":   t.Content,
			"createdAt": t.CreatedAt.Format(timestampFormat),
			"metadata":  t.Metadata,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	descriptors := s.registry.List()
	items := make([]any, 0, len(descriptors))
	for _, d := range descriptors {
		items = append(items, map[string]any{
			"name":                 d.Name,
			"description":          d.Description,
			"usage":                d.Usage,
			"version":              d.Version,
			"status":               d.Status.String(),
			"supportedModalities":  d.SupportedModalities,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleGetFrequencySettings(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if s.scheduler == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	settings := s.scheduler.GetSettings(userID)
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":              settings.Enabled,
		"minQuietSeconds":      int(settings.MinQuiet.Seconds()),
		"maxExpressionsPerDay": settings.MaxExpressionsPerDay,
	})
}

type frequencySettingsRequest struct {
	UserID               string `json:"userId"`
	Enabled              bool   `json:"enabled"`
	MinQuietSeconds      int    `json:"minQuietSeconds"`
	MaxExpressionsPerDay int    `json:"maxExpressionsPerDay"`
}

func (s *Server) handleSetFrequencySettings(w http.ResponseWriter, r *http.Request) {
	var req frequencySettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if s.scheduler != nil {
		s.scheduler.SetSettings(req.UserID, proactive.UserSettings{
			Enabled:              req.Enabled,
			MinQuiet:             secondsToDuration(req.MinQuietSeconds),
			MaxExpressionsPerDay: req.MaxExpressionsPerDay,
		})
	}
	writeJSON(w, http.StatusOK, envelope{Success: true})
}

type frequencyTriggerRequest struct {
	UserID         string `json:"userId"`
	SessionID      string `json:"sessionId"`
	ExpressionType string `json:"expressionType"`
}

func (s *Server) handleFrequencyTrigger(w http.ResponseWriter, r *http.Request) {
	var req frequencyTriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.UserID == "" || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "userId and sessionId are required")
		return
	}
	expressionType := proactive.ExpressionType(req.ExpressionType)
	if expressionType == "" {
		expressionType = proactive.Reminder
	}
	if !proactive.ValidExpressionType(expressionType) {
		writeError(w, http.StatusBadRequest, "unknown expressionType")
		return
	}
	if s.scheduler == nil {
		writeJSON(w, http.StatusOK, envelope{Success: false})
		return
	}

	dispatch, ok := s.scheduler.Trigger(r.Context(), req.UserID, req.SessionID, expressionType)
	if !ok {
		writeJSON(w, http.StatusOK, envelope{Success: false})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Result: map[string]any{
		"expression": map[string]any{
			"sessionId": dispatch.SessionID,
			"content":   dispatch.Content,
			"type":      dispatch.Type,
		},
	}})
}

func sessionView(session *store.Session) map[string]any {
	return map[string]any{
		"id":           session.ID,
		"userId":       session.UserID,
		"title":        session.Title,
		"dialogueType": session.DialogueType,
		"createdAt":    session.CreatedAt.Format(timestampFormat),
	}
}

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
