package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/lemonmeet/meet-relay/internal/store"
)

const defaultMessagesLimit = 200

// handleMeeting serves the persisted record for one meeting: its participant
// history, start time, and whether it is still active.
func (s *Server) handleMeeting(w http.ResponseWriter, r *http.Request) {
	if s.meetings == nil {
		WriteJSON(w, http.StatusNotImplemented, map[string]any{"error": "persistence disabled"})
		return
	}

	meeting, err := s.meetings.Meeting(r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		WriteJSON(w, http.StatusNotFound, map[string]any{"error": "meeting not found"})
		return
	}
	if err != nil {
		s.log.Error("read meeting", "room", r.PathValue("id"), "err", err)
		WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "storage error"})
		return
	}
	WriteJSON(w, http.StatusOK, meeting)
}

func (s *Server) handleMeetingMessages(w http.ResponseWriter, r *http.Request) {
	if s.meetings == nil {
		WriteJSON(w, http.StatusNotImplemented, map[string]any{"error": "persistence disabled"})
		return
	}

	limit := defaultMessagesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteJSON(w, http.StatusBadRequest, map[string]any{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	roomID := r.PathValue("id")
	if _, err := s.meetings.Meeting(roomID); errors.Is(err, store.ErrNotFound) {
		WriteJSON(w, http.StatusNotFound, map[string]any{"error": "meeting not found"})
		return
	}

	msgs, err := s.meetings.Messages(roomID, limit)
	if err != nil {
		s.log.Error("read messages", "room", roomID, "err", err)
		WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "storage error"})
		return
	}
	if msgs == nil {
		msgs = []store.ChatRecord{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"roomId": roomID, "messages": msgs})
}
