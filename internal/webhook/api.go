package webhook

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/user/blurt/internal/entity"
	"github.com/user/blurt/internal/manifest"
	"github.com/user/blurt/internal/types"
)

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sync == nil {
		writeError(w, http.StatusServiceUnavailable, "sync not configured")
		return
	}
	report, err := s.deps.Sync.Run(r.Context())
	if err != nil {
		// Partial failures still carry a report.
		s.logger.Error("sync failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"report": report, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handlePutItem(kind types.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Writer == nil {
			writeError(w, http.StatusServiceUnavailable, "writes not configured")
			return
		}
		var item types.Item
		if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		item.ID = chi.URLParam(r, "id")
		if err := s.deps.Writer.PutItem(r.Context(), kind, &item); err != nil {
			s.logger.Error("put item failed", "kind", kind, "id", item.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, &item)
	}
}

func (s *Server) handleDeleteItem(kind types.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Writer == nil {
			writeError(w, http.StatusServiceUnavailable, "writes not configured")
			return
		}
		s.deleted(w, s.deps.Writer.DeleteItem(r.Context(), kind, chi.URLParam(r, "id")))
	}
}

func (s *Server) handlePutGroup(w http.ResponseWriter, r *http.Request) {
	if s.deps.Writer == nil {
		writeError(w, http.StatusServiceUnavailable, "writes not configured")
		return
	}
	var group types.Group
	if err := json.NewDecoder(r.Body).Decode(&group); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	group.ID = chi.URLParam(r, "id")
	if err := s.deps.Writer.PutGroup(r.Context(), &group); err != nil {
		s.logger.Error("put group failed", "group_id", group.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, &group)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if s.deps.Writer == nil {
		writeError(w, http.StatusServiceUnavailable, "writes not configured")
		return
	}
	s.deleted(w, s.deps.Writer.DeleteGroup(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) deleted(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, entity.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		s.logger.Error("delete failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if s.deps.Manifests == nil {
		writeError(w, http.StatusServiceUnavailable, "manifests not configured")
		return
	}
	id := chi.URLParam(r, "id")
	m, err := s.deps.Manifests.Build(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, m)
	case errors.Is(err, entity.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, manifest.ErrNoSignalID):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("build manifest failed", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

type sessionResponse struct {
	SessionID  string `json:"session_id"`
	SessionKey string `json:"session_key"`
	Source     string `json:"source"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
	Turns      int64  `json:"turns"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "debug API not configured")
		return
	}
	sessions, err := s.deps.Sessions.List(r.Context())
	if err != nil {
		s.logger.Error("list sessions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	result := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, sessionResponse{
			SessionID:  string(sess.SessionID),
			SessionKey: string(sess.SessionKey),
			Source:     sess.Source,
			Status:     sess.Status,
			CreatedAt:  sess.CreatedAt.Format(time.RFC3339),
			UpdatedAt:  sess.UpdatedAt.Format(time.RFC3339),
			Turns:      sess.Turns,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt > result[j].UpdatedAt
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.deps.Journal == nil {
		writeError(w, http.StatusServiceUnavailable, "debug API not configured")
		return
	}
	sessionID := types.SessionID(chi.URLParam(r, "id"))

	limit := 200
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.deps.Journal.Tail(r.Context(), sessionID, limit)
	if err != nil {
		s.logger.Error("tail journal failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if entries == nil {
		entries = []*types.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
