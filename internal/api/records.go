package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/focusdeck/focusdeck/internal/domain"
)

// decodeRecord parses a request body into the concrete record type for kind.
func decodeRecord(kind domain.RecordKind, body io.Reader) (domain.Record, error) {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	switch kind {
	case domain.KindTask:
		var rec domain.Task
		if err := dec.Decode(&rec); err != nil {
			return nil, err
		}
		return rec, nil
	case domain.KindProject:
		var rec domain.Project
		if err := dec.Decode(&rec); err != nil {
			return nil, err
		}
		return rec, nil
	case domain.KindClient:
		var rec domain.Client
		if err := dec.Decode(&rec); err != nil {
			return nil, err
		}
		return rec, nil
	case domain.KindHabit:
		var rec domain.Habit
		if err := dec.Decode(&rec); err != nil {
			return nil, err
		}
		return rec, nil
	case domain.KindFolder:
		var rec domain.Folder
		if err := dec.Decode(&rec); err != nil {
			return nil, err
		}
		return rec, nil
	case domain.KindChatSession:
		var rec domain.ChatSession
		if err := dec.Decode(&rec); err != nil {
			return nil, err
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownKind, kind)
	}
}

// withID returns the record with a generated id when the client sent none.
func withID(rec domain.Record) domain.Record {
	if rec.Key() != "" {
		return rec
	}
	id := uuid.NewString()
	switch r := rec.(type) {
	case domain.Task:
		r.ID = id
		return r
	case domain.Project:
		r.ID = id
		return r
	case domain.Client:
		r.ID = id
		return r
	case domain.Habit:
		r.ID = id
		return r
	case domain.Folder:
		r.ID = id
		return r
	case domain.ChatSession:
		r.ID = id
		return r
	}
	return rec
}

// GET /api/records
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.coordinator.Account(); !ok {
		writeError(w, http.StatusBadRequest, "no active session")
		return
	}
	set := s.coordinator.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records":  set,
		"degraded": s.coordinator.Degraded(),
	})
}

// POST /api/records/{kind}
func (s *Server) handleUpsertRecord(w http.ResponseWriter, r *http.Request) {
	kind := domain.RecordKind(chi.URLParam(r, "kind"))
	rec, err := decodeRecord(kind, r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec = withID(rec)
	if err := s.coordinator.Upsert(r.Context(), rec); err != nil {
		writeError(w, statusForErr(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DELETE /api/records/{kind}/{id}
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	kind := domain.RecordKind(chi.URLParam(r, "kind"))
	id := chi.URLParam(r, "id")
	if err := s.coordinator.Delete(r.Context(), kind, id); err != nil {
		writeError(w, statusForErr(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

type toggleHabitRequest struct {
	Date string `json:"date,omitempty"` // YYYY-MM-DD, default today
}

// handleToggleHabit flips one completion date on a habit and recomputes the
// streak.
// POST /api/records/habit/{id}/toggle
func (s *Server) handleToggleHabit(w http.ResponseWriter, r *http.Request) {
	var req toggleHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	now := s.now()
	date := req.Date
	if date == "" {
		date = now.UTC().Format(time.DateOnly)
	}

	id := chi.URLParam(r, "id")
	set := s.coordinator.Snapshot()
	var habit *domain.Habit
	for i := range set.Habits {
		if set.Habits[i].ID == id {
			habit = &set.Habits[i]
			break
		}
	}
	if habit == nil {
		writeError(w, http.StatusNotFound, "habit not found")
		return
	}

	habit.ToggleDate(date, now)
	if err := s.coordinator.Upsert(r.Context(), *habit); err != nil {
		writeError(w, statusForErr(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

// handleRealtime streams the account's change feed via Server-Sent Events.
// GET /api/realtime/{accountID}
func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	flusher.Flush()

	ch, unsub := s.notifier.Subscribe(chi.URLParam(r, "accountID"))
	defer unsub()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			w.Write([]byte("data: "))
			w.Write(data)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}
