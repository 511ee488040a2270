package domain

import "fmt"

// ─── Record Set Mutation ────────────────────────────────────────────────────
// In-memory upsert/delete with the cascade rules. The local document store
// and the sync coordinator's snapshot share these semantics; the durable
// backend enforces the same rules in SQL.

// Upsert inserts or replaces a record by id.
func (s *RecordSet) Upsert(rec Record) error {
	switch r := rec.(type) {
	case Task:
		s.Tasks = upsertSlice(s.Tasks, r)
	case Project:
		s.Projects = upsertSlice(s.Projects, r)
	case Client:
		s.Clients = upsertSlice(s.Clients, r)
	case Habit:
		s.Habits = upsertSlice(s.Habits, r)
	case Folder:
		s.Folders = upsertSlice(s.Folders, r)
	case ChatSession:
		s.ChatSessions = upsertSlice(s.ChatSessions, r)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownKind, rec)
	}
	return nil
}

// Delete removes a record by id, applying the cascade rules:
//   - a deleted Project's Tasks keep existing with the reference cleared
//   - a deleted Client takes its Projects with it, clears the now-dangling
//     Task references, and clears Folder client references
//
// Absent ids are a no-op.
func (s *RecordSet) Delete(kind RecordKind, id string) error {
	switch kind {
	case KindTask:
		s.Tasks = removeByID(s.Tasks, id)
	case KindProject:
		s.deleteProject(id)
	case KindClient:
		s.deleteClient(id)
	case KindHabit:
		s.Habits = removeByID(s.Habits, id)
	case KindFolder:
		s.Folders = removeByID(s.Folders, id)
	case KindChatSession:
		s.ChatSessions = removeByID(s.ChatSessions, id)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return nil
}

// Contains reports whether a record with the given kind and id is present.
func (s *RecordSet) Contains(kind RecordKind, id string) bool {
	switch kind {
	case KindTask:
		return containsID(s.Tasks, id)
	case KindProject:
		return containsID(s.Projects, id)
	case KindClient:
		return containsID(s.Clients, id)
	case KindHabit:
		return containsID(s.Habits, id)
	case KindFolder:
		return containsID(s.Folders, id)
	case KindChatSession:
		return containsID(s.ChatSessions, id)
	}
	return false
}

// Clone returns a deep copy of the set.
func (s *RecordSet) Clone() RecordSet {
	out := RecordSet{
		Tasks:        append([]Task(nil), s.Tasks...),
		Projects:     append([]Project(nil), s.Projects...),
		Clients:      append([]Client(nil), s.Clients...),
		Habits:       make([]Habit, len(s.Habits)),
		Folders:      append([]Folder(nil), s.Folders...),
		ChatSessions: make([]ChatSession, len(s.ChatSessions)),
	}
	for i, h := range s.Habits {
		h.CompletedDates = append([]string(nil), h.CompletedDates...)
		out.Habits[i] = h
	}
	for i, c := range s.ChatSessions {
		c.Messages = append([]ChatMessage(nil), c.Messages...)
		out.ChatSessions[i] = c
	}
	return out
}

func (s *RecordSet) deleteProject(id string) {
	s.Projects = removeByID(s.Projects, id)
	for i := range s.Tasks {
		if s.Tasks[i].ProjectID == id {
			s.Tasks[i].ProjectID = ""
		}
	}
}

func (s *RecordSet) deleteClient(id string) {
	var projectIDs []string
	kept := s.Projects[:0]
	for _, p := range s.Projects {
		if p.ClientID == id {
			projectIDs = append(projectIDs, p.ID)
		} else {
			kept = append(kept, p)
		}
	}
	s.Projects = kept

	for _, pid := range projectIDs {
		for i := range s.Tasks {
			if s.Tasks[i].ProjectID == pid {
				s.Tasks[i].ProjectID = ""
			}
		}
	}
	for i := range s.Folders {
		if s.Folders[i].ClientID == id {
			s.Folders[i].ClientID = ""
		}
	}
	s.Clients = removeByID(s.Clients, id)
}

func upsertSlice[T Record](recs []T, rec T) []T {
	for i := range recs {
		if recs[i].Key() == rec.Key() {
			recs[i] = rec
			return recs
		}
	}
	return append(recs, rec)
}

func removeByID[T Record](recs []T, id string) []T {
	kept := recs[:0]
	for _, r := range recs {
		if r.Key() != id {
			kept = append(kept, r)
		}
	}
	return kept
}

func containsID[T Record](recs []T, id string) bool {
	for _, r := range recs {
		if r.Key() == id {
			return true
		}
	}
	return false
}
