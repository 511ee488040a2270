package domain

import (
	"time"
)

// ─── Record Kinds ───────────────────────────────────────────────────────────

// RecordKind identifies one of the domain record families.
type RecordKind string

const (
	KindTask        RecordKind = "task"
	KindProject     RecordKind = "project"
	KindClient      RecordKind = "client"
	KindHabit       RecordKind = "habit"
	KindFolder      RecordKind = "folder"
	KindChatSession RecordKind = "chat_session"
)

// Kinds lists every record kind in a stable order.
func Kinds() []RecordKind {
	return []RecordKind{KindTask, KindProject, KindClient, KindHabit, KindFolder, KindChatSession}
}

// Record is any account-scoped domain record.
type Record interface {
	Kind() RecordKind
	Key() string
}

// ─── Task ───────────────────────────────────────────────────────────────────

// Task is a single to-do item, optionally attached to a project.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Date        string `json:"date,omitempty"` // YYYY-MM-DD
	Completed   bool   `json:"completed"`
	StatusLabel string `json:"statusLabel,omitempty"`
	ProjectID   string `json:"projectId,omitempty"`
}

func (t Task) Kind() RecordKind { return KindTask }
func (t Task) Key() string      { return t.ID }

// ─── Project ────────────────────────────────────────────────────────────────

// ProjectStatus is a project's lifecycle state.
type ProjectStatus string

const (
	ProjectPlanned   ProjectStatus = "planned"
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on-hold"
	ProjectCompleted ProjectStatus = "completed"
)

// Project groups tasks under an optional client.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	ClientID    string        `json:"clientId,omitempty"`
	Status      ProjectStatus `json:"status,omitempty"`
	Progress    int           `json:"progress"` // 0–100
}

func (p Project) Kind() RecordKind { return KindProject }
func (p Project) Key() string      { return p.ID }

// ─── Client ─────────────────────────────────────────────────────────────────

// Client is a person or company the user works for.
type Client struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Company string `json:"company,omitempty"`
	Status  string `json:"status,omitempty"` // lead / active / past
}

func (c Client) Kind() RecordKind { return KindClient }
func (c Client) Key() string      { return c.ID }

// ─── Habit ──────────────────────────────────────────────────────────────────

// Habit tracks a recurring practice and its completion streak.
type Habit struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Color          string   `json:"color,omitempty"`
	Streak         int      `json:"streak"`
	CompletedDates []string `json:"completedDates,omitempty"` // YYYY-MM-DD, unordered
}

func (h Habit) Kind() RecordKind { return KindHabit }
func (h Habit) Key() string      { return h.ID }

// CompletedOn reports whether the habit was completed on the given date.
func (h Habit) CompletedOn(date string) bool {
	for _, d := range h.CompletedDates {
		if d == date {
			return true
		}
	}
	return false
}

// ToggleDate adds or removes a completion date and recomputes the streak.
func (h *Habit) ToggleDate(date string, now time.Time) {
	if h.CompletedOn(date) {
		kept := h.CompletedDates[:0]
		for _, d := range h.CompletedDates {
			if d != date {
				kept = append(kept, d)
			}
		}
		h.CompletedDates = kept
	} else {
		h.CompletedDates = append(h.CompletedDates, date)
	}
	h.Streak = ComputeStreak(h.CompletedDates, now)
}

// ComputeStreak counts consecutive completed days ending today or yesterday.
// A streak broken more than one day ago is 0.
func ComputeStreak(dates []string, now time.Time) int {
	done := make(map[string]bool, len(dates))
	for _, d := range dates {
		done[d] = true
	}
	day := now.UTC().Truncate(24 * time.Hour)
	if !done[day.Format(time.DateOnly)] {
		day = day.AddDate(0, 0, -1) // today not yet completed, streak may end yesterday
	}
	streak := 0
	for done[day.Format(time.DateOnly)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// ─── Folder ─────────────────────────────────────────────────────────────────

// Folder organizes documents/canvases, optionally bound to a client.
type Folder struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ClientID string `json:"clientId,omitempty"`
}

func (f Folder) Kind() RecordKind { return KindFolder }
func (f Folder) Key() string      { return f.ID }

// ─── Record Set ─────────────────────────────────────────────────────────────

// RecordSet is an account's full set of domain records, as stored in the
// local fallback document and as loaded from the durable backend.
type RecordSet struct {
	Tasks        []Task        `json:"tasks"`
	Projects     []Project     `json:"projects"`
	Clients      []Client      `json:"clients"`
	Habits       []Habit       `json:"habits"`
	Folders      []Folder      `json:"folders"`
	ChatSessions []ChatSession `json:"chatSessions"`
}

// Records returns every record in the set as the Record interface.
func (s *RecordSet) Records() []Record {
	out := make([]Record, 0,
		len(s.Tasks)+len(s.Projects)+len(s.Clients)+len(s.Habits)+len(s.Folders)+len(s.ChatSessions))
	for _, r := range s.Tasks {
		out = append(out, r)
	}
	for _, r := range s.Projects {
		out = append(out, r)
	}
	for _, r := range s.Clients {
		out = append(out, r)
	}
	for _, r := range s.Habits {
		out = append(out, r)
	}
	for _, r := range s.Folders {
		out = append(out, r)
	}
	for _, r := range s.ChatSessions {
		out = append(out, r)
	}
	return out
}
