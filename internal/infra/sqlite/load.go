package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/focusdeck/focusdeck/internal/domain"
)

// ─── Full Account Load ──────────────────────────────────────────────────────

// LoadAll returns every domain record for an account.
func (db *DB) LoadAll(ctx context.Context, accountID string) (*domain.RecordSet, error) {
	set := &domain.RecordSet{}
	var err error

	if set.Tasks, err = db.listTasks(ctx, accountID); err != nil {
		return nil, err
	}
	if set.Projects, err = db.listProjects(ctx, accountID); err != nil {
		return nil, err
	}
	if set.Clients, err = db.listClients(ctx, accountID); err != nil {
		return nil, err
	}
	if set.Habits, err = db.listHabits(ctx, accountID); err != nil {
		return nil, err
	}
	if set.Folders, err = db.listFolders(ctx, accountID); err != nil {
		return nil, err
	}
	if set.ChatSessions, err = db.listChatSessions(ctx, accountID); err != nil {
		return nil, err
	}
	return set, nil
}

func (db *DB) listTasks(ctx context.Context, accountID string) ([]domain.Task, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, title, description, category, priority, date, completed, status_label, project_id
		FROM tasks WHERE account_id = ? ORDER BY id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var result []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func scanTask(rows interface{ Scan(...any) error }) (domain.Task, error) {
	var t domain.Task
	var completed int
	err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Category, &t.Priority,
		&t.Date, &completed, &t.StatusLabel, &t.ProjectID)
	t.Completed = completed == 1
	return t, err
}

func (db *DB) getTask(ctx context.Context, accountID, id string) (*domain.Task, error) {
	row := db.db.QueryRowContext(ctx, `
		SELECT id, title, description, category, priority, date, completed, status_label, project_id
		FROM tasks WHERE account_id = ? AND id = ?
	`, accountID, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (db *DB) listProjects(ctx context.Context, accountID string) ([]domain.Project, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, name, description, client_id, status, progress
		FROM projects WHERE account_id = ? ORDER BY id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var result []domain.Project
	for rows.Next() {
		var p domain.Project
		var status string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.ClientID, &status, &p.Progress); err != nil {
			return nil, err
		}
		p.Status = domain.ProjectStatus(status)
		result = append(result, p)
	}
	return result, rows.Err()
}

func (db *DB) listClients(ctx context.Context, accountID string) ([]domain.Client, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, name, email, company, status
		FROM clients WHERE account_id = ? ORDER BY id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var result []domain.Client
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Company, &c.Status); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (db *DB) listHabits(ctx context.Context, accountID string) ([]domain.Habit, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, name, color, streak, completed_dates
		FROM habits WHERE account_id = ? ORDER BY id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	var result []domain.Habit
	for rows.Next() {
		var h domain.Habit
		var dates string
		if err := rows.Scan(&h.ID, &h.Name, &h.Color, &h.Streak, &dates); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(dates), &h.CompletedDates); err != nil {
			return nil, fmt.Errorf("decode completed_dates for habit %s: %w", h.ID, err)
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

func (db *DB) listFolders(ctx context.Context, accountID string) ([]domain.Folder, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, name, client_id FROM folders WHERE account_id = ? ORDER BY id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	var result []domain.Folder
	for rows.Next() {
		var f domain.Folder
		if err := rows.Scan(&f.ID, &f.Name, &f.ClientID); err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (db *DB) getFolder(ctx context.Context, accountID, id string) (*domain.Folder, error) {
	var f domain.Folder
	err := db.db.QueryRowContext(ctx, `
		SELECT id, name, client_id FROM folders WHERE account_id = ? AND id = ?
	`, accountID, id).Scan(&f.ID, &f.Name, &f.ClientID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (db *DB) listChatSessions(ctx context.Context, accountID string) ([]domain.ChatSession, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, title, messages, updated_at
		FROM chat_sessions WHERE account_id = ? ORDER BY updated_at DESC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list chat sessions: %w", err)
	}
	defer rows.Close()

	var result []domain.ChatSession
	for rows.Next() {
		var s domain.ChatSession
		var msgs, updated string
		if err := rows.Scan(&s.ID, &s.Title, &msgs, &updated); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(msgs), &s.Messages); err != nil {
			return nil, fmt.Errorf("decode messages for session %s: %w", s.ID, err)
		}
		s.UpdatedAt = parseTime(updated)
		result = append(result, s)
	}
	return result, rows.Err()
}
