package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/focusdeck/focusdeck/internal/domain"
)

// ─── Record Upserts ─────────────────────────────────────────────────────────

// Upsert inserts or replaces a record by id (client-supplied ids are
// accepted idempotently) and publishes an INSERT or UPDATE change event.
func (db *DB) Upsert(ctx context.Context, accountID string, rec domain.Record) error {
	existed, err := db.exists(ctx, accountID, rec.Kind(), rec.Key())
	if err != nil {
		return err
	}

	switch r := rec.(type) {
	case domain.Task:
		err = db.upsertTask(ctx, accountID, r)
	case domain.Project:
		err = db.upsertProject(ctx, accountID, r)
	case domain.Client:
		err = db.upsertClient(ctx, accountID, r)
	case domain.Habit:
		err = db.upsertHabit(ctx, accountID, r)
	case domain.Folder:
		err = db.upsertFolder(ctx, accountID, r)
	case domain.ChatSession:
		err = db.upsertChatSession(ctx, accountID, r)
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnknownKind, rec)
	}
	if err != nil {
		return err
	}

	op := domain.OpInsert
	if existed {
		op = domain.OpUpdate
	}
	db.publish(accountID, domain.ChangeEvent{Op: op, Kind: rec.Kind(), ID: rec.Key(), Record: rec})
	return nil
}

func (db *DB) exists(ctx context.Context, accountID string, kind domain.RecordKind, id string) (bool, error) {
	table, err := tableFor(kind)
	if err != nil {
		return false, err
	}
	var n int
	err = db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+table+` WHERE account_id = ? AND id = ?`, accountID, id).Scan(&n)
	return n > 0, err
}

func tableFor(kind domain.RecordKind) (string, error) {
	switch kind {
	case domain.KindTask:
		return "tasks", nil
	case domain.KindProject:
		return "projects", nil
	case domain.KindClient:
		return "clients", nil
	case domain.KindHabit:
		return "habits", nil
	case domain.KindFolder:
		return "folders", nil
	case domain.KindChatSession:
		return "chat_sessions", nil
	default:
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownKind, kind)
	}
}

func (db *DB) upsertTask(ctx context.Context, accountID string, t domain.Task) error {
	completed := 0
	if t.Completed {
		completed = 1
	}
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO tasks (id, account_id, title, description, category, priority, date, completed, status_label, project_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, id) DO UPDATE SET
			title        = excluded.title,
			description  = excluded.description,
			category     = excluded.category,
			priority     = excluded.priority,
			date         = excluded.date,
			completed    = excluded.completed,
			status_label = excluded.status_label,
			project_id   = excluded.project_id
	`, t.ID, accountID, t.Title, t.Description, t.Category, t.Priority, t.Date, completed, t.StatusLabel, t.ProjectID)
	if err != nil {
		return fmt.Errorf("upsert task: %w", err)
	}
	return nil
}

func (db *DB) upsertProject(ctx context.Context, accountID string, p domain.Project) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO projects (id, account_id, name, description, client_id, status, progress)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, id) DO UPDATE SET
			name        = excluded.name,
			description = excluded.description,
			client_id   = excluded.client_id,
			status      = excluded.status,
			progress    = excluded.progress
	`, p.ID, accountID, p.Name, p.Description, p.ClientID, string(p.Status), p.Progress)
	if err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}
	return nil
}

func (db *DB) upsertClient(ctx context.Context, accountID string, c domain.Client) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO clients (id, account_id, name, email, company, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, id) DO UPDATE SET
			name    = excluded.name,
			email   = excluded.email,
			company = excluded.company,
			status  = excluded.status
	`, c.ID, accountID, c.Name, c.Email, c.Company, c.Status)
	if err != nil {
		return fmt.Errorf("upsert client: %w", err)
	}
	return nil
}

func (db *DB) upsertHabit(ctx context.Context, accountID string, h domain.Habit) error {
	dates, err := json.Marshal(h.CompletedDates)
	if err != nil {
		return fmt.Errorf("encode completed_dates: %w", err)
	}
	_, err = db.db.ExecContext(ctx, `
		INSERT INTO habits (id, account_id, name, color, streak, completed_dates)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, id) DO UPDATE SET
			name            = excluded.name,
			color           = excluded.color,
			streak          = excluded.streak,
			completed_dates = excluded.completed_dates
	`, h.ID, accountID, h.Name, h.Color, h.Streak, string(dates))
	if err != nil {
		return fmt.Errorf("upsert habit: %w", err)
	}
	return nil
}

func (db *DB) upsertFolder(ctx context.Context, accountID string, f domain.Folder) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO folders (id, account_id, name, client_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id, id) DO UPDATE SET
			name      = excluded.name,
			client_id = excluded.client_id
	`, f.ID, accountID, f.Name, f.ClientID)
	if err != nil {
		return fmt.Errorf("upsert folder: %w", err)
	}
	return nil
}

func (db *DB) upsertChatSession(ctx context.Context, accountID string, s domain.ChatSession) error {
	msgs, err := json.Marshal(s.Messages)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	_, err = db.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, account_id, title, messages, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account_id, id) DO UPDATE SET
			title      = excluded.title,
			messages   = excluded.messages,
			updated_at = excluded.updated_at
	`, s.ID, accountID, s.Title, string(msgs), fmtTime(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert chat session: %w", err)
	}
	return nil
}

// ─── Record Deletes ─────────────────────────────────────────────────────────

// Delete removes a record by id and applies the cascade rules inside one
// database transaction, then publishes change events for every affected row.
func (db *DB) Delete(ctx context.Context, accountID string, kind domain.RecordKind, id string) error {
	switch kind {
	case domain.KindProject:
		return db.deleteProject(ctx, accountID, id)
	case domain.KindClient:
		return db.deleteClient(ctx, accountID, id)
	case domain.KindTask, domain.KindHabit, domain.KindFolder, domain.KindChatSession:
		return db.deletePlain(ctx, accountID, kind, id)
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnknownKind, kind)
	}
}

func (db *DB) deletePlain(ctx context.Context, accountID string, kind domain.RecordKind, id string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	res, err := db.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ? AND account_id = ?`, id, accountID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		db.publish(accountID, domain.ChangeEvent{Op: domain.OpDelete, Kind: kind, ID: id})
	}
	return nil
}

// deleteProject removes the project and clears project_id on its tasks.
// The tasks themselves are kept.
func (db *DB) deleteProject(ctx context.Context, accountID, id string) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin project delete: %w", err)
	}
	defer tx.Rollback()

	clearedTasks, err := scanIDs(tx.QueryContext(ctx,
		`SELECT id FROM tasks WHERE account_id = ? AND project_id = ?`, accountID, id))
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET project_id = '' WHERE account_id = ? AND project_id = ?`, accountID, id); err != nil {
		return fmt.Errorf("clear task references: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM projects WHERE id = ? AND account_id = ?`, id, accountID); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit project delete: %w", err)
	}

	db.publish(accountID, domain.ChangeEvent{Op: domain.OpDelete, Kind: domain.KindProject, ID: id})
	db.publishTaskUpdates(ctx, accountID, clearedTasks)
	return nil
}

// deleteClient removes the client, deletes its projects, clears the
// now-dangling task references, and clears folder client references.
func (db *DB) deleteClient(ctx context.Context, accountID, id string) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin client delete: %w", err)
	}
	defer tx.Rollback()

	projects, err := scanIDs(tx.QueryContext(ctx,
		`SELECT id FROM projects WHERE account_id = ? AND client_id = ?`, accountID, id))
	if err != nil {
		return err
	}
	var clearedTasks []string
	for _, pid := range projects {
		ids, err := scanIDs(tx.QueryContext(ctx,
			`SELECT id FROM tasks WHERE account_id = ? AND project_id = ?`, accountID, pid))
		if err != nil {
			return err
		}
		clearedTasks = append(clearedTasks, ids...)
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET project_id = '' WHERE account_id = ? AND project_id = ?`, accountID, pid); err != nil {
			return fmt.Errorf("clear task references: %w", err)
		}
	}
	clearedFolders, err := scanIDs(tx.QueryContext(ctx,
		`SELECT id FROM folders WHERE account_id = ? AND client_id = ?`, accountID, id))
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE folders SET client_id = '' WHERE account_id = ? AND client_id = ?`, accountID, id); err != nil {
		return fmt.Errorf("clear folder references: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM projects WHERE account_id = ? AND client_id = ?`, accountID, id); err != nil {
		return fmt.Errorf("delete client projects: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM clients WHERE id = ? AND account_id = ?`, id, accountID); err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit client delete: %w", err)
	}

	db.publish(accountID, domain.ChangeEvent{Op: domain.OpDelete, Kind: domain.KindClient, ID: id})
	for _, pid := range projects {
		db.publish(accountID, domain.ChangeEvent{Op: domain.OpDelete, Kind: domain.KindProject, ID: pid})
	}
	db.publishTaskUpdates(ctx, accountID, clearedTasks)
	for _, fid := range clearedFolders {
		if f, err := db.getFolder(ctx, accountID, fid); err == nil && f != nil {
			db.publish(accountID, domain.ChangeEvent{Op: domain.OpUpdate, Kind: domain.KindFolder, ID: fid, Record: *f})
		}
	}
	return nil
}

func (db *DB) publishTaskUpdates(ctx context.Context, accountID string, ids []string) {
	for _, tid := range ids {
		if t, err := db.getTask(ctx, accountID, tid); err == nil && t != nil {
			db.publish(accountID, domain.ChangeEvent{Op: domain.OpUpdate, Kind: domain.KindTask, ID: tid, Record: *t})
		}
	}
}

func scanIDs(rows *sql.Rows, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
