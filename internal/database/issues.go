package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cottage/internal/models"
)

const issueColumns = `
	i.id, i.title, i.description, i.priority, i.status, i.location, i.target_date,
	i.reported_by_id, COALESCE(ru.name, ''), i.assigned_to_id, COALESCE(au.name, ''),
	i.created_at, i.updated_at`

const issueFrom = `
	FROM issues i
	LEFT JOIN users ru ON ru.id = i.reported_by_id
	LEFT JOIN users au ON au.id = i.assigned_to_id`

const updateColumns = `u.id, u.issue_id, u.author_id, COALESCE(us.name, ''), u.notes, u.status, u.created_at`

func scanIssue(row scanner) (*models.Issue, error) {
	var (
		i                    models.Issue
		location, target     sql.NullString
		assignee             sql.NullInt64
		createdAt, updatedAt string
	)
	err := row.Scan(
		&i.ID, &i.Title, &i.Description, &i.Priority, &i.Status, &location, &target,
		&i.ReportedByID, &i.ReportedByName, &assignee, &i.AssignedToName,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	i.Location = stringPtr(location)
	i.AssignedToID = intPtr(assignee)
	if i.TargetDate, err = parseNullTime(target); err != nil {
		return nil, err
	}
	if i.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if i.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &i, nil
}

func scanIssueUpdate(row scanner) (*models.IssueUpdate, error) {
	var (
		u         models.IssueUpdate
		status    sql.NullString
		createdAt string
	)
	if err := row.Scan(&u.ID, &u.IssueID, &u.AuthorID, &u.AuthorName, &u.Notes, &status, &createdAt); err != nil {
		return nil, err
	}
	if status.Valid {
		s := models.IssueStatus(status.String)
		u.Status = &s
	}
	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func nullStatus(s *models.IssueStatus) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*s), Valid: true}
}

func insertIssueUpdate(ctx context.Context, q querier, u *models.IssueUpdate) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	result, err := q.ExecContext(ctx,
		`INSERT INTO issue_updates (issue_id, author_id, notes, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.IssueID, u.AuthorID, u.Notes, nullStatus(u.Status), formatTime(u.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert issue update: %w", err)
	}
	if u.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	return nil
}

// CreateIssueWithLog stores a new issue together with its first log entry.
func (db *DB) CreateIssueWithLog(ctx context.Context, issue *models.Issue, first *models.IssueUpdate) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		if issue.Status == "" {
			issue.Status = models.IssueOpen
		}
		if issue.Priority == "" {
			issue.Priority = models.PriorityMedium
		}

		result, err := tx.ExecContext(ctx, `INSERT INTO issues (
				title, description, priority, status, location, target_date,
				reported_by_id, assigned_to_id, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			issue.Title, issue.Description, issue.Priority, issue.Status,
			nullString(issue.Location), nullTime(issue.TargetDate),
			issue.ReportedByID, nullInt(issue.AssignedToID),
			formatTime(now), formatTime(now),
		)
		if err != nil {
			return fmt.Errorf("failed to create issue: %w", err)
		}
		if issue.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		issue.CreatedAt = now
		issue.UpdatedAt = now

		if first != nil {
			first.IssueID = issue.ID
			first.CreatedAt = now
			if err := insertIssueUpdate(ctx, tx, first); err != nil {
				return err
			}
			issue.Updates = []models.IssueUpdate{*first}
		}
		return nil
	})
}

// GetIssue returns the issue with its full log in chronological order.
func (db *DB) GetIssue(ctx context.Context, id int64) (*models.Issue, error) {
	row := db.QueryRowContext(ctx, `SELECT `+issueColumns+issueFrom+` WHERE i.id = ?`, id)
	issue, err := scanIssue(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get issue %d: %w", id, err)
	}

	updates, err := db.ListIssueUpdates(ctx, id)
	if err != nil {
		return nil, err
	}
	issue.Updates = updates
	if n := len(updates); n > 0 {
		latest := updates[n-1]
		issue.LatestUpdate = &latest
	}
	return issue, nil
}

func (db *DB) ListIssueUpdates(ctx context.Context, issueID int64) ([]models.IssueUpdate, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+updateColumns+`
		FROM issue_updates u LEFT JOIN users us ON us.id = u.author_id
		WHERE u.issue_id = ? ORDER BY u.created_at ASC, u.id ASC`, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list issue updates: %w", err)
	}
	defer rows.Close()

	updates := []models.IssueUpdate{}
	for rows.Next() {
		u, err := scanIssueUpdate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issue update: %w", err)
		}
		updates = append(updates, *u)
	}
	return updates, rows.Err()
}

func (db *DB) ListIssues(ctx context.Context, filter models.IssueFilter) ([]*models.Issue, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "i.status = ?")
		args = append(args, filter.Status)
	}
	if filter.HideDone {
		where = append(where, "i.status NOT IN (?, ?)")
		args = append(args, models.IssueResolved, models.IssueClosed)
	}

	query := `SELECT ` + issueColumns + issueFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	switch filter.Order {
	case models.IssueOrderNewest:
		query += " ORDER BY i.created_at DESC, i.id DESC"
	case models.IssueOrderOldest:
		query += " ORDER BY i.created_at ASC, i.id ASC"
	case models.IssueOrderStatus:
		query += ` ORDER BY CASE i.status
			WHEN 'OPEN' THEN 0 WHEN 'IN_PROGRESS' THEN 1 WHEN 'BLOCKED' THEN 2
			WHEN 'RESOLVED' THEN 3 ELSE 4 END, i.created_at DESC, i.id DESC`
	default:
		query += ` ORDER BY CASE i.priority
			WHEN 'CRITICAL' THEN 3 WHEN 'HIGH' THEN 2 WHEN 'MEDIUM' THEN 1 ELSE 0 END DESC,
			i.created_at DESC, i.id DESC`
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}

	var issues []*models.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate issues: %w", err)
	}

	if err := db.attachLatestUpdates(ctx, issues); err != nil {
		return nil, err
	}
	return issues, nil
}

func (db *DB) attachLatestUpdates(ctx context.Context, issues []*models.Issue) error {
	if len(issues) == 0 {
		return nil
	}
	byID := make(map[int64]*models.Issue, len(issues))
	for _, issue := range issues {
		byID[issue.ID] = issue
	}

	rows, err := db.QueryContext(ctx, `SELECT `+updateColumns+`
		FROM issue_updates u LEFT JOIN users us ON us.id = u.author_id
		WHERE u.id IN (SELECT MAX(id) FROM issue_updates GROUP BY issue_id)`)
	if err != nil {
		return fmt.Errorf("failed to load latest issue updates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanIssueUpdate(rows)
		if err != nil {
			return fmt.Errorf("failed to scan issue update: %w", err)
		}
		if issue, ok := byID[u.IssueID]; ok {
			issue.LatestUpdate = u
		}
	}
	return rows.Err()
}

// UpdateIssue applies the set fields of changes and, when entry is non-nil,
// appends it to the log in the same transaction.
func (db *DB) UpdateIssue(ctx context.Context, id int64, changes models.IssueChanges, entry *models.IssueUpdate) (*models.Issue, error) {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM issues WHERE id = ?`, id).Scan(&exists)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load issue %d: %w", id, err)
		}

		now := time.Now().UTC()
		sets := []string{"updated_at = ?"}
		args := []any{formatTime(now)}

		if changes.Title.Present() {
			sets = append(sets, "title = ?")
			args = append(args, *changes.Title.Value)
		}
		if changes.Description.Present() {
			sets = append(sets, "description = ?")
			args = append(args, *changes.Description.Value)
		}
		if changes.Priority.Present() {
			sets = append(sets, "priority = ?")
			args = append(args, *changes.Priority.Value)
		}
		if changes.Status.Present() {
			sets = append(sets, "status = ?")
			args = append(args, *changes.Status.Value)
		}
		if changes.Location.Set {
			sets = append(sets, "location = ?")
			args = append(args, nullString(changes.Location.Value))
		}
		if changes.AssignedToID.Set {
			sets = append(sets, "assigned_to_id = ?")
			args = append(args, nullInt(changes.AssignedToID.Value))
		}
		if changes.TargetDate.Set {
			sets = append(sets, "target_date = ?")
			args = append(args, nullTime(changes.TargetDate.Value))
		}

		args = append(args, id)
		if _, err := tx.ExecContext(ctx,
			`UPDATE issues SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
			return fmt.Errorf("failed to update issue: %w", err)
		}

		if entry != nil {
			entry.IssueID = id
			entry.CreatedAt = now
			if err := insertIssueUpdate(ctx, tx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return db.GetIssue(ctx, id)
}

// AppendIssueUpdate adds a log entry. If the entry carries a status the issue
// moves to it; both writes commit or neither does.
func (db *DB) AppendIssueUpdate(ctx context.Context, entry *models.IssueUpdate) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()

		var (
			result sql.Result
			err    error
		)
		if entry.Status != nil {
			result, err = tx.ExecContext(ctx,
				`UPDATE issues SET status = ?, updated_at = ? WHERE id = ?`,
				*entry.Status, formatTime(now), entry.IssueID)
		} else {
			result, err = tx.ExecContext(ctx,
				`UPDATE issues SET updated_at = ? WHERE id = ?`,
				formatTime(now), entry.IssueID)
		}
		if err != nil {
			return fmt.Errorf("failed to update issue status: %w", err)
		}
		if err := requireAffected(result); err != nil {
			return err
		}

		entry.CreatedAt = now
		return insertIssueUpdate(ctx, tx, entry)
	})
}

// DeleteIssue removes the log entries and then the issue.
func (db *DB) DeleteIssue(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM issue_updates WHERE issue_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete issue updates: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM issues WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete issue: %w", err)
		}
		return requireAffected(result)
	})
}
