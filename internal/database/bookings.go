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

const bookingColumns = `
	b.id, b.title, b.notes, b.start_at, b.end_at, b.status,
	b.created_by_id, COALESCE(cu.name, ''), COALESCE(cu.email, ''),
	b.approved_by_id, COALESCE(au.name, ''),
	b.requester_name, b.requester_email, b.requester_phone,
	b.google_event_id, b.last_synced_at, b.created_at, b.updated_at`

const bookingFrom = `
	FROM bookings b
	LEFT JOIN users cu ON cu.id = b.created_by_id
	LEFT JOIN users au ON au.id = b.approved_by_id`

func scanBooking(row scanner) (*models.Booking, error) {
	var (
		b                    models.Booking
		notes, phone, event  sql.NullString
		start, end           string
		synced               sql.NullString
		createdAt, updatedAt string
		createdBy, approver  sql.NullInt64
	)

	err := row.Scan(
		&b.ID, &b.Title, &notes, &start, &end, &b.Status,
		&createdBy, &b.CreatedByName, &b.CreatedByEmail,
		&approver, &b.ApprovedByName,
		&b.RequesterName, &b.RequesterEmail, &phone,
		&event, &synced, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Notes = stringPtr(notes)
	b.RequesterPhone = stringPtr(phone)
	b.GoogleEventID = stringPtr(event)
	b.CreatedByID = intPtr(createdBy)
	b.ApprovedByID = intPtr(approver)

	if b.StartDate, err = parseTime(start); err != nil {
		return nil, err
	}
	if b.EndDate, err = parseTime(end); err != nil {
		return nil, err
	}
	if b.LastSyncedAt, err = parseNullTime(synced); err != nil {
		return nil, err
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func collectBookings(rows *sql.Rows) ([]*models.Booking, error) {
	defer rows.Close()
	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

// activeInRange returns the active bookings intersecting [start, end), except excludeID.
func activeInRange(ctx context.Context, q querier, start, end time.Time, excludeID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + bookingFrom + `
		WHERE b.status IN (?, ?) AND b.start_at < ? AND b.end_at > ? AND b.id != ?`
	rows, err := q.QueryContext(ctx, query,
		models.BookingPending, models.BookingApproved,
		formatTime(end), formatTime(start), excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping bookings: %w", err)
	}
	return collectBookings(rows)
}

// FindOverlapping returns active bookings that intersect [start, end).
func (db *DB) FindOverlapping(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	return activeInRange(ctx, db, start, end, 0)
}

// CreateBookingWithLock runs the overlap check and the insert in one
// immediate transaction. Returns ErrOverlap when the range is taken.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := activeInRange(ctx, tx, booking.StartDate, booking.EndDate, 0)
		if err != nil {
			return fmt.Errorf("failed to check availability in tx: %w", err)
		}
		if models.HasConflict(booking.StartDate, booking.EndDate, existing) {
			return ErrOverlap
		}

		now := time.Now().UTC()
		if booking.Status == "" {
			booking.Status = models.BookingPending
		}

		result, err := tx.ExecContext(ctx, `INSERT INTO bookings (
				title, notes, start_at, end_at, status, created_by_id,
				requester_name, requester_email, requester_phone, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			booking.Title,
			nullString(booking.Notes),
			formatTime(booking.StartDate),
			formatTime(booking.EndDate),
			booking.Status,
			nullInt(booking.CreatedByID),
			booking.RequesterName,
			booking.RequesterEmail,
			nullString(booking.RequesterPhone),
			formatTime(now),
			formatTime(now),
		)
		if err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		booking.ID = id
		booking.CreatedAt = now
		booking.UpdatedAt = now
		return nil
	})
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+bookingFrom+` WHERE b.id = ?`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get booking %d: %w", id, err)
	}
	return b, nil
}

func (db *DB) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	var (
		where []string
		args  []any
	)

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, s)
		}
		where = append(where, "b.status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.HideInactive {
		where = append(where, "b.status IN (?, ?)")
		args = append(args, models.BookingPending, models.BookingApproved)
	}
	if filter.EndsAfter != nil {
		where = append(where, "b.end_at >= ?")
		args = append(args, formatTime(*filter.EndsAfter))
	}
	if filter.StartsBefore != nil {
		where = append(where, "b.start_at < ?")
		args = append(args, formatTime(*filter.StartsBefore))
	}

	query := `SELECT ` + bookingColumns + bookingFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	switch filter.Order {
	case models.BookingOrderStartDesc:
		query += " ORDER BY b.start_at DESC, b.id DESC"
	case models.BookingOrderStatus:
		query += ` ORDER BY CASE b.status
			WHEN 'PENDING' THEN 0 WHEN 'APPROVED' THEN 1
			WHEN 'DECLINED' THEN 2 ELSE 3 END, b.start_at ASC, b.id ASC`
	default:
		query += " ORDER BY b.start_at ASC, b.id ASC"
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return collectBookings(rows)
}

// ListApprovedBookings returns approved bookings in start order.
func (db *DB) ListApprovedBookings(ctx context.Context) ([]*models.Booking, error) {
	return db.ListBookings(ctx, models.BookingFilter{
		Statuses: []models.BookingStatus{models.BookingApproved},
	})
}

// ApplyBookingDecision writes status, approver, notes, event id and sync time
// in a single UPDATE. When the booking moves from an inactive to an active
// status the overlap check is repeated under the same lock.
func (db *DB) ApplyBookingDecision(ctx context.Context, id int64, d models.BookingDecision) (*models.Booking, error) {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var (
			current    models.BookingStatus
			start, end string
		)
		err := tx.QueryRowContext(ctx,
			`SELECT status, start_at, end_at FROM bookings WHERE id = ?`, id,
		).Scan(&current, &start, &end)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load booking %d: %w", id, err)
		}

		if d.Status.Active() && !current.Active() {
			startAt, err := parseTime(start)
			if err != nil {
				return err
			}
			endAt, err := parseTime(end)
			if err != nil {
				return err
			}
			others, err := activeInRange(ctx, tx, startAt, endAt, id)
			if err != nil {
				return err
			}
			if models.HasConflict(startAt, endAt, others) {
				return ErrOverlap
			}
		}

		synced := d.SyncedAt
		if synced.IsZero() {
			synced = time.Now()
		}

		_, err = tx.ExecContext(ctx, `UPDATE bookings SET
				status = ?, approved_by_id = ?, notes = COALESCE(?, notes),
				google_event_id = ?, last_synced_at = ?, updated_at = ?
			WHERE id = ?`,
			d.Status, d.ApprovedByID, nullString(d.Notes),
			nullString(d.GoogleEventID), formatTime(synced), formatTime(time.Now()),
			id,
		)
		if err != nil {
			return fmt.Errorf("failed to apply booking decision: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return db.GetBooking(ctx, id)
}

// UpdateBookingSync records the calendar event id after a resync.
func (db *DB) UpdateBookingSync(ctx context.Context, id int64, eventID *string, syncedAt time.Time) error {
	result, err := db.ExecContext(ctx,
		`UPDATE bookings SET google_event_id = ?, last_synced_at = ?, updated_at = ? WHERE id = ?`,
		nullString(eventID), formatTime(syncedAt), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking sync: %w", err)
	}
	return requireAffected(result)
}

func (db *DB) DeleteBooking(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
