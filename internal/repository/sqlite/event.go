package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/studysync/studysync-server/internal/apperror"
	"github.com/studysync/studysync-server/internal/model"
	"github.com/studysync/studysync-server/internal/repository"
)

var _ repository.EventRepository = (*DB)(nil)

const eventColumns = `id, creator_id, title, description, location_type, location,
	start_at, end_at, status, created_at, updated_at`

// CreateEvent inserts the event and its participants in one transaction.
func (db *DB) CreateEvent(ctx context.Context, e *model.Event) error {
	now := time.Now()
	e.ID = xid.New().String()
	e.CreatedAt = now
	e.UpdatedAt = now

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning event insert: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.CreatorID,
		e.Title,
		e.Description,
		string(e.LocationType),
		e.Location,
		toMillis(e.Start),
		toMillis(e.End),
		string(e.Status),
		toMillis(e.CreatedAt),
		toMillis(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting event: %w", err)
	}

	if err := insertParticipants(ctx, tx, e.ID, e.Participants); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing event insert: %w", err)
	}
	if e.Participants == nil {
		e.Participants = []model.Participant{}
	}
	return nil
}

// GetEventByID returns the event with its participants.
func (db *DB) GetEventByID(ctx context.Context, id string) (*model.Event, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id)

	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("event", id)
		}
		return nil, fmt.Errorf("sqlite: getting event %s: %w", id, err)
	}

	events := []model.Event{*e}
	if err := loadParticipants(ctx, db.conn, events); err != nil {
		return nil, err
	}
	return &events[0], nil
}

// ListEvents returns matching events ordered by start time.
func (db *DB) ListEvents(ctx context.Context, f repository.EventFilter) ([]model.Event, error) {
	where, args := eventWhere(f)
	query := `SELECT ` + eventColumns + ` FROM events` + where + ` ORDER BY start_at ASC, created_at ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	events, err := queryEvents(ctx, db.conn, query, args...)
	if err != nil {
		return nil, err
	}
	if err := loadParticipants(ctx, db.conn, events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountEvents counts matching events. Limit is ignored.
func (db *DB) CountEvents(ctx context.Context, f repository.EventFilter) (int, error) {
	where, args := eventWhere(f)

	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting events: %w", err)
	}
	return n, nil
}

// UpdateEventOwned applies patch only if ownerID created the event and the
// resulting start is not after the resulting end.
//
// The date-order guard sits in the WHERE clause next to the ownership
// check, so a partial update (say, only End) is validated against the
// stored Start in the same statement that writes it.
// repository.ErrNotMatched covers all three failure causes; the caller
// looks the event up once to tell them apart.
func (db *DB) UpdateEventOwned(ctx context.Context, id, ownerID string, p repository.EventPatch) (*model.Event, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning event update: %w", err)
	}
	defer tx.Rollback()

	start := nullableMillis(p.Start)
	end := nullableMillis(p.End)

	row := tx.QueryRowContext(ctx,
		`UPDATE events SET
			title         = COALESCE(?, title),
			description   = COALESCE(?, description),
			location_type = COALESCE(?, location_type),
			location      = COALESCE(?, location),
			start_at      = COALESCE(?, start_at),
			end_at        = COALESCE(?, end_at),
			status        = COALESCE(?, status),
			updated_at    = ?
		 WHERE id = ? AND creator_id = ?
		   AND COALESCE(?, start_at) <= COALESCE(?, end_at)
		 RETURNING `+eventColumns,
		stringArg(p.Title),
		stringArg(p.Description),
		locationTypeArg(p.LocationType),
		stringArg(p.Location),
		start,
		end,
		eventStatusArg(p.Status),
		toMillis(time.Now()),
		id,
		ownerID,
		start,
		end,
	)

	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotMatched
		}
		return nil, fmt.Errorf("sqlite: updating event %s: %w", id, err)
	}

	if p.Participants != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM event_participants WHERE event_id = ?`, id); err != nil {
			return nil, fmt.Errorf("sqlite: clearing participants of event %s: %w", id, err)
		}
		if err := insertParticipants(ctx, tx, id, *p.Participants); err != nil {
			return nil, err
		}
	}

	events := []model.Event{*e}
	if err := loadParticipants(ctx, tx, events); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing event update: %w", err)
	}
	return &events[0], nil
}

// DeleteEventOwned deletes the event (participants cascade) only if
// ownerID created it.
func (db *DB) DeleteEventOwned(ctx context.Context, id, ownerID string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM events WHERE id = ? AND creator_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting event %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotMatched
	}
	return nil
}

// ListBusy selects one account's local busy intervals.
//
// FOUR-CASE OVERLAP TEST (inclusive bounds):
//
//	start inside [min, max]      start_at BETWEEN min AND max
//	end inside [min, max]        end_at   BETWEEN min AND max
//	event spans the whole window start_at <= min AND end_at >= max
//
// An account is busy for events it created and for events where it is an
// Accepted participant, matched by user id or by email. Cancelled events
// never count.
func (db *DB) ListBusy(ctx context.Context, userID, email string, w model.TimeWindow) ([]model.BusyInterval, error) {
	lo, hi := toMillis(w.Min), toMillis(w.Max)
	email = strings.ToLower(strings.TrimSpace(email))

	rows, err := db.conn.QueryContext(ctx,
		`SELECT e.start_at, e.end_at
		 FROM events e
		 WHERE e.status <> ?
		   AND (
		         e.creator_id = ?
		         OR EXISTS (
		             SELECT 1 FROM event_participants p
		             WHERE p.event_id = e.id
		               AND p.status = ?
		               AND ((p.user_id <> '' AND p.user_id = ?) OR p.email = ?)
		         )
		       )
		   AND (
		         (e.start_at BETWEEN ? AND ?)
		         OR (e.end_at BETWEEN ? AND ?)
		         OR (e.start_at <= ? AND e.end_at >= ?)
		       )
		 ORDER BY e.start_at ASC`,
		string(model.EventCancelled),
		userID,
		string(model.ParticipantAccepted),
		userID,
		email,
		lo, hi,
		lo, hi,
		lo, hi,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing busy intervals for user %s: %w", userID, err)
	}
	defer rows.Close()

	busy := []model.BusyInterval{}
	for rows.Next() {
		var start, end int64
		if err := rows.Scan(&start, &end); err != nil {
			return nil, fmt.Errorf("sqlite: scanning busy interval: %w", err)
		}
		busy = append(busy, model.BusyInterval{
			Start:  fromMillis(start),
			End:    fromMillis(end),
			Source: model.BusyLocal,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating busy intervals: %w", err)
	}
	return busy, nil
}

// =========================================================================
// HELPERS
// =========================================================================

// querier is the part of *sql.DB and *sql.Tx the helpers below need.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func eventWhere(f repository.EventFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.CreatorID != "" {
		conds = append(conds, "creator_id = ?")
		args = append(args, f.CreatorID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.StartFrom != nil {
		conds = append(conds, "start_at >= ?")
		args = append(args, toMillis(*f.StartFrom))
	}
	if f.StartTo != nil {
		conds = append(conds, "start_at <= ?")
		args = append(args, toMillis(*f.StartTo))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// queryEvents reads all rows before returning so the connection is free
// for the participant query that follows.
func queryEvents(ctx context.Context, q querier, query string, args ...any) ([]model.Event, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing events: %w", err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating events: %w", err)
	}
	return events, nil
}

func insertParticipants(ctx context.Context, q querier, eventID string, ps []model.Participant) error {
	for i, p := range ps {
		_, err := q.ExecContext(ctx,
			`INSERT INTO event_participants (event_id, position, user_id, name, email, avatar, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			eventID, i, p.UserID, p.Name, strings.ToLower(p.Email), p.Avatar, string(p.Status),
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting participant %d of event %s: %w", i, eventID, err)
		}
	}
	return nil
}

// loadParticipants fills Participants on every event with a single query.
func loadParticipants(ctx context.Context, q querier, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}

	index := make(map[string]int, len(events))
	args := make([]any, 0, len(events))
	for i := range events {
		events[i].Participants = []model.Participant{}
		index[events[i].ID] = i
		args = append(args, events[i].ID)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT event_id, user_id, name, email, avatar, status
		 FROM event_participants
		 WHERE event_id IN (`+placeholders(len(args))+`)
		 ORDER BY event_id, position`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("sqlite: loading participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			eventID, status string
			p               model.Participant
		)
		if err := rows.Scan(&eventID, &p.UserID, &p.Name, &p.Email, &p.Avatar, &status); err != nil {
			return fmt.Errorf("sqlite: scanning participant: %w", err)
		}
		p.Status = model.ParticipantStatus(status)
		i := index[eventID]
		events[i].Participants = append(events[i].Participants, p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating participants: %w", err)
	}
	return nil
}

func scanEvent(s scanner) (*model.Event, error) {
	var (
		e                            model.Event
		locType, status              string
		start, end, created, updated int64
	)
	err := s.Scan(
		&e.ID,
		&e.CreatorID,
		&e.Title,
		&e.Description,
		&locType,
		&e.Location,
		&start,
		&end,
		&status,
		&created,
		&updated,
	)
	if err != nil {
		return nil, err
	}
	e.LocationType = model.LocationType(locType)
	e.Status = model.EventStatus(status)
	e.Start = fromMillis(start)
	e.End = fromMillis(end)
	e.CreatedAt = fromMillis(created)
	e.UpdatedAt = fromMillis(updated)
	return &e, nil
}

func locationTypeArg(l *model.LocationType) any {
	if l == nil {
		return nil
	}
	return string(*l)
}

func eventStatusArg(s *model.EventStatus) any {
	if s == nil {
		return nil
	}
	return string(*s)
}
