package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/studysync/studysync-server/internal/model"
	"github.com/studysync/studysync-server/internal/repository"
)

var _ repository.StudySessionRepository = (*DB)(nil)

// CreateSession records a study session.
func (db *DB) CreateSession(ctx context.Context, s *model.StudySession) error {
	s.ID = xid.New().String()
	s.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO study_sessions (id, user_id, date, minutes, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Date, s.Minutes, toMillis(s.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting study session: %w", err)
	}
	return nil
}

// MinutesByDate sums session minutes per day between two date keys.
// "YYYY-MM-DD" strings sort the same way as the dates they name, so a
// plain BETWEEN on the text column is a correct range check.
func (db *DB) MinutesByDate(ctx context.Context, userID, fromKey, toKey string) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT date, SUM(minutes)
		 FROM study_sessions
		 WHERE user_id = ? AND date BETWEEN ? AND ?
		 GROUP BY date`,
		userID, fromKey, toKey,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: summing study minutes for user %s: %w", userID, err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			date    string
			minutes int
		)
		if err := rows.Scan(&date, &minutes); err != nil {
			return nil, fmt.Errorf("sqlite: scanning study minutes: %w", err)
		}
		out[date] = minutes
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating study minutes: %w", err)
	}
	return out, nil
}
