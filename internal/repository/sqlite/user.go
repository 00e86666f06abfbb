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

// compile-time checks that *DB implements the account repositories
var (
	_ repository.UserRepository    = (*DB)(nil)
	_ repository.ContactRepository = (*DB)(nil)
)

const userColumns = `id, username, email, password_hash, daily_goal_minutes,
	google_access_token, google_refresh_token, google_token_expiry,
	created_at, updated_at`

// Create inserts a new account. ID and timestamps are filled in on the
// caller's struct; email is normalised to lower case.
//
// The UNIQUE constraints on email and username are the source of truth for
// duplicates: a plain INSERT either succeeds or fails with a constraint
// error, so two concurrent registrations can't both win.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.DailyGoalMinutes <= 0 {
		user.DailyGoalMinutes = model.DefaultDailyGoalMinutes
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.DailyGoalMinutes,
		user.Google.AccessToken,
		user.Google.RefreshToken,
		googleExpiry(user.Google.Expiry),
		toMillis(user.CreatedAt),
		toMillis(user.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user already exists")
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}
	return nil
}

// GetUserByID retrieves a user by ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetByEmail looks an account up by email, case-insensitively.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email %s: %w", email, err)
	}
	return u, nil
}

// UpdateGoogleToken overwrites the stored Google credential triple.
// Callers that want to keep an existing refresh token must merge it in
// before calling; this method stores exactly what it's given.
func (db *DB) UpdateGoogleToken(ctx context.Context, userID string, token model.GoogleToken) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET google_access_token = ?, google_refresh_token = ?, google_token_expiry = ?, updated_at = ?
		 WHERE id = ?`,
		token.AccessToken,
		token.RefreshToken,
		googleExpiry(token.Expiry),
		toMillis(time.Now()),
		userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating google token for user %s: %w", userID, err)
	}
	return expectOneRow(res, "user", userID)
}

// SetDailyGoal stores the user's daily study goal in minutes.
func (db *DB) SetDailyGoal(ctx context.Context, userID string, minutes int) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET daily_goal_minutes = ?, updated_at = ? WHERE id = ?`,
		minutes, toMillis(time.Now()), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting daily goal for user %s: %w", userID, err)
	}
	return expectOneRow(res, "user", userID)
}

// =========================================================================
// CONTACTS
// =========================================================================

// AddContact adds an address-book entry. A second contact with the same
// email for the same user is a conflict.
func (db *DB) AddContact(ctx context.Context, c *model.Contact) error {
	c.ID = xid.New().String()
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO contacts (id, user_id, name, email, avatar, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Email, c.Avatar, toMillis(c.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("Contact already exists")
		}
		return fmt.Errorf("sqlite: inserting contact for user %s: %w", c.UserID, err)
	}
	return nil
}

// ListContacts returns a user's contacts in insertion order.
func (db *DB) ListContacts(ctx context.Context, userID string) ([]model.Contact, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, name, email, avatar, created_at
		 FROM contacts WHERE user_id = ? ORDER BY created_at ASC, rowid ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing contacts for user %s: %w", userID, err)
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		var (
			c       model.Contact
			created int64
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Avatar, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scanning contact: %w", err)
		}
		c.CreatedAt = fromMillis(created)
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating contacts: %w", err)
	}
	return contacts, nil
}

// =========================================================================
// HELPERS
// =========================================================================

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*model.User, error) {
	var (
		u                        model.User
		expiry, created, updated int64
	)
	err := s.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.DailyGoalMinutes,
		&u.Google.AccessToken,
		&u.Google.RefreshToken,
		&expiry,
		&created,
		&updated,
	)
	if err != nil {
		return nil, err
	}
	if expiry != 0 {
		u.Google.Expiry = fromMillis(expiry)
	}
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return &u, nil
}

// googleExpiry stores the zero time as 0 rather than a large negative number.
func googleExpiry(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return toMillis(t)
}

// expectOneRow maps "no row affected" to apperror.NotFound, the way every
// single-row UPDATE or DELETE here reports a missing id.
func expectOneRow(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
