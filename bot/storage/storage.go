// Package storage is the persistence collaborator: users, channels, uploaded
// session credentials, withdraw requests and the number-status cache, all in
// Postgres.
package storage

import (
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

var (
	// ErrNotFound marks a lookup miss the caller can talk about to the user.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicate marks a uniqueness violation on user-visible data.
	ErrDuplicate = errors.New("storage: duplicate")
)

// qb builds every query with Postgres placeholders.
var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// User is a registered bot user.
type User struct {
	ID         int64     `db:"id"`
	Username   string    `db:"username"`
	IsPremium  bool      `db:"is_premium"`
	CreatedAt  time.Time `db:"created_at"`
	LastSeenAt time.Time `db:"last_seen_at"`
}

// Channel is a user-registered target channel. Removal is soft: is_active
// flips to false and the row stays for history.
type Channel struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Ref       string    `db:"ref"`
	Name      string    `db:"name"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
}

// Session is an uploaded credential blob. One active session per user;
// re-upload replaces the row in place.
type Session struct {
	ID         int64     `db:"id"`
	UserID     int64     `db:"user_id"`
	Filename   string    `db:"filename"`
	Data       []byte    `db:"data"`
	IsActive   bool      `db:"is_active"`
	UploadedAt time.Time `db:"uploaded_at"`
}

// WithdrawRequest is a submitted withdraw batch.
type WithdrawRequest struct {
	ID        string         `db:"id"`
	UserID    int64          `db:"user_id"`
	Numbers   pq.StringArray `db:"numbers"`
	Status    string         `db:"status"`
	CreatedAt time.Time      `db:"created_at"`
}

// Withdraw request statuses.
const (
	WithdrawPending = "pending"
	WithdrawDone    = "done"
	WithdrawFailed  = "failed"
)
