package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/thertxnetworktwo/toolkit/core/logger"
)

const uniqueViolation = "23505"

// Repo implements all persistence operations over one sqlx pool.
type Repo struct {
	db       *sqlx.DB
	cacheTTL time.Duration
}

// NewRepo wires the pool. cacheTTL bounds how long a number-status verdict
// stays fresh; zero disables expiry.
func NewRepo(db *sqlx.DB, cacheTTL time.Duration) *Repo {
	return &Repo{db: db, cacheTTL: cacheTTL}
}

func isUnique(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// EnsureUser registers the user on first contact and refreshes activity on
// every later one.
func (r *Repo) EnsureUser(ctx context.Context, id int64, username string) error {
	query, args, err := qb.Insert("users").
		Columns("id", "username", "last_seen_at").
		Values(id, username, sq.Expr("NOW()")).
		Suffix("ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, last_seen_at = NOW()").
		ToSql()
	if err != nil {
		return fmt.Errorf("build ensure user: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("ensure user %d: %w", id, err)
	}
	return nil
}

// GetUser returns the user row or ErrNotFound.
func (r *Repo) GetUser(ctx context.Context, id int64) (*User, error) {
	query, args, err := qb.Select("id", "username", "is_premium", "created_at", "last_seen_at").
		From("users").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get user: %w", err)
	}
	var u User
	if err := r.db.GetContext(ctx, &u, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}

// SetPremium grants or revokes the premium flag. Missing user is ErrNotFound.
func (r *Repo) SetPremium(ctx context.Context, id int64, premium bool) error {
	query, args, err := qb.Update("users").
		Set("is_premium", premium).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set premium: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set premium %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	logger.Info(ctx, "storage", "user.premium",
		slog.Int64("user_id", id),
		slog.Bool("premium", premium),
	)
	return nil
}

// AddChannel registers a channel for the user. A second active channel with
// the same ref is ErrDuplicate.
func (r *Repo) AddChannel(ctx context.Context, userID int64, ref, name string) error {
	query, args, err := qb.Insert("channels").
		Columns("user_id", "ref", "name").
		Values(userID, ref, name).
		ToSql()
	if err != nil {
		return fmt.Errorf("build add channel: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUnique(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("add channel %s: %w", ref, err)
	}
	return nil
}

// ListChannels returns the user's active channels, oldest first.
func (r *Repo) ListChannels(ctx context.Context, userID int64) ([]Channel, error) {
	query, args, err := qb.Select("id", "user_id", "ref", "name", "is_active", "created_at").
		From("channels").
		Where(sq.Eq{"user_id": userID, "is_active": true}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list channels: %w", err)
	}
	var out []Channel
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list channels %d: %w", userID, err)
	}
	return out, nil
}

// RemoveChannel soft-deletes the channel. Missing or already inactive is
// ErrNotFound.
func (r *Repo) RemoveChannel(ctx context.Context, userID int64, ref string) error {
	query, args, err := qb.Update("channels").
		Set("is_active", false).
		Where(sq.Eq{"user_id": userID, "ref": ref, "is_active": true}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build remove channel: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("remove channel %s: %w", ref, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveSession stores the credential blob. Re-upload replaces the previous
// row, active or soft-removed, in place.
func (r *Repo) SaveSession(ctx context.Context, userID int64, filename string, data []byte) error {
	query, args, err := qb.Insert("user_sessions").
		Columns("user_id", "filename", "data", "is_active", "uploaded_at").
		Values(userID, filename, data, true, sq.Expr("NOW()")).
		Suffix(`ON CONFLICT (user_id) DO UPDATE
			SET filename = EXCLUDED.filename,
			    data = EXCLUDED.data,
			    is_active = TRUE,
			    uploaded_at = NOW()`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build save session: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save session %d: %w", userID, err)
	}
	logger.Info(ctx, "storage", "session.saved",
		slog.Int64("user_id", userID),
		slog.String("filename", filename),
		slog.Int("bytes", len(data)),
	)
	return nil
}

// GetSession returns the user's active session or ErrNotFound.
func (r *Repo) GetSession(ctx context.Context, userID int64) (*Session, error) {
	query, args, err := qb.Select("id", "user_id", "filename", "data", "is_active", "uploaded_at").
		From("user_sessions").
		Where(sq.Eq{"user_id": userID, "is_active": true}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get session: %w", err)
	}
	var s Session
	if err := r.db.GetContext(ctx, &s, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session %d: %w", userID, err)
	}
	return &s, nil
}

// RemoveSession soft-deletes the active session. Missing is ErrNotFound.
func (r *Repo) RemoveSession(ctx context.Context, userID int64) error {
	query, args, err := qb.Update("user_sessions").
		Set("is_active", false).
		Where(sq.Eq{"user_id": userID, "is_active": true}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build remove session: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("remove session %d: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	logger.Info(ctx, "storage", "session.removed", slog.Int64("user_id", userID))
	return nil
}

// CreateWithdraw records a withdraw request in pending status.
func (r *Repo) CreateWithdraw(ctx context.Context, id string, userID int64, numbers []string) error {
	query, args, err := qb.Insert("withdraw_requests").
		Columns("id", "user_id", "numbers", "status").
		Values(id, userID, pq.StringArray(numbers), WithdrawPending).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create withdraw: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create withdraw %s: %w", id, err)
	}
	logger.Info(ctx, "storage", "withdraw.created",
		slog.Int64("user_id", userID),
		slog.String("request_id", id),
		slog.Int("numbers", len(numbers)),
	)
	return nil
}

// ListWithdraws returns the user's requests, newest first.
func (r *Repo) ListWithdraws(ctx context.Context, userID int64) ([]WithdrawRequest, error) {
	query, args, err := qb.Select("id", "user_id", "numbers", "status", "created_at").
		From("withdraw_requests").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list withdraws: %w", err)
	}
	var out []WithdrawRequest
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list withdraws %d: %w", userID, err)
	}
	return out, nil
}
