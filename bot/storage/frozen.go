package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/thertxnetworktwo/toolkit/bot/frozen"
)

// Lookup returns the cached verdict for (channel, number), or nil when there
// is none inside the freshness window. Implements frozen.Cache.
func (r *Repo) Lookup(ctx context.Context, channelRef, number string) (*frozen.Result, error) {
	b := qb.Select("number", "is_frozen", "reason", "checked_at").
		From("frozen_cache").
		Where(sq.Eq{"channel_ref": channelRef, "number": number})
	if r.cacheTTL > 0 {
		b = b.Where(sq.Expr("checked_at > NOW() - make_interval(secs => ?)", r.cacheTTL.Seconds()))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build cache lookup: %w", err)
	}

	var row struct {
		Number    string       `db:"number"`
		IsFrozen  bool         `db:"is_frozen"`
		Reason    string       `db:"reason"`
		CheckedAt sql.NullTime `db:"checked_at"`
	}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache lookup %s: %w", number, err)
	}

	res := frozen.Result{Number: row.Number, Frozen: row.IsFrozen, Reason: row.Reason}
	if row.CheckedAt.Valid {
		res.CheckedAt = row.CheckedAt.Time
	}
	return &res, nil
}

// Store upserts the verdict for (channel, number). Implements frozen.Cache.
func (r *Repo) Store(ctx context.Context, channelRef string, res frozen.Result) error {
	query, args, err := qb.Insert("frozen_cache").
		Columns("channel_ref", "number", "is_frozen", "reason", "checked_at").
		Values(channelRef, res.Number, res.Frozen, res.Reason, res.CheckedAt).
		Suffix(`ON CONFLICT (channel_ref, number) DO UPDATE
			SET is_frozen = EXCLUDED.is_frozen,
			    reason = EXCLUDED.reason,
			    checked_at = EXCLUDED.checked_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build cache store: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("cache store %s: %w", res.Number, err)
	}
	return nil
}
