package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/lockbridge/tokenvault/internal/token/domain"
)

type revocationsRepo struct {
	db *sql.DB
}

func (r *revocationsRepo) Revoke(ctx context.Context, e domain.RevocationEntry) error {
	// ON CONFLICT DO NOTHING keeps the first revocation and makes repeats
	// a no-op success.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO revocations (token_id, revoked_at, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (token_id) DO NOTHING`,
		e.TokenID, e.RevokedAt.UTC(), e.ExpiresAt.UTC(),
	)
	return err
}

func (r *revocationsRepo) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM revocations WHERE token_id = ?`, tokenID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *revocationsRepo) DeleteExpired(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM revocations WHERE expires_at < ?`, now.UTC(),
	)
	return err
}
