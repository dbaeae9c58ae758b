package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/lockbridge/tokenvault/internal/token/domain"
	"github.com/lockbridge/tokenvault/internal/token/store"
)

type keyGenerationsRepo struct {
	db *sql.DB
}

func (r *keyGenerationsRepo) Create(ctx context.Context, rec domain.KeyGenerationRecord) error {
	var validUntil any
	if rec.ValidUntil != nil {
		validUntil = rec.ValidUntil.UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO key_generations (id, algorithm, salt, encrypted_key, derived_at, valid_until)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Algorithm, rec.Salt, rec.EncryptedKey, rec.DerivedAt.UTC(), validUntil,
	)
	return err
}

func (r *keyGenerationsRepo) Retire(ctx context.Context, id uint64, validUntil time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE key_generations SET valid_until = ? WHERE id = ?`,
		validUntil.UTC(), id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *keyGenerationsRepo) Delete(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM key_generations WHERE id = ?`, id)
	return err
}

func (r *keyGenerationsRepo) List(ctx context.Context) ([]domain.KeyGenerationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, algorithm, salt, encrypted_key, derived_at, valid_until
		FROM key_generations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.KeyGenerationRecord
	for rows.Next() {
		var rec domain.KeyGenerationRecord
		var encryptedKey []byte
		var validUntil sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Algorithm, &rec.Salt, &encryptedKey, &rec.DerivedAt, &validUntil); err != nil {
			return nil, err
		}
		rec.EncryptedKey = encryptedKey
		if validUntil.Valid {
			t := validUntil.Time
			rec.ValidUntil = &t
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
