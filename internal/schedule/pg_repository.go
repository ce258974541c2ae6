package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// GetByDoctor reads the doctor's stored weekly template. A doctor with an
// empty or null schedule column gets the registration default.
func (r *PgRepository) GetByDoctor(ctx context.Context, doctorID uuid.UUID) (Weekly, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT schedule
		FROM doctors
		WHERE id = $1
	`, doctorID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	if len(raw) == 0 {
		return Default(), nil
	}

	var w Weekly
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	if len(w) == 0 {
		return Default(), nil
	}
	return w, nil
}

func (r *PgRepository) Save(ctx context.Context, doctorID uuid.UUID, w Weekly) error {
	raw, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE doctors
		SET schedule = $2,
		    updated_at = now()
		WHERE id = $1
	`, doctorID, raw)
	if err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}
