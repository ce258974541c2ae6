package schedule

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrDoctorNotFound = errors.New("doctor not found")

// Repository loads and stores doctors' weekly templates.
type Repository interface {
	GetByDoctor(ctx context.Context, doctorID uuid.UUID) (Weekly, error)
	Save(ctx context.Context, doctorID uuid.UUID, w Weekly) error
}
