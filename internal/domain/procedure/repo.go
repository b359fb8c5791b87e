package procedure

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrProcedureNotFound = errors.New("treatment procedure not found")

type Repository interface {
	GetByUUID(ctx context.Context, id uuid.UUID) (*TreatmentProcedure, error)
}
