package payer

import (
	"context"
	"errors"
)

var ErrPayerNotFound = errors.New("payer not found")

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Payer, error)
	GetByName(ctx context.Context, name string) (*Payer, error)
	GetByCode(ctx context.Context, code string) (*Payer, error)
	List(ctx context.Context) ([]*Payer, error)
}
