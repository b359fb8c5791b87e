package payer

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maven/accumulator/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const payerCols = `id, payer_name, payer_code, created_at`

func scanPayer(row pgx.Row) (*Payer, error) {
	var p Payer
	err := row.Scan(&p.ID, &p.PayerName, &p.PayerCode, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPayerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Payer, error) {
	return scanPayer(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+payerCols+` FROM payer_list WHERE id = $1`, id))
}

func (r *repoPG) GetByName(ctx context.Context, name string) (*Payer, error) {
	return scanPayer(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+payerCols+` FROM payer_list WHERE UPPER(payer_name) = UPPER($1)`, name))
}

func (r *repoPG) GetByCode(ctx context.Context, code string) (*Payer, error) {
	return scanPayer(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+payerCols+` FROM payer_list WHERE payer_code = $1 ORDER BY id LIMIT 1`, code))
}

func (r *repoPG) List(ctx context.Context) ([]*Payer, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+payerCols+` FROM payer_list ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Payer
	for rows.Next() {
		p, err := scanPayer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
