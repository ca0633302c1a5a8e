package repo

import (
	"context"
	"database/sql"

	"github.com/SergeyBogomolovv/checkout-service/pkg/trm"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// conn runs queries inside the transaction carried by ctx, or on the pool.
type conn struct {
	db *sqlx.DB
	qb sq.StatementBuilderType
}

func newConn(db *sqlx.DB) conn {
	return conn{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (c conn) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if tx := trm.ExtractTx(ctx); tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return c.db.ExecContext(ctx, query, args...)
}

func (c conn) getContext(ctx context.Context, dest any, query string, args ...any) error {
	if tx := trm.ExtractTx(ctx); tx != nil {
		return tx.GetContext(ctx, dest, query, args...)
	}
	return c.db.GetContext(ctx, dest, query, args...)
}

func (c conn) selectContext(ctx context.Context, dest any, query string, args ...any) error {
	if tx := trm.ExtractTx(ctx); tx != nil {
		return tx.SelectContext(ctx, dest, query, args...)
	}
	return c.db.SelectContext(ctx, dest, query, args...)
}
