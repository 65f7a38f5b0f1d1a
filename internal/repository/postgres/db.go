package postgresrepo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of pgx satisfied by both *pgxpool.Pool and pgx.Tx, so the
// same repository code can run inside or outside a transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
	}
}

// RunTx runs fn inside a transaction. Seat, draft, booking and balance
// mutations all share the Serializable default so concurrent settlements
// cannot interleave.
func (s *Store) RunTx(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx DB) error,
) error {
	txOpts := pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	}

	if opts != nil {
		txOpts.IsoLevel = opts.IsoLevel
		txOpts.AccessMode = opts.AccessMode
		txOpts.DeferrableMode = opts.DeferrableMode
	}

	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return err
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// handle picks the transaction when one is supplied, otherwise the pool.
func (s *Store) handle(db DB) DB {
	if db != nil {
		return db
	}
	return s.pool
}

func (s *Store) Seats() *SeatRepo            { return &SeatRepo{store: s} }
func (s *Store) Drafts() *DraftRepo          { return &DraftRepo{store: s} }
func (s *Store) Settlement() *SettlementRepo { return &SettlementRepo{store: s} }
func (s *Store) Catalog() *CatalogRepo       { return &CatalogRepo{store: s} }
func (s *Store) Query() *QueryRepo           { return &QueryRepo{store: s} }
