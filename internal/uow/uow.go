package uow

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	postgresrepo "github.com/avoronin/cineseat/internal/repository/postgres"
)

// AfterCommit is a function that runs after a successful transaction commit.
// Cache invalidation and notification dispatch live here so a rolled-back
// settlement never produces user-visible side effects.
type AfterCommit func(ctx context.Context)

// maxAttempts bounds serialization retries. Transactions run Serializable,
// so 40001/40P01 failures are expected under contention and safe to rerun.
const maxAttempts = 3

// UoW represents a unit of work.
type UoW struct {
	store *postgresrepo.Store
}

func NewUoW(store *postgresrepo.Store) *UoW {
	return &UoW{store: store}
}

// Do runs fn inside the transaction. After a successful commit,
// it executes all after-commit hooks.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx postgresrepo.DB, after func(AfterCommit)) error,
) error {
	return u.DoWithOpts(ctx, nil, fn)
}

// DoWithOpts runs fn inside the transaction with the given options,
// rerunning fn from scratch on serialization failures. After a successful
// commit, it executes all after-commit hooks.
func (u *UoW) DoWithOpts(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx postgresrepo.DB, after func(AfterCommit)) error,
) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
			}
		}

		var hooks []AfterCommit
		err = u.store.RunTx(ctx, opts, func(ctx context.Context, tx postgresrepo.DB) error {
			hooks = nil
			return fn(ctx, tx, func(h AfterCommit) {
				hooks = append(hooks, h)
			})
		})
		if err != nil {
			if postgresrepo.IsRetryable(err) {
				continue
			}
			return err
		}

		for _, h := range hooks {
			h(ctx)
		}
		return nil
	}

	return err
}
