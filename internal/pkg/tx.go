package pkg

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// WithTx executes fn within a database transaction.
// It commits on success, rolls back on error or panic.
func WithTx(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	return run(tx, fn)
}

// Scoped runs fn in a transaction bound to ctx. The time taken to acquire
// the transaction is logged at debug level. The session is released on every
// exit path; errors and panics roll back first.
func Scoped(ctx context.Context, db *gorm.DB, logger *slog.Logger, fn func(tx *gorm.DB) error) error {
	started := time.Now()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if logger != nil {
		logger.DebugContext(ctx, "db session acquired",
			slog.Int64("elapsed_ms", time.Since(started).Milliseconds()),
		)
	}
	return run(tx, fn)
}

func run(tx *gorm.DB, fn func(tx *gorm.DB) error) error {
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
