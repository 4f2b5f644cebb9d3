package db

import (
	"database/sql"
	"errors"

	"gorm.io/gorm"
)

// ErrTxDone is returned when a transaction is committed after it already ended.
var ErrTxDone = errors.New("transaction already finished")

// Tx is a transaction with a single owner. Whichever of Commit or Rollback runs
// first ends it; a Rollback after Commit is a no-op, so callers can always
// defer Rollback right after Begin.
type Tx struct {
	conn *gorm.DB
	done bool
}

// DB exposes the transactional handle for repository calls.
func (t *Tx) DB() *gorm.DB {
	return t.conn
}

// Done reports whether the transaction was committed or rolled back.
func (t *Tx) Done() bool {
	return t == nil || t.done
}

func (t *Tx) Commit() error {
	if t.Done() {
		return ErrTxDone
	}
	t.done = true
	return t.conn.Commit().Error
}

func (t *Tx) Rollback() error {
	if t.Done() {
		return nil
	}
	t.done = true
	if err := t.conn.Rollback().Error; err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
