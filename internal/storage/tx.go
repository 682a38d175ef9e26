package storage

import (
	"sync"

	"github.com/jmoiron/sqlx"
)

// Tx is a database transaction that can defer work until it has committed.
// Work registered with AfterCommit never runs when the transaction rolls back.
type Tx struct {
	*sqlx.Tx

	mu    sync.Mutex
	hooks []func()
}

// NewTx wraps an open sqlx transaction.
func NewTx(tx *sqlx.Tx) *Tx {
	return &Tx{Tx: tx}
}

// AfterCommit registers fn to run once the transaction has committed.
func (t *Tx) AfterCommit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, fn)
}

// Commit commits the transaction and then runs the registered hooks in order.
func (t *Tx) Commit() error {
	if t.Tx != nil {
		if err := t.Tx.Commit(); err != nil {
			t.drop()
			return err
		}
	}

	t.mu.Lock()
	hooks := t.hooks
	t.hooks = nil
	t.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return nil
}

// Rollback aborts the transaction and discards the registered hooks.
func (t *Tx) Rollback() error {
	t.drop()
	if t.Tx != nil {
		return t.Tx.Rollback()
	}
	return nil
}

func (t *Tx) drop() {
	t.mu.Lock()
	t.hooks = nil
	t.mu.Unlock()
}
