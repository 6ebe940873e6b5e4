package network

import (
	"errors"
)

// ErrTransactionAlreadyEnded is returned when a finished transaction is
// committed or rolled back again.
var ErrTransactionAlreadyEnded = errors.New("transaction has already been committed or rolled back")

// Transaction buffers edits to a network on a working copy. Commit swaps the
// edited tables into the target; Rollback discards them. The target keeps
// its identity either way.
type Transaction struct {
	target     *Network
	work       *Network
	committed  bool
	rolledBack bool
}

// Begin starts a transaction on n.
func Begin(n *Network) *Transaction {
	return &Transaction{target: n, work: n.Clone()}
}

// Network returns the working copy. Edits to it become visible in the
// target only after Commit.
func (tx *Transaction) Network() *Network {
	return tx.work
}

// Commit applies the working copy to the target network.
func (tx *Transaction) Commit() error {
	if tx.committed || tx.rolledBack {
		return ErrTransactionAlreadyEnded
	}
	tx.target.Name = tx.work.Name
	tx.target.SnMVA = tx.work.SnMVA
	tx.target.FHz = tx.work.FHz
	tx.target.tables = tx.work.tables
	tx.target.order = tx.work.order
	tx.work = nil
	tx.committed = true
	return nil
}

// Rollback discards the working copy.
func (tx *Transaction) Rollback() error {
	if tx.committed || tx.rolledBack {
		return ErrTransactionAlreadyEnded
	}
	tx.work = nil
	tx.rolledBack = true
	return nil
}

// Active reports whether the transaction can still be committed.
func (tx *Transaction) Active() bool {
	return !tx.committed && !tx.rolledBack
}

// Apply runs fn inside a transaction on n and commits only when fn succeeds.
func Apply(n *Network, fn func(work *Network) error) error {
	tx := Begin(n)
	if err := fn(tx.Network()); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
