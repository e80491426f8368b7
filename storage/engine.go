package storage

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// ownedChain is a version chain write-locked by a transaction. The concrete
// types are the vertex and edge chains.
type ownedChain interface {
	releaseLock(tid uint64)
	abortRevert(tid uint64)
}

// Transaction carries the per-transaction MVCC state: the id, the snapshot of
// transactions active at begin, the current command id, and the chain locks
// taken so far. A transaction belongs to a single goroutine.
type Transaction struct {
	id        uint64
	snapshot  map[uint64]struct{}
	commandID uint64

	commitTimestamp uint64

	engine *Engine
	store  *Storage
	owned  []ownedChain
	done   bool
}

// storage returns the storage this transaction runs against.
func (tx *Transaction) storage() *Storage {
	return tx.store
}

// ID returns the transaction id.
func (tx *Transaction) ID() uint64 {
	return tx.id
}

// inSnapshot reports whether other was active when this transaction began.
func (tx *Transaction) inSnapshot(other uint64) bool {
	_, ok := tx.snapshot[other]
	return ok
}

// addOwned registers a chain whose write lock this transaction acquired.
func (tx *Transaction) addOwned(c ownedChain) {
	tx.owned = append(tx.owned, c)
}

// Engine allocates transaction ids and commit timestamps, tracks the active
// set, and records transaction outcomes in the commit log.
type Engine struct {
	mu     sync.Mutex
	nextID uint64
	active map[uint64]struct{}
	clog   *commitLog
}

// NewEngine initializes a transaction engine.
func NewEngine() *Engine {
	log := logrus.WithField("component", "TransactionEngine")
	log.Info("Initializing TransactionEngine")
	return &Engine{
		nextID: 1,
		active: make(map[uint64]struct{}),
		clog:   newCommitLog(),
	}
}

// Begin starts a transaction: it allocates the next id, snapshots the active
// set, and records the transaction as active in the commit log.
func (e *Engine) Begin() *Transaction {
	e.mu.Lock()
	id := e.nextID
	e.nextID++

	snapshot := make(map[uint64]struct{}, len(e.active))
	for a := range e.active {
		snapshot[a] = struct{}{}
	}
	e.active[id] = struct{}{}
	e.clog.set(id, StatusActive)
	e.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"component":     "TransactionEngine",
		"transaction":   id,
		"snapshot_size": len(snapshot),
	}).Debug("Transaction started")

	return &Transaction{
		id:       id,
		snapshot: snapshot,
		engine:   e,
	}
}

// Commit finalizes the transaction. The commit log transitions to committed
// before any chain lock is released, so no other transaction can observe a
// half-committed state. The allocated commit timestamp keeps the id space
// strictly ordered for index timestamps.
func (e *Engine) Commit(tx *Transaction) {
	e.mu.Lock()
	tx.commitTimestamp = e.nextID
	e.nextID++
	e.clog.set(tx.id, StatusCommitted)
	delete(e.active, tx.id)
	e.mu.Unlock()

	for _, c := range tx.owned {
		c.releaseLock(tx.id)
	}
	tx.owned = nil
	tx.done = true

	logrus.WithFields(logrus.Fields{
		"component":        "TransactionEngine",
		"transaction":      tx.id,
		"commit_timestamp": tx.commitTimestamp,
	}).Debug("Transaction committed")
}

// Abort records the transaction as aborted, detaches its versions from every
// chain it wrote, and releases the chain locks.
func (e *Engine) Abort(tx *Transaction) {
	e.mu.Lock()
	e.clog.set(tx.id, StatusAborted)
	delete(e.active, tx.id)
	e.mu.Unlock()

	for _, c := range tx.owned {
		c.abortRevert(tx.id)
		c.releaseLock(tx.id)
	}
	tx.owned = nil
	tx.done = true

	logrus.WithFields(logrus.Fields{
		"component":   "TransactionEngine",
		"transaction": tx.id,
	}).Debug("Transaction aborted")
}

// OldestActive returns the smallest id in the active set, if any.
func (e *Engine) OldestActive() (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var oldest uint64
	found := false
	for id := range e.active {
		if !found || id < oldest {
			oldest = id
			found = true
		}
	}
	return oldest, found
}

// currentID returns the next id that will be allocated. The garbage collector
// uses it as the reclamation floor when no transaction is active.
func (e *Engine) currentID() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextID
}

// GlobalInfo returns the commit log status recorded for a transaction id.
func (e *Engine) GlobalInfo(id uint64) TransactionStatus {
	return e.clog.get(id)
}
