package storage

import (
	"fmt"
	"sync/atomic"
	"time"
)

// version is one full-copy snapshot of a record's state. Stamps follow the
// usual MVCC layout: txCreated/cmdCreated are written once at clone time and
// never change, txExpired/cmdExpired are written by the transaction that
// supersedes or deletes this version. Expiration stamps and the next link are
// atomic because readers walk the chain without holding the chain lock.
type version[P any] struct {
	txCreated  uint64
	cmdCreated uint64
	txExpired  atomic.Uint64
	cmdExpired atomic.Uint64

	data P

	next atomic.Pointer[version[P]]
}

// VersionChain is the per-record list of versions, newest first. Writers
// serialize through the owner lock; readers walk the chain lock-free and
// decide visibility from the stamps and the commit log.
type VersionChain[P any] struct {
	head atomic.Pointer[version[P]]

	// owner holds the id of the transaction that write-locked the chain,
	// or zero when unlocked.
	owner atomic.Uint64
}

// lockPollInterval is how often a blocked writer re-checks the owner lock
// when a lock timeout is configured.
const lockPollInterval = 50 * time.Microsecond

// NewVersionChain creates a chain whose first version is stamped and locked
// by the creating transaction. The caller sees its own write immediately
// under the NEW view; nobody else sees it until commit.
func NewVersionChain[P any](tx *Transaction, data P) *VersionChain[P] {
	vc := &VersionChain[P]{}
	vc.head.Store(&version[P]{
		txCreated:  tx.id,
		cmdCreated: tx.commandID,
		data:       data,
	})
	vc.owner.Store(tx.id)
	tx.addOwned(vc)
	return vc
}

// createdVisible reports whether the creation stamp of v is visible to the
// transaction under the given view.
func (v *version[P]) createdVisible(tx *Transaction, view View) bool {
	c := v.txCreated
	if c == tx.id {
		if view == ViewOld {
			return v.cmdCreated < tx.commandID
		}
		return v.cmdCreated <= tx.commandID
	}
	return tx.engine.clog.isCommitted(c) && !tx.inSnapshot(c) && c < tx.id
}

// expiredVisible reports whether the expiration stamp of v is visible to the
// transaction under the given view.
func (v *version[P]) expiredVisible(tx *Transaction, view View) bool {
	e := v.txExpired.Load()
	if e == 0 {
		return false
	}
	if e == tx.id {
		ec := v.cmdExpired.Load()
		if view == ViewOld {
			return ec < tx.commandID
		}
		return ec <= tx.commandID
	}
	return tx.engine.clog.isCommitted(e) && !tx.inSnapshot(e) && e < tx.id
}

// Visible walks newest to oldest and returns the first version whose creation
// is visible to the transaction. The second result is false when that version
// is visibly expired, meaning the record does not exist for this transaction.
func (vc *VersionChain[P]) Visible(tx *Transaction, view View) (*version[P], bool) {
	for v := vc.head.Load(); v != nil; v = v.next.Load() {
		if !v.createdVisible(tx, view) {
			continue
		}
		if v.expiredVisible(tx, view) {
			return nil, false
		}
		return v, true
	}
	return nil, false
}

// visibleAt resolves visibility against a bare timestamp with no live
// transaction: a stamp counts when its transaction committed with an id below
// ts. Index backfill and the garbage collector read chains this way.
func (vc *VersionChain[P]) visibleAt(ts uint64, clog *commitLog) (*version[P], bool) {
	for v := vc.head.Load(); v != nil; v = v.next.Load() {
		if !(clog.isCommitted(v.txCreated) && v.txCreated < ts) {
			continue
		}
		if e := v.txExpired.Load(); e != 0 && clog.isCommitted(e) && e < ts {
			return nil, false
		}
		return v, true
	}
	return nil, false
}

// LockWrite acquires the chain's write lock for the transaction. The lock is
// re-entrant for the owner. When another transaction holds it the acquisition
// fails with ErrSerializationConflict, after polling for up to timeout if one
// is configured. On first acquisition the chain is registered with the
// transaction so commit and abort release it.
func (vc *VersionChain[P]) LockWrite(tx *Transaction, timeout time.Duration) error {
	if vc.owner.Load() == tx.id {
		return nil
	}
	if vc.tryLock(tx.id) {
		tx.addOwned(vc)
		return nil
	}
	if timeout > 0 {
		deadline := time.Now().Add(timeout)
		for time.Now().Before(deadline) {
			time.Sleep(lockPollInterval)
			if vc.tryLock(tx.id) {
				tx.addOwned(vc)
				return nil
			}
		}
	}
	return fmt.Errorf("record locked by transaction %d: %w", vc.owner.Load(), ErrSerializationConflict)
}

func (vc *VersionChain[P]) tryLock(tid uint64) bool {
	return vc.owner.CompareAndSwap(0, tid)
}

// releaseLock clears the owner stamp if this transaction holds it.
func (vc *VersionChain[P]) releaseLock(tid uint64) {
	vc.owner.CompareAndSwap(tid, 0)
}

// headStampConflicts reports whether a head stamp left by another transaction
// forbids this one from writing. Stamps from aborted transactions never
// conflict; stamps from active ones always do; committed stamps conflict
// when the writer started after this transaction did or was still active in
// its snapshot.
func headStampConflicts(tx *Transaction, stamp uint64) bool {
	if stamp == 0 || stamp == tx.id {
		return false
	}
	switch tx.engine.clog.get(stamp) {
	case StatusAborted:
		return false
	case StatusActive:
		return true
	default:
		return stamp >= tx.id || tx.inSnapshot(stamp)
	}
}

// checkWriteConflict enforces first-updater-wins against the head version's
// stamps.
func (vc *VersionChain[P]) checkWriteConflict(tx *Transaction) error {
	head := vc.head.Load()
	if headStampConflicts(tx, head.txCreated) {
		return fmt.Errorf("head created by transaction %d: %w", head.txCreated, ErrSerializationConflict)
	}
	if e := head.txExpired.Load(); headStampConflicts(tx, e) {
		return fmt.Errorf("head expired by transaction %d: %w", e, ErrSerializationConflict)
	}
	return nil
}

// Update gives the transaction a mutable version to write through. The head
// is reused when this transaction already cloned it in the current command;
// otherwise a fresh copy is pushed and the previous head is expired with this
// transaction's stamps. Returns ErrDeletedObject when the record is already
// deleted in the transaction's NEW view.
func (vc *VersionChain[P]) Update(tx *Transaction, clone func(P) P, timeout time.Duration) (*P, error) {
	if err := vc.LockWrite(tx, timeout); err != nil {
		return nil, err
	}
	if err := vc.checkWriteConflict(tx); err != nil {
		return nil, err
	}

	cur, ok := vc.Visible(tx, ViewNew)
	if !ok {
		return nil, ErrDeletedObject
	}

	head := vc.head.Load()
	if head == cur && head.txCreated == tx.id && head.cmdCreated == tx.commandID {
		return &head.data, nil
	}

	fresh := &version[P]{
		txCreated:  tx.id,
		cmdCreated: tx.commandID,
		data:       clone(cur.data),
	}
	fresh.next.Store(head)
	head.txExpired.Store(tx.id)
	head.cmdExpired.Store(tx.commandID)
	vc.head.Store(fresh)
	return &fresh.data, nil
}

// MarkDeleted stamps the visible head as expired by this transaction. No new
// version is pushed; deletion is just an expiration the rest of the chain
// machinery already understands.
func (vc *VersionChain[P]) MarkDeleted(tx *Transaction, timeout time.Duration) error {
	if err := vc.LockWrite(tx, timeout); err != nil {
		return err
	}
	if err := vc.checkWriteConflict(tx); err != nil {
		return err
	}
	cur, ok := vc.Visible(tx, ViewNew)
	if !ok {
		return ErrDeletedObject
	}
	cur.txExpired.Store(tx.id)
	cur.cmdExpired.Store(tx.commandID)
	return nil
}

// abortRevert undoes this transaction's writes on the chain: versions it
// created are popped off the head, and an expiration stamp it left on the
// surviving head is cleared.
func (vc *VersionChain[P]) abortRevert(tid uint64) {
	head := vc.head.Load()
	for head != nil && head.txCreated == tid {
		head = head.next.Load()
	}
	vc.head.Store(head)
	if head != nil && head.txExpired.Load() == tid {
		head.txExpired.Store(0)
		head.cmdExpired.Store(0)
	}
}

// prune drops versions no active transaction can reach. The anchor is the
// newest version whose creation committed before oldest; everything below it
// is unreachable and is cut loose for the runtime to reclaim.
func (vc *VersionChain[P]) prune(oldest uint64, clog *commitLog) {
	for v := vc.head.Load(); v != nil; v = v.next.Load() {
		if clog.isCommitted(v.txCreated) && v.txCreated < oldest {
			v.next.Store(nil)
			return
		}
	}
}

// gcDead reports whether the whole chain is invisible to every present and
// future transaction: the head committed an expiration below oldest and no
// lock or in-flight stamp remains.
func (vc *VersionChain[P]) gcDead(oldest uint64, clog *commitLog) bool {
	head := vc.head.Load()
	if head == nil {
		return true
	}
	if vc.owner.Load() != 0 {
		return false
	}
	e := head.txExpired.Load()
	return e != 0 && clog.isCommitted(e) && e < oldest &&
		clog.isCommitted(head.txCreated) && head.txCreated < oldest
}
