package storage

import "errors"

// Sentinel errors returned by storage operations. Callers match them with
// errors.Is after unwrapping.
var (
	// ErrSerializationConflict signals a write-write conflict on a version
	// chain. The caller should abort the transaction and retry.
	ErrSerializationConflict = errors.New("storage: serialization conflict")

	// ErrDeletedObject signals that the accessed record has no version
	// visible at the requested view, or that its visible state is deleted.
	ErrDeletedObject = errors.New("storage: deleted object")

	// ErrVertexHasEdges signals a vertex delete attempted while adjacent
	// edges are still visible at View NEW.
	ErrVertexHasEdges = errors.New("storage: vertex has edges")

	// ErrPropertyTypeMismatch signals a typed value accessor invoked on a
	// PropertyValue holding a different type.
	ErrPropertyTypeMismatch = errors.New("storage: property type mismatch")

	// ErrUnknownID signals an id that was never issued by the name store, or
	// a vertex or edge gid with no record in the storage.
	ErrUnknownID = errors.New("storage: unknown id")

	// ErrIndexExists signals index creation for an already indexed
	// (label, property) pair.
	ErrIndexExists = errors.New("storage: index already exists")

	// ErrIndexDoesNotExist signals an index removal or scan for a (label,
	// property) pair that has no registered index.
	ErrIndexDoesNotExist = errors.New("storage: index does not exist")

	// ErrInvalidValue signals a value that cannot participate in the total
	// property order, e.g. a NaN double.
	ErrInvalidValue = errors.New("storage: invalid value")

	// ErrTransactionEnded signals an operation on an accessor whose
	// transaction has already committed or aborted.
	ErrTransactionEnded = errors.New("storage: transaction ended")
)
