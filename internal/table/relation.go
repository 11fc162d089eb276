package table

import "github.com/relicdb/relic/internal/common"

// Relation is the row-level capability every table variant — disk-backed
// or in-memory — implements identically. The engine talks to tables only
// through this interface; it never knows which backing a given table uses.
type Relation interface {
	// Insert validates the row's primary key and stores it, returning its
	// row identifier. Fails with ErrMissingKey, ErrWrongType, or
	// ErrDuplicate.
	Insert(row common.Row) (common.RID, error)

	// Select performs a point lookup by primary key.
	Select(key int64) (common.Row, bool, error)

	// SelectRange returns every row whose primary key is in [low, high],
	// in ascending key order.
	SelectRange(low, high int64) ([]common.Row, error)

	// SelectAll returns every live row, in storage order.
	SelectAll() ([]common.Row, error)

	// Update merges partial's non-key columns into the row at key.
	// Fails with ErrPrimaryKeyImmutable, ErrNotFound, or ErrOversize.
	Update(key int64, partial common.Row) error

	// Delete removes the row at key. Fails with ErrNotFound.
	Delete(key int64) error

	// Flush persists any buffered state. A no-op for in-memory tables.
	Flush() error

	// Close releases the table's resources.
	Close() error
}

var (
	_ Relation = (*DiskTable)(nil)
	_ Relation = (*MemTable)(nil)
)
