// Package docstore is the document store boundary used by every crew store.
//
// Documents are addressed by (collection, id) and encoded with BSON. Each
// document carries a version that the store bumps on every write; a
// transaction commits only if every document it read or wrote still has the
// version it observed. Callers retry the whole read-decide-write recipe on
// ErrConflict (see package txn).
package docstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrExists is returned when inserting an id that is already taken.
	ErrExists = errors.New("docstore: document already exists")
	// ErrConflict is returned when a transaction's read set changed before commit.
	ErrConflict = errors.New("docstore: concurrent modification")
	// ErrUnavailable wraps transport and server failures.
	ErrUnavailable = errors.New("docstore: store unavailable")
)

// VersionField is the reserved document field holding the write version.
const VersionField = "_v"

// Op is a filter comparison operator.
type Op string

const (
	Eq  Op = "=="
	Ne  Op = "!="
	Lt  Op = "<"
	Lte Op = "<="
	Gt  Op = ">"
	Gte Op = ">="
	In  Op = "in"
)

// Filter is one predicate on a top-level field. Equality against an array
// field matches when the array contains the value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Where builds a Filter.
func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Query selects documents from one collection. All filters must match.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// ChangeKind says what happened to a document.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// Change is one entry of a collection's change feed. Doc holds the BSON
// document after the change and is nil for deletes.
type Change struct {
	Collection string
	ID         string
	Kind       ChangeKind
	Doc        []byte
	At         time.Time
}

// Tx is the view of the store inside one transaction attempt.
//
// Get records the version it observed. Set replaces a document that was read
// in this transaction, Create inserts one that must not exist and Delete
// removes a document that was read. Writes are buffered and applied
// atomically at commit. Commit checks every document the attempt read,
// written or not, and fails with ErrConflict if one has changed.
type Tx interface {
	Get(ctx context.Context, coll, id string, out any) error
	Set(coll, id string, doc any) error
	Create(coll, id string, doc any) error
	Delete(coll, id string) error
}

// TxFunc is the body of a transaction. It may run more than once.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is the document store used by the ledger and its workflows.
type Store interface {
	Get(ctx context.Context, coll, id string, out any) error
	// Insert stores doc under id; an empty id asks the store to assign one.
	Insert(ctx context.Context, coll, id string, doc any) (string, error)
	// Merge sets the given top-level fields on an existing document.
	Merge(ctx context.Context, coll, id string, fields map[string]any) error
	Delete(ctx context.Context, coll, id string) error
	// Query decodes matching documents into out, a pointer to a slice.
	Query(ctx context.Context, coll string, q Query, out any) error
	Count(ctx context.Context, coll string, q Query) (int64, error)
	// RunTransaction makes a single optimistic attempt and returns
	// ErrConflict if the commit-time check fails.
	RunTransaction(ctx context.Context, fn TxFunc) error
	// Subscribe streams changes to coll until ctx is done.
	Subscribe(ctx context.Context, coll string) (<-chan Change, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
