// Package store abstracts the key-value store behind the service. The
// production backend is DynamoDB; a Postgres backend and an in-memory
// backend implement the same interface so the services can be exercised
// against either (the in-memory one doubles as the test store).
package store

import "context"

// Item is one stored record as a flat attribute map. Every attribute is a
// string on the wire; typed views are built by the service packages at the
// boundary.
type Item map[string]string

// Key addresses one item. Sort is empty for tables without a sort key.
type Key struct {
	Partition string
	Sort      string
}

// Table describes one logical table: its backend name and its key schema.
type Table struct {
	Name         string
	PartitionKey string
	SortKey      string // "" when the table has no sort key
}

// Index describes a secondary index over derived attributes, queried in
// place of the base table key schema.
type Index struct {
	Name         string
	PartitionKey string
	SortKey      string
}

// SortCondition restricts the sort key in a Query.
type SortCondition int

const (
	SortAny        SortCondition = iota // no sort key condition
	SortEquals                          // sort key == SortValue
	SortBetween                         // SortValue <= sort key <= SortUpper
	SortBeginsWith                      // sort key begins with SortValue
)

// Query is a partition read with optional sort-key condition, equality
// filters, projection, and secondary index.
type Query struct {
	Partition string
	Sort      SortCondition
	SortValue string
	SortUpper string            // Between only
	Filter    map[string]string // post-key equality filters, ANDed
	Fields    []string          // projection; nil returns all attributes
	Index     *Index            // query this index instead of the table key
	Limit     int               // 0 = no limit
}

// TransactKind selects the operation of one TransactOp.
type TransactKind int

const (
	TransactPut TransactKind = iota
	TransactUpdate
	TransactDelete
)

// Precondition guards one TransactOp; a failed precondition cancels the
// whole transaction.
type Precondition int

const (
	PrecondNone      Precondition = iota
	PrecondExists                 // the keyed item must already exist
	PrecondNotExists              // the keyed item must not exist
)

// TransactOp is one write inside a TransactWrite. Put carries the full item
// (keys included) in Item; Update carries the attributes to set in Item and
// the target in Key; Delete carries only Key.
type TransactOp struct {
	Kind         TransactKind
	Table        Table
	Key          Key
	Item         Item
	Precondition Precondition
}

// Store is the narrow key-value contract the services are written against.
//
// Error mapping: failed write preconditions return apperrors.ErrConflict;
// Get on an absent item returns apperrors.ErrNotFound; BatchGet simply
// omits absent keys; unreachable or timed-out backends return
// apperrors.ErrUnavailable.
type Store interface {
	// Put writes an item unconditionally (upsert).
	Put(ctx context.Context, t Table, item Item) error

	// PutIfAbsent writes an item only if its key is not present.
	PutIfAbsent(ctx context.Context, t Table, item Item) error

	// Get reads one item, optionally projecting to the given fields.
	Get(ctx context.Context, t Table, key Key, fields ...string) (Item, error)

	// BatchGet reads many items; missing keys are absent from the result.
	BatchGet(ctx context.Context, t Table, keys []Key, fields ...string) ([]Item, error)

	// Query reads all items of one partition, subject to q.
	Query(ctx context.Context, t Table, q Query) ([]Item, error)

	// Update sets attributes on an existing item.
	Update(ctx context.Context, t Table, key Key, set Item) error

	// TransactWrite applies all ops atomically; it fails as a whole if any
	// precondition does not hold, leaving every item untouched.
	TransactWrite(ctx context.Context, ops ...TransactOp) error

	// Close releases backend resources.
	Close()
}

// Tables groups the logical tables of the service; built once from config
// and passed into each service.
type Tables struct {
	Users     Table
	Friends   Table
	Results   Table
	ResultLog Table
	Reference Table

	// UserSearch is the prefix-search index over derived name attributes.
	UserSearch Index
}

// All lists every logical table, for backends that bootstrap schemas.
func (t Tables) All() []Table {
	return []Table{t.Users, t.Friends, t.Results, t.ResultLog, t.Reference}
}

// project returns a copy of item restricted to the given fields. Callers
// name every attribute they need, key attributes included. A nil field list
// copies the whole item.
func project(item Item, keep []string) Item {
	if keep == nil {
		out := make(Item, len(item))
		for k, v := range item {
			out[k] = v
		}
		return out
	}
	out := make(Item, len(keep))
	for _, f := range keep {
		if v, ok := item[f]; ok {
			out[f] = v
		}
	}
	return out
}
