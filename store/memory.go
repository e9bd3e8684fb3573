package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"puzzle-pals-server/apperrors"
)

// Memory is an in-process Store used by tests and local development. All
// operations hold a single mutex, so transactional semantics are trivial.
type Memory struct {
	mu sync.Mutex
	// tables[tableName][partition][sort] = item
	tables map[string]map[string]map[string]Item
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]map[string]map[string]Item)}
}

func (m *Memory) partitionsOf(table string) map[string]map[string]Item {
	p, ok := m.tables[table]
	if !ok {
		p = make(map[string]map[string]Item)
		m.tables[table] = p
	}
	return p
}

// keyOf extracts the item's key under the table's key schema.
func keyOf(t Table, item Item) (Key, error) {
	pk, ok := item[t.PartitionKey]
	if !ok || pk == "" {
		return Key{}, fmt.Errorf("%w: item is missing partition key %s", apperrors.ErrInvalidInput, t.PartitionKey)
	}
	k := Key{Partition: pk}
	if t.SortKey != "" {
		sk, ok := item[t.SortKey]
		if !ok || sk == "" {
			return Key{}, fmt.Errorf("%w: item is missing sort key %s", apperrors.ErrInvalidInput, t.SortKey)
		}
		k.Sort = sk
	}
	return k, nil
}

func (m *Memory) lookup(t Table, key Key) (Item, bool) {
	parts, ok := m.tables[t.Name]
	if !ok {
		return nil, false
	}
	rows, ok := parts[key.Partition]
	if !ok {
		return nil, false
	}
	item, ok := rows[key.Sort]
	return item, ok
}

func (m *Memory) write(t Table, item Item) error {
	key, err := keyOf(t, item)
	if err != nil {
		return err
	}
	parts := m.partitionsOf(t.Name)
	rows, ok := parts[key.Partition]
	if !ok {
		rows = make(map[string]Item)
		parts[key.Partition] = rows
	}
	cp := make(Item, len(item))
	for k, v := range item {
		cp[k] = v
	}
	rows[key.Sort] = cp
	return nil
}

// Put writes an item unconditionally.
func (m *Memory) Put(ctx context.Context, t Table, item Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.write(t, item)
}

// PutIfAbsent writes an item only if its key is not present.
func (m *Memory) PutIfAbsent(ctx context.Context, t Table, item Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, err := keyOf(t, item)
	if err != nil {
		return err
	}
	if _, exists := m.lookup(t, key); exists {
		return fmt.Errorf("%w: %s %v already exists", apperrors.ErrConflict, t.Name, key)
	}
	return m.write(t, item)
}

// Get reads one item; apperrors.ErrNotFound when absent.
func (m *Memory) Get(ctx context.Context, t Table, key Key, fields ...string) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.lookup(t, key)
	if !ok {
		return nil, fmt.Errorf("%w: %s %v", apperrors.ErrNotFound, t.Name, key)
	}
	return project(item, fields), nil
}

// BatchGet reads many items; missing keys are simply absent from the result.
func (m *Memory) BatchGet(ctx context.Context, t Table, keys []Key, fields ...string) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Item, 0, len(keys))
	for _, key := range keys {
		if item, ok := m.lookup(t, key); ok {
			out = append(out, project(item, fields))
		}
	}
	return out, nil
}

// Query reads one partition in sort-key order, applying the query's
// condition, filters, and projection.
func (m *Memory) Query(ctx context.Context, t Table, q Query) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var candidates []Item
	if q.Index != nil {
		// Index queries scan the whole table on the derived attributes.
		for _, rows := range m.partitionsOf(t.Name) {
			for _, item := range rows {
				if item[q.Index.PartitionKey] != q.Partition {
					continue
				}
				if !matchSort(item[q.Index.SortKey], q) {
					continue
				}
				candidates = append(candidates, item)
			}
		}
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i][q.Index.SortKey] < candidates[j][q.Index.SortKey]
		})
	} else {
		rows := m.partitionsOf(t.Name)[q.Partition]
		sorts := make([]string, 0, len(rows))
		for sk := range rows {
			sorts = append(sorts, sk)
		}
		sort.Strings(sorts)
		for _, sk := range sorts {
			if !matchSort(sk, q) {
				continue
			}
			candidates = append(candidates, rows[sk])
		}
	}

	out := make([]Item, 0, len(candidates))
	for _, item := range candidates {
		if !matchFilter(item, q.Filter) {
			continue
		}
		out = append(out, project(item, q.Fields))
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func matchSort(sk string, q Query) bool {
	switch q.Sort {
	case SortEquals:
		return sk == q.SortValue
	case SortBetween:
		return sk >= q.SortValue && sk <= q.SortUpper
	case SortBeginsWith:
		return strings.HasPrefix(sk, q.SortValue)
	default:
		return true
	}
}

func matchFilter(item Item, filter map[string]string) bool {
	for k, v := range filter {
		if item[k] != v {
			return false
		}
	}
	return true
}

// Update sets attributes on an existing item.
func (m *Memory) Update(ctx context.Context, t Table, key Key, set Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.lookup(t, key)
	if !ok {
		return fmt.Errorf("%w: %s %v", apperrors.ErrNotFound, t.Name, key)
	}
	for k, v := range set {
		item[k] = v
	}
	return nil
}

// TransactWrite checks every precondition first and applies the ops only
// when all hold, so a failed condition leaves every item untouched.
func (m *Memory) TransactWrite(ctx context.Context, ops ...TransactOp) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, op := range ops {
		key := op.Key
		if op.Kind == TransactPut {
			k, err := keyOf(op.Table, op.Item)
			if err != nil {
				return err
			}
			key = k
		}
		_, exists := m.lookup(op.Table, key)
		switch op.Precondition {
		case PrecondExists:
			if !exists {
				return fmt.Errorf("%w: %s %v does not exist", apperrors.ErrConflict, op.Table.Name, key)
			}
		case PrecondNotExists:
			if exists {
				return fmt.Errorf("%w: %s %v already exists", apperrors.ErrConflict, op.Table.Name, key)
			}
		}
	}

	for _, op := range ops {
		switch op.Kind {
		case TransactPut:
			if err := m.write(op.Table, op.Item); err != nil {
				return err
			}
		case TransactUpdate:
			item, ok := m.lookup(op.Table, op.Key)
			if !ok {
				// Unconditional update on a missing item creates it.
				item = Item{op.Table.PartitionKey: op.Key.Partition}
				if op.Table.SortKey != "" {
					item[op.Table.SortKey] = op.Key.Sort
				}
				if err := m.write(op.Table, item); err != nil {
					return err
				}
				item, _ = m.lookup(op.Table, op.Key)
			}
			for k, v := range op.Item {
				item[k] = v
			}
		case TransactDelete:
			if rows, ok := m.partitionsOf(op.Table.Name)[op.Key.Partition]; ok {
				delete(rows, op.Key.Sort)
			}
		}
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() {}
