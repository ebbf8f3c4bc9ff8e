// Package table composes segstore's ordered and indexed sequences into a
// row-oriented structure: one ordered sequence keyed by a designated order
// column, plus a dynamically growing set of typed indexed columns kept
// aligned to it by position.
package table

import (
	"context"
	"fmt"

	"github.com/segstore/segstore/internal/fanout"
	"github.com/segstore/segstore/pkg/blobstore"
	"github.com/segstore/segstore/pkg/colstore"
	"github.com/segstore/segstore/pkg/value"
)

// Row is one record: a column name to value mapping, including the order
// key. Missing entries are never present in a Row produced by Get/Range;
// absence of a key means absence of a value at that position, not a
// Missing-kind Value.
type Row map[string]value.Value

// Table is a single append-ordered, columnar table. Not safe for
// concurrent mutation: like the sequences it composes, callers must
// serialize at the table boundary.
type Table struct {
	store blobstore.Store

	orderKey   string
	segCap     int
	chunkCount int

	order orderColumn

	// columns is keyed by the bucket a column's first concrete value
	// assigned it, matching the meta snapshot's columns.string/columns.number
	// split.
	columns map[value.Kind]map[string]*colstore.IndexedSequence[value.Value]

	committed Meta
}

// New constructs a table backed by store, with orderKind selecting whether
// the order column (named orderKey) is number- or string-valued. segCap
// and chunkCount are the defaults applied to every sequence the table
// creates, including columns created on demand.
func New(store blobstore.Store, orderKey string, orderKind value.Kind, segCap, chunkCount int) (*Table, error) {
	t := &Table{
		store:      store,
		orderKey:   orderKey,
		segCap:     segCap,
		chunkCount: chunkCount,
		columns:    make(map[value.Kind]map[string]*colstore.IndexedSequence[value.Value]),
	}

	switch orderKind {
	case value.Number:
		t.order = newNumberOrder(store, orderKey, segCap, chunkCount)
	case value.String:
		t.order = newStringOrder(store, orderKey, segCap, chunkCount)
	default:
		return nil, fmt.Errorf("table: order key %q: %w", orderKey, ErrUnsupportedType)
	}

	t.committed = t.buildMeta()

	return t, nil
}

// Insert inserts each row, in batch order, at the position its order key
// sorts to, aligning every known column to that position. If a row is rejected, every row before it in the
// batch remains inserted; callers inspecting a partial failure should
// treat the table as having consumed a prefix of rows.
func (t *Table) Insert(ctx context.Context, rows []Row) error {
	for i, row := range rows {
		if err := t.insertRow(ctx, row); err != nil {
			return fmt.Errorf("table: insert row %d: %w", i, err)
		}
	}

	return nil
}

func (t *Table) insertRow(ctx context.Context, row Row) error {
	orderVal, ok := row[t.orderKey]
	if !ok || orderVal.IsMissing() {
		return fmt.Errorf("table: %w: %q", ErrMissingOrderKey, t.orderKey)
	}

	n := t.order.length()

	pos, err := t.order.insert(ctx, orderVal)
	if err != nil {
		return err
	}

	touched := make(map[string]bool, len(row))

	for name, v := range row {
		if name == t.orderKey || v.IsMissing() {
			continue
		}

		col, err := t.columnFor(ctx, name, v.Kind(), n)
		if err != nil {
			return err
		}

		if err := col.InsertAt(ctx, pos, v); err != nil {
			return err
		}

		touched[name] = true
	}

	for kind, byName := range t.columns {
		for name, col := range byName {
			if touched[name] {
				continue
			}

			if err := col.InsertAt(ctx, pos, value.MissingValue); err != nil {
				return fmt.Errorf("table: pad column %q (%s): %w", name, kind, err)
			}
		}
	}

	return nil
}

// columnFor returns the indexed sequence backing column name, creating it
// (and padding it with n Missing values, matching the order column's
// length before this row) on first sighting. kind must match the bucket
// an earlier row already assigned name to, if any.
func (t *Table) columnFor(ctx context.Context, name string, kind value.Kind, n int64) (*colstore.IndexedSequence[value.Value], error) {
	if kind != value.Number && kind != value.String {
		return nil, fmt.Errorf("table: column %q: %w", name, ErrUnsupportedType)
	}

	for otherKind, byName := range t.columns {
		if otherKind == kind {
			continue
		}

		if _, exists := byName[name]; exists {
			return nil, fmt.Errorf("table: column %q already has kind %s, got %s: %w", name, otherKind, kind, ErrTypeMismatch)
		}
	}

	byName, ok := t.columns[kind]
	if !ok {
		byName = make(map[string]*colstore.IndexedSequence[value.Value])
		t.columns[kind] = byName
	}

	col, ok := byName[name]
	if !ok {
		col = colstore.NewIndexedSequence[value.Value](t.store, t.columnSeqID(kind, name), t.segCap, t.chunkCount)
		if err := padWithMissing(ctx, col, n); err != nil {
			return nil, fmt.Errorf("table: create column %q: %w", name, err)
		}

		byName[name] = col
	}

	return col, nil
}

func (t *Table) columnSeqID(kind value.Kind, name string) string {
	return fmt.Sprintf("col/%s/%s", kind, name)
}

// padWithMissing appends n Missing values to col in a single bulk insert,
// used only to bring a brand-new column up to the order column's
// pre-insert length. Every target is 0: on a fresh, empty sequence every
// pair's old_index collapses to the same position regardless, and since
// every value is the identical Missing sentinel the tie-break order among
// them is unobservable.
func padWithMissing(ctx context.Context, col *colstore.IndexedSequence[value.Value], n int64) error {
	if n <= 0 {
		return nil
	}

	targets := make([]int64, n)
	values := make([]value.Value, n)

	for i := range values {
		values[i] = value.MissingValue
	}

	return col.InsertManyAt(ctx, targets, values)
}

// Get fetches row i, including the order key, or ok=false if i is out of
// the table's current range. Columns holding Missing at i are omitted from
// the result.
func (t *Table) Get(ctx context.Context, i int64) (Row, bool, error) {
	orderVal, ok, err := t.order.get(ctx, i)
	if err != nil || !ok {
		return nil, ok, err
	}

	row := Row{t.orderKey: orderVal}

	for _, byName := range t.columns {
		for name, col := range byName {
			v, ok, err := col.Get(ctx, i)
			if err != nil {
				return nil, false, err
			}

			if ok && !v.IsMissing() {
				row[name] = v
			}
		}
	}

	return row, true, nil
}

// Range fetches rows [offset, offset+limit), or [offset, total) if limit is
// negative (treated as "to the end"). Rows are assembled column-by-column
// via each sequence's own range, not a per-row loop of Get calls, since a
// per-row loop would re-walk the Fenwick tree once per row instead of once
// per column.
func (t *Table) Range(ctx context.Context, offset, limit int64) ([]Row, error) {
	n := t.order.length()

	hi := n
	if limit >= 0 {
		hi = offset + limit
		if hi > n {
			hi = n
		}
	}

	orderVals, err := t.order.rng(ctx, offset, hi)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, len(orderVals))
	for i, v := range orderVals {
		rows[i] = Row{t.orderKey: v}
	}

	for _, byName := range t.columns {
		for name, col := range byName {
			vals, err := col.Range(ctx, offset, hi)
			if err != nil {
				return nil, err
			}

			for i, v := range vals {
				if !v.IsMissing() {
					rows[i][name] = v
				}
			}
		}
	}

	return rows, nil
}

// Flush commits the order column's and every other column's dirty segments
// concurrently, and only on full success persists a cloned meta snapshot
// under metaKey. If any flush fails, the store's value at metaKey and the
// table's committed snapshot are both left exactly as they were.
func (t *Table) Flush(ctx context.Context, metaKey string) error {
	var tasks []func() error

	tasks = append(tasks, func() error {
		_, err := t.order.flush(ctx)
		return err
	})

	for _, byName := range t.columns {
		for _, col := range byName {
			col := col

			tasks = append(tasks, func() error {
				_, err := col.Flush(ctx)
				return err
			})
		}
	}

	if _, err := fanout.All(len(tasks), func(i int) (struct{}, error) {
		return struct{}{}, tasks[i]()
	}); err != nil {
		return err
	}

	snapshot := t.buildMeta()

	data, err := encodeMeta(snapshot)
	if err != nil {
		return err
	}

	if err := t.store.Set(ctx, metaKey, data); err != nil {
		return fmt.Errorf("table: persist meta: %w", err)
	}

	t.committed = snapshot.clone()

	return nil
}

// GetMeta returns the table's last successfully committed snapshot, or a
// snapshot of its just-constructed empty state if Flush has never
// succeeded.
func (t *Table) GetMeta() Meta { return t.committed.clone() }

// SetMeta rehydrates the table's order column and every typed column from
// a previously obtained snapshot, discarding any in-memory state. It does
// not touch the blob store; segment contents are loaded lazily on first
// access. Returns [ErrTypeMismatch] if m's order value kind disagrees with
// the table's configured one.
func (t *Table) SetMeta(m Meta) error {
	if m.Order.ValueKind != t.order.valueKind() {
		return fmt.Errorf("table: order key %q: snapshot has kind %s, table expects %s: %w",
			t.orderKey, m.Order.ValueKind, t.order.valueKind(), ErrTypeMismatch)
	}

	t.segCap = m.SegCap
	t.chunkCount = m.ChunkCount
	t.orderKey = m.Order.Key
	t.order.setMeta(m.Order)

	t.columns = make(map[value.Kind]map[string]*colstore.IndexedSequence[value.Value])

	for kind, byName := range m.Columns {
		cols := make(map[string]*colstore.IndexedSequence[value.Value], len(byName))

		for name, im := range byName {
			col := colstore.NewIndexedSequence[value.Value](t.store, t.columnSeqID(kind, name), m.SegCap, m.ChunkCount)
			col.SetMeta(im)
			cols[name] = col
		}

		t.columns[kind] = cols
	}

	t.committed = m.clone()

	return nil
}

func (t *Table) buildMeta() Meta {
	m := Meta{
		SegCap:     t.segCap,
		ChunkCount: t.chunkCount,
		Order:      t.order.meta(),
		Columns:    make(map[value.Kind]map[string]colstore.IndexedMeta, len(t.columns)),
	}

	for kind, byName := range t.columns {
		cp := make(map[string]colstore.IndexedMeta, len(byName))
		for name, col := range byName {
			cp[name] = col.GetMeta()
		}

		m.Columns[kind] = cp
	}

	return m
}
