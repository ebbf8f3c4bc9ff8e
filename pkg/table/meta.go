package table

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/segstore/segstore/pkg/colstore"
	"github.com/segstore/segstore/pkg/value"
)

// OrderMeta is the order column's slice of a [Meta] snapshot. Exactly one
// of Number/String is populated, selected by ValueKind.
type OrderMeta struct {
	Key       string
	ValueKind value.Kind
	Number    colstore.OrderedMeta[float64]
	String    colstore.OrderedMeta[string]
}

// Meta is a serializable snapshot of a [Table]'s structure: enough to
// rehydrate the order column and every typed column against the same
// store, without touching it.
type Meta struct {
	SegCap     int
	ChunkCount int
	Order      OrderMeta
	Columns    map[value.Kind]map[string]colstore.IndexedMeta
}

// clone returns a deep copy of m, so the table's committed snapshot is
// never aliased by a caller's mutation of a returned [Meta]: every nested
// slice (segment counts, chunk keys, ordered-column bounds) is copied, not
// just the outer maps.
func (m Meta) clone() Meta {
	out := Meta{
		SegCap:     m.SegCap,
		ChunkCount: m.ChunkCount,
		Order: OrderMeta{
			Key:       m.Order.Key,
			ValueKind: m.Order.ValueKind,
			Number:    m.Order.Number.Clone(),
			String:    m.Order.String.Clone(),
		},
	}
	out.Columns = make(map[value.Kind]map[string]colstore.IndexedMeta, len(m.Columns))

	for kind, byName := range m.Columns {
		cp := make(map[string]colstore.IndexedMeta, len(byName))
		for name, im := range byName {
			cp[name] = im.Clone()
		}

		out.Columns[kind] = cp
	}

	return out
}

// encodeMeta serializes m with encoding/gob, the same wire format the chunk
// layer uses (see colstore/codec.go's doc comment for why: no third-party
// serialization library appears anywhere in the retrieved corpus).
func encodeMeta(m Meta) ([]byte, error) {
	var buf bytes.Buffer

	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("table: encode meta: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeMeta parses a byte slice previously produced by [Table.Flush] (the
// exact bytes it wrote under metaKey) into a [Meta] ready for [Table.SetMeta],
// for callers that read the blob store's meta key directly rather than
// through a live Table.
func DecodeMeta(data []byte) (Meta, error) {
	var m Meta

	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return Meta{}, fmt.Errorf("table: decode meta: %w", err)
	}

	return m, nil
}
