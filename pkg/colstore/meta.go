package colstore

// IndexedMeta is a serializable snapshot of an [IndexedSequence]'s
// structure: enough to rehydrate its segment list and chunk key table
// without re-reading any chunk payloads. All fields are exported so a
// containing table's meta snapshot can gob-encode it as part of a larger
// structure.
type IndexedMeta struct {
	Base baseMeta
}

// OrderedMeta is the [OrderedSequence] analogue of [IndexedMeta],
// additionally carrying each segment's [min, max] bounds. Bounds for a
// sequence with zero segments are empty.
type OrderedMeta[T any] struct {
	Base  baseMeta
	Mins  []T
	Maxes []T
}

// Clone returns a deep copy of m: the returned value shares no backing
// array with m, so a caller holding onto a table's meta snapshot can mutate its
// own copy freely.
func (m IndexedMeta) Clone() IndexedMeta {
	return IndexedMeta{Base: m.Base.clone()}
}

// Clone returns a deep copy of m, as [IndexedMeta.Clone] does for the
// Mins/Maxes bounds slices as well.
func (m OrderedMeta[T]) Clone() OrderedMeta[T] {
	return OrderedMeta[T]{
		Base:  m.Base.clone(),
		Mins:  append([]T(nil), m.Mins...),
		Maxes: append([]T(nil), m.Maxes...),
	}
}
