package table

import "errors"

// Error classification for table operations.
var (
	// ErrMissingOrderKey indicates a row passed to Insert did not carry a
	// concrete value for the table's designated order key. Rows already
	// inserted earlier in the same batch remain inserted.
	ErrMissingOrderKey = errors.New("table: row missing order key")

	// ErrUnsupportedType indicates a row supplied a value whose kind is
	// neither number nor string for a column.
	ErrUnsupportedType = errors.New("table: unsupported column value type")

	// ErrTypeMismatch indicates a row's value kind conflicts with a
	// column's (or the order key's) already-established type, or a
	// SetMeta snapshot's order value kind disagrees with the table's
	// configured one.
	ErrTypeMismatch = errors.New("table: type mismatch")
)
