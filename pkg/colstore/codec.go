package colstore

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// chunkPayload is the on-disk shape of one chunk blob: exactly C slots,
// each holding the byte representation of one segment's values. A nil
// slot means that segment had no committed content at the time of this
// chunk's write (empty segment, or a slot beyond the sequence's current
// segment count).
type chunkPayload[T any] struct {
	Slots [][]T
}

// gobEncode serializes v using encoding/gob.
//
// No third-party serialization library appears anywhere in the retrieved
// corpus's dependency surface (no protobuf, no msgpack, no flatbuffers);
// gob is the stdlib-idiomatic choice for this kind of process-internal,
// generic-friendly binary encoding, and the chunk wire format has no
// external consumer that would demand a portable format. See DESIGN.md.
func gobEncode[T any](v chunkPayload[T]) ([]byte, error) {
	var buf bytes.Buffer

	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("colstore: encode chunk payload: %w", err)
	}

	return buf.Bytes(), nil
}

func gobDecode[T any](data []byte) (chunkPayload[T], error) {
	var payload chunkPayload[T]

	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return chunkPayload[T]{}, fmt.Errorf("colstore: decode chunk payload: %w", err)
	}

	return payload, nil
}
