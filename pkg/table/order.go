package table

import (
	"context"
	"fmt"

	"github.com/segstore/segstore/pkg/blobstore"
	"github.com/segstore/segstore/pkg/colstore"
	"github.com/segstore/segstore/pkg/value"
)

// orderColumn erases the order sequence's concrete element type (float64 or
// string) behind [value.Value], so Table itself never needs to be generic.
// Exactly one of [numberOrder] or [stringOrder] backs a given table, chosen
// at construction by valueKind.
type orderColumn interface {
	insert(ctx context.Context, v value.Value) (int64, error)
	get(ctx context.Context, i int64) (value.Value, bool, error)
	rng(ctx context.Context, lo, hi int64) ([]value.Value, error)
	length() int64
	flush(ctx context.Context) ([]string, error)
	valueKind() value.Kind
	meta() OrderMeta
	setMeta(m OrderMeta)
}

type numberOrder struct {
	key string
	seq *colstore.OrderedSequence[float64]
}

func newNumberOrder(store blobstore.Store, key string, segCap, chunkCount int) *numberOrder {
	return &numberOrder{key: key, seq: colstore.NewOrderedSequence[float64](store, key, segCap, chunkCount)}
}

func (c *numberOrder) insert(ctx context.Context, v value.Value) (int64, error) {
	if v.Kind() != value.Number {
		return 0, fmt.Errorf("table: order key %q expects a number, got %s: %w", c.key, v.Kind(), ErrTypeMismatch)
	}

	return c.seq.Insert(ctx, v.Float())
}

func (c *numberOrder) get(ctx context.Context, i int64) (value.Value, bool, error) {
	f, ok, err := c.seq.Get(ctx, i)
	if err != nil || !ok {
		return value.MissingValue, ok, err
	}

	return value.Num(f), true, nil
}

func (c *numberOrder) rng(ctx context.Context, lo, hi int64) ([]value.Value, error) {
	fs, err := c.seq.Range(ctx, lo, hi)
	if err != nil {
		return nil, err
	}

	out := make([]value.Value, len(fs))
	for i, f := range fs {
		out[i] = value.Num(f)
	}

	return out, nil
}

func (c *numberOrder) length() int64 { return c.seq.Len() }

func (c *numberOrder) flush(ctx context.Context) ([]string, error) { return c.seq.Flush(ctx) }

func (c *numberOrder) valueKind() value.Kind { return value.Number }

func (c *numberOrder) meta() OrderMeta {
	return OrderMeta{Key: c.key, ValueKind: value.Number, Number: c.seq.GetMeta()}
}

func (c *numberOrder) setMeta(m OrderMeta) {
	c.key = m.Key
	c.seq.SetMeta(m.Number)
}

type stringOrder struct {
	key string
	seq *colstore.OrderedSequence[string]
}

func newStringOrder(store blobstore.Store, key string, segCap, chunkCount int) *stringOrder {
	return &stringOrder{key: key, seq: colstore.NewOrderedSequence[string](store, key, segCap, chunkCount)}
}

func (c *stringOrder) insert(ctx context.Context, v value.Value) (int64, error) {
	if v.Kind() != value.String {
		return 0, fmt.Errorf("table: order key %q expects a string, got %s: %w", c.key, v.Kind(), ErrTypeMismatch)
	}

	return c.seq.Insert(ctx, v.StringVal())
}

func (c *stringOrder) get(ctx context.Context, i int64) (value.Value, bool, error) {
	s, ok, err := c.seq.Get(ctx, i)
	if err != nil || !ok {
		return value.MissingValue, ok, err
	}

	return value.Str(s), true, nil
}

func (c *stringOrder) rng(ctx context.Context, lo, hi int64) ([]value.Value, error) {
	ss, err := c.seq.Range(ctx, lo, hi)
	if err != nil {
		return nil, err
	}

	out := make([]value.Value, len(ss))
	for i, s := range ss {
		out[i] = value.Str(s)
	}

	return out, nil
}

func (c *stringOrder) length() int64 { return c.seq.Len() }

func (c *stringOrder) flush(ctx context.Context) ([]string, error) { return c.seq.Flush(ctx) }

func (c *stringOrder) valueKind() value.Kind { return value.String }

func (c *stringOrder) meta() OrderMeta {
	return OrderMeta{Key: c.key, ValueKind: value.String, String: c.seq.GetMeta()}
}

func (c *stringOrder) setMeta(m OrderMeta) {
	c.key = m.Key
	c.seq.SetMeta(m.String)
}
