// Package docstore is the client for the schemaless document store that holds
// every collection of the application.
//
// A Store is constructed explicitly (NewMemory, NewMongo, NewSQL or Open) and
// passed to the components that need it; there is no package-level handle.
// Its lifecycle is connect → ready → closed:
//
//	store, err := docstore.Open(ctx)   // bounded by STORE_CONNECT_TIMEOUT
//	defer store.Close(context.Background())
//
//	inv := store.Collection("inventory")
//	id, _ := inv.Add(ctx, docstore.Fields{"name": "Wireless Mouse", "quantity": 15})
//	_, _ = inv.Increment(ctx, id, "quantity", 10)
//
// Subscriptions deliver full snapshots, never patches. A newer snapshot
// always replaces an older one and stale snapshots are never delivered.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrNotFound is returned when a document id does not exist.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("docstore: store closed")
	// ErrUnavailable wraps bootstrap failures.
	ErrUnavailable = errors.New("docstore: store unavailable")
)

// Fields is the raw content of a document. Keys starting with "_" are
// reserved for drivers and stripped on read.
type Fields map[string]any

// Document is one stored record.
type Document struct {
	ID     string `json:"id"`
	Fields Fields `json:"fields"`
}

// Snapshot is the full content of a collection at one point in time.
type Snapshot struct {
	Collection string
	Version    uint64
	Docs       []Document
}

// Store hands out collections by name.
type Store interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
	Driver() string
}

// Collection is the set of operations available on one named collection.
type Collection interface {
	Name() string

	// Add creates a document with a store-assigned id.
	Add(ctx context.Context, fields Fields) (string, error)
	Get(ctx context.Context, id string) (Document, error)
	// List returns every document in insertion order.
	List(ctx context.Context) ([]Document, error)
	// Set creates or replaces id. With merge only the given keys are written.
	Set(ctx context.Context, id string, fields Fields, merge bool) error
	// Update merges fields into an existing document.
	Update(ctx context.Context, id string, fields Fields) error
	Delete(ctx context.Context, id string) error

	// Increment atomically adds delta to a numeric field and returns the new
	// value. The result is clamped at zero.
	Increment(ctx context.Context, id, field string, delta int64) (int64, error)
	// ArrayUnion appends values missing from the array field, creating the
	// document when it does not exist.
	ArrayUnion(ctx context.Context, id, field string, values ...any) error
	// TakeAndDelete atomically reads and removes a document. Of several
	// concurrent callers exactly one receives the content.
	TakeAndDelete(ctx context.Context, id string) (Document, error)

	// Subscribe delivers the current snapshot and then a new one after every
	// change. The returned func (or cancelling ctx) stops delivery.
	Subscribe(ctx context.Context, fn func(Snapshot)) (func(), error)
}

// Encode converts a struct into Fields using its json tags. The id key is
// dropped since ids live outside the document body.
func Encode(v any) (Fields, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode: %w", err)
	}
	var f Fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("docstore: encode: %w", err)
	}
	delete(f, "id")
	return f, nil
}

// Decode fills out from doc, setting the json "id" key to doc.ID.
func Decode(doc Document, out any) error {
	m := make(map[string]any, len(doc.Fields)+1)
	for k, v := range doc.Fields {
		m[k] = v
	}
	m["id"] = doc.ID

	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("docstore: decode %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("docstore: decode %s: %w", doc.ID, err)
	}
	return nil
}

// DecodeAll decodes every document. Documents that do not fit T are skipped
// and reported through the returned error slice.
func DecodeAll[T any](docs []Document) ([]T, []error) {
	out := make([]T, 0, len(docs))
	var errs []error
	for _, d := range docs {
		var v T
		if err := Decode(d, &v); err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, v)
	}
	return out, errs
}

// clone deep-copies f through JSON so callers never share maps with a driver.
func clone(f Fields) Fields {
	if f == nil {
		return Fields{}
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return Fields{}
	}
	var out Fields
	_ = json.Unmarshal(raw, &out)
	if out == nil {
		out = Fields{}
	}
	return out
}

func public(f Fields) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		if strings.HasPrefix(k, "_") {
			continue
		}
		out[k] = v
	}
	return out
}

func merge(dst, src Fields) Fields {
	if dst == nil {
		dst = Fields{}
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// toInt64 reads the numeric types produced by JSON and BSON decoding.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(math.Round(n)), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

func clampAdd(current, delta int64) int64 {
	if next := current + delta; next > 0 {
		return next
	}
	return 0
}

// unionAppend appends values not already present in existing. Equality is
// by JSON representation.
func unionAppend(existing []any, values []any) []any {
	seen := make(map[string]struct{}, len(existing)+len(values))
	for _, v := range existing {
		seen[jsonKey(v)] = struct{}{}
	}
	for _, v := range values {
		k := jsonKey(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		existing = append(existing, v)
	}
	return existing
}

func jsonKey(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}

func asSlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return append([]any(nil), s...)
	case []string:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out
	default:
		return nil
	}
}
