package docstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store. It backs tests and local development and
// offers the same atomicity guarantees as the networked drivers.
type Memory struct {
	mu     sync.Mutex
	cols   map[string]*memCollection
	closed bool
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{cols: map[string]*memCollection{}}
}

func (m *Memory) Driver() string { return "memory" }

func (m *Memory) Collection(name string) Collection {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.cols[name]; ok {
		return c
	}
	c := &memCollection{store: m, name: name, docs: map[string]*memDoc{}}
	c.feed = newFeed(name, c.List)
	m.cols[name] = c
	return c
}

func (m *Memory) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *Memory) Close(context.Context) error {
	m.mu.Lock()
	m.closed = true
	cols := make([]*memCollection, 0, len(m.cols))
	for _, c := range m.cols {
		cols = append(cols, c)
	}
	m.mu.Unlock()

	for _, c := range cols {
		c.feed.closeAll()
	}
	return nil
}

func (m *Memory) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type memDoc struct {
	seq    uint64
	fields Fields
}

type memCollection struct {
	store *Memory
	name  string
	feed  *feed

	mu   sync.Mutex
	seq  uint64
	docs map[string]*memDoc
}

func (c *memCollection) Name() string { return c.name }

func (c *memCollection) Add(ctx context.Context, fields Fields) (string, error) {
	id := uuid.NewString()
	if err := c.write(func() error {
		c.insertLocked(id, clone(fields))
		return nil
	}); err != nil {
		return "", err
	}
	return id, nil
}

func (c *memCollection) Get(_ context.Context, id string) (Document, error) {
	if c.store.isClosed() {
		return Document{}, ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Fields: public(clone(d.fields))}, nil
}

func (c *memCollection) List(context.Context) ([]Document, error) {
	if c.store.isClosed() {
		return nil, ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.docs))
	for id := range c.docs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return c.docs[ids[i]].seq < c.docs[ids[j]].seq })

	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, Document{ID: id, Fields: public(clone(c.docs[id].fields))})
	}
	return out, nil
}

func (c *memCollection) Set(_ context.Context, id string, fields Fields, mergeFields bool) error {
	return c.write(func() error {
		d, ok := c.docs[id]
		if !ok {
			c.insertLocked(id, clone(fields))
			return nil
		}
		if mergeFields {
			d.fields = merge(d.fields, clone(fields))
		} else {
			d.fields = clone(fields)
		}
		return nil
	})
}

func (c *memCollection) Update(_ context.Context, id string, fields Fields) error {
	return c.write(func() error {
		d, ok := c.docs[id]
		if !ok {
			return ErrNotFound
		}
		d.fields = merge(d.fields, clone(fields))
		return nil
	})
}

func (c *memCollection) Delete(_ context.Context, id string) error {
	return c.write(func() error {
		if _, ok := c.docs[id]; !ok {
			return ErrNotFound
		}
		delete(c.docs, id)
		return nil
	})
}

func (c *memCollection) Increment(_ context.Context, id, field string, delta int64) (int64, error) {
	var next int64
	err := c.write(func() error {
		d, ok := c.docs[id]
		if !ok {
			return ErrNotFound
		}
		current, _ := toInt64(d.fields[field])
		next = clampAdd(current, delta)
		d.fields[field] = float64(next)
		return nil
	})
	return next, err
}

func (c *memCollection) ArrayUnion(_ context.Context, id, field string, values ...any) error {
	vals := asSlice(clone(Fields{"v": values})["v"])
	return c.write(func() error {
		d, ok := c.docs[id]
		if !ok {
			c.insertLocked(id, Fields{field: unionAppend(nil, vals)})
			return nil
		}
		d.fields[field] = unionAppend(asSlice(d.fields[field]), vals)
		return nil
	})
}

func (c *memCollection) TakeAndDelete(_ context.Context, id string) (Document, error) {
	var doc Document
	err := c.write(func() error {
		d, ok := c.docs[id]
		if !ok {
			return ErrNotFound
		}
		doc = Document{ID: id, Fields: public(clone(d.fields))}
		delete(c.docs, id)
		return nil
	})
	return doc, err
}

func (c *memCollection) Subscribe(ctx context.Context, fn func(Snapshot)) (func(), error) {
	if c.store.isClosed() {
		return nil, ErrClosed
	}
	return c.feed.subscribe(ctx, fn)
}

// write applies fn under the collection lock and publishes a snapshot when
// fn succeeds.
func (c *memCollection) write(fn func() error) error {
	if c.store.isClosed() {
		return ErrClosed
	}
	c.mu.Lock()
	err := fn()
	c.mu.Unlock()
	if err != nil {
		return err
	}
	_ = c.feed.refresh(context.Background())
	return nil
}

func (c *memCollection) insertLocked(id string, fields Fields) {
	c.seq++
	c.docs[id] = &memDoc{seq: c.seq, fields: fields}
}
