package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is the row layout of the sql driver: one row per document, the body
// kept as a JSON object.
type Record struct {
	Seq        uint64    `gorm:"primaryKey;autoIncrement"`
	Collection string    `gorm:"size:64;not null;uniqueIndex:idx_documents_collection_doc"`
	DocID      string    `gorm:"column:doc_id;size:64;not null;uniqueIndex:idx_documents_collection_doc"`
	Data       string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

func (Record) TableName() string { return "documents" }

// SQL is a Store over any gorm dialect. Change notification is in-process
// only, so every writer that needs live updates must share the instance.
type SQL struct {
	db *gorm.DB

	mu   sync.Mutex
	cols map[string]*sqlCollection
}

// NewSQL wraps db. The documents table must exist (see the migrations).
func NewSQL(db *gorm.DB) *SQL {
	return &SQL{db: db, cols: map[string]*sqlCollection{}}
}

func (s *SQL) Driver() string { return "sql" }

func (s *SQL) Collection(name string) Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.cols[name]; ok {
		return c
	}
	c := &sqlCollection{db: s.db, name: name}
	c.feed = newFeed(name, c.List)
	s.cols[name] = c
	return c
}

func (s *SQL) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQL) Close(context.Context) error {
	s.mu.Lock()
	for _, c := range s.cols {
		c.feed.closeAll()
	}
	s.mu.Unlock()

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type sqlCollection struct {
	db   *gorm.DB
	name string
	feed *feed
}

func (c *sqlCollection) Name() string { return c.name }

func (c *sqlCollection) Add(ctx context.Context, fields Fields) (string, error) {
	id := uuid.NewString()
	data, err := encodeRow(fields)
	if err != nil {
		return "", err
	}
	rec := Record{Collection: c.name, DocID: id, Data: data}
	if err := c.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return "", fmt.Errorf("docstore: %s add: %w", c.name, err)
	}
	c.changed(ctx)
	return id, nil
}

func (c *sqlCollection) Get(ctx context.Context, id string) (Document, error) {
	var rec Record
	err := c.db.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", c.name, id).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("docstore: %s get: %w", c.name, err)
	}
	return rec.document()
}

func (c *sqlCollection) List(ctx context.Context) ([]Document, error) {
	var recs []Record
	if err := c.db.WithContext(ctx).
		Where("collection = ?", c.name).
		Order("seq asc").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("docstore: %s list: %w", c.name, err)
	}

	out := make([]Document, 0, len(recs))
	for _, r := range recs {
		d, err := r.document()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (c *sqlCollection) Set(ctx context.Context, id string, fields Fields, mergeFields bool) error {
	err := c.locked(ctx, id, func(tx *gorm.DB, rec *Record, found bool) error {
		next := clone(fields)
		if found && mergeFields {
			current, err := rec.fields()
			if err != nil {
				return err
			}
			next = merge(current, next)
		}
		return c.save(tx, rec, found, id, next)
	})
	if err != nil {
		return fmt.Errorf("docstore: %s set: %w", c.name, err)
	}
	c.changed(ctx)
	return nil
}

func (c *sqlCollection) Update(ctx context.Context, id string, fields Fields) error {
	err := c.locked(ctx, id, func(tx *gorm.DB, rec *Record, found bool) error {
		if !found {
			return ErrNotFound
		}
		current, err := rec.fields()
		if err != nil {
			return err
		}
		return c.save(tx, rec, true, id, merge(current, clone(fields)))
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("docstore: %s update: %w", c.name, err)
	}
	c.changed(ctx)
	return nil
}

func (c *sqlCollection) Delete(ctx context.Context, id string) error {
	res := c.db.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", c.name, id).
		Delete(&Record{})
	if res.Error != nil {
		return fmt.Errorf("docstore: %s delete: %w", c.name, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	c.changed(ctx)
	return nil
}

func (c *sqlCollection) Increment(ctx context.Context, id, field string, delta int64) (int64, error) {
	var next int64
	err := c.locked(ctx, id, func(tx *gorm.DB, rec *Record, found bool) error {
		if !found {
			return ErrNotFound
		}
		current, err := rec.fields()
		if err != nil {
			return err
		}
		n, _ := toInt64(current[field])
		next = clampAdd(n, delta)
		current[field] = next
		return c.save(tx, rec, true, id, current)
	})
	if errors.Is(err, ErrNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("docstore: %s increment: %w", c.name, err)
	}
	c.changed(ctx)
	return next, nil
}

func (c *sqlCollection) ArrayUnion(ctx context.Context, id, field string, values ...any) error {
	vals := asSlice(clone(Fields{"v": values})["v"])
	err := c.locked(ctx, id, func(tx *gorm.DB, rec *Record, found bool) error {
		current := Fields{}
		if found {
			var err error
			if current, err = rec.fields(); err != nil {
				return err
			}
		}
		current[field] = unionAppend(asSlice(current[field]), vals)
		return c.save(tx, rec, found, id, current)
	})
	if err != nil {
		return fmt.Errorf("docstore: %s array union: %w", c.name, err)
	}
	c.changed(ctx)
	return nil
}

func (c *sqlCollection) TakeAndDelete(ctx context.Context, id string) (Document, error) {
	var doc Document
	err := c.locked(ctx, id, func(tx *gorm.DB, rec *Record, found bool) error {
		if !found {
			return ErrNotFound
		}
		d, err := rec.document()
		if err != nil {
			return err
		}
		res := tx.Where("seq = ?", rec.Seq).Delete(&Record{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		doc = d
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("docstore: %s take: %w", c.name, err)
	}
	c.changed(ctx)
	return doc, nil
}

func (c *sqlCollection) Subscribe(ctx context.Context, fn func(Snapshot)) (func(), error) {
	return c.feed.subscribe(ctx, fn)
}

// locked runs fn in a transaction holding a row lock on id. Dialects without
// row locks (sqlite) serialise writers at the database level instead.
func (c *sqlCollection) locked(ctx context.Context, id string, fn func(tx *gorm.DB, rec *Record, found bool) error) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec Record
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("collection = ? AND doc_id = ?", c.name, id).
			First(&rec).Error
		found := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return fn(tx, &rec, found)
	})
}

func (c *sqlCollection) save(tx *gorm.DB, rec *Record, found bool, id string, fields Fields) error {
	data, err := encodeRow(fields)
	if err != nil {
		return err
	}
	if !found {
		return tx.Create(&Record{Collection: c.name, DocID: id, Data: data}).Error
	}
	return tx.Model(&Record{}).Where("seq = ?", rec.Seq).Update("data", data).Error
}

func (c *sqlCollection) changed(ctx context.Context) {
	_ = c.feed.refresh(context.WithoutCancel(ctx))
}

func (r Record) fields() (Fields, error) {
	var f Fields
	if err := json.Unmarshal([]byte(r.Data), &f); err != nil {
		return nil, fmt.Errorf("docstore: corrupt document %s/%s: %w", r.Collection, r.DocID, err)
	}
	if f == nil {
		f = Fields{}
	}
	return f, nil
}

func (r Record) document() (Document, error) {
	f, err := r.fields()
	if err != nil {
		return Document{}, err
	}
	return Document{ID: r.DocID, Fields: public(f)}, nil
}

func encodeRow(f Fields) (string, error) {
	raw, err := json.Marshal(public(f))
	if err != nil {
		return "", fmt.Errorf("docstore: encode row: %w", err)
	}
	return string(raw), nil
}
