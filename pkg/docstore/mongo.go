package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/invictusops/invictus/pkg/logger"
)

// seqField orders documents by insertion.
const seqField = "_seq"

// MongoOptions tunes the mongo driver.
type MongoOptions struct {
	URI      string
	Database string
	// PollInterval is used when change streams are unavailable (standalone
	// servers without a replica set).
	PollInterval time.Duration
}

// Mongo is a Store backed by a mongo database. Each collection maps to the
// mongo collection of the same name and ids are stored in _id.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	opts   MongoOptions

	mu      sync.Mutex
	cols    map[string]*mongoCollection
	ctx     context.Context
	cancel  context.CancelFunc
	watches sync.WaitGroup
}

// NewMongo connects and pings. ctx bounds the bootstrap.
func NewMongo(ctx context.Context, opts MongoOptions) (*Mongo, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}

	clientOpts := options.Client().ApplyURI(opts.URI).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(50)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: mongo connect: %v", ErrUnavailable, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: mongo ping: %v", ErrUnavailable, err)
	}

	bg, cancel := context.WithCancel(context.Background())
	return &Mongo{
		client: client,
		db:     client.Database(opts.Database),
		opts:   opts,
		cols:   map[string]*mongoCollection{},
		ctx:    bg,
		cancel: cancel,
	}, nil
}

func (m *Mongo) Driver() string { return "mongo" }

func (m *Mongo) Collection(name string) Collection {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.cols[name]; ok {
		return c
	}
	c := &mongoCollection{store: m, name: name, col: m.db.Collection(name)}
	c.feed = newFeed(name, c.List)
	m.cols[name] = c
	return c
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *Mongo) Close(ctx context.Context) error {
	m.cancel()
	m.watches.Wait()

	m.mu.Lock()
	for _, c := range m.cols {
		c.feed.closeAll()
	}
	m.mu.Unlock()

	return m.client.Disconnect(ctx)
}

type mongoCollection struct {
	store *Mongo
	name  string
	col   *mongo.Collection
	feed  *feed

	watchOnce sync.Once
}

func (c *mongoCollection) Name() string { return c.name }

func (c *mongoCollection) Add(ctx context.Context, fields Fields) (string, error) {
	id := uuid.NewString()
	doc := toBSON(clone(fields))
	doc["_id"] = id
	doc[seqField] = time.Now().UnixNano()

	if _, err := c.col.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("docstore: %s add: %w", c.name, err)
	}
	c.changed(ctx)
	return id, nil
}

func (c *mongoCollection) Get(ctx context.Context, id string) (Document, error) {
	var raw bson.M
	err := c.col.FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("docstore: %s get: %w", c.name, err)
	}
	return fromBSON(raw), nil
}

func (c *mongoCollection) List(ctx context.Context) ([]Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: seqField, Value: 1}, {Key: "_id", Value: 1}})
	cur, err := c.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("docstore: %s list: %w", c.name, err)
	}
	defer cur.Close(ctx)

	var out []Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("docstore: %s list: %w", c.name, err)
		}
		out = append(out, fromBSON(raw))
	}
	return out, cur.Err()
}

func (c *mongoCollection) Set(ctx context.Context, id string, fields Fields, mergeFields bool) error {
	body := toBSON(clone(fields))
	var err error
	if mergeFields {
		_, err = c.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
			"$set":         body,
			"$setOnInsert": bson.M{seqField: time.Now().UnixNano()},
		}, options.Update().SetUpsert(true))
	} else {
		existing := c.seqOf(ctx, id)
		body[seqField] = existing
		_, err = c.col.ReplaceOne(ctx, bson.M{"_id": id}, body, options.Replace().SetUpsert(true))
	}
	if err != nil {
		return fmt.Errorf("docstore: %s set: %w", c.name, err)
	}
	c.changed(ctx)
	return nil
}

func (c *mongoCollection) Update(ctx context.Context, id string, fields Fields) error {
	res, err := c.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": toBSON(clone(fields))})
	if err != nil {
		return fmt.Errorf("docstore: %s update: %w", c.name, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	c.changed(ctx)
	return nil
}

func (c *mongoCollection) Delete(ctx context.Context, id string) error {
	res, err := c.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("docstore: %s delete: %w", c.name, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	c.changed(ctx)
	return nil
}

// Increment runs a pipeline update so the add and the zero clamp happen in a
// single server-side operation.
func (c *mongoCollection) Increment(ctx context.Context, id, field string, delta int64) (int64, error) {
	current := bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, 0}}}
	sum := bson.D{{Key: "$add", Value: bson.A{current, delta}}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: field, Value: bson.D{{Key: "$max", Value: bson.A{0, sum}}}}}}},
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{field: 1})

	var raw bson.M
	err := c.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, pipeline, opts).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("docstore: %s increment: %w", c.name, err)
	}
	c.changed(ctx)

	n, _ := toInt64(normalize(raw[field]))
	return n, nil
}

func (c *mongoCollection) ArrayUnion(ctx context.Context, id, field string, values ...any) error {
	_, err := c.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$addToSet":    bson.M{field: bson.M{"$each": values}},
		"$setOnInsert": bson.M{seqField: time.Now().UnixNano()},
	}, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("docstore: %s array union: %w", c.name, err)
	}
	c.changed(ctx)
	return nil
}

func (c *mongoCollection) TakeAndDelete(ctx context.Context, id string) (Document, error) {
	var raw bson.M
	err := c.col.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("docstore: %s take: %w", c.name, err)
	}
	c.changed(ctx)
	return fromBSON(raw), nil
}

func (c *mongoCollection) Subscribe(ctx context.Context, fn func(Snapshot)) (func(), error) {
	c.watchOnce.Do(func() {
		c.store.watches.Add(1)
		go func() {
			defer c.store.watches.Done()
			c.watch(c.store.ctx)
		}()
	})
	return c.feed.subscribe(ctx, fn)
}

// changed republishes after a local write. Remote writes arrive through watch.
func (c *mongoCollection) changed(ctx context.Context) {
	if err := c.feed.refresh(context.WithoutCancel(ctx)); err != nil {
		logger.Component("docstore").Warn("refresh failed", "collection", c.name, "error", err)
	}
}

// watch follows the change stream and falls back to polling when the
// deployment does not support change streams.
func (c *mongoCollection) watch(ctx context.Context) {
	log := logger.Component("docstore").With("collection", c.name)

	stream, err := c.col.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		log.Info("change stream unavailable, polling", "error", err, "interval", c.store.opts.PollInterval)
		c.poll(ctx)
		return
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		if err := c.feed.refresh(ctx); err != nil && ctx.Err() == nil {
			log.Warn("refresh failed", "error", err)
		}
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		log.Warn("change stream closed, polling", "error", err)
		c.poll(ctx)
	}
}

func (c *mongoCollection) poll(ctx context.Context) {
	ticker := time.NewTicker(c.store.opts.PollInterval)
	defer ticker.Stop()

	var last string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if c.feed.subscribers() == 0 {
			continue
		}
		docs, err := c.List(ctx)
		if err != nil {
			continue
		}
		if key := jsonKey(docs); key != last {
			last = key
			_ = c.feed.refresh(ctx)
		}
	}
}

func (c *mongoCollection) seqOf(ctx context.Context, id string) int64 {
	var raw bson.M
	opts := options.FindOne().SetProjection(bson.M{seqField: 1})
	if err := c.col.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&raw); err != nil {
		return time.Now().UnixNano()
	}
	n, _ := toInt64(normalize(raw[seqField]))
	return n
}

func toBSON(f Fields) bson.M {
	out := make(bson.M, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func fromBSON(raw bson.M) Document {
	id := fmt.Sprint(raw["_id"])
	fields := Fields{}
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		fields[k] = normalize(v)
	}
	return Document{ID: id, Fields: public(fields)}
}

// normalize converts BSON container and scalar types into the shapes JSON
// decoding produces, so callers see the same values from every driver.
func normalize(v any) any {
	switch x := v.(type) {
	case primitive.A:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case primitive.DateTime:
		return x.Time().UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}
