package docstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invictusops/invictus/pkg/database"
	"github.com/invictusops/invictus/pkg/docstore"
)

type factory func(t *testing.T) docstore.Store

func drivers() map[string]factory {
	return map[string]factory{
		"memory": func(t *testing.T) docstore.Store {
			s := docstore.NewMemory()
			t.Cleanup(func() { _ = s.Close(context.Background()) })
			return s
		},
		"sql": func(t *testing.T) docstore.Store {
			db, err := database.OpenWith(context.Background(), "sqlite", ":memory:")
			require.NoError(t, err)
			require.NoError(t, db.AutoMigrate(&docstore.Record{}))
			s := docstore.NewSQL(db)
			t.Cleanup(func() { _ = s.Close(context.Background()) })
			return s
		},
	}
}

func eachDriver(t *testing.T, fn func(t *testing.T, s docstore.Store)) {
	for name, mk := range drivers() {
		t.Run(name, func(t *testing.T) { fn(t, mk(t)) })
	}
}

func TestCRUD(t *testing.T) {
	eachDriver(t, func(t *testing.T, s docstore.Store) {
		ctx := context.Background()
		col := s.Collection("inventory")

		id, err := col.Add(ctx, docstore.Fields{"name": "Mouse", "quantity": 15})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		doc, err := col.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Mouse", doc.Fields["name"])
		assert.EqualValues(t, 15, doc.Fields["quantity"])

		require.NoError(t, col.Update(ctx, id, docstore.Fields{"quantity": 3}))
		doc, _ = col.Get(ctx, id)
		assert.EqualValues(t, 3, doc.Fields["quantity"])
		assert.Equal(t, "Mouse", doc.Fields["name"])

		assert.ErrorIs(t, col.Update(ctx, "missing", docstore.Fields{"x": 1}), docstore.ErrNotFound)

		require.NoError(t, col.Delete(ctx, id))
		_, err = col.Get(ctx, id)
		assert.ErrorIs(t, err, docstore.ErrNotFound)
		assert.ErrorIs(t, col.Delete(ctx, id), docstore.ErrNotFound)
	})
}

func TestListKeepsInsertionOrder(t *testing.T) {
	eachDriver(t, func(t *testing.T, s docstore.Store) {
		ctx := context.Background()
		col := s.Collection("tasks")
		var ids []string
		for _, d := range []string{"first", "second", "third"} {
			id, err := col.Add(ctx, docstore.Fields{"description": d})
			require.NoError(t, err)
			ids = append(ids, id)
		}

		docs, err := col.List(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 3)
		for i, d := range docs {
			assert.Equal(t, ids[i], d.ID)
		}

		other, err := s.Collection("users").List(ctx)
		require.NoError(t, err)
		assert.Empty(t, other)
	})
}

func TestSetMergeAndReplace(t *testing.T) {
	eachDriver(t, func(t *testing.T, s docstore.Store) {
		ctx := context.Background()
		col := s.Collection("users")

		require.NoError(t, col.Set(ctx, "u1", docstore.Fields{"name": "Anas", "hasSetPassword": false}, false))
		require.NoError(t, col.Set(ctx, "u1", docstore.Fields{"hasSetPassword": true}, true))
		doc, err := col.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, docstore.Fields{"name": "Anas", "hasSetPassword": true}, doc.Fields)

		require.NoError(t, col.Set(ctx, "u1", docstore.Fields{"name": "Anas K"}, false))
		doc, _ = col.Get(ctx, "u1")
		assert.Equal(t, docstore.Fields{"name": "Anas K"}, doc.Fields)
	})
}

func TestIncrementIsAtomicAndClamped(t *testing.T) {
	eachDriver(t, func(t *testing.T, s docstore.Store) {
		ctx := context.Background()
		col := s.Collection("inventory")
		id, err := col.Add(ctx, docstore.Fields{"quantity": 2})
		require.NoError(t, err)

		var wg sync.WaitGroup
		for _, delta := range []int64{5, 3, 5, 3} {
			wg.Add(1)
			go func(d int64) {
				defer wg.Done()
				_, err := col.Increment(ctx, id, "quantity", d)
				assert.NoError(t, err)
			}(delta)
		}
		wg.Wait()

		doc, _ := col.Get(ctx, id)
		assert.EqualValues(t, 18, doc.Fields["quantity"])

		n, err := col.Increment(ctx, id, "quantity", -100)
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)

		n, err = col.Increment(ctx, id, "quantity", -1)
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)

		_, err = col.Increment(ctx, "missing", "quantity", 1)
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})
}

func TestArrayUnionCreatesAndDedupes(t *testing.T) {
	eachDriver(t, func(t *testing.T, s docstore.Store) {
		ctx := context.Background()
		col := s.Collection("notifications")

		require.NoError(t, col.ArrayUnion(ctx, "u2", "messages", "hello"))
		require.NoError(t, col.ArrayUnion(ctx, "u2", "messages", "world", "hello"))

		doc, err := col.Get(ctx, "u2")
		require.NoError(t, err)
		assert.Equal(t, []any{"hello", "world"}, doc.Fields["messages"])
	})
}

func TestTakeAndDeleteHasOneWinner(t *testing.T) {
	eachDriver(t, func(t *testing.T, s docstore.Store) {
		ctx := context.Background()
		col := s.Collection("notifications")
		require.NoError(t, col.ArrayUnion(ctx, "u2", "messages", "a", "b"))

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins []docstore.Document
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				doc, err := col.TakeAndDelete(ctx, "u2")
				if err == nil {
					mu.Lock()
					wins = append(wins, doc)
					mu.Unlock()
					return
				}
				assert.ErrorIs(t, err, docstore.ErrNotFound)
			}()
		}
		wg.Wait()

		require.Len(t, wins, 1)
		assert.Equal(t, []any{"a", "b"}, wins[0].Fields["messages"])
		_, err := col.Get(ctx, "u2")
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})
}

func TestSubscribeDeliversLatestSnapshot(t *testing.T) {
	eachDriver(t, func(t *testing.T, s docstore.Store) {
		ctx := context.Background()
		col := s.Collection("dailyOrders")
		_, err := col.Add(ctx, docstore.Fields{"customerName": "first"})
		require.NoError(t, err)

		var (
			mu   sync.Mutex
			last docstore.Snapshot
			seen []uint64
		)
		stop, err := col.Subscribe(ctx, func(snap docstore.Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			last = snap
			seen = append(seen, snap.Version)
		})
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(last.Docs) == 1
		}, time.Second, 5*time.Millisecond)

		for i := 0; i < 5; i++ {
			_, err := col.Add(ctx, docstore.Fields{"customerName": "more"})
			require.NoError(t, err)
		}

		assert.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(last.Docs) == 6
		}, time.Second, 5*time.Millisecond)

		mu.Lock()
		for i := 1; i < len(seen); i++ {
			assert.Greater(t, seen[i], seen[i-1], "versions must increase")
		}
		assert.Equal(t, "dailyOrders", last.Collection)
		mu.Unlock()

		stop()
		mu.Lock()
		count := len(seen)
		mu.Unlock()

		_, err = col.Add(ctx, docstore.Fields{"customerName": "after"})
		require.NoError(t, err)
		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		assert.Equal(t, count, len(seen))
		mu.Unlock()
	})
}

func TestSubscribeStopsOnContextCancel(t *testing.T) {
	s := docstore.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())

	calls := make(chan docstore.Snapshot, 16)
	_, err := s.Collection("tasks").Subscribe(ctx, func(snap docstore.Snapshot) { calls <- snap })
	require.NoError(t, err)
	<-calls

	cancel()
	time.Sleep(20 * time.Millisecond)
	_, err = s.Collection("tasks").Add(context.Background(), docstore.Fields{"x": 1})
	require.NoError(t, err)

	select {
	case <-calls:
		t.Fatal("received snapshot after cancel")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestEncodeDecode(t *testing.T) {
	type item struct {
		ID       string    `json:"id"`
		Name     string    `json:"name"`
		Quantity int       `json:"quantity"`
		At       time.Time `json:"at"`
	}
	at := time.Date(2023, 10, 26, 10, 0, 0, 0, time.UTC)

	f, err := docstore.Encode(item{ID: "ignored", Name: "Mouse", Quantity: 2, At: at})
	require.NoError(t, err)
	assert.NotContains(t, f, "id")

	var out item
	require.NoError(t, docstore.Decode(docstore.Document{ID: "abc", Fields: f}, &out))
	assert.Equal(t, item{ID: "abc", Name: "Mouse", Quantity: 2, At: at}, out)

	items, errs := docstore.DecodeAll[item]([]docstore.Document{
		{ID: "1", Fields: f},
		{ID: "2", Fields: docstore.Fields{"quantity": "lots"}},
	})
	assert.Len(t, items, 1)
	assert.Len(t, errs, 1)
}

func TestClosedMemoryStore(t *testing.T) {
	s := docstore.NewMemory()
	require.NoError(t, s.Close(context.Background()))
	assert.ErrorIs(t, s.Ping(context.Background()), docstore.ErrClosed)
	_, err := s.Collection("x").Add(context.Background(), docstore.Fields{})
	assert.ErrorIs(t, err, docstore.ErrClosed)
}
