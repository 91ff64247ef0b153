package collection_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/invictusops/invictus/pkg/collection"
)

type row struct {
	ID  string
	Qty int
}

var rows = []row{{"a", 5}, {"b", 1}, {"c", 5}, {"d", 0}}

func TestMap(t *testing.T) {
	got := collection.Map(rows, func(r row) string { return r.ID + strconv.Itoa(r.Qty) })
	assert.Equal(t, []string{"a5", "b1", "c5", "d0"}, got)
}

func TestFilterNeverNil(t *testing.T) {
	got := collection.Filter(rows, func(r row) bool { return r.Qty > 100 })
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got = collection.Filter(rows, func(r row) bool { return r.Qty < 3 })
	assert.Equal(t, []row{{"b", 1}, {"d", 0}}, got)
}

func TestPartition(t *testing.T) {
	low, rest := collection.Partition(rows, func(r row) bool { return r.Qty < 3 })
	assert.Equal(t, []row{{"b", 1}, {"d", 0}}, low)
	assert.Equal(t, []row{{"a", 5}, {"c", 5}}, rest)

	low, rest = collection.Partition([]row(nil), func(row) bool { return true })
	assert.NotNil(t, low)
	assert.NotNil(t, rest)
}

func TestCountAndContains(t *testing.T) {
	assert.Equal(t, 2, collection.Count(rows, func(r row) bool { return r.Qty == 5 }))
	assert.True(t, collection.Contains(rows, func(r row) bool { return r.ID == "d" }))
	assert.False(t, collection.Contains(rows, func(r row) bool { return r.ID == "z" }))
}

func TestKeyByLastWins(t *testing.T) {
	got := collection.KeyBy(rows, func(r row) int { return r.Qty })
	assert.Len(t, got, 3)
	assert.Equal(t, "c", got[5].ID)
}

func TestSortByIsStableAndCopies(t *testing.T) {
	in := append([]row(nil), rows...)
	got := collection.SortBy(in, func(a, b row) bool { return a.Qty > b.Qty })

	assert.Equal(t, []row{{"a", 5}, {"c", 5}, {"b", 1}, {"d", 0}}, got)
	assert.Equal(t, rows, in, "input must be left alone")
}

func TestTake(t *testing.T) {
	assert.Equal(t, []row{{"a", 5}, {"b", 1}}, collection.Take(rows, 2))
	assert.Equal(t, rows, collection.Take(rows, 10))
	assert.Empty(t, collection.Take(rows, -1))
	assert.NotNil(t, collection.Take([]row(nil), 3))
}
