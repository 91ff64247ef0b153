package seeders_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/invictusops/invictus/app/models"
	"github.com/invictusops/invictus/database/seeders"
	"github.com/invictusops/invictus/pkg/auth"
	"github.com/invictusops/invictus/pkg/docstore"
)

func TestSeedStarter(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	env := seeders.Env{Store: store, Hasher: auth.Bcrypt{Cost: bcrypt.MinCost}, Password: "password123"}

	require.NoError(t, seeders.SeedStarter(ctx, env))

	docs, err := store.Collection(models.CollectionUsers).List(ctx)
	require.NoError(t, err)
	users, errs := docstore.DecodeAll[models.User](docs)
	require.Empty(t, errs)
	require.Len(t, users, 7)

	names := map[string]string{}
	for _, u := range users {
		names[u.Name] = u.Description
		assert.False(t, u.HasSetPassword)
		assert.True(t, env.Hasher.Verify(u.PasswordHash, "password123"))
	}
	assert.Equal(t, "Owner", names["Mohammad"])
	assert.Equal(t, "Computer Enginner", names["King Abdullah"])

	docs, err = store.Collection(models.CollectionInventory).List(ctx)
	require.NoError(t, err)
	items, _ := docstore.DecodeAll[models.InventoryItem](docs)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.NotEmpty(t, it.ManagedBy)
	}

	// A second run leaves everything as it was.
	require.NoError(t, seeders.SeedStarter(ctx, env))
	docs, _ = store.Collection(models.CollectionUsers).List(ctx)
	assert.Len(t, docs, 7)
}
