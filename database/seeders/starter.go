package seeders

import (
	"context"
	"fmt"
	"time"

	"github.com/invictusops/invictus/app/models"
	"github.com/invictusops/invictus/app/services"
	"github.com/invictusops/invictus/pkg/docstore"
	"github.com/invictusops/invictus/pkg/logger"
)

func init() {
	Register("starter", SeedStarter)
}

var starterProfiles = []struct{ name, description string }{
	{"Mohammad", "Owner"},
	{"Osama", "Manager"},
	{"Shadi", "Sales Manager"},
	{"Anas", "Tecnical Servis"},
	{"Abdulselam", "Accountent"},
	{"Abdulkarim", "Sales Lead"},
	{"King Abdullah", "Computer Enginner"},
}

var starterItems = []models.InventoryItem{
	{Name: "Wireless Mouse", Type: "Electronics", Quantity: 15, Supplier: "TechSupply", CreatedAt: time.Date(2023, 10, 26, 10, 0, 0, 0, time.UTC)},
	{Name: "Ergonomic Keyboard", Type: "Electronics", Quantity: 2, Supplier: "OfficeGoods", CreatedAt: time.Date(2023, 10, 26, 10, 5, 0, 0, time.UTC)},
}

// SeedStarter writes the staff profiles and two inventory items, but only
// when the users collection is empty. Profiles start with the shared
// default password and hasSetPassword=false, so each person picks their
// own on first login.
func SeedStarter(ctx context.Context, env Env) error {
	log := logger.Component("seed")
	users := env.Store.Collection(models.CollectionUsers)

	existing, err := users.List(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(existing) > 0 {
		log.Info("users present, skipping starter data", "users", len(existing))
		return nil
	}

	svc := services.NewUserService(env.Store, env.Hasher)
	ids := make([]string, 0, len(starterProfiles))
	for _, p := range starterProfiles {
		u, err := svc.Create(ctx, p.name, p.description, env.Password)
		if err != nil {
			return err
		}
		ids = append(ids, u.ID)
	}

	inv := env.Store.Collection(models.CollectionInventory)
	for i, it := range starterItems {
		it.ManagedBy = ids[i%len(ids)]
		f, err := docstore.Encode(it)
		if err != nil {
			return err
		}
		if _, err := inv.Add(ctx, f); err != nil {
			return fmt.Errorf("add item %s: %w", it.Name, err)
		}
	}

	log.Info("starter data written", "users", len(ids), "items", len(starterItems))
	return nil
}
