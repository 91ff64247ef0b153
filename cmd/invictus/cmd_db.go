package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/invictusops/invictus/config"
	"github.com/invictusops/invictus/database/seeders"
	"github.com/invictusops/invictus/pkg/auth"
	"github.com/invictusops/invictus/pkg/database"
	"github.com/invictusops/invictus/pkg/docstore"
	"github.com/invictusops/invictus/pkg/migration"
)

// bootDB loads config and opens the SQL database behind STORE_DRIVER=sql.
func bootDB(ctx context.Context) (*gorm.DB, error) {
	if err := config.Load(); err != nil {
		return nil, err
	}
	if d := config.StoreDriver(); d != "sql" {
		return nil, fmt.Errorf("migrations apply to STORE_DRIVER=sql, current driver is %q", d)
	}
	return database.Open(ctx)
}

// invictus migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run all pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := bootDB(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Running migrations…")
		return migration.New(db).WithOutput(cmd.OutOrStdout()).Run()
	},
}

// invictus migrate:rollback
var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Rollback the last batch of migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := bootDB(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Rolling back last batch…")
		return migration.New(db).WithOutput(cmd.OutOrStdout()).Rollback()
	},
}

// invictus migrate:status
var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show the status of each migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := bootDB(cmd.Context())
		if err != nil {
			return err
		}
		return migration.New(db).WithOutput(cmd.OutOrStdout()).Status()
	},
}

// invictus seed
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the starter profiles and items into an empty store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(); err != nil {
			return err
		}
		store, err := docstore.Open(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close(context.Background())

		fmt.Fprintln(cmd.OutOrStdout(), "Running seeders…")
		return seeders.RunAll(cmd.Context(), seeders.Env{
			Store:    store,
			Hasher:   auth.Bcrypt{},
			Password: config.SeedPassword(),
			Out:      cmd.OutOrStdout(),
		})
	},
}
