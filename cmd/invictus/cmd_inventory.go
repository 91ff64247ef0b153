package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/invictusops/invictus/app/services"
	"github.com/invictusops/invictus/config"
	"github.com/invictusops/invictus/pkg/docstore"
	"github.com/invictusops/invictus/pkg/storage"
)

var (
	importActor     string
	exportPartition string
	exportArchive   bool
)

// openInventory opens the configured store. The memory driver lives only as
// long as this process, so writes against it are refused.
func openInventory(ctx context.Context, write bool) (*services.InventoryService, docstore.Store, error) {
	if err := config.Load(); err != nil {
		return nil, nil, err
	}
	if d := config.StoreDriver(); d == "memory" && write {
		return nil, nil, fmt.Errorf("STORE_DRIVER=%s does not persist, set it to mongo or sql to import", d)
	}
	store, err := docstore.Open(ctx)
	if err != nil {
		return nil, nil, err
	}
	return services.NewInventoryService(store, time.Now), store, nil
}

// invictus inventory:import <file>
var inventoryImportCmd = &cobra.Command{
	Use:   "inventory:import <file>",
	Short: "Merge a CSV file into inventory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		inv, store, err := openInventory(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer store.Close(context.Background())

		res, err := inv.Import(cmd.Context(), importActor, f)
		out := cmd.OutOrStdout()
		for _, sk := range res.Skipped {
			fmt.Fprintf(out, "  skipped %s\n", sk.Error())
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Imported: %d created, %d updated, %d skipped\n", res.Created, res.Updated, len(res.Skipped))
		return nil
	},
}

// invictus inventory:export
var inventoryExportCmd = &cobra.Command{
	Use:   "inventory:export",
	Short: "Write inventory as CSV to stdout, or to the storage disk with --archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		inv, store, err := openInventory(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer store.Close(context.Background())
		if store.Driver() == "memory" {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: STORE_DRIVER=memory, exporting an empty store")
		}

		if !exportArchive {
			return inv.Export(cmd.Context(), cmd.OutOrStdout(), exportPartition)
		}

		disk, err := storage.Open(cmd.Context())
		if err != nil {
			return err
		}
		path, url, err := inv.Archive(cmd.Context(), disk, exportPartition)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Archived to %s:%s (%s)\n", disk.Name(), path, url)
		return nil
	},
}

func init() {
	inventoryImportCmd.Flags().StringVar(&importActor, "as", "", "user id recorded as manager of new items")
	inventoryExportCmd.Flags().StringVarP(&exportPartition, "partition", "p", "all", "all, stock or reorder")
	inventoryExportCmd.Flags().BoolVar(&exportArchive, "archive", false, "write to the configured storage disk")
}
