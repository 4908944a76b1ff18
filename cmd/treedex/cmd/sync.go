package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/treedex/treedex/internal/catalog"
	"github.com/treedex/treedex/internal/resource"
	"github.com/treedex/treedex/internal/store"
	"github.com/treedex/treedex/internal/syncer"
)

// builtinRegistry declares the schemas the CLI syncs against. Hosts
// with richer schemas sync through their own process; the CLI covers
// the system catalog every tree carries.
func builtinRegistry() *catalog.Registry {
	reg := catalog.NewRegistry()
	// Registration of the built-in shape cannot conflict
	_ = reg.Register("system", []catalog.IndexSpec{
		{
			Name:            "name",
			Kind:            catalog.KindField,
			DiscriminatorID: "attr:name",
			Discriminate:    resource.AttrDiscriminator("name"),
		},
		{
			Name:            "type",
			Kind:            catalog.KindField,
			DiscriminatorID: "attr:type",
			Discriminate:    resource.AttrDiscriminator("type"),
		},
	})
	return reg
}

// newSyncCmd creates the sync command.
func newSyncCmd() *cobra.Command {
	var storePath string
	var id string
	var prune bool
	var noBackup bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize persisted catalog instances against their declared schemas",
		Long: `Sync loads persisted catalog instances, reconciles their index sets
against the built-in schema declarations, and writes the result back.
New indexes are added empty; re-running sync is idempotent. With
--prune, indexes not present in the declaration are removed (the store
is backed up first unless --no-backup is given).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := resolveStorePath(storePath)
			if err != nil {
				return err
			}

			if prune && !noBackup {
				backup, err := store.BackupFile(path)
				if err != nil {
					return fmt.Errorf("failed to back up store before prune: %w", err)
				}
				if backup != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Store backed up to %s\n", backup)
				}
			}

			s, err := store.Open(path)
			if err != nil {
				return err
			}
			defer s.Close()

			reg := builtinRegistry()
			cats, err := loadTargets(s, reg, id)
			if err != nil {
				return err
			}
			if len(cats) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No catalog instances to sync.")
				return nil
			}

			// The CLI has no resource tree; structure is reconciled and
			// new indexes stay empty until the host process reindexes.
			enum := syncer.EnumeratorFunc(func(context.Context, *catalog.Catalog) ([]syncer.Doc, error) {
				return nil, nil
			})

			sy := syncer.New(reg)
			opts := syncer.Options{Prune: prune}
			for _, cat := range cats {
				report, err := sy.Sync(cmd.Context(), cat, enum, opts)
				if err != nil {
					return fmt.Errorf("sync of catalog %s failed: %w", cat.ID(), err)
				}
				if err := s.SaveCatalog(cat); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"%s (%s): %d added, %d rebuilt, %d removed\n",
					report.CatalogID, report.CatalogType,
					len(report.Plan.Add), len(report.Plan.Rebuild), len(report.Plan.Remove))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&storePath, "store", "", "Path to the catalog store (default from config)")
	cmd.Flags().StringVar(&id, "id", "", "Sync only the instance with this id")
	cmd.Flags().BoolVar(&prune, "prune", false, "Remove indexes not present in the declared schema")
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "Skip the store backup before a prune sync")

	return cmd
}

func loadTargets(s *store.Store, reg *catalog.Registry, id string) ([]*catalog.Catalog, error) {
	if id != "" {
		cat, err := s.LoadCatalog(id, reg)
		if err != nil {
			return nil, err
		}
		return []*catalog.Catalog{cat}, nil
	}

	all, err := s.LoadAll(reg)
	if err != nil {
		return nil, err
	}
	// Only types the built-in registry declares can be synced here
	var out []*catalog.Catalog
	for _, cat := range all {
		for _, ctype := range reg.Types() {
			if cat.Type() == ctype {
				out = append(out, cat)
				break
			}
		}
	}
	return out, nil
}
