package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/treedex/treedex/internal/store"
)

// newListCmd creates the list command.
func newListCmd() *cobra.Command {
	var jsonOutput bool
	var storePath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List persisted catalog instances and their indexes",
		Long:  `List reads the catalog store and prints every persisted instance with its indexes. The store is opened read-only in effect: nothing is modified.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := resolveStorePath(storePath)
			if err != nil {
				return err
			}

			s, err := store.Open(path)
			if err != nil {
				return err
			}
			defer s.Close()

			infos, err := s.List()
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}

			if len(infos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No catalog instances persisted.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CATALOG\tTYPE\tINDEX\tKIND\tDOCS\tFINGERPRINT")
			for _, info := range infos {
				if len(info.Indexes) == 0 {
					fmt.Fprintf(w, "%s\t%s\t-\t-\t-\t-\n", info.ID, info.Type)
					continue
				}
				for _, idx := range info.Indexes {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
						info.ID, info.Type, idx.Name, idx.Kind, idx.Docs, idx.Fingerprint)
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&storePath, "store", "", "Path to the catalog store (default from config)")

	return cmd
}

// resolveStorePath uses the flag value when given, the configured
// store path otherwise.
func resolveStorePath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.StorePath(), nil
}
