package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newPoolsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "pools",
		Short: "List the pools linked to the configured account",
		Long: `Sign in with the configured account and print one line per linked pool:
the document id and the pool name, separated by a tab. Use the id as
document.documentId in the configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			c, err := buildComponents(cfg, nil)
			if err != nil {
				return err
			}

			pools, err := c.listPools(cmd.Context(), cfg.Document.GetCollection())
			if err != nil {
				return err
			}
			for _, pool := range pools {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", pool.ID, pool.Name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
