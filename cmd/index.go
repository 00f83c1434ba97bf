package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ryder-MHumble/deanagent/internal/index"
)

// newIndexCmd regenerates data/index.json from the catalog and artifacts.
func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-index",
		Short: "Regenerate data/index.json",
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			idx, err := index.Generate(a.Catalog, a.Store)
			if err != nil {
				return err
			}
			a.Logger.Info("index generated",
				zap.Int("sources", idx.TotalSources),
				zap.Int("enabled", idx.TotalEnabled),
				zap.Int("articles", idx.TotalArticles),
			)
			return nil
		},
	}
}
