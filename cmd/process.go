package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ryder-MHumble/deanagent/internal/app"
	"github.com/Ryder-MHumble/deanagent/internal/intel/briefing"
	"github.com/Ryder-MHumble/deanagent/internal/intel/personnel"
	"github.com/Ryder-MHumble/deanagent/internal/intel/policy"
	"github.com/Ryder-MHumble/deanagent/internal/intel/techfrontier"
	"github.com/Ryder-MHumble/deanagent/internal/intel/university"
)

// newProcessCmd groups the per-module processor commands.
func newProcessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run a domain processor over the raw data",
	}

	var dryRun, force bool
	cmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "compute without writing outputs")
	cmd.PersistentFlags().BoolVar(&force, "force", false, "ignore the incremental hash tracker")

	runProcessor := func(name string, fn func(a *app.App, ctx context.Context) (map[string]any, error)) *cobra.Command {
		return &cobra.Command{
			Use:   name,
			Short: fmt.Sprintf("Run the %s processor", name),
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := buildApp()
				if err != nil {
					return err
				}
				defer a.Close()
				summary, err := fn(a, cmd.Context())
				if err != nil {
					return err
				}
				a.Logger.Info("processing complete",
					zap.String("module", name),
					zap.Any("summary", summary),
				)
				return nil
			},
		}
	}

	cmd.AddCommand(runProcessor("policy", func(a *app.App, _ context.Context) (map[string]any, error) {
		return a.Policy.Process(policy.Options{DryRun: dryRun, Force: force})
	}))
	cmd.AddCommand(runProcessor("personnel", func(a *app.App, _ context.Context) (map[string]any, error) {
		return a.Personnel.Process(personnel.Options{DryRun: dryRun, Force: force})
	}))
	cmd.AddCommand(runProcessor("tech-frontier", func(a *app.App, _ context.Context) (map[string]any, error) {
		return a.TechFrontier.Process(techfrontier.Options{DryRun: dryRun, Force: force})
	}))
	cmd.AddCommand(runProcessor("university", func(a *app.App, _ context.Context) (map[string]any, error) {
		return a.University.Process(university.Options{DryRun: dryRun, Force: force})
	}))
	cmd.AddCommand(runProcessor("briefing", func(a *app.App, ctx context.Context) (map[string]any, error) {
		return a.Briefing.Process(ctx, a.Oracle, briefing.Options{DryRun: dryRun, Force: force})
	}))
	cmd.AddCommand(runProcessor("pipeline", func(a *app.App, ctx context.Context) (map[string]any, error) {
		result := a.Pipeline.Run(ctx)
		return map[string]any{"status": result.Status, "stages": len(result.Stages)}, nil
	}))
	return cmd
}
