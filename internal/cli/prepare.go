package cli

import (
	"github.com/spf13/cobra"

	"github.com/ocommowi/regeval/internal/app"
)

func (r *runner) prepareCommand() *cobra.Command {
	var cfg app.PrepareConfig

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Estimate the tensor and multi-compartment models of one subject",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(cmd, "index"); err != nil {
				return err
			}
			cfg.DataRoot = r.global.dataRoot
			config, err := app.NewPrepareConfig(cfg)
			if err != nil {
				return usageError("%v", err)
			}

			a, err := r.newApp()
			if err != nil {
				return err
			}
			return a.Prepare(cmd.Context(), config)
		},
	}
	cmd.Flags().IntVarP(&cfg.Index, "index", "i", 0, "Image index in the subject manifest")
	return cmd
}
