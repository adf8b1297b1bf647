package cli

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ocommowi/regeval/internal/app"
)

func (r *runner) evaluateCommand() *cobra.Command {
	var cfg app.Config

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Register a subject pair with every strategy and score the results",
		Example: `  regeval evaluate -r 0 -m 1 -d /data/HCP105
  regeval evaluate -r 0 -m 1 --strategies P1,P5 --workers 4 --results-db scores.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(cmd, "ref-index", "mov-index"); err != nil {
				return err
			}
			cfg.DataRoot = r.global.dataRoot
			config, err := app.NewConfig(cfg)
			if err != nil {
				return usageError("%v", err)
			}

			a, err := r.newApp()
			if err != nil {
				return err
			}
			_, err = a.Evaluate(cmd.Context(), config)
			return err
		},
	}

	f := cmd.Flags()
	f.IntVarP(&cfg.RefIndex, "ref-index", "r", 0, "Reference image index in the subject manifest")
	f.IntVarP(&cfg.MovIndex, "mov-index", "m", 0, "Moving image index in the subject manifest")
	f.StringSliceVar(&cfg.Strategies, "strategies", nil, "Strategies to run, e.g. P1,P5 (default all)")
	f.StringVar(&cfg.PipelinePath, "pipeline", "", "HCL pipeline file replacing the built-in stage table")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU(), "Number of concurrent tool invocations")
	f.IntVar(&cfg.Threads, "threads", 0, "Threads per registration tool, 0 uses every CPU")
	f.StringVar(&cfg.ResultsDB, "results-db", "", "SQLite database receiving every score")
	f.BoolVar(&cfg.Resume, "resume", false, "Skip strategies whose result files already exist")
	f.StringVar(&cfg.ScratchDir, "scratch-dir", "", "Parent of the run scratch directory (default system temp)")
	return cmd
}
