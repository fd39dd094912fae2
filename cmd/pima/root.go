package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yamesant/pima-indians-diabetes-analysis/internal/config"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/logging"
)

// options holds the persistent flags. A flag only overrides the loaded
// configuration when it was set on the command line.
type options struct {
	cfgFile   string
	dataPath  string
	outputDir string
	seed      int64
	workers   int
	folds     int
	noPlots   bool
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "pima",
		Short: "Exploratory analysis and model comparison for the Pima Indians Diabetes data",
		Long: `pima loads the Pima Indians Diabetes observations, marks zero-coded
measurements as missing, plots their distributions and compares tree,
forest, boosting, logistic and linear SVM classifiers under two
preprocessing recipes with stratified k-fold cross-validation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, opts)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.cfgFile, "config", "", "config file (YAML)")
	f.StringVar(&opts.dataPath, "data", "", "path to the observations CSV")
	f.StringVar(&opts.outputDir, "output", "", "directory for reports and plots")
	f.Int64Var(&opts.seed, "seed", 0, "random seed for the split, folds and models")
	f.IntVar(&opts.workers, "workers", 0, "number of concurrent fold fits")
	f.IntVar(&opts.folds, "folds", 0, "number of cross-validation folds")
	f.BoolVar(&opts.noPlots, "no-plots", false, "skip rendering plots")
	f.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.StringVar(&opts.logFormat, "log-format", "", "log format (console or json)")

	root.AddCommand(
		newRunCmd(opts),
		newExploreCmd(opts),
		newModelsCmd(opts),
	)
	return root
}

// resolve loads the configuration and applies the flags that were set.
func (o *options) resolve(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, nil, err
	}

	f := cmd.Flags()
	if f.Changed("data") {
		cfg.DataPath = o.dataPath
	}
	if f.Changed("output") {
		cfg.OutputDir = o.outputDir
	}
	if f.Changed("seed") {
		cfg.Seed = o.seed
	}
	if f.Changed("workers") {
		cfg.Workers = o.workers
	}
	if f.Changed("folds") {
		cfg.Split.Folds = o.folds
	}
	if f.Changed("no-plots") {
		cfg.Plots.Enabled = !o.noPlots
	}
	if f.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if f.Changed("log-format") {
		cfg.Log.Format = o.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
