package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/yamesant/pima-indians-diabetes-analysis/internal/logging"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/models"
	"github.com/yamesant/pima-indians-diabetes-analysis/internal/preprocessing"
)

// Config is the resolved configuration of one analysis run.
type Config struct {
	DataPath   string         `mapstructure:"data_path" yaml:"data_path"`
	OutputDir  string         `mapstructure:"output_dir" yaml:"output_dir"`
	Seed       int64          `mapstructure:"seed" yaml:"seed"`
	Workers    int            `mapstructure:"workers" yaml:"workers"`
	Split      SplitConfig    `mapstructure:"split" yaml:"split"`
	Plots      PlotConfig     `mapstructure:"plots" yaml:"plots"`
	Recipes    []string       `mapstructure:"recipes" yaml:"recipes"`
	Algorithms []string       `mapstructure:"algorithms" yaml:"algorithms"`
	Models     models.Config  `mapstructure:"models" yaml:"models"`
	Log        logging.Config `mapstructure:"log" yaml:"log"`
}

type SplitConfig struct {
	TrainFraction float64 `mapstructure:"train_fraction" yaml:"train_fraction"`
	Folds         int     `mapstructure:"folds" yaml:"folds"`
}

type PlotConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Bins    int  `mapstructure:"bins" yaml:"bins"`
}

func Default() Config {
	return Config{
		DataPath:  "data/diabetes.csv",
		OutputDir: "reports",
		Seed:      42,
		Workers:   4,
		Split: SplitConfig{
			TrainFraction: 0.75,
			Folds:         10,
		},
		Plots: PlotConfig{
			Enabled: true,
			Bins:    50,
		},
		Recipes:    []string{preprocessing.RecipeNull.String(), preprocessing.RecipeImputer.String()},
		Algorithms: models.CatalogIDs(),
		Models:     models.DefaultConfig(),
		Log:        logging.NewDefaultConfig(),
	}
}

// Load resolves configuration from defaults, an optional YAML file and
// PIMA_* environment variables, in increasing order of precedence.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("marshal defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}

	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return nil, fmt.Errorf("config file %s: %w", cfgFile, err)
		}
		v.SetConfigFile(cfgFile)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}

	v.SetEnvPrefix("PIMA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if c.Split.TrainFraction <= 0 || c.Split.TrainFraction >= 1 {
		return fmt.Errorf("split.train_fraction must be between 0 and 1, got %v", c.Split.TrainFraction)
	}
	if c.Split.Folds < 2 {
		return fmt.Errorf("split.folds must be at least 2, got %d", c.Split.Folds)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Plots.Bins < 1 {
		return fmt.Errorf("plots.bins must be positive, got %d", c.Plots.Bins)
	}
	if len(c.Recipes) == 0 {
		return fmt.Errorf("at least one recipe is required")
	}
	for _, name := range c.Recipes {
		if _, err := preprocessing.ParseRecipeKind(name); err != nil {
			return err
		}
	}
	if len(c.Algorithms) == 0 {
		return fmt.Errorf("at least one algorithm is required")
	}
	for _, id := range c.Algorithms {
		if _, err := models.Lookup(id); err != nil {
			return err
		}
	}
	if err := c.Models.Validate(); err != nil {
		return fmt.Errorf("models: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// Save writes the configuration as YAML, creating the parent directory.
func Save(c *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
