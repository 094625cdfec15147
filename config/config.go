package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"subgrid/grid_world"
	"subgrid/weight_maps"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Kind is the only document kind this package accepts.
const Kind = "coverage"

// Environment overrides, applied after the file is read.
const (
	EnvCellSize  = "SUBGRID_CELL_SIZE"
	EnvWeightMap = "SUBGRID_WEIGHT_MAP"
	EnvSeed      = "SUBGRID_SEED"
	EnvHost      = "SUBGRID_HOST"
	EnvPort      = "SUBGRID_PORT"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid coverage config")

// OuterConfig is the envelope of a config document: a kind selector and its definition.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// CoverageConfig holds the planner and server parameters. The yaml keys are
// lower-case because viper lower-cases every key before the definition is
// re-marshaled.
type CoverageConfig struct {
	Kind string `yaml:"-"`
	// CellSize is the side of a cell in world units; it sets the grid size.
	CellSize float64 `yaml:"cellsize"`
	// WeightMap names a built-in weight table. Ignored when WeightMapFile is set.
	WeightMap string `yaml:"weightmap"`
	// WeightMapFile is a path to a weight map document.
	WeightMapFile string `yaml:"weightmapfile"`
	// Seed fixes the random source; zero seeds from the clock.
	Seed int64 `yaml:"seed"`
	// Jitter bounds the random increment applied to neighbor weights each step.
	Jitter float64 `yaml:"jitter"`
	// AutoStep advances on a timer when its interval is set; otherwise only manual triggers advance.
	AutoStep map[string]string `yaml:"autostep"`
	// RunDeadline bounds the whole run by a duration.
	RunDeadline map[string]string `yaml:"rundeadline"`
	Server      ServerConfig      `yaml:"server"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// Default returns the configuration used when no file is given.
func Default() *CoverageConfig {
	return &CoverageConfig{
		Kind:     Kind,
		CellSize: 500,
		Jitter:   grid_world.DefaultJitter,
		Server:   ServerConfig{Port: "8080"},
	}
}

// Addr returns the server listen address.
func (cfg *CoverageConfig) Addr() string {
	return cfg.Server.Host + ":" + cfg.Server.Port
}

// LoadEnv loads .env files, ./.env by default, into the process environment
// without overriding variables that are already set. Call it once at startup.
func LoadEnv(filenames ...string) error {
	return godotenv.Load(filenames...)
}

// FromYaml reads a config document, applying environment overrides.
func FromYaml(path string) (*CoverageConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	var spec []byte
	if spec, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, err
	}

	innerConfig := Default()
	if err = yaml.Unmarshal(spec, innerConfig); err != nil {
		return nil, fmt.Errorf("decode %s definition: %w", outerConfig.Kind, err)
	}
	innerConfig.Kind = outerConfig.Kind

	if err = innerConfig.applyEnv(); err != nil {
		return nil, err
	}
	if err = innerConfig.Validate(); err != nil {
		return nil, err
	}
	return innerConfig, nil
}

// applyEnv overrides file values with any SUBGRID_* variables that are set.
func (cfg *CoverageConfig) applyEnv() error {
	if val, ok := os.LookupEnv(EnvCellSize); ok {
		cellSize, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("%w: %s must be a number: %v", ErrInvalidConfig, EnvCellSize, err)
		}
		cfg.CellSize = cellSize
	}
	if val, ok := os.LookupEnv(EnvSeed); ok {
		seed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer: %v", ErrInvalidConfig, EnvSeed, err)
		}
		cfg.Seed = seed
	}
	if val, ok := os.LookupEnv(EnvWeightMap); ok {
		cfg.WeightMap = val
	}
	if val, ok := os.LookupEnv(EnvHost); ok {
		cfg.Server.Host = val
	}
	if val, ok := os.LookupEnv(EnvPort); ok {
		cfg.Server.Port = val
	}
	return nil
}

// Validate checks the parameters the grid cannot check for itself until built.
func (cfg *CoverageConfig) Validate() error {
	if cfg.Kind != Kind {
		return fmt.Errorf("%w: kind %q, want %q", ErrInvalidConfig, cfg.Kind, Kind)
	}
	if cfg.CellSize <= 0 || cfg.CellSize > grid_world.MapSize {
		return fmt.Errorf("%w: cellsize %v must be in (0, %v]", ErrInvalidConfig, cfg.CellSize, grid_world.MapSize)
	}
	if cfg.Jitter < 0 {
		return fmt.Errorf("%w: negative jitter %v", ErrInvalidConfig, cfg.Jitter)
	}
	if _, err := cfg.AutoStepInterval(); err != nil {
		return fmt.Errorf("%w: autostep: %v", ErrInvalidConfig, err)
	}
	if val, ok := cfg.RunDeadline["duration"]; ok {
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("%w: rundeadline: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// AutoStepInterval returns the automatic step interval, or zero for manual stepping.
func (cfg *CoverageConfig) AutoStepInterval() (time.Duration, error) {
	val, ok := cfg.AutoStep["interval"]
	if !ok || val == "" {
		return 0, nil
	}
	interval, err := time.ParseDuration(val)
	if err != nil {
		return 0, err
	}
	if interval < 0 {
		return 0, fmt.Errorf("negative interval %v", interval)
	}
	return interval, nil
}

// WithRunDeadline returns a context extended by the run deadline, if one is specified.
func (cfg *CoverageConfig) WithRunDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.RunDeadline["duration"]; ok {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return nil, nil, err
		}
		innerCtx, cancel := context.WithTimeout(ctx, duration)
		return innerCtx, cancel, nil
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}

// Weights resolves the configured weight table: a file wins over a built-in
// name, and neither means random initialization (nil).
func (cfg *CoverageConfig) Weights() ([][]float64, error) {
	if cfg.WeightMapFile != "" {
		wm, err := weight_maps.FromYaml(cfg.WeightMapFile)
		if err != nil {
			return nil, err
		}
		return wm.Weights, nil
	}
	if cfg.WeightMap != "" {
		return weight_maps.Lookup(cfg.WeightMap)
	}
	return nil, nil
}
